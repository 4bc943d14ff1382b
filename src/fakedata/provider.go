// Package fakedata supplies the content of generated documents: names,
// addresses, company names, birth dates and identifiers. Only the content is
// random here; the shape of a dataset is decided by the schema variants.
package fakedata

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"schemabench/src/helpers"
)

// ErrUnsupportedLocale is returned when a configured language has no generator.
var ErrUnsupportedLocale = errors.New("unsupported locale")

// Provider is the synthetic data source the schema variants depend on.
type Provider interface {
	FirstName() string
	LastName() string
	Name() string
	Address() string
	NationalID() string
	// DateOfBirth returns a midnight UTC date for someone aged between
	// minAge and maxAge today.
	DateOfBirth(minAge, maxAge int) time.Time
	Company() string
	RandomElement(elements []string) string
	UUID() string
}

// FakerProvider implements Provider on gofakeit. When several locales are
// configured every value is drawn from one of them, chosen uniformly.
type FakerProvider struct {
	faker   *gofakeit.Faker
	locales []localeGenerator
	now     func() time.Time
}

// NewProvider builds a provider for the given locales. A zero seed selects a
// random one.
func NewProvider(languages []string, seed uint64) (*FakerProvider, error) {
	if len(languages) == 0 {
		return nil, fmt.Errorf("%w: no locale configured", ErrUnsupportedLocale)
	}

	locales := make([]localeGenerator, 0, len(languages))
	for _, lang := range languages {
		gen, ok := localeRegistry[strings.TrimSpace(lang)]
		if !ok {
			return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedLocale, lang, strings.Join(SupportedLocales(), ", "))
		}
		locales = append(locales, gen)
	}

	return &FakerProvider{
		faker:   gofakeit.New(seed),
		locales: locales,
		now:     time.Now,
	}, nil
}

// SupportedLocales lists the locale names accepted by NewProvider.
func SupportedLocales() []string {
	names := make([]string, 0, len(localeRegistry))
	for name := range localeRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (p *FakerProvider) locale() localeGenerator {
	if len(p.locales) == 1 {
		return p.locales[0]
	}
	return p.locales[p.faker.Number(0, len(p.locales)-1)]
}

func (p *FakerProvider) FirstName() string {
	return p.locale().firstName(p.faker)
}

func (p *FakerProvider) LastName() string {
	return p.locale().lastName(p.faker)
}

func (p *FakerProvider) Name() string {
	loc := p.locale()
	return loc.firstName(p.faker) + " " + loc.lastName(p.faker)
}

func (p *FakerProvider) Address() string {
	return p.locale().address(p.faker)
}

func (p *FakerProvider) NationalID() string {
	return p.locale().nationalID(p.faker)
}

func (p *FakerProvider) Company() string {
	return p.locale().company(p.faker)
}

func (p *FakerProvider) DateOfBirth(minAge, maxAge int) time.Time {
	if minAge > maxAge {
		minAge, maxAge = maxAge, minAge
	}
	today := truncateToDate(p.now())
	// Youngest: exactly minAge today. Oldest: one day short of maxAge+1.
	latest := today.AddDate(-minAge, 0, 0)
	earliest := today.AddDate(-(maxAge + 1), 0, 1)
	return truncateToDate(p.faker.DateRange(earliest, latest))
}

func (p *FakerProvider) RandomElement(elements []string) string {
	if len(elements) == 0 {
		return ""
	}
	return elements[p.faker.Number(0, len(elements)-1)]
}

// UUID returns a random identifier. It uses the same generator as document
// ids elsewhere so identifiers stay unique across providers and seeds.
func (p *FakerProvider) UUID() string {
	return helpers.GenerateUUID()
}

func truncateToDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
