package directors

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"

	"schemabench/src/engine"
	"schemabench/src/fakedata"
	"schemabench/src/helpers"
	"schemabench/src/models"
	"schemabench/src/settings"
)

// ErrInvalidCount is returned by Generate when the record count cannot be
// split into at least one company and zero or more people.
var ErrInvalidCount = errors.New("invalid record count")

const (
	MinAge = 18
	MaxAge = 80

	// AgeCutoffYear and ResetAge drive the conditional age update: everyone
	// born strictly before AgeCutoffYear gets ResetAge.
	AgeCutoffYear = 1988
	ResetAge      = 30

	// RenamedCompany is the name every company receives from the rename update.
	RenamedCompany = "Company"
)

var sexes = []string{"M", "F", "O"}

// SchemaVariant is one storage layout of the person/company domain. Every
// variant answers the same four queries against its own collections.
type SchemaVariant interface {
	// Name is the label shown in menus and reports.
	Name() string
	// Collections lists the collections the variant owns and resets.
	Collections() []string

	// Generate drops the variant's collections and fills them with n records,
	// companies strictly before people.
	Generate(ctx context.Context, n int) (GenerationSummary, error)

	PersonCompanyPairs(ctx context.Context) ([]models.PersonCompanyRow, error)
	EmployeeCounts(ctx context.Context) ([]models.CompanyEmployeeCount, error)
	ResetAgesBornBefore1988(ctx context.Context) (models.UpdateResult, error)
	RenameAllCompanies(ctx context.Context) (models.UpdateResult, error)
}

// GenerationSummary reports how a record count was split.
type GenerationSummary struct {
	Companies int
	People    int
}

func (s GenerationSummary) String() string {
	return fmt.Sprintf("%d companies, %d people", s.Companies, s.People)
}

// SplitCounts divides n records into floor(n/ratio) companies and the rest
// people. It does not validate its input, see generator.plan.
func SplitCounts(n, ratio int) (companies, people int) {
	if ratio < 1 {
		return 0, n
	}
	companies = n / ratio
	return companies, n - companies
}

// generator builds the content of companies and people. It decides nothing
// about layout; the variants decide how documents link to each other.
type generator struct {
	provider fakedata.Provider
	ratio    int
	verbose  bool
	now      func() time.Time
	logger   *zap.SugaredLogger
}

func newGenerator(provider fakedata.Provider, args *settings.Arguments, logger *zap.SugaredLogger) *generator {
	return &generator{
		provider: provider,
		ratio:    args.PersonCompanyRatio,
		verbose:  args.Verbose,
		now:      time.Now,
		logger:   logger,
	}
}

// plan validates n and splits it. It runs before any collection is touched.
func (g *generator) plan(n int) (GenerationSummary, error) {
	if n < 1 {
		return GenerationSummary{}, fmt.Errorf("%w: %d, must be at least 1", ErrInvalidCount, n)
	}
	if g.ratio < 1 {
		return GenerationSummary{}, fmt.Errorf("%w: person_company_ratio is %d", settings.ErrConfiguration, g.ratio)
	}
	companies, people := SplitCounts(n, g.ratio)
	if companies == 0 {
		return GenerationSummary{}, fmt.Errorf("%w: %d records with a person/company ratio of %d would create no company, use at least %d",
			ErrInvalidCount, n, g.ratio, g.ratio)
	}
	return GenerationSummary{Companies: companies, People: people}, nil
}

func (g *generator) newCompany() models.Company {
	name := g.provider.Company()
	domain := helpers.CompanyDomain(name)
	company := models.Company{
		ID:        g.provider.UUID(),
		Name:      name,
		Domain:    domain,
		Email:     helpers.CompanyEmail(domain),
		URL:       helpers.CompanyURL(name),
		VATNumber: g.provider.UUID(),
	}
	if g.verbose {
		g.logger.Debugw("Generated company", "id", company.ID, "name", company.Name)
	}
	return company
}

// newPerson builds a person working at company. Age and CompanyEmail are
// computed here once and never refreshed.
func (g *generator) newPerson(company models.Company) models.Person {
	first := g.provider.FirstName()
	last := g.provider.LastName()
	dob := g.provider.DateOfBirth(MinAge, MaxAge)

	person := models.Person{
		ID:           g.provider.UUID(),
		FirstName:    first,
		LastName:     last,
		FullName:     first + " " + last,
		DateOfBirth:  dob,
		Age:          g.now().Year() - dob.Year(),
		Sex:          g.provider.RandomElement(sexes),
		Email:        helpers.PersonalEmail(first, last),
		CompanyEmail: helpers.WorkEmail(first, last, company.Domain),
		Address:      g.provider.Address(),
		NationalID:   g.provider.NationalID(),
	}
	if g.verbose {
		g.logger.Debugw("Generated person", "id", person.ID, "company", company.ID)
	}
	return person
}

// companyPool holds the companies generated so far and hands out a uniformly
// random one for each person.
type companyPool struct {
	ids  []string
	byID map[string]models.Company
}

func newCompanyPool(capacity int) *companyPool {
	return &companyPool{
		ids:  make([]string, 0, capacity),
		byID: make(map[string]models.Company, capacity),
	}
}

func (p *companyPool) add(company models.Company) {
	p.ids = append(p.ids, company.ID)
	p.byID[company.ID] = company
}

func (p *companyPool) pick(provider fakedata.Provider) models.Company {
	return p.byID[provider.RandomElement(p.ids)]
}

// resetCollections drops and recreates every collection a variant owns.
func resetCollections(ctx context.Context, store engine.DocumentStore, collections []string) error {
	for _, name := range collections {
		if err := store.DropCollection(ctx, name); err != nil {
			return err
		}
	}
	for _, name := range collections {
		if err := store.CreateCollection(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// aggregateRows runs pipeline and decodes every result document into T.
func aggregateRows[T any](ctx context.Context, store engine.DocumentStore, collection string, pipeline []bson.D) ([]T, error) {
	var rows []T
	if err := store.AggregateInto(ctx, collection, pipeline, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func bornBefore1988Expr() bson.D {
	return bson.D{{Key: "$expr", Value: bson.D{{Key: "$lt", Value: bson.A{
		bson.D{{Key: "$year", Value: "$dateOfBirth"}},
		AgeCutoffYear,
	}}}}}
}

func ageCutoffDate() time.Time {
	return time.Date(AgeCutoffYear, time.January, 1, 0, 0, 0, 0, time.UTC)
}

func setField(path string, value interface{}) bson.D {
	return bson.D{{Key: "$set", Value: bson.D{{Key: path, Value: value}}}}
}
