package fakedata

import (
	"fmt"
	"strings"

	"github.com/brianvoe/gofakeit/v7"
)

// localeGenerator produces locale-specific content from a shared faker.
type localeGenerator struct {
	firstName  func(f *gofakeit.Faker) string
	lastName   func(f *gofakeit.Faker) string
	address    func(f *gofakeit.Faker) string
	nationalID func(f *gofakeit.Faker) string
	company    func(f *gofakeit.Faker) string
}

var localeRegistry = map[string]localeGenerator{
	"en_US": {
		firstName:  func(f *gofakeit.Faker) string { return f.FirstName() },
		lastName:   func(f *gofakeit.Faker) string { return f.LastName() },
		address:    func(f *gofakeit.Faker) string { return f.Address().Address },
		nationalID: func(f *gofakeit.Faker) string { return f.SSN() },
		company:    func(f *gofakeit.Faker) string { return f.Company() },
	},
	"it_IT": {
		firstName: func(f *gofakeit.Faker) string { return f.RandomString(italianFirstNames) },
		lastName:  func(f *gofakeit.Faker) string { return f.RandomString(italianLastNames) },
		address: func(f *gofakeit.Faker) string {
			city := f.RandomString(italianCities)
			return fmt.Sprintf("%s %s %d\n%s %s (%s)",
				f.RandomString(italianStreetPrefixes), f.RandomString(italianLastNames), f.Number(1, 250),
				f.Numerify("#####"), city, strings.ToUpper(city[:2]))
		},
		// Codice fiscale layout: 6 letters, 2 digits, 1 letter, 2 digits, 1 letter, 3 digits, 1 letter.
		nationalID: func(f *gofakeit.Faker) string {
			return strings.ToUpper(f.Lexify("??????") + f.Numerify("##") + f.Lexify("?") +
				f.Numerify("##") + f.Lexify("?") + f.Numerify("###") + f.Lexify("?"))
		},
		company: func(f *gofakeit.Faker) string {
			switch f.Number(0, 2) {
			case 0:
				return f.RandomString(italianLastNames) + " " + f.RandomString(italianCompanySuffixes)
			case 1:
				return f.RandomString(italianLastNames) + "-" + f.RandomString(italianLastNames) + " " + f.RandomString(italianCompanySuffixes)
			default:
				return f.RandomString(italianLastNames) + ", " + f.RandomString(italianLastNames) + " e " + f.RandomString(italianLastNames) + " " + f.RandomString(italianCompanySuffixes)
			}
		},
	},
}

var italianFirstNames = []string{
	"Alessandro", "Andrea", "Antonio", "Chiara", "Davide", "Elena", "Federica", "Francesca",
	"Francesco", "Giorgia", "Giovanni", "Giulia", "Giuseppe", "Lorenzo", "Luca", "Marco",
	"Maria", "Martina", "Matteo", "Paola", "Riccardo", "Roberta", "Sara", "Simone", "Valentina",
}

var italianLastNames = []string{
	"Barbieri", "Bianchi", "Bruno", "Colombo", "Conti", "Costa", "D'Angelo", "De Luca",
	"Esposito", "Ferrari", "Fontana", "Gallo", "Greco", "Lombardi", "Mancini", "Marino",
	"Moretti", "Ricci", "Rizzo", "Romano", "Rossi", "Russo", "Santoro", "Bianco", "Villa",
}

var italianStreetPrefixes = []string{"Via", "Viale", "Piazza", "Corso", "Vicolo", "Strada"}

var italianCities = []string{
	"Bologna", "Firenze", "Genova", "Milano", "Napoli", "Padova", "Palermo", "Roma", "Torino", "Venezia",
}

var italianCompanySuffixes = []string{"SPA", "s.r.l.", "s.n.c.", "Group", "e figli"}
