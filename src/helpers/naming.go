package helpers

import (
	"strings"
	"unicode"
)

const (
	// fallbackSlug is used when a name has no letters or digits at all.
	fallbackSlug = "company"

	personalEmailDomain = "example.com"
	customerMailbox     = "customers"
	topLevelDomain      = ".com"
)

// Slug lowercases name and drops every rune that is not a letter or digit.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return fallbackSlug
	}
	return b.String()
}

// CompanyDomain derives the mail domain of a company, e.g. "Rossi SPA" -> "rossispa.com".
func CompanyDomain(name string) string {
	return Slug(name) + topLevelDomain
}

// CompanyURL derives the web address of a company from its name.
func CompanyURL(name string) string {
	return "www." + CompanyDomain(name)
}

// CompanyEmail is the customer contact mailbox for a company domain.
func CompanyEmail(domain string) string {
	return customerMailbox + "@" + domain
}

// PersonalEmail builds first.last@example.com.
func PersonalEmail(firstName, lastName string) string {
	return WorkEmail(firstName, lastName, personalEmailDomain)
}

// WorkEmail builds first.last@domain. The result is a snapshot; it is not
// rewritten when the company domain changes later.
func WorkEmail(firstName, lastName, domain string) string {
	return mailboxPart(firstName) + "." + mailboxPart(lastName) + "@" + domain
}

func mailboxPart(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}
