package helpers

import (
	"strings"

	"github.com/google/uuid"
)

// GenerateUUID returns a random identifier used for document ids and VAT numbers.
func GenerateUUID() string {
	return uuid.New().String()
}

// StripQuotes trims whitespace and one pair of matching quotes from user input.
func StripQuotes(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return strings.TrimSpace(s[1 : len(s)-1])
		}
	}
	return s
}
