package models

import (
	"fmt"
	"strings"
	"unicode"
)

// Slugify derives the record slug from the base-language title and year,
// e.g. ("Arrival", 2016) -> "arrival-2016".
func Slugify(title string, year int) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.TrimSuffix(b.String(), "-")
	return fmt.Sprintf("%s-%d", slug, year)
}
