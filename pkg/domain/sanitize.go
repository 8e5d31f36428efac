package domain

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// CleanText trims surrounding whitespace and drops control characters other
// than newline and tab.
func CleanText(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s))
}

// ValidateLength checks that value has between min and max characters.
// A zero bound is not enforced. Failures wrap ErrMissingField when the value
// is required but empty, and ErrInvalidField otherwise.
func ValidateLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if min > 0 && n == 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	if min > 0 && n < min {
		return fmt.Errorf("%w: %s must be at least %d characters long", ErrInvalidField, field, min)
	}
	if max > 0 && n > max {
		return fmt.Errorf("%w: %s must be at most %d characters long", ErrInvalidField, field, max)
	}
	return nil
}
