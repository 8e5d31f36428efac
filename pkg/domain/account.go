package domain

import (
	"strings"
	"time"
)

// Account is a registered identity.
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// NormalizeIdentity trims and lower-cases a username or email so that uniqueness
// checks and lookups are case-insensitive.
func NormalizeIdentity(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
