package auth

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/tendant/pawfinder/internal/config"
)

// PasswordPolicy defines password complexity requirements applied at
// registration. The zero value only requires a non-empty password.
type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

// NewPasswordPolicy creates a PasswordPolicy from config.
func NewPasswordPolicy(cfg config.PasswordPolicyConfig) *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:        cfg.MinLength,
		RequireUppercase: cfg.RequireUppercase,
		RequireLowercase: cfg.RequireLowercase,
		RequireNumber:    cfg.RequireNumber,
		RequireSpecial:   cfg.RequireSpecial,
	}
}

type charRule struct {
	enabled bool
	match   func(rune) bool
	label   string
}

func (p *PasswordPolicy) charRules() []charRule {
	return []charRule{
		{p.RequireUppercase, unicode.IsUpper, "one uppercase letter"},
		{p.RequireLowercase, unicode.IsLower, "one lowercase letter"},
		{p.RequireNumber, unicode.IsDigit, "one number"},
		{p.RequireSpecial, isSpecial, "one special character"},
	}
}

// ValidatePassword checks if a password meets the policy requirements.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if p.MinLength > 0 && len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}
	for _, rule := range p.charRules() {
		if rule.enabled && !strings.ContainsFunc(password, rule.match) {
			return fmt.Errorf("password must contain at least %s", rule.label)
		}
	}
	return nil
}

// Requirements returns a human-readable description of the policy.
func (p *PasswordPolicy) Requirements() string {
	var requirements []string
	if p.MinLength > 0 {
		requirements = append(requirements, fmt.Sprintf("at least %d characters", p.MinLength))
	}
	for _, rule := range p.charRules() {
		if rule.enabled {
			requirements = append(requirements, rule.label)
		}
	}
	if len(requirements) == 0 {
		return "No password requirements"
	}
	return "Password must contain " + strings.Join(requirements, ", ")
}

func isSpecial(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
}
