package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/MichaelAJay/go-auth/errors"
	"github.com/MichaelAJay/go-config"
)

// PasswordPolicy provides password validation for new and updated credentials.
// The defaults only bound the length, since credential stores often hold
// passwords chosen under older rules.
type PasswordPolicy struct {
	// MinLength is the minimum required password length.
	MinLength int

	// MaxLength is the maximum allowed password length.
	MaxLength int

	// RequireUppercase specifies whether uppercase letters are required.
	RequireUppercase bool

	// RequireLowercase specifies whether lowercase letters are required.
	RequireLowercase bool

	// RequireNumbers specifies whether numbers are required.
	RequireNumbers bool

	// RequireSpecialChars specifies whether non-alphanumeric characters are required.
	RequireSpecialChars bool
}

// NewPasswordPolicy creates a PasswordPolicy with default settings.
func NewPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength: 1,
		MaxLength: 1024,
	}
}

// LoadPasswordPolicy builds a policy from the auth.password.* configuration keys.
func LoadPasswordPolicy(cfg config.Config) *PasswordPolicy {
	policy := NewPasswordPolicy()
	if cfg == nil {
		return policy
	}

	if minLen, ok := cfg.GetInt("auth.password.min_length"); ok {
		policy.MinLength = minLen
	}
	if maxLen, ok := cfg.GetInt("auth.password.max_length"); ok {
		policy.MaxLength = maxLen
	}
	if requireUpper, ok := cfg.GetBool("auth.password.require_upper"); ok {
		policy.RequireUppercase = requireUpper
	}
	if requireLower, ok := cfg.GetBool("auth.password.require_lower"); ok {
		policy.RequireLowercase = requireLower
	}
	if requireNumber, ok := cfg.GetBool("auth.password.require_number"); ok {
		policy.RequireNumbers = requireNumber
	}
	if requireSpecial, ok := cfg.GetBool("auth.password.require_special"); ok {
		policy.RequireSpecialChars = requireSpecial
	}

	return policy
}

// ValidatePassword validates a password according to the configured rules.
// All violations are reported together.
func (p *PasswordPolicy) ValidatePassword(password string) error {
	var problems []string

	if len(password) < p.MinLength {
		problems = append(problems, fmt.Sprintf("must be at least %d characters long", p.MinLength))
	}
	if len(password) > p.MaxLength {
		problems = append(problems, fmt.Sprintf("must be no more than %d characters long", p.MaxLength))
	}
	if containsControlChars(password) {
		problems = append(problems, "must not contain control characters")
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, char := range password {
		switch {
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsDigit(char):
			hasNumber = true
		case unicode.IsPunct(char) || unicode.IsSymbol(char) || unicode.IsSpace(char):
			hasSpecial = true
		}
	}

	if p.RequireUppercase && !hasUpper {
		problems = append(problems, "must contain an uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		problems = append(problems, "must contain a lowercase letter")
	}
	if p.RequireNumbers && !hasNumber {
		problems = append(problems, "must contain a number")
	}
	if p.RequireSpecialChars && !hasSpecial {
		problems = append(problems, "must contain a special character")
	}

	if len(problems) > 0 {
		return errors.NewValidationError("password", strings.Join(problems, "; "))
	}
	return nil
}
