package validation

import (
	"fmt"
	"regexp"
	"unicode"

	"github.com/MichaelAJay/go-auth/errors"
)

// loginPattern restricts logins to characters that are safe inside an LDAP
// RDN and a SQL identifier value without escaping.
var loginPattern = regexp.MustCompile(`^[A-Za-z0-9._@-]+$`)

// LoginValidator checks login names before they reach a credential store.
type LoginValidator struct {
	// MinLength is the minimum login length.
	MinLength int

	// MaxLength is the maximum login length.
	MaxLength int
}

// NewLoginValidator creates a LoginValidator with default limits.
func NewLoginValidator() *LoginValidator {
	return &LoginValidator{
		MinLength: 1,
		MaxLength: 255,
	}
}

// ValidateLogin validates a login according to the configured rules.
func (v *LoginValidator) ValidateLogin(login string) error {
	if len(login) < v.MinLength {
		return errors.NewValidationError("login", fmt.Sprintf("must be at least %d characters long", v.MinLength))
	}
	if len(login) > v.MaxLength {
		return errors.NewValidationError("login", fmt.Sprintf("must be no more than %d characters long", v.MaxLength))
	}
	if !loginPattern.MatchString(login) {
		return errors.NewValidationError("login", "may only contain letters, digits and . _ @ -")
	}
	return nil
}

// containsControlChars checks if a string contains null bytes or other control characters.
func containsControlChars(value string) bool {
	for _, char := range value {
		if char == 0 || unicode.IsControl(char) {
			return true
		}
	}
	return false
}
