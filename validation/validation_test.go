package validation

import (
	"strings"
	"testing"

	"github.com/MichaelAJay/go-auth/errors"
	"github.com/MichaelAJay/go-auth/internal/testutil"
)

func TestLoginValidator_ValidateLogin(t *testing.T) {
	validator := NewLoginValidator()

	tests := []struct {
		name        string
		login       string
		expectError bool
	}{
		{name: "simple login", login: "jdoe"},
		{name: "email style login", login: "john.doe@example.com"},
		{name: "dashes and underscores", login: "svc-backup_01"},
		{name: "empty login", login: "", expectError: true},
		{name: "whitespace", login: "john doe", expectError: true},
		{name: "ldap special characters", login: "cn=admin,dc=example", expectError: true},
		{name: "sql quote", login: "o'brien", expectError: true},
		{name: "too long", login: strings.Repeat("a", 256), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.ValidateLogin(tt.login)
			if tt.expectError {
				if err == nil {
					t.Fatalf("Expected error for login %q", tt.login)
				}
				if code := errors.GetErrorCode(err); code != errors.CodeValidationFailed {
					t.Errorf("Expected code %s, got %s", errors.CodeValidationFailed, code)
				}
				return
			}
			if err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestPasswordPolicy_Defaults(t *testing.T) {
	policy := NewPasswordPolicy()

	if err := policy.ValidatePassword("x"); err != nil {
		t.Errorf("Expected single character password to pass default policy, got %v", err)
	}
	if err := policy.ValidatePassword(""); err == nil {
		t.Error("Expected empty password to fail")
	}
	if err := policy.ValidatePassword("pass\x00word"); err == nil {
		t.Error("Expected password with null byte to fail")
	}
	if err := policy.ValidatePassword(strings.Repeat("p", 1025)); err == nil {
		t.Error("Expected overlong password to fail")
	}
}

func TestLoadPasswordPolicy(t *testing.T) {
	cfg := testutil.NewMockConfig(map[string]any{
		"auth.password.min_length":      8,
		"auth.password.require_upper":   true,
		"auth.password.require_number":  true,
		"auth.password.require_special": true,
	})

	policy := LoadPasswordPolicy(cfg)

	if policy.MinLength != 8 {
		t.Errorf("Expected MinLength 8, got %d", policy.MinLength)
	}
	if policy.MaxLength != 1024 {
		t.Errorf("Expected default MaxLength 1024, got %d", policy.MaxLength)
	}

	tests := []struct {
		password string
		problem  string
	}{
		{password: "short", problem: "at least 8"},
		{password: "alllowercase1!", problem: "uppercase"},
		{password: "NoNumbersHere!", problem: "number"},
		{password: "NoSpecial123", problem: "special"},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			err := policy.ValidatePassword(tt.password)
			if err == nil {
				t.Fatalf("Expected %q to fail", tt.password)
			}
			if !strings.Contains(err.Error(), tt.problem) {
				t.Errorf("Expected error to mention %q, got %v", tt.problem, err)
			}
		})
	}

	if err := policy.ValidatePassword("Str0ng!Password"); err != nil {
		t.Errorf("Expected strong password to pass, got %v", err)
	}
}

func TestLoadPasswordPolicy_NilConfig(t *testing.T) {
	policy := LoadPasswordPolicy(nil)
	if policy.MinLength != 1 || policy.MaxLength != 1024 {
		t.Errorf("Expected defaults, got %+v", policy)
	}
}
