// File: auth/interfaces.go
package auth

import (
	"context"

	"github.com/MichaelAJay/go-auth/auth/encryption"
)

// Manager is the capability set shared by every authentication object:
// encryption strategy selection and delegation, error aggregation and the
// read-only flag.
//
// A Manager is request scoped. It is not safe for concurrent use; callers
// handling concurrent requests build one per request.
type Manager interface {
	// SelectEncryption resolves name through the encryption Selector, makes
	// the result the current strategy and returns it.
	SelectEncryption(name string) encryption.Strategy

	// Encryption returns the current strategy, or nil if none was selected.
	Encryption() encryption.Strategy

	// Encrypt delegates to the current strategy. It panics with
	// ErrNoEncryption if no strategy was selected.
	Encrypt(cleartext string) (string, error)

	// Compare delegates to the current strategy. It panics with
	// ErrNoEncryption if no strategy was selected.
	Compare(encrypted, cleartext string) (bool, error)

	// AddError appends a message to the error list.
	AddError(msg string)

	// SetError replaces the error list with a single message.
	SetError(msg string)

	// Errors returns a copy of the error list.
	Errors() []string

	// ErrorReport returns every error message on its own line, followed by
	// the current strategy's report. It panics with ErrNoEncryption if no
	// strategy was selected.
	ErrorReport() string

	// ReadOnly reports whether mutating credential operations are refused.
	ReadOnly() bool

	// SetReadOnly sets the read-only flag and returns its previous value.
	SetReadOnly(readOnly bool) bool
}

// CredentialStore is a Manager specialized to a storage technology. Selecting
// a backend yields a CredentialStore, so every Manager operation remains
// available on it.
//
// Failed operations return the error and also record it on the error list.
// While ReadOnly is set, CreateLogin, UpdatePassword and DeleteLogin are
// refused.
type CredentialStore interface {
	Manager

	// Backend returns the backend type, or BackendNone for a store that
	// could not be resolved.
	Backend() BackendType

	// CreateLogin stores a new login with its encrypted password.
	CreateLogin(ctx context.Context, login, password string) error

	// DeleteLogin removes a login.
	DeleteLogin(ctx context.Context, login string) error

	// VerifyLogin reports whether password matches the stored credential.
	// A wrong password or unknown login is (false, nil).
	VerifyLogin(ctx context.Context, login, password string) (bool, error)

	// UpdatePassword replaces the password of an existing login.
	UpdatePassword(ctx context.Context, login, password string) error

	// LoginExists reports whether the login is stored.
	LoginExists(ctx context.Context, login string) (bool, error)

	// ListLogins returns every stored login.
	ListLogins(ctx context.Context) ([]string, error)

	// Close releases connections held by the store.
	Close() error
}
