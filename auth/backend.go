package auth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	autherrors "github.com/MichaelAJay/go-auth/errors"
	"github.com/MichaelAJay/go-logger"
	"github.com/MichaelAJay/go-metrics"
)

// BackendNotFoundMessage is recorded on the store Resolve returns when the
// requested backend cannot be provided.
const BackendNotFoundMessage = "Specified authentication access class could not be found."

// ErrBackendNotFound carries BackendNotFoundMessage for errors.Is checks.
// Credential operations on an unresolved store return an error matching both
// it and errors.ErrBackendUnavailable.
var ErrBackendNotFound = errors.New(BackendNotFoundMessage)

var errUnresolved = fmt.Errorf("%w: %w", autherrors.ErrBackendUnavailable, ErrBackendNotFound)

// BackendType identifies a credential store implementation.
type BackendType string

const (
	// BackendNone is reported by stores that could not be resolved.
	BackendNone BackendType = ""
	// BackendDatabase is the relational-database backend.
	BackendDatabase BackendType = "database"
	// BackendDirectory is the LDAP directory backend.
	BackendDirectory BackendType = "directory"
)

// String returns the string representation of the backend type.
func (bt BackendType) String() string {
	return string(bt)
}

// backendTypeMap maps the lowercase identifiers callers pass to Resolve.
var backendTypeMap = map[string]BackendType{
	"db":   BackendDatabase,
	"ldap": BackendDirectory,
}

// BackendFactory builds a store around base. Factories must not perform I/O;
// connections are opened by the store on first use.
type BackendFactory func(base *Base, deps Dependencies) (CredentialStore, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[BackendType]BackendFactory)
)

// Register makes a backend implementation available to Resolve. It is called
// from the init function of each backend package; importing the package for
// its side effect links the backend in. Register panics if factory is nil or
// the backend is registered twice.
func Register(backend BackendType, factory BackendFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()

	if factory == nil {
		panic("auth: Register factory is nil")
	}
	if _, dup := factories[backend]; dup {
		panic(fmt.Sprintf("auth: Register called twice for backend %s", backend))
	}
	factories[backend] = factory
}

// Backends returns the backend types with a registered implementation.
func Backends() []BackendType {
	factoriesMu.RLock()
	defer factoriesMu.RUnlock()

	types := make([]BackendType, 0, len(factories))
	for bt := range factories {
		types = append(types, bt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Resolve returns a fresh credential store for the backend named by name
// ("db" or "ldap", case-insensitive), with the configured encryption strategy
// selected.
//
// Resolve never returns nil and never fails. When the name is unknown, the
// backend is not linked in, or its factory fails, the returned store carries
// BackendNotFoundMessage in its error list and its credential operations
// return an error matching ErrBackendUnavailable and ErrBackendNotFound.
// Callers check ErrorReport after resolving.
func Resolve(name string, deps Dependencies) CredentialStore {
	settings := loadSettings(deps.Config)

	base := NewBase(deps)
	base.SelectEncryption(settings.Encryption)

	backend, known := backendTypeMap[strings.ToLower(name)]
	if !known {
		return degrade(base, name, nil)
	}

	factoriesMu.RLock()
	factory, linked := factories[backend]
	factoriesMu.RUnlock()
	if !linked {
		return degrade(base, name, fmt.Errorf("backend %s is not linked into this binary", backend))
	}

	store, err := factory(base, deps)
	if err != nil {
		return degrade(base, name, err)
	}

	deps.Logger.Info("Authentication backend resolved",
		logger.Field{Key: "backend", Value: backend.String()},
		logger.Field{Key: "encryption", Value: settings.Encryption})
	deps.Metrics.Counter(metrics.Options{
		Name: "auth.resolve.success",
		Tags: map[string]string{"backend": backend.String()},
	}).Inc()

	return store
}

func degrade(base *Base, name string, cause error) CredentialStore {
	fields := []logger.Field{{Key: "backend", Value: name}}
	if cause != nil {
		fields = append(fields, logger.Field{Key: "error", Value: cause.Error()})
	}
	base.logger.Warn("Authentication backend could not be resolved", fields...)
	base.metrics.Counter(metrics.Options{
		Name: "auth.resolve.not_found",
	}).Inc()

	base.AddError(BackendNotFoundMessage)
	return &unavailableStore{Base: base}
}

// unavailableStore is the error-bearing store Resolve returns on failure.
// Its credential operations do nothing.
type unavailableStore struct {
	*Base
}

func (s *unavailableStore) Backend() BackendType { return BackendNone }

func (s *unavailableStore) CreateLogin(context.Context, string, string) error {
	return errUnresolved
}

func (s *unavailableStore) DeleteLogin(context.Context, string) error {
	return errUnresolved
}

func (s *unavailableStore) VerifyLogin(context.Context, string, string) (bool, error) {
	return false, errUnresolved
}

func (s *unavailableStore) UpdatePassword(context.Context, string, string) error {
	return errUnresolved
}

func (s *unavailableStore) LoginExists(context.Context, string) (bool, error) {
	return false, errUnresolved
}

func (s *unavailableStore) ListLogins(context.Context) ([]string, error) {
	return nil, errUnresolved
}

func (s *unavailableStore) Close() error { return nil }

var _ CredentialStore = (*unavailableStore)(nil)
