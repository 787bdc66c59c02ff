// Package db provides the relational-database credential store. Importing it
// registers auth.BackendDatabase, which Resolve selects for the name "db".
//
// Two drivers are available through auth.db.driver: "postgres" (pgx pool,
// auth_credentials table) and "bolt" (embedded bbolt file).
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/MichaelAJay/go-auth/auth"
	"github.com/MichaelAJay/go-auth/errors"
	"github.com/MichaelAJay/go-auth/validation"
	"github.com/MichaelAJay/go-cache"
	"github.com/MichaelAJay/go-logger"
	"github.com/MichaelAJay/go-metrics"
	"github.com/MichaelAJay/go-serializer"
)

// Store implements auth.CredentialStore on a credential table.
type Store struct {
	*auth.Base

	table      credentialTable
	driver     string
	cache      cache.Cache
	cacheTTL   time.Duration
	serializer serializer.Serializer
	logins     *validation.LoginValidator
	passwords  *validation.PasswordPolicy
}

func init() {
	auth.Register(auth.BackendDatabase, func(base *auth.Base, deps auth.Dependencies) (auth.CredentialStore, error) {
		return New(base, deps)
	})
}

// New creates a Store around base using the driver named by auth.db.driver.
// No connection is opened until the first operation.
func New(base *auth.Base, deps auth.Dependencies) (*Store, error) {
	cfg := loadConfig(deps.Config)

	var (
		table credentialTable
		err   error
	)
	switch cfg.Driver {
	case DriverPostgres:
		table, err = newPostgresTable(cfg.DSN, cfg.MaxConns, deps.Logger)
	case DriverBolt:
		table, err = newBoltTable(cfg.Path)
	default:
		err = errors.NewConfigurationError("auth.db.driver", fmt.Sprintf("unsupported driver %q", cfg.Driver))
	}
	if err != nil {
		return nil, err
	}

	return newStore(base, table, cfg, deps), nil
}

func newStore(base *auth.Base, table credentialTable, cfg *Config, deps auth.Dependencies) *Store {
	recordSerializer, err := serializer.DefaultRegistry.New(serializer.JSON)
	if err != nil {
		recordSerializer = serializer.NewJSONSerializer()
	}

	return &Store{
		Base:       base,
		table:      table,
		driver:     cfg.Driver,
		cache:      deps.Cache,
		cacheTTL:   cfg.CacheTTL,
		serializer: recordSerializer,
		logins:     validation.NewLoginValidator(),
		passwords:  validation.LoadPasswordPolicy(deps.Config),
	}
}

// Backend returns auth.BackendDatabase.
func (s *Store) Backend() auth.BackendType {
	return auth.BackendDatabase
}

// Driver returns the configured driver name.
func (s *Store) Driver() string {
	return s.driver
}

// Migrate creates or upgrades the credential schema.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.table.Migrate(ctx); err != nil {
		return s.fail("migrate", err)
	}
	return nil
}

// CreateLogin encrypts password with the current strategy and inserts a new
// credential.
func (s *Store) CreateLogin(ctx context.Context, login, password string) error {
	defer s.observe("create_login", time.Now())

	if s.ReadOnly() {
		return s.fail("create_login", errors.NewReadOnlyError("create_login"))
	}
	if err := s.logins.ValidateLogin(login); err != nil {
		return s.fail("create_login", err)
	}
	if err := s.passwords.ValidatePassword(password); err != nil {
		return s.fail("create_login", err)
	}

	hash, err := s.Encrypt(password)
	if err != nil {
		return s.fail("create_login", errors.Wrap(err, errors.CodeEncryptionFailed, "Failed to encrypt password"))
	}

	cred := NewCredential(login, hash, s.Encryption().Name())
	if err := s.table.Insert(ctx, cred); err != nil {
		return s.fail("create_login", err)
	}

	s.cacheCredential(ctx, cred)

	s.Logger().Info("Login created",
		logger.Field{Key: "login", Value: login},
		logger.Field{Key: "scheme", Value: cred.Scheme})
	s.count("create_login.success")
	return nil
}

// DeleteLogin removes the credential for login.
func (s *Store) DeleteLogin(ctx context.Context, login string) error {
	defer s.observe("delete_login", time.Now())

	if s.ReadOnly() {
		return s.fail("delete_login", errors.NewReadOnlyError("delete_login"))
	}
	if err := s.logins.ValidateLogin(login); err != nil {
		return s.fail("delete_login", err)
	}

	if err := s.table.Delete(ctx, login); err != nil {
		return s.fail("delete_login", err)
	}

	s.evict(ctx, login)

	s.Logger().Info("Login deleted", logger.Field{Key: "login", Value: login})
	s.count("delete_login.success")
	return nil
}

// VerifyLogin compares password with the stored hash. A hash written under a
// different scheme is checked with that scheme.
func (s *Store) VerifyLogin(ctx context.Context, login, password string) (bool, error) {
	defer s.observe("verify", time.Now())

	if err := s.logins.ValidateLogin(login); err != nil {
		s.count("verify.failed")
		return false, nil
	}

	cred, err := s.credential(ctx, login)
	if err != nil {
		if errors.IsErrorType(err, errors.ErrLoginNotFound) {
			s.count("verify.failed")
			return false, nil
		}
		return false, s.fail("verify", err)
	}

	ok, err := s.compare(cred, password)
	if err != nil {
		return false, s.fail("verify", err)
	}
	if !ok {
		s.count("verify.failed")
		return false, nil
	}

	s.count("verify.success")
	return true, nil
}

// UpdatePassword re-encrypts password with the current strategy.
func (s *Store) UpdatePassword(ctx context.Context, login, password string) error {
	defer s.observe("update_password", time.Now())

	if s.ReadOnly() {
		return s.fail("update_password", errors.NewReadOnlyError("update_password"))
	}
	if err := s.logins.ValidateLogin(login); err != nil {
		return s.fail("update_password", err)
	}
	if err := s.passwords.ValidatePassword(password); err != nil {
		return s.fail("update_password", err)
	}

	hash, err := s.Encrypt(password)
	if err != nil {
		return s.fail("update_password", errors.Wrap(err, errors.CodeEncryptionFailed, "Failed to encrypt password"))
	}

	if err := s.table.UpdateHash(ctx, login, hash, s.Encryption().Name(), time.Now().UTC()); err != nil {
		return s.fail("update_password", err)
	}

	s.evict(ctx, login)

	s.Logger().Info("Password updated", logger.Field{Key: "login", Value: login})
	s.count("update_password.success")
	return nil
}

// LoginExists reports whether a credential is stored for login.
func (s *Store) LoginExists(ctx context.Context, login string) (bool, error) {
	if err := s.logins.ValidateLogin(login); err != nil {
		return false, nil
	}

	if _, err := s.credential(ctx, login); err != nil {
		if errors.IsErrorType(err, errors.ErrLoginNotFound) {
			return false, nil
		}
		return false, s.fail("login_exists", err)
	}
	return true, nil
}

// ListLogins returns all stored logins in ascending order.
func (s *Store) ListLogins(ctx context.Context) ([]string, error) {
	logins, err := s.table.List(ctx)
	if err != nil {
		return nil, s.fail("list_logins", err)
	}
	return logins, nil
}

// Close releases the store's reference to the shared pool or file.
func (s *Store) Close() error {
	if err := s.table.Close(); err != nil {
		return s.fail("close", err)
	}
	return nil
}

func (s *Store) compare(cred *Credential, password string) (bool, error) {
	current := s.Encryption()
	if current == nil || cred.Scheme == "" || cred.Scheme == current.Name() {
		return s.Compare(cred.PasswordHash, password)
	}
	return s.Selector().Select(cred.Scheme).Compare(cred.PasswordHash, password)
}

// credential reads through the cache.
func (s *Store) credential(ctx context.Context, login string) (*Credential, error) {
	if cred := s.cachedCredential(ctx, login); cred != nil {
		return cred, nil
	}

	cred, err := s.table.Get(ctx, login)
	if err != nil {
		return nil, err
	}

	s.cacheCredential(ctx, cred)
	return cred, nil
}

func cacheKey(login string) string {
	return fmt.Sprintf("auth:credential:%s", login)
}

// cacheCredential stores the serialized credential in cache.
func (s *Store) cacheCredential(ctx context.Context, cred *Credential) {
	if s.cache == nil {
		return
	}

	data, err := s.serializer.Serialize(cred)
	if err != nil {
		s.Logger().Warn("Failed to serialize credential",
			logger.Field{Key: "error", Value: err.Error()},
			logger.Field{Key: "login", Value: cred.Login})
		return
	}

	if err := s.cache.Set(ctx, cacheKey(cred.Login), data, s.cacheTTL); err != nil {
		s.Logger().Warn("Failed to cache credential",
			logger.Field{Key: "error", Value: err.Error()},
			logger.Field{Key: "login", Value: cred.Login})
	}
}

// cachedCredential retrieves a credential from cache.
func (s *Store) cachedCredential(ctx context.Context, login string) *Credential {
	if s.cache == nil {
		return nil
	}

	cached, _, err := s.cache.Get(ctx, cacheKey(login))
	if err != nil {
		return nil
	}

	data, ok := cached.([]byte)
	if !ok {
		return nil
	}

	var cred Credential
	if err := s.serializer.Deserialize(data, &cred); err != nil {
		return nil
	}
	s.count("cache.hit")
	return &cred
}

func (s *Store) evict(ctx context.Context, login string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(login)); err != nil {
		s.Logger().Warn("Failed to evict cached credential",
			logger.Field{Key: "error", Value: err.Error()},
			logger.Field{Key: "login", Value: login})
	}
}

// fail logs err, counts it and records it on the manager's error list.
func (s *Store) fail(operation string, err error) error {
	s.Logger().Error("Database credential operation failed",
		logger.Field{Key: "operation", Value: operation},
		logger.Field{Key: "driver", Value: s.driver},
		logger.Field{Key: "error", Value: err.Error()})
	s.count(operation + ".failed")
	return s.Fail(err)
}

func (s *Store) count(name string) {
	s.Metrics().Counter(metrics.Options{
		Name: "db_store." + name,
		Tags: map[string]string{"driver": s.driver},
	}).Inc()
}

func (s *Store) observe(name string, start time.Time) {
	s.Metrics().Timer(metrics.Options{
		Name: "db_store." + name,
	}).RecordSince(start)
}

var _ auth.CredentialStore = (*Store)(nil)
