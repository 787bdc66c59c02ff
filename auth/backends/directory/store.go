// Package directory provides the LDAP credential store. Importing it
// registers auth.BackendDirectory, which Resolve selects for the name "ldap".
//
// Each login is an entry <uid_attribute>=<login>,<base_dn>. Passwords are
// kept in userPassword as {SCHEME}hash, so entries written under one
// encryption strategy keep verifying after the manager switches to another.
package directory

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MichaelAJay/go-auth/auth"
	"github.com/MichaelAJay/go-auth/auth/encryption"
	"github.com/MichaelAJay/go-auth/errors"
	"github.com/MichaelAJay/go-auth/validation"
	"github.com/MichaelAJay/go-logger"
	"github.com/MichaelAJay/go-metrics"
	"github.com/go-ldap/ldap/v3"
)

const passwordAttribute = "userPassword"

// errIdentityLost marks a connection left bound as a user. withConn drops it.
var errIdentityLost = stderrors.New("bind identity could not be restored")

// Store implements auth.CredentialStore on an LDAP directory.
type Store struct {
	*auth.Base

	config    *Config
	dial      Dialer
	logins    *validation.LoginValidator
	passwords *validation.PasswordPolicy

	mu   sync.Mutex
	conn Conn
}

func init() {
	auth.Register(auth.BackendDirectory, func(base *auth.Base, deps auth.Dependencies) (auth.CredentialStore, error) {
		return New(base, deps, DialLDAP)
	})
}

// New creates a Store around base. The directory is dialed on first use.
func New(base *auth.Base, deps auth.Dependencies, dial Dialer) (*Store, error) {
	cfg, err := loadConfig(deps.Config)
	if err != nil {
		return nil, err
	}

	return &Store{
		Base:      base,
		config:    cfg,
		dial:      dial,
		logins:    validation.NewLoginValidator(),
		passwords: validation.LoadPasswordPolicy(deps.Config),
	}, nil
}

// Backend returns auth.BackendDirectory.
func (s *Store) Backend() auth.BackendType {
	return auth.BackendDirectory
}

// CreateLogin adds an entry for login with the encrypted password.
func (s *Store) CreateLogin(ctx context.Context, login, password string) error {
	defer s.observe("create", time.Now())

	if s.ReadOnly() {
		return s.fail("create", errors.NewReadOnlyError("create_login"))
	}
	if err := s.logins.ValidateLogin(login); err != nil {
		return s.fail("create", err)
	}
	if err := s.passwords.ValidatePassword(password); err != nil {
		return s.fail("create", err)
	}

	value, err := s.encodePassword(password)
	if err != nil {
		return s.fail("create", err)
	}

	req := ldap.NewAddRequest(s.dn(login), nil)
	req.Attribute("objectClass", s.config.ObjectClasses)
	req.Attribute(s.config.UIDAttribute, []string{login})
	req.Attribute("cn", []string{login})
	req.Attribute("sn", []string{login})
	req.Attribute(passwordAttribute, []string{value})

	err = s.withConn(ctx, func(c Conn) error {
		return c.Add(req)
	})
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultEntryAlreadyExists) {
			return s.fail("create", errors.NewLoginExistsError(login))
		}
		return s.fail("create", fmt.Errorf("failed to add entry: %w", err))
	}

	s.Logger().Info("Directory login created", logger.Field{Key: "login", Value: login})
	s.count("create.success")
	return nil
}

// DeleteLogin removes the entry for login.
func (s *Store) DeleteLogin(ctx context.Context, login string) error {
	defer s.observe("delete", time.Now())

	if s.ReadOnly() {
		return s.fail("delete", errors.NewReadOnlyError("delete_login"))
	}
	if err := s.logins.ValidateLogin(login); err != nil {
		return s.fail("delete", err)
	}

	err := s.withConn(ctx, func(c Conn) error {
		return c.Del(ldap.NewDelRequest(s.dn(login), nil))
	})
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return s.fail("delete", errors.NewLoginNotFoundError(login))
		}
		return s.fail("delete", fmt.Errorf("failed to delete entry: %w", err))
	}

	s.Logger().Info("Directory login deleted", logger.Field{Key: "login", Value: login})
	s.count("delete.success")
	return nil
}

// VerifyLogin checks password by comparing userPassword or, when
// auth.ldap.verify is "bind", by binding as the user.
func (s *Store) VerifyLogin(ctx context.Context, login, password string) (bool, error) {
	defer s.observe("verify", time.Now())

	if err := s.logins.ValidateLogin(login); err != nil || password == "" {
		s.count("verify.failed")
		return false, nil
	}

	var (
		ok  bool
		err error
	)
	if s.config.Verify == VerifyBind {
		ok, err = s.verifyBind(ctx, login, password)
	} else {
		ok, err = s.verifyCompare(ctx, login, password)
	}
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

// UpdatePassword replaces userPassword with password encrypted by the current
// strategy.
func (s *Store) UpdatePassword(ctx context.Context, login, password string) error {
	defer s.observe("update", time.Now())

	if s.ReadOnly() {
		return s.fail("update", errors.NewReadOnlyError("update_password"))
	}
	if err := s.logins.ValidateLogin(login); err != nil {
		return s.fail("update", err)
	}
	if err := s.passwords.ValidatePassword(password); err != nil {
		return s.fail("update", err)
	}

	value, err := s.encodePassword(password)
	if err != nil {
		return s.fail("update", err)
	}

	req := ldap.NewModifyRequest(s.dn(login), nil)
	req.Replace(passwordAttribute, []string{value})

	err = s.withConn(ctx, func(c Conn) error {
		return c.Modify(req)
	})
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return s.fail("update", errors.NewLoginNotFoundError(login))
		}
		return s.fail("update", fmt.Errorf("failed to modify entry: %w", err))
	}

	s.Logger().Info("Directory password updated", logger.Field{Key: "login", Value: login})
	s.count("update.success")
	return nil
}

// LoginExists reports whether an entry exists for login.
func (s *Store) LoginExists(ctx context.Context, login string) (bool, error) {
	if err := s.logins.ValidateLogin(login); err != nil {
		return false, nil
	}

	entry, err := s.findEntry(ctx, login, nil)
	if err != nil {
		return false, s.fail("exists", err)
	}
	return entry != nil, nil
}

// ListLogins returns the uid attribute of every entry under the base DN.
func (s *Store) ListLogins(ctx context.Context) ([]string, error) {
	filter := fmt.Sprintf("(%s=*)", s.config.UIDAttribute)

	var result *ldap.SearchResult
	err := s.withConn(ctx, func(c Conn) error {
		var err error
		result, err = c.Search(s.searchRequest(filter, []string{s.config.UIDAttribute}, 0))
		return err
	})
	if err != nil {
		return nil, s.fail("list", fmt.Errorf("failed to search entries: %w", err))
	}

	logins := make([]string, 0, len(result.Entries))
	for _, entry := range result.Entries {
		if login := entry.GetAttributeValue(s.config.UIDAttribute); login != "" {
			logins = append(logins, login)
		}
	}
	sort.Strings(logins)
	return logins, nil
}

// Close closes the directory connection, if one is open.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	if err != nil {
		return s.fail("close", err)
	}
	return nil
}

func (s *Store) verifyCompare(ctx context.Context, login, password string) (bool, error) {
	entry, err := s.findEntry(ctx, login, []string{passwordAttribute})
	if err != nil || entry == nil {
		return false, err
	}

	scheme, hash := decodePassword(entry.GetAttributeValue(passwordAttribute))
	current := s.Encryption()
	if current == nil || scheme == current.Name() {
		return s.Compare(hash, password)
	}
	return s.Selector().Select(scheme).Compare(hash, password)
}

// verifyBind binds as the user, then restores the connection's identity:
// the service account when one is configured, anonymous otherwise.
func (s *Store) verifyBind(ctx context.Context, login, password string) (bool, error) {
	var ok bool
	err := s.withConn(ctx, func(c Conn) error {
		bindErr := c.Bind(s.dn(login), password)
		if err := s.restoreIdentity(c); err != nil {
			return fmt.Errorf("%w: %v", errIdentityLost, err)
		}

		switch {
		case bindErr == nil:
			ok = true
			return nil
		case ldap.IsErrorWithCode(bindErr, ldap.LDAPResultInvalidCredentials),
			ldap.IsErrorWithCode(bindErr, ldap.LDAPResultNoSuchObject):
			return nil
		default:
			return fmt.Errorf("failed to bind as user: %w", bindErr)
		}
	})
	return ok, err
}

func (s *Store) restoreIdentity(c Conn) error {
	if s.config.BindDN != "" {
		return c.Bind(s.config.BindDN, s.config.BindPassword)
	}
	return c.UnauthenticatedBind("")
}

// findEntry returns the entry for login, or nil if there is none.
func (s *Store) findEntry(ctx context.Context, login string, attrs []string) (*ldap.Entry, error) {
	filter := fmt.Sprintf("(%s=%s)", s.config.UIDAttribute, ldap.EscapeFilter(login))

	var result *ldap.SearchResult
	err := s.withConn(ctx, func(c Conn) error {
		var err error
		result, err = c.Search(s.searchRequest(filter, attrs, 1))
		return err
	})
	if err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to search entry: %w", err)
	}

	if len(result.Entries) == 0 {
		return nil, nil
	}
	return result.Entries[0], nil
}

func (s *Store) searchRequest(filter string, attrs []string, sizeLimit int) *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		s.config.BaseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, sizeLimit, 0, false,
		filter,
		attrs,
		nil,
	)
}

// withConn runs fn on the shared connection, dialing and binding first if
// needed. A connection that fails with a network error is dropped so the
// next call redials.
func (s *Store) withConn(ctx context.Context, fn func(c Conn) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		c, err := s.dial(s.config.URL, s.config.Timeout)
		if err != nil {
			return fmt.Errorf("failed to connect to %s: %w", s.config.URL, err)
		}
		if s.config.BindDN != "" {
			if err := c.Bind(s.config.BindDN, s.config.BindPassword); err != nil {
				c.Close()
				return fmt.Errorf("failed to bind as %s: %w", s.config.BindDN, err)
			}
		}
		s.conn = c
	}

	err := fn(s.conn)
	if ldap.IsErrorWithCode(err, ldap.ErrorNetwork) || stderrors.Is(err, errIdentityLost) {
		s.conn.Close()
		s.conn = nil
	}
	return err
}

func (s *Store) dn(login string) string {
	return fmt.Sprintf("%s=%s,%s", s.config.UIDAttribute, login, s.config.BaseDN)
}

// encodePassword encrypts password with the current strategy and prefixes
// the strategy name.
func (s *Store) encodePassword(password string) (string, error) {
	hash, err := s.Encrypt(password)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeEncryptionFailed, "Failed to encrypt password")
	}
	return "{" + strings.ToUpper(s.Encryption().Name()) + "}" + hash, nil
}

// decodePassword splits a userPassword value into its lowercase scheme and
// hash. Values without a prefix are treated as plain text.
func decodePassword(value string) (scheme, hash string) {
	if strings.HasPrefix(value, "{") {
		if end := strings.IndexByte(value, '}'); end > 0 {
			return strings.ToLower(value[1:end]), value[end+1:]
		}
	}
	return encryption.Plain, value
}

// fail logs err, counts it and records it on the manager's error list.
func (s *Store) fail(operation string, err error) error {
	s.Logger().Error("Directory credential operation failed",
		logger.Field{Key: "operation", Value: operation},
		logger.Field{Key: "url", Value: s.config.URL},
		logger.Field{Key: "error", Value: err.Error()})
	s.count(operation + ".failed")
	return s.Fail(err)
}

func (s *Store) count(name string) {
	s.Metrics().Counter(metrics.Options{
		Name: "directory_store." + name,
	}).Inc()
}

func (s *Store) observe(name string, start time.Time) {
	s.Metrics().Timer(metrics.Options{
		Name: "directory_store." + name,
	}).RecordSince(start)
}

var _ auth.CredentialStore = (*Store)(nil)
