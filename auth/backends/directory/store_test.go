package directory

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/MichaelAJay/go-auth/auth"
	"github.com/MichaelAJay/go-auth/auth/encryption"
	"github.com/MichaelAJay/go-auth/errors"
	"github.com/MichaelAJay/go-auth/internal/testutil"
	"github.com/go-ldap/ldap/v3"
)

const (
	testBaseDN       = "ou=people,dc=example,dc=com"
	testBindDN       = "cn=admin,dc=example,dc=com"
	testBindPassword = "admin-secret"
)

// fakeDirectory is an in-memory directory shared by the connections it
// dials.
type fakeDirectory struct {
	entries map[string]map[string][]string
	dials   int
	binds   []string
	dialErr error
	// anonymousErr fails UnauthenticatedBind.
	anonymousErr error
	// failNext makes the next operation fail with a network error.
	failNext bool
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{entries: make(map[string]map[string][]string)}
}

func (d *fakeDirectory) dial(url string, timeout time.Duration) (Conn, error) {
	if d.dialErr != nil {
		return nil, d.dialErr
	}
	d.dials++
	return &fakeConn{dir: d}, nil
}

type fakeConn struct {
	dir    *fakeDirectory
	closed bool
	// identity is the DN the connection is bound as; empty is anonymous.
	identity string
}

// writable refuses writes from a connection bound as an end user.
func (c *fakeConn) writable() error {
	if c.identity != "" && c.identity != testBindDN {
		return ldap.NewError(ldap.LDAPResultInsufficientAccessRights, fmt.Errorf("%s may not write", c.identity))
	}
	return nil
}

func (c *fakeConn) networkFailure() error {
	if c.dir.failNext {
		c.dir.failNext = false
		return ldap.NewError(ldap.ErrorNetwork, fmt.Errorf("connection reset"))
	}
	return nil
}

func (c *fakeConn) Bind(username, password string) error {
	c.dir.binds = append(c.dir.binds, username)
	c.identity = ""
	if username == testBindDN {
		if password != testBindPassword {
			return ldap.NewError(ldap.LDAPResultInvalidCredentials, fmt.Errorf("invalid credentials"))
		}
		c.identity = username
		return nil
	}

	entry, ok := c.dir.entries[username]
	if !ok {
		return ldap.NewError(ldap.LDAPResultInvalidCredentials, fmt.Errorf("invalid credentials"))
	}
	scheme, hash := decodePassword(entry[passwordAttribute][0])
	if scheme != encryption.Plain || hash != password {
		return ldap.NewError(ldap.LDAPResultInvalidCredentials, fmt.Errorf("invalid credentials"))
	}
	c.identity = username
	return nil
}

func (c *fakeConn) UnauthenticatedBind(username string) error {
	c.dir.binds = append(c.dir.binds, username)
	if c.dir.anonymousErr != nil {
		return c.dir.anonymousErr
	}
	c.identity = ""
	return nil
}

func (c *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	if err := c.networkFailure(); err != nil {
		return nil, err
	}

	filter := strings.TrimSuffix(strings.TrimPrefix(req.Filter, "("), ")")
	attr, value, _ := strings.Cut(filter, "=")

	result := &ldap.SearchResult{}
	for dn, attrs := range c.dir.entries {
		if !strings.HasSuffix(dn, ","+req.BaseDN) {
			continue
		}
		vals, ok := attrs[attr]
		if !ok || (value != "*" && vals[0] != value) {
			continue
		}

		selected := make(map[string][]string)
		for _, name := range req.Attributes {
			if v, ok := attrs[name]; ok {
				selected[name] = v
			}
		}
		result.Entries = append(result.Entries, ldap.NewEntry(dn, selected))
		if req.SizeLimit > 0 && len(result.Entries) >= req.SizeLimit {
			break
		}
	}
	return result, nil
}

func (c *fakeConn) Add(req *ldap.AddRequest) error {
	if err := c.networkFailure(); err != nil {
		return err
	}
	if err := c.writable(); err != nil {
		return err
	}
	if _, exists := c.dir.entries[req.DN]; exists {
		return ldap.NewError(ldap.LDAPResultEntryAlreadyExists, fmt.Errorf("entry exists"))
	}

	attrs := make(map[string][]string)
	for _, a := range req.Attributes {
		attrs[a.Type] = a.Vals
	}
	c.dir.entries[req.DN] = attrs
	return nil
}

func (c *fakeConn) Del(req *ldap.DelRequest) error {
	if err := c.writable(); err != nil {
		return err
	}
	if _, exists := c.dir.entries[req.DN]; !exists {
		return ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("no such object"))
	}
	delete(c.dir.entries, req.DN)
	return nil
}

func (c *fakeConn) Modify(req *ldap.ModifyRequest) error {
	if err := c.writable(); err != nil {
		return err
	}
	entry, exists := c.dir.entries[req.DN]
	if !exists {
		return ldap.NewError(ldap.LDAPResultNoSuchObject, fmt.Errorf("no such object"))
	}
	for _, change := range req.Changes {
		entry[change.Modification.Type] = change.Modification.Vals
	}
	return nil
}

func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

type storeFixture struct {
	store   *Store
	dir     *fakeDirectory
	log     *testutil.MockLogger
	metrics *testutil.MockMetrics
}

func newStoreFixture(t *testing.T, strategy string, extra map[string]any) *storeFixture {
	t.Helper()

	values := map[string]any{
		"auth.ldap.url":               "ldap://ldap.example.com:389",
		"auth.ldap.base_dn":           testBaseDN,
		"auth.ldap.bind_dn":           testBindDN,
		"auth.ldap.bind_password":     testBindPassword,
		"auth.encryption.bcrypt_cost": 4,
	}
	for k, v := range extra {
		values[k] = v
	}

	f := &storeFixture{
		dir:     newFakeDirectory(),
		log:     &testutil.MockLogger{},
		metrics: testutil.NewMockMetrics(),
	}
	deps := auth.Dependencies{
		Logger:  f.log,
		Metrics: f.metrics,
		Config:  testutil.NewMockConfig(values),
	}

	base := auth.NewBase(deps)
	base.SelectEncryption(strategy)

	store, err := New(base, deps, f.dir.dial)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	f.store = store
	return f
}

func TestStore_CreateLogin(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t, encryption.SHA256, nil)

	if err := f.store.CreateLogin(ctx, "jdoe", "secret"); err != nil {
		t.Fatalf("CreateLogin failed: %v", err)
	}

	entry, ok := f.dir.entries["uid=jdoe,"+testBaseDN]
	if !ok {
		t.Fatalf("Expected entry to be added, got %v", f.dir.entries)
	}
	if got := entry[passwordAttribute][0]; got != "{SHA256}2bb80d537b1da3e38bd30361aa855686bde0eacd7162fef6a25fe97bf527a25b" {
		t.Errorf("Unexpected userPassword %s", got)
	}
	if !reflect.DeepEqual(entry["objectClass"], defaultObjectClasses()) {
		t.Errorf("Unexpected objectClass %v", entry["objectClass"])
	}
	if entry["uid"][0] != "jdoe" {
		t.Errorf("Expected uid jdoe, got %v", entry["uid"])
	}

	if len(f.dir.binds) != 1 || f.dir.binds[0] != testBindDN {
		t.Errorf("Expected a single service bind, got %v", f.dir.binds)
	}
	if v := f.metrics.CounterValue("directory_store.create.success"); v != 1 {
		t.Errorf("Expected create success counter 1, got %v", v)
	}
}

func TestStore_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t, encryption.SHA256, nil)

	if err := f.store.CreateLogin(ctx, "jdoe", "secret"); err != nil {
		t.Fatalf("CreateLogin failed: %v", err)
	}

	err := f.store.CreateLogin(ctx, "jdoe", "secret")
	if !errors.IsErrorType(err, errors.ErrLoginExists) {
		t.Fatalf("Expected ErrLoginExists, got %v", err)
	}
	if report := f.store.ErrorReport(); !strings.Contains(report, "Login already exists") {
		t.Errorf("Expected failure on the report, got %q", report)
	}
}

func TestStore_VerifyCompare(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t, encryption.Bcrypt, nil)

	if err := f.store.CreateLogin(ctx, "jdoe", "secret"); err != nil {
		t.Fatalf("CreateLogin failed: %v", err)
	}

	tests := []struct {
		name     string
		login    string
		password string
		expected bool
	}{
		{name: "correct password", login: "jdoe", password: "secret", expected: true},
		{name: "wrong password", login: "jdoe", password: "wrong", expected: false},
		{name: "unknown login", login: "nobody", password: "secret", expected: false},
		{name: "filter injection", login: "*", password: "secret", expected: false},
		{name: "empty password", login: "jdoe", password: "", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := f.store.VerifyLogin(ctx, tt.login, tt.password)
			if err != nil {
				t.Fatalf("VerifyLogin failed: %v", err)
			}
			if ok != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, ok)
			}
		})
	}
}

func TestStore_VerifyAcrossSchemes(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t, encryption.MD5, nil)

	if err := f.store.CreateLogin(ctx, "jdoe", "secret"); err != nil {
		t.Fatalf("CreateLogin failed: %v", err)
	}
	f.store.SelectEncryption(encryption.SHA256)

	if ok, err := f.store.VerifyLogin(ctx, "jdoe", "secret"); err != nil || !ok {
		t.Errorf("Expected md5 entry to verify under sha256, got %v, %v", ok, err)
	}
}

func TestStore_VerifyBind(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t, encryption.Plain, map[string]any{"auth.ldap.verify": VerifyBind})

	if err := f.store.CreateLogin(ctx, "jdoe", "secret"); err != nil {
		t.Fatalf("CreateLogin failed: %v", err)
	}

	if ok, err := f.store.VerifyLogin(ctx, "jdoe", "secret"); err != nil || !ok {
		t.Errorf("Expected bind to succeed, got %v, %v", ok, err)
	}
	if ok, err := f.store.VerifyLogin(ctx, "jdoe", "wrong"); err != nil || ok {
		t.Errorf("Expected bind to fail, got %v, %v", ok, err)
	}

	last := f.dir.binds[len(f.dir.binds)-1]
	if last != testBindDN {
		t.Errorf("Expected service identity to be restored, last bind was %s", last)
	}
}

func TestStore_VerifyBindWithoutServiceAccount(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t, encryption.Plain, map[string]any{
		"auth.ldap.verify":        VerifyBind,
		"auth.ldap.bind_dn":       "",
		"auth.ldap.bind_password": "",
	})

	if err := f.store.CreateLogin(ctx, "jdoe", "secret"); err != nil {
		t.Fatalf("CreateLogin failed: %v", err)
	}
	if ok, err := f.store.VerifyLogin(ctx, "jdoe", "secret"); err != nil || !ok {
		t.Fatalf("Expected bind to succeed, got %v, %v", ok, err)
	}

	userDN := "uid=jdoe," + testBaseDN
	expected := []string{userDN, ""}
	if !reflect.DeepEqual(f.dir.binds, expected) {
		t.Errorf("Expected binds %q, got %q", expected, f.dir.binds)
	}

	// The connection is anonymous again, so writes are not made as jdoe.
	if err := f.store.CreateLogin(ctx, "asmith", "secret"); err != nil {
		t.Errorf("Expected CreateLogin after verification to succeed, got %v", err)
	}
	if err := f.store.UpdatePassword(ctx, "jdoe", "changed"); err != nil {
		t.Errorf("Expected UpdatePassword after verification to succeed, got %v", err)
	}
	if f.dir.dials != 1 {
		t.Errorf("Expected the connection to be reused, got %d dials", f.dir.dials)
	}
}

func TestStore_VerifyBindDropsConnectionWhenIdentityIsLost(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t, encryption.Plain, map[string]any{
		"auth.ldap.verify":        VerifyBind,
		"auth.ldap.bind_dn":       "",
		"auth.ldap.bind_password": "",
	})

	if err := f.store.CreateLogin(ctx, "jdoe", "secret"); err != nil {
		t.Fatalf("CreateLogin failed: %v", err)
	}

	f.dir.anonymousErr = ldap.NewError(ldap.LDAPResultUnwillingToPerform, fmt.Errorf("anonymous bind disabled"))
	if _, err := f.store.VerifyLogin(ctx, "jdoe", "secret"); err == nil {
		t.Fatal("Expected an error when the identity cannot be restored")
	}
	f.dir.anonymousErr = nil

	if err := f.store.CreateLogin(ctx, "asmith", "secret"); err != nil {
		t.Errorf("Expected CreateLogin on a fresh connection to succeed, got %v", err)
	}
	if f.dir.dials != 2 {
		t.Errorf("Expected a redial after the identity was lost, got %d dials", f.dir.dials)
	}
}

func TestStore_UpdatePassword(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t, encryption.SHA256, nil)

	if err := f.store.CreateLogin(ctx, "jdoe", "secret"); err != nil {
		t.Fatalf("CreateLogin failed: %v", err)
	}
	if err := f.store.UpdatePassword(ctx, "jdoe", "changed"); err != nil {
		t.Fatalf("UpdatePassword failed: %v", err)
	}

	if ok, _ := f.store.VerifyLogin(ctx, "jdoe", "changed"); !ok {
		t.Error("Expected new password to verify")
	}
	if ok, _ := f.store.VerifyLogin(ctx, "jdoe", "secret"); ok {
		t.Error("Expected old password to be rejected")
	}

	err := f.store.UpdatePassword(ctx, "nobody", "changed")
	if !errors.IsErrorType(err, errors.ErrLoginNotFound) {
		t.Errorf("Expected ErrLoginNotFound, got %v", err)
	}
}

func TestStore_DeleteLogin(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t, encryption.SHA256, nil)

	if err := f.store.CreateLogin(ctx, "jdoe", "secret"); err != nil {
		t.Fatalf("CreateLogin failed: %v", err)
	}
	if err := f.store.DeleteLogin(ctx, "jdoe"); err != nil {
		t.Fatalf("DeleteLogin failed: %v", err)
	}
	if exists, err := f.store.LoginExists(ctx, "jdoe"); err != nil || exists {
		t.Errorf("Expected login to be gone, got %v, %v", exists, err)
	}

	err := f.store.DeleteLogin(ctx, "jdoe")
	if !errors.IsErrorType(err, errors.ErrLoginNotFound) {
		t.Errorf("Expected ErrLoginNotFound, got %v", err)
	}
}

func TestStore_ReadOnly(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t, encryption.SHA256, map[string]any{"auth.read_only": true})

	if !f.store.ReadOnly() {
		t.Fatal("Expected store to start read-only")
	}

	if err := f.store.CreateLogin(ctx, "jdoe", "secret"); !errors.IsErrorType(err, errors.ErrReadOnly) {
		t.Errorf("CreateLogin: expected ErrReadOnly, got %v", err)
	}
	if err := f.store.UpdatePassword(ctx, "jdoe", "secret"); !errors.IsErrorType(err, errors.ErrReadOnly) {
		t.Errorf("UpdatePassword: expected ErrReadOnly, got %v", err)
	}
	if err := f.store.DeleteLogin(ctx, "jdoe"); !errors.IsErrorType(err, errors.ErrReadOnly) {
		t.Errorf("DeleteLogin: expected ErrReadOnly, got %v", err)
	}
	if f.dir.dials != 0 {
		t.Errorf("Expected refused operations not to dial, got %d dials", f.dir.dials)
	}
}

func TestStore_ListLogins(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t, encryption.SHA256, nil)

	for _, login := range []string{"carol", "alice", "bob"} {
		if err := f.store.CreateLogin(ctx, login, "secret"); err != nil {
			t.Fatalf("CreateLogin(%s) failed: %v", login, err)
		}
	}
	f.dir.entries["uid=other,ou=groups,dc=example,dc=com"] = map[string][]string{"uid": {"other"}}

	logins, err := f.store.ListLogins(ctx)
	if err != nil {
		t.Fatalf("ListLogins failed: %v", err)
	}

	expected := []string{"alice", "bob", "carol"}
	if !reflect.DeepEqual(logins, expected) {
		t.Errorf("Expected %v, got %v", expected, logins)
	}
}

func TestStore_ConnectionReuseAndRedial(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t, encryption.SHA256, nil)

	f.store.CreateLogin(ctx, "jdoe", "secret")
	f.store.LoginExists(ctx, "jdoe")
	if f.dir.dials != 1 {
		t.Fatalf("Expected one connection to be reused, got %d dials", f.dir.dials)
	}

	f.dir.failNext = true
	if _, err := f.store.LoginExists(ctx, "jdoe"); err == nil {
		t.Fatal("Expected network failure to surface")
	}

	if exists, err := f.store.LoginExists(ctx, "jdoe"); err != nil || !exists {
		t.Errorf("Expected redial to recover, got %v, %v", exists, err)
	}
	if f.dir.dials != 2 {
		t.Errorf("Expected a redial after the network failure, got %d dials", f.dir.dials)
	}
}

func TestStore_DialFailure(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t, encryption.SHA256, nil)
	f.dir.dialErr = fmt.Errorf("connection refused")

	err := f.store.CreateLogin(ctx, "jdoe", "secret")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Fatalf("Expected dial error, got %v", err)
	}
	if len(f.store.Errors()) != 1 {
		t.Errorf("Expected the failure to be recorded, got %v", f.store.Errors())
	}
	if f.log.Count("ERROR") != 1 {
		t.Errorf("Expected 1 error log, got %d", f.log.Count("ERROR"))
	}
}

func TestStore_ServiceBindFailure(t *testing.T) {
	ctx := context.Background()
	f := newStoreFixture(t, encryption.SHA256, map[string]any{"auth.ldap.bind_password": "wrong"})

	if err := f.store.CreateLogin(ctx, "jdoe", "secret"); err == nil {
		t.Fatal("Expected service bind failure")
	}
	if len(f.dir.entries) != 0 {
		t.Error("Expected nothing to be written")
	}
}

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name      string
		values    map[string]any
		expectErr bool
	}{
		{name: "missing url", values: map[string]any{"auth.ldap.base_dn": testBaseDN}, expectErr: true},
		{name: "missing base dn", values: map[string]any{"auth.ldap.url": "ldap://localhost"}, expectErr: true},
		{name: "bad verify mode", values: map[string]any{
			"auth.ldap.url":     "ldap://localhost",
			"auth.ldap.base_dn": testBaseDN,
			"auth.ldap.verify":  "guess",
		}, expectErr: true},
		{name: "minimal", values: map[string]any{
			"auth.ldap.url":     "ldap://localhost",
			"auth.ldap.base_dn": testBaseDN,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := loadConfig(testutil.NewMockConfig(tt.values))
			if tt.expectErr {
				if code := errors.GetErrorCode(err); code != errors.CodeConfigurationError {
					t.Errorf("Expected configuration error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if cfg.UIDAttribute != "uid" || cfg.Verify != VerifyCompare || cfg.Timeout != 5*time.Second {
				t.Errorf("Unexpected defaults %+v", cfg)
			}
		})
	}
}

func TestDecodePassword(t *testing.T) {
	tests := []struct {
		value  string
		scheme string
		hash   string
	}{
		{value: "{BCRYPT}$2a$04$abc", scheme: "bcrypt", hash: "$2a$04$abc"},
		{value: "{SHA256}abcd", scheme: "sha256", hash: "abcd"},
		{value: "cleartext", scheme: encryption.Plain, hash: "cleartext"},
		{value: "{broken", scheme: encryption.Plain, hash: "{broken"},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			scheme, hash := decodePassword(tt.value)
			if scheme != tt.scheme || hash != tt.hash {
				t.Errorf("Expected (%s, %s), got (%s, %s)", tt.scheme, tt.hash, scheme, hash)
			}
		})
	}
}
