package db

import (
	"context"
	"os"
	"reflect"
	"testing"

	"github.com/MichaelAJay/go-auth/auth"
	"github.com/MichaelAJay/go-auth/auth/encryption"
	"github.com/MichaelAJay/go-auth/errors"
	"github.com/MichaelAJay/go-auth/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// newPostgresStore connects to TEST_DATABASE_URL, resets the schema and
// returns a migrated store. The test is skipped when no database is
// configured.
func newPostgresStore(t *testing.T) *Store {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to create test database pool: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("Failed to ping test database: %v", err)
	}
	if err := ResetDatabase(ctx, pool); err != nil {
		t.Fatalf("Failed to reset test database: %v", err)
	}

	deps := auth.Dependencies{
		Logger:  &testutil.MockLogger{},
		Metrics: testutil.NewMockMetrics(),
		Config: testutil.NewMockConfig(map[string]any{
			"auth.db.dsn":                 dbURL,
			"auth.encryption.bcrypt_cost": 4,
		}),
	}
	base := auth.NewBase(deps)
	base.SelectEncryption(encryption.Bcrypt)

	store, err := New(base, deps)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	// Applying twice is a no-op.
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("Failed to rerun migrations: %v", err)
	}

	return store
}

func TestPostgresStore_Integration(t *testing.T) {
	store := newPostgresStore(t)
	ctx := context.Background()

	t.Run("CreateAndVerify", func(t *testing.T) {
		if err := store.CreateLogin(ctx, "jdoe", "secret"); err != nil {
			t.Fatalf("CreateLogin failed: %v", err)
		}

		if ok, err := store.VerifyLogin(ctx, "jdoe", "secret"); err != nil || !ok {
			t.Errorf("Expected verification to succeed, got %v, %v", ok, err)
		}
		if ok, err := store.VerifyLogin(ctx, "jdoe", "wrong"); err != nil || ok {
			t.Errorf("Expected verification to fail, got %v, %v", ok, err)
		}
	})

	t.Run("DuplicateLogin", func(t *testing.T) {
		err := store.CreateLogin(ctx, "jdoe", "other")
		if !errors.IsErrorType(err, errors.ErrLoginExists) {
			t.Errorf("Expected ErrLoginExists, got %v", err)
		}
	})

	t.Run("UpdatePassword", func(t *testing.T) {
		if err := store.UpdatePassword(ctx, "jdoe", "changed"); err != nil {
			t.Fatalf("UpdatePassword failed: %v", err)
		}
		if ok, _ := store.VerifyLogin(ctx, "jdoe", "changed"); !ok {
			t.Error("Expected new password to verify")
		}

		err := store.UpdatePassword(ctx, "nobody", "changed")
		if !errors.IsErrorType(err, errors.ErrLoginNotFound) {
			t.Errorf("Expected ErrLoginNotFound, got %v", err)
		}
	})

	t.Run("ListLogins", func(t *testing.T) {
		if err := store.CreateLogin(ctx, "asmith", "secret"); err != nil {
			t.Fatalf("CreateLogin failed: %v", err)
		}

		logins, err := store.ListLogins(ctx)
		if err != nil {
			t.Fatalf("ListLogins failed: %v", err)
		}
		expected := []string{"asmith", "jdoe"}
		if !reflect.DeepEqual(logins, expected) {
			t.Errorf("Expected %v, got %v", expected, logins)
		}
	})

	t.Run("DeleteLogin", func(t *testing.T) {
		if err := store.DeleteLogin(ctx, "jdoe"); err != nil {
			t.Fatalf("DeleteLogin failed: %v", err)
		}
		if exists, _ := store.LoginExists(ctx, "jdoe"); exists {
			t.Error("Expected login to be deleted")
		}

		err := store.DeleteLogin(ctx, "jdoe")
		if !errors.IsErrorType(err, errors.ErrLoginNotFound) {
			t.Errorf("Expected ErrLoginNotFound, got %v", err)
		}
	})
}
