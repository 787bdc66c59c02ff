package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/MichaelAJay/go-auth/auth"
	_ "github.com/MichaelAJay/go-auth/auth/backends/db"
	_ "github.com/MichaelAJay/go-auth/auth/backends/directory"
	"github.com/MichaelAJay/go-auth/auth/encryption"
	"github.com/MichaelAJay/go-auth/internal/testutil"
	"github.com/MichaelAJay/go-encrypter"
	"github.com/MichaelAJay/go-logger"
)

// consoleLogger prints log lines to stdout.
type consoleLogger struct{}

func (consoleLogger) print(level, msg string, fields []logger.Field) {
	var sb strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&sb, " %s=%v", f.Key, f.Value)
	}
	fmt.Printf("  [%s] %s%s\n", level, msg, sb.String())
}

func (l consoleLogger) Debug(msg string, fields ...logger.Field) { l.print("DEBUG", msg, fields) }
func (l consoleLogger) Info(msg string, fields ...logger.Field)  { l.print("INFO", msg, fields) }
func (l consoleLogger) Warn(msg string, fields ...logger.Field)  { l.print("WARN", msg, fields) }
func (l consoleLogger) Error(msg string, fields ...logger.Field) { l.print("ERROR", msg, fields) }
func (l consoleLogger) Fatal(msg string, fields ...logger.Field) {
	l.print("FATAL", msg, fields)
	os.Exit(1)
}
func (l consoleLogger) With(fields ...logger.Field) logger.Logger     { return l }
func (l consoleLogger) WithContext(ctx context.Context) logger.Logger { return l }

func main() {
	fmt.Println("=== go-auth demo ===")
	ctx := context.Background()

	dir, err := os.MkdirTemp("", "go-auth-demo")
	if err != nil {
		log.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	key := []byte("your-32-byte-key-here-for-demo!!") // Exactly 32 bytes
	enc, err := encrypter.NewAESEncrypter(key)
	if err != nil {
		log.Fatalf("Failed to create encrypter: %v", err)
	}

	registry := testutil.NewMockMetrics()
	deps := auth.Dependencies{
		Logger:    consoleLogger{},
		Metrics:   registry,
		Cache:     testutil.NewMockCache(),
		Encrypter: enc,
		Config: testutil.NewMockConfig(map[string]any{
			"auth.encryption": encryption.Bcrypt,
			"auth.db.driver":  "bolt",
			"auth.db.path":    filepath.Join(dir, "auth.db"),
		}),
	}

	fmt.Printf("\nLinked backends: %v\n", auth.Backends())

	fmt.Println("\n=== Unknown backend ===")
	missing := auth.Resolve("mongo", deps)
	fmt.Printf("Error report: %q\n", missing.ErrorReport())

	fmt.Println("\n=== Database backend (bolt) ===")
	store := auth.Resolve("db", deps)
	defer store.Close()
	fmt.Printf("Backend: %s, encryption: %s\n", store.Backend(), store.Encryption().Name())
	fmt.Printf("Available strategies: %v\n", store.(interface{ Selector() *encryption.Selector }).Selector().Names())

	if err := store.CreateLogin(ctx, "jdoe", "SecurePassword123!"); err != nil {
		log.Fatalf("Failed to create login: %v", err)
	}

	ok, err := store.VerifyLogin(ctx, "jdoe", "SecurePassword123!")
	fmt.Printf("Verify correct password: %v (err=%v)\n", ok, err)
	ok, err = store.VerifyLogin(ctx, "jdoe", "WrongPassword")
	fmt.Printf("Verify wrong password: %v (err=%v)\n", ok, err)

	fmt.Println("\n=== Read-only swap ===")
	previous := store.SetReadOnly(true)
	if err := store.CreateLogin(ctx, "asmith", "AnotherPassword1!"); err != nil {
		fmt.Printf("Create refused: %v\n", err)
	}
	store.SetReadOnly(previous)
	fmt.Printf("Error report:\n%s", store.ErrorReport())

	fmt.Println("\n=== Switching to the go-encrypter strategy ===")
	store.SelectEncryption(encryption.AES)
	if err := store.UpdatePassword(ctx, "jdoe", "RotatedPassword456!"); err != nil {
		log.Fatalf("Failed to update password: %v", err)
	}
	ok, _ = store.VerifyLogin(ctx, "jdoe", "RotatedPassword456!")
	fmt.Printf("Verify rotated password: %v\n", ok)

	logins, _ := store.ListLogins(ctx)
	fmt.Printf("Stored logins: %v\n", logins)

	fmt.Printf("\nVerifications succeeded: %.0f, failed: %.0f\n",
		registry.CounterValue("db_store.verify.success"),
		registry.CounterValue("db_store.verify.failed"))
}
