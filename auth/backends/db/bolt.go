package db

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	autherrors "github.com/MichaelAJay/go-auth/errors"
	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"
)

var bucketCredentials = []byte("credentials")

// boltFiles holds one *bbolt.DB per file for the whole process. bbolt locks
// the file exclusively, so stores on the same path must share the handle.
var boltFiles = newHandleRegistry(func(db *bbolt.DB) error {
	return db.Close()
})

// boltTable stores CBOR-encoded credentials in a bbolt file keyed by login.
// The file is opened on first use and may be reopened after Close.
type boltTable struct {
	path string

	mu sync.Mutex
	db *bbolt.DB
}

func newBoltTable(path string) (*boltTable, error) {
	if path == "" {
		return nil, autherrors.NewConfigurationError("auth.db.path", "required for the bolt driver")
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return &boltTable{path: path}, nil
}

func (t *boltTable) open() (*bbolt.DB, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db != nil {
		return t.db, nil
	}

	db, err := boltFiles.acquire(t.path, func() (*bbolt.DB, error) {
		return openBoltFile(t.path)
	})
	if err != nil {
		return nil, err
	}

	t.db = db
	return db, nil
}

func openBoltFile(path string) (*bbolt.DB, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCredentials)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create buckets: %w", err)
	}

	return db, nil
}

func (t *boltTable) update(ctx context.Context, fn func(b *bbolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := t.open()
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		return fn(tx.Bucket(bucketCredentials))
	})
}

func (t *boltTable) view(ctx context.Context, fn func(b *bbolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db, err := t.open()
	if err != nil {
		return err
	}
	return db.View(func(tx *bbolt.Tx) error {
		return fn(tx.Bucket(bucketCredentials))
	})
}

func (t *boltTable) Insert(ctx context.Context, cred *Credential) error {
	return t.update(ctx, func(b *bbolt.Bucket) error {
		key := []byte(cred.Login)
		if b.Get(key) != nil {
			return autherrors.NewLoginExistsError(cred.Login)
		}
		data, err := cbor.Marshal(cred)
		if err != nil {
			return fmt.Errorf("marshal credential: %w", err)
		}
		return b.Put(key, data)
	})
}

func (t *boltTable) Get(ctx context.Context, login string) (*Credential, error) {
	var cred Credential
	err := t.view(ctx, func(b *bbolt.Bucket) error {
		data := b.Get([]byte(login))
		if data == nil {
			return autherrors.NewLoginNotFoundError(login)
		}
		if err := cbor.Unmarshal(data, &cred); err != nil {
			return fmt.Errorf("unmarshal credential: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (t *boltTable) UpdateHash(ctx context.Context, login, hash, scheme string, updatedAt time.Time) error {
	return t.update(ctx, func(b *bbolt.Bucket) error {
		key := []byte(login)
		data := b.Get(key)
		if data == nil {
			return autherrors.NewLoginNotFoundError(login)
		}

		var cred Credential
		if err := cbor.Unmarshal(data, &cred); err != nil {
			return fmt.Errorf("unmarshal credential: %w", err)
		}
		cred.PasswordHash = hash
		cred.Scheme = scheme
		cred.UpdatedAt = updatedAt

		data, err := cbor.Marshal(&cred)
		if err != nil {
			return fmt.Errorf("marshal credential: %w", err)
		}
		return b.Put(key, data)
	})
}

func (t *boltTable) Delete(ctx context.Context, login string) error {
	return t.update(ctx, func(b *bbolt.Bucket) error {
		key := []byte(login)
		if b.Get(key) == nil {
			return autherrors.NewLoginNotFoundError(login)
		}
		return b.Delete(key)
	})
}

// List returns logins in key order, which bbolt keeps sorted.
func (t *boltTable) List(ctx context.Context) ([]string, error) {
	var logins []string
	err := t.view(ctx, func(b *bbolt.Bucket) error {
		return b.ForEach(func(k, _ []byte) error {
			logins = append(logins, string(k))
			return nil
		})
	})
	return logins, err
}

// Migrate opens the file, which creates the bucket.
func (t *boltTable) Migrate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := t.open()
	return err
}

// Close releases this table's reference to the file. The file is closed
// when no store references it.
func (t *boltTable) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.db == nil {
		return nil
	}
	t.db = nil
	return boltFiles.release(t.path)
}
