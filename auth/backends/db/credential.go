package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Credential is one row of the credential table.
type Credential struct {
	ID           string    `json:"id" cbor:"1,keyasint"`
	Login        string    `json:"login" cbor:"2,keyasint"`
	PasswordHash string    `json:"password_hash" cbor:"3,keyasint"`
	Scheme       string    `json:"scheme" cbor:"4,keyasint"`
	CreatedAt    time.Time `json:"created_at" cbor:"5,keyasint"`
	UpdatedAt    time.Time `json:"updated_at" cbor:"6,keyasint"`
}

// NewCredential creates a credential with a fresh ID. scheme is the name of
// the encryption strategy that produced hash.
func NewCredential(login, hash, scheme string) *Credential {
	now := time.Now().UTC()
	return &Credential{
		ID:           uuid.NewString(),
		Login:        login,
		PasswordHash: hash,
		Scheme:       scheme,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// credentialTable is the storage a driver provides. Implementations return
// errors wrapping ErrLoginNotFound and ErrLoginExists from the errors package.
type credentialTable interface {
	Insert(ctx context.Context, cred *Credential) error
	Get(ctx context.Context, login string) (*Credential, error)
	UpdateHash(ctx context.Context, login, hash, scheme string, updatedAt time.Time) error
	Delete(ctx context.Context, login string) error
	List(ctx context.Context) ([]string, error)
	Migrate(ctx context.Context) error
	Close() error
}
