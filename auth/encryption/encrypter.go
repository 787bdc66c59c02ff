package encryption

import (
	"fmt"

	autherrors "github.com/MichaelAJay/go-auth/errors"
	"github.com/MichaelAJay/go-encrypter"
)

// encrypterStrategy delegates to a go-encrypter instance, whose password
// hashing is keyed by the deployment's encryption key.
type encrypterStrategy struct {
	errorLog
	enc encrypter.Encrypter
}

func newEncrypterStrategy(deps Dependencies) (Strategy, error) {
	if deps.Encrypter == nil {
		return nil, autherrors.NewConfigurationError("encrypter", "no encrypter configured")
	}
	return &encrypterStrategy{enc: deps.Encrypter}, nil
}

func (s *encrypterStrategy) Name() string { return AES }

func (s *encrypterStrategy) Encrypt(cleartext string) (string, error) {
	hashed, err := s.enc.HashPassword([]byte(cleartext))
	if err != nil {
		return "", s.record(fmt.Errorf("encrypter: %w: %v", autherrors.ErrEncryptionFailed, err))
	}
	return string(hashed), nil
}

func (s *encrypterStrategy) Compare(encrypted, cleartext string) (bool, error) {
	valid, err := s.enc.VerifyPassword([]byte(encrypted), []byte(cleartext))
	if err != nil {
		return false, s.record(fmt.Errorf("encrypter: %w: %v", autherrors.ErrMalformedHash, err))
	}
	return valid, nil
}
