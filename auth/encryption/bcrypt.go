package encryption

import (
	"errors"
	"fmt"

	autherrors "github.com/MichaelAJay/go-auth/errors"
	"golang.org/x/crypto/bcrypt"
)

type bcryptStrategy struct {
	errorLog
	cost int
}

func newBcryptStrategy(deps Dependencies) (Strategy, error) {
	cost := intSetting(deps.Config, "auth.encryption.bcrypt_cost", bcrypt.DefaultCost)
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, autherrors.NewConfigurationError("auth.encryption.bcrypt_cost",
			fmt.Sprintf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	return &bcryptStrategy{cost: cost}, nil
}

func (s *bcryptStrategy) Name() string { return Bcrypt }

func (s *bcryptStrategy) Encrypt(cleartext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(cleartext), s.cost)
	if err != nil {
		return "", s.record(fmt.Errorf("bcrypt: %w: %v", autherrors.ErrEncryptionFailed, err))
	}
	return string(hash), nil
}

func (s *bcryptStrategy) Compare(encrypted, cleartext string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(encrypted), []byte(cleartext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, s.record(fmt.Errorf("bcrypt: %w: %v", autherrors.ErrMalformedHash, err))
	}
}
