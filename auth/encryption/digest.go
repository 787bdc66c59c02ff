package encryption

import (
	"crypto/md5"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"hash"
)

// plainStrategy stores cleartext unchanged. It exists for directories that
// hash userPassword on their side.
type plainStrategy struct {
	errorLog
}

func newPlainStrategy(Dependencies) (Strategy, error) {
	return &plainStrategy{}, nil
}

func (s *plainStrategy) Name() string { return Plain }

func (s *plainStrategy) Encrypt(cleartext string) (string, error) {
	return cleartext, nil
}

func (s *plainStrategy) Compare(encrypted, cleartext string) (bool, error) {
	return subtle.ConstantTimeCompare([]byte(encrypted), []byte(cleartext)) == 1, nil
}

// digestStrategy is an unsalted hex digest, kept for legacy credential tables.
type digestStrategy struct {
	errorLog
	name    string
	newHash func() hash.Hash
}

func newMD5Strategy(Dependencies) (Strategy, error) {
	return &digestStrategy{name: MD5, newHash: md5.New}, nil
}

func newSHA256Strategy(Dependencies) (Strategy, error) {
	return &digestStrategy{name: SHA256, newHash: sha256.New}, nil
}

func (s *digestStrategy) Name() string { return s.name }

func (s *digestStrategy) Encrypt(cleartext string) (string, error) {
	h := s.newHash()
	h.Write([]byte(cleartext))
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (s *digestStrategy) Compare(encrypted, cleartext string) (bool, error) {
	computed, _ := s.Encrypt(cleartext)
	return subtle.ConstantTimeCompare([]byte(encrypted), []byte(computed)) == 1, nil
}
