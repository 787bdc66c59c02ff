package encryption

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	autherrors "github.com/MichaelAJay/go-auth/errors"
	"golang.org/x/crypto/argon2"
)

// Default Argon2id parameters
const (
	DefaultArgonTime    = 3         // iterations
	DefaultArgonMemory  = 64 * 1024 // KiB
	DefaultArgonThreads = 4
	argonSaltLen        = 16
	argonKeyLen         = 32
)

// Limits on parameters read back from a stored hash.
const (
	maxArgonTime    = 64
	maxArgonMemory  = 1024 * 1024 // KiB
	minArgonKeyLen  = 16
	maxArgonKeyLen  = 64
	minArgonSaltLen = 8
)

// argon2Strategy produces PHC-format argon2id hashes:
// $argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
type argon2Strategy struct {
	errorLog
	time    uint32
	memory  uint32
	threads uint8
}

func newArgon2Strategy(deps Dependencies) (Strategy, error) {
	t := intSetting(deps.Config, "auth.encryption.argon2_time", DefaultArgonTime)
	m := intSetting(deps.Config, "auth.encryption.argon2_memory", DefaultArgonMemory)
	p := intSetting(deps.Config, "auth.encryption.argon2_threads", DefaultArgonThreads)
	if t <= 0 || m <= 0 || p <= 0 || p > 255 {
		return nil, autherrors.NewConfigurationError("auth.encryption.argon2", "parameters must be positive")
	}
	if t > maxArgonTime || m > maxArgonMemory {
		return nil, autherrors.NewConfigurationError("auth.encryption.argon2", "parameters exceed the supported maximum")
	}
	return &argon2Strategy{time: uint32(t), memory: uint32(m), threads: uint8(p)}, nil
}

func (s *argon2Strategy) Name() string { return Argon2ID }

func (s *argon2Strategy) Encrypt(cleartext string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", s.record(fmt.Errorf("argon2id: %w: salt generation: %v", autherrors.ErrEncryptionFailed, err))
	}

	key := argon2.IDKey([]byte(cleartext), salt, s.time, s.memory, s.threads, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, s.memory, s.time, s.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

func (s *argon2Strategy) Compare(encrypted, cleartext string) (bool, error) {
	parts := strings.Split(encrypted, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, s.record(fmt.Errorf("argon2id: %w", autherrors.ErrMalformedHash))
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, s.record(fmt.Errorf("argon2id: %w: unsupported version %q", autherrors.ErrMalformedHash, parts[2]))
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, s.record(fmt.Errorf("argon2id: %w: parameters: %v", autherrors.ErrMalformedHash, err))
	}
	if time < 1 || time > maxArgonTime || threads < 1 || memory < 1 || memory > maxArgonMemory {
		return false, s.record(fmt.Errorf("argon2id: %w: parameters out of range: %s", autherrors.ErrMalformedHash, parts[3]))
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) < minArgonSaltLen {
		return false, s.record(fmt.Errorf("argon2id: %w: salt", autherrors.ErrMalformedHash))
	}
	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(expected) < minArgonKeyLen || len(expected) > maxArgonKeyLen {
		return false, s.record(fmt.Errorf("argon2id: %w: hash", autherrors.ErrMalformedHash))
	}

	computed := argon2.IDKey([]byte(cleartext), salt, time, memory, threads, uint32(len(expected)))
	return subtle.ConstantTimeCompare(computed, expected) == 1, nil
}
