package encryption

import (
	"fmt"
	"sort"
	"strings"

	autherrors "github.com/MichaelAJay/go-auth/errors"
	"github.com/MichaelAJay/go-config"
	"github.com/MichaelAJay/go-encrypter"
)

// Strategy names registered by NewSelector.
const (
	Plain    = "plain"
	MD5      = "md5"
	SHA256   = "sha256"
	Bcrypt   = "bcrypt"
	Argon2ID = "argon2id"
	AES      = "encrypter"
)

// Dependencies are handed to every strategy factory. Both fields are optional;
// factories fall back to defaults when Config is nil.
type Dependencies struct {
	Config    config.Config
	Encrypter encrypter.Encrypter
}

// Factory builds a fresh strategy instance.
type Factory func(deps Dependencies) (Strategy, error)

// Selector resolves strategy names to fresh Strategy instances.
type Selector struct {
	factories map[string]Factory
	deps      Dependencies
}

// NewSelector creates a Selector with the built-in strategies registered.
func NewSelector(deps Dependencies) *Selector {
	return &Selector{
		factories: map[string]Factory{
			Plain:    newPlainStrategy,
			MD5:      newMD5Strategy,
			SHA256:   newSHA256Strategy,
			Bcrypt:   newBcryptStrategy,
			Argon2ID: newArgon2Strategy,
			AES:      newEncrypterStrategy,
		},
		deps: deps,
	}
}

// Register adds a strategy factory under name. Names are case-insensitive.
func (s *Selector) Register(name string, factory Factory) error {
	if factory == nil {
		return fmt.Errorf("encryption strategy %q: nil factory", name)
	}
	key := strings.ToLower(name)
	if _, exists := s.factories[key]; exists {
		return fmt.Errorf("encryption strategy %q is already registered", name)
	}
	s.factories[key] = factory
	return nil
}

// Select returns a new instance of the named strategy. An unknown name, or a
// factory that fails, yields a stand-in whose ErrorReport explains why and
// whose operations always fail.
func (s *Selector) Select(name string) Strategy {
	factory, ok := s.factories[strings.ToLower(name)]
	if !ok {
		return newUnavailable(name, autherrors.NewStrategyNotFoundError(name))
	}

	strategy, err := factory(s.deps)
	if err != nil {
		return newUnavailable(name, err)
	}
	return strategy
}

// Names returns the registered strategy names in sorted order.
func (s *Selector) Names() []string {
	names := make([]string, 0, len(s.factories))
	for name := range s.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// unavailableStrategy stands in for a strategy that could not be built.
type unavailableStrategy struct {
	errorLog
	name  string
	cause error
}

func newUnavailable(name string, cause error) *unavailableStrategy {
	s := &unavailableStrategy{name: name, cause: cause}
	s.record(cause)
	return s
}

func (s *unavailableStrategy) Name() string { return s.name }

func (s *unavailableStrategy) Encrypt(string) (string, error) {
	return "", s.cause
}

func (s *unavailableStrategy) Compare(string, string) (bool, error) {
	return false, s.cause
}

func intSetting(cfg config.Config, key string, def int) int {
	if cfg == nil {
		return def
	}
	if v, ok := cfg.GetInt(key); ok {
		return v
	}
	return def
}
