package auth

import (
	"github.com/MichaelAJay/go-auth/auth/encryption"
	"github.com/MichaelAJay/go-cache"
	"github.com/MichaelAJay/go-config"
	"github.com/MichaelAJay/go-encrypter"
	"github.com/MichaelAJay/go-logger"
	"github.com/MichaelAJay/go-metrics"
)

// Dependencies are injected into every manager and backend. Logger and
// Metrics are required; Config, Cache and Encrypter are optional.
type Dependencies struct {
	Logger    logger.Logger
	Metrics   metrics.Registry
	Config    config.Config
	Cache     cache.Cache
	Encrypter encrypter.Encrypter
}

// Settings contains the manager-level configuration.
type Settings struct {
	// Encryption is the strategy Resolve selects on every store it returns.
	Encryption string `json:"encryption" default:"bcrypt"`

	// ReadOnly is the initial value of the read-only flag.
	ReadOnly bool `json:"read_only" default:"false"`
}

// loadSettings loads manager settings with defaults.
func loadSettings(cfg config.Config) *Settings {
	settings := &Settings{
		Encryption: encryption.Bcrypt,
	}

	if cfg == nil {
		return settings
	}
	if name, ok := cfg.GetString("auth.encryption"); ok && name != "" {
		settings.Encryption = name
	}
	if readOnly, ok := cfg.GetBool("auth.read_only"); ok {
		settings.ReadOnly = readOnly
	}

	return settings
}
