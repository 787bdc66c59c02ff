package db

import (
	"time"

	"github.com/MichaelAJay/go-config"
)

// Supported values of auth.db.driver.
const (
	DriverPostgres = "postgres"
	DriverBolt     = "bolt"
)

// Config contains configuration for the database backend.
type Config struct {
	Driver   string        `json:"driver" default:"postgres"`
	DSN      string        `json:"dsn"`
	MaxConns int           `json:"max_conns" default:"0"`
	Path     string        `json:"path"`
	CacheTTL time.Duration `json:"cache_ttl" default:"5m"`
}

// loadConfig loads backend configuration with defaults.
func loadConfig(cfg config.Config) *Config {
	c := &Config{
		Driver:   DriverPostgres,
		CacheTTL: 5 * time.Minute,
	}

	if cfg == nil {
		return c
	}

	if driver, ok := cfg.GetString("auth.db.driver"); ok && driver != "" {
		c.Driver = driver
	}
	if dsn, ok := cfg.GetString("auth.db.dsn"); ok {
		c.DSN = dsn
	}
	if maxConns, ok := cfg.GetInt("auth.db.max_conns"); ok {
		c.MaxConns = maxConns
	}
	if path, ok := cfg.GetString("auth.db.path"); ok {
		c.Path = path
	}
	if ttl, ok := cfg.GetString("auth.db.cache_ttl"); ok {
		if d, err := time.ParseDuration(ttl); err == nil {
			c.CacheTTL = d
		}
	}

	return c
}
