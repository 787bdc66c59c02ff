package directory

import (
	"time"

	"github.com/MichaelAJay/go-auth/errors"
	"github.com/MichaelAJay/go-config"
)

// Supported values of auth.ldap.verify.
const (
	// VerifyCompare reads userPassword and checks it with the encryption
	// strategy.
	VerifyCompare = "compare"
	// VerifyBind binds as the user and lets the server check the password.
	VerifyBind = "bind"
)

// Config contains configuration for the directory backend.
type Config struct {
	URL           string        `json:"url"`
	BaseDN        string        `json:"base_dn"`
	BindDN        string        `json:"bind_dn"`
	BindPassword  string        `json:"bind_password"`
	UIDAttribute  string        `json:"uid_attribute" default:"uid"`
	ObjectClasses []string      `json:"object_classes"`
	Verify        string        `json:"verify" default:"compare"`
	Timeout       time.Duration `json:"timeout" default:"5s"`
}

func defaultObjectClasses() []string {
	return []string{"top", "person", "organizationalPerson", "inetOrgPerson"}
}

// loadConfig loads backend configuration with defaults and checks the
// required keys.
func loadConfig(cfg config.Config) (*Config, error) {
	c := &Config{
		UIDAttribute:  "uid",
		ObjectClasses: defaultObjectClasses(),
		Verify:        VerifyCompare,
		Timeout:       5 * time.Second,
	}

	if cfg != nil {
		if url, ok := cfg.GetString("auth.ldap.url"); ok {
			c.URL = url
		}
		if baseDN, ok := cfg.GetString("auth.ldap.base_dn"); ok {
			c.BaseDN = baseDN
		}
		if bindDN, ok := cfg.GetString("auth.ldap.bind_dn"); ok {
			c.BindDN = bindDN
		}
		if bindPassword, ok := cfg.GetString("auth.ldap.bind_password"); ok {
			c.BindPassword = bindPassword
		}
		if attr, ok := cfg.GetString("auth.ldap.uid_attribute"); ok && attr != "" {
			c.UIDAttribute = attr
		}
		if classes, ok := cfg.GetStringSlice("auth.ldap.object_classes"); ok && len(classes) > 0 {
			c.ObjectClasses = classes
		}
		if verify, ok := cfg.GetString("auth.ldap.verify"); ok && verify != "" {
			c.Verify = verify
		}
		if timeout, ok := cfg.GetString("auth.ldap.timeout"); ok {
			if d, err := time.ParseDuration(timeout); err == nil {
				c.Timeout = d
			}
		}
	}

	if c.URL == "" {
		return nil, errors.NewConfigurationError("auth.ldap.url", "required")
	}
	if c.BaseDN == "" {
		return nil, errors.NewConfigurationError("auth.ldap.base_dn", "required")
	}
	if c.Verify != VerifyCompare && c.Verify != VerifyBind {
		return nil, errors.NewConfigurationError("auth.ldap.verify", "must be compare or bind")
	}

	return c, nil
}
