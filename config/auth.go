package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/energyledger/auth"
)

// AuthConfig configures the login provider, sessions and meter mapping.
type AuthConfig struct {
	// Provider selects "static" (bcrypt users) or "oauth2" (password grant).
	Provider string        `json:"provider"`
	Users    []auth.User   `json:"users"`
	OAuth2   auth.Conf     `json:"oauth2"`
	Meters   auth.MeterMap `json:"meters"`
	// SessionSecret signs session tokens.
	SessionSecret     string `json:"session_secret"`
	SessionTTLSeconds int    `json:"session_ttl_seconds"`
}

// SetDefaults applies sane defaults.
func (c *AuthConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = "static"
	}
	if c.SessionTTLSeconds <= 0 {
		c.SessionTTLSeconds = 12 * 3600
	}
}

// Validate checks mandatory fields.
func (c AuthConfig) Validate() error {
	switch c.Provider {
	case "static":
	case "oauth2":
		if c.OAuth2.TokenURL == "" {
			return fmt.Errorf("oauth2.token_url is required")
		}
	default:
		return fmt.Errorf("unknown provider %s", c.Provider)
	}
	return nil
}

// SessionTTL returns the session lifetime.
func (c AuthConfig) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLSeconds) * time.Second
}
