package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/energyledger/core/factory"
	"github.com/kilianp07/energyledger/core/metrics"
	"github.com/kilianp07/energyledger/infra/mqtt"
)

// EnvPrefix prefixes environment overrides, e.g. K_AUTH__SESSION_SECRET.
const EnvPrefix = "K_"

type Config struct {
	Log       LogConfig            `json:"log"`
	Ledger    LedgerConfig         `json:"ledger"`
	Source    factory.ModuleConfig `json:"source"`
	Auth      AuthConfig           `json:"auth"`
	Dashboard DashboardConfig      `json:"dashboard"`
	Metrics   metrics.Config       `json:"metrics"`
	Audit     AuditConfig          `json:"audit"`
	MQTT      mqtt.Config          `json:"mqtt"`
	Sentry    SentryConfig         `json:"sentry"`
}

// Load reads a YAML or JSON file, applies K_ environment overrides, defaults
// and validation.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section with its defaults.
func (c *Config) SetDefaults() {
	c.Log.SetDefaults()
	c.Ledger.SetDefaults()
	if c.Source.Type == "" {
		c.Source.Type = "sqlite"
	}
	c.Auth.SetDefaults()
	c.Dashboard.SetDefaults()
	c.Audit.SetDefaults()
	if c.MQTT.Topic == "" {
		c.MQTT.Topic = mqtt.DefaultTopic
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Ledger.Validate(); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := c.Audit.Validate(); err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	return nil
}
