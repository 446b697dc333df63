package config

import (
	"fmt"

	"github.com/kilianp07/energyledger/infra/audit"
)

// LogConfig controls application logging.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn or error.
	Level string `json:"level"`
}

// SetDefaults applies sane defaults.
func (c *LogConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
}

// AuditConfig defines settings for the refresh/login audit trail and its
// rotation.
type AuditConfig struct {
	Enabled bool `json:"enabled"`
	// Path is the file location of the JSONL audit log.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
}

// SetDefaults applies sane defaults.
func (c *AuditConfig) SetDefaults() {
	if c.Path == "" {
		c.Path = "audit.log"
	}
	if c.MaxSizeMB <= 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks mandatory fields.
func (c AuditConfig) Validate() error {
	if c.Enabled && c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("rotation limits must not be negative")
	}
	return nil
}

// Rotation returns the audit log settings.
func (c AuditConfig) Rotation() audit.Config {
	return audit.Config{Path: c.Path, MaxSizeMB: c.MaxSizeMB, MaxBackups: c.MaxBackups, MaxAgeDays: c.MaxAgeDays}
}
