package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/energyledger/core/ledger"
)

// LedgerConfig tunes history fetching, windowing and KPIs.
type LedgerConfig struct {
	// SampleCadenceSeconds is the expected spacing between meter samples. It
	// converts sample-count lookbacks into durations and drives gap detection.
	SampleCadenceSeconds int `json:"sample_cadence_seconds"`
	// KPILookbackSeconds is the balance delta lookback.
	KPILookbackSeconds int `json:"kpi_lookback_seconds"`
	// KPILookbackSamples expresses the lookback as a sample count; used only
	// when KPILookbackSeconds is unset.
	KPILookbackSamples int `json:"kpi_lookback_samples"`
	// HistorySeconds limits how far back samples are fetched; 0 fetches all.
	HistorySeconds int `json:"history_seconds"`
	// DefaultWindow is the display window when none is requested.
	DefaultWindow string `json:"default_window"`
	// BucketSeconds is the per-timeframe resampling size.
	BucketSeconds int `json:"bucket_seconds"`
	// RefreshIntervalSeconds recomputes every configured meter in the
	// background while serving, keeping metrics current. 0 disables it.
	RefreshIntervalSeconds int `json:"refresh_interval_seconds"`
}

// SetDefaults applies sane defaults.
func (c *LedgerConfig) SetDefaults() {
	if c.SampleCadenceSeconds <= 0 {
		c.SampleCadenceSeconds = 5
	}
	if c.KPILookbackSeconds <= 0 && c.KPILookbackSamples <= 0 {
		c.KPILookbackSeconds = 3600
	}
	if c.DefaultWindow == "" {
		c.DefaultWindow = string(ledger.WindowDay)
	}
	if c.BucketSeconds <= 0 {
		c.BucketSeconds = 3600
	}
}

// Validate checks the window name and numeric ranges.
func (c LedgerConfig) Validate() error {
	if _, err := ledger.ParseWindow(c.DefaultWindow); err != nil {
		return err
	}
	if c.HistorySeconds < 0 || c.RefreshIntervalSeconds < 0 {
		return fmt.Errorf("history_seconds and refresh_interval_seconds must not be negative")
	}
	return nil
}

// Cadence returns the expected sample spacing.
func (c LedgerConfig) Cadence() time.Duration {
	return time.Duration(c.SampleCadenceSeconds) * time.Second
}

// Lookback returns the KPI lookback, converting a sample count with the
// configured cadence when no duration is set.
func (c LedgerConfig) Lookback() time.Duration {
	if c.KPILookbackSeconds > 0 {
		return time.Duration(c.KPILookbackSeconds) * time.Second
	}
	return time.Duration(c.KPILookbackSamples) * c.Cadence()
}

// History returns the fetch horizon, zero meaning unbounded.
func (c LedgerConfig) History() time.Duration {
	return time.Duration(c.HistorySeconds) * time.Second
}

// Bucket returns the resampling size.
func (c LedgerConfig) Bucket() time.Duration {
	return time.Duration(c.BucketSeconds) * time.Second
}

// Window returns the parsed default window.
func (c LedgerConfig) Window() ledger.Window {
	w, err := ledger.ParseWindow(c.DefaultWindow)
	if err != nil {
		return ledger.WindowDay
	}
	return w
}

// RefreshInterval returns the background refresh period, zero when disabled.
func (c LedgerConfig) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalSeconds) * time.Second
}
