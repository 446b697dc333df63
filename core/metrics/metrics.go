package metrics

import "time"

// Refresh outcomes.
const (
	StatusOK           = "ok"
	StatusInvalidInput = "invalid_input"
	StatusSourceError  = "source_error"
)

// RefreshEvent describes one fetch + ledger computation.
type RefreshEvent struct {
	RefreshID string
	Meter     string
	Subject   string
	Window    string
	Samples   int
	// Balance is the current balance; BalanceValid is false for an empty ledger.
	Balance      float64
	BalanceValid bool
	Status       string
	Error        string
	Duration     time.Duration
	Time         time.Time
}

// Recorder observes ledger refreshes.
type Recorder interface {
	RecordRefresh(ev RefreshEvent) error
}

// LoginEvent describes a login attempt.
type LoginEvent struct {
	Subject string
	Success bool
	Reason  string
	Time    time.Time
}

// LoginRecorder observes login attempts.
type LoginRecorder interface {
	RecordLogin(ev LoginEvent) error
}

// NopRecorder implements Recorder and LoginRecorder with no-op methods.
type NopRecorder struct{}

func (NopRecorder) RecordRefresh(RefreshEvent) error { return nil }
func (NopRecorder) RecordLogin(LoginEvent) error     { return nil }
