package metrics

import (
	"errors"
	"io"
)

// MultiRecorder fans events out to several recorders.
type MultiRecorder struct {
	Recorders []Recorder
}

// NewMultiRecorder creates a MultiRecorder with the provided recorders.
func NewMultiRecorder(recs ...Recorder) *MultiRecorder {
	return &MultiRecorder{Recorders: recs}
}

// RecordRefresh forwards the event to every recorder and joins their errors.
func (m *MultiRecorder) RecordRefresh(ev RefreshEvent) error {
	var errs []error
	for _, r := range m.Recorders {
		if err := r.RecordRefresh(ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RecordLogin forwards login events to recorders that support them.
func (m *MultiRecorder) RecordLogin(ev LoginEvent) error {
	var errs []error
	for _, r := range m.Recorders {
		if lr, ok := r.(LoginRecorder); ok {
			if err := lr.RecordLogin(ev); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every recorder that holds resources.
func (m *MultiRecorder) Close() error {
	var errs []error
	for _, r := range m.Recorders {
		if c, ok := r.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
