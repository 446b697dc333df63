// Package source defines the contract between the ledger and the stores
// that hold meter telemetry.
package source

import (
	"context"
	"errors"
	"time"

	"github.com/kilianp07/energyledger/core/model"
)

// ErrInvalidQuery is returned for queries without a meter.
var ErrInvalidQuery = errors.New("source: invalid query")

// Query selects the samples of one meter. Zero Start or End leaves that side
// of the range open. Start is inclusive, End exclusive.
type Query struct {
	Meter  string
	Start  time.Time
	End    time.Time
	Fields []string
}

// Source returns samples ascending by timestamp with only the projected
// fields populated. An empty result is not an error.
type Source interface {
	Query(ctx context.Context, q Query) ([]model.Sample, error)
}

// DefaultFields are fetched when a query names no fields: the kW ledger
// fields and their raw watt counterparts.
func DefaultFields() []string {
	out := make([]string, 0, 2*len(model.LedgerFields))
	for _, f := range model.LedgerFields {
		out = append(out, f, model.WattName(f))
	}
	return out
}

// Normalize validates q and fills default fields.
func (q Query) Normalize() (Query, error) {
	if q.Meter == "" {
		return q, ErrInvalidQuery
	}
	if !q.End.IsZero() && !q.Start.IsZero() && !q.End.After(q.Start) {
		return q, ErrInvalidQuery
	}
	if len(q.Fields) == 0 {
		q.Fields = DefaultFields()
	}
	return q, nil
}

// Contains reports whether t lies in the query range.
func (q Query) Contains(t time.Time) bool {
	if !q.Start.IsZero() && t.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && !t.Before(q.End) {
		return false
	}
	return true
}

// Project keeps only the named fields on each sample. Fields named but not
// present stay absent.
func Project(samples []model.Sample, fields []string) []model.Sample {
	out := make([]model.Sample, len(samples))
	for i, s := range samples {
		kept := make(map[string]model.Quantity, len(fields))
		for _, f := range fields {
			if q, ok := s.Fields[f]; ok {
				kept[f] = q
			}
		}
		out[i] = model.Sample{Timestamp: s.Timestamp, Fields: kept}
	}
	return out
}
