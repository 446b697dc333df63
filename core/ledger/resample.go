package ledger

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/energyledger/core/model"
)

// Bucket aggregates the entries of one timeframe.
type Bucket struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Samples      int       `json:"samples"`
	DeltaBalance float64   `json:"delta_balance_kW"`
	LastBalance  float64   `json:"last_balance_kW"`
}

// Resample groups entries into buckets aligned on size (in UTC) and reports
// the balance change within each bucket. Empty buckets are omitted.
func Resample(l model.Ledger, size time.Duration) []Bucket {
	if size <= 0 || l.Empty() {
		return nil
	}
	var out []Bucket
	var deltas []float64
	flush := func() {
		if len(out) == 0 {
			return
		}
		out[len(out)-1].DeltaBalance = floats.Sum(deltas)
		deltas = deltas[:0]
	}
	for _, e := range l.Entries {
		start := e.Timestamp.UTC().Truncate(size)
		if len(out) == 0 || !out[len(out)-1].Start.Equal(start) {
			flush()
			out = append(out, Bucket{Start: start, End: start.Add(size)})
		}
		b := &out[len(out)-1]
		b.Samples++
		b.LastBalance = e.BalanceKW
		deltas = append(deltas, e.DeltaNetKW)
	}
	flush()
	return out
}

// Summary describes a ledger for KPI tiles and reports.
type Summary struct {
	Samples    int       `json:"samples"`
	First      *time.Time `json:"first,omitempty"`
	Last       *time.Time `json:"last,omitempty"`
	MeanNetKW  float64    `json:"mean_net_kW"`
	NetSamples int        `json:"net_samples"`
	MinBalance float64    `json:"min_balance_kW"`
	MaxBalance float64    `json:"max_balance_kW"`
	Gaps       int        `json:"gaps"`
}

// Summarize computes summary statistics. A gap is a spacing between
// consecutive samples larger than twice the expected cadence; a zero cadence
// disables gap detection.
func Summarize(l model.Ledger, cadence time.Duration) Summary {
	s := Summary{Samples: l.Len()}
	first, ok := l.First()
	if !ok {
		return s
	}
	last, _ := l.Last()
	s.First, s.Last = &first.Timestamp, &last.Timestamp

	balances := make([]float64, len(l.Entries))
	var nets []float64
	for i, e := range l.Entries {
		balances[i] = e.BalanceKW
		if e.NetKW.Valid {
			nets = append(nets, e.NetKW.Value)
		}
		if cadence > 0 && i > 0 && e.Timestamp.Sub(l.Entries[i-1].Timestamp) > 2*cadence {
			s.Gaps++
		}
	}
	s.MinBalance = floats.Min(balances)
	s.MaxBalance = floats.Max(balances)
	s.NetSamples = len(nets)
	if len(nets) > 0 {
		s.MeanNetKW = stat.Mean(nets, nil)
	}
	return s
}
