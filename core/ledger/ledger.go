// Package ledger turns ordered meter samples into an energy account ledger.
//
// The balance is a relative indicator: it starts at zero on the first sample
// and moves by the negated change of net draw between consecutive samples, so
// a falling net draw raises the balance. Only deltas and trends are
// meaningful; the absolute level depends on where the fetched history starts.
//
// Windowing and KPI helpers operate on a ledger computed over the full
// history. They never recompute the balance for a sub-range.
package ledger

import (
	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/energyledger/core/model"
)

// Compute annotates samples with net draw, its negated first difference and
// the running balance. Samples must be ascending by timestamp; equal
// timestamps are kept in input order.
func Compute(meter string, samples []model.Sample) (model.Ledger, error) {
	if err := checkOrder(samples); err != nil {
		return model.Ledger{}, err
	}
	if len(samples) == 0 {
		return model.Ledger{Meter: meter, Entries: []model.Entry{}}, nil
	}

	nets := make([]model.Quantity, len(samples))
	for i, s := range samples {
		nets[i] = s.Consumption().Sub(s.Production())
	}
	deltas := Deltas(nets)
	balances := make([]float64, len(deltas))
	floats.CumSum(balances, deltas)

	entries := make([]model.Entry, len(samples))
	for i, s := range samples {
		entries[i] = model.Entry{
			Sample:     s.Clone(),
			NetKW:      nets[i],
			DeltaNetKW: deltas[i],
			BalanceKW:  balances[i],
		}
	}
	return model.Ledger{Meter: meter, Entries: entries}, nil
}

// Deltas returns the negated first difference of nets. The first position and
// any position touching a missing value contribute zero.
func Deltas(nets []model.Quantity) []float64 {
	out := make([]float64, len(nets))
	for i := 1; i < len(nets); i++ {
		if d := nets[i].Sub(nets[i-1]); d.Valid {
			out[i] = -d.Value
		}
	}
	return out
}

func checkOrder(samples []model.Sample) error {
	for i := 1; i < len(samples); i++ {
		prev, cur := samples[i-1].Timestamp, samples[i].Timestamp
		if cur.Before(prev) {
			return &InvalidInputError{Index: i, Previous: prev, Got: cur}
		}
	}
	return nil
}
