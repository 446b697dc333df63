package ledger

import (
	"sort"
	"time"

	"github.com/kilianp07/energyledger/core/model"
)

// Status qualifies a KPI result.
type Status string

const (
	StatusOK                  Status = "ok"
	StatusNoData              Status = "no_data"
	StatusInsufficientHistory Status = "insufficient_history"
)

// Delta is the change of balance over a lookback period.
type Delta struct {
	Value     float64       `json:"value"`
	Status    Status        `json:"status"`
	Lookback  time.Duration `json:"lookback"`
	Reference *time.Time    `json:"reference,omitempty"`
}

// OK reports whether Value is meaningful.
func (d Delta) OK() bool { return d.Status == StatusOK }

// CurrentBalance returns the balance of the last entry, or Missing when the
// ledger is empty.
func CurrentBalance(l model.Ledger) model.Quantity {
	last, ok := l.Last()
	if !ok {
		return model.Missing
	}
	return model.Some(last.BalanceKW)
}

// BalanceAt returns the balance of the last entry at or before t.
func BalanceAt(l model.Ledger, t time.Time) (model.Entry, bool) {
	idx := sort.Search(len(l.Entries), func(i int) bool {
		return l.Entries[i].Timestamp.After(t)
	})
	if idx == 0 {
		return model.Entry{}, false
	}
	return l.Entries[idx-1], true
}

// BalanceDelta compares the current balance with the balance at now-lookback.
func BalanceDelta(l model.Ledger, now time.Time, lookback time.Duration) Delta {
	d := Delta{Lookback: lookback}
	last, ok := l.Last()
	if !ok {
		d.Status = StatusNoData
		return d
	}
	ref, ok := BalanceAt(l, now.Add(-lookback))
	if !ok {
		d.Status = StatusInsufficientHistory
		return d
	}
	d.Status = StatusOK
	d.Value = last.BalanceKW - ref.BalanceKW
	ts := ref.Timestamp
	d.Reference = &ts
	return d
}
