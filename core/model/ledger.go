package model

// Entry is a sample annotated with its running balance.
type Entry struct {
	Sample
	NetKW      Quantity `json:"net_kW"`
	DeltaNetKW float64  `json:"delta_net_kW"`
	BalanceKW  float64  `json:"balance_kW"`
}

// Ledger is the ordered, annotated sample sequence of one meter.
type Ledger struct {
	Meter   string  `json:"meter"`
	Entries []Entry `json:"entries"`
}

// Len returns the number of entries.
func (l Ledger) Len() int { return len(l.Entries) }

// Empty reports whether the ledger has no entries.
func (l Ledger) Empty() bool { return len(l.Entries) == 0 }

// Last returns the final entry.
func (l Ledger) Last() (Entry, bool) {
	if len(l.Entries) == 0 {
		return Entry{}, false
	}
	return l.Entries[len(l.Entries)-1], true
}

// First returns the earliest entry.
func (l Ledger) First() (Entry, bool) {
	if len(l.Entries) == 0 {
		return Entry{}, false
	}
	return l.Entries[0], true
}

