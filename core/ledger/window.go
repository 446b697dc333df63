package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kilianp07/energyledger/core/model"
)

// Window is a named trailing lookback used for display filtering.
type Window string

const (
	WindowHour    Window = "hour"
	WindowHalfDay Window = "12h"
	WindowDay     Window = "day"
	WindowWeek    Window = "week"
	WindowMonth   Window = "month"
	WindowYear    Window = "year"
)

// Windows lists the supported windows from shortest to longest.
var Windows = []Window{WindowHour, WindowHalfDay, WindowDay, WindowWeek, WindowMonth, WindowYear}

// Month and year are fixed approximations (30 and 365 days), not calendar
// periods, so a window always spans the same wall-clock duration.
var windowDurations = map[Window]time.Duration{
	WindowHour:    time.Hour,
	WindowHalfDay: 12 * time.Hour,
	WindowDay:     24 * time.Hour,
	WindowWeek:    7 * 24 * time.Hour,
	WindowMonth:   30 * 24 * time.Hour,
	WindowYear:    365 * 24 * time.Hour,
}

var windowLabels = map[Window]string{
	WindowHour:    "Last hour",
	WindowHalfDay: "Last 12 hours",
	WindowDay:     "Last day",
	WindowWeek:    "Last week",
	WindowMonth:   "Last month",
	WindowYear:    "Last year",
}

var windowAliases = map[string]Window{
	"1h":         WindowHour,
	"last_hour":  WindowHour,
	"last_12h":   WindowHalfDay,
	"12 hours":   WindowHalfDay,
	"24h":        WindowDay,
	"1d":         WindowDay,
	"last_day":   WindowDay,
	"7d":         WindowWeek,
	"last_week":  WindowWeek,
	"30d":        WindowMonth,
	"last_month": WindowMonth,
	"365d":       WindowYear,
	"last_year":  WindowYear,
}

// ParseWindow resolves a window name or alias.
func ParseWindow(s string) (Window, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if _, ok := windowDurations[Window(key)]; ok {
		return Window(key), nil
	}
	if w, ok := windowAliases[key]; ok {
		return w, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownWindow, s)
}

// Duration returns the fixed span of the window, or zero for unknown windows.
func (w Window) Duration() time.Duration { return windowDurations[w] }

// Label returns a human readable name.
func (w Window) Label() string {
	if l, ok := windowLabels[w]; ok {
		return l
	}
	return string(w)
}

func (w Window) String() string { return string(w) }

// Cutoff returns the latest ledger timestamp minus the window duration. The
// boolean is false when the ledger is empty.
func Cutoff(l model.Ledger, w Window) (time.Time, bool) {
	last, ok := l.Last()
	if !ok {
		return time.Time{}, false
	}
	return last.Timestamp.Add(-w.Duration()), true
}

// FilterWindow returns the entries strictly after the cutoff. Balances are
// those of the full ledger; the result shares no slice with l.
func FilterWindow(l model.Ledger, w Window) model.Ledger {
	cutoff, ok := Cutoff(l, w)
	if !ok {
		return model.Ledger{Meter: l.Meter, Entries: []model.Entry{}}
	}
	return Since(l, cutoff)
}

// Since returns the suffix of l with timestamps strictly after t.
func Since(l model.Ledger, t time.Time) model.Ledger {
	start := sort.Search(len(l.Entries), func(i int) bool {
		return l.Entries[i].Timestamp.After(t)
	})
	entries := make([]model.Entry, len(l.Entries)-start)
	copy(entries, l.Entries[start:])
	return model.Ledger{Meter: l.Meter, Entries: entries}
}
