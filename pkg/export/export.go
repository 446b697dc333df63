// Package export renders a computed ledger as CSV, JSON, XLSX or PDF.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/energyledger/core/ledger"
	"github.com/kilianp07/energyledger/core/model"
)

// Columns is the header of tabular exports.
var Columns = []string{
	"timestamp",
	model.FieldConsumption,
	model.FieldProduction,
	model.FieldGridInput,
	model.FieldGridOutput,
	"net_kW",
	"delta_net_kW",
	"balance_kW",
}

// Report is everything a downloadable report shows.
type Report struct {
	Meter       string
	Window      ledger.Window
	GeneratedAt time.Time
	Current     model.Quantity
	Delta       ledger.Delta
	Summary     ledger.Summary
	Ledger      model.Ledger
}

// FormatKW renders a quantity with at most three decimals; missing is empty.
func FormatKW(q model.Quantity) string {
	if !q.Valid {
		return ""
	}
	return decimal.NewFromFloat(q.Value).Round(3).String()
}

// Row returns the cells of one entry in Columns order.
func Row(e model.Entry) []string {
	return []string{
		e.Timestamp.UTC().Format(time.RFC3339),
		FormatKW(e.Consumption()),
		FormatKW(e.Production()),
		FormatKW(e.GridInput()),
		FormatKW(e.GridOutput()),
		FormatKW(e.NetKW),
		FormatKW(model.Some(e.DeltaNetKW)),
		FormatKW(model.Some(e.BalanceKW)),
	}
}

// Rows flattens the ledger into Columns-ordered records.
func Rows(l model.Ledger) [][]string {
	out := make([][]string, len(l.Entries))
	for i, e := range l.Entries {
		out[i] = Row(e)
	}
	return out
}

// WriteJSON writes the ledger entries to w in JSON format.
func WriteJSON(w io.Writer, l model.Ledger) error {
	enc := json.NewEncoder(w)
	return enc.Encode(l)
}

// WriteCSV writes one row per entry with a Columns header.
func WriteCSV(w io.Writer, l model.Ledger) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	return cw.WriteAll(Rows(l))
}

// KPILines returns the label/value pairs shown above a ledger.
func KPILines(r Report) [][2]string {
	delta := "n/a (" + string(r.Delta.Status) + ")"
	if r.Delta.OK() {
		delta = FormatKW(model.Some(r.Delta.Value))
	}
	current := FormatKW(r.Current)
	if current == "" {
		current = "n/a"
	}
	lines := [][2]string{
		{"Meter", r.Meter},
		{"Window", r.Window.Label()},
		{"Generated", r.GeneratedAt.UTC().Format(time.RFC3339)},
		{"Current balance (kW)", current},
		{"Balance change over " + r.Delta.Lookback.String() + " (kW)", delta},
		{"Samples", strconv.Itoa(r.Summary.Samples)},
		{"Gaps", strconv.Itoa(r.Summary.Gaps)},
	}
	if r.Summary.Samples > 0 {
		mean := "n/a"
		if r.Summary.NetSamples > 0 {
			mean = FormatKW(model.Some(r.Summary.MeanNetKW))
		}
		lines = append(lines,
			[2]string{"Mean net draw (kW)", mean},
			[2]string{"Min balance (kW)", FormatKW(model.Some(r.Summary.MinBalance))},
			[2]string{"Max balance (kW)", FormatKW(model.Some(r.Summary.MaxBalance))},
		)
	}
	return lines
}
