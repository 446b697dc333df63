package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/energyledger/core/ledger"
	"github.com/kilianp07/energyledger/pkg/export"
)

var ledgerOpts struct {
	meter  string
	window string
	format string
	output string
	at     string
}

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Compute a meter's ledger and export it",
	Example: `  energyledger ledger --meter house --window week
  energyledger ledger --meter house --format pdf --output report.pdf`,
	RunE: runLedger,
}

func init() {
	f := ledgerCmd.Flags()
	f.StringVarP(&ledgerOpts.meter, "meter", "m", "", "meter identifier")
	f.StringVarP(&ledgerOpts.window, "window", "w", "", "display window (hour, 12h, day, week, month, year)")
	f.StringVarP(&ledgerOpts.format, "format", "f", "csv", "output format: csv, json, xlsx or pdf")
	f.StringVarP(&ledgerOpts.output, "output", "o", "-", "output file, - for stdout")
	f.StringVar(&ledgerOpts.at, "at", "", "RFC3339 instant anchoring the KPI lookback (default now)")
	_ = ledgerCmd.MarkFlagRequired("meter")
	rootCmd.AddCommand(ledgerCmd)
}

func runLedger(cmd *cobra.Command, args []string) error {
	var win ledger.Window
	if ledgerOpts.window != "" {
		w, err := ledger.ParseWindow(ledgerOpts.window)
		if err != nil {
			return err
		}
		win = w
	}
	var at time.Time
	if ledgerOpts.at != "" {
		t, err := time.Parse(time.RFC3339, ledgerOpts.at)
		if err != nil {
			return fmt.Errorf("--at: %w", err)
		}
		at = t
	}
	write, err := ledgerWriter(ledgerOpts.format)
	if err != nil {
		return err
	}

	svc, err := loadService()
	if err != nil {
		return err
	}
	defer closeService(svc)

	snap, err := svc.LedgerFor(context.Background(), ledgerOpts.meter, win, at)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if ledgerOpts.output != "-" {
		f, err := os.Create(ledgerOpts.output)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		out = f
	}
	return write(out, snap.Report())
}

func ledgerWriter(format string) (func(io.Writer, export.Report) error, error) {
	switch format {
	case "csv":
		return func(w io.Writer, r export.Report) error { return export.WriteCSV(w, r.Ledger) }, nil
	case "json":
		return func(w io.Writer, r export.Report) error { return export.WriteJSON(w, r.Ledger) }, nil
	case "xlsx":
		return export.WriteXLSX, nil
	case "pdf":
		return export.WritePDF, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
