package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	summarySheet = "summary"
	ledgerSheet  = "ledger"
)

// WriteXLSX writes a workbook with a summary sheet and a ledger sheet.
// Numeric cells hold numbers; missing readings are left blank.
func WriteXLSX(w io.Writer, r Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(ledgerSheet); err != nil {
		return err
	}

	_ = f.SetCellValue(summarySheet, "A1", "Energy ledger")
	for i, kv := range KPILines(r) {
		row := i + 3
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), kv[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), kv[1])
	}

	for i, h := range Columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return err
		}
		_ = f.SetCellValue(ledgerSheet, cell, h)
	}
	for i, e := range r.Ledger.Entries {
		row := i + 2
		_ = f.SetCellValue(ledgerSheet, fmt.Sprintf("A%d", row), e.Timestamp.UTC())
		for j, q := range [...]struct {
			valid bool
			value float64
		}{
			{e.Consumption().Valid, e.Consumption().Value},
			{e.Production().Valid, e.Production().Value},
			{e.GridInput().Valid, e.GridInput().Value},
			{e.GridOutput().Valid, e.GridOutput().Value},
			{e.NetKW.Valid, e.NetKW.Value},
			{true, e.DeltaNetKW},
			{true, e.BalanceKW},
		} {
			if !q.valid {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(j+2, row)
			if err != nil {
				return err
			}
			_ = f.SetCellValue(ledgerSheet, cell, q.value)
		}
	}
	return f.Write(w)
}
