package export

import (
	"io"

	"github.com/jung-kurt/gofpdf"
)

// maxPDFRows caps the ledger table; longer ledgers are summarised by the
// KPI block and the trailing rows are listed.
const maxPDFRows = 200

// WritePDF writes a one-document report: KPI block followed by the most
// recent ledger rows.
func WritePDF(w io.Writer, r Report) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()
	pdf.Cell(0, 8, "Energy ledger")
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	for _, kv := range KPILines(r) {
		pdf.Cell(70, 6, kv[0])
		pdf.Cell(0, 6, kv[1])
		pdf.Ln(5)
	}
	pdf.Ln(4)

	widths := []float64{46, 31, 31, 31, 31, 31, 31, 31}
	pdf.SetFont("Arial", "B", 8)
	for i, h := range Columns {
		pdf.CellFormat(widths[i], 6, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 8)
	entries := r.Ledger.Entries
	if len(entries) > maxPDFRows {
		entries = entries[len(entries)-maxPDFRows:]
	}
	for _, e := range entries {
		for i, c := range Row(e) {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(widths[i], 5, c, "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf.Output(w)
}
