package report

import (
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/smarche/invoice-audit/internal/types"
)

func f(v float64) *float64 { return &v }

// TestWriteLayout writes a small report and checks the sheet structure back.
func TestWriteLayout(t *testing.T) {
	t.Parallel()

	rows := []types.ReportRow{
		{
			Date:        "02/05/25",
			Ref:         "1/SH",
			Client:      "ACME SARL",
			DestAddress: "SCARICO: ACME, LYON (69) - FR",
			DocDisplay:  "DT 000123",
			Country:     "FR",
			DestCode:    "69",
			Zone:        "Z1",
			Rate:        f(100.0),
			Volume:      f(3.0),
			Quantity:    f(3.0),
			Amount:      f(300.0),
		},
		{
			Ref:      "2/SH",
			Country:  "FR",
			Volume:   f(4.0),
			Errors:   "Tariffa mancante",
			HasError: true,
		},
	}

	path := filepath.Join(t.TempDir(), "out", "report.xlsx")
	if err := NewWriter().Write(path, "Risultano degli errori, controllare le fatture evidenziate.", rows, false); err != nil {
		t.Fatalf("Write: %v", err)
	}

	wb, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer wb.Close()

	if got := wb.GetSheetList(); len(got) != 1 || got[0] != DefaultSheetName {
		t.Fatalf("sheets = %v", got)
	}

	cell := func(ref string) string {
		v, err := wb.GetCellValue(DefaultSheetName, ref)
		if err != nil {
			t.Fatalf("GetCellValue(%s): %v", ref, err)
		}
		return v
	}

	if got := cell("A1"); got != "Risultano degli errori, controllare le fatture evidenziate." {
		t.Errorf("A1 = %q", got)
	}
	if got := cell("A2"); got != "Legenda:" {
		t.Errorf("A2 = %q", got)
	}
	if got := cell("A4"); got != "Data" {
		t.Errorf("A4 = %q", got)
	}
	if got := cell("O4"); got != "Errori" {
		t.Errorf("O4 = %q", got)
	}

	// First data row.
	if got := cell("B5"); got != "1/SH" {
		t.Errorf("B5 = %q", got)
	}
	if got := cell("E5"); got != "DT 000123" {
		t.Errorf("E5 = %q", got)
	}
	if got := cell("M5"); got != "300" {
		t.Errorf("M5 = %q", got)
	}
	// Flagged row carries its message.
	if got := cell("O6"); got != "Tariffa mancante" {
		t.Errorf("O6 = %q", got)
	}
}

// TestWriteSourceColumn prepends the PDF column for multi-file reports.
func TestWriteSourceColumn(t *testing.T) {
	t.Parallel()

	rows := []types.ReportRow{{Source: "fattura_1.pdf", Ref: "1/SH"}}
	path := filepath.Join(t.TempDir(), "report.xlsx")
	if err := NewWriter().Write(path, "ok", rows, true); err != nil {
		t.Fatalf("Write: %v", err)
	}

	wb, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer wb.Close()

	if got, _ := wb.GetCellValue(DefaultSheetName, "A4"); got != "PDF" {
		t.Errorf("A4 = %q", got)
	}
	if got, _ := wb.GetCellValue(DefaultSheetName, "A5"); got != "fattura_1.pdf" {
		t.Errorf("A5 = %q", got)
	}
	if got, _ := wb.GetCellValue(DefaultSheetName, "C5"); got != "1/SH" {
		t.Errorf("C5 = %q", got)
	}
}

// TestRowStyle picks the background by severity.
func TestRowStyle(t *testing.T) {
	t.Parallel()

	errS, noteS, blueS := 1, 2, 3
	cases := []struct {
		name string
		row  types.ReportRow
		want int
		ok   bool
	}{
		{"plain", types.ReportRow{Volume: f(2.0)}, 0, false},
		{"error", types.ReportRow{HasError: true, Errors: "x"}, errS, true},
		{"france error", types.ReportRow{HasFranceError: true, FranceErrors: "volume diverso tra fattura e file excel (PDF=1.0 / Excel=2.0)"}, errS, true},
		{"france informational", types.ReportRow{HasFranceError: true, FranceErrors: "non è una spedizione in Francia"}, noteS, true},
		{"ddt missing informational", types.ReportRow{HasFranceError: true, FranceErrors: "DDT non trovato nel file excel"}, noteS, true},
		{"note", types.ReportRow{Note: "Riga TRASPORTO non riconosciuta: X"}, noteS, true},
		{"tiny volume", types.ReportRow{Volume: f(0.3)}, blueS, true},
		{"error wins over note", types.ReportRow{HasError: true, Note: "n"}, errS, true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := rowStyle(&tc.row, errS, noteS, blueS)
			if got != tc.want || ok != tc.ok {
				t.Fatalf("rowStyle = (%d, %v), want (%d, %v)", got, ok, tc.want, tc.ok)
			}
		})
	}
}
