// =============================================================================
// Invoice Audit - Excel Report Writer
// =============================================================================
//
// Renders the audit result as a single-sheet Excel report:
//
//   row 1  - merged summary line (bold)
//   row 2  - color legend
//   row 4  - column headers
//   row 5+ - one row per invoice line, whole-row background by severity:
//            red    price/merge/volume errors
//            yellow informational notes and out-of-scope reconciliation rows
//            blue   volumes at or under 0.3 m³
//
// =============================================================================

package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/smarche/invoice-audit/internal/types"
	"github.com/smarche/invoice-audit/pkg/utils"
)

// DefaultSheetName is the report's sheet name.
const DefaultSheetName = "Controllo"

// Background colors, matching the legend.
const (
	colorError = "FFC7CE" // light red
	colorNote  = "FFEB9C" // light yellow
	colorBlue  = "C6E0FF" // light blue
)

// blueVolumeMax marks very small shipments for visual review.
const blueVolumeMax = 0.3

// yellowOnlyMessages are reconciliation outcomes that annotate a row without
// flagging it as an error.
var yellowOnlyMessages = map[string]bool{
	"non è una spedizione in Francia": true,
	"DDT non trovato nel file excel":  true,
}

type column struct {
	header string
	width  float64
	value  func(*types.ReportRow) interface{}
}

// Writer renders audit rows to an Excel file.
type Writer struct {
	SheetName string
}

// NewWriter returns a Writer with the default sheet name.
func NewWriter() *Writer {
	return &Writer{SheetName: DefaultSheetName}
}

// Write creates the report at path. includeSource adds the per-row source
// file column, used when several PDFs were merged into one report.
func (w *Writer) Write(path, summary string, rows []types.ReportRow, includeSource bool) error {
	cols := w.columns(includeSource)

	f := excelize.NewFile()
	defer f.Close()

	sheet := w.SheetName
	if sheet == "" {
		sheet = DefaultSheetName
	}
	f.SetSheetName("Sheet1", sheet)

	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	errorStyle, err := fillStyle(f, colorError)
	if err != nil {
		return err
	}
	noteStyle, err := fillStyle(f, colorNote)
	if err != nil {
		return err
	}
	blueStyle, err := fillStyle(f, colorBlue)
	if err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(len(cols))
	if err != nil {
		return err
	}

	// Summary + legend.
	if err := f.MergeCell(sheet, "A1", lastCol+"1"); err != nil {
		return err
	}
	f.SetCellValue(sheet, "A1", summary)
	f.SetCellStyle(sheet, "A1", lastCol+"1", boldStyle)

	f.SetCellValue(sheet, "A2", "Legenda:")
	f.SetCellStyle(sheet, "A2", "A2", boldStyle)
	f.SetCellValue(sheet, "B2", "Errore (rosso)")
	f.SetCellStyle(sheet, "B2", "B2", errorStyle)
	f.SetCellValue(sheet, "C2", "Nota / riga non riconosciuta (giallo)")
	f.SetCellStyle(sheet, "C2", "C2", noteStyle)
	f.SetCellValue(sheet, "D2", "Volume ≤ 0,3 (blu)")
	f.SetCellStyle(sheet, "D2", "D2", blueStyle)

	// Headers on row 4.
	const headerRow = 4
	for i, c := range cols {
		cell, err := excelize.CoordinatesToCellName(i+1, headerRow)
		if err != nil {
			return err
		}
		f.SetCellValue(sheet, cell, c.header)
		name, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, name, name, c.width)
	}

	// Data rows.
	for ri := range rows {
		r := &rows[ri]
		excelRow := headerRow + 1 + ri
		for ci, c := range cols {
			v := c.value(r)
			if v == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(ci+1, excelRow)
			if err != nil {
				return err
			}
			f.SetCellValue(sheet, cell, v)
		}
		if style, ok := rowStyle(r, errorStyle, noteStyle, blueStyle); ok {
			first, _ := excelize.CoordinatesToCellName(1, excelRow)
			last, _ := excelize.CoordinatesToCellName(len(cols), excelRow)
			f.SetCellStyle(sheet, first, last, style)
		}
	}

	if err := utils.EnsureDir(path); err != nil {
		return fmt.Errorf("creazione cartella report: %w", err)
	}
	return f.SaveAs(path)
}

// rowStyle picks the row background. Errors win over notes; rows whose only
// reconciliation message is informational stay yellow.
func rowStyle(r *types.ReportRow, errorStyle, noteStyle, blueStyle int) (int, bool) {
	yellowFrOnly := !r.HasError && yellowOnlyMessages[r.FranceErrors]

	switch {
	case r.HasError || (r.HasFranceError && !yellowFrOnly):
		return errorStyle, true
	case yellowFrOnly:
		return noteStyle, true
	case r.Note != "":
		return noteStyle, true
	case r.Volume != nil && *r.Volume <= blueVolumeMax:
		return blueStyle, true
	}
	return 0, false
}

func (w *Writer) columns(includeSource bool) []column {
	cols := []column{
		{"Data", 12, func(r *types.ReportRow) interface{} { return r.Date }},
		{"Ns Rif", 14, func(r *types.ReportRow) interface{} { return r.Ref }},
		{"Cliente", 28, func(r *types.ReportRow) interface{} { return r.Client }},
		{"Scarico", 55, func(r *types.ReportRow) interface{} { return r.DestAddress }},
		{"Numero DT/FT", 14, func(r *types.ReportRow) interface{} { return r.DocDisplay }},
		{"Causale", 10, func(r *types.ReportRow) interface{} { return r.Causal }},
		{"Nazione", 10, func(r *types.ReportRow) interface{} { return r.Country }},
		{"Dest Code", 10, func(r *types.ReportRow) interface{} { return r.DestCode }},
		{"Zona", 10, func(r *types.ReportRow) interface{} { return r.Zone }},
		{"Tariffa", 10, func(r *types.ReportRow) interface{} { return floatOrNil(r.Rate) }},
		{"Volume", 8, func(r *types.ReportRow) interface{} { return floatOrNil(r.Volume) }},
		{"Volume arrotondato", 16, func(r *types.ReportRow) interface{} { return floatOrNil(r.Quantity) }},
		{"Importo fatturato", 16, func(r *types.ReportRow) interface{} { return floatOrNil(r.Amount) }},
		{"Note", 30, func(r *types.ReportRow) interface{} { return r.Note }},
		{"Errori", 55, func(r *types.ReportRow) interface{} { return r.Errors }},
		{"Errori confronto volume", 55, func(r *types.ReportRow) interface{} { return r.FranceErrors }},
	}
	if includeSource {
		cols = append([]column{
			{"PDF", 20, func(r *types.ReportRow) interface{} { return r.Source }},
		}, cols...)
	}
	return cols
}

func fillStyle(f *excelize.File, color string) (int, error) {
	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
	})
}

func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
