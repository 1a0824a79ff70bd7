// =============================================================================
// Invoice Audit - Tariff Workbook Loader
// =============================================================================
//
// Builds a Table from the carrier's rate workbook. The workbook has one sheet
// per country; sheet names vary between the Italian and the ISO spelling, so
// each country is looked up through a candidate list.
//
// EXPECTED SHEET LAYOUT (FR / UK / BE / CH):
//   | Zona | codici postali | da 0 a 5 m^3 | da 5,01 a 10 m^3 | da 10,01 a 15 m^3 | da 15,01 m^3 |
// DE uses only two band columns ("da 0 10 m^3", "da 10,01 m^3"); IE has a
// single "Tariffa" column. "codici postali" holds hyphen-separated code
// lists ("01-02-03"); the DE sheet sometimes separates codes with spaces.
//
// =============================================================================

package tariff

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/smarche/invoice-audit/pkg/utils"
)

// Sheet name candidates per country, tried in order.
var sheetCandidates = map[string][]string{
	"FR": {"FR", "Francia"},
	"UK": {"UK", "GB", "Regno Unito"},
	"DE": {"DE", "Germania"},
	"IE": {"IE", "Irlanda"},
	"CH": {"CH", "Svizzera"},
	"BE": {"BE", "Belgio"},
}

// Band column headers for the four-band countries.
var fourBandColumns = map[string]string{
	Band0to5:   "da 0 a 5 m^3",
	Band5to10:  "da 5,01 a 10 m^3",
	Band10to15: "da 10,01 a 15 m^3",
	BandOver15: "da 15,01 m^3",
}

// Band column headers for the DE sheet.
var twoBandColumns = map[string]string{
	Band0to10:  "da 0 10 m^3",
	BandOver10: "da 10,01 m^3",
}

const (
	zoneColumn   = "zona"
	postalColumn = "codici postali"
	ieRateColumn = "tariffa"
)

// Load reads the tariff workbook and builds an immutable Table.
// Missing sheets and missing required columns are structural errors; empty
// price cells are not (they surface later as nil rates).
func Load(path string, special SpecialRule) (*Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("apertura tariffario %s: %w", path, err)
	}
	defer f.Close()

	t := &Table{
		FRZones: map[string]string{},
		UKZones: map[string]string{},
		DEZones: map[string]string{},
		Special: special,
	}

	fr, err := readSheet(f, "FR")
	if err != nil {
		return nil, err
	}
	t.FR, err = zonedRates(fr, fourBandColumns)
	if err != nil {
		return nil, fmt.Errorf("foglio FR: %w", err)
	}
	fillZoneMap(fr, t.FRZones, false)

	uk, err := readSheet(f, "UK")
	if err != nil {
		return nil, err
	}
	t.UK, err = zonedRates(uk, fourBandColumns)
	if err != nil {
		return nil, fmt.Errorf("foglio UK: %w", err)
	}
	fillZoneMap(uk, t.UKZones, false)

	de, err := readSheet(f, "DE")
	if err != nil {
		return nil, err
	}
	t.DE, err = zonedRates(de, twoBandColumns)
	if err != nil {
		return nil, fmt.Errorf("foglio DE: %w", err)
	}
	// The DE sheet sometimes lists postal prefixes space-separated.
	fillZoneMap(de, t.DEZones, true)

	be, err := readSheet(f, "BE")
	if err != nil {
		return nil, err
	}
	t.BE = countryWideRates(be, fourBandColumns)

	ch, err := readSheet(f, "CH")
	if err != nil {
		return nil, err
	}
	t.CH = countryWideRates(ch, fourBandColumns)

	ie, err := readSheet(f, "IE")
	if err != nil {
		return nil, err
	}
	if len(ie.rows) > 0 {
		t.IERate = ie.cellFloat(0, ieRateColumn)
	}

	return t, nil
}

// =============================================================================
// SHEET ACCESS
// =============================================================================

// sheet is one country sheet: the header row mapped to column indexes plus
// the data rows below it.
type sheet struct {
	name    string
	columns map[string]int // normalized header -> column index
	rows    [][]string
}

func readSheet(f *excelize.File, country string) (*sheet, error) {
	available := f.GetSheetList()
	for _, name := range sheetCandidates[country] {
		for _, have := range available {
			if strings.EqualFold(strings.TrimSpace(have), name) {
				return newSheet(f, have)
			}
		}
	}
	return nil, fmt.Errorf("foglio %v non trovato nel tariffario (disponibili: %v)",
		sheetCandidates[country], available)
}

func newSheet(f *excelize.File, name string) (*sheet, error) {
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("lettura foglio %s: %w", name, err)
	}
	s := &sheet{name: name, columns: map[string]int{}}
	if len(rows) == 0 {
		return s, nil
	}
	for i, header := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(header))
		if key != "" {
			if _, dup := s.columns[key]; !dup {
				s.columns[key] = i
			}
		}
	}
	s.rows = rows[1:]
	return s, nil
}

// cell returns the trimmed cell at (row, column header), "" when absent.
func (s *sheet) cell(row int, column string) string {
	idx, ok := s.columns[column]
	if !ok || row >= len(s.rows) || idx >= len(s.rows[row]) {
		return ""
	}
	return strings.TrimSpace(s.rows[row][idx])
}

func (s *sheet) cellFloat(row int, column string) *float64 {
	return utils.ParseCellFloat(s.cell(row, column))
}

// =============================================================================
// TABLE CONSTRUCTION
// =============================================================================

// zonedRates builds zone -> band -> price from a zoned country sheet.
func zonedRates(s *sheet, bands map[string]string) (Rates, error) {
	if _, ok := s.columns[zoneColumn]; !ok {
		return nil, fmt.Errorf("colonna 'Zona' non trovata")
	}
	rates := Rates{}
	for i := range s.rows {
		zone := s.cell(i, zoneColumn)
		if zone == "" {
			continue
		}
		prices := map[string]float64{}
		for band, column := range bands {
			if v := s.cellFloat(i, column); v != nil {
				prices[band] = *v
			}
		}
		rates[zone] = prices
	}
	return rates, nil
}

// countryWideRates builds the single pseudo-zone table for BE/CH from the
// sheet's first data row.
func countryWideRates(s *sheet, bands map[string]string) Rates {
	prices := map[string]float64{}
	if len(s.rows) > 0 {
		for band, column := range bands {
			if v := s.cellFloat(0, column); v != nil {
				prices[band] = *v
			}
		}
	}
	return Rates{ZoneAll: prices}
}

// fillZoneMap populates code -> zone from the "codici postali" column.
// Codes are hyphen-separated; with spaceSeparated the sheet may also use
// spaces between codes.
func fillZoneMap(s *sheet, dst map[string]string, spaceSeparated bool) {
	for i := range s.rows {
		zone := s.cell(i, zoneColumn)
		if zone == "" {
			continue
		}
		codes := s.cell(i, postalColumn)
		if spaceSeparated {
			codes = strings.ReplaceAll(codes, " ", "-")
		}
		for _, code := range strings.Split(codes, "-") {
			code = strings.TrimSpace(code)
			if code != "" {
				dst[code] = zone
			}
		}
	}
}
