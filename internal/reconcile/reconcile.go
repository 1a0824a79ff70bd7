// =============================================================================
// Invoice Audit - France Volume Reconciliation
// =============================================================================
//
// Cross-checks the volumes billed on the invoice against the internal volumes
// workbook (ex "FATTURE FRANCIA"). The workbook keys shipments by DDT number
// or by invoice number; the invoice side may split one DDT across several
// transport lines, so the comparison sums the PDF volumes per key before
// comparing, both sides rounded to one decimal.
//
// Only France shipments take part in the comparison; everything else gets an
// informational annotation instead.
//
// =============================================================================

package reconcile

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/smarche/invoice-audit/internal/types"
	"github.com/smarche/invoice-audit/pkg/utils"
)

// Workbook layout defaults. The header normally sits on row 8; when the key
// columns are not there the loader scans the first ScanRows rows for it.
const (
	DefaultHeaderRow = 7 // zero-based
	DefaultScanRows  = 25
)

// Entry is the workbook's view of one DDT or invoice number. A nil Volume
// always comes with a non-empty Err explaining why the key is unusable.
type Entry struct {
	Volume *float64
	Causal string
	Client string
	Err    string
}

// Index holds the volumes workbook keyed both ways.
type Index struct {
	ByDDT     map[string]Entry
	ByInvoice map[string]Entry
}

// Loader reads the volumes workbook.
type Loader struct {
	HeaderRow int // zero-based row of the header, default 7
	ScanRows  int // rows scanned when autodetecting the header
}

// NewLoader returns a Loader with the default layout.
func NewLoader() *Loader {
	return &Loader{HeaderRow: DefaultHeaderRow, ScanRows: DefaultScanRows}
}

// Load reads the workbook's first sheet and builds the two key indexes.
// Structural problems (missing Volume/CAU/key columns) fail the load; per-key
// inconsistencies are recorded on the entries instead.
func (l *Loader) Load(path string) (*Index, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("nessun foglio nel file excel")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}

	headerIdx := l.findHeader(rows)
	if headerIdx < 0 || headerIdx >= len(rows) {
		return nil, fmt.Errorf("Colonna volume non trovata nel file excel")
	}
	header := rows[headerIdx]

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	ix := &Index{
		ByDDT:     map[string]Entry{},
		ByInvoice: map[string]Entry{},
	}
	ddtRows := map[string][]rowValues{}
	ftRows := map[string][]rowValues{}
	var ddtOrder, ftOrder []string

	for _, row := range rows[headerIdx+1:] {
		ddtKey := ""
		if cols.ddt >= 0 {
			ddtKey = types.NormalizeSheetID(cellAt(row, cols.ddt))
		}
		ftKey := ""
		if cols.invoice >= 0 {
			ftKey = types.NormalizeSheetID(cellAt(row, cols.invoice))
		}
		if ddtKey == "" && ftKey == "" {
			continue
		}

		v := rowValues{
			causal: strings.TrimSpace(cellAt(row, cols.causal)),
		}
		if cols.client >= 0 {
			v.client = strings.TrimSpace(cellAt(row, cols.client))
		}
		v.volume = utils.ParseCellFloat(cellAt(row, cols.volume))

		if ddtKey != "" {
			if _, seen := ddtRows[ddtKey]; !seen {
				ddtOrder = append(ddtOrder, ddtKey)
			}
			ddtRows[ddtKey] = append(ddtRows[ddtKey], v)
		}
		if ftKey != "" {
			if _, seen := ftRows[ftKey]; !seen {
				ftOrder = append(ftOrder, ftKey)
			}
			ftRows[ftKey] = append(ftRows[ftKey], v)
		}
	}

	for _, k := range ddtOrder {
		ix.ByDDT[k] = buildEntry(ddtRows[k], "ddt")
	}
	for _, k := range ftOrder {
		ix.ByInvoice[k] = buildEntry(ftRows[k], "fattura")
	}
	return ix, nil
}

// findHeader returns the zero-based header row: the configured one when it
// carries the exact key column names, otherwise the first scanned row that
// does. When no row matches exactly, the configured row is still the header
// and resolveColumns gets to try its fuzzy matchers on it.
func (l *Loader) findHeader(rows [][]string) int {
	if l.HeaderRow < len(rows) && hasKeyColumns(rows[l.HeaderRow]) {
		return l.HeaderRow
	}
	limit := l.ScanRows
	if limit > len(rows) {
		limit = len(rows)
	}
	for i := 0; i < limit; i++ {
		if hasKeyColumns(rows[i]) {
			return i
		}
	}
	if l.HeaderRow < len(rows) {
		return l.HeaderRow
	}
	return -1
}

func hasKeyColumns(row []string) bool {
	var hasVolume, hasKey bool
	for _, c := range row {
		switch strings.ToLower(strings.TrimSpace(c)) {
		case "volume":
			hasVolume = true
		case "ddt", "fattura":
			hasKey = true
		}
	}
	return hasVolume && hasKey
}

// =============================================================================
// COLUMN RESOLUTION
// =============================================================================

type columns struct {
	ddt     int
	invoice int
	volume  int
	causal  int
	client  int
}

// resolveColumns maps the header cells to column indexes: exact names first,
// fuzzy "contains" fallbacks second. Volume, CAU and at least one key column
// are mandatory.
func resolveColumns(header []string) (columns, error) {
	cols := columns{ddt: -1, invoice: -1, volume: -1, causal: -1, client: -1}
	norm := make([]string, len(header))
	for i, c := range header {
		norm[i] = strings.ToLower(strings.TrimSpace(c))
	}

	exact := func(name string) int {
		for i, c := range norm {
			if c == name {
				return i
			}
		}
		return -1
	}
	contains := func(sub string) int {
		for i, c := range norm {
			if strings.Contains(c, sub) {
				return i
			}
		}
		return -1
	}

	cols.ddt = exact("ddt")

	cols.invoice = exact("fattura")
	if cols.invoice < 0 {
		cols.invoice = contains("fattura")
	}

	cols.volume = exact("volume")
	if cols.volume < 0 {
		for _, alias := range []string{"vol", "mc", "m3", "volume m3", "volume (m^3)"} {
			if i := exact(alias); i >= 0 {
				cols.volume = i
				break
			}
		}
	}
	if cols.volume < 0 {
		cols.volume = contains("vol")
	}
	if cols.volume < 0 {
		return cols, fmt.Errorf("Colonna volume non trovata nel file excel")
	}

	cols.causal = exact("cau")
	if cols.causal < 0 {
		cols.causal = contains("cau")
	}
	if cols.causal < 0 {
		return cols, fmt.Errorf("Colonna 'CAU' non trovata nel file excel")
	}

	cols.client = exact("cliente")
	if cols.client < 0 {
		cols.client = contains("cliente")
	}

	if cols.ddt < 0 && cols.invoice < 0 {
		return cols, fmt.Errorf("Colonna 'DDT' o 'Fattura' non trovata nel file excel")
	}
	return cols, nil
}

func cellAt(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// =============================================================================
// ENTRY AGGREGATION
// =============================================================================

type rowValues struct {
	volume *float64
	causal string
	client string
}

// buildEntry collapses the workbook rows sharing one key. Causal and client
// take the first non-empty value; disagreements and missing or conflicting
// volumes become entry errors instead of values.
func buildEntry(rows []rowValues, kindLabel string) Entry {
	var e Entry

	addErr := func(msg string) {
		if e.Err == "" {
			e.Err = msg
		} else if !strings.Contains(e.Err, msg) {
			e.Err += " | " + msg
		}
	}

	e.Causal = firstDistinct(rows, func(v rowValues) string { return v.causal },
		func() { addErr("errore CAU in file excel: causali diverse per lo stesso " + kindLabel) })
	e.Client = firstDistinct(rows, func(v rowValues) string { return v.client },
		func() { addErr("errore Cliente in file excel: clienti diversi per lo stesso " + kindLabel) })

	var vols []float64
	for _, v := range rows {
		if v.volume != nil {
			vols = append(vols, utils.Round1(*v.volume))
		}
	}
	switch {
	case len(vols) == 0:
		addErr("errore volume in file excel: volume mancante")
	default:
		for _, v := range vols[1:] {
			if v != vols[0] {
				addErr("errore volume in file excel: volumi diversi per lo stesso " + kindLabel)
				return e
			}
		}
		e.Volume = &vols[0]
	}
	return e
}

// firstDistinct returns the first non-empty projected value; onConflict fires
// when more than one distinct non-empty value exists.
func firstDistinct(rows []rowValues, get func(rowValues) string, onConflict func()) string {
	var uniq []string
	for _, v := range rows {
		s := get(v)
		if s == "" {
			continue
		}
		known := false
		for _, u := range uniq {
			if u == s {
				known = true
				break
			}
		}
		if !known {
			uniq = append(uniq, s)
		}
	}
	if len(uniq) == 0 {
		return ""
	}
	if len(uniq) > 1 {
		onConflict()
	}
	return uniq[0]
}

// =============================================================================
// CROSS-CHECK
// =============================================================================

// FillClientCausal copies the workbook's Cliente/CAU onto the records, keyed
// by the record's document reference. Client names feed the special tariff
// rules, so this runs before validation.
func (ix *Index) FillClientCausal(records []types.ShipmentRecord) {
	for i := range records {
		r := &records[i]
		switch strings.ToUpper(strings.TrimSpace(r.Doc.Tag)) {
		case types.TagDeliveryNote:
			if e, ok := ix.ByDDT[r.DDT6]; ok {
				r.Causal = e.Causal
				r.Client = e.Client
			}
		case types.TagInvoice:
			if e, ok := ix.ByInvoice[r.FT6]; ok {
				r.Causal = e.Causal
				r.Client = e.Client
			}
		}
	}
}

// Check compares the billed volumes against the workbook for France shipments
// and returns the annotation messages keyed by record index. Non-France
// records with a resolved country are annotated as out of scope.
func (ix *Index) Check(records []types.ShipmentRecord) map[int][]string {
	msgs := map[int][]string{}
	add := func(i int, m string) { msgs[i] = append(msgs[i], m) }

	byDDT := map[string][]int{}
	byFT := map[string][]int{}
	var ddtKeys, ftKeys []string

	for i := range records {
		r := &records[i]
		if r.Country != "FR" {
			if r.Country != "" {
				add(i, "non è una spedizione in Francia")
			}
			continue
		}

		switch strings.ToUpper(strings.TrimSpace(r.Doc.Tag)) {
		case types.TagDeliveryNote:
			key := r.DDT6
			if key == "" {
				var problem string
				key, problem = r.Doc.Normalize(types.TagDeliveryNote)
				if problem != "" {
					add(i, problem)
					continue
				}
			}
			e, ok := ix.ByDDT[key]
			if ok && e.Err != "" {
				add(i, e.Err)
				continue
			}
			if !ok || e.Volume == nil {
				add(i, "DDT non trovato nel file excel")
				continue
			}
			if len(byDDT[key]) == 0 {
				ddtKeys = append(ddtKeys, key)
			}
			byDDT[key] = append(byDDT[key], i)

		case types.TagInvoice:
			key := r.FT6
			if key == "" {
				var problem string
				key, problem = r.Doc.Normalize(types.TagInvoice)
				if problem != "" {
					add(i, problem)
					continue
				}
			}
			e, ok := ix.ByInvoice[key]
			if ok && e.Err != "" {
				add(i, e.Err)
				continue
			}
			if !ok || e.Volume == nil {
				add(i, "Fattura non trovata nel file excel")
				continue
			}
			if len(byFT[key]) == 0 {
				ftKeys = append(ftKeys, key)
			}
			byFT[key] = append(byFT[key], i)

		default:
			add(i, "Numero DT/FT non presente nella fattura")
		}
	}

	// One workbook row can cover several invoice lines: compare the summed
	// PDF volume per key.
	compare := func(keys []string, groups map[string][]int, index map[string]Entry) {
		for _, key := range keys {
			idxs := groups[key]
			var pdfVol float64
			for _, i := range idxs {
				if records[i].TransportVolume != nil {
					pdfVol += *records[i].TransportVolume
				}
			}
			xlsVol := *index[key].Volume
			if utils.Round1(pdfVol) != utils.Round1(xlsVol) {
				msg := fmt.Sprintf("volume diverso tra fattura e file excel (PDF=%.1f / Excel=%.1f)",
					utils.Round1(pdfVol), utils.Round1(xlsVol))
				for _, i := range idxs {
					add(i, msg)
				}
			}
		}
	}
	compare(ddtKeys, byDDT, ix.ByDDT)
	compare(ftKeys, byFT, ix.ByInvoice)

	return msgs
}
