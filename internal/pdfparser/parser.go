// =============================================================================
// Invoice Audit - Shipment Parser
// =============================================================================
//
// Line-scanning state machine that reconstructs structured shipment records
// from the loosely formatted text of the carrier's invoices.
//
// DOCUMENT SHAPE:
//   A table headed "DATA NS. RIF. DESCRIZIONE ..." lists one block per
//   shipment:
//     26/05/25 10680/SH Carico: VAINIERI SRL VIA ...
//     Scarico: MOBILI ROSSI SARL
//     RUE DE ... (38) - FR
//     DT 132/2025
//     TRASPORTO 12,300 12,300 95,50 1.174,65 E8C
//     PRENOTAZIONE SPEDIZIONE 1,000 0,67 0,67 E8C
//   The date column is sometimes extracted onto its own line; the Scarico
//   address spans a variable number of lines; service lines ("TRASPORTO
//   C/SERVIZIO") do not match the numeric pattern and must be annotated,
//   not rejected.
//
// ERROR POLICY:
//   Only two conditions are structural (fatal for the document): a missing
//   table header and a load-declaration line that matches neither accepted
//   form. Everything else degrades to a Note on the record.
//
// =============================================================================

package pdfparser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/smarche/invoice-audit/internal/types"
	"github.com/smarche/invoice-audit/pkg/utils"
)

// tableHeader marks the start of the shipment table.
const tableHeader = "DATA NS. RIF. DESCRIZIONE"

// pageFooter starts the per-page tax summary; it terminates the current
// shipment block.
const pageFooter = "COD. IVA IMPONIBILE"

// defaultRelayMarker identifies the relay warehouse whose deliveries are
// priced on the load address instead of the physical destination.
const defaultRelayMarker = "peressini"

var (
	dateOnlyRe     = regexp.MustCompile(`^\d{2}/\d{2}/\d{2}$`)
	loadWithDateRe = regexp.MustCompile(`^(\d{2}/\d{2}/\d{2})\s+(\S+)\s+Carico:(.*)$`)
	loadBareRe     = regexp.MustCompile(`^(\S+)\s+Carico:(.*)$`)
	transportRe    = regexp.MustCompile(`^TRASPORTO\s+([\d\.,]+)\s+([\d\.,]+)\s+([\d\.,]+)\s+([\d\.,]+)\s+(\S+)$`)
	reservationRe  = regexp.MustCompile(`^PRENOTAZIONE(?:\s+SPEDIZIONE)?\s+([\d\.,]+)\s+([\d\.,]+)\s+([\d\.,]+)\s+(\S+)$`)
)

// DestinationResolver resolves a delivery address into (country, destination
// code, tariff zone). *tariff.Table implements it.
type DestinationResolver interface {
	DestinationInfo(address string) (country, code, zone string)
}

// Parser extracts shipment records from invoice text.
type Parser struct {
	// Dest resolves destination addresses; required for the post-pass.
	Dest DestinationResolver

	// RelayMarker re-routes pricing to the load address when it appears in
	// the destination text (case-insensitive).
	RelayMarker string
}

// New returns a Parser with the default relay marker.
func New(dest DestinationResolver) *Parser {
	return &Parser{Dest: dest, RelayMarker: defaultRelayMarker}
}

// ParseFile extracts the PDF text and parses it. The file's base name is
// recorded as each record's Source.
func (p *Parser) ParseFile(path string) ([]types.ShipmentRecord, error) {
	lines, err := ExtractLines(path)
	if err != nil {
		return nil, err
	}
	return p.ParseLines(baseName(path), lines)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

// scanState tags what the scanner is currently accumulating.
type scanState int

const (
	// awaitingLoad: between shipments; only a load declaration (or a
	// date-only line) is meaningful.
	awaitingLoad scanState = iota

	// inShipment: filling the current record's detail lines.
	inShipment

	// inDestination: appending lines to the multi-line Scarico block until a
	// block boundary.
	inDestination
)

// scanner carries the mutable parse state; each shipment is flushed as an
// immutable record the moment the next block starts.
type scanner struct {
	source  string
	state   scanState
	current *types.ShipmentRecord
	out     []types.ShipmentRecord

	// pendingDate is a date seen on its own line, waiting for its load
	// declaration; lastDate is the most recent date seen anywhere, reused
	// when a load line omits the date column.
	pendingDate string
	lastDate    string
}

// ParseLines runs the scanner over the document's text lines.
// It fails only when the table header is missing or a load-declaration line
// is malformed; everything else is captured in the records.
func (p *Parser) ParseLines(source string, lines []string) ([]types.ShipmentRecord, error) {
	start := -1
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), tableHeader) {
			start = i
			break
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("intestazione %q non trovata", tableHeader)
	}

	sc := &scanner{source: source, state: awaitingLoad}
	for _, raw := range lines[start+1:] {
		if err := sc.step(strings.TrimSpace(raw)); err != nil {
			return nil, err
		}
	}
	sc.flush()

	p.resolveDestinations(sc.out)
	return sc.out, nil
}

// step consumes one line.
func (sc *scanner) step(line string) error {
	// The Scarico block consumes every line, stray date columns included,
	// until one of the enumerated boundaries closes it.
	if sc.state == inDestination {
		if !isBlockBoundary(line) {
			if line != "" {
				sc.current.DestAddress += " " + line
			}
			return nil
		}
		// Boundary line: close the address block and handle the line below.
		sc.state = inShipment
	}

	// A date on its own line closes the current block and is carried over to
	// the next load declaration.
	if dateOnlyRe.MatchString(line) {
		sc.flush()
		sc.pendingDate = line
		sc.lastDate = line
		return nil
	}

	// Page-end tax summary: the table resumes after the next header, but any
	// accumulated shipment is complete.
	if strings.HasPrefix(line, pageFooter) {
		sc.flush()
		return nil
	}

	if isLoadLine(line) {
		sc.flush()
		return sc.startShipment(line)
	}

	if sc.current == nil {
		return nil
	}

	// Occasional second line of the load address (e.g. a lone "IT") before
	// any detail line.
	if sc.current.DestAddress == "" && sc.current.LoadAddress != "" &&
		line != "" && !strings.HasPrefix(line, "Scarico:") && !isBlockBoundary(line) {
		sc.current.LoadAddress += " " + line
		return nil
	}

	switch {
	case strings.HasPrefix(line, "Scarico:"):
		sc.current.DestAddress = line
		sc.state = inDestination

	case strings.HasPrefix(line, "DT ") || strings.HasPrefix(line, "FT "):
		tag, number, _ := strings.Cut(line, " ")
		sc.current.Doc = types.DocumentID{Tag: tag, Number: strings.TrimSpace(number)}

	case strings.HasPrefix(line, "TRASPORTO"):
		sc.readTransport(line)

	case strings.HasPrefix(line, "PRENOTAZIONE"):
		sc.readReservation(line)
	}
	// Other lines (FUEL TAX, DOGANA, ...) are irrelevant to the audit.
	return nil
}

// startShipment opens a new accumulator from a load-declaration line.
func (sc *scanner) startShipment(line string) error {
	var date, ref, rest string
	if m := loadWithDateRe.FindStringSubmatch(line); m != nil {
		date, ref, rest = m[1], m[2], m[3]
		sc.lastDate = date
		sc.pendingDate = ""
	} else if m := loadBareRe.FindStringSubmatch(line); m != nil {
		ref, rest = m[1], m[2]
		date = sc.pendingDate
		if date == "" {
			date = sc.lastDate
		}
		sc.pendingDate = ""
	} else {
		return fmt.Errorf("riga 'Carico' non riconosciuta: %s", line)
	}

	sc.current = &types.ShipmentRecord{
		Source:      sc.source,
		Date:        date,
		Ref:         ref,
		LoadAddress: strings.TrimSpace(rest),
	}
	sc.state = inShipment
	return nil
}

// readTransport parses the 5-field TRASPORTO line (volume, quantity, unit
// price, total, tax code). A non-standard service line leaves the numeric
// fields unset and annotates the record instead: the row becomes
// non-checkable but parsing continues.
func (sc *scanner) readTransport(line string) {
	m := transportRe.FindStringSubmatch(line)
	if m == nil {
		sc.current.TransportVolume = nil
		sc.current.TransportQuantity = nil
		sc.current.TransportUnit = nil
		sc.current.TransportTotal = nil
		sc.current.TransportTaxCode = ""
		sc.current.Note = "Riga TRASPORTO non riconosciuta: " + line
		return
	}
	fields, err := parseLocaleFields(m[1:5])
	if err != nil {
		sc.current.Note = "Riga TRASPORTO non riconosciuta: " + line
		return
	}
	sc.current.TransportVolume = &fields[0]
	sc.current.TransportQuantity = &fields[1]
	sc.current.TransportUnit = &fields[2]
	sc.current.TransportTotal = &fields[3]
	sc.current.TransportTaxCode = m[5]
}

// readReservation parses the 4-field PRENOTAZIONE [SPEDIZIONE] line used by
// the merger; mismatches append a note rather than failing.
func (sc *scanner) readReservation(line string) {
	m := reservationRe.FindStringSubmatch(line)
	if m == nil {
		sc.appendNote("Riga PRENOTAZIONE non riconosciuta: " + line)
		return
	}
	fields, err := parseLocaleFields(m[1:4])
	if err != nil {
		sc.appendNote("Riga PRENOTAZIONE non riconosciuta: " + line)
		return
	}
	sc.current.ReservationQuantity = &fields[0]
	sc.current.ReservationUnit = &fields[1]
	sc.current.ReservationTotal = &fields[2]
	sc.current.ReservationTaxCode = m[4]
}

func (sc *scanner) appendNote(note string) {
	if sc.current.Note == "" {
		sc.current.Note = note
	} else {
		sc.current.Note += "; " + note
	}
}

// flush moves the current accumulator, if any, into the output sequence.
func (sc *scanner) flush() {
	if sc.current != nil {
		sc.out = append(sc.out, *sc.current)
	}
	sc.current = nil
	sc.state = awaitingLoad
}

// =============================================================================
// LINE CLASSIFICATION
// =============================================================================

func isLoadLine(line string) bool {
	return loadWithDateRe.MatchString(line) || loadBareRe.MatchString(line)
}

// isBlockBoundary reports whether a line terminates a multi-line destination
// block: any line that starts the next piece of shipment detail.
func isBlockBoundary(line string) bool {
	line = strings.TrimSpace(line)
	if isLoadLine(line) {
		return true
	}
	for _, prefix := range []string{
		"DT ", "FT ",
		"TRASPORTO", "FUEL TAX", "PRENOTAZIONE", "DOGANA",
		"STORNO", "RECUPERO",
		"COD. IVA",
	} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func parseLocaleFields(raw []string) ([]float64, error) {
	out := make([]float64, len(raw))
	for i, s := range raw {
		v, err := utils.ParseLocaleFloat(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// =============================================================================
// DESTINATION POST-PASS
// =============================================================================

// resolveDestinations derives the physical destination (country, code, zone)
// for each record, plus the rate-determining one: identical by default, but
// relay-warehouse deliveries are priced on the load address.
func (p *Parser) resolveDestinations(records []types.ShipmentRecord) {
	marker := strings.ToLower(p.RelayMarker)
	for i := range records {
		r := &records[i]
		r.Country, r.DestCode, r.Zone = p.Dest.DestinationInfo(r.DestAddress)

		tariffAddr := r.DestAddress
		if marker != "" && strings.Contains(strings.ToLower(r.DestAddress), marker) && r.LoadAddress != "" {
			tariffAddr = r.LoadAddress
		}
		r.TariffCountry, r.TariffDestCode, r.TariffZone = p.Dest.DestinationInfo(tariffAddr)
	}
}

func baseName(path string) string {
	if i := strings.LastIndexAny(path, `/\`); i >= 0 {
		return path[i+1:]
	}
	return path
}
