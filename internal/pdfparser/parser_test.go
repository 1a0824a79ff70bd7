package pdfparser

import (
	"strings"
	"testing"
)

// stubDest resolves destinations from the country marker in the text, enough
// to exercise the parser's post-pass without a tariff workbook.
type stubDest struct{}

func (stubDest) DestinationInfo(address string) (string, string, string) {
	up := strings.ToUpper(address)
	switch {
	case strings.Contains(up, "- FR"):
		return "FR", "69", "B"
	case strings.Contains(up, "- DE"):
		return "DE", "10", "1"
	}
	return "", "", ""
}

// TestParseLinesSingleShipment checks a complete block parses field by field.
func TestParseLinesSingleShipment(t *testing.T) {
	t.Parallel()

	lines := []string{
		"FATTURA N. 2025/000123",
		"DATA NS. RIF. DESCRIZIONE IMPORTO",
		"26/05/25 10680/SH Carico: VAINIERI SRL VIA DELLE INDUSTRIE 4 PORDENONE",
		"Scarico: MOBILI ROSSI SARL",
		"RUE DE LA GARE 12",
		"LYON (69) - FR",
		"DT 132/2025",
		"TRASPORTO 12,300 12,300 95,50 1.174,65 E8C",
		"PRENOTAZIONE SPEDIZIONE 1,000 0,67 0,67 E8C",
	}

	p := New(stubDest{})
	records, err := p.ParseLines("fattura.pdf", lines)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	r := records[0]

	if r.Source != "fattura.pdf" {
		t.Errorf("Source = %q", r.Source)
	}
	if r.Date != "26/05/25" || r.Ref != "10680/SH" {
		t.Errorf("Date/Ref = %q/%q", r.Date, r.Ref)
	}
	if !strings.HasPrefix(r.LoadAddress, "VAINIERI SRL") {
		t.Errorf("LoadAddress = %q", r.LoadAddress)
	}
	want := "Scarico: MOBILI ROSSI SARL RUE DE LA GARE 12 LYON (69) - FR"
	if r.DestAddress != want {
		t.Errorf("DestAddress = %q, want %q", r.DestAddress, want)
	}
	if r.Doc.Tag != "DT" || r.Doc.Number != "132/2025" {
		t.Errorf("Doc = %+v", r.Doc)
	}
	if r.TransportVolume == nil || *r.TransportVolume != 12.3 {
		t.Errorf("TransportVolume = %v", r.TransportVolume)
	}
	if r.TransportQuantity == nil || *r.TransportQuantity != 12.3 {
		t.Errorf("TransportQuantity = %v", r.TransportQuantity)
	}
	if r.TransportUnit == nil || *r.TransportUnit != 95.5 {
		t.Errorf("TransportUnit = %v", r.TransportUnit)
	}
	if r.TransportTotal == nil || *r.TransportTotal != 1174.65 {
		t.Errorf("TransportTotal = %v", r.TransportTotal)
	}
	if r.TransportTaxCode != "E8C" {
		t.Errorf("TransportTaxCode = %q", r.TransportTaxCode)
	}
	if r.ReservationUnit == nil || *r.ReservationUnit != 0.67 {
		t.Errorf("ReservationUnit = %v", r.ReservationUnit)
	}
	if r.Country != "FR" || r.DestCode != "69" || r.Zone != "B" {
		t.Errorf("destination = %q/%q/%q", r.Country, r.DestCode, r.Zone)
	}
	if r.TariffCountry != "FR" {
		t.Errorf("TariffCountry = %q, want FR", r.TariffCountry)
	}
	if r.Note != "" {
		t.Errorf("Note = %q, want empty", r.Note)
	}
}

// TestParseLinesDateCarryOver checks the detached date column and date reuse.
func TestParseLinesDateCarryOver(t *testing.T) {
	t.Parallel()

	lines := []string{
		"DATA NS. RIF. DESCRIZIONE",
		"26/05/25",
		"10680/SH Carico: VAINIERI SRL",
		"Scarico: PRIMO (69) - FR",
		"TRASPORTO 1,000 1,000 95,50 95,50 E8C",
		"10681/SH Carico: VAINIERI SRL",
		"Scarico: SECONDO (69) - FR",
		"TRASPORTO 2,000 2,000 95,50 191,00 E8C",
		"27/05/25",
		"10682/SH Carico: VAINIERI SRL",
		"Scarico: TERZO (69) - FR",
		"TRASPORTO 3,000 3,000 95,50 286,50 E8C",
	}

	p := New(stubDest{})
	records, err := p.ParseLines("fattura.pdf", lines)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("records = %d, want 3", len(records))
	}
	wantDates := []string{"26/05/25", "26/05/25", "27/05/25"}
	for i, want := range wantDates {
		if records[i].Date != want {
			t.Errorf("records[%d].Date = %q, want %q", i, records[i].Date, want)
		}
	}
}

// TestParseLinesDateInsideDestination checks a stray date column extracted
// into the middle of a Scarico block joins the address instead of truncating
// the record.
func TestParseLinesDateInsideDestination(t *testing.T) {
	t.Parallel()

	lines := []string{
		"DATA NS. RIF. DESCRIZIONE",
		"26/05/25 10680/SH Carico: VAINIERI SRL",
		"Scarico: MOBILI ROSSI SARL",
		"26/05/25",
		"RUE DE LYON (69) - FR",
		"TRASPORTO 12,300 12,300 95,50 1.174,65 E8C",
	}

	p := New(stubDest{})
	records, err := p.ParseLines("fattura.pdf", lines)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	r := records[0]
	want := "Scarico: MOBILI ROSSI SARL 26/05/25 RUE DE LYON (69) - FR"
	if r.DestAddress != want {
		t.Errorf("DestAddress = %q, want %q", r.DestAddress, want)
	}
	if r.Country != "FR" {
		t.Errorf("Country = %q, want FR", r.Country)
	}
	if r.TransportVolume == nil || *r.TransportVolume != 12.3 {
		t.Errorf("TransportVolume = %v", r.TransportVolume)
	}
}

// TestParseLinesServiceLine checks unrecognized TRASPORTO lines degrade to a
// note instead of failing the document.
func TestParseLinesServiceLine(t *testing.T) {
	t.Parallel()

	lines := []string{
		"DATA NS. RIF. DESCRIZIONE",
		"26/05/25 10680/SH Carico: VAINIERI SRL",
		"Scarico: MOBILI ROSSI (69) - FR",
		"TRASPORTO C/SERVIZIO 50,00 E8C",
	}

	p := New(stubDest{})
	records, err := p.ParseLines("fattura.pdf", lines)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	r := records[0]
	if r.Checkable() {
		t.Error("service line record should not be checkable")
	}
	if !strings.HasPrefix(r.Note, "Riga TRASPORTO non riconosciuta:") {
		t.Errorf("Note = %q", r.Note)
	}
}

// TestParseLinesUnrecognizedReservation checks reservation notes append to
// existing ones.
func TestParseLinesUnrecognizedReservation(t *testing.T) {
	t.Parallel()

	lines := []string{
		"DATA NS. RIF. DESCRIZIONE",
		"26/05/25 10680/SH Carico: VAINIERI SRL",
		"Scarico: MOBILI ROSSI (69) - FR",
		"TRASPORTO 1,000 1,000 95,50 95,50 E8C",
		"PRENOTAZIONE SPEDIZIONE GRATUITA E8C",
	}

	p := New(stubDest{})
	records, err := p.ParseLines("fattura.pdf", lines)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	r := records[0]
	if !strings.HasPrefix(r.Note, "Riga PRENOTAZIONE non riconosciuta:") {
		t.Errorf("Note = %q", r.Note)
	}
	if r.ReservationUnit != nil {
		t.Errorf("ReservationUnit = %v, want nil", r.ReservationUnit)
	}
}

// TestParseLinesPageFooter checks the tax summary terminates the open block.
func TestParseLinesPageFooter(t *testing.T) {
	t.Parallel()

	lines := []string{
		"DATA NS. RIF. DESCRIZIONE",
		"26/05/25 10680/SH Carico: VAINIERI SRL",
		"Scarico: MOBILI ROSSI (69) - FR",
		"TRASPORTO 1,000 1,000 95,50 95,50 E8C",
		"COD. IVA IMPONIBILE IMPOSTA",
		"E8C 95,50 0,00",
	}

	p := New(stubDest{})
	records, err := p.ParseLines("fattura.pdf", lines)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("records = %d, want 1", len(records))
	}
	// The tax summary lines must not leak into the destination.
	if strings.Contains(records[0].DestAddress, "IMPONIBILE") {
		t.Errorf("DestAddress = %q", records[0].DestAddress)
	}
}

// TestParseLinesRelayWarehouse checks relay deliveries price on the load
// address while keeping the physical destination.
func TestParseLinesRelayWarehouse(t *testing.T) {
	t.Parallel()

	lines := []string{
		"DATA NS. RIF. DESCRIZIONE",
		"26/05/25 10680/SH Carico: MAGAZZINO CENTRALE BERLIN (10) - DE",
		"Scarico: PERESSINI SPA",
		"DEPOT LYON (69) - FR",
		"TRASPORTO 4,000 4,000 95,50 382,00 E8C",
	}

	p := New(stubDest{})
	records, err := p.ParseLines("fattura.pdf", lines)
	if err != nil {
		t.Fatalf("ParseLines: %v", err)
	}
	r := records[0]
	if r.Country != "FR" {
		t.Errorf("Country = %q, want FR", r.Country)
	}
	if r.TariffCountry != "DE" || r.TariffDestCode != "10" || r.TariffZone != "1" {
		t.Errorf("tariff destination = %q/%q/%q, want DE/10/1",
			r.TariffCountry, r.TariffDestCode, r.TariffZone)
	}
}

// TestParseLinesMissingHeader checks a document without the shipment table
// fails outright.
func TestParseLinesMissingHeader(t *testing.T) {
	t.Parallel()

	p := New(stubDest{})
	_, err := p.ParseLines("x.pdf", []string{"FATTURA", "26/05/25 1/SH Carico: X"})
	if err == nil {
		t.Fatal("expected error for missing table header")
	}
}
