// =============================================================================
// Invoice Audit - Shared Types
// =============================================================================
//
// This package contains shared types used across multiple modules to avoid
// import cycles. Types defined here are used by:
//   - pdfparser (produces ShipmentRecord)
//   - merger (enriches ShipmentRecord with group information)
//   - validator (produces ValidationError)
//   - audit / report (assemble ReportRow)
//
// =============================================================================

package types

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// DOCUMENT IDENTIFIERS
// =============================================================================

// Document type tags. Every shipment line carries at most one of the two:
// a delivery note (DT) or an invoice (FT) reference.
const (
	TagDeliveryNote = "DT"
	TagInvoice      = "FT"
)

var nonDigits = regexp.MustCompile(`\D`)

// DocumentID is the DT/FT reference attached to a shipment line.
// The zero value means "no document reference on this line".
type DocumentID struct {
	// Tag is "DT" or "FT" as printed on the invoice.
	Tag string

	// Number is the raw document number as printed, before normalization.
	Number string
}

// IsZero reports whether the line carried no document reference.
func (d DocumentID) IsZero() bool {
	return d.Tag == "" && d.Number == ""
}

// Normalize validates the tag against the expected one ("DT" or "FT") and
// returns the canonical 6-digit id: non-digits stripped, zero-padded, and
// truncated to the rightmost 6 digits. When the tag is absent, mismatched, or
// the number yields no digits, it returns an empty id plus the human-readable
// problem ("numero DDT non presente nella fattura" / "numero FT ...") that is
// surfaced as a row annotation, never as a fatal error.
func (d DocumentID) Normalize(expectedTag string) (string, string) {
	label := "DDT"
	if expectedTag == TagInvoice {
		label = "FT"
	}
	problem := fmt.Sprintf("numero %s non presente nella fattura", label)

	if d.Tag == "" || d.Number == "" {
		return "", problem
	}
	if strings.ToUpper(strings.TrimSpace(d.Tag)) != expectedTag {
		return "", problem
	}
	digits := nonDigits.ReplaceAllString(d.Number, "")
	if digits == "" {
		return "", problem
	}
	return SixDigits(digits), ""
}

// Display renders the reference for the report: "DT 000132" / "FT 000132".
// Returns the bare tag when the number has no digits and "" when absent.
func (d DocumentID) Display() string {
	if d.Tag == "" || d.Number == "" {
		return ""
	}
	tag := strings.ToUpper(strings.TrimSpace(d.Tag))
	digits := nonDigits.ReplaceAllString(d.Number, "")
	if digits == "" {
		return tag
	}
	return tag + " " + SixDigits(digits)
}

// SixDigits keeps the rightmost 6 digits of a digit string, zero-padded on
// the left ("abc0132" digits -> "000132").
func SixDigits(digits string) string {
	if len(digits) > 6 {
		digits = digits[len(digits)-6:]
	}
	for len(digits) < 6 {
		digits = "0" + digits
	}
	return digits
}

// NormalizeSheetID canonicalizes a workbook-side DDT/invoice cell the same
/// way: strip non-digits, rightmost 6, zero-padded. Empty cells yield "".
func NormalizeSheetID(cell string) string {
	digits := nonDigits.ReplaceAllString(cell, "")
	if digits == "" {
		return ""
	}
	return SixDigits(digits)
}

// =============================================================================
// SHIPMENT RECORD
// =============================================================================

// ShipmentRecord is one parsed transport line item (one Carico/Scarico block
// of the invoice). Numeric fields use pointers because a block may carry a
// non-standard service line that leaves them unset; such records are
// annotated via Note and skipped by the price checks.
//
// Lifecycle: created by pdfparser, enriched with destination/group data by
// the merger, consulted (never mutated) by the validator.
type ShipmentRecord struct {
	// Source identifies the document this record came from (file name).
	Source string

	// Date is the shipment date as printed ("dd/mm/yy"). The engine never
	// does date arithmetic, so the string is carried through verbatim.
	Date string

	// Ref is the carrier's internal reference ("ns. rif.").
	Ref string

	// LoadAddress is the pickup address text ("Carico: ...").
	LoadAddress string

	// DestAddress is the delivery address text ("Scarico: ..."), joined from
	// its multi-line block.
	DestAddress string

	// Doc is the DT/FT reference, if the block carried one.
	Doc DocumentID

	// Transport line fields (volume m³, billed volume units, €/m³, total €).
	TransportVolume   *float64
	TransportQuantity *float64
	TransportUnit     *float64
	TransportTotal    *float64
	TransportTaxCode  string

	// Reservation line fields ("PRENOTAZIONE SPEDIZIONE"). The unit price
	// encodes how many invoices one shipment was split across and is used
	// only by the merger.
	ReservationQuantity *float64
	ReservationUnit     *float64
	ReservationTotal    *float64
	ReservationTaxCode  string

	// Note holds row-level anomalies (e.g. an unrecognized TRASPORTO line).
	Note string

	// Physical destination, derived from DestAddress.
	Country  string
	DestCode string
	Zone     string

	// Rate-determining destination. Usually identical to the physical one,
	// but relay-warehouse deliveries are priced on the load address instead.
	TariffCountry  string
	TariffDestCode string
	TariffZone     string

	// Group assignment (set by the merger).
	GroupID           string
	ExpectedGroupSize int
	MergeError        string

	// Canonical 6-digit ids and display string (set by the orchestrator).
	DDT6       string
	FT6        string
	DocDisplay string

	// Client and causal code, filled from the volume-reconciliation workbook
	// when one is loaded. Client feeds the special-client tariff rule.
	Client string
	Causal string
}

// Checkable reports whether the record carries the numeric transport fields
// the price checks need. Records failing this (service lines) are skipped.
func (r *ShipmentRecord) Checkable() bool {
	return r.TransportVolume != nil && r.TransportTotal != nil && r.TransportQuantity != nil
}

// =============================================================================
// VALIDATION ERRORS
// =============================================================================

// ErrorKind enumerates the discrepancies the validator can emit. The values
// double as the stable machine-readable labels used in the report.
type ErrorKind string

const (
	// ErrTariffMissing - no tariff could be resolved for the group.
	ErrTariffMissing ErrorKind = "tariffa_mancante"

	// ErrMergedRate - merged group's €/m³ differs from the tariff.
	ErrMergedRate ErrorKind = "accorpata_prezzo_m3_errato"

	// ErrQuantityOver1 - billed quantity differs from the rounded volume
	// (shipments above 1 m³).
	ErrQuantityOver1 ErrorKind = "volume>1_qta_errata"

	// ErrRateOver1 - single shipment's €/m³ differs from the tariff.
	ErrRateOver1 ErrorKind = "volume>1_prezzo_m3_errato"

	// ErrQuantityUnder1 - billed quantity differs from the rounded volume
	// (shipments at or below 1 m³).
	ErrQuantityUnder1 ErrorKind = "volume<1_qta_errata"

	// ErrPriceUnder1 - sub-1 m³ shipment's total differs from the
	// minimum-billable-volume price.
	ErrPriceUnder1 ErrorKind = "volume<1_prezzo_errato"

	// ErrMerge - merge-ambiguity error attached by the merger.
	ErrMerge ErrorKind = "errore_accorpamento"
)

// ValidationError is one detected discrepancy. It carries enough context to
// be attributed back to its originating rows: the group id plus, for
// single-row findings, the record reference. Refs nil means "every row in the
// group".
type ValidationError struct {
	Kind    ErrorKind
	Message string

	GroupID  string
	Country  string
	DestCode string
	Zone     string
	Refs     []string

	// Numeric evidence. Which fields are meaningful depends on Kind; unused
	// fields stay zero.
	ExpectedRate   float64
	FoundRate      float64
	ExpectedQty    float64
	ExpectedPrice  float64
	FoundPrice     float64
	RawVolume      float64
	RoundedVolume  float64
	TransportTotal float64
}

// =============================================================================
// REPORT ROWS
// =============================================================================

// ReportRow is one row of the result table handed to the renderer: the
// record's display fields plus the aggregated error columns.
type ReportRow struct {
	Source      string
	Date        string
	Ref         string
	Client      string
	DestAddress string
	DocDisplay  string
	Causal      string
	Country     string
	DestCode    string
	Zone        string

	Rate     *float64
	Volume   *float64
	Quantity *float64
	Amount   *float64

	Note string

	// Errors aggregates price/merge discrepancies ("; "-joined).
	Errors   string
	HasError bool

	// FranceErrors aggregates the volume-reconciliation messages.
	FranceErrors   string
	HasFranceError bool
}
