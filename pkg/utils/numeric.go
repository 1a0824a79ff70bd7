// =============================================================================
// Invoice Audit - Numeric Utilities
// =============================================================================
//
// Helpers for the locale-formatted numbers that appear on the carrier's
// invoices and reference workbooks. The invoices use the Italian convention:
// period as thousands separator, comma as decimal separator ("1.234,56").
//
// The rounding and tolerance helpers here are domain behavior, not incidental
// float hygiene: the carrier bills volume rounded UP to the nearest 0.1 m³,
// and all price comparisons in the audit are tolerance-based. Changing these
// values changes audit outcomes.
//
// =============================================================================

package utils

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// OneTolerance is the tolerance used to detect unit quantities (q ≈ 1.0).
const OneTolerance = 1e-6

// ceilEpsilon guards CeilToTenth against float noise, so that a value such as
// 1.2000000000002 still rounds to 1.2 rather than 1.3.
const ceilEpsilon = 1e-9

// ParseLocaleFloat converts a string like "1.234,56" into 1234.56.
// Periods are treated as thousands separators and stripped; the comma is the
// decimal separator.
func ParseLocaleFloat(s string) (float64, error) {
	t := strings.TrimSpace(s)
	t = strings.ReplaceAll(t, ".", "")
	t = strings.ReplaceAll(t, ",", ".")
	v, err := strconv.ParseFloat(t, 64)
	if err != nil {
		return 0, fmt.Errorf("valore numerico non riconosciuto: %q", s)
	}
	return v, nil
}

// ParseCellFloat converts a spreadsheet cell into a float. Cells arrive as
// display strings, so a plain decimal ("12.3") is tried first and the locale
// form ("12,3", "1.234,56") second. Returns nil for empty or non-numeric
// cells.
func ParseCellFloat(s string) *float64 {
	t := strings.TrimSpace(strings.ReplaceAll(s, " ", ""))
	if t == "" {
		return nil
	}
	if v, err := strconv.ParseFloat(t, 64); err == nil {
		return &v
	}
	if v, err := ParseLocaleFloat(t); err == nil {
		return &v
	}
	return nil
}

// IsApproximatelyOne reports whether v is ~1.0 within OneTolerance.
func IsApproximatelyOne(v float64) bool {
	return math.Abs(v-1.0) < OneTolerance
}

// CeilToTenth rounds v up to the nearest 0.1 (12.31 -> 12.4, 12.3 -> 12.3).
func CeilToTenth(v float64) float64 {
	return math.Ceil(v*10-ceilEpsilon) / 10.0
}

// Round1 rounds to one decimal place, the precision used when comparing
// volumes against the reconciliation workbook. It rounds the decimal
// rendering of the value with ties to the even digit (0.25 -> 0.2,
// 0.75 -> 0.8), so both sides of the comparison round identically.
func Round1(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	return r
}

// Round4 rounds to four decimal places, the precision used when reporting
// invoiced €/m³ rates in error messages.
func Round4(v float64) float64 {
	return math.Round(v*10000) / 10000.0
}

// FormatDecimalIT renders a float for the Italian-language report messages:
// two decimals with trailing zeros trimmed and a comma separator
// (1 -> "1", 0.5 -> "0,5", 0.67 -> "0,67").
func FormatDecimalIT(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	return strings.ReplaceAll(s, ".", ",")
}

// FormatFloat renders a float the way the report messages expect: no
// exponent, no trailing zeros ("102.5", "121", "95.3333").
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
