// =============================================================================
// Invoice Audit - Shipment Merger
// =============================================================================
//
// Decides which shipment records are billed together as one tariff unit
// ("accorpamento"). The carrier spreads a fixed €2.00 reservation fee across
// the invoices a consolidated shipment was split into, so the reservation
// unit price reveals the intended group size:
//
//   2,00 -> 1 invoice (no merge)    0,66 / 0,67 -> 3 invoices
//   1,00 -> 2 invoices              0,50       -> 4 invoices
//
// Rows to merge share the same normalized destination anywhere in the
// document (consolidated shipments are not necessarily consecutive). When a
// destination bucket holds an exact multiple of the expected size, it is
// split into chunks in original row order; any other mismatch flags the
// whole bucket.
//
// The tolerances here are domain behavior: ±0.02 against the price table,
// ±0.03 when reconstructing count = round(2 / price).
//
// =============================================================================

package merger

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/smarche/invoice-audit/internal/types"
	"github.com/smarche/invoice-audit/pkg/utils"
)

// Default tolerances for the price -> expected-count heuristic.
const (
	DefaultPriceTolerance       = 0.02
	DefaultReconstructTolerance = 0.03
)

// reservationFee is the total reservation amount the carrier spreads across
// a consolidated shipment's invoices.
const reservationFee = 2.0

// maxGroupSize caps the reconstructed count; a reservation price implying
// more than this is treated as unrecognized.
const maxGroupSize = 10

// Merger assigns billing-group ids to shipment records.
type Merger struct {
	// PriceTolerance is the ± tolerance against the fixed price table.
	PriceTolerance float64

	// ReconstructTolerance is the ± tolerance accepted when falling back to
	// count = round(2 / price).
	ReconstructTolerance float64
}

// New returns a Merger with the default tolerances.
func New() *Merger {
	return &Merger{
		PriceTolerance:       DefaultPriceTolerance,
		ReconstructTolerance: DefaultReconstructTolerance,
	}
}

// AssignGroups enriches every record with its GroupID, ExpectedGroupSize and,
// where the reservation price or the bucket size does not reconcile, a
// MergeError. Records are never reordered.
//
// Group ids are "G0", "G1", ...: singleton shipments are numbered first in
// row order, then merged buckets in order of their first row.
func (m *Merger) AssignGroups(records []types.ShipmentRecord) {
	type bucketKey struct {
		dest     string
		expected int
	}

	var singles []int
	buckets := map[bucketKey][]int{}

	for i := range records {
		r := &records[i]
		price := reservationPrice(r)
		expected, ok := m.expectedCount(price)
		if !ok {
			expected = 1
			if price == nil {
				appendMergeError(r, "Errore prezzo prenotazione spedizione; prezzo non trovato quindi impossibile determinare spedizioni da unire")
			} else {
				appendMergeError(r, fmt.Sprintf(
					"Errore prezzo prenotazione spedizione; trovato prezzo=%s non gestito quindi impossibile determinare spedizioni da unire",
					utils.FormatDecimalIT(*price)))
			}
		}
		r.ExpectedGroupSize = expected

		if expected <= 1 {
			singles = append(singles, i)
		} else {
			key := bucketKey{dest: NormalizeDestination(r.DestAddress), expected: expected}
			buckets[key] = append(buckets[key], i)
		}
	}

	gid := 0
	nextGroup := func() string {
		id := fmt.Sprintf("G%d", gid)
		gid++
		return id
	}

	for _, i := range singles {
		records[i].GroupID = nextGroup()
	}

	// Buckets in order of their first row, for stable group numbering.
	keys := make([]bucketKey, 0, len(buckets))
	for key := range buckets {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(a, b int) bool {
		return buckets[keys[a]][0] < buckets[keys[b]][0]
	})

	for _, key := range keys {
		rows := buckets[key]
		expected := key.expected

		switch {
		case len(rows) == expected:
			id := nextGroup()
			for _, i := range rows {
				records[i].GroupID = id
			}

		case len(rows)%expected == 0:
			// Exact multiple: consecutive chunks in original row order.
			for c := 0; c < len(rows)/expected; c++ {
				id := nextGroup()
				for _, i := range rows[c*expected : (c+1)*expected] {
					records[i].GroupID = id
				}
			}

		default:
			// Mismatch: keep the bucket together and flag every member.
			id := nextGroup()
			price := firstPrice(records, rows)
			msg := fmt.Sprintf(
				"Errore prezzo prenotazione spedizione; trovato prezzo=%s quindi attese %d spedizioni da unire, trovata/e %d",
				price, expected, len(rows))
			for _, i := range rows {
				records[i].GroupID = id
				appendMergeError(&records[i], msg)
			}
		}
	}
}

// =============================================================================
// HEURISTICS
// =============================================================================

// reservationPrice picks the merge-driving price: the reservation unit price,
// falling back to the reservation total when the unit price is absent.
func reservationPrice(r *types.ShipmentRecord) *float64 {
	if r.ReservationUnit != nil {
		return r.ReservationUnit
	}
	return r.ReservationTotal
}

// expectedCount maps a reservation price to the number of invoices billed as
// one shipment. Unresolvable prices return ok=false.
func (m *Merger) expectedCount(price *float64) (int, bool) {
	if price == nil {
		return 0, false
	}
	p := *price
	if math.IsNaN(p) {
		return 0, false
	}

	close := func(target float64) bool { return math.Abs(p-target) <= m.PriceTolerance }
	switch {
	case close(2.0):
		return 1, true
	case close(1.0):
		return 2, true
	case close(0.5):
		return 4, true
	case close(0.66) || close(0.67):
		return 3, true
	}

	// Generic fallback: price ≈ 2/n.
	if p <= 0 {
		return 0, false
	}
	n := int(math.Round(reservationFee / p))
	if n < 1 || n > maxGroupSize {
		return 0, false
	}
	if math.Abs(p-reservationFee/float64(n)) <= m.ReconstructTolerance {
		return n, true
	}
	return 0, false
}

var spaceRe = regexp.MustCompile(`\s+`)

// NormalizeDestination canonicalizes a destination address as the grouping
// key: curly apostrophes straightened, whitespace collapsed, the "Scarico:"
// prefix stripped, upper-cased.
func NormalizeDestination(s string) string {
	s = strings.ReplaceAll(s, "’", "'")
	s = strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
	if len(s) >= len("Scarico:") && strings.EqualFold(s[:len("Scarico:")], "Scarico:") {
		s = strings.TrimSpace(s[len("Scarico:"):])
	}
	return strings.ToUpper(s)
}

func appendMergeError(r *types.ShipmentRecord, msg string) {
	if r.MergeError == "" {
		r.MergeError = msg
	} else if !strings.Contains(r.MergeError, msg) {
		r.MergeError += " | " + msg
	}
}

// firstPrice formats the first available reservation price in a bucket for
// the mismatch message.
func firstPrice(records []types.ShipmentRecord, rows []int) string {
	for _, i := range rows {
		if p := reservationPrice(&records[i]); p != nil {
			return utils.FormatDecimalIT(*p)
		}
	}
	return ""
}
