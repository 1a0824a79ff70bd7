package merger

import (
	"strings"
	"testing"

	"github.com/smarche/invoice-audit/internal/types"
)

func rec(ref, dest string, reservationUnit *float64) types.ShipmentRecord {
	return types.ShipmentRecord{
		Ref:             ref,
		DestAddress:     dest,
		ReservationUnit: reservationUnit,
	}
}

func f(v float64) *float64 { return &v }

// TestExpectedCount checks the reservation price -> group size table and the
// reconstruction fallback.
func TestExpectedCount(t *testing.T) {
	t.Parallel()
	m := New()

	cases := []struct {
		price  float64
		want   int
		wantOK bool
	}{
		{2.00, 1, true},
		{1.00, 2, true},
		{0.67, 3, true},
		{0.66, 3, true},
		{0.50, 4, true},
		{2.01, 1, true},  // within price tolerance
		{0.99, 2, true},
		{0.40, 5, true},  // reconstructed: round(2/0.40)
		{0.25, 8, true},
		{0.10, 10, false}, // implies 20 invoices, over the cap
		{0.30, 7, true},   // reconstructed: 2/7 within tolerance
		{1.50, 0, false},  // nothing close, reconstruction off by 0.5
		{-1.0, 0, false},
	}
	for _, c := range cases {
		p := c.price
		got, ok := m.expectedCount(&p)
		if ok != c.wantOK {
			t.Errorf("expectedCount(%v) ok = %v, want %v", c.price, ok, c.wantOK)
			continue
		}
		if ok && got != c.want {
			t.Errorf("expectedCount(%v) = %d, want %d", c.price, got, c.want)
		}
	}

	if _, ok := m.expectedCount(nil); ok {
		t.Error("expectedCount(nil) should not resolve")
	}
}

// TestAssignGroupsSingles checks standalone shipments get sequential ids.
func TestAssignGroupsSingles(t *testing.T) {
	t.Parallel()

	records := []types.ShipmentRecord{
		rec("1/SH", "Scarico: A (69) - FR", f(2.00)),
		rec("2/SH", "Scarico: B (69) - FR", f(2.00)),
	}
	New().AssignGroups(records)

	if records[0].GroupID != "G0" || records[1].GroupID != "G1" {
		t.Errorf("group ids = %q, %q", records[0].GroupID, records[1].GroupID)
	}
	for i := range records {
		if records[i].ExpectedGroupSize != 1 || records[i].MergeError != "" {
			t.Errorf("records[%d] = %+v", i, records[i])
		}
	}
}

// TestAssignGroupsMerged checks same-destination shipments with matching
// reservation prices merge, including exact multiples split into chunks.
func TestAssignGroupsMerged(t *testing.T) {
	t.Parallel()

	// Six thirds to the same destination: two clean groups of three.
	records := []types.ShipmentRecord{
		rec("1/SH", "Scarico: MOBILI ROSSI LYON (69) - FR", f(0.67)),
		rec("2/SH", "Scarico: MOBILI  ROSSI LYON (69) - FR", f(0.67)), // extra spaces
		rec("3/SH", "Scarico: mobili rossi lyon (69) - fr", f(0.67)),  // case
		rec("4/SH", "Scarico: MOBILI ROSSI LYON (69) - FR", f(0.66)),
		rec("5/SH", "Scarico: MOBILI ROSSI LYON (69) - FR", f(0.67)),
		rec("6/SH", "Scarico: MOBILI ROSSI LYON (69) - FR", f(0.67)),
	}
	New().AssignGroups(records)

	for i := 0; i < 3; i++ {
		if records[i].GroupID != "G0" {
			t.Errorf("records[%d].GroupID = %q, want G0", i, records[i].GroupID)
		}
	}
	for i := 3; i < 6; i++ {
		if records[i].GroupID != "G1" {
			t.Errorf("records[%d].GroupID = %q, want G1", i, records[i].GroupID)
		}
	}
	for i := range records {
		if records[i].MergeError != "" {
			t.Errorf("records[%d].MergeError = %q", i, records[i].MergeError)
		}
		if records[i].ExpectedGroupSize != 3 {
			t.Errorf("records[%d].ExpectedGroupSize = %d", i, records[i].ExpectedGroupSize)
		}
	}
}

// TestAssignGroupsCountMismatch checks a short bucket is flagged whole.
func TestAssignGroupsCountMismatch(t *testing.T) {
	t.Parallel()

	records := []types.ShipmentRecord{
		rec("1/SH", "Scarico: MOBILI ROSSI LYON (69) - FR", f(0.67)),
		rec("2/SH", "Scarico: MOBILI ROSSI LYON (69) - FR", f(0.67)),
	}
	New().AssignGroups(records)

	if records[0].GroupID != records[1].GroupID {
		t.Errorf("flagged bucket split: %q vs %q", records[0].GroupID, records[1].GroupID)
	}
	for i := range records {
		msg := records[i].MergeError
		if !strings.Contains(msg, "attese 3 spedizioni da unire, trovata/e 2") {
			t.Errorf("records[%d].MergeError = %q", i, msg)
		}
		if !strings.Contains(msg, "prezzo=0,67") {
			t.Errorf("records[%d].MergeError price rendering = %q", i, msg)
		}
	}
}

// TestAssignGroupsMissingPrice checks shipments without a reservation price
// stay single and carry the explanatory error.
func TestAssignGroupsMissingPrice(t *testing.T) {
	t.Parallel()

	records := []types.ShipmentRecord{
		rec("1/SH", "Scarico: A (69) - FR", nil),
	}
	New().AssignGroups(records)

	if records[0].ExpectedGroupSize != 1 {
		t.Errorf("ExpectedGroupSize = %d, want 1", records[0].ExpectedGroupSize)
	}
	if !strings.Contains(records[0].MergeError, "prezzo non trovato") {
		t.Errorf("MergeError = %q", records[0].MergeError)
	}
}

// TestAssignGroupsUnhandledPrice checks the unrecognized-price message names
// the price.
func TestAssignGroupsUnhandledPrice(t *testing.T) {
	t.Parallel()

	records := []types.ShipmentRecord{
		rec("1/SH", "Scarico: A (69) - FR", f(1.50)),
	}
	New().AssignGroups(records)

	if !strings.Contains(records[0].MergeError, "trovato prezzo=1,5 non gestito") {
		t.Errorf("MergeError = %q", records[0].MergeError)
	}
}

// TestAssignGroupsReservationTotalFallback checks the total stands in for a
// missing unit price.
func TestAssignGroupsReservationTotalFallback(t *testing.T) {
	t.Parallel()

	r := rec("1/SH", "Scarico: A (69) - FR", nil)
	r.ReservationTotal = f(1.00)
	r2 := rec("2/SH", "Scarico: A (69) - FR", f(1.00))
	records := []types.ShipmentRecord{r, r2}
	New().AssignGroups(records)

	if records[0].GroupID != records[1].GroupID {
		t.Errorf("expected one group, got %q and %q", records[0].GroupID, records[1].GroupID)
	}
	if records[0].MergeError != "" || records[1].MergeError != "" {
		t.Errorf("unexpected merge errors: %q / %q", records[0].MergeError, records[1].MergeError)
	}
}

// TestNormalizeDestination checks the grouping key canonicalization.
func TestNormalizeDestination(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"Scarico: MOBILI ROSSI", "MOBILI ROSSI"},
		{"scarico:   mobili   rossi ", "MOBILI ROSSI"},
		{"L’ATELIER (75) - FR", "L'ATELIER (75) - FR"},
		{"MOBILI ROSSI", "MOBILI ROSSI"},
	}
	for _, c := range cases {
		if got := NormalizeDestination(c.in); got != c.want {
			t.Errorf("NormalizeDestination(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
