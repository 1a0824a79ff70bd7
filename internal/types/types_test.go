package types

import "testing"

// TestDocumentIDNormalize checks DT/FT canonicalization to 6-digit ids.
func TestDocumentIDNormalize(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name        string
		doc         DocumentID
		expected    string
		wantID      string
		wantProblem bool
	}{
		{"dt plain", DocumentID{"DT", "132"}, TagDeliveryNote, "000132", false},
		{"dt long", DocumentID{"DT", "2025/000132"}, TagDeliveryNote, "000132", false},
		{"dt truncates left", DocumentID{"DT", "1234567"}, TagDeliveryNote, "234567", false},
		{"ft plain", DocumentID{"FT", "981"}, TagInvoice, "000981", false},
		{"wrong tag", DocumentID{"FT", "981"}, TagDeliveryNote, "", true},
		{"absent", DocumentID{}, TagDeliveryNote, "", true},
		{"no digits", DocumentID{"DT", "abc"}, TagDeliveryNote, "", true},
		{"lowercase tag", DocumentID{"dt", "44"}, TagDeliveryNote, "000044", false},
	}
	for _, c := range cases {
		id, problem := c.doc.Normalize(c.expected)
		if id != c.wantID {
			t.Errorf("%s: id = %q, want %q", c.name, id, c.wantID)
		}
		if (problem != "") != c.wantProblem {
			t.Errorf("%s: problem = %q, wantProblem %v", c.name, problem, c.wantProblem)
		}
	}
}

// TestDocumentIDNormalizeProblemText checks the annotation wording per tag.
func TestDocumentIDNormalizeProblemText(t *testing.T) {
	t.Parallel()

	_, p := DocumentID{}.Normalize(TagDeliveryNote)
	if p != "numero DDT non presente nella fattura" {
		t.Errorf("DT problem = %q", p)
	}
	_, p = DocumentID{}.Normalize(TagInvoice)
	if p != "numero FT non presente nella fattura" {
		t.Errorf("FT problem = %q", p)
	}
}

// TestDocumentIDDisplay checks the report rendering of references.
func TestDocumentIDDisplay(t *testing.T) {
	t.Parallel()

	cases := []struct {
		doc  DocumentID
		want string
	}{
		{DocumentID{"DT", "132"}, "DT 000132"},
		{DocumentID{"FT", "000981"}, "FT 000981"},
		{DocumentID{"DT", "n/a"}, "DT"},
		{DocumentID{}, ""},
	}
	for _, c := range cases {
		if got := c.doc.Display(); got != c.want {
			t.Errorf("Display(%+v) = %q, want %q", c.doc, got, c.want)
		}
	}
}

// TestNormalizeSheetID checks workbook-side id canonicalization.
func TestNormalizeSheetID(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"132", "000132"},
		{"2025/000132", "000132"},
		{"9876543", "876543"},
		{"", ""},
		{"n.d.", ""},
		{"132.0", "001320"},
	}
	for _, c := range cases {
		if got := NormalizeSheetID(c.in); got != c.want {
			t.Errorf("NormalizeSheetID(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

// TestCheckable verifies service lines without amounts are excluded from the
// price checks.
func TestCheckable(t *testing.T) {
	t.Parallel()

	v := 1.5
	full := ShipmentRecord{TransportVolume: &v, TransportQuantity: &v, TransportTotal: &v}
	if !full.Checkable() {
		t.Error("record with all transport fields should be checkable")
	}
	partial := ShipmentRecord{TransportVolume: &v}
	if partial.Checkable() {
		t.Error("record missing amounts should not be checkable")
	}
}
