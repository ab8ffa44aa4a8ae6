package pipeline

import (
	"testing"

	"plankton/internal/util"
)

func TestParseDateValueSerial(t *testing.T) {
	date, ok := ParseDateValue("43105")
	if !ok {
		t.Fatal("serial not recognized")
	}
	if got := date.Format("2006-01-02"); got != "2018-01-05" {
		t.Fatalf("serial 43105 resolved to %s", got)
	}
}

func TestParseDateValueISO(t *testing.T) {
	date, ok := ParseDateValue("2018-01-05")
	if !ok {
		t.Fatal("iso date not recognized")
	}
	serial, _ := ParseDateValue("43105")
	if !date.Equal(serial) {
		t.Fatalf("iso %v != serial %v", date, serial)
	}
}

func TestParseDateValueRejectsSmallNumbers(t *testing.T) {
	if _, ok := ParseDateValue("131"); ok {
		t.Fatal("numeric sample id misread as date")
	}
	if _, ok := ParseDateValue(""); ok {
		t.Fatal("empty value misread as date")
	}
	if _, ok := ParseDateValue("MC 131"); ok {
		t.Fatal("identifier misread as date")
	}
}

func TestReshape(t *testing.T) {
	v1, v3 := 12.5, 0.0
	matrix := &WideMatrix{
		Headers: []string{"MC 131", "MC 132"},
		Rows: []WideRow{
			{RowNumber: 2, Name: "Chiridius poppei Giesbrecht, 1893", Values: []*float64{&v1, nil}},
			{RowNumber: 3, Name: "Clupeidae n.i.", Stage: util.StringPtr("larvae"), Values: []*float64{&v3, nil}},
		},
	}

	cells := Reshape(matrix)
	if len(cells) != 4 {
		t.Fatalf("len=%d", len(cells))
	}
	if cells[0].ScientificName != "Chiridius poppei" {
		t.Fatalf("normalization not attached: %q", cells[0].ScientificName)
	}
	if cells[0].Value == nil || *cells[0].Value != 12.5 {
		t.Fatalf("value lost: %v", cells[0].Value)
	}
	// Empty cells stay missing, never zero.
	if cells[1].Value != nil {
		t.Fatalf("empty cell got value %v", *cells[1].Value)
	}
	if cells[2].ScientificName != "Clupegenus sp" {
		t.Fatalf("family rule not applied: %q", cells[2].ScientificName)
	}
	if cells[2].Stage == nil || *cells[2].Stage != "larvae" {
		t.Fatal("stage dropped in pivot")
	}
}

func TestDedupeCells(t *testing.T) {
	v := 1.0
	matrix := &WideMatrix{
		Headers: []string{"MC 131"},
		Rows: []WideRow{
			{RowNumber: 2, Name: "Temora stylifera", Values: []*float64{&v}},
			{RowNumber: 3, Name: "Temora stylifera", Values: []*float64{&v}},
		},
	}
	cells := DedupeCells(Reshape(matrix))
	if len(cells) != 1 {
		t.Fatalf("len=%d", len(cells))
	}
}
