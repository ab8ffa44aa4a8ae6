package pipeline

import (
	"errors"
	"testing"
	"time"

	"plankton/internal"
	"plankton/internal/config"
	"plankton/internal/util"
)

func testAssembler() *Assembler {
	cfg := config.Config{
		StationLatitude:  -25.02,
		StationLongitude: -47.93,
		StationLocality:  "Fixed monitoring station",
		StationWaterBody: "Atlantic Ocean",
		StationMaxDepthM: 10,
		SamplingProtocol: "Oblique tow, 200 um mesh plankton net",
	}
	return NewAssembler(cfg)
}

func joined(eventID string, date *time.Time, order int, name string, value *float64, stage *string) internal.JoinedRow {
	return internal.JoinedRow{
		Cell:       &internal.AbundanceCell{SampleColumnID: eventID, ScientificName: name, Stage: stage, Value: value},
		EventID:    eventID,
		EventDate:  date,
		InputOrder: order,
	}
}

func TestAssembleEventUniquenessAndOccurrenceFK(t *testing.T) {
	date := time.Date(2018, 1, 5, 0, 0, 0, 0, time.UTC)
	v1, v2 := 4.0, 7.5
	rows := []internal.JoinedRow{
		joined("mc131", &date, 0, "Temora stylifera", &v1, nil),
		joined("mc131", &date, 1, "Oithona nana", &v2, nil),
	}

	tables, err := testAssembler().Assemble(rows, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables.Events) != 1 {
		t.Fatalf("events=%d", len(tables.Events))
	}
	if tables.Events[0].EventID != "mc131" || tables.Events[0].EventDate != "2018-01-05" {
		t.Fatalf("event mangled: %+v", tables.Events[0])
	}

	// Every occurrence eventID must exist exactly once in the events.
	eventIDs := map[string]int{}
	for _, ev := range tables.Events {
		eventIDs[ev.EventID]++
	}
	for _, occ := range tables.Occurrences {
		if eventIDs[occ.EventID] != 1 {
			t.Fatalf("occurrence %s references eventID %s seen %d times", occ.OccurrenceID, occ.EventID, eventIDs[occ.EventID])
		}
	}
}

func TestAssembleEventDateConflict(t *testing.T) {
	d1 := time.Date(2018, 1, 5, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2018, 1, 6, 0, 0, 0, 0, time.UTC)
	v := 1.0
	rows := []internal.JoinedRow{
		joined("mc131", &d1, 0, "Temora stylifera", &v, nil),
		joined("mc131", &d2, 1, "Oithona nana", &v, nil),
	}

	_, err := testAssembler().Assemble(rows, nil)
	if !errors.Is(err, ErrEventDateConflict) {
		t.Fatalf("err=%v, want ErrEventDateConflict", err)
	}
}

func TestOccurrenceStatusRule(t *testing.T) {
	date := time.Date(2018, 1, 5, 0, 0, 0, 0, time.UTC)
	positive, zero := 3.0, 0.0
	rows := []internal.JoinedRow{
		joined("mc131", &date, 0, "Temora stylifera", &positive, nil),
		joined("mc131", &date, 1, "Oithona nana", &zero, nil),
		joined("mc131", &date, 2, "Calanus gracilis", nil, nil), // no measurement: no row at all
	}

	tables, err := testAssembler().Assemble(rows, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables.Occurrences) != 2 {
		t.Fatalf("occurrences=%d, missing-value row must be omitted", len(tables.Occurrences))
	}
	if tables.Occurrences[0].OccurrenceStatus != internal.StatusPresent {
		t.Fatalf("positive value: %s", tables.Occurrences[0].OccurrenceStatus)
	}
	if tables.Occurrences[1].OccurrenceStatus != internal.StatusAbsent {
		t.Fatalf("zero value: %s", tables.Occurrences[1].OccurrenceStatus)
	}
}

func TestOccurrenceIDSequencing(t *testing.T) {
	date := time.Date(2018, 1, 5, 0, 0, 0, 0, time.UTC)
	v := 1.0
	// Deliberately out of eventID order: the assembler must sort by
	// eventID then input order before numbering.
	rows := []internal.JoinedRow{
		joined("mc132", &date, 0, "Temora stylifera", &v, nil),
		joined("mc131", &date, 1, "Oithona nana", &v, nil),
		joined("mc131", &date, 2, "Temora stylifera", &v, nil),
	}

	tables, err := testAssembler().Assemble(rows, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"mc131-occ1", "mc131-occ2", "mc132-occ3"}
	for i, occ := range tables.Occurrences {
		if occ.OccurrenceID != want[i] {
			t.Fatalf("occurrenceID[%d]=%s, want %s", i, occ.OccurrenceID, want[i])
		}
	}

	// Re-assembly of the same input yields the same ids.
	again, err := testAssembler().Assemble(rows, nil)
	if err != nil {
		t.Fatal(err)
	}
	for i := range tables.Occurrences {
		if tables.Occurrences[i].OccurrenceID != again.Occurrences[i].OccurrenceID {
			t.Fatal("occurrenceID assignment is not deterministic")
		}
	}
}

func TestMeasurementVocabulary(t *testing.T) {
	date := time.Date(2018, 1, 5, 0, 0, 0, 0, time.UTC)
	v := 2.5
	rows := []internal.JoinedRow{
		joined("mc131", &date, 0, "Clupegenus sp", &v, util.StringPtr("larvae")),
	}

	tables, err := testAssembler().Assemble(rows, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables.Measurements) != 2 {
		t.Fatalf("measurements=%d", len(tables.Measurements))
	}

	count := tables.Measurements[0]
	if count.MeasurementType != "individual count" || count.MeasurementValue != "2.5" {
		t.Fatalf("count row: %+v", count)
	}
	if count.MeasurementUnit != "individuals per cubic meter" || count.MeasurementRemarks == nil {
		t.Fatalf("count vocab: %+v", count)
	}

	stage := tables.Measurements[1]
	if stage.MeasurementType != "life stage" || stage.MeasurementValue != "larvae" || stage.MeasurementUnit != "categorical" {
		t.Fatalf("stage row: %+v", stage)
	}
	if stage.OccurrenceID != tables.Occurrences[0].OccurrenceID {
		t.Fatal("measurement not linked to its occurrence")
	}
}

func TestMeasurementStageOmittedWhenEmpty(t *testing.T) {
	date := time.Date(2018, 1, 5, 0, 0, 0, 0, time.UTC)
	v := 1.0
	rows := []internal.JoinedRow{
		joined("mc131", &date, 0, "Temora stylifera", &v, nil),
	}

	tables, err := testAssembler().Assemble(rows, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tables.Measurements) != 1 {
		t.Fatalf("measurements=%d, empty stage must not emit a row", len(tables.Measurements))
	}
}

func TestAssembleEnrichment(t *testing.T) {
	date := time.Date(2018, 1, 5, 0, 0, 0, 0, time.UTC)
	v := 1.0
	rows := []internal.JoinedRow{
		joined("mc131", &date, 0, "Temora stylifera", &v, nil),
	}
	matches := map[string]internal.TaxonMatch{
		"Temora stylifera": {
			Name:   "Temora stylifera",
			Status: internal.MatchFound,
			Record: &internal.AphiaRecord{
				AphiaID:        104878,
				ScientificName: "Temora stylifera",
				LSID:           util.StringPtr("urn:lsid:marinespecies.org:taxname:104878"),
				Rank:           util.StringPtr("Species"),
			},
		},
	}

	tables, err := testAssembler().Assemble(rows, matches)
	if err != nil {
		t.Fatal(err)
	}
	occ := tables.Occurrences[0]
	if occ.ScientificNameID == nil || *occ.ScientificNameID != "urn:lsid:marinespecies.org:taxname:104878" {
		t.Fatalf("enrichment lost: %+v", occ)
	}
}
