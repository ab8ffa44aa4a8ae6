package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	"plankton/internal"
	"plankton/internal/util"
)

var eventHeaders = []string{
	"eventID", "eventDate", "decimalLatitude", "decimalLongitude",
	"locality", "country", "stateProvince", "waterBody",
	"minimumDepthInMeters", "maximumDepthInMeters",
	"samplingProtocol", "sampleSizeValue", "sampleSizeUnit",
}

var occurrenceHeaders = []string{
	"eventID", "occurrenceID", "scientificName", "scientificNameID",
	"taxonRank", "lifeStage", "occurrenceStatus",
}

var measurementHeaders = []string{
	"eventID", "eventDate", "occurrenceID",
	"measurementType", "measurementValue", "measurementUnit", "measurementRemarks",
}

func eventRecord(ev internal.DwcEvent) []string {
	sizeValue := ""
	if ev.SampleSizeValue != nil {
		sizeValue = util.FormatValue(*ev.SampleSizeValue)
	}
	return []string{
		ev.EventID, ev.EventDate,
		formatCoord(ev.DecimalLatitude), formatCoord(ev.DecimalLongitude),
		ev.Locality, ev.Country, ev.StateProvince, ev.WaterBody,
		util.FormatValue(ev.MinimumDepthM), util.FormatValue(ev.MaximumDepthM),
		ev.SamplingProtocol, sizeValue, ev.SampleSizeUnit,
	}
}

func occurrenceRecord(occ internal.DwcOccurrence) []string {
	return []string{
		occ.EventID, occ.OccurrenceID, occ.ScientificName,
		util.DerefString(occ.ScientificNameID), util.DerefString(occ.TaxonRank),
		util.DerefString(occ.LifeStage), occ.OccurrenceStatus,
	}
}

func measurementRecord(m internal.DwcMeasurement) []string {
	return []string{
		m.EventID, m.EventDate, m.OccurrenceID,
		m.MeasurementType, m.MeasurementValue, m.MeasurementUnit,
		util.DerefString(m.MeasurementRemarks),
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteCSV writes event.csv, occurrence.csv and emof.csv into dir.
// Row order is whatever the assembler produced, so unchanged inputs
// give byte-identical files.
func WriteCSV(tables Tables, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	write := func(name string, headers []string, records [][]string) error {
		f, err := os.Create(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		defer f.Close()
		w := csv.NewWriter(f)
		if err := w.Write(headers); err != nil {
			return err
		}
		if err := w.WriteAll(records); err != nil {
			return err
		}
		w.Flush()
		return w.Error()
	}

	events := make([][]string, 0, len(tables.Events))
	for _, ev := range tables.Events {
		events = append(events, eventRecord(ev))
	}
	if err := write("event.csv", eventHeaders, events); err != nil {
		return err
	}

	occurrences := make([][]string, 0, len(tables.Occurrences))
	for _, occ := range tables.Occurrences {
		occurrences = append(occurrences, occurrenceRecord(occ))
	}
	if err := write("occurrence.csv", occurrenceHeaders, occurrences); err != nil {
		return err
	}

	measurements := make([][]string, 0, len(tables.Measurements))
	for _, m := range tables.Measurements {
		measurements = append(measurements, measurementRecord(m))
	}
	return write("emof.csv", measurementHeaders, measurements)
}

// WriteXLSX writes the three tables as sheets of a single dwc.xlsx.
func WriteXLSX(tables Tables, dir string) error {
	f := excelize.NewFile()
	defer f.Close()

	first := f.GetSheetName(0)
	if err := f.SetSheetName(first, "Events"); err != nil {
		return err
	}
	if _, err := f.NewSheet("Occurrences"); err != nil {
		return err
	}
	if _, err := f.NewSheet("eMoF"); err != nil {
		return err
	}

	fill := func(sheet string, headers []string, records [][]string) {
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			_ = f.SetCellValue(sheet, cell, h)
		}
		for r, record := range records {
			for c, value := range record {
				cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
				_ = f.SetCellValue(sheet, cell, value)
			}
		}
	}

	events := make([][]string, 0, len(tables.Events))
	for _, ev := range tables.Events {
		events = append(events, eventRecord(ev))
	}
	occurrences := make([][]string, 0, len(tables.Occurrences))
	for _, occ := range tables.Occurrences {
		occurrences = append(occurrences, occurrenceRecord(occ))
	}
	measurements := make([][]string, 0, len(tables.Measurements))
	for _, m := range tables.Measurements {
		measurements = append(measurements, measurementRecord(m))
	}

	fill("Events", eventHeaders, events)
	fill("Occurrences", occurrenceHeaders, occurrences)
	fill("eMoF", measurementHeaders, measurements)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return f.SaveAs(filepath.Join(dir, "dwc.xlsx"))
}

// Export validates the output mode before anything is written; an
// unsupported mode is a fatal input error, not a partial run.
func Export(tables Tables, dir, format string) error {
	switch format {
	case "csv":
		return WriteCSV(tables, dir)
	case "xlsx":
		return WriteXLSX(tables, dir)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}
