package pipeline

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"plankton/internal"
	"plankton/internal/config"
	"plankton/internal/util"
)

// ErrEventDateConflict marks a corrupt sample-index join: the same
// eventID resolved to two different dates. Never repaired silently.
var ErrEventDateConflict = errors.New("event date conflict")

const (
	measurementTypeCount = "individual count"
	measurementTypeStage = "life stage"
	sampleSizeUnit       = "cubic metres"
)

type measurementVocab struct {
	unit    string
	remarks *string
}

// Controlled unit/remark vocabulary keyed by measurementType. The
// source data carries exactly two measurable attributes; anything
// else falls back to free text.
var measurementVocabulary = map[string]measurementVocab{
	measurementTypeCount: {
		unit:    "individuals per cubic meter",
		remarks: util.StringPtr("Abundance of individuals in the filtered water volume"),
	},
	measurementTypeStage: {
		unit:    "categorical",
		remarks: util.StringPtr("Developmental stage of the counted individuals"),
	},
}

func lookupMeasurementVocab(measurementType string) measurementVocab {
	if v, ok := measurementVocabulary[measurementType]; ok {
		return v
	}
	return measurementVocab{unit: "text"}
}

type Tables struct {
	Events       []internal.DwcEvent
	Occurrences  []internal.DwcOccurrence
	Measurements []internal.DwcMeasurement
}

// Assembler derives the three linked Darwin Core tables from the
// joined long table. Station metadata is constant: the dataset comes
// from a single fixed sampling station.
type Assembler struct {
	cfg config.Config
}

func NewAssembler(cfg config.Config) *Assembler {
	return &Assembler{cfg: cfg}
}

func (a *Assembler) Assemble(rows []internal.JoinedRow, matches map[string]internal.TaxonMatch) (Tables, error) {
	events, err := a.deriveEvents(rows)
	if err != nil {
		return Tables{}, err
	}

	occRows := occurrenceRows(rows)
	occurrences := a.deriveOccurrences(occRows, matches)
	measurements := a.deriveMeasurements(occRows, occurrences)

	return Tables{Events: events, Occurrences: occurrences, Measurements: measurements}, nil
}

func (a *Assembler) deriveEvents(rows []internal.JoinedRow) ([]internal.DwcEvent, error) {
	dates := map[string]*internal.JoinedRow{}
	order := []string{}
	volumes := map[string]*float64{}

	for i := range rows {
		row := &rows[i]
		if row.EventID == "" {
			continue
		}
		prev, seen := dates[row.EventID]
		if !seen {
			dates[row.EventID] = row
			order = append(order, row.EventID)
		} else if prev.EventDate != nil && row.EventDate != nil && !prev.EventDate.Equal(*row.EventDate) {
			return nil, fmt.Errorf("%w: eventID %s maps to both %s and %s",
				ErrEventDateConflict, row.EventID,
				prev.EventDate.Format(dateKeyLayout), row.EventDate.Format(dateKeyLayout))
		} else if prev.EventDate == nil && row.EventDate != nil {
			dates[row.EventID] = row
		}
		if volumes[row.EventID] == nil && row.FilteredVolumeM3 != nil {
			volumes[row.EventID] = row.FilteredVolumeM3
		}
	}

	sort.Strings(order)
	out := make([]internal.DwcEvent, 0, len(order))
	for _, id := range order {
		row := dates[id]
		ev := internal.DwcEvent{
			EventID:          id,
			DecimalLatitude:  a.cfg.StationLatitude,
			DecimalLongitude: a.cfg.StationLongitude,
			Locality:         a.cfg.StationLocality,
			Country:          a.cfg.StationCountry,
			StateProvince:    a.cfg.StationProvince,
			WaterBody:        a.cfg.StationWaterBody,
			MinimumDepthM:    a.cfg.StationMinDepthM,
			MaximumDepthM:    a.cfg.StationMaxDepthM,
			SamplingProtocol: a.cfg.SamplingProtocol,
		}
		if row.EventDate != nil {
			ev.EventDate = row.EventDate.Format(dateKeyLayout)
		}
		if v := volumes[id]; v != nil {
			ev.SampleSizeValue = v
			ev.SampleSizeUnit = sampleSizeUnit
		}
		out = append(out, ev)
	}
	return out, nil
}

// occurrenceRows selects the joined rows that carry a measured cell
// and fixes the occurrence order: eventID first, then original input
// order. The occurrenceID sequence depends on this sort, so it is
// explicit rather than inherited from pipeline order. Rows with no
// measurement at all are omitted entirely; an explicit zero is a
// record of absence, a missing cell is not a record.
func occurrenceRows(rows []internal.JoinedRow) []internal.JoinedRow {
	out := make([]internal.JoinedRow, 0, len(rows))
	for _, row := range rows {
		if row.Cell == nil || row.Cell.Value == nil {
			continue
		}
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EventID != out[j].EventID {
			return out[i].EventID < out[j].EventID
		}
		return out[i].InputOrder < out[j].InputOrder
	})
	return out
}

func (a *Assembler) deriveOccurrences(rows []internal.JoinedRow, matches map[string]internal.TaxonMatch) []internal.DwcOccurrence {
	out := make([]internal.DwcOccurrence, 0, len(rows))
	for i, row := range rows {
		status := internal.StatusAbsent
		if *row.Cell.Value > 0 {
			status = internal.StatusPresent
		}
		occ := internal.DwcOccurrence{
			EventID:          row.EventID,
			OccurrenceID:     fmt.Sprintf("%s-occ%d", row.EventID, i+1),
			ScientificName:   row.Cell.ScientificName,
			LifeStage:        row.Cell.Stage,
			OccurrenceStatus: status,
		}
		if match, ok := matches[row.Cell.ScientificName]; ok && match.Status == internal.MatchFound && match.Record != nil {
			occ.ScientificNameID = match.Record.LSID
			occ.TaxonRank = match.Record.Rank
		}
		out = append(out, occ)
	}
	return out
}

func (a *Assembler) deriveMeasurements(rows []internal.JoinedRow, occurrences []internal.DwcOccurrence) []internal.DwcMeasurement {
	out := make([]internal.DwcMeasurement, 0, len(rows)*2)
	for i, row := range rows {
		occ := occurrences[i]
		eventDate := ""
		if row.EventDate != nil {
			eventDate = row.EventDate.Format(dateKeyLayout)
		}

		emit := func(measurementType, value string) {
			if strings.TrimSpace(value) == "" {
				return
			}
			vocab := lookupMeasurementVocab(measurementType)
			out = append(out, internal.DwcMeasurement{
				EventID:            occ.EventID,
				EventDate:          eventDate,
				OccurrenceID:       occ.OccurrenceID,
				MeasurementType:    measurementType,
				MeasurementValue:   value,
				MeasurementUnit:    vocab.unit,
				MeasurementRemarks: vocab.remarks,
			})
		}

		emit(measurementTypeCount, util.FormatValue(*row.Cell.Value))
		emit(measurementTypeStage, util.DerefString(row.Cell.Stage))
	}
	return out
}
