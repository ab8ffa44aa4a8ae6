package pipeline

import (
	"plankton/internal"
	"plankton/internal/util"
)

const dateKeyLayout = "2006-01-02"

// Join attaches sample-index metadata to every abundance record. The
// join is full outer by policy: abundance columns with no index entry
// keep nil date and volume so metadata gaps stay visible, and index
// entries never sampled for abundance are appended as bare rows.
//
// A column header joins by its cleaned identifier first; headers that
// encode a date (Excel serial or date string) fall back to a lookup
// by calendar day.
func Join(cells []internal.AbundanceCell, index []internal.SampleEvent) []internal.JoinedRow {
	byID := make(map[string]internal.SampleEvent, len(index))
	byDate := make(map[string]internal.SampleEvent, len(index))
	for _, ev := range index {
		byID[ev.CleanID] = ev
		byDate[ev.Date.Format(dateKeyLayout)] = ev
	}

	matched := map[string]bool{}
	rows := make([]internal.JoinedRow, 0, len(cells)+len(index))
	for i := range cells {
		cell := &cells[i]
		clean := util.CleanSampleID(cell.SampleColumnID)
		ev, ok := byID[clean]
		if !ok {
			if date, isDate := ParseDateValue(cell.SampleColumnID); isDate {
				ev, ok = byDate[date.Format(dateKeyLayout)]
			}
		}

		row := internal.JoinedRow{Cell: cell, EventID: clean, InputOrder: i}
		if ok {
			date := ev.Date
			row.EventID = ev.CleanID
			row.EventDate = &date
			row.FilteredVolumeM3 = ev.FilteredVolumeM3
			matched[ev.CleanID] = true
		}
		rows = append(rows, row)
	}

	for _, ev := range index {
		if matched[ev.CleanID] {
			continue
		}
		date := ev.Date
		rows = append(rows, internal.JoinedRow{
			EventID:          ev.CleanID,
			EventDate:        &date,
			FilteredVolumeM3: ev.FilteredVolumeM3,
			InputOrder:       len(rows),
		})
	}

	return rows
}
