package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"plankton/internal"
	"plankton/internal/taxon"
)

// Excel stores dates as day counts from 1899-12-30, and several of
// the older counting sheets carry that raw serial as the column
// header. Both sides of the join must resolve a serial to the same
// calendar day or rows silently disappear, so all conversion goes
// through this one epoch.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// Serial bounds for headers accepted as dates; anything outside is a
// sample identifier that happens to be numeric.
const (
	serialMin = 10000 // 1927-05-18
	serialMax = 80000 // 2119-01-20
)

var dateLayouts = []string{
	"2006-01-02",
	"02.01.2006",
	"02/01/2006",
}

func excelSerialDate(serial int) time.Time {
	return excelEpoch.AddDate(0, 0, serial)
}

// ParseDateValue resolves a cell or header that encodes a date either
// as an Excel serial or as a date string.
func ParseDateValue(value string) (time.Time, bool) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n >= serialMin && n <= serialMax {
			return excelSerialDate(n), true
		}
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// Reshape pivots the wide abundance matrix into one record per
// (taxon row, sample column) pair. The raw label is standardized
// here so every downstream stage sees the canonical name next to the
// original. Empty cells come through with a nil value.
func Reshape(matrix *WideMatrix) []internal.AbundanceCell {
	cells := make([]internal.AbundanceCell, 0, len(matrix.Rows)*len(matrix.Headers))
	for _, row := range matrix.Rows {
		scientific := taxon.Standardize(row.Name)
		for j, header := range matrix.Headers {
			cells = append(cells, internal.AbundanceCell{
				SampleColumnID: header,
				OriginalName:   row.Name,
				ScientificName: scientific,
				Stage:          row.Stage,
				Value:          row.Values[j],
			})
		}
	}
	return cells
}

// DedupeCells drops exact repeats left over from the pivot; legacy
// sheets sometimes carry the same taxon row twice.
func DedupeCells(cells []internal.AbundanceCell) []internal.AbundanceCell {
	seen := map[string]struct{}{}
	out := make([]internal.AbundanceCell, 0, len(cells))
	for _, cell := range cells {
		valueKey := "null"
		if cell.Value != nil {
			valueKey = fmt.Sprintf("%g", *cell.Value)
		}
		stageKey := ""
		if cell.Stage != nil {
			stageKey = *cell.Stage
		}
		key := cell.SampleColumnID + "|" + cell.OriginalName + "|" + stageKey + "|" + valueKey
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, cell)
	}
	return out
}
