package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"plankton/internal"
	"plankton/internal/util"
)

// WideRow is one identifying row of the species-by-sample abundance
// matrix: a raw taxon label, an optional life stage, and one value
// slot per sample column (nil when the cell is empty).
type WideRow struct {
	RowNumber int
	Name      string
	Stage     *string
	Values    []*float64
}

type WideMatrix struct {
	Headers []string
	Rows    []WideRow
}

// ReadAbundanceMatrix loads the first sheet of a wide abundance
// workbook. The leading identifying columns are located by header
// probes; every remaining column is treated as a sample column.
func ReadAbundanceMatrix(path string) (*WideMatrix, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in %s", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("abundance matrix %s has no data rows", path)
	}

	header := normalizeCells(rows[0])
	nameIdx, stageIdx := inferIdentifyingColumns(header)
	if nameIdx < 0 {
		nameIdx = 0
	}

	identifying := map[int]bool{nameIdx: true}
	if stageIdx >= 0 {
		identifying[stageIdx] = true
	}

	matrix := &WideMatrix{}
	sampleCols := []int{}
	for i, h := range header {
		if identifying[i] || strings.TrimSpace(h) == "" {
			continue
		}
		sampleCols = append(sampleCols, i)
		matrix.Headers = append(matrix.Headers, strings.TrimSpace(h))
	}
	if len(sampleCols) == 0 {
		return nil, fmt.Errorf("abundance matrix %s has no sample columns", path)
	}

	for i := 1; i < len(rows); i++ {
		cells := normalizeCells(rows[i])
		name := pickCell(cells, nameIdx)
		if name == "" {
			continue
		}
		row := WideRow{RowNumber: i + 1, Name: name, Values: make([]*float64, len(sampleCols))}
		if stageIdx >= 0 {
			if stage := pickCell(cells, stageIdx); stage != "" {
				row.Stage = util.StringPtr(stage)
			}
		}
		for j, col := range sampleCols {
			row.Values[j] = parseCellValue(pickCell(cells, col))
		}
		matrix.Rows = append(matrix.Rows, row)
	}

	return matrix, nil
}

// ReadSampleIndex loads the sample-identifier lookup workbook mapping
// each sampling event to its calendar date and filtered volume.
func ReadSampleIndex(path string) ([]internal.SampleEvent, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("no sheets in %s", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("sample index %s has no data rows", path)
	}

	header := normalizeCells(rows[0])
	idIdx := findHeaderIndex(header, []string{"sample", "amostra", "station", "id"})
	dateIdx := findHeaderIndex(header, []string{"date", "data"})
	volIdx := findHeaderIndex(header, []string{"volume", "vol"})
	if idIdx < 0 {
		idIdx = 0
	}
	if dateIdx < 0 {
		dateIdx = 1
	}

	var out []internal.SampleEvent
	for i := 1; i < len(rows); i++ {
		cells := normalizeCells(rows[i])
		rawID := pickCell(cells, idIdx)
		if rawID == "" {
			continue
		}
		date, ok := ParseDateValue(pickCell(cells, dateIdx))
		if !ok {
			return nil, fmt.Errorf("sample index %s row %d: unparseable date %q for sample %q",
				path, i+1, pickCell(cells, dateIdx), rawID)
		}
		ev := internal.SampleEvent{
			RawID:   rawID,
			CleanID: util.CleanSampleID(rawID),
			Date:    date,
		}
		if volIdx >= 0 {
			ev.FilteredVolumeM3 = parseCellValue(pickCell(cells, volIdx))
		}
		out = append(out, ev)
	}

	return out, nil
}

func inferIdentifyingColumns(header []string) (nameIdx, stageIdx int) {
	nameIdx = findHeaderIndex(header, []string{"taxon", "species", "especie", "name"})
	stageIdx = findHeaderIndex(header, []string{"stage", "estadio", "life"})
	return
}

func findHeaderIndex(headers []string, probes []string) int {
	for i, h := range headers {
		lower := strings.ToLower(h)
		for _, probe := range probes {
			if strings.Contains(lower, probe) {
				return i
			}
		}
	}
	return -1
}

func pickCell(cells []string, idx int) string {
	if idx >= 0 && idx < len(cells) {
		return strings.TrimSpace(cells[idx])
	}
	return ""
}

func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		out = append(out, util.NormalizeSpaces(c))
	}
	return out
}

// parseCellValue reads a numeric cell. Empty and NA cells are
// missing, never zero.
func parseCellValue(cell string) *float64 {
	s := strings.TrimSpace(cell)
	if s == "" || strings.EqualFold(s, "na") || strings.EqualFold(s, "n/a") {
		return nil
	}
	s = strings.ReplaceAll(s, ",", ".")
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return util.FloatPtr(parsed)
}
