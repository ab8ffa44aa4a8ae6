package surveys

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"

	"plankton/internal"
	"plankton/internal/util"
)

// WriteSubmissionsCSV writes the flattened rows under the sparse
// union of every column that appears in any submission; rows missing
// a column get an empty cell. Column order is sorted so repeated
// exports of the same data are byte-identical.
func WriteSubmissionsCSV(submissions []internal.Submission, path string) error {
	columnSet := map[string]struct{}{}
	for _, sub := range submissions {
		for key := range sub.Flat {
			columnSet[key] = struct{}{}
		}
	}
	columns := make([]string, 0, len(columnSet))
	for key := range columnSet {
		columns = append(columns, key)
	}
	sort.Strings(columns)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := append([]string{"submission_id", "submitted_at"}, columns...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, sub := range submissions {
		record := make([]string, 0, len(header))
		record = append(record, sub.ID, util.DerefString(sub.SubmittedAt))
		for _, col := range columns {
			record = append(record, sub.Flat[col])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
