package pipeline

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"plankton/internal"
	"plankton/internal/config"
	"plankton/internal/storage"
	"plankton/internal/worms"
)

// BuildService runs the whole batch: read both workbooks, normalize
// and pivot, join against the sample index, assemble the three Darwin
// Core tables, optionally enrich names, and export.
type BuildService struct {
	db      *storage.DB
	cfg     config.Config
	matcher *worms.Matcher
}

// NewBuildService wires a build run; matcher may be nil to skip
// taxonomic enrichment.
func NewBuildService(db *storage.DB, cfg config.Config, matcher *worms.Matcher) *BuildService {
	return &BuildService{db: db, cfg: cfg, matcher: matcher}
}

type BuildResult struct {
	internal.BuildCounts
	OutDir string
}

func (s *BuildService) Build(ctx context.Context, abundancePath, samplesPath, outDir, format string) (BuildResult, error) {
	start := time.Now()

	// Input validation failures are fatal before anything is read or
	// written.
	if format != "csv" && format != "xlsx" {
		return BuildResult{}, fmt.Errorf("unsupported output format: %s", format)
	}

	matrix, err := ReadAbundanceMatrix(abundancePath)
	if err != nil {
		return BuildResult{}, err
	}
	index, err := ReadSampleIndex(samplesPath)
	if err != nil {
		return BuildResult{}, err
	}

	cells := DedupeCells(Reshape(matrix))
	rows := Join(cells, index)

	names := DistinctNames(cells)
	counts := internal.BuildCounts{UniqueTaxa: len(names)}

	matches := map[string]internal.TaxonMatch{}
	if s.matcher != nil {
		matches = s.matcher.MatchAll(ctx, names)
		for _, match := range matches {
			if match.Status == internal.MatchFound {
				counts.Matched++
			} else {
				counts.Unmatched++
			}
		}
	}

	tables, err := NewAssembler(s.cfg).Assemble(rows, matches)
	if err != nil {
		return BuildResult{}, err
	}
	if err := Export(tables, outDir, format); err != nil {
		return BuildResult{}, err
	}

	counts.Events = len(tables.Events)
	counts.Occurrences = len(tables.Occurrences)
	counts.Measurements = len(tables.Measurements)

	if s.db != nil {
		_ = s.db.InsertRun(traceID(), map[string]int{
			"events":       counts.Events,
			"occurrences":  counts.Occurrences,
			"measurements": counts.Measurements,
			"uniqueTaxa":   counts.UniqueTaxa,
			"matched":      counts.Matched,
			"unmatched":    counts.Unmatched,
		}, map[string]float64{
			"totalMs": float64(time.Since(start).Milliseconds()),
		})
	}

	return BuildResult{BuildCounts: counts, OutDir: outDir}, nil
}

// DistinctNames returns the sorted set of standardized names, so
// enrichment touches the matching service once per name, not once
// per occurrence.
func DistinctNames(cells []internal.AbundanceCell) []string {
	set := map[string]struct{}{}
	for _, cell := range cells {
		if cell.ScientificName != "" {
			set[cell.ScientificName] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func traceID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}
