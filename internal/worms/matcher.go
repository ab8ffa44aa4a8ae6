package worms

import (
	"context"
	"fmt"
	"os"

	"plankton/internal"
	"plankton/internal/storage"
)

// NameClient is the lookup boundary: name in, best-match record or
// nothing out.
type NameClient interface {
	AphiaRecordsByName(ctx context.Context, name string) (*internal.AphiaRecord, error)
}

// Matcher memoizes lookups per distinct normalized name, in process
// and through the sqlite cache, so a name shared by thousands of
// occurrences costs one request. Lookup failures degrade to an
// unmatched result; the batch never aborts on a single name.
type Matcher struct {
	client NameClient
	db     *storage.DB
	cache  map[string]internal.TaxonMatch
}

// NewMatcher wires a matcher; db may be nil for uncached use.
func NewMatcher(client NameClient, db *storage.DB) *Matcher {
	return &Matcher{client: client, db: db, cache: map[string]internal.TaxonMatch{}}
}

func (m *Matcher) Match(ctx context.Context, name string) internal.TaxonMatch {
	if hit, ok := m.cache[name]; ok {
		return hit
	}
	if m.db != nil {
		if stored, err := m.db.GetTaxonMatch(name); err == nil && stored != nil {
			m.cache[name] = *stored
			return *stored
		}
	}

	match := internal.TaxonMatch{Name: name, Status: internal.MatchUnmatched}
	record, err := m.client.AphiaRecordsByName(ctx, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "worms lookup failed for %q: %v\n", name, err)
		m.cache[name] = match
		return match
	}
	if record != nil {
		match.Status = internal.MatchFound
		match.Record = record
	}

	m.cache[name] = match
	if m.db != nil {
		// Only settled answers are persisted; transport failures
		// above stay uncached so a later run retries them.
		if err := m.db.UpsertTaxonMatch(match); err != nil {
			fmt.Fprintf(os.Stderr, "failed to cache match for %q: %v\n", name, err)
		}
	}
	return match
}

// MatchAll resolves every distinct name, in the given order.
func (m *Matcher) MatchAll(ctx context.Context, names []string) map[string]internal.TaxonMatch {
	out := make(map[string]internal.TaxonMatch, len(names))
	for _, name := range names {
		out[name] = m.Match(ctx, name)
	}
	return out
}
