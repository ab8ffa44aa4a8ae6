package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"plankton/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS taxon_matches (
  name TEXT PRIMARY KEY,
  status TEXT NOT NULL,
  aphiaId INTEGER,
  scientificName TEXT,
  authority TEXT,
  rank TEXT,
  lsid TEXT,
  matchType TEXT,
  rawJson TEXT,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS submissions (
  id TEXT PRIMARY KEY,
  submittedAt TEXT,
  flatJson TEXT NOT NULL,
  rawJson TEXT NOT NULL,
  fetchedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  countsJson TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertTaxonMatch(match internal.TaxonMatch) error {
	var aphiaID *int
	var scientificName, authority, rank, lsid, matchType, rawJSON *string
	if match.Record != nil {
		id := match.Record.AphiaID
		name := match.Record.ScientificName
		raw := match.Record.RawJSON
		aphiaID = &id
		scientificName = &name
		authority = match.Record.Authority
		rank = match.Record.Rank
		lsid = match.Record.LSID
		matchType = match.Record.MatchType
		rawJSON = &raw
	}

	_, err := d.conn.Exec(`
INSERT INTO taxon_matches (name, status, aphiaId, scientificName, authority, rank, lsid, matchType, rawJson)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  status=excluded.status,
  aphiaId=excluded.aphiaId,
  scientificName=excluded.scientificName,
  authority=excluded.authority,
  rank=excluded.rank,
  lsid=excluded.lsid,
  matchType=excluded.matchType,
  rawJson=excluded.rawJson,
  updatedAt=CURRENT_TIMESTAMP
`, match.Name, string(match.Status), aphiaID, scientificName, authority, rank, lsid, matchType, rawJSON)
	return err
}

func (d *DB) GetTaxonMatch(name string) (*internal.TaxonMatch, error) {
	var status string
	var aphiaID *int
	var scientificName, authority, rank, lsid, matchType, rawJSON *string
	err := d.conn.QueryRow(`
SELECT status, aphiaId, scientificName, authority, rank, lsid, matchType, rawJson
FROM taxon_matches WHERE name = ?
`, name).Scan(&status, &aphiaID, &scientificName, &authority, &rank, &lsid, &matchType, &rawJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	match := internal.TaxonMatch{Name: name, Status: internal.MatchStatus(status)}
	if aphiaID != nil {
		record := internal.AphiaRecord{
			AphiaID:   *aphiaID,
			Authority: authority,
			Rank:      rank,
			LSID:      lsid,
			MatchType: matchType,
		}
		if scientificName != nil {
			record.ScientificName = *scientificName
		}
		if rawJSON != nil {
			record.RawJSON = *rawJSON
		}
		match.Record = &record
	}
	return &match, nil
}

func (d *DB) UpsertSubmissions(submissions []internal.Submission) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
INSERT INTO submissions (id, submittedAt, flatJson, rawJson, fetchedAt)
VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(id) DO UPDATE SET
  submittedAt=excluded.submittedAt,
  flatJson=excluded.flatJson,
  rawJson=excluded.rawJson,
  fetchedAt=CURRENT_TIMESTAMP
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, sub := range submissions {
		flatJSON, err := json.Marshal(sub.Flat)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(sub.ID, sub.SubmittedAt, string(flatJSON), sub.RawJSON); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DB) ListSubmissions() ([]internal.Submission, error) {
	rows, err := d.conn.Query(`SELECT id, submittedAt, flatJson, rawJson FROM submissions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.Submission
	for rows.Next() {
		var sub internal.Submission
		var flatJSON string
		if err := rows.Scan(&sub.ID, &sub.SubmittedAt, &flatJSON, &sub.RawJSON); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(flatJSON), &sub.Flat); err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (d *DB) InsertRun(traceID string, counts map[string]int, timings map[string]float64) error {
	countsJSON, _ := json.Marshal(counts)
	timingsJSON, _ := json.Marshal(timings)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, countsJson, timingsJson) VALUES (?, ?, ?)`,
		traceID, string(countsJSON), string(timingsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
