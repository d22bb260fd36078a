package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"districtvotes/internal"
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
	// Levels reconcile in parallel; a single connection serializes writers.
	conn.SetMaxOpenConns(1)

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
CREATE TABLE IF NOT EXISTS sources (
  id TEXT PRIMARY KEY,
  year INTEGER NOT NULL,
  level TEXT NOT NULL,
  plan TEXT NOT NULL,
  kind TEXT NOT NULL,
  path TEXT NOT NULL,
  url TEXT,
  checksum TEXT,
  pageCount INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS source_flags (
  sourceId TEXT PRIMARY KEY,
  year INTEGER NOT NULL,
  level TEXT NOT NULL,
  reason TEXT NOT NULL,
  flaggedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS records (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  year INTEGER NOT NULL,
  level TEXT NOT NULL,
  plan TEXT NOT NULL,
  district TEXT NOT NULL,
  office TEXT NOT NULL,
  candidate TEXT NOT NULL,
  party TEXT NOT NULL,
  votes INTEGER NOT NULL,
  percentage REAL,
  UNIQUE(year, level, district, office, candidate)
);
CREATE INDEX IF NOT EXISTS idx_records_level_year ON records(level, year);

CREATE TABLE IF NOT EXISTS coverage_gaps (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  year INTEGER NOT NULL,
  level TEXT NOT NULL,
  office TEXT NOT NULL,
  district TEXT NOT NULL,
  UNIQUE(year, level, office, district)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  timingsJson TEXT NOT NULL,
  countsJson TEXT NOT NULL,
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

type SourceRow struct {
	internal.SourceDocument
	Status string
}

func (d *DB) UpsertSource(doc internal.SourceDocument, status string) error {
	_, err := d.conn.Exec(`
INSERT INTO sources (id, year, level, plan, kind, path, url, checksum, pageCount, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  path=excluded.path,
  url=excluded.url,
  checksum=excluded.checksum,
  pageCount=excluded.pageCount,
  status=excluded.status,
  updatedAt=CURRENT_TIMESTAMP
`, doc.ID(), doc.Year, string(doc.Level), doc.Plan, string(doc.Kind), doc.Path, doc.URL, doc.Checksum, doc.PageCount, status)
	return err
}

func (d *DB) GetSource(id string) (*SourceRow, error) {
	var (
		row           SourceRow
		level, kind   string
		url, checksum sql.NullString
	)
	err := d.conn.QueryRow(`
SELECT year, level, plan, kind, path, url, checksum, pageCount, status
FROM sources WHERE id = ?
`, id).Scan(&row.Year, &level, &row.Plan, &kind, &row.Path, &url, &checksum, &row.PageCount, &row.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	row.Level = internal.Level(level)
	row.Kind = internal.SourceKind(kind)
	row.URL = url.String
	row.Checksum = checksum.String
	return &row, nil
}

func (d *DB) FlagSource(doc internal.SourceDocument, reason string) error {
	_, err := d.conn.Exec(`
INSERT INTO source_flags (sourceId, year, level, reason) VALUES (?, ?, ?, ?)
ON CONFLICT(sourceId) DO UPDATE SET reason = excluded.reason, flaggedAt = CURRENT_TIMESTAMP
`, doc.ID(), doc.Year, string(doc.Level), reason)
	return err
}

// ClearSourceFlag lifts a flag so the source is tried again on the next run.
// It reports whether a flag existed.
func (d *DB) ClearSourceFlag(id string) (bool, error) {
	res, err := d.conn.Exec(`DELETE FROM source_flags WHERE sourceId = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// IncorrectSources maps flagged source IDs to the recorded reason.
func (d *DB) IncorrectSources(year int, level internal.Level) (map[string]string, error) {
	rows, err := d.conn.Query(`SELECT sourceId, reason FROM source_flags WHERE year = ? AND level = ?`, year, string(level))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var id, reason string
		if err := rows.Scan(&id, &reason); err != nil {
			return nil, err
		}
		out[id] = reason
	}
	return out, rows.Err()
}

// ReplaceRecords swaps the stored records of a (year, level) in one
// transaction. Readers see either the old set or the new one.
func (d *DB) ReplaceRecords(year int, level internal.Level, records []internal.DistrictRecord) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM records WHERE year = ? AND level = ?`, year, string(level)); err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
INSERT INTO records (year, level, plan, district, office, candidate, party, votes, percentage)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range records {
		if r.Year != year || r.Level != level {
			return fmt.Errorf("record %v outside %d %s", r.Key(), year, level)
		}
		if _, err := stmt.Exec(r.Year, string(r.Level), r.Plan, r.District, r.Office, r.Candidate, r.Party, r.Votes, r.Percentage); err != nil {
			return fmt.Errorf("insert %v: %w", r.Key(), err)
		}
	}

	return tx.Commit()
}

// ListRecords returns the stored records of a level. year 0 means all years.
func (d *DB) ListRecords(year int, level internal.Level) ([]internal.DistrictRecord, error) {
	rows, err := d.conn.Query(`
SELECT year, level, plan, district, office, candidate, party, votes, percentage
FROM records
WHERE level = ? AND (? = 0 OR year = ?)
ORDER BY year, id
`, string(level), year, year)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DistrictRecord
	for rows.Next() {
		var (
			r   internal.DistrictRecord
			lvl string
			pct sql.NullFloat64
		)
		if err := rows.Scan(&r.Year, &lvl, &r.Plan, &r.District, &r.Office, &r.Candidate, &r.Party, &r.Votes, &pct); err != nil {
			return nil, err
		}
		r.Level = internal.Level(lvl)
		if pct.Valid {
			v := pct.Float64
			r.Percentage = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReplaceCoverage stores the gaps of a report. Districts missing for every
// office are stored with an empty office.
func (d *DB) ReplaceCoverage(report internal.CoverageReport) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM coverage_gaps WHERE year = ? AND level = ?`, report.Year, string(report.Level)); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO coverage_gaps (year, level, office, district) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	insert := func(office string, districts []string) error {
		for _, district := range districts {
			if _, err := stmt.Exec(report.Year, string(report.Level), office, district); err != nil {
				return err
			}
		}
		return nil
	}
	if err := insert("", report.Missing); err != nil {
		return err
	}
	for _, g := range report.Gaps {
		if err := insert(g.Office, g.Missing); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type CoverageGapRow struct {
	Year     int
	Level    internal.Level
	Office   string
	District string
}

func (d *DB) ListCoverageGaps(level internal.Level) ([]CoverageGapRow, error) {
	rows, err := d.conn.Query(`
SELECT year, level, office, district FROM coverage_gaps
WHERE level = ? ORDER BY year, office, id
`, string(level))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CoverageGapRow
	for rows.Next() {
		var (
			g   CoverageGapRow
			lvl string
		)
		if err := rows.Scan(&g.Year, &lvl, &g.Office, &g.District); err != nil {
			return nil, err
		}
		g.Level = internal.Level(lvl)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (d *DB) InsertRun(traceID string, timings map[string]float64, counts map[string]int) error {
	timingsJSON, _ := json.Marshal(timings)
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, timingsJson, countsJson) VALUES (?, ?, ?)`, traceID, string(timingsJSON), string(countsJSON))
	return err
}

type RunRow struct {
	TraceID string
	Timings map[string]float64
	Counts  map[string]int
}

func (d *DB) LastRun() (*RunRow, error) {
	var (
		row                     RunRow
		timingsJSON, countsJSON string
	)
	err := d.conn.QueryRow(`SELECT traceId, timingsJson, countsJson FROM runs ORDER BY id DESC LIMIT 1`).Scan(&row.TraceID, &timingsJSON, &countsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(timingsJSON), &row.Timings)
	_ = json.Unmarshal([]byte(countsJSON), &row.Counts)
	return &row, nil
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
