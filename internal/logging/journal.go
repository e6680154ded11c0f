// Package logging persists one journal row per predict/choose cycle.
package logging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cycle_log (
	cycle_id    TEXT PRIMARY KEY,
	profile     TEXT NOT NULL,
	predicted   TEXT,
	chosen      TEXT NOT NULL,
	outcome     INTEGER NOT NULL CHECK (outcome IN (0, 1)),
	cursor      INTEGER NOT NULL,
	persisted   INTEGER NOT NULL,
	unknown     INTEGER NOT NULL,
	reason      TEXT,
	detail_json TEXT,
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cycle_log_created ON cycle_log(created_at);`

// timeLayout keeps nanoseconds fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region migrate
// Migrate creates the cycle_log table if it does not exist.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate cycle_log: %w", err)
	}
	return nil
}

// #endregion migrate

// #region log-cycle
// LogCycle writes a journal entry. A missing cycle id or timestamp is filled in.
func LogCycle(db *sql.DB, entry CycleEntry) (string, error) {
	if entry.CycleID == "" {
		entry.CycleID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := db.Exec(
		`INSERT INTO cycle_log (cycle_id, profile, predicted, chosen, outcome, cursor, persisted, unknown, reason, detail_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CycleID,
		entry.Profile,
		nullIfEmpty(entry.Predicted),
		entry.Chosen,
		entry.Outcome,
		entry.Cursor,
		boolInt(entry.Persisted),
		boolInt(entry.Unknown),
		nullIfEmpty(entry.Reason),
		nullIfEmpty(entry.DetailJSON),
		entry.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("log cycle: %w", err)
	}
	return entry.CycleID, nil
}

// #endregion log-cycle

// #region recent
// Recent returns up to limit entries, newest first.
func Recent(db *sql.DB, limit int) ([]CycleEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.Query(
		`SELECT cycle_id, profile, predicted, chosen, outcome, cursor, persisted, unknown, reason, detail_json, created_at
		 FROM cycle_log ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycle_log: %w", err)
	}
	defer rows.Close()

	var out []CycleEntry
	for rows.Next() {
		var (
			e                         CycleEntry
			predicted, reason, detail sql.NullString
			persisted, unknown        int
			createdAt                 string
		)
		if err := rows.Scan(&e.CycleID, &e.Profile, &predicted, &e.Chosen, &e.Outcome, &e.Cursor,
			&persisted, &unknown, &reason, &detail, &createdAt); err != nil {
			return nil, fmt.Errorf("scan cycle_log: %w", err)
		}
		e.Predicted = predicted.String
		e.Reason = reason.String
		e.DetailJSON = detail.String
		e.Persisted = persisted == 1
		e.Unknown = unknown == 1
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Detail decodes the entry's detail_json. An entry without one gives a zero value.
func (e CycleEntry) Detail() (CycleDetail, error) {
	var d CycleDetail
	if e.DetailJSON == "" {
		return d, nil
	}
	if err := json.Unmarshal([]byte(e.DetailJSON), &d); err != nil {
		return d, fmt.Errorf("decode detail %s: %w", e.CycleID, err)
	}
	return d, nil
}

// #endregion recent

// #region journal
// Journal is a cycle_log backed by its own SQLite file.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the journal database at path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db}, nil
}

// NewJournalWithDB wraps an existing connection and migrates it.
func NewJournalWithDB(db *sql.DB) (*Journal, error) {
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return &Journal{db: db}, nil
}

// Append records one cycle.
func (j *Journal) Append(ctx context.Context, entry CycleEntry) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return LogCycle(j.db, entry)
}

func (j *Journal) Recent(limit int) ([]CycleEntry, error) { return Recent(j.db, limit) }

func (j *Journal) DB() *sql.DB  { return j.db }
func (j *Journal) Close() error { return j.db.Close() }

// #endregion journal

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
