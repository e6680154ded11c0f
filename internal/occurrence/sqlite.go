package occurrence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS occurrence_records (
	position     INTEGER PRIMARY KEY,
	category     TEXT NOT NULL,
	application  TEXT NOT NULL,
	occurrences  INTEGER NOT NULL CHECK (occurrences >= 0),
	profile      TEXT NOT NULL,
	UNIQUE (application, profile)
);

CREATE TABLE IF NOT EXISTS table_versions (
	version_id   TEXT PRIMARY KEY,
	parent_id    TEXT,
	row_count    INTEGER NOT NULL,
	total_occurrences INTEGER NOT NULL,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (parent_id) REFERENCES table_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_version (
	id           INTEGER PRIMARY KEY CHECK (id = 1),
	version_id   TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES table_versions(version_id)
);
`

// versionTimeLayout keeps nanoseconds fixed width so created_at sorts as text.
const versionTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #endregion schema

// #region store-struct

// SQLiteStore keeps the table in SQLite and appends a version row on every save.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// TableVersion is one saved snapshot of the table.
type TableVersion struct {
	VersionID        string
	ParentID         string
	RowCount         int
	TotalOccurrences int
	CreatedAt        time.Time
}

// #endregion store-struct

// #region constructor

// NewSQLiteStore opens a SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db, path: dbPath}, nil
}

// NewSQLiteStoreWithDB wraps an already migrated database.
func NewSQLiteStoreWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, path: "sqlite"}
}

// #endregion constructor

// #region close

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. the cycle journal).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// #endregion close

// #region load

// Load reads every row in position order. A database that never saved a
// table reports ErrStorageUnavailable, like a missing CSV file.
func (s *SQLiteStore) Load(ctx context.Context) ([]Record, error) {
	var versionID string
	err := s.db.QueryRowContext(ctx, `SELECT version_id FROM active_version WHERE id = 1`).Scan(&versionID)
	if err == sql.ErrNoRows {
		return nil, unavailable("load", s.path, fmt.Errorf("no table saved yet"))
	}
	if err != nil {
		return nil, unavailable("load", s.path, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, application, occurrences, profile
		 FROM occurrence_records ORDER BY position ASC`)
	if err != nil {
		return nil, unavailable("load", s.path, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var cat, app, prof string
		var n int
		if err := rows.Scan(&cat, &app, &n, &prof); err != nil {
			return nil, unavailable("load", s.path, fmt.Errorf("scan row: %w", err))
		}
		rec, err := decodeRow([]string{cat, app, fmt.Sprint(n), prof})
		if err != nil {
			return nil, unavailable("load", s.path, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("load", s.path, err)
	}
	return records, nil
}

// #endregion load

// #region save

// Save replaces all rows and appends a version in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, records []Record) error {
	if err := Validate(records); err != nil {
		return writeFailed("save", s.path, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return writeFailed("save", s.path, fmt.Errorf("begin tx: %w", err))
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM occurrence_records`); err != nil {
		return writeFailed("save", s.path, fmt.Errorf("clear rows: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO occurrence_records (position, category, application, occurrences, profile)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return writeFailed("save", s.path, fmt.Errorf("prepare insert: %w", err))
	}
	defer stmt.Close()

	total := 0
	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, i, r.Category.String(), r.Application, r.Occurrences, r.Profile.String()); err != nil {
			return writeFailed("save", s.path, fmt.Errorf("insert row %d: %w", i, err))
		}
		total += r.Occurrences
	}

	var parent sql.NullString
	err = tx.QueryRowContext(ctx, `SELECT version_id FROM active_version WHERE id = 1`).Scan(&parent)
	if err != nil && err != sql.ErrNoRows {
		return writeFailed("save", s.path, fmt.Errorf("get active: %w", err))
	}

	var parentPtr interface{}
	if parent.Valid {
		parentPtr = parent.String
	}
	id := uuid.New().String()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO table_versions (version_id, parent_id, row_count, total_occurrences, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, parentPtr, len(records), total, time.Now().UTC().Format(versionTimeLayout),
	)
	if err != nil {
		return writeFailed("save", s.path, fmt.Errorf("insert version: %w", err))
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO active_version (id, version_id) VALUES (1, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id`,
		id,
	)
	if err != nil {
		return writeFailed("save", s.path, fmt.Errorf("set active: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return writeFailed("save", s.path, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// #endregion save

// #region list-versions

// Versions returns the most recent table snapshots, newest first.
func (s *SQLiteStore) Versions(ctx context.Context, limit int) ([]TableVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version_id, parent_id, row_count, total_occurrences, created_at
		 FROM table_versions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []TableVersion
	for rows.Next() {
		var v TableVersion
		var parentID sql.NullString
		var createdStr string
		if err := rows.Scan(&v.VersionID, &parentID, &v.RowCount, &v.TotalOccurrences, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if parentID.Valid {
			v.ParentID = parentID.String
		}
		v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// #endregion list-versions
