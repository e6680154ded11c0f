package occurrence

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"
)

func tempDB(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_FreshDBIsUnavailable(t *testing.T) {
	s := tempDB(t)
	_, err := s.Load(context.Background())
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestSQLiteStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := tempDB(t)
	in := sampleTable()

	if err := s.Save(ctx, in); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(in, got) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, in)
	}
}

func TestSQLiteStore_SaveEmptyTable(t *testing.T) {
	ctx := context.Background()
	s := tempDB(t)
	if err := s.Save(ctx, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty table, got %d rows", len(got))
	}
}

func TestSQLiteStore_VersionsChain(t *testing.T) {
	ctx := context.Background()
	s := tempDB(t)
	tbl := sampleTable()

	if err := s.Save(ctx, tbl); err != nil {
		t.Fatalf("Save 1: %v", err)
	}
	tbl, _ = Increment(tbl, "Google Chrome", Admin)
	if err := s.Save(ctx, tbl); err != nil {
		t.Fatalf("Save 2: %v", err)
	}

	versions, err := s.Versions(ctx, 10)
	if err != nil {
		t.Fatalf("Versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}

	var root, child *TableVersion
	for i := range versions {
		if versions[i].ParentID == "" {
			root = &versions[i]
		} else {
			child = &versions[i]
		}
	}
	if root == nil || child == nil {
		t.Fatalf("expected one root and one child version: %+v", versions)
	}
	if child.ParentID != root.VersionID {
		t.Fatalf("child parent %s, want %s", child.ParentID, root.VersionID)
	}
	if child.TotalOccurrences != root.TotalOccurrences+1 {
		t.Fatalf("expected total to grow by 1: %d -> %d", root.TotalOccurrences, child.TotalOccurrences)
	}
}

func TestSQLiteStore_SaveRejectsDuplicates(t *testing.T) {
	s := tempDB(t)
	dup := append(sampleTable(), Record{WebBrowser, "Google Chrome", 1, Admin})
	err := s.Save(context.Background(), dup)
	if !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}
}

func TestSQLiteStore_NewInvalidPath(t *testing.T) {
	_, err := NewSQLiteStore(filepath.Join(string(os.PathSeparator), "nonexistent", "deep", "path", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}

func TestSQLiteStore_ClosedDB(t *testing.T) {
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	s.Close()

	if err := s.Save(context.Background(), sampleTable()); !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite on closed DB, got %v", err)
	}
	if _, err := s.Load(context.Background()); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable on closed DB, got %v", err)
	}
}

// corruptDB opens an in-memory SQLite with full schema via NewSQLiteStoreWithDB.
func corruptDB(t *testing.T) (*SQLiteStore, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLiteStoreWithDB(db), db
}

func TestSQLiteStore_BadLabelInRow(t *testing.T) {
	s, db := corruptDB(t)
	if err := s.Save(context.Background(), sampleTable()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	db.Exec(`UPDATE occurrence_records SET profile = 'Root' WHERE position = 0`)

	_, err := s.Load(context.Background())
	if !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestSQLiteStore_SaveFailsWithoutVersionTable(t *testing.T) {
	s, db := corruptDB(t)
	db.Exec("DROP TABLE active_version")
	db.Exec("DROP TABLE table_versions")

	err := s.Save(context.Background(), sampleTable())
	if !errors.Is(err, ErrStorageWrite) {
		t.Fatalf("expected ErrStorageWrite, got %v", err)
	}
}

func TestSQLiteStore_NewCorruptFile(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "corrupt.db")
	os.WriteFile(dbPath, []byte("not a sqlite database"), 0644)

	_, err := NewSQLiteStore(dbPath)
	if err == nil {
		t.Fatal("expected error for corrupted DB file")
	}
}
