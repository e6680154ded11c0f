package occurrence

import (
	"context"
	"fmt"
	"strings"
)

// #region store-interface

// Store is the read-all / write-all contract the session controller needs
// from the storage medium.
type Store interface {
	// Load reads the full table. Errors wrap ErrStorageUnavailable.
	Load(ctx context.Context) ([]Record, error)
	// Save overwrites the full table. Errors wrap ErrStorageWrite.
	Save(ctx context.Context, records []Record) error
	Close() error
}

// #endregion store-interface

// #region backend

// Backend names a Store implementation.
type Backend string

const (
	BackendCSV      Backend = "csv"
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
)

// ParseBackend normalizes a backend name.
func ParseBackend(s string) (Backend, error) {
	switch b := Backend(strings.ToLower(strings.TrimSpace(s))); b {
	case BackendCSV, BackendSQLite, BackendPostgres:
		return b, nil
	case "":
		return BackendCSV, nil
	default:
		return "", fmt.Errorf("unknown storage backend %q (want csv, sqlite or postgres)", s)
	}
}

// Open builds the Store for backend. location is a file path for csv and
// sqlite, a connection string for postgres.
func Open(ctx context.Context, backend Backend, location string) (Store, error) {
	switch backend {
	case BackendCSV, "":
		return NewCSVStore(location), nil
	case BackendSQLite:
		return NewSQLiteStore(location)
	case BackendPostgres:
		return NewPostgresStore(ctx, location)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}

// #endregion backend

// #region memory-store

// MemoryStore keeps the table in process. Used by replay and tests.
type MemoryStore struct {
	records []Record
	loaded  bool
	// FailSave makes every Save fail with ErrStorageWrite.
	FailSave bool
	Saves    int
}

// NewMemoryStore seeds a MemoryStore. A nil seed behaves like a missing file.
func NewMemoryStore(seed []Record) *MemoryStore {
	if seed == nil {
		return &MemoryStore{}
	}
	cp := make([]Record, len(seed))
	copy(cp, seed)
	return &MemoryStore{records: cp, loaded: true}
}

func (m *MemoryStore) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("load", "memory", err)
	}
	if !m.loaded {
		return nil, unavailable("load", "memory", fmt.Errorf("no table saved"))
	}
	cp := make([]Record, len(m.records))
	copy(cp, m.records)
	return cp, nil
}

func (m *MemoryStore) Save(ctx context.Context, records []Record) error {
	if m.FailSave {
		return writeFailed("save", "memory", fmt.Errorf("save disabled"))
	}
	if err := ctx.Err(); err != nil {
		return writeFailed("save", "memory", err)
	}
	m.records = make([]Record, len(records))
	copy(m.records, records)
	m.loaded = true
	m.Saves++
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// #endregion memory-store
