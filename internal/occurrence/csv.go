package occurrence

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// #region csv-store

// CSVStore persists the table as a comma separated file with a header row.
type CSVStore struct {
	path string
}

// NewCSVStore returns a store for path. The file need not exist yet.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

// Path returns the backing file path.
func (s *CSVStore) Path() string { return s.path }

func (s *CSVStore) Close() error { return nil }

// #endregion csv-store

// #region load

// Load reads and validates the whole file.
func (s *CSVStore) Load(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("load", s.path, err)
	}
	f, err := os.Open(s.path)
	if err != nil {
		return nil, unavailable("load", s.path, err)
	}
	defer f.Close()

	records, err := decodeCSV(f)
	if err != nil {
		return nil, unavailable("load", s.path, err)
	}
	return records, nil
}

func decodeCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file, header missing")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	for i, col := range Header {
		if strings.TrimPrefix(strings.TrimSpace(header[i]), "\ufeff") != col {
			return nil, fmt.Errorf("header column %d is %q, want %q", i, header[i], col)
		}
	}

	records := []Record{}
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		rec, err := decodeRow(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := Validate(records); err != nil {
		return nil, err
	}
	return records, nil
}

func decodeRow(row []string) (Record, error) {
	cat, err := ParseCategory(row[0])
	if err != nil {
		return Record{}, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(row[2]))
	if err != nil {
		return Record{}, fmt.Errorf("occurrences %q: %w", row[2], err)
	}
	prof, err := ParseProfile(row[3])
	if err != nil {
		return Record{}, err
	}
	return Record{
		Category:    cat,
		Application: row[1],
		Occurrences: n,
		Profile:     prof,
	}, nil
}

// #endregion load

// #region save

// Save writes the table to a temp file next to the target and renames it into
// place. The target keeps its permissions; a new file gets 0644.
func (s *CSVStore) Save(ctx context.Context, records []Record) error {
	if err := ctx.Err(); err != nil {
		return writeFailed("save", s.path, err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return writeFailed("save", s.path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := encodeCSV(tmp, records); err != nil {
		tmp.Close()
		return writeFailed("save", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		return writeFailed("save", s.path, err)
	}
	mode := os.FileMode(0644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return writeFailed("save", s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return writeFailed("save", s.path, err)
	}
	return nil
}

func encodeCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Category.String(),
			r.Application,
			strconv.Itoa(r.Occurrences),
			r.Profile.String(),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// #endregion save
