package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/tablerake/tablerake/internal/record"
)

// LocalFile stores the record set as a single JSON array on disk.
// Saves go through a temp file in the same directory followed by an
// atomic rename, so a crashed or failed save never leaves a
// half-written file where the next load would find it.
type LocalFile struct {
	path string
}

// NewLocalFile creates a file backend at the given path. The file does
// not need to exist; the parent directory is created on first save.
func NewLocalFile(path string) *LocalFile {
	return &LocalFile{path: path}
}

func (l *LocalFile) Name() string { return "file" }

func (l *LocalFile) Close() error { return nil }

// Load reads the full record set. A missing file is an empty set;
// unparseable content is a CorruptError, never silently empty.
func (l *LocalFile) Load(_ context.Context) (record.Set, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return record.Set{}, nil
	}
	if err != nil {
		return nil, &UnavailableError{Backend: l.Name(), Err: err}
	}

	var records record.Set
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &CorruptError{Backend: l.Name(), Err: err}
	}
	return records, nil
}

// Save replaces the file contents with the given set.
func (l *LocalFile) Save(_ context.Context, records record.Set) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return eris.Wrap(err, "file: marshal records")
	}
	data = append(data, '\n')

	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &UnavailableError{Backend: l.Name(), Err: err}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(l.path)+".tmp-*")
	if err != nil {
		return &UnavailableError{Backend: l.Name(), Err: err}
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return &UnavailableError{Backend: l.Name(), Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &UnavailableError{Backend: l.Name(), Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &UnavailableError{Backend: l.Name(), Err: err}
	}

	if err := os.Rename(tmpName, l.path); err != nil {
		return &UnavailableError{Backend: l.Name(), Err: err}
	}
	return nil
}
