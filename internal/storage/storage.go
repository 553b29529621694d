// Package storage persists whole record sets through interchangeable
// backends: a local JSON file, an S3 object, SQLite, or Postgres.
// Every backend replaces prior contents wholesale on save; there are no
// incremental writes.
package storage

import (
	"context"
	"time"

	"github.com/tablerake/tablerake/internal/record"
)

// Backend loads and saves a full record set as an atomic unit.
//
// Load returns an empty set when no prior state exists; a first run is
// not an error. Save must be all-or-nothing from the caller's view: a
// failed save leaves the previous state readable by the next Load.
type Backend interface {
	Load(ctx context.Context) (record.Set, error)
	Save(ctx context.Context, records record.Set) error
	Name() string
	Close() error
}

// RunEntry is one completed scrape run, kept for history by backends
// that can store it.
type RunEntry struct {
	ID         string    `json:"id"`
	Dataset    string    `json:"dataset"`
	Source     string    `json:"source"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Unchanged  int       `json:"unchanged"`
	Total      int       `json:"total"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RunLogger is implemented by database backends that record run
// history alongside the record set. File and object backends do not.
type RunLogger interface {
	LogRun(ctx context.Context, entry RunEntry) error
	ListRuns(ctx context.Context, dataset string, limit int) ([]RunEntry, error)
}
