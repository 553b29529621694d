package storage

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/tablerake/tablerake/internal/record"
)

// SQLite stores each dataset as position-ordered JSON rows in a local
// database. Save runs in one transaction (delete + insert), which gives
// the all-or-nothing guarantee the Backend contract requires. It also
// keeps run history.
type SQLite struct {
	db      *sql.DB
	dataset string
}

// NewSQLite opens (or creates) the database at dsn, configures WAL
// mode, and scopes the backend to one dataset.
func NewSQLite(dsn, dataset string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}

	s := &SQLite{db: db, dataset: dataset}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS records (
	dataset  TEXT NOT NULL,
	position INTEGER NOT NULL,
	data     TEXT NOT NULL,
	PRIMARY KEY (dataset, position)
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	dataset     TEXT NOT NULL,
	source      TEXT NOT NULL,
	inserted    INTEGER NOT NULL,
	updated     INTEGER NOT NULL,
	unchanged   INTEGER NOT NULL,
	total       INTEGER NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset, finished_at);
`

func (s *SQLite) migrate() error {
	_, err := s.db.Exec(sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Close() error { return s.db.Close() }

// Load reads the dataset's rows in stored order. An unknown dataset is
// an empty set; a row that no longer parses as a record is corruption.
func (s *SQLite) Load(ctx context.Context) (record.Set, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM records WHERE dataset = ? ORDER BY position`,
		s.dataset,
	)
	if err != nil {
		return nil, &UnavailableError{Backend: s.Name(), Err: err}
	}
	defer rows.Close()

	records := record.Set{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, &UnavailableError{Backend: s.Name(), Err: err}
		}
		var r record.Record
		if err := json.Unmarshal([]byte(data), &r); err != nil {
			return nil, &CorruptError{Backend: s.Name(), Err: err}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &UnavailableError{Backend: s.Name(), Err: err}
	}
	return records, nil
}

// Save replaces the dataset's rows inside one transaction.
func (s *SQLite) Save(ctx context.Context, records record.Set) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &UnavailableError{Backend: s.Name(), Err: err}
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE dataset = ?`, s.dataset); err != nil {
		return &UnavailableError{Backend: s.Name(), Err: err}
	}

	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal record %d", i)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (dataset, position, data) VALUES (?, ?, ?)`,
			s.dataset, i, string(data),
		); err != nil {
			return &UnavailableError{Backend: s.Name(), Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &UnavailableError{Backend: s.Name(), Err: err}
	}
	return nil
}

// LogRun appends one run history row.
func (s *SQLite) LogRun(ctx context.Context, entry RunEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, dataset, source, inserted, updated, unchanged, total, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Dataset, entry.Source,
		entry.Inserted, entry.Updated, entry.Unchanged, entry.Total,
		entry.StartedAt.UTC(), entry.FinishedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: insert run")
}

// ListRuns returns the most recent runs for a dataset, newest first.
func (s *SQLite) ListRuns(ctx context.Context, dataset string, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, dataset, source, inserted, updated, unchanged, total, started_at, finished_at
		 FROM runs WHERE dataset = ? ORDER BY finished_at DESC LIMIT ?`,
		dataset, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var out []RunEntry
	for rows.Next() {
		var e RunEntry
		if err := rows.Scan(&e.ID, &e.Dataset, &e.Source,
			&e.Inserted, &e.Updated, &e.Unchanged, &e.Total,
			&e.StartedAt, &e.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list runs")
}
