package storage

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/tablerake/tablerake/internal/record"
)

// PgxPool is the subset of pgxpool.Pool the backend uses. pgxmock's
// pool implements it, which keeps the unit tests off a live database.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Postgres stores datasets in position-ordered JSONB rows. Save runs in
// a transaction, same replace semantics as the SQLite backend.
type Postgres struct {
	pool    PgxPool
	dataset string
}

// NewPostgres connects a pool to the given database URL and scopes the
// backend to one dataset.
func NewPostgres(ctx context.Context, databaseURL, dataset string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	p := NewPostgresWithPool(pool, dataset)
	if err := p.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

// NewPostgresWithPool builds a backend around an existing pool without
// running migrations.
func NewPostgresWithPool(pool PgxPool, dataset string) *Postgres {
	return &Postgres{pool: pool, dataset: dataset}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS records (
	dataset  TEXT NOT NULL,
	position INTEGER NOT NULL,
	data     JSONB NOT NULL,
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
	started_at  TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_dataset ON runs(dataset, finished_at);
`

// Migrate creates the schema if it does not exist.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Load reads the dataset's rows in stored order.
func (p *Postgres) Load(ctx context.Context) (record.Set, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT data FROM records WHERE dataset = $1 ORDER BY position`,
		p.dataset,
	)
	if err != nil {
		return nil, &UnavailableError{Backend: p.Name(), Err: err}
	}
	defer rows.Close()

	records := record.Set{}
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, &UnavailableError{Backend: p.Name(), Err: err}
		}
		var r record.Record
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, &CorruptError{Backend: p.Name(), Err: err}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, &UnavailableError{Backend: p.Name(), Err: err}
	}
	return records, nil
}

// Save replaces the dataset's rows inside one transaction.
func (p *Postgres) Save(ctx context.Context, records record.Set) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return &UnavailableError{Backend: p.Name(), Err: err}
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM records WHERE dataset = $1`, p.dataset); err != nil {
		return &UnavailableError{Backend: p.Name(), Err: err}
	}

	for i, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal record %d", i)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO records (dataset, position, data) VALUES ($1, $2, $3)`,
			p.dataset, i, data,
		); err != nil {
			return &UnavailableError{Backend: p.Name(), Err: err}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return &UnavailableError{Backend: p.Name(), Err: err}
	}
	return nil
}

// LogRun appends one run history row.
func (p *Postgres) LogRun(ctx context.Context, entry RunEntry) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO runs (id, dataset, source, inserted, updated, unchanged, total, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID, entry.Dataset, entry.Source,
		entry.Inserted, entry.Updated, entry.Unchanged, entry.Total,
		entry.StartedAt.UTC(), entry.FinishedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: insert run")
}

// ListRuns returns the most recent runs for a dataset, newest first.
func (p *Postgres) ListRuns(ctx context.Context, dataset string, limit int) ([]RunEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := p.pool.Query(ctx,
		`SELECT id, dataset, source, inserted, updated, unchanged, total, started_at, finished_at
		 FROM runs WHERE dataset = $1 ORDER BY finished_at DESC LIMIT $2`,
		dataset, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []RunEntry
	for rows.Next() {
		var e RunEntry
		if err := rows.Scan(&e.ID, &e.Dataset, &e.Source,
			&e.Inserted, &e.Updated, &e.Unchanged, &e.Total,
			&e.StartedAt, &e.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list runs")
}
