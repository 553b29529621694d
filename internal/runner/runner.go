// Package runner wires one scrape run end to end: fetch raw rows,
// project them into records, reconcile against the stored set, and
// persist the result.
package runner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tablerake/tablerake/internal/record"
	"github.com/tablerake/tablerake/internal/reconcile"
	"github.com/tablerake/tablerake/internal/rowsource"
	"github.com/tablerake/tablerake/internal/storage"
)

// Spec is everything a run needs besides its collaborators.
type Spec struct {
	Dataset string
	Columns []record.Column
	Keys    record.KeySpec
}

// Result reports one completed run.
type Result struct {
	RunID      string    `json:"run_id"`
	Dataset    string    `json:"dataset"`
	Source     string    `json:"source"`
	Fetched    int       `json:"fetched"`
	Inserted   int       `json:"inserted"`
	Updated    int       `json:"updated"`
	Unchanged  int       `json:"unchanged"`
	Total      int       `json:"total"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Run executes one scrape against one backend.
//
// Fetch errors surface unchanged; there is no retry here. Projection
// tolerates malformed rows per field, so a bad row never aborts the
// batch. The save replaces the backend's prior contents wholesale; on
// any failure before a successful save, the stored state is untouched.
func Run(ctx context.Context, spec Spec, src rowsource.Source, backend storage.Backend) (*Result, error) {
	if err := spec.Keys.Validate(); err != nil {
		return nil, eris.Wrapf(err, "runner: dataset %s", spec.Dataset)
	}

	started := time.Now().UTC()

	rows, err := src.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	incoming := record.ProjectAll(rows, spec.Columns)

	existing, err := backend.Load(ctx)
	if err != nil {
		return nil, err
	}

	res, err := reconcile.Reconcile(existing, incoming, spec.Keys)
	if err != nil {
		return nil, err
	}

	if err := backend.Save(ctx, res.Records); err != nil {
		return nil, err
	}

	result := &Result{
		RunID:      uuid.New().String(),
		Dataset:    spec.Dataset,
		Source:     src.Name(),
		Fetched:    len(rows),
		Inserted:   res.Inserted,
		Updated:    res.Updated,
		Unchanged:  res.Unchanged,
		Total:      len(res.Records),
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
	}

	zap.L().Info("run complete",
		zap.String("dataset", result.Dataset),
		zap.String("source", result.Source),
		zap.Int("fetched", result.Fetched),
		zap.Int("inserted", result.Inserted),
		zap.Int("updated", result.Updated),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("total", result.Total),
	)

	// Database backends keep run history; file and object stores don't.
	if logger, ok := backend.(storage.RunLogger); ok {
		entry := storage.RunEntry{
			ID:         result.RunID,
			Dataset:    result.Dataset,
			Source:     result.Source,
			Inserted:   result.Inserted,
			Updated:    result.Updated,
			Unchanged:  result.Unchanged,
			Total:      result.Total,
			StartedAt:  result.StartedAt,
			FinishedAt: result.FinishedAt,
		}
		if err := logger.LogRun(ctx, entry); err != nil {
			zap.L().Warn("run history write failed", zap.Error(err))
		}
	}

	return result, nil
}
