package main

import (
	"context"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/tablerake/tablerake/internal/config"
	"github.com/tablerake/tablerake/internal/record"
	"github.com/tablerake/tablerake/internal/rowsource"
	"github.com/tablerake/tablerake/internal/runner"
	"github.com/tablerake/tablerake/internal/storage"
)

// initBackend builds the configured storage backend scoped to one dataset.
func initBackend(ctx context.Context, dataset string) (storage.Backend, error) {
	st := cfg.Storage
	switch st.Kind {
	case "file":
		return storage.NewLocalFile(filepath.Join(st.Dir, dataset+".json")), nil
	case "s3":
		return storage.NewS3(ctx, storage.S3Options{
			Bucket:   st.Bucket,
			Key:      st.Prefix + dataset + ".json",
			Region:   st.Region,
			Endpoint: st.Endpoint,
		})
	case "sqlite":
		return storage.NewSQLite(st.DSN, dataset)
	case "postgres":
		return storage.NewPostgres(ctx, st.DatabaseURL, dataset)
	default:
		return nil, eris.Errorf("unsupported storage kind: %s", st.Kind)
	}
}

// initSource builds the row source for one dataset.
func initSource(ds config.Dataset) (rowsource.Source, error) {
	src := ds.Source
	switch src.Kind {
	case "browser":
		return rowsource.NewBrowser(rowsource.BrowserOptions{
			URL:         src.URL,
			RowSelector: src.RowCSS,
			CellCSS:     src.CellCSS,
			Wait:        time.Duration(src.WaitSecs) * time.Second,
			Headless:    !src.ShowBrowser,
		}), nil
	case "static":
		return rowsource.NewStatic(rowsource.StaticOptions{
			URL:         src.URL,
			RowSelector: src.RowCSS,
			CellCSS:     src.CellCSS,
			Timeout:     time.Duration(src.WaitSecs) * time.Second,
		}), nil
	case "csv":
		location := src.URL
		if location == "" {
			location = src.Path
		}
		return rowsource.NewCSV(rowsource.CSVOptions{
			Location: location,
			SkipRows: src.SkipRows,
		}), nil
	case "xlsx":
		return rowsource.NewXLSX(rowsource.XLSXOptions{
			Path:      src.Path,
			SheetName: src.Sheet,
			SkipRows:  src.SkipRows,
		}), nil
	default:
		return nil, eris.Errorf("unsupported source kind: %s", src.Kind)
	}
}

// runSpec converts a validated dataset config into a runner spec.
func runSpec(name string, ds config.Dataset) runner.Spec {
	columns := make([]record.Column, len(ds.Columns))
	for i, col := range ds.Columns {
		columns[i] = record.Column{Field: col.Field, Index: col.Index, Numeric: col.Numeric}
	}
	return runner.Spec{
		Dataset: name,
		Columns: columns,
		Keys:    record.KeySpec(ds.Keys),
	}
}

// datasetConfig looks up one dataset by name.
func datasetConfig(name string) (config.Dataset, error) {
	ds, ok := cfg.Datasets[name]
	if !ok {
		return config.Dataset{}, eris.Errorf("unknown dataset: %s", name)
	}
	return ds, nil
}
