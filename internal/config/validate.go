package config

import (
	"fmt"
	"strings"
)

// ValidationError aggregates every configuration problem found, so one
// pass reports them all. It always means the run must not start.
type ValidationError struct {
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %d issue(s): %s", len(e.Issues), strings.Join(e.Issues, "; "))
}

// Validate checks the whole configuration before any scraping begins.
func (c *Config) Validate() error {
	var issues []string

	if len(c.Datasets) == 0 {
		issues = append(issues, "no datasets configured")
	}
	for name, ds := range c.Datasets {
		issues = append(issues, validateDataset(name, ds)...)
	}
	issues = append(issues, validateStorage(c.Storage)...)

	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}

func validateDataset(name string, ds Dataset) []string {
	var issues []string
	prefix := "dataset " + name + ": "

	switch ds.Source.Kind {
	case "browser", "static":
		if ds.Source.URL == "" {
			issues = append(issues, prefix+"source url is required")
		}
		if ds.Source.RowCSS == "" {
			issues = append(issues, prefix+"source row_css is required")
		}
	case "csv":
		if ds.Source.URL == "" && ds.Source.Path == "" {
			issues = append(issues, prefix+"csv source needs url or path")
		}
	case "xlsx":
		if ds.Source.Path == "" {
			issues = append(issues, prefix+"xlsx source needs path")
		}
	default:
		issues = append(issues, prefix+fmt.Sprintf("unknown source kind %q", ds.Source.Kind))
	}

	if len(ds.Columns) == 0 {
		issues = append(issues, prefix+"no columns configured")
	}
	fields := make(map[string]bool, len(ds.Columns))
	for _, col := range ds.Columns {
		if col.Field == "" {
			issues = append(issues, prefix+"column with empty field name")
			continue
		}
		if fields[col.Field] {
			issues = append(issues, prefix+fmt.Sprintf("duplicate field %q", col.Field))
		}
		fields[col.Field] = true
		if col.Index < 0 {
			issues = append(issues, prefix+fmt.Sprintf("field %q has negative index %d", col.Field, col.Index))
		}
	}

	if len(ds.Keys) == 0 {
		issues = append(issues, prefix+"keys must not be empty")
	}
	seenKeys := make(map[string]bool, len(ds.Keys))
	for _, key := range ds.Keys {
		if seenKeys[key] {
			issues = append(issues, prefix+fmt.Sprintf("duplicate key field %q", key))
		}
		seenKeys[key] = true
		if !fields[key] {
			issues = append(issues, prefix+fmt.Sprintf("key field %q not present in columns", key))
		}
	}

	return issues
}

func validateStorage(st Storage) []string {
	var issues []string
	switch st.Kind {
	case "file":
		if st.Dir == "" {
			issues = append(issues, "storage: file backend needs dir")
		}
	case "s3":
		if st.Bucket == "" {
			issues = append(issues, "storage: s3 backend needs bucket")
		}
	case "sqlite":
		if st.DSN == "" {
			issues = append(issues, "storage: sqlite backend needs dsn")
		}
	case "postgres":
		if st.DatabaseURL == "" {
			issues = append(issues, "storage: postgres backend needs database_url")
		}
	default:
		issues = append(issues, fmt.Sprintf("storage: unknown kind %q", st.Kind))
	}
	return issues
}
