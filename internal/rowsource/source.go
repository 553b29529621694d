// Package rowsource produces raw scraped rows for the runner. Sources
// are interchangeable: a headless browser for pages that render rows
// with JavaScript, a plain HTTP fetch for static HTML, and CSV/XLSX
// readers for file-shaped datasets.
package rowsource

import (
	"context"

	"github.com/tablerake/tablerake/internal/record"
)

// Source fetches one finite, ordered batch of raw rows. The sequence is
// not restartable; each Fetch performs a fresh retrieval. Errors are
// surfaced to the caller unchanged; retry policy, if any, lives inside
// a Source, never in the runner.
type Source interface {
	Fetch(ctx context.Context) ([]record.Row, error)
	Name() string
}
