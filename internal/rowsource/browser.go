package rowsource

import (
	"context"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tablerake/tablerake/internal/record"
)

// BrowserOptions configures a headless-browser scrape of one page.
type BrowserOptions struct {
	URL         string
	RowSelector string        // CSS selector matching each data row
	CellCSS     string        // CSS selector for cells within a row; default "td, th"
	Wait        time.Duration // how long to wait for rows to appear; default 30s
	Headless    bool
}

// Browser renders the page in Chromium via rod, waits until the row
// selector is present, and reads the text of every cell. It exists for
// pages that only materialize their tables through JavaScript.
type Browser struct {
	opts BrowserOptions
}

// NewBrowser creates a browser source. The browser itself is launched
// per Fetch and torn down afterwards; rows are not restartable anyway.
func NewBrowser(opts BrowserOptions) *Browser {
	if opts.CellCSS == "" {
		opts.CellCSS = "td, th"
	}
	if opts.Wait == 0 {
		opts.Wait = 30 * time.Second
	}
	return &Browser{opts: opts}
}

func (b *Browser) Name() string { return "browser" }

// Fetch navigates to the page and extracts one batch of rows.
func (b *Browser) Fetch(ctx context.Context) ([]record.Row, error) {
	l := launcher.New().
		Headless(b.opts.Headless).
		NoSandbox(true).
		Set("disable-dev-shm-usage")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, eris.Wrap(err, "browser: launch")
	}
	defer l.Kill()

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, eris.Wrap(err, "browser: connect")
	}
	defer browser.Close()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, eris.Wrap(err, "browser: new page")
	}
	defer page.Close()

	zap.L().Info("browser: loading page", zap.String("url", b.opts.URL))
	if err := page.Timeout(b.opts.Wait).Navigate(b.opts.URL); err != nil {
		return nil, eris.Wrapf(err, "browser: navigate %s", b.opts.URL)
	}

	// Block until at least one row is rendered.
	if _, err := page.Timeout(b.opts.Wait).Element(b.opts.RowSelector); err != nil {
		return nil, eris.Wrapf(err, "browser: wait for rows %q", b.opts.RowSelector)
	}

	elements, err := page.Elements(b.opts.RowSelector)
	if err != nil {
		return nil, eris.Wrapf(err, "browser: select rows %q", b.opts.RowSelector)
	}

	rows := make([]record.Row, 0, len(elements))
	for _, el := range elements {
		cells, err := el.Elements(b.opts.CellCSS)
		if err != nil {
			return nil, eris.Wrap(err, "browser: select cells")
		}
		row := make(record.Row, 0, len(cells))
		for _, cell := range cells {
			text, err := cell.Text()
			if err != nil {
				return nil, eris.Wrap(err, "browser: read cell text")
			}
			row = append(row, text)
		}
		rows = append(rows, row)
	}

	zap.L().Info("browser: extracted rows",
		zap.String("url", b.opts.URL),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}
