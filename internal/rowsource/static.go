package rowsource

import (
	"bytes"
	"context"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tablerake/tablerake/internal/record"
)

// StaticOptions configures a plain-HTTP scrape of one page.
type StaticOptions struct {
	URL         string
	RowSelector string
	CellCSS     string // default "td, th"
	Timeout     time.Duration
	UserAgent   string
}

// Static fetches server-rendered HTML with resty and selects rows with
// goquery. No JavaScript execution; use Browser for pages that need it.
// A shared limiter keeps repeat runs polite toward the target host.
type Static struct {
	opts    StaticOptions
	client  *resty.Client
	limiter *rate.Limiter
}

// NewStatic creates a static HTML source.
func NewStatic(opts StaticOptions) *Static {
	if opts.CellCSS == "" {
		opts.CellCSS = "td, th"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; tablerake/1.0)"
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent).
		SetRetryCount(0)

	return &Static{
		opts:    opts,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(1), 2),
	}
}

func (s *Static) Name() string { return "static" }

// Fetch downloads the page and extracts one batch of rows.
func (s *Static) Fetch(ctx context.Context) ([]record.Row, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "static: rate limit wait")
	}

	resp, err := s.client.R().SetContext(ctx).Get(s.opts.URL)
	if err != nil {
		return nil, eris.Wrapf(err, "static: fetch %s", s.opts.URL)
	}
	if resp.StatusCode() >= 400 {
		return nil, eris.Errorf("static: fetch %s: status %d", s.opts.URL, resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, eris.Wrap(err, "static: parse html")
	}

	var rows []record.Row
	doc.Find(s.opts.RowSelector).Each(func(_ int, sel *goquery.Selection) {
		var row record.Row
		sel.Find(s.opts.CellCSS).Each(func(_ int, cell *goquery.Selection) {
			row = append(row, cell.Text())
		})
		rows = append(rows, row)
	})

	zap.L().Info("static: extracted rows",
		zap.String("url", s.opts.URL),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}
