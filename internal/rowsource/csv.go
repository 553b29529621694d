package rowsource

import (
	"context"
	"encoding/csv"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tablerake/tablerake/internal/record"
)

// CSVOptions configures a CSV row source.
type CSVOptions struct {
	// Location is a local path, or an http(s):// or ftp:// URL.
	Location string
	SkipRows int // header rows to drop
	Comma    rune
	Timeout  time.Duration
}

// CSV reads rows from a comma-separated file, fetched from disk, HTTP,
// or anonymous FTP depending on the location's scheme.
type CSV struct {
	opts CSVOptions
}

// NewCSV creates a CSV source.
func NewCSV(opts CSVOptions) *CSV {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &CSV{opts: opts}
}

func (c *CSV) Name() string { return "csv" }

// Fetch opens the location and parses every row. Variable field counts
// are allowed; short rows are the projection layer's problem.
func (c *CSV) Fetch(ctx context.Context) ([]record.Row, error) {
	body, err := c.open(ctx)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	reader := csv.NewReader(body)
	if c.opts.Comma != 0 {
		reader.Comma = c.opts.Comma
	}
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows []record.Row
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "csv: context cancelled")
		}
		cells, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		n++
		if n <= c.opts.SkipRows {
			continue
		}
		rows = append(rows, record.Row(cells))
	}

	zap.L().Info("csv: read rows",
		zap.String("location", c.opts.Location),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

func (c *CSV) open(ctx context.Context) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(c.opts.Location, "http://"), strings.HasPrefix(c.opts.Location, "https://"):
		return c.openHTTP(ctx)
	case strings.HasPrefix(c.opts.Location, "ftp://"):
		return c.openFTP(ctx)
	default:
		f, err := os.Open(c.opts.Location)
		if err != nil {
			return nil, eris.Wrapf(err, "csv: open %s", c.opts.Location)
		}
		return f, nil
	}
}

func (c *CSV) openHTTP(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.Location, nil)
	if err != nil {
		return nil, eris.Wrap(err, "csv: create request")
	}

	client := &http.Client{Timeout: c.opts.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "csv: fetch %s", c.opts.Location)
	}
	if resp.StatusCode >= 400 {
		resp.Body.Close()
		return nil, eris.Errorf("csv: fetch %s: status %d", c.opts.Location, resp.StatusCode)
	}
	return resp.Body, nil
}

func (c *CSV) openFTP(ctx context.Context) (io.ReadCloser, error) {
	u, err := url.Parse(c.opts.Location)
	if err != nil {
		return nil, eris.Wrap(err, "csv: parse ftp url")
	}

	host := u.Host
	if _, _, splitErr := net.SplitHostPort(host); splitErr != nil {
		host = net.JoinHostPort(host, "21")
	}

	conn, err := ftp.Dial(host, ftp.DialWithTimeout(c.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrap(err, "csv: ftp dial")
	}
	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		conn.Quit()
		return nil, eris.Wrap(err, "csv: ftp login")
	}
	resp, err := conn.Retr(u.Path)
	if err != nil {
		conn.Quit()
		return nil, eris.Wrapf(err, "csv: ftp retrieve %s", u.Path)
	}
	return &ftpConnReader{resp: resp, conn: conn}, nil
}

// ftpConnReader ties the FTP data connection's lifetime to the reader:
// closing it closes the transfer and quits the control connection.
type ftpConnReader struct {
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (r *ftpConnReader) Read(p []byte) (int, error) { return r.resp.Read(p) }

func (r *ftpConnReader) Close() error {
	respErr := r.resp.Close()
	quitErr := r.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "csv: close ftp response")
	}
	return eris.Wrap(quitErr, "csv: quit ftp connection")
}
