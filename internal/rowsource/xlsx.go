package rowsource

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/tablerake/tablerake/internal/record"
)

// XLSXOptions configures an XLSX row source.
type XLSXOptions struct {
	Path       string
	SheetIndex int    // default 0
	SheetName  string // overrides SheetIndex when set
	SkipRows   int
}

// XLSX reads rows from one sheet of a local spreadsheet.
type XLSX struct {
	opts XLSXOptions
}

// NewXLSX creates an XLSX source.
func NewXLSX(opts XLSXOptions) *XLSX {
	return &XLSX{opts: opts}
}

func (x *XLSX) Name() string { return "xlsx" }

// Fetch reads every row of the configured sheet as cell strings.
func (x *XLSX) Fetch(ctx context.Context) ([]record.Row, error) {
	f, err := xlsx.OpenFile(x.opts.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "xlsx: open %s", x.opts.Path)
	}

	sheet, err := x.sheet(f)
	if err != nil {
		return nil, err
	}

	var rows []record.Row
	for i, sheetRow := range sheet.Rows {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "xlsx: context cancelled")
		}
		if i < x.opts.SkipRows {
			continue
		}
		row := make(record.Row, 0, len(sheetRow.Cells))
		for _, cell := range sheetRow.Cells {
			row = append(row, cell.String())
		}
		rows = append(rows, row)
	}

	zap.L().Info("xlsx: read rows",
		zap.String("path", x.opts.Path),
		zap.String("sheet", sheet.Name),
		zap.Int("rows", len(rows)),
	)
	return rows, nil
}

func (x *XLSX) sheet(f *xlsx.File) (*xlsx.Sheet, error) {
	if x.opts.SheetName != "" {
		sheet, ok := f.Sheet[x.opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", x.opts.SheetName)
		}
		return sheet, nil
	}
	if x.opts.SheetIndex < 0 || x.opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (%d sheets)", x.opts.SheetIndex, len(f.Sheets))
	}
	return f.Sheets[x.opts.SheetIndex], nil
}
