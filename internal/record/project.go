package record

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Column maps one record field to a positional cell index in a raw row.
// Numeric columns are coerced to float64 after normalization.
type Column struct {
	Field   string
	Index   int
	Numeric bool
}

// Project builds a Record from a raw row using the given column map.
// Every declared field is always present on the result: a cell index
// beyond the end of the row, or a numeric cell that fails to parse,
// yields a nil value rather than failing the row. Projection is a pure
// function of its inputs.
func Project(row Row, columns []Column) Record {
	out := New()
	for _, col := range columns {
		if col.Index < 0 || col.Index >= len(row) {
			out.Set(col.Field, nil)
			continue
		}
		text := Normalize(row[col.Index])
		if !col.Numeric {
			out.Set(col.Field, text)
			continue
		}
		out.Set(col.Field, coerceNumber(text))
	}
	return out
}

// ProjectAll projects every row in the batch. Malformed rows never
// abort the batch; they surface as records with nil fields.
func ProjectAll(rows []Row, columns []Column) Set {
	out := make(Set, 0, len(rows))
	for _, row := range rows {
		out = append(out, Project(row, columns))
	}
	return out
}

// Normalize canonicalizes raw cell text: NFC normalization, fullwidth
// to halfwidth folding, and trimming of unicode whitespace. Key
// equality relies on this happening at projection time, never later.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	s = width.Fold.String(s)
	return strings.TrimFunc(s, unicode.IsSpace)
}

// coerceNumber parses a normalized cell as a float. Thousands
// separators are dropped. Unparseable text maps to nil, the same
// sentinel as a missing cell, so coercion stays total and deterministic.
func coerceNumber(text string) any {
	if text == "" {
		return nil
	}
	cleaned := strings.ReplaceAll(text, ",", "")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return f
}
