package main

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/tealeg/xlsx/v2"

	"github.com/tablerake/tablerake/internal/record"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export <dataset>",
	Short: "Export the persisted record set to CSV or XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		backend, err := initBackend(ctx, args[0])
		if err != nil {
			return err
		}
		defer backend.Close()

		records, err := backend.Load(ctx)
		if err != nil {
			return err
		}

		switch {
		case exportOut == "" || exportOut == "-":
			return exportCSV(os.Stdout, records)
		case strings.HasSuffix(exportOut, ".xlsx"):
			return exportXLSX(exportOut, args[0], records)
		default:
			f, err := os.Create(exportOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", exportOut)
			}
			defer f.Close()
			return exportCSV(f, records)
		}
	},
}

// exportHeader is the union of field names across the set, in order of
// first appearance. Batches with evolving column maps still export.
func exportHeader(records record.Set) []string {
	var header []string
	seen := make(map[string]bool)
	for _, r := range records {
		for _, f := range r.Fields() {
			if !seen[f] {
				seen[f] = true
				header = append(header, f)
			}
		}
	}
	return header
}

func cellString(r record.Record, field string) string {
	v, ok := r.Get(field)
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func exportCSV(w io.Writer, records record.Set) error {
	header := exportHeader(records)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, r := range records {
		row := make([]string, len(header))
		for i, f := range header {
			row[i] = cellString(r, f)
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}

func exportXLSX(path, sheetName string, records record.Set) error {
	header := exportHeader(records)

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	headerRow := sheet.AddRow()
	for _, h := range header {
		headerRow.AddCell().SetString(h)
	}
	for _, r := range records {
		row := sheet.AddRow()
		for _, field := range header {
			cell := row.AddCell()
			v, ok := r.Get(field)
			if !ok || v == nil {
				cell.SetString("")
				continue
			}
			switch t := v.(type) {
			case string:
				cell.SetString(t)
			case float64:
				cell.SetFloat(t)
			}
		}
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (.csv or .xlsx, default stdout CSV)")
	rootCmd.AddCommand(exportCmd)
}
