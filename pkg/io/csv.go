package io

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/geniass/shelf-dealz/pkg/product"
)

// utf8BOM makes spreadsheet tools read the file as UTF-8.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var discardColumns = []string{"url", "reason", "detail"}

// CSVSink writes <Basename>.csv and <Basename>_discarded.csv into Dir.
type CSVSink struct {
	Dir      string
	Basename string
}

func (s CSVSink) RecordsPath() string {
	return filepath.Join(s.Dir, s.Basename+".csv")
}

func (s CSVSink) DiscardsPath() string {
	return filepath.Join(s.Dir, s.Basename+"_discarded.csv")
}

func (s CSVSink) Export(ctx context.Context, e Export) error {
	if err := os.MkdirAll(s.Dir, os.ModeDir|0755); err != nil {
		return err
	}

	rows := make([][]string, 0, len(e.Records))
	for _, r := range e.Records {
		rows = append(rows, RecordRow(r))
	}
	if err := writeCSV(s.RecordsPath(), product.Columns, rows); err != nil {
		return fmt.Errorf("csv records: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	rows = rows[:0]
	for _, d := range e.Discards {
		rows = append(rows, []string{d.URL, d.Reason, d.Detail})
	}
	if err := writeCSV(s.DiscardsPath(), discardColumns, rows); err != nil {
		return fmt.Errorf("csv discards: %w", err)
	}
	return nil
}

// RecordRow renders r in product.Columns order.
func RecordRow(r product.Record) []string {
	return []string{
		r.Name,
		r.OnlinePrice.StringFixed(2),
		r.RegularPrice.StringFixed(2),
		r.Brand,
		r.Category,
		r.Subcategory,
		r.SKU,
		r.DiscountPct.StringFixed(2),
		r.Presentation,
		r.URL,
		r.ExtractedOn.Format(product.DateLayout),
		r.Hash,
		strconv.Itoa(r.ImageCount),
		string(r.Availability),
	}
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(utf8BOM); err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Close()
}
