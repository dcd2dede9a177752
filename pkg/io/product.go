package io

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/kennygrant/sanitize"
	"github.com/shopspring/decimal"

	"github.com/geniass/shelf-dealz/pkg/product"
)

const (
	DealsDir = "deals"
	OtherDir = "other"
)

type RecordWithPath struct {
	product.Record
	Path string
}

// JSONSink writes one JSON file per record under Dir/deals or Dir/other,
// depending on whether the discount reaches DealThreshold percent. Both
// directories are replaced on every export so they only hold the latest run.
type JSONSink struct {
	Dir           string
	DealThreshold decimal.Decimal
}

func (s JSONSink) Export(ctx context.Context, e Export) error {
	for _, sub := range []string{DealsDir, OtherDir} {
		dir := filepath.Join(s.Dir, sub)
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		if err := os.MkdirAll(dir, os.ModeDir|0755); err != nil {
			return err
		}
	}

	for _, r := range e.Records {
		if err := ctx.Err(); err != nil {
			return err
		}

		sub := OtherDir
		if s.IsDeal(r) {
			sub = DealsDir
		}
		if err := writeJSON(filepath.Join(s.Dir, sub, FileName(r)), r); err != nil {
			return fmt.Errorf("json %s: %w", r.URL, err)
		}
	}
	return nil
}

func (s JSONSink) IsDeal(r product.Record) bool {
	return r.DiscountPct.IsPositive() && r.DiscountPct.GreaterThanOrEqual(s.DealThreshold)
}

// FileName is unique per record identity, since names alone collide across
// sizes and SKUs.
func FileName(r product.Record) string {
	prefix := r.Hash
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return sanitize.BaseName(r.Name) + "-" + prefix + ".json"
}

func writeJSON(path string, r product.Record) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(r); err != nil {
		return err
	}
	return f.Close()
}

// LoadFromDir reads every JSON record below dir, ordered by discount then
// name.
func LoadFromDir(dir string) ([]RecordWithPath, error) {
	var rs []RecordWithPath
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || filepath.Ext(path) != ".json" {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		dec := json.NewDecoder(f)
		var r product.Record
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		rs = append(rs, RecordWithPath{Record: r, Path: path})
		return nil
	})

	sort.SliceStable(rs, func(i, j int) bool {
		if c := rs[i].DiscountPct.Cmp(rs[j].DiscountPct); c != 0 {
			return c > 0
		}
		return rs[i].Name < rs[j].Name
	})

	if err != nil {
		return rs, err
	}
	return rs, nil
}
