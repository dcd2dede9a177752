package io

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/geniass/shelf-dealz/pkg/product"
)

type Field struct {
	Name        string `yaml:"name"`
	Type        string `yaml:"type"`
	Description string `yaml:"description"`
}

// Dictionary documents the exported columns of one run.
type Dictionary struct {
	RunID       string  `yaml:"run_id"`
	Site        string  `yaml:"site"`
	GeneratedAt string  `yaml:"generated_at"`
	Records     int     `yaml:"records"`
	Discards    int     `yaml:"discards"`
	Interrupted bool    `yaml:"interrupted"`
	Fields      []Field `yaml:"fields"`
	Reasons     []Field `yaml:"discard_reasons"`
}

var fieldDocs = map[string]Field{
	"name":            {Type: "string", Description: "product name, HTML-unescaped and whitespace-collapsed"},
	"price_online":    {Type: "decimal(2)", Description: "current web price, 0 when unknown"},
	"price_regular":   {Type: "decimal(2)", Description: "list price before discount, 0 when unknown"},
	"brand":           {Type: "string", Description: "brand from structured data or page, else the site name"},
	"category":        {Type: "string", Description: "collection slug for backfilled rows, else sitemap_product"},
	"subcategory":     {Type: "string", Description: "last breadcrumb segment, else the category, else unknown"},
	"sku":             {Type: "string", Description: "retailer SKU or a deterministic synthesized one"},
	"discount_pct":    {Type: "decimal(2)", Description: "(regular - online) / regular * 100 when regular > online > 0"},
	"presentation":    {Type: "string", Description: "pack size or unit parsed from the name, default unit"},
	"url":             {Type: "string", Description: "product detail page"},
	"extraction_date": {Type: "date", Description: "UTC date the record was built (YYYY-MM-DD)"},
	"hash_id":         {Type: "string", Description: "hex MD5 of name|sku, the deduplication key"},
	"images_count":    {Type: "integer", Description: "img elements on the page or card"},
	"availability":    {Type: "enum", Description: "in_stock, out_of_stock or unknown"},
}

var reasonDocs = []Field{
	{Name: product.ReasonNotProduct, Description: "probed page is a listing"},
	{Name: product.ReasonClassificationUnknown, Description: "probe failed or was not allowed"},
	{Name: product.ReasonRobotsDisallowed, Description: "robots.txt disallows the URL"},
	{Name: product.ReasonFetchFailed, Description: "page could not be fetched"},
	{Name: product.ReasonMissingName, Description: "no name source on the page"},
}

// DictionarySink writes a YAML data dictionary next to the exports.
type DictionarySink struct {
	Path string
}

func NewDictionary(e Export) Dictionary {
	d := Dictionary{
		RunID:       e.RunID,
		Site:        e.Site,
		GeneratedAt: e.FinishedAt.UTC().Format(timeLayout),
		Records:     len(e.Records),
		Discards:    len(e.Discards),
		Interrupted: e.Interrupted,
		Reasons:     reasonDocs,
	}
	for _, c := range product.Columns {
		f := fieldDocs[c]
		f.Name = c
		d.Fields = append(d.Fields, f)
	}
	return d
}

func (s DictionarySink) Export(ctx context.Context, e Export) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), os.ModeDir|0755); err != nil {
		return err
	}
	out, err := yaml.Marshal(NewDictionary(e))
	if err != nil {
		return fmt.Errorf("data dictionary: %w", err)
	}
	return os.WriteFile(s.Path, out, 0644)
}
