package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniass/shelf-dealz/pkg/config"
	dataio "github.com/geniass/shelf-dealz/pkg/io"
	"github.com/geniass/shelf-dealz/pkg/product"
	"github.com/geniass/shelf-dealz/pkg/scraper"
)

func TestNewSink(t *testing.T) {
	cfg := &config.Config{Export: config.ExportConfig{
		Dir: "out", Basename: "wong", CSV: true, SQLite: true, DealThreshold: 10,
	}}
	sinks := newSink(cfg)
	require.Len(t, sinks, 2)
	assert.Equal(t, dataio.CSVSink{Dir: "out", Basename: "wong"}, sinks[0])
	assert.Equal(t, dataio.SQLiteSink{Path: "out/wong.db"}, sinks[1])

	cfg.Export.JSON = true
	cfg.Export.Dictionary = true
	assert.Len(t, newSink(cfg), 4)
}

func TestSummary(t *testing.T) {
	d := decimal.RequireFromString
	start := time.Date(2025, time.September, 14, 10, 0, 0, 0, time.UTC)
	res := &scraper.Result{
		RunID: "run-1",
		Records: []product.Record{
			{Name: "Arroz", OnlinePrice: d("4.2"), DiscountPct: decimal.Zero},
			{Name: "Leche", URL: "https://www.wong.pe/leche/p", OnlinePrice: d("8.5"), RegularPrice: d("10"), DiscountPct: d("15")},
		},
		Discards: []product.Discard{
			{Reason: product.ReasonMissingName},
			{Reason: product.ReasonFetchFailed},
			{Reason: product.ReasonFetchFailed},
		},
		Duplicates:  1,
		Interrupted: true,
		StartedAt:   start,
		FinishedAt:  start.Add(90 * time.Second),
	}
	cfg := &config.Config{Target: 1000, Site: config.SiteConfig{Name: "Wong"}}

	s := newSummary(cfg, res)
	require.Len(t, s.Deals, 1)
	assert.Equal(t, []reasonCount{{product.ReasonFetchFailed, 2}, {product.ReasonMissingName, 1}}, s.Reasons)

	var buf bytes.Buffer
	require.NoError(t, markdownTemplate.Execute(&buf, s))
	out := buf.String()
	assert.Contains(t, out, "# Wong Dealz")
	assert.Contains(t, out, "took 1m30s and was **interrupted**")
	assert.Contains(t, out, "Records: 2 of 1000")
	assert.Contains(t, out, "- fetch_failed: 2")
	assert.Contains(t, out, "- [Leche](https://www.wong.pe/leche/p) S/ 8.50, was S/ 10.00 (15.00% off)")
}
