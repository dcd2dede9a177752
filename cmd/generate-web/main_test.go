package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dataio "github.com/geniass/shelf-dealz/pkg/io"
	"github.com/geniass/shelf-dealz/pkg/product"
	"github.com/geniass/shelf-dealz/pkg/web"
)

func TestGenerate(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "json")
	sink := dataio.JSONSink{Dir: dataDir, DealThreshold: decimal.NewFromInt(10)}
	require.NoError(t, sink.Export(context.Background(), dataio.Export{
		Records: []product.Record{
			{Name: "Leche Gloria 1L", Hash: "aaaaaaaaaa", OnlinePrice: decimal.RequireFromString("8.5"),
				RegularPrice: decimal.NewFromInt(10), DiscountPct: decimal.NewFromInt(15)},
			{Name: "Arroz Costeño 750 g", Hash: "bbbbbbbbbb", OnlinePrice: decimal.RequireFromString("4.2")},
		},
	}))

	outDir := filepath.Join(t.TempDir(), "docs")
	err := generate(dataDir, outDir, web.BaseContext{Site: "Wong"}, 10, time.Now())
	require.NoError(t, err)

	discount, err := os.ReadFile(filepath.Join(outDir, "discount.html"))
	require.NoError(t, err)
	assert.Contains(t, string(discount), "Discounted (10%)")
	assert.Contains(t, string(discount), "Leche Gloria 1L")
	assert.NotContains(t, string(discount), "Arroz")

	other, err := os.ReadFile(filepath.Join(outDir, "other.html"))
	require.NoError(t, err)
	assert.Contains(t, string(other), "Arroz Costeño 750 g")

	assert.FileExists(t, filepath.Join(outDir, "index.html"))
}

func TestGenerateWithoutData(t *testing.T) {
	outDir := t.TempDir()
	require.NoError(t, generate(filepath.Join(t.TempDir(), "missing"), outDir, web.BaseContext{}, 10, time.Now()))

	other, err := os.ReadFile(filepath.Join(outDir, "other.html"))
	require.NoError(t, err)
	assert.Contains(t, string(other), "No products.")
}
