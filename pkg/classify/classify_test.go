package classify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geniass/shelf-dealz/pkg/fetch"
)

type fakeFetcher struct {
	pages map[string]*fetch.Page
	calls []string
}

func (f *fakeFetcher) Get(ctx context.Context, url string, timeout time.Duration) (*fetch.Page, error) {
	f.calls = append(f.calls, url)
	p, ok := f.pages[url]
	if !ok {
		return nil, errors.New("connection refused")
	}
	if p.StatusCode >= 300 {
		return nil, &fetch.StatusError{URL: url, Code: p.StatusCode}
	}
	return p, nil
}

type denyPrefix string

func (d denyPrefix) Allows(_ string, target string) bool {
	return !strings.HasPrefix(target, string(d))
}

func TestIsProductPath(t *testing.T) {
	tests := map[string]bool{
		"https://www.wong.pe/leche-gloria-1l/p":            true,
		"https://www.wong.pe/leche-gloria-1l/P":            true,
		"https://www.wong.pe/leche-gloria-1l/p?skuId=1":    true,
		"https://www.wong.pe/leche-gloria-1l/p#reviews":    true,
		"https://www.wong.pe/arroz/12345/p-extra":          true,
		"https://www.wong.pe/lacteos":                      false,
		"https://www.wong.pe/lacteos/leche/pack":           false,
		"https://www.wong.pe/1234/p-extra":                 false,
		"https://www.wong.pe/promociones/precios-bajos-pe": false,
	}
	for url, want := range tests {
		assert.Equal(t, want, IsProductPath(url), url)
	}
}

func TestProbe(t *testing.T) {
	f := &fakeFetcher{pages: map[string]*fetch.Page{
		"https://x/ld":      {StatusCode: 200, Body: []byte(`<script type="application/ld+json">{"@type": "Product"}</script>`)},
		"https://x/widget":  {StatusCode: 200, Body: []byte(`<div class="VTEX-Product-Summary-2-x-container"></div>`)},
		"https://x/listing": {StatusCode: 200, Body: []byte(`<html><body>Lácteos</body></html>`)},
		"https://x/gone":    {StatusCode: 404},
	}}
	c := New(f, nil, "shelfbot", time.Second, nil)

	k, page := c.Probe(context.Background(), "https://x/ld")
	assert.Equal(t, Product, k)
	require.NotNil(t, page)

	k, page = c.Probe(context.Background(), "https://x/widget")
	assert.Equal(t, Product, k)
	assert.NotNil(t, page)

	k, page = c.Probe(context.Background(), "https://x/listing")
	assert.Equal(t, Collection, k)
	assert.Nil(t, page)

	assert.Equal(t, Unknown, c.Classify(context.Background(), "https://x/gone"))
	assert.Equal(t, Unknown, c.Classify(context.Background(), "https://x/unreachable"))
}

func TestProbeSkipsNetworkForProductPaths(t *testing.T) {
	f := &fakeFetcher{}
	c := New(f, nil, "shelfbot", time.Second, nil)

	assert.Equal(t, Product, c.Classify(context.Background(), "https://x/leche/p"))
	assert.Empty(t, f.calls)
}

func TestProbeRespectsGate(t *testing.T) {
	f := &fakeFetcher{pages: map[string]*fetch.Page{
		"https://x/private/listing": {StatusCode: 200, Body: []byte(`productName`)},
	}}
	c := New(f, denyPrefix("https://x/private"), "shelfbot", time.Second, nil)

	assert.Equal(t, Unknown, c.Classify(context.Background(), "https://x/private/listing"))
	assert.Empty(t, f.calls)
}

func TestClassifierWithoutFetcherNeverProbes(t *testing.T) {
	c := New(nil, nil, "shelfbot", time.Second, nil)
	assert.Equal(t, Unknown, c.Classify(context.Background(), "https://x/lacteos"))
	assert.Equal(t, Product, c.Classify(context.Background(), "https://x/leche/p"))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "product", Product.String())
	assert.Equal(t, "collection", Collection.String())
	assert.Equal(t, "unknown", Unknown.String())
}
