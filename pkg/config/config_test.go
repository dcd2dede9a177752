package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Target)
	assert.Equal(t, "https://www.wong.pe", cfg.Site.BaseURL)
	assert.Equal(t, "Wong", cfg.Site.Name)
	assert.Equal(t, 10, cfg.Discovery.MaxChildSitemaps)
	assert.Equal(t, 2000, cfg.Discovery.MaxProductURLs)
	assert.Equal(t, ModeHTTP, cfg.Fetch.Mode)
	assert.Equal(t, 8*time.Second, cfg.Fetch.ProbeTimeout)
	assert.Equal(t, []int{429, 500, 502, 503, 504}, cfg.Fetch.RetryStatuses)
	assert.Equal(t, 800*time.Millisecond, cfg.Politeness.ProductDelayMin)
	assert.Equal(t, 1600*time.Millisecond, cfg.Politeness.ProductDelayMax)
	assert.Equal(t, 3*time.Second, cfg.Politeness.PageDelayMax)
	assert.Equal(t, 150, cfg.Backfill.MaxProductsPerCollection)
	assert.True(t, cfg.Backfill.Enabled)
	assert.Equal(t, 100, cfg.Export.MinRows)
	assert.Equal(t, "https://www.wong.pe/sitemap.xml", cfg.SitemapIndexURL())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
site:
  base_url: https://www.plazavea.com.pe
  name: Plaza Vea
  tag: pvea
discovery:
  child_sitemap_globs:
    - "*/product-*.xml"
politeness:
  product_delay_min: 10ms
  product_delay_max: 20ms
backfill:
  follow_cards: false
`), 0o644))

	t.Setenv("SHELFDEALZ_FETCH_MODE", "browser")
	t.Setenv("SHELFDEALZ_TARGET", "25")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://www.plazavea.com.pe", cfg.Site.BaseURL)
	assert.Equal(t, "pvea", cfg.Site.Tag)
	assert.Equal(t, []string{"*/product-*.xml"}, cfg.Discovery.ChildSitemapGlobs)
	assert.Equal(t, 10*time.Millisecond, cfg.Politeness.ProductDelayMin)
	assert.False(t, cfg.Backfill.FollowCards)
	assert.Equal(t, ModeBrowser, cfg.Fetch.Mode)
	assert.Equal(t, 25, cfg.Target)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())

	tests := map[string]func(c *Config){
		"relative base url": func(c *Config) { c.Site.BaseURL = "wong.pe" },
		"zero target":       func(c *Config) { c.Target = 0 },
		"unknown mode":      func(c *Config) { c.Fetch.Mode = "carrier-pigeon" },
		"no attempts":       func(c *Config) { c.Fetch.MaxAttempts = 0 },
		"inverted delays":   func(c *Config) { c.Politeness.PageDelayMin = time.Hour },
	}
	for name, mutate := range tests {
		cfg, err := Load("")
		require.NoError(t, err)
		mutate(cfg)
		assert.Error(t, cfg.Validate(), name)
	}
}

func TestResolve(t *testing.T) {
	c := &Config{Site: SiteConfig{BaseURL: "https://www.wong.pe"}}
	assert.Equal(t, "https://www.wong.pe/sitemap/product-0.xml", c.Resolve("/sitemap/product-0.xml"))
	assert.Equal(t, "https://cdn.example/sm.xml", c.Resolve("https://cdn.example/sm.xml"))
}
