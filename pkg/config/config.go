package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "SHELFDEALZ"

const (
	ModeHTTP    = "http"
	ModeBrowser = "browser"
)

// Config holds all configuration for a scraping run
type Config struct {
	Target     int              `mapstructure:"target"`
	Site       SiteConfig       `mapstructure:"site"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Politeness PolitenessConfig `mapstructure:"politeness"`
	Backfill   BackfillConfig   `mapstructure:"backfill"`
	Export     ExportConfig     `mapstructure:"export"`
	Log        LogConfig        `mapstructure:"log"`
}

// SiteConfig describes the storefront being scraped
type SiteConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Name           string `mapstructure:"name"` // default brand
	Tag            string `mapstructure:"tag"`  // prefix of synthesized SKUs
	UserAgent      string `mapstructure:"user_agent"`
	AcceptLanguage string `mapstructure:"accept_language"`
}

type DiscoveryConfig struct {
	SitemapIndex      string   `mapstructure:"sitemap_index"`
	MaxChildSitemaps  int      `mapstructure:"max_child_sitemaps"`
	ChildSitemapGlobs []string `mapstructure:"child_sitemap_globs"`
	MaxProductURLs    int      `mapstructure:"max_product_urls"`
	FallbackSitemaps  []string `mapstructure:"fallback_sitemaps"`
}

type FetchConfig struct {
	Mode              string        `mapstructure:"mode"`
	Timeout           time.Duration `mapstructure:"timeout"`
	ProbeTimeout      time.Duration `mapstructure:"probe_timeout"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	Backoff           time.Duration `mapstructure:"backoff"`
	RetryStatuses     []int         `mapstructure:"retry_statuses"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	CacheDir          string        `mapstructure:"cache_dir"`
	BrowserBin        string        `mapstructure:"browser_bin"`
	BrowserSettle     time.Duration `mapstructure:"browser_settle"`
}

// PolitenessConfig holds the randomized delays between requests
type PolitenessConfig struct {
	ProductDelayMin time.Duration `mapstructure:"product_delay_min"`
	ProductDelayMax time.Duration `mapstructure:"product_delay_max"`
	PageDelayMin    time.Duration `mapstructure:"page_delay_min"`
	PageDelayMax    time.Duration `mapstructure:"page_delay_max"`
}

type BackfillConfig struct {
	Enabled                  bool `mapstructure:"enabled"`
	MaxPages                 int  `mapstructure:"max_pages"`
	MaxProductsPerCollection int  `mapstructure:"max_products_per_collection"`
	FollowCards              bool `mapstructure:"follow_cards"`
}

type ExportConfig struct {
	Dir        string `mapstructure:"dir"`
	Basename   string `mapstructure:"basename"`
	CSV        bool   `mapstructure:"csv"`
	JSON       bool   `mapstructure:"json"`
	SQLite     bool   `mapstructure:"sqlite"`
	Dictionary bool   `mapstructure:"dictionary"`
	// DealThreshold is the discount percentage from which a record is a deal
	DealThreshold float64 `mapstructure:"deal_threshold"`
	MinRows       int     `mapstructure:"min_rows"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// Load reads defaults, then the config file, then SHELFDEALZ_* environment
// variables. An empty path searches for shelfdealz.yaml in . and ./config.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("shelfdealz")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("target", 1000)

	v.SetDefault("site.base_url", "https://www.wong.pe")
	v.SetDefault("site.name", "Wong")
	v.SetDefault("site.tag", "wong")
	v.SetDefault("site.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0 Safari/537.36")
	v.SetDefault("site.accept_language", "es-PE,es;q=0.9,en;q=0.8")

	v.SetDefault("discovery.sitemap_index", "/sitemap.xml")
	v.SetDefault("discovery.max_child_sitemaps", 10)
	v.SetDefault("discovery.child_sitemap_globs", []string{})
	v.SetDefault("discovery.max_product_urls", 2000)
	v.SetDefault("discovery.fallback_sitemaps", []string{"/sitemap/product-0.xml", "/sitemap/category-0.xml"})

	v.SetDefault("fetch.mode", ModeHTTP)
	v.SetDefault("fetch.timeout", "20s")
	v.SetDefault("fetch.probe_timeout", "8s")
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.backoff", "1s")
	v.SetDefault("fetch.retry_statuses", []int{429, 500, 502, 503, 504})
	v.SetDefault("fetch.requests_per_second", 0)
	v.SetDefault("fetch.cache_dir", "")
	v.SetDefault("fetch.browser_bin", "")
	v.SetDefault("fetch.browser_settle", "1500ms")

	v.SetDefault("politeness.product_delay_min", "800ms")
	v.SetDefault("politeness.product_delay_max", "1600ms")
	v.SetDefault("politeness.page_delay_min", "1500ms")
	v.SetDefault("politeness.page_delay_max", "3s")

	v.SetDefault("backfill.enabled", true)
	v.SetDefault("backfill.max_pages", 10)
	v.SetDefault("backfill.max_products_per_collection", 150)
	v.SetDefault("backfill.follow_cards", true)

	v.SetDefault("export.dir", "out")
	v.SetDefault("export.basename", "products")
	v.SetDefault("export.csv", true)
	v.SetDefault("export.json", true)
	v.SetDefault("export.sqlite", true)
	v.SetDefault("export.dictionary", true)
	v.SetDefault("export.deal_threshold", 10.0)
	v.SetDefault("export.min_rows", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Site.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("site.base_url must be an absolute URL, got: %q", c.Site.BaseURL)
	}
	if c.Target < 1 {
		return fmt.Errorf("target must be positive, got: %d", c.Target)
	}
	if c.Fetch.Mode != ModeHTTP && c.Fetch.Mode != ModeBrowser {
		return fmt.Errorf("fetch.mode must be '%s' or '%s', got: %s", ModeHTTP, ModeBrowser, c.Fetch.Mode)
	}
	if c.Fetch.MaxAttempts < 1 {
		return fmt.Errorf("fetch.max_attempts must be at least 1, got: %d", c.Fetch.MaxAttempts)
	}
	if c.Politeness.ProductDelayMin > c.Politeness.ProductDelayMax {
		return fmt.Errorf("politeness.product_delay_min is greater than politeness.product_delay_max")
	}
	if c.Politeness.PageDelayMin > c.Politeness.PageDelayMax {
		return fmt.Errorf("politeness.page_delay_min is greater than politeness.page_delay_max")
	}
	if c.Discovery.MaxProductURLs < 1 {
		return fmt.Errorf("discovery.max_product_urls must be positive, got: %d", c.Discovery.MaxProductURLs)
	}
	return nil
}

// SitemapIndexURL resolves the configured sitemap index against the base URL.
func (c *Config) SitemapIndexURL() string {
	return c.Resolve(c.Discovery.SitemapIndex)
}

// Resolve turns a site-relative path into an absolute URL. Absolute URLs are
// returned unchanged.
func (c *Config) Resolve(ref string) string {
	base, err := url.Parse(c.Site.BaseURL)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}
