package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	cli "github.com/jawher/mow.cli"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/geniass/shelf-dealz/pkg/config"
	"github.com/geniass/shelf-dealz/pkg/fetch"
	dataio "github.com/geniass/shelf-dealz/pkg/io"
	"github.com/geniass/shelf-dealz/pkg/logging"
	"github.com/geniass/shelf-dealz/pkg/scraper"
)

func main() {
	app := cli.App("scraper", "Scrape product names, prices and availability from a retail storefront")

	var targetSet, outSet, modeSet, levelSet bool
	var (
		configPath = app.StringOpt("c config", "", "YAML config file; defaults to shelfdealz.yaml in . or ./config")
		target     = app.Int(cli.IntOpt{Name: "t target", Value: 1000, Desc: "number of products to collect", SetByUser: &targetSet})
		out        = app.String(cli.StringOpt{Name: "o out", Value: "out", Desc: "directory to write exports to", SetByUser: &outSet})
		mode       = app.String(cli.StringOpt{Name: "m mode", Value: config.ModeHTTP, Desc: "fetch mode: http or browser", SetByUser: &modeSet})
		level      = app.String(cli.StringOpt{Name: "l log-level", Value: "info", Desc: "debug, info, warn or error", SetByUser: &levelSet})
	)

	app.Action = func() {
		cfg, err := config.Load(*configPath)
		if err != nil {
			logrus.WithError(err).Error("could not load configuration")
			cli.Exit(1)
		}

		if targetSet {
			cfg.Target = *target
		}
		if outSet {
			cfg.Export.Dir = *out
		}
		if modeSet {
			cfg.Fetch.Mode = *mode
		}
		if levelSet {
			cfg.Log.Level = *level
		}
		if err := cfg.Validate(); err != nil {
			logrus.WithError(err).Error("invalid options")
			cli.Exit(1)
		}

		logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			logrus.WithError(err).Error("could not set up logging")
			cli.Exit(1)
		}

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		if err := run(ctx, cfg, logger); err != nil {
			cancel()
			cli.Exit(1)
		}
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *logrus.Logger) error {
	log := logging.Component(logger, "main")

	f, closeFetcher, err := newFetcher(cfg, logger)
	if err != nil {
		log.WithError(err).Error("could not start fetcher")
		return err
	}
	defer closeFetcher()

	s := scraper.NewScraper(cfg, f, newSink(cfg), logging.Component(logger, "scraper"))

	res, err := s.Run(ctx)
	if res != nil {
		if err := markdownTemplate.Execute(os.Stdout, newSummary(cfg, res)); err != nil {
			log.WithError(err).Warn("could not print run summary")
		}
	}
	if err != nil {
		log.WithError(err).Error("run failed")
		return err
	}
	return nil
}

func newFetcher(cfg *config.Config, logger *logrus.Logger) (fetch.Fetcher, func(), error) {
	var (
		base    fetch.Fetcher
		closeFn = func() {}
	)

	switch cfg.Fetch.Mode {
	case config.ModeBrowser:
		b, err := fetch.NewBrowser(fetch.BrowserOptions{
			Bin:       cfg.Fetch.BrowserBin,
			UserAgent: cfg.Site.UserAgent,
			Settle:    cfg.Fetch.BrowserSettle,
		}, logging.Component(logger, "browser"))
		if err != nil {
			return nil, nil, err
		}
		base = b
		closeFn = func() { _ = b.Close() }
	case config.ModeHTTP:
		base = fetch.NewColly(fetch.CollyOptions{
			UserAgent:      cfg.Site.UserAgent,
			CacheDir:       cfg.Fetch.CacheDir,
			AcceptLanguage: cfg.Site.AcceptLanguage,
		}, logging.Component(logger, "colly"))
	default:
		return nil, nil, fmt.Errorf("unknown fetch mode %q", cfg.Fetch.Mode)
	}

	retry := fetch.NewRetry(base, fetch.RetryOptions{
		MaxAttempts:       cfg.Fetch.MaxAttempts,
		Backoff:           cfg.Fetch.Backoff,
		Statuses:          cfg.Fetch.RetryStatuses,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
	}, logging.Component(logger, "retry"))
	return retry, closeFn, nil
}

func newSink(cfg *config.Config) dataio.Multi {
	e := cfg.Export
	var sinks dataio.Multi
	if e.CSV {
		sinks = append(sinks, dataio.CSVSink{Dir: e.Dir, Basename: e.Basename})
	}
	if e.JSON {
		sinks = append(sinks, dataio.JSONSink{
			Dir:           filepath.Join(e.Dir, "json"),
			DealThreshold: decimal.NewFromFloat(e.DealThreshold),
		})
	}
	if e.SQLite {
		sinks = append(sinks, dataio.SQLiteSink{Path: filepath.Join(e.Dir, e.Basename+".db")})
	}
	if e.Dictionary {
		sinks = append(sinks, dataio.DictionarySink{Path: filepath.Join(e.Dir, e.Basename+"_dictionary.yaml")})
	}
	return sinks
}
