package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	cli "github.com/jawher/mow.cli"
	"github.com/sirupsen/logrus"

	dataio "github.com/geniass/shelf-dealz/pkg/io"
	"github.com/geniass/shelf-dealz/pkg/web"
)

func main() {
	app := cli.App("generate-web", "Render the exported JSON records as a static HTML report")

	var (
		dataDir    = app.StringOpt("d data-dir", "./out/json", "directory that contains the deals/ and other/ JSON exports")
		outputDir  = app.StringOpt("o output-dir", "docs", "directory to write rendered HTML content to")
		pathPrefix = app.StringOpt("p path-prefix", "", "prefix page link URLs (in case pages are hosted at a subpath); should start with '/'")
		site       = app.StringOpt("s site", "Wong", "store name shown in page titles")
		threshold  = app.IntOpt("deal-threshold", 10, "discount percentage shown in the deals page title")
	)

	app.Action = func() {
		base := web.BaseContext{PathPrefix: *pathPrefix, Site: *site}
		if err := generate(*dataDir, *outputDir, base, *threshold, time.Now()); err != nil {
			logrus.Fatal(err)
		}
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func generate(dataDir, outputDir string, base web.BaseContext, threshold int, lastUpdated time.Time) error {
	if err := os.MkdirAll(outputDir, os.ModeDir|0775); err != nil {
		return err
	}

	// Home page
	err := renderToFile(outputDir, "index.html", func(w io.Writer) error {
		return web.RenderHome(w, base)
	})
	if err != nil {
		return err
	}

	pages := []struct {
		sub, file, title string
	}{
		{dataio.DealsDir, "discount.html", fmt.Sprintf("Discounted (%d%%)", threshold)},
		{dataio.OtherDir, "other.html", "Other Products"},
	}
	for _, p := range pages {
		dir := filepath.Join(dataDir, p.sub)
		ps, err := dataio.LoadFromDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			logrus.WithField("dir", dir).Warn("data dir does not exist, assuming no products")
		} else if err != nil {
			return err
		}

		err = renderToFile(outputDir, p.file, func(w io.Writer) error {
			return web.RenderDealz(w, web.DealzContext{
				BaseContext: base,
				Title:       p.title,
				LastUpdated: lastUpdated,
				Products:    ps,
			})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func renderToFile(dir string, filename string, renderFunc func(w io.Writer) error) error {
	f, err := os.Create(filepath.Join(dir, filename))
	if err != nil {
		return err
	}
	defer f.Close()

	if err := renderFunc(f); err != nil {
		return err
	}
	return f.Close()
}
