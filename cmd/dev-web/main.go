package main

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	cli "github.com/jawher/mow.cli"
	"github.com/sirupsen/logrus"

	dataio "github.com/geniass/shelf-dealz/pkg/io"
	"github.com/geniass/shelf-dealz/pkg/web"
)

func main() {
	app := cli.App("dev-web", "Serve the HTML report straight from the JSON exports")

	var (
		dataDir = app.StringOpt("d data-dir", "./out/json", "directory that contains the deals/ and other/ JSON exports")
		addr    = app.StringOpt("a addr", ":8080", "address to listen on")
		site    = app.StringOpt("s site", "Wong", "store name shown in page titles")
	)

	app.Action = func() {
		logrus.WithField("addr", *addr).Info("serving report")
		if err := http.ListenAndServe(*addr, newHandler(*dataDir, *site)); err != nil {
			logrus.Fatal(err)
		}
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func newHandler(dataDir, site string) http.Handler {
	lastUpdated := time.Now()
	base := web.BaseContext{Site: site}
	mux := http.NewServeMux()

	mux.HandleFunc("/", func(rw http.ResponseWriter, r *http.Request) {
		if err := web.RenderHome(rw, base); err != nil {
			logrus.WithError(err).Error("render home")
			rw.WriteHeader(http.StatusInternalServerError)
			return
		}
	})

	dealz := func(sub, title string) http.HandlerFunc {
		return func(rw http.ResponseWriter, r *http.Request) {
			ps, err := dataio.LoadFromDir(filepath.Join(dataDir, sub))
			if err != nil && !errors.Is(err, fs.ErrNotExist) {
				logrus.WithError(err).Error("load records")
				rw.WriteHeader(http.StatusInternalServerError)
				return
			}

			if err := web.RenderDealz(rw, web.DealzContext{
				BaseContext: base,
				Title:       title,
				LastUpdated: lastUpdated,
				Products:    ps,
			}); err != nil {
				logrus.WithError(err).Error("render dealz")
				rw.WriteHeader(http.StatusInternalServerError)
				return
			}
		}
	}

	mux.HandleFunc("/index.html", func(rw http.ResponseWriter, r *http.Request) {
		http.Redirect(rw, r, "/", http.StatusFound)
	})
	mux.HandleFunc("/discount.html", dealz(dataio.DealsDir, "Discounted"))
	mux.HandleFunc("/other.html", dealz(dataio.OtherDir, "Other Products"))
	return mux
}
