package scraper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/geniass/shelf-dealz/pkg/classify"
	"github.com/geniass/shelf-dealz/pkg/config"
	"github.com/geniass/shelf-dealz/pkg/fetch"
	dataio "github.com/geniass/shelf-dealz/pkg/io"
	"github.com/geniass/shelf-dealz/pkg/ledger"
	"github.com/geniass/shelf-dealz/pkg/product"
	"github.com/geniass/shelf-dealz/pkg/record"
	"github.com/geniass/shelf-dealz/pkg/robots"
	"github.com/geniass/shelf-dealz/pkg/sitemap"
)

type State int

const (
	StateInit State = iota
	StateDiscoverURLs
	StateClassifyAndExtract
	StateBackfillFromCollections
	StateFinalize
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateDiscoverURLs:
		return "DISCOVER_URLS"
	case StateClassifyAndExtract:
		return "CLASSIFY_AND_EXTRACT"
	case StateBackfillFromCollections:
		return "BACKFILL_FROM_COLLECTIONS"
	case StateFinalize:
		return "FINALIZE"
	}
	return "UNKNOWN"
}

type RecordCallbackFunc func(rec product.Record)

type Scraper struct {
	cfg     *config.Config
	fetcher fetch.Fetcher
	sink    dataio.Sink
	log     *logrus.Entry

	sitemaps   *sitemap.Reader
	gate       *robots.Gate
	classifier *classify.Classifier
	ledger     *ledger.Ledger
	builder    *record.Builder

	callback RecordCallbackFunc
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	jitter   func(lo, hi time.Duration) time.Duration

	state       State
	interrupted bool
}

// Result summarizes a finished run. Records and Discards are what was handed
// to the sink.
type Result struct {
	RunID          string
	Records        []product.Record
	Discards       []product.Discard
	ProductURLs    []string
	CollectionURLs []string
	Duplicates     int
	Interrupted    bool
	StartedAt      time.Time
	FinishedAt     time.Time
}
