// Package scraper drives a sequential scraping run: robots.txt, sitemap
// discovery, product page extraction, backfill from collection listings and
// export.
package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/geniass/shelf-dealz/pkg/classify"
	"github.com/geniass/shelf-dealz/pkg/config"
	"github.com/geniass/shelf-dealz/pkg/extract"
	"github.com/geniass/shelf-dealz/pkg/fetch"
	dataio "github.com/geniass/shelf-dealz/pkg/io"
	"github.com/geniass/shelf-dealz/pkg/ledger"
	"github.com/geniass/shelf-dealz/pkg/product"
	"github.com/geniass/shelf-dealz/pkg/record"
	"github.com/geniass/shelf-dealz/pkg/robots"
	"github.com/geniass/shelf-dealz/pkg/sitemap"
)

var (
	ErrNoSitemap = errors.New("no sitemap could be read")
	ErrExport    = errors.New("export failed")
)

// NewScraper prepares a run against cfg.Site. sink may be nil to skip
// exporting.
func NewScraper(cfg *config.Config, f fetch.Fetcher, sink dataio.Sink, log *logrus.Entry) *Scraper {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Scraper{
		cfg:      cfg,
		fetcher:  f,
		sink:     sink,
		log:      log,
		sitemaps: sitemap.NewReader(f, cfg.Fetch.Timeout),
		gate:     robots.AllowAll(),
		now:      time.Now,
		sleep:    sleepContext,
		jitter:   jitter,
	}
}

// OnRecord registers cb to be called with every accepted record.
func (s *Scraper) OnRecord(cb RecordCallbackFunc) {
	s.callback = cb
}

// Run executes the whole pipeline. Cancelling ctx stops discovery and
// extraction early; whatever was accepted is still exported and the result
// is marked interrupted. The returned result is nil only when discovery found
// no sitemap at all.
func (s *Scraper) Run(ctx context.Context) (*Result, error) {
	startedAt := s.now()
	s.ledger = ledger.New(s.log.WithField("component", "ledger"))
	s.builder = record.NewBuilder(s.cfg.Site.Tag, s.ledger, s.now)
	s.interrupted = false

	s.enter(StateInit)
	s.gate = robots.FromSite(ctx, s.fetcher, s.cfg.Site.BaseURL, s.log.WithField("component", "robots"))
	s.classifier = classify.New(s.fetcher, s.gate, s.cfg.Site.UserAgent, s.cfg.Fetch.ProbeTimeout, s.log.WithField("component", "classify"))

	s.enter(StateDiscoverURLs)
	products, collections, err := s.discover(ctx)
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"product_urls":    len(products),
		"collection_urls": len(collections),
	}).Info("discovery finished")

	s.enter(StateClassifyAndExtract)
	s.extractProducts(ctx, products)

	if s.cfg.Backfill.Enabled && !s.interrupted && s.ledger.Len() < s.cfg.Target && len(collections) > 0 {
		s.enter(StateBackfillFromCollections)
		s.backfill(ctx, collections)
	}

	s.enter(StateFinalize)
	records, discards := s.ledger.Finalize(s.cfg.Export.MinRows)
	if len(records) < s.cfg.Target {
		s.log.WithFields(logrus.Fields{"records": len(records), "target": s.cfg.Target}).Warn("target not reached")
	}

	res := &Result{
		RunID:          uuid.NewString(),
		Records:        records,
		Discards:       discards,
		ProductURLs:    products,
		CollectionURLs: collections,
		Duplicates:     s.ledger.Duplicates(),
		Interrupted:    s.interrupted,
		StartedAt:      startedAt,
		FinishedAt:     s.now(),
	}

	if s.sink != nil {
		// a cancelled run is still exported
		exportCtx := context.WithoutCancel(ctx)
		err := s.sink.Export(exportCtx, dataio.Export{
			RunID:       res.RunID,
			Site:        s.cfg.Site.Name,
			StartedAt:   res.StartedAt,
			FinishedAt:  res.FinishedAt,
			Records:     res.Records,
			Discards:    res.Discards,
			Interrupted: res.Interrupted,
		})
		if err != nil {
			return res, fmt.Errorf("%w: %w", ErrExport, err)
		}
	}

	s.log.WithFields(logrus.Fields{
		"run_id":      res.RunID,
		"records":     len(res.Records),
		"discards":    len(res.Discards),
		"duplicates":  res.Duplicates,
		"interrupted": res.Interrupted,
	}).Info("run finished")
	return res, nil
}

func (s *Scraper) enter(state State) {
	s.state = state
	s.log.WithField("state", state.String()).Info("entering state")
}

// stop reports whether the run has to leave the current loop, recording a
// cancellation on the way.
func (s *Scraper) stop(ctx context.Context) bool {
	if ctx.Err() != nil {
		if !s.interrupted {
			s.log.WithError(ctx.Err()).Warn("run cancelled, exporting what was collected")
		}
		s.interrupted = true
		return true
	}
	return s.ledger.Len() >= s.cfg.Target
}

func (s *Scraper) pause(ctx context.Context, lo, hi time.Duration) bool {
	if err := s.sleep(ctx, s.jitter(lo, hi)); err != nil {
		return s.stop(ctx)
	}
	return false
}

func (s *Scraper) extractProducts(ctx context.Context, urls []string) {
	ua := s.cfg.Site.UserAgent
	for i, u := range urls {
		if s.stop(ctx) {
			return
		}
		log := s.log.WithFields(logrus.Fields{"url": u, "index": i + 1, "total": len(urls)})

		if !s.gate.Allows(ua, u) {
			log.Debug("disallowed by robots.txt")
			s.ledger.Reject(u, product.ReasonRobotsDisallowed, "")
			continue
		}

		kind, page := s.classifier.Probe(ctx, u)
		switch kind {
		case classify.Collection:
			log.Debug("not a product page")
			s.ledger.Reject(u, product.ReasonNotProduct, "")
			continue
		case classify.Unknown:
			log.Debug("could not classify")
			s.ledger.Reject(u, product.ReasonClassificationUnknown, "")
			continue
		}

		if page == nil {
			var err error
			page, err = s.fetcher.Get(ctx, u, s.cfg.Fetch.Timeout)
			if err != nil {
				if s.stop(ctx) {
					return
				}
				log.WithError(err).Warn("fetch failed")
				s.ledger.Reject(u, product.ReasonFetchFailed, err.Error())
				if s.pause(ctx, s.cfg.Politeness.ProductDelayMin, s.cfg.Politeness.ProductDelayMax) {
					return
				}
				continue
			}
		}

		s.accept(extract.FromPage(u, page.Body), "", log)

		if s.stop(ctx) {
			return
		}
		if s.pause(ctx, s.cfg.Politeness.ProductDelayMin, s.cfg.Politeness.ProductDelayMax) {
			return
		}
	}
}

// accept builds and records c. It reports whether a record was built, which
// is true for duplicates as well.
func (s *Scraper) accept(c product.Candidate, categoryHint string, log *logrus.Entry) bool {
	rec := s.builder.Build(c, categoryHint, s.cfg.Site.Name)
	if rec == nil {
		log.Debug("discarded, no name")
		return false
	}
	if s.ledger.Accept(*rec) {
		log.WithFields(logrus.Fields{
			"name":     rec.Name,
			"price":    rec.OnlinePrice.StringFixed(2),
			"accepted": s.ledger.Len(),
		}).Info("Found product")
		if s.callback != nil {
			s.callback(*rec)
		}
	}
	return true
}

func (s *Scraper) backfill(ctx context.Context, collections []string) {
	for _, cu := range collections {
		if s.stop(ctx) {
			return
		}
		s.backfillCollection(ctx, cu)
	}
}

func (s *Scraper) backfillCollection(ctx context.Context, collectionURL string) {
	base, err := url.Parse(collectionURL)
	if err != nil {
		s.log.WithError(err).WithField("url", collectionURL).Warn("skipping malformed collection URL")
		return
	}
	base.RawQuery = ""
	base.Fragment = ""
	slug := lastSegment(base.Path)

	log := s.log.WithFields(logrus.Fields{"collection": slug})
	taken := 0

	for page := 1; page <= s.cfg.Backfill.MaxPages; page++ {
		if s.stop(ctx) {
			return
		}

		pageURL := *base
		if page > 1 {
			pageURL.RawQuery = "page=" + strconv.Itoa(page)
		}
		pageLog := log.WithFields(logrus.Fields{"url": pageURL.String(), "page": page})

		if !s.gate.Allows(s.cfg.Site.UserAgent, pageURL.String()) {
			pageLog.Warn("listing disallowed by robots.txt")
			return
		}

		resp, err := s.fetcher.Get(ctx, pageURL.String(), s.cfg.Fetch.Timeout)
		if err != nil {
			if !s.stop(ctx) {
				pageLog.WithError(err).Warn("listing fetch failed")
			}
			return
		}

		doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body))
		if err != nil {
			pageLog.WithError(err).Warn("listing unreadable")
			return
		}

		selector, cards := extract.Cards(doc)
		if len(cards) == 0 {
			pageLog.Info("no product cards")
			return
		}
		pageLog.WithFields(logrus.Fields{"cards": len(cards), "selector": selector}).Debug("listing page")

		built := 0
		for _, card := range cards {
			if taken >= s.cfg.Backfill.MaxProductsPerCollection || s.stop(ctx) {
				return
			}

			c := extract.FromCard(card, &pageURL)
			if c.URL == "" {
				c.URL = pageURL.String()
			}
			if s.cfg.Backfill.FollowCards && c.URL != pageURL.String() {
				c = s.enrich(ctx, c, pageLog)
				if s.interrupted {
					return
				}
			}

			before := s.ledger.Len()
			if s.accept(c, slug, pageLog.WithField("card_url", c.URL)) {
				built++
			}
			if s.ledger.Len() > before {
				taken++
			}
		}

		pageLog.WithFields(logrus.Fields{"built": built, "taken": taken}).Info("listing page done")
		if built == 0 {
			return
		}
		if s.pause(ctx, s.cfg.Politeness.PageDelayMin, s.cfg.Politeness.PageDelayMax) {
			return
		}
	}
}

// enrich fetches the detail page behind a listing card. Detail page fields
// win; the card fills whatever the page lacks.
func (s *Scraper) enrich(ctx context.Context, card product.Candidate, log *logrus.Entry) product.Candidate {
	if !s.gate.Allows(s.cfg.Site.UserAgent, card.URL) {
		return card
	}

	kind, page := s.classifier.Probe(ctx, card.URL)
	if kind != classify.Product {
		return card
	}
	if page == nil {
		var err error
		page, err = s.fetcher.Get(ctx, card.URL, s.cfg.Fetch.Timeout)
		if err != nil {
			if !s.stop(ctx) {
				log.WithError(err).WithField("card_url", card.URL).Debug("card detail fetch failed")
			}
			return card
		}
	}

	detail := extract.FromPage(card.URL, page.Body)
	s.pause(ctx, s.cfg.Politeness.ProductDelayMin, s.cfg.Politeness.ProductDelayMax)
	return detail.WithFallback(card)
}

func lastSegment(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	return parts[len(parts)-1]
}

func jitter(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + rand.N(hi-lo)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
