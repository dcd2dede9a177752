package scraper

import (
	"context"
	"fmt"

	"github.com/gobwas/glob"
	"github.com/sirupsen/logrus"

	"github.com/geniass/shelf-dealz/pkg/classify"
	"github.com/geniass/shelf-dealz/pkg/sitemap"
)

// orderedSet keeps first-seen order.
type orderedSet struct {
	items []string
	seen  map[string]struct{}
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]struct{})}
}

func (o *orderedSet) add(s string) bool {
	if _, ok := o.seen[s]; ok {
		return false
	}
	o.seen[s] = struct{}{}
	o.items = append(o.items, s)
	return true
}

type discovery struct {
	products    *orderedSet
	collections *orderedSet
	maxProducts int
	read        int
}

func (d *discovery) classify(locs []string) {
	for _, loc := range locs {
		if classify.IsProductPath(loc) {
			if len(d.products.items) < d.maxProducts {
				d.products.add(loc)
			}
			continue
		}
		d.collections.add(loc)
	}
}

// discover reads the sitemap index, or the fallbacks when it is unreachable,
// and splits every listed URL into product and collection URLs.
func (s *Scraper) discover(ctx context.Context) ([]string, []string, error) {
	d := &discovery{
		products:    newOrderedSet(),
		collections: newOrderedSet(),
		maxProducts: s.cfg.Discovery.MaxProductURLs,
	}

	filters, err := compileGlobs(s.cfg.Discovery.ChildSitemapGlobs)
	if err != nil {
		return nil, nil, err
	}

	indexURL := s.cfg.SitemapIndexURL()
	if !s.readSitemap(ctx, d, indexURL, filters) {
		fallbacks := newOrderedSet()
		for _, sm := range s.gate.Sitemaps() {
			fallbacks.add(sm)
		}
		for _, sm := range s.cfg.Discovery.FallbackSitemaps {
			fallbacks.add(s.cfg.Resolve(sm))
		}

		for _, sm := range fallbacks.items {
			if sm == indexURL {
				continue
			}
			if ctx.Err() != nil {
				s.interrupted = true
				break
			}
			s.log.WithField("sitemap", sm).Info("trying fallback sitemap")
			s.readSitemap(ctx, d, sm, filters)
		}
	}

	if d.read == 0 {
		if ctx.Err() != nil {
			// cancelled, not missing: the run still finalizes and exports
			s.interrupted = true
			return nil, nil, nil
		}
		return nil, nil, fmt.Errorf("%w: tried %s and fallbacks", ErrNoSitemap, indexURL)
	}
	return d.products.items, d.collections.items, nil
}

// readSitemap reads one sitemap document and, if it is an index, its
// children. It reports whether the document itself could be read.
func (s *Scraper) readSitemap(ctx context.Context, d *discovery, sitemapURL string, filters []glob.Glob) bool {
	log := s.log.WithField("sitemap", sitemapURL)

	doc, err := s.sitemaps.Fetch(ctx, sitemapURL)
	if err != nil {
		log.WithError(err).Warn("sitemap unreadable")
		return false
	}
	d.read++

	if !doc.IsIndex() {
		locs := doc.URLLocations()
		d.classify(locs)
		log.WithField("urls", len(locs)).Info("sitemap read")
		return true
	}

	children := selectChildren(doc, filters, s.cfg.Discovery.MaxChildSitemaps)
	log.WithFields(logrus.Fields{"children": len(children)}).Info("sitemap index read")

	for _, child := range children {
		if ctx.Err() != nil {
			s.interrupted = true
			return true
		}
		childDoc, err := s.sitemaps.Fetch(ctx, child)
		if err != nil {
			log.WithError(err).WithField("child", child).Warn("child sitemap unreadable")
			continue
		}
		d.read++

		locs := childDoc.URLLocations()
		d.classify(locs)
		log.WithFields(logrus.Fields{"child": child, "urls": len(locs)}).Debug("child sitemap read")
	}
	return true
}

func selectChildren(doc *sitemap.Document, filters []glob.Glob, limit int) []string {
	var children []string
	for _, loc := range doc.ChildSitemapLocations() {
		if limit > 0 && len(children) >= limit {
			break
		}
		if !matchesAny(filters, loc) {
			continue
		}
		children = append(children, loc)
	}
	return children
}

func compileGlobs(patterns []string) ([]glob.Glob, error) {
	globs := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("child sitemap glob %q: %w", p, err)
		}
		globs = append(globs, g)
	}
	return globs, nil
}

// matchesAny is true when there are no filters.
func matchesAny(filters []glob.Glob, s string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, g := range filters {
		if g.Match(s) {
			return true
		}
	}
	return false
}
