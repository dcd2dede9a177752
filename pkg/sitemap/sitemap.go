// Package sitemap reads sitemap and sitemap index documents.
package sitemap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
	"github.com/antchfx/xpath"

	"github.com/geniass/shelf-dealz/pkg/fetch"
)

var ErrNotSitemap = errors.New("not a sitemap document")

// local-name() keeps the expressions independent of the sitemap namespace
// prefix, which storefronts do not use consistently.
var (
	indexExpr  = xpath.MustCompile(`/*[local-name()='sitemapindex']`)
	urlsetExpr = xpath.MustCompile(`/*[local-name()='urlset']`)
	childLocs  = xpath.MustCompile(`/*[local-name()='sitemapindex']/*[local-name()='sitemap']/*[local-name()='loc']`)
	urlLocs    = xpath.MustCompile(`/*[local-name()='urlset']/*[local-name()='url']/*[local-name()='loc']`)
)

const defaultTimeout = 20 * time.Second

// Document is a parsed sitemap or sitemap index.
type Document struct {
	root *xmlquery.Node
}

func Parse(r io.Reader) (*Document, error) {
	root, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse sitemap: %w", err)
	}
	if xmlquery.QuerySelector(root, indexExpr) == nil && xmlquery.QuerySelector(root, urlsetExpr) == nil {
		return nil, ErrNotSitemap
	}
	return &Document{root: root}, nil
}

func (d *Document) IsIndex() bool {
	return xmlquery.QuerySelector(d.root, indexExpr) != nil
}

// ChildSitemapLocations returns the <loc> of every child sitemap of an index.
func (d *Document) ChildSitemapLocations() []string {
	return locations(d.root, childLocs)
}

// URLLocations returns the <loc> of every <url> entry.
func (d *Document) URLLocations() []string {
	return locations(d.root, urlLocs)
}

func locations(root *xmlquery.Node, expr *xpath.Expr) []string {
	var locs []string
	for _, n := range xmlquery.QuerySelectorAll(root, expr) {
		if loc := strings.TrimSpace(n.InnerText()); loc != "" {
			locs = append(locs, loc)
		}
	}
	return locs
}

type Reader struct {
	fetcher fetch.Fetcher
	timeout time.Duration
}

func NewReader(f fetch.Fetcher, timeout time.Duration) *Reader {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Reader{fetcher: f, timeout: timeout}
}

func (r *Reader) Fetch(ctx context.Context, url string) (*Document, error) {
	page, err := r.fetcher.Get(ctx, url, r.timeout)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", url, err)
	}
	return doc, nil
}
