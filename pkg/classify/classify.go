// Package classify tells product detail pages apart from collection pages.
package classify

import (
	"bytes"
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/geniass/shelf-dealz/pkg/fetch"
)

type Kind int

const (
	Unknown Kind = iota
	Product
	Collection
)

func (k Kind) String() string {
	switch k {
	case Product:
		return "product"
	case Collection:
		return "collection"
	default:
		return "unknown"
	}
}

var productPathRegexps = []*regexp.Regexp{
	regexp.MustCompile(`/p(?:$|[?#])`),
	regexp.MustCompile(`/\d{5,}/p`),
}

var productMarkers = [][]byte{
	[]byte(`"@type": "product"`),
	[]byte(`"@type":"product"`),
	[]byte("vtex-product-summary"),
	[]byte("vtex-product-price"),
	[]byte("product__title"),
	[]byte("productname"),
}

// IsProductPath applies the storefront URL convention for product detail
// pages. It never touches the network.
func IsProductPath(url string) bool {
	u := strings.ToLower(url)
	for _, re := range productPathRegexps {
		if re.MatchString(u) {
			return true
		}
	}
	return false
}

// Gate is the part of the robots gate the classifier needs.
type Gate interface {
	Allows(userAgent, target string) bool
}

type Classifier struct {
	fetcher   fetch.Fetcher
	gate      Gate
	userAgent string
	timeout   time.Duration
	log       *logrus.Entry
}

// New returns a classifier that probes inconclusive URLs with f. A nil f
// disables probing.
func New(f fetch.Fetcher, gate Gate, userAgent string, probeTimeout time.Duration, log *logrus.Entry) *Classifier {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Classifier{
		fetcher:   f,
		gate:      gate,
		userAgent: userAgent,
		timeout:   probeTimeout,
		log:       log,
	}
}

func (c *Classifier) Classify(ctx context.Context, url string) Kind {
	k, _ := c.Probe(ctx, url)
	return k
}

// Probe classifies url and, when it had to fetch the page to decide, returns
// the page so the caller does not fetch it twice.
func (c *Classifier) Probe(ctx context.Context, url string) (Kind, *fetch.Page) {
	if IsProductPath(url) {
		return Product, nil
	}
	if c.fetcher == nil {
		return Unknown, nil
	}
	if c.gate != nil && !c.gate.Allows(c.userAgent, url) {
		c.log.WithField("url", url).Debug("probe disallowed by robots.txt")
		return Unknown, nil
	}

	page, err := c.fetcher.Get(ctx, url, c.timeout)
	if err != nil {
		c.log.WithError(err).WithField("url", url).Debug("probe failed")
		return Unknown, nil
	}
	if page.StatusCode < 200 || page.StatusCode > 299 {
		return Unknown, nil
	}

	if HasProductMarkers(page.Body) {
		return Product, page
	}
	return Collection, nil
}

// HasProductMarkers looks for structured Product data or the storefront's
// product widget classes in body.
func HasProductMarkers(body []byte) bool {
	lower := bytes.ToLower(body)
	for _, m := range productMarkers {
		if bytes.Contains(lower, m) {
			return true
		}
	}
	return false
}
