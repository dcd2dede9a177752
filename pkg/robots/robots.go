// Package robots decides whether a path may be fetched according to a site's
// robots.txt.
package robots

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"

	"github.com/geniass/shelf-dealz/pkg/fetch"
)

var ErrInvalidRobots = errors.New("invalid robots.txt")

const fetchTimeout = 15 * time.Second

// Gate answers robots.txt questions. The zero value and AllowAll permit
// every path.
type Gate struct {
	data *robotstxt.RobotsData
}

func Load(text string) (*Gate, error) {
	data, err := robotstxt.FromString(text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRobots, err)
	}
	return &Gate{data: data}, nil
}

func AllowAll() *Gate {
	return &Gate{}
}

// Allows reports whether userAgent may fetch target, which can be a path or
// an absolute URL.
func (g *Gate) Allows(userAgent, target string) bool {
	if g == nil || g.data == nil {
		return true
	}
	return g.data.TestAgent(pathOf(target), userAgent)
}

// Sitemaps lists the Sitemap: lines of the robots file.
func (g *Gate) Sitemaps() []string {
	if g == nil || g.data == nil {
		return nil
	}
	return append([]string(nil), g.data.Sitemaps...)
}

// FromSite fetches <baseURL>/robots.txt. Any failure yields an allow-all gate.
func FromSite(ctx context.Context, f fetch.Fetcher, baseURL string, log *logrus.Entry) *Gate {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	robotsURL := strings.TrimRight(baseURL, "/") + "/robots.txt"

	page, err := f.Get(ctx, robotsURL, fetchTimeout)
	if err != nil {
		log.WithError(err).WithField("url", robotsURL).Warn("robots.txt unavailable, allowing all paths")
		return AllowAll()
	}

	gate, err := Load(string(page.Body))
	if err != nil {
		log.WithError(err).WithField("url", robotsURL).Warn("robots.txt unreadable, allowing all paths")
		return AllowAll()
	}

	for _, s := range gate.Sitemaps() {
		log.WithField("sitemap", s).Info("robots.txt lists sitemap")
	}
	return gate
}

func pathOf(target string) string {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme == "" && u.Host == "") {
		if target == "" {
			return "/"
		}
		return target
	}
	p := u.EscapedPath()
	if p == "" {
		p = "/"
	}
	if u.RawQuery != "" {
		p += "?" + u.RawQuery
	}
	return p
}
