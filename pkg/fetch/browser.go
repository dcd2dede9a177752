package fetch

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/sirupsen/logrus"
)

// Browser renders pages in headless Chromium for storefronts that build
// their product widgets with JavaScript.
type Browser struct {
	browser   *rod.Browser
	userAgent string
	settle    time.Duration
	log       *logrus.Entry
}

type BrowserOptions struct {
	// Bin is the Chromium binary; empty lets the launcher find or download one.
	Bin       string
	UserAgent string
	// Settle is how long to wait after the load event for client-side
	// rendering to finish.
	Settle time.Duration
}

func NewBrowser(opts BrowserOptions, log *logrus.Entry) (*Browser, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	l := launcher.New().
		Headless(true).
		NoSandbox(true).
		Leakless(false)

	bin := opts.Bin
	if bin == "" {
		if _, err := os.Stat("/usr/bin/chromium-browser"); err == nil {
			bin = "/usr/bin/chromium-browser"
		}
	}
	if bin != "" {
		l = l.Bin(bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}
	log.WithField("control_url", controlURL).Info("browser launched")

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	return &Browser{
		browser:   b,
		userAgent: opts.UserAgent,
		settle:    opts.Settle,
		log:       log,
	}, nil
}

func (b *Browser) Get(ctx context.Context, url string, timeout time.Duration) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	br := b.browser.Context(ctx)
	if timeout > 0 {
		br = br.Timeout(timeout)
	}

	page, err := br.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("open tab: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			b.log.WithError(err).Debug("closing tab")
		}
	}()

	if b.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.userAgent}); err != nil {
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}

	b.log.WithField("url", url).Debug("Rendering")

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", url, err)
	}

	if b.settle > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(b.settle):
		}
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read rendered html %s: %w", url, err)
	}

	finalURL := url
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}
	// the devtools protocol does not surface the document status without
	// network interception, so a rendered page counts as a 200
	return &Page{URL: finalURL, StatusCode: http.StatusOK, Body: []byte(html)}, nil
}

func (b *Browser) Close() error {
	return b.browser.Close()
}
