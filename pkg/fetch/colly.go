package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const (
	ctxBody   = "body"
	ctxStatus = "status"
	ctxURL    = "url"
)

// Colly fetches pages over plain HTTP with a synchronous colly collector.
type Colly struct {
	colly *colly.Collector
	log   *logrus.Entry

	// guards the collector's request timeout, which is set per call
	mutex *sync.Mutex
}

type CollyOptions struct {
	UserAgent string
	// CacheDir can be empty to disable caching.
	CacheDir string
	// AcceptLanguage is sent with every request when set.
	AcceptLanguage string
}

func NewColly(opts CollyOptions, log *logrus.Entry) *Colly {
	options := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	}
	if opts.UserAgent != "" {
		options = append(options, colly.UserAgent(opts.UserAgent))
	}
	if opts.CacheDir != "" {
		options = append(options, colly.CacheDir(opts.CacheDir))
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	f := &Colly{
		colly: colly.NewCollector(options...),
		log:   log,
		mutex: &sync.Mutex{},
	}

	// cookies are not needed to read catalogue pages and make cached responses vary
	f.colly.DisableCookies()

	f.colly.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		if opts.AcceptLanguage != "" {
			r.Headers.Set("Accept-Language", opts.AcceptLanguage)
		}
		f.log.WithField("url", r.URL.String()).Debug("Visiting")
	})

	f.colly.OnResponse(func(r *colly.Response) {
		r.Ctx.Put(ctxBody, r.Body)
		r.Ctx.Put(ctxStatus, r.StatusCode)
		r.Ctx.Put(ctxURL, r.Request.URL.String())
	})

	f.colly.OnError(func(r *colly.Response, err error) {
		if r != nil && r.Ctx != nil {
			r.Ctx.Put(ctxStatus, r.StatusCode)
		}
	})

	return f
}

func (f *Colly) Get(ctx context.Context, url string, timeout time.Duration) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	if timeout > 0 {
		f.colly.SetRequestTimeout(timeout)
	}

	reqCtx := colly.NewContext()
	err := f.colly.Request(http.MethodGet, url, nil, reqCtx, nil)

	status, _ := reqCtx.GetAny(ctxStatus).(int)
	if err != nil {
		if status != 0 && (status < 200 || status > 299) {
			return nil, &StatusError{URL: url, Code: status}
		}
		return nil, fmt.Errorf("get %s: %w", url, err)
	}

	body, _ := reqCtx.GetAny(ctxBody).([]byte)
	finalURL, _ := reqCtx.GetAny(ctxURL).(string)
	if finalURL == "" {
		finalURL = url
	}
	if status < 200 || status > 299 {
		return nil, &StatusError{URL: url, Code: status}
	}

	return &Page{URL: finalURL, StatusCode: status, Body: body}, nil
}
