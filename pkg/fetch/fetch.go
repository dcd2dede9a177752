// Package fetch provides the page fetchers used by the pipeline: a plain HTTP
// fetcher backed by colly, a rendered-browser fetcher backed by rod, and a
// retrying decorator that works with either.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// Page is a fetched document.
type Page struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Fetcher returns the final HTML body for url. A non-2xx response is
// reported as a *StatusError.
type Fetcher interface {
	Get(ctx context.Context, url string, timeout time.Duration) (*Page, error)
}

type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// StatusCode extracts the HTTP status from err, or 0 if err carries none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
