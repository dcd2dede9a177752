package fetch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultRetryStatuses are the status codes worth another attempt.
var DefaultRetryStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

type RetryOptions struct {
	MaxAttempts int
	// Backoff is the wait before the second attempt; it doubles every attempt.
	Backoff  time.Duration
	Statuses []int
	// RequestsPerSecond caps all attempts, retries included. Zero disables it.
	RequestsPerSecond float64
}

// Retry wraps a Fetcher with status-based retries and exponential backoff.
type Retry struct {
	next     Fetcher
	opts     RetryOptions
	statuses map[int]bool
	limiter  *rate.Limiter
	log      *logrus.Entry

	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetry(next Fetcher, opts RetryOptions, log *logrus.Entry) *Retry {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Statuses == nil {
		opts.Statuses = DefaultRetryStatuses
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	statuses := make(map[int]bool, len(opts.Statuses))
	for _, s := range opts.Statuses {
		statuses[s] = true
	}

	r := &Retry{
		next:     next,
		opts:     opts,
		statuses: statuses,
		log:      log,
		sleep:    sleepContext,
	}
	if opts.RequestsPerSecond > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return r
}

func (r *Retry) Get(ctx context.Context, url string, timeout time.Duration) (*Page, error) {
	var lastErr error
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter: %w", err)
			}
		}

		page, err := r.next.Get(ctx, url, timeout)
		if err == nil {
			return page, nil
		}
		lastErr = err

		if !r.retryable(ctx, err) || attempt == r.opts.MaxAttempts {
			break
		}

		wait := backoff(r.opts.Backoff, attempt)
		r.log.WithFields(logrus.Fields{
			"url":     url,
			"attempt": attempt,
			"status":  StatusCode(err),
			"wait":    wait,
		}).WithError(err).Warn("request failed, retrying")

		if err := r.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	if StatusCode(lastErr) != 0 && r.statuses[StatusCode(lastErr)] && r.opts.MaxAttempts > 1 {
		return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.opts.MaxAttempts, lastErr)
	}
	return nil, lastErr
}

// retryable reports whether err is a retryable status. Transport errors are
// retried too unless the run itself was cancelled.
func (r *Retry) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return false
	}
	if code := StatusCode(err); code != 0 {
		return r.statuses[code]
	}
	return true
}

func backoff(base time.Duration, attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt-1))) * base
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
