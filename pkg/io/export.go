// Package io writes finished runs to disk and reads the JSON tree back for the
// web report.
package io

import (
	"context"
	"errors"
	"time"

	"github.com/geniass/shelf-dealz/pkg/product"
)

// Export is one finished run as handed to the sinks.
type Export struct {
	RunID       string
	Site        string
	StartedAt   time.Time
	FinishedAt  time.Time
	Records     []product.Record
	Discards    []product.Discard
	Interrupted bool
}

type Sink interface {
	Export(ctx context.Context, e Export) error
}

// Multi runs every sink even when an earlier one fails and joins the errors.
type Multi []Sink

func (m Multi) Export(ctx context.Context, e Export) error {
	var errs []error
	for _, s := range m {
		if err := s.Export(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
