// Package ledger accumulates the outcome of a run: accepted product records,
// unique by identity hash, and the audit trail of discarded URLs.
package ledger

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/geniass/shelf-dealz/pkg/product"
)

// Ledger is the run accumulator. It is owned by a single pipeline goroutine
// and is not safe for concurrent use.
type Ledger struct {
	log *logrus.Entry

	records    []product.Record
	discards   []product.Discard
	seen       map[string]struct{}
	duplicates int
}

func New(log *logrus.Entry) *Ledger {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Ledger{
		log:  log,
		seen: make(map[string]struct{}),
	}
}

// Accept appends rec unless it has no name or its hash was already accepted.
// Duplicates are not discards; they are only counted.
func (l *Ledger) Accept(rec product.Record) bool {
	if strings.TrimSpace(rec.Name) == "" {
		l.log.WithField("url", rec.URL).Warn("refusing record without a name")
		return false
	}
	if _, ok := l.seen[rec.Hash]; ok {
		l.duplicates++
		l.log.WithFields(logrus.Fields{"url": rec.URL, "hash": rec.Hash}).Debug("duplicate record dropped")
		return false
	}
	l.seen[rec.Hash] = struct{}{}
	l.records = append(l.records, rec)
	return true
}

func (l *Ledger) Reject(url, reason, detail string) {
	l.discards = append(l.discards, product.Discard{URL: url, Reason: reason, Detail: detail})
	l.log.WithFields(logrus.Fields{"url": url, "reason": reason}).Debug("discarded")
}

func (l *Ledger) Len() int {
	return len(l.records)
}

func (l *Ledger) Duplicates() int {
	return l.duplicates
}

func (l *Ledger) Discards() int {
	return len(l.discards)
}

// Finalize returns copies of both collections. Fewer than minRows records is
// reported as a warning only.
func (l *Ledger) Finalize(minRows int) ([]product.Record, []product.Discard) {
	if len(l.records) < minRows {
		l.log.WithFields(logrus.Fields{"records": len(l.records), "min_rows": minRows}).
			Warn("run produced fewer records than expected")
	}

	records := make([]product.Record, len(l.records))
	copy(records, l.records)
	discards := make([]product.Discard, len(l.discards))
	copy(discards, l.discards)
	return records, discards
}
