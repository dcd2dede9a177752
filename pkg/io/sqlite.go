package io

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/geniass/shelf-dealz/pkg/product"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id      TEXT PRIMARY KEY,
	site        TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	records     INTEGER NOT NULL,
	discards    INTEGER NOT NULL,
	interrupted INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS products (
	run_id          TEXT NOT NULL REFERENCES runs(run_id),
	hash_id         TEXT NOT NULL,
	name            TEXT NOT NULL,
	price_online    TEXT NOT NULL,
	price_regular   TEXT NOT NULL,
	brand           TEXT NOT NULL,
	category        TEXT NOT NULL,
	subcategory     TEXT NOT NULL,
	sku             TEXT NOT NULL,
	discount_pct    TEXT NOT NULL,
	presentation    TEXT NOT NULL,
	url             TEXT NOT NULL,
	extraction_date TEXT NOT NULL,
	images_count    INTEGER NOT NULL,
	availability    TEXT NOT NULL,
	PRIMARY KEY (run_id, hash_id)
);

CREATE TABLE IF NOT EXISTS discards (
	run_id TEXT NOT NULL REFERENCES runs(run_id),
	url    TEXT NOT NULL,
	reason TEXT NOT NULL,
	detail TEXT NOT NULL
);
`

// SQLiteSink appends every run to a SQLite database so runs can be compared
// over time.
type SQLiteSink struct {
	Path string
}

func OpenSQLite(path string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), os.ModeDir|0755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

func (s SQLiteSink) Export(ctx context.Context, e Export) error {
	db, err := OpenSQLite(s.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	run := sq.Insert("runs").
		Columns("run_id", "site", "started_at", "finished_at", "records", "discards", "interrupted").
		Values(e.RunID, e.Site, e.StartedAt.UTC().Format(timeLayout), e.FinishedAt.UTC().Format(timeLayout),
			len(e.Records), len(e.Discards), boolInt(e.Interrupted))
	if err := exec(ctx, tx, run); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, r := range e.Records {
		if err := exec(ctx, tx, insertRecord(e.RunID, r)); err != nil {
			return fmt.Errorf("insert product %s: %w", r.URL, err)
		}
	}

	for _, d := range e.Discards {
		q := sq.Insert("discards").
			Columns("run_id", "url", "reason", "detail").
			Values(e.RunID, d.URL, d.Reason, d.Detail)
		if err := exec(ctx, tx, q); err != nil {
			return fmt.Errorf("insert discard %s: %w", d.URL, err)
		}
	}

	return tx.Commit()
}

const timeLayout = "2006-01-02T15:04:05Z"

func insertRecord(runID string, r product.Record) sq.InsertBuilder {
	return sq.Insert("products").
		Columns(append([]string{"run_id"}, product.Columns...)...).
		Values(
			runID,
			r.Name,
			r.OnlinePrice.StringFixed(2),
			r.RegularPrice.StringFixed(2),
			r.Brand,
			r.Category,
			r.Subcategory,
			r.SKU,
			r.DiscountPct.StringFixed(2),
			r.Presentation,
			r.URL,
			r.ExtractedOn.Format(product.DateLayout),
			r.Hash,
			r.ImageCount,
			string(r.Availability),
		)
}

func exec(ctx context.Context, tx *sql.Tx, b sq.InsertBuilder) error {
	query, args, err := b.ToSql()
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query, args...)
	return err
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
