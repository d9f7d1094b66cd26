// Package export dumps a table to delimited text in bounded memory by
// paging through it with LIMIT/OFFSET queries.
//
// The row count is read once when the export starts. Rows inserted or
// deleted while the export runs are not reflected in that count, so the
// output is not a consistent snapshot of a table under concurrent writes.
package export

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/bulkdump/internal/logging"
	"github.com/mesh-intelligence/bulkdump/internal/metrics"
	"github.com/mesh-intelligence/bulkdump/internal/source"
	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	// PageSize bounds the rows held in memory at once. Default 1000.
	PageSize int64
	// Pace is the wait between page queries. Zero disables pacing.
	Pace time.Duration
	// Logger receives per-page debug entries. Optional.
	Logger logrus.FieldLogger
	// Metrics records page counts. Optional.
	Metrics *metrics.Collector
}

// Reader pages through one table of a Source.
type Reader struct {
	src     source.Source
	table   string
	opts    ReaderOptions
	log     logrus.FieldLogger
	wait    func(ctx context.Context, d time.Duration) error
	total   int64
	counted bool
	pages   int
}

// NewReader creates a Reader over table.
func NewReader(src source.Source, table string, opts ReaderOptions) *Reader {
	if opts.PageSize <= 0 {
		opts.PageSize = types.DefaultPageSize
	}
	if opts.Pace < 0 {
		opts.Pace = 0
	}
	return &Reader{
		src:   src,
		table: table,
		opts:  opts,
		log:   logging.OrDiscard(opts.Logger).WithField("table", table),
		wait:  sleep,
	}
}

// Count returns the row count snapshot, querying the source on first use
// only. A table with no rows returns types.ErrEmptyTable.
func (r *Reader) Count(ctx context.Context) (int64, error) {
	if r.counted {
		return r.total, nil
	}
	if r.table == "" {
		return 0, types.ErrInvalidTable
	}

	n, err := r.src.Count(ctx, r.table)
	if err != nil {
		return 0, err
	}
	r.total = n
	r.counted = true

	if n <= 0 {
		return 0, fmt.Errorf("%w: %s", types.ErrEmptyTable, r.table)
	}
	return n, nil
}

// Pages returns the number of page queries issued so far.
func (r *Reader) Pages() int { return r.pages }

// Rows yields every row of the table, one page at a time. The cursor
// advances by exactly the page size after each page and iteration ends
// once it reaches the count snapshot, or early if a page comes back
// empty. Errors end the sequence.
func (r *Reader) Rows(ctx context.Context) iter.Seq2[types.Row, error] {
	return func(yield func(types.Row, error) bool) {
		total, err := r.Count(ctx)
		if err != nil {
			yield(nil, err)
			return
		}

		for offset := int64(0); offset < total; offset += r.opts.PageSize {
			if offset > 0 {
				if err := r.wait(ctx, r.opts.Pace); err != nil {
					yield(nil, err)
					return
				}
			}

			page, err := r.src.Page(ctx, r.table, r.opts.PageSize, offset)
			if err != nil {
				yield(nil, err)
				return
			}
			r.pages++
			r.opts.Metrics.RecordPage(r.table, len(page))
			r.log.WithFields(logrus.Fields{
				"page":   r.pages,
				"offset": offset,
				"rows":   len(page),
			}).Debug("page fetched")

			if len(page) == 0 {
				r.log.WithField("offset", offset).Warn("page returned no rows, stopping early")
				return
			}
			for _, row := range page {
				if !yield(row, nil) {
					return
				}
			}
		}
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
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
