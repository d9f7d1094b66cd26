package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/bulkdump/internal/csvenc"
	"github.com/mesh-intelligence/bulkdump/internal/logging"
	"github.com/mesh-intelligence/bulkdump/internal/metrics"
	"github.com/mesh-intelligence/bulkdump/internal/source"
	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

// Options configures a Pipeline.
type Options struct {
	PageSize int64
	Pace     time.Duration
	CSV      csvenc.Options
}

// OptionsFromConfig maps the export section of the configuration.
func OptionsFromConfig(cfg types.ExportConfig) Options {
	return Options{
		PageSize: cfg.PageSize,
		Pace:     cfg.Pace,
		CSV: csvenc.Options{
			Delimiter: cfg.Delimiter,
			Enclosure: cfg.Enclosure,
			Null:      cfg.Null,
		},
	}
}

// Result summarizes one export.
type Result struct {
	Table    string
	Path     string
	Rows     int64
	Pages    int
	Bytes    int64
	Duration time.Duration
}

// Pipeline drives a Reader into a csvenc.Writer over an append-mode file.
type Pipeline struct {
	src     source.Source
	opts    Options
	log     logrus.FieldLogger
	metrics *metrics.Collector
}

// NewPipeline creates a Pipeline reading from src. logger and m may be nil.
func NewPipeline(src source.Source, opts Options, logger logrus.FieldLogger, m *metrics.Collector) *Pipeline {
	return &Pipeline{
		src:     src,
		opts:    opts,
		log:     logging.OrDiscard(logger),
		metrics: m,
	}
}

// Export appends every row of table to the file at path, one encoded line
// per row. The file is never truncated, so repeated exports accumulate
// copies. An empty table returns types.ErrEmptyTable before the file is
// opened. The file is closed on every return path.
func (p *Pipeline) Export(ctx context.Context, table, path string) (res Result, err error) {
	start := time.Now()
	res = Result{Table: table, Path: path}
	log := p.log.WithFields(logrus.Fields{"table": table, "path": path})

	defer func() {
		res.Duration = time.Since(start)
		outcome := metrics.OutcomeSuccess
		switch {
		case errors.Is(err, types.ErrEmptyTable):
			outcome = metrics.OutcomeEmpty
		case err != nil:
			outcome = metrics.OutcomeError
		}
		p.metrics.RecordExport(table, outcome, res.Duration)
	}()

	if table == "" {
		return res, types.ErrInvalidTable
	}
	if path == "" {
		return res, fmt.Errorf("%w: empty path", types.ErrOutputUnavailable)
	}

	r := NewReader(p.src, table, ReaderOptions{
		PageSize: p.opts.PageSize,
		Pace:     p.opts.Pace,
		Logger:   log,
		Metrics:  p.metrics,
	})

	total, err := r.Count(ctx)
	if err != nil {
		return res, err
	}
	log.WithField("count", total).Info("export started")

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return res, fmt.Errorf("%w: %s: %w", types.ErrOutputUnavailable, path, err)
	}

	buf := bufio.NewWriter(f)
	defer func() {
		if ferr := buf.Flush(); ferr != nil && err == nil {
			err = fmt.Errorf("flush %s: %w", path, ferr)
		}
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	w := csvenc.NewWriter(buf, p.opts.CSV)
	defer func() {
		res.Rows = w.Count()
		res.Bytes = w.Bytes()
		res.Pages = r.Pages()
	}()

	for row, rerr := range r.Rows(ctx) {
		if rerr != nil {
			return res, rerr
		}
		if _, err := w.WriteRow(row); err != nil {
			return res, err
		}
	}

	log.WithFields(logrus.Fields{
		"rows":  w.Count(),
		"pages": r.Pages(),
	}).Info("export finished")
	return res, nil
}
