// Package bulk converts delimited export files into bulk-index JSON files,
// one output file per input file.
package bulk

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/bulkdump/internal/logging"
	"github.com/mesh-intelligence/bulkdump/internal/metrics"
	"github.com/mesh-intelligence/bulkdump/internal/transform"
	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

// Options configures a Pipeline.
type Options struct {
	// Dir is searched for input files. Default ".".
	Dir string
	// Glob selects input files within Dir. Default "*.csv".
	Glob string
	// Status receives one human-readable line per file event. Optional.
	Status io.Writer
}

// FileResult reports the conversion of one input file.
type FileResult struct {
	Input     string
	Output    string
	Type      string
	Documents int64
	Err       error
}

// Summary reports a whole run.
type Summary struct {
	Files    []FileResult
	Failures int
}

// Documents returns the total documents written across all files.
func (s Summary) Documents() int64 {
	var n int64
	for _, f := range s.Files {
		n += f.Documents
	}
	return n
}

// Pipeline drives input files through a transform.Transformer.
type Pipeline struct {
	tr      *transform.Transformer
	opts    Options
	log     logrus.FieldLogger
	metrics *metrics.Collector
}

// NewPipeline creates a Pipeline. logger and m may be nil.
func NewPipeline(tr *transform.Transformer, opts Options, logger logrus.FieldLogger, m *metrics.Collector) *Pipeline {
	if opts.Dir == "" {
		opts.Dir = "."
	}
	if opts.Glob == "" {
		opts.Glob = types.DefaultGlob
	}
	if opts.Status == nil {
		opts.Status = io.Discard
	}
	return &Pipeline{
		tr:      tr,
		opts:    opts,
		log:     logging.OrDiscard(logger),
		metrics: m,
	}
}

// Inputs lists the files matching the configured glob, sorted by name.
func (p *Pipeline) Inputs() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(p.opts.Dir, p.opts.Glob))
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", p.opts.Glob, err)
	}
	return matches, nil
}

// Run converts every matching input file. A failure in one file is
// recorded and logged, and the remaining files are still processed. The
// returned error joins all file failures.
func (p *Pipeline) Run(ctx context.Context) (Summary, error) {
	var sum Summary

	inputs, err := p.Inputs()
	if err != nil {
		return sum, err
	}
	if len(inputs) == 0 {
		p.log.WithFields(logrus.Fields{"dir": p.opts.Dir, "glob": p.opts.Glob}).Warn("no input files matched")
	}

	var errs []error
	for _, input := range inputs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		res, err := p.ConvertFile(ctx, input)
		sum.Files = append(sum.Files, res)
		if err != nil {
			sum.Failures++
			errs = append(errs, err)
			p.metrics.RecordFile(metrics.OutcomeError)
			p.log.WithError(err).WithField("file", input).Error("conversion failed")
			continue
		}
		p.metrics.RecordFile(metrics.OutcomeSuccess)
	}
	return sum, errors.Join(errs...)
}

// DocType derives the document type from an input path: its base name
// without extension.
func DocType(input string) string {
	base := filepath.Base(input)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputPath returns the JSON output path for input, next to it.
func OutputPath(input string) string {
	return filepath.Join(filepath.Dir(input), DocType(input)+".json")
}

// ConvertFile converts one input file. Output is written to a temporary
// file and renamed into place only when every row converted, so a failed
// conversion leaves any previous output untouched.
func (p *Pipeline) ConvertFile(ctx context.Context, input string) (FileResult, error) {
	res := FileResult{
		Input:  input,
		Output: OutputPath(input),
		Type:   DocType(input),
	}
	log := p.log.WithFields(logrus.Fields{"file": input, "type": res.Type})
	fmt.Fprintf(p.opts.Status, "Parsing %s\n", input)

	in, err := os.Open(input)
	if err != nil {
		res.Err = fmt.Errorf("open %s: %w", input, err)
		return res, res.Err
	}
	defer in.Close()

	n, err := writeAtomic(res.Output, func(w io.Writer) (int64, error) {
		return p.convert(ctx, input, res.Type, in, w, log)
	})
	res.Documents = n
	if err != nil {
		res.Err = err
		return res, err
	}

	log.WithField("documents", n).Info("conversion finished")
	fmt.Fprintf(p.opts.Status, "Finished writing to %s\n", filepath.Base(res.Output))
	return res, nil
}

// convert streams records from r through the transformer into w.
func (p *Pipeline) convert(ctx context.Context, input, docType string, r io.Reader, w io.Writer, log logrus.FieldLogger) (int64, error) {
	rr, err := newRecordReader(r, input, log)
	if err != nil {
		return 0, err
	}
	if missing := p.tr.Classification().Missing(rr.Columns()); len(missing) > 0 {
		log.WithField("columns", missing).Warn("classified columns not present in header")
	}

	var n int64
	for {
		if n%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return n, err
			}
		}

		rec, line, err := rr.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}

		doc, err := p.tr.Transform(rec)
		if err != nil {
			return n, locate(err, input, line)
		}
		if _, err := w.Write(p.tr.Frame(docType, doc)); err != nil {
			return n, fmt.Errorf("write %s document: %w", docType, err)
		}
		n++
		p.metrics.RecordDocument(docType)
	}
}

// locate fills in the file and line of a row error.
func locate(err error, file string, line int) error {
	var rowErr *types.RowError
	if errors.As(err, &rowErr) {
		located := *rowErr
		located.File = file
		located.Line = line
		return &located
	}
	return &types.RowError{File: file, Line: line, Err: err}
}
