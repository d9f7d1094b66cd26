package csvenc

import (
	"fmt"
	"io"

	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

// Writer appends encoded rows to an output sink, one line per row.
// Lines are written straight through without buffering so that every
// completed row is on the sink when WriteRow returns.
type Writer struct {
	output io.Writer
	opts   Options
	count  int64
	bytes  int64
}

// NewWriter creates a Writer for w using opts.
func NewWriter(w io.Writer, opts Options) *Writer {
	return &Writer{
		output: w,
		opts:   opts.withDefaults(),
	}
}

// WriteRow encodes row and writes it as one line. It returns the number
// of bytes written.
func (w *Writer) WriteRow(row types.Row) (int, error) {
	line := EncodeRow(row, w.opts)
	n, err := io.WriteString(w.output, line)
	w.bytes += int64(n)
	if err != nil {
		return n, fmt.Errorf("write row: %w", err)
	}
	w.count++
	return n, nil
}

// Count returns the number of rows written.
func (w *Writer) Count() int64 { return w.count }

// Bytes returns the number of bytes written.
func (w *Writer) Bytes() int64 { return w.bytes }
