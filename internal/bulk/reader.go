package bulk

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

const utf8BOM = "\ufeff"

// recordReader reads header-keyed records from delimited text. The first
// line is the header.
type recordReader struct {
	csv     *csv.Reader
	file    string
	columns []string
	// index maps each unique column to the cell positions holding it.
	index map[string][]int
}

func newRecordReader(r io.Reader, file string, log logrus.FieldLogger) (*recordReader, error) {
	br := bufio.NewReader(r)
	if b, err := br.Peek(len(utf8BOM)); err == nil && string(b) == utf8BOM {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &types.RowError{File: file, Line: 1, Err: fmt.Errorf("%w: missing header", types.ErrInvalidHeader)}
	}
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", file, err)
	}

	rr := &recordReader{
		csv:   cr,
		file:  file,
		index: make(map[string][]int, len(header)),
	}
	for i, name := range header {
		if name == "" {
			return nil, &types.RowError{
				File: file,
				Line: 1,
				Err:  fmt.Errorf("%w: empty column name at position %d", types.ErrInvalidHeader, i+1),
			}
		}
		if _, seen := rr.index[name]; !seen {
			rr.columns = append(rr.columns, name)
		} else {
			log.WithField("column", name).Warn("duplicate header column, last non-empty value wins")
		}
		rr.index[name] = append(rr.index[name], i)
	}
	return rr, nil
}

// Columns returns the unique header names in file order.
func (rr *recordReader) Columns() []string { return rr.columns }

// Next returns the next record and its line number, or io.EOF.
func (rr *recordReader) Next() (types.Record, int, error) {
	cells, err := rr.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return types.Record{}, 0, io.EOF
		}
		return types.Record{}, 0, fmt.Errorf("read %s: %w", rr.file, err)
	}
	line, _ := rr.csv.FieldPos(0)

	rec := types.Record{
		Columns: rr.columns,
		Values:  make(map[string]string, len(rr.columns)),
	}
	for _, name := range rr.columns {
		var v string
		for _, pos := range rr.index[name] {
			if pos < len(cells) && cells[pos] != "" {
				v = cells[pos]
			}
		}
		rec.Values[name] = v
	}
	return rec, line, nil
}
