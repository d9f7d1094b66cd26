package types

import (
	"errors"
	"fmt"
)

// Configuration errors. These are fatal and reported once.
var (
	ErrSourceURI           = errors.New("malformed data source URI")
	ErrUnsupportedProtocol = errors.New("unexpected protocol")
	ErrInvalidTable        = errors.New("table name must not be empty")
	ErrInvalidPageSize     = errors.New("page size must be positive")
	ErrInvalidPace         = errors.New("pace must not be negative")
	ErrInvalidDelimiter    = errors.New("delimiter must be a single character")
	ErrInvalidEnclosure    = errors.New("enclosure must be a single character")
	ErrIndexEmpty          = errors.New("index must not be empty")
	ErrInvalidTimezone     = errors.New("unknown timezone")
	ErrInvalidColumn       = errors.New("column name must not be empty")
	ErrConflictingClass    = errors.New("column classified as both date and numeric")
	ErrOutputUnavailable   = errors.New("could not open output for writing")
)

// ErrEmptyTable is the terminal but expected outcome of exporting a table
// with no rows. Callers should report it without treating it as a failure
// to reach the source.
var ErrEmptyTable = errors.New("no rows in table")

// Row and file level errors raised while transforming tabular input.
var (
	ErrMalformedDate   = errors.New("malformed date")
	ErrMalformedNumber = errors.New("malformed number")
	ErrInvalidHeader   = errors.New("invalid header")
)

// RowError locates a row-level failure within an input file.
type RowError struct {
	File   string
	Line   int
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("%s:%d: column %q: %v", e.File, e.Line, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }
