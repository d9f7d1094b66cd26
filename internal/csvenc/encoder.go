// Package csvenc encodes rows of scalar values into delimited text lines.
//
// The grammar is RFC 4180-like with two differences from encoding/csv:
// every value that is not purely numeric is enclosed, and a "." delimiter
// forces enclosure of numeric values too, since "." is also the decimal
// separator.
package csvenc

import (
	"regexp"
	"strings"

	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

// Options configures the delimited-text grammar.
type Options struct {
	// Delimiter separates fields. Default ",".
	Delimiter string
	// Enclosure wraps quoted fields. Default `"`.
	Enclosure string
	// Null is written for absent values. Default "".
	Null string
}

// withDefaults fills unset delimiter and enclosure.
func (o Options) withDefaults() Options {
	if o.Delimiter == "" {
		o.Delimiter = types.DefaultDelimiter
	}
	if o.Enclosure == "" {
		o.Enclosure = types.DefaultEnclosure
	}
	return o
}

// Tokens written for boolean values.
const (
	TokenTrue  = "TRUE"
	TokenFalse = "FALSE"
)

// LineTerminator ends every encoded line.
const LineTerminator = "\r\n"

// trimCutset matches the whitespace set stripped from field text.
const trimCutset = " \t\n\r\x00\x0B"

var numericPattern = regexp.MustCompile(`^[ \t\n\r\v\f]*[+-]?([0-9]+(\.[0-9]*)?|\.[0-9]+)([eE][+-]?[0-9]+)?[ \t\n\r\v\f]*$`)

// IsNumeric reports whether s is purely numeric: optional surrounding
// whitespace, an optional sign, decimal digits with an optional fraction,
// and an optional exponent.
func IsNumeric(s string) bool {
	return numericPattern.MatchString(s)
}

// EncodeField renders a single value as a field of the delimited grammar.
// Booleans and nulls are first replaced by their tokens and then follow
// the same enclosure rule as any other text. It is total: every Value
// produces a field.
func EncodeField(v types.Value, opts Options) string {
	opts = opts.withDefaults()

	var s string
	switch v.Kind() {
	case types.KindBool:
		s = TokenFalse
		if v.Bool() {
			s = TokenTrue
		}
	case types.KindNull:
		s = opts.Null
	default:
		s = v.String()
	}

	if !IsNumeric(s) || opts.Delimiter == "." || strings.Contains(s, opts.Delimiter) {
		return enclose(s, opts)
	}
	return strings.Trim(s, trimCutset)
}

func enclose(s string, opts Options) string {
	s = strings.Trim(s, trimCutset)
	s = strings.ReplaceAll(s, opts.Enclosure, opts.Enclosure+opts.Enclosure)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return opts.Enclosure + s + opts.Enclosure
}

// EncodeRow renders a whole row, including the line terminator.
func EncodeRow(row types.Row, opts Options) string {
	opts = opts.withDefaults()

	var b strings.Builder
	for i, v := range row {
		if i > 0 {
			b.WriteString(opts.Delimiter)
		}
		b.WriteString(EncodeField(v, opts))
	}
	b.WriteString(LineTerminator)
	return b.String()
}
