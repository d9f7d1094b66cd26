package types

import (
	"strconv"
	"time"
)

// Kind tags the variant held by a Value.
type Kind uint8

// Value kinds.
const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindText
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// TimestampLayout is the textual form used for time values read from a
// data source.
const TimestampLayout = "2006-01-02 15:04:05"

// Value is a single scalar cell. Numbers keep their textual form so that
// values are written exactly as the source produced them.
type Value struct {
	kind Kind
	b    bool
	s    string
}

// Null returns the absent value.
func Null() Value { return Value{kind: KindNull} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number returns a numeric value from its textual form.
func Number(text string) Value { return Value{kind: KindNumber, s: text} }

// Text returns a text value.
func Text(s string) Value { return Value{kind: KindText, s: s} }

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is the absent value.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean payload; false for non-bool values.
func (v Value) Bool() bool { return v.kind == KindBool && v.b }

// String returns the textual payload. Bool values render as "true" or
// "false" and null as the empty string.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber, KindText:
		return v.s
	default:
		return ""
	}
}

// FromAny converts a value scanned from database/sql into a Value.
// Shapes that are not scalar become empty text.
func FromAny(x any) Value {
	switch t := x.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case int64:
		return Number(strconv.FormatInt(t, 10))
	case int:
		return Number(strconv.Itoa(t))
	case int32:
		return Number(strconv.FormatInt(int64(t), 10))
	case uint64:
		return Number(strconv.FormatUint(t, 10))
	case float64:
		return Number(strconv.FormatFloat(t, 'f', -1, 64))
	case float32:
		return Number(strconv.FormatFloat(float64(t), 'f', -1, 32))
	case []byte:
		return Text(string(t))
	case string:
		return Text(t)
	case time.Time:
		return Text(t.Format(TimestampLayout))
	default:
		return Text("")
	}
}

// Row is an ordered sequence of values, aligned with the column order of
// the source for the lifetime of one export.
type Row []Value

// Record is one header-keyed row of a tabular input file.
type Record struct {
	// Columns holds the header names in file order.
	Columns []string
	// Values maps each header name to the raw cell text.
	Values map[string]string
}

// Get returns the raw text for column, or "" when absent.
func (r Record) Get(column string) string {
	return r.Values[column]
}
