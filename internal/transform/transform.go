// Package transform coerces header-keyed rows of text into JSON documents
// for bulk indexing. Each column is coerced by its classification and two
// derived fields are appended to every document.
package transform

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

// Columns with special handling.
const (
	ColumnSprint         = "Sprint"
	ColumnCreated        = "Created"
	ColumnResolutionDate = "Resolution Date"
	ColumnTimeSpent      = "Time Spent"
)

// Derived field names.
const (
	FieldResolutionTime = "Resolution Time"
	FieldTimeSpentHours = "Time Spent (hrs)"
)

// JSON tokens.
const (
	tokenNull        = "null"
	tokenEmptyString = `""`
)


// Config configures a Transformer.
type Config struct {
	// Index names the target index in every action line.
	Index string
	// Classification drives per-column coercion.
	Classification types.Classification
	// Location is used to interpret date text. Default UTC.
	Location *time.Location
	// DateLayouts are tried in order when parsing dates.
	// Default types.DefaultDateLayouts.
	DateLayouts []string
}

// Field is one key and its encoded JSON value token.
type Field struct {
	Key   string
	Value string
}

// Document is an ordered list of fields: source columns in header order
// followed by the derived fields.
type Document []Field

// Get returns the JSON token for key.
func (d Document) Get(key string) (string, bool) {
	for _, f := range d {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// Transformer converts records into documents. It holds no per-row state.
type Transformer struct {
	cfg Config
}

// New validates cfg and creates a Transformer.
func New(cfg Config) (*Transformer, error) {
	if cfg.Index == "" {
		return nil, types.ErrIndexEmpty
	}
	if cfg.Classification == nil {
		cfg.Classification = types.Classification{}
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if len(cfg.DateLayouts) == 0 {
		cfg.DateLayouts = types.DefaultDateLayouts
	}
	return &Transformer{cfg: cfg}, nil
}

// Index returns the configured index.
func (t *Transformer) Index() string { return t.cfg.Index }

// Classification returns the column classification in use.
func (t *Transformer) Classification() types.Classification { return t.cfg.Classification }

// Transform coerces every column of rec and appends the derived fields.
// A malformed date or time value fails the whole row.
func (t *Transformer) Transform(rec types.Record) (Document, error) {
	doc := make(Document, 0, len(rec.Columns)+2)
	for _, col := range rec.Columns {
		v := rec.Get(col)
		if col == ColumnSprint {
			v = lastSprint(v)
		}
		doc = append(doc, Field{Key: col, Value: t.coerce(col, v)})
	}

	resolution, err := t.resolutionTime(rec)
	if err != nil {
		return nil, err
	}
	doc = append(doc, Field{Key: FieldResolutionTime, Value: resolution})

	spent, err := t.timeSpentHours(rec)
	if err != nil {
		return nil, err
	}
	doc = append(doc, Field{Key: FieldTimeSpentHours, Value: spent})

	return doc, nil
}

// coerce renders v as a JSON token according to the class of col.
func (t *Transformer) coerce(col, v string) string {
	switch t.cfg.Classification.Of(col) {
	case types.ClassDate:
		if v == "" {
			return tokenNull
		}
		return quote(stripLineBreaks(v))
	case types.ClassNumeric:
		if v == "" {
			return tokenNull
		}
		n := stripQuotes(v)
		if n == "" {
			return tokenNull
		}
		// The number is not validated.
		return n
	default:
		if v == "" {
			return tokenEmptyString
		}
		return quote(stripLineBreaks(v))
	}
}

// lastSprint keeps only the last entry of a comma-separated sprint list.
func lastSprint(v string) string {
	if i := strings.LastIndexByte(v, ','); i >= 0 {
		return v[i+1:]
	}
	return v
}

func stripLineBreaks(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

func stripQuotes(s string) string {
	return strings.NewReplacer(`"`, "", "'", "").Replace(s)
}

// quote encodes s as a JSON string without HTML escaping.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	// Encoding a string cannot fail.
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}

// ActionLine returns the bulk-index action line for docType, without the
// trailing newline.
func ActionLine(index, docType string) string {
	return `{"create":{"_index":` + quote(index) + `,"_type":` + quote(docType) + `}}`
}

// Frame renders doc as the two-line bulk record: the action line and the
// document object, each terminated by a newline.
func (t *Transformer) Frame(docType string, doc Document) []byte {
	var b bytes.Buffer
	b.WriteString(ActionLine(t.cfg.Index, docType))
	b.WriteString("\n{")
	for i, f := range doc {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quote(f.Key))
		b.WriteByte(':')
		b.WriteString(f.Value)
	}
	b.WriteString("}\n")
	return b.Bytes()
}
