package types

import (
	"fmt"
	"sort"
)

// ColumnClass is the per-column type hint that drives JSON coercion.
type ColumnClass uint8

// Column classes. The zero value is the generic text handling applied to
// unclassified columns.
const (
	ClassDefault ColumnClass = iota
	ClassDate
	ClassNumeric
)

func (c ColumnClass) String() string {
	switch c {
	case ClassDate:
		return "date"
	case ClassNumeric:
		return "numeric"
	default:
		return "default"
	}
}

// Classification maps column names to their class. It is fixed for the
// duration of a transform run.
type Classification map[string]ColumnClass

// NewClassification builds a Classification from lists of date and numeric
// column names and validates it.
func NewClassification(dates, numerics []string) (Classification, error) {
	c := make(Classification, len(dates)+len(numerics))
	for _, name := range dates {
		if name == "" {
			return nil, ErrInvalidColumn
		}
		c[name] = ClassDate
	}
	for _, name := range numerics {
		if name == "" {
			return nil, ErrInvalidColumn
		}
		if c[name] == ClassDate {
			return nil, fmt.Errorf("%w: %q", ErrConflictingClass, name)
		}
		c[name] = ClassNumeric
	}
	return c, nil
}

// Of returns the class for column; unclassified columns are ClassDefault.
func (c Classification) Of(column string) ColumnClass {
	return c[column]
}

// Missing returns the classified columns that do not appear in header,
// sorted by name.
func (c Classification) Missing(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for name := range c {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
