package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

const day = 24 * time.Hour

// resolutionTime returns the whole days between Created and Resolution
// Date, or null when either is empty. The difference is the absolute
// floor of elapsed wall-clock days, so daylight saving transitions do not
// shift it.
func (t *Transformer) resolutionTime(rec types.Record) (string, error) {
	created := rec.Get(ColumnCreated)
	resolved := rec.Get(ColumnResolutionDate)
	if created == "" || resolved == "" {
		return tokenNull, nil
	}

	from, err := t.parseDate(ColumnCreated, created)
	if err != nil {
		return "", err
	}
	to, err := t.parseDate(ColumnResolutionDate, resolved)
	if err != nil {
		return "", err
	}

	elapsed := to.Sub(from)
	if elapsed < 0 {
		elapsed = -elapsed
	}
	return strconv.FormatInt(int64(elapsed/day), 10), nil
}

// parseDate parses v with the configured layouts and returns its wall
// clock in the configured location, re-anchored to UTC.
func (t *Transformer) parseDate(col, v string) (time.Time, error) {
	v = strings.TrimSpace(stripLineBreaks(v))
	for _, layout := range t.cfg.DateLayouts {
		ts, err := time.ParseInLocation(layout, v, t.cfg.Location)
		if err != nil {
			continue
		}
		ts = ts.In(t.cfg.Location)
		y, m, d := ts.Date()
		hh, mm, ss := ts.Clock()
		return time.Date(y, m, d, hh, mm, ss, ts.Nanosecond(), time.UTC), nil
	}
	return time.Time{}, &types.RowError{
		Column: col,
		Err:    fmt.Errorf("%w: %q", types.ErrMalformedDate, v),
	}
}

// timeSpentHours converts the Time Spent column from seconds to hours
// rounded to one decimal place. It applies only when the column is
// classified numeric and non-empty; otherwise the field is null.
func (t *Transformer) timeSpentHours(rec types.Record) (string, error) {
	if t.cfg.Classification.Of(ColumnTimeSpent) != types.ClassNumeric {
		return tokenNull, nil
	}
	raw := strings.TrimSpace(stripQuotes(rec.Get(ColumnTimeSpent)))
	if raw == "" {
		return tokenNull, nil
	}

	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) {
		return "", &types.RowError{
			Column: ColumnTimeSpent,
			Err:    fmt.Errorf("%w: %q", types.ErrMalformedNumber, raw),
		}
	}
	hours := math.Round(secs/3600*10) / 10
	return strconv.FormatFloat(hours, 'f', 1, 64), nil
}
