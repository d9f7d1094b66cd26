package types

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// Config holds the settings for both pipelines. It is populated from
// config.yaml, environment, and flags by the CLI.
type Config struct {
	Source string       `mapstructure:"source" yaml:"source"`
	Export ExportConfig `mapstructure:"export" yaml:"export"`
	Bulk   BulkConfig   `mapstructure:"bulk" yaml:"bulk"`
	Log    LogConfig    `mapstructure:"log" yaml:"log"`
}

// ExportConfig configures the table export.
type ExportConfig struct {
	PageSize  int64         `mapstructure:"page_size" yaml:"page_size"`
	Pace      time.Duration `mapstructure:"pace" yaml:"pace"`
	Delimiter string        `mapstructure:"delimiter" yaml:"delimiter"`
	Enclosure string        `mapstructure:"enclosure" yaml:"enclosure"`
	Null      string        `mapstructure:"null_token" yaml:"null_token"`
}

// BulkConfig configures the bulk-JSON transform.
type BulkConfig struct {
	Index       string        `mapstructure:"index" yaml:"index"`
	Dir         string        `mapstructure:"dir" yaml:"dir,omitempty"`
	Glob        string        `mapstructure:"glob" yaml:"glob"`
	Timezone    string        `mapstructure:"timezone" yaml:"timezone"`
	DateLayouts []string      `mapstructure:"date_layouts" yaml:"date_layouts"`
	Columns     ColumnsConfig `mapstructure:"columns" yaml:"columns"`
}

// ColumnsConfig lists the classified columns.
type ColumnsConfig struct {
	Date    []string `mapstructure:"date" yaml:"date"`
	Numeric []string `mapstructure:"numeric" yaml:"numeric"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Defaults.
const (
	DefaultSource    = "sqlite://"
	DefaultPageSize  = 1000
	MaxPageSize      = 1_000_000
	DefaultPace      = 200 * time.Millisecond
	DefaultDelimiter = ","
	DefaultEnclosure = `"`
	DefaultIndex     = "issues"
	DefaultGlob      = "*.csv"
	DefaultTimezone  = "America/Denver"
)

// DefaultDateLayouts are tried in order when parsing date columns.
var DefaultDateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2/Jan/06 3:04 PM",
	"2/Jan/06 15:04",
	"2/Jan/06",
	"1/2/2006 3:04 PM",
	"1/2/2006 15:04",
	"1/2/2006",
}

// DefaultConfig returns the configuration used when nothing overrides it.
func DefaultConfig() Config {
	return Config{
		Source: DefaultSource,
		Export: ExportConfig{
			PageSize:  DefaultPageSize,
			Pace:      DefaultPace,
			Delimiter: DefaultDelimiter,
			Enclosure: DefaultEnclosure,
		},
		Bulk: BulkConfig{
			Index:       DefaultIndex,
			Glob:        DefaultGlob,
			Timezone:    DefaultTimezone,
			DateLayouts: append([]string(nil), DefaultDateLayouts...),
			Columns: ColumnsConfig{
				Date:    []string{"Created", "Due", "Resolution Date", "Updated"},
				Numeric: []string{"Story Points"},
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Validate checks that the Config is well-formed. It returns a sentinel
// error from this package on failure.
func (c Config) Validate() error {
	if c.Source == "" {
		return ErrSourceURI
	}
	if err := c.Export.Validate(); err != nil {
		return err
	}
	return c.Bulk.Validate()
}

// Validate checks the export settings.
func (c ExportConfig) Validate() error {
	if c.PageSize <= 0 || c.PageSize > MaxPageSize {
		return ErrInvalidPageSize
	}
	if c.Pace < 0 {
		return ErrInvalidPace
	}
	if utf8.RuneCountInString(c.Delimiter) != 1 {
		return ErrInvalidDelimiter
	}
	if utf8.RuneCountInString(c.Enclosure) != 1 {
		return ErrInvalidEnclosure
	}
	return nil
}

// Validate checks the bulk settings, including the column classification.
func (c BulkConfig) Validate() error {
	if c.Index == "" {
		return ErrIndexEmpty
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	_, err := c.Classification()
	return err
}

// Location resolves the configured timezone. An empty timezone is UTC.
func (c BulkConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTimezone, c.Timezone)
	}
	return loc, nil
}

// Classification builds the validated column classification.
func (c BulkConfig) Classification() (Classification, error) {
	return NewClassification(c.Columns.Date, c.Columns.Numeric)
}
