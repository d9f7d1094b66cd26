package export

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/bulkdump/internal/csvenc"
	"github.com/mesh-intelligence/bulkdump/internal/metrics"
	"github.com/mesh-intelligence/bulkdump/internal/source"
	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

// openTestSource creates a sqlite database with the given statements
// applied and returns an open source over it.
func openTestSource(t *testing.T, stmts ...string) *source.SQLSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "export.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	for _, s := range stmts {
		_, err := db.Exec(s)
		require.NoError(t, err, s)
	}
	require.NoError(t, db.Close())

	src, err := source.Open(context.Background(), "sqlite://"+path)
	require.NoError(t, err)
	t.Cleanup(func() { src.Close() })
	return src
}

var peopleDB = []string{
	`CREATE TABLE people (id INTEGER PRIMARY KEY, name TEXT, score REAL, active INTEGER, note TEXT)`,
	`INSERT INTO people VALUES (1, 'Ann', 9.5, 1, NULL)`,
	`INSERT INTO people VALUES (2, 'Bob "the builder"', 7, 0, 'likes, commas')`,
	`INSERT INTO people VALUES (3, 'Cy', 12, 1, 'two' || char(13) || char(10) || 'lines')`,
}

func TestExport(t *testing.T) {
	src := openTestSource(t, peopleDB...)
	out := filepath.Join(t.TempDir(), "people.csv")

	p := NewPipeline(src, Options{PageSize: 2}, nil, nil)
	res, err := p.Export(context.Background(), "people", out)
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.Rows)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "people", res.Table)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, res.Bytes, int64(len(data)))

	want := "1,\"Ann\",9.5,1,\"\"\r\n" +
		"2,\"Bob \"\"the builder\"\"\",7,0,\"likes, commas\"\r\n" +
		"3,\"Cy\",12,1,\"two\nlines\"\r\n"
	assert.Equal(t, want, string(data))
}

func TestExportAppendsOnRepeat(t *testing.T) {
	src := openTestSource(t, peopleDB...)
	out := filepath.Join(t.TempDir(), "people.csv")
	require.NoError(t, os.WriteFile(out, []byte("existing\r\n"), 0o644))

	p := NewPipeline(src, Options{PageSize: 100}, nil, nil)
	_, err := p.Export(context.Background(), "people", out)
	require.NoError(t, err)
	first, err := os.ReadFile(out)
	require.NoError(t, err)

	_, err = p.Export(context.Background(), "people", out)
	require.NoError(t, err)
	second, err := os.ReadFile(out)
	require.NoError(t, err)

	dump := strings.TrimPrefix(string(first), "existing\r\n")
	assert.Equal(t, string(first)+dump, string(second), "second run appends a duplicate copy")
	assert.Equal(t, 7, strings.Count(string(second), "\r\n"))
}

func TestExportEmptyTable(t *testing.T) {
	src := openTestSource(t, `CREATE TABLE empty (id INTEGER)`)
	out := filepath.Join(t.TempDir(), "empty.csv")
	m := metrics.NewCollector(nil)

	p := NewPipeline(src, Options{}, nil, m)
	res, err := p.Export(context.Background(), "empty", out)
	assert.ErrorIs(t, err, types.ErrEmptyTable)
	assert.Equal(t, 0, res.Pages)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "output is not created for an empty table")
	n, err := testutil.GatherAndCount(m.Registry(), "bulkdump_export_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestExportOutputUnavailable(t *testing.T) {
	src := openTestSource(t, peopleDB...)
	dir := t.TempDir()

	p := NewPipeline(src, Options{}, nil, nil)
	_, err := p.Export(context.Background(), "people", dir)
	assert.ErrorIs(t, err, types.ErrOutputUnavailable)

	_, err = p.Export(context.Background(), "people", "")
	assert.ErrorIs(t, err, types.ErrOutputUnavailable)

	_, err = p.Export(context.Background(), "people", filepath.Join(dir, "missing", "x.csv"))
	assert.ErrorIs(t, err, types.ErrOutputUnavailable)
}

func TestExportUnknownTable(t *testing.T) {
	src := openTestSource(t, peopleDB...)
	out := filepath.Join(t.TempDir(), "x.csv")

	p := NewPipeline(src, Options{}, nil, nil)
	_, err := p.Export(context.Background(), "nope", out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, types.ErrEmptyTable)

	_, err = p.Export(context.Background(), "", out)
	assert.ErrorIs(t, err, types.ErrInvalidTable)
}

func TestExportPageSizeLargerThanTable(t *testing.T) {
	src := openTestSource(t,
		`CREATE TABLE one (a INTEGER)`,
		`INSERT INTO one VALUES (7)`,
	)
	out := filepath.Join(t.TempDir(), "one.csv")

	p := NewPipeline(src, Options{PageSize: 1 << 40}, nil, nil)
	res, err := p.Export(context.Background(), "one", out)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Rows)
	assert.Equal(t, 1, res.Pages)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "7\r\n", string(data))
}

func TestExportDotDelimiter(t *testing.T) {
	src := openTestSource(t,
		`CREATE TABLE nums (a INTEGER, b REAL)`,
		`INSERT INTO nums VALUES (1, 2.5)`,
	)
	out := filepath.Join(t.TempDir(), "nums.csv")

	p := NewPipeline(src, Options{CSV: csvenc.Options{Delimiter: "."}}, nil, nil)
	_, err := p.Export(context.Background(), "nums", out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "\"1\".\"2.5\"\r\n", string(data))
}

func TestExportClosesFileOnPageError(t *testing.T) {
	src := newFakeSource(5)
	src.pageErr = assert.AnError
	out := filepath.Join(t.TempDir(), "x.csv")

	p := NewPipeline(src, Options{PageSize: 2}, nil, nil)
	_, err := p.Export(context.Background(), "items", out)
	assert.ErrorIs(t, err, assert.AnError)

	// The file was opened and closed; removing it must succeed on every
	// platform.
	require.NoError(t, os.Remove(out))
}

func TestExportRecordsMetrics(t *testing.T) {
	src := newFakeSource(5)
	m := metrics.NewCollector(nil)
	out := filepath.Join(t.TempDir(), "x.csv")

	p := NewPipeline(src, Options{PageSize: 2}, nil, m)
	_, err := p.Export(context.Background(), "items", out)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "m.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `bulkdump_export_pages_total{table="items"} 3`)
	assert.Contains(t, string(data), `bulkdump_export_rows_total{table="items"} 5`)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := types.DefaultConfig().Export
	opts := OptionsFromConfig(cfg)
	assert.Equal(t, int64(types.DefaultPageSize), opts.PageSize)
	assert.Equal(t, types.DefaultPace, opts.Pace)
	assert.Equal(t, ",", opts.CSV.Delimiter)
}
