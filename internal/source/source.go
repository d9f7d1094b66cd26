// Package source provides the tabular data source consumed by the export
// pipeline: a count query over a named relation and a windowed row query.
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/bulkdump/pkg/types"
)

// Source is the capability the paginated reader depends on. Column order
// must be stable across pages.
type Source interface {
	// Count returns the number of rows in table.
	Count(ctx context.Context, table string) (int64, error)

	// Page returns at most limit rows of table starting at offset.
	Page(ctx context.Context, table string, limit, offset int64) ([]types.Row, error)

	// Close releases the underlying connection.
	Close() error
}

// Querier is the subset of *sql.DB used by SQLSource.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLSource implements Source over database/sql.
type SQLSource struct {
	db       Querier
	closer   func() error
	protocol string
}

var _ Source = (*SQLSource)(nil)

// Open parses raw, connects to the data source it names, and verifies the
// connection. The caller must Close the returned source.
func Open(ctx context.Context, raw string) (*SQLSource, error) {
	u, err := ParseURI(raw)
	if err != nil {
		return nil, err
	}

	var driver, dsn string
	switch u.Protocol {
	case ProtocolSQLite:
		if u.Resource == "" {
			return nil, fmt.Errorf("%w: sqlite database path is empty", types.ErrSourceURI)
		}
		// Opening a missing file would create an empty database.
		if _, err := os.Stat(u.Resource); err != nil {
			return nil, fmt.Errorf("open sqlite database: %w", err)
		}
		driver, dsn = "sqlite", u.Resource
	case ProtocolMySQL:
		cfg := mysql.NewConfig()
		cfg.User = u.Username
		cfg.Passwd = u.Password
		cfg.Net = "tcp"
		cfg.Addr = u.Address()
		cfg.DBName = u.Resource
		driver, dsn = "mysql", cfg.FormatDSN()
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("database connectivity error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("database connectivity error: %w", err)
	}
	db.SetConnMaxIdleTime(time.Minute)

	return NewSQLSource(db, u.Protocol), nil
}

// NewSQLSource wraps an existing connection. protocol selects identifier
// quoting. If db implements Close it is called by SQLSource.Close.
func NewSQLSource(db Querier, protocol string) *SQLSource {
	s := &SQLSource{db: db, protocol: protocol}
	if c, ok := db.(interface{ Close() error }); ok {
		s.closer = c.Close
	}
	return s
}

// QuoteIdentifier quotes a possibly schema-qualified identifier using
// backticks for mysql and ANSI double quotes otherwise.
func (s *SQLSource) QuoteIdentifier(name string) string {
	return QuoteIdentifier(s.protocol, name)
}

// QuoteIdentifier quotes each dot-separated part of name for protocol,
// doubling embedded quote characters.
func QuoteIdentifier(protocol, name string) string {
	q := `"`
	if protocol == ProtocolMySQL {
		q = "`"
	}
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = q + strings.ReplaceAll(p, q, q+q) + q
	}
	return strings.Join(parts, ".")
}

// Count implements Source.
func (s *SQLSource) Count(ctx context.Context, table string) (int64, error) {
	if table == "" {
		return 0, types.ErrInvalidTable
	}

	var n int64
	query := "SELECT COUNT(*) FROM " + s.QuoteIdentifier(table)
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// maxPagePrealloc bounds the row slice allocated before a page is read.
const maxPagePrealloc = 1024

// Page implements Source.
func (s *SQLSource) Page(ctx context.Context, table string, limit, offset int64) ([]types.Row, error) {
	if table == "" {
		return nil, types.ErrInvalidTable
	}

	query := "SELECT * FROM " + s.QuoteIdentifier(table) + " LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query %s page at offset %d: %w", table, offset, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("columns: %w", err)
	}

	page := make([]types.Row, 0, min(limit, maxPagePrealloc))
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}

		row := make(types.Row, len(cols))
		for i, x := range raw {
			row[i] = types.FromAny(x)
		}
		page = append(page, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s page at offset %d: %w", table, offset, err)
	}
	return page, nil
}

// Close releases the connection. Close is idempotent.
func (s *SQLSource) Close() error {
	if s.closer == nil {
		return nil
	}
	closer := s.closer
	s.closer = nil
	if err := closer(); err != nil && !errors.Is(err, sql.ErrConnDone) {
		return err
	}
	return nil
}
