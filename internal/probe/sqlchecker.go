package probe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"
)

// SQLChecker pings a database and optionally compares the first column of
// Query's first row against Expect. The connection pool is opened on first
// use and kept until Close.
type SQLChecker struct {
	Driver string
	DSN    string
	Query  string
	Expect string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLChecker(driver, dsn, query, expect string) *SQLChecker {
	return &SQLChecker{Driver: DriverName(driver), DSN: dsn, Query: query, Expect: expect}
}

// DriverName maps the configured database type to a database/sql driver.
// Unknown names are passed through.
func DriverName(kind string) string {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "mysql", "mariadb":
		return "mysql"
	case "postgres", "postgresql":
		return "postgres"
	case "mssql", "sqlserver":
		return "sqlserver"
	default:
		return kind
	}
}

func (c *SQLChecker) open() (*sql.DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil {
		return c.db, nil
	}
	db, err := sql.Open(c.Driver, c.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s connection: %w", c.Driver, err)
	}
	db.SetMaxOpenConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	c.db = db
	return db, nil
}

func (c *SQLChecker) Check(ctx context.Context, target string) CheckResult {
	start := time.Now()
	fail := func(err error) CheckResult {
		return CheckResult{Name: "SQL", Success: false, Message: err.Error(), LatencyMS: time.Since(start).Seconds() * 1000}
	}

	db, err := c.open()
	if err != nil {
		return fail(err)
	}
	if err := db.PingContext(ctx); err != nil {
		return fail(fmt.Errorf("ping %s: %w", c.Driver, err))
	}
	if c.Query == "" {
		return CheckResult{Name: "SQL", Success: true, Message: "ping ok", LatencyMS: time.Since(start).Seconds() * 1000}
	}

	got, err := c.firstValue(ctx, db)
	if err != nil {
		return fail(err)
	}
	if c.Expect != "" && got != c.Expect {
		return fail(fmt.Errorf("query returned %q, want %q", got, c.Expect))
	}
	return CheckResult{Name: "SQL", Success: true, Message: "query returned " + got, LatencyMS: time.Since(start).Seconds() * 1000}
}

func (c *SQLChecker) firstValue(ctx context.Context, db *sql.DB) (string, error) {
	rows, err := db.QueryContext(ctx, c.Query)
	if err != nil {
		return "", fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("read columns: %w", err)
	}
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("iterate rows: %w", err)
		}
		return "", errors.New("query returned no rows")
	}
	values := make([]sql.NullString, len(cols))
	dest := make([]any, len(cols))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := rows.Scan(dest...); err != nil {
		return "", fmt.Errorf("scan row: %w", err)
	}
	if len(values) == 0 || !values[0].Valid {
		return "", nil
	}
	return values[0].String, nil
}

func (c *SQLChecker) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}
