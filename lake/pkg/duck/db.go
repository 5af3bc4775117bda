package duck

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DB is a DuckDB database handle that hands out connections bound to its catalog and schema.
type DB interface {
	Catalog() string
	Schema() string
	Conn(ctx context.Context) (Connection, error)
	Close() error
}

// Connection is a single DuckDB connection.
type Connection interface {
	DB() DB
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	Close() error
}

type database struct {
	log     *slog.Logger
	db      *sql.DB
	catalog string
	schema  string
}

// NewDB opens an embedded DuckDB database. An empty path opens an in-memory database.
func NewDB(ctx context.Context, path string, log *slog.Logger) (DB, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	var catalog, schema string
	if err := db.QueryRowContext(ctx, "SELECT current_database(), current_schema()").Scan(&catalog, &schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to get current database and schema: %w", err)
	}

	log.Debug("duck: opened database", "path", path, "catalog", catalog, "schema", schema)

	return &database{log: log, db: db, catalog: catalog, schema: schema}, nil
}

func (d *database) Catalog() string { return d.catalog }
func (d *database) Schema() string  { return d.schema }
func (d *database) Close() error    { return d.db.Close() }

func (d *database) Conn(ctx context.Context) (Connection, error) {
	return bindConn(ctx, d, d.db, d.catalog, d.schema)
}

type connection struct {
	conn  *sql.Conn
	owner DB
	mu    sync.Mutex
}

// bindConn takes a connection from the pool and points it at the given catalog and schema,
// since USE only applies to the connection it runs on.
func bindConn(ctx context.Context, owner DB, db *sql.DB, catalog, schema string) (Connection, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := conn.ExecContext(ctx, "USE "+quoteIdent(catalog)); err != nil {
		conn.Close()
		return nil, fmt.Errorf("USE failed: %w", err)
	}
	if schema != "" {
		if _, err := conn.ExecContext(ctx, "SET schema = "+quoteLiteral(schema)); err != nil {
			conn.Close()
			return nil, fmt.Errorf("SET schema failed: %w", err)
		}
	}
	return &connection{conn: conn, owner: owner}, nil
}

func (c *connection) DB() DB { return c.owner }

func (c *connection) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.ExecContext(ctx, query, args...)
}

func (c *connection) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.QueryContext(ctx, query, args...)
}

func (c *connection) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.QueryRowContext(ctx, query, args...)
}

func (c *connection) Close() error {
	return c.conn.Close()
}
