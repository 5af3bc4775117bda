package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/lakeoracle/oracle/lake/pkg/duck"
	"github.com/lakeoracle/oracle/lake/pkg/metrics"
	"github.com/lakeoracle/oracle/lake/pkg/retry"
)

type Driver string

const (
	DriverDuckDB     Driver = "duckdb"
	DriverPostgres   Driver = "postgres"
	DriverClickHouse Driver = "clickhouse"
)

func ParseDriver(s string) (Driver, error) {
	switch Driver(s) {
	case DriverDuckDB, DriverPostgres, DriverClickHouse:
		return Driver(s), nil
	case "pgx", "postgresql":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unknown engine driver %q (want duckdb, postgres or clickhouse)", s)
}

// Engine runs SQL against the remote or embedded query engine and materializes the result.
type Engine interface {
	Query(ctx context.Context, query string, args ...any) (*Result, error)
	Ping(ctx context.Context) error
	Driver() Driver
	Close() error
}

type Config struct {
	Logger *slog.Logger
	Driver Driver

	// DSN is a postgres URL or libpq string, a clickhouse:// URL, or a DuckDB path
	// (empty for in-memory).
	DSN string

	// DuckDB, when set, is used instead of opening DSN for the duckdb driver.
	DuckDB duck.DB

	// MaxOpenConns bounds the pool; the default of 1 keeps a single shared session.
	MaxOpenConns int

	ConnectRetry *retry.Config
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Driver == "" {
		return errors.New("driver is required")
	}
	if _, err := ParseDriver(string(cfg.Driver)); err != nil {
		return err
	}
	if cfg.Driver != DriverDuckDB && cfg.DSN == "" {
		return errors.New("dsn is required")
	}
	if cfg.MaxOpenConns <= 0 {
		cfg.MaxOpenConns = 1
	}
	if cfg.ConnectRetry == nil {
		rc := retry.DefaultConfig()
		cfg.ConnectRetry = &rc
	}
	return nil
}

// New opens the engine and waits until it answers a ping.
func New(ctx context.Context, cfg Config) (Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate engine config: %w", err)
	}

	var eng Engine
	switch cfg.Driver {
	case DriverDuckDB:
		db := cfg.DuckDB
		if db == nil {
			var err error
			db, err = duck.NewDB(ctx, cfg.DSN, cfg.Logger)
			if err != nil {
				return nil, err
			}
		}
		eng = &duckEngine{log: cfg.Logger, db: db}
	case DriverPostgres:
		db, err := sql.Open("pgx", cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres engine: %w", err)
		}
		eng = newSQLEngine(cfg, db)
	case DriverClickHouse:
		opts, err := clickhouse.ParseDSN(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to parse clickhouse dsn: %w", err)
		}
		eng = newSQLEngine(cfg, clickhouse.OpenDB(opts))
	}

	rc := *cfg.ConnectRetry
	rc.OnRetry = func(attempt int, err error, next time.Duration) {
		cfg.Logger.Warn("engine: ping failed, retrying", "driver", cfg.Driver, "attempt", attempt, "next", next, "error", err)
	}
	if err := retry.Do(ctx, rc, func() error { return eng.Ping(ctx) }); err != nil {
		eng.Close()
		return nil, fmt.Errorf("failed to connect to %s engine: %w", cfg.Driver, err)
	}

	cfg.Logger.Info("engine: connected", "driver", cfg.Driver)
	return eng, nil
}

// observe records the outcome of one engine round trip.
func observe(driver Driver, start time.Time, res *Result, err error) {
	metrics.EngineQueryDuration.WithLabelValues(string(driver)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.EngineQueriesTotal.WithLabelValues(string(driver), "error").Inc()
		return
	}
	metrics.EngineQueriesTotal.WithLabelValues(string(driver), "ok").Inc()
	metrics.EngineRowsReturned.WithLabelValues(string(driver)).Observe(float64(res.Count))
}

type sqlEngine struct {
	log    *slog.Logger
	db     *sql.DB
	driver Driver
}

func newSQLEngine(cfg Config, db *sql.DB) *sqlEngine {
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns)
	return &sqlEngine{log: cfg.Logger, db: db, driver: cfg.Driver}
}

func (e *sqlEngine) Driver() Driver                 { return e.driver }
func (e *sqlEngine) Ping(ctx context.Context) error { return e.db.PingContext(ctx) }
func (e *sqlEngine) Close() error                   { return e.db.Close() }

func (e *sqlEngine) Query(ctx context.Context, query string, args ...any) (res *Result, err error) {
	start := time.Now()
	defer func() { observe(e.driver, start, res, err) }()

	e.log.Debug("engine: executing query", "driver", e.driver, "sql", query)
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()
	return ScanRows(rows)
}

type duckEngine struct {
	log *slog.Logger
	db  duck.DB
}

func (e *duckEngine) Driver() Driver { return DriverDuckDB }
func (e *duckEngine) Close() error   { return e.db.Close() }

func (e *duckEngine) Ping(ctx context.Context) error {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

func (e *duckEngine) Query(ctx context.Context, query string, args ...any) (res *Result, err error) {
	start := time.Now()
	defer func() { observe(DriverDuckDB, start, res, err) }()

	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	e.log.Debug("engine: executing query", "driver", DriverDuckDB, "sql", query)
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()
	return ScanRows(rows)
}
