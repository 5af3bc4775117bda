package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/lakeoracle/oracle/lake/pkg/engine"
)

const (
	MaxSampleRows     = 20
	DefaultSampleRows = 10
	MaxColumnSample   = 20
	MaxHistoryRows    = 10
)

type Config struct {
	Logger  *slog.Logger
	Engine  engine.Engine
	Dialect Dialect
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Engine == nil {
		return errors.New("engine is required")
	}
	if cfg.Dialect == nil {
		cfg.Dialect = DefaultDialect(cfg.Engine.Driver())
	}
	return nil
}

// Inspector answers catalog metadata questions with a live round trip per call.
type Inspector struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Inspector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate inspector config: %w", err)
	}
	return &Inspector{log: cfg.Logger, cfg: cfg}, nil
}

func (i *Inspector) Dialect() Dialect { return i.cfg.Dialect }

func (i *Inspector) query(ctx context.Context, stmt string) (*engine.Result, error) {
	i.log.Debug("schema: running metadata statement", "dialect", i.cfg.Dialect.Name(), "sql", stmt)
	return i.cfg.Engine.Query(ctx, stmt)
}

func (i *Inspector) ListDatabases(ctx context.Context, catalog string) ([]string, error) {
	if err := validateIdent(catalog); err != nil {
		return nil, err
	}
	res, err := i.query(ctx, i.cfg.Dialect.ListDatabases(catalog))
	if err != nil {
		return nil, fmt.Errorf("failed to list databases in %s: %w", catalog, err)
	}
	return res.Strings(0), nil
}

func (i *Inspector) ListTables(ctx context.Context, catalog, database string) ([]string, error) {
	if err := validateIdent(catalog); err != nil {
		return nil, err
	}
	if err := validateIdent(database); err != nil {
		return nil, err
	}
	res, err := i.query(ctx, i.cfg.Dialect.ListTables(catalog, database))
	if err != nil {
		return nil, fmt.Errorf("failed to list tables in %s.%s: %w", catalog, database, err)
	}
	return res.Strings(1), nil
}

// DescribeColumns returns the engine's (name, type) rows in order, unfiltered.
func (i *Inspector) DescribeColumns(ctx context.Context, t TableRef) ([]Column, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	res, err := i.query(ctx, i.cfg.Dialect.DescribeColumns(t))
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", t, err)
	}
	if len(res.Columns) < 2 {
		return nil, fmt.Errorf("failed to describe %s: expected two columns, got %d", t, len(res.Columns))
	}
	names, types := res.Strings(0), res.Strings(1)
	cols := make([]Column, len(names))
	for j := range names {
		cols[j] = Column{Name: names[j], DataType: types[j]}
	}
	return cols, nil
}

func (i *Inspector) DescribeExtended(ctx context.Context, t TableRef) (*engine.Result, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	res, err := i.query(ctx, i.cfg.Dialect.DescribeExtended(t))
	if err != nil {
		return nil, fmt.Errorf("failed to describe %s: %w", t, err)
	}
	return res, nil
}

// ShowCreateTable returns the first cell of the dialect's DDL statement.
func (i *Inspector) ShowCreateTable(ctx context.Context, table string) (string, error) {
	if err := ValidateName(table); err != nil {
		return "", err
	}
	stmt, err := i.cfg.Dialect.ShowCreateTable(table)
	if err != nil {
		return "", err
	}
	res, err := i.query(ctx, stmt)
	if err != nil {
		return "", fmt.Errorf("failed to show create table %s: %w", table, err)
	}
	if res.Count == 0 || len(res.Columns) == 0 {
		return "", fmt.Errorf("failed to show create table %s: no rows returned", table)
	}
	return engine.FormatValue(res.Rows[0][res.Columns[0]]), nil
}

// SampleTable selects up to limit rows, optionally filtered. The where clause is a
// single expression; statement separators are rejected.
func (i *Inspector) SampleTable(ctx context.Context, table, where string, limit int) (*engine.Result, error) {
	if err := ValidateName(table); err != nil {
		return nil, err
	}
	if strings.Contains(where, ";") {
		return nil, fmt.Errorf("%w: where clause must not contain ';'", ErrInvalidIdentifier)
	}
	stmt := "select * from " + table
	if where = strings.TrimSpace(where); where != "" {
		stmt += " where " + where
	}
	stmt += " limit " + strconv.Itoa(clamp(limit, DefaultSampleRows, MaxSampleRows))
	res, err := i.query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to sample %s: %w", table, err)
	}
	return res, nil
}

// ColumnSample returns up to limit non-null values of one column.
func (i *Inspector) ColumnSample(ctx context.Context, table, column string, limit int) ([]any, error) {
	if err := ValidateName(table); err != nil {
		return nil, err
	}
	if err := validateIdent(column); err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("select %[1]s from %[2]s where %[1]s is not null limit %[3]d", column, table, clamp(limit, MaxColumnSample, MaxColumnSample))
	res, err := i.query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to sample column %s of %s: %w", column, table, err)
	}
	return res.Column(0), nil
}

func (i *Inspector) RowCount(ctx context.Context, table string) (int64, error) {
	if err := ValidateName(table); err != nil {
		return 0, err
	}
	res, err := i.query(ctx, "select count(*) from "+table)
	if err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}
	if res.Count == 0 {
		return 0, fmt.Errorf("failed to count rows of %s: no rows returned", table)
	}
	return toInt64(res.Column(0)[0])
}

// TableHistory returns snapshot history, oldest first, capped at MaxHistoryRows.
func (i *Inspector) TableHistory(ctx context.Context, table string, limit int) (*engine.Result, error) {
	if err := ValidateName(table); err != nil {
		return nil, err
	}
	stmt, err := i.cfg.Dialect.TableHistory(table, clamp(limit, MaxHistoryRows, MaxHistoryRows))
	if err != nil {
		return nil, err
	}
	res, err := i.query(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("failed to read history of %s: %w", table, err)
	}
	return res, nil
}

func clamp(n, def, ceiling int) int {
	if n <= 0 {
		return def
	}
	return min(n, ceiling)
}

func toInt64(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int32:
		return int64(x), nil
	case int:
		return int64(x), nil
	case uint64:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("unexpected count type %T", v)
}
