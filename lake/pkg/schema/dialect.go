package schema

import (
	"fmt"

	"github.com/lib/pq"

	"github.com/lakeoracle/oracle/lake/pkg/engine"
)

// Dialect builds the metadata statements for one engine family. Identifiers are
// validated before any builder is called.
type Dialect interface {
	Name() string
	// ListDatabases returns a statement whose first column holds database names.
	ListDatabases(catalog string) string
	// ListTables returns a statement whose second column holds table names.
	ListTables(catalog, database string) string
	// DescribeColumns returns a statement whose first two columns are name and type.
	DescribeColumns(t TableRef) string
	DescribeExtended(t TableRef) string
	// ShowCreateTable returns a statement whose first cell is the DDL.
	ShowCreateTable(table string) (string, error)
	TableHistory(table string, limit int) (string, error)
}

const (
	DialectSpark      = "spark"
	DialectANSI       = "ansi"
	DialectDuckDB     = "duckdb"
	DialectClickHouse = "clickhouse"
)

func ParseDialect(name string) (Dialect, error) {
	switch name {
	case DialectSpark:
		return Spark{}, nil
	case DialectANSI:
		return ANSI{}, nil
	case DialectDuckDB:
		return DuckDB{}, nil
	case DialectClickHouse:
		return ClickHouse{}, nil
	}
	return nil, fmt.Errorf("unknown dialect %q", name)
}

// DefaultDialect picks the metadata dialect matching an engine driver.
func DefaultDialect(driver engine.Driver) Dialect {
	switch driver {
	case engine.DriverDuckDB:
		return DuckDB{}
	case engine.DriverClickHouse:
		return ClickHouse{}
	}
	return ANSI{}
}

// Spark issues Spark SQL metadata commands against an Iceberg-backed catalog.
type Spark struct{}

func (Spark) Name() string { return DialectSpark }

func (Spark) ListDatabases(catalog string) string {
	return "show databases in " + catalog
}

func (Spark) ListTables(catalog, database string) string {
	return "show tables in " + catalog + "." + database
}

func (Spark) DescribeColumns(t TableRef) string {
	return "DESCRIBE " + t.String()
}

func (Spark) DescribeExtended(t TableRef) string {
	return "DESCRIBE TABLE EXTENDED " + t.String()
}

func (Spark) ShowCreateTable(table string) (string, error) {
	return "show create table " + table, nil
}

func (Spark) TableHistory(table string, limit int) (string, error) {
	return fmt.Sprintf(`select h.made_current_at, s.operation, h.snapshot_id, h.is_current_ancestor, s.summary['spark.app.id']
from %[1]s.history h
join %[1]s.snapshots s on h.snapshot_id = s.snapshot_id
order by made_current_at
limit %[2]d`, table, limit), nil
}

// ANSI reads information_schema.
type ANSI struct{}

func (ANSI) Name() string { return DialectANSI }

func (ANSI) ListDatabases(catalog string) string {
	return "select schema_name from information_schema.schemata where catalog_name = " + lit(catalog) + " order by schema_name"
}

func (ANSI) ListTables(catalog, database string) string {
	return "select table_schema, table_name from information_schema.tables where table_catalog = " + lit(catalog) +
		" and table_schema = " + lit(database) + " order by table_name"
}

func (ANSI) DescribeColumns(t TableRef) string {
	return "select column_name as col_name, data_type from information_schema.columns where " + columnsFilter(t) + " order by ordinal_position"
}

func (ANSI) DescribeExtended(t TableRef) string {
	return "select column_name as col_name, data_type, is_nullable, column_default from information_schema.columns where " +
		columnsFilter(t) + " order by ordinal_position"
}

func (ANSI) ShowCreateTable(string) (string, error) {
	return "", fmt.Errorf("show create table: %w %s", ErrUnsupported, DialectANSI)
}

func (ANSI) TableHistory(string, int) (string, error) {
	return "", fmt.Errorf("table history: %w %s", ErrUnsupported, DialectANSI)
}

// DuckDB is ANSI plus DDL from duckdb_tables().
type DuckDB struct{ ANSI }

func (DuckDB) Name() string { return DialectDuckDB }

func (DuckDB) ShowCreateTable(table string) (string, error) {
	parts := splitName(table)
	conds := []string{"table_name = " + lit(unquote(parts[len(parts)-1]))}
	if len(parts) >= 2 {
		conds = append(conds, "schema_name = "+lit(unquote(parts[len(parts)-2])))
	}
	if len(parts) == 3 {
		conds = append(conds, "database_name = "+lit(unquote(parts[0])))
	}
	q := "select sql from duckdb_tables() where " + conds[0]
	for _, c := range conds[1:] {
		q += " and " + c
	}
	return q, nil
}

func (DuckDB) TableHistory(string, int) (string, error) {
	return "", fmt.Errorf("table history: %w %s", ErrUnsupported, DialectDuckDB)
}

// ClickHouse has no catalog level; the catalog part of a reference is ignored.
type ClickHouse struct{}

func (ClickHouse) Name() string { return DialectClickHouse }

func (ClickHouse) ListDatabases(string) string {
	return "select name from system.databases order by name"
}

func (ClickHouse) ListTables(_, database string) string {
	return "select database, name from system.tables where database = " + lit(unquote(database)) + " order by name"
}

func (ClickHouse) DescribeColumns(t TableRef) string {
	return "select name as col_name, type as data_type from system.columns where database = " + lit(unquote(t.Database)) +
		" and table = " + lit(unquote(t.Table)) + " order by position"
}

func (ClickHouse) DescribeExtended(t TableRef) string {
	return "select name as col_name, type as data_type, default_kind, default_expression, comment, is_in_partition_key, is_in_sorting_key from system.columns where database = " +
		lit(unquote(t.Database)) + " and table = " + lit(unquote(t.Table)) + " order by position"
}

func (ClickHouse) ShowCreateTable(table string) (string, error) {
	parts := splitName(table)
	if len(parts) == 3 {
		parts = parts[1:]
	}
	name := parts[0]
	if len(parts) == 2 {
		name += "." + parts[1]
	}
	return "show create table " + name, nil
}

func (ClickHouse) TableHistory(string, int) (string, error) {
	return "", fmt.Errorf("table history: %w %s", ErrUnsupported, DialectClickHouse)
}

func columnsFilter(t TableRef) string {
	return "table_catalog = " + lit(unquote(t.Catalog)) + " and table_schema = " + lit(unquote(t.Database)) +
		" and table_name = " + lit(unquote(t.Table))
}

func lit(s string) string {
	return pq.QuoteLiteral(unquote(s))
}
