package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/lakeoracle/oracle/lake/pkg/engine"
	"github.com/lakeoracle/oracle/lake/pkg/schema"
)

const (
	ListDatabasesTool   = "get_list_of_databases_in_catalog"
	ListTablesTool      = "get_list_of_tables_in_database"
	DescribeColumnsTool = "get_table_columns_and_types_as_list"
	QueryTool           = "sql_query_to_str"
	DescribeTableTool   = "get_table_description_as_str"
	TableDDLTool        = "get_table_ddl_as_str"
	SampleTableTool     = "sample_table_data"
	ColumnSampleTool    = "get_column_sample_as_list"
	RowCountTool        = "get_table_row_count"
	TableHistoryTool    = "get_table_history"
)

// DefaultTools are enabled unless all tools are requested.
var DefaultTools = []string{ListTablesTool, ListDatabasesTool, DescribeColumnsTool, QueryTool}

// Executor runs read-only statements and renders the result as text.
type Executor interface {
	Execute(ctx context.Context, sql string, maxRows int) (string, error)
}

// Inspector answers catalog metadata questions.
type Inspector interface {
	ListDatabases(ctx context.Context, catalog string) ([]string, error)
	ListTables(ctx context.Context, catalog, database string) ([]string, error)
	DescribeColumns(ctx context.Context, t schema.TableRef) ([]schema.Column, error)
	DescribeExtended(ctx context.Context, t schema.TableRef) (*engine.Result, error)
	ShowCreateTable(ctx context.Context, table string) (string, error)
	SampleTable(ctx context.Context, table, where string, limit int) (*engine.Result, error)
	ColumnSample(ctx context.Context, table, column string, limit int) ([]any, error)
	RowCount(ctx context.Context, table string) (int64, error)
	TableHistory(ctx context.Context, table string, limit int) (*engine.Result, error)
}

type CatalogInput struct {
	CatalogName string `json:"catalog_name" jsonschema:"data catalog to use for the query"`
}

type DatabaseInput struct {
	CatalogName  string `json:"catalog_name" jsonschema:"data catalog to use for the query"`
	DatabaseName string `json:"database_name" jsonschema:"database within the catalog"`
}

type TableInput struct {
	CatalogName  string `json:"catalog_name" jsonschema:"name of the catalog"`
	DatabaseName string `json:"database_name" jsonschema:"name of the database"`
	TableName    string `json:"table_name" jsonschema:"name of the table"`
}

func (in TableInput) ref() schema.TableRef {
	return schema.TableRef{Catalog: in.CatalogName, Database: in.DatabaseName, Table: in.TableName}
}

type QueryInput struct {
	Query   string `json:"query" jsonschema:"the SQL SELECT query to execute"`
	MaxRows int    `json:"max_rows,omitempty" jsonschema:"maximum number of rows to return, default and maximum 20"`
}

type QualifiedTableInput struct {
	TableName string `json:"table_name" jsonschema:"table in the form catalog.db.table"`
}

type SampleTableInput struct {
	TableName   string `json:"table_name" jsonschema:"table in the form catalog.db.table"`
	WhereClause string `json:"where_clause,omitempty" jsonschema:"SQL filter expression without the WHERE keyword"`
	Limit       int    `json:"limit,omitempty" jsonschema:"number of rows to return, default 10, maximum 20"`
}

type ColumnSampleInput struct {
	TableName  string `json:"table_name" jsonschema:"table in the form catalog.db.table"`
	ColumnName string `json:"column_name" jsonschema:"column to sample"`
	Limit      int    `json:"limit,omitempty" jsonschema:"number of values to return, default and maximum 20"`
}

type TableHistoryInput struct {
	TableName string `json:"table_name" jsonschema:"table in the form catalog.db.table"`
	Limit     int    `json:"limit,omitempty" jsonschema:"number of history records to return, default and maximum 10"`
}

func lakeTools(exec Executor, insp Inspector) ([]*Definition, error) {
	var defs []*Definition
	add := func(d *Definition, err error) error {
		if err != nil {
			return err
		}
		defs = append(defs, d)
		return nil
	}

	errs := []error{
		add(newTool(ListDatabasesTool,
			"List all databases in a catalog. Returns a JSON array of database names.",
			func(ctx context.Context, in CatalogInput) (string, error) {
				dbs, err := insp.ListDatabases(ctx, in.CatalogName)
				if err != nil {
					return "", err
				}
				return toJSON(dbs)
			})),
		add(newTool(ListTablesTool,
			"List all tables in a database of a catalog. Returns a JSON array of table names.",
			func(ctx context.Context, in DatabaseInput) (string, error) {
				tables, err := insp.ListTables(ctx, in.CatalogName, in.DatabaseName)
				if err != nil {
					return "", err
				}
				return toJSON(tables)
			})),
		add(newTool(DescribeColumnsTool,
			"List the columns of catalog.db.table with their data types. Returns a JSON array of {col_name, data_type}.",
			func(ctx context.Context, in TableInput) (string, error) {
				cols, err := insp.DescribeColumns(ctx, in.ref())
				if err != nil {
					return "", err
				}
				return toJSON(cols)
			})),
		add(newTool(QueryTool,
			`Execute a SQL SELECT query and return the result as a text table.
Only SELECT statements are allowed. A LIMIT of at most 20 rows is added when the query has none.
When querying any .base table always filter on eventtimeunix and isocode, for example
where date(eventtimeunix) = '2025-01-01' and isocode = 'RU'.`,
			func(ctx context.Context, in QueryInput) (string, error) {
				return exec.Execute(ctx, in.Query, in.MaxRows)
			})),
		add(newTool(DescribeTableTool,
			"Describe catalog.db.table in detail: columns with types, partitioning and table properties.",
			func(ctx context.Context, in TableInput) (string, error) {
				res, err := insp.DescribeExtended(ctx, in.ref())
				if err != nil {
					return "", err
				}
				return engine.FormatTable(res), nil
			})),
		add(newTool(TableDDLTool,
			"Return the CREATE TABLE statement of a table given as catalog.db.table.",
			func(ctx context.Context, in QualifiedTableInput) (string, error) {
				return insp.ShowCreateTable(ctx, in.TableName)
			})),
		add(newTool(SampleTableTool,
			`Return sample rows of a table to understand its data patterns.
Always pass a where clause on the partitioning columns to avoid large scans.`,
			func(ctx context.Context, in SampleTableInput) (string, error) {
				res, err := insp.SampleTable(ctx, in.TableName, in.WhereClause, in.Limit)
				if err != nil {
					return "", err
				}
				return engine.FormatTable(res), nil
			})),
		add(newTool(ColumnSampleTool,
			"Return non-null sample values of one column to help build filters. Returns a JSON array.",
			func(ctx context.Context, in ColumnSampleInput) (string, error) {
				vals, err := insp.ColumnSample(ctx, in.TableName, in.ColumnName, in.Limit)
				if err != nil {
					return "", err
				}
				out := make([]string, len(vals))
				for i, v := range vals {
					out[i] = engine.FormatValue(v)
				}
				return toJSON(out)
			})),
		add(newTool(RowCountTool,
			"Return the total number of rows in a table.",
			func(ctx context.Context, in QualifiedTableInput) (string, error) {
				n, err := insp.RowCount(ctx, in.TableName)
				if err != nil {
					return "", err
				}
				return strconv.FormatInt(n, 10), nil
			})),
		add(newTool(TableHistoryTool,
			"Return the snapshot history of a table, oldest first.",
			func(ctx context.Context, in TableHistoryInput) (string, error) {
				res, err := insp.TableHistory(ctx, in.TableName, in.Limit)
				if err != nil {
					return "", err
				}
				return engine.FormatTable(res), nil
			})),
	}
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return defs, nil
}

func toJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	return string(b), nil
}
