package engine

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Result is a fully materialized query result.
type Result struct {
	Columns     []string `json:"columns"`
	ColumnTypes []string `json:"column_types"`
	Rows        []Row    `json:"rows"`
	Count       int      `json:"count"`
}

type Row map[string]any

// Column returns the values of column i in row order.
func (r *Result) Column(i int) []any {
	if i < 0 || i >= len(r.Columns) {
		return nil
	}
	out := make([]any, 0, len(r.Rows))
	for _, row := range r.Rows {
		out = append(out, row[r.Columns[i]])
	}
	return out
}

// Strings returns column i rendered as strings.
func (r *Result) Strings(i int) []string {
	vals := r.Column(i)
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		out = append(out, FormatValue(v))
	}
	return out
}

// ScanRows reads every row into a Result. Byte slices become strings.
func ScanRows(rows *sql.Rows) (*Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to get column types: %w", err)
	}
	res := &Result{
		Columns:     columns,
		ColumnTypes: make([]string, len(types)),
		Rows:        []Row{},
	}
	for i, ct := range types {
		res.ColumnTypes[i] = ct.DatabaseTypeName()
	}

	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	res.Count = len(res.Rows)
	return res, nil
}

func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case time.Time:
		return x.UTC().Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// FormatTable renders the result as an ASCII table followed by a row count line.
func FormatTable(r *Result) string {
	if len(r.Columns) == 0 {
		return "(no columns)"
	}
	var b strings.Builder
	tw := tablewriter.NewWriter(&b)
	tw.SetHeader(r.Columns)
	tw.SetAutoFormatHeaders(false)
	tw.SetAutoWrapText(false)
	for _, row := range r.Rows {
		cells := make([]string, len(r.Columns))
		for i, col := range r.Columns {
			cells[i] = FormatValue(row[col])
		}
		tw.Append(cells)
	}
	tw.Render()
	fmt.Fprintf(&b, "(%d rows)", r.Count)
	return b.String()
}
