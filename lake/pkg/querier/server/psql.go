package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	wire "github.com/jeroenrinzema/psql-wire"
	"github.com/jeroenrinzema/psql-wire/codes"
	pgerror "github.com/jeroenrinzema/psql-wire/errors"
	"github.com/jeroenrinzema/psql-wire/pkg/buffer"
	"github.com/jeroenrinzema/psql-wire/pkg/types"
	"github.com/lakeoracle/oracle/lake/pkg/engine"
	"github.com/lakeoracle/oracle/lake/pkg/executor"
	"github.com/lakeoracle/oracle/lake/pkg/querier/metrics"
	"github.com/lib/pq/oid"
)

const (
	authOK                = 0
	authClearTextPassword = 3
)

func newAuthStrategy(log *slog.Logger, accounts map[string]string) wire.AuthStrategy {
	return func(ctx context.Context, writer *buffer.Writer, reader *buffer.Reader) (context.Context, error) {
		params := wire.ClientParameters(ctx)
		username := params[wire.ParamUsername]

		if len(accounts) == 0 {
			metrics.AuthTotal.WithLabelValues("disabled").Inc()
			return ctx, writeAuth(writer, authOK)
		}

		if err := writeAuth(writer, authClearTextPassword); err != nil {
			return ctx, err
		}
		t, _, err := reader.ReadTypedMsg()
		if err != nil {
			return ctx, err
		}
		if t != types.ClientPassword {
			return ctx, fmt.Errorf("unexpected password message type: %v", t)
		}
		password, err := reader.GetString()
		if err != nil {
			return ctx, err
		}

		expected, exists := accounts[username]
		if !exists || subtle.ConstantTimeCompare([]byte(password), []byte(expected)) != 1 {
			metrics.AuthTotal.WithLabelValues("failed").Inc()
			log.Debug("postgres: authentication failed", "username", username)
			authErr := pgerror.WithCode(errors.New("invalid username/password"), codes.InvalidPassword)
			if err := wire.ErrorCode(writer, authErr); err != nil {
				return ctx, err
			}
			return ctx, authErr
		}

		metrics.AuthTotal.WithLabelValues("ok").Inc()
		log.Debug("postgres: authenticated", "username", username, "database", params[wire.ParamDatabase])
		return ctx, writeAuth(writer, authOK)
	}
}

func writeAuth(writer *buffer.Writer, code int32) error {
	writer.Start(types.ServerAuth)
	writer.AddInt32(code)
	return writer.End()
}

// queryHandler runs each statement through the querier and replays the buffered rows.
func (s *Server) queryHandler(ctx context.Context, query string) (wire.PreparedStatements, error) {
	s.log.Debug("postgres: incoming query", "query", query)

	trimmed := strings.TrimSpace(query)
	if trimmed == "" || trimmed == ";" {
		return wire.Prepared(wire.NewStatement(
			func(ctx context.Context, writer wire.DataWriter, _ []wire.Parameter) error {
				return writer.Complete("")
			},
			wire.WithColumns(wire.Columns{}),
		)), nil
	}
	if isPing(query) {
		return staticResult(wire.Columns{{Name: "pong", Oid: pgtype.TextOID}}, []any{"pong"}), nil
	}

	if rewritten := rewriteIntrospection(query, s.cfg.DefaultSchema); rewritten != query {
		s.log.Debug("postgres: rewrote introspection query", "original", query, "rewritten", rewritten)
		query = rewritten
	}

	res, err := s.querier.Query(ctx, query)
	if errors.Is(err, executor.ErrNotSelect) {
		return nil, pgerror.WithCode(errors.New(executor.RejectionMessage), codes.InsufficientPrivilege)
	}
	if err != nil {
		return nil, err
	}

	columns := resultColumns(res)
	return wire.Prepared(wire.NewStatement(
		func(ctx context.Context, writer wire.DataWriter, _ []wire.Parameter) error {
			for _, row := range res.Rows {
				values := make([]any, len(res.Columns))
				for i, name := range res.Columns {
					v, err := encodeValue(row[name], columns[i].Oid)
					if err != nil {
						return fmt.Errorf("failed to encode column %s: %w", name, err)
					}
					values[i] = v
				}
				if err := writer.Row(values); err != nil {
					return err
				}
			}
			return writer.Complete("SELECT " + strconv.Itoa(len(res.Rows)))
		},
		wire.WithColumns(columns),
	)), nil
}

func isPing(query string) bool {
	return strings.ToLower(strings.Join(strings.Fields(query), " ")) == "-- ping"
}

func staticResult(columns wire.Columns, row []any) wire.PreparedStatements {
	return wire.Prepared(wire.NewStatement(
		func(ctx context.Context, writer wire.DataWriter, _ []wire.Parameter) error {
			if err := writer.Row(row); err != nil {
				return err
			}
			return writer.Complete("SELECT 1")
		},
		wire.WithColumns(columns),
	))
}

func resultColumns(res *engine.Result) wire.Columns {
	columns := make(wire.Columns, len(res.Columns))
	for i, name := range res.Columns {
		typ := oid.Oid(pgtype.TextOID)
		if i < len(res.ColumnTypes) {
			typ = typeOID(res.ColumnTypes[i])
		}
		columns[i] = wire.Column{Name: name, Oid: typ}
	}
	return columns
}

// typePrefixes is matched in order, so longer names precede their prefixes.
var typePrefixes = []struct {
	prefix string
	oid    oid.Oid
}{
	{"INTERVAL", pgtype.TextOID},
	{"BOOL", pgtype.BoolOID},
	{"TINYINT", pgtype.Int2OID},
	{"SMALLINT", pgtype.Int2OID},
	{"INT2", pgtype.Int2OID},
	{"BIGINT", pgtype.Int8OID},
	{"INT8", pgtype.Int8OID},
	{"HUGEINT", pgtype.NumericOID},
	{"UBIGINT", pgtype.NumericOID},
	{"UINTEGER", pgtype.Int8OID},
	{"INT", pgtype.Int4OID},
	{"FLOAT8", pgtype.Float8OID},
	{"DOUBLE", pgtype.Float8OID},
	{"FLOAT", pgtype.Float4OID},
	{"REAL", pgtype.Float4OID},
	{"DECIMAL", pgtype.NumericOID},
	{"NUMERIC", pgtype.NumericOID},
	{"VARCHAR", pgtype.TextOID},
	{"STRING", pgtype.TextOID},
	{"TEXT", pgtype.TextOID},
	{"CHAR", pgtype.TextOID},
	{"TIMESTAMPTZ", pgtype.TimestamptzOID},
	{"TIMESTAMP WITH TIME ZONE", pgtype.TimestamptzOID},
	{"DATETIME", pgtype.TimestampOID},
	{"TIMESTAMP", pgtype.TimestampOID},
	{"DATE", pgtype.DateOID},
	{"TIME", pgtype.TimeOID},
	{"BLOB", pgtype.ByteaOID},
	{"BYTEA", pgtype.ByteaOID},
	{"BINARY", pgtype.ByteaOID},
	{"UUID", pgtype.UUIDOID},
	{"JSON", pgtype.JSONOID},
}

// typeOID maps an engine column type name to a Postgres type OID, defaulting to text.
func typeOID(name string) oid.Oid {
	name = strings.ToUpper(strings.TrimSpace(name))
	for _, p := range typePrefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.oid
		}
	}
	return pgtype.TextOID
}

var timeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

func encodeValue(val any, typ oid.Oid) (any, error) {
	if val == nil {
		return nil, nil
	}
	switch typ {
	case pgtype.BoolOID:
		if s, ok := val.(string); ok {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return nil, fmt.Errorf("failed to parse bool: %w", err)
			}
			return b, nil
		}
		return val, nil
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID, pgtype.Float4OID, pgtype.Float8OID:
		return val, nil
	case pgtype.DateOID, pgtype.TimeOID, pgtype.TimestampOID, pgtype.TimestamptzOID:
		if t, ok := val.(time.Time); ok {
			return t, nil
		}
		if s, ok := val.(string); ok {
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t, nil
				}
			}
		}
		return engine.FormatValue(val), nil
	case pgtype.ByteaOID:
		switch v := val.(type) {
		case []byte:
			return v, nil
		case string:
			return []byte(v), nil
		}
		return []byte(engine.FormatValue(val)), nil
	default:
		return engine.FormatValue(val), nil
	}
}

var (
	parseIdentRe = regexp.MustCompile(`parse_ident\s*\(\s*'([^']+)'`)
	quoteIdentRe = regexp.MustCompile(`quote_ident\(table_name\)\s*=\s*'([^']+)'`)
)

// rewriteIntrospection replaces the search_path based table and column listing queries
// that Postgres clients send with equivalents the engine understands.
func rewriteIntrospection(query, schema string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if !strings.Contains(normalized, "search_path") {
		return query
	}

	switch {
	case strings.Contains(normalized, "from information_schema.tables") && strings.Contains(normalized, "case"):
		return fmt.Sprintf(`SELECT table_name AS "table" FROM information_schema.tables WHERE table_schema = '%s' ORDER BY "table"`, escapeLiteral(schema))
	case strings.Contains(normalized, "from information_schema.columns") && strings.Contains(normalized, "parse_ident"):
		table := ""
		if m := parseIdentRe.FindStringSubmatch(query); len(m) > 1 {
			table = m[1]
		} else if m := quoteIdentRe.FindStringSubmatch(normalized); len(m) > 1 {
			table = m[1]
		}
		if table == "" {
			return query
		}
		tableSchema := schema
		if s, t, ok := strings.Cut(table, "."); ok {
			tableSchema, table = s, t
		}
		return fmt.Sprintf(`SELECT column_name AS "column", data_type AS "type" FROM information_schema.columns WHERE table_schema = '%s' AND table_name = '%s' ORDER BY ordinal_position`,
			escapeLiteral(tableSchema), escapeLiteral(table))
	}
	return query
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
