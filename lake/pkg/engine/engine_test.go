package engine

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lakeoracle/oracle/lake/pkg/duck"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return testLog
}

func TestLake_Engine_ParseDriver(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]Driver{
		"duckdb":     DriverDuckDB,
		"postgres":   DriverPostgres,
		"postgresql": DriverPostgres,
		"pgx":        DriverPostgres,
		"clickhouse": DriverClickHouse,
	} {
		got, err := ParseDriver(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := ParseDriver("spark")
	require.EqualError(t, err, `unknown engine driver "spark" (want duckdb, postgres or clickhouse)`)
}

func TestLake_Engine_ConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := Config{Logger: testLogger(t), Driver: DriverDuckDB}
	require.NoError(t, cfg.Validate())
	require.Equal(t, 1, cfg.MaxOpenConns)
	require.NotNil(t, cfg.ConnectRetry)

	cfg = Config{Logger: testLogger(t), Driver: DriverPostgres}
	require.EqualError(t, cfg.Validate(), "dsn is required")

	cfg = Config{Driver: DriverDuckDB}
	require.EqualError(t, cfg.Validate(), "logger is required")

	cfg = Config{Logger: testLogger(t)}
	require.EqualError(t, cfg.Validate(), "driver is required")
}

func TestLake_Engine_ClickHouseBadDSN(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Logger: testLogger(t), Driver: DriverClickHouse, DSN: "://nope"})
	require.ErrorContains(t, err, "failed to parse clickhouse dsn")
}

func TestLake_Engine_DuckDB(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := duck.NewDB(ctx, "", testLogger(t))
	require.NoError(t, err)

	eng, err := New(ctx, Config{Logger: testLogger(t), Driver: DriverDuckDB, DuckDB: db})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	require.Equal(t, DriverDuckDB, eng.Driver())
	require.NoError(t, eng.Ping(ctx))

	conn, err := db.Conn(ctx)
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "CREATE TABLE base (isocode VARCHAR, impressions BIGINT, payload BLOB)")
	require.NoError(t, err)
	_, err = conn.ExecContext(ctx, "INSERT INTO base VALUES ('RU', 10, 'abc'::BLOB), ('US', NULL, NULL)")
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	t.Run("materializes rows and types", func(t *testing.T) {
		t.Parallel()
		res, err := eng.Query(ctx, "SELECT isocode, impressions, payload FROM base ORDER BY isocode")
		require.NoError(t, err)
		require.Equal(t, []string{"isocode", "impressions", "payload"}, res.Columns)
		require.Equal(t, []string{"VARCHAR", "BIGINT", "BLOB"}, res.ColumnTypes)
		require.Equal(t, 2, res.Count)
		require.Equal(t, Row{"isocode": "RU", "impressions": int64(10), "payload": "abc"}, res.Rows[0])
		require.Nil(t, res.Rows[1]["impressions"])
	})

	t.Run("empty result has no rows", func(t *testing.T) {
		t.Parallel()
		res, err := eng.Query(ctx, "SELECT * FROM base WHERE false")
		require.NoError(t, err)
		require.Equal(t, 0, res.Count)
		require.Empty(t, res.Rows)
	})

	t.Run("query errors are wrapped", func(t *testing.T) {
		t.Parallel()
		_, err := eng.Query(ctx, "SELECT * FROM missing_table")
		require.ErrorContains(t, err, "failed to execute query")
	})

	t.Run("args are bound", func(t *testing.T) {
		t.Parallel()
		res, err := eng.Query(ctx, "SELECT count(*) AS n FROM base WHERE isocode = ?", "RU")
		require.NoError(t, err)
		require.Equal(t, int64(1), res.Rows[0]["n"])
	})
}
