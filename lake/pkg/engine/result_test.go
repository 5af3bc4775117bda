package engine

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLake_Engine_FormatValue(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 1, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	require.Equal(t, "NULL", FormatValue(nil))
	require.Equal(t, "abc", FormatValue("abc"))
	require.Equal(t, "abc", FormatValue([]byte("abc")))
	require.Equal(t, "42", FormatValue(int64(42)))
	require.Equal(t, "1.5", FormatValue(1.5))
	require.Equal(t, "2025-01-01T11:00:00Z", FormatValue(ts))
}

func TestLake_Engine_FormatTable(t *testing.T) {
	t.Parallel()

	t.Run("rows render under headers", func(t *testing.T) {
		t.Parallel()
		res := &Result{
			Columns: []string{"isocode", "impressions"},
			Rows: []Row{
				{"isocode": "RU", "impressions": int64(120)},
				{"isocode": "US", "impressions": nil},
			},
			Count: 2,
		}
		out := FormatTable(res)
		lines := strings.Split(out, "\n")
		require.Contains(t, lines[1], "isocode")
		require.Contains(t, lines[1], "impressions")
		require.Contains(t, out, "RU")
		require.Contains(t, out, "120")
		require.Contains(t, out, "NULL")
		require.True(t, strings.HasSuffix(out, "(2 rows)"))
	})

	t.Run("headers keep their case", func(t *testing.T) {
		t.Parallel()
		out := FormatTable(&Result{Columns: []string{"col_name"}, Rows: []Row{}})
		require.Contains(t, out, "col_name")
		require.NotContains(t, out, "COL NAME")
		require.True(t, strings.HasSuffix(out, "(0 rows)"))
	})

	t.Run("no columns", func(t *testing.T) {
		t.Parallel()
		require.Equal(t, "(no columns)", FormatTable(&Result{}))
	})
}

func TestLake_Engine_ResultColumn(t *testing.T) {
	t.Parallel()

	res := &Result{
		Columns: []string{"namespace", "tableName"},
		Rows: []Row{
			{"namespace": "adtech_db", "tableName": "base"},
			{"namespace": "adtech_db", "tableName": "daily"},
		},
		Count: 2,
	}
	require.Equal(t, []string{"base", "daily"}, res.Strings(1))
	require.Equal(t, []any{"adtech_db", "adtech_db"}, res.Column(0))
	require.Nil(t, res.Column(2))
}
