package duck

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()
	return testLog
}

// testDB opens an in-memory database closed at test cleanup.
func testDB(t *testing.T) DB {
	t.Helper()
	db, err := NewDB(context.Background(), "", testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}
