package logger

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLake_Logger_FormatRFC3339Millis(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 1, 31, 12, 30, 45, 123_456_789, time.FixedZone("X", 3600))
	require.Equal(t, "2025-01-31T11:30:45.123Z", formatRFC3339Millis(ts))
}

func TestLake_Logger_NewWithWriter(t *testing.T) {
	t.Parallel()

	t.Run("drops empty string attrs", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := NewWithWriter(&buf, false)
		log.Info("hello", "empty", "", "kept", "value")

		out := buf.String()
		require.Contains(t, out, "hello")
		require.Contains(t, out, "kept")
		require.NotContains(t, out, "empty")
	})

	t.Run("debug only when verbose", func(t *testing.T) {
		t.Parallel()

		var quiet, loud bytes.Buffer
		NewWithWriter(&quiet, false).Debug("hidden")
		NewWithWriter(&loud, true).Debug("shown")

		require.Empty(t, quiet.String())
		require.Contains(t, loud.String(), "shown")
	})
}
