package tools

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lakeoracle/oracle/lake/pkg/mcp/server"
)

func TestLake_Tools_MCPToolClient_RoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	exec := &fakeExecutor{}
	registry := newTestRegistry(t, exec, &fakeInspector{}, false)
	srv, err := server.New(server.Config{Logger: testLogger(t), Tools: registry, AllowedTokens: []string{"tok"}})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	client, err := NewMCPToolClient(ctx, MCPConfig{Logger: testLogger(t), Endpoint: ts.URL, Token: "tok"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	tools, err := client.ListTools(ctx)
	require.NoError(t, err)
	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		require.Equal(t, "object", tool.InputSchema["type"])
	}
	require.ElementsMatch(t, DefaultTools, names)

	out, isErr, err := client.CallToolText(ctx, QueryTool, map[string]any{"query": "select 1", "max_rows": 3})
	require.NoError(t, err)
	require.False(t, isErr)
	require.Equal(t, "n\n1\n(1 rows)", out)
	_, maxRows := exec.last()
	require.Equal(t, 3, maxRows)

	out, isErr, err = client.CallToolText(ctx, ListDatabasesTool, map[string]any{"catalog_name": "prod_catalog"})
	require.NoError(t, err)
	require.False(t, isErr)
	require.JSONEq(t, `["adtech_db","orbat_db"]`, out)
}

func TestLake_Tools_MCPConfig_Validate(t *testing.T) {
	t.Parallel()

	require.ErrorContains(t, (&MCPConfig{Endpoint: "http://x"}).Validate(), "logger is required")
	require.ErrorContains(t, (&MCPConfig{Logger: testLogger(t)}).Validate(), "endpoint is required")

	cfg := MCPConfig{Logger: testLogger(t), Endpoint: "http://x"}
	require.NoError(t, cfg.Validate())
	require.Equal(t, defaultMCPRequestTimeout, cfg.RequestTimeout)
	require.NotNil(t, cfg.Retry)
}

func TestLake_Tools_IsConnectionError(t *testing.T) {
	t.Parallel()

	require.False(t, isConnectionError(nil))
	require.True(t, isConnectionError(errContains("unexpected EOF")))
	require.True(t, isConnectionError(errContains("write: broken pipe")))
	require.False(t, isConnectionError(errContains("tool not found")))
}

type errContains string

func (e errContains) Error() string { return string(e) }
