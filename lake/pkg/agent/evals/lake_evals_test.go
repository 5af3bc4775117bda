//go:build evals

package evals_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/lakeoracle/oracle/lake/pkg/agent"
	"github.com/lakeoracle/oracle/lake/pkg/agent/tools"
	"github.com/stretchr/testify/require"
)

func TestLake_Agent_Evals_EntityExists(t *testing.T) {
	t.Parallel()

	a := setupAgent(t, false)
	query, err := agent.Example(1)
	require.NoError(t, err)

	var out bytes.Buffer
	result, err := a.Ask(context.Background(), query, &out)
	require.NoError(t, err)
	t.Logf("answer:\n%s", result.FinalText)

	require.Contains(t, result.ToolsUsed, tools.QueryTool)
	require.True(t, containsAny(result.FinalText, "yes", "exists", "found"), result.FinalText)
}

func TestLake_Agent_Evals_RecordCount(t *testing.T) {
	t.Parallel()

	a := setupAgent(t, false)
	query, err := agent.Example(2)
	require.NoError(t, err)

	result, err := a.Ask(context.Background(), query, nil)
	require.NoError(t, err)
	t.Logf("answer:\n%s", result.FinalText)

	require.Contains(t, result.FinalText, "3")
}

func TestLake_Agent_Evals_UniqueProviders(t *testing.T) {
	t.Parallel()

	a := setupAgent(t, true)
	query, err := agent.Example(4)
	require.NoError(t, err)

	result, err := a.Ask(context.Background(), query, nil)
	require.NoError(t, err)
	t.Logf("answer:\n%s", result.FinalText)

	require.True(t, containsAny(result.FinalText, "adsquare"), result.FinalText)
	require.True(t, containsAny(result.FinalText, "veraset"), result.FinalText)
	require.False(t, containsAny(result.FinalText, "pickwell"), "pickwell only appears outside RU on that date: %s", result.FinalText)
}

func TestLake_Agent_Evals_MissingTableIsAnError(t *testing.T) {
	t.Parallel()

	a := setupAgent(t, false)
	result, err := a.Ask(context.Background(), "how many rows were loaded yesterday?", nil)
	require.NoError(t, err)
	t.Logf("answer:\n%s", result.FinalText)

	require.Contains(t, result.FinalText, "ERROR ::")
}
