package prompts_test

import (
	"strings"
	"testing"

	"github.com/lakeoracle/oracle/lake/pkg/agent/prompts"
	"github.com/stretchr/testify/require"
)

func TestPrompts_Load(t *testing.T) {
	t.Parallel()

	p, err := prompts.Load()
	require.NoError(t, err)
	require.NotNil(t, p.Role)
	require.NotNil(t, p.Environment)
	require.NotNil(t, p.Rules)
	require.Contains(t, p.Planning, "plan")
	require.Contains(t, p.Finalization, "Do not call any more tools")
}

func TestPrompts_BuildQueryPrompt(t *testing.T) {
	t.Parallel()

	p, err := prompts.Load()
	require.NoError(t, err)

	t.Run("default environment", func(t *testing.T) {
		t.Parallel()
		out, err := p.BuildQueryPrompt(prompts.DefaultEnvironment(), "", "  how many rows?  ")
		require.NoError(t, err)

		require.True(t, strings.HasPrefix(out, "Persona"))
		require.True(t, strings.HasSuffix(out, "QUERY :: how many rows?"))
		require.Contains(t, out, "Spark SQL environment querying an AWS Glue catalog")
		require.Contains(t, out, "- default catalog is 'prod_catalog'")
		require.Contains(t, out, "- default database is 'adtech_db'")
		require.Contains(t, out, "- default table is 'base'")
		require.Contains(t, out, "catalog_name == 'prod_catalog' or 'test_catalog'")
		require.Contains(t, out, "database_name == 'adtech_db' or 'orbat_db'")
		require.Contains(t, out, "ERROR :: Brief description of error!")
		require.Contains(t, out, "Haversine")
		require.Contains(t, out, "case-insensitive")

		persona := strings.Index(out, "Persona")
		env := strings.Index(out, "DB Environment")
		rules := strings.Index(out, "SQL Query Rules")
		require.Less(t, persona, env)
		require.Less(t, env, rules)
	})

	t.Run("directive goes first", func(t *testing.T) {
		t.Parallel()
		out, err := p.BuildQueryPrompt(prompts.DefaultEnvironment(), "/no_think", "q")
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(out, "/no_think\n"))
	})

	t.Run("custom environment", func(t *testing.T) {
		t.Parallel()
		env := prompts.Environment{
			Engine:          "DuckDB SQL",
			CatalogService:  "a DuckLake catalog",
			DefaultCatalog:  "lake",
			DefaultDatabase: "main",
			DefaultTable:    "events",
			SearchCatalogs:  []string{"lake"},
			SearchDatabases: []string{"main"},
		}
		out, err := p.BuildQueryPrompt(env, "", "q")
		require.NoError(t, err)
		require.Contains(t, out, "Use DuckDB SQL syntax for all queries.")
		require.Contains(t, out, "catalog_name == 'lake'\n")
		require.NotContains(t, out, "prod_catalog")
	})
}
