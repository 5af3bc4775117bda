//go:build evals

package evals_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/lakeoracle/oracle/lake/pkg/agent"
	"github.com/lakeoracle/oracle/lake/pkg/agent/prompts"
	"github.com/lakeoracle/oracle/lake/pkg/agent/react"
	"github.com/lakeoracle/oracle/lake/pkg/agent/tools"
	"github.com/lakeoracle/oracle/lake/pkg/engine"
	"github.com/lakeoracle/oracle/lake/pkg/executor"
	"github.com/lakeoracle/oracle/lake/pkg/schema"
	"github.com/stretchr/testify/require"
)

func init() {
	_ = godotenv.Load(".env")
}

// seedStatements builds a small prod_catalog.adtech_db.base table in DuckDB.
var seedStatements = []string{
	"ATTACH ':memory:' AS prod_catalog",
	"CREATE SCHEMA prod_catalog.adtech_db",
	`CREATE TABLE prod_catalog.adtech_db.base (
		entityid VARCHAR,
		isocode VARCHAR,
		provider VARCHAR,
		latitude DOUBLE,
		longitude DOUBLE,
		event_date DATE
	)`,
	`INSERT INTO prod_catalog.adtech_db.base VALUES
		('2E1EF0B6328770FA94ABED6B63FA273A', 'RU', 'pickwell', 52.2290, 104.2380, DATE '2025-01-31'),
		('2E1EF0B6328770FA94ABED6B63FA273A', 'RU', 'pickwell', 52.2291, 104.2379, DATE '2025-02-01'),
		('2E1EF0B6328770FA94ABED6B63FA273A', 'RU', 'adsquare', 52.2300, 104.2400, DATE '2025-01-31'),
		('7C1A00000000000000000000000000AA', 'RU', 'adsquare', 55.7558, 37.6173, DATE '2025-04-13'),
		('7C1A00000000000000000000000000BB', 'RU', 'veraset', 55.7559, 37.6170, DATE '2025-04-13'),
		('7C1A00000000000000000000000000CC', 'UA', 'pickwell', 50.4501, 30.5234, DATE '2025-04-13')`,
}

func testLogger(t *testing.T) *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func testEngine(t *testing.T) engine.Engine {
	ctx := context.Background()
	eng, err := engine.New(ctx, engine.Config{Logger: testLogger(t), Driver: engine.DriverDuckDB})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })

	for _, stmt := range seedStatements {
		_, err := eng.Query(ctx, stmt)
		require.NoError(t, err, "failed to seed: %s", stmt)
	}
	return eng
}

// modelID picks the model under evaluation, skipping the test when its provider has no credentials.
func modelID(t *testing.T) string {
	id := os.Getenv("EVAL_MODEL")
	if id == "" {
		id = "claude-haiku-4-5"
	}
	spec := agent.ResolveModel(id)
	switch spec.Provider {
	case agent.ProviderAnthropic:
		if os.Getenv("ANTHROPIC_API_KEY") == "" {
			t.Skip("ANTHROPIC_API_KEY not set, skipping eval test")
		}
	case agent.ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			t.Skip("OPENAI_API_KEY not set, skipping eval test")
		}
	}
	return id
}

// debugToolClient logs every tool call and result.
type debugToolClient struct {
	react.ToolClient
	t *testing.T
}

func (d *debugToolClient) CallToolText(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	argsJSON, _ := json.Marshal(args)
	d.t.Logf("tool call: %s %s", name, argsJSON)
	out, isErr, err := d.ToolClient.CallToolText(ctx, name, args)
	d.t.Logf("tool result (error=%v): %s", isErr, truncate(out, 300))
	return out, isErr, err
}

func setupAgent(t *testing.T, allTools bool) *agent.Agent {
	log := testLogger(t)
	eng := testEngine(t)

	exec, err := executor.New(executor.Config{Logger: log, Engine: eng})
	require.NoError(t, err)
	insp, err := schema.New(schema.Config{Logger: log, Engine: eng, Dialect: schema.DuckDB{}})
	require.NoError(t, err)
	registry, err := tools.NewRegistry(tools.Config{Logger: log, Executor: exec, Inspector: insp, AllTools: allTools})
	require.NoError(t, err)

	spec := agent.ResolveModel(modelID(t))
	llm, err := agent.NewLLMClient(spec, agent.LLMOptions{
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OllamaBaseURL:   os.Getenv("OLLAMA_URL"),
	})
	require.NoError(t, err)

	env := prompts.DefaultEnvironment()
	env.Engine = "DuckDB SQL"
	env.CatalogService = "a DuckDB catalog"

	a, err := agent.NewAgent(&agent.Config{
		Logger:      log,
		LLM:         llm,
		Tools:       &debugToolClient{ToolClient: registry, t: t},
		Model:       spec,
		Environment: env,
		MaxSteps:    8,
	})
	require.NoError(t, err)
	return a
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func containsAny(s string, subs ...string) bool {
	s = strings.ToLower(s)
	for _, sub := range subs {
		if strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}
