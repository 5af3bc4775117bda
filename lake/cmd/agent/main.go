package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/lakeoracle/oracle/lake/pkg/agent"
	"github.com/lakeoracle/oracle/lake/pkg/agent/prompts"
	"github.com/lakeoracle/oracle/lake/pkg/agent/react"
	"github.com/lakeoracle/oracle/lake/pkg/agent/tools"
	"github.com/lakeoracle/oracle/lake/pkg/engine"
	"github.com/lakeoracle/oracle/lake/pkg/executor"
	"github.com/lakeoracle/oracle/lake/pkg/logger"
	"github.com/lakeoracle/oracle/lake/pkg/schema"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// engineNone disables the local tool registry so only remote MCP tools are offered.
const engineNone = "none"

type options struct {
	verbose          bool
	model            string
	apiBase          string
	engine           string
	dsn              string
	dialect          string
	mcpURL           string
	mcpToken         string
	maxSteps         int
	planningInterval int
	maxContextTokens int
	allTools         bool
	example          int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	_ = godotenv.Load()

	var opts options
	cmd := &cobra.Command{
		Use:   "agent [query]",
		Short: "Answer natural-language questions about the data lake",
		Long: `agent runs a plan/act/observe loop in which a language model explores the
data lake through read-only metadata and SELECT tools, then prints its final answer.
Without a query argument the example selected by --example is asked.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, query)
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose (debug) logging")
	f.StringVar(&opts.model, "model", envOr("AGENT_MODEL", agent.DefaultModelID), "model identifier (or set AGENT_MODEL)")
	f.StringVar(&opts.apiBase, "api-base", envOr("OLLAMA_API_BASE", react.DefaultOllamaBaseURL), "base URL of the local model server (or set OLLAMA_API_BASE)")
	f.StringVar(&opts.engine, "engine", envOr("LAKE_ENGINE", string(engine.DriverDuckDB)), "engine driver: duckdb, postgres, clickhouse or none (or set LAKE_ENGINE)")
	f.StringVar(&opts.dsn, "dsn", os.Getenv("LAKE_DSN"), "engine DSN; a DuckDB path or empty for in-memory (or set LAKE_DSN)")
	f.StringVar(&opts.dialect, "dialect", os.Getenv("LAKE_DIALECT"), "metadata dialect: spark, ansi, duckdb or clickhouse; defaults from the engine (or set LAKE_DIALECT)")
	f.StringVar(&opts.mcpURL, "mcp-url", os.Getenv("MCP_URL"), "remote MCP endpoint whose tools are added to the local ones (or set MCP_URL)")
	f.StringVar(&opts.mcpToken, "mcp-token", os.Getenv("MCP_TOKEN"), "bearer token for the remote MCP endpoint (or set MCP_TOKEN)")
	f.IntVar(&opts.maxSteps, "max-steps", 5, "maximum act/observe steps")
	f.IntVar(&opts.planningInterval, "planning-interval", 3, "request a plan every N steps; negative disables planning")
	f.IntVar(&opts.maxContextTokens, "max-context-tokens", 0, "compact older tool results above this estimated token count (0 uses the default)")
	f.BoolVar(&opts.allTools, "all-tools", false, "enable every lake tool instead of the default four")
	f.IntVar(&opts.example, "example", 1, fmt.Sprintf("example query to ask when no query is given (1-%d)", len(agent.ExampleQueries)))

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "agent %s (commit: %s, built: %s)\n", version, commit, date)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "examples",
		Short: "List the example queries",
		Run: func(cmd *cobra.Command, _ []string) {
			for i, q := range agent.ExampleQueries {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, q)
			}
		},
	})
	return cmd
}

func run(ctx context.Context, opts options, query string) error {
	log := logger.New(opts.verbose)

	if strings.TrimSpace(query) == "" {
		q, err := agent.Example(opts.example)
		if err != nil {
			return err
		}
		query = q
	}

	env := prompts.DefaultEnvironment()
	var clients []react.ToolClient

	if opts.engine != engineNone {
		registry, closeEngine, dialect, err := newRegistry(ctx, log, opts)
		if err != nil {
			return err
		}
		defer closeEngine()
		env.Engine = engineLabel(dialect)
		clients = append(clients, registry)
	}

	if opts.mcpURL != "" {
		remote, err := tools.NewMCPToolClient(ctx, tools.MCPConfig{Logger: log, Endpoint: opts.mcpURL, Token: opts.mcpToken})
		if err != nil {
			return err
		}
		defer remote.Close()
		clients = append(clients, remote)
	}

	if len(clients) == 0 {
		return errors.New("no tools configured: set --engine or --mcp-url")
	}
	toolClient, err := tools.NewMultiToolClient(ctx, clients...)
	if err != nil {
		return err
	}

	spec := agent.ResolveModel(opts.model)
	llm, err := agent.NewLLMClient(spec, agent.LLMOptions{
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicBaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
		OllamaBaseURL:    opts.apiBase,
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM client: %w", err)
	}

	a, err := agent.NewAgent(&agent.Config{
		Logger:           log,
		LLM:              llm,
		Tools:            toolClient,
		Model:            spec,
		Environment:      env,
		MaxSteps:         opts.maxSteps,
		PlanningInterval: opts.planningInterval,
		MaxContextTokens: opts.maxContextTokens,
	})
	if err != nil {
		return err
	}

	log.Info("agent: starting", "model", spec.ID, "provider", spec.Provider, "query", query)
	result, err := a.Ask(ctx, query, os.Stdout)
	if err != nil {
		return err
	}
	log.Info("agent: finished", "steps", result.Steps, "tool_calls", result.ToolCalls, "tools_used", result.ToolsUsed, "exhausted", result.Exhausted)
	return nil
}

// newRegistry opens the engine and builds the lake tool registry over it.
func newRegistry(ctx context.Context, log *slog.Logger, opts options) (*tools.Registry, func(), schema.Dialect, error) {
	driver, err := engine.ParseDriver(opts.engine)
	if err != nil {
		return nil, nil, nil, err
	}
	eng, err := engine.New(ctx, engine.Config{Logger: log, Driver: driver, DSN: opts.dsn})
	if err != nil {
		return nil, nil, nil, err
	}
	closeEngine := func() {
		if err := eng.Close(); err != nil {
			log.Error("agent: failed to close engine", "error", err)
		}
	}

	var dialect schema.Dialect
	if opts.dialect != "" {
		if dialect, err = schema.ParseDialect(opts.dialect); err != nil {
			closeEngine()
			return nil, nil, nil, err
		}
	}

	exec, err := executor.New(executor.Config{Logger: log, Engine: eng})
	if err != nil {
		closeEngine()
		return nil, nil, nil, err
	}
	inspector, err := schema.New(schema.Config{Logger: log, Engine: eng, Dialect: dialect})
	if err != nil {
		closeEngine()
		return nil, nil, nil, err
	}
	registry, err := tools.NewRegistry(tools.Config{Logger: log, Executor: exec, Inspector: inspector, AllTools: opts.allTools})
	if err != nil {
		closeEngine()
		return nil, nil, nil, err
	}
	return registry, closeEngine, inspector.Dialect(), nil
}

// engineLabel names the SQL flavour the prompt tells the model to write.
func engineLabel(d schema.Dialect) string {
	switch d.Name() {
	case schema.DialectDuckDB:
		return "DuckDB"
	case schema.DialectClickHouse:
		return "ClickHouse"
	case schema.DialectANSI:
		return "PostgreSQL"
	}
	return prompts.DefaultEnvironment().Engine
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
