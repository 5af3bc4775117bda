package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/lakeoracle/oracle/lake/pkg/agent/prompts"
	"github.com/lakeoracle/oracle/lake/pkg/agent/react"
)

const noThinkDirective = "/no_think"

// ExampleQueries are the canned questions the CLI can run with --example.
var ExampleQueries = []string{
	"does EntityId='2E1EF0B6328770FA94ABED6B63FA273A' exist in prod_catalog.adtech_db.base on Jan 31st 2025 to Feb 1st 2025, for isocode = 'RU' ??",
	"How many records for EntityId='2E1EF0B6328770FA94ABED6B63FA273A' exist in prod_catalog.adtech_db.base on Jan 31st 2025 to Feb 1st 2025, for isocode = 'RU' ??",
	"I would like to know how many unique EntityId were within 10km of the following latitude and longitude 52.22862088327653, 104.23769255915738 on Jan 31st 2025 in isocode RU.\nuse prod_catalog.adtech_db.base table.",
	"what unique values do we have for the 'provider' field in prod_catalog.adtech_db.base table on April 13th 2025 in isocode RU.?",
	"Explain the data drop in the 3rd week of Jan 2025 for pickwell provider in prod_catalog.adtech_db.base table.",
}

// Example returns the 1-based example query n.
func Example(n int) (string, error) {
	if n < 1 || n > len(ExampleQueries) {
		return "", fmt.Errorf("example must be between 1 and %d, got %d", len(ExampleQueries), n)
	}
	return ExampleQueries[n-1], nil
}

type Config struct {
	Logger *slog.Logger
	LLM    react.LLMClient
	Tools  react.ToolClient
	Model  ModelSpec

	// Environment defaults to prompts.DefaultEnvironment when Engine is empty.
	Environment prompts.Environment
	Prompts     *prompts.Prompts

	MaxSteps         int
	PlanningInterval int
	MaxContextTokens int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.LLM == nil {
		return errors.New("LLM is required")
	}
	if cfg.Tools == nil {
		return errors.New("tools are required")
	}
	if cfg.Environment.Engine == "" {
		cfg.Environment = prompts.DefaultEnvironment()
	}
	if cfg.Prompts == nil {
		p, err := prompts.Load()
		if err != nil {
			return fmt.Errorf("failed to load prompts: %w", err)
		}
		cfg.Prompts = p
	}
	return nil
}

// Agent wraps react.Agent with the lake persona, environment and SQL rules.
type Agent struct {
	log   *slog.Logger
	cfg   *Config
	react *react.Agent
}

func NewAgent(cfg *Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ra, err := react.NewAgent(&react.Config{
		Logger:             cfg.Logger,
		LLM:                cfg.LLM,
		ToolClient:         cfg.Tools,
		MaxSteps:           cfg.MaxSteps,
		PlanningInterval:   cfg.PlanningInterval,
		MaxContextTokens:   cfg.MaxContextTokens,
		PlanningPrompt:     cfg.Prompts.Planning,
		FinalizationPrompt: cfg.Prompts.Finalization,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create react agent: %w", err)
	}
	return &Agent{log: cfg.Logger, cfg: cfg, react: ra}, nil
}

// Prompt renders the full prompt sent for query.
func (a *Agent) Prompt(query string) (string, error) {
	directive := ""
	if a.cfg.Model.DisablesThinking() {
		directive = noThinkDirective
	}
	return a.cfg.Prompts.BuildQueryPrompt(a.cfg.Environment, directive, query)
}

// Ask answers query and writes the final answer to output.
func (a *Agent) Ask(ctx context.Context, query string, output io.Writer) (*react.RunResult, error) {
	prompt, err := a.Prompt(query)
	if err != nil {
		return nil, fmt.Errorf("failed to build prompt: %w", err)
	}
	a.log.Info("agent: asking", "model", a.cfg.Model.ID, "provider", a.cfg.Model.Provider)
	return a.react.RunQuery(ctx, prompt, output)
}
