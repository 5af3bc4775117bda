package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/lakeoracle/oracle/lake/pkg/agent/react"
	"github.com/lakeoracle/oracle/lake/pkg/metrics"
	"github.com/lakeoracle/oracle/lake/pkg/schema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

var ErrUnknownTool = errors.New("unknown tool")

type Config struct {
	Logger    *slog.Logger
	Executor  Executor
	Inspector Inspector

	// AllTools enables every tool instead of DefaultTools.
	AllTools bool
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Executor == nil {
		return errors.New("executor is required")
	}
	if cfg.Inspector == nil {
		return errors.New("inspector is required")
	}
	return nil
}

// Registry is the fixed set of lake tools. It implements react.ToolClient.
type Registry struct {
	log   *slog.Logger
	defs  []*Definition
	index map[string]*Definition
}

func NewRegistry(cfg Config) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate tools config: %w", err)
	}
	all, err := lakeTools(cfg.Executor, cfg.Inspector)
	if err != nil {
		return nil, err
	}

	r := &Registry{log: cfg.Logger, index: make(map[string]*Definition)}
	for _, d := range all {
		if !cfg.AllTools && !slices.Contains(DefaultTools, d.Name) {
			continue
		}
		if d.Name == TableHistoryTool && !supportsHistory(cfg.Inspector) {
			continue
		}
		r.defs = append(r.defs, d)
		r.index[d.Name] = d
	}
	return r, nil
}

// supportsHistory reports whether the inspector's dialect can read snapshot history.
func supportsHistory(insp Inspector) bool {
	d, ok := insp.(interface{ Dialect() schema.Dialect })
	if !ok {
		return true
	}
	_, err := d.Dialect().TableHistory("t", 1)
	return err == nil
}

func (r *Registry) Names() []string {
	names := make([]string, len(r.defs))
	for i, d := range r.defs {
		names[i] = d.Name
	}
	return names
}

func (r *Registry) ListTools(_ context.Context) ([]react.Tool, error) {
	out := make([]react.Tool, 0, len(r.defs))
	for _, d := range r.defs {
		t, err := d.ReactTool()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// CallToolText runs one tool. Tool failures come back as isError text so the model
// can react; only an unknown tool name is returned as an error.
func (r *Registry) CallToolText(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	d, ok := r.index[name]
	if !ok {
		metrics.ToolCallsTotal.WithLabelValues("unknown", "error").Inc()
		return "", true, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	start := time.Now()
	out, err := d.call(ctx, args)
	metrics.ToolCallDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ToolCallsTotal.WithLabelValues(name, "error").Inc()
		r.log.Warn("tools: call failed", "tool", name, "error", err)
		return err.Error(), true, nil
	}
	metrics.ToolCallsTotal.WithLabelValues(name, "success").Inc()
	r.log.Debug("tools: call succeeded", "tool", name, "chars", len(out))
	return out, false, nil
}

// RegisterMCP adds every enabled tool to an MCP server, routed through CallToolText.
func (r *Registry) RegisterMCP(server *mcp.Server) {
	handle := func(ctx context.Context, name string, args map[string]any) (string, bool) {
		out, isErr, err := r.CallToolText(ctx, name, args)
		if err != nil {
			return err.Error(), true
		}
		return out, isErr
	}
	for _, d := range r.defs {
		d.register(server, handle)
	}
}
