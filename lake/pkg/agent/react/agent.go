package react

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/lakeoracle/oracle/lake/pkg/metrics"
)

const (
	defaultMaxSteps         = 5
	defaultPlanningInterval = 3
	defaultMaxContextTokens = 20000

	DefaultPlanningPrompt = `Before acting, review the task and what you have learned so far.
Write a short numbered plan of the next steps you will take to answer the question.
List the facts you already know and the facts you still need to look up.
Do not call any tools in this reply.`

	DefaultFinalizationPrompt = `You have used all available steps. Do not call any more tools.
Give your best final answer to the original question now, based only on the results you already have.`
)

type Config struct {
	Logger     *slog.Logger
	LLM        LLMClient
	ToolClient ToolClient

	// MaxSteps bounds act/observe cycles.
	MaxSteps int
	// PlanningInterval requests a plan on step 1 and every N steps after.
	// Zero means the default; negative disables planning.
	PlanningInterval int
	MaxContextTokens int

	PlanningPrompt     string
	FinalizationPrompt string
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.LLM == nil {
		return errors.New("LLM is required")
	}
	if cfg.ToolClient == nil {
		return errors.New("tool client is required")
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	if cfg.MaxSteps < 0 {
		return errors.New("max steps must be greater than 0")
	}
	if cfg.PlanningInterval == 0 {
		cfg.PlanningInterval = defaultPlanningInterval
	}
	if cfg.MaxContextTokens == 0 {
		cfg.MaxContextTokens = defaultMaxContextTokens
	}
	if cfg.MaxContextTokens < 0 {
		return errors.New("max context tokens must be greater than 0")
	}
	if cfg.PlanningPrompt == "" {
		cfg.PlanningPrompt = DefaultPlanningPrompt
	}
	if cfg.FinalizationPrompt == "" {
		cfg.FinalizationPrompt = DefaultFinalizationPrompt
	}
	return nil
}

// Agent runs a bounded plan/act/observe loop around an LLM and a tool client.
type Agent struct {
	log *slog.Logger
	cfg *Config
}

func NewAgent(cfg *Config) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Agent{log: cfg.Logger, cfg: cfg}, nil
}

// run tracks the state of one Run call.
type run struct {
	msgs      []Message
	full      []Message
	toolsUsed map[string]struct{}
	result    RunResult
}

func (r *run) append(msgs ...Message) {
	r.msgs = append(r.msgs, msgs...)
	r.full = append(r.full, msgs...)
}

func (a *Agent) enter(r *run, s State, step int) {
	r.result.States = append(r.result.States, s)
	metrics.AgentStepsTotal.WithLabelValues(string(s)).Inc()
	a.log.Info("react: state", "state", s, "step", step, "max_steps", a.cfg.MaxSteps)
}

// RunQuery runs the loop for a single user prompt.
func (a *Agent) RunQuery(ctx context.Context, prompt string, output io.Writer) (*RunResult, error) {
	return a.Run(ctx, []Message{a.cfg.LLM.CreateUserMessage(prompt)}, output)
}

// Run executes the loop until the model answers without tools or the step budget is spent.
// Tool calls within a step run sequentially in the order the model requested them.
func (a *Agent) Run(ctx context.Context, initialMessages []Message, output io.Writer) (*RunResult, error) {
	r := &run{toolsUsed: make(map[string]struct{})}
	r.append(initialMessages...)

	tools, err := a.cfg.ToolClient.ListTools(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	for step := 1; step <= a.cfg.MaxSteps; step++ {
		if a.planningDue(step) {
			a.enter(r, StatePlanning, step)
			if err := a.plan(ctx, r, step); err != nil {
				return nil, err
			}
		}

		a.compact(ctx, r, tools, step)

		a.enter(r, StateActing, step)
		response, err := a.cfg.LLM.Call(ctx, r.msgs, tools)
		if err != nil {
			metrics.AgentRunsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to get response: %w", err)
		}
		r.append(response.ToMessage())

		toolUses := extractToolUses(response.Content())
		if len(toolUses) == 0 {
			a.log.Info("react: no tool calls, returning final response", "step", step)
			return a.finish(r, response, output, false), nil
		}

		r.result.Steps = step
		toolResults := a.executeTools(ctx, r, toolUses)

		a.enter(r, StateObserving, step)
		resultMsgs, err := a.cfg.LLM.ConvertToolResults(toolUses, toolResults)
		if err != nil {
			return nil, fmt.Errorf("failed to convert tool results: %w", err)
		}
		r.append(resultMsgs...)
	}

	// Budget spent: ask once more without tools and take whatever comes back.
	a.log.Info("react: step budget exhausted, requesting final answer", "max_steps", a.cfg.MaxSteps)
	r.append(a.cfg.LLM.CreateUserMessage(a.cfg.FinalizationPrompt))
	response, err := a.cfg.LLM.Call(ctx, r.msgs, nil)
	if err != nil {
		metrics.AgentRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to get final response: %w", err)
	}
	r.append(response.ToMessage())
	return a.finish(r, response, output, true), nil
}

func (a *Agent) planningDue(step int) bool {
	n := a.cfg.PlanningInterval
	return n > 0 && (step-1)%n == 0
}

// plan asks for an updated plan without tools and records it as context for the next call.
func (a *Agent) plan(ctx context.Context, r *run, step int) error {
	req := append(append([]Message(nil), r.msgs...), a.cfg.LLM.CreateUserMessage(a.cfg.PlanningPrompt))
	response, err := a.cfg.LLM.Call(ctx, req, nil)
	if err != nil {
		return fmt.Errorf("failed to get plan: %w", err)
	}
	plan := responseText(response)
	if plan == "" {
		a.log.Warn("react: empty plan", "step", step)
		return nil
	}
	a.log.Debug("react: plan", "step", step, "plan", plan)
	r.append(a.cfg.LLM.CreateUserMessage("[Current plan]:\n" + plan + "\n\nNow continue with the next step of the plan."))
	return nil
}

func (a *Agent) finish(r *run, response Response, output io.Writer, exhausted bool) *RunResult {
	text := responseText(response)
	if output != nil {
		fmt.Fprintln(output, text)
	}
	a.enter(r, StateDone, r.result.Steps)

	outcome := "answered"
	if exhausted {
		outcome = "exhausted"
	}
	metrics.AgentRunsTotal.WithLabelValues(outcome).Inc()

	r.result.FinalText = text
	r.result.FullConversation = r.full
	r.result.ToolsUsed = sortedKeys(r.toolsUsed)
	r.result.Exhausted = exhausted
	return &r.result
}

func (a *Agent) executeTools(ctx context.Context, r *run, toolUses []ToolUse) []ToolResult {
	results := make([]ToolResult, 0, len(toolUses))
	for _, tu := range toolUses {
		r.toolsUsed[tu.Name] = struct{}{}
		r.result.ToolCalls++
		a.log.Info("react: calling tool", "name", tu.Name, "id", tu.ID)

		out, isErr, err := a.cfg.ToolClient.CallToolText(ctx, tu.Name, tu.Input)
		switch {
		case err != nil:
			a.log.Error("react: tool execution error", "name", tu.Name, "error", err)
			results = append(results, ToolResult{ID: tu.ID, Content: fmt.Sprintf("Error: %v", err), IsError: true})
		case isErr:
			results = append(results, ToolResult{ID: tu.ID, Content: "Error: " + out, IsError: true})
		default:
			results = append(results, ToolResult{ID: tu.ID, Content: out})
		}
	}
	return results
}

func extractToolUses(content []ContentBlock) []ToolUse {
	var uses []ToolUse
	for _, blk := range content {
		id, name, raw, ok := blk.AsToolUse()
		if !ok || id == "" || name == "" {
			continue
		}
		var input map[string]any
		if err := json.Unmarshal(raw, &input); err != nil {
			continue
		}
		uses = append(uses, ToolUse{ID: id, Name: name, Input: input})
	}
	return uses
}

func responseText(response Response) string {
	var b strings.Builder
	for _, blk := range response.Content() {
		if text, ok := blk.AsText(); ok {
			b.WriteString(text)
		}
	}
	return strings.TrimSpace(b.String())
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
