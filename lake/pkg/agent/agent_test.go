package agent_test

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/lakeoracle/oracle/lake/pkg/agent"
	"github.com/lakeoracle/oracle/lake/pkg/agent/react"
	"github.com/stretchr/testify/require"
)

type textBlock string

func (b textBlock) AsText() (string, bool)                    { return string(b), true }
func (b textBlock) AsToolUse() (string, string, []byte, bool) { return "", "", nil, false }

type textResponse string

func (r textResponse) Content() []react.ContentBlock { return []react.ContentBlock{textBlock(r)} }
func (r textResponse) ToMessage() react.Message {
	return react.GenericMessage{Role: "assistant", Content: string(r)}
}

// recordingLLM answers every call with the same text and records the first user message.
type recordingLLM struct {
	mu     sync.Mutex
	answer string
	prompt string
	calls  int
}

func (m *recordingLLM) Call(_ context.Context, messages []react.Message, _ []react.Tool) (react.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.prompt == "" && len(messages) > 0 {
		if p, ok := messages[0].ToParam().(map[string]any); ok {
			m.prompt, _ = p["content"].(string)
		}
	}
	return textResponse(m.answer), nil
}

func (m *recordingLLM) ConvertToMessage(msg any) react.Message {
	p, _ := msg.(map[string]any)
	role, _ := p["role"].(string)
	content, _ := p["content"].(string)
	return react.GenericMessage{Role: role, Content: content}
}

func (m *recordingLLM) ConvertToolResults(_ []react.ToolUse, results []react.ToolResult) ([]react.Message, error) {
	msgs := make([]react.Message, 0, len(results))
	for _, r := range results {
		msgs = append(msgs, react.GenericMessage{Role: "user", Content: r.Content})
	}
	return msgs, nil
}

func (m *recordingLLM) CreateUserMessage(content string) react.Message {
	return react.GenericMessage{Role: "user", Content: content}
}

type noTools struct{}

func (noTools) ListTools(context.Context) ([]react.Tool, error) { return nil, nil }
func (noTools) CallToolText(context.Context, string, map[string]any) (string, bool, error) {
	return "", true, nil
}

func TestAgent_Config_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     agent.Config
		wantErr string
	}{
		{name: "missing logger", cfg: agent.Config{LLM: &recordingLLM{}, Tools: noTools{}}, wantErr: "logger is required"},
		{name: "missing llm", cfg: agent.Config{Logger: testLog, Tools: noTools{}}, wantErr: "LLM is required"},
		{name: "missing tools", cfg: agent.Config{Logger: testLog, LLM: &recordingLLM{}}, wantErr: "tools are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			require.ErrorContains(t, err, tt.wantErr)
		})
	}

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()
		cfg := agent.Config{Logger: testLog, LLM: &recordingLLM{}, Tools: noTools{}}
		require.NoError(t, cfg.Validate())
		require.Equal(t, "prod_catalog", cfg.Environment.DefaultCatalog)
		require.NotNil(t, cfg.Prompts)
	})
}

func TestAgent_Ask(t *testing.T) {
	t.Parallel()

	t.Run("wraps query and prints answer", func(t *testing.T) {
		t.Parallel()
		llm := &recordingLLM{answer: "yes, 42 rows"}
		a, err := agent.NewAgent(&agent.Config{
			Logger:           testLog,
			LLM:              llm,
			Tools:            noTools{},
			Model:            agent.ResolveModel("ollama_chat/gemma3:27b-it-qat"),
			PlanningInterval: -1,
		})
		require.NoError(t, err)

		var out bytes.Buffer
		res, err := a.Ask(context.Background(), "how many rows?", &out)
		require.NoError(t, err)
		require.Equal(t, "yes, 42 rows", res.FinalText)
		require.Equal(t, "yes, 42 rows\n", out.String())
		require.Equal(t, 1, llm.calls)

		require.True(t, strings.HasPrefix(llm.prompt, "Persona"))
		require.True(t, strings.HasSuffix(llm.prompt, "QUERY :: how many rows?"))
	})

	t.Run("qwen3 gets no_think", func(t *testing.T) {
		t.Parallel()
		llm := &recordingLLM{answer: "ok"}
		a, err := agent.NewAgent(&agent.Config{
			Logger:           testLog,
			LLM:              llm,
			Tools:            noTools{},
			Model:            agent.ResolveModel("ollama_chat/qwen3:8b"),
			PlanningInterval: -1,
		})
		require.NoError(t, err)

		_, err = a.Ask(context.Background(), "q", nil)
		require.NoError(t, err)
		require.True(t, strings.HasPrefix(llm.prompt, "/no_think\n"))
	})

	t.Run("planning uses loaded prompt", func(t *testing.T) {
		t.Parallel()
		llm := &recordingLLM{answer: "done"}
		a, err := agent.NewAgent(&agent.Config{
			Logger: testLog,
			LLM:    llm,
			Tools:  noTools{},
			Model:  agent.ResolveModel(""),
		})
		require.NoError(t, err)

		res, err := a.Ask(context.Background(), "q", nil)
		require.NoError(t, err)
		require.Equal(t, []react.State{react.StatePlanning, react.StateActing, react.StateDone}, res.States)
		require.Equal(t, 2, llm.calls)
	})
}

func TestAgent_Example(t *testing.T) {
	t.Parallel()

	q, err := agent.Example(1)
	require.NoError(t, err)
	require.Contains(t, q, "2E1EF0B6328770FA94ABED6B63FA273A")

	q, err = agent.Example(5)
	require.NoError(t, err)
	require.Contains(t, q, "pickwell")

	_, err = agent.Example(0)
	require.Error(t, err)
	_, err = agent.Example(6)
	require.Error(t, err)
}
