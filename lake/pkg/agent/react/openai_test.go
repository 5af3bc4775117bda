package react

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/require"
)

const toolCallReply = `{
	"id": "c1",
	"object": "chat.completion",
	"created": 1,
	"model": "o3",
	"choices": [{
		"index": 0,
		"finish_reason": "tool_calls",
		"message": {
			"role": "assistant",
			"content": "",
			"tool_calls": [{"id": "call_1", "type": "function", "function": {"name": "sql_query_to_str", "arguments": "{\"query\":\"select 1\"}"}}]
		}
	}]
}`

// newOpenAITestServer records each request body and answers with reply.
func newOpenAITestServer(t *testing.T, reply string) (openai.Client, func() map[string]any) {
	t.Helper()
	bodies := make(chan map[string]any, 8)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(server.Close)

	client := openai.NewClient(
		option.WithAPIKey("k"),
		option.WithBaseURL(server.URL),
		option.WithHTTPClient(server.Client()),
		option.WithMaxRetries(0),
	)
	return client, func() map[string]any { return <-bodies }
}

func TestOpenAIAgent_Call(t *testing.T) {
	t.Parallel()

	t.Run("reasoning model sends no sampling", func(t *testing.T) {
		t.Parallel()
		client, lastBody := newOpenAITestServer(t, toolCallReply)
		agent := NewOpenAIAgent(client, "o3", 0, "sys", Sampling{})
		resp, err := agent.Call(context.Background(), []Message{agent.CreateUserMessage("q")}, []Tool{queryTool})
		require.NoError(t, err)

		got := lastBody()
		require.Equal(t, "o3", got["model"])
		require.NotContains(t, got, "temperature")
		require.NotContains(t, got, "top_p")
		require.NotContains(t, got, "max_tokens")
		require.NotContains(t, got, "max_completion_tokens")

		msgs := got["messages"].([]any)
		require.Len(t, msgs, 2)
		require.Equal(t, "system", msgs[0].(map[string]any)["role"])

		tools := got["tools"].([]any)
		require.Len(t, tools, 1)
		tool := tools[0].(map[string]any)
		require.Equal(t, "function", tool["type"])
		fn := tool["function"].(map[string]any)
		require.Equal(t, "sql_query_to_str", fn["name"])
		require.Equal(t, map[string]any{"type": "object"}, fn["parameters"])

		content := resp.Content()
		require.Len(t, content, 1)
		id, name, input, ok := content[0].AsToolUse()
		require.True(t, ok)
		require.Equal(t, "call_1", id)
		require.Equal(t, "sql_query_to_str", name)
		require.JSONEq(t, `{"query":"select 1"}`, string(input))
	})

	t.Run("output cap uses max_completion_tokens", func(t *testing.T) {
		t.Parallel()
		client, lastBody := newOpenAITestServer(t, toolCallReply)
		agent := NewOpenAIAgent(client, "o4-mini", 4096, "", Sampling{})
		_, err := agent.Call(context.Background(), []Message{agent.CreateUserMessage("q")}, nil)
		require.NoError(t, err)

		got := lastBody()
		require.Equal(t, float64(4096), got["max_completion_tokens"])
		require.NotContains(t, got, "max_tokens")
	})

	t.Run("sampling is forwarded", func(t *testing.T) {
		t.Parallel()
		client, lastBody := newOpenAITestServer(t, toolCallReply)
		agent := NewOpenAIAgent(client, "gpt-4.1", 300, "", Sampling{Temperature: ptr(0.3), TopP: ptr(0.9)})
		_, err := agent.Call(context.Background(), []Message{GenericMessage{Role: "user", Content: "q"}}, nil)
		require.NoError(t, err)

		got := lastBody()
		require.Equal(t, 0.3, got["temperature"])
		require.Equal(t, 0.9, got["top_p"])
		require.Equal(t, float64(300), got["max_completion_tokens"])
		require.Len(t, got["messages"], 1)
		require.NotContains(t, got, "tools")
	})

	t.Run("no choices is an error", func(t *testing.T) {
		t.Parallel()
		client, _ := newOpenAITestServer(t, `{"id":"c2","object":"chat.completion","created":1,"model":"o3","choices":[]}`)
		agent := NewOpenAIAgent(client, "o3", 0, "", Sampling{})
		_, err := agent.Call(context.Background(), []Message{agent.CreateUserMessage("q")}, nil)
		require.ErrorIs(t, err, errNoChoices)
	})
}

func TestOpenAIAgent_ConvertToolResults(t *testing.T) {
	t.Parallel()

	agent := NewOpenAIAgent(openai.Client{}, "gpt-4.1", 0, "", Sampling{})
	msgs, err := agent.ConvertToolResults(
		[]ToolUse{{ID: "call_1", Name: "a"}, {ID: "call_2", Name: "b"}},
		[]ToolResult{{ID: "call_1", Content: "x"}, {ID: "call_2", Content: "y", IsError: true}},
	)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	for i, want := range []string{
		`{"role":"tool","content":"x","tool_call_id":"call_1"}`,
		`{"role":"tool","content":"y","tool_call_id":"call_2"}`,
	} {
		b, err := json.Marshal(msgs[i].ToParam())
		require.NoError(t, err)
		require.JSONEq(t, want, string(b))
		require.True(t, isToolResult(msgs[i]))
	}
	require.False(t, isToolResult(agent.CreateUserMessage("q")))
}

func TestOpenAIResponse_Content(t *testing.T) {
	t.Parallel()

	resp := openAIResponse{msg: openai.ChatCompletionMessage{
		Content: "answer",
		ToolCalls: []openai.ChatCompletionMessageToolCall{
			{ID: "1", Function: openai.ChatCompletionMessageToolCallFunction{Name: "list_catalogs"}},
		},
	}}
	content := resp.Content()
	require.Len(t, content, 2)
	text, ok := content[0].AsText()
	require.True(t, ok)
	require.Equal(t, "answer", text)
	_, _, input, ok := content[1].AsToolUse()
	require.True(t, ok)
	require.JSONEq(t, `{}`, string(input))
}
