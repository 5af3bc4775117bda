package react

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
)

const (
	DefaultOllamaBaseURL = "http://localhost:11434"

	// sqlTool and sqlArg are the target of the bare-SQL text fallback.
	sqlTool = "sql_query_to_str"
	sqlArg  = "query"
)

const ollamaToolUseDirective = `You have access to tools. Use them to look up schemas and data before answering.
When a tool returns an error, read it, fix the call, and try again.
Reply without a tool call only when you are giving the final answer.

`

// OllamaAgent implements LLMClient against the Ollama /api/chat endpoint.
type OllamaAgent struct {
	baseURL         string
	httpClient      *http.Client
	model           string
	maxOutputTokens int64
	system          string
	sampling        Sampling
}

func NewOllamaAgent(baseURL string, httpClient *http.Client, model string, maxOutputTokens int64, system string, sampling Sampling) *OllamaAgent {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if httpClient == nil {
		// Local models can take minutes per call.
		httpClient = &http.Client{}
	}
	return &OllamaAgent{
		baseURL:         strings.TrimRight(baseURL, "/"),
		httpClient:      httpClient,
		model:           model,
		maxOutputTokens: maxOutputTokens,
		system:          ollamaToolUseDirective + system,
		sampling:        sampling,
	}
}

func (a *OllamaAgent) Call(ctx context.Context, messages []Message, tools []Tool) (Response, error) {
	msgs := make([]ollamaMessage, 0, len(messages)+1)
	msgs = append(msgs, ollamaMessage{Role: "system", Content: a.system})
	for _, msg := range messages {
		if om, ok := toOllamaMessage(msg.ToParam()); ok {
			msgs = append(msgs, om)
		}
	}

	opts := map[string]any{"num_predict": a.maxOutputTokens}
	if a.sampling.Temperature != nil {
		opts["temperature"] = *a.sampling.Temperature
	}
	if a.sampling.TopP != nil {
		opts["top_p"] = *a.sampling.TopP
	}

	resp, err := a.chat(ctx, ollamaChatRequest{
		Model:    a.model,
		Messages: msgs,
		Tools:    toOllamaTools(tools),
		Options:  opts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}

	names := make(map[string]bool, len(tools))
	for _, t := range tools {
		names[t.Name] = true
	}
	return ollamaResponse{msg: resp.Message, tools: names}, nil
}

func toOllamaMessage(param any) (ollamaMessage, bool) {
	if m, ok := param.(ollamaMessage); ok {
		return m, true
	}
	role, content, ok := genericFields(param)
	if !ok {
		return ollamaMessage{}, false
	}
	om := ollamaMessage{Role: role, Content: content}
	if m, ok := param.(map[string]any); ok {
		om.Name, _ = m["name"].(string)
	}
	return om, true
}

// chat posts one request and folds the reply. Ollama may send newline-delimited
// chunks even when streaming is off.
func (a *OllamaAgent) chat(ctx context.Context, req ollamaChatRequest) (ollamaChatResponse, error) {
	var out ollamaChatResponse

	body, err := json.Marshal(req)
	if err != nil {
		return out, fmt.Errorf("json marshal: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return out, fmt.Errorf("do: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return out, fmt.Errorf("ollama chat http %d: %s", resp.StatusCode, string(b))
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal(line, &chunk); err != nil {
			return out, fmt.Errorf("stream decode: %w (line=%q)", err, string(line))
		}
		if chunk.Error != "" {
			return out, fmt.Errorf("ollama error: %s", chunk.Error)
		}
		out.Message.Content += chunk.Message.Content
		if len(chunk.Message.ToolCalls) > 0 {
			out.Message.ToolCalls = chunk.Message.ToolCalls
		}
		if chunk.Message.Role != "" {
			out.Message.Role = chunk.Message.Role
		}
		if chunk.Model != "" {
			out.Model = chunk.Model
		}
		out.Done = chunk.Done
		if chunk.Done {
			break
		}
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("scan: %w", err)
	}
	if out.Message.Role == "" {
		out.Message.Role = "assistant"
	}
	return out, nil
}

func (a *OllamaAgent) ConvertToMessage(msg any) Message {
	om, _ := toOllamaMessage(msg)
	return OllamaMessage{Msg: om}
}

// ConvertToolResults emits one "tool" message per result, named after its call.
func (a *OllamaAgent) ConvertToolResults(toolUses []ToolUse, results []ToolResult) ([]Message, error) {
	msgs := make([]Message, 0, len(results))
	for i, r := range results {
		m := ollamaMessage{Role: "tool", Content: r.Content}
		if i < len(toolUses) {
			m.Name = toolUses[i].Name
		}
		msgs = append(msgs, OllamaMessage{Msg: m})
	}
	return msgs, nil
}

func (a *OllamaAgent) CreateUserMessage(content string) Message {
	return OllamaMessage{Msg: ollamaMessage{Role: "user", Content: content}}
}

type OllamaMessage struct {
	Msg ollamaMessage
}

func (m OllamaMessage) ToParam() any {
	return m.Msg
}

func (m OllamaMessage) IsToolResult() bool {
	return m.Msg.Role == "tool"
}

type ollamaResponse struct {
	msg   ollamaMessage
	tools map[string]bool
}

// Content returns the text first, then tool calls. Models without native tool
// calling often write the call as JSON or SQL in the text; those are recovered.
func (r ollamaResponse) Content() []ContentBlock {
	calls := r.msg.ToolCalls
	text := r.msg.Content
	if len(calls) == 0 && text != "" {
		if calls = toolCallsFromText(text, r.tools); len(calls) > 0 {
			text = stripToolCalls(text)
		}
	}

	var blocks []ContentBlock
	if text != "" {
		blocks = append(blocks, ollamaContentBlock{text: text})
	}
	for i, tc := range calls {
		if tc.ID == "" {
			tc.ID = fmt.Sprintf("call_%d_%s", i, tc.Function.Name)
		}
		blocks = append(blocks, ollamaContentBlock{call: &tc})
	}
	return blocks
}

func (r ollamaResponse) ToMessage() Message {
	return OllamaMessage{Msg: r.msg}
}

var (
	jsonCallRegexp  = regexp.MustCompile(`\{[^{}]*"name"\s*:\s*"(\w+)"[^{}]*"(?:arguments|parameters)"\s*:\s*(\{[^{}]*\})[^{}]*\}`)
	codeBlockRegexp = regexp.MustCompile("```(?:json)?\\s*\\n?([\\s\\S]*?)```")
	sqlBlockRegexp  = regexp.MustCompile("(?i)```sql\\s*\\n([\\s\\S]*?)```")
	blankRunRegexp  = regexp.MustCompile(`\n{3,}`)
)

func toolCallsFromText(text string, tools map[string]bool) []ollamaToolCall {
	var calls []ollamaToolCall
	seen := make(map[string]bool)
	add := func(name string, args []byte) {
		if !tools[name] || seen[name] {
			return
		}
		seen[name] = true
		calls = append(calls, ollamaToolCall{
			Type:     "function",
			Function: ollamaToolCallFnPart{Name: name, Arguments: ollamaJSONArgs(args)},
		})
	}

	for _, m := range jsonCallRegexp.FindAllStringSubmatch(text, -1) {
		if json.Valid([]byte(m[2])) {
			add(m[1], []byte(m[2]))
		}
	}
	for _, m := range codeBlockRegexp.FindAllStringSubmatch(text, -1) {
		var call struct {
			Name       string          `json:"name"`
			Arguments  json.RawMessage `json:"arguments"`
			Parameters json.RawMessage `json:"parameters"`
		}
		if json.Unmarshal([]byte(strings.TrimSpace(m[1])), &call) != nil || call.Name == "" {
			continue
		}
		args := call.Arguments
		if len(args) == 0 {
			args = call.Parameters
		}
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		add(call.Name, args)
	}
	if len(calls) == 0 {
		if m := sqlBlockRegexp.FindStringSubmatch(text); m != nil {
			if sql := strings.TrimSpace(m[1]); sql != "" {
				args, _ := json.Marshal(map[string]string{sqlArg: sql})
				add(sqlTool, args)
			}
		}
	}
	return calls
}

func stripToolCalls(text string) string {
	text = codeBlockRegexp.ReplaceAllString(text, "")
	text = sqlBlockRegexp.ReplaceAllString(text, "")
	text = jsonCallRegexp.ReplaceAllString(text, "")
	text = blankRunRegexp.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

type ollamaContentBlock struct {
	text string
	call *ollamaToolCall
}

func (b ollamaContentBlock) AsText() (string, bool) {
	if b.call != nil || b.text == "" {
		return "", false
	}
	return b.text, true
}

func (b ollamaContentBlock) AsToolUse() (string, string, []byte, bool) {
	if b.call == nil {
		return "", "", nil, false
	}
	return b.call.ID, b.call.Function.Name, b.call.Function.Arguments.Raw(), true
}

type ollamaMessage struct {
	Role      string           `json:"role"`
	Content   string           `json:"content,omitempty"`
	Name      string           `json:"name,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	ID       string               `json:"id,omitempty"`
	Type     string               `json:"type,omitempty"`
	Function ollamaToolCallFnPart `json:"function"`
}

type ollamaToolCallFnPart struct {
	Name      string         `json:"name"`
	Arguments ollamaJSONArgs `json:"arguments"`
}

// ollamaJSONArgs accepts arguments as an object or as a (possibly re-quoted) JSON string.
type ollamaJSONArgs json.RawMessage

func (a *ollamaJSONArgs) UnmarshalJSON(b []byte) error {
	cur := bytes.TrimSpace(b)
	for i := 0; i < 4 && len(cur) > 0 && cur[0] == '"'; i++ {
		var s string
		if err := json.Unmarshal(cur, &s); err != nil {
			return err
		}
		cur = bytes.TrimSpace([]byte(s))
	}
	switch {
	case len(cur) == 0 || string(cur) == "null":
		*a = ollamaJSONArgs(`{}`)
	case json.Valid(cur) && (cur[0] == '{' || cur[0] == '['):
		*a = ollamaJSONArgs(cur)
	default:
		wrapped, err := json.Marshal(map[string]any{"_raw": string(cur)})
		if err != nil {
			return err
		}
		*a = ollamaJSONArgs(wrapped)
	}
	return nil
}

func (a ollamaJSONArgs) Raw() json.RawMessage {
	if len(a) == 0 {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(a)
}

func (a ollamaJSONArgs) MarshalJSON() ([]byte, error) {
	if len(a) == 0 {
		return []byte(`{}`), nil
	}
	if !json.Valid(a) {
		return json.Marshal(map[string]any{"_raw": string(a)})
	}
	return []byte(a), nil
}

type ollamaToolDef struct {
	Type     string              `json:"type"`
	Function ollamaToolDefFnPart `json:"function"`
}

type ollamaToolDefFnPart struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Tools    []ollamaToolDef `json:"tools,omitempty"`
	Stream   bool            `json:"stream"`
	Options  map[string]any  `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model,omitempty"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func toOllamaTools(tools []Tool) []ollamaToolDef {
	out := make([]ollamaToolDef, 0, len(tools))
	for _, t := range tools {
		params, _ := json.Marshal(t.InputSchema)
		out = append(out, ollamaToolDef{
			Type: "function",
			Function: ollamaToolDefFnPart{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
