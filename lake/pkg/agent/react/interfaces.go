package react

import (
	"context"
)

// Message is one conversation entry in a provider's own format.
type Message interface {
	// ToParam returns the provider-specific parameter value.
	ToParam() any
}

// Response is one model reply.
type Response interface {
	Content() []ContentBlock
	// ToMessage converts the reply into a conversation entry.
	ToMessage() Message
}

// ContentBlock is either text or a tool use request.
type ContentBlock interface {
	AsText() (text string, ok bool)
	AsToolUse() (id, name string, input []byte, ok bool)
}

// ToolUse is a tool call requested by the model.
type ToolUse struct {
	ID    string
	Name  string
	Input map[string]any
}

// ToolResult is the outcome of one tool call, sent back to the model.
type ToolResult struct {
	ID      string
	Content string
	IsError bool
}

// Tool is a callable operation advertised to the model.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type ToolClient interface {
	ListTools(ctx context.Context) ([]Tool, error)
	// CallToolText runs a tool. isError marks a result the model should treat as a failure;
	// err is reserved for transport-level problems.
	CallToolText(ctx context.Context, name string, args map[string]any) (result string, isError bool, err error)
}

type LLMClient interface {
	// Call sends the conversation. A nil tools slice asks for a plain text answer.
	Call(ctx context.Context, messages []Message, tools []Tool) (Response, error)
	ConvertToMessage(msg any) Message
	ConvertToolResults(toolUses []ToolUse, results []ToolResult) ([]Message, error)
	CreateUserMessage(content string) Message
}

// GenericMessage is a provider-neutral role/content pair. Every client accepts it.
type GenericMessage struct {
	Role    string
	Content string
}

func (m GenericMessage) ToParam() any {
	return map[string]any{"role": m.Role, "content": m.Content}
}

func (m GenericMessage) IsToolResult() bool {
	return m.Role == "tool"
}

// isToolResult reports whether m answers tool calls from the preceding assistant message.
// Providers reject such a message once that assistant message is gone.
func isToolResult(m Message) bool {
	tr, ok := m.(interface{ IsToolResult() bool })
	return ok && tr.IsToolResult()
}

// genericFields extracts role and content from a map-shaped message param.
func genericFields(param any) (role, content string, ok bool) {
	m, isMap := param.(map[string]any)
	if !isMap {
		return "", "", false
	}
	role, _ = m["role"].(string)
	content, _ = m["content"].(string)
	return role, content, role != ""
}

// State is a phase of the agent loop.
type State string

const (
	StatePlanning  State = "planning"
	StateActing    State = "acting"
	StateObserving State = "observing"
	StateDone      State = "done"
)

type RunResult struct {
	FinalText string
	// FullConversation holds every message including tool calls, results and plans.
	FullConversation []Message
	// ToolsUsed lists distinct tool names in sorted order.
	ToolsUsed []string
	// Steps counts act/observe cycles.
	Steps     int
	ToolCalls int
	// Exhausted is set when the step budget ran out and the answer was forced.
	Exhausted bool
	States    []State
}
