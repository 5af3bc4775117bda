package react

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
)

var errNoChoices = errors.New("openai returned no choices")

// OpenAIAgent implements LLMClient using chat completions with function calling.
type OpenAIAgent struct {
	client          openai.Client
	model           string
	maxOutputTokens int64
	system          string
	sampling        Sampling
}

func NewOpenAIAgent(client openai.Client, model string, maxOutputTokens int64, system string, sampling Sampling) *OpenAIAgent {
	return &OpenAIAgent{
		client:          client,
		model:           model,
		maxOutputTokens: maxOutputTokens,
		system:          system,
		sampling:        sampling,
	}
}

func (a *OpenAIAgent) Call(ctx context.Context, messages []Message, tools []Tool) (Response, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(a.model),
		Messages: make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1),
	}
	// o-series models reject max_tokens.
	if a.maxOutputTokens > 0 {
		params.MaxCompletionTokens = openai.Int(a.maxOutputTokens)
	}
	if a.sampling.Temperature != nil {
		params.Temperature = openai.Float(*a.sampling.Temperature)
	}
	if a.sampling.TopP != nil {
		params.TopP = openai.Float(*a.sampling.TopP)
	}
	if a.system != "" {
		params.Messages = append(params.Messages, openai.SystemMessage(a.system))
	}
	for _, msg := range messages {
		m, ok := toOpenAIMessage(msg.ToParam())
		if !ok {
			return nil, fmt.Errorf("expected openai.ChatCompletionMessageParamUnion, got %T", msg.ToParam())
		}
		params.Messages = append(params.Messages, m)
	}
	for _, t := range tools {
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.InputSchema),
			},
		})
	}

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errNoChoices
	}
	return openAIResponse{msg: resp.Choices[0].Message}, nil
}

func toOpenAIMessage(param any) (openai.ChatCompletionMessageParamUnion, bool) {
	if m, ok := param.(openai.ChatCompletionMessageParamUnion); ok {
		return m, true
	}
	role, content, ok := genericFields(param)
	if !ok {
		return openai.ChatCompletionMessageParamUnion{}, false
	}
	switch role {
	case "system":
		return openai.SystemMessage(content), true
	case "assistant":
		return openai.AssistantMessage(content), true
	default:
		return openai.UserMessage(content), true
	}
}

func (a *OpenAIAgent) ConvertToMessage(msg any) Message {
	m, _ := toOpenAIMessage(msg)
	return OpenAIMessage{Msg: m}
}

// ConvertToolResults answers each tool call with a "tool" message carrying its call id.
func (a *OpenAIAgent) ConvertToolResults(_ []ToolUse, results []ToolResult) ([]Message, error) {
	msgs := make([]Message, 0, len(results))
	for _, r := range results {
		msgs = append(msgs, OpenAIMessage{Msg: openai.ToolMessage(r.Content, r.ID)})
	}
	return msgs, nil
}

func (a *OpenAIAgent) CreateUserMessage(content string) Message {
	return OpenAIMessage{Msg: openai.UserMessage(content)}
}

type OpenAIMessage struct {
	Msg openai.ChatCompletionMessageParamUnion
}

func (m OpenAIMessage) ToParam() any {
	return m.Msg
}

func (m OpenAIMessage) IsToolResult() bool {
	return m.Msg.OfTool != nil
}

type openAIResponse struct {
	msg openai.ChatCompletionMessage
}

func (r openAIResponse) Content() []ContentBlock {
	var blocks []ContentBlock
	if r.msg.Content != "" {
		blocks = append(blocks, openAIContentBlock{text: r.msg.Content})
	}
	for i := range r.msg.ToolCalls {
		blocks = append(blocks, openAIContentBlock{call: &r.msg.ToolCalls[i]})
	}
	return blocks
}

func (r openAIResponse) ToMessage() Message {
	return OpenAIMessage{Msg: r.msg.ToParam()}
}

type openAIContentBlock struct {
	text string
	call *openai.ChatCompletionMessageToolCall
}

func (b openAIContentBlock) AsText() (string, bool) {
	if b.call != nil || b.text == "" {
		return "", false
	}
	return b.text, true
}

func (b openAIContentBlock) AsToolUse() (string, string, []byte, bool) {
	if b.call == nil {
		return "", "", nil, false
	}
	args := b.call.Function.Arguments
	if args == "" {
		args = "{}"
	}
	return b.call.ID, b.call.Function.Name, []byte(args), true
}
