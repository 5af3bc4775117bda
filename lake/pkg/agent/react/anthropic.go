package react

import (
	"context"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
)

// Sampling holds optional sampling parameters. Nil fields use the provider default.
type Sampling struct {
	Temperature *float64
	TopP        *float64
}

// AnthropicAgent implements LLMClient for the Anthropic messages API.
type AnthropicAgent struct {
	client          anthropic.Client
	model           anthropic.Model
	maxOutputTokens int64
	system          string
	sampling        Sampling
}

func NewAnthropicAgent(client anthropic.Client, model anthropic.Model, maxOutputTokens int64, system string, sampling Sampling) LLMClient {
	return &AnthropicAgent{
		client:          client,
		model:           model,
		maxOutputTokens: maxOutputTokens,
		system:          system,
		sampling:        sampling,
	}
}

func (a *AnthropicAgent) Call(ctx context.Context, messages []Message, tools []Tool) (Response, error) {
	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: a.maxOutputTokens,
		Messages:  make([]anthropic.MessageParam, 0, len(messages)),
		Tools:     toAnthropicTools(tools),
	}
	for _, msg := range messages {
		p, err := toAnthropicParam(msg.ToParam())
		if err != nil {
			return nil, err
		}
		params.Messages = append(params.Messages, p)
	}
	if a.system != "" {
		// The system prompt is identical on every call of a run.
		params.System = []anthropic.TextBlockParam{{
			Text:         a.system,
			CacheControl: anthropic.NewCacheControlEphemeralParam(),
		}}
	}
	if a.sampling.Temperature != nil {
		params.Temperature = anthropic.Float(*a.sampling.Temperature)
	}
	if a.sampling.TopP != nil {
		params.TopP = anthropic.Float(*a.sampling.TopP)
	}

	resp, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	return anthropicResponse{resp: resp}, nil
}

func toAnthropicParam(param any) (anthropic.MessageParam, error) {
	if p, ok := param.(anthropic.MessageParam); ok {
		return p, nil
	}
	if role, content, ok := genericFields(param); ok {
		if role == "assistant" {
			return anthropic.NewAssistantMessage(anthropic.NewTextBlock(content)), nil
		}
		return anthropic.NewUserMessage(anthropic.NewTextBlock(content)), nil
	}
	return anthropic.MessageParam{}, fmt.Errorf("expected anthropic.MessageParam, got %T", param)
}

func (a *AnthropicAgent) ConvertToMessage(msg any) Message {
	switch m := msg.(type) {
	case anthropic.MessageParam:
		return AnthropicMessage{Msg: m}
	case AnthropicMessage:
		return m
	}
	if p, err := toAnthropicParam(msg); err == nil {
		return AnthropicMessage{Msg: p}
	}
	return AnthropicMessage{Msg: anthropic.MessageParam{}}
}

// ConvertToolResults folds every result into a single user message.
func (a *AnthropicAgent) ConvertToolResults(_ []ToolUse, results []ToolResult) ([]Message, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, anthropic.NewToolResultBlock(r.ID, r.Content, r.IsError))
	}
	return []Message{AnthropicMessage{Msg: anthropic.NewUserMessage(blocks...)}}, nil
}

func (a *AnthropicAgent) CreateUserMessage(content string) Message {
	return AnthropicMessage{Msg: anthropic.NewUserMessage(anthropic.NewTextBlock(content))}
}

type AnthropicMessage struct {
	Msg anthropic.MessageParam
}

func (m AnthropicMessage) ToParam() any {
	return m.Msg
}

func (m AnthropicMessage) IsToolResult() bool {
	for _, blk := range m.Msg.Content {
		if blk.OfToolResult != nil {
			return true
		}
	}
	return false
}

type anthropicResponse struct {
	resp *anthropic.Message
}

func (r anthropicResponse) Content() []ContentBlock {
	blocks := make([]ContentBlock, len(r.resp.Content))
	for i, blk := range r.resp.Content {
		blocks[i] = anthropicContentBlock{blk}
	}
	return blocks
}

func (r anthropicResponse) ToMessage() Message {
	return AnthropicMessage{Msg: r.resp.ToParam()}
}

type anthropicContentBlock struct {
	blk anthropic.ContentBlockUnion
}

func (b anthropicContentBlock) AsText() (string, bool) {
	if b.blk.Type != "text" || b.blk.Text == "" {
		return "", false
	}
	return b.blk.Text, true
}

func (b anthropicContentBlock) AsToolUse() (string, string, []byte, bool) {
	if b.blk.Type != "tool_use" || b.blk.ID == "" || b.blk.Name == "" {
		return "", "", nil, false
	}
	return b.blk.ID, b.blk.Name, b.blk.Input, true
}

func toAnthropicTools(tools []Tool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		props, _ := t.InputSchema["properties"].(map[string]any)
		tp := anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: props,
				Required:   requiredFields(t.InputSchema),
			},
		}
		out = append(out, anthropic.ToolUnionParam{OfTool: &tp})
	}
	return out
}

// requiredFields reads "required" whether it was built in Go or decoded from JSON.
func requiredFields(schema map[string]any) []string {
	switch v := schema["required"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, x := range v {
			if s, ok := x.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
