package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

// Completer produces the assistant reply for a conversation.
type Completer interface {
	Complete(ctx context.Context, s Settings, messages []Turn) (string, error)
}

var errNoChoices = errors.New("completion returned no choices")

// OpenAICompleter sends conversations to an OpenAI-compatible chat completions API.
type OpenAICompleter struct {
	client openai.Client
}

func NewOpenAICompleter(client openai.Client) *OpenAICompleter {
	return &OpenAICompleter{client: client}
}

func (c *OpenAICompleter) Complete(ctx context.Context, s Settings, messages []Turn) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:            openai.ChatModel(s.Model),
		Messages:         make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Temperature:      openai.Float(s.Temperature),
		TopP:             openai.Float(s.TopP),
		MaxTokens:        openai.Int(int64(s.MaxTokens)),
		FrequencyPenalty: openai.Float(s.FrequencyPenalty),
		PresencePenalty:  openai.Float(s.PresencePenalty),
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("failed to get chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// OpenAIModelLister lists the model ids visible to the API key.
type OpenAIModelLister struct {
	client openai.Client
}

func NewOpenAIModelLister(client openai.Client) *OpenAIModelLister {
	return &OpenAIModelLister{client: client}
}

func (l *OpenAIModelLister) ListModels(ctx context.Context) ([]string, error) {
	var ids []string
	iter := l.client.Models.ListAutoPaging(ctx)
	for iter.Next() {
		ids = append(ids, iter.Current().ID)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	return ids, nil
}

// ErrCompletionUnavailable is returned by OfflineCompleter.
var ErrCompletionUnavailable = errors.New("completion api is not configured")

// OfflineCompleter always fails, so every reply is the fallback text.
type OfflineCompleter struct{}

func (OfflineCompleter) Complete(context.Context, Settings, []Turn) (string, error) {
	return "", ErrCompletionUnavailable
}
