package agent

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/lakeoracle/oracle/lake/pkg/agent/react"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
)

const (
	DefaultModelID         = "ollama_chat/gemma3:27b-it-qat"
	DefaultMaxOutputTokens = 4096
)

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
)

// ModelSpec is a model identifier resolved to a provider and its sampling parameters.
type ModelSpec struct {
	ID       string
	Provider Provider
	Model    string
	Sampling react.Sampling
}

// ResolveModel maps a model identifier to a provider.
//
// Reasoning models (o3, o4) go to OpenAI without sampling parameters, 4.1 models go to
// OpenAI with temperature 0.3 and top_p 0.9 (as do other openai/ and gpt- ids), anthropic/ and claude ids go to Anthropic,
// and everything else is treated as a local Ollama model.
func ResolveModel(id string) ModelSpec {
	id = strings.TrimSpace(id)
	if id == "" {
		id = DefaultModelID
	}
	tuned := react.Sampling{Temperature: ptr(0.3), TopP: ptr(0.9)}

	switch {
	case containsAny(id, "o3", "o4"):
		return ModelSpec{ID: id, Provider: ProviderOpenAI, Model: strings.TrimPrefix(id, "openai/")}
	case strings.Contains(id, "4.1"):
		return ModelSpec{ID: id, Provider: ProviderOpenAI, Model: strings.TrimPrefix(id, "openai/"), Sampling: tuned}
	case strings.HasPrefix(id, "openai/") || strings.HasPrefix(id, "gpt-"):
		return ModelSpec{ID: id, Provider: ProviderOpenAI, Model: strings.TrimPrefix(id, "openai/"), Sampling: tuned}
	case strings.HasPrefix(id, "anthropic/") || strings.Contains(id, "claude"):
		return ModelSpec{ID: id, Provider: ProviderAnthropic, Model: strings.TrimPrefix(id, "anthropic/")}
	default:
		model := strings.TrimPrefix(strings.TrimPrefix(id, "ollama_chat/"), "ollama/")
		return ModelSpec{ID: id, Provider: ProviderOllama, Model: model, Sampling: tuned}
	}
}

// DisablesThinking reports whether the model needs /no_think at the top of the prompt.
func (s ModelSpec) DisablesThinking() bool {
	return strings.Contains(s.ID, "qwen3")
}

// LLMOptions carries provider credentials and endpoints.
type LLMOptions struct {
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AnthropicBaseURL string
	OllamaBaseURL    string
	HTTPClient       *http.Client
	MaxOutputTokens  int64
	System           string
}

// NewLLMClient builds the react.LLMClient for spec.
func NewLLMClient(spec ModelSpec, opts LLMOptions) (react.LLMClient, error) {
	if spec.Model == "" {
		return nil, errors.New("model is required")
	}
	maxTokens := opts.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}

	switch spec.Provider {
	case ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, errors.New("openai api key is required")
		}
		reqOpts := []openaioption.RequestOption{openaioption.WithAPIKey(opts.OpenAIAPIKey)}
		if opts.OpenAIBaseURL != "" {
			reqOpts = append(reqOpts, openaioption.WithBaseURL(opts.OpenAIBaseURL))
		}
		if opts.HTTPClient != nil {
			reqOpts = append(reqOpts, openaioption.WithHTTPClient(opts.HTTPClient))
		}
		client := openai.NewClient(reqOpts...)
		return react.NewOpenAIAgent(client, spec.Model, maxTokens, opts.System, spec.Sampling), nil
	case ProviderAnthropic:
		if opts.AnthropicAPIKey == "" {
			return nil, errors.New("anthropic api key is required")
		}
		reqOpts := []option.RequestOption{option.WithAPIKey(opts.AnthropicAPIKey)}
		if opts.AnthropicBaseURL != "" {
			reqOpts = append(reqOpts, option.WithBaseURL(opts.AnthropicBaseURL))
		}
		if opts.HTTPClient != nil {
			reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
		}
		client := anthropic.NewClient(reqOpts...)
		return react.NewAnthropicAgent(client, anthropic.Model(spec.Model), maxTokens, opts.System, spec.Sampling), nil
	case ProviderOllama:
		return react.NewOllamaAgent(opts.OllamaBaseURL, opts.HTTPClient, spec.Model, maxTokens, opts.System, spec.Sampling), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", spec.Provider)
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func ptr(v float64) *float64 { return &v }
