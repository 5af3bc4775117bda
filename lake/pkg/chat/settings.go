package chat

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	DefaultModel         = "gpt-3.5-turbo"
	DefaultSystemMessage = "You are a helpful data analyst assistant. Help users analyze and understand their data with clear, accurate insights."
)

var ErrInvalidSettings = errors.New("invalid settings")

// Settings are the sampling parameters sent with every completion.
type Settings struct {
	Model            string  `json:"model"`
	SystemMessage    string  `json:"system_message"`
	Temperature      float64 `json:"temperature"`
	MaxTokens        int     `json:"max_tokens"`
	TopP             float64 `json:"top_p"`
	FrequencyPenalty float64 `json:"frequency_penalty"`
	PresencePenalty  float64 `json:"presence_penalty"`
}

func DefaultSettings() Settings {
	return Settings{
		Model:         DefaultModel,
		SystemMessage: DefaultSystemMessage,
		Temperature:   0.7,
		MaxTokens:     500,
		TopP:          1.0,
	}
}

// Validate rejects out-of-range values. Errors wrap ErrInvalidSettings.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.Model) == "" {
		return fmt.Errorf("%w: model is required", ErrInvalidSettings)
	}
	checks := []struct {
		name     string
		val      float64
		min, max float64
	}{
		{"temperature", s.Temperature, 0, 2},
		{"max_tokens", float64(s.MaxTokens), 50, 4000},
		{"top_p", s.TopP, 0, 1},
		{"frequency_penalty", s.FrequencyPenalty, -2, 2},
		{"presence_penalty", s.PresencePenalty, -2, 2},
	}
	for _, c := range checks {
		if c.val < c.min || c.val > c.max {
			return fmt.Errorf("%w: %s must be between %s and %s, got %s",
				ErrInvalidSettings, c.name, formatNumber(c.min), formatNumber(c.max), formatNumber(c.val))
		}
	}
	return nil
}

// formatNumber renders whole numbers with a trailing ".0", so 1 prints as 1.0 and 0.7 as 0.7.
func formatNumber(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
