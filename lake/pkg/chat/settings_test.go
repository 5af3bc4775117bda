package chat_test

import (
	"testing"

	"github.com/lakeoracle/oracle/lake/pkg/chat"
	"github.com/stretchr/testify/require"
)

func TestChat_DefaultSettings(t *testing.T) {
	t.Parallel()

	s := chat.DefaultSettings()
	require.Equal(t, "gpt-3.5-turbo", s.Model)
	require.Equal(t, chat.DefaultSystemMessage, s.SystemMessage)
	require.Equal(t, 0.7, s.Temperature)
	require.Equal(t, 500, s.MaxTokens)
	require.Equal(t, 1.0, s.TopP)
	require.Zero(t, s.FrequencyPenalty)
	require.Zero(t, s.PresencePenalty)
	require.NoError(t, s.Validate())
}

func TestChat_Settings_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*chat.Settings)
		wantErr string
	}{
		{name: "temperature low bound", mutate: func(s *chat.Settings) { s.Temperature = 0 }},
		{name: "temperature high bound", mutate: func(s *chat.Settings) { s.Temperature = 2 }},
		{name: "temperature too high", mutate: func(s *chat.Settings) { s.Temperature = 2.1 }, wantErr: "temperature must be between 0.0 and 2.0, got 2.1"},
		{name: "max tokens too low", mutate: func(s *chat.Settings) { s.MaxTokens = 49 }, wantErr: "max_tokens"},
		{name: "max tokens too high", mutate: func(s *chat.Settings) { s.MaxTokens = 4001 }, wantErr: "max_tokens"},
		{name: "top p negative", mutate: func(s *chat.Settings) { s.TopP = -0.1 }, wantErr: "top_p"},
		{name: "frequency penalty", mutate: func(s *chat.Settings) { s.FrequencyPenalty = -2.5 }, wantErr: "frequency_penalty"},
		{name: "presence penalty", mutate: func(s *chat.Settings) { s.PresencePenalty = 2.5 }, wantErr: "presence_penalty"},
		{name: "empty model", mutate: func(s *chat.Settings) { s.Model = " " }, wantErr: "model is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := chat.DefaultSettings()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, chat.ErrInvalidSettings)
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestChat_FullSystemMessage(t *testing.T) {
	t.Parallel()

	got := chat.FullSystemMessage("sys", chat.DBContext{Catalog: "prod_catalog", Database: "sales_db", Table: "orders", MetadataAccess: true})
	require.Equal(t, "sys\n\nDatabase Context: You are helping analyze data from prod_catalog.sales_db.orders. Metadata access is enabled.", got)

	got = chat.FullSystemMessage("sys", chat.DBContext{Catalog: "prod_catalog", Database: "sales_db"})
	require.Equal(t, "sys\n\nDatabase Context: You are helping analyze data from prod_catalog.sales_db.unspecified table. Metadata access is disabled.", got)
}

func TestChat_FallbackReply(t *testing.T) {
	t.Parallel()

	s := chat.DefaultSettings()
	got := chat.FallbackReply("top customers?", chat.DBContext{Catalog: "prod_catalog", Database: "sales_db"}, s)
	require.Equal(t, "Mock Response: I understand you're asking about 'top customers?'. In a real implementation, I would query the prod_catalog.sales_db database and provide insights about your data. (Using gpt-3.5-turbo with temp=0.7)", got)

	s.Temperature = 1
	got = chat.FallbackReply("q", chat.DBContext{Catalog: "test_catalog"}, s)
	require.Contains(t, got, "test_catalog.unspecified database database")
	require.Contains(t, got, "temp=1.0)")
}
