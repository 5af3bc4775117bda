package chat_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lakeoracle/oracle/lake/pkg/chat"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	ids   []string
	err   error
	calls atomic.Int32
}

func (s *stubLister) ListModels(context.Context) ([]string, error) {
	s.calls.Add(1)
	return s.ids, s.err
}

func TestChat_FilterChatModels(t *testing.T) {
	t.Parallel()

	got := chat.FilterChatModels([]string{"whisper-1", "gpt-4o", "GPT-4-turbo", "text-embedding-3-small", "gpt-3.5-turbo", "dall-e-3"})
	require.Equal(t, []string{"GPT-4-turbo", "gpt-3.5-turbo", "gpt-4o"}, got)
	require.Empty(t, chat.FilterChatModels(nil))
}

func TestChat_ModelCatalog(t *testing.T) {
	t.Parallel()

	t.Run("lists and caches filtered models", func(t *testing.T) {
		t.Parallel()
		lister := &stubLister{ids: []string{"gpt-4o", "whisper-1", "gpt-4"}}
		catalog := chat.NewModelCatalog(chat.ModelCatalogConfig{Logger: testLog, Lister: lister})

		require.Equal(t, []string{"gpt-4", "gpt-4o"}, catalog.Models(context.Background()))
		require.Equal(t, []string{"gpt-4", "gpt-4o"}, catalog.Models(context.Background()))
		require.EqualValues(t, 1, lister.calls.Load())
	})

	t.Run("nil lister serves fallback", func(t *testing.T) {
		t.Parallel()
		catalog := chat.NewModelCatalog(chat.ModelCatalogConfig{Logger: testLog})
		require.Equal(t, chat.FallbackModels, catalog.Models(context.Background()))
	})

	t.Run("listing error serves fallback", func(t *testing.T) {
		t.Parallel()
		lister := &stubLister{err: errors.New("unauthorized")}
		catalog := chat.NewModelCatalog(chat.ModelCatalogConfig{Logger: testLog, Lister: lister})
		require.Equal(t, chat.FallbackModels, catalog.Models(context.Background()))
	})

	t.Run("no chat models serves fallback", func(t *testing.T) {
		t.Parallel()
		lister := &stubLister{ids: []string{"whisper-1"}}
		catalog := chat.NewModelCatalog(chat.ModelCatalogConfig{Logger: testLog, Lister: lister})
		require.Equal(t, chat.FallbackModels, catalog.Models(context.Background()))
	})

	t.Run("fallback expires sooner", func(t *testing.T) {
		t.Parallel()
		lister := &stubLister{err: errors.New("down")}
		catalog := chat.NewModelCatalog(chat.ModelCatalogConfig{Logger: testLog, Lister: lister, FallbackTTL: 20 * time.Millisecond})
		catalog.Models(context.Background())

		lister.ids, lister.err = []string{"gpt-4o"}, nil
		require.Eventually(t, func() bool {
			got := catalog.Models(context.Background())
			return len(got) == 1 && got[0] == "gpt-4o"
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("returned slice is a copy", func(t *testing.T) {
		t.Parallel()
		catalog := chat.NewModelCatalog(chat.ModelCatalogConfig{Logger: testLog, Lister: &stubLister{ids: []string{"gpt-4o"}}})
		got := catalog.Models(context.Background())
		got[0] = "mutated"
		require.Equal(t, []string{"gpt-4o"}, catalog.Models(context.Background()))
	})
}
