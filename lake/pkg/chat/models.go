package chat

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

const (
	defaultModelsTTL   = time.Hour
	defaultFallbackTTL = time.Minute
	modelsCacheKey     = "models"
)

// FallbackModels is served when the model list cannot be fetched.
var FallbackModels = []string{"gpt-4", "gpt-4-turbo", "gpt-3.5-turbo", "gpt-4o"}

var chatModelMarkers = []string{"gpt-4", "gpt-3.5", "gpt-4o"}

type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

type ModelCatalogConfig struct {
	Logger *slog.Logger
	// Lister may be nil, in which case only FallbackModels are offered.
	Lister ModelLister

	TTL         time.Duration
	FallbackTTL time.Duration
}

// ModelCatalog lists the chat models the UI offers.
type ModelCatalog struct {
	log   *slog.Logger
	cfg   ModelCatalogConfig
	cache *ttlcache.Cache[string, []string]
}

func NewModelCatalog(cfg ModelCatalogConfig) *ModelCatalog {
	if cfg.TTL == 0 {
		cfg.TTL = defaultModelsTTL
	}
	if cfg.FallbackTTL == 0 {
		cfg.FallbackTTL = defaultFallbackTTL
	}
	return &ModelCatalog{
		log:   cfg.Logger,
		cfg:   cfg,
		cache: ttlcache.New(ttlcache.WithTTL[string, []string](cfg.TTL)),
	}
}

// Models returns the sorted chat model ids, or FallbackModels when listing fails.
func (m *ModelCatalog) Models(ctx context.Context) []string {
	if item := m.cache.Get(modelsCacheKey); item != nil {
		return append([]string(nil), item.Value()...)
	}

	models, ttl := m.fetch(ctx)
	m.cache.Set(modelsCacheKey, models, ttl)
	return append([]string(nil), models...)
}

func (m *ModelCatalog) fetch(ctx context.Context) ([]string, time.Duration) {
	if m.cfg.Lister == nil {
		return FallbackModels, m.cfg.TTL
	}
	ids, err := m.cfg.Lister.ListModels(ctx)
	if err != nil {
		m.log.Warn("chat: failed to list models, using fallback", "error", err)
		return FallbackModels, m.cfg.FallbackTTL
	}
	models := FilterChatModels(ids)
	if len(models) == 0 {
		m.log.Warn("chat: no chat models listed, using fallback", "listed", len(ids))
		return FallbackModels, m.cfg.FallbackTTL
	}
	return models, m.cfg.TTL
}

// FilterChatModels keeps GPT chat model ids and sorts them.
func FilterChatModels(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		lower := strings.ToLower(id)
		for _, marker := range chatModelMarkers {
			if strings.Contains(lower, marker) {
				out = append(out, id)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}
