package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/lakeoracle/oracle/lake/pkg/metrics"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"

	DefaultIdleTTL = 24 * time.Hour
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrEmptyQuery      = errors.New("query is empty")
	ErrInvalidContext  = errors.New("invalid database context")
)

type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is a snapshot of one conversation.
type Session struct {
	ID        string    `json:"id"`
	Settings  Settings  `json:"settings"`
	Context   DBContext `json:"context"`
	History   []Turn    `json:"history"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type StoreConfig struct {
	Logger    *slog.Logger
	Completer Completer
	Clock     clockwork.Clock

	// IdleTTL is how long a session survives without being touched.
	IdleTTL time.Duration
}

func (cfg *StoreConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Completer == nil {
		return errors.New("completer is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.IdleTTL == 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	if cfg.IdleTTL < 0 {
		return errors.New("idle ttl must be greater than 0")
	}
	return nil
}

type entry struct {
	// submit serializes submissions and clears so every submission lands as an adjacent pair.
	submit   sync.Mutex
	data     Session
	lastSeen time.Time
}

// Store holds chat sessions in process memory.
type Store struct {
	log *slog.Logger
	cfg StoreConfig

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewStore(cfg StoreConfig) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate store config: %w", err)
	}
	return &Store{log: cfg.Logger, cfg: cfg, sessions: make(map[string]*entry)}, nil
}

func (s *Store) Create() Session {
	now := s.cfg.Clock.Now()
	e := &entry{data: Session{
		ID:        uuid.NewString(),
		Settings:  DefaultSettings(),
		Context:   DefaultDBContext(),
		History:   []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
	}, lastSeen: now}

	s.mu.Lock()
	s.sessions[e.data.ID] = e
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.ChatSessionsActive.Set(float64(n))
	s.log.Debug("chat: session created", "session_id", e.data.ID)
	return snapshot(e.data)
}

func (s *Store) Get(id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return Session{}, err
	}
	e.lastSeen = s.cfg.Clock.Now()
	return snapshot(e.data), nil
}

func (s *Store) UpdateSettings(id string, settings Settings) (Session, error) {
	if err := settings.Validate(); err != nil {
		return Session{}, err
	}
	return s.update(id, func(sess *Session) { sess.Settings = settings })
}

func (s *Store) UpdateContext(id string, c DBContext) (Session, error) {
	if strings.TrimSpace(c.Catalog) == "" {
		return Session{}, fmt.Errorf("%w: catalog is required", ErrInvalidContext)
	}
	return s.update(id, func(sess *Session) { sess.Context = c })
}

// Clear empties the history.
func (s *Store) Clear(id string) (Session, error) {
	e, err := s.entry(id)
	if err != nil {
		return Session{}, err
	}
	e.submit.Lock()
	defer e.submit.Unlock()
	return s.update(id, func(sess *Session) { sess.History = []Turn{} })
}

// Submit appends the user turn, asks the completer for a reply and appends it.
// A failed completion is logged and replaced by FallbackReply, so the history
// always grows by exactly two turns.
func (s *Store) Submit(ctx context.Context, id, query string) (Session, error) {
	if strings.TrimSpace(query) == "" {
		return Session{}, ErrEmptyQuery
	}
	e, err := s.entry(id)
	if err != nil {
		return Session{}, err
	}
	e.submit.Lock()
	defer e.submit.Unlock()

	var (
		settings Settings
		dbctx    DBContext
		messages []Turn
	)
	if _, err := s.update(id, func(sess *Session) {
		sess.History = append(sess.History, Turn{Role: RoleUser, Content: query})
		settings, dbctx = sess.Settings, sess.Context
		messages = make([]Turn, 0, len(sess.History)+1)
		messages = append(messages, Turn{Role: RoleSystem, Content: FullSystemMessage(settings.SystemMessage, dbctx)})
		messages = append(messages, sess.History...)
	}); err != nil {
		return Session{}, err
	}

	reply, err := s.cfg.Completer.Complete(ctx, settings, messages)
	if err != nil {
		metrics.ChatCompletionsTotal.WithLabelValues(settings.Model, "fallback").Inc()
		s.log.Warn("chat: completion failed, using fallback reply", "session_id", id, "model", settings.Model, "error", err)
		reply = FallbackReply(query, dbctx, settings)
	} else {
		metrics.ChatCompletionsTotal.WithLabelValues(settings.Model, "ok").Inc()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// The entry may have expired while the completion was in flight; finish the pair anyway.
	e.data.History = append(e.data.History, Turn{Role: RoleAssistant, Content: reply})
	e.data.UpdatedAt = s.cfg.Clock.Now()
	e.lastSeen = e.data.UpdatedAt
	return snapshot(e.data), nil
}

// Expire drops sessions not accessed for longer than the TTL and returns how many were removed.
func (s *Store) Expire() int {
	now := s.cfg.Clock.Now()
	s.mu.Lock()
	removed := 0
	for id, e := range s.sessions {
		if now.Sub(e.lastSeen) > s.cfg.IdleTTL {
			delete(s.sessions, id)
			removed++
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	metrics.ChatSessionsActive.Set(float64(n))
	if removed > 0 {
		s.log.Info("chat: expired idle sessions", "removed", removed, "remaining", n)
	}
	return removed
}

// Run expires idle sessions every interval until ctx is done.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	ticker := s.cfg.Clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Expire()
		}
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Store) entry(id string) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookup(id)
}

// lookup must be called with mu held.
func (s *Store) lookup(id string) (*entry, error) {
	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return e, nil
}

func (s *Store) update(id string, fn func(*Session)) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.lookup(id)
	if err != nil {
		return Session{}, err
	}
	fn(&e.data)
	e.data.UpdatedAt = s.cfg.Clock.Now()
	e.lastSeen = e.data.UpdatedAt
	return snapshot(e.data), nil
}

func snapshot(sess Session) Session {
	sess.History = append([]Turn{}, sess.History...)
	return sess
}
