package querier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lakeoracle/oracle/lake/pkg/engine"
	"github.com/lakeoracle/oracle/lake/pkg/executor"
	"github.com/lakeoracle/oracle/lake/pkg/querier/metrics"
)

type Executor interface {
	Query(ctx context.Context, sql string, maxRows int) (*engine.Result, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// Querier runs client statements through the read-only executor policy.
type Querier struct {
	log *slog.Logger
	cfg Config
}

func New(cfg Config) (*Querier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate querier config: %w", err)
	}
	return &Querier{
		log: cfg.Logger,
		cfg: cfg,
	}, nil
}

// Query runs sql. Non-SELECT statements fail with executor.ErrNotSelect.
func (q *Querier) Query(ctx context.Context, sql string) (*engine.Result, error) {
	res, err := q.cfg.Executor.Query(ctx, sql, q.cfg.MaxRows)
	switch {
	case errors.Is(err, executor.ErrNotSelect):
		metrics.QueriesTotal.WithLabelValues("rejected").Inc()
		return nil, err
	case err != nil:
		metrics.QueriesTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	metrics.QueriesTotal.WithLabelValues("ok").Inc()
	return res, nil
}

// Ready reports whether the underlying engine answers a ping. Without a pinger it is always ready.
func (q *Querier) Ready(ctx context.Context) bool {
	if q.cfg.Pinger == nil {
		return true
	}
	if err := q.cfg.Pinger.Ping(ctx); err != nil {
		q.log.Debug("querier: ping failed", "error", err)
		return false
	}
	return true
}
