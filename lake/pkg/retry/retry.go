package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultMaxAttempts     = 5
	defaultInitialInterval = 200 * time.Millisecond
	defaultMaxInterval     = 5 * time.Second
	defaultMultiplier      = 2.0
	defaultMaxElapsedTime  = 2 * time.Minute
)

// Config controls exponential backoff between attempts.
type Config struct {
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	MaxElapsedTime  time.Duration

	// Retryable reports whether an error should be retried. Nil retries every error.
	Retryable func(error) bool
	// OnRetry is called before sleeping with the failed attempt number.
	OnRetry func(attempt int, err error, next time.Duration)
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:     defaultMaxAttempts,
		InitialInterval: defaultInitialInterval,
		MaxInterval:     defaultMaxInterval,
		Multiplier:      defaultMultiplier,
		MaxElapsedTime:  defaultMaxElapsedTime,
	}
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.MaxAttempts == 0 {
		out.MaxAttempts = defaultMaxAttempts
	}
	if out.InitialInterval <= 0 {
		out.InitialInterval = defaultInitialInterval
	}
	if out.MaxInterval <= 0 {
		out.MaxInterval = defaultMaxInterval
	}
	if out.Multiplier < 1 {
		out.Multiplier = defaultMultiplier
	}
	if out.MaxElapsedTime <= 0 {
		out.MaxElapsedTime = defaultMaxElapsedTime
	}
	return out
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempt budget runs out.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	_, err := DoValue(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](ctx context.Context, cfg Config, fn func() (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.InitialInterval
	b.MaxInterval = cfg.MaxInterval
	b.Multiplier = cfg.Multiplier

	attempt := 0
	return backoff.Retry(ctx, func() (T, error) {
		attempt++
		v, err := fn()
		if err != nil && cfg.Retryable != nil && !cfg.Retryable(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(cfg.MaxAttempts),
		backoff.WithMaxElapsedTime(cfg.MaxElapsedTime),
		backoff.WithNotify(func(err error, next time.Duration) {
			if cfg.OnRetry != nil {
				cfg.OnRetry(attempt, err, next)
			}
		}),
	)
}
