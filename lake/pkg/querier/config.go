package querier

import (
	"errors"
	"log/slog"

	"github.com/lakeoracle/oracle/lake/pkg/executor"
)

type Config struct {
	Logger   *slog.Logger
	Executor Executor
	Pinger   Pinger

	// MaxRows is the row cap handed to the executor for statements without a LIMIT.
	MaxRows int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Executor == nil {
		return errors.New("executor is required")
	}
	if cfg.MaxRows <= 0 {
		cfg.MaxRows = executor.DefaultMaxRows
	}
	return nil
}
