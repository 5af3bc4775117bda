package enginetesting

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	tcch "github.com/testcontainers/testcontainers-go/modules/clickhouse"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/lakeoracle/oracle/lake/pkg/engine"
	"github.com/lakeoracle/oracle/lake/pkg/retry"
)

type ContainerConfig struct {
	Database       string
	Username       string
	Password       string
	ContainerImage string
}

func (cfg *ContainerConfig) withDefaults(image string) ContainerConfig {
	out := ContainerConfig{}
	if cfg != nil {
		out = *cfg
	}
	if out.Database == "" {
		out.Database = "test"
	}
	if out.Username == "" {
		out.Username = "lake"
	}
	if out.Password == "" {
		out.Password = "password"
	}
	if out.ContainerImage == "" {
		out.ContainerImage = image
	}
	return out
}

func Logger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// NewDuckDB returns an in-memory DuckDB engine closed at cleanup.
func NewDuckDB(t testing.TB) engine.Engine {
	t.Helper()
	eng, err := engine.New(t.Context(), engine.Config{Logger: Logger(t), Driver: engine.DriverDuckDB})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

// Engine is a containerized engine with the DSN it was opened with.
type Engine struct {
	engine.Engine
	DSN string
}

func startRetry() retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 3
	cfg.InitialInterval = 750 * time.Millisecond
	cfg.Retryable = isRetryableContainerStartErr
	return cfg
}

func connectRetry() *retry.Config {
	cfg := retry.DefaultConfig()
	cfg.MaxAttempts = 10
	cfg.InitialInterval = 250 * time.Millisecond
	return &cfg
}

// NewPostgres starts a postgres container and opens a postgres engine against it.
func NewPostgres(t testing.TB, cfg *ContainerConfig) *Engine {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	c := cfg.withDefaults("postgres:16-alpine")
	ctx := t.Context()

	container, err := retry.DoValue(ctx, startRetry(), func() (*tcpg.PostgresContainer, error) {
		return tcpg.Run(ctx, c.ContainerImage,
			tcpg.WithDatabase(c.Database),
			tcpg.WithUsername(c.Username),
			tcpg.WithPassword(c.Password),
		)
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, nat.Port("5432/tcp"))
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable", c.Username, c.Password, host, port.Port(), c.Database)
	return open(t, engine.DriverPostgres, dsn)
}

// NewClickHouse starts a clickhouse container and opens a clickhouse engine against it.
func NewClickHouse(t testing.TB, cfg *ContainerConfig) *Engine {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	c := cfg.withDefaults("clickhouse/clickhouse-server:latest")
	ctx := t.Context()

	container, err := retry.DoValue(ctx, startRetry(), func() (*tcch.ClickHouseContainer, error) {
		return tcch.Run(ctx, c.ContainerImage,
			tcch.WithDatabase(c.Database),
			tcch.WithUsername(c.Username),
			tcch.WithPassword(c.Password),
		)
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, nat.Port("9000/tcp"))
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s@%s:%s/%s", c.Username, c.Password, host, port.Port(), c.Database)
	return open(t, engine.DriverClickHouse, dsn)
}

func open(t testing.TB, driver engine.Driver, dsn string) *Engine {
	t.Helper()
	eng, err := engine.New(t.Context(), engine.Config{
		Logger:       Logger(t),
		Driver:       driver,
		DSN:          dsn,
		ConnectRetry: connectRetry(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return &Engine{Engine: eng, DSN: dsn}
}

func isRetryableContainerStartErr(err error) bool {
	s := err.Error()
	return strings.Contains(s, "wait until ready") ||
		strings.Contains(s, "mapped port") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "context deadline exceeded") ||
		strings.Contains(s, "docker.sock")
}
