package server

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	defaultReadHeaderTimeout = 5 * time.Second
	defaultShutdownTimeout   = 5 * time.Second
)

// ToolRegistrar adds its tools to an MCP server.
type ToolRegistrar interface {
	RegisterMCP(server *mcp.Server)
}

type Config struct {
	Logger *slog.Logger
	Tools  ToolRegistrar

	// Ready reports whether the backing engine can serve queries. Nil means always ready.
	Ready func(ctx context.Context) error

	Version           string
	ListenAddr        string
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	// AllowedTokens enables bearer authentication on the MCP endpoint when non-empty.
	AllowedTokens []string
}

func (c *Config) Validate() error {
	if c.Logger == nil {
		return errors.New("logger is required")
	}
	if c.Tools == nil {
		return errors.New("tools are required")
	}
	if c.Version == "" {
		c.Version = "dev"
	}
	if c.ReadHeaderTimeout == 0 {
		c.ReadHeaderTimeout = defaultReadHeaderTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = defaultShutdownTimeout
	}
	return nil
}
