package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/lakeoracle/oracle/lake/pkg/agent/react"
	"github.com/lakeoracle/oracle/lake/pkg/retry"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const defaultMCPRequestTimeout = 120 * time.Second

var mcpClientImplementation = &mcp.Implementation{Name: "lake-oracle-agent", Version: "1.0.0"}

type MCPConfig struct {
	Logger *slog.Logger

	Endpoint       string
	Token          string
	RequestTimeout time.Duration
	Retry          *retry.Config
}

func (cfg *MCPConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = defaultMCPRequestTimeout
	}
	if cfg.Retry == nil {
		c := retry.DefaultConfig()
		cfg.Retry = &c
	}
	return nil
}

// MCPToolClient exposes the tools of a remote MCP server as a react.ToolClient,
// reconnecting when the session drops.
type MCPToolClient struct {
	log    *slog.Logger
	cfg    MCPConfig
	client *mcp.Client

	mu      sync.RWMutex
	session *mcp.ClientSession
}

func NewMCPToolClient(ctx context.Context, cfg MCPConfig) (*MCPToolClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("failed to validate mcp client config: %w", err)
	}
	c := &MCPToolClient{
		log:    cfg.Logger,
		cfg:    cfg,
		client: mcp.NewClient(mcpClientImplementation, nil),
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *MCPToolClient) connect(ctx context.Context) error {
	httpClient := &http.Client{Timeout: c.cfg.RequestTimeout}
	if c.cfg.Token != "" {
		httpClient.Transport = &bearerTransport{base: http.DefaultTransport, token: c.cfg.Token}
	}
	session, err := c.client.Connect(ctx, &mcp.StreamableClientTransport{
		Endpoint:   c.cfg.Endpoint,
		HTTPClient: httpClient,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to MCP server: %w", err)
	}

	c.mu.Lock()
	if c.session != nil {
		_ = c.session.Close()
	}
	c.session = session
	c.mu.Unlock()

	c.log.Info("tools: connected to mcp server", "endpoint", c.cfg.Endpoint)
	return nil
}

// currentSession returns the live session, connecting first if there is none.
func (c *MCPToolClient) currentSession(ctx context.Context) (*mcp.ClientSession, error) {
	c.mu.RLock()
	s := c.session
	c.mu.RUnlock()
	if s != nil {
		return s, nil
	}
	if err := c.connect(ctx); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session, nil
}

func (c *MCPToolClient) dropSession() {
	c.mu.Lock()
	if c.session != nil {
		_ = c.session.Close()
		c.session = nil
	}
	c.mu.Unlock()
}

// withSession runs fn with retries, dropping the session after connection errors.
func (c *MCPToolClient) withSession(ctx context.Context, fn func(*mcp.ClientSession) error) error {
	cfg := *c.cfg.Retry
	cfg.Retryable = isConnectionError
	cfg.OnRetry = func(attempt int, err error, next time.Duration) {
		c.log.Warn("tools: mcp connection error, reconnecting", "attempt", attempt, "error", err, "next", next)
		c.dropSession()
	}
	return retry.Do(ctx, cfg, func() error {
		s, err := c.currentSession(ctx)
		if err != nil {
			return err
		}
		return fn(s)
	})
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"connection closed", "EOF", "client is closing", "broken pipe", "connection reset", "connection refused", "failed to connect"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *MCPToolClient) ListTools(ctx context.Context) ([]react.Tool, error) {
	var res *mcp.ListToolsResult
	err := c.withSession(ctx, func(s *mcp.ClientSession) error {
		var err error
		res, err = s.ListTools(ctx, &mcp.ListToolsParams{})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list mcp tools: %w", err)
	}

	out := make([]react.Tool, 0, len(res.Tools))
	for _, t := range res.Tools {
		schema, _ := t.InputSchema.(map[string]any)
		out = append(out, react.Tool{Name: t.Name, Description: t.Description, InputSchema: schema})
	}
	c.log.Debug("tools: listed mcp tools", "count", len(out))
	return out, nil
}

func (c *MCPToolClient) CallToolText(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	var res *mcp.CallToolResult
	err := c.withSession(ctx, func(s *mcp.ClientSession) error {
		var err error
		res, err = s.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
		return err
	})
	if err != nil {
		return "", true, fmt.Errorf("failed to call mcp tool %s: %w", name, err)
	}

	var parts []string
	for _, content := range res.Content {
		if text, ok := content.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	out := strings.Join(parts, "\n")
	if res.IsError {
		c.log.Warn("tools: mcp tool returned error result", "tool", name, "error", out)
	}
	return out, res.IsError, nil
}

func (c *MCPToolClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Close()
	c.session = nil
	return err
}

type bearerTransport struct {
	base  http.RoundTripper
	token string
}

func (t *bearerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("Authorization", "Bearer "+t.token)
	return t.base.RoundTrip(req)
}
