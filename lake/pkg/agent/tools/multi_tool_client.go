package tools

import (
	"context"
	"fmt"

	"github.com/lakeoracle/oracle/lake/pkg/agent/react"
)

// MultiToolClient merges several tool clients and routes each call by tool name.
type MultiToolClient struct {
	tools []react.Tool
	index map[string]react.ToolClient
}

// NewMultiToolClient lists every client's tools once; a name offered by two clients is an error.
func NewMultiToolClient(ctx context.Context, clients ...react.ToolClient) (*MultiToolClient, error) {
	m := &MultiToolClient{index: make(map[string]react.ToolClient)}
	for _, client := range clients {
		tools, err := client.ListTools(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tools from client: %w", err)
		}
		for _, tool := range tools {
			if _, ok := m.index[tool.Name]; ok {
				return nil, fmt.Errorf("duplicate tool name %q: tool exists in multiple clients", tool.Name)
			}
			m.index[tool.Name] = client
			m.tools = append(m.tools, tool)
		}
	}
	return m, nil
}

func (m *MultiToolClient) ListTools(_ context.Context) ([]react.Tool, error) {
	return m.tools, nil
}

func (m *MultiToolClient) CallToolText(ctx context.Context, name string, args map[string]any) (string, bool, error) {
	client, ok := m.index[name]
	if !ok {
		return "", true, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return client.CallToolText(ctx, name, args)
}
