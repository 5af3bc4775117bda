package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/lakeoracle/oracle/lake/pkg/agent/react"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Definition is a named operation with a JSON input schema derived from its Go input type.
type Definition struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema

	resolved *jsonschema.Resolved
	call     func(ctx context.Context, args map[string]any) (string, error)
	register func(server *mcp.Server, handle func(ctx context.Context, name string, args map[string]any) (string, bool))
}

func newTool[In any](name, description string, fn func(ctx context.Context, in In) (string, error)) (*Definition, error) {
	schema, err := jsonschema.For[In](nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s input schema: %w", name, err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s input schema: %w", name, err)
	}

	d := &Definition{Name: name, Description: description, Schema: schema, resolved: resolved}
	d.call = func(ctx context.Context, args map[string]any) (string, error) {
		in, err := decodeArgs[In](resolved, args)
		if err != nil {
			return "", err
		}
		return fn(ctx, in)
	}
	d.register = func(server *mcp.Server, handle func(context.Context, string, map[string]any) (string, bool)) {
		mcp.AddTool(server, &mcp.Tool{
			Name:        name,
			Description: description,
			InputSchema: schema,
		}, func(ctx context.Context, _ *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
			args, err := toArgs(in)
			if err != nil {
				return nil, nil, err
			}
			text, isErr := handle(ctx, name, args)
			return &mcp.CallToolResult{
				Content: []mcp.Content{&mcp.TextContent{Text: text}},
				IsError: isErr,
			}, nil, nil
		})
	}
	return d, nil
}

// ReactTool returns the definition in the agent's tool format.
func (d *Definition) ReactTool() (react.Tool, error) {
	b, err := json.Marshal(d.Schema)
	if err != nil {
		return react.Tool{}, fmt.Errorf("failed to encode %s schema: %w", d.Name, err)
	}
	var schema map[string]any
	if err := json.Unmarshal(b, &schema); err != nil {
		return react.Tool{}, fmt.Errorf("failed to decode %s schema: %w", d.Name, err)
	}
	return react.Tool{Name: d.Name, Description: d.Description, InputSchema: schema}, nil
}

// decodeArgs validates model-supplied arguments against the schema and decodes them into In.
func decodeArgs[In any](resolved *jsonschema.Resolved, args map[string]any) (In, error) {
	var in In
	if args == nil {
		args = map[string]any{}
	}
	b, err := json.Marshal(args)
	if err != nil {
		return in, fmt.Errorf("invalid arguments: %w", err)
	}
	var instance map[string]any
	if err := json.Unmarshal(b, &instance); err != nil {
		return in, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return in, fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return in, fmt.Errorf("invalid arguments: %w", err)
	}
	return in, nil
}

func toArgs(in any) (map[string]any, error) {
	b, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	var args map[string]any
	if err := json.Unmarshal(b, &args); err != nil {
		return nil, err
	}
	return args, nil
}
