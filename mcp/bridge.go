// Package mcp connects remote MCP (Model Context Protocol) servers into the
// runtime: their tools are registered as ordinary handlers and announced to
// the parser, so the model invokes them with the same text tag syntax as the
// built-in tools.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/recodeai/recode"
	"github.com/recodeai/recode/parse"
	"github.com/recodeai/recode/tool"
)

// Bridge holds a connection to one MCP server and the tools it advertises.
// It is safe for concurrent use; the tool list is cached locally and can be
// refreshed with Refresh.
type Bridge struct {
	client *client.Client

	mu    sync.RWMutex
	tools map[string]mcp.Tool
}

// NewBridge connects to an MCP server over stdio. The command is the server
// executable; args are passed to it.
func NewBridge(ctx context.Context, command string, env []string, args ...string) (*Bridge, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("mcp: failed to create client: %w", err)
	}
	return newBridge(ctx, c)
}

// NewBridgeSSE connects to an MCP server over SSE.
func NewBridgeSSE(ctx context.Context, baseURL string) (*Bridge, error) {
	c, err := client.NewSSEMCPClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("mcp: failed to create SSE client: %w", err)
	}
	return newBridge(ctx, c)
}

// NewBridgeFromClient wraps an existing MCP client. The client is started
// and initialized here.
func NewBridgeFromClient(ctx context.Context, c *client.Client) (*Bridge, error) {
	return newBridge(ctx, c)
}

func newBridge(ctx context.Context, c *client.Client) (*Bridge, error) {
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("mcp: failed to start client: %w", err)
	}

	_, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "recode-mcp-client",
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("mcp: failed to initialize session: %w", err)
	}

	b := &Bridge{
		client: c,
		tools:  make(map[string]mcp.Tool),
	}
	if err := b.Refresh(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("mcp: failed to list tools: %w", err)
	}
	return b, nil
}

// Close closes the connection to the MCP server.
func (b *Bridge) Close() error {
	return b.client.Close()
}

// Refresh re-fetches the server's tool list.
func (b *Bridge) Refresh(ctx context.Context) error {
	result, err := b.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.tools = make(map[string]mcp.Tool, len(result.Tools))
	for _, t := range result.Tools {
		b.tools[t.Name] = t
	}
	return nil
}

// Names returns the names of the server's tools.
func (b *Bridge) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.tools))
	for name := range b.tools {
		names = append(names, name)
	}
	return names
}

// Len returns the number of advertised tools.
func (b *Bridge) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.tools)
}

// Has reports whether the server advertises the named tool.
func (b *Bridge) Has(name string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.tools[name]
	return ok
}

// Specs converts the server's tools into parser specs, so the model's text
// tags for them are recognized. MCP schemas are looser than the built-in
// ones: every property maps to a string parameter, required per the schema.
func (b *Bridge) Specs() map[string]parse.ToolSpec {
	b.mu.RLock()
	defer b.mu.RUnlock()

	specs := make(map[string]parse.ToolSpec, len(b.tools))
	for name, t := range b.tools {
		required := make(map[string]bool, len(t.InputSchema.Required))
		for _, r := range t.InputSchema.Required {
			required[r] = true
		}

		spec := parse.ToolSpec{Name: name}
		for prop := range t.InputSchema.Properties {
			spec.Params = append(spec.Params, parse.ParamSpec{
				Name:     prop,
				Kind:     parse.KindString,
				Required: required[prop],
			})
		}
		specs[name] = spec
	}
	return specs
}

// RegisterAll registers a proxy handler for every advertised tool.
func (b *Bridge) RegisterAll(r *tool.Registry) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for name, t := range b.tools {
		name := name
		if err := r.Register(tool.Registration{
			Name:        name,
			Description: t.Description,
			Handler:     b.handler(name),
		}); err != nil {
			return err
		}
	}
	return nil
}

// handler builds the proxy that forwards a tool use to the remote server.
func (b *Bridge) handler(name string) tool.Handler {
	return func(ctx context.Context, call recode.ToolUse) (string, error) {
		args := make(map[string]any, len(call.Params))
		for k, v := range call.Params {
			args[k] = v
		}

		result, err := b.client.CallTool(ctx, mcp.CallToolRequest{
			Params: mcp.CallToolParams{
				Name:      name,
				Arguments: args,
			},
		})
		if err != nil {
			return "", err
		}

		text := renderResult(result)
		if result != nil && result.IsError {
			return "", tool.Failf(tool.FailureInvalidInput, "%s", text)
		}
		return text, nil
	}
}

// renderResult flattens an MCP result to text. Non-text content is carried
// as JSON so nothing the server said is lost.
func renderResult(result *mcp.CallToolResult) string {
	if result == nil {
		return ""
	}

	var parts []string
	for _, c := range result.Content {
		switch content := c.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		default:
			if data, err := json.Marshal(content); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	if result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			parts = append(parts, string(data))
		}
	}
	return strings.Join(parts, "\n")
}
