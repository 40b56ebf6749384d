package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/xiaot623/integritas/internal/domain"
)

// MCPRunner calls tools on an MCP server.
type MCPRunner struct {
	client *client.Client
}

// DialMCP connects to a streamable-HTTP MCP server and performs the
// initialize handshake.
func DialMCP(ctx context.Context, serverURL string, headers map[string]string) (*MCPRunner, error) {
	c, err := client.NewStreamableHttpClient(serverURL, transport.WithHTTPHeaders(headers))
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	return NewMCPRunner(ctx, c)
}

// NewMCPRunner starts and initializes c.
func NewMCPRunner(ctx context.Context, c *client.Client) (*MCPRunner, error) {
	if err := c.Start(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcp.Implementation{
		Name:    "integritas",
		Version: "1.0.0",
	}
	if _, err := c.Initialize(ctx, initReq); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}
	return &MCPRunner{client: c}, nil
}

func (r *MCPRunner) Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	arguments := map[string]any{}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &arguments); err != nil {
			return nil, domain.NewError(domain.ErrorInvalidInput, fmt.Sprintf("invalid arguments for %s", name), err)
		}
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = arguments

	res, err := r.client.CallTool(ctx, req)
	if err != nil {
		return nil, domain.NewError(domain.ErrorUpstream, fmt.Sprintf("tool %s failed", name), err)
	}

	out, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tool result: %w", err)
	}
	return out, nil
}

func (r *MCPRunner) Close() error {
	return r.client.Close()
}
