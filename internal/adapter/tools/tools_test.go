package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/integritas/internal/domain"
	"github.com/xiaot623/integritas/internal/normalize"
)

func stepLinks(t *testing.T, name string, result json.RawMessage) []domain.Link {
	t.Helper()
	body, err := json.Marshal(domain.HostResponse{ToolSteps: []domain.ToolStep{{Name: name, Result: result}}})
	require.NoError(t, err)
	res, err := normalize.New(normalize.ParseSilent).Normalize(body)
	require.NoError(t, err)
	return res.Links
}

func TestMockRunnerStamp(t *testing.T) {
	hash := strings.Repeat("0f", 32)
	out, err := NewMockRunner().Call(context.Background(), domain.ToolStampData, domain.NewToolArgs(domain.ToolStampData, domain.ToolRequest{FileHash: hash})[domain.ToolStampData])
	require.NoError(t, err)

	var res struct {
		Content []struct{ Text string } `json:"content"`
	}
	require.NoError(t, json.Unmarshal(out, &res))
	assert.Equal(t, "Stamped "+hash, res.Content[0].Text)

	links := stepLinks(t, domain.ToolStampData, out)
	require.Len(t, links, 1)
	assert.True(t, strings.HasPrefix(links[0].Href, "https://proofs.integritas.local/p/"))
}

func TestMockRunnerVerify(t *testing.T) {
	out, err := NewMockRunner().Call(context.Background(), domain.ToolVerifyData, json.RawMessage(`{"req":{"hash":"abc"}}`))
	require.NoError(t, err)

	links := stepLinks(t, domain.ToolVerifyData, out)
	require.Len(t, links, 1)
	assert.Equal(t, "View verification", links[0].Label)
}

func TestMockRunnerUnknownTool(t *testing.T) {
	out, err := NewMockRunner().Call(context.Background(), "mystery", nil)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"isError":true`)

	_, err = NewMockRunner().Call(context.Background(), domain.ToolStampData, json.RawMessage(`[1]`))
	assert.Equal(t, domain.ErrorInvalidInput, domain.CodeOf(err))
}

func TestNewRunner(t *testing.T) {
	r, err := NewRunner(context.Background(), "", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &MockRunner{}, r)

	r, err = NewRunner(context.Background(), "something", "", 0)
	require.NoError(t, err)
	assert.IsType(t, &MockRunner{}, r)

	_, err = NewRunner(context.Background(), "mcp", "", 0)
	assert.Error(t, err)
}

func TestMockRunnerDelay(t *testing.T) {
	r, err := NewRunner(context.Background(), "mock", "", 30*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	_, err = r.Call(context.Background(), "health", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewMockRunner().WithDelay(time.Hour).Call(ctx, "health", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func newTestServer() *server.MCPServer {
	s := server.NewMCPServer("integritas-test", "1.0.0", server.WithToolCapabilities(true))

	stamp := mcp.NewTool(domain.ToolStampData,
		mcp.WithDescription("Stamp a file hash"),
		mcp.WithObject("req", mcp.Required()),
	)
	s.AddTool(stamp, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		req, _ := request.GetArguments()["req"].(map[string]any)
		hash, _ := req["file_hash"].(string)
		if hash == "" {
			return mcp.NewToolResultError("file_hash is required"), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{mcp.NewTextContent("stamped " + hash)},
			StructuredContent: map[string]any{
				"data": map[string]any{"proof_url": "https://x/p/" + hash[:8]},
			},
		}, nil
	})
	return s
}

func newInProcessRunner(t *testing.T) *MCPRunner {
	t.Helper()
	c, err := client.NewInProcessClient(newTestServer())
	require.NoError(t, err)
	r, err := NewMCPRunner(context.Background(), c)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestMCPRunnerCallsTool(t *testing.T) {
	r := newInProcessRunner(t)
	hash := strings.Repeat("ab", 32)

	out, err := r.Call(context.Background(), domain.ToolStampData, json.RawMessage(`{"req":{"file_hash":"`+hash+`"}}`))
	require.NoError(t, err)

	links := stepLinks(t, domain.ToolStampData, out)
	require.Len(t, links, 1)
	assert.Equal(t, "https://x/p/abababab", links[0].Href)
}

func TestMCPRunnerToolError(t *testing.T) {
	r := newInProcessRunner(t)

	out, err := r.Call(context.Background(), domain.ToolStampData, json.RawMessage(`{"req":{}}`))
	require.NoError(t, err)
	assert.Contains(t, string(out), `"isError":true`)
	assert.Contains(t, string(out), "file_hash is required")
}
