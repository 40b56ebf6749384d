// Package tools runs host tools for the streaming relay.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"
)

// Runner names.
const (
	RunnerMock = "mock"
	RunnerMCP  = "mcp"
)

// Runner executes one tool call and returns its result in MCP
// CallToolResult shape ({content, structuredContent, isError}).
type Runner interface {
	Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
	Close() error
}

// NewRunner creates the runner selected by kind. Unknown kinds fall back to
// the mock runner, which waits mockDelay per call.
func NewRunner(ctx context.Context, kind, serverURL string, mockDelay time.Duration) (Runner, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case RunnerMCP:
		if serverURL == "" {
			return nil, fmt.Errorf("tool runner %q requires MCP_SERVER_URL", RunnerMCP)
		}
		log.Printf("Using MCP tool runner at %s", serverURL)
		r, err := DialMCP(ctx, serverURL, nil)
		if err != nil {
			return nil, err
		}
		return r, nil
	case RunnerMock, "":
		log.Printf("Using mock tool runner (delay %s)", mockDelay)
		return NewMockRunner().WithDelay(mockDelay), nil
	default:
		log.Printf("WARN: unknown tool runner %q, using mock", kind)
		return NewMockRunner().WithDelay(mockDelay), nil
	}
}
