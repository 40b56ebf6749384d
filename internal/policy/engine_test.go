package policy

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func req(fields map[string]any) map[string]any {
	return map[string]any{"req": fields}
}

func TestDefaultPolicy(t *testing.T) {
	ctx := context.Background()
	engine, err := NewEngine(ctx, DefaultPolicy)
	require.NoError(t, err)

	hash := strings.Repeat("ab", 32)
	tests := []struct {
		name string
		in   Input
		want string
	}{
		{"stamp by hash", Input{ToolName: "stamp_data", Args: req(map[string]any{"file_hash": hash})}, DecisionAllow},
		{"stamp by url", Input{ToolName: "stamp_data", Args: req(map[string]any{"file_url": "https://x/f"})}, DecisionAllow},
		{"stamp short hash", Input{ToolName: "stamp_data", Args: req(map[string]any{"file_hash": "abc"})}, DecisionBlock},
		{"stamp empty", Input{ToolName: "stamp_data"}, DecisionBlock},
		{"verify by hash", Input{ToolName: "verify_data", Args: req(map[string]any{"hash": hash})}, DecisionAllow},
		{"verify by url", Input{ToolName: "verify_data", Args: req(map[string]any{"file_url": "http://x/f"})}, DecisionAllow},
		{"verify bad", Input{ToolName: "verify_data", Args: req(map[string]any{"hash": "zz"})}, DecisionBlock},
		{"health", Input{ToolName: "health"}, DecisionAllow},
		{"unknown tool", Input{ToolName: "rm_rf"}, DecisionBlock},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := engine.Evaluate(ctx, tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewEngineRejectsInvalidPolicy(t *testing.T) {
	_, err := NewEngine(context.Background(), "package tool_policy\n decision = {")
	assert.Error(t, err)
}

func TestEvaluateUndefinedAllows(t *testing.T) {
	engine, err := NewEngine(context.Background(), "package tool_policy\n")
	require.NoError(t, err)
	got, err := engine.Evaluate(context.Background(), Input{ToolName: "x"})
	require.NoError(t, err)
	assert.Equal(t, DecisionAllow, got)
}
