package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/integritas/internal/domain"
)

// MockRunner simulates the stamping backend. Stamps and verifications
// succeed immediately and link to placeholder proof pages.
type MockRunner struct {
	baseURL string
	delay   time.Duration
}

// NewMockRunner creates a MockRunner.
func NewMockRunner() *MockRunner {
	return &MockRunner{baseURL: "https://proofs.integritas.local"}
}

// WithDelay makes each call take d, to exercise progressive rendering.
func (m *MockRunner) WithDelay(d time.Duration) *MockRunner {
	m.delay = d
	return m
}

type mockResult struct {
	Content           []mockContent  `json:"content"`
	StructuredContent map[string]any `json:"structuredContent,omitempty"`
	IsError           bool           `json:"isError,omitempty"`
}

type mockContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (m *MockRunner) Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}

	var env domain.ToolEnvelope
	if len(args) > 0 {
		if err := json.Unmarshal(args, &env); err != nil {
			return nil, domain.NewError(domain.ErrorInvalidInput, fmt.Sprintf("invalid arguments for %s", name), err)
		}
	}

	uid := uuid.NewString()
	var res mockResult
	switch name {
	case domain.ToolStampData:
		subject := env.Req.FileHash
		if subject == "" {
			subject = env.Req.FileURL
		}
		res = textResult(fmt.Sprintf("Stamped %s", subject), map[string]any{
			"data": map[string]any{
				"uid":       uid,
				"status":    "pending",
				"proof_url": m.baseURL + "/p/" + uid,
			},
		})
	case domain.ToolVerifyData:
		subject := env.Req.Hash
		if subject == "" {
			subject = env.Req.FileURL
		}
		res = textResult(fmt.Sprintf("Verified %s", subject), map[string]any{
			"data": map[string]any{
				"verified":         true,
				"verification_url": m.baseURL + "/v/" + uid,
			},
		})
	case "health", "ready":
		res = textResult("ok", map[string]any{"status": "ok"})
	default:
		res = mockResult{
			Content: []mockContent{{Type: "text", Text: fmt.Sprintf("unknown tool %q", name)}},
			IsError: true,
		}
	}

	out, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return out, nil
}

func (m *MockRunner) Close() error { return nil }

func textResult(text string, structured map[string]any) mockResult {
	return mockResult{
		Content:           []mockContent{{Type: "text", Text: text}},
		StructuredContent: structured,
	}
}
