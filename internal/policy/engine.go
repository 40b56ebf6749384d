// Package policy decides whether the streaming relay may run a tool.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decisions returned by the policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Input is the document the policy is evaluated against.
type Input struct {
	ToolName string         `json:"tool_name"`
	Args     map[string]any `json:"args"`
}

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares policyContent, which must define data.tool_policy.decision.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.tool_policy.decision"),
		rego.Module("tool_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}
	return &Engine{query: query}, nil
}

// Evaluate returns the decision for in. A policy without a matching rule
// allows the call.
func (e *Engine) Evaluate(ctx context.Context, in Input) (string, error) {
	if in.Args == nil {
		in.Args = map[string]any{}
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(in))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, nil
	}
	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return "", fmt.Errorf("policy returned %T, want string", results[0].Expressions[0].Value)
}

// DefaultPolicy allows the known host tools and blocks malformed stamp and
// verify envelopes.
const DefaultPolicy = `
package tool_policy

known_tools := {
	"stamp_data", "verify_data", "health", "ready",
	"stamp_hash", "validate_hash", "get_stamp_status", "resolve_proof",
}

default decision = "allow"

decision = "block" {
	not known_tools[input.tool_name]
}

decision = "block" {
	input.tool_name == "stamp_data"
	not valid_stamp
}

decision = "block" {
	input.tool_name == "verify_data"
	not valid_verify
}

valid_stamp {
	regex.match("^[a-fA-F0-9]{64}$", input.args.req.file_hash)
}

valid_stamp {
	startswith(input.args.req.file_url, "http")
}

valid_verify {
	regex.match("^[a-fA-F0-9]{64}$", input.args.req.hash)
}

valid_verify {
	startswith(input.args.req.file_url, "http")
}
`
