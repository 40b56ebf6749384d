package domain

import (
	"encoding/json"
	"sort"
)

// Tool names understood by the MCP host.
const (
	ToolStampData  = "stamp_data"
	ToolVerifyData = "verify_data"
)

// ChatMessage is the wire shape of a conversation turn sent to the host.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMSelection optionally pins the provider and model used by the host.
type LLMSelection struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Messages []ChatMessage `json:"messages"`
	ToolArgs ToolArgs      `json:"toolArgs,omitempty"`
	LLM      *LLMSelection `json:"llm,omitempty"`
}

// ToolArgs maps a tool name to its argument envelope. Values are kept raw so
// the server can pass through envelopes it does not know about.
type ToolArgs map[string]json.RawMessage

// Names returns the tool names in sorted order.
func (a ToolArgs) Names() []string {
	names := make([]string, 0, len(a))
	for name := range a {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToolRequest is the "req" object of a stamp or verify envelope.
type ToolRequest struct {
	FileHash string `json:"file_hash,omitempty"`
	FileURL  string `json:"file_url,omitempty"`
	Hash     string `json:"hash,omitempty"`
	APIKey   string `json:"api_key,omitempty"`
}

// ToolEnvelope wraps a ToolRequest under "req".
type ToolEnvelope struct {
	Req ToolRequest `json:"req"`
}

// NewToolArgs builds a single-tool argument map.
func NewToolArgs(tool string, req ToolRequest) ToolArgs {
	raw, _ := json.Marshal(ToolEnvelope{Req: req})
	return ToolArgs{tool: raw}
}

// ToolStep is one tool invocation reported by the host. Result is opaque
// because its shape varies between host versions.
type ToolStep struct {
	Name   string          `json:"name,omitempty"`
	Args   json.RawMessage `json:"args,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	UID    string          `json:"uid,omitempty"`
	TxID   string          `json:"tx_id,omitempty"`
}

// HostResponse is the envelope returned by the host.
type HostResponse struct {
	FinalText string     `json:"finalText"`
	ToolSteps []ToolStep `json:"tool_steps,omitempty"`
	Links     []Link     `json:"links,omitempty"`
}
