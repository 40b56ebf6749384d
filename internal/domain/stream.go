package domain

import "encoding/json"

// StreamEventType is the type of a newline-delimited stream event.
type StreamEventType string

const (
	StreamEventStep          StreamEventType = "step"
	StreamEventStepResult    StreamEventType = "step_result"
	StreamEventFinalResponse StreamEventType = "final_response"
	StreamEventError         StreamEventType = "error"
)

// StreamEvent is one line of the streaming relay.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	Name      string          `json:"name,omitempty"`
	Args      json.RawMessage `json:"args,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	FinalText string          `json:"finalText,omitempty"`
	ToolSteps []ToolStep      `json:"tool_steps,omitempty"`
	Message   string          `json:"message,omitempty"`
	Status    int             `json:"status,omitempty"`
}

// Envelope converts a final_response event into the host envelope shape.
func (e StreamEvent) Envelope() HostResponse {
	return HostResponse{
		FinalText: e.FinalText,
		ToolSteps: e.ToolSteps,
	}
}
