package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/xiaot623/integritas/internal/domain"
	"github.com/xiaot623/integritas/internal/normalize"
	"github.com/xiaot623/integritas/internal/policy"
)

// Emitter receives stream events in order. An error stops the stream.
type Emitter func(ev domain.StreamEvent) error

const capabilitiesText = "I can stamp a file hash on the Integritas network and verify stamped files or hashes. Attach a file or paste a hash to get started."

// StreamChat runs the tools named in req.ToolArgs in sorted order, emitting
// step and step_result events for each, an error event for each tool that
// is blocked or fails, and finally a final_response carrying all completed
// tool steps.
func (s *Service) StreamChat(ctx context.Context, req domain.ChatRequest, emit Emitter) error {
	var steps []domain.ToolStep
	var labels []string

	for _, name := range req.ToolArgs.Names() {
		if err := ctx.Err(); err != nil {
			return err
		}
		args := req.ToolArgs[name]
		if err := emit(domain.StreamEvent{Type: domain.StreamEventStep, Name: name, Args: args}); err != nil {
			return err
		}

		if msg, blocked := s.blocked(ctx, name, args); blocked {
			if err := emit(domain.StreamEvent{Type: domain.StreamEventError, Name: name, Message: msg}); err != nil {
				return err
			}
			continue
		}

		start := time.Now()
		result, err := s.runner.Call(ctx, name, args)
		s.metrics.ObserveUpstream(start)
		if err != nil {
			log.Printf("WARN: tool %s failed: %v", name, err)
			if err := emit(domain.StreamEvent{Type: domain.StreamEventError, Name: name, Message: err.Error()}); err != nil {
				return err
			}
			continue
		}

		if err := emit(domain.StreamEvent{Type: domain.StreamEventStepResult, Name: name, Result: result}); err != nil {
			return err
		}
		steps = append(steps, domain.ToolStep{Name: name, Args: args, Result: result})
		labels = append(labels, normalize.Label(name))
	}

	return emit(domain.StreamEvent{
		Type:      domain.StreamEventFinalResponse,
		FinalText: finalText(req, labels),
		ToolSteps: steps,
	})
}

// blocked consults the tool policy. Policy evaluation failures block the call.
func (s *Service) blocked(ctx context.Context, name string, args json.RawMessage) (string, bool) {
	if s.policy == nil {
		return "", false
	}
	in := policy.Input{ToolName: name}
	if len(args) > 0 {
		if err := json.Unmarshal(args, &in.Args); err != nil {
			return fmt.Sprintf("Tool %s has malformed arguments", name), true
		}
	}
	decision, err := s.policy.Evaluate(ctx, in)
	if err != nil {
		log.Printf("ERROR: policy evaluation for %s failed: %v", name, err)
		return fmt.Sprintf("Tool %s could not be authorized", name), true
	}
	if decision != policy.DecisionAllow {
		return fmt.Sprintf("Tool %s was blocked by policy", name), true
	}
	return "", false
}

func finalText(req domain.ChatRequest, labels []string) string {
	if len(req.ToolArgs) == 0 {
		return capabilitiesText
	}
	if len(labels) == 0 {
		return "No tools completed."
	}
	return fmt.Sprintf("Done. I ran %s.", strings.Join(labels, ", "))
}
