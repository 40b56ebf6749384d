package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/xiaot623/integritas/internal/domain"
	"github.com/xiaot623/integritas/internal/normalize"
)

// streamExchange consumes a streamed answer into one open assistant message:
// progress text while tools run, then the final text revealed progressively.
func (s *Session) streamExchange(ctx context.Context, req domain.ChatRequest) domain.Message {
	msg := s.conv.BeginAssistant()
	s.notify(msg.ID)

	var final *domain.StreamEvent
	var notes []string
	err := s.streamer.Stream(ctx, req, func(ev domain.StreamEvent) error {
		switch ev.Type {
		case domain.StreamEventStep:
			if err := s.conv.Rewrite(msg.ID, fmt.Sprintf("Running %s...", normalize.Label(ev.Name))); err != nil {
				return err
			}
			s.notify(msg.ID)
		case domain.StreamEventError:
			if ev.Name != "" {
				notes = append(notes, fmt.Sprintf("%s: %s", normalize.Label(ev.Name), ev.Message))
			} else {
				notes = append(notes, ev.Message)
			}
		case domain.StreamEventFinalResponse:
			final = &ev
		}
		return nil
	})
	if err == nil && final == nil {
		err = errors.New("Stream ended without a response.")
	}
	if err != nil {
		return s.fail(msg.ID, err)
	}

	res, err := s.normalizer.NormalizeEnvelope(final.Envelope())
	if err != nil {
		return s.fail(msg.ID, err)
	}
	if err := s.conv.Typewrite(ctx, msg.ID, res.FinalText, s.delay, func(string) { s.notify(msg.ID) }); err != nil {
		return s.fail(msg.ID, err)
	}
	if err := s.conv.Complete(msg.ID, res.FinalText, assistantBlocks(res, notes), res.Links); err != nil {
		return s.conv.AppendError(err)
	}
	return s.message(msg.ID)
}

func (s *Session) fail(id string, err error) domain.Message {
	if ferr := s.conv.Fail(id, err); ferr != nil {
		return s.conv.AppendError(err)
	}
	return s.message(id)
}

func (s *Session) notify(id string) {
	if s.onUpdate != nil {
		s.onUpdate(s.message(id))
	}
}

func (s *Session) message(id string) domain.Message {
	msgs := s.conv.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].ID == id {
			return msgs[i]
		}
	}
	return domain.Message{}
}
