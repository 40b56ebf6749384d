package conversation

import (
	"context"
	"time"
)

// TypewriterChunk is the number of characters revealed per step.
const TypewriterChunk = 8

// Typewrite rewrites the open assistant message id with progressively longer
// prefixes of text, TypewriterChunk runes at a time, pausing delay between
// steps. The message is left open; callers finish it with Complete.
func (c *Conversation) Typewrite(ctx context.Context, id, text string, delay time.Duration, onStep func(partial string)) error {
	runes := []rune(text)
	for end := TypewriterChunk; ; end += TypewriterChunk {
		if end > len(runes) {
			end = len(runes)
		}
		partial := string(runes[:end])
		if err := c.Rewrite(id, partial); err != nil {
			return err
		}
		if onStep != nil {
			onStep(partial)
		}
		if end == len(runes) {
			return nil
		}
		if delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}
}
