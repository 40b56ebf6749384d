// Package conversation holds the ordered chat transcript of one client session.
package conversation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/xiaot623/integritas/internal/domain"
)

// ContextWindow is the number of most recent messages sent with each host call.
const ContextWindow = 10

// Conversation is an ordered list of messages. Appended messages are
// immutable, except that an assistant message begun with BeginAssistant may
// be rewritten until Complete is called.
type Conversation struct {
	mu       sync.Mutex
	messages []domain.Message
	now      func() time.Time
}

// New creates an empty conversation.
func New() *Conversation {
	return &Conversation{now: time.Now}
}

// Restore creates a conversation from a previously exported transcript.
func Restore(messages []domain.Message) *Conversation {
	c := New()
	c.messages = append(c.messages, messages...)
	return c
}

// Append adds m, assigning an ID and creation time when unset, and returns
// the stored copy.
func (c *Conversation) Append(m domain.Message) domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = c.now()
	}
	c.messages = append(c.messages, m)
	return m
}

// AppendUser adds a user turn.
func (c *Conversation) AppendUser(text string) domain.Message {
	return c.Append(domain.Message{Role: domain.RoleUser, Text: text})
}

// AppendError adds an assistant turn flagged as an error.
func (c *Conversation) AppendError(err error) domain.Message {
	text := "Unexpected error."
	if err != nil && err.Error() != "" {
		text = err.Error()
	}
	return c.Append(domain.Message{Role: domain.RoleAssistant, Text: text, IsError: true})
}

// Messages returns a copy of the transcript.
func (c *Conversation) Messages() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Window returns the last ContextWindow messages in host wire form.
func (c *Conversation) Window() []domain.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := 0
	if len(c.messages) > ContextWindow {
		start = len(c.messages) - ContextWindow
	}
	out := make([]domain.ChatMessage, 0, len(c.messages)-start)
	for _, m := range c.messages[start:] {
		out = append(out, domain.ChatMessage{Role: string(m.Role), Content: m.Text})
	}
	return out
}

// Clear removes all messages.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = nil
}

// BeginAssistant appends an empty assistant message that stays open for
// Rewrite until Complete is called.
func (c *Conversation) BeginAssistant() domain.Message {
	return c.Append(domain.Message{Role: domain.RoleAssistant, Streaming: true})
}

// Rewrite replaces the text of an open assistant message.
func (c *Conversation) Rewrite(id, text string) error {
	return c.update(id, func(m *domain.Message) {
		m.Text = text
	})
}

// Complete closes an open assistant message, setting its final text, blocks
// and links.
func (c *Conversation) Complete(id, text string, blocks []domain.Block, links []domain.Link) error {
	return c.update(id, func(m *domain.Message) {
		m.Text = text
		m.Blocks = blocks
		m.Links = links
		m.Streaming = false
	})
}

// Fail closes an open assistant message as an error turn.
func (c *Conversation) Fail(id string, err error) error {
	text := "Unexpected error."
	if err != nil && err.Error() != "" {
		text = err.Error()
	}
	return c.update(id, func(m *domain.Message) {
		m.Text = text
		m.IsError = true
		m.Streaming = false
	})
}

func (c *Conversation) update(id string, fn func(m *domain.Message)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.messages) - 1; i >= 0; i-- {
		m := &c.messages[i]
		if m.ID != id {
			continue
		}
		if !m.Streaming {
			return fmt.Errorf("message %s is not open for rewriting", id)
		}
		fn(m)
		return nil
	}
	return fmt.Errorf("message %s not found", id)
}
