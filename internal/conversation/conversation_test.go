package conversation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/integritas/internal/domain"
)

func TestWindowKeepsLastTen(t *testing.T) {
	c := New()
	for i := 1; i <= 15; i++ {
		c.AppendUser(fmt.Sprintf("m%d", i))
	}

	window := c.Window()
	require.Len(t, window, ContextWindow)
	assert.Equal(t, "m6", window[0].Content)
	assert.Equal(t, "m15", window[9].Content)
	assert.Equal(t, "user", window[0].Role)
	assert.Equal(t, 15, c.Len())
}

func TestWindowShortConversation(t *testing.T) {
	c := New()
	c.AppendUser("hello")
	assert.Equal(t, []domain.ChatMessage{{Role: "user", Content: "hello"}}, c.Window())
	assert.Empty(t, New().Window())
}

func TestAppendAssignsIDAndTime(t *testing.T) {
	c := New()
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	a := c.AppendUser("a")
	b := c.AppendUser("b")
	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, fixed, a.CreatedAt)

	kept := c.Append(domain.Message{ID: "given", Role: domain.RoleAssistant})
	assert.Equal(t, "given", kept.ID)
}

func TestAppendError(t *testing.T) {
	c := New()
	m := c.AppendError(errors.New("Bad gateway (HTTP 502)."))
	assert.True(t, m.IsError)
	assert.Equal(t, domain.RoleAssistant, m.Role)
	assert.Equal(t, "Bad gateway (HTTP 502).", m.Text)

	assert.Equal(t, "Unexpected error.", c.AppendError(nil).Text)
}

func TestMessagesReturnsCopy(t *testing.T) {
	c := New()
	c.AppendUser("original")
	msgs := c.Messages()
	msgs[0].Text = "mutated"
	assert.Equal(t, "original", c.Messages()[0].Text)
}

func TestClear(t *testing.T) {
	c := New()
	c.AppendUser("a")
	c.Clear()
	assert.Zero(t, c.Len())
	assert.Empty(t, c.Window())
}

func TestStreamingRewriteLifecycle(t *testing.T) {
	c := New()
	m := c.BeginAssistant()
	assert.True(t, m.Streaming)

	require.NoError(t, c.Rewrite(m.ID, "Sta"))
	require.NoError(t, c.Rewrite(m.ID, "Stamped"))
	links := []domain.Link{{Href: "https://x/p/1"}}
	require.NoError(t, c.Complete(m.ID, "Stamped.", nil, links))

	got := c.Messages()[0]
	assert.Equal(t, "Stamped.", got.Text)
	assert.Equal(t, links, got.Links)
	assert.False(t, got.Streaming)

	assert.Error(t, c.Rewrite(m.ID, "again"))
	assert.Error(t, c.Rewrite("missing", "x"))

	user := c.AppendUser("hi")
	assert.Error(t, c.Rewrite(user.ID, "edited"))
}

func TestFailClosesOpenMessage(t *testing.T) {
	c := New()
	m := c.BeginAssistant()
	require.NoError(t, c.Rewrite(m.ID, "Running"))
	require.NoError(t, c.Fail(m.ID, errors.New("Rate limit exceeded (HTTP 429).")))

	got := c.Messages()[0]
	assert.True(t, got.IsError)
	assert.False(t, got.Streaming)
	assert.Equal(t, "Rate limit exceeded (HTTP 429).", got.Text)
	assert.Error(t, c.Fail(m.ID, nil))
}

func TestTypewriteChunks(t *testing.T) {
	c := New()
	m := c.BeginAssistant()

	var steps []string
	err := c.Typewrite(context.Background(), m.ID, "The proof is ready now.", 0, func(p string) {
		steps = append(steps, p)
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"The proo", "The proof is rea", "The proof is ready now."}, steps)
	assert.Equal(t, "The proof is ready now.", c.Messages()[0].Text)
	assert.True(t, c.Messages()[0].Streaming)
}

func TestTypewriteEmptyText(t *testing.T) {
	c := New()
	m := c.BeginAssistant()
	calls := 0
	require.NoError(t, c.Typewrite(context.Background(), m.ID, "", 0, func(string) { calls++ }))
	assert.Equal(t, 1, calls)
}

func TestTypewriteCancelled(t *testing.T) {
	c := New()
	m := c.BeginAssistant()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Typewrite(ctx, m.ID, "a long enough text to need several steps", time.Hour, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "a long e", c.Messages()[0].Text)
}

type memIdentityStore struct {
	tokens  map[string]string
	saveErr error
}

func (s *memIdentityStore) LoadIdentity(_ context.Context, profile string) (string, error) {
	return s.tokens[profile], nil
}

func (s *memIdentityStore) SaveIdentity(_ context.Context, profile, token string) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.tokens[profile] = token
	return nil
}

func TestEnsureIdentity(t *testing.T) {
	ctx := context.Background()
	store := &memIdentityStore{tokens: map[string]string{}}

	first, err := EnsureIdentity(ctx, store, "default")
	require.NoError(t, err)
	assert.NotEmpty(t, first.Token)

	second, err := EnsureIdentity(ctx, store, "default")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := EnsureIdentity(ctx, store, "work")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, other.Token)
}

func TestEnsureIdentitySaveFailure(t *testing.T) {
	store := &memIdentityStore{tokens: map[string]string{}, saveErr: errors.New("read-only")}
	_, err := EnsureIdentity(context.Background(), store, "default")
	assert.ErrorContains(t, err, "read-only")
}
