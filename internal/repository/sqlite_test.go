package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/integritas/internal/conversation"
	"github.com/xiaot623/integritas/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestIdentity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	token, err := store.LoadIdentity(ctx, "default")
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.SaveIdentity(ctx, "default", "t1"))
	require.NoError(t, store.SaveIdentity(ctx, "default", "t2"))
	token, err = store.LoadIdentity(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "t2", token)
}

func TestEnsureIdentityPersists(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	first, err := conversation.EnsureIdentity(ctx, store, "work")
	require.NoError(t, err)
	second, err := conversation.EnsureIdentity(ctx, store, "work")
	require.NoError(t, err)
	assert.Equal(t, first.Token, second.Token)

	other, err := conversation.EnsureIdentity(ctx, store, "home")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, other.Token)
}

func TestMessagesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	conv := conversation.New()
	conv.AppendUser("Stamp this hash")
	conv.Append(domain.Message{
		Role:   domain.RoleAssistant,
		Text:   "Done.",
		Blocks: []domain.Block{domain.HeadingBlock("Tool"), domain.ToolJSONBlock(`{"ok":true}`)},
		Links:  []domain.Link{{Rel: "proof", Href: "https://p/1", Label: "Download proof"}},
	})
	conv.AppendError(nil)

	for _, m := range conv.Messages() {
		require.NoError(t, store.AppendMessage(ctx, "default", m))
	}

	got, err := store.LoadMessages(ctx, "default")
	require.NoError(t, err)
	want := conv.Messages()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].ID, got[i].ID)
		assert.Equal(t, want[i].Role, got[i].Role)
		assert.Equal(t, want[i].Text, got[i].Text)
		assert.Equal(t, want[i].Blocks, got[i].Blocks)
		assert.Equal(t, want[i].Links, got[i].Links)
		assert.Equal(t, want[i].IsError, got[i].IsError)
		assert.WithinDuration(t, want[i].CreatedAt, got[i].CreatedAt, time.Millisecond)
	}

	restored := conversation.Restore(got)
	assert.Equal(t, 3, restored.Len())
}

func TestAppendMessageUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	m := domain.Message{ID: "m1", Role: domain.RoleAssistant, Text: "The proo", CreatedAt: time.Now()}
	require.NoError(t, store.AppendMessage(ctx, "p", m))
	require.NoError(t, store.AppendMessage(ctx, "p", domain.Message{ID: "m2", Role: domain.RoleUser, Text: "next", CreatedAt: time.Now()}))
	m.Text = "The proof is ready now."
	require.NoError(t, store.AppendMessage(ctx, "p", m))

	got, err := store.LoadMessages(ctx, "p")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "The proof is ready now.", got[0].Text)
	assert.Equal(t, "next", got[1].Text)
}

func TestProfilesAreIsolated(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.AppendMessage(ctx, "a", domain.Message{ID: "m1", Role: domain.RoleUser, Text: "a", CreatedAt: time.Now()}))
	require.NoError(t, store.AppendMessage(ctx, "b", domain.Message{ID: "m1", Role: domain.RoleUser, Text: "b", CreatedAt: time.Now()}))
	require.NoError(t, store.ClearMessages(ctx, "a"))

	got, err := store.LoadMessages(ctx, "a")
	require.NoError(t, err)
	assert.Empty(t, got)
	got, err = store.LoadMessages(ctx, "b")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].Text)
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	var empty bytes.Buffer
	require.NoError(t, store.Export(ctx, "p", &empty))
	assert.Equal(t, "[]\n", empty.String())

	require.NoError(t, store.AppendMessage(ctx, "p", domain.Message{ID: "m1", Role: domain.RoleUser, Text: "hi", CreatedAt: time.Now()}))
	var buf bytes.Buffer
	require.NoError(t, store.Export(ctx, "p", &buf))

	var msgs []domain.Message
	require.NoError(t, json.Unmarshal(buf.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Text)
}
