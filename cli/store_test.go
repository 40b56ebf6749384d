package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaot623/integritas/internal/conversation"
	"github.com/xiaot623/integritas/internal/domain"
	"github.com/xiaot623/integritas/internal/repository"
)

func TestSaveTurnAppendsOnlyNewMessages(t *testing.T) {
	ctx := context.Background()
	store, err := repository.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	conv := conversation.New()
	first := conv.AppendUser("hello")
	require.NoError(t, saveTurn(ctx, store, "p", conv.Messages()))

	before := conv.Len()
	conv.AppendUser("Stamp this hash")
	conv.Append(domain.Message{Role: domain.RoleAssistant, Text: "Done."})
	require.NoError(t, saveTurn(ctx, store, "p", conv.Messages()[before:]))

	got, err := store.LoadMessages(ctx, "p")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, first.ID, got[0].ID)
	assert.Equal(t, "Stamp this hash", got[1].Text)
	assert.Equal(t, "Done.", got[2].Text)

	require.NoError(t, saveTurn(ctx, store, "p", conv.Messages()[before:]))
	got, err = store.LoadMessages(ctx, "p")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
