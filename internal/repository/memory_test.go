package repository

import (
	"context"
	"errors"
	"testing"

	"github.com/debatecards/debate-server-go/internal/catalog"
	"github.com/debatecards/debate-server-go/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestMemoryRejectsOrphans(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	err := m.AppendEvent(ctx, rules.Event{GameID: "ghost", Command: rules.CommandDraw})
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = m.Load(ctx, "ghost")
	assert.True(t, errors.Is(err, ErrNotFound))

	defs, err := m.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, defs.Len())
}

func TestMemoryReplaceCatalogDropsGames(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	defs := catalog.Standard()
	require.NoError(t, m.ReplaceCatalog(ctx, defs))
	require.NoError(t, m.CreateGame(ctx, newGame(t, defs, 2)))

	require.NoError(t, m.ReplaceCatalog(ctx, catalog.Standard()))
	_, found, err := m.FindUnfinished(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}
