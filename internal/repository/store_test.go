package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/debatecards/debate-server-go/internal/catalog"
	"github.com/debatecards/debate-server-go/internal/game"
	"github.com/debatecards/debate-server-go/internal/game/rules"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/exp/rand"
)

type repo interface {
	game.Store
	Events(ctx context.Context, gameID string) ([]rules.Event, error)
	CreateGame(ctx context.Context, state *game.GameState) error
	FindUnfinished(ctx context.Context) (string, bool, error)
	ClearGames(ctx context.Context) (int64, error)
	ReplaceCatalog(ctx context.Context, c *catalog.Catalog) error
	LoadCatalog(ctx context.Context) (*catalog.Catalog, error)
	LockGame(ctx context.Context, gameID string) (func(), error)
}

var (
	_ repo = (*Memory)(nil)
	_ repo = (*Postgres)(nil)
)

func newGame(t *testing.T, defs *catalog.Catalog, seed uint64) *game.GameState {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	d1, err := catalog.RandomDeck(rng, defs, catalog.DefaultDeckSpec)
	require.NoError(t, err)
	d2, err := catalog.RandomDeck(rng, defs, catalog.DefaultDeckSpec)
	require.NoError(t, err)
	return game.NewGameState("", game.NewPlayerState(uuid.NewString(), 1, d1), game.NewPlayerState(uuid.NewString(), 2, d2))
}

// exerciseStore runs a match through a live engine backed by r and checks
// that reloading yields the same state.
func exerciseStore(t *testing.T, r repo) {
	ctx := context.Background()
	defs := catalog.Standard()
	require.NoError(t, r.ReplaceCatalog(ctx, defs))

	loaded, err := r.LoadCatalog(ctx)
	require.NoError(t, err)
	assert.Equal(t, defs.Len(), loaded.Len())
	person, ok := loaded.Card("person")
	require.True(t, ok)
	assert.True(t, person.HasAbility(catalog.TapForResourceID))

	state := newGame(t, defs, 1)
	require.NoError(t, r.CreateGame(ctx, state))

	id, found, err := r.FindUnfinished(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, state.ID, id)

	e, err := game.NewEngine(r, state, game.WithSeed(5), game.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.NoError(t, e.SetupGame(ctx))
	require.NoError(t, e.PlayDraw(ctx))

	reloaded, err := r.Load(ctx, state.ID)
	require.NoError(t, err)
	assert.Equal(t, state.Checksum(), reloaded.Checksum())

	events, err := r.Events(ctx, state.ID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, rules.CommandShuffle, events[0].Command)
	last := events[len(events)-1]
	assert.Equal(t, reloaded.Phase, last.Phase)
	assert.Equal(t, len(reloaded.Players[0].Hand), last.Players[0].HandSize)

	unlock, err := r.LockGame(ctx, state.ID)
	require.NoError(t, err)
	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	_, err = r.LockGame(blocked, state.ID)
	assert.Error(t, err, "second lock must wait")
	unlock()

	n, err := r.ClearGames(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = r.Load(ctx, state.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
	_, found, err = r.FindUnfinished(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}
