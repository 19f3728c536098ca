package game

import (
	"context"
	"testing"

	"github.com/debatecards/debate-server-go/internal/catalog"
	"github.com/debatecards/debate-server-go/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestNewEngineRequiresStore(t *testing.T) {
	_, err := NewEngine(nil, busyState(rules.PhaseDraw, nil, nil))
	require.Error(t, err)
}

func TestSetupGame(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(1))
	deck1, err := catalog.RandomDeck(rng, standard, catalog.DefaultDeckSpec)
	require.NoError(t, err)
	deck2, err := catalog.RandomDeck(rng, standard, catalog.DefaultDeckSpec)
	require.NoError(t, err)

	state := NewGameState("", NewPlayerState("alice", 1, deck1), NewPlayerState("bob", 2, deck2))
	require.NotEmpty(t, state.ID)
	e, store := newTestEngine(t, state)

	require.NoError(t, e.SetupGame(ctx))

	assert.Equal(t, rules.StatusBusy, state.Status)
	assert.Equal(t, rules.PhaseDraw, state.Phase)
	assert.Equal(t, 1, state.Turn)
	assert.Equal(t, 1, state.Round)
	for _, p := range state.Players {
		assert.Len(t, p.Hand, StartingHandSize)
		assert.Len(t, p.Deck, 60-StartingHandSize)
		assert.Equal(t, StartingHealth, p.Health)
	}
	require.NoError(t, state.Validate())

	commands := store.commands()
	require.Len(t, commands, 2+2*StartingHandSize+2)
	assert.Equal(t, rules.CommandShuffle, commands[0])
	assert.Equal(t, rules.CommandShuffle, commands[1+StartingHandSize])
	assert.Equal(t, rules.CommandStatus, commands[len(commands)-2])
	assert.Equal(t, rules.CommandPhase, commands[len(commands)-1])
	assert.Equal(t, 2*StartingHandSize, store.count(rules.CommandDraw))

	err = e.SetupGame(ctx)
	assert.ErrorIs(t, err, ErrInvariant)
}

func TestSetupGameShortDeck(t *testing.T) {
	state := NewGameState("g", NewPlayerState("alice", 1, repeat(person(t), 3)), NewPlayerState("bob", 2, repeat(person(t), 30)))
	e, _ := newTestEngine(t, state)

	err := e.SetupGame(context.Background())
	assert.ErrorIs(t, err, ErrDeckExhausted)
}

func TestShuffleDeckIsPermutation(t *testing.T) {
	var deck []*catalog.Card
	for power := 0; power <= 4; power++ {
		deck = append(deck, opinion(t, power, 1), opinion(t, power, 2))
	}
	state := busyState(rules.PhaseMain, deck, nil)

	a := NewSimulation(state, WithSeed(9))
	b := NewSimulation(state, WithSeed(9))
	require.NoError(t, a.ShuffleDeck(context.Background(), "alice"))
	require.NoError(t, b.ShuffleDeck(context.Background(), "alice"))

	ids := func(e *Engine) []string {
		var out []string
		for _, c := range e.State().Players[0].Cards(ZoneDeck) {
			out = append(out, c.ID)
		}
		return out
	}
	assert.Equal(t, ids(a), ids(b), "same seed must yield the same order")

	seen := make(map[int]bool)
	for _, c := range a.State().Players[0].Deck {
		seen[c.Position] = true
	}
	for pos := 1; pos <= len(deck); pos++ {
		assert.True(t, seen[pos], "position %d missing", pos)
	}
	require.NoError(t, a.State().Validate())
}

func TestShuffleDeckIsUniform(t *testing.T) {
	deck := []*catalog.Card{opinion(t, 0, 1), opinion(t, 1, 1), opinion(t, 2, 1), opinion(t, 3, 1)}
	e := NewSimulation(busyState(rules.PhaseMain, deck, nil), WithSeed(3))
	ctx := context.Background()

	const rounds = 4000
	counts := make(map[string]int)
	for i := 0; i < rounds; i++ {
		require.NoError(t, e.ShuffleDeck(ctx, "alice"))
		top, ok := e.State().Players[0].Top()
		require.True(t, ok)
		counts[top.Card.ID]++
	}

	require.Len(t, counts, len(deck))
	for id, n := range counts {
		assert.InDelta(t, rounds/len(deck), n, 150, "top card %s", id)
	}
}

func TestDraw(t *testing.T) {
	ctx := context.Background()
	deck := []*catalog.Card{opinion(t, 1, 1), opinion(t, 2, 2), opinion(t, 3, 3)}
	state := busyState(rules.PhaseMain, deck, nil)
	e, store := newTestEngine(t, state)
	alice := state.Players[0]
	first, _ := alice.Top()

	require.NoError(t, e.Draw(ctx, "alice", 0))
	assert.Empty(t, store.commands())

	require.NoError(t, e.Draw(ctx, "alice", 2))
	assert.Len(t, alice.Hand, 2)
	assert.Len(t, alice.Deck, 1)
	assert.Equal(t, ZoneHand, first.Zone)
	assert.Equal(t, 0, first.Position)
	assert.Equal(t, 2, store.count(rules.CommandDraw))

	last := store.events[len(store.events)-1]
	assert.Equal(t, 2, last.Players[0].HandSize)
	assert.Equal(t, 1, last.Players[0].DeckSize)

	err := e.Draw(ctx, "alice", 5)
	assert.ErrorIs(t, err, ErrDeckExhausted)
	assert.True(t, IsRecoverable(err))
	assert.Len(t, alice.Hand, 2)
	assert.Len(t, alice.Deck, 1)

	assert.ErrorIs(t, e.Draw(ctx, "carol", 1), ErrPlayerNotFound)
	assert.ErrorIs(t, e.Draw(ctx, "alice", -1), ErrInvariant)
}

func TestDrawPlacesCardsAfterExistingHand(t *testing.T) {
	ctx := context.Background()
	state := busyState(rules.PhaseMain, repeat(person(t), 5), nil)
	e, _ := newTestEngine(t, state)
	alice := state.Players[0]

	require.NoError(t, e.Draw(ctx, "alice", 3))
	played := alice.Cards(ZoneHand)[0]
	require.NoError(t, e.PlayPerson(ctx, played.ID))
	require.NoError(t, e.Draw(ctx, "alice", 1))

	hand := alice.Cards(ZoneHand)
	require.Len(t, hand, 3)
	seen := make(map[int]bool)
	for _, c := range hand {
		assert.False(t, seen[c.Position], "hand position %d used twice", c.Position)
		seen[c.Position] = true
	}
	assert.Equal(t, []int{1, 2, 3}, []int{hand[0].Position, hand[1].Position, hand[2].Position})
	assert.Equal(t, 0, played.Position, "first card on the table")
}

func TestNextStatus(t *testing.T) {
	e, _ := newTestEngine(t, busyState(rules.PhaseMain, nil, nil))
	ctx := context.Background()

	require.NoError(t, e.NextStatus(ctx))
	assert.Equal(t, rules.StatusDone, e.State().Status)

	err := e.NextStatus(ctx)
	assert.ErrorIs(t, err, ErrInvariant)
	assert.False(t, IsRecoverable(err))
}

func TestNextPhaseSkipsEmptyPhasesAndUntaps(t *testing.T) {
	state := busyState(rules.PhaseMain, nil, repeat(person(t), 3))
	bob := state.Players[1]
	tapped := moveTop(t, bob, ZoneTable)
	tapped.Tapped = true
	e, store := newTestEngine(t, state)

	require.NoError(t, e.NextPhase(context.Background()))

	assert.Equal(t, 2, state.Turn)
	assert.Equal(t, 1, state.Round)
	assert.Equal(t, rules.PhaseDraw, state.Phase)
	assert.False(t, tapped.Tapped, "incoming player untaps")
	assert.Equal(t, 3, store.count(rules.CommandPhase))
	assert.Equal(t, tapped.ID, store.cards[tapped.ID].ID)
	assert.False(t, store.cards[tapped.ID].Tapped)
}

func TestNextPhaseIncrementsRoundAfterSeatTwo(t *testing.T) {
	state := busyState(rules.PhaseDebate, repeat(person(t), 2), nil)
	state.Turn = 2
	e, _ := newTestEngine(t, state)

	require.NoError(t, e.NextPhase(context.Background()))
	assert.Equal(t, 1, state.Turn)
	assert.Equal(t, 2, state.Round)
	assert.Equal(t, rules.PhaseDraw, state.Phase)
}

func TestNextPhaseRequiresBusy(t *testing.T) {
	state := busyState(rules.PhaseMain, nil, nil)
	state.Status = rules.StatusSetup
	e, _ := newTestEngine(t, state)
	assert.ErrorIs(t, e.NextPhase(context.Background()), ErrInvariant)

	state.Status = rules.StatusDone
	assert.ErrorIs(t, e.NextPhase(context.Background()), ErrGameOver)
}

func TestSimulationWritesNothing(t *testing.T) {
	state := busyState(rules.PhaseDraw, repeat(person(t), 5), repeat(person(t), 5))
	bus := rules.NewEventBus()
	published := 0
	bus.Subscribe(func(rules.Event) { published++ })

	store := newRecordingStore()
	live, err := NewEngine(store, state, WithSeed(42), WithEventBus(bus))
	require.NoError(t, err)
	sim := live.Simulate()
	require.True(t, sim.IsSimulation())

	require.NoError(t, sim.PlayDraw(context.Background()))
	assert.Equal(t, 0, store.writes())
	assert.Equal(t, 0, published)
	assert.Len(t, state.Players[0].Hand, 0, "live state untouched")
	assert.Len(t, sim.State().Players[0].Hand, 1)

	require.NoError(t, live.PlayDraw(context.Background()))
	assert.Positive(t, store.writes())
	assert.Equal(t, len(store.events), published)
}

func TestEventBusTypedSubscription(t *testing.T) {
	state := busyState(rules.PhaseDraw, repeat(person(t), 5), repeat(person(t), 5))
	bus := rules.NewEventBus()
	var draws []rules.Event
	bus.SubscribeTyped(rules.CommandDraw, func(e rules.Event) { draws = append(draws, e) })

	e, err := NewEngine(newRecordingStore(), state, WithEventBus(bus))
	require.NoError(t, err)
	require.NoError(t, e.PlayDraw(context.Background()))

	require.Len(t, draws, 1)
	assert.Equal(t, "alice", draws[0].ActorID)
	assert.NotEmpty(t, draws[0].CardID)
}

func TestCloneIsIndependent(t *testing.T) {
	state := busyState(rules.PhaseMain, repeat(person(t), 3), repeat(person(t), 3))
	clone := state.Clone()

	moveTop(t, clone.Players[0], ZoneTable)
	clone.Players[1].Health = 1

	assert.Len(t, state.Players[0].Deck, 3)
	assert.Empty(t, state.Players[0].Table)
	assert.Equal(t, StartingHealth, state.Players[1].Health)
	assert.Same(t, state.Players[0].Deck[0].Card, clone.Players[0].Deck[0].Card)
	assert.NotSame(t, state.Players[0].Deck[0], clone.Players[0].Deck[0])
}

func TestValidateDetectsCorruption(t *testing.T) {
	state := busyState(rules.PhaseMain, repeat(person(t), 3), nil)
	require.NoError(t, state.Validate())

	card := state.Players[0].Deck[0]
	state.Players[0].Hand[card.ID] = card
	assert.ErrorIs(t, state.Validate(), ErrInvariant)
}
