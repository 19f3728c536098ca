package game

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/debatecards/debate-server-go/internal/catalog"
	"github.com/debatecards/debate-server-go/internal/game/rules"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// recordingStore keeps every write in memory so tests can inspect them.
type recordingStore struct {
	mu      sync.Mutex
	headers []GameRecord
	cards   map[string]CardRecord
	events  []rules.Event
}

func newRecordingStore() *recordingStore {
	return &recordingStore{cards: make(map[string]CardRecord)}
}

func (s *recordingStore) Load(ctx context.Context, gameID string) (*GameState, error) {
	return nil, fmt.Errorf("game %s not stored", gameID)
}

func (s *recordingStore) SaveGameHeader(ctx context.Context, state *GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, _ := state.Header()
	s.headers = append(s.headers, g)
	return nil
}

func (s *recordingStore) SaveCardInstance(ctx context.Context, card *CardInstance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cards[card.ID] = NewCardRecord(card)
	return nil
}

func (s *recordingStore) AppendEvent(ctx context.Context, event rules.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingStore) commands() []rules.Command {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]rules.Command, len(s.events))
	for i, e := range s.events {
		out[i] = e.Command
	}
	return out
}

func (s *recordingStore) count(command rules.Command) int {
	n := 0
	for _, c := range s.commands() {
		if c == command {
			n++
		}
	}
	return n
}

func (s *recordingStore) writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.headers) + len(s.cards) + len(s.events)
}

var standard = catalog.Standard()

func person(t *testing.T) *catalog.Card {
	t.Helper()
	card, ok := standard.Card("person")
	require.True(t, ok)
	return card
}

func opinion(t *testing.T, power, endurance int) *catalog.Card {
	t.Helper()
	card, ok := standard.Card(fmt.Sprintf("opinion-%d-%d", power, endurance))
	require.True(t, ok)
	return card
}

func repeat(card *catalog.Card, n int) []*catalog.Card {
	out := make([]*catalog.Card, n)
	for i := range out {
		out[i] = card
	}
	return out
}

// busyState builds a match already in progress at phase for seat 1.
func busyState(phase rules.Phase, deck1, deck2 []*catalog.Card) *GameState {
	s := NewGameState("game-1", NewPlayerState("alice", 1, deck1), NewPlayerState("bob", 2, deck2))
	s.Status = rules.StatusBusy
	s.Phase = phase
	return s
}

// moveTop moves the top card of p's deck to zone.
func moveTop(t *testing.T, p *PlayerState, zone Zone) *CardInstance {
	t.Helper()
	card, ok := p.Top()
	require.True(t, ok, "deck of %s is empty", p.ID)
	require.NoError(t, p.moveCard(card, zone, p.ZoneSize(zone)))
	return card
}

func newTestEngine(t *testing.T, state *GameState) (*Engine, *recordingStore) {
	t.Helper()
	store := newRecordingStore()
	e, err := NewEngine(store, state, WithSeed(42), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return e, store
}
