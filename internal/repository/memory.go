package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/debatecards/debate-server-go/internal/catalog"
	"github.com/debatecards/debate-server-go/internal/game"
	"github.com/debatecards/debate-server-go/internal/game/rules"
)

// Memory is an in-process store with the same contract as Postgres. It keeps
// flat records, never the engine's pointers. Safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	defs   *catalog.Catalog
	games  map[string]*memoryGame
	order  []string
	owners map[string]string // player id -> game id
	locks  map[string]chan struct{}
}

type memoryGame struct {
	header  game.GameRecord
	players map[string]game.PlayerRecord
	cards   map[string]game.CardRecord
	events  []rules.Event
}

func NewMemory() *Memory {
	return &Memory{
		games:  make(map[string]*memoryGame),
		owners: make(map[string]string),
		locks:  make(map[string]chan struct{}),
	}
}

func (m *Memory) Load(ctx context.Context, gameID string) (*game.GameState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[gameID]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	if m.defs == nil {
		return nil, fmt.Errorf("game %s: no catalog loaded", gameID)
	}
	players := make([]game.PlayerRecord, 0, len(g.players))
	for _, rec := range g.players {
		players = append(players, rec)
	}
	cards := make([]game.CardRecord, 0, len(g.cards))
	for _, rec := range g.cards {
		cards = append(cards, rec)
	}
	return game.Restore(g.header, players, cards, m.defs)
}

func (m *Memory) SaveGameHeader(ctx context.Context, state *game.GameState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveHeader(state)
	return nil
}

func (m *Memory) saveHeader(state *game.GameState) *memoryGame {
	header, players := state.Header()
	g, ok := m.games[header.ID]
	if !ok {
		g = &memoryGame{
			players: make(map[string]game.PlayerRecord, 2),
			cards:   make(map[string]game.CardRecord),
		}
		m.games[header.ID] = g
		m.order = append(m.order, header.ID)
	}
	g.header = header
	for _, rec := range players {
		g.players[rec.ID] = rec
		m.owners[rec.ID] = header.ID
	}
	return g
}

func (m *Memory) SaveCardInstance(ctx context.Context, card *game.CardInstance) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := game.NewCardRecord(card)
	g, ok := m.games[m.owners[rec.PlayerID]]
	if !ok {
		return fmt.Errorf("card %s: player %s: %w", rec.ID, rec.PlayerID, ErrNotFound)
	}
	g.cards[rec.ID] = rec
	return nil
}

func (m *Memory) AppendEvent(ctx context.Context, event rules.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[event.GameID]
	if !ok {
		return fmt.Errorf("event for game %s: %w", event.GameID, ErrNotFound)
	}
	g.events = append(g.events, event)
	return nil
}

func (m *Memory) Events(ctx context.Context, gameID string) ([]rules.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.games[gameID]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", gameID, ErrNotFound)
	}
	return append([]rules.Event(nil), g.events...), nil
}

func (m *Memory) CreateGame(ctx context.Context, state *game.GameState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	g := m.saveHeader(state)
	_, _, cards := state.Records()
	for _, rec := range cards {
		g.cards[rec.ID] = rec
	}
	return nil
}

func (m *Memory) FindUnfinished(ctx context.Context) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		if m.games[id].header.Status != rules.StatusDone {
			return id, true, nil
		}
	}
	return "", false, nil
}

func (m *Memory) ClearGames(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clear(), nil
}

func (m *Memory) clear() int64 {
	n := int64(len(m.games))
	m.games = make(map[string]*memoryGame)
	m.owners = make(map[string]string)
	m.order = nil
	return n
}

func (m *Memory) ReplaceCatalog(ctx context.Context, c *catalog.Catalog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clear()
	m.defs = c
	return nil
}

func (m *Memory) LoadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.defs == nil {
		return catalog.New(), nil
	}
	return m.defs, nil
}

// LockGame blocks until the game's lock is free or ctx is done.
func (m *Memory) LockGame(ctx context.Context, gameID string) (func(), error) {
	m.mu.Lock()
	sem, ok := m.locks[gameID]
	if !ok {
		sem = make(chan struct{}, 1)
		m.locks[gameID] = sem
	}
	m.mu.Unlock()

	select {
	case sem <- struct{}{}:
		return func() { <-sem }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to lock game %s: %w", gameID, ctx.Err())
	}
}
