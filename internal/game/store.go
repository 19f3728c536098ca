package game

import (
	"context"
	"fmt"

	"github.com/debatecards/debate-server-go/internal/catalog"
	"github.com/debatecards/debate-server-go/internal/game/rules"
)

// Store is the persistence contract a live Engine writes through.
// Implementations must not retain the pointers they are handed.
type Store interface {
	Load(ctx context.Context, gameID string) (*GameState, error)
	SaveGameHeader(ctx context.Context, state *GameState) error
	SaveCardInstance(ctx context.Context, card *CardInstance) error
	AppendEvent(ctx context.Context, event rules.Event) error
}

// GameRecord is the persisted match header.
type GameRecord struct {
	ID              string
	Status          rules.Status
	Turn            int
	Round           int
	Phase           rules.Phase
	LastCombatActor string
}

// PlayerRecord is the persisted per-player counters.
type PlayerRecord struct {
	ID             string
	GameID         string
	Seat           int
	Health         int
	ResourcePool   int
	LastPersonTurn int
}

// CardRecord is a persisted card instance.
type CardRecord struct {
	ID       string
	PlayerID string
	CardID   string
	Zone     Zone
	Position int
	Tapped   bool
}

// Header flattens the match header and player counters.
func (s *GameState) Header() (GameRecord, [2]PlayerRecord) {
	g := GameRecord{
		ID:              s.ID,
		Status:          s.Status,
		Turn:            s.Turn,
		Round:           s.Round,
		Phase:           s.Phase,
		LastCombatActor: s.LastCombatActor,
	}
	var players [2]PlayerRecord
	for i, p := range s.Players {
		players[i] = PlayerRecord{
			ID:             p.ID,
			GameID:         s.ID,
			Seat:           p.Seat,
			Health:         p.Health,
			ResourcePool:   p.ResourcePool,
			LastPersonTurn: p.LastPersonTurn,
		}
	}
	return g, players
}

// Records flattens the whole state into persistence records.
func (s *GameState) Records() (GameRecord, [2]PlayerRecord, []CardRecord) {
	g, players := s.Header()
	cards := make([]CardRecord, 0)
	for _, p := range s.Players {
		for _, zone := range Zones {
			for _, c := range p.Cards(zone) {
				cards = append(cards, NewCardRecord(c))
			}
		}
	}
	return g, players, cards
}

// NewCardRecord flattens one card instance.
func NewCardRecord(c *CardInstance) CardRecord {
	return CardRecord{
		ID:       c.ID,
		PlayerID: c.OwnerID,
		CardID:   c.Card.ID,
		Zone:     c.Zone,
		Position: c.Position,
		Tapped:   c.Tapped,
	}
}

// Restore rebuilds a GameState from persistence records, resolving card
// definitions through defs.
func Restore(g GameRecord, players []PlayerRecord, cards []CardRecord, defs *catalog.Catalog) (*GameState, error) {
	if len(players) != 2 {
		return nil, fmt.Errorf("game %s: expected 2 players, got %d", g.ID, len(players))
	}
	state := &GameState{
		ID:              g.ID,
		Status:          g.Status,
		Turn:            g.Turn,
		Round:           g.Round,
		Phase:           g.Phase,
		LastCombatActor: g.LastCombatActor,
	}
	bySeat := make(map[string]*PlayerState, 2)
	for _, rec := range players {
		if rec.Seat != 1 && rec.Seat != 2 {
			return nil, fmt.Errorf("game %s: player %s has seat %d", g.ID, rec.ID, rec.Seat)
		}
		if state.Players[rec.Seat-1] != nil {
			return nil, fmt.Errorf("game %s: seat %d assigned twice", g.ID, rec.Seat)
		}
		p := &PlayerState{
			ID:             rec.ID,
			Seat:           rec.Seat,
			Health:         rec.Health,
			ResourcePool:   rec.ResourcePool,
			LastPersonTurn: rec.LastPersonTurn,
			Deck:           make([]*CardInstance, 0),
			Hand:           make(map[string]*CardInstance),
			Table:          make(map[string]*CardInstance),
			Grave:          make(map[string]*CardInstance),
		}
		state.Players[rec.Seat-1] = p
		bySeat[rec.ID] = p
	}

	for _, rec := range cards {
		owner, ok := bySeat[rec.PlayerID]
		if !ok {
			return nil, fmt.Errorf("game %s: card %s references unknown player %s", g.ID, rec.ID, rec.PlayerID)
		}
		def, ok := defs.Card(rec.CardID)
		if !ok {
			return nil, fmt.Errorf("game %s: card %s references unknown definition %s", g.ID, rec.ID, rec.CardID)
		}
		inst := &CardInstance{
			ID:       rec.ID,
			Card:     def,
			OwnerID:  owner.ID,
			Zone:     rec.Zone,
			Position: rec.Position,
			Tapped:   rec.Tapped,
		}
		if rec.Zone == ZoneDeck {
			owner.Deck = append(owner.Deck, inst)
			continue
		}
		zone := owner.zoneMap(rec.Zone)
		if zone == nil {
			return nil, fmt.Errorf("game %s: card %s in unknown zone %d", g.ID, rec.ID, rec.Zone)
		}
		zone[inst.ID] = inst
	}
	for _, p := range state.Players {
		p.sortDeck()
	}

	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("game %s: %w", g.ID, err)
	}
	return state, nil
}
