package game

import (
	"fmt"
	"sort"

	"github.com/debatecards/debate-server-go/internal/catalog"
	"github.com/debatecards/debate-server-go/internal/game/rules"
	"github.com/google/uuid"
)

// Zone is where a card instance currently lives.
type Zone int

const (
	ZoneDeck Zone = iota
	ZoneHand
	ZoneTable
	ZoneGrave
)

var zoneNames = map[Zone]string{
	ZoneDeck:  "DECK",
	ZoneHand:  "HAND",
	ZoneTable: "TABLE",
	ZoneGrave: "GRAVE",
}

func (z Zone) String() string {
	if name, ok := zoneNames[z]; ok {
		return name
	}
	return fmt.Sprintf("ZONE_%d", int(z))
}

// ParseZone converts a stored zone name back into a Zone.
func ParseZone(value string) (Zone, error) {
	for zone, name := range zoneNames {
		if name == value {
			return zone, nil
		}
	}
	return 0, fmt.Errorf("unknown zone %q", value)
}

// Zones lists every zone in display order.
var Zones = []Zone{ZoneDeck, ZoneHand, ZoneTable, ZoneGrave}

const (
	// StartingHandSize is how many cards each player draws during setup.
	StartingHandSize = 7
	// StartingHealth is each player's initial health.
	StartingHealth = 20
)

// CardInstance is one physical copy of a card definition inside a match.
type CardInstance struct {
	ID       string
	Card     *catalog.Card
	OwnerID  string
	Zone     Zone
	Position int
	Tapped   bool
}

func (c *CardInstance) clone() *CardInstance {
	cp := *c
	return &cp
}

// PlayerState holds one player's counters and zones. Deck is kept sorted by
// descending position so that its last element is the top card.
type PlayerState struct {
	ID             string
	Seat           int
	Health         int
	ResourcePool   int
	LastPersonTurn int
	Deck           []*CardInstance
	Hand           map[string]*CardInstance
	Table          map[string]*CardInstance
	Grave          map[string]*CardInstance
}

// NewPlayerState creates a player whose deck holds one instance per card, in
// the given order, at positions 1..n.
func NewPlayerState(id string, seat int, deck []*catalog.Card) *PlayerState {
	p := &PlayerState{
		ID:     id,
		Seat:   seat,
		Health: StartingHealth,
		Deck:   make([]*CardInstance, 0, len(deck)),
		Hand:   make(map[string]*CardInstance),
		Table:  make(map[string]*CardInstance),
		Grave:  make(map[string]*CardInstance),
	}
	for i, card := range deck {
		p.Deck = append(p.Deck, &CardInstance{
			ID:       uuid.New().String(),
			Card:     card,
			OwnerID:  id,
			Zone:     ZoneDeck,
			Position: i + 1,
		})
	}
	p.sortDeck()
	return p
}

// ZoneSize returns the number of cards the player has in zone.
func (p *PlayerState) ZoneSize(zone Zone) int {
	switch zone {
	case ZoneDeck:
		return len(p.Deck)
	case ZoneHand:
		return len(p.Hand)
	case ZoneTable:
		return len(p.Table)
	case ZoneGrave:
		return len(p.Grave)
	}
	return 0
}

// nextPosition returns the position after the last card of an unordered
// zone, zero when the zone is empty.
func (p *PlayerState) nextPosition(zone Zone) int {
	next := 0
	for _, c := range p.zoneMap(zone) {
		if c.Position >= next {
			next = c.Position + 1
		}
	}
	return next
}

// Cards returns the cards in zone in position order (top of deck first).
func (p *PlayerState) Cards(zone Zone) []*CardInstance {
	if zone == ZoneDeck {
		out := make([]*CardInstance, len(p.Deck))
		for i, c := range p.Deck {
			out[len(p.Deck)-1-i] = c
		}
		return out
	}
	return sortedCards(p.zoneMap(zone))
}

// Top returns the next card to draw.
func (p *PlayerState) Top() (*CardInstance, bool) {
	if len(p.Deck) == 0 {
		return nil, false
	}
	return p.Deck[len(p.Deck)-1], true
}

// Find returns the player's card with the given id, in any zone.
func (p *PlayerState) Find(cardID string) (*CardInstance, bool) {
	for _, zone := range []map[string]*CardInstance{p.Hand, p.Table, p.Grave} {
		if c, ok := zone[cardID]; ok {
			return c, true
		}
	}
	for _, c := range p.Deck {
		if c.ID == cardID {
			return c, true
		}
	}
	return nil, false
}

// UntappedPersons counts untapped Person cards on the player's table.
func (p *PlayerState) UntappedPersons() int {
	n := 0
	for _, c := range p.Table {
		if c.Card.Kind == catalog.KindPerson && !c.Tapped {
			n++
		}
	}
	return n
}

func (p *PlayerState) zoneMap(zone Zone) map[string]*CardInstance {
	switch zone {
	case ZoneHand:
		return p.Hand
	case ZoneTable:
		return p.Table
	case ZoneGrave:
		return p.Grave
	}
	return nil
}

func (p *PlayerState) sortDeck() {
	sort.SliceStable(p.Deck, func(i, j int) bool {
		return p.Deck[i].Position > p.Deck[j].Position
	})
}

// moveCard is the single place zone membership changes. It removes the card
// from its current zone and places it in target at position.
func (p *PlayerState) moveCard(card *CardInstance, target Zone, position int) error {
	if card.OwnerID != p.ID {
		return fmt.Errorf("%w: card %s is owned by %s, not %s", ErrInvariant, card.ID, card.OwnerID, p.ID)
	}

	switch card.Zone {
	case ZoneDeck:
		idx := -1
		for i, c := range p.Deck {
			if c.ID == card.ID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("%w: card %s not found in deck", ErrInvariant, card.ID)
		}
		p.Deck = append(p.Deck[:idx], p.Deck[idx+1:]...)
	default:
		from := p.zoneMap(card.Zone)
		if _, ok := from[card.ID]; !ok {
			return fmt.Errorf("%w: card %s not found in %s", ErrInvariant, card.ID, card.Zone)
		}
		delete(from, card.ID)
	}

	card.Zone = target
	card.Position = position
	if target != ZoneTable {
		card.Tapped = false
	}

	if target == ZoneDeck {
		p.Deck = append(p.Deck, card)
		p.sortDeck()
		return nil
	}
	p.zoneMap(target)[card.ID] = card
	return nil
}

func (p *PlayerState) clone() *PlayerState {
	cp := &PlayerState{
		ID:             p.ID,
		Seat:           p.Seat,
		Health:         p.Health,
		ResourcePool:   p.ResourcePool,
		LastPersonTurn: p.LastPersonTurn,
		Deck:           make([]*CardInstance, len(p.Deck)),
		Hand:           make(map[string]*CardInstance, len(p.Hand)),
		Table:          make(map[string]*CardInstance, len(p.Table)),
		Grave:          make(map[string]*CardInstance, len(p.Grave)),
	}
	for i, c := range p.Deck {
		cp.Deck[i] = c.clone()
	}
	for id, c := range p.Hand {
		cp.Hand[id] = c.clone()
	}
	for id, c := range p.Table {
		cp.Table[id] = c.clone()
	}
	for id, c := range p.Grave {
		cp.Grave[id] = c.clone()
	}
	return cp
}

// GameState is an in-memory snapshot of one match.
type GameState struct {
	ID              string
	Status          rules.Status
	Turn            int // seat holding the turn, 1 or 2
	Round           int
	Phase           rules.Phase
	LastCombatActor string
	Players         [2]*PlayerState
}

// NewGameState creates a match in Setup, turn 1, round 1, Draw phase.
func NewGameState(id string, p1, p2 *PlayerState) *GameState {
	if id == "" {
		id = uuid.New().String()
	}
	p1.Seat, p2.Seat = 1, 2
	return &GameState{
		ID:      id,
		Status:  rules.StatusSetup,
		Turn:    1,
		Round:   1,
		Phase:   rules.PhaseDraw,
		Players: [2]*PlayerState{p1, p2},
	}
}

// Active returns the player holding the turn.
func (s *GameState) Active() *PlayerState {
	return s.Players[s.Turn-1]
}

// Opponent returns the player not holding the turn.
func (s *GameState) Opponent() *PlayerState {
	return s.Players[rules.OtherSeat(s.Turn)-1]
}

// Player finds a player by id.
func (s *GameState) Player(id string) (*PlayerState, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

// Card finds a card instance and its owner.
func (s *GameState) Card(id string) (*CardInstance, *PlayerState, bool) {
	for _, p := range s.Players {
		if c, ok := p.Find(id); ok {
			return c, p, true
		}
	}
	return nil, nil, false
}

// IsOver reports whether the match has finished.
func (s *GameState) IsOver() bool {
	return s.Status == rules.StatusDone
}

// Clone returns a deep copy. Card definitions are shared, instances and zones
// are not.
func (s *GameState) Clone() *GameState {
	return &GameState{
		ID:              s.ID,
		Status:          s.Status,
		Turn:            s.Turn,
		Round:           s.Round,
		Phase:           s.Phase,
		LastCombatActor: s.LastCombatActor,
		Players:         [2]*PlayerState{s.Players[0].clone(), s.Players[1].clone()},
	}
}

// Validate checks the structural invariants of the snapshot.
func (s *GameState) Validate() error {
	if s.Turn != 1 && s.Turn != 2 {
		return fmt.Errorf("%w: turn %d out of range", ErrInvariant, s.Turn)
	}
	seen := make(map[string]Zone)
	for _, p := range s.Players {
		if p == nil {
			return fmt.Errorf("%w: missing player", ErrInvariant)
		}
		for i, c := range p.Deck {
			if i > 0 && p.Deck[i-1].Position <= c.Position {
				return fmt.Errorf("%w: deck of %s not strictly ordered", ErrInvariant, p.ID)
			}
		}
		for _, zone := range Zones {
			for _, c := range p.Cards(zone) {
				if prev, dup := seen[c.ID]; dup {
					return fmt.Errorf("%w: card %s in both %s and %s", ErrInvariant, c.ID, prev, zone)
				}
				if c.Zone != zone {
					return fmt.Errorf("%w: card %s stored in %s but marked %s", ErrInvariant, c.ID, zone, c.Zone)
				}
				seen[c.ID] = zone
			}
		}
	}
	return nil
}

func sortedCards(zone map[string]*CardInstance) []*CardInstance {
	out := make([]*CardInstance, 0, len(zone))
	for _, c := range zone {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}
