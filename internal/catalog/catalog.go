package catalog

import (
	"fmt"
	"sort"
)

// Kind classifies a card definition.
type Kind string

const (
	KindPerson   Kind = "PERSON"
	KindOpinion  Kind = "OPINION"
	KindPaper    Kind = "PAPER"
	KindEvidence Kind = "EVIDENCE"
)

// ParseKind converts a stored kind name back into a Kind.
func ParseKind(value string) (Kind, error) {
	switch k := Kind(value); k {
	case KindPerson, KindOpinion, KindPaper, KindEvidence:
		return k, nil
	}
	return "", fmt.Errorf("unknown card kind %q", value)
}

// CostKind is what a player pays to activate an ability.
type CostKind string

const (
	CostTap CostKind = "TAP"
)

// BenefitKind is what an ability yields once its cost is paid.
type BenefitKind string

const (
	BenefitAddOneGenericResource BenefitKind = "ADD_ONE_GENERIC_RESOURCE"
)

// Ability is an immutable activated ability definition.
type Ability struct {
	ID      string
	Cost    CostKind
	Benefit BenefitKind
}

// Card is an immutable card definition shared by every instance of it.
type Card struct {
	ID          string
	Kind        Kind
	SupportCost int
	Power       *int // Opinion only
	Endurance   *int // Opinion only
	Abilities   []*Ability
}

// HasAbility reports whether the definition carries the ability.
func (c *Card) HasAbility(abilityID string) bool {
	return c.Ability(abilityID) != nil
}

// Ability returns the ability with the given id, or nil.
func (c *Card) Ability(abilityID string) *Ability {
	for _, a := range c.Abilities {
		if a.ID == abilityID {
			return a
		}
	}
	return nil
}

// PowerValue returns the card power, zero when it has none.
func (c *Card) PowerValue() int {
	if c.Power == nil {
		return 0
	}
	return *c.Power
}

func (c *Card) String() string {
	if c.Kind == KindOpinion {
		return fmt.Sprintf("[%d] %s %d/%d", c.SupportCost, c.Kind, c.PowerValue(), deref(c.Endurance))
	}
	return fmt.Sprintf("[%d] %s", c.SupportCost, c.Kind)
}

func deref(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}

// Source returns card definitions filtered by kind.
type Source interface {
	ByKind(kind Kind) []*Card
}

// Catalog is an in-memory set of card and ability definitions.
type Catalog struct {
	cards     map[string]*Card
	abilities map[string]*Ability
}

// New creates an empty catalog.
func New() *Catalog {
	return &Catalog{
		cards:     make(map[string]*Card),
		abilities: make(map[string]*Ability),
	}
}

// Add registers a card and its abilities. Opinion cards must carry power and
// endurance, other kinds must not.
func (c *Catalog) Add(card *Card) error {
	if card == nil || card.ID == "" {
		return fmt.Errorf("card id is required")
	}
	if card.SupportCost < 0 {
		return fmt.Errorf("card %s: negative support cost %d", card.ID, card.SupportCost)
	}
	hasStats := card.Power != nil && card.Endurance != nil
	if card.Kind == KindOpinion && !hasStats {
		return fmt.Errorf("card %s: opinion requires power and endurance", card.ID)
	}
	if card.Kind != KindOpinion && (card.Power != nil || card.Endurance != nil) {
		return fmt.Errorf("card %s: only opinions carry power and endurance", card.ID)
	}
	if _, exists := c.cards[card.ID]; exists {
		return fmt.Errorf("card %s already registered", card.ID)
	}
	for _, a := range card.Abilities {
		c.abilities[a.ID] = a
	}
	c.cards[card.ID] = card
	return nil
}

// Card looks up a definition by id.
func (c *Catalog) Card(id string) (*Card, bool) {
	card, ok := c.cards[id]
	return card, ok
}

// Ability looks up an ability definition by id.
func (c *Catalog) Ability(id string) (*Ability, bool) {
	a, ok := c.abilities[id]
	return a, ok
}

// Cards returns every definition ordered by id.
func (c *Catalog) Cards() []*Card {
	out := make([]*Card, 0, len(c.cards))
	for _, card := range c.cards {
		out = append(out, card)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Abilities returns every ability ordered by id.
func (c *Catalog) Abilities() []*Ability {
	out := make([]*Ability, 0, len(c.abilities))
	for _, a := range c.abilities {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByKind returns definitions of one kind ordered by id.
func (c *Catalog) ByKind(kind Kind) []*Card {
	out := make([]*Card, 0)
	for _, card := range c.Cards() {
		if card.Kind == kind {
			out = append(out, card)
		}
	}
	return out
}

// Len returns the number of card definitions.
func (c *Catalog) Len() int {
	return len(c.cards)
}
