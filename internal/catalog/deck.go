package catalog

import (
	"fmt"

	"golang.org/x/exp/rand"
)

// DeckSpec describes how a random deck is assembled.
type DeckSpec struct {
	Persons       int // random Person picks
	OpinionGroups int // distinct random Opinion picks
	OpinionCopies int // copies of each Opinion pick
}

// DefaultDeckSpec yields 20 Persons and 10 Opinions with 4 copies each.
var DefaultDeckSpec = DeckSpec{Persons: 20, OpinionGroups: 10, OpinionCopies: 4}

// Size returns the number of cards in a deck built from this layout.
func (s DeckSpec) Size() int {
	return s.Persons + s.OpinionGroups*s.OpinionCopies
}

// RandomDeck picks cards from the source following spec. The returned order
// is the initial deck order, Persons first.
func RandomDeck(rng *rand.Rand, src Source, spec DeckSpec) ([]*Card, error) {
	persons := src.ByKind(KindPerson)
	opinions := src.ByKind(KindOpinion)
	if spec.Persons > 0 && len(persons) == 0 {
		return nil, fmt.Errorf("catalog has no %s cards", KindPerson)
	}
	if spec.OpinionGroups > 0 && len(opinions) == 0 {
		return nil, fmt.Errorf("catalog has no %s cards", KindOpinion)
	}

	deck := make([]*Card, 0, spec.Size())
	for i := 0; i < spec.Persons; i++ {
		deck = append(deck, persons[rng.Intn(len(persons))])
	}
	for i := 0; i < spec.OpinionGroups; i++ {
		pick := opinions[rng.Intn(len(opinions))]
		for j := 0; j < spec.OpinionCopies; j++ {
			deck = append(deck, pick)
		}
	}
	return deck, nil
}
