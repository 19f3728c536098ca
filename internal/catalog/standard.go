package catalog

import "fmt"

// TapForResourceID is the ability id of the standard Person's resource ability.
const TapForResourceID = "tap-add-one-generic"

// Opinion stat ranges of the standard catalog.
const (
	MinOpinionPower     = 0
	MaxOpinionPower     = 5
	MinOpinionEndurance = 1
	MaxOpinionEndurance = 5
	OpinionSupportCost  = 1
)

// Standard builds the generated catalog: one zero-cost Person carrying the
// tap-for-resource ability and one Opinion per power/endurance pair.
func Standard() *Catalog {
	c := New()
	tap := &Ability{ID: TapForResourceID, Cost: CostTap, Benefit: BenefitAddOneGenericResource}

	mustAdd(c, &Card{
		ID:        "person",
		Kind:      KindPerson,
		Abilities: []*Ability{tap},
	})

	for power := MinOpinionPower; power <= MaxOpinionPower; power++ {
		for endurance := MinOpinionEndurance; endurance <= MaxOpinionEndurance; endurance++ {
			p, e := power, endurance
			mustAdd(c, &Card{
				ID:          fmt.Sprintf("opinion-%d-%d", p, e),
				Kind:        KindOpinion,
				SupportCost: OpinionSupportCost,
				Power:       &p,
				Endurance:   &e,
			})
		}
	}
	return c
}

func mustAdd(c *Catalog, card *Card) {
	if err := c.Add(card); err != nil {
		panic(err)
	}
}
