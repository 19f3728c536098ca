package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestStandardCatalog(t *testing.T) {
	c := Standard()

	persons := c.ByKind(KindPerson)
	require.Len(t, persons, 1)
	person := persons[0]
	assert.Equal(t, 0, person.SupportCost)
	assert.Nil(t, person.Power)
	require.True(t, person.HasAbility(TapForResourceID))

	tap := person.Ability(TapForResourceID)
	assert.Equal(t, CostTap, tap.Cost)
	assert.Equal(t, BenefitAddOneGenericResource, tap.Benefit)

	opinions := c.ByKind(KindOpinion)
	assert.Len(t, opinions, 30)
	for _, o := range opinions {
		require.NotNil(t, o.Power)
		require.NotNil(t, o.Endurance)
		assert.GreaterOrEqual(t, *o.Power, MinOpinionPower)
		assert.LessOrEqual(t, *o.Power, MaxOpinionPower)
		assert.GreaterOrEqual(t, *o.Endurance, MinOpinionEndurance)
		assert.LessOrEqual(t, *o.Endurance, MaxOpinionEndurance)
		assert.Equal(t, OpinionSupportCost, o.SupportCost)
	}

	assert.Empty(t, c.ByKind(KindPaper))
	assert.Len(t, c.Abilities(), 1)
	assert.Equal(t, 31, c.Len())
}

func TestCatalogAddValidation(t *testing.T) {
	c := New()
	power := 2

	err := c.Add(&Card{ID: "bad-opinion", Kind: KindOpinion, Power: &power})
	assert.Error(t, err, "opinion without endurance must be rejected")

	err = c.Add(&Card{ID: "bad-person", Kind: KindPerson, Power: &power})
	assert.Error(t, err, "person with power must be rejected")

	err = c.Add(&Card{ID: "negative", Kind: KindPaper, SupportCost: -1})
	assert.Error(t, err)

	require.NoError(t, c.Add(&Card{ID: "paper", Kind: KindPaper, SupportCost: 2}))
	assert.Error(t, c.Add(&Card{ID: "paper", Kind: KindPaper}), "duplicate id must be rejected")
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("OPINION")
	require.NoError(t, err)
	assert.Equal(t, KindOpinion, k)

	_, err = ParseKind("land")
	assert.Error(t, err)
}

func TestRandomDeck(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	deck, err := RandomDeck(rng, Standard(), DefaultDeckSpec)
	require.NoError(t, err)
	require.Len(t, deck, 60)

	persons := 0
	for _, card := range deck[:20] {
		if card.Kind == KindPerson {
			persons++
		}
	}
	assert.Equal(t, 20, persons)

	for group := 0; group < 10; group++ {
		start := 20 + group*4
		for i := 1; i < 4; i++ {
			assert.Same(t, deck[start], deck[start+i], "opinion copies must share one definition")
		}
	}
}

func TestRandomDeckRequiresKinds(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	_, err := RandomDeck(rng, New(), DefaultDeckSpec)
	assert.Error(t, err)
}
