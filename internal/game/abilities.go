package game

import (
	"context"
	"fmt"

	"github.com/debatecards/debate-server-go/internal/catalog"
	"github.com/debatecards/debate-server-go/internal/game/rules"
	"go.uber.org/zap"
)

// UseAbility activates one of a card's abilities on behalf of playerID. The
// card must be owned by the player and sit on their table.
func (e *Engine) UseAbility(ctx context.Context, playerID, cardID, abilityID string) error {
	if e.state.IsOver() {
		return ErrGameOver
	}
	player, ok := e.state.Player(playerID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPlayerNotFound, playerID)
	}
	card, owner, ok := e.state.Card(cardID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	if owner.ID != player.ID {
		return fmt.Errorf("%w: %s does not own card %s", ErrInvariant, playerID, cardID)
	}
	ability := card.Card.Ability(abilityID)
	if ability == nil {
		return fmt.Errorf("%w: card %s has no ability %s", ErrInvariant, card.Card.ID, abilityID)
	}
	if err := checkAbility(ability); err != nil {
		return err
	}
	if card.Zone != ZoneTable {
		return fmt.Errorf("%w: %s is in %s", ErrNotOnTable, cardID, card.Zone)
	}
	if card.Tapped {
		return fmt.Errorf("%w: %s", ErrAlreadyTapped, cardID)
	}
	return e.activate(ctx, player, card, ability)
}

func checkAbility(ability *catalog.Ability) error {
	if ability.Cost != catalog.CostTap {
		return fmt.Errorf("%w: ability %s has unknown cost %q", ErrInvariant, ability.ID, ability.Cost)
	}
	if ability.Benefit != catalog.BenefitAddOneGenericResource {
		return fmt.Errorf("%w: ability %s has unknown benefit %q", ErrInvariant, ability.ID, ability.Benefit)
	}
	return nil
}

func (e *Engine) activate(ctx context.Context, player *PlayerState, card *CardInstance, ability *catalog.Ability) error {
	card.Tapped = true
	if err := e.saveCard(ctx, card); err != nil {
		return err
	}
	if err := e.record(ctx, player.ID, rules.CommandCost, card, ability, false, ""); err != nil {
		return err
	}

	player.ResourcePool++
	if err := e.saveHeader(ctx); err != nil {
		return err
	}
	e.debug("ability used",
		zap.String("player_id", player.ID),
		zap.String("card_id", card.ID),
		zap.String("ability_id", ability.ID),
		zap.Int("resource_pool", player.ResourcePool),
	)
	return e.record(ctx, player.ID, rules.CommandBenefit, card, ability, false, "")
}

// IsAffordable reports whether the card's owner can pay its support cost from
// their resource pool plus untapped Persons on the table.
func (e *Engine) IsAffordable(card *CardInstance) bool {
	owner, ok := e.state.Player(card.OwnerID)
	if !ok {
		return false
	}
	return owner.ResourcePool+owner.UntappedPersons() >= card.Card.SupportCost
}

// untappedPersons lists untapped Persons on the table in table order.
func untappedPersons(p *PlayerState) []*CardInstance {
	var out []*CardInstance
	for _, c := range p.Cards(ZoneTable) {
		if c.Card.Kind == catalog.KindPerson && !c.Tapped {
			out = append(out, c)
		}
	}
	return out
}

func resourceAbility(card *catalog.Card) *catalog.Ability {
	for _, a := range card.Abilities {
		if a.Cost == catalog.CostTap && a.Benefit == catalog.BenefitAddOneGenericResource {
			return a
		}
	}
	return nil
}

// pay spends cost from the pool, first tapping as many Persons as needed to
// cover the shortfall. Nothing changes when the cost cannot be covered or a
// Person that must be tapped has no resource ability.
func (e *Engine) pay(ctx context.Context, p *PlayerState, cost int) error {
	shortfall := cost - p.ResourcePool
	if shortfall > 0 {
		sources := untappedPersons(p)
		if len(sources) < shortfall {
			return fmt.Errorf("%w: need %d, have %d", ErrUnaffordable, cost, p.ResourcePool+len(sources))
		}
		sources = sources[:shortfall]
		for _, source := range sources {
			if resourceAbility(source.Card) == nil {
				return fmt.Errorf("%w: person %s (%s) cannot tap for a resource", ErrInvariant, source.ID, source.Card.ID)
			}
		}
		for _, source := range sources {
			if err := e.activate(ctx, p, source, resourceAbility(source.Card)); err != nil {
				return err
			}
		}
	}
	p.ResourcePool -= cost
	return nil
}
