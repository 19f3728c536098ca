package server

import (
	"time"

	"github.com/debatecards/debate-server-go/internal/game"
	"github.com/debatecards/debate-server-go/internal/game/rules"
)

// Views are plain maps so they encode both as JSON and as structpb values.

func stateView(s *game.GameState) map[string]any {
	players := make([]any, 0, len(s.Players))
	for _, p := range s.Players {
		players = append(players, map[string]any{
			"id":               p.ID,
			"seat":             p.Seat,
			"health":           p.Health,
			"resource_pool":    p.ResourcePool,
			"last_person_turn": p.LastPersonTurn,
			"deck":             len(p.Deck),
			"hand":             cardsView(p.Cards(game.ZoneHand)),
			"table":            cardsView(p.Cards(game.ZoneTable)),
			"grave":            len(p.Grave),
		})
	}
	view := map[string]any{
		"id":                s.ID,
		"status":            s.Status.String(),
		"turn":              s.Turn,
		"round":             s.Round,
		"phase":             s.Phase.String(),
		"last_combat_actor": s.LastCombatActor,
		"players":           players,
		"checksum":          s.Checksum(),
	}
	if winner, ok := s.Winner(); ok {
		view["winner_id"] = winner.ID
	}
	return view
}

func cardsView(cards []*game.CardInstance) []any {
	out := make([]any, 0, len(cards))
	for _, c := range cards {
		out = append(out, map[string]any{
			"id":       c.ID,
			"card_id":  c.Card.ID,
			"kind":     string(c.Card.Kind),
			"position": c.Position,
			"tapped":   c.Tapped,
			"power":    c.Card.PowerValue(),
			"cost":     c.Card.SupportCost,
		})
	}
	return out
}

func eventView(e rules.Event) map[string]any {
	players := make([]any, 0, len(e.Players))
	for _, p := range e.Players {
		players = append(players, map[string]any{
			"health": p.Health,
			"deck":   p.DeckSize,
			"hand":   p.HandSize,
			"table":  p.TableSize,
			"grave":  p.GraveSize,
		})
	}
	return map[string]any{
		"game_id":    e.GameID,
		"status":     e.Status.String(),
		"turn":       e.Turn,
		"round":      e.Round,
		"phase":      e.Phase.String(),
		"players":    players,
		"actor_id":   e.ActorID,
		"command":    e.Command.String(),
		"card_id":    e.CardID,
		"ability_id": e.AbilityID,
		"error":      e.Error,
		"comment":    e.Comment,
		"created_at": e.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

func movesView(moves []game.Move) []any {
	out := make([]any, 0, len(moves))
	for _, m := range moves {
		out = append(out, map[string]any{
			"kind":    m.Kind.String(),
			"card_id": m.CardID,
		})
	}
	return out
}
