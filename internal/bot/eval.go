package bot

import "github.com/debatecards/debate-server-go/internal/game"

// Evaluator scores a state from seat's point of view. Higher is better for seat.
type Evaluator func(state *game.GameState, seat int) float64

type zoneWeight struct {
	zone   game.Zone
	weight float64
}

// zoneWeights is ordered so the float sum is reproducible.
var zoneWeights = []zoneWeight{
	{game.ZoneTable, 0.3},
	{game.ZoneHand, 0.2},
	{game.ZoneDeck, 0.03},
	{game.ZoneGrave, 0.02},
}

// Evaluate is the default evaluator: health difference plus weighted zone
// size differences, seat 1 minus seat 2, negated for seat 2.
func Evaluate(state *game.GameState, seat int) float64 {
	p1, p2 := state.Players[0], state.Players[1]
	value := float64(p1.Health - p2.Health)
	for _, zw := range zoneWeights {
		value += zw.weight * float64(p1.ZoneSize(zw.zone)-p2.ZoneSize(zw.zone))
	}
	if seat == 2 {
		return -value
	}
	return value
}
