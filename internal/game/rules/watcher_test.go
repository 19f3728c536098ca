package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingWatcher struct {
	key    string
	events []Command
	resets []string
}

func (w *countingWatcher) Watch(event Event) { w.events = append(w.events, event.Command) }
func (w *countingWatcher) Reset(gameID string) { w.resets = append(w.resets, gameID) }
func (w *countingWatcher) Key() string { return w.key }

func TestWatcherRegistry(t *testing.T) {
	registry := NewWatcherRegistry()
	a := &countingWatcher{key: "a"}
	b := &countingWatcher{key: "b"}
	replacement := &countingWatcher{key: "a"}
	registry.AddWatcher(a)
	registry.AddWatcher(b)
	registry.AddWatcher(nil)

	registry.NotifyWatchers(Event{Command: CommandDraw})
	registry.ResetWatchers("game-1")
	assert.Equal(t, []Command{CommandDraw}, a.events)
	assert.Equal(t, []string{"game-1"}, b.resets)

	registry.AddWatcher(replacement)
	registry.NotifyWatchers(Event{Command: CommandPass})
	assert.Len(t, a.events, 1)
	assert.Equal(t, []Command{CommandPass}, replacement.events)
	assert.Len(t, b.events, 2)
}

func TestWatcherRegistryAttach(t *testing.T) {
	first, second := NewEventBus(), NewEventBus()
	registry := NewWatcherRegistry()
	w := &countingWatcher{key: "w"}
	registry.AddWatcher(w)

	registry.Attach(first)
	first.Publish(Event{Command: CommandPhase})
	registry.Attach(second)
	first.Publish(Event{Command: CommandDraw})
	second.Publish(Event{Command: CommandPlay})

	assert.Equal(t, []Command{CommandPhase, CommandPlay}, w.events)
}

func snapshot(h1, h2 int) [2]PlayerSnapshot {
	return [2]PlayerSnapshot{{Health: h1}, {Health: h2}}
}

func TestStatsWatcher(t *testing.T) {
	w := NewStatsWatcher()
	for _, e := range []Event{
		{GameID: "g", Round: 1, Command: CommandStatus, Players: snapshot(20, 20)},
		{GameID: "g", Round: 1, ActorID: "alice", Command: CommandDraw, Players: snapshot(20, 20)},
		{GameID: "g", Round: 1, ActorID: "alice", Command: CommandCost, Players: snapshot(20, 20)},
		{GameID: "g", Round: 1, ActorID: "alice", Command: CommandPlay, Players: snapshot(20, 20)},
		{GameID: "g", Round: 2, ActorID: "alice", Command: CommandAttack, Players: snapshot(20, 17)},
		{GameID: "g", Round: 2, ActorID: "bob", Command: CommandAttack, Players: snapshot(18, 17)},
		{GameID: "g", Round: 3, ActorID: "bob", Command: CommandPass, Players: snapshot(18, 17)},
		{GameID: "other", Round: 9, ActorID: "carol", Command: CommandDraw},
	} {
		w.Watch(e)
	}

	stats, ok := w.Stats("g")
	require.True(t, ok)
	assert.Equal(t, 7, stats.Events)
	assert.Equal(t, 3, stats.Rounds)
	assert.Equal(t, PlayerStats{Draws: 1, Plays: 1, Abilities: 1, Attacks: 1, DamageDealt: 3}, stats.Players["alice"])
	assert.Equal(t, PlayerStats{Attacks: 1, Passes: 1, DamageDealt: 2}, stats.Players["bob"])

	stats.Players["alice"] = PlayerStats{}
	again, _ := w.Stats("g")
	assert.Equal(t, 1, again.Players["alice"].Attacks)

	w.Reset("g")
	_, ok = w.Stats("g")
	assert.False(t, ok)
	_, ok = w.Stats("other")
	assert.True(t, ok)
}
