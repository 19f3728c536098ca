package rules

import "sync"

// PlayerStats counts what one player did during a match.
type PlayerStats struct {
	Draws       int
	Plays       int
	Abilities   int
	Attacks     int
	Passes      int
	DamageDealt int
}

// GameStats is the tally of one match as seen on the event bus.
type GameStats struct {
	GameID  string
	Events  int
	Rounds  int
	Players map[string]PlayerStats
}

type gameTally struct {
	stats  GameStats
	health [2]int
	seen   bool
}

// StatsWatcher tallies per-player activity for every match it observes.
// Matches resumed by another process are only counted from the point they
// were first observed here.
type StatsWatcher struct {
	mu    sync.Mutex
	games map[string]*gameTally
}

// NewStatsWatcher creates an empty watcher.
func NewStatsWatcher() *StatsWatcher {
	return &StatsWatcher{games: make(map[string]*gameTally)}
}

func (w *StatsWatcher) Key() string { return "stats" }

// Watch records one event. Damage is the health the attack removed, read off
// the event snapshots.
func (w *StatsWatcher) Watch(event Event) {
	w.mu.Lock()
	defer w.mu.Unlock()

	tally, ok := w.games[event.GameID]
	if !ok {
		tally = &gameTally{stats: GameStats{GameID: event.GameID, Players: make(map[string]PlayerStats)}}
		w.games[event.GameID] = tally
	}
	tally.stats.Events++
	if event.Round > tally.stats.Rounds {
		tally.stats.Rounds = event.Round
	}

	if event.ActorID != "" {
		p := tally.stats.Players[event.ActorID]
		switch event.Command {
		case CommandDraw:
			p.Draws++
		case CommandPlay:
			p.Plays++
		case CommandCost:
			p.Abilities++
		case CommandPass:
			p.Passes++
		case CommandAttack:
			p.Attacks++
			if tally.seen {
				for i, snap := range event.Players {
					if lost := tally.health[i] - snap.Health; lost > 0 {
						p.DamageDealt += lost
					}
				}
			}
		}
		tally.stats.Players[event.ActorID] = p
	}

	for i, snap := range event.Players {
		tally.health[i] = snap.Health
	}
	tally.seen = true
}

// Reset forgets a match.
func (w *StatsWatcher) Reset(gameID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.games, gameID)
}

// Stats returns a copy of the tally for a match.
func (w *StatsWatcher) Stats(gameID string) (GameStats, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	tally, ok := w.games[gameID]
	if !ok {
		return GameStats{}, false
	}
	out := tally.stats
	out.Players = make(map[string]PlayerStats, len(tally.stats.Players))
	for id, p := range tally.stats.Players {
		out.Players[id] = p
	}
	return out, true
}
