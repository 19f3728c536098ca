package rules

import (
	"sync"
)

// Watcher observes published events and accumulates per-game state.
type Watcher interface {
	// Watch is called for every event, in publish order.
	Watch(event Event)
	// Reset drops whatever the watcher holds for the game.
	Reset(gameID string)
	// Key identifies the watcher inside a registry.
	Key() string
}

// WatcherRegistry dispatches events to its watchers in registration order.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers map[string]Watcher
	order    []string
	bus      *EventBus
	handle   int
}

// NewWatcherRegistry creates an empty registry.
func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{
		watchers: make(map[string]Watcher),
		handle:   -1,
	}
}

// AddWatcher registers a watcher, replacing any with the same key.
func (wr *WatcherRegistry) AddWatcher(watcher Watcher) {
	if watcher == nil {
		return
	}
	wr.mu.Lock()
	defer wr.mu.Unlock()

	key := watcher.Key()
	if _, ok := wr.watchers[key]; !ok {
		wr.order = append(wr.order, key)
	}
	wr.watchers[key] = watcher
}

// NotifyWatchers hands the event to every watcher.
func (wr *WatcherRegistry) NotifyWatchers(event Event) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, key := range wr.order {
		wr.watchers[key].Watch(event)
	}
}

// ResetWatchers resets every watcher for one game.
func (wr *WatcherRegistry) ResetWatchers(gameID string) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, key := range wr.order {
		wr.watchers[key].Reset(gameID)
	}
}

// Attach subscribes the registry to bus, detaching it from any previous one.
func (wr *WatcherRegistry) Attach(bus *EventBus) {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	if wr.bus != nil {
		wr.bus.Unsubscribe(wr.handle)
	}
	wr.bus = bus
	wr.handle = bus.Subscribe(wr.NotifyWatchers)
}
