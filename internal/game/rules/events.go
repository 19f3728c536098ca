package rules

import (
	"fmt"
	"sync"
	"time"
)

// Command names the engine operation an Event records.
type Command string

const (
	CommandStatus  Command = "STATUS"
	CommandShuffle Command = "SHUFFLE"
	CommandDraw    Command = "DRAW"
	CommandPhase   Command = "PHASE"
	CommandPass    Command = "PASS"
	CommandPlay    Command = "PLAY"
	CommandCost    Command = "COST"
	CommandBenefit Command = "BENEFIT"
	CommandAttack  Command = "ATTACK"
)

func (c Command) String() string {
	return string(c)
}

// ParseCommand converts a stored command name back into a Command.
func ParseCommand(value string) (Command, error) {
	switch c := Command(value); c {
	case CommandStatus, CommandShuffle, CommandDraw, CommandPhase, CommandPass,
		CommandPlay, CommandCost, CommandBenefit, CommandAttack:
		return c, nil
	}
	return "", fmt.Errorf("unknown command %q", value)
}

// PlayerSnapshot is the per-player part of an Event.
type PlayerSnapshot struct {
	Health    int
	DeckSize  int
	HandSize  int
	TableSize int
	GraveSize int
}

// Event is an append-only audit record written after each live mutation.
// It carries the full post-mutation snapshot of the match header.
type Event struct {
	GameID    string
	Status    Status
	Turn      int
	Round     int
	Phase     Phase
	Players   [2]PlayerSnapshot
	ActorID   string
	Command   Command
	CardID    string // card instance, empty when not applicable
	AbilityID string // empty when not applicable
	Error     bool
	Comment   string
	Timestamp time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%s round=%d turn=%d %s %s actor=%s card=%s %s",
		e.Status, e.Round, e.Turn, e.Phase, e.Command, e.ActorID, e.CardID, e.Comment)
}

// Listener receives published events.
type Listener func(Event)

type subscription struct {
	handle   int
	typed    bool
	command  Command
	listener Listener
}

// EventBus fans events out to subscribers synchronously, in subscription
// order.
type EventBus struct {
	mu         sync.RWMutex
	nextHandle int
	subs       []subscription
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	return bus.add(subscription{listener: listener})
}

// SubscribeTyped registers a listener for a single command.
func (bus *EventBus) SubscribeTyped(command Command, listener Listener) int {
	return bus.add(subscription{typed: true, command: command, listener: listener})
}

func (bus *EventBus) add(sub subscription) int {
	if sub.listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	sub.handle = bus.nextHandle
	bus.nextHandle++
	bus.subs = append(bus.subs, sub)
	return sub.handle
}

// Unsubscribe removes the listener identified by handle, typed or not.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	for i, sub := range bus.subs {
		if sub.handle == handle {
			bus.subs = append(bus.subs[:i:i], bus.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers the event to every matching listener synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	subs := bus.subs
	bus.mu.RUnlock()

	for _, sub := range subs {
		if !sub.typed || sub.command == event.Command {
			sub.listener(event)
		}
	}
}
