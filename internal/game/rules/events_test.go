package rules

import (
	"testing"
)

func TestEventBusSubscribeTyped(t *testing.T) {
	bus := NewEventBus()

	drawCount := 0
	playCount := 0

	drawHandle := bus.SubscribeTyped(CommandDraw, func(e Event) {
		drawCount++
	})
	bus.SubscribeTyped(CommandPlay, func(e Event) {
		playCount++
	})

	bus.Publish(Event{Command: CommandDraw})
	if drawCount != 1 || playCount != 0 {
		t.Fatalf("expected draw=1 play=0, got draw=%d play=%d", drawCount, playCount)
	}

	bus.Publish(Event{Command: CommandPlay})
	if drawCount != 1 || playCount != 1 {
		t.Fatalf("expected draw=1 play=1, got draw=%d play=%d", drawCount, playCount)
	}

	bus.Unsubscribe(drawHandle)
	bus.Publish(Event{Command: CommandDraw})
	if drawCount != 1 {
		t.Fatalf("expected draw count to stay 1 after unsubscribe, got %d", drawCount)
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus()

	var seen []Command
	handle := bus.Subscribe(func(e Event) {
		seen = append(seen, e.Command)
	})
	if handle < 0 {
		t.Fatalf("expected valid handle")
	}
	if bus.Subscribe(nil) != -1 {
		t.Fatalf("expected nil listener to be rejected")
	}

	bus.Publish(Event{Command: CommandShuffle})
	bus.Publish(Event{Command: CommandPhase})
	bus.Unsubscribe(handle)
	bus.Publish(Event{Command: CommandPass})

	if len(seen) != 2 || seen[0] != CommandShuffle || seen[1] != CommandPhase {
		t.Fatalf("unexpected events seen: %v", seen)
	}
}

func TestParseCommand(t *testing.T) {
	for _, c := range []Command{CommandStatus, CommandShuffle, CommandDraw, CommandPhase,
		CommandPass, CommandPlay, CommandCost, CommandBenefit, CommandAttack} {
		parsed, err := ParseCommand(string(c))
		if err != nil || parsed != c {
			t.Fatalf("command %s did not round trip: %v", c, err)
		}
	}
	if _, err := ParseCommand("CAST"); err == nil {
		t.Fatalf("expected unknown command error")
	}
}

func TestEventBusPublishesInSubscriptionOrder(t *testing.T) {
	bus := NewEventBus()

	var order []int
	handles := make([]int, 0, 20)
	for i := 0; i < 20; i++ {
		i := i
		if i%3 == 0 {
			handles = append(handles, bus.SubscribeTyped(CommandAttack, func(Event) { order = append(order, i) }))
			continue
		}
		handles = append(handles, bus.Subscribe(func(Event) { order = append(order, i) }))
	}
	bus.Unsubscribe(handles[4])

	bus.Publish(Event{Command: CommandAttack})
	want := []int{0, 1, 2, 3, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19}
	if len(order) != len(want) {
		t.Fatalf("expected %d listeners, got %v", len(want), order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("listeners ran out of order: %v", order)
		}
	}
}

func TestEventBusListenerMayUnsubscribe(t *testing.T) {
	bus := NewEventBus()
	calls := 0
	var handle int
	handle = bus.Subscribe(func(Event) {
		calls++
		bus.Unsubscribe(handle)
	})

	bus.Publish(Event{Command: CommandDraw})
	bus.Publish(Event{Command: CommandDraw})
	if calls != 1 {
		t.Fatalf("expected one call, got %d", calls)
	}
}

func TestCommandString(t *testing.T) {
	if got := CommandAttack.String(); got != "ATTACK" {
		t.Fatalf("expected ATTACK, got %s", got)
	}
}
