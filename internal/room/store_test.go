package room

import "testing"

func TestStoreStateReturnsCopy(t *testing.T) {
	store := NewStore()
	store.Set(func(s Snapshot) Snapshot {
		s.Players = []Player{{ID: "p1", Name: "Alice"}}
		s.GameState = GameState{"phase": "lobby"}
		return s
	})

	snap := store.State()
	snap.Players[0].Name = "mutated"
	snap.GameState["phase"] = "mutated"

	fresh := store.State()
	if fresh.Players[0].Name != "Alice" {
		t.Error("Expected Players to be isolated from caller mutation")
	}
	if fresh.GameState["phase"] != "lobby" {
		t.Error("Expected GameState to be isolated from caller mutation")
	}
}

func TestStoreSubscribersSeeEveryMutation(t *testing.T) {
	store := NewStore()

	var seen []string
	store.Subscribe(func(s Snapshot) {
		seen = append(seen, s.RoomID)
	})

	store.Set(func(s Snapshot) Snapshot { s.RoomID = "one"; return s })
	store.Set(func(s Snapshot) Snapshot { s.RoomID = "two"; return s })

	if len(seen) != 2 || seen[0] != "one" || seen[1] != "two" {
		t.Errorf("Expected subscriber to observe [one two], got %v", seen)
	}
}

func TestStoreSubscriberMayReadStore(t *testing.T) {
	store := NewStore()

	// Reading the store from inside a subscriber must not deadlock.
	done := false
	store.Subscribe(func(Snapshot) {
		_ = store.State()
		done = true
	})

	store.Set(func(s Snapshot) Snapshot { return s })
	if !done {
		t.Error("Expected subscriber to run")
	}
}

func TestBusHandlersRunInRegistrationOrder(t *testing.T) {
	bus := NewBus(nil)

	var order []int
	bus.On(EventState, func(any) { order = append(order, 1) })
	bus.On(EventState, func(any) { order = append(order, 2) })
	bus.On(EventState, func(any) { order = append(order, 3) })

	bus.Emit(EventState, nil)

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("Expected handlers in registration order, got %v", order)
	}
}

func TestBusRecoversPanickingHandler(t *testing.T) {
	bus := NewBus(nil)

	ran := false
	bus.On(EventState, func(any) { panic("boom") })
	bus.On(EventState, func(any) { ran = true })

	bus.Emit(EventState, nil)

	if !ran {
		t.Error("Expected handler after the panicking one to still run")
	}
}

func TestBusEmitWithoutListenersIsNoop(t *testing.T) {
	bus := NewBus(nil)
	bus.Emit(EventRoomClosed, nil)
}
