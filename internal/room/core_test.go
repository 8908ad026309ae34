package room

import (
	"errors"
	"testing"
)

func newTestCore() *Core {
	return NewCore(NewStore(), NewBus(nil))
}

func TestCreateRoomBootstrapsSnapshot(t *testing.T) {
	core := newTestCore()

	core.CreateRoom(Player{ID: "h1", Name: "Alice"}, "room-42")

	snap := core.Store().State()
	if !snap.IsHost {
		t.Error("Expected IsHost to be true after CreateRoom")
	}
	if snap.RoomID != "room-42" {
		t.Errorf("Expected RoomID room-42, got %q", snap.RoomID)
	}
	if snap.LocalPlayerID != "h1" || snap.MainPlayer != "h1" {
		t.Errorf("Expected local and main player h1, got %q / %q", snap.LocalPlayerID, snap.MainPlayer)
	}
	if len(snap.Players) != 1 {
		t.Fatalf("Expected 1 player, got %d", len(snap.Players))
	}
	if snap.Players[0].Type != PlayerTypeHost {
		t.Errorf("Expected creator to be typed host, got %q", snap.Players[0].Type)
	}
	if !snap.ServerConnected {
		t.Error("Expected ServerConnected after CreateRoom")
	}
}

func TestAddPlayerKeepsInsertionOrder(t *testing.T) {
	core := newTestCore()
	core.CreateRoom(Player{ID: "h1", Name: "Alice"}, "room-42")

	core.AddPlayer(Player{ID: "p2", Name: "Bob", Type: PlayerTypeInvited}, "")
	core.AddPlayer(Player{ID: "p3", Name: "Carol", Type: PlayerTypeInvited}, "")

	snap := core.Store().State()
	want := []string{"h1", "p2", "p3"}
	if len(snap.Players) != len(want) {
		t.Fatalf("Expected %d players, got %d", len(want), len(snap.Players))
	}
	for i, id := range want {
		if snap.Players[i].ID != id {
			t.Errorf("Expected player %d to be %s, got %s", i, id, snap.Players[i].ID)
		}
	}
}

func TestAddPlayerReplacesDuplicateID(t *testing.T) {
	core := newTestCore()
	core.CreateRoom(Player{ID: "h1", Name: "Alice"}, "room-42")
	core.AddPlayer(Player{ID: "p2", Name: "Bob", Type: PlayerTypeInvited}, "")

	// Same id rejoining with a new name must not duplicate the entry.
	core.AddPlayer(Player{ID: "p2", Name: "Bobby", Type: PlayerTypeInvited}, "")

	snap := core.Store().State()
	if len(snap.Players) != 2 {
		t.Fatalf("Expected 2 players, got %d", len(snap.Players))
	}
	if snap.Players[1].Name != "Bobby" {
		t.Errorf("Expected replaced entry to carry the new name, got %q", snap.Players[1].Name)
	}
}

func TestRemovePlayerRejectsHost(t *testing.T) {
	core := newTestCore()
	core.CreateRoom(Player{ID: "h1", Name: "Alice"}, "room-42")
	core.AddPlayer(Player{ID: "p2", Name: "Bob", Type: PlayerTypeInvited}, "")

	host, _ := core.Store().State().HostPlayer()
	if err := core.RemovePlayer(host); !errors.Is(err, ErrRemoveHost) {
		t.Fatalf("Expected ErrRemoveHost, got %v", err)
	}

	snap := core.Store().State()
	if len(snap.Players) != 2 {
		t.Errorf("Expected roster untouched after rejected removal, got %d players", len(snap.Players))
	}

	guest, _ := snap.FindPlayer("p2")
	if err := core.RemovePlayer(guest); err != nil {
		t.Fatalf("RemovePlayer(guest) failed: %v", err)
	}
	if len(core.Store().State().Players) != 1 {
		t.Error("Expected guest removed from roster")
	}
}

func TestCloseRoomResetsButPreservesMode(t *testing.T) {
	core := newTestCore()
	core.Store().Set(func(s Snapshot) Snapshot {
		s.Mode = ModeOnline
		return s
	})
	core.CreateRoom(Player{ID: "h1", Name: "Alice"}, "room-42")
	core.SetGameState(GameState{"phase": "playing"})

	core.CloseRoom()

	snap := core.Store().State()
	if snap.Mode != ModeOnline {
		t.Errorf("Expected mode preserved across close, got %q", snap.Mode)
	}
	if snap.RoomID != "" || snap.IsHost || len(snap.Players) != 0 || snap.GameState != nil {
		t.Errorf("Expected default snapshot after close, got %+v", snap)
	}

	// Closing an already-closed room is a no-op, not an error.
	core.CloseRoom()
}

func TestSetGameStateShallowMerge(t *testing.T) {
	core := newTestCore()
	core.SetGameState(GameState{"phase": "lobby", "scores": map[string]any{"h1": 0}})
	core.SetGameState(GameState{"phase": "playing"})

	snap := core.Store().State()
	if snap.GameState["phase"] != "playing" {
		t.Errorf("Expected phase overwritten by patch, got %v", snap.GameState["phase"])
	}
	if snap.GameState["scores"] == nil {
		t.Error("Expected untouched keys to survive the merge")
	}
}

func TestGameStateMergeDoesNotMutateInputs(t *testing.T) {
	base := GameState{"a": 1}
	patch := GameState{"a": 2, "b": 3}

	merged := base.Merge(patch)

	if base["a"] != 1 {
		t.Errorf("Expected base untouched, got a=%v", base["a"])
	}
	if merged["a"] != 2 || merged["b"] != 3 {
		t.Errorf("Unexpected merge result: %v", merged)
	}
	if got := GameState(nil).Merge(nil); got != nil {
		t.Errorf("Expected nil merge nil to stay nil, got %v", got)
	}
}
