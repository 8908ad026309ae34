package provider

import (
	"context"
	"sync"
	"testing"

	"github.com/parlorgames/parlor/internal/room"
)

// noticeLog records notifications from transport goroutines.
type noticeLog struct {
	mu   sync.Mutex
	msgs []string
}

func (n *noticeLog) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, message)
}

func (n *noticeLog) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

func newTestOptions(player room.Player) (Options, *room.Core, *noticeLog) {
	core := room.NewCore(room.NewStore(), room.NewBus(nil))
	notices := &noticeLog{}
	opts := Options{
		LocalPlayer: player,
		Core:        core,
		Notifier:    notices,
	}
	return opts, core, notices
}

func newLocalForTest(t *testing.T, mode room.Mode) (Provider, *room.Core, *noticeLog) {
	t.Helper()
	opts, core, notices := newTestOptions(room.Player{ID: "h1", Name: "Alice"})
	p, err := New(mode, opts)
	if err != nil {
		t.Fatalf("New(%s) failed: %v", mode, err)
	}
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	return p, core, notices
}

func TestFactoryRejectsUnknownMode(t *testing.T) {
	opts, _, _ := newTestOptions(room.Player{ID: "h1"})
	if _, err := New(room.Mode("bogus"), opts); err == nil {
		t.Error("Expected error for unknown mode")
	}
}

func TestLocalCreateRoomUsesFixedID(t *testing.T) {
	p, core, _ := newLocalForTest(t, room.ModeLocal)

	id, err := p.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	if id != LocalRoomID {
		t.Errorf("Expected %q, got %q", LocalRoomID, id)
	}

	snap := core.Store().State()
	if !snap.IsHost || snap.RoomID != LocalRoomID {
		t.Errorf("Expected hosting snapshot for %s, got %+v", LocalRoomID, snap)
	}
}

func TestLocalCreateRoomBeforeInitialize(t *testing.T) {
	opts, _, _ := newTestOptions(room.Player{ID: "h1"})
	p, err := New(room.ModeLocal, opts)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if _, err := p.CreateRoom(context.Background()); err != ErrNotReady {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
}

func TestLocalOfflinePlayersGetDistinctIDs(t *testing.T) {
	p, core, _ := newLocalForTest(t, room.ModeLocal)
	if _, err := p.CreateRoom(context.Background()); err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}

	p.AddOfflinePlayer("Bob")
	p.AddOfflinePlayer("Carol")

	snap := core.Store().State()
	if len(snap.Players) != 3 {
		t.Fatalf("Expected 3 players, got %d", len(snap.Players))
	}
	if snap.Players[1].ID == snap.Players[2].ID {
		t.Error("Expected offline players to get distinct ids")
	}
	if !snap.Players[1].IsOffline || !snap.Players[2].IsOffline {
		t.Error("Expected added players to be flagged offline")
	}
}

func TestLocalStartGameSeedsPhaseAndPlayers(t *testing.T) {
	p, core, _ := newLocalForTest(t, room.ModeLocal)
	if _, err := p.CreateRoom(context.Background()); err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	p.AddOfflinePlayer("Bob")

	p.StartGame("playing", room.GameState{"round": 1})

	state := core.Store().State().GameState
	if state["phase"] != "playing" {
		t.Errorf("Expected phase playing, got %v", state["phase"])
	}
	// Envelopes round-trip through JSON, so numbers arrive as float64 and
	// the id list as []any.
	if state["round"] != float64(1) {
		t.Errorf("Expected caller seed merged in, got %v", state["round"])
	}
	ids, ok := state["players"].([]any)
	if !ok || len(ids) != 2 {
		t.Errorf("Expected 2 seeded player ids, got %v", state["players"])
	}
}

func TestLocalStartGameRequiresHost(t *testing.T) {
	p, core, notices := newLocalForTest(t, room.ModeLocal)

	// No room created, so IsHost is false.
	p.StartGame("playing", nil)

	if core.Store().State().GameState != nil {
		t.Error("Expected no game state without a hosted room")
	}
	if notices.count() == 0 {
		t.Error("Expected a notification for the rejected start")
	}
}

func TestLocalRemovePlayerGuards(t *testing.T) {
	p, core, _ := newLocalForTest(t, room.ModeLocal)
	if _, err := p.CreateRoom(context.Background()); err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	p.AddOfflinePlayer("Bob")
	bob := core.Store().State().Players[1]

	// Removing yourself is a guarded no-op.
	p.RemovePlayer("h1")
	if len(core.Store().State().Players) != 2 {
		t.Error("Expected self-removal to be a no-op")
	}

	p.RemovePlayer(bob.ID)
	if len(core.Store().State().Players) != 1 {
		t.Error("Expected Bob removed from roster")
	}

	// Unknown ids are ignored.
	p.RemovePlayer("nope")
	if len(core.Store().State().Players) != 1 {
		t.Error("Expected unknown id removal to be a no-op")
	}
}

func TestLocalCloseRoomResetsState(t *testing.T) {
	p, core, _ := newLocalForTest(t, room.ModeLocal)
	if _, err := p.CreateRoom(context.Background()); err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	p.AddOfflinePlayer("Bob")
	p.StartGame("playing", nil)

	p.CloseRoom()

	snap := core.Store().State()
	if snap.RoomID != "" || len(snap.Players) != 0 || snap.GameState != nil {
		t.Errorf("Expected reset snapshot after close, got %+v", snap)
	}
}

func TestLocalReconnectReplaysLastRoom(t *testing.T) {
	p, core, _ := newLocalForTest(t, room.ModeLocal)

	// Nothing to reconnect to yet.
	if p.ReconnectToRoom(context.Background()) {
		t.Error("Expected reconnect to fail with no prior room")
	}

	if _, err := p.CreateRoom(context.Background()); err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	if !p.ReconnectToRoom(context.Background()) {
		t.Error("Expected reconnect to succeed after hosting")
	}
	if core.Store().State().RoomID != LocalRoomID {
		t.Error("Expected room id restored after reconnect")
	}
}

func TestLocalDestroyIsIdempotent(t *testing.T) {
	p, core, _ := newLocalForTest(t, room.ModeSingle)
	if _, err := p.CreateRoom(context.Background()); err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}

	p.Destroy()
	p.Destroy()

	if len(core.Store().State().Players) != 0 {
		t.Error("Expected roster cleared after Destroy")
	}
	if _, err := p.CreateRoom(context.Background()); err != ErrNotReady {
		t.Errorf("Expected ErrNotReady after Destroy, got %v", err)
	}
}
