package session

import (
	"context"
	"sync"
	"testing"

	"github.com/parlorgames/parlor/internal/provider"
	"github.com/parlorgames/parlor/internal/room"
)

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []string
}

func (n *recordingNotifier) Notify(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, message)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

func newTestSession() (*Session, *recordingNotifier) {
	notifier := &recordingNotifier{}
	sess := New(Options{
		LocalPlayer: room.Player{ID: "h1", Name: "Alice"},
		Notifier:    notifier,
	})
	return sess, notifier
}

func TestUnboundSessionNotifiesInsteadOfActing(t *testing.T) {
	sess, notifier := newTestSession()

	if _, err := sess.CreateRoom(context.Background()); err != provider.ErrNotReady {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
	sess.JoinRoom("anything")
	sess.StartGame("playing", nil)
	sess.CloseRoom()

	if notifier.count() != 4 {
		t.Errorf("Expected 4 not-initialized notifications, got %d", notifier.count())
	}
	if len(sess.Snapshot().Players) != 0 {
		t.Error("Expected no state change from unbound operations")
	}
}

func TestSetModeRejectsUnknownMode(t *testing.T) {
	sess, _ := newTestSession()
	if err := sess.SetMode(room.Mode("bogus")); err == nil {
		t.Error("Expected error for unknown mode")
	}
	if sess.Mode() != "" {
		t.Errorf("Expected no mode bound after rejection, got %q", sess.Mode())
	}
}

func TestSetModePublishesMode(t *testing.T) {
	sess, _ := newTestSession()

	var seen []room.Mode
	sess.Subscribe(func(snap room.Snapshot) {
		seen = append(seen, snap.Mode)
	})

	if err := sess.SetMode(room.ModeLocal); err != nil {
		t.Fatalf("SetMode() failed: %v", err)
	}

	if sess.Mode() != room.ModeLocal {
		t.Errorf("Expected mode local, got %q", sess.Mode())
	}
	if len(seen) == 0 || seen[len(seen)-1] != room.ModeLocal {
		t.Errorf("Expected subscribers to observe the new mode, got %v", seen)
	}
}

func TestSessionLocalRoomLifecycle(t *testing.T) {
	sess, _ := newTestSession()
	if err := sess.SetMode(room.ModeLocal); err != nil {
		t.Fatalf("SetMode() failed: %v", err)
	}

	id, err := sess.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	if id != provider.LocalRoomID {
		t.Errorf("Expected %q, got %q", provider.LocalRoomID, id)
	}

	sess.AddOfflinePlayer("Bob")
	sess.StartGame("playing", nil)

	snap := sess.Snapshot()
	if len(snap.Players) != 2 {
		t.Errorf("Expected 2 players, got %d", len(snap.Players))
	}
	if snap.GameState["phase"] != "playing" {
		t.Errorf("Expected phase playing, got %v", snap.GameState["phase"])
	}

	sess.ChangeGame(room.GameState{"round": 2})
	if sess.Snapshot().GameState["phase"] != "playing" {
		t.Error("Expected patch merge to preserve earlier keys")
	}

	sess.CloseRoom()
	snap = sess.Snapshot()
	if snap.RoomID != "" || len(snap.Players) != 0 {
		t.Errorf("Expected reset snapshot after close, got %+v", snap)
	}
	if snap.Mode != room.ModeLocal {
		t.Errorf("Expected mode to survive the close, got %q", snap.Mode)
	}
}

func TestSetModeSwitchDestroysOldProvider(t *testing.T) {
	sess, _ := newTestSession()
	if err := sess.SetMode(room.ModeLocal); err != nil {
		t.Fatalf("SetMode(local) failed: %v", err)
	}
	if _, err := sess.CreateRoom(context.Background()); err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}

	if err := sess.SetMode(room.ModeSingle); err != nil {
		t.Fatalf("SetMode(single) failed: %v", err)
	}

	snap := sess.Snapshot()
	if snap.RoomID != "" || len(snap.Players) != 0 {
		t.Errorf("Expected room torn down on mode switch, got %+v", snap)
	}
	if snap.Mode != room.ModeSingle {
		t.Errorf("Expected mode single, got %q", snap.Mode)
	}
}

func TestConnectToServerRequiresServerMode(t *testing.T) {
	sess, notifier := newTestSession()
	if err := sess.SetMode(room.ModeLocal); err != nil {
		t.Fatalf("SetMode() failed: %v", err)
	}

	if err := sess.ConnectToServer(context.Background(), "ws://nowhere"); err != provider.ErrNotReady {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
	if notifier.count() == 0 {
		t.Error("Expected a notification for the wrong-mode connect")
	}
}

func TestDestroyUnbindsProvider(t *testing.T) {
	sess, _ := newTestSession()
	if err := sess.SetMode(room.ModeLocal); err != nil {
		t.Fatalf("SetMode() failed: %v", err)
	}

	sess.Destroy()

	if sess.Mode() != "" {
		t.Errorf("Expected no mode after Destroy, got %q", sess.Mode())
	}
	if _, err := sess.CreateRoom(context.Background()); err != provider.ErrNotReady {
		t.Errorf("Expected ErrNotReady after Destroy, got %v", err)
	}
}
