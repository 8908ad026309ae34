package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/parlorgames/parlor/internal/relay"
	"github.com/parlorgames/parlor/internal/room"
)

// startRelay runs an in-process relay and returns its websocket URL.
func startRelay(t *testing.T) string {
	t.Helper()

	srv := relay.NewServer(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go srv.Hub().Run(ctx)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})

	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

type serverPeer struct {
	provider Provider
	core     *room.Core
	notices  *noticeLog
}

func newServerPeer(t *testing.T, url, id, name string) *serverPeer {
	t.Helper()
	opts, core, notices := newTestOptions(room.Player{ID: id, Name: name})
	opts.CloseGrace = 10 * time.Millisecond
	p, err := New(room.ModeServer, opts)
	if err != nil {
		t.Fatalf("New(server) failed: %v", err)
	}
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	t.Cleanup(p.Destroy)

	if url != "" {
		connector, ok := p.(ServerConnector)
		if !ok {
			t.Fatal("Expected the server provider to implement ServerConnector")
		}
		if err := connector.ConnectToServer(context.Background(), url); err != nil {
			t.Fatalf("ConnectToServer() failed: %v", err)
		}
	}
	return &serverPeer{provider: p, core: core, notices: notices}
}

func (p *serverPeer) rosterSize() int {
	return len(p.core.Store().State().Players)
}

func serverHostAndJoin(t *testing.T, host *serverPeer, guests ...*serverPeer) string {
	t.Helper()
	roomID, err := host.provider.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	for i, g := range guests {
		g.provider.JoinRoom(roomID)
		want := i + 2
		waitFor(t, "rosters to converge", func() bool {
			ok := host.rosterSize() == want
			for _, g2 := range guests[:i+1] {
				ok = ok && g2.rosterSize() == want
			}
			return ok
		})
	}
	return roomID
}

func TestServerCreateRoomReturnsJoinCode(t *testing.T) {
	url := startRelay(t)
	host := newServerPeer(t, url, "h1", "Alice")

	roomID, err := host.provider.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}
	if len(roomID) != 6 {
		t.Errorf("Expected a 6-character join code, got %q", roomID)
	}
	if roomID != strings.ToUpper(roomID) {
		t.Errorf("Expected an uppercase join code, got %q", roomID)
	}

	snap := host.core.Store().State()
	if !snap.IsHost || snap.RoomID != roomID {
		t.Errorf("Expected hosting snapshot for %s, got %+v", roomID, snap)
	}
}

func TestServerCreateRoomWithoutConnection(t *testing.T) {
	host := newServerPeer(t, "", "h1", "Alice")

	if _, err := host.provider.CreateRoom(context.Background()); err != ErrNotReady {
		t.Errorf("Expected ErrNotReady, got %v", err)
	}
}

func TestServerCreateRoomTimesOut(t *testing.T) {
	// A websocket endpoint that upgrades and then ignores everything.
	mute := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(mute.Close)

	opts, _, _ := newTestOptions(room.Player{ID: "h1"})
	opts.CreateTimeout = 50 * time.Millisecond
	p, err := New(room.ModeServer, opts)
	if err != nil {
		t.Fatalf("New(server) failed: %v", err)
	}
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize() failed: %v", err)
	}
	t.Cleanup(p.Destroy)

	url := "ws" + strings.TrimPrefix(mute.URL, "http")
	if err := p.(ServerConnector).ConnectToServer(context.Background(), url); err != nil {
		t.Fatalf("ConnectToServer() failed: %v", err)
	}

	if _, err := p.CreateRoom(context.Background()); err != ErrCreateTimeout {
		t.Errorf("Expected ErrCreateTimeout, got %v", err)
	}
}

func TestServerJoinPropagatesRoster(t *testing.T) {
	url := startRelay(t)
	host := newServerPeer(t, url, "h1", "Alice")
	g1 := newServerPeer(t, url, "g1", "Bob")
	g2 := newServerPeer(t, url, "g2", "Carol")

	roomID := serverHostAndJoin(t, host, g1, g2)

	snap := g1.core.Store().State()
	if snap.RoomID != roomID {
		t.Errorf("Expected guest room id %q, got %q", roomID, snap.RoomID)
	}
	if snap.IsHost {
		t.Error("Expected guest snapshot not to claim host")
	}
	if snap.MainPlayer != "h1" {
		t.Errorf("Expected main player h1, got %q", snap.MainPlayer)
	}
}

func TestServerJoinCodeIsCaseInsensitive(t *testing.T) {
	url := startRelay(t)
	host := newServerPeer(t, url, "h1", "Alice")
	g1 := newServerPeer(t, url, "g1", "Bob")

	roomID, err := host.provider.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("CreateRoom() failed: %v", err)
	}

	g1.provider.JoinRoom(strings.ToLower(roomID))
	waitFor(t, "lowercase join to work", func() bool {
		return g1.rosterSize() == 2 && host.rosterSize() == 2
	})
}

func TestServerJoinUnknownRoomNotifies(t *testing.T) {
	url := startRelay(t)
	g1 := newServerPeer(t, url, "g1", "Bob")

	g1.provider.JoinRoom("ZZZZZZ")

	waitFor(t, "error notification", func() bool {
		return g1.notices.count() > 0
	})
	if g1.rosterSize() != 0 {
		t.Error("Expected no roster after a failed join")
	}
}

func TestServerLateJoinerReceivesGameState(t *testing.T) {
	url := startRelay(t)
	host := newServerPeer(t, url, "h1", "Alice")
	g1 := newServerPeer(t, url, "g1", "Bob")

	roomID := serverHostAndJoin(t, host)
	host.provider.StartGame("playing", room.GameState{"round": 1})

	g1.provider.JoinRoom(roomID)
	waitFor(t, "late joiner to receive game state", func() bool {
		return g1.core.Store().State().GameState["phase"] == "playing"
	})
}

func TestServerGameStatePatchesConverge(t *testing.T) {
	url := startRelay(t)
	host := newServerPeer(t, url, "h1", "Alice")
	g1 := newServerPeer(t, url, "g1", "Bob")
	g2 := newServerPeer(t, url, "g2", "Carol")

	serverHostAndJoin(t, host, g1, g2)

	host.provider.StartGame("playing", nil)
	g1.provider.ChangeGame(room.GameState{"turn": "g1"})

	waitFor(t, "patches to converge", func() bool {
		for _, peer := range []*serverPeer{host, g1, g2} {
			state := peer.core.Store().State().GameState
			if state["phase"] != "playing" || state["turn"] != "g1" {
				return false
			}
		}
		return true
	})
}

func TestServerOfflinePlayerAnnounced(t *testing.T) {
	url := startRelay(t)
	host := newServerPeer(t, url, "h1", "Alice")
	g1 := newServerPeer(t, url, "g1", "Bob")

	serverHostAndJoin(t, host, g1)

	g1.provider.AddOfflinePlayer("Couch Guest")
	waitFor(t, "offline player to propagate", func() bool {
		return host.rosterSize() == 3 && g1.rosterSize() == 3
	})
}

func TestServerKickResetsGuest(t *testing.T) {
	url := startRelay(t)
	host := newServerPeer(t, url, "h1", "Alice")
	g1 := newServerPeer(t, url, "g1", "Bob")
	g2 := newServerPeer(t, url, "g2", "Carol")

	serverHostAndJoin(t, host, g1, g2)

	host.provider.RemovePlayer("g1")

	waitFor(t, "kicked guest to reset", func() bool {
		return g1.core.Store().State().RoomID == ""
	})
	waitFor(t, "remaining peers to prune the roster", func() bool {
		return host.rosterSize() == 2 && g2.rosterSize() == 2
	})
	if g1.notices.count() == 0 {
		t.Error("Expected the kicked guest to be notified")
	}
}

func TestServerGuestLeaveKeepsRoomAlive(t *testing.T) {
	url := startRelay(t)
	host := newServerPeer(t, url, "h1", "Alice")
	g1 := newServerPeer(t, url, "g1", "Bob")
	g2 := newServerPeer(t, url, "g2", "Carol")

	serverHostAndJoin(t, host, g1, g2)

	g1.provider.CloseRoom()

	waitFor(t, "leaver to be pruned", func() bool {
		return host.rosterSize() == 2 && g2.rosterSize() == 2
	})
	if host.core.Store().State().RoomID == "" {
		t.Error("Expected the room to survive a guest leaving")
	}
}

func TestServerHostCloseResetsEveryone(t *testing.T) {
	url := startRelay(t)
	host := newServerPeer(t, url, "h1", "Alice")
	g1 := newServerPeer(t, url, "g1", "Bob")

	serverHostAndJoin(t, host, g1)

	host.provider.CloseRoom()

	waitFor(t, "everyone to reset", func() bool {
		return host.core.Store().State().RoomID == "" &&
			g1.core.Store().State().RoomID == ""
	})
	if g1.notices.count() == 0 {
		t.Error("Expected the guest to be told the room closed")
	}
}

func TestServerHostDisconnectClosesRoom(t *testing.T) {
	url := startRelay(t)
	host := newServerPeer(t, url, "h1", "Alice")
	g1 := newServerPeer(t, url, "g1", "Bob")

	serverHostAndJoin(t, host, g1)

	// Drop the host's socket without a polite CLOSE_ROOM.
	host.provider.Destroy()

	waitFor(t, "guest to learn the room is gone", func() bool {
		return g1.core.Store().State().RoomID == ""
	})
}

func TestServerReconnectWithoutURLFails(t *testing.T) {
	host := newServerPeer(t, "", "h1", "Alice")
	if host.provider.ReconnectToRoom(context.Background()) {
		t.Error("Expected reconnect to fail with no relay URL")
	}
}
