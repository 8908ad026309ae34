package provider

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/parlorgames/parlor/internal/room"
	"github.com/parlorgames/parlor/internal/wire"
)

// serverProvider is the relayed strategy: a thin client of the relay
// daemon's protocol over one persistent websocket. Connecting the socket is
// explicit and separate from room lifecycle; every room operation is an
// envelope send, and all state updates arrive through one inbound
// dispatcher keyed by envelope type.
type serverProvider struct {
	player        room.Player
	core          *room.Core
	notifier      Notifier
	logger        *log.Logger
	relayURL      string
	createTimeout time.Duration
	closeGrace    time.Duration

	dispatchMu sync.Mutex

	mu            sync.Mutex
	conn          *websocket.Conn
	writeMu       sync.Mutex
	connected     bool
	initialized   bool
	destroyed     bool
	lastURL       string
	lastRoomID    string
	pendingCreate chan string
}

func newServerProvider(opts Options) *serverProvider {
	return &serverProvider{
		player:        opts.LocalPlayer,
		core:          opts.Core,
		notifier:      opts.Notifier,
		logger:        opts.Logger,
		relayURL:      opts.RelayURL,
		createTimeout: opts.CreateTimeout,
		closeGrace:    opts.CloseGrace,
	}
}

func (s *serverProvider) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	s.destroyed = false
	return nil
}

func (s *serverProvider) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.initialized = false
	s.connected = false
	s.lastRoomID = ""
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.core.CloseRoom()
}

// ConnectToServer dials the relay and introduces the local player. It must
// succeed before any room operation is attempted.
func (s *serverProvider) ConnectToServer(ctx context.Context, url string) error {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ErrNotReady
	}
	old := s.conn
	s.mu.Unlock()
	if old != nil {
		old.Close()
	}

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		s.logger.Warn("relay dial failed", "url", url, "error", err)
		return err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.lastURL = url
	s.mu.Unlock()

	identify := wire.MustNew(wire.TypeIdentify, wire.Identify{Player: s.player})
	if err := s.writeEnvelope(conn, identify); err != nil {
		conn.Close()
		return err
	}

	s.core.Store().Set(func(snap room.Snapshot) room.Snapshot {
		snap.ServerConnected = true
		return snap
	})

	go s.readLoop(conn)
	s.logger.Info("connected to relay", "url", url)
	return nil
}

func (s *serverProvider) CreateRoom(ctx context.Context) (string, error) {
	conn := s.liveConn()
	if conn == nil {
		return "", ErrNotReady
	}

	pending := make(chan string, 1)
	s.mu.Lock()
	s.pendingCreate = pending
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.pendingCreate = nil
		s.mu.Unlock()
	}()

	if err := s.writeEnvelope(conn, wire.Envelope{Type: wire.TypeCreateRoom}); err != nil {
		return "", err
	}

	select {
	case roomID := <-pending:
		s.core.CreateRoom(s.player, roomID)
		s.mu.Lock()
		s.lastRoomID = roomID
		s.mu.Unlock()
		return roomID, nil
	case <-time.After(s.createTimeout):
		return "", ErrCreateTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (s *serverProvider) JoinRoom(roomID string) {
	conn := s.liveConn()
	if conn == nil {
		s.notifier.Notify("cannot join: not connected to the server")
		return
	}

	guest := s.player
	guest.Type = room.PlayerTypeInvited
	env := wire.MustNew(wire.TypeJoinRoom, wire.JoinRequest{RoomID: roomID, Player: guest})
	if err := s.writeEnvelope(conn, env); err != nil {
		s.notifier.Notify("cannot join: not connected to the server")
		return
	}

	s.mu.Lock()
	s.lastRoomID = roomID
	s.mu.Unlock()
	s.core.Bus().Emit(room.EventJoinRoom, guest)
}

func (s *serverProvider) StartGame(phase string, initState room.GameState) {
	snap := s.core.Store().State()
	if !snap.IsHost {
		s.notifier.Notify("only the host can start the game")
		return
	}
	seed := seedGameState(snap, phase, initState)
	s.core.SetGameState(seed)
	if conn := s.liveConn(); conn != nil {
		env := wire.MustNew(wire.TypeStartGame, wire.GameStatePatch{State: seed})
		if err := s.writeEnvelope(conn, env); err != nil {
			s.logger.Warn("start game send failed", "error", err)
		}
	}
}

func (s *serverProvider) AddOfflinePlayer(name string) {
	p := room.NewOfflinePlayer(name)
	s.core.AddPlayer(p, "")
	if conn := s.liveConn(); conn != nil {
		env := wire.MustNew(wire.TypePlayerJoined, wire.PlayerJoined{Player: p})
		if err := s.writeEnvelope(conn, env); err != nil {
			s.logger.Warn("offline player announce failed", "error", err)
		}
	}
}

func (s *serverProvider) RemovePlayer(playerID string) {
	snap := s.core.Store().State()
	if !snap.IsHost {
		s.notifier.Notify("only the host can remove players")
		return
	}
	if playerID == snap.LocalPlayerID {
		return
	}
	p, ok := snap.FindPlayer(playerID)
	if !ok {
		return
	}
	if err := s.core.RemovePlayer(p); err != nil {
		s.notifier.Notify("the host cannot be removed")
		return
	}
	// The relay notifies the kicked player's connection (offline players
	// have none) and fans PLAYER_LEFT out to the rest.
	if conn := s.liveConn(); conn != nil {
		env := wire.MustNew(wire.TypeRemovePlayer, wire.RemovePlayer{PlayerID: playerID})
		if err := s.writeEnvelope(conn, env); err != nil {
			s.logger.Warn("remove player send failed", "player", playerID, "error", err)
		}
	}
	s.core.Bus().Emit(room.EventPlayerLeft, p)
}

func (s *serverProvider) CloseRoom() {
	snap := s.core.Store().State()
	conn := s.liveConn()

	s.mu.Lock()
	s.lastRoomID = ""
	s.mu.Unlock()

	if snap.IsHost {
		if conn != nil {
			if err := s.writeEnvelope(conn, wire.Envelope{Type: wire.TypeCloseRoom}); err != nil {
				s.logger.Warn("close room send failed", "error", err)
			}
			time.AfterFunc(s.closeGrace, s.core.CloseRoom)
			return
		}
		s.core.CloseRoom()
		return
	}

	// Guests leave by removing themselves.
	if conn != nil && snap.LocalPlayerID != "" {
		env := wire.MustNew(wire.TypeRemovePlayer, wire.RemovePlayer{PlayerID: snap.LocalPlayerID})
		if err := s.writeEnvelope(conn, env); err != nil {
			s.logger.Warn("leave send failed", "error", err)
		}
	}
	s.core.CloseRoom()
}

func (s *serverProvider) ChangeGame(patch room.GameState) {
	s.core.SetGameState(patch)
	if conn := s.liveConn(); conn != nil {
		env := wire.MustNew(wire.TypeChangeGame, wire.GameStatePatch{State: patch})
		if err := s.writeEnvelope(conn, env); err != nil {
			s.logger.Warn("game patch send failed", "error", err)
		}
	}
}

func (s *serverProvider) ReconnectToRoom(ctx context.Context) bool {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return false
	}
	connected := s.connected
	url := s.lastURL
	last := s.lastRoomID
	s.mu.Unlock()

	if url == "" {
		url = s.relayURL
	}
	if url == "" {
		return false
	}

	if !connected {
		if err := s.ConnectToServer(ctx, url); err != nil {
			return false
		}
	}
	if last == "" {
		return false
	}
	s.JoinRoom(last)
	return true
}

func (s *serverProvider) liveConn() *websocket.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || s.destroyed {
		return nil
	}
	return s.conn
}

func (s *serverProvider) writeEnvelope(conn *websocket.Conn, env wire.Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(env)
}

func (s *serverProvider) readLoop(conn *websocket.Conn) {
	for {
		var env wire.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			break
		}
		s.handleMessage(env)
	}

	s.mu.Lock()
	deliberate := s.destroyed || s.conn != conn
	if s.conn == conn {
		s.connected = false
		s.conn = nil
	}
	s.mu.Unlock()

	if deliberate {
		return
	}
	s.notifier.Notify("lost connection to the server")
	s.core.Store().Set(func(snap room.Snapshot) room.Snapshot {
		snap.ServerConnected = false
		return snap
	})
}

func (s *serverProvider) handleMessage(env wire.Envelope) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	switch env.Type {
	case wire.TypeRoomCreated:
		var created wire.RoomCreated
		if err := wire.Decode(env, &created); err != nil {
			s.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		s.mu.Lock()
		pending := s.pendingCreate
		s.mu.Unlock()
		if pending != nil {
			select {
			case pending <- created.RoomID:
			default:
			}
		}
		s.core.Bus().Emit(room.EventRoomCreated, created.RoomID)

	case wire.TypeJoinedRoom:
		var confirm wire.JoinConfirmed
		if err := wire.Decode(env, &confirm); err != nil {
			s.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		localID := s.player.ID
		s.core.Store().Set(func(snap room.Snapshot) room.Snapshot {
			snap.IsHost = false
			snap.RoomID = confirm.RoomID
			snap.LocalPlayerID = localID
			snap.Players = confirm.Players
			snap.GameState = confirm.GameState
			snap.ServerConnected = true
			if host, ok := (room.Snapshot{Players: confirm.Players}).HostPlayer(); ok {
				snap.MainPlayer = host.ID
			}
			return snap
		})
		s.mu.Lock()
		s.lastRoomID = confirm.RoomID
		s.mu.Unlock()
		s.core.Bus().Emit(room.EventJoinConfirmed, confirm.RoomID)

	case wire.TypePlayerJoined:
		var joined wire.PlayerJoined
		if err := wire.Decode(env, &joined); err != nil {
			s.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		s.core.AddPlayer(joined.Player, "")
		s.core.Bus().Emit(room.EventPlayerJoined, joined.Player)

	case wire.TypePlayerLeft:
		var left wire.PlayerLeft
		if err := wire.Decode(env, &left); err != nil {
			s.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		if p, ok := s.core.Store().State().FindPlayer(left.PlayerID); ok {
			if err := s.core.RemovePlayer(p); err == nil {
				s.core.Bus().Emit(room.EventPlayerLeft, p)
			}
		}

	case wire.TypeGameStateUpdate:
		var patch wire.GameStatePatch
		if err := wire.Decode(env, &patch); err != nil {
			s.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		s.core.SetGameState(patch.State)

	case wire.TypeRoomClosed:
		s.notifier.Notify("the host closed the room")
		s.mu.Lock()
		s.lastRoomID = ""
		s.mu.Unlock()
		s.core.CloseRoom()

	case wire.TypeKicked:
		s.notifier.Notify("you were removed from the room")
		s.mu.Lock()
		s.lastRoomID = ""
		s.mu.Unlock()
		s.core.CloseRoom()

	case wire.TypeError:
		var relayErr wire.Error
		if err := wire.Decode(env, &relayErr); err != nil {
			s.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		s.notifier.Notify(relayErr.Message)

	default:
		// Unknown inbound types are dropped by contract.
	}
}
