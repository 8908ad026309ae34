package provider

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/parlorgames/parlor/internal/room"
	"github.com/parlorgames/parlor/internal/wire"
)

// onlineProvider is the peer-to-peer strategy. The topology is a star: the
// host's endpoint id is the room id, every guest holds one direct
// connection to the host, and the host relays roster and game-state traffic
// between guests.
type onlineProvider struct {
	player     room.Player
	core       *room.Core
	notifier   Notifier
	logger     *log.Logger
	listenAddr string
	closeGrace time.Duration

	// dispatchMu serializes all inbound handling and connection-close
	// bookkeeping so handlers never interleave, mirroring the
	// run-to-completion semantics the room layer assumes.
	dispatchMu sync.Mutex

	mu          sync.Mutex
	endpoint    *peerEndpoint
	hostConn    *peerConn
	initialized bool
	destroyed   bool
	hosting     bool
	lastRoomID  string
}

func newOnlineProvider(opts Options) *onlineProvider {
	return &onlineProvider{
		player:     opts.LocalPlayer,
		core:       opts.Core,
		notifier:   opts.Notifier,
		logger:     opts.Logger,
		listenAddr: opts.PeerListenAddr,
		closeGrace: opts.CloseGrace,
	}
}

func (o *onlineProvider) Initialize() error {
	o.mu.Lock()
	if o.initialized && o.endpoint != nil {
		o.mu.Unlock()
		return nil
	}
	o.mu.Unlock()

	ep, err := o.openEndpoint()
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.endpoint = ep
	o.initialized = true
	o.destroyed = false
	o.mu.Unlock()
	return nil
}

// openEndpoint builds and binds a fresh endpoint wired to this provider's
// dispatch. Used by Initialize and by ReconnectToRoom after a dead socket.
func (o *onlineProvider) openEndpoint() (*peerEndpoint, error) {
	ep := newPeerEndpoint(o.listenAddr, o.logger)
	ep.onMessage = o.handleMessage
	ep.onClose = o.handleConnClose
	if err := ep.open(); err != nil {
		return nil, err
	}
	return ep, nil
}

func (o *onlineProvider) Destroy() {
	o.mu.Lock()
	if o.destroyed {
		o.mu.Unlock()
		return
	}
	o.destroyed = true
	o.initialized = false
	o.hosting = false
	o.hostConn = nil
	o.lastRoomID = ""
	ep := o.endpoint
	o.endpoint = nil
	o.mu.Unlock()

	if ep != nil {
		ep.close()
	}
	o.core.CloseRoom()
}

func (o *onlineProvider) currentEndpoint() *peerEndpoint {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.initialized || o.destroyed {
		return nil
	}
	return o.endpoint
}

func (o *onlineProvider) CreateRoom(ctx context.Context) (string, error) {
	ep := o.currentEndpoint()
	if ep == nil {
		return "", ErrNotReady
	}

	// The endpoint id is assigned when the listener binds; wait for it if
	// the bind is still in flight.
	select {
	case <-ep.opened():
	case <-ctx.Done():
		return "", ctx.Err()
	}

	roomID := ep.endpointID()
	host := o.player
	o.core.CreateRoom(host, roomID)

	o.mu.Lock()
	o.hosting = true
	o.lastRoomID = roomID
	o.mu.Unlock()

	return roomID, nil
}

func (o *onlineProvider) JoinRoom(roomID string) {
	ep := o.currentEndpoint()
	if ep == nil {
		o.notifier.Notify("cannot join: not connected")
		return
	}

	pc, err := ep.dial(roomID)
	if err != nil {
		o.logger.Warn("join failed", "room", roomID, "error", err)
		o.notifier.Notify("could not reach room " + roomID)
		return
	}

	o.mu.Lock()
	o.hostConn = pc
	o.lastRoomID = roomID
	o.mu.Unlock()

	guest := o.player
	guest.Type = room.PlayerTypeInvited
	env := wire.MustNew(wire.TypeJoinRequest, wire.JoinRequest{RoomID: roomID, Player: guest})
	if err := pc.send(env); err != nil {
		o.notifier.Notify("could not reach room " + roomID)
		pc.close()
		return
	}
	o.core.Bus().Emit(room.EventJoinRoom, guest)
}

func (o *onlineProvider) StartGame(phase string, initState room.GameState) {
	snap := o.core.Store().State()
	if !snap.IsHost {
		o.notifier.Notify("only the host can start the game")
		return
	}
	seed := seedGameState(snap, phase, initState)
	o.core.SetGameState(seed)
	if ep := o.currentEndpoint(); ep != nil {
		ep.broadcast(wire.MustNew(wire.TypeStartGame, wire.GameStatePatch{State: seed}), nil)
	}
}

func (o *onlineProvider) AddOfflinePlayer(name string) {
	p := room.NewOfflinePlayer(name)
	o.core.AddPlayer(p, "")

	env := wire.MustNew(wire.TypePlayerJoined, wire.PlayerJoined{Player: p})
	o.mu.Lock()
	hosting, hostConn := o.hosting, o.hostConn
	o.mu.Unlock()

	switch {
	case hosting:
		if ep := o.currentEndpoint(); ep != nil {
			ep.broadcast(env, nil)
		}
	case hostConn != nil:
		// The host relays the announcement to the other guests.
		if err := hostConn.send(env); err != nil {
			o.logger.Warn("offline player announce failed", "error", err)
		}
	}
}

func (o *onlineProvider) RemovePlayer(playerID string) {
	snap := o.core.Store().State()
	if !snap.IsHost {
		o.notifier.Notify("only the host can remove players")
		return
	}
	if playerID == snap.LocalPlayerID {
		return
	}
	p, ok := snap.FindPlayer(playerID)
	if !ok {
		return
	}
	if err := o.core.RemovePlayer(p); err != nil {
		o.notifier.Notify("the host cannot be removed")
		return
	}

	ep := o.currentEndpoint()
	if ep == nil {
		return
	}

	var kicked *peerConn
	if !p.IsOffline {
		if kicked = ep.connByPlayer(playerID); kicked != nil {
			// Untag first so the close handler does not remove the player a
			// second time, then give the notice a moment to flush.
			kicked.tag("")
			if err := kicked.send(wire.MustNew(wire.TypeKicked, wire.Kicked{})); err != nil {
				o.logger.Warn("kick notice failed", "player", playerID, "error", err)
			}
			time.AfterFunc(kickCloseDelay, kicked.close)
		}
	}
	ep.broadcast(wire.MustNew(wire.TypePlayerLeft, wire.PlayerLeft{PlayerID: playerID}), kicked)
	o.core.Bus().Emit(room.EventPlayerLeft, p)
}

func (o *onlineProvider) CloseRoom() {
	snap := o.core.Store().State()

	o.mu.Lock()
	hostConn := o.hostConn
	o.hostConn = nil
	o.hosting = false
	o.lastRoomID = ""
	o.mu.Unlock()

	if snap.IsHost {
		if ep := o.currentEndpoint(); ep != nil {
			ep.broadcast(wire.MustNew(wire.TypeRoomClosed, wire.RoomClosed{}), nil)
			time.AfterFunc(o.closeGrace, func() {
				for _, pc := range ep.snapshot() {
					pc.close()
				}
				o.core.CloseRoom()
			})
			return
		}
		o.core.CloseRoom()
		return
	}

	// A guest leaving is equivalent to removing itself: drop the host
	// connection and reset; the host prunes us on connection close.
	if hostConn != nil {
		hostConn.close()
	}
	o.core.CloseRoom()
}

func (o *onlineProvider) ChangeGame(patch room.GameState) {
	o.core.SetGameState(patch)

	env := wire.MustNew(wire.TypeChangeGame, wire.GameStatePatch{State: patch})
	o.mu.Lock()
	hosting, hostConn := o.hosting, o.hostConn
	o.mu.Unlock()

	switch {
	case hosting:
		if ep := o.currentEndpoint(); ep != nil {
			ep.broadcast(env, nil)
		}
	case hostConn != nil:
		if err := hostConn.send(env); err != nil {
			o.logger.Warn("game patch send failed", "error", err)
		}
	}
}

func (o *onlineProvider) ReconnectToRoom(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}

	o.mu.Lock()
	if o.destroyed || !o.initialized {
		o.mu.Unlock()
		return false
	}
	ep := o.endpoint
	hosting := o.hosting
	hostConn := o.hostConn
	last := o.lastRoomID
	o.mu.Unlock()

	// A guest is connected through hostConn, not the listener, so a dead
	// host connection counts as disconnected even while the listener lives.
	lostHost := !hosting && last != "" && hostConn == nil

	if ep != nil && !ep.disconnected() && !lostHost {
		// Endpoint still healthy; nothing to restore.
		return true
	}
	if hosting {
		// A re-bound listener gets a fresh id, so the old room id cannot be
		// restored for a host.
		return false
	}

	if ep == nil || ep.disconnected() {
		fresh, err := o.openEndpoint()
		if err != nil {
			o.logger.Warn("endpoint reopen failed", "error", err)
			return false
		}

		o.mu.Lock()
		old := o.endpoint
		o.endpoint = fresh
		o.mu.Unlock()
		if old != nil {
			old.close()
		}
	}

	if last == "" {
		return false
	}
	o.JoinRoom(last)
	return true
}

// handleMessage is the single inbound dispatch for every connection owned
// by the endpoint, host side and guest side alike.
func (o *onlineProvider) handleMessage(pc *peerConn, env wire.Envelope) {
	o.dispatchMu.Lock()
	defer o.dispatchMu.Unlock()

	o.mu.Lock()
	hosting := o.hosting
	hostConn := o.hostConn
	o.mu.Unlock()

	if hosting {
		o.handleHostMessage(pc, env)
		return
	}
	if pc == hostConn {
		o.handleGuestMessage(pc, env)
	}
}

func (o *onlineProvider) handleHostMessage(pc *peerConn, env wire.Envelope) {
	switch env.Type {
	case wire.TypeJoinRequest:
		var req wire.JoinRequest
		if err := wire.Decode(env, &req); err != nil {
			o.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		req.Player.Type = room.PlayerTypeInvited
		o.core.AddPlayer(req.Player, "")
		pc.tag(req.Player.ID)

		snap := o.core.Store().State()
		confirm := wire.MustNew(wire.TypeJoinConfirmed, wire.JoinConfirmed{
			RoomID:    snap.RoomID,
			Players:   snap.Players,
			GameState: snap.GameState,
		})
		if err := pc.send(confirm); err != nil {
			o.logger.Warn("join confirm failed", "player", req.Player.ID, "error", err)
			return
		}
		joined := wire.MustNew(wire.TypePlayerJoined, wire.PlayerJoined{Player: req.Player})
		if ep := o.currentEndpoint(); ep != nil {
			ep.broadcast(joined, pc)
		}
		o.core.Bus().Emit(room.EventPlayerJoined, req.Player)

	case wire.TypePlayerJoined:
		// A guest announced an offline player; adopt and relay it.
		var joined wire.PlayerJoined
		if err := wire.Decode(env, &joined); err != nil {
			o.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		o.core.AddPlayer(joined.Player, "")
		if ep := o.currentEndpoint(); ep != nil {
			ep.broadcast(env, pc)
		}

	case wire.TypeChangeGame:
		var patch wire.GameStatePatch
		if err := wire.Decode(env, &patch); err != nil {
			o.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		o.core.SetGameState(patch.State)
		if ep := o.currentEndpoint(); ep != nil {
			ep.broadcast(env, pc)
		}

	default:
		// Everything else is host-originated; a guest sending it is either
		// stale or misbehaving. Drop.
	}
}

func (o *onlineProvider) handleGuestMessage(pc *peerConn, env wire.Envelope) {
	switch env.Type {
	case wire.TypeJoinConfirmed:
		var confirm wire.JoinConfirmed
		if err := wire.Decode(env, &confirm); err != nil {
			o.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		localID := o.player.ID
		o.core.Store().Set(func(s room.Snapshot) room.Snapshot {
			s.IsHost = false
			s.RoomID = confirm.RoomID
			s.LocalPlayerID = localID
			s.Players = confirm.Players
			s.GameState = confirm.GameState
			s.ServerConnected = true
			if host, ok := (room.Snapshot{Players: confirm.Players}).HostPlayer(); ok {
				s.MainPlayer = host.ID
			}
			return s
		})
		o.mu.Lock()
		o.lastRoomID = confirm.RoomID
		o.mu.Unlock()
		o.core.Bus().Emit(room.EventJoinConfirmed, confirm.RoomID)

	case wire.TypePlayerJoined:
		var joined wire.PlayerJoined
		if err := wire.Decode(env, &joined); err != nil {
			o.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		o.core.AddPlayer(joined.Player, "")
		o.core.Bus().Emit(room.EventPlayerJoined, joined.Player)

	case wire.TypePlayerLeft:
		var left wire.PlayerLeft
		if err := wire.Decode(env, &left); err != nil {
			o.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		if p, ok := o.core.Store().State().FindPlayer(left.PlayerID); ok {
			if err := o.core.RemovePlayer(p); err == nil {
				o.core.Bus().Emit(room.EventPlayerLeft, p)
			}
		}

	case wire.TypeKicked:
		o.notifier.Notify("you were removed from the room")
		o.detachFromHost(pc)
		o.core.CloseRoom()

	case wire.TypeRoomClosed:
		o.notifier.Notify("the host closed the room")
		o.detachFromHost(pc)
		o.core.CloseRoom()

	case wire.TypeStartGame, wire.TypeChangeGame:
		var patch wire.GameStatePatch
		if err := wire.Decode(env, &patch); err != nil {
			o.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		o.core.SetGameState(patch.State)

	default:
	}
}

// detachFromHost forgets the host connection before closing it so the close
// handler does not report a lost connection for an intentional shutdown.
func (o *onlineProvider) detachFromHost(pc *peerConn) {
	o.mu.Lock()
	if o.hostConn == pc {
		o.hostConn = nil
	}
	o.lastRoomID = ""
	o.mu.Unlock()
	pc.close()
}

func (o *onlineProvider) handleConnClose(pc *peerConn) {
	o.dispatchMu.Lock()
	defer o.dispatchMu.Unlock()

	o.mu.Lock()
	hosting := o.hosting
	isHostConn := pc == o.hostConn
	if isHostConn {
		o.hostConn = nil
	}
	o.mu.Unlock()

	if hosting {
		playerID := pc.taggedPlayer()
		if playerID == "" {
			return
		}
		p, ok := o.core.Store().State().FindPlayer(playerID)
		if !ok {
			return
		}
		if err := o.core.RemovePlayer(p); err != nil {
			return
		}
		if ep := o.currentEndpoint(); ep != nil {
			ep.broadcast(wire.MustNew(wire.TypePlayerLeft, wire.PlayerLeft{PlayerID: playerID}), nil)
		}
		o.core.Bus().Emit(room.EventPlayerLeft, p)
		return
	}

	if isHostConn {
		o.notifier.Notify("lost connection to the host")
		o.core.Store().Set(func(s room.Snapshot) room.Snapshot {
			s.ServerConnected = false
			return s
		})
	}
}
