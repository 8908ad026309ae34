package provider

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/parlorgames/parlor/internal/room"
	"github.com/parlorgames/parlor/internal/wire"
)

// LocalRoomID is the well-known room id for same-device multiplayer.
// There is only ever one local room, so its id never varies.
const LocalRoomID = "local-room"

// localProvider implements Provider without any network I/O. Operations are
// still serialized to wire envelopes and fed through the same inbound
// dispatch the networked providers use — the "wire" is a direct function
// call. It also serves single mode, where the roster is just the local
// player.
type localProvider struct {
	mode     room.Mode
	player   room.Player
	core     *room.Core
	notifier Notifier
	logger   *log.Logger

	mu          sync.Mutex
	initialized bool
	destroyed   bool
	lastRoomID  string
}

func newLocalProvider(mode room.Mode, opts Options) *localProvider {
	return &localProvider{
		mode:     mode,
		player:   opts.LocalPlayer,
		core:     opts.Core,
		notifier: opts.Notifier,
		logger:   opts.Logger,
	}
}

func (l *localProvider) Initialize() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.initialized = true
	l.destroyed = false
	return nil
}

func (l *localProvider) Destroy() {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return
	}
	l.destroyed = true
	l.initialized = false
	l.lastRoomID = ""
	l.mu.Unlock()

	l.core.CloseRoom()
}

func (l *localProvider) ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initialized && !l.destroyed
}

func (l *localProvider) CreateRoom(ctx context.Context) (string, error) {
	if !l.ready() {
		return "", ErrNotReady
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	l.core.CreateRoom(l.localPlayer(), LocalRoomID)

	l.mu.Lock()
	l.lastRoomID = LocalRoomID
	l.mu.Unlock()

	return LocalRoomID, nil
}

func (l *localProvider) JoinRoom(roomID string) {
	if !l.ready() {
		l.notifier.Notify("cannot join: session not initialized")
		return
	}
	if roomID == "" {
		roomID = LocalRoomID
	}
	env := wire.MustNew(wire.TypeJoinRequest, wire.JoinRequest{
		RoomID: roomID,
		Player: l.localPlayer(),
	})
	l.handle(env)

	l.mu.Lock()
	l.lastRoomID = roomID
	l.mu.Unlock()
}

func (l *localProvider) StartGame(phase string, initState room.GameState) {
	snap := l.core.Store().State()
	if !snap.IsHost {
		l.notifier.Notify("only the host can start the game")
		return
	}
	seed := seedGameState(snap, phase, initState)
	l.handle(wire.MustNew(wire.TypeStartGame, wire.GameStatePatch{State: seed}))
}

func (l *localProvider) AddOfflinePlayer(name string) {
	if !l.ready() {
		l.notifier.Notify("cannot add player: session not initialized")
		return
	}
	p := room.NewOfflinePlayer(name)
	env := wire.MustNew(wire.TypePlayerJoined, wire.PlayerJoined{Player: p})
	l.handle(env)
}

func (l *localProvider) RemovePlayer(playerID string) {
	snap := l.core.Store().State()
	if !snap.IsHost {
		l.notifier.Notify("only the host can remove players")
		return
	}
	if playerID == snap.LocalPlayerID {
		// Removing yourself is closing the room, not a kick.
		return
	}
	if _, ok := snap.FindPlayer(playerID); !ok {
		return
	}
	l.handle(wire.MustNew(wire.TypePlayerLeft, wire.PlayerLeft{PlayerID: playerID}))
}

func (l *localProvider) CloseRoom() {
	// No peers to flush a notice to; reset immediately.
	l.core.CloseRoom()
	l.mu.Lock()
	l.lastRoomID = ""
	l.mu.Unlock()
}

func (l *localProvider) ChangeGame(patch room.GameState) {
	l.handle(wire.MustNew(wire.TypeChangeGame, wire.GameStatePatch{State: patch}))
}

func (l *localProvider) ReconnectToRoom(ctx context.Context) bool {
	if !l.ready() || ctx.Err() != nil {
		return false
	}
	l.mu.Lock()
	last := l.lastRoomID
	l.mu.Unlock()
	if last == "" {
		return false
	}
	l.JoinRoom(last)
	return true
}

// handle is the local loopback of the inbound message dispatch: envelopes
// are deserialized and delegated straight to the core, exactly as a remote
// message would be.
func (l *localProvider) handle(env wire.Envelope) {
	switch env.Type {
	case wire.TypeJoinRequest:
		var req wire.JoinRequest
		if err := wire.Decode(env, &req); err != nil {
			l.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		req.Player.Type = room.PlayerTypeInvited
		l.core.AddPlayer(req.Player, req.RoomID)
		l.core.Bus().Emit(room.EventJoinRoom, req.Player)

	case wire.TypePlayerJoined:
		var joined wire.PlayerJoined
		if err := wire.Decode(env, &joined); err != nil {
			l.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		l.core.AddPlayer(joined.Player, "")
		l.core.Bus().Emit(room.EventPlayerJoined, joined.Player)

	case wire.TypePlayerLeft:
		var left wire.PlayerLeft
		if err := wire.Decode(env, &left); err != nil {
			l.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		p, ok := l.core.Store().State().FindPlayer(left.PlayerID)
		if !ok {
			return
		}
		if err := l.core.RemovePlayer(p); err != nil {
			l.notifier.Notify("the host cannot be removed")
			return
		}
		l.core.Bus().Emit(room.EventPlayerLeft, p)

	case wire.TypeStartGame, wire.TypeChangeGame:
		var patch wire.GameStatePatch
		if err := wire.Decode(env, &patch); err != nil {
			l.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		l.core.SetGameState(patch.State)

	default:
		// Unknown envelope types are a no-op by contract.
	}
}

func (l *localProvider) localPlayer() room.Player {
	return l.player
}
