// Package provider implements the transport strategies behind a multiplayer
// room: Local (same device), Online (peer-to-peer) and Server (relayed).
// All three satisfy the same Provider contract, which is the polymorphism
// boundary the session façade builds on — game code never learns which
// transport is underneath.
package provider

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/parlorgames/parlor/internal/room"
)

var (
	// ErrUnknownMode is returned by New for a mode outside the closed enum.
	// This is a programming error, not a recoverable condition.
	ErrUnknownMode = errors.New("provider: unknown mode")

	// ErrNotReady is returned when a room operation runs before Initialize
	// or before the transport connection is established.
	ErrNotReady = errors.New("provider: transport not ready")

	// ErrCreateTimeout is returned when CreateRoom gets no reply within the
	// configured window.
	ErrCreateTimeout = errors.New("provider: create room timed out")
)

// Default timings. CloseGrace is a best-effort flush window for the
// room-closed notice, not a delivery guarantee.
const (
	DefaultCreateTimeout = 5 * time.Second
	DefaultCloseGrace    = 100 * time.Millisecond
	kickCloseDelay       = 100 * time.Millisecond
)

// Provider is the common contract of all transport strategies. A provider
// instance moves through uninitialized → initialized → hosting|joined →
// destroyed; destroyed is terminal, construct a new instance to rejoin.
type Provider interface {
	// Initialize acquires transport resources. Idempotent per instance.
	Initialize() error

	// Destroy releases transport resources and resets the local session
	// state. Safe to call any number of times; UI teardown may trigger it
	// more than once.
	Destroy()

	// CreateRoom allocates a fresh room id and seeds the roster with the
	// local player as host. Fails if the transport is not ready or, in
	// server mode, when no reply arrives within the create timeout.
	CreateRoom(ctx context.Context) (string, error)

	// JoinRoom requests to join an existing room. Success is observed
	// asynchronously through roster growth; a transport that is not
	// connected surfaces a notification and does nothing.
	JoinRoom(roomID string)

	// StartGame is host-only. It seeds the game state with the phase and
	// the current player ids and propagates it to all participants.
	StartGame(phase string, initState room.GameState)

	// AddOfflinePlayer adds a local-only player with a random id,
	// announcing it to remote peers where the transport supports that.
	AddOfflinePlayer(name string)

	// RemovePlayer is host-only. Removing yourself is a guarded no-op; a
	// remote player's connection is notified before removal.
	RemovePlayer(playerID string)

	// CloseRoom broadcasts a room-closed notice (host) or leaves the room
	// (guest), then resets local state after a short grace delay.
	CloseRoom()

	// ChangeGame shallow-merges patch locally and broadcasts the patch —
	// never the full state — to peers.
	ChangeGame(patch room.GameState)

	// ReconnectToRoom restores transport connectivity and re-issues the
	// join for the last known room id. It never fails hard: false means
	// the attempt did not get off the ground.
	ReconnectToRoom(ctx context.Context) bool
}

// ServerConnector is the extra surface of the relayed provider: the socket
// to the relay is opened explicitly, separate from room lifecycle.
type ServerConnector interface {
	ConnectToServer(ctx context.Context, url string) error
}

// Notifier surfaces recoverable, user-visible conditions (not authorized,
// not connected, kicked). Implementations must not block.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(message string)

// Notify calls f.
func (f NotifierFunc) Notify(message string) { f(message) }

// Options parameterizes the factory. Core and LocalPlayer are required;
// everything else has a usable default.
type Options struct {
	// LocalPlayer identifies the local participant. Its ID comes from the
	// persisted identity and stays stable for the session.
	LocalPlayer room.Player

	// Core is the shared state-mutation helper all providers funnel through.
	Core *room.Core

	// Notifier receives user-visible condition reports. Defaults to logging.
	Notifier Notifier

	// Logger for transport diagnostics. Defaults to a stderr logger.
	Logger *log.Logger

	// PeerListenAddr is where the online provider's endpoint listens.
	// Defaults to a random loopback port.
	PeerListenAddr string

	// RelayURL is the websocket URL of the relay daemon, used by
	// ReconnectToRoom when no explicit connection was made yet.
	RelayURL string

	// CreateTimeout bounds CreateRoom in server mode. Defaults to 5s.
	CreateTimeout time.Duration

	// CloseGrace is the broadcast-then-reset delay of CloseRoom.
	// Defaults to 100ms.
	CloseGrace time.Duration
}

func (o *Options) fill() {
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "provider"})
	}
	if o.Notifier == nil {
		logger := o.Logger
		o.Notifier = NotifierFunc(func(message string) {
			logger.Info(message)
		})
	}
	if o.PeerListenAddr == "" {
		o.PeerListenAddr = "127.0.0.1:0"
	}
	if o.CreateTimeout <= 0 {
		o.CreateTimeout = DefaultCreateTimeout
	}
	if o.CloseGrace <= 0 {
		o.CloseGrace = DefaultCloseGrace
	}
}

// New selects and constructs the provider for mode. Single and local mode
// share the Local strategy; the difference is only how many players the UI
// puts on one device.
func New(mode room.Mode, opts Options) (Provider, error) {
	opts.fill()
	switch mode {
	case room.ModeSingle, room.ModeLocal:
		return newLocalProvider(mode, opts), nil
	case room.ModeOnline:
		return newOnlineProvider(opts), nil
	case room.ModeServer:
		return newServerProvider(opts), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}
}

// seedGameState builds the initial game state StartGame propagates:
// the phase, the current roster ids, then the caller's extra seed merged
// on top.
func seedGameState(snap room.Snapshot, phase string, initState room.GameState) room.GameState {
	ids := make([]string, 0, len(snap.Players))
	for _, p := range snap.Players {
		ids = append(ids, p.ID)
	}
	seed := room.GameState{
		"phase":   phase,
		"players": ids,
	}
	return seed.Merge(initState)
}
