// Package session is the single integration point game UIs use. A Session
// owns at most one live transport provider, selected by mode, and re-exposes
// the room snapshot and the provider operations behind a stable surface —
// switching transports never changes the calling code.
package session

import (
	"context"
	"os"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/parlorgames/parlor/internal/provider"
	"github.com/parlorgames/parlor/internal/room"
)

// Notifier re-exports the provider notifier for consumers that only import
// the session package.
type Notifier = provider.Notifier

// Options configures a session. LocalPlayer is required.
type Options struct {
	// LocalPlayer is the persisted identity of this participant.
	LocalPlayer room.Player

	// Notifier receives user-visible condition reports. Defaults to logging.
	Notifier Notifier

	// Logger for session and transport diagnostics.
	Logger *log.Logger

	// PeerListenAddr and RelayURL parameterize the online and server
	// transports; both are optional.
	PeerListenAddr string
	RelayURL       string
}

// Session owns the room state and exactly one provider at a time.
type Session struct {
	store    *room.Store
	bus      *room.Bus
	core     *room.Core
	notifier Notifier
	logger   *log.Logger
	opts     Options

	mu       sync.Mutex
	provider provider.Provider
	mode     room.Mode
}

// New builds a session with no provider bound. Call SetMode before any
// room operation.
func New(opts Options) *Session {
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(os.Stderr, log.Options{Prefix: "session"})
	}
	if opts.Notifier == nil {
		logger := opts.Logger
		opts.Notifier = provider.NotifierFunc(func(message string) {
			logger.Info(message)
		})
	}

	store := room.NewStore()
	bus := room.NewBus(opts.Logger)
	return &Session{
		store:    store,
		bus:      bus,
		core:     room.NewCore(store, bus),
		notifier: opts.Notifier,
		logger:   opts.Logger,
		opts:     opts,
	}
}

// SetMode switches the transport strategy: the old provider is destroyed
// (releasing its transport resources), the new one constructed and
// initialized, and the snapshot re-published under the new mode.
func (s *Session) SetMode(mode room.Mode) error {
	next, err := provider.New(mode, provider.Options{
		LocalPlayer:    s.opts.LocalPlayer,
		Core:           s.core,
		Notifier:       s.notifier,
		Logger:         s.logger,
		PeerListenAddr: s.opts.PeerListenAddr,
		RelayURL:       s.opts.RelayURL,
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.provider
	s.provider = nil
	s.mu.Unlock()

	if old != nil {
		old.Destroy()
	}

	if err := next.Initialize(); err != nil {
		return err
	}

	s.mu.Lock()
	s.provider = next
	s.mode = mode
	s.mu.Unlock()

	s.store.Set(func(snap room.Snapshot) room.Snapshot {
		snap.Mode = mode
		return snap
	})
	s.logger.Info("transport mode set", "mode", mode)
	return nil
}

// Mode returns the currently bound transport mode.
func (s *Session) Mode() room.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Snapshot returns the current room snapshot.
func (s *Session) Snapshot() room.Snapshot {
	return s.store.State()
}

// Subscribe registers fn to observe every snapshot mutation for the life
// of the session.
func (s *Session) Subscribe(fn func(room.Snapshot)) {
	s.store.Subscribe(fn)
}

// Bus exposes the lifecycle event bus.
func (s *Session) Bus() *room.Bus {
	return s.bus
}

// current returns the bound provider, surfacing the recoverable
// "not initialized" notification when there is none.
func (s *Session) current() provider.Provider {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.provider == nil {
		s.notifier.Notify("no game mode selected yet")
		return nil
	}
	return s.provider
}

// CreateRoom allocates a room on the active transport and returns its id.
func (s *Session) CreateRoom(ctx context.Context) (string, error) {
	p := s.current()
	if p == nil {
		return "", provider.ErrNotReady
	}
	return p.CreateRoom(ctx)
}

// JoinRoom requests to join the identified room.
func (s *Session) JoinRoom(roomID string) {
	if p := s.current(); p != nil {
		p.JoinRoom(roomID)
	}
}

// StartGame seeds and propagates the initial game state. Host only.
func (s *Session) StartGame(phase string, initState room.GameState) {
	if p := s.current(); p != nil {
		p.StartGame(phase, initState)
	}
}

// AddOfflinePlayer adds a same-device player to the roster.
func (s *Session) AddOfflinePlayer(name string) {
	if p := s.current(); p != nil {
		p.AddOfflinePlayer(name)
	}
}

// RemovePlayer removes a participant. Host only.
func (s *Session) RemovePlayer(playerID string) {
	if p := s.current(); p != nil {
		p.RemovePlayer(playerID)
	}
}

// CloseRoom closes the room (host) or leaves it (guest).
func (s *Session) CloseRoom() {
	if p := s.current(); p != nil {
		p.CloseRoom()
	}
}

// ChangeGame merges a shallow game-state patch and broadcasts it.
func (s *Session) ChangeGame(patch room.GameState) {
	if p := s.current(); p != nil {
		p.ChangeGame(patch)
	}
}

// ReconnectToRoom restores connectivity and rejoins the last room,
// best-effort. It never returns an error.
func (s *Session) ReconnectToRoom(ctx context.Context) bool {
	p := s.current()
	if p == nil {
		return false
	}
	return p.ReconnectToRoom(ctx)
}

// ConnectToServer opens the relay socket; only meaningful in server mode.
func (s *Session) ConnectToServer(ctx context.Context, url string) error {
	p := s.current()
	if p == nil {
		return provider.ErrNotReady
	}
	connector, ok := p.(provider.ServerConnector)
	if !ok {
		s.notifier.Notify("the current mode does not use a server")
		return provider.ErrNotReady
	}
	return connector.ConnectToServer(ctx, url)
}

// Destroy tears the active provider down. The session may be rebound with
// SetMode afterwards.
func (s *Session) Destroy() {
	s.mu.Lock()
	old := s.provider
	s.provider = nil
	s.mode = ""
	s.mu.Unlock()

	if old != nil {
		old.Destroy()
	}
}
