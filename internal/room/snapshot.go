package room

// Mode selects the transport strategy for a session.
type Mode string

const (
	// ModeSingle is the default offline mode: one device, one player.
	ModeSingle Mode = "single"

	// ModeLocal is same-device multiplayer: several players share one screen.
	ModeLocal Mode = "local"

	// ModeOnline is peer-to-peer multiplayer: guests connect straight to the
	// host's endpoint, whose id doubles as the room id.
	ModeOnline Mode = "online"

	// ModeServer relays all traffic through a central relay daemon.
	ModeServer Mode = "server"
)

// Valid reports whether m is one of the four known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeSingle, ModeLocal, ModeOnline, ModeServer:
		return true
	}
	return false
}

// GameState is the application-defined game payload. The room layer merges
// it shallowly and broadcasts patches, nothing more; it never branches on
// the contents.
type GameState map[string]any

// Merge returns a new GameState with patch shallow-merged over g.
// Overlapping keys take the patch's value. Neither input is mutated.
func (g GameState) Merge(patch GameState) GameState {
	if g == nil && patch == nil {
		return nil
	}
	merged := make(GameState, len(g)+len(patch))
	for k, v := range g {
		merged[k] = v
	}
	for k, v := range patch {
		merged[k] = v
	}
	return merged
}

// Snapshot is the canonical session state observed by the UI. It is updated
// as a whole through the Store so subscribers always see a consistent value.
type Snapshot struct {
	Mode            Mode
	IsHost          bool
	RoomID          string
	LocalPlayerID   string
	Players         []Player
	GameState       GameState
	MainPlayer      string
	ServerConnected bool
}

// DefaultSnapshot returns the empty pre-room state. CloseRoom resets the
// store to exactly this value (mode excepted, which the session façade owns).
func DefaultSnapshot() Snapshot {
	return Snapshot{Mode: ModeSingle}
}

// FindPlayer returns the roster entry with the given id, if present.
func (s Snapshot) FindPlayer(id string) (Player, bool) {
	for _, p := range s.Players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// HostPlayer returns the roster entry tagged as host, if present.
func (s Snapshot) HostPlayer() (Player, bool) {
	for _, p := range s.Players {
		if p.IsHost() {
			return p, true
		}
	}
	return Player{}, false
}

// clone copies the snapshot deeply enough that callers can hold onto it
// while the store keeps mutating (players slice and game state map).
func (s Snapshot) clone() Snapshot {
	c := s
	if s.Players != nil {
		c.Players = append([]Player(nil), s.Players...)
	}
	if s.GameState != nil {
		c.GameState = s.GameState.Merge(nil)
	}
	return c
}
