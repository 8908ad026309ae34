package room

import "errors"

// ErrRemoveHost is returned when an operation would remove the host from
// the roster. The host is non-removable for the lifetime of the room.
var ErrRemoveHost = errors.New("room: the host cannot be removed")

// Core bundles the store and the bus and implements the roster and
// game-state mutations shared by all transport providers. Every method is
// synchronous and leaves the store in a consistent state.
type Core struct {
	store *Store
	bus   *Bus
}

// NewCore wires a core around the given store and bus.
func NewCore(store *Store, bus *Bus) *Core {
	return &Core{store: store, bus: bus}
}

// Store exposes the underlying snapshot cell.
func (c *Core) Store() *Store { return c.store }

// Bus exposes the event bus for provider listeners.
func (c *Core) Bus() *Bus { return c.bus }

// AddPlayer appends p to the roster, keeping insertion order. A non-empty
// roomID also records the room the player arrived through. Adding an id
// already present replaces that entry in place instead of duplicating it.
func (c *Core) AddPlayer(p Player, roomID string) {
	c.store.Set(func(s Snapshot) Snapshot {
		replaced := false
		for i, existing := range s.Players {
			if existing.ID == p.ID {
				s.Players[i] = p
				replaced = true
				break
			}
		}
		if !replaced {
			s.Players = append(s.Players, p)
		}
		if roomID != "" {
			s.RoomID = roomID
		}
		return s
	})
	c.bus.Emit(EventAddPlayer, p)
}

// RemovePlayer filters p out of the roster. Removing the host fails with
// ErrRemoveHost and leaves the snapshot untouched.
func (c *Core) RemovePlayer(p Player) error {
	if p.IsHost() {
		return ErrRemoveHost
	}
	c.store.Set(func(s Snapshot) Snapshot {
		kept := s.Players[:0]
		for _, existing := range s.Players {
			if existing.ID != p.ID {
				kept = append(kept, existing)
			}
		}
		s.Players = kept
		return s
	})
	c.bus.Emit(EventRemovePlayer, p)
	return nil
}

// CreateRoom bootstraps a fresh room in one mutation: the caller becomes
// host and main player, the roster starts with just the host, and the
// transport is considered connected.
func (c *Core) CreateRoom(host Player, roomID string) {
	host.Type = PlayerTypeHost
	c.store.Set(func(s Snapshot) Snapshot {
		s.IsHost = true
		s.RoomID = roomID
		s.LocalPlayerID = host.ID
		s.MainPlayer = host.ID
		s.Players = []Player{host}
		s.GameState = nil
		s.ServerConnected = true
		return s
	})
	c.bus.Emit(EventRoomCreated, roomID)
}

// CloseRoom resets the snapshot to its default value, preserving only the
// session mode (mode changes belong to the façade, not to room teardown).
// Calling it on an already-closed room is a harmless no-op reset.
func (c *Core) CloseRoom() {
	c.store.Set(func(s Snapshot) Snapshot {
		next := DefaultSnapshot()
		next.Mode = s.Mode
		return next
	})
	c.bus.Emit(EventRoomClosed, nil)
}

// SetGameState shallow-merges patch into the current game state and
// publishes the result. The merge is last-write-wins per key; there is no
// conflict resolution across participants.
func (c *Core) SetGameState(patch GameState) {
	var merged GameState
	c.store.Set(func(s Snapshot) Snapshot {
		s.GameState = s.GameState.Merge(patch)
		merged = s.GameState
		return s
	})
	c.bus.Emit(EventState, merged)
}
