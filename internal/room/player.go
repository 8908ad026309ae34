// Package room holds the canonical multiplayer session state: the player
// roster, the room snapshot store, the event bus, and the core mutation
// operations that every transport provider funnels through. Keeping the
// roster and host invariants here means the three providers never have to
// duplicate them.
package room

import "github.com/google/uuid"

// PlayerType distinguishes the room creator from everyone else.
type PlayerType string

const (
	// PlayerTypeHost marks the room creator. Exactly one player per room
	// carries this type and it can never be removed from the roster.
	PlayerTypeHost PlayerType = "host"

	// PlayerTypeInvited marks every participant that joined an existing room.
	PlayerTypeInvited PlayerType = "invited"
)

// Player is one participant in a room. ID is stable for the session and
// identifies the local participant. Metadata is an opaque per-game payload
// (hand of cards, vote state) that the room layer transports verbatim and
// never interprets.
type Player struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Avatar    int        `json:"avatar"`
	IsOffline bool       `json:"isOffline,omitempty"`
	Type      PlayerType `json:"type,omitempty"`
	Metadata  any        `json:"metadata,omitempty"`
}

// IsHost reports whether the player is the room creator.
func (p Player) IsHost() bool {
	return p.Type == PlayerTypeHost
}

// NewOfflinePlayer synthesizes a local-only player with a random id.
// Offline players have no connection of their own; they live on the device
// of whoever added them.
func NewOfflinePlayer(name string) Player {
	return Player{
		ID:        uuid.NewString(),
		Name:      name,
		IsOffline: true,
		Type:      PlayerTypeInvited,
	}
}
