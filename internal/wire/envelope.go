// Package wire defines the tagged envelopes exchanged between participants
// and the codec that frames them on a stream transport. Both the
// peer-to-peer and the relayed transport speak envelopes; only the framing
// differs (length-prefixed frames on raw TCP, websocket messages on the
// relay).
package wire

import (
	"encoding/json"
	"fmt"

	"github.com/parlorgames/parlor/internal/room"
)

// Type tags an envelope for dispatch. Unknown types are dropped by every
// receiver, never treated as an error.
type Type string

// Peer-to-peer taxonomy. JOIN_REQUEST opens the handshake; the host answers
// with JOIN_CONFIRMED and fans PLAYER_JOINED out to everyone else.
const (
	TypeJoinRequest   Type = "JOIN_REQUEST"
	TypeJoinConfirmed Type = "JOIN_CONFIRMED"
	TypePlayerJoined  Type = "PLAYER_JOINED"
	TypePlayerLeft    Type = "PLAYER_LEFT"
	TypeKicked        Type = "KICKED"
	TypeRoomClosed    Type = "ROOM_CLOSED"
	TypeStartGame     Type = "START_GAME"
	TypeChangeGame    Type = "CHANGE_GAME"
)

// Relay taxonomy. Outbound from a client to the relay daemon, plus the
// replies the relay routes back. PLAYER_JOINED/PLAYER_LEFT/ROOM_CLOSED and
// KICKED are shared with the peer-to-peer set above.
const (
	TypeIdentify        Type = "IDENTIFY"
	TypeCreateRoom      Type = "CREATE_ROOM"
	TypeJoinRoom        Type = "JOIN_ROOM"
	TypeCloseRoom       Type = "CLOSE_ROOM"
	TypeRemovePlayer    Type = "REMOVE_PLAYER"
	TypeRoomCreated     Type = "ROOM_CREATED"
	TypeJoinedRoom      Type = "JOINED_ROOM"
	TypeGameStateUpdate Type = "GAME_STATE_UPDATE"
	TypeError           Type = "ERROR"
)

// Envelope is the single message shape on every wire: a type tag for
// routing and the payload kept as raw JSON until the receiver knows what
// to decode it into.
type Envelope struct {
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds an envelope, marshalling payload in place. A nil payload
// produces an envelope with no payload field.
func New(t Type, payload any) (Envelope, error) {
	env := Envelope{Type: t}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return env, fmt.Errorf("wire: marshal %s payload: %w", t, err)
	}
	env.Payload = data
	return env, nil
}

// MustNew is New for payloads that cannot fail to marshal (our own structs).
func MustNew(t Type, payload any) Envelope {
	env, err := New(t, payload)
	if err != nil {
		panic(err)
	}
	return env
}

// Decode unmarshals the envelope payload into out.
func Decode(env Envelope, out any) error {
	if err := json.Unmarshal(env.Payload, out); err != nil {
		return fmt.Errorf("wire: decode %s payload: %w", env.Type, err)
	}
	return nil
}

// JoinRequest asks a host (or the relay) to add the sender to a room.
type JoinRequest struct {
	RoomID string      `json:"roomId,omitempty"`
	Player room.Player `json:"player"`
}

// JoinConfirmed carries the authoritative roster back to a new participant.
type JoinConfirmed struct {
	RoomID    string         `json:"roomId"`
	Players   []room.Player  `json:"players"`
	GameState room.GameState `json:"gameState,omitempty"`
}

// PlayerJoined announces a new roster entry to existing participants.
type PlayerJoined struct {
	Player room.Player `json:"player"`
}

// PlayerLeft announces a departed participant.
type PlayerLeft struct {
	PlayerID string `json:"playerId"`
}

// Kicked tells one specific participant they were removed by the host.
type Kicked struct {
	Reason string `json:"reason,omitempty"`
}

// RoomClosed tells every participant the host tore the room down.
type RoomClosed struct {
	Reason string `json:"reason,omitempty"`
}

// GameStatePatch carries a shallow game-state patch (START_GAME,
// CHANGE_GAME and GAME_STATE_UPDATE all use it). Patches, never full state.
type GameStatePatch struct {
	State room.GameState `json:"state"`
}

// Identify introduces a client to the relay before any room operation.
type Identify struct {
	Player room.Player `json:"player"`
}

// RoomCreated is the relay's reply to CREATE_ROOM.
type RoomCreated struct {
	RoomID string `json:"roomId"`
}

// RemovePlayer asks the relay to kick a participant from the sender's room.
type RemovePlayer struct {
	PlayerID string `json:"playerId"`
}

// Error reports a relay-side rejection (unknown room, not host, ...).
type Error struct {
	Message string `json:"message"`
}
