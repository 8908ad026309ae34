package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/parlorgames/parlor/internal/room"
)

func TestCodecRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	dec := NewDecoder(&buf)

	sent := MustNew(TypeJoinConfirmed, JoinConfirmed{
		RoomID: "room-1",
		Players: []room.Player{
			{ID: "h1", Name: "Alice", Type: room.PlayerTypeHost},
			{ID: "p2", Name: "Bob", Type: room.PlayerTypeInvited, IsOffline: true},
		},
		GameState: room.GameState{"phase": "lobby"},
	})
	if err := enc.Encode(sent); err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	got, err := dec.Decode()
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if got.Type != TypeJoinConfirmed {
		t.Errorf("Expected type %s, got %s", TypeJoinConfirmed, got.Type)
	}

	var payload JoinConfirmed
	if err := Decode(got, &payload); err != nil {
		t.Fatalf("payload decode failed: %v", err)
	}
	if payload.RoomID != "room-1" {
		t.Errorf("Expected room-1, got %q", payload.RoomID)
	}
	if len(payload.Players) != 2 || payload.Players[0].ID != "h1" || !payload.Players[1].IsOffline {
		t.Errorf("Roster did not survive the round trip: %+v", payload.Players)
	}
	if payload.GameState["phase"] != "lobby" {
		t.Errorf("Game state did not survive the round trip: %v", payload.GameState)
	}
}

func TestCodecMultipleFramesInSequence(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	for _, typ := range []Type{TypeJoinRequest, TypePlayerJoined, TypeRoomClosed} {
		if err := enc.Encode(Envelope{Type: typ}); err != nil {
			t.Fatalf("Encode(%s) failed: %v", typ, err)
		}
	}

	dec := NewDecoder(&buf)
	for _, want := range []Type{TypeJoinRequest, TypePlayerJoined, TypeRoomClosed} {
		env, err := dec.Decode()
		if err != nil {
			t.Fatalf("Decode() failed: %v", err)
		}
		if env.Type != want {
			t.Errorf("Expected %s, got %s", want, env.Type)
		}
	}

	if _, err := dec.Decode(); err != io.EOF {
		t.Errorf("Expected io.EOF after last frame, got %v", err)
	}
}

func TestDecodeRejectsOversizedFrame(t *testing.T) {
	var buf bytes.Buffer
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, MaxFrameBytes+1)
	buf.Write(header)

	if _, err := NewDecoder(&buf).Decode(); err == nil {
		t.Error("Expected error for frame above the size limit")
	}
}

func TestNewWithNilPayloadOmitsField(t *testing.T) {
	env, err := New(TypeCloseRoom, nil)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	if env.Payload != nil {
		t.Errorf("Expected empty payload, got %s", env.Payload)
	}
}
