package relay

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/parlorgames/parlor/internal/room"
	"github.com/parlorgames/parlor/internal/wire"
)

// clientEnvelope pairs an inbound envelope with the connection it arrived
// on, so the hub can authorize and route it.
type clientEnvelope struct {
	client *client
	env    wire.Envelope
}

// Hub owns every connected client and every room. All state lives on the
// hub goroutine: clients and rooms are only ever touched from Run, so no
// locking is needed anywhere in the relay.
type Hub struct {
	logger *log.Logger

	register   chan *client
	unregister chan *client
	inbound    chan clientEnvelope

	clients map[*client]bool
	rooms   map[string]*relayRoom
}

// NewHub returns a hub ready to Run.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		logger:     logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		inbound:    make(chan clientEnvelope),
		clients:    make(map[*client]bool),
		rooms:      make(map[string]*relayRoom),
	}
}

// Run processes registrations and envelopes until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true

		case c := <-h.unregister:
			if _, ok := h.clients[c]; !ok {
				continue
			}
			delete(h.clients, c)
			close(c.send)
			h.handleDisconnect(c)

		case msg := <-h.inbound:
			h.handleEnvelope(msg.client, msg.env)

		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) handleEnvelope(c *client, env wire.Envelope) {
	switch env.Type {
	case wire.TypeIdentify:
		var identify wire.Identify
		if err := wire.Decode(env, &identify); err != nil {
			h.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		c.player = identify.Player

	case wire.TypeCreateRoom:
		h.handleCreateRoom(c)

	case wire.TypeJoinRoom:
		h.handleJoinRoom(c, env)

	case wire.TypePlayerJoined:
		// A member announced an offline player.
		r := h.roomOf(c)
		if r == nil {
			return
		}
		var joined wire.PlayerJoined
		if err := wire.Decode(env, &joined); err != nil {
			h.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
			return
		}
		r.addPlayer(joined.Player, nil)
		r.broadcast(env, c)

	case wire.TypeStartGame:
		r := h.roomOf(c)
		if r == nil {
			return
		}
		if r.host != c {
			c.enqueue(wire.MustNew(wire.TypeError, wire.Error{Message: "only the host can start the game"}))
			return
		}
		h.applyGamePatch(r, c, env)

	case wire.TypeChangeGame:
		r := h.roomOf(c)
		if r == nil {
			return
		}
		h.applyGamePatch(r, c, env)

	case wire.TypeCloseRoom:
		r := h.roomOf(c)
		if r == nil {
			return
		}
		if r.host != c {
			c.enqueue(wire.MustNew(wire.TypeError, wire.Error{Message: "only the host can close the room"}))
			return
		}
		h.closeRoom(r, c)

	case wire.TypeRemovePlayer:
		h.handleRemovePlayer(c, env)

	default:
		// Unknown envelope types are dropped by contract.
	}
}

func (h *Hub) handleCreateRoom(c *client) {
	if c.roomID != "" {
		c.enqueue(wire.MustNew(wire.TypeError, wire.Error{Message: "already in a room"}))
		return
	}

	code := generateJoinCode()
	for h.rooms[code] != nil {
		code = generateJoinCode()
	}

	r := newRelayRoom(code, c)
	h.rooms[code] = r
	c.roomID = code

	c.enqueue(wire.MustNew(wire.TypeRoomCreated, wire.RoomCreated{RoomID: code}))
	h.logger.Info("room created", "room", code, "host", c.player.ID)
}

func (h *Hub) handleJoinRoom(c *client, env wire.Envelope) {
	var req wire.JoinRequest
	if err := wire.Decode(env, &req); err != nil {
		h.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
		return
	}

	code := strings.ToUpper(req.RoomID)
	r, ok := h.rooms[code]
	if !ok {
		c.enqueue(wire.MustNew(wire.TypeError, wire.Error{Message: "room " + code + " not found"}))
		return
	}
	if c.roomID != "" && c.roomID != code {
		c.enqueue(wire.MustNew(wire.TypeError, wire.Error{Message: "already in a room"}))
		return
	}

	player := req.Player
	player.Type = room.PlayerTypeInvited
	c.player = player
	c.roomID = code
	r.addPlayer(player, c)

	c.enqueue(wire.MustNew(wire.TypeJoinedRoom, wire.JoinConfirmed{
		RoomID:    code,
		Players:   r.roster,
		GameState: r.gameState,
	}))
	r.broadcast(wire.MustNew(wire.TypePlayerJoined, wire.PlayerJoined{Player: player}), c)
	h.logger.Info("player joined", "room", code, "player", player.ID)
}

func (h *Hub) handleRemovePlayer(c *client, env wire.Envelope) {
	r := h.roomOf(c)
	if r == nil {
		return
	}
	var remove wire.RemovePlayer
	if err := wire.Decode(env, &remove); err != nil {
		h.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
		return
	}

	// Removing yourself is leaving; anything else is a host-only kick.
	if remove.PlayerID == c.player.ID {
		if r.host == c {
			h.closeRoom(r, c)
			return
		}
		if p, ok := r.removePlayer(c.player.ID); ok {
			c.roomID = ""
			r.broadcast(wire.MustNew(wire.TypePlayerLeft, wire.PlayerLeft{PlayerID: p.ID}), c)
		}
		return
	}

	if r.host != c {
		c.enqueue(wire.MustNew(wire.TypeError, wire.Error{Message: "only the host can remove players"}))
		return
	}

	target := r.clients[remove.PlayerID]
	p, ok := r.removePlayer(remove.PlayerID)
	if !ok {
		c.enqueue(wire.MustNew(wire.TypeError, wire.Error{Message: "the host cannot be removed"}))
		return
	}
	if target != nil {
		target.roomID = ""
		target.enqueue(wire.MustNew(wire.TypeKicked, wire.Kicked{}))
	}
	left := wire.MustNew(wire.TypePlayerLeft, wire.PlayerLeft{PlayerID: p.ID})
	r.broadcast(left, c)
	h.logger.Info("player removed", "room", r.id, "player", p.ID)
}

func (h *Hub) applyGamePatch(r *relayRoom, sender *client, env wire.Envelope) {
	var patch wire.GameStatePatch
	if err := wire.Decode(env, &patch); err != nil {
		h.logger.Warn("dropping malformed envelope", "type", env.Type, "error", err)
		return
	}
	r.mergeGameState(patch.State)
	update := wire.MustNew(wire.TypeGameStateUpdate, patch)
	r.broadcast(update, sender)
}

// closeRoom tears a room down on behalf of its host: everyone else gets the
// notice, then the room is forgotten.
func (h *Hub) closeRoom(r *relayRoom, host *client) {
	r.broadcast(wire.MustNew(wire.TypeRoomClosed, wire.RoomClosed{}), host)
	for _, member := range r.clients {
		member.roomID = ""
	}
	delete(h.rooms, r.id)
	h.logger.Info("room closed", "room", r.id)
}

func (h *Hub) handleDisconnect(c *client) {
	r := h.roomOf(c)
	if r == nil {
		return
	}
	if r.host == c {
		// Host gone, room gone.
		h.closeRoom(r, c)
		return
	}
	if p, ok := r.removePlayer(c.player.ID); ok {
		r.broadcast(wire.MustNew(wire.TypePlayerLeft, wire.PlayerLeft{PlayerID: p.ID}), nil)
		h.logger.Info("player disconnected", "room", r.id, "player", p.ID)
	}
}

func (h *Hub) roomOf(c *client) *relayRoom {
	if c.roomID == "" {
		return nil
	}
	return h.rooms[c.roomID]
}
