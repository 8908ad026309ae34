package relay

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/parlorgames/parlor/internal/room"
	"github.com/parlorgames/parlor/internal/wire"
)

const (
	// writeWait bounds a single write to a client.
	writeWait = 10 * time.Second

	// pongWait is how long a silent client stays considered alive.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// sendBuffer is the per-client outbound queue. A client that cannot
	// drain it in time is dropped rather than allowed to stall the hub.
	sendBuffer = 64
)

// client is one websocket participant from the relay's point of view.
// player and roomID are owned by the hub goroutine after registration.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan wire.Envelope

	player room.Player
	roomID string
}

// enqueue hands an envelope to the client's writer without ever blocking
// the hub. A full queue drops the client.
func (c *client) enqueue(env wire.Envelope) {
	select {
	case c.send <- env:
	default:
		c.hub.logger.Warn("client send queue full, dropping connection", "player", c.player.ID)
		c.conn.Close()
	}
}

// readPump feeds inbound envelopes to the hub until the connection dies,
// then unregisters.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wire.MaxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env wire.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Debug("client read error", "remote", c.conn.RemoteAddr(), "error", err)
			}
			return
		}
		c.hub.inbound <- clientEnvelope{client: c, env: env}
	}
}

// writePump drains the send queue onto the socket and keeps the connection
// alive with periodic pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
