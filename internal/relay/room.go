package relay

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/parlorgames/parlor/internal/room"
	"github.com/parlorgames/parlor/internal/wire"
)

// relayRoom is the relay's view of one room: the authoritative roster
// (including offline players, which have no connection), the accumulated
// game state so late joiners can be seeded, and the live connections keyed
// by player id. Accessed only from the hub goroutine.
type relayRoom struct {
	id        string
	host      *client
	clients   map[string]*client
	roster    []room.Player
	gameState room.GameState
}

func newRelayRoom(id string, host *client) *relayRoom {
	hostPlayer := host.player
	hostPlayer.Type = room.PlayerTypeHost
	return &relayRoom{
		id:      id,
		host:    host,
		clients: map[string]*client{hostPlayer.ID: host},
		roster:  []room.Player{hostPlayer},
	}
}

// addPlayer appends p to the roster, attaching the connection when there is
// one (offline players pass nil).
func (r *relayRoom) addPlayer(p room.Player, c *client) {
	for i, existing := range r.roster {
		if existing.ID == p.ID {
			r.roster[i] = p
			if c != nil {
				r.clients[p.ID] = c
			}
			return
		}
	}
	r.roster = append(r.roster, p)
	if c != nil {
		r.clients[p.ID] = c
	}
}

// removePlayer drops the roster entry and any attached connection,
// returning the removed player. The host is never removed this way.
func (r *relayRoom) removePlayer(playerID string) (room.Player, bool) {
	for i, p := range r.roster {
		if p.ID != playerID {
			continue
		}
		if p.IsHost() {
			return room.Player{}, false
		}
		r.roster = append(r.roster[:i], r.roster[i+1:]...)
		delete(r.clients, playerID)
		return p, true
	}
	return room.Player{}, false
}

// broadcast queues env on every connected member except the excluded one.
func (r *relayRoom) broadcast(env wire.Envelope, except *client) {
	for _, c := range r.clients {
		if c == except {
			continue
		}
		c.enqueue(env)
	}
}

// mergeGameState folds a patch into the room's accumulated state.
func (r *relayRoom) mergeGameState(patch room.GameState) {
	r.gameState = r.gameState.Merge(patch)
}

// generateJoinCode creates a 6-character uppercase code (base32 alphabet,
// so no ambiguous 0/1 characters).
func generateJoinCode() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("%06X", time.Now().UnixNano()&0xFFFFFF)
	}
	return strings.ToUpper(base32.StdEncoding.EncodeToString(b)[:6])
}
