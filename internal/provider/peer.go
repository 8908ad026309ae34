package provider

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/parlorgames/parlor/internal/wire"
)

// peerEndpoint is the online provider's transport: one TCP listener whose
// advertised address is the endpoint's self-assigned id, plus the set of
// live connections. When hosting, the id doubles as the room id that guests
// dial directly.
type peerEndpoint struct {
	listenAddr string
	logger     *log.Logger

	// onMessage and onClose run on connection reader goroutines. The
	// provider serializes them through its own dispatch lock.
	onMessage func(c *peerConn, env wire.Envelope)
	onClose   func(c *peerConn)

	mu       sync.Mutex
	listener net.Listener
	id       string
	conns    map[*peerConn]struct{}
	closed   bool
	ready    chan struct{}
}

// peerConn wraps one framed connection. playerID is the host-side tag set
// after a successful JOIN_REQUEST, used for targeted sends such as kicks.
type peerConn struct {
	conn net.Conn
	enc  *wire.Encoder
	dec  *wire.Decoder

	writeMu sync.Mutex

	mu       sync.Mutex
	playerID string
}

func newPeerEndpoint(listenAddr string, logger *log.Logger) *peerEndpoint {
	return &peerEndpoint{
		listenAddr: listenAddr,
		logger:     logger,
		conns:      make(map[*peerConn]struct{}),
		ready:      make(chan struct{}),
	}
}

// open binds the listener and assigns the endpoint id. Idempotent: opening
// an already-open endpoint is a no-op.
func (e *peerEndpoint) open() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.listener != nil {
		return nil
	}
	if e.closed {
		return errors.New("provider: endpoint already closed")
	}

	ln, err := net.Listen("tcp", e.listenAddr)
	if err != nil {
		return fmt.Errorf("provider: open peer endpoint: %w", err)
	}
	e.listener = ln
	e.id = ln.Addr().String()
	close(e.ready)

	go e.acceptLoop(ln)
	return nil
}

// endpointID returns the self-assigned id, or "" before open.
func (e *peerEndpoint) endpointID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.id
}

// opened returns a channel closed once the listener is bound.
func (e *peerEndpoint) opened() <-chan struct{} {
	return e.ready
}

// disconnected reports whether the endpoint has no live listener.
func (e *peerEndpoint) disconnected() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listener == nil
}

func (e *peerEndpoint) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			// Listener closed; the endpoint is shutting down.
			return
		}
		e.adopt(conn)
	}
}

// adopt registers a raw connection and starts its reader.
func (e *peerEndpoint) adopt(conn net.Conn) *peerConn {
	pc := &peerConn{
		conn: conn,
		enc:  wire.NewEncoder(conn),
		dec:  wire.NewDecoder(conn),
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		conn.Close()
		return nil
	}
	e.conns[pc] = struct{}{}
	e.mu.Unlock()

	go e.readLoop(pc)
	return pc
}

// dial opens a direct connection to another endpoint by its id.
func (e *peerEndpoint) dial(id string) (*peerConn, error) {
	conn, err := net.Dial("tcp", id)
	if err != nil {
		return nil, fmt.Errorf("provider: dial peer %s: %w", id, err)
	}
	pc := e.adopt(conn)
	if pc == nil {
		conn.Close()
		return nil, errors.New("provider: endpoint already closed")
	}
	return pc, nil
}

func (e *peerEndpoint) readLoop(pc *peerConn) {
	for {
		env, err := pc.dec.Decode()
		if err != nil {
			break
		}
		if e.onMessage != nil {
			e.onMessage(pc, env)
		}
	}

	pc.conn.Close()

	e.mu.Lock()
	_, known := e.conns[pc]
	delete(e.conns, pc)
	closed := e.closed
	e.mu.Unlock()

	if known && !closed && e.onClose != nil {
		e.onClose(pc)
	}
}

// broadcast sends env to every live connection except the excluded one.
// Send failures only drop that connection's message; the reader notices the
// dead connection soon enough.
func (e *peerEndpoint) broadcast(env wire.Envelope, except *peerConn) {
	for _, pc := range e.snapshot() {
		if pc == except {
			continue
		}
		if err := pc.send(env); err != nil {
			e.logger.Warn("peer send failed", "type", env.Type, "error", err)
		}
	}
}

// connByPlayer finds the connection tagged with the given player id.
func (e *peerEndpoint) connByPlayer(playerID string) *peerConn {
	for _, pc := range e.snapshot() {
		if pc.taggedPlayer() == playerID {
			return pc
		}
	}
	return nil
}

func (e *peerEndpoint) snapshot() []*peerConn {
	e.mu.Lock()
	defer e.mu.Unlock()
	conns := make([]*peerConn, 0, len(e.conns))
	for pc := range e.conns {
		conns = append(conns, pc)
	}
	return conns
}

// close tears the endpoint down: listener and every connection. Terminal.
func (e *peerEndpoint) close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	ln := e.listener
	e.listener = nil
	conns := make([]*peerConn, 0, len(e.conns))
	for pc := range e.conns {
		conns = append(conns, pc)
	}
	e.conns = make(map[*peerConn]struct{})
	e.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	for _, pc := range conns {
		pc.conn.Close()
	}
}

func (pc *peerConn) send(env wire.Envelope) error {
	pc.writeMu.Lock()
	defer pc.writeMu.Unlock()
	return pc.enc.Encode(env)
}

func (pc *peerConn) tag(playerID string) {
	pc.mu.Lock()
	pc.playerID = playerID
	pc.mu.Unlock()
}

func (pc *peerConn) taggedPlayer() string {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	return pc.playerID
}

func (pc *peerConn) close() {
	pc.conn.Close()
}
