// Package relay implements the daemon behind the server transport mode: a
// websocket endpoint that tracks rooms, routes envelopes between their
// members, and owns the authoritative roster for relayed sessions.
package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/parlorgames/parlor/internal/wire"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers from any origin may host a game against this relay.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Server serves the relay protocol on /ws.
type Server struct {
	hub    *Hub
	logger *log.Logger
	http   *http.Server
}

// NewServer builds an unstarted relay server. logger may be nil.
func NewServer(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Prefix:          "relay",
		})
	}
	return &Server{
		hub:    NewHub(logger),
		logger: logger,
	}
}

// Hub exposes the hub, mainly so tests can drive it directly.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP handler serving /ws upgrades and a trivial
// health endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	c := &client{
		hub:  s.hub,
		conn: conn,
		send: make(chan wire.Envelope, sendBuffer),
	}
	s.hub.register <- c

	go c.writePump()
	go c.readPump()
}

// ListenAndServe runs the hub and the HTTP server until ctx is cancelled,
// then drains with a short shutdown window.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	go s.hub.Run(ctx)

	s.http = &http.Server{Handler: s.Handler()}
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.Serve(ln)
	}()

	s.logger.Info("relay listening", "addr", ln.Addr().String())

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
