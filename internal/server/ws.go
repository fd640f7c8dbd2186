package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jpalmerr/rollcall/internal/event"
	"github.com/jpalmerr/rollcall/internal/hub"
)

const (
	// pongWait is how long a connection may stay silent before it is
	// considered dead.
	pongWait = 60 * time.Second

	// pingPeriod must be shorter than pongWait so a healthy peer always
	// answers in time.
	pingPeriod = pongWait * 9 / 10

	// maxInboundBytes caps a single inbound message.
	maxInboundBytes = 64 << 10
)

// wsObserver is a hub observer backed by a WebSocket connection.
//
// The embedded queue buffers outbound messages; a single writer goroutine
// drains it, since gorilla connections allow only one concurrent writer.
type wsObserver struct {
	*hub.Queue
	id   string
	conn *websocket.Conn
}

// handleWS upgrades the request and runs the observer session until the
// peer disconnects, a write fails or the server shuts down.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "Expected WebSocket", http.StatusBadRequest)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	obs := &wsObserver{
		Queue: hub.NewQueue(s.cfg.SendBuffer),
		id:    uuid.NewString(),
		conn:  conn,
	}
	logger := s.logger.With("observer_id", obs.id, "remote_addr", r.RemoteAddr)

	if !s.gateway.Connect(obs) {
		logger.Warn("observer rejected initial snapshot")
		_ = conn.Close()
		return
	}
	logger.Info("observer connected", "observers", s.gateway.Observers())

	// request context is derived from server context via BaseContext,
	// so this fires on server shutdown as well as on handler exit
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.writeLoop(ctx, obs, logger)
	}()

	s.readLoop(obs, logger)

	s.gateway.Disconnect(obs)
	obs.Close()
	cancel()
	<-done
	_ = conn.Close()

	logger.Info("observer disconnected", "observers", s.gateway.Observers())
}

// writeLoop delivers queued messages and keepalive pings.
//
// On any write failure the queue is closed so broadcasts skip this observer
// and the connection is closed so the read loop unblocks.
func (s *Server) writeLoop(ctx context.Context, obs *wsObserver, logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	fail := func(err error) {
		logger.Debug("websocket write failed", "error", err)
		obs.Close()
		_ = obs.conn.Close()
	}

	for {
		select {
		case msg, ok := <-obs.Messages():
			if !ok {
				s.writeClose(obs.conn, websocket.CloseNormalClosure, "")
				return
			}
			_ = obs.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := obs.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				fail(err)
				return
			}

		case <-ticker.C:
			_ = obs.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := obs.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				fail(err)
				return
			}

		case <-ctx.Done():
			obs.Close()
			s.writeClose(obs.conn, websocket.CloseGoingAway, "server shutting down")
			_ = obs.conn.Close()
			return
		}
	}
}

// readLoop consumes inbound messages until the connection fails.
func (s *Server) readLoop(obs *wsObserver, logger *slog.Logger) {
	obs.conn.SetReadLimit(maxInboundBytes)
	_ = obs.conn.SetReadDeadline(time.Now().Add(pongWait))
	obs.conn.SetPongHandler(func(string) error {
		return obs.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := obs.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				logger.Debug("websocket read failed", "error", err)
			}
			return
		}
		_ = obs.conn.SetReadDeadline(time.Now().Add(pongWait))
		s.handleInbound(data, logger)
	}
}

// handleInbound parses a client message. Messages have no effect on state;
// malformed ones are logged and the connection stays open.
func (s *Server) handleInbound(data []byte, logger *slog.Logger) {
	var env event.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		logger.Warn("malformed websocket message", "error", err, "bytes", len(data))
		s.metrics.Inbound("malformed")
		return
	}
	logger.Debug("websocket message ignored", "type", env.Type)
	s.metrics.Inbound("ignored")
}

func (s *Server) writeClose(conn *websocket.Conn, code int, text string) {
	deadline := time.Now().Add(s.cfg.WriteTimeout)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}
