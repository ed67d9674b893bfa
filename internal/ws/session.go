// ABOUTME: Represents one live websocket connection with its identity and outbound queue
// ABOUTME: Runs the read/write pumps; holds no authorization or registry logic

package ws

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/pawhub/pawhub/internal/store"
)

// Session is a single accepted connection. The Hub owns it for its
// lifetime; identity is fixed at handshake and never changes.
type Session struct {
	ID     string
	UserID uuid.UUID
	Role   store.Role

	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	logger *slog.Logger
}

func (h *Hub) newSession(conn *websocket.Conn, userID uuid.UUID, role store.Role) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()
	return &Session{
		ID:     id,
		UserID: userID,
		Role:   role,
		hub:    h,
		conn:   conn,
		send:   make(chan []byte, h.opts.SessionQueueSize),
		ctx:    ctx,
		cancel: cancel,
		logger: h.logger.With("session_id", id, "user_id", userID.String()),
	}
}

// enqueue attempts a non-blocking push onto the outbound queue.
// Must be called with the hub's mutex held; never blocks.
func (s *Session) enqueue(payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// sendEvent delivers a server event to this session only.
func (s *Session) sendEvent(event string, params any) {
	payload, err := encodeServerEvent(event, params)
	if err != nil {
		s.logger.Error("encoding event", "event", event, "error", err)
		return
	}
	s.hub.deliver([]*Session{s}, payload)
}

// sendError reports a request failure to this session only. Failures never
// propagate to other subscribers and never mutate shared state.
func (s *Session) sendError(message string) {
	s.sendEvent(EventError, errorPayload{Message: message})
}

// readPump consumes inbound frames and dispatches each one to completion
// before reading the next, preserving per-session event ordering. It exits
// on any read error and detaches the session from the hub.
func (s *Session) readPump() {
	defer func() {
		s.cancel()
		s.hub.Detach(s)
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(s.hub.opts.ReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.hub.opts.PongTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.hub.opts.PongTimeout))
	})

	for {
		messageType, raw, err := s.conn.ReadMessage()
		if err != nil {
			if isUnexpectedClose(err) {
				s.logger.Warn("unexpected connection error", "error", err)
			} else {
				s.logger.Debug("connection closed", "error", err)
			}
			return
		}

		if messageType == websocket.BinaryMessage {
			s.sendError("binary messages are not supported")
			continue
		}

		s.hub.router.dispatch(s.ctx, s, raw)
	}
}

// writePump drains the outbound queue to the transport and keeps the
// connection alive with periodic pings.
func (s *Session) writePump() {
	ticker := time.NewTicker(s.hub.opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.hub.opts.WriteTimeout))
			if !ok {
				// Hub closed the queue: session was detached or evicted
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debug("write failed", "error", err)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.hub.opts.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// isUnexpectedClose classifies read errors worth warning about.
func isUnexpectedClose(err error) bool {
	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return false
	}
	return websocket.IsUnexpectedCloseError(err)
}
