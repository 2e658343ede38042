/*
This file defines the Session struct, representing one active WebSocket
connection of a user. It manages the connection's lifecycle and message
communication loops (ReadPump and WritePump), and dispatches inbound client
events to the InboundHandler wired at upgrade time.
*/
package presence

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"talkora/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong message from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of a frame sent by the client.
	maxMessageSize = 8192

	// per-session outbound queue capacity. A slow consumer fills it up and is
	// disconnected rather than blocking delivery to other sessions.
	sendQueueSize = 256
)

// InboundHandler receives the client events a session reads off the wire.
// It is implemented by the delivery layer and injected at upgrade time.
type InboundHandler interface {
	// HandleTyping processes a typing start/stop signal towards receiverID.
	HandleTyping(s *Session, receiverID string, isTyping bool)

	// HandleRequestOnlineUsers pushes a fresh presence snapshot to the session.
	HandleRequestOnlineUsers(s *Session)

	// HandleBlockAction applies a block or unblock of targetID over the socket.
	HandleBlockAction(s *Session, targetID string, block bool)

	// HandleContactsRefresh asks the session's user's other devices to refetch contacts.
	HandleContactsRefresh(s *Session)
}

// Session represents one live transport connection of an authenticated user.
// A user with several devices owns several sessions at once.
type Session struct {
	// UserID is the authenticated owner of this connection.
	UserID string

	// ConnectedAt records when the transport was established.
	ConnectedAt time.Time

	// underlying WebSocket connection object.
	conn *websocket.Conn

	// registry that owns this session's lifetime.
	registry *Registry

	// handler for inbound client events.
	inbound InboundHandler

	// a buffered channel used to queue frames waiting to be sent to the client.
	send chan []byte

	// done is closed exactly once when the session shuts down.
	done      chan struct{}
	closeOnce sync.Once

	// structured logger with session context.
	logger zerolog.Logger
}

// NewSession constructs a Session for an upgraded connection. The session is
// not live until the caller registers it and starts both pumps.
func NewSession(registry *Registry, conn *websocket.Conn, userID string, inbound InboundHandler) *Session {
	sessionLogger := logx.Logger().With().
		Str("user_id", userID).
		Str("remote_addr", conn.RemoteAddr().String()).
		Logger()

	return &Session{
		UserID:      userID,
		ConnectedAt: time.Now(),
		conn:        conn,
		registry:    registry,
		inbound:     inbound,
		send:        make(chan []byte, sendQueueSize),
		done:        make(chan struct{}),
		logger:      sessionLogger,
	}
}

// Send queues an event envelope for delivery to this session. Delivery is
// best-effort: when the outbound queue is full the frame is dropped and an
// error returned, so one dead connection never blocks a broadcast.
func (s *Session) Send(event string, data any) error {
	var raw json.RawMessage
	if data != nil {
		encoded, err := json.Marshal(data)
		if err != nil {
			s.logger.Error().Err(err).Str("event", event).Msg("Error marshaling event payload")
			return err
		}
		raw = encoded
	}

	frame, err := json.Marshal(Envelope{Event: event, Data: raw})
	if err != nil {
		s.logger.Error().Err(err).Str("event", event).Msg("Error marshaling event envelope")
		return err
	}

	select {
	case <-s.done:
		return fmt.Errorf("session closed")
	case s.send <- frame:
		return nil
	default:
		s.logger.Warn().Str("event", event).Int("queue_len", len(s.send)).Msg("Session send queue full, dropping event")
		return fmt.Errorf("session send queue full")
	}
}

// ReadPump handles reading frames from the WebSocket connection.
// It handles heartbeats (Pong), event parsing, and performs cleanup upon connection closure.
func (s *Session) ReadPump() {
	defer s.cleanupOnDisconnect()

	s.conn.SetReadLimit(maxMessageSize)

	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Info().Err(err).Msg("Error reading frame (client close/going away)")
			}
			break
		}

		s.processInboundEvent(frame)
	}
}

// cleanupOnDisconnect unregisters the session and closes the connection when
// the ReadPump terminates. Registry cleanup never touches durable state.
func (s *Session) cleanupOnDisconnect() {
	s.logger.Info().Msg("Session connection cleanup starting.")

	s.registry.Unregister(s.UserID, s)
	s.Close()
}

// processInboundEvent parses one client frame and dispatches it.
func (s *Session) processInboundEvent(frame []byte) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		s.logger.Warn().Err(err).Bytes("frame", frame).Msg("Client sent invalid JSON")
		return
	}

	switch envelope.Event {
	case ClientEventTyping, ClientEventStopTyping:
		var payload TypingPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.ReceiverID == "" {
			s.logger.Warn().Err(err).Msg("Client sent invalid typing payload")
			return
		}
		s.inbound.HandleTyping(s, payload.ReceiverID, envelope.Event == ClientEventTyping)

	case ClientEventRequestOnlineUsers:
		s.inbound.HandleRequestOnlineUsers(s)

	case ClientEventBlockUser, ClientEventUnblockUser:
		var payload TargetPayload
		if err := json.Unmarshal(envelope.Data, &payload); err != nil || payload.UserID == "" {
			s.logger.Warn().Err(err).Msg("Client sent invalid block payload")
			return
		}
		s.inbound.HandleBlockAction(s, payload.UserID, envelope.Event == ClientEventBlockUser)

	case ClientEventContactsRefresh:
		s.inbound.HandleContactsRefresh(s)

	case ClientEventJoinRoom, ClientEventLeaveRoom:
		// Foreground-conversation hints from the client. Delivery here is
		// per-user rather than per-room, so these are acknowledged by silence.

	case ClientEventPing:
		if err := s.Send(EventPong, envelope.Data); err != nil {
			s.logger.Debug().Err(err).Msg("Failed to queue pong")
		}

	default:
		s.logger.Warn().Str("event", envelope.Event).Msg("Client sent unsupported event")
	}
}

// WritePump handles writing frames from the Session.send channel to the WebSocket connection.
func (s *Session) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit
		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Session connection close error in WritePump")
		}
	}()

	for {
		select {
		case <-s.done:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err == nil {
				if err := s.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					s.logger.Debug().Err(err).Msg("Error writing close message")
				}
			}
			return

		case frame := <-s.send:
			if !s.writeQueuedFrame(frame) {
				return
			}

		case <-ticker.C:
			if !s.writePingMessage() {
				return
			}
		}
	}
}

// writeQueuedFrame handles frames pulled from the send channel, writing them to the WebSocket.
// Returns true if the WritePump loop should continue, false if it should terminate.
func (s *Session) writeQueuedFrame(frame []byte) bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		s.logger.Error().Err(err).Msg("Error writing frame")
		return false
	}

	return true
}

// writePingMessage sends a periodic WebSocket Ping message to maintain the connection heartbeat.
// Returns false if the WritePump loop should terminate due to write failure.
func (s *Session) writePingMessage() bool {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		s.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
		return false
	}

	if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		s.logger.Debug().Err(err).Msg("Error writing ping")
		return false
	}

	return true
}

// Close shuts the session down: signals the WritePump to send a close frame
// and closes the transport, which ends the ReadPump. Safe to call repeatedly
// and from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.conn.Close(); err != nil {
			s.logger.Debug().Err(err).Msg("Session connection close error")
		}
	})
}
