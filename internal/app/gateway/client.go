/*
Package gateway binds the chat service to WebSocket connections.

This file defines the Client struct, one live WebSocket connection. ReadPump decodes inbound
frames and hands them to the chat operations; WritePump drains the send queue and keeps the
connection alive with pings. When the read side ends, for any reason, the session is
disconnected from the chat service.
*/
package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"chatrelay/internal/app/chat"
	"chatrelay/internal/pkg/errs"
	"chatrelay/internal/pkg/logx"
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

	// sendQueueSize bounds the per-connection outbound queue.
	sendQueueSize = 256
)

// Inbound frame types.
const (
	FrameJoin  = "join"
	FrameSend  = "send"
	FrameLeave = "leave"
)

// Operations is the part of chat.Service a connection drives.
type Operations interface {
	SendMessage(sessionID, roomID, sender, content string) *errs.CustomError
	JoinRoom(sessionID, roomID, username string) *errs.CustomError
	LeaveRoom(sessionID, roomID, username string)
	Disconnect(sessionID string)
}

// InboundFrame is the JSON shape of every client frame.
type InboundFrame struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	Sender  string `json:"sender"`
	Content string `json:"content,omitempty"`
}

// Client struct represents an active WebSocket connection and the session it carries.
type Client struct {
	// session id assigned when the connection was accepted.
	id string

	// underlying WebSocket connection object.
	conn *websocket.Conn

	hub *Hub
	ops Operations

	// a buffered channel used to queue encoded events waiting to be sent to the client.
	send chan []byte

	// done is closed once the connection is shutting down.
	done      chan struct{}
	closeOnce sync.Once

	// structured logger with session context.
	logger zerolog.Logger
}

// NewClient constructs a Client for an upgraded connection.
func NewClient(sessionID string, conn *websocket.Conn, hub *Hub, ops Operations) *Client {
	return &Client{
		id:     sessionID,
		conn:   conn,
		hub:    hub,
		ops:    ops,
		send:   make(chan []byte, sendQueueSize),
		done:   make(chan struct{}),
		logger: logx.Component("Client").With().Str("session_id", sessionID).Logger(),
	}
}

// ID returns the session id.
func (c *Client) ID() string {
	return c.id
}

// Close asks the write pump to send a close frame and shut the connection down.
// It is safe to call more than once and from any goroutine.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// ReadPump handles reading frames from the WebSocket connection until it fails or closes,
// then disconnects the session.
func (c *Client) ReadPump() {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Error reading message (Client close/going away)")
			}
			break
		}

		c.processInboundFrame(frame)
	}
}

// cleanupOnDisconnect runs when ReadPump ends: the session leaves its room and the
// connection is released.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Msg("Client connection cleanup starting.")

	if c.hub.Unregister(c) {
		c.ops.Disconnect(c.id)
	}

	c.Close()
	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Client connection close error")
	}
}

// processInboundFrame decodes one client frame and dispatches it.
func (c *Client) processInboundFrame(raw []byte) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		c.logger.Warn().Err(err).Int("size", len(raw)).Msg("Client sent invalid JSON")
		c.SendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	var err *errs.CustomError
	switch frame.Type {
	case FrameJoin:
		err = c.ops.JoinRoom(c.id, frame.RoomID, frame.Sender)

	case FrameSend:
		err = c.ops.SendMessage(c.id, frame.RoomID, frame.Sender, frame.Content)

	case FrameLeave:
		c.ops.LeaveRoom(c.id, frame.RoomID, frame.Sender)

	default:
		c.logger.Warn().Str("frame_type", frame.Type).Msg("Client sent unsupported frame type")
		c.SendError(errs.NewError(errs.ErrUnsupportedEventType, frame.Type))
		return
	}

	// the service has already told the client; this is for the log only
	if err != nil {
		c.logger.Debug().Str("frame_type", frame.Type).Int("code", err.Code).Msg("Frame rejected.")
	}
}

// SendError queues an error event for this connection.
func (c *Client) SendError(customErr *errs.CustomError) {
	c.sendEvent(chat.ErrorEvent(chat.ErrorPayload{
		Message:   customErr.Message,
		Code:      customErr.Code,
		Timestamp: time.Now().UnixMilli(),
	}))
}

func (c *Client) sendEvent(ev chat.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		c.logger.Error().Err(err).Msg("Error marshaling event for client")
		return
	}
	c.enqueue(data)
}

// enqueue queues data without blocking. A full queue drops it.
func (c *Client) enqueue(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	select {
	case c.send <- data:
		return true
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send channel full, dropping message")
		return false
	}
}

// WritePump writes queued events to the connection and sends periodic pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()

		// ensure the connection is closed on exit so ReadPump unblocks
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Client connection close error in WritePump")
		}
	}()

	for {
		select {
		case message := <-c.send:
			if !c.write(websocket.TextMessage, message) {
				return
			}

		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}

		case <-c.done:
			c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// write sends one frame with a deadline and reports whether the pump should continue.
func (c *Client) write(messageType int, data []byte) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set write deadline")
		return false
	}

	if err := c.conn.WriteMessage(messageType, data); err != nil {
		c.logger.Debug().Err(err).Int("message_type", messageType).Msg("Error writing message")
		return false
	}
	return true
}
