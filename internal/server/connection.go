package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

var ErrConnectionClosed = websocket.ErrCloseSent

// Connection wraps one WebSocket client. Its id is transient; the seat
// identity issued by the registry is what survives reconnects.
type Connection struct {
	id        string
	conn      *websocket.Conn
	send      chan *Message
	registry  *Registry
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, registry *Registry, logger *log.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	return &Connection{
		id:       id,
		conn:     conn,
		send:     make(chan *Message, 256),
		registry: registry,
		logger:   logger.WithPrefix("conn").With("id", id),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// ID returns the transient connection id.
func (c *Connection) ID() string {
	return c.id
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		close(c.send)
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for delivery to the client.
func (c *Connection) SendMessage(msg *Message) error {
	defer func() {
		if r := recover(); r != nil {
			// Channel was closed during shutdown.
			c.logger.Debug("send on closed connection", "error", r)
		}
	}()

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return c.ctx.Err()
	default:
		c.logger.Warn("send buffer full, closing connection")
		_ = c.Close()
		return ErrConnectionClosed
	}
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Error("websocket error", "error", err)
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error("failed to write message", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			return
		}
	}
}

// handleMessage routes one inbound message to the registry. Errors from
// the engine go back to this connection only, never broadcast.
func (c *Connection) handleMessage(msg *Message) {
	c.logger.Debug("received message", "type", msg.Type)

	var err error
	switch msg.Type {
	case MessageTypeCreateSession:
		var data CreateSessionData
		if err = json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse create session data")
			return
		}
		err = c.registry.CreateSession(c.id, data)

	case MessageTypeJoinSession:
		var data JoinSessionData
		if err = json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse join session data")
			return
		}
		err = c.registry.JoinSession(c.id, data)

	case MessageTypeStartHand:
		err = c.registry.StartHand(c.id)

	case MessageTypeAct:
		var data ActData
		if err = json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse act data")
			return
		}
		err = c.registry.Act(c.id, data)

	case MessageTypeReconnect:
		var data ReconnectData
		if err = json.Unmarshal(msg.Data, &data); err != nil {
			c.sendError("invalid_message", "failed to parse reconnect data")
			return
		}
		err = c.registry.Reconnect(c.id, data)

	case MessageTypeLeaveSession:
		err = c.registry.LeaveSession(c.id)

	case MessageTypeListSessions:
		err = c.registry.ListSessions(c.id)

	default:
		c.sendError("unknown_message_type", "unknown message type: "+msg.Type.String())
		return
	}

	if err != nil {
		c.sendError(errorCode(err), err.Error())
	}
}

// sendError sends an error message to the client
func (c *Connection) sendError(code, message string) {
	errorMsg, err := NewMessage(MessageTypeError, ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error("failed to create error message", "error", err)
		return
	}
	_ = c.SendMessage(errorMsg)
}
