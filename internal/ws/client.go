package ws

import (
	"encoding/json"
	"sync"
	"time"

	"rummy-service/pkg/logger"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	readDeadline  = 60 * time.Second
	pingInterval  = 25 * time.Second
	writeDeadline = 5 * time.Second
	sendBuffer    = 64
)

type client struct {
	id      string
	userID  int64
	conn    *websocket.Conn
	handler *Handler

	send chan Outgoing
	done chan struct{}
	once sync.Once
}

func newClient(id string, userID int64, conn *websocket.Conn, h *Handler) *client {
	conn.SetReadLimit(1 << 20)
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})
	return &client{
		id:      id,
		userID:  userID,
		conn:    conn,
		handler: h,
		send:    make(chan Outgoing, sendBuffer),
		done:    make(chan struct{}),
	}
}

func (c *client) run() {
	go c.writePump()
	c.readPump()
}

// enqueue drops the connection when the outbound buffer is full: a
// reader that slow is better reconnected than backpressured into the
// engine.
func (c *client) enqueue(msg Outgoing) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		logger.Log.Warn("outbound buffer full, dropping connection",
			zap.Int64("userID", c.userID),
			zap.String("connID", c.id),
		)
		c.shutdown()
	}
}

func (c *client) shutdown() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *client) readPump() {
	defer func() {
		c.shutdown()
		c.handler.onDisconnect(c)
	}()

	for {
		mt, message, err := c.conn.ReadMessage()
		if err != nil {
			logger.Log.Info("ws read closed",
				zap.Int64("userID", c.userID),
				zap.String("connID", c.id),
				zap.Error(err),
			)
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		var env envelope
		if err := json.Unmarshal(message, &env); err != nil {
			c.enqueue(Outgoing{Event: "error", Code: 400, Message: "invalid payload"})
			continue
		}
		if env.Event == "" {
			continue
		}
		c.handler.dispatch(c, env)
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.Log.Info("ws write error",
					zap.Int64("userID", c.userID),
					zap.String("connID", c.id),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeDeadline)); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
