package services

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/selam/loto90-backend/protocol"
)

const (
	clientSendQueue = 32
	clientWriteWait = 10 * time.Second
)

// Client is one websocket participant of a relay room.
type Client struct {
	id   string // player id, bound at handshake
	conn *websocket.Conn
	room *Room
	send chan []byte
	once sync.Once
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

func (c *Client) readPump() {
	defer func() {
		c.room.removeClient(c.id)
		c.conn.Close()
	}()

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.room.log.Infof("[room %s] client %s disconnected", c.room.Code, c.id)
			} else {
				c.room.log.Warnf("[room %s] client %s read error: %v", c.room.Code, c.id, err)
			}
			return
		}

		msg, err := protocol.DecodeFrame(frame)
		if err != nil {
			c.room.log.Warnf("[room %s] client %s sent bad frame: %v", c.room.Code, c.id, err)
			continue
		}
		c.room.dispatch(c, msg)
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(clientWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			c.room.log.Warnf("[room %s] client %s write error: %v", c.room.Code, c.id, err)
			return
		}
	}
}
