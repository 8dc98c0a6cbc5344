package services

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/selam/loto90-backend/game"
	"github.com/selam/loto90-backend/protocol"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

const handshakeWait = 10 * time.Second

// HandleWebSocket upgrades /ws/:code and performs the join handshake:
// the first frame must be a ROOM:JOIN envelope with the player metadata.
func HandleWebSocket(m *RoomManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, ok := m.Get(c.Param("code"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			m.log.Warnf("[ws] upgrade error: %v", err)
			return
		}

		conn.SetReadDeadline(time.Now().Add(handshakeWait))
		_, frame, err := conn.ReadMessage()
		if err != nil {
			conn.Close()
			return
		}
		conn.SetReadDeadline(time.Time{})

		msg, err := protocol.DecodeFrame(frame)
		if err != nil || msg.Type != protocol.TypeJoin {
			m.log.Warnf("[ws] rejecting connection to %s: bad handshake", room.Code)
			conn.Close()
			return
		}
		var seed game.PlayerSeed
		if payload, err := msg.Decode(); err == nil {
			seed = payload.(protocol.JoinPayload)
		}
		if seed.ID == "" {
			seed.ID = uuid.NewString()
		}

		client := &Client{
			id:   seed.ID,
			conn: conn,
			room: room,
			send: make(chan []byte, clientSendQueue),
		}
		room.addClient(client, seed)
	}
}
