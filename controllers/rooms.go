package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/selam/loto90-backend/game"
	"github.com/selam/loto90-backend/services"
)

// RoomController exposes the room lifecycle over REST. The realtime
// traffic itself runs over the websocket endpoint.
type RoomController struct {
	Manager *services.RoomManager
	// Defaults seeds new-room settings from the server configuration;
	// a request can still override them per room.
	Defaults game.Settings
}

type createRoomRequest struct {
	PlayerID       string `json:"playerId"`
	Name           string `json:"name" binding:"required"`
	Avatar         string `json:"avatar"`
	WinMode        string `json:"winMode"`
	MaxPlayers     int    `json:"maxPlayers"`
	CardsPerPlayer int    `json:"cardsPerPlayer"`
	AutoCall       *bool  `json:"autoCall"`
}

// Create makes a room and seats the caller as match host.
func (rc *RoomController) Create(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.PlayerID == "" {
		req.PlayerID = uuid.NewString()
	}

	settings := rc.Defaults
	if req.WinMode != "" {
		settings.WinMode = req.WinMode
	}
	if req.MaxPlayers > 0 {
		settings.MaxPlayers = req.MaxPlayers
	}
	if req.CardsPerPlayer > 0 {
		settings.CardsPerPlayer = req.CardsPerPlayer
	}
	if req.AutoCall != nil {
		settings.AutoCall = *req.AutoCall
	}

	room, err := rc.Manager.CreateRoom(game.PlayerSeed{
		ID:     req.PlayerID,
		Name:   req.Name,
		Avatar: req.Avatar,
	}, settings)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"roomCode": room.Code,
		"playerId": req.PlayerID,
		"state":    room.Snapshot(),
	})
}

// Get returns the current snapshot of a room.
func (rc *RoomController) Get(c *gin.Context) {
	room, ok := rc.Manager.Get(c.Param("code"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"state": room.Snapshot()})
}
