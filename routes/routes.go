package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/selam/loto90-backend/controllers"
	"github.com/selam/loto90-backend/services"
)

// Deps carries the explicitly constructed services the routes need.
type Deps struct {
	Rooms    *controllers.RoomController
	Matches  *controllers.MatchController
	Profiles *controllers.ProfileController
	Manager  *services.RoomManager
}

func SetupRoutes(r *gin.Engine, d Deps) {
	api := r.Group("/api")

	// ----------------------
	// Room routes
	// ----------------------
	api.POST("/rooms", d.Rooms.Create)       // Create room, caller becomes host
	api.GET("/rooms/:code", d.Rooms.Get)     // Room snapshot by code

	// ----------------------
	// Match history
	// ----------------------
	api.GET("/matches", d.Matches.List)

	// ----------------------
	// Profile KV
	// ----------------------
	api.GET("/profiles/:id", d.Profiles.Get)
	api.PUT("/profiles/:id", d.Profiles.Put)

	// WebSocket room endpoint
	r.GET("/ws/:code", services.HandleWebSocket(d.Manager))
}
