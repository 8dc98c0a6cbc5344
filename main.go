package main

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/selam/loto90-backend/config"
	"github.com/selam/loto90-backend/controllers"
	"github.com/selam/loto90-backend/game"
	"github.com/selam/loto90-backend/routes"
	"github.com/selam/loto90-backend/services"
	"github.com/selam/loto90-backend/storage"
	"github.com/selam/loto90-backend/utils/logger"
)

func main() {
	log := logger.New()
	defer log.Sync()

	cfg := config.Load()

	db, err := config.SetupDatabase(cfg, log)
	if err != nil {
		log.Fatalf("database setup failed: %v", err)
	}

	var kv storage.KV = storage.NewMemoryKV()
	if db != nil {
		kv = storage.NewGormKV(db)
	}

	manager := services.NewRoomManager(db, log)

	defaults := game.DefaultSettings()
	defaults.AutoCallIntervalMs = cfg.AutoCallIntervalMs
	defaults.MaxPlayers = cfg.MaxPlayersPerRoom

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.SetupRoutes(r, routes.Deps{
		Rooms:    &controllers.RoomController{Manager: manager, Defaults: defaults},
		Matches:  &controllers.MatchController{DB: db},
		Profiles: &controllers.ProfileController{Store: kv},
		Manager:  manager,
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"rooms":     manager.Count(),
			"timestamp": time.Now(),
		})
	})

	log.Infof("Loto 90 relay server starting on port %s", cfg.Port)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("failed to start server: %v", err)
	}
}
