package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/selam/loto90-backend/models"
)

// MatchController serves finished match history from the database.
type MatchController struct {
	DB *gorm.DB
}

// List returns the most recent finished matches, newest first.
func (mc *MatchController) List(c *gin.Context) {
	if mc.DB == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "match history is not enabled"})
		return
	}
	var records []models.MatchRecord
	if err := mc.DB.Order("created_at DESC").Limit(20).Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load matches"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": records})
}
