package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/selam/loto90-backend/storage"
)

// ProfileController stores player profiles through the key-value
// collaborator. The payload is opaque to the server; clients round-trip
// whatever identity blob they keep between matches.
type ProfileController struct {
	Store storage.KV
}

type profileRequest struct {
	Value string `json:"value" binding:"required"`
}

func (pc *ProfileController) Get(c *gin.Context) {
	value, ok, err := pc.Store.Get(profileKey(c.Param("id")))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"value": value})
}

func (pc *ProfileController) Put(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := pc.Store.Set(profileKey(c.Param("id")), req.Value); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save profile"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "saved"})
}

func profileKey(id string) string {
	return "profile:" + id
}
