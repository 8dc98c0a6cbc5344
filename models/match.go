package models

import (
	"time"

	"gorm.io/datatypes"
)

// MatchRecord is one finished relay-server match, kept for the history
// and stats endpoints. Called numbers are stored in order as JSON.
type MatchRecord struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	RoomCode    string         `gorm:"index" json:"roomCode"`
	WinMode     string         `json:"winMode"`
	WinnerID    string         `json:"winnerId"`
	WinnerName  string         `json:"winnerName"`
	PlayerCount int            `json:"playerCount"`
	NumbersJSON datatypes.JSON `json:"numbers"`
	StartedAt   time.Time      `json:"startedAt"`
	EndedAt     time.Time      `json:"endedAt"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}
