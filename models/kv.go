package models

import "time"

// KVEntry backs the persistent key-value collaborator. Callers use it to
// remember player identity and profile between matches; the engine never
// touches it.
type KVEntry struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updatedAt"`
}
