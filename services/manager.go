package services

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/selam/loto90-backend/game"
)

const maxCodeAttempts = 10

// RoomManager owns the relay server's live rooms, keyed by room code.
type RoomManager struct {
	log *zap.SugaredLogger
	db  *gorm.DB

	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRoomManager(db *gorm.DB, log *zap.SugaredLogger) *RoomManager {
	return &RoomManager{
		log:   log,
		db:    db,
		rooms: make(map[string]*Room),
	}
}

// CreateRoom allocates a fresh 6-character code and seats the creator as
// match host.
func (m *RoomManager) CreateRoom(creator game.PlayerSeed, settings game.Settings) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < maxCodeAttempts; i++ {
		code := game.NewRelayRoomCode()
		if _, taken := m.rooms[code]; taken {
			continue
		}
		room := NewRoom(code, creator, settings, m.db, m.log)
		room.onEmpty = m.removeRoom
		m.rooms[code] = room
		m.log.Infof("[manager] room %s created by %s (total=%d)", code, creator.ID, len(m.rooms))
		return room, nil
	}
	return nil, fmt.Errorf("could not allocate a free room code")
}

// Get looks a room up by code, normalizing player input.
func (m *RoomManager) Get(code string) (*Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	room, ok := m.rooms[game.NormalizeCode(code)]
	return room, ok
}

// Count reports the number of live rooms.
func (m *RoomManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// removeRoom tears down a room once its last client is gone.
func (m *RoomManager) removeRoom(code string) {
	m.mu.Lock()
	room, ok := m.rooms[code]
	if ok {
		delete(m.rooms, code)
	}
	m.mu.Unlock()

	if ok {
		room.close()
		m.log.Infof("[manager] room %s removed", code)
	}
}
