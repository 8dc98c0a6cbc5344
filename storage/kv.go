// Package storage implements the persistent key-value collaborator the
// core contracts against: plain get/set semantics, nothing more.
package storage

import (
	"errors"
	"sync"

	"gorm.io/gorm"

	"github.com/selam/loto90-backend/models"
)

// KV is the collaborator contract.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

// MemoryKV is the in-process implementation used when no database is
// configured, and in tests.
type MemoryKV struct {
	mu sync.RWMutex
	m  map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[string]string)}
}

func (s *MemoryKV) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok, nil
}

func (s *MemoryKV) Set(key, value string) error {
	s.mu.Lock()
	s.m[key] = value
	s.mu.Unlock()
	return nil
}

// GormKV persists entries through the relay server's database.
type GormKV struct {
	DB *gorm.DB
}

func NewGormKV(db *gorm.DB) *GormKV {
	return &GormKV{DB: db}
}

func (s *GormKV) Get(key string) (string, bool, error) {
	var entry models.KVEntry
	err := s.DB.First(&entry, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Value, true, nil
}

func (s *GormKV) Set(key, value string) error {
	return s.DB.Save(&models.KVEntry{Key: key, Value: value}).Error
}
