// Package transport carries protocol envelopes between match
// participants. Three implementations exist: an in-process loopback for
// solo play, a peer-to-peer mesh relayed through an elected host, and a
// client of the relay server. The engine never sees which one is active.
package transport

import (
	"context"
	"sync"

	"github.com/selam/loto90-backend/game"
	"github.com/selam/loto90-backend/protocol"
)

// ConnectionState is transport-owned status, separate from game state.
type ConnectionState struct {
	IsConnected  bool   `json:"isConnected"`
	IsConnecting bool   `json:"isConnecting"`
	IsHost       bool   `json:"isHost"`
	Error        string `json:"error,omitempty"`
	RoomCode     string `json:"roomCode,omitempty"`
}

// Config selects the room and identity for a connection attempt.
type Config struct {
	RoomCode string
	Host     bool
	Player   game.PlayerSeed

	// HostAddr is the address of the hosting peer for the mesh
	// transport. Defaults to the local machine.
	HostAddr string
	// ServerURL is the relay server base URL, e.g. ws://localhost:4000.
	ServerURL string
}

// Transport is the contract every delivery mechanism satisfies. Send is
// fire-and-forget: no acknowledgement and no retry beyond what the
// underlying ordered channel provides.
type Transport interface {
	Connect(ctx context.Context, cfg Config) error
	Disconnect() error
	// Send unicasts to the host; when self is host it self-delivers.
	Send(msg protocol.Message) error
	// Broadcast fans out to every connected participant except
	// excludeID ("" excludes nobody). Non-hosts delegate to Send.
	Broadcast(msg protocol.Message, excludeID string) error
	Subscribe(fn func(protocol.Message)) func()
	State() ConnectionState
}

// subscribers is the shared callback registry of all transports.
type subscribers struct {
	mu   sync.RWMutex
	m    map[int]func(protocol.Message)
	next int
}

func (s *subscribers) add(fn func(protocol.Message)) func() {
	s.mu.Lock()
	if s.m == nil {
		s.m = make(map[int]func(protocol.Message))
	}
	id := s.next
	s.next++
	s.m[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.m, id)
		s.mu.Unlock()
	}
}

func (s *subscribers) publish(msg protocol.Message) {
	s.mu.RLock()
	fns := make([]func(protocol.Message), 0, len(s.m))
	for _, fn := range s.m {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(msg)
	}
}
