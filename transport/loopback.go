package transport

import (
	"context"
	"sync"

	"github.com/selam/loto90-backend/protocol"
)

// Loopback is the solo-mode transport: no network, the local participant
// is always the host, Send self-delivers and Broadcast has nobody to
// reach.
type Loopback struct {
	mu   sync.RWMutex
	st   ConnectionState
	subs subscribers
}

var _ Transport = (*Loopback)(nil)

func NewLoopback() *Loopback {
	return &Loopback{}
}

func (l *Loopback) Connect(_ context.Context, cfg Config) error {
	l.mu.Lock()
	l.st = ConnectionState{
		IsConnected: true,
		IsHost:      true,
		RoomCode:    cfg.RoomCode,
	}
	l.mu.Unlock()
	return nil
}

func (l *Loopback) Disconnect() error {
	l.mu.Lock()
	l.st = ConnectionState{}
	l.mu.Unlock()
	return nil
}

func (l *Loopback) Send(msg protocol.Message) error {
	l.subs.publish(msg)
	return nil
}

func (l *Loopback) Broadcast(protocol.Message, string) error {
	return nil
}

func (l *Loopback) Subscribe(fn func(protocol.Message)) func() {
	return l.subs.add(fn)
}

func (l *Loopback) State() ConnectionState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.st
}
