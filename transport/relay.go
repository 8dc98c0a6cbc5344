package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/selam/loto90-backend/game"
	"github.com/selam/loto90-backend/protocol"
)

// Relay is the client side of the client-server mode: one websocket to
// the relay server, which is always the authoritative host. A relay
// participant never runs the engine; it emits intents and receives
// snapshots.
type Relay struct {
	log *zap.SugaredLogger

	mu   sync.RWMutex
	st   ConnectionState
	ch   *peerChannel
	subs subscribers
}

var _ Transport = (*Relay)(nil)

func NewRelay(log *zap.SugaredLogger) *Relay {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Relay{log: log}
}

func (r *Relay) Connect(ctx context.Context, cfg Config) error {
	r.mu.Lock()
	if r.st.IsConnected || r.st.IsConnecting {
		r.mu.Unlock()
		return fmt.Errorf("relay transport already connected")
	}
	code := game.NormalizeCode(cfg.RoomCode)
	r.st = ConnectionState{IsConnecting: true, RoomCode: code}
	r.mu.Unlock()

	err := r.dial(ctx, cfg, code)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.st.IsConnecting = false
	if err != nil {
		r.st.Error = err.Error()
		return err
	}
	r.st.IsConnected = true
	return nil
}

func (r *Relay) dial(ctx context.Context, cfg Config, code string) error {
	base := strings.TrimSuffix(cfg.ServerURL, "/")
	if base == "" {
		return fmt.Errorf("relay server URL is required")
	}
	url := base + "/ws/" + code
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial relay %s: %w", url, err)
	}

	join, err := protocol.New(protocol.TypeJoin, cfg.Player.ID, cfg.Player)
	if err != nil {
		conn.Close()
		return err
	}
	frame, err := protocol.Encode(join)
	if err != nil {
		conn.Close()
		return err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		conn.Close()
		return fmt.Errorf("handshake write: %w", err)
	}

	ch := &peerChannel{id: "server", conn: conn, send: make(chan []byte, peerSendQueue)}
	r.mu.Lock()
	r.ch = ch
	r.mu.Unlock()

	go ch.writePump()
	go r.readPump(ch)
	return nil
}

func (r *Relay) readPump(ch *peerChannel) {
	defer func() {
		ch.close()
		r.mu.Lock()
		if r.ch == ch {
			r.st.IsConnected = false
			if r.st.Error == "" {
				r.st.Error = "connection to server lost"
			}
		}
		r.mu.Unlock()
	}()
	for {
		_, frame, err := ch.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.DecodeFrame(frame)
		if err != nil {
			r.log.Warnf("[relay] dropping bad frame: %v", err)
			continue
		}
		r.subs.publish(msg)
	}
}

func (r *Relay) Send(msg protocol.Message) error {
	r.mu.RLock()
	ch := r.ch
	r.mu.RUnlock()
	if ch == nil {
		return fmt.Errorf("not connected to server")
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case ch.send <- frame:
		return nil
	default:
		return fmt.Errorf("send queue to server full")
	}
}

func (r *Relay) Broadcast(msg protocol.Message, _ string) error {
	// the server fans out; a relay client only ever talks upstream
	return r.Send(msg)
}

func (r *Relay) Subscribe(fn func(protocol.Message)) func() {
	return r.subs.add(fn)
}

func (r *Relay) State() ConnectionState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st
}

func (r *Relay) Disconnect() error {
	r.mu.Lock()
	ch := r.ch
	r.ch = nil
	r.st = ConnectionState{}
	r.mu.Unlock()
	if ch != nil {
		ch.close()
	}
	return nil
}
