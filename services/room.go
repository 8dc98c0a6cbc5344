package services

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/selam/loto90-backend/game"
	"github.com/selam/loto90-backend/models"
	"github.com/selam/loto90-backend/protocol"
)

// Room is one relay match. The server itself is the authoritative host:
// it owns the only engine instance, clients are pure intent emitters and
// snapshot renderers.
type Room struct {
	Code   string
	engine *game.Engine
	log    *zap.SugaredLogger
	db     *gorm.DB

	mu      sync.RWMutex
	clients map[string]*Client
	saved   bool

	unsub   func()
	onEmpty func(code string)
}

// NewRoom creates a room with its creator seated as the match host.
func NewRoom(code string, creator game.PlayerSeed, settings game.Settings, db *gorm.DB, log *zap.SugaredLogger) *Room {
	r := &Room{
		Code:    code,
		engine:  game.NewEngine(creator, code, settings),
		log:     log,
		db:      db,
		clients: make(map[string]*Client),
	}
	ch, unsub := r.engine.Subscribe()
	r.unsub = unsub
	go r.run(ch)
	return r
}

// Snapshot exposes the current state for the REST surface.
func (r *Room) Snapshot() game.GameState {
	return r.engine.Snapshot()
}

// run pushes every engine change to every client as a full-state
// snapshot, and persists the match once it finishes.
func (r *Room) run(ch <-chan game.GameState) {
	for snap := range ch {
		r.broadcastSnapshot(snap)
		if snap.Phase == game.PhaseFinished {
			r.persistResult(snap)
		}
	}
}

func (r *Room) broadcastSnapshot(snap game.GameState) {
	msg, err := protocol.New(protocol.TypeStateUpdate, snap.HostID, snap)
	if err != nil {
		r.log.Errorf("[room %s] encode snapshot: %v", r.Code, err)
		return
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return
	}
	r.broadcastFrame(frame, "")
}

func (r *Room) broadcastFrame(frame []byte, excludeID string) {
	r.mu.RLock()
	targets := make([]*Client, 0, len(r.clients))
	for id, c := range r.clients {
		if id != excludeID {
			targets = append(targets, c)
		}
	}
	r.mu.RUnlock()

	for _, c := range targets {
		select {
		case c.send <- frame:
		default:
			r.log.Warnf("[room %s] dropping frame to %s: queue full", r.Code, c.id)
		}
	}
}

// addClient seats the handshaken player and starts the pumps. A rejoin
// with the same id replaces the stale connection.
func (r *Room) addClient(c *Client, seed game.PlayerSeed) {
	if !r.engine.AddPlayer(seed.ID, seed.Name, seed.Avatar) {
		r.engine.SetPlayerConnected(seed.ID, true)
	}

	r.mu.Lock()
	if old, ok := r.clients[c.id]; ok {
		old.Close()
	}
	r.clients[c.id] = c
	total := len(r.clients)
	r.mu.Unlock()

	go c.writePump()
	go c.readPump()

	r.log.Infof("[room %s] player %s joined (total=%d)", r.Code, c.id, total)

	// late joiners need the current state before the next engine change
	r.sendSnapshotTo(c)
}

func (r *Room) sendSnapshotTo(c *Client) {
	snap := r.engine.Snapshot()
	msg, err := protocol.New(protocol.TypeStateUpdate, snap.HostID, snap)
	if err != nil {
		return
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

func (r *Room) removeClient(id string) {
	r.mu.Lock()
	client, ok := r.clients[id]
	if ok {
		delete(r.clients, id)
	}
	empty := len(r.clients) == 0
	r.mu.Unlock()

	if !ok {
		return
	}
	client.Close()
	r.engine.SetPlayerConnected(id, false)

	if empty && r.onEmpty != nil {
		r.onEmpty(r.Code)
	}
}

// dispatch turns a client envelope into the corresponding engine
// command. Match control (start/pause/resume/restart) is reserved for
// the room creator.
func (r *Room) dispatch(c *Client, msg protocol.Message) {
	payload, err := msg.Decode()
	if err != nil {
		r.log.Warnf("[room %s] dropping message from %s: %v", r.Code, c.id, err)
		return
	}

	switch p := payload.(type) {
	case protocol.MarkCellPayload:
		r.engine.MarkCell(c.id, p.CardID, p.Row, p.Col)
	case protocol.ClaimWinPayload:
		if r.engine.ClaimWin(c.id, p.CardID) {
			r.log.Infof("[room %s] player %s wins", r.Code, c.id)
		}
	case protocol.ChatPayload:
		if frame, err := protocol.Encode(msg); err == nil {
			r.broadcastFrame(frame, "")
		}
	case protocol.RestartPayload:
		if r.isCreator(c.id) {
			r.engine.RestartGame(p.NewCards)
		}
	case protocol.JoinPayload:
		// handshake already seated this player
	default:
		switch msg.Type {
		case protocol.TypeStart:
			if r.isCreator(c.id) {
				r.engine.StartGame()
			}
		case protocol.TypePause:
			if r.isCreator(c.id) {
				r.engine.PauseGame()
			}
		case protocol.TypeResume:
			if r.isCreator(c.id) {
				r.engine.ResumeGame()
			}
		}
	}
}

func (r *Room) isCreator(id string) bool {
	return r.engine.Snapshot().HostID == id
}

// persistResult saves the finished match once, when a database is
// configured. Runs async so a slow insert never stalls the room.
func (r *Room) persistResult(snap game.GameState) {
	r.mu.Lock()
	if r.saved || r.db == nil {
		r.mu.Unlock()
		return
	}
	r.saved = true
	r.mu.Unlock()

	go func() {
		numbers := make([]int, len(snap.CalledNumbers))
		for i, n := range snap.CalledNumbers {
			numbers[i] = n.Value
		}
		raw, err := json.Marshal(numbers)
		if err != nil {
			return
		}
		record := models.MatchRecord{
			RoomCode:    snap.RoomCode,
			WinMode:     snap.Settings.WinMode,
			WinnerID:    snap.WinnerID,
			PlayerCount: len(snap.Players),
			NumbersJSON: datatypes.JSON(raw),
			EndedAt:     time.Now(),
		}
		if winner := snap.FindPlayer(snap.WinnerID); winner != nil {
			record.WinnerName = winner.Name
		}
		if snap.StartedAt != nil {
			record.StartedAt = *snap.StartedAt
		}
		if err := r.db.Create(&record).Error; err != nil {
			r.log.Errorf("[room %s] failed to save match record: %v", r.Code, err)
		}
	}()
}

// close tears down the room's engine and connections.
func (r *Room) close() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[string]*Client)
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	if r.unsub != nil {
		r.unsub()
	}
	r.engine.Destroy()
}
