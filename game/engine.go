package game

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine is the host-authoritative rules engine. All mutation happens
// through its commands; every other participant only ever sees snapshots.
// Invalid commands are silent no-ops rather than errors, so a stale or
// over-eager client can never corrupt the match.
//
// Engine satisfies StateSource[GameState]; the subscription stream carries
// detached deep copies.
type Engine struct {
	mu      sync.RWMutex
	state   GameState
	winCond WinCondition

	subs    map[int]chan GameState
	nextSub int

	autoCancel chan struct{}
	destroyed  bool
}

// StateSource is the read side every rules engine exposes: a current
// snapshot and a change stream.
type StateSource[S any] interface {
	Snapshot() S
	Subscribe() (<-chan S, func())
}

var _ StateSource[GameState] = (*Engine)(nil)

// NewEngine initializes a match: one host player with freshly generated
// cards, a shuffled 1..90 pool, phase lobby.
func NewEngine(host PlayerSeed, roomCode string, settings Settings) *Engine {
	settings = settings.withDefaults()
	e := &Engine{
		winCond: WinConditionFor(settings.WinMode),
		subs:    make(map[int]chan GameState),
	}
	e.state = GameState{
		RoomID:   uuid.NewString(),
		RoomCode: NormalizeCode(roomCode),
		Phase:    PhaseLobby,
		Settings: settings,
		Players: []Player{{
			ID:          host.ID,
			Name:        host.Name,
			Avatar:      host.Avatar,
			Cards:       GenerateCards(host.ID, settings.CardsPerPlayer),
			IsHost:      true,
			IsConnected: true,
		}},
		RemainingNumbers: NewNumberPool(),
		HostID:           host.ID,
		CreatedAt:        time.Now(),
	}
	return e
}

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() GameState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Clone()
}

// Subscribe returns a snapshot stream and an unsubscribe func. Slow
// consumers drop intermediate snapshots; the latest one always wins.
func (e *Engine) Subscribe() (<-chan GameState, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan GameState, 8)
	e.subs[id] = ch
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if sub, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(sub)
		}
	}
}

func (e *Engine) notifyLocked() {
	snap := e.state.Clone()
	for _, ch := range e.subs {
		select {
		case ch <- snap:
		default:
			// slow consumer: evict the oldest pending snapshot so the
			// latest one always lands
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// AddPlayer appends a player with fresh cards. No-op when the room is
// full, the phase is not lobby, or the id is already seated.
func (e *Engine) AddPlayer(id, name, avatar string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase != PhaseLobby {
		return false
	}
	if len(e.state.Players) >= e.state.Settings.MaxPlayers {
		return false
	}
	if e.state.playerIndex(id) >= 0 {
		return false
	}
	e.state.Players = append(e.state.Players, Player{
		ID:          id,
		Name:        name,
		Avatar:      avatar,
		Cards:       GenerateCards(id, e.state.Settings.CardsPerPlayer),
		IsConnected: true,
	})
	e.notifyLocked()
	return true
}

// StartGame moves lobby -> playing and starts auto-calling when enabled.
func (e *Engine) StartGame() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase != PhaseLobby {
		return false
	}
	now := time.Now()
	e.state.Phase = PhasePlaying
	e.state.StartedAt = &now
	if e.state.Settings.AutoCall {
		e.startAutoCallLocked()
	}
	e.notifyLocked()
	return true
}

// CallNextNumber pops the head of the shuffled pool. Each of the 90
// values is drawn at most once per match by construction.
func (e *Engine) CallNextNumber() (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase != PhasePlaying || len(e.state.RemainingNumbers) == 0 {
		return 0, false
	}
	n := e.state.RemainingNumbers[0]
	e.state.RemainingNumbers = e.state.RemainingNumbers[1:]
	e.state.CalledNumbers = append(e.state.CalledNumbers, CalledNumber{
		Value:     n,
		Timestamp: time.Now(),
	})
	e.state.CurrentNumber = n
	e.notifyLocked()
	return n, true
}

// MarkCell toggles the marked flag of a cell, only when the cell holds a
// number that has already been called. Marking an uncalled number, a
// blank cell or an unknown card/player changes nothing.
func (e *Engine) MarkCell(playerID, cardID string, row, col int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if row < 0 || row >= CardRows || col < 0 || col >= CardCols {
		return false
	}
	pi := e.state.playerIndex(playerID)
	if pi < 0 {
		return false
	}
	player := e.state.Players[pi]
	for ci, card := range player.Cards {
		if card.ID != cardID {
			continue
		}
		cell := card.Grid[row][col]
		if cell.Value == 0 || !e.isCalledLocked(cell.Value) {
			return false
		}
		// Grid is an array type: card is already a detached copy,
		// so this is a replace, not an in-place mutation.
		card.Grid[row][col].Marked = !cell.Marked
		cards := append([]LotoCard(nil), player.Cards...)
		cards[ci] = card
		e.state.Players[pi].Cards = cards
		e.notifyLocked()
		return true
	}
	return false
}

func (e *Engine) isCalledLocked(value int) bool {
	for _, n := range e.state.CalledNumbers {
		if n.Value == value {
			return true
		}
	}
	return false
}

// ClaimWin validates the claim against the active win condition. The
// phase guard makes the finished transition a compare-and-set: the first
// valid claim wins and any later claim is rejected.
func (e *Engine) ClaimWin(playerID, cardID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase != PhasePlaying {
		return false
	}
	pi := e.state.playerIndex(playerID)
	if pi < 0 {
		return false
	}
	for _, card := range e.state.Players[pi].Cards {
		if card.ID != cardID {
			continue
		}
		if !e.winCond.Check(card, e.state.CalledNumbers) {
			return false
		}
		e.stopAutoCallLocked()
		e.state.Phase = PhaseFinished
		e.state.WinnerID = playerID
		e.state.Players[pi].Score++
		e.notifyLocked()
		return true
	}
	return false
}

// PauseGame stops auto-calling; playing -> paused.
func (e *Engine) PauseGame() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase != PhasePlaying {
		return false
	}
	e.stopAutoCallLocked()
	e.state.Phase = PhasePaused
	e.notifyLocked()
	return true
}

// ResumeGame restarts auto-calling; paused -> playing.
func (e *Engine) ResumeGame() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.Phase != PhasePaused {
		return false
	}
	e.state.Phase = PhasePlaying
	if e.state.Settings.AutoCall {
		e.startAutoCallLocked()
	}
	e.notifyLocked()
	return true
}

// RestartGame returns to lobby with a fresh pool and cleared calls and
// winner. Players keep their seats and score. Cards survive unless the
// caller asks for new ones.
func (e *Engine) RestartGame(newCards bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopAutoCallLocked()
	e.state.Phase = PhaseLobby
	e.state.RemainingNumbers = NewNumberPool()
	e.state.CalledNumbers = nil
	e.state.CurrentNumber = 0
	e.state.WinnerID = ""
	e.state.StartedAt = nil
	if newCards {
		for i := range e.state.Players {
			p := &e.state.Players[i]
			p.Cards = GenerateCards(p.ID, e.state.Settings.CardsPerPlayer)
		}
	}
	e.notifyLocked()
}

// SetPlayerConnected flags a player's liveness. A departing player keeps
// cards, score and seat so a rejoin with the same id resumes cleanly.
func (e *Engine) SetPlayerConnected(id string, connected bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	pi := e.state.playerIndex(id)
	if pi < 0 || e.state.Players[pi].IsConnected == connected {
		return false
	}
	e.state.Players[pi].IsConnected = connected
	e.notifyLocked()
	return true
}

// Destroy cancels the auto-call timer and closes all subscriptions.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.destroyed = true
	e.stopAutoCallLocked()
	for id, ch := range e.subs {
		delete(e.subs, id)
		close(ch)
	}
}

// startAutoCallLocked cancels any running timer before creating the next
// one, so at most one timer exists per engine.
func (e *Engine) startAutoCallLocked() {
	e.stopAutoCallLocked()
	cancel := make(chan struct{})
	e.autoCancel = cancel
	interval := time.Duration(e.state.Settings.AutoCallIntervalMs) * time.Millisecond
	go func() {
		for {
			select {
			case <-cancel:
				return
			case <-time.After(interval):
				if _, ok := e.CallNextNumber(); !ok {
					return
				}
			}
		}
	}()
}

func (e *Engine) stopAutoCallLocked() {
	if e.autoCancel != nil {
		close(e.autoCancel)
		e.autoCancel = nil
	}
}
