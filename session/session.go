// Package session binds one rules engine instance to one active
// transport per match. Local intents become either direct engine calls
// (when the local participant is host) or outbound envelopes; incoming
// state is republished to subscribers.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/selam/loto90-backend/game"
	"github.com/selam/loto90-backend/protocol"
	"github.com/selam/loto90-backend/transport"
)

// Feedback carries the out-of-scope collaborator hooks (audio, haptics).
// Nil callbacks are skipped.
type Feedback struct {
	OnNumberCalled func(value int)
	OnWin          func(playerID string)
	OnChat         func(from, text string)
}

// Options configures a session. Engine must be set when hosting and nil
// otherwise; a non-host session is a pure mirror of host snapshots.
type Options struct {
	Self     game.PlayerSeed
	Engine   *game.Engine
	Feedback Feedback
	Logger   *zap.SugaredLogger
}

type Session struct {
	self   game.PlayerSeed
	engine *game.Engine
	tr     transport.Transport
	fb     Feedback
	log    *zap.SugaredLogger

	mu      sync.RWMutex
	mirror  game.GameState
	subs    map[int]chan game.GameState
	nextSub int

	lastNumber int
	lastPhase  game.Phase

	unsubTransport func()
	unsubEngine    func()
	engineDone     chan struct{}
	closed         bool
}

// New wires a session to its transport. Start must be called before use.
func New(tr transport.Transport, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Session{
		self:   opts.Self,
		engine: opts.Engine,
		tr:     tr,
		fb:     opts.Feedback,
		log:    log,
		subs:   make(map[int]chan game.GameState),
	}
}

// NewSolo builds a complete solo match: a loopback transport and a local
// engine, already connected and started.
func NewSolo(self game.PlayerSeed, settings game.Settings, fb Feedback, log *zap.SugaredLogger) *Session {
	engine := game.NewEngine(self, game.NewPeerRoomCode(), settings)
	tr := transport.NewLoopback()
	_ = tr.Connect(context.Background(), transport.Config{
		RoomCode: engine.Snapshot().RoomCode,
		Host:     true,
		Player:   self,
	})
	s := New(tr, Options{Self: self, Engine: engine, Feedback: fb, Logger: log})
	s.Start()
	return s
}

// IsHost reports whether the local participant runs the engine.
func (s *Session) IsHost() bool {
	return s.engine != nil
}

// Start subscribes to the transport and, when hosting, to the engine's
// change stream.
func (s *Session) Start() {
	s.unsubTransport = s.tr.Subscribe(s.handleMessage)
	if s.engine == nil {
		return
	}
	ch, unsub := s.engine.Subscribe()
	s.unsubEngine = unsub
	s.engineDone = make(chan struct{})
	s.mirror = s.engine.Snapshot()
	s.lastPhase = s.mirror.Phase
	go func() {
		defer close(s.engineDone)
		for snap := range ch {
			s.publishSnapshot(snap)
			s.broadcastSnapshot(snap)
		}
	}()
}

// broadcastSnapshot replicates the authoritative state to every remote
// participant. Full snapshots, not deltas: the state is small and a
// replace-wholesale mirror makes message reordering harmless.
func (s *Session) broadcastSnapshot(snap game.GameState) {
	msg, err := protocol.New(protocol.TypeStateUpdate, s.self.ID, snap)
	if err != nil {
		s.log.Errorf("[session] encode snapshot: %v", err)
		return
	}
	if err := s.tr.Broadcast(msg, ""); err != nil {
		s.log.Warnf("[session] broadcast snapshot: %v", err)
	}
	if snap.CurrentNumber != 0 && snap.CurrentNumber != s.lastBroadcastNumber() {
		s.setLastBroadcastNumber(snap.CurrentNumber)
		if called, err := protocol.New(protocol.TypeNumberCalled, s.self.ID,
			protocol.NumberCalledPayload{Value: snap.CurrentNumber}); err == nil {
			_ = s.tr.Broadcast(called, "")
		}
	}
}

func (s *Session) lastBroadcastNumber() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastNumber
}

func (s *Session) setLastBroadcastNumber(n int) {
	s.mu.Lock()
	s.lastNumber = n
	s.mu.Unlock()
}

// publishSnapshot updates the local mirror, fans out to subscribers and
// fires feedback on the transitions it detects.
func (s *Session) publishSnapshot(snap game.GameState) {
	s.mu.Lock()
	prevNumber := s.mirror.CurrentNumber
	prevPhase := s.lastPhase
	s.mirror = snap
	s.lastPhase = snap.Phase
	chans := make([]chan game.GameState, 0, len(s.subs))
	for _, ch := range s.subs {
		chans = append(chans, ch)
	}
	s.mu.Unlock()

	for _, ch := range chans {
		select {
		case ch <- snap:
		default:
		}
	}

	if s.fb.OnNumberCalled != nil && snap.CurrentNumber != 0 && snap.CurrentNumber != prevNumber {
		s.fb.OnNumberCalled(snap.CurrentNumber)
	}
	if s.fb.OnWin != nil && snap.Phase == game.PhaseFinished && prevPhase != game.PhaseFinished {
		s.fb.OnWin(snap.WinnerID)
	}
}

// handleMessage dispatches inbound envelopes. On the host, intents turn
// into engine commands; on a mirror, snapshots replace local state.
func (s *Session) handleMessage(msg protocol.Message) {
	payload, err := msg.Decode()
	if err != nil {
		s.log.Warnf("[session] dropping message: %v", err)
		return
	}

	if s.engine == nil {
		switch p := payload.(type) {
		case protocol.StateUpdatePayload:
			s.publishSnapshot(p)
		case protocol.NumberCalledPayload:
			// feedback fires from the snapshot diff; nothing extra here
		case protocol.ChatPayload:
			if s.fb.OnChat != nil {
				s.fb.OnChat(p.From, p.Text)
			}
		}
		return
	}

	switch p := payload.(type) {
	case protocol.PlayerConnectedPayload:
		if !s.engine.AddPlayer(p.ID, p.Name, p.Avatar) {
			// rejoin of a seated player
			s.engine.SetPlayerConnected(p.ID, true)
		}
	case protocol.JoinPayload:
		if !s.engine.AddPlayer(p.ID, p.Name, p.Avatar) {
			s.engine.SetPlayerConnected(p.ID, true)
		}
	case protocol.PlayerDisconnectedPayload:
		s.engine.SetPlayerConnected(p.ID, false)
	case protocol.MarkCellPayload:
		s.engine.MarkCell(msg.SenderID, p.CardID, p.Row, p.Col)
	case protocol.ClaimWinPayload:
		s.engine.ClaimWin(msg.SenderID, p.CardID)
	case protocol.ChatPayload:
		if s.fb.OnChat != nil {
			s.fb.OnChat(p.From, p.Text)
		}
	case protocol.RestartPayload:
		if msg.SenderID == s.hostID() {
			s.engine.RestartGame(p.NewCards)
		}
	default:
		switch msg.Type {
		case protocol.TypeStart:
			if msg.SenderID == s.hostID() {
				s.engine.StartGame()
			}
		case protocol.TypePause:
			if msg.SenderID == s.hostID() {
				s.engine.PauseGame()
			}
		case protocol.TypeResume:
			if msg.SenderID == s.hostID() {
				s.engine.ResumeGame()
			}
		}
	}
}

func (s *Session) hostID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mirror.HostID
}

// State returns the current snapshot: authoritative when hosting, the
// last received mirror otherwise.
func (s *Session) State() game.GameState {
	if s.engine != nil {
		return s.engine.Snapshot()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mirror.Clone()
}

// Subscribe returns a state snapshot stream and an unsubscribe func.
func (s *Session) Subscribe() (<-chan game.GameState, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan game.GameState, 8)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// MarkCell routes a local mark intent.
func (s *Session) MarkCell(cardID string, row, col int) {
	if s.engine != nil {
		s.engine.MarkCell(s.self.ID, cardID, row, col)
		return
	}
	s.sendIntent(protocol.TypeMarkCell, protocol.MarkCellPayload{CardID: cardID, Row: row, Col: col})
}

// ClaimWin routes a local win claim.
func (s *Session) ClaimWin(cardID string) {
	if s.engine != nil {
		s.engine.ClaimWin(s.self.ID, cardID)
		return
	}
	s.sendIntent(protocol.TypeClaimWin, protocol.ClaimWinPayload{CardID: cardID})
}

// StartGame starts the match (host) or asks the host to.
func (s *Session) StartGame() {
	if s.engine != nil {
		s.engine.StartGame()
		return
	}
	s.sendIntent(protocol.TypeStart, nil)
}

func (s *Session) PauseGame() {
	if s.engine != nil {
		s.engine.PauseGame()
		return
	}
	s.sendIntent(protocol.TypePause, nil)
}

func (s *Session) ResumeGame() {
	if s.engine != nil {
		s.engine.ResumeGame()
		return
	}
	s.sendIntent(protocol.TypeResume, nil)
}

func (s *Session) RestartGame(newCards bool) {
	if s.engine != nil {
		s.engine.RestartGame(newCards)
		return
	}
	s.sendIntent(protocol.TypeRestart, protocol.RestartPayload{NewCards: newCards})
}

// CallNextNumber is a host-only manual call for matches without
// auto-calling.
func (s *Session) CallNextNumber() (int, bool) {
	if s.engine == nil {
		return 0, false
	}
	return s.engine.CallNextNumber()
}

// SendChat emits a chat line to the room.
func (s *Session) SendChat(text string) {
	msg, err := protocol.New(protocol.TypeChat, s.self.ID,
		protocol.ChatPayload{From: s.self.Name, Text: text})
	if err != nil {
		return
	}
	if s.engine != nil {
		_ = s.tr.Broadcast(msg, "")
		return
	}
	_ = s.tr.Send(msg)
}

func (s *Session) sendIntent(t protocol.Type, payload any) {
	msg, err := protocol.New(t, s.self.ID, payload)
	if err != nil {
		s.log.Errorf("[session] encode %s: %v", t, err)
		return
	}
	if err := s.tr.Send(msg); err != nil {
		s.log.Warnf("[session] send %s: %v", t, err)
	}
}

// ConnectionState surfaces the transport status for UI consumers.
func (s *Session) ConnectionState() transport.ConnectionState {
	return s.tr.State()
}

// Close tears the match down: transport disconnect plus engine destroy.
// No in-flight command is resumable afterward.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.unsubTransport != nil {
		s.unsubTransport()
	}
	err := s.tr.Disconnect()
	if s.engine != nil {
		s.engine.Destroy()
		if s.engineDone != nil {
			<-s.engineDone
		}
	}

	s.mu.Lock()
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
	s.mu.Unlock()
	return err
}
