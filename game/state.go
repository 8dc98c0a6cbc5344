package game

import (
	"time"
)

// Phase is the lifecycle state of a match.
type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseLobby    Phase = "lobby"
	PhasePlaying  Phase = "playing"
	PhasePaused   Phase = "paused"
	PhaseFinished Phase = "finished"
)

const (
	CardRows      = 3
	CardCols      = 9
	NumbersPerRow = 5
	MaxPerColumn  = 3
	MaxNumber     = 90
)

// Cell is one slot of a card grid. Value 0 means the slot is blank.
type Cell struct {
	Value  int  `json:"value"`
	Marked bool `json:"marked"`
}

// Grid is the fixed 3x9 layout of a Loto card. Being an array type it
// copies by value, which keeps snapshot/mirror state fully detached.
type Grid [CardRows][CardCols]Cell

type LotoCard struct {
	ID       string `json:"id"`
	PlayerID string `json:"playerId"`
	Grid     Grid   `json:"grid"`
}

type Player struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Avatar      string     `json:"avatar"`
	Cards       []LotoCard `json:"cards"`
	IsHost      bool       `json:"isHost"`
	IsConnected bool       `json:"isConnected"`
	Score       int        `json:"score"`
}

type CalledNumber struct {
	Value     int       `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

type Settings struct {
	MaxPlayers         int    `json:"maxPlayers"`
	CardsPerPlayer     int    `json:"cardsPerPlayer"`
	WinMode            string `json:"winMode"`
	AutoCall           bool   `json:"autoCall"`
	AutoCallIntervalMs int    `json:"autoCallIntervalMs"`
}

// DefaultSettings returns the settings used when a caller leaves them zero.
// Speed mode runs a faster call cadence; the predicate itself is classic.
func DefaultSettings() Settings {
	return Settings{
		MaxPlayers:         6,
		CardsPerPlayer:     1,
		WinMode:            ModeClassic,
		AutoCall:           true,
		AutoCallIntervalMs: 5000,
	}
}

func (s Settings) withDefaults() Settings {
	d := DefaultSettings()
	if s.MaxPlayers <= 0 {
		s.MaxPlayers = d.MaxPlayers
	}
	if s.CardsPerPlayer <= 0 {
		s.CardsPerPlayer = d.CardsPerPlayer
	}
	if s.WinMode == "" {
		s.WinMode = d.WinMode
	}
	if s.AutoCallIntervalMs <= 0 {
		s.AutoCallIntervalMs = d.AutoCallIntervalMs
		if s.WinMode == ModeSpeed {
			s.AutoCallIntervalMs = 2000
		}
	}
	return s
}

// GameState is the single authoritative aggregate of a match. Exactly one
// mutable copy exists, on the host; everyone else holds snapshots.
type GameState struct {
	RoomID           string         `json:"roomId"`
	RoomCode         string         `json:"roomCode"`
	Phase            Phase          `json:"phase"`
	Settings         Settings       `json:"settings"`
	Players          []Player       `json:"players"`
	CalledNumbers    []CalledNumber `json:"calledNumbers"`
	CurrentNumber    int            `json:"currentNumber"`
	RemainingNumbers []int          `json:"remainingNumbers"`
	WinnerID         string         `json:"winnerId"`
	HostID           string         `json:"hostId"`
	CreatedAt        time.Time      `json:"createdAt"`
	StartedAt        *time.Time     `json:"startedAt,omitempty"`
}

// Clone returns a deep copy sharing no slices with the receiver.
func (g GameState) Clone() GameState {
	out := g
	out.Players = make([]Player, len(g.Players))
	for i, p := range g.Players {
		cp := p
		cp.Cards = append([]LotoCard(nil), p.Cards...)
		out.Players[i] = cp
	}
	out.CalledNumbers = append([]CalledNumber(nil), g.CalledNumbers...)
	out.RemainingNumbers = append([]int(nil), g.RemainingNumbers...)
	if g.StartedAt != nil {
		t := *g.StartedAt
		out.StartedAt = &t
	}
	return out
}

func (g GameState) playerIndex(id string) int {
	for i := range g.Players {
		if g.Players[i].ID == id {
			return i
		}
	}
	return -1
}

// FindPlayer returns the player with the given id, or nil.
func (g GameState) FindPlayer(id string) *Player {
	if i := g.playerIndex(id); i >= 0 {
		return &g.Players[i]
	}
	return nil
}

// PlayerSeed is the identity a participant brings into a match.
type PlayerSeed struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}
