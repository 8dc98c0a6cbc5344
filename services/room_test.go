package services

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/selam/loto90-backend/game"
	"github.com/selam/loto90-backend/protocol"
)

func newTestServer(t *testing.T) (*RoomManager, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	m := NewRoomManager(nil, zap.NewNop().Sugar())
	r := gin.New()
	r.GET("/ws/:code", HandleWebSocket(m))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return m, srv
}

// wsClient is a minimal relay participant for tests.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
	msgs []protocol.Message
}

func dialRoom(t *testing.T, srv *httptest.Server, code string, seed game.PlayerSeed) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + code
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })

	join, _ := protocol.New(protocol.TypeJoin, seed.ID, seed)
	frame, _ := protocol.Encode(join)
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("handshake: %v", err)
	}

	c := &wsClient{conn: conn}
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msg, err := protocol.DecodeFrame(data); err == nil {
				c.mu.Lock()
				c.msgs = append(c.msgs, msg)
				c.mu.Unlock()
			}
		}
	}()
	return c
}

func (c *wsClient) send(t *testing.T, msg protocol.Message) {
	t.Helper()
	frame, err := protocol.Encode(msg)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatal(err)
	}
}

// latestState returns the newest snapshot the client has received.
func (c *wsClient) latestState() (game.GameState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.msgs) - 1; i >= 0; i-- {
		if c.msgs[i].Type != protocol.TypeStateUpdate {
			continue
		}
		if payload, err := c.msgs[i].Decode(); err == nil {
			return payload.(protocol.StateUpdatePayload), true
		}
	}
	return game.GameState{}, false
}

func (c *wsClient) chatCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, m := range c.msgs {
		if m.Type == protocol.TypeChat {
			n++
		}
	}
	return n
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func manualSettings() game.Settings {
	s := game.DefaultSettings()
	s.AutoCall = false
	return s
}

func TestRoomJoinStartAndSnapshotFlow(t *testing.T) {
	m, srv := newTestServer(t)
	room, err := m.CreateRoom(game.PlayerSeed{ID: "creator", Name: "Creator"}, manualSettings())
	if err != nil {
		t.Fatal(err)
	}
	if len(room.Code) != game.RelayCodeLength {
		t.Fatalf("room code %q has wrong length", room.Code)
	}

	creator := dialRoom(t, srv, room.Code, game.PlayerSeed{ID: "creator", Name: "Creator"})
	waitFor(t, "creator snapshot", func() bool {
		_, ok := creator.latestState()
		return ok
	})

	guest := dialRoom(t, srv, strings.ToLower(room.Code), game.PlayerSeed{ID: "guest", Name: "Guest"})
	waitFor(t, "guest seated", func() bool {
		st, ok := guest.latestState()
		return ok && st.FindPlayer("guest") != nil
	})

	// only the creator may start the match
	start, _ := protocol.New(protocol.TypeStart, "guest", nil)
	guest.send(t, start)
	time.Sleep(100 * time.Millisecond)
	if room.Snapshot().Phase != game.PhaseLobby {
		t.Fatal("guest must not be able to start the match")
	}

	start, _ = protocol.New(protocol.TypeStart, "creator", nil)
	creator.send(t, start)
	waitFor(t, "both clients in playing", func() bool {
		a, okA := creator.latestState()
		b, okB := guest.latestState()
		return okA && okB && a.Phase == game.PhasePlaying && b.Phase == game.PhasePlaying
	})
}

func TestRoomChatReachesEveryone(t *testing.T) {
	m, srv := newTestServer(t)
	room, err := m.CreateRoom(game.PlayerSeed{ID: "creator", Name: "Creator"}, manualSettings())
	if err != nil {
		t.Fatal(err)
	}

	creator := dialRoom(t, srv, room.Code, game.PlayerSeed{ID: "creator", Name: "Creator"})
	guest := dialRoom(t, srv, room.Code, game.PlayerSeed{ID: "guest", Name: "Guest"})
	waitFor(t, "guest seated", func() bool {
		st, ok := guest.latestState()
		return ok && st.FindPlayer("guest") != nil
	})

	chat, _ := protocol.New(protocol.TypeChat, "guest", protocol.ChatPayload{From: "Guest", Text: "hi all"})
	guest.send(t, chat)
	waitFor(t, "chat fan-out", func() bool {
		return creator.chatCount() == 1 && guest.chatCount() == 1
	})
}

func TestRoomRejectsUnknownCodeAndBadHandshake(t *testing.T) {
	m, srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/ZZZZZZ"
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("dial to unknown room should fail the upgrade")
	} else if resp != nil {
		resp.Body.Close()
	}

	// a first frame that is not ROOM:JOIN gets the connection closed
	room, err := m.CreateRoom(game.PlayerSeed{ID: "creator", Name: "Creator"}, manualSettings())
	if err != nil {
		t.Fatal(err)
	}
	url = "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + room.Code
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	chat, _ := protocol.New(protocol.TypeChat, "x", protocol.ChatPayload{From: "x", Text: "hi"})
	frame, _ := protocol.Encode(chat)
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatal(err)
	}
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatal("server should close a connection with a bad handshake")
	}
}

func TestRoomIsRemovedWhenLastClientLeaves(t *testing.T) {
	m, srv := newTestServer(t)
	room, err := m.CreateRoom(game.PlayerSeed{ID: "creator", Name: "Creator"}, manualSettings())
	if err != nil {
		t.Fatal(err)
	}

	client := dialRoom(t, srv, room.Code, game.PlayerSeed{ID: "creator", Name: "Creator"})
	waitFor(t, "client seated", func() bool {
		_, ok := client.latestState()
		return ok
	})
	if m.Count() != 1 {
		t.Fatalf("rooms = %d, want 1", m.Count())
	}

	client.conn.Close()
	waitFor(t, "room teardown", func() bool { return m.Count() == 0 })

	if _, ok := m.Get(room.Code); ok {
		t.Fatal("room still resolvable after teardown")
	}
}

func TestRoomMarkAndClaimThroughTheSocket(t *testing.T) {
	m, srv := newTestServer(t)
	settings := manualSettings()
	settings.AutoCall = true
	settings.AutoCallIntervalMs = 10
	room, err := m.CreateRoom(game.PlayerSeed{ID: "creator", Name: "Creator"}, settings)
	if err != nil {
		t.Fatal(err)
	}

	creator := dialRoom(t, srv, room.Code, game.PlayerSeed{ID: "creator", Name: "Creator"})
	start, _ := protocol.New(protocol.TypeStart, "creator", nil)
	creator.send(t, start)

	// wait for the auto-caller to land a number on the creator's card
	var cardID string
	var row, col int
	waitFor(t, "a called number on the card", func() bool {
		st, ok := creator.latestState()
		if !ok || len(st.CalledNumbers) == 0 {
			return false
		}
		card := st.FindPlayer("creator").Cards[0]
		for _, n := range st.CalledNumbers {
			for r := 0; r < game.CardRows; r++ {
				for c := 0; c < game.CardCols; c++ {
					if card.Grid[r][c].Value == n.Value {
						cardID, row, col = card.ID, r, c
						return true
					}
				}
			}
		}
		return false
	})

	mark, _ := protocol.New(protocol.TypeMarkCell, "creator", protocol.MarkCellPayload{CardID: cardID, Row: row, Col: col})
	creator.send(t, mark)
	waitFor(t, "the mark to apply", func() bool {
		return room.Snapshot().FindPlayer("creator").Cards[0].Grid[row][col].Marked
	})

	// a premature claim is silently ignored
	claim, _ := protocol.New(protocol.TypeClaimWin, "creator", protocol.ClaimWinPayload{CardID: cardID})
	creator.send(t, claim)
	time.Sleep(100 * time.Millisecond)
	if room.Snapshot().Phase == game.PhaseFinished {
		t.Fatal("incomplete card must not win")
	}
}
