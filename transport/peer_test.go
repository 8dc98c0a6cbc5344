package transport

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/selam/loto90-backend/game"
	"github.com/selam/loto90-backend/protocol"
)

// inbox collects messages from a transport subscription.
type inbox struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (in *inbox) collect(msg protocol.Message) {
	in.mu.Lock()
	in.msgs = append(in.msgs, msg)
	in.mu.Unlock()
}

func (in *inbox) count(typ protocol.Type) int {
	in.mu.Lock()
	defer in.mu.Unlock()
	n := 0
	for _, m := range in.msgs {
		if m.Type == typ {
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

func startMesh(t *testing.T) (host, joinerA, joinerB *Peer, hostIn, aIn, bIn *inbox) {
	t.Helper()
	code := game.NewPeerRoomCode()
	ctx := context.Background()

	host = NewPeer(nil)
	hostIn = &inbox{}
	host.Subscribe(hostIn.collect)
	if err := host.Connect(ctx, Config{RoomCode: code, Host: true,
		Player: game.PlayerSeed{ID: "host-1", Name: "Host"}}); err != nil {
		t.Fatalf("host connect: %v", err)
	}
	t.Cleanup(func() { host.Disconnect() })

	joinerA = NewPeer(nil)
	aIn = &inbox{}
	joinerA.Subscribe(aIn.collect)
	if err := joinerA.Connect(ctx, Config{RoomCode: code,
		Player: game.PlayerSeed{ID: "pa", Name: "Anna"}}); err != nil {
		t.Fatalf("joiner A connect: %v", err)
	}
	t.Cleanup(func() { joinerA.Disconnect() })

	joinerB = NewPeer(nil)
	bIn = &inbox{}
	joinerB.Subscribe(bIn.collect)
	if err := joinerB.Connect(ctx, Config{RoomCode: code,
		Player: game.PlayerSeed{ID: "pb", Name: "Ben"}}); err != nil {
		t.Fatalf("joiner B connect: %v", err)
	}
	t.Cleanup(func() { joinerB.Disconnect() })

	waitFor(t, "both handshakes", func() bool {
		return hostIn.count(protocol.TypePlayerConnected) == 2
	})
	return
}

func TestPeerHandshakeEmitsPlayerConnected(t *testing.T) {
	_, _, _, hostIn, _, _ := startMesh(t)

	hostIn.mu.Lock()
	defer hostIn.mu.Unlock()
	ids := make(map[string]bool)
	for _, m := range hostIn.msgs {
		if m.Type != protocol.TypePlayerConnected {
			continue
		}
		payload, err := m.Decode()
		if err != nil {
			t.Fatal(err)
		}
		player := payload.(protocol.PlayerConnectedPayload)
		ids[player.ID] = true
		if !player.IsConnected {
			t.Fatalf("player %s connected event not marked connected", player.ID)
		}
	}
	if !ids["pa"] || !ids["pb"] {
		t.Fatalf("host registered %v, want pa and pb from handshake metadata", ids)
	}
}

func TestPeerHostRelaysToAllButSender(t *testing.T) {
	_, joinerA, _, hostIn, aIn, bIn := startMesh(t)

	chat, _ := protocol.New(protocol.TypeChat, "pa", protocol.ChatPayload{From: "Anna", Text: "hello"})
	if err := joinerA.Send(chat); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "host delivery", func() bool { return hostIn.count(protocol.TypeChat) == 1 })
	waitFor(t, "relay to B", func() bool { return bIn.count(protocol.TypeChat) == 1 })

	// the sender's own channel must never see the relayed copy
	time.Sleep(100 * time.Millisecond)
	if n := aIn.count(protocol.TypeChat); n != 0 {
		t.Fatalf("sender received %d relayed copies of its own message", n)
	}
}

func TestPeerSnapshotsAreNeverRelayed(t *testing.T) {
	_, joinerA, _, hostIn, _, bIn := startMesh(t)

	snap, _ := protocol.New(protocol.TypeStateUpdate, "pa", game.GameState{RoomCode: "ABCD"})
	if err := joinerA.Send(snap); err != nil {
		t.Fatal(err)
	}

	waitFor(t, "host delivery", func() bool { return hostIn.count(protocol.TypeStateUpdate) == 1 })
	time.Sleep(100 * time.Millisecond)
	if n := bIn.count(protocol.TypeStateUpdate); n != 0 {
		t.Fatalf("snapshot was relayed %d times", n)
	}
}

func TestPeerHostBroadcastReachesJoiners(t *testing.T) {
	host, _, _, _, aIn, bIn := startMesh(t)

	update, _ := protocol.New(protocol.TypeStateUpdate, "host-1", game.GameState{RoomCode: "ABCD"})
	if err := host.Broadcast(update, ""); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "A snapshot", func() bool { return aIn.count(protocol.TypeStateUpdate) == 1 })
	waitFor(t, "B snapshot", func() bool { return bIn.count(protocol.TypeStateUpdate) == 1 })

	// exclusion skips the named peer
	called, _ := protocol.New(protocol.TypeNumberCalled, "host-1", protocol.NumberCalledPayload{Value: 42})
	if err := host.Broadcast(called, "pa"); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "B call", func() bool { return bIn.count(protocol.TypeNumberCalled) == 1 })
	time.Sleep(100 * time.Millisecond)
	if n := aIn.count(protocol.TypeNumberCalled); n != 0 {
		t.Fatalf("excluded peer received %d copies", n)
	}
}

func TestPeerDisconnectEmitsPlayerDisconnected(t *testing.T) {
	_, joinerA, _, hostIn, _, _ := startMesh(t)

	if err := joinerA.Disconnect(); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "disconnect event", func() bool {
		return hostIn.count(protocol.TypePlayerDisconnected) >= 1
	})
	if st := joinerA.State(); st.IsConnected || st.RoomCode != "" {
		t.Fatalf("joiner state not reset: %+v", st)
	}
}

func TestRendezvousPortIsDeterministic(t *testing.T) {
	a := RendezvousPort(PeerNamespace, "abqr")
	b := RendezvousPort(PeerNamespace, "ABQR")
	if a != b {
		t.Fatal("port must not depend on code casing")
	}
	if a < rendezvousBasePort || a >= rendezvousBasePort+rendezvousPortRange {
		t.Fatalf("port %d outside rendezvous range", a)
	}
}
