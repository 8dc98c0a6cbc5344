package protocol

import (
	"testing"

	"github.com/selam/loto90-backend/game"
)

func TestDecodeDispatchesTypedPayloads(t *testing.T) {
	msg, err := New(TypeMarkCell, "p1", MarkCellPayload{CardID: "c1", Row: 2, Col: 7})
	if err != nil {
		t.Fatal(err)
	}
	frame, err := Encode(msg)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeFrame(frame)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.SenderID != "p1" {
		t.Fatalf("senderId = %q", decoded.SenderID)
	}
	payload, err := decoded.Decode()
	if err != nil {
		t.Fatal(err)
	}
	mark, ok := payload.(MarkCellPayload)
	if !ok {
		t.Fatalf("payload type %T, want MarkCellPayload", payload)
	}
	if mark.CardID != "c1" || mark.Row != 2 || mark.Col != 7 {
		t.Fatalf("payload = %+v", mark)
	}
}

func TestDecodeJoinCarriesPlayerSeed(t *testing.T) {
	msg, err := New(TypeJoin, "p2", game.PlayerSeed{ID: "p2", Name: "Player2", Avatar: "😎"})
	if err != nil {
		t.Fatal(err)
	}
	payload, err := msg.Decode()
	if err != nil {
		t.Fatal(err)
	}
	seed := payload.(JoinPayload)
	if seed.ID != "p2" || seed.Name != "Player2" {
		t.Fatalf("seed = %+v", seed)
	}
}

func TestBareCommandsNeedNoPayload(t *testing.T) {
	for _, typ := range []Type{TypeStart, TypePause, TypeResume, TypeRestart} {
		msg, err := New(typ, "host-1", nil)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := msg.Decode(); err != nil {
			t.Fatalf("%s with empty payload should decode: %v", typ, err)
		}
	}
}

func TestUnknownTypeIsRejected(t *testing.T) {
	msg := Message{Type: "GAME:TELEPORT", SenderID: "p1"}
	if _, err := msg.Decode(); err == nil {
		t.Fatal("unknown type must not decode")
	}
}

func TestOnlySnapshotsAreNoRelay(t *testing.T) {
	if !NoRelay(TypeStateUpdate) {
		t.Fatal("state updates must not be relayed")
	}
	for _, typ := range []Type{TypeMarkCell, TypeClaimWin, TypeChat, TypeJoin, TypeNumberCalled} {
		if NoRelay(typ) {
			t.Fatalf("%s should be relayed", typ)
		}
	}
}
