// Package protocol defines the wire envelope shared by every transport.
// The envelope is opaque to transports; only the engine side interprets
// payloads, through a closed set of typed variants.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/selam/loto90-backend/game"
)

// Type tags a message with its payload variant.
type Type string

const (
	TypePlayerConnected    Type = "SYSTEM:PLAYER_CONNECTED"
	TypePlayerDisconnected Type = "SYSTEM:PLAYER_DISCONNECTED"
	TypeStateUpdate        Type = "GAME:STATE_UPDATE"
	TypeNumberCalled       Type = "GAME:NUMBER_CALLED"
	TypeMarkCell           Type = "GAME:MARK_CELL"
	TypeClaimWin           Type = "GAME:CLAIM_WIN"
	TypeStart              Type = "GAME:START"
	TypePause              Type = "GAME:PAUSE"
	TypeResume             Type = "GAME:RESUME"
	TypeRestart            Type = "GAME:RESTART"
	TypeJoin               Type = "ROOM:JOIN"
	TypeChat               Type = "ROOM:CHAT"
)

// Message is the transport envelope. SenderID carries the player id of
// the originator, not any transport-level channel id.
type Message struct {
	Type      Type            `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	SenderID  string          `json:"senderId"`
	Timestamp time.Time       `json:"timestamp"`
}

// Payload variants, one per Type. TypeStart/Pause/Resume/Restart carry
// no payload; TypeRestart optionally carries RestartPayload.
type (
	// PlayerConnectedPayload is the full player record of a joiner.
	PlayerConnectedPayload = game.Player

	PlayerDisconnectedPayload struct {
		ID string `json:"id"`
	}

	// StateUpdatePayload is the full authoritative snapshot; mirrors
	// replace their state with it wholesale.
	StateUpdatePayload = game.GameState

	NumberCalledPayload struct {
		Value int `json:"value"`
	}

	MarkCellPayload struct {
		CardID string `json:"cardId"`
		Row    int    `json:"row"`
		Col    int    `json:"col"`
	}

	ClaimWinPayload struct {
		CardID string `json:"cardId"`
	}

	RestartPayload struct {
		NewCards bool `json:"newCards"`
	}

	// JoinPayload is the handshake metadata a joiner presents.
	JoinPayload = game.PlayerSeed

	ChatPayload struct {
		From string `json:"from"`
		Text string `json:"text"`
	}
)

// New builds an envelope, marshaling the payload. A nil payload is legal
// for the bare command types.
func New(t Type, senderID string, payload any) (Message, error) {
	m := Message{Type: t, SenderID: senderID, Timestamp: time.Now()}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("encode %s payload: %w", t, err)
		}
		m.Payload = raw
	}
	return m, nil
}

// Decode returns the typed payload value for the envelope's tag. Unknown
// tags and malformed payloads return an error; no message ever carries
// an untyped payload past this point.
func (m Message) Decode() (any, error) {
	switch m.Type {
	case TypePlayerConnected:
		return decodeAs[PlayerConnectedPayload](m)
	case TypePlayerDisconnected:
		return decodeAs[PlayerDisconnectedPayload](m)
	case TypeStateUpdate:
		return decodeAs[StateUpdatePayload](m)
	case TypeNumberCalled:
		return decodeAs[NumberCalledPayload](m)
	case TypeMarkCell:
		return decodeAs[MarkCellPayload](m)
	case TypeClaimWin:
		return decodeAs[ClaimWinPayload](m)
	case TypeJoin:
		return decodeAs[JoinPayload](m)
	case TypeChat:
		return decodeAs[ChatPayload](m)
	case TypeRestart:
		if len(m.Payload) == 0 {
			return RestartPayload{}, nil
		}
		return decodeAs[RestartPayload](m)
	case TypeStart, TypePause, TypeResume:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}
}

func decodeAs[P any](m Message) (P, error) {
	var p P
	if err := json.Unmarshal(m.Payload, &p); err != nil {
		return p, fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return p, nil
}

// NoRelay reports whether a host must not re-broadcast an inbound
// message of this type. State snapshots are private host-to-peer
// traffic and are never relayed.
func NoRelay(t Type) bool {
	return t == TypeStateUpdate
}

// Encode marshals the envelope for the wire.
func Encode(m Message) ([]byte, error) {
	return json.Marshal(m)
}

// DecodeFrame unmarshals a wire frame into an envelope.
func DecodeFrame(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("decode frame: %w", err)
	}
	return m, nil
}
