package game

import (
	"math/rand"
	"strings"
)

// Peer rooms use a short code from a 24-letter alphabet with the easily
// confused I and O left out. Relay rooms use a longer alphanumeric code.
const (
	peerCodeAlphabet  = "ABCDEFGHJKLMNPQRSTUVWXYZ"
	relayCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

	PeerCodeLength  = 4
	RelayCodeLength = 6
)

func randomCode(alphabet string, length int) string {
	var b strings.Builder
	for i := 0; i < length; i++ {
		b.WriteByte(alphabet[rand.Intn(len(alphabet))])
	}
	return b.String()
}

// NewPeerRoomCode returns a 4-character peer-mesh room code.
func NewPeerRoomCode() string {
	return randomCode(peerCodeAlphabet, PeerCodeLength)
}

// NewRelayRoomCode returns a 6-character relay room code.
func NewRelayRoomCode() string {
	return randomCode(relayCodeAlphabet, RelayCodeLength)
}

// NormalizeCode uppercases and trims a code as entered by a player.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
