package transport

import (
	"context"
	"fmt"
	"hash/fnv"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/selam/loto90-backend/game"
	"github.com/selam/loto90-backend/protocol"
)

// PeerNamespace prefixes every rendezvous identity so different builds
// sharing a network never collide on a room code.
const PeerNamespace = "loto90"

const (
	rendezvousBasePort  = 42000
	rendezvousPortRange = 1000

	peerWriteWait = 10 * time.Second
	peerSendQueue = 32
)

// RendezvousPort derives the host's listen port from the room identity.
// Joiners can locate a host from nothing but the room code, without a
// discovery server.
func RendezvousPort(namespace, roomCode string) int {
	h := fnv.New32a()
	h.Write([]byte(namespace + "-" + game.NormalizeCode(roomCode)))
	return rendezvousBasePort + int(h.Sum32()%rendezvousPortRange)
}

// HostPeerID is the deterministic connection identity of the room host.
func HostPeerID(namespace, roomCode string) string {
	return namespace + "-" + game.NormalizeCode(roomCode)
}

// JoinerPeerID is the connection identity of a joining peer.
func JoinerPeerID(namespace, roomCode, playerID string) string {
	return HostPeerID(namespace, roomCode) + "-" + shortID(playerID)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// peerChannel is one reliable, ordered data channel to a remote peer,
// with the usual buffered-send write pump.
type peerChannel struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *peerChannel) close() {
	c.once.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

func (c *peerChannel) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(peerWriteWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

// Peer is the peer-to-peer transport: a full mesh emulated over a star
// topology. The host accepts one channel per joiner and relays every
// inbound envelope to all other channels except its sender; private
// snapshot traffic is never relayed.
type Peer struct {
	log *zap.SugaredLogger

	mu     sync.RWMutex
	st     ConnectionState
	peerID string
	cfg    Config

	// host side
	server   *http.Server
	channels map[string]*peerChannel

	// joiner side
	hostCh *peerChannel

	subs subscribers
}

var _ Transport = (*Peer)(nil)

func NewPeer(log *zap.SugaredLogger) *Peer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Peer{log: log}
}

func (p *Peer) Connect(ctx context.Context, cfg Config) error {
	p.mu.Lock()
	if p.st.IsConnected || p.st.IsConnecting {
		p.mu.Unlock()
		return fmt.Errorf("peer transport already connected")
	}
	cfg.RoomCode = game.NormalizeCode(cfg.RoomCode)
	p.cfg = cfg
	p.st = ConnectionState{IsConnecting: true, IsHost: cfg.Host, RoomCode: cfg.RoomCode}
	p.mu.Unlock()

	var err error
	if cfg.Host {
		err = p.listen(cfg)
	} else {
		err = p.dial(ctx, cfg)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.st.IsConnecting = false
	if err != nil {
		p.st.Error = err.Error()
		return err
	}
	p.st.IsConnected = true
	return nil
}

// listen starts the host side: a websocket endpoint on the rendezvous
// port, one channel per accepted joiner.
func (p *Peer) listen(cfg Config) error {
	port := RendezvousPort(PeerNamespace, cfg.RoomCode)
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("host listen on rendezvous port %d: %w", port, err)
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			p.log.Warnf("[peer %s] upgrade error: %v", cfg.RoomCode, err)
			return
		}
		p.acceptChannel(conn)
	})

	server := &http.Server{Handler: mux}
	p.mu.Lock()
	p.server = server
	p.channels = make(map[string]*peerChannel)
	p.peerID = HostPeerID(PeerNamespace, cfg.RoomCode)
	p.mu.Unlock()

	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			p.mu.Lock()
			p.st.Error = err.Error()
			p.mu.Unlock()
			p.log.Errorf("[peer %s] server stopped: %v", cfg.RoomCode, err)
		}
	}()
	p.log.Infof("[peer %s] hosting on port %d", cfg.RoomCode, port)
	return nil
}

// acceptChannel performs the host side of the handshake: the first frame
// must be a ROOM:JOIN envelope carrying the joiner's player metadata.
// The remote is registered under the metadata id, falling back to a
// generated channel id when the metadata is incomplete.
func (p *Peer) acceptChannel(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(peerWriteWait))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	msg, err := protocol.DecodeFrame(frame)
	if err != nil || msg.Type != protocol.TypeJoin {
		p.log.Warnf("[peer] rejecting channel: bad handshake")
		conn.Close()
		return
	}
	var player game.PlayerSeed
	if seed, err := msg.Decode(); err == nil {
		player = seed.(protocol.JoinPayload)
	}
	id := player.ID
	if id == "" {
		id = uuid.NewString()
	}

	ch := &peerChannel{id: id, conn: conn, send: make(chan []byte, peerSendQueue)}
	p.mu.Lock()
	if old, ok := p.channels[id]; ok {
		old.close()
	}
	p.channels[id] = ch
	p.mu.Unlock()

	go ch.writePump()
	go p.hostReadPump(ch)

	p.log.Infof("[peer] channel open: %s (%s)", id, player.Name)
	if connected, err := protocol.New(protocol.TypePlayerConnected, id, game.Player{
		ID:          id,
		Name:        player.Name,
		Avatar:      player.Avatar,
		IsConnected: true,
	}); err == nil {
		p.subs.publish(connected)
	}
}

// hostReadPump delivers inbound envelopes locally, then relays them to
// every other channel except the sender.
func (p *Peer) hostReadPump(ch *peerChannel) {
	defer func() {
		p.dropChannel(ch)
	}()
	for {
		_, frame, err := ch.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.DecodeFrame(frame)
		if err != nil {
			p.log.Warnf("[peer] dropping bad frame from %s: %v", ch.id, err)
			continue
		}
		p.subs.publish(msg)
		if !protocol.NoRelay(msg.Type) {
			p.fanOut(frame, ch.id)
		}
	}
}

func (p *Peer) fanOut(frame []byte, excludeID string) {
	p.mu.RLock()
	targets := make([]*peerChannel, 0, len(p.channels))
	for id, ch := range p.channels {
		if id != excludeID {
			targets = append(targets, ch)
		}
	}
	p.mu.RUnlock()
	for _, ch := range targets {
		select {
		case ch.send <- frame:
		default:
			p.log.Warnf("[peer] dropping frame to %s: queue full", ch.id)
		}
	}
}

func (p *Peer) dropChannel(ch *peerChannel) {
	p.mu.Lock()
	if cur, ok := p.channels[ch.id]; ok && cur == ch {
		delete(p.channels, ch.id)
	}
	p.mu.Unlock()
	ch.close()
	p.log.Infof("[peer] channel closed: %s", ch.id)
	if disconnected, err := protocol.New(protocol.TypePlayerDisconnected, ch.id,
		protocol.PlayerDisconnectedPayload{ID: ch.id}); err == nil {
		p.subs.publish(disconnected)
	}
}

// dial connects a joiner to the room host and sends the player metadata
// as the handshake frame.
func (p *Peer) dial(ctx context.Context, cfg Config) error {
	addr := cfg.HostAddr
	if addr == "" {
		addr = "127.0.0.1"
	}
	port := RendezvousPort(PeerNamespace, cfg.RoomCode)
	url := fmt.Sprintf("ws://%s:%d/", addr, port)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial host %s: %w", url, err)
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

	ch := &peerChannel{
		id:   HostPeerID(PeerNamespace, cfg.RoomCode),
		conn: conn,
		send: make(chan []byte, peerSendQueue),
	}
	p.mu.Lock()
	p.hostCh = ch
	p.peerID = JoinerPeerID(PeerNamespace, cfg.RoomCode, cfg.Player.ID)
	p.mu.Unlock()

	go ch.writePump()
	go p.joinerReadPump(ch)
	return nil
}

func (p *Peer) joinerReadPump(ch *peerChannel) {
	defer func() {
		ch.close()
		p.mu.Lock()
		if p.hostCh == ch {
			p.st.IsConnected = false
			if p.st.Error == "" {
				p.st.Error = "connection to host lost"
			}
		}
		p.mu.Unlock()
	}()
	for {
		_, frame, err := ch.conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := protocol.DecodeFrame(frame)
		if err != nil {
			p.log.Warnf("[peer] dropping bad frame from host: %v", err)
			continue
		}
		p.subs.publish(msg)
	}
}

func (p *Peer) Send(msg protocol.Message) error {
	p.mu.RLock()
	isHost := p.st.IsHost
	hostCh := p.hostCh
	p.mu.RUnlock()

	if isHost {
		// self-deliver: the host is its own authority
		p.subs.publish(msg)
		return nil
	}
	if hostCh == nil {
		return fmt.Errorf("not connected to a host")
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	select {
	case hostCh.send <- frame:
		return nil
	default:
		return fmt.Errorf("send queue to host full")
	}
}

func (p *Peer) Broadcast(msg protocol.Message, excludeID string) error {
	p.mu.RLock()
	isHost := p.st.IsHost
	p.mu.RUnlock()
	if !isHost {
		return p.Send(msg)
	}
	frame, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	p.fanOut(frame, excludeID)
	return nil
}

func (p *Peer) Subscribe(fn func(protocol.Message)) func() {
	return p.subs.add(fn)
}

func (p *Peer) State() ConnectionState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.st
}

// Disconnect closes every channel and tears down the local identity.
func (p *Peer) Disconnect() error {
	p.mu.Lock()
	server := p.server
	channels := p.channels
	hostCh := p.hostCh
	p.server = nil
	p.channels = nil
	p.hostCh = nil
	p.peerID = ""
	p.st = ConnectionState{}
	p.mu.Unlock()

	for _, ch := range channels {
		ch.close()
	}
	if hostCh != nil {
		hostCh.close()
	}
	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(ctx)
	}
	return nil
}
