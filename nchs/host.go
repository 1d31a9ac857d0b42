package nchs

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// HostState is one of the four states the rendezvous/session-admin role
// moves through.
type HostState int

const (
	HostWaiting HostState = iota
	HostLobby
	HostStarting
	HostRunning
)

func (s HostState) String() string {
	switch s {
	case HostWaiting:
		return "Waiting"
	case HostLobby:
		return "Lobby"
	case HostStarting:
		return "Starting"
	case HostRunning:
		return "Running"
	default:
		return "Unknown"
	}
}

// HostConfig is the fixed session parameters new joiners must match exactly.
type HostConfig struct {
	ConsoleType       uint8
	ROMHash           uint64
	TickRate          uint8
	MaxPlayers        uint8
	PingInterval      time.Duration
	DisconnectTimeout time.Duration
}

const (
	defaultPingInterval      = 1 * time.Second
	defaultDisconnectTimeout = 5 * time.Second
)

func (c *HostConfig) withDefaults() HostConfig {
	out := *c
	if out.PingInterval <= 0 {
		out.PingInterval = defaultPingInterval
	}
	if out.DisconnectTimeout <= 0 {
		out.DisconnectTimeout = defaultDisconnectTimeout
	}
	return out
}

// HostEventKind identifies what happened on one Host.Poll call.
type HostEventKind int

const (
	HostEventNone HostEventKind = iota
	HostEventGuestJoined
	HostEventLobbyChanged
	HostEventSessionStarted
	HostEventGuestTimedOut
)

// HostEvent is one notable thing the host state machine observed.
type HostEvent struct {
	Kind         HostEventKind
	Handle       uint8
	Lobby        LobbyState
	SessionStart SessionStartMsg
}

type hostPlayer struct {
	handle    uint8
	addr      net.Addr
	info      PlayerInfo
	ready     bool
	connected bool
	lastSeen  time.Time
	lastPing  time.Time
}

// Host is the rendezvous and session-admin role: it accepts join requests,
// maintains the lobby roster, and broadcasts the session seed once every
// active guest is ready.
type Host struct {
	cfg       HostConfig
	transport Transport
	state     HostState

	players map[uint8]*hostPlayer

	now        func() time.Time
	randUint64 func() uint64
}

// NewHost binds a new host state machine in Waiting, listening on transport.
func NewHost(cfg HostConfig, transport Transport) *Host {
	return &Host{
		cfg:        cfg.withDefaults(),
		transport:  transport,
		state:      HostWaiting,
		players:    map[uint8]*hostPlayer{},
		now:        time.Now,
		randUint64: randomUint64,
	}
}

func randomUint64() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing means the platform's entropy source is broken;
		// there is nothing sane to fall back to for a session seed.
		panic(fmt.Sprintf("nchs: reading random session seed: %v", err))
	}
	return binary.LittleEndian.Uint64(b[:])
}

// State returns the host's current state.
func (h *Host) State() HostState { return h.state }

// Lobby returns the current roster.
func (h *Host) Lobby() LobbyState {
	var l LobbyState
	for _, p := range h.players {
		l.Players = append(l.Players, LobbyPlayer{Handle: p.handle, Info: p.info, Ready: p.ready, Connected: p.connected})
	}
	return l
}

// Poll drains pending datagrams, advances the state machine, and checks
// per-guest timeouts, returning whatever happened since the last call.
func (h *Host) Poll() []HostEvent {
	var events []HostEvent

	for _, dg := range h.transport.Drain() {
		if e, ok := h.handleMessage(dg); ok {
			events = append(events, e)
		}
	}

	events = append(events, h.checkTimeouts()...)
	h.sendPings()

	return events
}

func (h *Host) handleMessage(dg Datagram) (HostEvent, bool) {
	switch dg.Msg.Type {
	case MsgJoinRequest:
		return h.handleJoinRequest(dg.From, dg.Msg.JoinRequest)
	case MsgGuestReady:
		return h.handleGuestReady(dg.From, dg.Msg.GuestReady)
	case MsgPong:
		if p := h.playerByAddr(dg.From); p != nil {
			p.lastSeen = h.now()
		}
		return HostEvent{}, false
	case MsgPing:
		h.transport.SendTo(dg.From, Message{Type: MsgPong})
		return HostEvent{}, false
	default:
		return HostEvent{}, false
	}
}

func (h *Host) handleJoinRequest(from net.Addr, req *JoinRequestMsg) (HostEvent, bool) {
	if req.ConsoleType != h.cfg.ConsoleType || req.ROMHash != h.cfg.ROMHash ||
		req.TickRate != h.cfg.TickRate || req.MaxPlayers != h.cfg.MaxPlayers {
		h.transport.SendTo(from, Message{Type: MsgJoinReject, JoinReject: &JoinRejectMsg{Reason: "session parameters mismatch"}})
		return HostEvent{}, false
	}
	if existing := h.playerByAddr(from); existing != nil {
		// Retransmitted JoinRequest: reply with the handle already assigned
		// instead of allocating a second one.
		h.transport.SendTo(from, Message{Type: MsgJoinAccept, JoinAccept: &JoinAcceptMsg{AssignedHandle: existing.handle, Lobby: h.Lobby()}})
		return HostEvent{}, false
	}

	handle, ok := h.freeHandle()
	if !ok {
		h.transport.SendTo(from, Message{Type: MsgJoinReject, JoinReject: &JoinRejectMsg{Reason: "lobby full"}})
		return HostEvent{}, false
	}

	p := &hostPlayer{handle: handle, addr: from, info: req.PlayerInfo, connected: true, lastSeen: h.now()}
	h.players[handle] = p
	if h.state == HostWaiting {
		h.state = HostLobby
	}

	h.transport.SendTo(from, Message{Type: MsgJoinAccept, JoinAccept: &JoinAcceptMsg{AssignedHandle: handle, Lobby: h.Lobby()}})
	h.broadcastLobby(from)

	return HostEvent{Kind: HostEventGuestJoined, Handle: handle, Lobby: h.Lobby()}, true
}

func (h *Host) handleGuestReady(from net.Addr, msg *GuestReadyMsg) (HostEvent, bool) {
	p := h.playerByAddr(from)
	if p == nil {
		return HostEvent{}, false
	}
	p.ready = msg.Ready
	p.lastSeen = h.now()
	h.broadcastLobby(nil)
	return HostEvent{Kind: HostEventLobbyChanged, Lobby: h.Lobby()}, true
}

// AllGuestsReady reports whether every connected guest has signaled ready;
// Start requires this plus the operator's own go-ahead.
func (h *Host) AllGuestsReady() bool {
	any := false
	for _, p := range h.players {
		if !p.connected {
			continue
		}
		any = true
		if !p.ready {
			return false
		}
	}
	return any
}

// Start is the operator's "begin the session" action. It only succeeds in
// Lobby with every connected guest ready from every
// active guest plus host operator 'start'").
func (h *Host) Start() (HostEvent, error) {
	if h.state != HostLobby {
		return HostEvent{}, fmt.Errorf("nchs: host: cannot start from state %s", h.state)
	}
	if !h.AllGuestsReady() {
		return HostEvent{}, fmt.Errorf("nchs: host: not every guest is ready")
	}

	h.state = HostStarting
	seed := h.randUint64()

	start := SessionStartMsg{RandomSeed: seed}
	start.Players = append(start.Players, SessionPlayer{Handle: HostPlayerHandle, Addr: "", Active: true})
	for _, p := range h.players {
		if !p.connected {
			continue
		}
		start.Players = append(start.Players, SessionPlayer{Handle: p.handle, Addr: p.addr.String(), Active: true})
	}
	start.PlayerCount = uint8(len(start.Players))

	for _, p := range h.players {
		if !p.connected {
			continue
		}
		h.transport.SendTo(p.addr, Message{Type: MsgSessionStart, SessionStart: &start})
	}

	h.state = HostRunning
	return HostEvent{Kind: HostEventSessionStarted, SessionStart: start}, nil
}

func (h *Host) checkTimeouts() []HostEvent {
	var events []HostEvent
	now := h.now()
	for _, p := range h.players {
		if !p.connected {
			continue
		}
		if now.Sub(p.lastSeen) > h.cfg.DisconnectTimeout {
			p.connected = false
			events = append(events, HostEvent{Kind: HostEventGuestTimedOut, Handle: p.handle, Lobby: h.Lobby()})
		}
	}
	return events
}

func (h *Host) sendPings() {
	now := h.now()
	for _, p := range h.players {
		if !p.connected {
			continue
		}
		if now.Sub(p.lastPing) < h.cfg.PingInterval {
			continue
		}
		p.lastPing = now
		h.transport.SendTo(p.addr, Message{Type: MsgPing})
	}
}

func (h *Host) broadcastLobby(skip net.Addr) {
	lobby := h.Lobby()
	for _, p := range h.players {
		if skip != nil && p.addr.String() == skip.String() {
			continue
		}
		h.transport.SendTo(p.addr, Message{Type: MsgLobbyUpdate, LobbyUpdate: &LobbyUpdateMsg{Lobby: lobby}})
	}
}

func (h *Host) playerByAddr(addr net.Addr) *hostPlayer {
	for _, p := range h.players {
		if p.addr.String() == addr.String() {
			return p
		}
	}
	return nil
}

func (h *Host) freeHandle() (uint8, bool) {
	for handle := uint8(1); handle < h.cfg.MaxPlayers; handle++ {
		if _, taken := h.players[handle]; !taken {
			return handle, true
		}
	}
	return 0, false
}
