package nchs

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// GuestState is one of the six states a joining participant moves through.
type GuestState int

const (
	GuestIdle GuestState = iota
	GuestJoining
	GuestLobby
	GuestPunching
	GuestReadyState
	GuestFailed
)

func (s GuestState) String() string {
	switch s {
	case GuestIdle:
		return "Idle"
	case GuestJoining:
		return "Joining"
	case GuestLobby:
		return "Lobby"
	case GuestPunching:
		return "Punching"
	case GuestReadyState:
		return "Ready"
	case GuestFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// ErrJoinTimeout is reported when the host never answers a JoinRequest.
var ErrJoinTimeout = errors.New("nchs: join request timed out")

// ErrPunchFailed is reported when hole punching with every expected peer
// doesn't complete before the punch timeout.
var ErrPunchFailed = errors.New("nchs: hole punch timed out")

const (
	defaultJoinTimeout        = 5 * time.Second
	defaultJoinResendAfter    = 2 * time.Second
	defaultPunchTimeout       = 3 * time.Second
	defaultPunchRetryInterval = 200 * time.Millisecond
)

// GuestEventKind identifies what a Guest.Poll call surfaced.
type GuestEventKind int

const (
	GuestEventNone GuestEventKind = iota
	GuestEventAccepted
	GuestEventRejected
	GuestEventLobbyUpdated
	GuestEventSessionStarting
	GuestEventReady
	GuestEventError
)

// GuestEvent is one notable thing observed by the guest state machine.
type GuestEvent struct {
	Kind         GuestEventKind
	Handle       uint8
	Reject       *JoinRejectMsg
	Lobby        LobbyState
	SessionStart *SessionStartMsg
	Err          error
}

// GuestConfig is what a joining participant must present; fields must
// exactly match the host's HostConfig or the join is rejected.
type GuestConfig struct {
	ConsoleType        uint8
	ROMHash            uint64
	TickRate           uint8
	MaxPlayers         uint8
	PlayerInfo         PlayerInfo
	JoinTimeout        time.Duration
	PunchTimeout       time.Duration
	PunchRetryInterval time.Duration
}

func (c *GuestConfig) withDefaults() GuestConfig {
	out := *c
	if out.JoinTimeout <= 0 {
		out.JoinTimeout = defaultJoinTimeout
	}
	if out.PunchTimeout <= 0 {
		out.PunchTimeout = defaultPunchTimeout
	}
	if out.PunchRetryInterval <= 0 {
		out.PunchRetryInterval = defaultPunchRetryInterval
	}
	return out
}

type punchPeer struct {
	handle uint8
	addr   net.Addr
}

// Guest is a joining participant's side of the handshake: send JoinRequest,
// wait in the lobby, then hole-punch with every other active guest once the
// host starts the session.
type Guest struct {
	cfg       GuestConfig
	transport Transport
	hostAddr  net.Addr

	state GuestState
	handle *uint8
	lobby  LobbyState
	sessionStart *SessionStartMsg
	ready  bool

	peersToPunch  []punchPeer
	punchedPeers  map[uint8]bool
	peerAddrs     map[uint8]net.Addr
	punchNonce    uint64

	joinSentAt     time.Time
	joinResent     bool
	punchStartedAt time.Time
	lastPunchRetry time.Time

	pending []Datagram

	now func() time.Time
}

// NewGuest sends the initial JoinRequest and returns a guest state machine
// in Joining.
func NewGuest(hostAddr net.Addr, transport Transport, cfg GuestConfig) (*Guest, error) {
	g := &Guest{
		cfg:          cfg.withDefaults(),
		transport:    transport,
		hostAddr:     hostAddr,
		state:        GuestIdle,
		punchedPeers: map[uint8]bool{},
		peerAddrs:    map[uint8]net.Addr{},
		now:          time.Now,
		punchNonce:   randomUint64(),
	}
	if err := g.sendJoinRequest(); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *Guest) sendJoinRequest() error {
	req := &JoinRequestMsg{
		ConsoleType: g.cfg.ConsoleType,
		ROMHash:     g.cfg.ROMHash,
		TickRate:    g.cfg.TickRate,
		MaxPlayers:  g.cfg.MaxPlayers,
		PlayerInfo:  g.cfg.PlayerInfo,
	}
	if err := g.transport.SendTo(g.hostAddr, Message{Type: MsgJoinRequest, JoinRequest: req}); err != nil {
		return err
	}
	g.state = GuestJoining
	g.joinSentAt = g.now()
	g.joinResent = false
	return nil
}

// State returns the guest's current state.
func (g *Guest) State() GuestState { return g.state }

// Handle returns the assigned player handle once accepted.
func (g *Guest) Handle() (uint8, bool) {
	if g.handle == nil {
		return 0, false
	}
	return *g.handle, true
}

// Lobby returns the last roster received from the host.
func (g *Guest) Lobby() LobbyState { return g.lobby }

// SessionStart returns the SessionStart record once the host has begun the
// session, or nil before that.
func (g *Guest) SessionStart() *SessionStartMsg { return g.sessionStart }

// IsReady reports the ready flag last sent via SetReady.
func (g *Guest) IsReady() bool { return g.ready }

// SetReady tells the host whether this guest is ready to start; only valid
// while in the Lobby state.
func (g *Guest) SetReady(ready bool) error {
	if g.state != GuestLobby {
		return fmt.Errorf("nchs: guest: cannot set ready from state %s", g.state)
	}
	g.ready = ready
	return g.transport.SendTo(g.hostAddr, Message{Type: MsgGuestReady, GuestReady: &GuestReadyMsg{Ready: ready}})
}

// Poll drains pending datagrams, advances the state machine, and checks
// timeouts, returning the first notable event.
func (g *Guest) Poll() GuestEvent {
	if e, ok := g.checkTimeouts(); ok {
		return e
	}

	if len(g.pending) == 0 {
		g.pending = g.transport.Drain()
	}
	for len(g.pending) > 0 {
		dg := g.pending[0]
		g.pending = g.pending[1:]
		if e, ok := g.handleMessage(dg); ok {
			return e
		}
	}

	if g.state == GuestPunching {
		if g.isPunchComplete() {
			g.state = GuestReadyState
			return GuestEvent{Kind: GuestEventReady}
		}
		g.retryPunch()
	}

	return GuestEvent{Kind: GuestEventNone}
}

func (g *Guest) checkTimeouts() (GuestEvent, bool) {
	now := g.now()
	if g.state == GuestJoining && !g.joinSentAt.IsZero() {
		elapsed := now.Sub(g.joinSentAt)
		if elapsed > g.cfg.JoinTimeout {
			g.state = GuestFailed
			return GuestEvent{Kind: GuestEventError, Err: ErrJoinTimeout}, true
		}
		if !g.joinResent && elapsed > defaultJoinResendAfter {
			g.joinResent = true
			g.transport.SendTo(g.hostAddr, Message{Type: MsgJoinRequest, JoinRequest: &JoinRequestMsg{
				ConsoleType: g.cfg.ConsoleType,
				ROMHash:     g.cfg.ROMHash,
				TickRate:    g.cfg.TickRate,
				MaxPlayers:  g.cfg.MaxPlayers,
				PlayerInfo:  g.cfg.PlayerInfo,
			}})
		}
	}
	if g.state == GuestPunching && !g.punchStartedAt.IsZero() && now.Sub(g.punchStartedAt) > g.cfg.PunchTimeout {
		g.state = GuestFailed
		return GuestEvent{Kind: GuestEventError, Err: ErrPunchFailed}, true
	}
	return GuestEvent{}, false
}

// fromHost reports whether a datagram's source matches the stored host
// address.
func (g *Guest) fromHost(from net.Addr) bool {
	return from.String() == g.hostAddr.String()
}

func (g *Guest) handleMessage(dg Datagram) (GuestEvent, bool) {
	switch dg.Msg.Type {
	case MsgJoinAccept:
		if !g.fromHost(dg.From) {
			return GuestEvent{}, false
		}
		return g.handleAccept(dg.Msg.JoinAccept)
	case MsgJoinReject:
		if !g.fromHost(dg.From) {
			return GuestEvent{}, false
		}
		g.state = GuestFailed
		return GuestEvent{Kind: GuestEventRejected, Reject: dg.Msg.JoinReject}, true
	case MsgLobbyUpdate:
		if !g.fromHost(dg.From) {
			return GuestEvent{}, false
		}
		g.lobby = dg.Msg.LobbyUpdate.Lobby
		return GuestEvent{Kind: GuestEventLobbyUpdated, Lobby: g.lobby}, true
	case MsgSessionStart:
		if !g.fromHost(dg.From) {
			return GuestEvent{}, false
		}
		return g.handleSessionStart(dg.Msg.SessionStart)
	case MsgPunchHello:
		return g.handlePunchHello(dg.From, dg.Msg.PunchHello)
	case MsgPunchAck:
		return g.handlePunchAck(dg.Msg.PunchAck)
	case MsgPing:
		g.transport.SendTo(dg.From, Message{Type: MsgPong})
		return GuestEvent{}, false
	default:
		return GuestEvent{}, false
	}
}

func (g *Guest) handleAccept(accept *JoinAcceptMsg) (GuestEvent, bool) {
	if g.state != GuestJoining {
		return GuestEvent{}, false
	}
	handle := accept.AssignedHandle
	g.handle = &handle
	g.lobby = accept.Lobby
	g.state = GuestLobby
	return GuestEvent{Kind: GuestEventAccepted, Handle: handle}, true
}

func (g *Guest) handleSessionStart(start *SessionStartMsg) (GuestEvent, bool) {
	if g.state != GuestLobby {
		return GuestEvent{}, false
	}
	g.sessionStart = start

	g.peersToPunch = nil
	g.punchedPeers = map[uint8]bool{}
	g.peerAddrs = map[uint8]net.Addr{}

	ownHandle, _ := g.Handle()
	for _, p := range start.Players {
		if !p.Active || p.Handle == ownHandle || p.Handle == HostPlayerHandle {
			continue
		}
		addr, err := net.ResolveUDPAddr("udp", p.Addr)
		if err != nil {
			continue
		}
		g.peersToPunch = append(g.peersToPunch, punchPeer{handle: p.Handle, addr: addr})
	}

	if len(g.peersToPunch) == 0 {
		g.state = GuestReadyState
		return GuestEvent{Kind: GuestEventReady}, true
	}

	g.state = GuestPunching
	g.punchStartedAt = g.now()
	g.sendPunchHellos()
	return GuestEvent{Kind: GuestEventSessionStarting, SessionStart: start}, true
}

func (g *Guest) sendPunchHellos() {
	ownHandle, ok := g.Handle()
	if !ok {
		return
	}
	hello := &PunchHelloMsg{SenderHandle: ownHandle, Nonce: g.punchNonce}
	for _, peer := range g.peersToPunch {
		g.transport.SendTo(peer.addr, Message{Type: MsgPunchHello, PunchHello: hello})
	}
	g.lastPunchRetry = g.now()
}

func (g *Guest) retryPunch() {
	if g.now().Sub(g.lastPunchRetry) < g.cfg.PunchRetryInterval {
		return
	}
	g.sendPunchHellos()
}

func (g *Guest) expectedPeer(handle uint8) bool {
	for _, p := range g.peersToPunch {
		if p.handle == handle {
			return true
		}
	}
	return false
}

func (g *Guest) handlePunchHello(from net.Addr, hello *PunchHelloMsg) (GuestEvent, bool) {
	if g.state != GuestPunching || !g.expectedPeer(hello.SenderHandle) {
		return GuestEvent{}, false
	}
	g.peerAddrs[hello.SenderHandle] = from
	ownHandle, _ := g.Handle()
	g.transport.SendTo(from, Message{Type: MsgPunchAck, PunchAck: &PunchAckMsg{SenderHandle: ownHandle, Nonce: hello.Nonce}})
	g.punchedPeers[hello.SenderHandle] = true
	return GuestEvent{}, false
}

func (g *Guest) handlePunchAck(ack *PunchAckMsg) (GuestEvent, bool) {
	if g.state != GuestPunching || ack.Nonce != g.punchNonce || !g.expectedPeer(ack.SenderHandle) {
		return GuestEvent{}, false
	}
	g.punchedPeers[ack.SenderHandle] = true
	return GuestEvent{}, false
}

// PeerAddr returns the address a peer's hole-punch traffic was actually
// observed from, for handoff to the rollback transport: the source address
// observed on a successful PunchHello is the address used for the
// subsequent lockstep transport.
func (g *Guest) PeerAddr(handle uint8) (net.Addr, bool) {
	addr, ok := g.peerAddrs[handle]
	return addr, ok
}

func (g *Guest) isPunchComplete() bool {
	for _, p := range g.peersToPunch {
		if !g.punchedPeers[p.handle] {
			return false
		}
	}
	return true
}
