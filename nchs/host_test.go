package nchs

import (
	"testing"
	"time"
)

func testConfig() (HostConfig, GuestConfig) {
	h := HostConfig{ConsoleType: 1, ROMHash: 0xAABBCCDD, TickRate: 60, MaxPlayers: 3}
	g := GuestConfig{ConsoleType: 1, ROMHash: 0xAABBCCDD, TickRate: 60, MaxPlayers: 3}
	return h, g
}

// TestHappyPath_ThreePlayerSession asserts that a host and two guests on a
// lossless network all reach Running/Ready; a guest only reaches Ready once
// its hole punch with the other guest has completed.
func TestHappyPath_ThreePlayerSession(t *testing.T) {
	net := newFakeNetwork()
	hostAddr := "127.0.0.1:7000"
	hostNode := net.node(hostAddr)

	hostCfg, guestCfg := testConfig()
	h := NewHost(hostCfg, hostNode)

	g1Cfg := guestCfg
	g1Cfg.PlayerInfo = PlayerInfo{Name: "G1"}
	g1, err := NewGuest(fakeAddr(hostAddr), net.node("127.0.0.1:7001"), g1Cfg)
	if err != nil {
		t.Fatalf("new guest 1: %v", err)
	}

	g2Cfg := guestCfg
	g2Cfg.PlayerInfo = PlayerInfo{Name: "G2"}
	g2, err := NewGuest(fakeAddr(hostAddr), net.node("127.0.0.1:7002"), g2Cfg)
	if err != nil {
		t.Fatalf("new guest 2: %v", err)
	}

	joinEvents := h.Poll()
	if len(joinEvents) != 2 {
		t.Fatalf("expected 2 GuestJoined events, got %d: %v", len(joinEvents), joinEvents)
	}
	for _, e := range joinEvents {
		if e.Kind != HostEventGuestJoined {
			t.Fatalf("expected GuestJoined, got %v", e.Kind)
		}
	}

	e1 := g1.Poll()
	if e1.Kind != GuestEventAccepted || e1.Handle != 1 {
		t.Fatalf("guest 1: expected Accepted(handle=1), got %+v", e1)
	}
	e2 := g2.Poll()
	if e2.Kind != GuestEventAccepted || e2.Handle != 2 {
		t.Fatalf("guest 2: expected Accepted(handle=2), got %+v", e2)
	}

	if err := g1.SetReady(true); err != nil {
		t.Fatalf("g1 set ready: %v", err)
	}
	if err := g2.SetReady(true); err != nil {
		t.Fatalf("g2 set ready: %v", err)
	}
	h.Poll()

	if !h.AllGuestsReady() {
		t.Fatal("expected all guests ready")
	}
	startEvent, err := h.Start()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if startEvent.Kind != HostEventSessionStarted {
		t.Fatalf("expected SessionStarted, got %v", startEvent.Kind)
	}
	if h.State() != HostRunning {
		t.Fatalf("expected host state Running, got %s", h.State())
	}

	// Drain any queued LobbyUpdate broadcasts ahead of SessionStart.
	drainGuestUntil(t, g1, GuestEventSessionStarting, 10)
	drainGuestUntil(t, g2, GuestEventSessionStarting, 10)

	if g1.State() != GuestPunching || g2.State() != GuestPunching {
		t.Fatalf("expected both guests punching, got g1=%s g2=%s", g1.State(), g2.State())
	}

	// Run the punch handshake to completion.
	for i := 0; i < 10 && (g1.State() != GuestReadyState || g2.State() != GuestReadyState); i++ {
		g1.Poll()
		g2.Poll()
	}

	if g1.State() != GuestReadyState {
		t.Fatalf("guest 1 never reached Ready, stuck in %s", g1.State())
	}
	if g2.State() != GuestReadyState {
		t.Fatalf("guest 2 never reached Ready, stuck in %s", g2.State())
	}
}

// drainGuestUntil polls a guest up to maxIters times looking for the wanted
// event kind, failing the test if it never arrives.
func drainGuestUntil(t *testing.T, g *Guest, want GuestEventKind, maxIters int) GuestEvent {
	t.Helper()
	for i := 0; i < maxIters; i++ {
		e := g.Poll()
		if e.Kind == want {
			return e
		}
	}
	t.Fatalf("guest never produced event %v", want)
	return GuestEvent{}
}

func TestHost_RejectsParameterMismatch(t *testing.T) {
	net := newFakeNetwork()
	hostAddr := "127.0.0.1:7100"
	hostCfg, guestCfg := testConfig()
	h := NewHost(hostCfg, net.node(hostAddr))

	badCfg := guestCfg
	badCfg.ROMHash ^= 0xFF
	g, err := NewGuest(fakeAddr(hostAddr), net.node("127.0.0.1:7101"), badCfg)
	if err != nil {
		t.Fatalf("new guest: %v", err)
	}

	h.Poll()
	e := g.Poll()
	if e.Kind != GuestEventRejected {
		t.Fatalf("expected Rejected, got %+v", e)
	}
	if g.State() != GuestFailed {
		t.Fatalf("expected guest Failed, got %s", g.State())
	}
}

func TestHost_RejectsFullLobby(t *testing.T) {
	net := newFakeNetwork()
	hostAddr := "127.0.0.1:7200"
	hostCfg, guestCfg := testConfig()
	hostCfg.MaxPlayers = 2 // room for exactly one guest (handle 1)
	guestCfg.MaxPlayers = 2 // joiners must match the host's max_players
	h := NewHost(hostCfg, net.node(hostAddr))

	g1, _ := NewGuest(fakeAddr(hostAddr), net.node("127.0.0.1:7201"), guestCfg)
	g2, _ := NewGuest(fakeAddr(hostAddr), net.node("127.0.0.1:7202"), guestCfg)

	h.Poll()
	if e := g1.Poll(); e.Kind != GuestEventAccepted {
		t.Fatalf("expected guest 1 accepted, got %+v", e)
	}
	if e := g2.Poll(); e.Kind != GuestEventRejected {
		t.Fatalf("expected guest 2 rejected (full lobby), got %+v", e)
	}
}

func TestGuest_JoinTimeout(t *testing.T) {
	net := newFakeNetwork()
	_, guestCfg := testConfig()
	// A host node exists so SendTo succeeds, but nothing ever polls it, so
	// the JoinRequest is never answered.
	net.node("127.0.0.1:1")
	g, err := NewGuest(fakeAddr("127.0.0.1:1"), net.node("127.0.0.1:2"), guestCfg)
	if err != nil {
		t.Fatalf("new guest: %v", err)
	}

	base := time.Unix(1000, 0)
	g.now = func() time.Time { return base }
	g.joinSentAt = base

	g.now = func() time.Time { return base.Add(6 * time.Second) }
	e := g.Poll()
	if e.Kind != GuestEventError || e.Err != ErrJoinTimeout {
		t.Fatalf("expected join timeout error, got %+v", e)
	}
	if g.State() != GuestFailed {
		t.Fatalf("expected guest Failed, got %s", g.State())
	}
}

func TestHost_GuestTimeoutMarksDisconnected(t *testing.T) {
	net := newFakeNetwork()
	hostAddr := "127.0.0.1:7300"
	hostCfg, guestCfg := testConfig()
	hostCfg.DisconnectTimeout = 2 * time.Second
	h := NewHost(hostCfg, net.node(hostAddr))

	base := time.Unix(2000, 0)
	h.now = func() time.Time { return base }

	g, _ := NewGuest(fakeAddr(hostAddr), net.node("127.0.0.1:7301"), guestCfg)
	h.Poll()
	if e := g.Poll(); e.Kind != GuestEventAccepted {
		t.Fatalf("expected accepted, got %+v", e)
	}

	h.now = func() time.Time { return base.Add(10 * time.Second) }
	events := h.Poll()
	found := false
	for _, e := range events {
		if e.Kind == HostEventGuestTimedOut {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a GuestTimedOut event, got %v", events)
	}
}
