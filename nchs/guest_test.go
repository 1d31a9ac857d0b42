package nchs

import "testing"

// TestGuest_RejectsSpoofedHostMessages asserts that a JoinAccept arriving
// from anywhere but the stored host address is ignored, while the same
// message from the host address is accepted.
func TestGuest_RejectsSpoofedHostMessages(t *testing.T) {
	net := newFakeNetwork()
	hostAddr := "127.0.0.1:8000"
	attackerAddr := "127.0.0.1:9999"
	hostNode := net.node(hostAddr)
	attacker := net.node(attackerAddr)

	_, guestCfg := testConfig()
	g, err := NewGuest(fakeAddr(hostAddr), net.node("127.0.0.1:8001"), guestCfg)
	if err != nil {
		t.Fatalf("new guest: %v", err)
	}
	// Discard the real JoinRequest so only the forged reply is in flight.
	hostNode.Drain()

	forged := JoinAcceptMsg{AssignedHandle: 5, Lobby: LobbyState{}}
	if err := attacker.SendTo(fakeAddr("127.0.0.1:8001"), Message{Type: MsgJoinAccept, JoinAccept: &forged}); err != nil {
		t.Fatalf("forging message: %v", err)
	}

	e := g.Poll()
	if e.Kind != GuestEventNone {
		t.Fatalf("expected the spoofed JoinAccept to be ignored, got %+v", e)
	}
	if g.State() != GuestJoining {
		t.Fatalf("expected guest to remain Joining, got %s", g.State())
	}
	if _, ok := g.Handle(); ok {
		t.Fatal("expected no handle to be assigned from a spoofed accept")
	}

	// The real host's accept, from the correct address, must still work.
	real := JoinAcceptMsg{AssignedHandle: 1, Lobby: LobbyState{}}
	hostNode.SendTo(fakeAddr("127.0.0.1:8001"), Message{Type: MsgJoinAccept, JoinAccept: &real})
	e = g.Poll()
	if e.Kind != GuestEventAccepted || e.Handle != 1 {
		t.Fatalf("expected real accept to succeed, got %+v", e)
	}
}

func TestGuest_RespondsToPing(t *testing.T) {
	net := newFakeNetwork()
	hostAddr := "127.0.0.1:8100"
	hostNode := net.node(hostAddr)
	guestNode := net.node("127.0.0.1:8101")

	_, guestCfg := testConfig()
	g, err := NewGuest(fakeAddr(hostAddr), guestNode, guestCfg)
	if err != nil {
		t.Fatalf("new guest: %v", err)
	}
	hostNode.Drain()

	hostNode.SendTo(fakeAddr("127.0.0.1:8101"), Message{Type: MsgPing})
	g.Poll()

	pongs := hostNode.Drain()
	if len(pongs) != 1 || pongs[0].Msg.Type != MsgPong {
		t.Fatalf("expected exactly one Pong reply, got %v", pongs)
	}
}
