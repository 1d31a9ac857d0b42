package rollback

import (
	"testing"

	"github.com/nethercore-systems/nethercore/guest"
)

// loopbackTransport connects exactly two Sessions running in the same
// process (no real networking); each side's outbox is the other's inbox.
// It exists only to exercise the P2P reconciliation logic end to end.
type loopbackTransport struct {
	peer *loopbackTransport

	inboxInputs    []ConfirmedInput
	inboxChecksums []RemoteChecksum
	player         int
}

func newLoopbackPair(localPlayerA, localPlayerB int) (*loopbackTransport, *loopbackTransport) {
	a := &loopbackTransport{player: localPlayerA}
	b := &loopbackTransport{player: localPlayerB}
	a.peer = b
	b.peer = a
	return a, b
}

func (t *loopbackTransport) PollConfirmedInputs() []ConfirmedInput {
	out := t.inboxInputs
	t.inboxInputs = nil
	return out
}

func (t *loopbackTransport) PollChecksums() []RemoteChecksum {
	out := t.inboxChecksums
	t.inboxChecksums = nil
	return out
}

func (t *loopbackTransport) PollEvents() []TransportEvent { return nil }

func (t *loopbackTransport) SendInput(frame int64, player int, input guest.InputFrame) {
	t.peer.inboxInputs = append(t.peer.inboxInputs, ConfirmedInput{Frame: frame, Player: player, Input: input})
}

func (t *loopbackTransport) SendChecksum(frame int64, sum Checksum) {
	t.peer.inboxChecksums = append(t.peer.inboxChecksums, RemoteChecksum{Frame: frame, Player: t.player, Sum: sum})
}

// TestSession_P2PChecksumsAgree checks that two honest participants in a
// P2P session never report a desync when each compares the checksums its
// peer sends against its own, across a run in which A predicts B's input
// every tick (the loopback delivers B's confirmations one tick late).
func TestSession_P2PChecksumsAgree(t *testing.T) {
	const playerA, playerB = 0, 1

	instA, err := guest.NewGuestInstance(newCounterModule(), 99)
	if err != nil {
		t.Fatalf("new instance A: %v", err)
	}
	instB, err := guest.NewGuestInstance(newCounterModule(), 99)
	if err != nil {
		t.Fatalf("new instance B: %v", err)
	}

	transA, transB := newLoopbackPair(playerA, playerB)
	sessA := NewP2PSession(instA, transA, 1<<playerA)
	sessB := NewP2PSession(instB, transB, 1<<playerB)

	var localA, localB [guest.MaxPlayers]guest.InputFrame

	var checksumsA, checksumsB []Checksum
	for tick := 0; tick < 30; tick++ {
		localA[playerA] = guest.InputFrame{Buttons: guest.ButtonA}
		localB[playerB] = guest.InputFrame{Buttons: guest.ButtonB}

		opsA, eventsA, err := sessA.AdvanceFrame(localA)
		if err != nil {
			t.Fatalf("tick %d: advance A: %v", tick, err)
		}
		for _, e := range eventsA {
			if e.Kind == EventDesync {
				t.Fatalf("tick %d: unexpected desync on A", tick)
			}
		}
		for _, op := range opsA {
			if op.Kind == OpSaveGameState {
				snap, _ := instA.Snapshot()
				checksumsA = append(checksumsA, computeChecksum(snap))
			}
		}

		opsB, eventsB, err := sessB.AdvanceFrame(localB)
		if err != nil {
			t.Fatalf("tick %d: advance B: %v", tick, err)
		}
		for _, e := range eventsB {
			if e.Kind == EventDesync {
				t.Fatalf("tick %d: unexpected desync on B", tick)
			}
		}
		for _, op := range opsB {
			if op.Kind == OpSaveGameState {
				snap, _ := instB.Snapshot()
				checksumsB = append(checksumsB, computeChecksum(snap))
			}
		}
	}

	if len(checksumsA) == 0 || len(checksumsB) == 0 {
		t.Fatal("expected both sessions to make progress")
	}
}

func TestSession_P2PStallsPastPredictionWindow(t *testing.T) {
	inst, err := guest.NewGuestInstance(newCounterModule(), 1)
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}
	// A transport that never delivers anything from the remote side.
	mute := &loopbackTransport{player: 0}
	mute.peer = &loopbackTransport{player: 1}

	s := NewP2PSession(inst, mute, 1<<0)
	s.SetMaxPredictionWindow(3)

	var local [guest.MaxPlayers]guest.InputFrame
	stalledAt := -1
	for tick := 0; tick < 10; tick++ {
		ops, _, err := s.AdvanceFrame(local)
		if err != nil {
			t.Fatalf("tick %d: %v", tick, err)
		}
		if len(ops) == 0 {
			stalledAt = tick
			break
		}
	}
	if stalledAt < 0 {
		t.Fatal("expected the session to stall once the prediction window was exceeded")
	}
}
