package rollback

import (
	"fmt"

	"github.com/nethercore-systems/nethercore/guest"
)

// AdvanceFrame is the session's one entry point: it returns the ordered
// operation list the caller must execute, plus any application-level events
// drained this call. localInputs carries the raw
// per-player inputs this host is authoritative for; in Local and sync-test
// mode that is every slot, in P2P mode only the locally-controlled slots.
func (s *Session) AdvanceFrame(localInputs [guest.MaxPlayers]guest.InputFrame) ([]Op, []Event, error) {
	if s.desynced {
		return nil, nil, fmt.Errorf("rollback: session is desynced, no further frames")
	}

	switch s.Mode {
	case ModeLocal:
		return s.advanceLocal(localInputs)
	case ModeSyncTest:
		return s.advanceSyncTest(localInputs)
	case ModeP2P:
		return s.advanceP2P(localInputs)
	default:
		return nil, nil, fmt.Errorf("rollback: unknown mode %d", s.Mode)
	}
}

// advanceLocal always yields exactly one AdvanceFrame with the current
// stored input; the uniform operation-list shape is kept even though no
// snapshot is strictly required.
func (s *Session) advanceLocal(inputs [guest.MaxPlayers]guest.InputFrame) ([]Op, []Event, error) {
	op := Op{Kind: OpAdvanceFrame, Frame: s.frame, Inputs: inputs}
	if err := s.runAdvance(inputs); err != nil {
		return nil, nil, err
	}
	s.frame++
	return []Op{op}, nil, nil
}

// advanceSyncTest saves every frame, and once more than syncTestWindow
// frames have accumulated since the last rewind, rewinds to the oldest of
// them, restores, and re-advances through the stored inputs, comparing each
// replayed frame's pre-advance checksum against the one originally recorded.
func (s *Session) advanceSyncTest(inputs [guest.MaxPlayers]guest.InputFrame) ([]Op, []Event, error) {
	var ops []Op

	ops = append(ops, Op{Kind: OpSaveGameState, Frame: s.frame})
	snap, err := s.instance.Snapshot()
	if err != nil {
		return nil, nil, fmt.Errorf("rollback: sync-test save at frame %d: %w", s.frame, err)
	}
	s.snapshots[s.frame] = snap
	s.checksums[s.frame] = computeChecksum(snap)
	s.pruneOldFrames(s.frame)

	if s.syncTestWindow > 0 {
		s.pendingInputs = append(s.pendingInputs, storedInput{frame: s.frame, inputs: inputs})
	}

	ops = append(ops, Op{Kind: OpAdvanceFrame, Frame: s.frame, Inputs: inputs})
	if err := s.runAdvance(inputs); err != nil {
		return nil, nil, err
	}
	s.frame++

	if s.syncTestWindow <= 0 || len(s.pendingInputs) <= s.syncTestWindow {
		return ops, nil, nil
	}

	rewindTo := s.pendingInputs[0].frame
	replay := append([]storedInput(nil), s.pendingInputs...)
	s.pendingInputs = nil

	wantSnap, ok := s.snapshots[rewindTo]
	if !ok {
		return nil, nil, fmt.Errorf("rollback: sync-test missing snapshot for frame %d", rewindTo)
	}
	ops = append(ops, Op{Kind: OpLoadGameState, Frame: rewindTo})
	if err := s.instance.Restore(wantSnap); err != nil {
		return nil, nil, fmt.Errorf("rollback: sync-test restore frame %d: %w", rewindTo, err)
	}

	for _, st := range replay {
		resnap, err := s.instance.Snapshot()
		if err != nil {
			return nil, nil, fmt.Errorf("rollback: sync-test re-snapshot frame %d: %w", st.frame, err)
		}
		got := computeChecksum(resnap)
		want, ok := s.checksums[st.frame]
		if ok && got != want {
			s.desynced = true
			return ops, []Event{{Kind: EventDesync, Frame: st.frame, LocalChecksum: want, RemoteChecksum: got}}, &ErrDesync{Frame: st.frame, Local: want, Remote: got}
		}
		ops = append(ops, Op{Kind: OpAdvanceFrame, Frame: st.frame, Inputs: st.inputs})
		if err := s.runAdvance(st.inputs); err != nil {
			return nil, nil, err
		}
	}

	return ops, nil, nil
}

// runAdvance runs exactly one Update+Render cycle on the instance. Audio
// submission during a rollback re-advance (sync-test replay, or P2P
// misprediction correction) is the caller's responsibility to discard — the
// operation list doesn't distinguish "confirmed" from "re-advance" ticks on
// purpose; the caller tracks which Op came from a rewind by watching for a
// preceding LoadGameState.
func (s *Session) runAdvance(inputs [guest.MaxPlayers]guest.InputFrame) error {
	if err := s.instance.Update(inputs); err != nil {
		return err
	}
	if _, err := s.instance.Render(); err != nil {
		return err
	}
	return nil
}

func (s *Session) pruneOldFrames(current int64) {
	cutoff := current - checksumWindow
	if cutoff <= 0 {
		return
	}
	for f := range s.snapshots {
		if f < cutoff {
			delete(s.snapshots, f)
		}
	}
	for f := range s.checksums {
		if f < cutoff {
			delete(s.checksums, f)
		}
	}
	for f := range s.usedInputs {
		if f < cutoff {
			delete(s.usedInputs, f)
			delete(s.predictedMask, f)
		}
	}
	for f := range s.confirmedInputs {
		if f < cutoff {
			delete(s.confirmedInputs, f)
			delete(s.confirmedMask, f)
		}
	}
}
