package rollback

import "github.com/nethercore-systems/nethercore/guest"

// advanceP2P implements the predict/confirm/rollback cycle for P2P lockstep
// play. It is structured as a sequence of small passes — ingest,
// predict-or-stall, advance, reconcile, frame advantage — instead of one
// dense function.
func (s *Session) advanceP2P(localInputs [guest.MaxPlayers]guest.InputFrame) ([]Op, []Event, error) {
	events := s.ingestTransport()

	frameInputs, predictedMask, stalled := s.resolveFrameInputs(localInputs)
	if stalled {
		// Cooperative yield: no operation list, caller tries again next
		// tick once remote input arrives.
		return nil, events, nil
	}

	var ops []Op
	ops = append(ops, Op{Kind: OpSaveGameState, Frame: s.frame})
	snap, err := s.instance.Snapshot()
	if err != nil {
		return nil, events, err
	}
	s.snapshots[s.frame] = snap
	sum := computeChecksum(snap)
	s.checksums[s.frame] = sum
	s.usedInputs[s.frame] = frameInputs
	s.predictedMask[s.frame] = predictedMask
	s.pruneOldFrames(s.frame)

	ops = append(ops, Op{Kind: OpAdvanceFrame, Frame: s.frame, Inputs: frameInputs})
	if err := s.runAdvance(frameInputs); err != nil {
		return ops, events, err
	}

	for p := 0; p < guest.MaxPlayers; p++ {
		if s.localPlayerMask&(1<<uint(p)) != 0 {
			s.transport.SendInput(s.frame, p, frameInputs[p])
		}
	}
	s.transport.SendChecksum(s.frame, sum)

	s.frame++

	reconcileOps, err := s.reconcile()
	ops = append(ops, reconcileOps...)
	if err != nil {
		return ops, events, err
	}

	events = append(events, s.checkFrameAdvantage()...)
	return ops, events, nil
}

// ingestTransport drains confirmed inputs, remote checksums, and
// connectivity events, folding them into session state and translating
// transport events into the application-level Event vocabulary.
func (s *Session) ingestTransport() []Event {
	var events []Event

	for _, ci := range s.transport.PollConfirmedInputs() {
		row := s.confirmedInputs[ci.Frame]
		row[ci.Player] = ci.Input
		s.confirmedInputs[ci.Frame] = row
		s.confirmedMask[ci.Frame] |= 1 << uint(ci.Player)

		s.lastConfirmed[ci.Player] = ci.Input
		if ci.Frame > s.lastConfirmedFrame[ci.Player] {
			s.lastConfirmedFrame[ci.Player] = ci.Frame
		}
		if ci.Frame > s.remoteFrame[ci.Player] {
			s.remoteFrame[ci.Player] = ci.Frame
		}
	}

	for _, rc := range s.transport.PollChecksums() {
		local, ok := s.checksums[rc.Frame]
		if !ok {
			continue
		}
		if local != rc.Sum {
			s.desynced = true
			events = append(events, Event{Kind: EventDesync, Frame: rc.Frame, LocalChecksum: local, RemoteChecksum: rc.Sum})
		}
	}

	for _, te := range s.transport.PollEvents() {
		st := &s.stats[te.Player]
		switch te.Kind {
		case TransportSynchronized:
			st.Connected = true
			events = append(events, Event{Kind: EventSynchronized, Player: te.Player})
		case TransportDisconnected:
			st.Connected = false
			events = append(events, Event{Kind: EventDisconnected, Player: te.Player})
		case TransportInterrupted:
			events = append(events, Event{Kind: EventNetworkInterrupted, Player: te.Player, DisconnectTimeoutMS: te.DisconnectTimeoutMS})
		case TransportResumed:
			st.Connected = true
			events = append(events, Event{Kind: EventNetworkResumed, Player: te.Player})
		}
		if te.PingMillis > 0 {
			st.PingMillis = te.PingMillis
			st.Quality = qualityFromPing(te.PingMillis)
		}
	}

	return events
}

func qualityFromPing(ms int) LinkQuality {
	switch {
	case ms <= 60:
		return LinkGood
	case ms <= 150:
		return LinkFair
	default:
		return LinkPoor
	}
}

// resolveFrameInputs fills in frameInputs for s.frame: local slots from
// localInputs, remote slots from a confirmed value if one has arrived or a
// prediction equal to the last confirmed input otherwise. It reports
// stalled=true if a remote slot would need to predict further than
// maxPredictionWindow past its last confirmation.
func (s *Session) resolveFrameInputs(localInputs [guest.MaxPlayers]guest.InputFrame) (frame [guest.MaxPlayers]guest.InputFrame, predictedMask uint8, stalled bool) {
	confirmedRow := s.confirmedInputs[s.frame]
	confirmedHere := s.confirmedMask[s.frame]

	for p := 0; p < guest.MaxPlayers; p++ {
		if s.localPlayerMask&(1<<uint(p)) != 0 {
			frame[p] = localInputs[p]
			continue
		}
		if confirmedHere&(1<<uint(p)) != 0 {
			frame[p] = confirmedRow[p]
			continue
		}
		if int(s.frame-s.lastConfirmedFrame[p]) > s.maxPredictionWindow {
			stalled = true
		}
		frame[p] = s.lastConfirmed[p]
		predictedMask |= 1 << uint(p)
	}
	return frame, predictedMask, stalled
}

// reconcile checks whether any not-yet-superseded prediction was wrong now
// that a confirmation has arrived, and if so emits LoadGameState followed by
// a run of AdvanceFrame operations from the earliest mispredicted frame back
// up to the current frame, re-saving (SaveGameState) each replayed frame
// after the first so its stored snapshot and checksum match the corrected
// history.
func (s *Session) reconcile() ([]Op, error) {
	var mispredicted int64 = -1
	for f, mask := range s.predictedMask {
		if mask == 0 || f >= s.frame {
			continue
		}
		confirmedHere := s.confirmedMask[f]
		if confirmedHere&mask == 0 {
			continue // none of this frame's predictions have been confirmed yet
		}
		used := s.usedInputs[f]
		confirmed := s.confirmedInputs[f]
		for p := 0; p < guest.MaxPlayers; p++ {
			bit := uint8(1) << uint(p)
			if mask&confirmedHere&bit == 0 {
				continue
			}
			if used[p] != confirmed[p] {
				if mispredicted < 0 || f < mispredicted {
					mispredicted = f
				}
			}
		}
	}
	if mispredicted < 0 {
		return nil, nil
	}

	snap, ok := s.snapshots[mispredicted]
	if !ok {
		// Snapshot already pruned past the checksum window; nothing we can
		// do but accept the divergence going forward from here.
		return nil, nil
	}

	var ops []Op
	ops = append(ops, Op{Kind: OpLoadGameState, Frame: mispredicted})
	if err := s.instance.Restore(snap); err != nil {
		return ops, err
	}

	for f := mispredicted; f < s.frame; f++ {
		if f > mispredicted {
			resnap, err := s.instance.Snapshot()
			if err != nil {
				return ops, err
			}
			s.snapshots[f] = resnap
			s.checksums[f] = computeChecksum(resnap)
			ops = append(ops, Op{Kind: OpSaveGameState, Frame: f})
		}
		inputs := s.usedInputs[f]
		mask := s.predictedMask[f]
		confirmedHere := s.confirmedMask[f]
		confirmed := s.confirmedInputs[f]
		for p := 0; p < guest.MaxPlayers; p++ {
			bit := uint8(1) << uint(p)
			if mask&confirmedHere&bit != 0 {
				inputs[p] = confirmed[p]
			}
		}
		s.usedInputs[f] = inputs
		s.predictedMask[f] = mask &^ confirmedHere

		ops = append(ops, Op{Kind: OpAdvanceFrame, Frame: f, Inputs: inputs})
		if err := s.runAdvance(inputs); err != nil {
			return ops, err
		}
	}
	return ops, nil
}

// checkFrameAdvantage derives frames_ahead against the slowest peer and
// emits FrameAdvantageWarning / TimeSync when it crosses the threshold.
func (s *Session) checkFrameAdvantage() []Event {
	slowest := s.frame
	for p := 0; p < guest.MaxPlayers; p++ {
		if s.localPlayerMask&(1<<uint(p)) != 0 {
			continue
		}
		if !s.stats[p].Connected {
			continue
		}
		if s.remoteFrame[p] < slowest {
			slowest = s.remoteFrame[p]
		}
	}
	ahead := int(s.frame - slowest)
	for p := 0; p < guest.MaxPlayers; p++ {
		s.stats[p].LocalFramesAhead = ahead
	}

	if ahead < frameAdvantageWarningThreshold {
		s.warnedThisEpoch = false
		return nil
	}
	if s.warnedThisEpoch {
		return nil
	}
	s.warnedThisEpoch = true
	return []Event{
		{Kind: EventFrameAdvantageWarning, FramesAhead: ahead},
		{Kind: EventTimeSync, FramesToSkip: ahead - frameAdvantageWarningThreshold},
	}
}
