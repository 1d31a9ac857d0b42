// Package rollback implements the generic save/load/re-advance session that
// drives a guest.GuestInstance under local, sync-test, or peer-to-peer
// lockstep play.
package rollback

import (
	"fmt"

	"github.com/nethercore-systems/nethercore/guest"
)

// Mode selects how advance_frame drives the instance.
type Mode int

const (
	ModeLocal Mode = iota
	ModeSyncTest
	ModeP2P
)

// OpKind discriminates the entries in the operation list advance_frame
// returns.
type OpKind int

const (
	OpSaveGameState OpKind = iota
	OpLoadGameState
	OpAdvanceFrame
)

// Op is one entry in the ordered list the caller must execute in order.
type Op struct {
	Kind   OpKind
	Frame  int64                                // SaveGameState / LoadGameState
	Inputs [guest.MaxPlayers]guest.InputFrame    // AdvanceFrame
}

// Checksum is a 64-bit digest over a full instance snapshot.
type Checksum uint64

// LinkQuality is an assessed per-peer connection quality bucket.
type LinkQuality int

const (
	LinkGood LinkQuality = iota
	LinkFair
	LinkPoor
)

// PeerStats holds per-remote-player statistics. A P2P AdvanceFrame sets
// LocalFramesAhead on every call and Connected, PingMillis and Quality from
// transport events; RemoteFramesAhead and RollbackFrames are not updated and
// stay zero.
type PeerStats struct {
	PingMillis      int
	LocalFramesAhead  int
	RemoteFramesAhead int
	RollbackFrames    int64
	Connected         bool
	Quality           LinkQuality
}

// Event is an application-level notice drained from the peer transport on
// each advance_frame.
type Event struct {
	Kind                 EventKind
	Player               int
	DisconnectTimeoutMS  int
	FramesToSkip         int
	FramesAhead          int
	Frame                int64
	LocalChecksum        Checksum
	RemoteChecksum        Checksum
}

type EventKind int

const (
	EventSynchronized EventKind = iota
	EventDisconnected
	EventNetworkInterrupted
	EventNetworkResumed
	EventTimeSync
	EventFrameAdvantageWarning
	EventDesync
)

// ErrDesync is returned by a sync-test AdvanceFrame when a replayed frame's
// checksum mismatches; a P2P session reports a mismatch as an EventDesync
// instead. Either way the session is terminal afterward: later AdvanceFrame
// calls fail.
type ErrDesync struct {
	Frame          int64
	Local, Remote Checksum
}

func (e *ErrDesync) Error() string {
	return fmt.Sprintf("rollback: desync at frame %d (local=%x remote=%x)", e.Frame, e.Local, e.Remote)
}

// defaultMaxPredictionWindow bounds how many frames a P2P session will predict
// ahead of the last confirmed remote input before stalling.
const defaultMaxPredictionWindow = 8

// frameAdvantageWarningThreshold is the frames_ahead value that triggers a
// one-shot FrameAdvantageWarning.
const frameAdvantageWarningThreshold = 4

// checksumWindow bounds how many recent (frame, checksum) pairs the session
// retains for remote comparison and sync-test rewinds.
const checksumWindow = 128

// Session orchestrates one guest.GuestInstance across the three modes. It
// never touches wall-clock time itself; advance_frame is driven by an
// external fixed-tick loop.
type Session struct {
	Mode Mode

	instance *guest.GuestInstance

	frame int64

	snapshots map[int64]*guest.InstanceSnapshot
	checksums map[int64]Checksum

	// sync-test bookkeeping
	syncTestWindow int
	pendingInputs  []storedInput

	// P2P bookkeeping
	transport           Transport
	localPlayerMask     uint8
	maxPredictionWindow int
	lastConfirmed       [guest.MaxPlayers]guest.InputFrame
	lastConfirmedFrame  [guest.MaxPlayers]int64
	remoteFrame         [guest.MaxPlayers]int64
	confirmedInputs     map[int64][guest.MaxPlayers]guest.InputFrame
	confirmedMask       map[int64]uint8 // bit p set: confirmedInputs[frame][p] is a real confirmation
	usedInputs          map[int64][guest.MaxPlayers]guest.InputFrame
	predictedMask       map[int64]uint8 // bit p set: usedInputs[frame][p] was a prediction when advanced
	stats               [guest.MaxPlayers]PeerStats
	warnedThisEpoch     bool

	desynced bool
}

type storedInput struct {
	frame  int64
	inputs [guest.MaxPlayers]guest.InputFrame
}

// NewLocalSession returns a session in Local mode: no snapshots required,
// but the uniform operation list is still emitted.
func NewLocalSession(inst *guest.GuestInstance) *Session {
	return &Session{
		Mode:      ModeLocal,
		instance:  inst,
		snapshots: map[int64]*guest.InstanceSnapshot{},
		checksums: map[int64]Checksum{},
	}
}

// NewSyncTestSession returns a session that, after every windowSize+1
// frames, rewinds to the first of them and re-advances to compare checksums
// and surface determinism bugs.
func NewSyncTestSession(inst *guest.GuestInstance, windowSize int) *Session {
	return &Session{
		Mode:           ModeSyncTest,
		instance:       inst,
		snapshots:      map[int64]*guest.InstanceSnapshot{},
		checksums:      map[int64]Checksum{},
		syncTestWindow: windowSize,
	}
}

// NewP2PSession returns a session driven by a Transport supplying remote
// inputs, checksums, and connection events. localPlayerMask identifies
// which of guest.MaxPlayers slots this host is authoritative for (bit i
// set means slot i is local).
func NewP2PSession(inst *guest.GuestInstance, t Transport, localPlayerMask uint8) *Session {
	return &Session{
		Mode:                ModeP2P,
		instance:            inst,
		snapshots:           map[int64]*guest.InstanceSnapshot{},
		checksums:           map[int64]Checksum{},
		transport:           t,
		localPlayerMask:     localPlayerMask,
		maxPredictionWindow: defaultMaxPredictionWindow,
		confirmedInputs:     map[int64][guest.MaxPlayers]guest.InputFrame{},
		confirmedMask:       map[int64]uint8{},
		usedInputs:          map[int64][guest.MaxPlayers]guest.InputFrame{},
		predictedMask:       map[int64]uint8{},
	}
}

// SetMaxPredictionWindow overrides the default prediction window.
func (s *Session) SetMaxPredictionWindow(n int) { s.maxPredictionWindow = n }

// Frame returns the session's current confirmed-or-in-progress frame number.
func (s *Session) Frame() int64 { return s.frame }

// Stats returns the current per-player statistics snapshot (P2P only; zero
// values in other modes).
func (s *Session) Stats() [guest.MaxPlayers]PeerStats { return s.stats }
