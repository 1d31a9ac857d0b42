package guest

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/nethercore-systems/nethercore/render"
	"github.com/nethercore-systems/nethercore/rng"
	"github.com/nethercore-systems/nethercore/tracker"
)

// GuestState is the per-instance state around a tick: RNG, per-player input
// history, save slots, the in-progress render pass, and tracker playback
// state. Snapshot captures all of it except the render pass, so neither
// snapshots nor checksums cover the render command buffer. Guest linear
// memory is snapshotted alongside this, not as part of it, unless the guest
// exports save_state/load_state.
type GuestState struct {
	RNG *rng.PCG32

	// PrevInput/CurInput are indexed by player slot, always MaxPlayers wide
	// regardless of how many players actually joined.
	PrevInput [MaxPlayers]InputFrame
	CurInput  [MaxPlayers]InputFrame

	Persistence PersistenceSlots

	Pass *render.Pass

	Tracker *tracker.EngineState

	Tick    uint64
	Elapsed float64 // seconds, accumulated in fixed-timestep increments
	Quit    bool
}

// NewGuestState allocates a fresh state for a module, seeded with the
// session's shared RNG seed, agreed by all peers before the first frame.
func NewGuestState(mod *Module, seed uint64) *GuestState {
	return &GuestState{
		RNG:     rng.New(seed),
		Pass:    render.NewPass(),
		Tracker: tracker.NewEngineState(mod.Tracker),
	}
}

// BeginTick rotates input history and resets the per-tick render pass; called
// once before Update.
func (s *GuestState) BeginTick(next [MaxPlayers]InputFrame) {
	s.PrevInput = s.CurInput
	s.CurInput = next
	s.Pass.Reset()
}

// guestStateWire is the gob-friendly shape of GuestState: *tracker.EngineState
// already has its own framed Snapshot/Restore, so it's carried here as an
// opaque blob rather than gob-encoded directly (gob can encode it fine, but
// routing it through the tracker's own framing keeps one definition of
// "what a tracker snapshot looks like").
type guestStateWire struct {
	RNGState    uint64
	PrevInput   [MaxPlayers]InputFrame
	CurInput    [MaxPlayers]InputFrame
	Persistence PersistenceSlots
	Tracker     []byte
	Tick        uint64
	Elapsed     float64
	Quit        bool
}

const (
	stateSnapshotMagic   = "NCGS"
	stateSnapshotVersion = uint32(1)
)

// Snapshot serializes GuestState to an opaque blob. The render Pass is
// intentionally excluded: it is rebuilt every tick by Render and never
// feeds back into simulation.
func (s *GuestState) Snapshot() ([]byte, error) {
	trackerBlob, err := s.Tracker.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("guest: state snapshot: %w", err)
	}
	wire := guestStateWire{
		RNGState:    s.RNG.State,
		PrevInput:   s.PrevInput,
		CurInput:    s.CurInput,
		Persistence: s.Persistence.Clone(),
		Tracker:     trackerBlob,
		Tick:        s.Tick,
		Elapsed:     s.Elapsed,
		Quit:        s.Quit,
	}

	var body bytes.Buffer
	if err := gob.NewEncoder(&body).Encode(&wire); err != nil {
		return nil, fmt.Errorf("guest: state snapshot encode: %w", err)
	}

	var out bytes.Buffer
	out.WriteString(stateSnapshotMagic)
	binary.Write(&out, binary.LittleEndian, stateSnapshotVersion)
	binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

// Restore replaces s's contents from a previously captured blob. The Pass
// field is left as-is (reset on the next BeginTick) since it was excluded
// from the snapshot.
func (s *GuestState) Restore(blob []byte) error {
	if len(blob) < len(stateSnapshotMagic)+8 || string(blob[:len(stateSnapshotMagic)]) != stateSnapshotMagic {
		return fmt.Errorf("guest: bad state snapshot magic")
	}
	r := bytes.NewReader(blob[len(stateSnapshotMagic):])
	var version, bodyLen uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return err
	}
	if version != stateSnapshotVersion {
		return fmt.Errorf("guest: unsupported state snapshot version %d", version)
	}
	if err := binary.Read(r, binary.LittleEndian, &bodyLen); err != nil {
		return err
	}
	body := make([]byte, bodyLen)
	if _, err := r.Read(body); err != nil {
		return err
	}

	var wire guestStateWire
	if err := gob.NewDecoder(bytes.NewReader(body)).Decode(&wire); err != nil {
		return fmt.Errorf("guest: state snapshot decode: %w", err)
	}

	if s.Tracker == nil {
		s.Tracker = &tracker.EngineState{}
	}
	if err := s.Tracker.Restore(wire.Tracker); err != nil {
		return fmt.Errorf("guest: state snapshot tracker restore: %w", err)
	}

	s.RNG.State = wire.RNGState
	s.PrevInput = wire.PrevInput
	s.CurInput = wire.CurInput
	s.Persistence = wire.Persistence
	s.Tick = wire.Tick
	s.Elapsed = wire.Elapsed
	s.Quit = wire.Quit
	return nil
}

// Clone deep-copies the state without a serialization round trip.
func (s *GuestState) Clone() *GuestState {
	out := *s
	out.RNG = &rng.PCG32{State: s.RNG.State}
	out.Persistence = s.Persistence.Clone()
	out.Tracker = s.Tracker.Clone()
	// Pass is per-tick scratch space; the clone gets its own empty one.
	out.Pass = render.NewPass()
	return &out
}
