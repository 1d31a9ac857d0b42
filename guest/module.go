package guest

import "github.com/nethercore-systems/nethercore/tracker"

// Guest is the contract a loaded guest program satisfies: it exposes
// init/update/render entry points and is driven one tick at a time by
// whatever runs the simulation loop. HostAPI is the reverse direction — the
// ABI surface the host exposes back to guest code.
type Guest interface {
	// Init runs once, with InitOnly host calls (asset fetch) permitted. A
	// returned error aborts instance creation; NewGuestInstance returns it
	// wrapped.
	Init(api *HostAPI) error

	// Update advances simulation by exactly one fixed tick. It must be a
	// pure function of (GuestState, guest memory, inputs) — no host calls
	// that touch real wall-clock time or unseeded randomness.
	Update(api *HostAPI) error

	// Render emits this tick's render.Pass via the Graphics submission host
	// calls. It must not mutate simulation-relevant GuestState.
	Render(api *HostAPI) error
}

// StateSaver and StateLoader let a guest override the host's default linear
// memory snapshot with its own compact representation. If the guest exports
// save_state/load_state, those override the host-side memory snapshot;
// otherwise the host snapshots the guest's entire linear memory. A Guest
// implements neither, either, or both.
type StateSaver interface {
	SaveState() ([]byte, error)
}

type StateLoader interface {
	LoadState([]byte) error
}

// Module is the immutable, shared description of a loaded guest program: its
// linear-memory layout limits, its asset pack, and the tracker Module driving
// its audio. One Module may back many concurrent
// GuestInstances in local multiplayer or sync-test mode.
type Module struct {
	Name string

	MemorySize  int // initial linear memory size in bytes
	MemoryLimit int // growth ceiling; 0 means fixed at MemorySize

	Assets *AssetPack

	Tracker *tracker.Module

	// New constructs a fresh Guest for this module. Exercising a Go-level
	// interface here (rather than interpreting portable bytecode) is a
	// deliberate simplification: host-call names are illustrative of the ABI
	// shape, and the Guest interface is the host side of that same shape.
	New func() Guest
}
