package guest

import (
	"fmt"

	"github.com/nethercore-systems/nethercore/render"
)

// RenderOutput is the per-tick handoff from a guest instance to the video
// backend: a sorted Pass plus the camera state accumulated via the Graphics
// submission host calls.
type RenderOutput struct {
	Pass   *render.Pass
	Camera render.Camera
}

// GuestInstance binds one Module to one running Guest: its linear memory,
// its GuestState, and the HostAPI that services its host calls. The
// simulation thread owns it exclusively; there is no concurrent access
// from anywhere else.
type GuestInstance struct {
	Module *Module
	Guest  Guest
	Memory *Memory
	State  *GuestState

	api *HostAPI
}

// NewGuestInstance allocates a fresh instance from mod and seeds it, then
// runs Init with init-only host calls enabled. A trap or error during Init
// aborts instance creation.
func NewGuestInstance(mod *Module, seed uint64) (*GuestInstance, error) {
	mem := NewMemory(mod.MemorySize, mod.MemoryLimit)
	state := NewGuestState(mod, seed)
	handles := newHandleArena()
	api := newHostAPI(mem, state, mod, handles)

	g := mod.New()
	inst := &GuestInstance{Module: mod, Guest: g, Memory: mem, State: state, api: api}

	api.beginInit()
	err := g.Init(api)
	api.endInit()
	if err != nil {
		return nil, fmt.Errorf("guest: init failed: %w", err)
	}
	if trap := api.Trapped(); trap != nil {
		return nil, trap
	}
	return inst, nil
}

// Update advances the instance by exactly one tick given the inputs for that
// tick. It returns the guest's error (if Update itself failed) or any trap
// raised during the call; either terminates the session.
func (inst *GuestInstance) Update(inputs [MaxPlayers]InputFrame) error {
	inst.State.BeginTick(inputs)
	inst.api.beginTick()

	if err := inst.Guest.Update(inst.api); err != nil {
		return err
	}
	if trap := inst.api.Trapped(); trap != nil {
		return trap
	}

	inst.State.Tick++
	inst.State.Elapsed += inst.api.DeltaTime()
	return nil
}

// Render emits this tick's render commands via the Graphics submission host
// calls and returns the resulting pass for the backend to consume.
func (inst *GuestInstance) Render() (*RenderOutput, error) {
	if err := inst.Guest.Render(inst.api); err != nil {
		return nil, err
	}
	if trap := inst.api.Trapped(); trap != nil {
		return nil, trap
	}
	inst.State.Pass.Sort()
	return &RenderOutput{Pass: inst.State.Pass, Camera: inst.api.Camera()}, nil
}

// Quit reports whether the guest called quit() this tick.
func (inst *GuestInstance) Quit() bool { return inst.State.Quit }

// Sounds returns this tick's enqueued one-shot sounds, for the audio
// generator to mix alongside tracker output.
func (inst *GuestInstance) Sounds() []OneShotSound { return inst.api.Sounds() }

// SoundData resolves a one-shot sound's handle to its raw PCM asset bytes.
func (inst *GuestInstance) SoundData(h Handle) ([]byte, bool) { return inst.api.SoundData(h) }

// Snapshot captures everything needed to replay from this point: the guest's
// memory (or its own compact save_state if it implements StateSaver) plus
// GuestState.
func (inst *GuestInstance) Snapshot() (*InstanceSnapshot, error) {
	stateBlob, err := inst.State.Snapshot()
	if err != nil {
		return nil, err
	}

	snap := &InstanceSnapshot{GuestState: stateBlob}
	if saver, ok := inst.Guest.(StateSaver); ok {
		mem, err := saver.SaveState()
		if err != nil {
			return nil, fmt.Errorf("guest: SaveState: %w", err)
		}
		snap.Memory = mem
		snap.GuestOwned = true
	} else {
		snap.Memory = append([]byte(nil), inst.Memory.Bytes()...)
		snap.GuestOwned = false
	}
	return snap, nil
}

// Restore replaces the instance's memory and GuestState from a previously
// captured snapshot, making the instance behaviorally identical to the
// moment the snapshot was taken.
func (inst *GuestInstance) Restore(snap *InstanceSnapshot) error {
	if err := inst.State.Restore(snap.GuestState); err != nil {
		return err
	}
	if snap.GuestOwned {
		loader, ok := inst.Guest.(StateLoader)
		if !ok {
			return fmt.Errorf("guest: snapshot was guest-owned but Guest has no LoadState")
		}
		return loader.LoadState(snap.Memory)
	}
	inst.Memory.SetBytes(snap.Memory)
	return nil
}

// InstanceSnapshot is the opaque, driver-visible capture of one instance's
// full replayable state.
type InstanceSnapshot struct {
	GuestState []byte
	Memory     []byte
	GuestOwned bool // true if Memory came from the guest's own StateSaver
}
