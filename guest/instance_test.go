package guest

import (
	"testing"

	"github.com/nethercore-systems/nethercore/tracker"
)

// scriptedGuest is a minimal Guest used across tests: its Init does nothing,
// every Update increments a counter and draws one random number, and every
// Render is counted and submits one quad.
type scriptedGuest struct {
	assetID   string
	gotHandle Handle
	ticks     int
	rendered  int
}

func (g *scriptedGuest) Init(api *HostAPI) error {
	return nil
}

func (g *scriptedGuest) Update(api *HostAPI) error {
	g.ticks++
	api.Random()
	return nil
}

func (g *scriptedGuest) Render(api *HostAPI) error {
	g.rendered++
	api.SetViewport(0, 0, 320, 240)
	api.DrawRect(0, 0, 10, 10)
	return nil
}

func testModule() *Module {
	return &Module{
		Name:        "test",
		MemorySize:  4096,
		MemoryLimit: 4096,
		Assets:      NewAssetPack(),
		Tracker: &tracker.Module{
			ChannelCount: 1,
			InitialSpeed: 6,
			InitialTempo: 125,
		},
		New: func() Guest { return &scriptedGuest{} },
	}
}

func TestGuestInstance_LifecycleRunsInOrder(t *testing.T) {
	mod := testModule()
	inst, err := NewGuestInstance(mod, 42)
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}

	var inputs [MaxPlayers]InputFrame
	if err := inst.Update(inputs); err != nil {
		t.Fatalf("update: %v", err)
	}
	out, err := inst.Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(out.Pass.Commands) != 1 {
		t.Fatalf("expected 1 submitted command, got %d", len(out.Pass.Commands))
	}
	if inst.State.Tick != 1 {
		t.Fatalf("expected tick 1, got %d", inst.State.Tick)
	}
}

func TestGuestInstance_AssetFetchOutsideInitTraps(t *testing.T) {
	mod := testModule()
	mod.Assets.PutData("sound.raw", []byte{1, 2, 3})
	mod.New = func() Guest { return &lateFetchGuestImpl{} }

	inst, err := NewGuestInstance(mod, 1)
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}
	var inputs [MaxPlayers]InputFrame
	err = inst.Update(inputs)
	if err == nil {
		t.Fatal("expected a trap calling rom_data outside init, got nil")
	}
	trap, ok := err.(*Trap)
	if !ok {
		t.Fatalf("expected *Trap, got %T: %v", err, err)
	}
	if trap.Reason != TrapInitOnlyAfterInit {
		t.Fatalf("expected TrapInitOnlyAfterInit, got %v", trap.Reason)
	}
}

// lateFetchGuestImpl calls an init-only host call from Update, which must trap.
type lateFetchGuestImpl struct{}

func (g *lateFetchGuestImpl) Init(api *HostAPI) error   { return nil }
func (g *lateFetchGuestImpl) Update(api *HostAPI) error { return api.RomData(0, 9, 0, 16) }
func (g *lateFetchGuestImpl) Render(api *HostAPI) error { return nil }

func TestGuestInstance_SnapshotRoundTrip(t *testing.T) {
	mod := testModule()
	inst, err := NewGuestInstance(mod, 7)
	if err != nil {
		t.Fatalf("new instance: %v", err)
	}

	var inputs [MaxPlayers]InputFrame
	for i := 0; i < 5; i++ {
		if err := inst.Update(inputs); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}
	snap, err := inst.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// Advance further, then restore; the restored RNG state and tick must
	// match a fresh instance run for the same five ticks.
	for i := 0; i < 5; i++ {
		inst.Update(inputs)
	}
	if err := inst.Restore(snap); err != nil {
		t.Fatalf("restore: %v", err)
	}
	rngAfterRestore := inst.State.RNG.State
	tickAfterRestore := inst.State.Tick

	other, err := NewGuestInstance(mod, 7)
	if err != nil {
		t.Fatalf("new instance (other): %v", err)
	}
	for i := 0; i < 5; i++ {
		other.Update(inputs)
	}
	otherSnap, _ := other.Snapshot()
	if err := other.Restore(otherSnap); err != nil {
		t.Fatalf("restore (other): %v", err)
	}
	if rngAfterRestore != other.State.RNG.State {
		t.Fatalf("rng state diverged after restore: %d != %d", rngAfterRestore, other.State.RNG.State)
	}
	if tickAfterRestore != other.State.Tick {
		t.Fatalf("tick diverged after restore: %d != %d", tickAfterRestore, other.State.Tick)
	}
}

func TestPersistenceSlots_BoundsObeyed(t *testing.T) {
	var p PersistenceSlots
	if code := p.Save(-1, []byte("x")); code != PersistInvalidSlot {
		t.Fatalf("expected invalid slot, got %d", code)
	}
	big := make([]byte, MaxSaveSize+1)
	if code := p.Save(0, big); code != PersistInvalidRange {
		t.Fatalf("expected invalid range, got %d", code)
	}
	if p.Slots[0] != nil {
		t.Fatal("oversize save must not mutate state")
	}

	if code := p.Save(0, []byte("hello")); code != PersistOK {
		t.Fatalf("expected ok, got %d", code)
	}
	data, n := p.Load(0, 64)
	if n != 5 || string(data) != "hello" {
		t.Fatalf("unexpected load result: %q, %d", data, n)
	}
}
