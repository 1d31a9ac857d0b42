package audio

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/nethercore-systems/nethercore/guest"
	"github.com/nethercore-systems/nethercore/tracker"
)

// silentModule returns a *guest.Module whose tracker program never plays on
// its own, so tests can isolate one-shot sound mixing from tracker output.
func silentModule() *guest.Module {
	return &guest.Module{
		Tracker: &tracker.Module{
			ChannelCount: 1,
			InitialSpeed: 6,
			InitialTempo: 125,
			Order:        []int{0},
			Patterns:     []tracker.Pattern{{Rows: make([][]tracker.Cell, 1)}},
			GlobalVolume: 1,
		},
	}
}

// encodeSoundAsset packs mono float32 samples into the little-endian byte
// layout DecodeSoundAsset expects, mirroring how a rom_sound asset would
// arrive from the asset pack.
func encodeSoundAsset(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}

func TestBlockSamples(t *testing.T) {
	if got := BlockSamples(44100, 60); got != 735 {
		t.Fatalf("BlockSamples(44100, 60) = %d, want 735", got)
	}
	if got := BlockSamples(48000, 60); got != 800 {
		t.Fatalf("BlockSamples(48000, 60) = %d, want 800", got)
	}
}

func TestDecodeSoundAsset_RoundTrip(t *testing.T) {
	want := []float32{0, 0.5, -0.5, 1, -1}
	got := DecodeSoundAsset(encodeSoundAsset(want))
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestGenerator_Block_SilentWithNoInput(t *testing.T) {
	mod := silentModule()
	g := NewGenerator(mod, 22050)
	state := tracker.NewEngineState(mod.Tracker)

	out := g.Block(state, nil, 100, nil, nil)
	if len(out) != 200 {
		t.Fatalf("len(out) = %d, want 200", len(out))
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d = %v, want 0", i, v)
		}
	}
}

func TestGenerator_Block_MixesOneShotSound(t *testing.T) {
	mod := silentModule()
	g := NewGenerator(mod, 22050)
	state := tracker.NewEngineState(mod.Tracker)

	data := encodeSoundAsset([]float32{0.25, 0.5, -0.25, -0.5})
	resolve := func(h guest.Handle) ([]byte, bool) {
		if h != 7 {
			return nil, false
		}
		return data, true
	}
	sounds := []guest.OneShotSound{{Handle: 7, Volume: 1, Loop: false}}

	out := g.Block(state, nil, 4, sounds, resolve)
	want := []float32{0.25, 0.5, -0.25, -0.5}
	for i, w := range want {
		if out[i*2] != w || out[i*2+1] != w {
			t.Fatalf("frame %d = (%v, %v), want (%v, %v)", i, out[i*2], out[i*2+1], w, w)
		}
	}
}

func TestGenerator_Block_ClampsOverlappingVoices(t *testing.T) {
	mod := silentModule()
	g := NewGenerator(mod, 22050)
	state := tracker.NewEngineState(mod.Tracker)

	loud := encodeSoundAsset([]float32{0.9})
	resolve := func(h guest.Handle) ([]byte, bool) { return loud, true }
	sounds := []guest.OneShotSound{
		{Handle: 1, Volume: 1, Loop: false},
		{Handle: 2, Volume: 1, Loop: false},
	}

	out := g.Block(state, nil, 1, sounds, resolve)
	if out[0] != 1 || out[1] != 1 {
		t.Fatalf("out = %v, want clamped to 1", out)
	}
}

func TestGenerator_Block_NonLoopingVoicePrunedAfterExhausted(t *testing.T) {
	mod := silentModule()
	g := NewGenerator(mod, 22050)
	state := tracker.NewEngineState(mod.Tracker)

	data := encodeSoundAsset([]float32{1, 1})
	resolve := func(h guest.Handle) ([]byte, bool) { return data, true }
	sounds := []guest.OneShotSound{{Handle: 1, Volume: 1, Loop: false}}

	g.Block(state, nil, 2, sounds, resolve)
	if len(g.voices) != 0 {
		t.Fatalf("voices = %d, want 0 after exhausting non-looping sound", len(g.voices))
	}

	out := g.Block(state, nil, 2, nil, nil)
	for i, v := range out {
		if v != 0 {
			t.Fatalf("sample %d = %v, want 0 once voice is pruned", i, v)
		}
	}
}

func TestGenerator_Block_LoopingVoicePersists(t *testing.T) {
	mod := silentModule()
	g := NewGenerator(mod, 22050)
	state := tracker.NewEngineState(mod.Tracker)

	data := encodeSoundAsset([]float32{1, -1})
	resolve := func(h guest.Handle) ([]byte, bool) { return data, true }
	sounds := []guest.OneShotSound{{Handle: 1, Volume: 1, Loop: true}}

	g.Block(state, nil, 2, sounds, resolve)
	if len(g.voices) != 1 {
		t.Fatalf("voices = %d, want 1 after first block of a looping sound", len(g.voices))
	}

	out := g.Block(state, nil, 4, nil, nil)
	want := []float32{1, -1, 1, -1}
	for i, w := range want {
		if out[i*2] != w {
			t.Fatalf("frame %d = %v, want %v", i, out[i*2], w)
		}
	}
}

func TestGenerator_Reset_ClearsVoices(t *testing.T) {
	mod := silentModule()
	g := NewGenerator(mod, 22050)
	state := tracker.NewEngineState(mod.Tracker)

	data := encodeSoundAsset([]float32{1, 1, 1, 1})
	resolve := func(h guest.Handle) ([]byte, bool) { return data, true }
	sounds := []guest.OneShotSound{{Handle: 1, Volume: 1, Loop: true}}

	g.Block(state, nil, 2, sounds, resolve)
	g.Reset()
	if len(g.voices) != 0 {
		t.Fatalf("voices = %d, want 0 after Reset", len(g.voices))
	}
}
