package main

import (
	"encoding/binary"
	"math"

	"github.com/nethercore-systems/nethercore/guest"
	"github.com/nethercore-systems/nethercore/tracker"
)

// demoGuest is a minimal Guest: a single square that bounces around the
// viewport and plays a one-shot blip when player 0 presses A. It exists to
// exercise the driver end to end, not to be an interesting program.
type demoGuest struct {
	x, y   float32
	vx, vy float32
	blip   guest.Handle
}

func newDemoGuest() guest.Guest {
	return &demoGuest{x: 320, y: 240, vx: 2, vy: 1.5}
}

func (g *demoGuest) Init(api *guest.HostAPI) error {
	h, err := api.RomSound(0, 0)
	if err != nil {
		return err
	}
	g.blip = h
	return nil
}

func (g *demoGuest) Update(api *guest.HostAPI) error {
	g.x += g.vx
	g.y += g.vy
	if g.x < 0 || g.x > 620 {
		g.vx = -g.vx
	}
	if g.y < 0 || g.y > 460 {
		g.vy = -g.vy
	}
	if api.ButtonPressed(0, guest.ButtonA) {
		api.PlaySound(g.blip, 0.8, false)
		api.TrackerSetOrder(0)
		api.TrackerPlay()
	}
	return nil
}

func (g *demoGuest) Render(api *guest.HostAPI) error {
	api.SetViewport(0, 0, 640, 480)
	api.SetLayer(0)
	api.DrawRect(g.x, g.y, 20, 20)
	return nil
}

// demoModule builds the guest.Module the run command loads: a tiny tracker
// program (one instrument, one pattern) plus the bouncing-square Guest.
func demoModule() *guest.Module {
	assets := guest.NewAssetPack()
	assets.Put(guest.AssetSound, "", encodeSineAsset(440, 0.2, 22050))

	samp := tracker.Sample{
		Data:       sineSamples(220, 0.5, 22050),
		SampleRate: 22050,
	}
	inst := tracker.Instrument{
		Name:     "blip",
		Samples:  []tracker.Sample{samp},
		SampleOf: defaultSampleMap(),
	}
	pat := tracker.Pattern{Rows: make([][]tracker.Cell, 16)}
	for i := range pat.Rows {
		pat.Rows[i] = make([]tracker.Cell, 1)
		pat.Rows[i][0] = tracker.Cell{Volume: -1}
	}
	pat.Rows[0][0] = tracker.Cell{Note: 60, Instrument: 1, Volume: -1}

	return &guest.Module{
		Name:        "demo",
		MemorySize:  64 * 1024,
		MemoryLimit: 64 * 1024,
		Assets:      assets,
		Tracker: &tracker.Module{
			ChannelCount: 1,
			InitialSpeed: 6,
			InitialTempo: 125,
			Instruments:  []tracker.Instrument{inst},
			Patterns:     []tracker.Pattern{pat},
			Order:        []int{0},
			GlobalVolume: 1,
		},
		New: newDemoGuest,
	}
}

func defaultSampleMap() [120]int {
	var m [120]int
	return m
}

// sineSamples renders seconds of a sine wave at freqHz as mono float32
// samples in [-1, 1], tracker.Sample's own in-memory representation.
func sineSamples(freqHz, seconds float64, sampleRate int) []float32 {
	n := int(seconds * float64(sampleRate))
	samples := make([]float32, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		samples[i] = float32(math.Sin(2 * math.Pi * freqHz * t))
	}
	return samples
}

// encodeSineAsset renders the same waveform packed into the little-endian
// float32 byte layout a rom_sound asset carries, matching
// audio.DecodeSoundAsset's expected encoding.
func encodeSineAsset(freqHz, seconds float64, sampleRate int) []byte {
	samples := sineSamples(freqHz, seconds, sampleRate)
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(s))
	}
	return out
}
