// Package audio combines a guest's per-tick one-shot sound submissions with
// the tracker engine's output into one fixed-size stereo PCM block per
// simulation tick.
package audio

import (
	"encoding/binary"
	"math"

	"github.com/nethercore-systems/nethercore/guest"
	"github.com/nethercore-systems/nethercore/tracker"
)

// BlockSamples returns the number of stereo frames one simulation tick must
// produce at sampleRate given the module's declared tickRate.
func BlockSamples(sampleRate, tickRate float64) int {
	return int(math.Round(sampleRate / tickRate))
}

// DecodeSoundAsset unpacks a rom_sound asset payload into mono float32
// samples in [-1, 1]: little-endian float32 values, the same representation
// tracker.Sample.Data uses, so the mixer's read/interpolate path is shared
// conceptually between tracker voices and one-shot sounds.
func DecodeSoundAsset(raw []byte) []float32 {
	n := len(raw) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		out[i] = math.Float32frombits(bits)
	}
	return out
}

// voice is one currently-sounding one-shot playback. Voices are not part of
// any rollback snapshot: they are mixer-side bookkeeping for a side channel
// whose entire contract is "discarded, not replayed, on rollback re-advance"
// — the same reasoning that keeps GPU handles and audio device handles out
// of GuestState.
type voice struct {
	data   []float32
	pos    int
	volume float32
	loop   bool
}

// Generator mixes one-shot sounds with tracker.Engine output into fixed-size
// PCM blocks, one per confirmed simulation tick. It is driven by the host
// loop, never by the rollback session directly, so it never observes a
// rolling-back tick.
type Generator struct {
	engine *tracker.Engine
	voices []voice
}

// NewGenerator binds a Generator to the module's tracker program and output
// sample rate. The tracker.EngineState it advances is state.Tracker, so the
// same state the rollback session snapshots is the one the generator plays.
func NewGenerator(mod *guest.Module, sampleRate float64) *Generator {
	return &Generator{engine: tracker.NewEngine(mod.Tracker, sampleRate)}
}

// Block produces one tick's stereo PCM, as interleaved [l0, r0, l1, r1, ...]
// float32 samples. cmds are this tick's tracker-control host calls; sounds
// are this tick's one-shot submissions, resolved to PCM data via resolve.
// Block must only be called for confirmed ticks — the caller discards
// sounds (and never calls Block at all) for ticks being re-advanced during
// rollback, per the audio-submission discard rule.
func (g *Generator) Block(state *tracker.EngineState, cmds []tracker.Command, wantSamples int, sounds []guest.OneShotSound, resolve func(guest.Handle) ([]byte, bool)) []float32 {
	g.engine.State = state
	out := g.engine.Advance(cmds, wantSamples)

	for _, s := range sounds {
		data, ok := resolve(s.Handle)
		if !ok || len(data) == 0 {
			continue
		}
		g.voices = append(g.voices, voice{data: DecodeSoundAsset(data), volume: s.Volume, loop: s.Loop})
	}

	live := g.voices[:0]
	for i := range g.voices {
		v := &g.voices[i]
		for s := 0; s < wantSamples; s++ {
			if v.pos >= len(v.data) {
				if v.loop && len(v.data) > 0 {
					v.pos = 0
				} else {
					break
				}
			}
			sample := v.data[v.pos] * v.volume
			out[s*2] += sample
			out[s*2+1] += sample
			v.pos++
		}
		if v.pos < len(v.data) || v.loop {
			live = append(live, *v)
		}
	}
	g.voices = live

	for i := range out {
		if out[i] > 1 {
			out[i] = 1
		} else if out[i] < -1 {
			out[i] = -1
		}
	}
	return out
}

// Reset clears all currently-sounding one-shot voices, for use when a
// session starts over or a guest instance is replaced.
func (g *Generator) Reset() { g.voices = nil }
