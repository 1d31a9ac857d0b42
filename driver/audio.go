package driver

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/ebitengine/oto/v3"
)

// blockSource is an io.Reader oto.Player pulls from: it hands out whatever
// stereo float32 block was last pushed via Push, zero-filling the rest of a
// Read that runs past the block's end and starting the block over on the
// next Read; with no block pushed it reads silence. An atomic pointer swap keeps the hot Read path
// lock-free on the audio callback thread; it pulls whole fixed-size blocks
// instead of sampling a ring buffer, since the audio generator already
// produces one block per confirmed tick.
type blockSource struct {
	block atomic.Pointer[[]byte]
	pos   int
}

func (b *blockSource) Read(p []byte) (int, error) {
	cur := b.block.Load()
	if cur == nil || len(*cur) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	data := *cur
	n := copy(p, data[b.pos:])
	b.pos += n
	if b.pos >= len(data) {
		b.pos = 0
	}
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

// Output owns the oto playback context and feeds it fixed-size stereo
// blocks produced by the audio generator, one per confirmed tick.
type Output struct {
	ctx    *oto.Context
	player *oto.Player
	src    *blockSource
	mu     sync.Mutex
}

// NewOutput opens an oto playback context at sampleRate, stereo float32,
// formatted for low-latency playback.
func NewOutput(sampleRate int) (*Output, error) {
	opts := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   0,
	}
	ctx, ready, err := oto.NewContext(opts)
	if err != nil {
		return nil, err
	}
	<-ready

	src := &blockSource{}
	out := &Output{ctx: ctx, src: src}
	out.player = ctx.NewPlayer(src)
	out.player.Play()
	return out, nil
}

// Push hands the next tick's interleaved stereo PCM block to the player.
// interleaved is []float32; it is packed to raw little-endian bytes since
// oto.Player reads bytes, not samples.
func (o *Output) Push(interleaved []float32) {
	raw := make([]byte, len(interleaved)*4)
	for i, s := range interleaved {
		bits := math.Float32bits(s)
		raw[i*4] = byte(bits)
		raw[i*4+1] = byte(bits >> 8)
		raw[i*4+2] = byte(bits >> 16)
		raw[i*4+3] = byte(bits >> 24)
	}
	o.src.block.Store(&raw)
}

func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.player.Close()
}
