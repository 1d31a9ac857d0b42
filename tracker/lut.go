package tracker

import "math"

// Waveform table sizes: 256-point for IT-style sine, 16-point for XM-style
// sine. Computed once at package init, not per sample, so the inner mix
// loop never calls a transcendental function.
const (
	itSineSize = 256
	xmSineSize = 16

	linearPeriodEntriesPerOctave = 768
	linearPeriodOctaves          = 10
)

var (
	itSineTable [itSineSize]int8
	xmSineTable [xmSineSize]int8

	// linearFreqTable[i] = 2^(i/768) for i in [0, 768*10), used to convert a
	// linear period to a frequency multiplier: 768 entries per octave,
	// indexed by the truncated period with no interpolation between
	// neighbors.
	linearFreqTable [linearPeriodEntriesPerOctave * linearPeriodOctaves]float64

	panGainTable [257][2]float32 // index 0..256 maps panning -1..1 to (left,right) gains
)

func init() {
	for i := 0; i < itSineSize; i++ {
		v := math.Sin(2 * math.Pi * float64(i) / float64(itSineSize))
		itSineTable[i] = int8(clampRound(v * 64))
	}
	for i := 0; i < xmSineSize; i++ {
		v := math.Sin(2 * math.Pi * float64(i) / float64(xmSineSize))
		xmSineTable[i] = int8(clampRound(v * 64))
	}
	for i := range linearFreqTable {
		linearFreqTable[i] = math.Exp2(float64(i) / linearPeriodEntriesPerOctave)
	}
	for i := range panGainTable {
		// pan in [-1, 1], mapped to an equal-power cosine/sine law.
		pan := float64(i)/128 - 1
		angle := (pan + 1) * math.Pi / 4 // 0..pi/2
		panGainTable[i][0] = float32(math.Cos(angle))
		panGainTable[i][1] = float32(math.Sin(angle))
	}
}

func clampRound(v float64) float64 {
	if v > 64 {
		v = 64
	}
	if v < -64 {
		v = -64
	}
	if v >= 0 {
		return math.Floor(v + 0.5)
	}
	return math.Ceil(v - 0.5)
}

// Waveform selects the oscillator shape for vibrato/tremolo/panbrello.
type Waveform int

const (
	WaveSine Waveform = iota
	WaveRampDown
	WaveSquare
	WaveRandom
)

// itWave returns the 256-point table value (-64..64) for the given waveform
// and position, used by IT-style effects.
func itWave(w Waveform, pos int, rngNext func() uint32) int8 {
	idx := ((pos % itSineSize) + itSineSize) % itSineSize
	switch w {
	case WaveSine:
		return itSineTable[idx]
	case WaveRampDown:
		return int8(64 - (idx*128)/itSineSize)
	case WaveSquare:
		if idx < itSineSize/2 {
			return 64
		}
		return -64
	case WaveRandom:
		return int8(int32(rngNext()%129) - 64)
	default:
		return 0
	}
}

// xmWave returns the 16-point table value for XM-style effects.
func xmWave(w Waveform, pos int) int8 {
	idx := ((pos % xmSineSize) + xmSineSize) % xmSineSize
	switch w {
	case WaveSine:
		return xmSineTable[idx]
	case WaveRampDown:
		return int8(64 - (idx*128)/xmSineSize)
	case WaveSquare:
		if idx < xmSineSize/2 {
			return 64
		}
		return -64
	default:
		return 0
	}
}

// linearPeriodToFreq converts an IT/XM linear period to a playback
// frequency using the precomputed octave table.
func linearPeriodToFreq(period float64) float64 {
	const baseFreq = 8363.0 * 1024.0 // standard C-5 reference, IT convention
	// period is expressed directly as a linearFreqTable index by the caller.
	idx := int(period)
	if idx < 0 {
		idx = 0
	}
	if idx >= len(linearFreqTable) {
		idx = len(linearFreqTable) - 1
	}
	return baseFreq / linearFreqTable[idx] / 1024
}

// panGains returns (left, right) linear gains for a panning value in
// [-1, 1], interpolated from the cosine/sine LUT.
func panGains(pan float32) (float32, float32) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	f := (pan + 1) * 128
	i0 := int(f)
	if i0 > 256 {
		i0 = 256
	}
	i1 := i0 + 1
	if i1 > 256 {
		i1 = 256
	}
	frac := f - float32(i0)
	l := panGainTable[i0][0] + (panGainTable[i1][0]-panGainTable[i0][0])*frac
	r := panGainTable[i0][1] + (panGainTable[i1][1]-panGainTable[i0][1])*frac
	return l, r
}
