package tracker

// Channel is one voice's full snapshot-relevant state.
type Channel struct {
	Muted bool

	InstrumentIdx int // -1 = none
	SampleIdx     int // -1 = none
	Position      float64
	Direction     int8 // +1 or -1, for ping-pong loops

	Period       float64
	BasePeriod   float64
	TargetPeriod float64 // for tone portamento
	Finetune     int8

	Volume        float32 // 0..1
	ChannelVolume int     // 0..64
	Panning       float32 // -1..1

	VolEnvTick  int
	PanEnvTick  int
	PitchEnvTick int
	KeyedOff    bool
	FadeoutVol  float32 // 1.0 at key-off, ramps to 0

	// Per-effect memory cells.
	LastVolSlide     byte
	LastChannelVolSlide byte
	LastGlobalVolSlide  byte
	LastVibrato      byte
	LastPortaUp      byte
	LastPortaDown    byte
	LastTonePorta    byte
	LastFinePortaUp  byte
	LastFinePortaDown byte
	LastSampleOffset byte
	LastTremolo      byte
	LastPanningSlide byte
	SharedEGMemory   byte // shared E/F/G memory when LinkGMemory is set

	LastPanbrello      byte
	LastPitchSlideUp   byte
	LastPitchSlideDown byte
	LastMultiRetrig    byte

	VibratoWaveform  Waveform
	VibratoPos       int
	TremoloWaveform  Waveform
	TremoloPos       int
	PanbrelloWaveform Waveform
	PanbrelloPos     int

	TremorOn      bool
	TremorCounter int
	RetriggerCounter int
	NoteCutTick   int // -1 if none scheduled this row
	NoteDelayTick int // -1 if none scheduled this row
	ArpTick       int
	ArpOffset1    int
	ArpOffset2    int

	FadeInSamples  int     // anti-pop crossfade-in remaining
	FadeOutSamples int     // anti-pop crossfade-out remaining
	PrevSample     float32 // last mixer output, for the crossfade

	FilterCutoff    float32 // 0..1, 1 = filter fully open (no attenuation)
	FilterResonance float32 // 0..1
	FilterState     float32 // one-pole lowpass memory

	Glissando bool // tone portamento snaps to semitone steps rather than sliding smoothly
	Surround  bool // phase-inverted right channel, classic pseudo-surround trick

	NNA            NNA
	Background     bool // true for a voice moved off by NNA, no longer addressable by pattern data
	OriginChannel  int  // pattern channel this background voice was split from; unused for addressable channels
}

func newChannel() Channel {
	return Channel{
		InstrumentIdx: -1,
		SampleIdx:     -1,
		Direction:     1,
		Volume:        1,
		ChannelVolume: 64,
		FadeoutVol:    1,
		NoteCutTick:   -1,
		NoteDelayTick: -1,
		FilterCutoff:  1,
		OriginChannel: -1,
	}
}

// effectiveVolume folds channel volume, note volume, volume envelope, and
// fadeout into one linear gain.
func (c *Channel) effectiveVolume(mod *Module, inst *Instrument) float32 {
	v := c.Volume * (float32(c.ChannelVolume) / 64) * c.FadeoutVol
	if inst != nil {
		v *= inst.VolumeEnvelope.ValueAt(c.VolEnvTick)
	}
	return v
}
