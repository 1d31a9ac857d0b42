package tracker

import "testing"

func nnaTestModule(nna NNA) *Module {
	samp := Sample{
		Data:       make([]float32, 4410),
		SampleRate: 22050,
	}
	for i := range samp.Data {
		samp.Data[i] = 0.5
	}
	inst := Instrument{
		Samples:     []Sample{samp},
		FadeoutRate: 0.5,
		NNA:         nna,
	}
	for i := range inst.SampleOf {
		inst.SampleOf[i] = 0
	}
	return &Module{
		ChannelCount: 1,
		InitialSpeed: 6,
		InitialTempo: 125,
		Instruments:  []Instrument{inst},
		Patterns:     []Pattern{{Rows: [][]Cell{{{Volume: -1}}}}},
		Order:        []int{0},
		GlobalVolume: 1,
	}
}

func TestNNA_NoteOffMovesVoiceToBackground(t *testing.T) {
	mod := nnaTestModule(NNANoteOff)
	e := NewEngine(mod, 22050)

	ch := &e.State.Channels[0]
	e.handleInstrumentChange(ch, 0)
	e.triggerNote(ch, 60, 0)
	if ch.SampleIdx != 0 {
		t.Fatalf("expected first note to trigger, got SampleIdx=%d", ch.SampleIdx)
	}

	e.triggerNote(ch, 64, 0)

	found := false
	for i := range e.State.Background {
		bg := &e.State.Background[i]
		if bg.SampleIdx < 0 {
			continue
		}
		found = true
		if !bg.KeyedOff {
			t.Fatalf("NNANoteOff background voice should be keyed off")
		}
		if bg.OriginChannel != 0 {
			t.Fatalf("background voice should record its origin channel, got %d", bg.OriginChannel)
		}
	}
	if !found {
		t.Fatalf("expected the previous note to survive in the background pool")
	}

	if ch.KeyedOff {
		t.Fatalf("the retriggered addressable channel should not be keyed off")
	}
	if ch.Volume != 1 {
		t.Fatalf("retriggered channel should reset to full volume, got %v", ch.Volume)
	}
}

func TestNNA_CutDiscardsVoiceOutright(t *testing.T) {
	mod := nnaTestModule(NNACut)
	e := NewEngine(mod, 22050)

	ch := &e.State.Channels[0]
	e.handleInstrumentChange(ch, 0)
	e.triggerNote(ch, 60, 0)
	e.triggerNote(ch, 64, 0)

	for i := range e.State.Background {
		if e.State.Background[i].SampleIdx >= 0 {
			t.Fatalf("NNACut must not populate the background pool")
		}
	}
}

func TestNNA_BackgroundVoiceFadesAndFreesSlot(t *testing.T) {
	mod := nnaTestModule(NNANoteFade)
	e := NewEngine(mod, 22050)

	ch := &e.State.Channels[0]
	e.handleInstrumentChange(ch, 0)
	e.triggerNote(ch, 60, 0)
	e.triggerNote(ch, 64, 0)

	if e.State.Background[0].SampleIdx < 0 {
		t.Fatalf("expected a background voice after NNANoteFade retrigger")
	}

	for i := 0; i < 10 && e.State.Background[0].SampleIdx >= 0; i++ {
		e.processPerTickEffects()
	}
	if e.State.Background[0].SampleIdx >= 0 {
		t.Fatalf("background voice should have fully faded and freed its slot")
	}
}

func TestNNA_DuplicateCheckReplacesMatchingVoice(t *testing.T) {
	mod := nnaTestModule(NNAContinue)
	e := NewEngine(mod, 22050)

	ch := &e.State.Channels[0]
	e.handleInstrumentChange(ch, 0)
	e.triggerNote(ch, 60, 0)
	e.triggerNote(ch, 60, 0) // retrigger same note: should replace, not accumulate
	e.triggerNote(ch, 60, 0)

	active := 0
	for i := range e.State.Background {
		if e.State.Background[i].SampleIdx >= 0 {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("expected the duplicate check to keep exactly one background voice, got %d", active)
	}
}

func TestMultiRetrigVolumeSaturatesAtZero(t *testing.T) {
	if got := multiRetrigVolume(0.01, 2); got != 0 { // mode 2: -2/64
		t.Fatalf("expected multi-retrig volume decrease to saturate at 0, got %v", got)
	}
	if got := multiRetrigVolume(0.9, 14); got != 1 { // mode 14: *2, clamps at 1
		t.Fatalf("expected multi-retrig volume increase to saturate at 1, got %v", got)
	}
}

func TestWaveformFromParam(t *testing.T) {
	cases := map[byte]Waveform{0: WaveSine, 1: WaveRampDown, 2: WaveSquare, 3: WaveRandom}
	for param, want := range cases {
		if got := waveformFromParam(param); got != want {
			t.Fatalf("waveformFromParam(%d) = %v, want %v", param, got, want)
		}
	}
}
