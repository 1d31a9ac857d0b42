package tracker

import "testing"

func simpleModule() *Module {
	samp := Sample{
		Data:       make([]float32, 4410),
		SampleRate: 22050,
		LoopStart:  0,
		LoopEnd:    0,
	}
	for i := range samp.Data {
		samp.Data[i] = float32(i%100) / 100
	}

	inst := Instrument{
		SampleOf: [120]int{},
		Samples:  []Sample{samp},
		FadeoutRate: 0.01,
	}
	for i := range inst.SampleOf {
		inst.SampleOf[i] = 0
	}

	pat := Pattern{Rows: make([][]Cell, 64)}
	for i := range pat.Rows {
		pat.Rows[i] = make([]Cell, 4)
		for c := range pat.Rows[i] {
			pat.Rows[i][c] = Cell{Volume: -1}
		}
	}
	pat.Rows[0][0] = Cell{Note: 60, Instrument: 1, Volume: -1}
	pat.Rows[8][0] = Cell{Volume: -1, Effect: EffectVibrato, EffectParam: 0x48}

	return &Module{
		ChannelCount: 4,
		InitialSpeed: 6,
		InitialTempo: 125,
		Instruments:  []Instrument{inst},
		Patterns:     []Pattern{pat},
		Order:        []int{0},
		GlobalVolume: 1,
	}
}

func TestEngine_TickIsPure(t *testing.T) {
	mod := simpleModule()

	e1 := NewEngine(mod, 22050)
	e1.State.Playing = true
	e2 := NewEngine(mod, 22050)
	e2.State.Playing = true

	cmds := []Command{{Kind: CmdPlay}}
	for tick := 0; tick < 50; tick++ {
		pcm1 := e1.Advance(cmds, 200)
		pcm2 := e2.Advance(cmds, 200)
		for i := range pcm1 {
			if pcm1[i] != pcm2[i] {
				t.Fatalf("tick %d sample %d diverged: %v != %v", tick, i, pcm1[i], pcm2[i])
			}
		}
	}
}

func TestEngine_SnapshotRoundTrip(t *testing.T) {
	mod := simpleModule()
	e := NewEngine(mod, 22050)
	e.State.Playing = true

	cmds := []Command{{Kind: CmdPlay}}
	e.Advance(cmds, 10000)

	blob, err := e.State.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	rest := NewEngine(mod, 22050)
	if err := rest.State.Restore(blob); err != nil {
		t.Fatalf("restore: %v", err)
	}

	want := e.Advance(nil, 4000)
	got := rest.Advance(nil, 4000)
	for i := range want {
		if want[i] != got[i] {
			t.Fatalf("sample %d diverged after restore: %v != %v", i, want[i], got[i])
		}
	}
}

func TestEngine_PauseResumeMatchesContinuous(t *testing.T) {
	mod := simpleModule()

	continuous := NewEngine(mod, 22050)
	continuous.State.Playing = true
	full := continuous.Advance([]Command{{Kind: CmdPlay}}, 20000)

	split := NewEngine(mod, 22050)
	split.State.Playing = true
	first := split.Advance([]Command{{Kind: CmdPlay}}, 10000)
	blob, err := split.State.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	resumed := NewEngine(mod, 22050)
	if err := resumed.State.Restore(blob); err != nil {
		t.Fatalf("restore: %v", err)
	}
	second := resumed.Advance(nil, 10000)

	for i, v := range first {
		if full[i] != v {
			t.Fatalf("first half diverged at %d", i)
		}
	}
	for i, v := range second {
		if full[10000*2+i] != v {
			t.Fatalf("second half diverged at %d", i)
		}
	}
}
