package tracker

import "math"

// processRow runs tick-0 row-boundary processing: instrument/note triggers,
// NNA handling, and the row's effect column.
func (e *Engine) processRow() {
	s := e.State
	pat := e.currentPattern()
	if pat == nil || s.Row >= len(pat.Rows) {
		return
	}
	row := pat.Rows[s.Row]
	for ci := range s.Channels {
		if ci >= len(row) {
			continue
		}
		cell := row[ci]
		ch := &s.Channels[ci]

		ch.NoteCutTick = -1
		ch.NoteDelayTick = -1

		if cell.Instrument > 0 {
			e.handleInstrumentChange(ch, cell.Instrument-1)
		}

		switch cell.Note {
		case NoteNone:
		case NoteOff:
			ch.KeyedOff = true
		case NoteCutVal:
			ch.Volume = 0
			ch.SampleIdx = -1
		default:
			e.triggerNote(ch, cell.Note, ci)
		}

		if cell.Volume >= 0 {
			e.applyVolumeColumn(ch, cell.Volume)
		}

		if cell.Effect != EffectNone && isRowOnlyEffect(cell.Effect) {
			e.dispatchEffect(ch, cell.Effect, cell.EffectParam, true)
		}
	}
}

func (e *Engine) handleInstrumentChange(ch *Channel, instIdx int) {
	if instIdx < 0 || instIdx >= len(e.Module.Instruments) {
		return
	}
	ch.InstrumentIdx = instIdx
}

// triggerNote starts a new sample on ch, applying NNA to any note still
// sounding first.
func (e *Engine) triggerNote(ch *Channel, note int, channelIdx int) {
	if ch.SampleIdx >= 0 && ch.Volume > 0 {
		e.applyNNA(ch, channelIdx)
	}

	inst := e.instrumentFor(ch)
	if inst == nil {
		return
	}
	if note < 0 || note >= len(inst.SampleOf) {
		return
	}
	sampleIdx := inst.SampleOf[note]
	if sampleIdx < 0 || sampleIdx >= len(inst.Samples) {
		return
	}
	samp := &inst.Samples[sampleIdx]

	ch.SampleIdx = sampleIdx
	ch.Position = 0
	ch.Direction = 1
	ch.KeyedOff = false
	ch.FadeoutVol = 1
	ch.VolEnvTick = 0
	ch.PanEnvTick = 0
	ch.PitchEnvTick = 0
	ch.Volume = 1
	ch.Finetune = samp.Finetune
	ch.NNA = inst.NNA

	ch.FadeInSamples = antiPopFadeSamples
	ch.BasePeriod = noteToPeriod(note+samp.RelativeNote, ch.Finetune, e.Module.LinearSlides)
	ch.Period = ch.BasePeriod
	ch.TargetPeriod = ch.BasePeriod
}

// applyNNA resolves the new-note action for a still-sounding channel about
// to retrigger. NNACut discards the old voice outright; the other three
// policies clone it into the background pool (see spawnBackgroundVoice) so
// it keeps sounding, releases, or fades independently of the
// pattern-addressable channel, which is always free to retrigger fresh.
func (e *Engine) applyNNA(ch *Channel, channelIdx int) {
	switch ch.NNA {
	case NNACut:
		ch.Volume = 0
		ch.SampleIdx = -1
	case NNANoteOff, NNANoteFade, NNAContinue:
		e.spawnBackgroundVoice(*ch, channelIdx)
	}
}

// spawnBackgroundVoice copies a still-sounding channel into the fixed
// background pool. NNANoteOff/NNANoteFade key the clone off immediately so
// its instrument fadeout takes over; NNAContinue leaves it playing exactly
// as it was. Duplicate check: a background voice already playing the same
// sample for the same origin channel is replaced rather than accumulated,
// matching the spec's "apply duplicate-check against background channels."
// When no matching or free slot exists, slot 0 is overwritten whatever its
// age — the pool is bounded, not unlimited.
func (e *Engine) spawnBackgroundVoice(voice Channel, originChannel int) {
	pool := e.State.Background
	if len(pool) == 0 {
		return
	}
	voice.Background = true
	voice.OriginChannel = originChannel
	if voice.NNA == NNANoteOff || voice.NNA == NNANoteFade {
		voice.KeyedOff = true
	}

	slot := -1
	for i := range pool {
		if pool[i].SampleIdx == voice.SampleIdx && pool[i].OriginChannel == originChannel && pool[i].SampleIdx >= 0 {
			slot = i
			break
		}
	}
	if slot < 0 {
		for i := range pool {
			if pool[i].SampleIdx < 0 {
				slot = i
				break
			}
		}
	}
	if slot < 0 {
		slot = 0
	}
	pool[slot] = voice
}

const antiPopFadeSamples = 64

func (e *Engine) instrumentFor(ch *Channel) *Instrument {
	if ch.InstrumentIdx < 0 || ch.InstrumentIdx >= len(e.Module.Instruments) {
		return nil
	}
	return &e.Module.Instruments[ch.InstrumentIdx]
}

// applyVolumeColumn interprets the cell's volume-column byte. Values 0..64
// set volume directly; values above that select a scaled effect in full
// IT/XM parsers. This implementation covers the direct-volume range and
// leaves the effect-coded range a no-op rather than guessing semantics.
func (e *Engine) applyVolumeColumn(ch *Channel, v int) {
	if v >= 0 && v <= 64 {
		ch.Volume = float32(v) / 64
	}
}

func noteToPeriod(note int, finetune int8, linear bool) float64 {
	if linear {
		// Linear period: semitone-resolution index into the shared octave
		// table, offset so note 60 (middle C) sits at a fixed reference.
		return float64((120-note)*linearPeriodEntriesPerOctave/12) - float64(finetune)/2
	}
	// Amiga period formula, coarse approximation sufficient for ordering
	// and frequency derivation; finetune is not applied on this path.
	const amigaBasePeriod = 1712.0
	semitoneRatio := math.Exp2(float64(note) / 12)
	return amigaBasePeriod / semitoneRatio
}
