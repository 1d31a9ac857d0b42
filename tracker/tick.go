package tracker

import "math"

// processPerTickEffects runs every active per-tick effect on every channel
// in channel order, advances envelopes and fadeout, and schedules
// note-cut/delay.
func (e *Engine) processPerTickEffects() {
	s := e.State
	for ci := range s.Channels {
		e.advanceChannelLifecycle(&s.Channels[ci])
	}
	for bi := range s.Background {
		bg := &s.Background[bi]
		e.advanceChannelLifecycle(bg)
		// A background voice that has fully faded after key-off frees its
		// pool slot for the next NNA migration.
		if bg.KeyedOff && bg.FadeoutVol <= 0 {
			bg.SampleIdx = -1
		}
	}

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
		if cell.Effect == EffectNone || isRowOnlyEffect(cell.Effect) {
			continue
		}
		e.dispatchEffect(&s.Channels[ci], cell.Effect, cell.EffectParam, false)
	}
}

// advanceChannelLifecycle runs the per-tick bookkeeping shared by
// addressable channels and background (NNA) voices: note-cut/delay release,
// envelope advance, and post-key-off fadeout.
func (e *Engine) advanceChannelLifecycle(ch *Channel) {
	s := e.State
	if ch.NoteDelayTick == s.Tick {
		// The scheduled delay tick only clears the marker: the row's note
		// was already triggered on tick 0, so playback is not postponed.
		ch.NoteDelayTick = -1
	}
	if ch.NoteCutTick == s.Tick {
		ch.Volume = 0
	}

	if ch.Muted {
		return
	}
	e.advanceEnvelopes(ch)
	if ch.KeyedOff {
		inst := e.instrumentFor(ch)
		rate := float32(0)
		if inst != nil {
			rate = inst.FadeoutRate
		}
		ch.FadeoutVol -= rate
		if ch.FadeoutVol < 0 {
			ch.FadeoutVol = 0
		}
	}
}

func (e *Engine) advanceEnvelopes(ch *Channel) {
	inst := e.instrumentFor(ch)
	if inst == nil {
		return
	}
	ch.VolEnvTick = advanceEnvTick(&inst.VolumeEnvelope, ch.VolEnvTick, ch.KeyedOff)
	ch.PanEnvTick = advanceEnvTick(&inst.PanningEnvelope, ch.PanEnvTick, ch.KeyedOff)
}

// advanceEnvTick moves an envelope cursor forward by one tick, holding at
// the sustain point while the note is held and not keyed off, and wrapping
// at the loop range otherwise.
func advanceEnvTick(env *Envelope, tick int, keyedOff bool) int {
	if !env.Enabled || len(env.Points) == 0 {
		return tick
	}
	if env.SustainIdx >= 0 && !keyedOff {
		sustainTick := env.Points[env.SustainIdx].Tick
		if tick >= sustainTick {
			return sustainTick
		}
	}
	tick++
	if env.LoopStart >= 0 && env.LoopEnd > env.LoopStart {
		loopStartTick := env.Points[env.LoopStart].Tick
		loopEndTick := env.Points[env.LoopEnd].Tick
		if tick > loopEndTick {
			tick = loopStartTick
		}
	}
	return tick
}

// dispatchEffect runs one effect cell. rowBoundary distinguishes tick-0
// (row-only effects already filtered by caller) from later ticks so shared
// handlers can tell which phase they're in when it matters (e.g. arpeggio
// is a no-op on tick 0 in some trackers; here it simply always cycles).
func (e *Engine) dispatchEffect(ch *Channel, kind EffectKind, param byte, rowBoundary bool) {
	s := e.State
	scale := vibratoDepthScale(e.Module.OldEffects)

	// With LinkGMemory set, porta up/down/tone share one memory cell.
	if e.Module.LinkGMemory && (kind == EffectPortaUp || kind == EffectPortaDown || kind == EffectTonePorta) {
		if param > 0 {
			ch.SharedEGMemory = param
		}
		ch.LastPortaUp, ch.LastPortaDown, ch.LastTonePorta = ch.SharedEGMemory, ch.SharedEGMemory, ch.SharedEGMemory
	}

	switch kind {
	case EffectSetSpeed:
		if param > 0 {
			s.Speed = int(param)
		}
	case EffectSetTempo:
		if param >= 0x20 {
			s.Tempo = int(param)
		}
	case EffectPatternBreak:
		s.PendingBreak = true
		s.PendingBreakRow = int(param)
	case EffectPositionJump:
		s.PendingJump = true
		s.PendingJumpOrder = int(param)
	case EffectPatternDelay:
		if !rowBoundary {
			break
		}
		s.PatternDelay = int(param)
	case EffectPatternLoop:
		if param == 0 {
			s.LoopStart = s.Row
		} else {
			s.LoopCount++
		}
	case EffectArpeggio:
		hi := int(param >> 4)
		lo := int(param & 0x0F)
		switch s.Tick % 3 {
		case 1:
			ch.Period = periodForSemitoneOffset(ch.BasePeriod, hi, e.Module.LinearSlides)
		case 2:
			ch.Period = periodForSemitoneOffset(ch.BasePeriod, lo, e.Module.LinearSlides)
		default:
			ch.Period = ch.BasePeriod
		}
	case EffectPortaUp:
		if param > 0 {
			ch.LastPortaUp = param
		}
		ch.Period -= float64(ch.LastPortaUp) * 4
		ch.BasePeriod = ch.Period
	case EffectPortaDown:
		if param > 0 {
			ch.LastPortaDown = param
		}
		ch.Period += float64(ch.LastPortaDown) * 4
		ch.BasePeriod = ch.Period
	case EffectTonePorta, EffectTonePortaVolSlide:
		if param > 0 && kind == EffectTonePorta {
			ch.LastTonePorta = param
		}
		step := float64(ch.LastTonePorta) * 4
		if ch.Period < ch.TargetPeriod {
			ch.Period += step
			if ch.Period > ch.TargetPeriod {
				ch.Period = ch.TargetPeriod
			}
		} else if ch.Period > ch.TargetPeriod {
			ch.Period -= step
			if ch.Period < ch.TargetPeriod {
				ch.Period = ch.TargetPeriod
			}
		}
		if ch.Glissando && e.Module.LinearSlides {
			semitone := float64(linearPeriodEntriesPerOctave) / 12
			ch.Period = math.Round(ch.Period/semitone) * semitone
		}
		if kind == EffectTonePortaVolSlide {
			applyVolSlideParam(ch, param)
		}
	case EffectVibrato, EffectVibratoVolSlide:
		if param&0xF0 != 0 {
			ch.LastVibrato = (ch.LastVibrato & 0x0F) | (param & 0xF0)
		}
		if param&0x0F != 0 {
			ch.LastVibrato = (ch.LastVibrato & 0xF0) | (param & 0x0F)
		}
		speed := int(ch.LastVibrato >> 4)
		depth := float32(ch.LastVibrato&0x0F) * scale
		ch.VibratoPos += speed
		wave := itWave(ch.VibratoWaveform, ch.VibratoPos, s.nextRandom)
		ch.Period = ch.BasePeriod + float64(depth)*float64(wave)/64
		if kind == EffectVibratoVolSlide {
			applyVolSlideParam(ch, param)
		}
	case EffectTremolo:
		if param != 0 {
			ch.LastTremolo = param
		}
		speed := int(ch.LastTremolo >> 4)
		depth := float32(ch.LastTremolo&0x0F) * scale / 64
		ch.TremoloPos += speed
		wave := itWave(ch.TremoloWaveform, ch.TremoloPos, s.nextRandom)
		mod := depth * float32(wave) / 64
		v := ch.Volume + mod
		if v < 0 {
			v = 0
		}
		if v > 1 {
			v = 1
		}
		ch.Volume = v
	case EffectPanbrello:
		if param != 0 {
			ch.LastPanbrello = param
		}
		speed := int(ch.LastPanbrello >> 4)
		depth := float32(ch.LastPanbrello&0x0F) * scale / 64
		ch.PanbrelloPos += speed
		wave := itWave(ch.PanbrelloWaveform, ch.PanbrelloPos, s.nextRandom)
		p := ch.Panning + depth*float32(wave)/64
		if p < -1 {
			p = -1
		}
		if p > 1 {
			p = 1
		}
		ch.Panning = p
	case EffectPitchSlideUp:
		if param > 0 {
			ch.LastPitchSlideUp = param
		}
		ch.Period -= float64(ch.LastPitchSlideUp)
		ch.BasePeriod = ch.Period
	case EffectPitchSlideDown:
		if param > 0 {
			ch.LastPitchSlideDown = param
		}
		ch.Period += float64(ch.LastPitchSlideDown)
		ch.BasePeriod = ch.Period
	case EffectVolSlide:
		if param != 0 {
			ch.LastVolSlide = param
		}
		applyVolSlideParam(ch, ch.LastVolSlide)
	case EffectChannelVolSlide:
		if param != 0 {
			ch.LastChannelVolSlide = param
		}
		applyChannelVolSlideParam(ch, ch.LastChannelVolSlide)
	case EffectGlobalVolSlide:
		if param != 0 {
			ch.LastGlobalVolSlide = param
		}
		applyGlobalVolSlideParam(s, ch.LastGlobalVolSlide)
	case EffectSetVolume:
		if int(param) <= 64 {
			ch.Volume = float32(param) / 64
		}
	case EffectSetPanning:
		ch.Panning = float32(param)/128 - 1
	case EffectPanningSlide:
		if param != 0 {
			ch.LastPanningSlide = param
		}
		applyPanningSlideParam(ch, ch.LastPanningSlide)
	case EffectSampleOffset:
		if !rowBoundary {
			break
		}
		ch.Position = float64(param) * 256
	case EffectRetrigger:
		interval := int(param & 0x0F)
		if interval > 0 {
			ch.RetriggerCounter++
			if ch.RetriggerCounter >= interval {
				ch.RetriggerCounter = 0
				ch.Position = 0
			}
		}
	case EffectNoteCut:
		if rowBoundary {
			ch.NoteCutTick = int(param)
		}
	case EffectNoteDelay:
		if rowBoundary {
			ch.NoteDelayTick = int(param)
		}
	case EffectKeyOff:
		ch.KeyedOff = true
	case EffectSetFinetune:
		ch.Finetune = int8(param)
	case EffectTempoSlide:
		hi := int(param >> 4)
		lo := int(param & 0x0F)
		switch {
		case hi > 0 && lo == 0:
			s.Tempo += hi
		case lo > 0 && hi == 0:
			s.Tempo -= lo
		}
		if s.Tempo < 32 {
			s.Tempo = 32
		}
		if s.Tempo > 255 {
			s.Tempo = 255
		}
	case EffectFinePatternDelay:
		if !rowBoundary {
			break
		}
		s.PatternDelay += int(param)
	case EffectSetFilterCutoff:
		ch.FilterCutoff = float32(param&0x7F) / 127
	case EffectSetFilterResonance:
		ch.FilterResonance = float32(param&0x7F) / 127
	case EffectSetEnvelopePosition:
		if !rowBoundary {
			break
		}
		ch.VolEnvTick = int(param)
		ch.PanEnvTick = int(param)
	case EffectSurround:
		if !rowBoundary {
			break
		}
		ch.Surround = param != 0
	case EffectReverseSample:
		if !rowBoundary {
			break
		}
		ch.Direction = -1
	case EffectGlissando:
		ch.Glissando = param != 0
	case EffectMultiRetrig:
		if param != 0 {
			ch.LastMultiRetrig = param
		}
		interval := int(ch.LastMultiRetrig & 0x0F)
		volMode := int(ch.LastMultiRetrig >> 4)
		if interval <= 0 {
			break
		}
		ch.RetriggerCounter++
		if ch.RetriggerCounter < interval {
			break
		}
		ch.RetriggerCounter = 0
		ch.Position = 0
		ch.Volume = multiRetrigVolume(ch.Volume, volMode)
	case EffectSetVibratoWaveform:
		if !rowBoundary {
			break
		}
		ch.VibratoWaveform = waveformFromParam(param)
	case EffectSetTremoloWaveform:
		if !rowBoundary {
			break
		}
		ch.TremoloWaveform = waveformFromParam(param)
	case EffectSetPanbrelloWaveform:
		if !rowBoundary {
			break
		}
		ch.PanbrelloWaveform = waveformFromParam(param)
	}
}

func periodForSemitoneOffset(base float64, semitones int, linear bool) float64 {
	if linear {
		return base - float64(semitones)*linearPeriodEntriesPerOctave/12
	}
	return base / math.Exp2(float64(semitones)/12)
}

func applyVolSlideParam(ch *Channel, param byte) {
	hi := int(param >> 4)
	lo := int(param & 0x0F)
	delta := float32(0)
	switch {
	case hi > 0 && lo == 0:
		delta = float32(hi) / 64
	case lo > 0 && hi == 0:
		delta = -float32(lo) / 64
	}
	ch.Volume += delta
	if ch.Volume < 0 {
		ch.Volume = 0
	}
	if ch.Volume > 1 {
		ch.Volume = 1
	}
}

func applyChannelVolSlideParam(ch *Channel, param byte) {
	hi := int(param >> 4)
	lo := int(param & 0x0F)
	switch {
	case hi > 0 && lo == 0:
		ch.ChannelVolume += hi
	case lo > 0 && hi == 0:
		ch.ChannelVolume -= lo
	}
	if ch.ChannelVolume < 0 {
		ch.ChannelVolume = 0
	}
	if ch.ChannelVolume > 64 {
		ch.ChannelVolume = 64
	}
}

func applyGlobalVolSlideParam(s *EngineState, param byte) {
	hi := int(param >> 4)
	lo := int(param & 0x0F)
	delta := float32(0)
	switch {
	case hi > 0 && lo == 0:
		delta = float32(hi) / 128
	case lo > 0 && hi == 0:
		delta = -float32(lo) / 128
	}
	s.GlobalVolume += delta
	if s.GlobalVolume < 0 {
		s.GlobalVolume = 0
	}
	if s.GlobalVolume > 1 {
		s.GlobalVolume = 1
	}
}

// multiRetrigVolume applies an IT multi-retrig volume-modify mode (0..14; 15
// is reserved and treated as a no-op) to v, the channel's current volume.
// Per spec.md §9's open question, a modify that would underflow saturates
// at 0 rather than wrapping around to a high volume.
func multiRetrigVolume(v float32, mode int) float32 {
	switch mode {
	case 1:
		v -= 1.0 / 64
	case 2:
		v -= 2.0 / 64
	case 3:
		v -= 4.0 / 64
	case 4:
		v -= 8.0 / 64
	case 5:
		v -= 16.0 / 64
	case 6:
		v *= 2.0 / 3.0
	case 7:
		v *= 0.5
	case 8:
		v += 1.0 / 64
	case 9:
		v += 2.0 / 64
	case 10:
		v += 4.0 / 64
	case 11:
		v += 8.0 / 64
	case 12:
		v += 16.0 / 64
	case 13:
		v *= 1.5
	case 14:
		v *= 2
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func applyPanningSlideParam(ch *Channel, param byte) {
	hi := int(param >> 4)
	lo := int(param & 0x0F)
	delta := float32(0)
	switch {
	case hi > 0 && lo == 0:
		delta = float32(hi) / 64
	case lo > 0 && hi == 0:
		delta = -float32(lo) / 64
	}
	ch.Panning += delta
	if ch.Panning < -1 {
		ch.Panning = -1
	}
	if ch.Panning > 1 {
		ch.Panning = 1
	}
}
