package tracker

// sampleOnce produces one stereo output frame from the current engine
// state, advancing every unmuted channel's (and background voice's)
// playback position by one sample.
func (e *Engine) sampleOnce() (float32, float32) {
	s := e.State
	var left, right float32

	for ci := range s.Channels {
		l, r := e.mixVoice(&s.Channels[ci])
		left += l
		right += r
	}
	for bi := range s.Background {
		l, r := e.mixVoice(&s.Background[bi])
		left += l
		right += r
	}

	return clampSample(left), clampSample(right)
}

// mixVoice renders one sample of a single channel (addressable or
// background) and advances its playback position, filter state, and
// crossfade counters. Returns (0, 0) for a muted or inactive voice.
func (e *Engine) mixVoice(ch *Channel) (float32, float32) {
	s := e.State
	if ch.Muted || ch.SampleIdx < 0 {
		return 0, 0
	}
	inst := e.instrumentFor(ch)
	if inst == nil || ch.SampleIdx >= len(inst.Samples) {
		return 0, 0
	}
	samp := &inst.Samples[ch.SampleIdx]
	if len(samp.Data) == 0 {
		return 0, 0
	}

	freq := periodToFrequency(ch.Period, e.Module.LinearSlides)
	step := freq / samp.SampleRate * float64(ch.Direction)

	v := readInterpolated(samp, ch.Position)

	if ch.FadeInSamples > 0 {
		frac := float32(ch.FadeInSamples) / antiPopFadeSamples
		v = v*(1-frac) + ch.PrevSample*frac
		ch.FadeInSamples--
	}
	if ch.FadeOutSamples > 0 {
		frac := float32(ch.FadeOutSamples) / antiPopFadeSamples
		v *= frac
		ch.FadeOutSamples--
	}
	if ch.FilterCutoff < 1 {
		// Coarse one-pole lowpass; resonance is approximated as a gain
		// boost of the filtered signal rather than a true resonant peak.
		ch.FilterState += (v - ch.FilterState) * ch.FilterCutoff
		v = ch.FilterState * (1 + ch.FilterResonance)
	}
	ch.PrevSample = v

	gain := ch.effectiveVolume(e.Module, inst) * s.GlobalVolume * e.Module.GlobalVolume
	l, r := panGains(ch.Panning)
	left := v * gain * l
	right := v * gain * r
	if ch.Surround {
		right = -right
	}

	ch.Position += step
	advanceLoop(ch, samp)

	return clampSample(left), clampSample(right)
}

// readInterpolated linearly interpolates between the two sample points
// straddling pos, wrapping the second point to loop-start when pos is at
// the loop boundary.
func readInterpolated(samp *Sample, pos float64) float32 {
	n := len(samp.Data)
	i0 := int(pos)
	if i0 < 0 {
		i0 = 0
	}
	if i0 >= n {
		i0 = n - 1
	}
	i1 := i0 + 1
	if i1 >= n {
		if samp.LoopEnd > samp.LoopStart {
			i1 = samp.LoopStart
		} else {
			i1 = i0
		}
	}
	frac := float32(pos - float64(i0))
	return samp.Data[i0] + (samp.Data[i1]-samp.Data[i0])*frac
}

func advanceLoop(ch *Channel, samp *Sample) {
	if samp.LoopEnd <= samp.LoopStart {
		if int(ch.Position) >= len(samp.Data) {
			ch.SampleIdx = -1
			ch.FadeOutSamples = antiPopFadeSamples
		}
		return
	}
	loopLen := float64(samp.LoopEnd - samp.LoopStart)
	if samp.PingPong {
		if ch.Position >= float64(samp.LoopEnd) {
			ch.Position = float64(samp.LoopEnd) - (ch.Position - float64(samp.LoopEnd))
			ch.Direction = -1
		} else if ch.Position < float64(samp.LoopStart) {
			ch.Position = float64(samp.LoopStart) + (float64(samp.LoopStart) - ch.Position)
			ch.Direction = 1
		}
	} else if ch.Position >= float64(samp.LoopEnd) {
		over := ch.Position - float64(samp.LoopEnd)
		ch.Position = float64(samp.LoopStart) + mod(over, loopLen)
	}
}

func mod(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	m := a
	for m >= b {
		m -= b
	}
	return m
}

func periodToFrequency(period float64, linear bool) float64 {
	if linear {
		return linearPeriodToFreq(period)
	}
	const palClock = 7093789.2
	if period <= 0 {
		return 0
	}
	return palClock / (period * 2)
}

func clampSample(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
