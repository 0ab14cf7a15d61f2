package synth

import (
	"math"

	"go-sfplayer/debug"
	"go-sfplayer/soundfont"
)

const (
	// minDuration floors every time-cents conversion so ramps never get a
	// zero or negative length.
	minDuration = 0.001
	// teardownMargin pads voice teardown past the end of the release ramp.
	teardownMargin = 0.1
)

// Control is the channel state snapshot a voice is triggered with.
type Control struct {
	Volume     int // CC7, 0-127
	Expression int // CC11, 0-127
	Pan        int // CC10, 0-127
	Modulation int // CC1, 0-127
	PitchBend  int // centered, -8192..8191
}

// DefaultControl returns the controller values a channel starts with.
func DefaultControl() Control {
	return Control{Volume: 100, Expression: 127, Pan: 64}
}

// envPoint is one scheduled automation point: at time t, the value is v,
// reached by a linear ramp from the previous point when ramp is set.
type envPoint struct {
	t    float64
	v    float64
	ramp bool
}

type envelope []envPoint

// levelAt evaluates the envelope's value at time t, interpolating inside
// ramp segments. This is the analytic mirror of the automation handed to
// the backend, used when a release must start from the current level.
func (e envelope) levelAt(t float64) float64 {
	if len(e) == 0 {
		return 0
	}
	if t <= e[0].t {
		return e[0].v
	}
	for i := 1; i < len(e); i++ {
		p := e[i]
		if t < p.t {
			prev := e[i-1]
			if p.ramp && p.t > prev.t {
				f := (t - prev.t) / (p.t - prev.t)
				return prev.v + (p.v-prev.v)*f
			}
			return prev.v
		}
	}
	return e[len(e)-1].v
}

// voice is one sounding note: the backend nodes it owns plus the envelope
// timelines needed to release it.
type voice struct {
	nodes   []NodeID // everything to free at teardown
	started []NodeID // source, LFOs, mod envelope carrier
	src     NodeID
	volGain NodeID
	modEnv  NodeID

	env        envelope
	modShape   envelope
	releaseDur float64
	modRelease float64

	released   bool
	torn       bool
	teardownAt float64
}

// StopHandle tags the voices created by one note trigger so the caller
// can stop exactly those later. The zero value is a valid no-op handle.
type StopHandle struct {
	voices []*voice
}

// Active reports whether the handle refers to any sounding voice.
func (h *StopHandle) Active() bool {
	return h != nil && len(h.voices) > 0
}

type bufferKey struct {
	left, right int
}

type bufferInfo struct {
	id        NodeID
	frames    int
	loopStart float64 // seconds of buffer time
	loopEnd   float64
}

// Engine drives the backend from resolved generator sets. It owns a
// master gain node, a per-sample buffer cache, and the registry of live
// voices used by CancelAll.
type Engine struct {
	backend Backend
	bank    *soundfont.Bank
	master  NodeID
	buffers map[bufferKey]bufferInfo
	voices  []*voice
	lastEnd float64
}

// NewEngine wires an engine to a backend and a loaded bank. The master
// gain scales the whole mix.
func NewEngine(backend Backend, bank *soundfont.Bank, gain float64) *Engine {
	master := backend.CreateGain(gain)
	backend.Connect(master, backend.Destination(), ParamInput)
	return &Engine{
		backend: backend,
		bank:    bank,
		master:  master,
		buffers: make(map[bufferKey]bufferInfo),
	}
}

// LastEnd returns the latest scheduled teardown or natural end of any
// voice, the mix length an offline render needs.
func (e *Engine) LastEnd() float64 {
	return e.lastEnd
}

// Voices returns the number of voices the engine is still tracking,
// released tails included until they are reaped.
func (e *Engine) Voices() int {
	return len(e.voices)
}

// NoteOn starts one voice per match and returns the handle that stops
// them. An empty match list returns a no-op handle.
func (e *Engine) NoteOn(matches []soundfont.Match, ctl Control, key, vel int, when float64) *StopHandle {
	h := &StopHandle{}
	for i := range matches {
		v, err := e.startVoice(&matches[i], ctl, key, vel, when)
		if err != nil {
			debug.Log("voice", "key %d vel %d: %v", key, vel, err)
			continue
		}
		h.voices = append(h.voices, v)
		e.voices = append(e.voices, v)
	}
	return h
}

// Stop releases every voice under the handle at the given time: the
// volume envelope is cancelled from the captured level and ramped to
// zero over the release duration, and all sources stop shortly after the
// ramp lands.
func (e *Engine) Stop(h *StopHandle, at float64) {
	if h == nil {
		return
	}
	for _, v := range h.voices {
		if v.released || v.torn {
			continue
		}
		v.released = true

		level := v.env.levelAt(at)
		e.backend.CancelScheduledValues(v.volGain, ParamGain, at)
		e.backend.SetValueAtTime(v.volGain, ParamGain, level, at)
		e.backend.LinearRampToValueAtTime(v.volGain, ParamGain, 0, at+v.releaseDur)

		if v.modEnv != NoNode {
			mlevel := v.modShape.levelAt(at)
			e.backend.CancelScheduledValues(v.modEnv, ParamOffset, at)
			e.backend.SetValueAtTime(v.modEnv, ParamOffset, mlevel, at)
			e.backend.LinearRampToValueAtTime(v.modEnv, ParamOffset, 0, at+v.modRelease)
		}

		v.teardownAt = at + v.releaseDur + teardownMargin
		for _, n := range v.started {
			e.backend.Stop(n, v.teardownAt)
		}
		if v.teardownAt > e.lastEnd {
			e.lastEnd = v.teardownAt
		}
	}
}

// CancelAll immediately silences and frees every voice the engine has
// created, including ones already released and waiting out their tails.
func (e *Engine) CancelAll() {
	now := e.backend.Now()
	for _, v := range e.voices {
		if v.torn {
			continue
		}
		v.torn = true
		level := v.env.levelAt(now)
		e.backend.CancelScheduledValues(v.volGain, ParamGain, now)
		e.backend.SetValueAtTime(v.volGain, ParamGain, level, now)
		e.backend.LinearRampToValueAtTime(v.volGain, ParamGain, 0, now+0.01)
		for _, n := range v.started {
			e.backend.Stop(n, now+0.02)
		}
		e.backend.Release(v.nodes...)
	}
	e.voices = e.voices[:0]
	debug.Log("voice", "cancel-all at %.3f", now)
}

// Reap frees voices whose teardown time has passed. Long-running players
// call this periodically so released voices do not accumulate.
func (e *Engine) Reap(now float64) {
	kept := e.voices[:0]
	for _, v := range e.voices {
		if v.released && now >= v.teardownAt {
			v.torn = true
			e.backend.Release(v.nodes...)
			continue
		}
		kept = append(kept, v)
	}
	e.voices = kept
}

func (e *Engine) startVoice(m *soundfont.Match, ctl Control, key, vel int, when float64) (*voice, error) {
	gens := &m.Gens
	sample := &e.bank.Samples[m.SampleIndex]

	buf, err := e.bufferFor(m.SampleIndex)
	if err != nil {
		return nil, err
	}

	// Playback rate from the pitch chain: key distance scaled by scale
	// tuning, coarse/fine tuning, the recording's own correction, and the
	// channel pitch bend (2-semitone span).
	root := int(gens.Amount(soundfont.OpOverridingRootKey))
	if root < 0 {
		root = int(sample.OriginalPitch)
	}
	semis := float64(key-root)*float64(gens.Amount(soundfont.OpScaleTuning))/100 +
		float64(gens.Amount(soundfont.OpCoarseTune)) +
		float64(gens.Amount(soundfont.OpFineTune))/100 +
		float64(sample.Correction)/100 +
		2*float64(ctl.PitchBend)/8192
	rate := math.Pow(2, semis/12) * float64(sample.Rate) / e.backend.SampleRate()

	// Attenuation in dB: zone attenuation plus the default-modulator
	// velocity curve plus channel volume and expression.
	velFrac := float64(vel) / 127
	attenDB := float64(gens.Amount(soundfont.OpInitialAttenuation))/10 +
		96*(1-velFrac*velFrac) +
		96*float64(127-ctl.Volume)/127 +
		96*float64(127-ctl.Expression)/127
	peak := math.Pow(10, -attenDB/20)

	// Filter cutoff in cents, darkened by low velocities.
	cutoffCents := float64(gens.Amount(soundfont.OpInitialFilterFc)) - 2400*(1-velFrac)
	cutoffHz := centsToHz(cutoffCents)
	if nyquist := e.backend.SampleRate() / 2; cutoffHz > nyquist {
		cutoffHz = nyquist
	}
	q := float64(gens.Amount(soundfont.OpInitialFilterQ)) / 10

	// Pan in 0.1% units: zone pan offset by the channel position.
	panAmt := float64(gens.Amount(soundfont.OpPan)) + 1000*(float64(ctl.Pan)/127-0.5)
	pan := clamp(panAmt/500, -1, 1)

	b := e.backend
	v := &voice{src: NoNode, modEnv: NoNode}

	src := b.CreateSource(buf.id)
	filter := b.CreateFilter(cutoffHz, q)
	volGain := b.CreateGain(0)
	panner := b.CreatePanner(pan)
	b.Connect(src, filter, ParamInput)
	b.Connect(filter, volGain, ParamInput)
	b.Connect(volGain, panner, ParamInput)
	b.Connect(panner, e.master, ParamInput)

	v.src = src
	v.volGain = volGain
	v.nodes = append(v.nodes, src, filter, volGain, panner)
	v.started = append(v.started, src)

	b.SetValueAtTime(src, ParamRate, rate, when)
	if gens.Amount(soundfont.OpSampleModes)&1 != 0 {
		b.SetLoop(src, buf.loopStart, buf.loopEnd)
	}

	// Volume envelope: hold at zero through the delay, ramp to peak over
	// the attack, hold, then decay to the sustain level. All boundaries
	// are absolute offsets computed at onset.
	delay := timecents(gens.Amount(soundfont.OpDelayVolEnv))
	attack := timecents(gens.Amount(soundfont.OpAttackVolEnv))
	hold := timecents(gens.Amount(soundfont.OpHoldVolEnv))
	decay := timecents(gens.Amount(soundfont.OpDecayVolEnv))
	sustain := peak * (1 - clamp(float64(gens.Amount(soundfont.OpSustainVolEnv)), 0, 1000)/1000)
	v.releaseDur = timecents(gens.Amount(soundfont.OpReleaseVolEnv))

	t1 := when + delay
	t2 := t1 + attack
	t3 := t2 + hold
	t4 := t3 + decay
	b.SetValueAtTime(volGain, ParamGain, 0, when)
	b.SetValueAtTime(volGain, ParamGain, 0, t1)
	b.LinearRampToValueAtTime(volGain, ParamGain, peak, t2)
	b.SetValueAtTime(volGain, ParamGain, peak, t3)
	b.LinearRampToValueAtTime(volGain, ParamGain, sustain, t4)
	v.env = envelope{
		{when, 0, false},
		{t1, 0, false},
		{t2, peak, true},
		{t3, peak, false},
		{t4, sustain, true},
	}

	// Modulation envelope, mirroring the volume shape on a 0..1 scale,
	// feeding pitch and filter cutoff through its depth gains.
	modToPitch := float64(gens.Amount(soundfont.OpModEnvToPitch))
	modToFilter := float64(gens.Amount(soundfont.OpModEnvToFilterFc))
	if modToPitch != 0 || modToFilter != 0 {
		mdelay := timecents(gens.Amount(soundfont.OpDelayModEnv))
		mattack := timecents(gens.Amount(soundfont.OpAttackModEnv))
		mhold := timecents(gens.Amount(soundfont.OpHoldModEnv))
		mdecay := timecents(gens.Amount(soundfont.OpDecayModEnv))
		msustain := clamp(float64(gens.Amount(soundfont.OpSustainModEnv)), 0, 1000) / 1000
		v.modRelease = timecents(gens.Amount(soundfont.OpReleaseModEnv))

		carrier := b.CreateConstant(0)
		m1 := when + mdelay
		m2 := m1 + mattack
		m3 := m2 + mhold
		m4 := m3 + mdecay
		b.SetValueAtTime(carrier, ParamOffset, 0, when)
		b.SetValueAtTime(carrier, ParamOffset, 0, m1)
		b.LinearRampToValueAtTime(carrier, ParamOffset, 1, m2)
		b.SetValueAtTime(carrier, ParamOffset, 1, m3)
		b.LinearRampToValueAtTime(carrier, ParamOffset, msustain, m4)
		b.Start(carrier, when)
		v.modEnv = carrier
		v.modShape = envelope{
			{when, 0, false},
			{m1, 0, false},
			{m2, 1, true},
			{m3, 1, false},
			{m4, msustain, true},
		}
		v.nodes = append(v.nodes, carrier)
		v.started = append(v.started, carrier)

		if modToPitch != 0 {
			dg := b.CreateGain(modToPitch)
			b.Connect(carrier, dg, ParamInput)
			b.Connect(dg, src, ParamDetune)
			v.nodes = append(v.nodes, dg)
		}
		if modToFilter != 0 {
			dg := b.CreateGain(modToFilter)
			b.Connect(carrier, dg, ParamInput)
			b.Connect(dg, filter, ParamDetune)
			v.nodes = append(v.nodes, dg)
		}
	}

	// Modulation LFO: triangle, started after its delay, feeding pitch,
	// filter, and amplitude depths.
	lfoToPitch := float64(gens.Amount(soundfont.OpModLfoToPitch))
	lfoToFilter := float64(gens.Amount(soundfont.OpModLfoToFilterFc))
	lfoToVol := gens.Amount(soundfont.OpModLfoToVolume)
	if lfoToPitch != 0 || lfoToFilter != 0 || lfoToVol != 0 {
		freq := centsToHz(float64(gens.Amount(soundfont.OpFreqModLFO)))
		lfo := b.CreateOscillator(WaveTriangle, freq)
		b.Start(lfo, when+timecents(gens.Amount(soundfont.OpDelayModLFO)))
		v.nodes = append(v.nodes, lfo)
		v.started = append(v.started, lfo)

		if lfoToPitch != 0 {
			dg := b.CreateGain(lfoToPitch)
			b.Connect(lfo, dg, ParamInput)
			b.Connect(dg, src, ParamDetune)
			v.nodes = append(v.nodes, dg)
		}
		if lfoToFilter != 0 {
			dg := b.CreateGain(lfoToFilter)
			b.Connect(lfo, dg, ParamInput)
			b.Connect(dg, filter, ParamDetune)
			v.nodes = append(v.nodes, dg)
		}
		if lfoToVol != 0 {
			dg := b.CreateGain(centibelsToLinearDelta(lfoToVol))
			b.Connect(lfo, dg, ParamInput)
			b.Connect(dg, volGain, ParamGain)
			v.nodes = append(v.nodes, dg)
		}
	}

	// Vibrato LFO: zone depth plus up to 50 cents from the mod wheel.
	vibDepth := float64(gens.Amount(soundfont.OpVibLfoToPitch)) +
		50*float64(ctl.Modulation)/127
	if vibDepth != 0 {
		freq := centsToHz(float64(gens.Amount(soundfont.OpFreqVibLFO)))
		lfo := b.CreateOscillator(WaveTriangle, freq)
		b.Start(lfo, when+timecents(gens.Amount(soundfont.OpDelayVibLFO)))
		dg := b.CreateGain(vibDepth)
		b.Connect(lfo, dg, ParamInput)
		b.Connect(dg, src, ParamDetune)
		v.nodes = append(v.nodes, lfo, dg)
		v.started = append(v.started, lfo)
	}

	b.Start(src, when)

	if gens.Amount(soundfont.OpSampleModes)&1 == 0 && rate > 0 {
		natural := when + float64(buf.frames)/(rate*e.backend.SampleRate())
		if natural > e.lastEnd {
			e.lastEnd = natural
		}
	} else if t4 > e.lastEnd {
		e.lastEnd = t4
	}
	return v, nil
}

// bufferFor returns the cached backend buffer for a sample, building it
// on first use. Linked stereo samples become one two-channel buffer
// truncated to the shorter side, with loop points taken from the left
// channel's offsets.
func (e *Engine) bufferFor(idx int) (bufferInfo, error) {
	s := &e.bank.Samples[idx]

	left, right := idx, -1
	if s.Type&(soundfont.SampleLeft|soundfont.SampleRight) != 0 {
		partner := int(s.Link)
		if partner >= 0 && partner < len(e.bank.Samples) {
			if s.Type&soundfont.SampleRight != 0 {
				left, right = partner, idx
			} else {
				right = partner
			}
		} else {
			debug.Log("voice", "sample %q: stereo link %d out of range, playing mono", s.Name, partner)
		}
	}

	key := bufferKey{left, right}
	if info, ok := e.buffers[key]; ok {
		return info, nil
	}

	ls := &e.bank.Samples[left]
	ldata, err := e.bank.SampleData(left)
	if err != nil {
		return bufferInfo{}, err
	}

	frames := len(ldata)
	var rdata []int16
	if right >= 0 {
		rdata, err = e.bank.SampleData(right)
		if err != nil {
			return bufferInfo{}, err
		}
		if len(rdata) < frames {
			frames = len(rdata)
		}
	}

	outRate := e.backend.SampleRate()
	channels := 1
	if right >= 0 {
		channels = 2
	}
	buf := e.backend.CreateBuffer(channels, frames, outRate)
	e.backend.FillBuffer(buf, 0, toFloat(ldata[:frames]))
	if right >= 0 {
		e.backend.FillBuffer(buf, 1, toFloat(rdata[:frames]))
	}

	info := bufferInfo{id: buf, frames: frames}
	relStart := int64(ls.LoopStart) - int64(ls.Start)
	relEnd := int64(ls.LoopEnd) - int64(ls.Start)
	if relStart >= 0 && relStart <= relEnd && relEnd <= int64(frames) {
		info.loopStart = float64(relStart) / outRate
		info.loopEnd = float64(relEnd) / outRate
	} else {
		debug.Log("voice", "sample %q: loop %d..%d outside %d..%d, disabling",
			ls.Name, ls.LoopStart, ls.LoopEnd, ls.Start, ls.End)
	}
	e.buffers[key] = info
	return info, nil
}

func toFloat(pcm []int16) []float32 {
	out := make([]float32, len(pcm))
	for i, v := range pcm {
		out[i] = float32(v) / 32768
	}
	return out
}

// timecents converts a time-cents amount to seconds, floored to the
// minimum ramp duration.
func timecents(tc int32) float64 {
	s := math.Pow(2, float64(tc)/1200)
	if s < minDuration {
		return minDuration
	}
	return s
}

// centsToHz converts absolute cents (8.176 Hz origin) to Hertz.
func centsToHz(cents float64) float64 {
	return 8.176 * math.Pow(2, cents/1200)
}

// centibelsToLinearDelta converts a centibel depth to the linear gain
// deviation an LFO at unit amplitude should produce.
func centibelsToLinearDelta(cb int32) float64 {
	return math.Pow(10, float64(cb)/200) - 1
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
