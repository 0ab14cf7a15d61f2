// Package render implements the audio backend the voice engine drives:
// an offline node graph evaluated frame by frame, a WAV writer for
// rendered output, and a speaker hookup that streams the same graph to
// the sound card in real time.
package render

import (
	"math"
	"sort"
	"sync"

	"go-sfplayer/synth"
)

type nodeKind uint8

const (
	kindDestination nodeKind = iota
	kindBuffer
	kindSource
	kindGain
	kindFilter
	kindOscillator
	kindConstant
	kindPanner
)

// autoPoint is one scheduled automation value. Ramp points interpolate
// linearly from the preceding point.
type autoPoint struct {
	at    float64
	value float64
	ramp  bool
}

// timeline is the automation curve of one parameter. Evaluation walks a
// cursor forward, so queries must come in nondecreasing time order.
type timeline struct {
	points []autoPoint
	cursor int
}

func (tl *timeline) insert(p autoPoint) {
	i := sort.Search(len(tl.points), func(i int) bool { return tl.points[i].at > p.at })
	tl.points = append(tl.points, autoPoint{})
	copy(tl.points[i+1:], tl.points[i:])
	tl.points[i] = p
	if i < tl.cursor {
		tl.cursor = i
	}
}

func (tl *timeline) cancel(from float64) {
	i := sort.Search(len(tl.points), func(i int) bool { return tl.points[i].at >= from })
	tl.points = tl.points[:i]
	if tl.cursor > i {
		tl.cursor = i
	}
}

// value evaluates the curve at time t, falling back to def before the
// first point. A leading ramp point behaves like a set.
func (tl *timeline) value(t, def float64) float64 {
	if len(tl.points) == 0 || t < tl.points[0].at {
		return def
	}
	for tl.cursor+1 < len(tl.points) && tl.points[tl.cursor+1].at <= t {
		tl.cursor++
	}
	p := tl.points[tl.cursor]
	if next := tl.cursor + 1; next < len(tl.points) && tl.points[next].ramp {
		n := tl.points[next]
		if n.at > p.at {
			f := (t - p.at) / (n.at - p.at)
			return p.value + (n.value-p.value)*f
		}
	}
	return p.value
}

type bufferData struct {
	channels [][]float32
	rate     float64
}

type sourceState struct {
	buffer    synth.NodeID
	pos       float64 // in buffer frames
	looped    bool
	loopStart float64 // seconds of buffer time
	loopEnd   float64
	done      bool
}

// biquad is one RBJ lowpass section with per-channel state.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     [2]float64
	freq, q            float64
}

func (f *biquad) configure(freq, q, rate float64) {
	if freq == f.freq && q == f.q {
		return
	}
	f.freq, f.q = freq, q
	if freq < 1 {
		freq = 1
	}
	if max := rate * 0.499; freq > max {
		freq = max
	}
	if q < 1e-4 {
		q = 1e-4
	}
	w := 2 * math.Pi * freq / rate
	sin, cos := math.Sin(w), math.Cos(w)
	alpha := sin / (2 * q)
	a0 := 1 + alpha
	f.b0 = (1 - cos) / 2 / a0
	f.b1 = (1 - cos) / a0
	f.b2 = (1 - cos) / 2 / a0
	f.a1 = -2 * cos / a0
	f.a2 = (1 - alpha) / a0
}

func (f *biquad) process(ch int, x float64) float64 {
	y := f.b0*x + f.b1*f.x1[ch] + f.b2*f.x2[ch] - f.a1*f.y1[ch] - f.a2*f.y2[ch]
	f.x2[ch], f.x1[ch] = f.x1[ch], x
	f.y2[ch], f.y1[ch] = f.y1[ch], y
	return y
}

type node struct {
	kind nodeKind
	base float64 // creation-time value: gain, cutoff, frequency, offset, pan
	q    float64

	buf *bufferData
	src *sourceState

	auto map[synth.Param]*timeline

	inputs []synth.NodeID
	mods   map[synth.Param][]synth.NodeID

	started bool
	startAt float64
	stopAt  float64 // negative until a stop is scheduled

	filter biquad
	phase  float64

	outL, outR float64
	stereo     bool

	released bool
}

func (n *node) param(p synth.Param) *timeline {
	tl, ok := n.auto[p]
	if !ok {
		tl = &timeline{}
		n.auto[p] = tl
	}
	return tl
}

// autoValue reads a parameter's automation at time t, using def when
// nothing was ever scheduled.
func (n *node) autoValue(p synth.Param, t, def float64) float64 {
	if tl, ok := n.auto[p]; ok {
		return tl.value(t, def)
	}
	return def
}

func (n *node) activeAt(t float64) bool {
	if !n.started || t < n.startAt {
		return false
	}
	return n.stopAt < 0 || t < n.stopAt
}

// Graph is an offline implementation of the synth backend: a node graph
// evaluated one frame at a time on a sample-accurate clock. It is safe
// for concurrent use; the speaker pulls frames from one goroutine while
// the player schedules from another.
type Graph struct {
	mu    sync.Mutex
	rate  float64
	frame int64
	nodes []*node
	order []synth.NodeID
	dirty bool
}

// NewGraph makes an empty graph running at the given sample rate, with
// the destination node already in place.
func NewGraph(rate float64) *Graph {
	g := &Graph{rate: rate}
	g.addNode(kindDestination)
	return g
}

func (g *Graph) addNode(kind nodeKind) synth.NodeID {
	g.nodes = append(g.nodes, &node{
		kind:   kind,
		auto:   make(map[synth.Param]*timeline),
		mods:   make(map[synth.Param][]synth.NodeID),
		stopAt: -1,
	})
	g.dirty = true
	return synth.NodeID(len(g.nodes) - 1)
}

func (g *Graph) node(id synth.NodeID) *node { return g.nodes[id] }

// Now returns the graph clock: rendered frames over the sample rate.
func (g *Graph) Now() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return float64(g.frame) / g.rate
}

func (g *Graph) SampleRate() float64 { return g.rate }

func (g *Graph) Destination() synth.NodeID { return 0 }

func (g *Graph) CreateBuffer(channels, frames int, rate float64) synth.NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.addNode(kindBuffer)
	data := make([][]float32, channels)
	for i := range data {
		data[i] = make([]float32, frames)
	}
	g.node(id).buf = &bufferData{channels: data, rate: rate}
	return id
}

func (g *Graph) FillBuffer(buf synth.NodeID, channel int, samples []float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	copy(g.node(buf).buf.channels[channel], samples)
}

func (g *Graph) CreateSource(buf synth.NodeID) synth.NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.addNode(kindSource)
	g.node(id).src = &sourceState{buffer: buf, loopEnd: -1}
	return id
}

func (g *Graph) SetLoop(src synth.NodeID, start, end float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.node(src).src
	s.looped = true
	s.loopStart, s.loopEnd = start, end
}

func (g *Graph) CreateGain(value float64) synth.NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.addNode(kindGain)
	g.node(id).base = value
	return id
}

func (g *Graph) CreateFilter(cutoff, q float64) synth.NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.addNode(kindFilter)
	n := g.node(id)
	n.base, n.q = cutoff, q
	return id
}

func (g *Graph) CreateOscillator(wave synth.Wave, freq float64) synth.NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.addNode(kindOscillator)
	g.node(id).base = freq
	return id
}

func (g *Graph) CreateConstant(value float64) synth.NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.addNode(kindConstant)
	g.node(id).base = value
	return id
}

func (g *Graph) CreatePanner(pan float64) synth.NodeID {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.addNode(kindPanner)
	g.node(id).base = pan
	return id
}

func (g *Graph) Connect(from, to synth.NodeID, param synth.Param) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.node(to)
	if param == synth.ParamInput {
		n.inputs = append(n.inputs, from)
	} else {
		n.mods[param] = append(n.mods[param], from)
	}
	g.dirty = true
}

func (g *Graph) SetValueAtTime(id synth.NodeID, param synth.Param, value, at float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.node(id).param(param).insert(autoPoint{at: at, value: value})
}

func (g *Graph) LinearRampToValueAtTime(id synth.NodeID, param synth.Param, value, at float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.node(id).param(param).insert(autoPoint{at: at, value: value, ramp: true})
}

func (g *Graph) CancelScheduledValues(id synth.NodeID, param synth.Param, from float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.node(id).param(param).cancel(from)
}

func (g *Graph) Start(id synth.NodeID, at float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.node(id)
	n.started = true
	n.startAt = at
}

func (g *Graph) Stop(id synth.NodeID, at float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.node(id).stopAt = at
}

func (g *Graph) Release(nodes ...synth.NodeID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, id := range nodes {
		g.node(id).released = true
	}
	g.dirty = true
}

// topoSort orders nodes so every audio or modulation source comes
// before its consumer. The engine never wires cycles.
func (g *Graph) topoSort() {
	state := make([]uint8, len(g.nodes)) // 0 unseen, 1 visiting, 2 done
	g.order = g.order[:0]
	var visit func(id synth.NodeID)
	visit = func(id synth.NodeID) {
		if state[id] != 0 {
			return
		}
		state[id] = 1
		n := g.nodes[id]
		for _, in := range n.inputs {
			visit(in)
		}
		for _, ids := range n.mods {
			for _, in := range ids {
				visit(in)
			}
		}
		state[id] = 2
		g.order = append(g.order, id)
	}
	for id := range g.nodes {
		visit(synth.NodeID(id))
	}
	g.dirty = false
}

// Process renders the next len(out) frames into out, advancing the
// graph clock.
func (g *Graph) Process(out [][2]float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.dirty {
		g.topoSort()
	}
	for i := range out {
		t := float64(g.frame) / g.rate
		for _, id := range g.order {
			n := g.nodes[id]
			if n.released {
				n.outL, n.outR = 0, 0
				continue
			}
			g.evalNode(n, t)
		}
		dst := g.nodes[0]
		out[i][0] = float32(dst.outL)
		out[i][1] = float32(dst.outR)
		g.frame++
	}
}

// modSum adds up the mono-folded outputs of every node feeding a
// parameter.
func (g *Graph) modSum(n *node, p synth.Param) float64 {
	ids, ok := n.mods[p]
	if !ok {
		return 0
	}
	var sum float64
	for _, id := range ids {
		src := g.nodes[id]
		sum += (src.outL + src.outR) / 2
	}
	return sum
}

func (g *Graph) sumInputs(n *node) (l, r float64, stereo bool) {
	for _, id := range n.inputs {
		in := g.nodes[id]
		l += in.outL
		r += in.outR
		stereo = stereo || in.stereo
	}
	return l, r, stereo
}

func (g *Graph) evalNode(n *node, t float64) {
	switch n.kind {
	case kindBuffer:
		// data only, no signal output
	case kindConstant:
		if !n.activeAt(t) {
			n.outL, n.outR = 0, 0
			return
		}
		v := n.autoValue(synth.ParamOffset, t, n.base)
		n.outL, n.outR = v, v
	case kindOscillator:
		if !n.activeAt(t) {
			n.outL, n.outR = 0, 0
			return
		}
		freq := n.autoValue(synth.ParamFrequency, t, n.base) + g.modSum(n, synth.ParamFrequency)
		v := triangle(n.phase)
		n.phase += freq / g.rate
		n.phase -= math.Floor(n.phase)
		n.outL, n.outR = v, v
	case kindSource:
		g.evalSource(n, t)
	case kindGain:
		l, r, stereo := g.sumInputs(n)
		gain := n.autoValue(synth.ParamGain, t, n.base) + g.modSum(n, synth.ParamGain)
		n.outL, n.outR, n.stereo = l*gain, r*gain, stereo
	case kindFilter:
		l, r, stereo := g.sumInputs(n)
		detune := n.autoValue(synth.ParamDetune, t, 0) + g.modSum(n, synth.ParamDetune)
		freq := n.autoValue(synth.ParamFrequency, t, n.base) * math.Pow(2, detune/1200)
		n.filter.configure(freq, math.Pow(10, n.q/20), g.rate)
		n.outL = n.filter.process(0, l)
		n.outR = n.filter.process(1, r)
		n.stereo = stereo
	case kindPanner:
		l, r, stereo := g.sumInputs(n)
		pan := n.autoValue(synth.ParamPan, t, n.base) + g.modSum(n, synth.ParamPan)
		n.outL, n.outR = panMix(l, r, stereo, pan)
		n.stereo = true
	case kindDestination:
		l, r, _ := g.sumInputs(n)
		n.outL, n.outR = l, r
		n.stereo = true
	}
}

func (g *Graph) evalSource(n *node, t float64) {
	s := n.src
	if s.done || !n.activeAt(t) {
		n.outL, n.outR = 0, 0
		return
	}
	buf := g.nodes[s.buffer].buf
	frames := len(buf.channels[0])
	n.stereo = len(buf.channels) > 1

	pos := s.pos
	loopEndF := s.loopEnd * buf.rate
	loopStartF := s.loopStart * buf.rate
	if s.looped && loopEndF > loopStartF && pos >= loopEndF {
		pos = loopStartF + math.Mod(pos-loopStartF, loopEndF-loopStartF)
	}
	if pos >= float64(frames) {
		s.done = true
		n.outL, n.outR = 0, 0
		return
	}

	n.outL = sampleAt(buf.channels[0], pos)
	if n.stereo {
		n.outR = sampleAt(buf.channels[1], pos)
	} else {
		n.outR = n.outL
	}

	rate := n.autoValue(synth.ParamRate, t, 1)
	detune := n.autoValue(synth.ParamDetune, t, 0) + g.modSum(n, synth.ParamDetune)
	s.pos = pos + rate*math.Pow(2, detune/1200)*buf.rate/g.rate
}

// sampleAt reads a buffer channel at a fractional frame offset with
// linear interpolation.
func sampleAt(data []float32, pos float64) float64 {
	i := int(pos)
	if i >= len(data)-1 {
		return float64(data[len(data)-1])
	}
	f := pos - float64(i)
	return float64(data[i])*(1-f) + float64(data[i+1])*f
}

func triangle(phase float64) float64 {
	switch {
	case phase < 0.25:
		return 4 * phase
	case phase < 0.75:
		return 2 - 4*phase
	default:
		return 4*phase - 4
	}
}

// panMix applies equal-power panning. Mono inputs spread across the
// field; stereo inputs keep their own side at center and cross-feed
// toward the pan direction.
func panMix(l, r float64, stereo bool, pan float64) (float64, float64) {
	if pan < -1 {
		pan = -1
	}
	if pan > 1 {
		pan = 1
	}
	if !stereo {
		x := (pan + 1) / 2
		gl, gr := math.Cos(x*math.Pi/2), math.Sin(x*math.Pi/2)
		return l * gl, l * gr
	}
	if pan <= 0 {
		x := pan + 1
		gl, gr := math.Cos(x*math.Pi/2), math.Sin(x*math.Pi/2)
		return l + r*gl, r * gr
	}
	gl, gr := math.Cos(pan*math.Pi/2), math.Sin(pan*math.Pi/2)
	return l * gl, r + l*gr
}
