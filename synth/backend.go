// Package synth turns resolved generator sets into scheduled parameter
// curves against an external audio backend. It performs no sample-level
// DSP itself; every command it issues is declarative and carries its own
// timestamp, so rendering accuracy is independent of real-time jitter.
package synth

// NodeID identifies one backend resource (buffer, source, gain, filter,
// oscillator, constant, panner).
type NodeID int32

// NoNode is the absent-node sentinel.
const NoNode NodeID = -1

// Param selects a schedulable parameter of a node, or the node's audio
// input when connecting.
type Param uint8

const (
	ParamInput     Param = iota // audio input (Connect target)
	ParamGain                   // gain node level, linear
	ParamFrequency              // filter cutoff or oscillator rate, Hz
	ParamDetune                 // pitch/cutoff offset, cents
	ParamQ                      // filter resonance, dB
	ParamRate                   // source playback rate multiplier
	ParamPan                    // stereo position, -1..1
	ParamOffset                 // constant source value
)

// Wave selects an oscillator shape.
type Wave uint8

const (
	WaveTriangle Wave = iota
)

// Backend is the audio engine the voice engine drives. Implementations
// own sample-accurate rendering and the clock; the voice engine only
// creates nodes, wires them, and schedules parameter values at absolute
// times taken from Now().
//
// Connections with ParamInput feed audio into a node; connections naming
// any other Param feed the source node's signal additively into that
// parameter (modulation).
type Backend interface {
	// Now returns the current time of the backend clock in seconds. All
	// scheduling times are absolute against this clock.
	Now() float64
	// SampleRate returns the backend's output sample rate.
	SampleRate() float64
	// Destination returns the terminal mixing node.
	Destination() NodeID

	// CreateBuffer allocates a sample buffer of the given channel count
	// and length, whose frames play at the given rate.
	CreateBuffer(channels, frames int, rate float64) NodeID
	// FillBuffer copies samples into one channel of a buffer.
	FillBuffer(buf NodeID, channel int, samples []float32)
	// CreateSource makes a playback source bound to a buffer. Rate
	// (multiplier, default 1) and detune (cents, default 0) are
	// schedulable parameters.
	CreateSource(buf NodeID) NodeID
	// SetLoop enables looping between two offsets, in seconds of buffer
	// time.
	SetLoop(src NodeID, start, end float64)

	CreateGain(value float64) NodeID
	CreateFilter(cutoff, q float64) NodeID
	CreateOscillator(wave Wave, freq float64) NodeID
	CreateConstant(value float64) NodeID
	CreatePanner(pan float64) NodeID

	Connect(from, to NodeID, param Param)

	SetValueAtTime(node NodeID, param Param, value, at float64)
	LinearRampToValueAtTime(node NodeID, param Param, value, at float64)
	// CancelScheduledValues drops every scheduled point at or after the
	// given time, leaving earlier automation intact.
	CancelScheduledValues(node NodeID, param Param, from float64)

	Start(node NodeID, at float64)
	Stop(node NodeID, at float64)
	// Release frees nodes once they are no longer audible.
	Release(nodes ...NodeID)
}
