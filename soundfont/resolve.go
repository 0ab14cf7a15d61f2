package soundfont

import (
	"go-sfplayer/debug"
	"go-sfplayer/errs"
)

// Match is one playable pairing of an instrument zone with the preset zone
// that selected it, plus the aggregated generator set for the pair.
type Match struct {
	SampleIndex int
	Gens        GenSet
}

// PresetByProgram returns the first preset with the given program number.
// Bank select values do not participate in the lookup.
func (b *Bank) PresetByProgram(program int) (*Preset, error) {
	for i := range b.Presets {
		if int(b.Presets[i].Program) == program {
			return &b.Presets[i], nil
		}
	}
	return nil, errs.Ref("preset", program, -1)
}

// Resolve finds every (preset zone, instrument zone) pairing that matches
// the key and velocity and returns one aggregated Match per pairing. Zones
// match on inclusive key and velocity ranges. An empty result is valid and
// yields no voices. Zones with out-of-range instrument or sample indices
// are skipped, not fatal for the rest of the preset.
func (b *Bank) Resolve(preset *Preset, key, vel int) []Match {
	var matches []Match
	presetGlobal := globalZone(preset.Zones)
	for pi := range preset.Zones {
		pz := &preset.Zones[pi]
		if pz.Global() {
			continue
		}
		if !pz.KeyRange.Contains(key) || !pz.VelRange.Contains(vel) {
			continue
		}
		if pz.InstIndex < 0 || pz.InstIndex >= len(b.Instruments) {
			debug.Log("resolve", "preset %q zone %d: %v", preset.Name,
				pi, errs.Ref("instrument", pz.InstIndex, len(b.Instruments)))
			continue
		}
		inst := &b.Instruments[pz.InstIndex]
		instGlobal := globalZone(inst.Zones)
		for ii := range inst.Zones {
			iz := &inst.Zones[ii]
			if iz.Global() {
				continue
			}
			if !iz.KeyRange.Contains(key) || !iz.VelRange.Contains(vel) {
				continue
			}
			if iz.SampleIndex < 0 || iz.SampleIndex >= len(b.Samples) {
				debug.Log("resolve", "instrument %q zone %d: %v", inst.Name,
					ii, errs.Ref("sample", iz.SampleIndex, len(b.Samples)))
				continue
			}
			matches = append(matches, Match{
				SampleIndex: iz.SampleIndex,
				Gens:        aggregate(instGlobal, iz, presetGlobal, pz),
			})
		}
	}
	return matches
}

// globalZone returns the owner's global zone, if it carries one.
func globalZone(zones []Zone) *Zone {
	for i := range zones {
		if zones[i].Global() {
			return &zones[i]
		}
	}
	return nil
}

// aggregate builds the effective parameter set for one matched pairing:
// operator defaults, plus every instrument-level amount, plus every
// preset-level amount. The combination is additive for all operators
// uniformly, including ones the bank format defines as absolute rather
// than relative.
func aggregate(instGlobal, instZone, presetGlobal, presetZone *Zone) GenSet {
	g := DefaultGens()
	if instGlobal != nil {
		g.add(instGlobal.Gens)
	}
	g.add(instZone.Gens)
	if presetGlobal != nil {
		g.add(presetGlobal.Gens)
	}
	g.add(presetZone.Gens)
	return g
}
