package soundfont

import "testing"

// testBank builds an in-memory bank: one preset whose zone covers keys
// 60-72, referencing an instrument with a matching sample zone. Amounts
// are chosen so aggregation results are easy to read.
func testBank() *Bank {
	return &Bank{
		Samples: []Sample{
			{Name: "a", Start: 0, End: 100, LoopStart: 10, LoopEnd: 90, Rate: 44100, OriginalPitch: 60, Type: SampleMono},
			{Name: "b", Start: 100, End: 200, LoopStart: 110, LoopEnd: 190, Rate: 44100, OriginalPitch: 72, Type: SampleMono},
		},
		Instruments: []Instrument{
			{
				Name: "keys",
				Zones: []Zone{
					{
						KeyRange:    Range{60, 72},
						VelRange:    Range{0, 127},
						SampleIndex: 0,
						InstIndex:   -1,
						Gens:        []Generator{{Op: OpInitialFilterFc, Amount: -2000}},
					},
				},
			},
		},
		Presets: []Preset{
			{
				Name:    "piano",
				Program: 5,
				Zones: []Zone{
					{
						KeyRange:    Range{0, 127},
						VelRange:    Range{0, 127},
						SampleIndex: -1,
						InstIndex:   0,
						Gens:        []Generator{{Op: OpInitialFilterFc, Amount: -500}},
					},
				},
			},
		},
	}
}

func TestResolveRangesInclusive(t *testing.T) {
	b := testBank()
	p := &b.Presets[0]

	cases := []struct {
		key  int
		want int
	}{
		{59, 0},
		{60, 1},
		{72, 1},
		{73, 0},
	}
	for _, c := range cases {
		if got := len(b.Resolve(p, c.key, 100)); got != c.want {
			t.Errorf("key %d: got %d matches, want %d", c.key, got, c.want)
		}
	}
}

func TestResolveVelocityGate(t *testing.T) {
	b := testBank()
	b.Instruments[0].Zones[0].VelRange = Range{64, 127}
	p := &b.Presets[0]

	if got := len(b.Resolve(p, 64, 63)); got != 0 {
		t.Errorf("velocity 63: got %d matches, want 0", got)
	}
	if got := len(b.Resolve(p, 64, 64)); got != 1 {
		t.Errorf("velocity 64: got %d matches, want 1", got)
	}
}

func TestAggregationAdditive(t *testing.T) {
	b := testBank()
	matches := b.Resolve(&b.Presets[0], 64, 100)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	// Default 13500, instrument zone -2000, preset zone -500.
	if got := matches[0].Gens.Amount(OpInitialFilterFc); got != 11000 {
		t.Errorf("filter cutoff: got %d, want 11000", got)
	}
	// Untouched operators keep their defaults.
	if got := matches[0].Gens.Amount(OpScaleTuning); got != 100 {
		t.Errorf("scale tuning default: got %d, want 100", got)
	}
	if got := matches[0].Gens.Amount(OpSustainModEnv); got != 1000 {
		t.Errorf("mod sustain default: got %d, want 1000", got)
	}
	if got := matches[0].Gens.Amount(OpDelayVolEnv); got != -12000 {
		t.Errorf("vol env delay default: got %d, want -12000", got)
	}
}

func TestGlobalZoneGenerators(t *testing.T) {
	b := testBank()
	// Prepend a global zone (no sample reference) carrying a pan amount.
	inst := &b.Instruments[0]
	inst.Zones = append([]Zone{{
		KeyRange:    Range{0, 127},
		VelRange:    Range{0, 127},
		SampleIndex: -1,
		InstIndex:   -1,
		Gens:        []Generator{{Op: OpPan, Amount: 250}},
	}}, inst.Zones...)

	matches := b.Resolve(&b.Presets[0], 64, 100)
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1 (global zone must not match as a voice)", len(matches))
	}
	if got := matches[0].Gens.Amount(OpPan); got != 250 {
		t.Errorf("pan with global zone: got %d, want 250", got)
	}
}

func TestResolveSkipsBadReferences(t *testing.T) {
	b := testBank()
	b.Presets[0].Zones[0].InstIndex = 99

	if got := len(b.Resolve(&b.Presets[0], 64, 100)); got != 0 {
		t.Errorf("dangling instrument index: got %d matches, want 0", got)
	}

	b2 := testBank()
	b2.Instruments[0].Zones[0].SampleIndex = 42
	if got := len(b2.Resolve(&b2.Presets[0], 64, 100)); got != 0 {
		t.Errorf("dangling sample index: got %d matches, want 0", got)
	}
}

func TestPresetByProgram(t *testing.T) {
	b := testBank()

	p, err := b.PresetByProgram(5)
	if err != nil || p.Name != "piano" {
		t.Errorf("program 5: got %v, %v", p, err)
	}

	if _, err := b.PresetByProgram(7); err == nil {
		t.Error("program 7: want reference error, got nil")
	}
}
