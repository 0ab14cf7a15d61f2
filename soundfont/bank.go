// Package soundfont decodes SoundFont2 banks and resolves per-note
// synthesis parameters from their preset/instrument zone hierarchy.
package soundfont

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"go-sfplayer/errs"
	"go-sfplayer/riff"
)

// Sample type flags from the shdr record.
const (
	SampleMono   = 0x0001
	SampleRight  = 0x0002
	SampleLeft   = 0x0004
	SampleLinked = 0x0008
)

// Sample describes one recording in the shared PCM pool. Offsets index
// 16-bit frames in the pool, not bytes.
type Sample struct {
	Name          string
	Start         uint32
	End           uint32
	LoopStart     uint32
	LoopEnd       uint32
	Rate          uint32
	OriginalPitch uint8 // MIDI key the recording was pitched at
	Correction    int8  // cents
	Link          uint16
	Type          uint16
}

// Generator is one (operator, amount) pair from a zone's generator list.
type Generator struct {
	Op     uint16
	Amount int16
}

// Range is an inclusive key or velocity span.
type Range struct {
	Lo, Hi uint8
}

// Contains reports whether v lies within the range, inclusive on both ends.
func (r Range) Contains(v int) bool {
	return v >= int(r.Lo) && v <= int(r.Hi)
}

// Zone scopes a generator list to a key/velocity region. Instrument zones
// reference a sample, preset zones an instrument; a zone referencing
// neither is a global zone whose generators apply to its siblings.
type Zone struct {
	KeyRange    Range
	VelRange    Range
	Gens        []Generator // non-structural operators, in decode order
	SampleIndex int         // into Bank.Samples; -1 if absent
	InstIndex   int         // into Bank.Instruments; -1 if absent
}

// Global reports whether the zone carries no sample or instrument
// reference and therefore supplies defaults to its sibling zones.
func (z *Zone) Global() bool {
	return z.SampleIndex < 0 && z.InstIndex < 0
}

// Instrument is a named list of sample zones.
type Instrument struct {
	Name  string
	Zones []Zone
}

// Preset is a named program with zones referencing instruments.
type Preset struct {
	Name    string
	Program uint16
	Bank    uint16
	Zones   []Zone
}

// Bank holds the decoded tables of one loaded sound bank. The tables are
// immutable once Load returns; zones refer to samples and instruments by
// index, validated at resolution time.
type Bank struct {
	Name string // INAM entry of the INFO list, empty if absent

	Samples     []Sample
	Instruments []Instrument
	Presets     []Preset

	// Modulators are decoded but not evaluated during playback.
	PresetMods     []Modulator
	InstrumentMods []Modulator

	// PCM is the shared 16-bit sample pool; Sample offsets index into it.
	PCM []int16
}

// Modulator is a raw pmod/imod record.
type Modulator struct {
	SrcOper    uint16
	DestOper   uint16
	Amount     int16
	AmtSrcOper uint16
	TransOper  uint16
}

// Record widths of the nine pdta tables.
const (
	phdrSize = 38
	bagSize  = 4
	genSize  = 4
	modSize  = 10
	instSize = 22
	shdrSize = 46
)

// bagRec is one pbag/ibag entry: the start indices of the zone's slices in
// the generator and modulator tables.
type bagRec struct {
	genStart uint16
	modStart uint16
}

// Load decodes a complete sound bank from raw file bytes.
func Load(data []byte) (*Bank, error) {
	top, err := riff.Parse(data, 0, len(data))
	if err != nil {
		return nil, errors.Wrap(err, "reading bank container")
	}
	sfbk, ok := top.Sub("sfbk")
	if !ok {
		return nil, errs.Formatf("sfbk", "top-level container is not a sound bank")
	}
	sdta, ok := sfbk.Sub("sdta")
	if !ok {
		return nil, errs.Formatf("sdta", "sample data section missing")
	}
	smpl, ok := sdta.Leaf("smpl")
	if !ok {
		return nil, errs.Formatf("smpl", "PCM sample leaf missing")
	}
	pdta, ok := sfbk.Sub("pdta")
	if !ok {
		return nil, errs.Formatf("pdta", "parameter data section missing")
	}

	b := &Bank{PCM: decodePCM(smpl.Data())}

	if info, ok := sfbk.Sub("INFO"); ok {
		if inam, ok := info.Leaf("INAM"); ok {
			b.Name = zstring(inam.Data())
		}
	}

	phdr, err := tableData(pdta, "phdr")
	if err != nil {
		return nil, err
	}
	pbag, err := readBags(pdta, "pbag")
	if err != nil {
		return nil, err
	}
	pgen, err := readGens(pdta, "pgen")
	if err != nil {
		return nil, err
	}
	if b.PresetMods, err = readMods(pdta, "pmod"); err != nil {
		return nil, err
	}
	inst, err := tableData(pdta, "inst")
	if err != nil {
		return nil, err
	}
	ibag, err := readBags(pdta, "ibag")
	if err != nil {
		return nil, err
	}
	igen, err := readGens(pdta, "igen")
	if err != nil {
		return nil, err
	}
	if b.InstrumentMods, err = readMods(pdta, "imod"); err != nil {
		return nil, err
	}
	shdr, err := tableData(pdta, "shdr")
	if err != nil {
		return nil, err
	}

	if err := b.decodeSamples(shdr); err != nil {
		return nil, err
	}
	if err := b.decodeInstruments(inst, ibag, igen); err != nil {
		return nil, err
	}
	if err := b.decodePresets(phdr, pbag, pgen); err != nil {
		return nil, err
	}
	return b, nil
}

// SampleData returns the PCM frames of sample i as stored in the pool.
func (b *Bank) SampleData(i int) ([]int16, error) {
	if i < 0 || i >= len(b.Samples) {
		return nil, errs.Ref("sample", i, len(b.Samples))
	}
	s := &b.Samples[i]
	if int(s.End) > len(b.PCM) || s.Start > s.End {
		return nil, errs.Bounds(s.Name, int(s.End), len(b.PCM))
	}
	return b.PCM[s.Start:s.End], nil
}

func decodePCM(raw []byte) []int16 {
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(raw[2*i:]))
	}
	return out
}

func tableData(pdta riff.Dir, tag string) ([]byte, error) {
	leaf, ok := pdta.Leaf(tag)
	if !ok {
		return nil, errs.Formatf(tag, "required table missing")
	}
	return leaf.Data(), nil
}

func readBags(pdta riff.Dir, tag string) ([]bagRec, error) {
	raw, err := tableData(pdta, tag)
	if err != nil {
		return nil, err
	}
	bags := make([]bagRec, len(raw)/bagSize)
	for i := range bags {
		rec := raw[i*bagSize:]
		bags[i] = bagRec{
			genStart: binary.LittleEndian.Uint16(rec),
			modStart: binary.LittleEndian.Uint16(rec[2:]),
		}
	}
	return bags, nil
}

func readGens(pdta riff.Dir, tag string) ([]Generator, error) {
	raw, err := tableData(pdta, tag)
	if err != nil {
		return nil, err
	}
	gens := make([]Generator, len(raw)/genSize)
	for i := range gens {
		rec := raw[i*genSize:]
		gens[i] = Generator{
			Op:     binary.LittleEndian.Uint16(rec),
			Amount: int16(binary.LittleEndian.Uint16(rec[2:])),
		}
	}
	return gens, nil
}

func readMods(pdta riff.Dir, tag string) ([]Modulator, error) {
	raw, err := tableData(pdta, tag)
	if err != nil {
		return nil, err
	}
	mods := make([]Modulator, len(raw)/modSize)
	for i := range mods {
		rec := raw[i*modSize:]
		mods[i] = Modulator{
			SrcOper:    binary.LittleEndian.Uint16(rec),
			DestOper:   binary.LittleEndian.Uint16(rec[2:]),
			Amount:     int16(binary.LittleEndian.Uint16(rec[4:])),
			AmtSrcOper: binary.LittleEndian.Uint16(rec[6:]),
			TransOper:  binary.LittleEndian.Uint16(rec[8:]),
		}
	}
	return mods, nil
}

func (b *Bank) decodeSamples(raw []byte) error {
	count := len(raw) / shdrSize
	if count == 0 {
		return errs.Formatf("shdr", "sample table empty")
	}
	// The terminal EOS record is excluded.
	b.Samples = make([]Sample, 0, count-1)
	for i := 0; i < count-1; i++ {
		rec := raw[i*shdrSize:]
		s := Sample{
			Name:          recName(rec),
			Start:         binary.LittleEndian.Uint32(rec[20:]),
			End:           binary.LittleEndian.Uint32(rec[24:]),
			LoopStart:     binary.LittleEndian.Uint32(rec[28:]),
			LoopEnd:       binary.LittleEndian.Uint32(rec[32:]),
			Rate:          binary.LittleEndian.Uint32(rec[36:]),
			OriginalPitch: rec[40],
			Correction:    int8(rec[41]),
			Link:          binary.LittleEndian.Uint16(rec[42:]),
			Type:          binary.LittleEndian.Uint16(rec[44:]),
		}
		b.Samples = append(b.Samples, s)
	}
	return nil
}

func (b *Bank) decodeInstruments(raw []byte, bags []bagRec, gens []Generator) error {
	count := len(raw) / instSize
	if count == 0 {
		return errs.Formatf("inst", "instrument table empty")
	}
	b.Instruments = make([]Instrument, 0, count-1)
	for i := 0; i < count-1; i++ {
		rec := raw[i*instSize:]
		bagLo := int(binary.LittleEndian.Uint16(rec[20:]))
		bagHi := int(binary.LittleEndian.Uint16(raw[(i+1)*instSize+20:]))
		zones, err := decodeZones(bags, gens, bagLo, bagHi, false)
		if err != nil {
			return errors.Wrapf(err, "instrument %q", recName(rec))
		}
		b.Instruments = append(b.Instruments, Instrument{
			Name:  recName(rec),
			Zones: zones,
		})
	}
	return nil
}

func (b *Bank) decodePresets(raw []byte, bags []bagRec, gens []Generator) error {
	count := len(raw) / phdrSize
	if count == 0 {
		return errs.Formatf("phdr", "preset table empty")
	}
	b.Presets = make([]Preset, 0, count-1)
	for i := 0; i < count-1; i++ {
		rec := raw[i*phdrSize:]
		bagLo := int(binary.LittleEndian.Uint16(rec[24:]))
		bagHi := int(binary.LittleEndian.Uint16(raw[(i+1)*phdrSize+24:]))
		zones, err := decodeZones(bags, gens, bagLo, bagHi, true)
		if err != nil {
			return errors.Wrapf(err, "preset %q", recName(rec))
		}
		b.Presets = append(b.Presets, Preset{
			Name:    recName(rec),
			Program: binary.LittleEndian.Uint16(rec[20:]),
			Bank:    binary.LittleEndian.Uint16(rec[22:]),
			Zones:   zones,
		})
	}
	return nil
}

// decodeZones slices bag records [bagLo, bagHi) out of the bag table and
// builds one zone per bag from its generator slice. The generator span of
// bag j runs to the start index of bag j+1, so the terminal bag record
// must be addressable.
func decodeZones(bags []bagRec, gens []Generator, bagLo, bagHi int, preset bool) ([]Zone, error) {
	if bagLo > bagHi || bagHi >= len(bags) {
		return nil, errs.Ref("bag", bagHi, len(bags))
	}
	zones := make([]Zone, 0, bagHi-bagLo)
	for j := bagLo; j < bagHi; j++ {
		genLo := int(bags[j].genStart)
		genHi := int(bags[j+1].genStart)
		if genLo > genHi || genHi > len(gens) {
			return nil, errs.Ref("generator", genHi, len(gens))
		}
		z := Zone{
			KeyRange:    Range{0, 127},
			VelRange:    Range{0, 127},
			SampleIndex: -1,
			InstIndex:   -1,
		}
		for _, g := range gens[genLo:genHi] {
			switch {
			case g.Op == OpKeyRange:
				z.KeyRange = Range{uint8(g.Amount & 0xff), uint8(uint16(g.Amount) >> 8)}
			case g.Op == OpVelRange:
				z.VelRange = Range{uint8(g.Amount & 0xff), uint8(uint16(g.Amount) >> 8)}
			case g.Op == OpSampleID && !preset:
				z.SampleIndex = int(uint16(g.Amount))
			case g.Op == OpInstrument && preset:
				z.InstIndex = int(uint16(g.Amount))
			default:
				z.Gens = append(z.Gens, g)
			}
		}
		zones = append(zones, z)
	}
	return zones, nil
}

// recName reads the zero-terminated 20-byte name field at the head of a
// phdr/inst/shdr record.
func recName(rec []byte) string {
	return zstring(rec[:20])
}

func zstring(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
