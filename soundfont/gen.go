package soundfont

// Generator operator ids. The bank format identifies every synthesis
// parameter by one of these; amounts are signed 16-bit.
const (
	OpStartAddrsOffset       = 0
	OpEndAddrsOffset         = 1
	OpStartLoopAddrsOffset   = 2
	OpEndLoopAddrsOffset     = 3
	OpStartAddrsCoarse       = 4
	OpModLfoToPitch          = 5
	OpVibLfoToPitch          = 6
	OpModEnvToPitch          = 7
	OpInitialFilterFc        = 8
	OpInitialFilterQ         = 9
	OpModLfoToFilterFc       = 10
	OpModEnvToFilterFc       = 11
	OpEndAddrsCoarse         = 12
	OpModLfoToVolume         = 13
	OpChorusSend             = 15
	OpReverbSend             = 16
	OpPan                    = 17
	OpDelayModLFO            = 21
	OpFreqModLFO             = 22
	OpDelayVibLFO            = 23
	OpFreqVibLFO             = 24
	OpDelayModEnv            = 25
	OpAttackModEnv           = 26
	OpHoldModEnv             = 27
	OpDecayModEnv            = 28
	OpSustainModEnv          = 29
	OpReleaseModEnv          = 30
	OpKeynumToModEnvHold     = 31
	OpKeynumToModEnvDecay    = 32
	OpDelayVolEnv            = 33
	OpAttackVolEnv           = 34
	OpHoldVolEnv             = 35
	OpDecayVolEnv            = 36
	OpSustainVolEnv          = 37
	OpReleaseVolEnv          = 38
	OpKeynumToVolEnvHold     = 39
	OpKeynumToVolEnvDecay    = 40
	OpInstrument             = 41
	OpKeyRange               = 43
	OpVelRange               = 44
	OpStartLoopAddrsCoarse   = 45
	OpKeynum                 = 46
	OpVelocity               = 47
	OpInitialAttenuation     = 48
	OpEndLoopAddrsCoarse     = 50
	OpCoarseTune             = 51
	OpFineTune               = 52
	OpSampleID               = 53
	OpSampleModes            = 54
	OpScaleTuning            = 56
	OpExclusiveClass         = 57
	OpOverridingRootKey      = 58

	// OpCount is one past the highest defined operator id.
	OpCount = 61
)

// OpInfo describes one generator operator: its canonical name, the default
// amount every resolved parameter set starts from, and the unit the amount
// is expressed in. Unknown operator ids decode with a zero-value OpInfo and
// are ignored rather than rejected.
type OpInfo struct {
	Name    string
	Default int32
	Unit    string
}

// opTable is the full static operator table. Aggregation starts every slot
// at Default and adds instrument then preset amounts on top, for every
// operator uniformly.
var opTable = [OpCount]OpInfo{
	OpStartAddrsOffset:     {"startAddrsOffset", 0, "frames"},
	OpEndAddrsOffset:       {"endAddrsOffset", 0, "frames"},
	OpStartLoopAddrsOffset: {"startloopAddrsOffset", 0, "frames"},
	OpEndLoopAddrsOffset:   {"endloopAddrsOffset", 0, "frames"},
	OpStartAddrsCoarse:     {"startAddrsCoarseOffset", 0, "32k frames"},
	OpModLfoToPitch:        {"modLfoToPitch", 0, "cents"},
	OpVibLfoToPitch:        {"vibLfoToPitch", 0, "cents"},
	OpModEnvToPitch:        {"modEnvToPitch", 0, "cents"},
	OpInitialFilterFc:      {"initialFilterFc", 13500, "cents"},
	OpInitialFilterQ:       {"initialFilterQ", 0, "cB"},
	OpModLfoToFilterFc:     {"modLfoToFilterFc", 0, "cents"},
	OpModEnvToFilterFc:     {"modEnvToFilterFc", 0, "cents"},
	OpEndAddrsCoarse:       {"endAddrsCoarseOffset", 0, "32k frames"},
	OpModLfoToVolume:       {"modLfoToVolume", 0, "cB"},
	14:                     {"unused1", 0, ""},
	OpChorusSend:           {"chorusEffectsSend", 0, "0.1%"},
	OpReverbSend:           {"reverbEffectsSend", 0, "0.1%"},
	OpPan:                  {"pan", 0, "0.1%"},
	18:                     {"unused2", 0, ""},
	19:                     {"unused3", 0, ""},
	20:                     {"unused4", 0, ""},
	OpDelayModLFO:          {"delayModLFO", -12000, "timecents"},
	OpFreqModLFO:           {"freqModLFO", 0, "cents"},
	OpDelayVibLFO:          {"delayVibLFO", -12000, "timecents"},
	OpFreqVibLFO:           {"freqVibLFO", 0, "cents"},
	OpDelayModEnv:          {"delayModEnv", -12000, "timecents"},
	OpAttackModEnv:         {"attackModEnv", -12000, "timecents"},
	OpHoldModEnv:           {"holdModEnv", -12000, "timecents"},
	OpDecayModEnv:          {"decayModEnv", -12000, "timecents"},
	OpSustainModEnv:        {"sustainModEnv", 1000, "0.1%"},
	OpReleaseModEnv:        {"releaseModEnv", -12000, "timecents"},
	OpKeynumToModEnvHold:   {"keynumToModEnvHold", 0, "tc/key"},
	OpKeynumToModEnvDecay:  {"keynumToModEnvDecay", 0, "tc/key"},
	OpDelayVolEnv:          {"delayVolEnv", -12000, "timecents"},
	OpAttackVolEnv:         {"attackVolEnv", -12000, "timecents"},
	OpHoldVolEnv:           {"holdVolEnv", -12000, "timecents"},
	OpDecayVolEnv:          {"decayVolEnv", -12000, "timecents"},
	OpSustainVolEnv:        {"sustainVolEnv", 0, "0.1%"},
	OpReleaseVolEnv:        {"releaseVolEnv", -12000, "timecents"},
	OpKeynumToVolEnvHold:   {"keynumToVolEnvHold", 0, "tc/key"},
	OpKeynumToVolEnvDecay:  {"keynumToVolEnvDecay", 0, "tc/key"},
	OpInstrument:           {"instrument", 0, "index"},
	42:                     {"reserved1", 0, ""},
	OpKeyRange:             {"keyRange", 0, "range"},
	OpVelRange:             {"velRange", 0, "range"},
	OpStartLoopAddrsCoarse: {"startloopAddrsCoarseOffset", 0, "32k frames"},
	OpKeynum:               {"keynum", -1, "key"},
	OpVelocity:             {"velocity", -1, "velocity"},
	OpInitialAttenuation:   {"initialAttenuation", 0, "cB"},
	49:                     {"reserved2", 0, ""},
	OpEndLoopAddrsCoarse:   {"endloopAddrsCoarseOffset", 0, "32k frames"},
	OpCoarseTune:           {"coarseTune", 0, "semitones"},
	OpFineTune:             {"fineTune", 0, "cents"},
	OpSampleID:             {"sampleID", 0, "index"},
	OpSampleModes:          {"sampleModes", 0, "flags"},
	55:                     {"reserved3", 0, ""},
	OpScaleTuning:          {"scaleTuning", 100, "cents/key"},
	OpExclusiveClass:       {"exclusiveClass", 0, "class"},
	OpOverridingRootKey:    {"overridingRootKey", -1, "key"},
	59:                     {"unused5", 0, ""},
	60:                     {"endOper", 0, ""},
}

// Describe returns the table entry for an operator id; ids outside the
// defined set yield a zero OpInfo.
func Describe(op uint16) OpInfo {
	if int(op) < len(opTable) {
		return opTable[op]
	}
	return OpInfo{}
}

// GenSet is one resolved parameter set: every operator's aggregated amount,
// indexed by operator id.
type GenSet [OpCount]int32

// DefaultGens returns a GenSet holding only the operator defaults, the
// base every zone aggregation starts from.
func DefaultGens() GenSet {
	var g GenSet
	for op := range opTable {
		g[op] = opTable[op].Default
	}
	return g
}

// Amount returns the aggregated amount for op, or 0 for unknown operators.
func (g *GenSet) Amount(op uint16) int32 {
	if int(op) < len(g) {
		return g[op]
	}
	return 0
}

// add accumulates a zone's generator list into the set. Operators outside
// the defined id space are ignored.
func (g *GenSet) add(gens []Generator) {
	for _, gen := range gens {
		if int(gen.Op) < len(g) {
			g[gen.Op] += int32(gen.Amount)
		}
	}
}
