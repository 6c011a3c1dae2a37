package sim

import (
	"fmt"
	"hash/fnv"
	"math/rand"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two runs with the same SimulationKey and identical tables MUST produce
// bit-for-bit identical patient trajectories.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Streams ===

// Stream identifies one logical source of randomness. Stream values are part of
// the reproducibility contract: adding a stream is safe, renumbering is not.
type Stream int

const (
	StreamEnrollment Stream = iota
	StreamInfection
	StreamBiomarker
	StreamRegimenFailure
	StreamIllnessOccurs
	StreamIllnessType
	StreamMortality
	StreamDetection
	StreamLinkage
	StreamRetention
	StreamTestError
	StreamToxicity
	StreamProph
)

var streamNames = map[Stream]string{
	StreamEnrollment:     "enrollment",
	StreamInfection:      "infection",
	StreamBiomarker:      "biomarker",
	StreamRegimenFailure: "regimen_failure",
	StreamIllnessOccurs:  "illness_occurs",
	StreamIllnessType:    "illness_type",
	StreamMortality:      "mortality",
	StreamDetection:      "detection",
	StreamLinkage:        "linkage",
	StreamRetention:      "retention",
	StreamTestError:      "test_error",
	StreamToxicity:       "toxicity",
	StreamProph:          "proph",
}

func (s Stream) String() string {
	if name, ok := streamNames[s]; ok {
		return name
	}
	return fmt.Sprintf("stream_%d", int(s))
}

// VariateSource supplies random draws keyed by stream and patient number.
// Identical (stream, patient) pairs across comparable runs MUST draw from the
// same logical stream position.
type VariateSource interface {
	// Uniform returns a draw in [0, 1).
	Uniform(stream Stream, patient int) float64
	// Gaussian returns a normal draw with the given mean and standard deviation.
	Gaussian(mean, stdDev float64, stream Stream, patient int) float64
}

// === PartitionedRNG ===

type streamKey struct {
	stream  Stream
	patient int
}

// PartitionedRNG provides deterministic, isolated RNG instances per
// (stream, patient) pair.
//
// Derivation formula: masterSeed XOR fnv1a64("<stream>/<patient>").
// Because the seed depends only on the pair, a patient's draws do not depend
// on how many other patients were simulated before it, or on which worker.
//
// Thread-safety: NOT thread-safe. Each worker owns its own PartitionedRNG.
type PartitionedRNG struct {
	key     SimulationKey
	streams map[streamKey]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:     key,
		streams: make(map[streamKey]*rand.Rand),
	}
}

// ForStream returns a deterministically-seeded RNG for the (stream, patient) pair.
// The same pair always returns the same *rand.Rand instance (cached).
// Never returns nil.
func (p *PartitionedRNG) ForStream(stream Stream, patient int) *rand.Rand {
	k := streamKey{stream: stream, patient: patient}
	if rng, ok := p.streams[k]; ok {
		return rng
	}
	derivedSeed := int64(p.key) ^ fnv1a64(fmt.Sprintf("%s/%d", stream, patient))
	rng := rand.New(rand.NewSource(derivedSeed))
	p.streams[k] = rng
	return rng
}

// Uniform implements VariateSource.
func (p *PartitionedRNG) Uniform(stream Stream, patient int) float64 {
	return p.ForStream(stream, patient).Float64()
}

// Gaussian implements VariateSource.
func (p *PartitionedRNG) Gaussian(mean, stdDev float64, stream Stream, patient int) float64 {
	return mean + stdDev*p.ForStream(stream, patient).NormFloat64()
}

// Release drops every cached stream of the given patient. Called once the
// patient is finished so long cohorts do not grow the cache without bound.
func (p *PartitionedRNG) Release(patient int) {
	for k := range p.streams {
		if k.patient == patient {
			delete(p.streams, k)
		}
	}
}

// Bernoulli draws a success with probability p. Probabilities at or below zero
// never succeed and do not advance the stream.
func Bernoulli(rng VariateSource, stream Stream, patient int, p float64) bool {
	if p <= 0 {
		return false
	}
	return rng.Uniform(stream, patient) < p
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
