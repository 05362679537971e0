package sim

import (
	"hash/fnv"
	"math/rand"
)

// PartitionedRNG provides deterministic, isolated RNG streams per
// simulation component. Two runs with the same master seed and the same
// process document draw identical attribute values, which is what makes
// snapshot replays reproducible.
//
// Derivation: masterSeed XOR fnv1a64(streamName).
//
// Not safe for concurrent use; the kernel is single-threaded by design.
type PartitionedRNG struct {
	seed    int64
	streams map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a master seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:    seed,
		streams: make(map[string]*rand.Rand),
	}
}

// Stream returns the deterministically-seeded RNG for the named component.
// The same name always returns the same *rand.Rand instance (cached).
func (p *PartitionedRNG) Stream(name string) *rand.Rand {
	if rng, ok := p.streams[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewSource(p.seed ^ fnv1a64(name)))
	p.streams[name] = rng
	return rng
}

// Seed returns the master seed.
func (p *PartitionedRNG) Seed() int64 {
	return p.seed
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
