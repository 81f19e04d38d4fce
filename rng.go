package sumi

import (
	crand "crypto/rand"
	"math"
	"math/rand/v2"
)

// RandomSource is the single source of randomness for splat generation.
// All methods return values uniformly distributed over the closed range
// [min, max]. Implementations are not safe for concurrent use; generation
// runs on the impact-dispatch goroutine only.
type RandomSource interface {
	Float32(min, max float32) float32
	Float64(min, max float64) float64
	IntBetween(min, max int) int
}

// EntropySource draws from a ChaCha8 stream keyed with system entropy.
// Two EntropySource instances never repeat each other's sequences.
type EntropySource struct {
	r *rand.Rand
}

func NewEntropySource() *EntropySource {
	var key [32]byte
	if _, err := crand.Read(key[:]); err != nil {
		panic(err)
	}
	return &EntropySource{r: rand.New(rand.NewChaCha8(key))}
}

func (s *EntropySource) Float32(min, max float32) float32 {
	return min + (max-min)*s.r.Float32()
}

func (s *EntropySource) Float64(min, max float64) float64 {
	return min + (max-min)*s.r.Float64()
}

func (s *EntropySource) IntBetween(min, max int) int {
	if max <= min {
		return min
	}
	return min + s.r.IntN(max-min+1)
}

// SeededSource is a 32-bit linear congruential generator. It exists for
// reproducibility: the same seed yields the same sequence on every platform,
// which is the only cross-run guarantee the engine makes. The multiplier and
// increment are the Numerical Recipes constants and must not change — golden
// tests pin the exact sequence.
type SeededSource struct {
	state uint32
}

const (
	lcgMultiplier = 1664525
	lcgIncrement  = 1013904223
)

// NewSeededSource folds a 64-bit seed into the 32-bit LCG state by XOR-ing
// the high and low halves.
func NewSeededSource(seed uint64) *SeededSource {
	return &SeededSource{state: uint32(seed) ^ uint32(seed>>32)}
}

func (s *SeededSource) next() uint32 {
	s.state = s.state*lcgMultiplier + lcgIncrement
	return s.state
}

// unit returns the next draw mapped onto [0, 1] (closed; state may reach
// exactly 2^32-1).
func (s *SeededSource) unit() float64 {
	return float64(s.next()) / float64(math.MaxUint32)
}

func (s *SeededSource) Float32(min, max float32) float32 {
	return min + (max-min)*float32(s.unit())
}

func (s *SeededSource) Float64(min, max float64) float64 {
	return min + (max-min)*s.unit()
}

func (s *SeededSource) IntBetween(min, max int) int {
	if max <= min {
		return min
	}
	span := uint64(max-min) + 1
	return min + int(uint64(s.next())*span>>32)
}
