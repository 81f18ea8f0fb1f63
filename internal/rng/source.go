// Package rng provides the seeded random source every probabilistic
// decision in the simulation draws from. Two sources built from the same
// seed and driven by the same call sequence produce identical output.
package rng

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand/v2"
)

// Rand is the capability handed to collaborators that need randomness.
type Rand interface {
	Random() float64                      // [0, 1)
	Int(min, max int) int                 // inclusive on both ends
	Float(min, max float64) float64       // [min, max)
	Chance(p float64) bool                // true with probability p
	Gaussian(mean, stdDev float64) float64 // normal draw
}

// Stream constant mixed into the seed to derive the PCG increment.
const streamMix = 0x9E3779B97F4A7C15

// Source is a deterministic random source backed by PCG.
// Only PCG's raw Uint64 output is used; every mapping to floats and
// ranges is done here so results never depend on library helpers.
type Source struct {
	seed int64
	pcg  *rand.PCG

	// Box–Muller produces pairs; the spare is kept for the next call.
	spare    float64
	hasSpare bool
}

// New creates a source from an integer seed.
func New(seed int64) *Source {
	s := &Source{seed: seed}
	s.Reset()
	return s
}

// Seed returns the seed the source was built from.
func (s *Source) Seed() int64 {
	return s.seed
}

// Reset restores the initial state for the seed.
func (s *Source) Reset() {
	u := uint64(s.seed)
	s.pcg = rand.NewPCG(u, u^streamMix)
	s.spare = 0
	s.hasSpare = false
}

// Random returns a uniform float64 in [0, 1) with 53 bits of precision.
func (s *Source) Random() float64 {
	return float64(s.pcg.Uint64()>>11) / (1 << 53)
}

// Int returns a uniform integer in [min, max]. Arguments are swapped if
// given in the wrong order.
func (s *Source) Int(min, max int) int {
	if max < min {
		min, max = max, min
	}
	span := float64(max - min + 1)
	return min + int(math.Floor(s.Random()*span))
}

// Float returns a uniform float64 in [min, max).
func (s *Source) Float(min, max float64) float64 {
	return min + s.Random()*(max-min)
}

// Chance returns true with probability p. p ≤ 0 never hits; p ≥ 1 always does.
func (s *Source) Chance(p float64) bool {
	return s.Random() < p
}

// Gaussian returns a normally distributed value via Box–Muller.
func (s *Source) Gaussian(mean, stdDev float64) float64 {
	if s.hasSpare {
		s.hasSpare = false
		return mean + stdDev*s.spare
	}
	u1 := s.Random()
	for u1 == 0 {
		u1 = s.Random()
	}
	u2 := s.Random()
	mag := math.Sqrt(-2 * math.Log(u1))
	z0 := mag * math.Cos(2*math.Pi*u2)
	s.spare = mag * math.Sin(2*math.Pi*u2)
	s.hasSpare = true
	return mean + stdDev*z0
}

// spareLen is the trailer State appends after the PCG bytes: one flag
// byte and the big-endian bits of the pending Gaussian spare.
const spareLen = 9

// State captures the generator position, including a pending Gaussian
// spare, so a save can resume the stream.
func (s *Source) State() ([]byte, error) {
	b, err := s.pcg.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal pcg: %w", err)
	}
	var flag byte
	if s.hasSpare {
		flag = 1
	}
	b = append(b, flag)
	return binary.BigEndian.AppendUint64(b, math.Float64bits(s.spare)), nil
}

// Restore rewinds the generator to a state produced by State. A bare PCG
// state with no spare trailer is accepted and clears the spare.
func (s *Source) Restore(state []byte) error {
	p := &rand.PCG{}
	if len(state) > spareLen {
		head, tail := state[:len(state)-spareLen], state[len(state)-spareLen:]
		if err := p.UnmarshalBinary(head); err == nil && tail[0] <= 1 {
			s.pcg = p
			s.hasSpare = tail[0] == 1
			s.spare = math.Float64frombits(binary.BigEndian.Uint64(tail[1:]))
			return nil
		}
	}
	if err := p.UnmarshalBinary(state); err != nil {
		return fmt.Errorf("unmarshal pcg: %w", err)
	}
	s.pcg = p
	s.spare = 0
	s.hasSpare = false
	return nil
}

// Pick returns a uniformly chosen element. ok is false for an empty slice.
func Pick[T any](r Rand, items []T) (item T, ok bool) {
	if len(items) == 0 {
		return item, false
	}
	return items[r.Int(0, len(items)-1)], true
}

// Shuffle permutes items in place (Fisher–Yates).
func Shuffle[T any](r Rand, items []T) {
	for i := len(items) - 1; i > 0; i-- {
		j := r.Int(0, i)
		items[i], items[j] = items[j], items[i]
	}
}
