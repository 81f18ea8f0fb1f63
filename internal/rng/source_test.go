package rng

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameSeedSameSequence(t *testing.T) {
	for _, seed := range []int64{0, 1, 42, -7, 1 << 40} {
		a, b := New(seed), New(seed)
		for i := 0; i < 1000; i++ {
			require.Equal(t, a.Random(), b.Random(), "seed %d draw %d", seed, i)
		}
	}
}

func TestDifferentSeedsDiverge(t *testing.T) {
	a, b := New(1), New(2)
	same := 0
	for i := 0; i < 100; i++ {
		if a.Random() == b.Random() {
			same++
		}
	}
	assert.Less(t, same, 5)
}

func TestReset(t *testing.T) {
	s := New(99)
	first := []float64{s.Random(), s.Random(), s.Random()}
	s.Gaussian(0, 1)
	s.Reset()
	again := []float64{s.Random(), s.Random(), s.Random()}
	assert.Equal(t, first, again)
}

func TestRandomRange(t *testing.T) {
	s := New(5)
	for i := 0; i < 10000; i++ {
		v := s.Random()
		require.GreaterOrEqual(t, v, 0.0)
		require.Less(t, v, 1.0)
	}
}

func TestIntInclusive(t *testing.T) {
	s := New(11)
	seen := map[int]bool{}
	for i := 0; i < 5000; i++ {
		v := s.Int(3, 7)
		require.GreaterOrEqual(t, v, 3)
		require.LessOrEqual(t, v, 7)
		seen[v] = true
	}
	assert.Len(t, seen, 5)

	assert.Equal(t, 4, s.Int(4, 4))
	v := s.Int(9, 2)
	assert.True(t, v >= 2 && v <= 9)
}

func TestFloatRange(t *testing.T) {
	s := New(12)
	for i := 0; i < 1000; i++ {
		v := s.Float(-2.5, 2.5)
		require.GreaterOrEqual(t, v, -2.5)
		require.Less(t, v, 2.5)
	}
}

func TestChanceTolerance(t *testing.T) {
	cases := []float64{0.05, 0.3, 0.5, 0.9}
	const n = 10000
	for _, p := range cases {
		s := New(2024)
		hits := 0
		for i := 0; i < n; i++ {
			if s.Chance(p) {
				hits++
			}
		}
		rate := float64(hits) / n
		tol := 3 * math.Sqrt(p*(1-p)/n)
		assert.InDelta(t, p, rate, tol, "p=%v", p)
	}
}

func TestChanceSmallSample(t *testing.T) {
	s := New(7)
	hits := 0
	for i := 0; i < 1000; i++ {
		if s.Chance(0.3) {
			hits++
		}
	}
	rate := float64(hits) / 1000
	assert.GreaterOrEqual(t, rate, 0.25)
	assert.LessOrEqual(t, rate, 0.35)
}

func TestChanceEdges(t *testing.T) {
	s := New(1)
	for i := 0; i < 100; i++ {
		assert.False(t, s.Chance(0))
		assert.True(t, s.Chance(1))
	}
}

func TestGaussianMoments(t *testing.T) {
	s := New(314)
	const n = 20000
	var sum, sumSq float64
	for i := 0; i < n; i++ {
		v := s.Gaussian(10, 2)
		sum += v
		sumSq += v * v
	}
	mean := sum / n
	variance := sumSq/n - mean*mean
	assert.InDelta(t, 10, mean, 0.1)
	assert.InDelta(t, 4, variance, 0.25)
}

func TestShuffleIsPermutation(t *testing.T) {
	s := New(8)
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	Shuffle(s, items)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, items)

	a, b := []string{"a", "b", "c", "d"}, []string{"a", "b", "c", "d"}
	Shuffle(New(3), a)
	Shuffle(New(3), b)
	assert.Equal(t, a, b)
}

func TestPick(t *testing.T) {
	s := New(21)
	_, ok := Pick(s, []int{})
	assert.False(t, ok)

	v, ok := Pick(s, []string{"only"})
	require.True(t, ok)
	assert.Equal(t, "only", v)
}

func TestStateRestore(t *testing.T) {
	s := New(77)
	for i := 0; i < 10; i++ {
		s.Random()
	}
	state, err := s.State()
	require.NoError(t, err)

	want := []float64{s.Random(), s.Random(), s.Random()}

	other := New(1)
	require.NoError(t, other.Restore(state))
	got := []float64{other.Random(), other.Random(), other.Random()}
	assert.Equal(t, want, got)

	assert.Error(t, other.Restore([]byte("junk")))
}

func TestStateKeepsGaussianSpare(t *testing.T) {
	s := New(31)
	s.Gaussian(0, 1) // leaves the pair's second half pending
	state, err := s.State()
	require.NoError(t, err)
	want := []float64{s.Gaussian(0, 1), s.Gaussian(0, 1), s.Random()}

	other := New(2)
	other.Gaussian(5, 2)
	require.NoError(t, other.Restore(state))
	got := []float64{other.Gaussian(0, 1), other.Gaussian(0, 1), other.Random()}
	assert.Equal(t, want, got)
}

func TestRestoreBarePCGState(t *testing.T) {
	s := New(31)
	s.Random()
	bare, err := s.pcg.MarshalBinary()
	require.NoError(t, err)
	want := s.Random()

	other := New(2)
	other.Gaussian(0, 1)
	require.NoError(t, other.Restore(bare))
	assert.False(t, other.hasSpare)
	assert.Equal(t, want, other.Random())
}
