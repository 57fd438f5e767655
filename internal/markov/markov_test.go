package markov

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/lottoracle/internal/models"
	"github.com/rewired-gh/lottoracle/internal/storage"
)

// memStore is an in-memory DrawSource.
type memStore struct {
	draws []models.Draw
	err   error
	loads int
}

func (s *memStore) LoadAll() ([]models.Draw, error) {
	s.loads++
	if s.err != nil {
		return nil, s.err
	}
	return s.draws, nil
}

func history(numbers ...[6]int) *memStore {
	start := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	s := &memStore{}
	for i, n := range numbers {
		s.draws = append(s.draws, models.NewDraw(start.AddDate(0, 0, 7*i), n, 45-i%3))
	}
	return s
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// truncatingHistory has exactly one sampling path, 1 -> 2 -> 5, whose position-4
// successors ({1}) are all used. Every other path yields six numbers.
func truncatingHistory() *memStore {
	return history(
		[6]int{1, 2, 3, 4, 5, 6},
		[6]int{9, 2, 5, 1, 7, 8},
	)
}

func TestBuild(t *testing.T) {
	m, err := Build(history(
		[6]int{1, 2, 3, 4, 5, 6},
		[6]int{1, 3, 2, 4, 5, 6},
		[6]int{7, 2, 3, 10, 11, 12},
	).draws)
	require.NoError(t, err)
	assert.Equal(t, 3, m.Draws())

	first := m.FirstDistribution()
	assert.Equal(t, []int{1, 7}, first.Values)
	assert.Equal(t, []float64{2, 1}, first.Weights)

	second := m.Successors(2, 1)
	assert.Equal(t, []int{2, 3}, second.Values)
	assert.Equal(t, []float64{1, 1}, second.Weights)

	// 2 -> 3 at position 3 in draws one and three; the (3 -> 2) pair of draw two belongs to position 3 keyed by 3.
	third := m.Successors(3, 2)
	assert.Equal(t, []int{3}, third.Values)
	assert.Equal(t, []float64{2}, third.Weights)
	assert.Equal(t, []int{2}, m.Successors(3, 3).Values)

	fourth := m.Successors(4, 3)
	assert.Equal(t, []int{4, 10}, fourth.Values)

	assert.Zero(t, m.Successors(1, 1).Len(), "position 1 has no predecessor")
	assert.Zero(t, m.Successors(7, 6).Len())
	assert.Zero(t, m.Successors(2, 44).Len(), "unseen previous value")

	assert.Len(t, m.Transitions(2), 3) // 1->2, 1->3, 7->2
	assert.Nil(t, m.Transitions(1))
}

func TestBuild_EmptyHistory(t *testing.T) {
	_, err := Build(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)
}

func TestDistribution(t *testing.T) {
	d := fromCounts(map[int]int{7: 1, 3: 3})
	assert.Equal(t, []int{3, 7}, d.Values, "values are sorted")

	p := d.Normalize()
	assert.InDelta(t, 0.75, p.Probability(3), 1e-12)
	assert.InDelta(t, 0.25, p.Probability(7), 1e-12)
	assert.Zero(t, p.Probability(5))
	assert.Equal(t, []float64{3, 1}, d.Weights, "Normalize must not mutate the receiver")

	rest := fromCounts(map[int]int{1: 2, 2: 1, 3: 1}).Normalize().Without(map[int]bool{1: true})
	assert.Equal(t, []int{2, 3}, rest.Values)
	assert.InDelta(t, 0.5, rest.Probability(2), 1e-12)
	assert.InDelta(t, 0.5, rest.Probability(3), 1e-12)

	empty := d.Without(map[int]bool{3: true, 7: true})
	assert.Zero(t, empty.Len())
	_, ok := empty.Sample(seeded(1))
	assert.False(t, ok)
}

type fixedSource float64

func (f fixedSource) Float64() float64 { return float64(f) }

func TestDistribution_SampleInvertsCDF(t *testing.T) {
	// weights 1,2,1 -> cdf 0.25,0.75,1
	d := fromCounts(map[int]int{10: 1, 20: 2, 30: 1}).Normalize()

	tests := []struct {
		u    float64
		want int
	}{
		{0, 10},
		{0.2499, 10},
		{0.25, 20},
		{0.7499, 20},
		{0.75, 30},
		{0.999999, 30},
	}
	for _, tt := range tests {
		got, ok := d.Sample(fixedSource(tt.u))
		require.True(t, ok)
		assert.Equal(t, tt.want, got, "u=%v", tt.u)
	}
}

func TestDistribution_SampleIsProportional(t *testing.T) {
	d := fromCounts(map[int]int{4: 1, 8: 3})
	rng := seeded(42)

	const n = 100000
	hits := 0
	for i := 0; i < n; i++ {
		v, _ := d.Sample(rng)
		if v == 8 {
			hits++
		}
	}
	assert.InDelta(t, 0.75, float64(hits)/n, 0.01)
}

func TestGenerate_SingleDrawIsDeterministic(t *testing.T) {
	store := &memStore{draws: []models.Draw{
		models.NewDraw(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), [6]int{1, 2, 3, 4, 5, 6}, 7),
	}}

	for seed := uint64(0); seed < 50; seed++ {
		s, err := NewGenerator(store, DefaultOptions()).WithRand(seeded(seed)).Generate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, s.Numbers)
		assert.True(t, s.Complete)
	}

	// unseeded as well
	s, err := NewGenerator(store, DefaultOptions()).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, s.Numbers)
}

func TestGenerate_OutputIsValid(t *testing.T) {
	rng := seeded(7)
	store := &memStore{}
	start := time.Date(2020, 1, 4, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 300; i++ {
		perm := rng.Perm(models.MaxNumber)
		var numbers [6]int
		for j := range numbers {
			numbers[j] = perm[j] + 1
		}
		store.draws = append(store.draws, models.NewDraw(start.AddDate(0, 0, 7*i), numbers, perm[6]+1))
	}

	g := NewGenerator(store, DefaultOptions()).WithRand(seeded(99))
	for i := 0; i < 2000; i++ {
		s, err := g.Generate(context.Background())
		require.NoError(t, err)
		require.NotEmpty(t, s.Numbers)
		require.LessOrEqual(t, len(s.Numbers), models.NumbersPerDraw)
		assert.Equal(t, len(s.Numbers) == models.NumbersPerDraw, s.Complete)

		seen := make(map[int]bool)
		for _, n := range s.Numbers {
			require.GreaterOrEqual(t, n, models.MinNumber)
			require.LessOrEqual(t, n, models.MaxNumber)
			require.False(t, seen[n], "duplicate %d in %v", n, s.Numbers)
			seen[n] = true
		}
	}
}

func TestGenerate_SeededIsReproducible(t *testing.T) {
	store := history(
		[6]int{1, 2, 3, 4, 5, 6},
		[6]int{1, 3, 2, 4, 6, 5},
		[6]int{2, 1, 3, 5, 4, 6},
		[6]int{3, 2, 1, 6, 5, 4},
		[6]int{9, 2, 5, 1, 7, 8},
	)

	run := func() [][]int {
		g := NewGenerator(store, DefaultOptions()).WithRand(seeded(2024))
		var out [][]int
		for i := 0; i < 200; i++ {
			s, err := g.Generate(context.Background())
			require.NoError(t, err)
			out = append(out, s.Numbers)
		}
		return out
	}

	assert.Equal(t, run(), run())
}

func TestGenerate_FirstPositionFidelity(t *testing.T) {
	store := history(
		[6]int{5, 12, 20, 30, 40, 41},
		[6]int{5, 13, 21, 31, 42, 43},
		[6]int{5, 14, 22, 32, 44, 45},
	)
	g := NewGenerator(store, DefaultOptions()).WithRand(seeded(3))

	const n = 100000
	fives := 0
	for i := 0; i < n; i++ {
		s, err := g.Generate(context.Background())
		require.NoError(t, err)
		if s.Numbers[0] == 5 {
			fives++
		}
	}
	assert.Equal(t, n, fives)
}

func TestGenerate_ConditionalFidelity(t *testing.T) {
	store := history(
		[6]int{5, 12, 20, 30, 40, 41},
		[6]int{5, 12, 21, 31, 42, 43},
		[6]int{7, 13, 22, 32, 44, 45},
		[6]int{8, 14, 23, 33, 34, 35},
	)
	g := NewGenerator(store, DefaultOptions()).WithRand(seeded(4))

	firstFive := 0
	for i := 0; i < 20000; i++ {
		s, err := g.Generate(context.Background())
		require.NoError(t, err)
		if s.Numbers[0] == 5 {
			firstFive++
			assert.Equal(t, 12, s.Numbers[1])
		}
	}
	// position 1 is 5 in half of the history
	assert.InDelta(t, 0.5, float64(firstFive)/20000, 0.02)
}

func TestGenerate_StopsEarlyInsteadOfFailing(t *testing.T) {
	// Degenerate two-number history: 1 -> 2 -> 1, and 1 is already used.
	store := history([6]int{1, 2, 1, 2, 1, 2})

	s, err := NewGenerator(store, DefaultOptions()).WithRand(seeded(5)).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, s.Numbers)
	assert.False(t, s.Complete)
	assert.Equal(t, 1, s.Attempts)
}

func TestGenerate_TruncatesOnOnePath(t *testing.T) {
	g := NewGenerator(truncatingHistory(), DefaultOptions()).WithRand(seeded(6))

	short := 0
	const n = 2000
	for i := 0; i < n; i++ {
		s, err := g.Generate(context.Background())
		require.NoError(t, err)
		if !s.Complete {
			short++
			assert.Equal(t, []int{1, 2, 5}, s.Numbers)
		}
	}
	// path 1 -> 2 -> 5 has probability 1/2 * 1/2
	assert.InDelta(t, 0.25, float64(short)/n, 0.04)
}

func TestGenerate_ResamplePolicy(t *testing.T) {
	opts := Options{ShortPolicy: ShortResample, MaxAttempts: 64}
	store := truncatingHistory()
	g := NewGenerator(store, opts).WithRand(seeded(8))

	for i := 0; i < 500; i++ {
		s, err := g.Generate(context.Background())
		require.NoError(t, err)
		assert.True(t, s.Complete)
		assert.Len(t, s.Numbers, models.NumbersPerDraw)
		assert.GreaterOrEqual(t, s.Attempts, 1)
	}
	assert.Equal(t, 500, store.loads, "resampling reuses the snapshot of its call")
}

func TestGenerate_ResampleGivesUpWithLongestResult(t *testing.T) {
	opts := Options{ShortPolicy: ShortResample, MaxAttempts: 5, Backoff: time.Millisecond}
	g := NewGenerator(history([6]int{1, 2, 1, 2, 1, 2}), opts).WithRand(seeded(9))

	s, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, s.Numbers)
	assert.False(t, s.Complete)
	assert.Equal(t, 5, s.Attempts)
}

func TestGenerate_ResampleHonoursCancellation(t *testing.T) {
	opts := Options{ShortPolicy: ShortResample, MaxAttempts: 10, Backoff: time.Hour}
	g := NewGenerator(history([6]int{1, 2, 1, 2, 1, 2}), opts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.Generate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGenerate_EmptyStore(t *testing.T) {
	store := &memStore{}

	_, err := NewGenerator(store, DefaultOptions()).Generate(context.Background())
	assert.ErrorIs(t, err, ErrInsufficientData)
	assert.ErrorIs(t, err, storage.ErrEmptyStore)
}

func TestGenerate_PropagatesUnavailableStore(t *testing.T) {
	store := &memStore{err: errors.Join(storage.ErrDataUnavailable, errors.New("disk gone"))}

	_, err := NewGenerator(store, DefaultOptions()).Generate(context.Background())
	assert.ErrorIs(t, err, storage.ErrDataUnavailable)
	assert.NotErrorIs(t, err, ErrInsufficientData)
}

func TestGenerate_ReadsStoreEveryCall(t *testing.T) {
	store := history([6]int{1, 2, 3, 4, 5, 6})
	g := NewGenerator(store, DefaultOptions())

	s, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, s.Numbers)

	store.draws[0].Numbers = [6]int{6, 5, 4, 3, 2, 1}
	s, err = g.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{6, 5, 4, 3, 2, 1}, s.Numbers)
	assert.Equal(t, 2, store.loads)
}
