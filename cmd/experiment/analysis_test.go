package main

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rewired-gh/lottoracle/internal/markov"
	"github.com/rewired-gh/lottoracle/internal/models"
)

func buildModel(t *testing.T, rows ...[6]int) *markov.Model {
	t.Helper()
	start := time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC)
	draws := make([]models.Draw, len(rows))
	for i, numbers := range rows {
		draws[i] = models.NewDraw(start.AddDate(0, 0, 7*i), numbers, 45)
	}
	model, err := markov.Build(draws)
	require.NoError(t, err)
	return model
}

func TestSimulate_SingleDraw(t *testing.T) {
	model := buildModel(t, [6]int{1, 2, 3, 4, 5, 6})

	report := simulate(model, 100, rand.New(rand.NewPCG(1, 1)))
	assert.Equal(t, 100, report.Runs)
	assert.Zero(t, report.Truncated)
	assert.Equal(t, map[int]int{6: 100}, report.LengthCounts)
	assert.Len(t, report.Numbers, models.MaxNumber)
	assert.InDelta(t, 0.0, report.FirstChiSquare, 1e-9)

	for _, s := range report.Numbers[:6] {
		assert.Equal(t, 100, s.Count)
		assert.InDelta(t, 1.0/6, s.Share, 1e-9)
	}
}

func TestSimulate_CountsTruncation(t *testing.T) {
	model := buildModel(t, [6]int{1, 2, 1, 2, 1, 2})

	report := simulate(model, 50, rand.New(rand.NewPCG(1, 1)))
	assert.Equal(t, 50, report.Truncated)
	assert.Equal(t, 1.0, report.TruncationRate())
	assert.Equal(t, map[int]int{2: 50}, report.LengthCounts)
}

func TestTopTransitions(t *testing.T) {
	model := buildModel(t,
		[6]int{1, 2, 3, 4, 5, 6},
		[6]int{1, 2, 7, 8, 9, 10},
		[6]int{3, 9, 11, 12, 13, 14},
	)

	top := topTransitions(model, 2, 2)
	require.Len(t, top, 2)
	assert.Equal(t, markov.Transition{Position: 2, From: 1, To: 2, Count: 2}, top[0])
	assert.Equal(t, markov.Transition{Position: 2, From: 3, To: 9, Count: 1}, top[1])
}

func TestSimulate_SkipsOutOfRangeNumbers(t *testing.T) {
	model := buildModel(t, [6]int{1, 2, 3, 4, 5, 46})

	report := simulate(model, 20, rand.New(rand.NewPCG(1, 1)))
	assert.Zero(t, report.Truncated)
	assert.Len(t, report.Numbers, models.MaxNumber)
	for _, s := range report.Numbers[:5] {
		assert.Equal(t, 20, s.Count)
		assert.InDelta(t, 0.2, s.Share, 1e-9)
	}
}
