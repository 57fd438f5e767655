package main

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rewired-gh/lottoracle/internal/markov"
	"github.com/rewired-gh/lottoracle/internal/models"
)

// simulate samples runs suggestions from model and tallies the results.
func simulate(model *markov.Model, runs int, src *rand.Rand) SimulationReport {
	report := SimulationReport{
		Runs:         runs,
		LengthCounts: make(map[int]int),
	}

	counts := make([]float64, models.MaxNumber+1)
	firstCounts := make(map[int]float64)
	total := 0

	for i := 0; i < runs; i++ {
		numbers := model.Sample(src)
		report.LengthCounts[len(numbers)]++
		if len(numbers) < models.NumbersPerDraw {
			report.Truncated++
		}
		if len(numbers) > 0 {
			firstCounts[numbers[0]]++
		}
		for _, n := range numbers {
			if n < models.MinNumber || n > models.MaxNumber {
				continue
			}
			counts[n]++
			total++
		}
	}

	for n := models.MinNumber; n <= models.MaxNumber; n++ {
		share := 0.0
		if total > 0 {
			share = counts[n] / float64(total)
		}
		report.Numbers = append(report.Numbers, NumberStat{Number: n, Count: int(counts[n]), Share: share})
	}
	sort.SliceStable(report.Numbers, func(i, j int) bool {
		return report.Numbers[i].Count > report.Numbers[j].Count
	})

	report.MeanCount, report.StdDevCount = stat.MeanStdDev(counts[models.MinNumber:], nil)
	report.FirstChiSquare = firstPositionChiSquare(model.FirstDistribution(), firstCounts, runs)

	return report
}

// firstPositionChiSquare compares observed position-1 counts with the counts the
// model's position-1 table predicts for runs samples.
func firstPositionChiSquare(first markov.Distribution, observed map[int]float64, runs int) float64 {
	if first.Len() == 0 || runs == 0 {
		return 0
	}

	p := first.Normalize()
	obs := make([]float64, len(p.Values))
	exp := make([]float64, len(p.Values))
	for i, v := range p.Values {
		obs[i] = observed[v]
		exp[i] = p.Weights[i] * float64(runs)
	}
	return stat.ChiSquare(obs, exp)
}

// topTransitions returns the n most frequent transitions into position.
func topTransitions(model *markov.Model, position, n int) []markov.Transition {
	transitions := model.Transitions(position)
	sort.Slice(transitions, func(i, j int) bool {
		if transitions[i].Count != transitions[j].Count {
			return transitions[i].Count > transitions[j].Count
		}
		if transitions[i].From != transitions[j].From {
			return transitions[i].From < transitions[j].From
		}
		return transitions[i].To < transitions[j].To
	})
	if len(transitions) > n {
		transitions = transitions[:n]
	}
	return transitions
}
