package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rewired-gh/lottoracle/internal/markov"
	"github.com/rewired-gh/lottoracle/internal/models"
)

// printFirstPosition displays the position-1 probability table
func printFirstPosition(model *markov.Model, top int) {
	p := model.FirstDistribution().Normalize()

	type entry struct {
		value int
		prob  float64
	}
	entries := make([]entry, len(p.Values))
	for i, v := range p.Values {
		entries[i] = entry{value: v, prob: p.Weights[i]}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].prob > entries[j].prob
	})

	fmt.Printf("\n  %d distinct first numbers across %d draws\n", len(entries), model.Draws())
	for i, e := range entries {
		if i >= top {
			break
		}
		fmt.Printf("    %2d  %6.2f%%  %s\n", e.value, e.prob*100, bar(e.prob, 40))
	}
}

// printTransitions displays the strongest transitions for every position
func printTransitions(model *markov.Model, top int) {
	for position := 2; position <= models.NumbersPerDraw; position++ {
		transitions := topTransitions(model, position, top)
		fmt.Printf("\n  Position %d (%d observed pairs):\n", position, len(model.Transitions(position)))
		for _, t := range transitions {
			p := model.Successors(position, t.From).Normalize().Probability(t.To)
			fmt.Printf("    %2d -> %2d  count=%-3d  P=%.2f\n", t.From, t.To, t.Count, p)
		}
	}
}

// printSimulation displays the outcome of the generated suggestions
func printSimulation(report SimulationReport, top int) {
	fmt.Printf("\n  Runs: %d\n", report.Runs)
	fmt.Printf("  Truncated: %d (%.2f%%)\n", report.Truncated, report.TruncationRate()*100)

	fmt.Println("\n  Suggestion length distribution:")
	for length := 0; length <= models.NumbersPerDraw; length++ {
		count := report.LengthCounts[length]
		if count == 0 {
			continue
		}
		share := float64(count) / float64(report.Runs)
		fmt.Printf("    %d numbers: %6d  %s\n", length, count, bar(share, 40))
	}

	fmt.Printf("\n  Per-number count: mean=%.1f stddev=%.1f\n", report.MeanCount, report.StdDevCount)
	fmt.Printf("  Position-1 chi-square vs model: %.2f\n", report.FirstChiSquare)

	fmt.Printf("\n  Most generated numbers (top %d):\n", top)
	for i, s := range report.Numbers {
		if i >= top {
			break
		}
		fmt.Printf("    %2d  %6d  %5.2f%%\n", s.Number, s.Count, s.Share*100)
	}

	fmt.Println("\n  Least generated numbers:")
	for i := len(report.Numbers) - 1; i >= 0 && i >= len(report.Numbers)-top; i-- {
		s := report.Numbers[i]
		fmt.Printf("    %2d  %6d  %5.2f%%\n", s.Number, s.Count, s.Share*100)
	}
}

func bar(share float64, width int) string {
	n := int(share*float64(width) + 0.5)
	if n > width {
		n = width
	}
	return strings.Repeat("#", n)
}
