package markov

import (
	"slices"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Source supplies uniform random numbers in [0, 1). *rand.Rand satisfies it.
type Source interface {
	Float64() float64
}

// Distribution is a discrete distribution over ball values.
// Values are kept in ascending order so sampling with a seeded Source is reproducible.
type Distribution struct {
	Values  []int
	Weights []float64
}

// fromCounts builds an unnormalized distribution from occurrence counts.
func fromCounts(counts map[int]int) Distribution {
	values := make([]int, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	slices.Sort(values)

	weights := make([]float64, len(values))
	for i, v := range values {
		weights[i] = float64(counts[v])
	}
	return Distribution{Values: values, Weights: weights}
}

// Len returns the number of candidates.
func (d Distribution) Len() int {
	return len(d.Values)
}

// Probability returns the weight of v, or 0 when v is not a candidate.
func (d Distribution) Probability(v int) float64 {
	i, found := slices.BinarySearch(d.Values, v)
	if !found {
		return 0
	}
	return d.Weights[i]
}

// Normalize returns a copy whose weights sum to 1.
func (d Distribution) Normalize() Distribution {
	weights := slices.Clone(d.Weights)
	total := floats.Sum(weights)
	if total > 0 {
		floats.Scale(1/total, weights)
	}
	return Distribution{Values: slices.Clone(d.Values), Weights: weights}
}

// Without drops every candidate in used and renormalizes the remaining weights.
func (d Distribution) Without(used map[int]bool) Distribution {
	var out Distribution
	for i, v := range d.Values {
		if used[v] {
			continue
		}
		out.Values = append(out.Values, v)
		out.Weights = append(out.Weights, d.Weights[i])
	}
	return out.Normalize()
}

// Sample draws one value with probability proportional to its weight by inverting
// the cumulative distribution. It reports false when there are no candidates.
func (d Distribution) Sample(src Source) (int, bool) {
	if len(d.Values) == 0 {
		return 0, false
	}

	cdf := make([]float64, len(d.Weights))
	floats.CumSum(cdf, d.Weights)

	u := src.Float64() * cdf[len(cdf)-1]
	i := sort.Search(len(cdf), func(i int) bool { return cdf[i] > u })
	if i == len(cdf) {
		// u landed on the total through rounding
		i = len(cdf) - 1
	}
	return d.Values[i], true
}
