// Package markov implements the number generator: a first-order Markov chain over
// draw positions, learned from historical draws.
//
// The chain is keyed by raw position, not by sorted rank. Position 1 is sampled
// from the frequency of first recorded numbers; position p (2..6) is sampled from
// the numbers that historically followed the previously chosen number when it sat
// at position p-1. Numbers already chosen are removed from each candidate set and
// the remainder renormalized. If nothing remains the suggestion stops early.
//
// Both tables are rebuilt from a fresh store snapshot on every generation.
package markov

import (
	"errors"

	"github.com/rewired-gh/lottoracle/internal/models"
)

// ErrInsufficientData is returned when there are no draws to learn from.
var ErrInsufficientData = errors.New("insufficient data: no historical draws")

// Model holds the position-1 frequency table and the per-position transition tables.
type Model struct {
	first map[int]int
	// transitions[p] maps previous value -> value at position p+1 -> count,
	// for p in 1..5 (0-based index of the target position).
	transitions [models.NumbersPerDraw]map[int]map[int]int
	draws       int
}

// Build counts first numbers and adjacent-position transitions across draws.
func Build(draws []models.Draw) (*Model, error) {
	if len(draws) == 0 {
		return nil, ErrInsufficientData
	}

	m := &Model{
		first: make(map[int]int),
		draws: len(draws),
	}
	for p := 1; p < models.NumbersPerDraw; p++ {
		m.transitions[p] = make(map[int]map[int]int)
	}

	for _, d := range draws {
		m.first[d.Numbers[0]]++

		for p := 1; p < models.NumbersPerDraw; p++ {
			prev, next := d.Numbers[p-1], d.Numbers[p]
			successors, ok := m.transitions[p][prev]
			if !ok {
				successors = make(map[int]int)
				m.transitions[p][prev] = successors
			}
			successors[next]++
		}
	}

	return m, nil
}

// Draws returns the number of draws the model was built from.
func (m *Model) Draws() int {
	return m.draws
}

// FirstDistribution returns the count of each value observed at position 1.
func (m *Model) FirstDistribution() Distribution {
	return fromCounts(m.first)
}

// Successors returns the count of each value observed at position (1-based)
// after prev appeared at position-1. It is empty for unknown positions or values.
func (m *Model) Successors(position, prev int) Distribution {
	if position < 2 || position > models.NumbersPerDraw {
		return Distribution{}
	}
	return fromCounts(m.transitions[position-1][prev])
}

// Transition is one observed (previous value -> next value) pair at a target position.
type Transition struct {
	Position int
	From     int
	To       int
	Count    int
}

// Transitions lists every observed transition into position (1-based, 2..6).
func (m *Model) Transitions(position int) []Transition {
	if position < 2 || position > models.NumbersPerDraw {
		return nil
	}

	var out []Transition
	for from, successors := range m.transitions[position-1] {
		for to, count := range successors {
			out = append(out, Transition{Position: position, From: from, To: to, Count: count})
		}
	}
	return out
}

// Sample produces one suggestion. The result holds distinct values and may be
// shorter than six numbers when every successor of the last number is already used.
func (m *Model) Sample(src Source) []int {
	numbers := make([]int, 0, models.NumbersPerDraw)
	used := make(map[int]bool, models.NumbersPerDraw)

	first, ok := m.FirstDistribution().Normalize().Sample(src)
	if !ok {
		return numbers
	}
	numbers = append(numbers, first)
	used[first] = true

	for position := 2; position <= models.NumbersPerDraw; position++ {
		prev := numbers[len(numbers)-1]
		candidates := m.Successors(position, prev).Normalize().Without(used)

		next, ok := candidates.Sample(src)
		if !ok {
			break
		}
		numbers = append(numbers, next)
		used[next] = true
	}

	return numbers
}
