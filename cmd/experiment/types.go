package main

// NumberStat is how often a number appeared across generated suggestions.
type NumberStat struct {
	Number int
	Count  int
	Share  float64 // Count / total generated numbers
}

// SimulationReport summarizes N generated suggestions.
type SimulationReport struct {
	Runs           int
	Truncated      int
	LengthCounts   map[int]int // suggestion length -> runs
	Numbers        []NumberStat
	MeanCount      float64
	StdDevCount    float64
	FirstChiSquare float64 // generated position-1 counts vs the model's position-1 table
}

// TruncationRate returns the fraction of runs that stopped early.
func (r SimulationReport) TruncationRate() float64 {
	if r.Runs == 0 {
		return 0
	}
	return float64(r.Truncated) / float64(r.Runs)
}
