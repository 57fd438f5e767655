// Command experiment prints an offline report of the transition model built from
// a stored draw history: the position-1 table, the strongest transitions and the
// empirical behaviour of many generated suggestions.
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"strings"

	"github.com/rewired-gh/lottoracle/internal/markov"
	"github.com/rewired-gh/lottoracle/internal/storage"
)

var (
	driver = flag.String("driver", storage.DriverCSV, "Store driver: csv or sqlite")
	path   = flag.String("store", "./data/lotto_result.csv", "Path to the draw store")
	runs   = flag.Int("n", 100000, "Number of suggestions to generate")
	seed   = flag.Uint64("seed", 1, "Random seed")
	top    = flag.Int("top", 10, "Rows to show per table")
)

func main() {
	flag.Parse()

	store, err := storage.Open(*driver, *path)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	draws, err := store.LoadAll()
	if err != nil {
		log.Fatalf("Failed to load draws: %v", err)
	}

	model, err := markov.Build(draws)
	if err != nil {
		log.Fatalf("Failed to build model: %v", err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("LOTTORACLE MODEL EXPERIMENT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("History: %d draws, %s to %s\n", len(draws), draws[0].DateString(), draws[len(draws)-1].DateString())

	fmt.Println("\nSTEP 1: Position-1 frequency table")
	fmt.Println(strings.Repeat("-", 80))
	printFirstPosition(model, *top)

	fmt.Println("\nSTEP 2: Strongest transitions")
	fmt.Println(strings.Repeat("-", 80))
	printTransitions(model, *top)

	fmt.Printf("\nSTEP 3: Generating %d suggestions (seed %d)\n", *runs, *seed)
	fmt.Println(strings.Repeat("-", 80))
	report := simulate(model, *runs, rand.New(rand.NewPCG(*seed, *seed)))
	printSimulation(report, *top)

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("EXPERIMENT COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
}
