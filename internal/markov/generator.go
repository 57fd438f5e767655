package markov

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rewired-gh/lottoracle/internal/logger"
	"github.com/rewired-gh/lottoracle/internal/models"
	"github.com/rewired-gh/lottoracle/internal/storage"
)

// ShortPolicy decides what happens when sampling stops before six numbers.
type ShortPolicy string

const (
	// ShortTruncate returns the shorter suggestion as is.
	ShortTruncate ShortPolicy = "truncate"
	// ShortResample samples again from the same snapshot, up to MaxAttempts.
	ShortResample ShortPolicy = "resample"
)

// Options configures a Generator.
type Options struct {
	ShortPolicy ShortPolicy
	MaxAttempts int           // total attempts under ShortResample
	Backoff     time.Duration // base wait between attempts, grows linearly
}

// DefaultOptions truncates short suggestions.
func DefaultOptions() Options {
	return Options{
		ShortPolicy: ShortTruncate,
		MaxAttempts: 1,
	}
}

// DrawSource supplies the training history.
type DrawSource interface {
	LoadAll() ([]models.Draw, error)
}

// Suggestion is one generated set of numbers.
type Suggestion struct {
	Numbers  []int `json:"numbers"`
	Complete bool  `json:"complete"` // false when sampling stopped early
	Attempts int   `json:"attempts"`
}

// Generator produces suggestions from the draws of a store.
// It keeps no model between calls; every Generate reads a fresh snapshot.
type Generator struct {
	store DrawSource
	opts  Options

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// NewGenerator creates a generator reading history from store.
func NewGenerator(store DrawSource, opts Options) *Generator {
	if opts.ShortPolicy == "" {
		opts.ShortPolicy = ShortTruncate
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	return &Generator{store: store, opts: opts}
}

// WithRand makes the generator draw from r instead of the global source.
// Sequential calls with the same seed and history return the same suggestions.
func (g *Generator) WithRand(r *rand.Rand) *Generator {
	g.rng = r
	return g
}

// Generate loads the history, builds the transition model and samples one suggestion.
func (g *Generator) Generate(ctx context.Context) (Suggestion, error) {
	draws, err := g.store.LoadAll()
	if err != nil {
		return Suggestion{}, fmt.Errorf("failed to load draws: %w", err)
	}

	model, err := Build(draws)
	if err != nil {
		return Suggestion{}, fmt.Errorf("%w: %w", err, storage.ErrEmptyStore)
	}

	src := g.source()
	best := model.Sample(src)
	attempts := 1

	if g.opts.ShortPolicy == ShortResample {
		for len(best) < models.NumbersPerDraw && attempts < g.opts.MaxAttempts {
			if err := wait(ctx, g.opts.Backoff*time.Duration(attempts)); err != nil {
				return Suggestion{}, err
			}
			attempts++

			if numbers := model.Sample(src); len(numbers) > len(best) {
				best = numbers
			}
		}
	}

	complete := len(best) == models.NumbersPerDraw
	if !complete {
		logger.Debug("Generated short suggestion %v after %d attempt(s) from %d draws", best, attempts, model.Draws())
	}

	return Suggestion{
		Numbers:  best,
		Complete: complete,
		Attempts: attempts,
	}, nil
}

func (g *Generator) source() Source {
	if g.rng == nil {
		return globalSource{}
	}
	return &lockedSource{mu: &g.mu, rng: g.rng}
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// globalSource uses the goroutine-safe top-level math/rand/v2 generator.
type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

type lockedSource struct {
	mu  *sync.Mutex
	rng *rand.Rand
}

func (s *lockedSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
