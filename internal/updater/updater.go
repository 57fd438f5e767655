// Package updater keeps the draw history current: it fetches the latest published
// draw and appends it to the store when it is newer than everything stored.
package updater

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rewired-gh/lottoracle/internal/logger"
	"github.com/rewired-gh/lottoracle/internal/models"
	"github.com/rewired-gh/lottoracle/internal/storage"
)

// Fetcher returns the latest published draw.
type Fetcher interface {
	FetchLatest(ctx context.Context) (*models.PublishedDraw, error)
}

// Store is the part of the draw store the updater writes to.
type Store interface {
	LatestDate() (time.Time, error)
	Append(draw models.Draw) error
}

// Notifier is told about newly appended draws.
type Notifier interface {
	SendNewDraw(published models.PublishedDraw) error
}

// Result describes one update run.
type Result struct {
	Appended bool                 `json:"appended"`
	Latest   models.PublishedDraw `json:"latest"`
	Previous time.Time            `json:"previous"` // latest stored date before the run; zero when empty
}

// Updater runs the update action.
type Updater struct {
	fetcher  Fetcher
	store    Store
	notifier Notifier
}

// New creates an Updater. notifier may be nil.
func New(fetcher Fetcher, store Store, notifier Notifier) *Updater {
	return &Updater{
		fetcher:  fetcher,
		store:    store,
		notifier: notifier,
	}
}

// Run fetches the latest draw and appends it when it is after the latest stored date.
func (u *Updater) Run(ctx context.Context) (Result, error) {
	startTime := time.Now()

	previous, err := u.store.LatestDate()
	if err != nil && !errors.Is(err, storage.ErrEmptyStore) {
		return Result{}, fmt.Errorf("failed to read latest stored date: %w", err)
	}

	published, err := u.fetcher.FetchLatest(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch latest draw: %w", err)
	}

	result := Result{Latest: *published, Previous: previous}

	if !previous.IsZero() && !published.Draw.Date.After(previous) {
		logger.Info("Round %d (%s) is already stored", published.Round, published.Draw.DateString())
		return result, nil
	}

	if err := u.store.Append(published.Draw); err != nil {
		if errors.Is(err, storage.ErrNonMonotonicDate) {
			// Another writer appended it first.
			logger.Info("Round %d (%s) was stored concurrently", published.Round, published.Draw.DateString())
			return result, nil
		}
		return Result{}, fmt.Errorf("failed to append round %d: %w", published.Round, err)
	}
	result.Appended = true

	logger.Info("Stored round %d (%s): %v + %d in %v",
		published.Round, published.Draw.DateString(), published.Draw.Numbers, published.Draw.Bonus,
		time.Since(startTime))

	if u.notifier != nil {
		if err := u.notifier.SendNewDraw(*published); err != nil {
			logger.Warn("Failed to send new draw notification: %v", err)
		}
	}

	return result, nil
}

// FailureReporter is told when scheduled runs start failing and when they recover.
type FailureReporter interface {
	SendError(err error) error
	SendRecovery(failures int) error
}

// Job adapts the updater to a scheduler job that runs under ctx.
// reporter may be nil.
func (u *Updater) Job(ctx context.Context, reporter FailureReporter) *Job {
	return &Job{ctx: ctx, updater: u, reporter: reporter}
}

// Job is a scheduled update run. It reports the first failure of a streak and
// the recovery that ends it.
type Job struct {
	ctx      context.Context
	updater  *Updater
	reporter FailureReporter

	mu                  sync.Mutex
	consecutiveFailures int
}

// Name identifies the job in logs.
func (j *Job) Name() string {
	return "update_draws"
}

// Run performs one update.
func (j *Job) Run() error {
	_, err := j.updater.Run(j.ctx)

	j.mu.Lock()
	defer j.mu.Unlock()

	if err != nil {
		j.consecutiveFailures++
		if j.consecutiveFailures == 1 && j.reporter != nil {
			if sendErr := j.reporter.SendError(err); sendErr != nil {
				logger.Warn("Failed to send error notification: %v", sendErr)
			}
		}
		return err
	}

	if j.consecutiveFailures > 0 && j.reporter != nil {
		if sendErr := j.reporter.SendRecovery(j.consecutiveFailures); sendErr != nil {
			logger.Warn("Failed to send recovery notification: %v", sendErr)
		}
	}
	j.consecutiveFailures = 0
	return nil
}
