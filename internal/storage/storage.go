// Package storage provides the historical draw store.
// A store is an append-only, date-ordered collection of draws. Two backends are
// available: a flat CSV file (date,num1..num6,bonus) and an SQLite database.
//
// Every backend serializes appends and rejects a draw whose date is not strictly
// after the latest stored date, so the history the model trains on is always in
// draw order without duplicates.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/rewired-gh/lottoracle/internal/models"
)

var (
	// ErrDataUnavailable is returned when the backing store cannot be read.
	ErrDataUnavailable = errors.New("draw data unavailable")
	// ErrEmptyStore is returned when the store holds no draws.
	ErrEmptyStore = errors.New("draw store is empty")
	// ErrNonMonotonicDate is returned when an appended draw is not after the latest stored draw.
	ErrNonMonotonicDate = errors.New("draw date not after latest stored date")
)

// Store is the historical draw store.
type Store interface {
	// LoadAll returns a copy of all draws ordered by date ascending.
	LoadAll() ([]models.Draw, error)
	// LatestDate returns the date of the most recent draw.
	LatestDate() (time.Time, error)
	// Append adds a draw whose date is strictly after LatestDate.
	Append(draw models.Draw) error
	// Close releases resources held by the store.
	Close() error
}

const (
	// DriverCSV selects the flat-file backend.
	DriverCSV = "csv"
	// DriverSQLite selects the SQLite backend.
	DriverSQLite = "sqlite"
)

// Open creates a store for the given driver.
func Open(driver, path string) (Store, error) {
	switch driver {
	case DriverCSV, "":
		return NewFileStore(path), nil
	case DriverSQLite:
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %s", driver)
	}
}

// Copy appends every draw of src that is newer than the latest draw of dst.
// A dst file that does not exist yet is created. It returns the number of draws appended.
func Copy(dst, src Store) (int, error) {
	draws, err := src.LoadAll()
	if err != nil {
		return 0, fmt.Errorf("failed to load source draws: %w", err)
	}

	latest, err := dst.LatestDate()
	if err != nil && !errors.Is(err, ErrEmptyStore) && !errors.Is(err, fs.ErrNotExist) {
		return 0, fmt.Errorf("failed to read destination latest date: %w", err)
	}

	copied := 0
	for _, d := range draws {
		if !d.Date.After(latest) {
			continue
		}
		if err := dst.Append(d); err != nil {
			return copied, fmt.Errorf("failed to append draw %s: %w", d.DateString(), err)
		}
		latest = d.Date
		copied++
	}
	return copied, nil
}

// latestOf returns the date of the last draw of an ordered slice.
func latestOf(draws []models.Draw) (time.Time, error) {
	if len(draws) == 0 {
		return time.Time{}, ErrEmptyStore
	}
	return draws[len(draws)-1].Date, nil
}

// checkAppend enforces the strictly increasing date invariant.
func checkAppend(latest time.Time, empty bool, draw models.Draw) error {
	if empty {
		return nil
	}
	if !draw.Date.After(latest) {
		return fmt.Errorf("%w: %s <= %s", ErrNonMonotonicDate,
			draw.Date.Format(models.DateLayout), latest.Format(models.DateLayout))
	}
	return nil
}
