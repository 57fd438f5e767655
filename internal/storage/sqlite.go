package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rewired-gh/lottoracle/internal/models"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS draws (
	draw_date TEXT PRIMARY KEY,
	num1 INTEGER NOT NULL,
	num2 INTEGER NOT NULL,
	num3 INTEGER NOT NULL,
	num4 INTEGER NOT NULL,
	num5 INTEGER NOT NULL,
	num6 INTEGER NOT NULL,
	bonus INTEGER NOT NULL
);`

// SQLiteStore keeps draw history in an SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex // single writer
}

// NewSQLiteStore opens (or creates) the database at dsn and ensures the schema exists.
// Use ":memory:" for an ephemeral store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" databases shared and writes serialized.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// LoadAll returns all draws ordered by date.
func (s *SQLiteStore) LoadAll() ([]models.Draw, error) {
	rows, err := s.db.Query(`SELECT draw_date, num1, num2, num3, num4, num5, num6, bonus
		FROM draws ORDER BY draw_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	defer rows.Close()

	draws := []models.Draw{}
	for rows.Next() {
		var (
			date    string
			numbers [models.NumbersPerDraw]int
			bonus   int
		)
		if err := rows.Scan(&date, &numbers[0], &numbers[1], &numbers[2],
			&numbers[3], &numbers[4], &numbers[5], &bonus); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
		}

		t, err := models.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
		}
		draws = append(draws, models.NewDraw(t, numbers, bonus))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	return draws, nil
}

// LatestDate returns the maximum stored draw date.
func (s *SQLiteStore) LatestDate() (time.Time, error) {
	return latestDate(s.db)
}

// Append inserts a draw after checking the latest date inside the same transaction.
func (s *SQLiteStore) Append(draw models.Draw) error {
	draw.Date = models.Day(draw.Date)

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	latest, err := latestDate(tx)
	empty := errors.Is(err, ErrEmptyStore)
	if err != nil && !empty {
		return err
	}
	if err := checkAppend(latest, empty, draw); err != nil {
		return err
	}

	n := draw.Numbers
	if _, err := tx.Exec(`INSERT INTO draws (draw_date, num1, num2, num3, num4, num5, num6, bonus)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		draw.DateString(), n[0], n[1], n[2], n[3], n[4], n[5], draw.Bonus); err != nil {
		return fmt.Errorf("failed to insert draw: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit draw: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryRower interface {
	QueryRow(query string, args ...any) *sql.Row
}

func latestDate(q queryRower) (time.Time, error) {
	var latest sql.NullString
	if err := q.QueryRow(`SELECT MAX(draw_date) FROM draws`).Scan(&latest); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	if !latest.Valid {
		return time.Time{}, ErrEmptyStore
	}

	t, err := models.ParseDate(latest.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrDataUnavailable, err)
	}
	return t, nil
}
