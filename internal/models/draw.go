// Package models defines the core domain entities for the lottoracle application.
// A Draw is one historical 6/45 lottery result; a PublishedDraw is a Draw as announced
// on the official site, together with its round number.
//
// Position matters throughout the application: Numbers[0] is the first number recorded
// for a draw, not the smallest one.
package models

import (
	"errors"
	"fmt"
	"time"
)

const (
	// NumbersPerDraw is the count of main numbers in one draw.
	NumbersPerDraw = 6
	// MinNumber is the smallest ball value.
	MinNumber = 1
	// MaxNumber is the largest ball value.
	MaxNumber = 45
)

// DateLayout is the calendar date format used for persistence and the HTTP API.
const DateLayout = "2006-01-02"

// Draw represents one historical lottery result.
type Draw struct {
	Date    time.Time           `json:"date"`
	Numbers [NumbersPerDraw]int `json:"numbers"` // In recorded order
	Bonus   int                 `json:"bonus"`
}

// PublishedDraw is a draw as announced by the lottery operator.
type PublishedDraw struct {
	Round int  `json:"round"`
	Draw  Draw `json:"draw"`
}

// NewDraw builds a draw from a date and its numbers, truncating the date to a calendar day in UTC.
func NewDraw(date time.Time, numbers [NumbersPerDraw]int, bonus int) Draw {
	return Draw{
		Date:    Day(date),
		Numbers: numbers,
		Bonus:   bonus,
	}
}

// Day returns the calendar day of t as UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// DateString formats the draw date as YYYY-MM-DD.
func (d *Draw) DateString() string {
	return d.Date.Format(DateLayout)
}

// Validate checks that the draw date is set and that all seven numbers are distinct and in range.
func (d *Draw) Validate() error {
	if d.Date.IsZero() {
		return errors.New("draw date must not be empty")
	}

	seen := make(map[int]bool, NumbersPerDraw+1)
	for i, n := range d.Numbers {
		if n < MinNumber || n > MaxNumber {
			return fmt.Errorf("number at position %d out of range: %d", i+1, n)
		}
		if seen[n] {
			return fmt.Errorf("duplicate number: %d", n)
		}
		seen[n] = true
	}

	if d.Bonus < MinNumber || d.Bonus > MaxNumber {
		return fmt.Errorf("bonus number out of range: %d", d.Bonus)
	}
	if seen[d.Bonus] {
		return fmt.Errorf("bonus number %d duplicates a main number", d.Bonus)
	}
	return nil
}
