package storage

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/rewired-gh/lottoracle/internal/models"
)

// utf8BOM prefixes files written by spreadsheet tools; it is accepted on read and written on create.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var csvHeader = []string{"date", "num1", "num2", "num3", "num4", "num5", "num6", "bonus"}

// FileStore keeps draw history in a CSV file.
// The file is the source of truth: it is re-read on every load, so edits made by
// other tools are picked up without a restart.
type FileStore struct {
	path            string
	mu              sync.Mutex // serializes appends
	filePermissions os.FileMode
	dirPermissions  os.FileMode
}

// NewFileStore creates a store backed by the CSV file at path.
// If path is empty, uses an OS-appropriate tmp directory.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = filepath.Join(os.TempDir(), "lottoracle", "lotto_result.csv")
	}
	return &FileStore{
		path:            path,
		filePermissions: 0o644,
		dirPermissions:  0o755,
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// LoadAll reads and parses the whole file.
func (s *FileStore) LoadAll() ([]models.Draw, error) {
	return s.read()
}

// LatestDate returns the date of the last row.
func (s *FileStore) LatestDate() (time.Time, error) {
	draws, err := s.read()
	if err != nil {
		return time.Time{}, err
	}
	return latestOf(draws)
}

// Append adds a row and rewrites the file atomically.
// A missing file is treated as an empty history and is created.
func (s *FileStore) Append(draw models.Draw) error {
	draw.Date = models.Day(draw.Date)

	s.mu.Lock()
	defer s.mu.Unlock()

	draws, err := s.read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return err
		}
		draws = nil
	}

	latest, _ := latestOf(draws)
	if err := checkAppend(latest, len(draws) == 0, draw); err != nil {
		return err
	}

	return s.write(append(draws, draw))
}

// Close is a no-op; the file is only open during reads and writes.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) read() ([]models.Draw, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrDataUnavailable, s.path, err)
	}

	draws, err := decodeCSV(bytes.TrimPrefix(data, utf8BOM))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDataUnavailable, s.path, err)
	}
	return draws, nil
}

func (s *FileStore) write(draws []models.Draw) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, s.dirPermissions); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(utf8BOM)
	if err := encodeCSV(&buf, draws); err != nil {
		return fmt.Errorf("failed to encode draws: %w", err)
	}

	// Write to temporary file first (atomic write)
	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, buf.Bytes(), s.filePermissions); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		_ = os.Remove(tempPath) // Clean up temp file on rename failure
		return fmt.Errorf("failed to rename file: %w", err)
	}
	return nil
}

func decodeCSV(data []byte) ([]models.Draw, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = len(csvHeader)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return []models.Draw{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if header[0] != csvHeader[0] {
		return nil, fmt.Errorf("unexpected header: %v", header)
	}

	var draws []models.Draw
	for line := 2; ; line++ {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		draw, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if n := len(draws); n > 0 && !draw.Date.After(draws[n-1].Date) {
			return nil, fmt.Errorf("line %d: date %s not after %s", line, draw.DateString(), draws[n-1].DateString())
		}
		draws = append(draws, draw)
	}

	if draws == nil {
		draws = []models.Draw{}
	}
	return draws, nil
}

func parseRecord(record []string) (models.Draw, error) {
	date, err := models.ParseDate(record[0])
	if err != nil {
		return models.Draw{}, err
	}

	var values [models.NumbersPerDraw + 1]int
	for i := range values {
		v, err := strconv.Atoi(record[i+1])
		if err != nil {
			return models.Draw{}, fmt.Errorf("invalid %s %q: %w", csvHeader[i+1], record[i+1], err)
		}
		values[i] = v
	}

	var numbers [models.NumbersPerDraw]int
	copy(numbers[:], values[:models.NumbersPerDraw])
	return models.NewDraw(date, numbers, values[models.NumbersPerDraw]), nil
}

func encodeCSV(w io.Writer, draws []models.Draw) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}

	record := make([]string, len(csvHeader))
	for _, d := range draws {
		record[0] = d.DateString()
		for i, n := range d.Numbers {
			record[i+1] = strconv.Itoa(n)
		}
		record[len(record)-1] = strconv.Itoa(d.Bonus)
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
