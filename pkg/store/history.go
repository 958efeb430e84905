package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/younsl/costadvisor/pkg/advisor"
)

// maxEntrySize bounds a single history line
const maxEntrySize = 1024 * 1024

// Entry is one line of the history log
type Entry struct {
	ID                string    `json:"id"`
	Timestamp         time.Time `json:"timestamp"`
	User              string    `json:"user"`
	Intent            string    `json:"intent"`
	Code              string    `json:"code"`
	Summary           string    `json:"summary"`
	RecommendationIDs []string  `json:"recommendation_ids"`
	TotalSavings      float64   `json:"total_savings"`
}

// EntryFromReport builds the history entry for an advisor report
func EntryFromReport(user string, r advisor.Report) Entry {
	ids := make([]string, 0, len(r.Recommendations))
	for _, rec := range r.Recommendations {
		ids = append(ids, rec.ID)
	}
	return Entry{
		Timestamp:         r.GeneratedAt,
		User:              user,
		Intent:            string(r.Intent),
		Code:              string(r.Code),
		Summary:           advisor.Summary(r),
		RecommendationIDs: ids,
		TotalSavings:      r.TotalSavings,
	}
}

// History is an append-only JSON Lines log
type History struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewHistory opens the log at path, creating its directory if needed
func NewHistory(path string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("error creating history directory: %w", err)
	}
	return &History{path: path, now: time.Now}, nil
}

// Path returns the log file location
func (h *History) Path() string {
	return h.path
}

// Append writes the entry, filling in the id and timestamp when unset
func (h *History) Append(e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = h.now()
	}
	e.Timestamp = e.Timestamp.UTC()

	data, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("error encoding history entry: %w", err)
	}
	data = append(data, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return Entry{}, fmt.Errorf("error opening history: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return Entry{}, fmt.Errorf("error writing history: %w", err)
	}
	return e, nil
}

// Recent returns up to n entries, newest first. n <= 0 returns all of them.
// Lines that fail to decode are skipped.
func (h *History) Recent(n int) ([]Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	f, err := os.Open(h.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error opening history: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEntrySize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading history: %w", err)
	}

	slices.Reverse(entries)
	if n > 0 && len(entries) > n {
		entries = entries[:n]
	}
	if entries == nil {
		entries = []Entry{}
	}
	return entries, nil
}
