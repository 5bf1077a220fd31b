package reports

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/citifix/backend/internal/models"
)

// FilterAll matches every status or category.
const FilterAll = "All"

var ErrNotFound = errors.New("report not found")

// Source supplies the externally held portion of the list.
type Source interface {
	Fetch(ctx context.Context) ([]models.Report, error)
}

type SourceFunc func(ctx context.Context) ([]models.Report, error)

func (f SourceFunc) Fetch(ctx context.Context) ([]models.Report, error) { return f(ctx) }

type Filter struct {
	Search   string `form:"q"`
	Status   string `form:"status"`
	Category string `form:"category"`
}

// Match reports whether r passes every criterion of f.
func (f Filter) Match(r models.Report) bool {
	if f.Status != "" && f.Status != FilterAll && string(r.Status) != f.Status {
		return false
	}
	if f.Category != "" && f.Category != FilterAll && string(r.Category) != f.Category {
		return false
	}
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	for _, field := range []string{r.Title, r.Location.String(), r.Description, r.Reporter} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}

// Store holds the reports a session can see: the ones it submitted itself
// (newest first) followed by the external listing in fetch order.
type Store struct {
	source Source

	mu       sync.RWMutex
	local    []models.Report
	external []models.Report
	loaded   bool
}

func NewStore(source Source) *Store {
	return &Store{source: source}
}

// Add prepends a freshly submitted report.
func (s *Store) Add(r models.Report) {
	s.mu.Lock()
	s.local = append([]models.Report{r}, s.local...)
	s.mu.Unlock()
}

// Refresh replaces the external portion wholesale. Local reports are untouched.
func (s *Store) Refresh(ctx context.Context) error {
	if s.source == nil {
		return nil
	}
	fetched, err := s.source.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("refresh reports: %w", err)
	}
	s.mu.Lock()
	s.external = append([]models.Report(nil), fetched...)
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Loaded reports whether the external portion was fetched or set at least once.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded || s.source == nil
}

// SetExternal replaces the external portion without going through the source.
func (s *Store) SetExternal(list []models.Report) {
	s.mu.Lock()
	s.external = append([]models.Report(nil), list...)
	s.loaded = true
	s.mu.Unlock()
}

// List returns the filtered view. External entries whose id also exists
// locally are hidden so a report never shows twice.
func (s *Store) List(f Filter) []models.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{}, len(s.local))
	out := make([]models.Report, 0, len(s.local)+len(s.external))
	for _, r := range s.local {
		seen[r.ID] = struct{}{}
		if f.Match(r) {
			out = append(out, r)
		}
	}
	for _, r := range s.external {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func (s *Store) Len() int {
	return len(s.List(Filter{}))
}

func (s *Store) Get(id string) (models.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r := s.findLocked(id); r != nil {
		return *r, true
	}
	return models.Report{}, false
}

// AdjustVotes adds delta to the report's votes, clamped at zero, and returns
// the new count.
func (s *Store) AdjustVotes(id string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.findLocked(id)
	if r == nil {
		return 0, ErrNotFound
	}
	r.Votes += delta
	if r.Votes < 0 {
		r.Votes = 0
	}
	return r.Votes, nil
}

func (s *Store) SetVotes(id string, n int) error {
	if n < 0 {
		n = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.findLocked(id)
	if r == nil {
		return ErrNotFound
	}
	r.Votes = n
	return nil
}

// SetStatus applies a moderation decision. Reports the session does not hold
// are ignored and reported as not found.
func (s *Store) SetStatus(id string, status models.Status) error {
	if !status.Valid() {
		return fmt.Errorf("invalid status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	updated := false
	for i := range s.local {
		if s.local[i].ID == id {
			s.local[i].Status = status
			updated = true
		}
	}
	for i := range s.external {
		if s.external[i].ID == id {
			s.external[i].Status = status
			updated = true
		}
	}
	if !updated {
		return ErrNotFound
	}
	return nil
}

// Remove drops a report from both portions.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	before := len(s.local) + len(s.external)
	s.local = without(s.local, id)
	s.external = without(s.external, id)
	return len(s.local)+len(s.external) != before
}

func (s *Store) findLocked(id string) *models.Report {
	for i := range s.local {
		if s.local[i].ID == id {
			return &s.local[i]
		}
	}
	for i := range s.external {
		if s.external[i].ID == id {
			return &s.external[i]
		}
	}
	return nil
}

func without(list []models.Report, id string) []models.Report {
	out := list[:0]
	for _, r := range list {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}
