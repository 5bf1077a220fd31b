package db

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/citifix/backend/internal/models"
)

// MemoryStore keeps problems and profiles in process. It backs development
// runs without DATABASE_URL and the service tests.
type MemoryStore struct {
	Now func() time.Time

	mu       sync.RWMutex
	problems map[string]models.Report
	profiles map[string]models.UserProfile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		problems: map[string]models.Report{},
		profiles: map[string]models.UserProfile{},
	}
}

func (m *MemoryStore) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

func (m *MemoryStore) CreateProblem(_ context.Context, r models.Report) (models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.problems[r.ID]; exists {
		return models.Report{}, fmt.Errorf("problem %s already exists", r.ID)
	}
	if r.Date.IsZero() {
		r.Date = m.now()
	}
	r.Votes = 0
	r.UpdatedAt = r.Date
	m.problems[r.ID] = r
	return r, nil
}

func (m *MemoryStore) GetProblem(_ context.Context, id string) (models.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.problems[id]
	if !ok {
		return models.Report{}, ErrNotFound
	}
	return r, nil
}

func (m *MemoryStore) ListProblems(_ context.Context, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	out := m.sorted(func(models.Report) bool { return true })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListProblemsByUser(_ context.Context, userID string) ([]models.Report, error) {
	return m.sorted(func(r models.Report) bool { return r.UserID == userID }), nil
}

func (m *MemoryStore) sorted(keep func(models.Report) bool) []models.Report {
	m.mu.RLock()
	out := make([]models.Report, 0, len(m.problems))
	for _, r := range m.problems {
		if keep(r) {
			out = append(out, r)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out
}

func (m *MemoryStore) UpdateProblem(_ context.Context, id string, upd ProblemUpdate) (models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.problems[id]
	if !ok {
		return models.Report{}, ErrNotFound
	}
	if upd.Title != nil {
		r.Title = *upd.Title
	}
	if upd.Description != nil {
		r.Description = *upd.Description
	}
	if upd.Status != nil {
		r.Status = *upd.Status
	}
	r.UpdatedAt = m.now()
	m.problems[id] = r
	return r, nil
}

func (m *MemoryStore) DeleteProblem(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.problems[id]; !ok {
		return ErrNotFound
	}
	delete(m.problems, id)
	return nil
}

func (m *MemoryStore) IncrementVotes(_ context.Context, id string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.problems[id]
	if !ok {
		return 0, ErrNotFound
	}
	r.Votes++
	r.UpdatedAt = m.now()
	m.problems[id] = r
	return r.Votes, nil
}

func (m *MemoryStore) CreateUserProfile(_ context.Context, userID, fullName string) (models.UserProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.profiles[userID]; exists {
		return models.UserProfile{}, fmt.Errorf("profile for %s already exists", userID)
	}
	p := models.UserProfile{
		ID:        uuid.NewString(),
		UserID:    userID,
		FullName:  fullName,
		CreatedAt: m.now(),
	}
	m.profiles[userID] = p
	return p, nil
}

func (m *MemoryStore) GetUserProfile(_ context.Context, userID string) (models.UserProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[userID]
	if !ok {
		return models.UserProfile{}, ErrNotFound
	}
	return p, nil
}

func (m *MemoryStore) AddUserPoints(_ context.Context, userID string, points int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return 0, ErrNotFound
	}
	p.Points += points
	m.profiles[userID] = p
	return p.Points, nil
}

func (m *MemoryStore) Stats(_ context.Context) (models.Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := models.Stats{TotalProblems: len(m.problems), ActiveUsers: len(m.profiles)}
	for _, r := range m.problems {
		if r.Status == models.StatusFixed {
			st.FixedProblems++
		}
	}
	return st, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

var _ Repository = (*MemoryStore)(nil)
