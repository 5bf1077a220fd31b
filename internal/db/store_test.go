package db

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/citifix/backend/internal/models"
)

func sampleReport(id, userID string, at time.Time) models.Report {
	return models.Report{
		ID:          id,
		Title:       "Broken street light",
		Description: "Dark for a week",
		Category:    models.CategoryStreetLight,
		Priority:    models.PriorityLow,
		Status:      models.StatusReported,
		Location:    models.CoordinateLocation(models.Coordinates{Lat: 51.1605, Lng: 71.4704}),
		Reporter:    "sam",
		UserID:      userID,
		Date:        at,
	}
}

func exerciseRepository(t *testing.T, repo Repository) {
	t.Helper()
	ctx := context.Background()
	user := "user-" + uuid.NewString()
	base := time.Now().UTC().Truncate(time.Millisecond)
	first := "RPT-" + uuid.NewString()
	second := "RPT-" + uuid.NewString()

	if _, err := repo.CreateProblem(ctx, sampleReport(first, user, base)); err != nil {
		t.Fatalf("create: %v", err)
	}
	created, err := repo.CreateProblem(ctx, sampleReport(second, user, base.Add(time.Second)))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Votes != 0 || created.Location.Coordinates == nil {
		t.Fatalf("unexpected created row %+v", created)
	}

	mine, err := repo.ListProblemsByUser(ctx, user)
	if err != nil {
		t.Fatalf("list by user: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != second {
		t.Fatalf("expected newest first, got %+v", mine)
	}

	if n, err := repo.IncrementVotes(ctx, first); err != nil || n != 1 {
		t.Fatalf("increment votes: %d %v", n, err)
	}
	if _, err := repo.IncrementVotes(ctx, "RPT-missing-"+uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	fixed := models.StatusFixed
	updated, err := repo.UpdateProblem(ctx, first, ProblemUpdate{Status: &fixed})
	if err != nil || updated.Status != models.StatusFixed || updated.Title != "Broken street light" {
		t.Fatalf("update: %+v %v", updated, err)
	}

	if _, err := repo.GetUserProfile(ctx, user); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected missing profile, got %v", err)
	}
	if _, err := repo.CreateUserProfile(ctx, user, "sam"); err != nil {
		t.Fatalf("create profile: %v", err)
	}
	if total, err := repo.AddUserPoints(ctx, user, 10); err != nil || total != 10 {
		t.Fatalf("add points: %d %v", total, err)
	}

	st, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalProblems < 2 || st.FixedProblems < 1 || st.ActiveUsers < 1 {
		t.Fatalf("unexpected stats %+v", st)
	}

	if err := repo.DeleteProblem(ctx, second); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetProblem(ctx, second); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := repo.DeleteProblem(ctx, second); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseRepository(t, NewMemoryStore())
}

func TestMemoryStoreListLimit(t *testing.T) {
	m := NewMemoryStore()
	base := time.Now()
	for i := 0; i < DefaultListLimit+5; i++ {
		id := "RPT-" + uuid.NewString()
		if _, err := m.CreateProblem(context.Background(), sampleReport(id, "u", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	list, _ := m.ListProblems(context.Background(), 0)
	if len(list) != DefaultListLimit {
		t.Fatalf("expected default limit %d, got %d", DefaultListLimit, len(list))
	}
}

func TestStoreIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, err := New(ctx, url)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		t.Fatalf("schema: %v", err)
	}
	exerciseRepository(t, store)
}
