package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/citifix/backend/internal/auth"
	"github.com/citifix/backend/internal/composer"
	"github.com/citifix/backend/internal/db"
	"github.com/citifix/backend/internal/events"
	"github.com/citifix/backend/internal/models"
	"github.com/citifix/backend/internal/ratelimit"
	"github.com/citifix/backend/internal/reports"
	"github.com/citifix/backend/internal/session"
	"github.com/citifix/backend/internal/storage"
)

type fixture struct {
	dash      *Dashboard
	sessions  *session.Manager
	provider  *auth.MockProvider
	repo      *db.MemoryStore
	published *events.Recorder
}

func newFixture(t *testing.T, demo bool) *fixture {
	t.Helper()
	repo := db.NewMemoryStore()
	recorder := &events.Recorder{}
	uploads, err := storage.NewLocalStore(t.TempDir(), "/uploads")
	if err != nil {
		t.Fatalf("local store: %v", err)
	}
	dash := NewDashboard(Options{
		Repo:         repo,
		Storage:      uploads,
		Publisher:    recorder,
		Limiter:      ratelimit.NewLocal(0),
		DemoFixtures: demo,
		Logger:       zerolog.Nop(),
	})
	provider := auth.NewMockProvider()
	sessions := session.NewManager(session.Options{
		Provider:     provider,
		Profiles:     repo,
		NewWorkspace: dash.NewWorkspace,
		Logger:       zerolog.Nop(),
	})
	dash.Sessions = sessions
	t.Cleanup(sessions.Close)
	return &fixture{dash: dash, sessions: sessions, provider: provider, repo: repo, published: recorder}
}

func (f *fixture) signIn(t *testing.T, userID, email string) *session.Session {
	t.Helper()
	as := f.provider.Issue(models.Identity{UserID: userID, Email: email})
	s, err := f.sessions.Resolve(context.Background(), as.AccessToken)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return s
}

func validDraft() composer.Draft {
	return composer.Draft{Title: "Broken light", Description: "Dark at night", Location: "5 Elm St"}
}

func TestSubmitReportPersistsAndAwardsPoints(t *testing.T) {
	f := newFixture(t, false)
	s := f.signIn(t, "u-1", "sam@example.com")
	ctx := context.Background()

	r, err := f.dash.SubmitReport(ctx, s, validDraft())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if r.Reporter != "sam" || r.UserID != "u-1" || r.Status != models.StatusReported {
		t.Fatalf("unexpected report %+v", r)
	}
	if _, err := f.repo.GetProblem(ctx, r.ID); err != nil {
		t.Fatalf("report not persisted: %v", err)
	}
	list := f.dash.Reports(ctx, s, reports.Filter{})
	if len(list) != 1 || list[0].ID != r.ID {
		t.Fatalf("expected submitted report first, got %v", list)
	}
	p, err := f.repo.GetUserProfile(ctx, "u-1")
	if err != nil || p.Points != DefaultPointsPerReport {
		t.Fatalf("expected %d points, got %+v %v", DefaultPointsPerReport, p, err)
	}
	evs := f.published.Events()
	if len(evs) != 1 || evs[0].Type != events.ReportCreated || evs[0].ReportID != r.ID {
		t.Fatalf("unexpected events %+v", evs)
	}

	st, err := f.dash.Statistics(ctx, s)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.TotalProblems != 1 || st.ActiveUsers != 1 || st.UserPoints != DefaultPointsPerReport {
		t.Fatalf("unexpected stats %+v", st)
	}

	mine, err := f.dash.MyReports(ctx, s)
	if err != nil || len(mine) != 1 {
		t.Fatalf("my reports: %v %v", mine, err)
	}
}

func TestInvalidDraftNeverReachesRepository(t *testing.T) {
	f := newFixture(t, false)
	s := f.signIn(t, "u-1", "sam@example.com")
	d := validDraft()
	d.Title = "  "
	if _, err := f.dash.SubmitReport(context.Background(), s, d); !composer.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	st, _ := f.repo.Stats(context.Background())
	if st.TotalProblems != 0 || len(f.published.Events()) != 0 {
		t.Fatalf("invalid draft must not be persisted or published")
	}
}

func TestVoteConfirmsOnce(t *testing.T) {
	f := newFixture(t, false)
	s := f.signIn(t, "u-1", "sam@example.com")
	ctx := context.Background()
	r, err := f.dash.SubmitReport(ctx, s, validDraft())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	for i := 0; i < 2; i++ {
		got, err := f.dash.Vote(ctx, s, r.ID)
		if err != nil {
			t.Fatalf("vote %d: %v", i, err)
		}
		if got.Votes != 1 {
			t.Fatalf("expected 1 vote, got %d", got.Votes)
		}
	}
	stored, _ := f.repo.GetProblem(ctx, r.ID)
	if stored.Votes != 1 {
		t.Fatalf("expected backend votes 1, got %d", stored.Votes)
	}
	if _, err := f.dash.Vote(ctx, s, "RPT-missing"); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}

func TestFirstListingLoadsOtherUsersReports(t *testing.T) {
	f := newFixture(t, false)
	a := f.signIn(t, "u-1", "sam@example.com")
	ctx := context.Background()
	r, err := f.dash.SubmitReport(ctx, a, validDraft())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	b := f.signIn(t, "u-2", "kim@example.com")
	list := f.dash.Reports(ctx, b, reports.Filter{})
	if len(list) != 1 || list[0].ID != r.ID {
		t.Fatalf("expected the persisted report on first listing, got %v", list)
	}
	if _, err := f.dash.Vote(ctx, b, r.ID); err != nil {
		t.Fatalf("vote: %v", err)
	}
}

func TestVoteOnFixtureIsConfirmedLocally(t *testing.T) {
	f := newFixture(t, true)
	s := f.signIn(t, "u-1", "sam@example.com")
	ctx := context.Background()
	if err := f.dash.Refresh(ctx, s); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	before, ok := s.Workspace.Reports.Get("RPT-001")
	if !ok {
		t.Fatalf("fixture missing after refresh")
	}
	got, err := f.dash.Vote(ctx, s, "RPT-001")
	if err != nil {
		t.Fatalf("vote on fixture: %v", err)
	}
	if got.Votes != before.Votes+1 || !s.Workspace.Votes.HasVoted("RPT-001") {
		t.Fatalf("vote must stick: before %d after %d", before.Votes, got.Votes)
	}
	if _, err := f.dash.Vote(ctx, s, "RPT-001"); err != nil {
		t.Fatalf("second vote: %v", err)
	}
	again, _ := s.Workspace.Reports.Get("RPT-001")
	if again.Votes != got.Votes {
		t.Fatalf("second vote must not count: %d", again.Votes)
	}
}

func TestModerateStatusReachesEverySession(t *testing.T) {
	f := newFixture(t, false)
	a := f.signIn(t, "u-1", "sam@example.com")
	b := f.signIn(t, "u-2", "kim@example.com")
	ctx := context.Background()

	r, err := f.dash.SubmitReport(ctx, a, validDraft())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.dash.Refresh(ctx, b); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	updated, err := f.dash.ModerateStatus(ctx, r.ID, models.StatusFixed)
	if err != nil {
		t.Fatalf("moderate: %v", err)
	}
	if updated.Status != models.StatusFixed {
		t.Fatalf("unexpected status %s", updated.Status)
	}
	for _, s := range []*session.Session{a, b} {
		got, ok := s.Workspace.Reports.Get(r.ID)
		if !ok || got.Status != models.StatusFixed {
			t.Fatalf("session %s not updated: %+v", s.Identity.UserID, got)
		}
	}
	evs := f.published.Events()
	if last := evs[len(evs)-1]; last.Type != events.ReportStatus || last.Status != models.StatusFixed {
		t.Fatalf("unexpected last event %+v", last)
	}

	if _, err := f.dash.ModerateStatus(ctx, r.ID, "Closed"); !composer.IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := f.dash.ModerateStatus(ctx, "RPT-missing", models.StatusFixed); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}

	err = f.dash.ApplyModeration(ctx, events.Event{Type: events.ReportModerated, ReportID: r.ID, Status: models.StatusRejected})
	if err != nil {
		t.Fatalf("apply moderation: %v", err)
	}
	if got, _ := b.Workspace.Reports.Get(r.ID); got.Status != models.StatusRejected {
		t.Fatalf("moderation event not applied: %s", got.Status)
	}
}

func TestDeleteReport(t *testing.T) {
	f := newFixture(t, false)
	s := f.signIn(t, "u-1", "sam@example.com")
	ctx := context.Background()
	r, err := f.dash.SubmitReport(ctx, s, validDraft())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := f.dash.DeleteReport(ctx, r.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := s.Workspace.Reports.Get(r.ID); ok {
		t.Fatalf("deleted report still listed")
	}
	if err := f.dash.DeleteReport(ctx, r.ID); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}

func TestAnalyzeThenSelectCarriesImage(t *testing.T) {
	f := newFixture(t, false)
	s := f.signIn(t, "u-1", "sam@example.com")
	ctx := context.Background()

	_, err := f.dash.Analyze(ctx, s, Upload{Filename: "notes.txt", ContentType: "text/plain", Body: strings.NewReader("x")})
	if !errors.Is(err, storage.ErrNotImage) {
		t.Fatalf("expected ErrNotImage, got %v", err)
	}

	pending, err := f.dash.Analyze(ctx, s, Upload{Filename: "hole.PNG", ContentType: "image/png", Body: strings.NewReader("png")})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !pending.NeedsReview || !strings.HasPrefix(pending.ImageURL, "/uploads/") || !strings.HasSuffix(pending.ImageURL, ".png") {
		t.Fatalf("unexpected pending result %+v", pending)
	}

	chosen, err := f.dash.SelectCategory(s, string(models.CategoryStreetLight))
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if !chosen.IsManuallySelected || chosen.ImageURL != pending.ImageURL {
		t.Fatalf("unexpected selection %+v", chosen)
	}
	st := s.Workspace.Composer.State()
	if st.Category != models.CategoryStreetLight || st.Priority != models.PriorityLow {
		t.Fatalf("analysis not applied to draft defaults: %+v", st)
	}

	r, err := f.dash.SubmitReport(ctx, s, validDraft())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if r.ImageURL != pending.ImageURL || r.Category != models.CategoryStreetLight {
		t.Fatalf("report did not carry the analysis: %+v", r)
	}
}

func TestAcquireLocationOnlyOnce(t *testing.T) {
	f := newFixture(t, false)
	s := f.signIn(t, "u-1", "sam@example.com")
	ctx := context.Background()

	place, ok, err := f.dash.AcquireLocation(ctx, s, models.Coordinates{Lat: 51.1605, Lng: 71.4704})
	if err != nil || !ok || place.Label != "51.160500, 71.470400" {
		t.Fatalf("acquire: %+v %v %v", place, ok, err)
	}
	place, _, _ = f.dash.AcquireLocation(ctx, s, models.Coordinates{Lat: 1, Lng: 1})
	if place.Label != "51.160500, 71.470400" {
		t.Fatalf("second acquisition must keep the first fix, got %s", place.Label)
	}
	if _, _, err := f.dash.AcquireLocation(ctx, s, models.Coordinates{Lat: 120}); err == nil {
		t.Fatalf("expected out of range error")
	}

	d := validDraft()
	d.Location = ""
	r, err := f.dash.SubmitReport(ctx, s, d)
	if err != nil {
		t.Fatalf("submit with fix: %v", err)
	}
	if r.Location.String() != "51.160500, 71.470400" {
		t.Fatalf("unexpected location %s", r.Location)
	}
}

func TestNewWorkspacesAreIndependent(t *testing.T) {
	f := newFixture(t, true)
	a := f.signIn(t, "u-1", "sam@example.com")
	b := f.signIn(t, "u-2", "kim@example.com")
	if a.Workspace == b.Workspace {
		t.Fatalf("sessions must not share a workspace")
	}
	_ = f.dash.Refresh(context.Background(), a)
	if a.Workspace.Reports.Len() != len(reports.Fixtures()) || b.Workspace.Reports.Len() != 0 {
		t.Fatalf("refresh must only touch the calling session")
	}
}
