package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/citifix/backend/internal/auth"
	"github.com/citifix/backend/internal/db"
	"github.com/citifix/backend/internal/models"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newManager(t *testing.T) (*Manager, *auth.MockProvider, *db.MemoryStore, *clock) {
	t.Helper()
	clk := &clock{now: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
	provider := auth.NewMockProvider()
	provider.Now = clk.Now
	profiles := db.NewMemoryStore()
	m := NewManager(Options{
		Provider: provider,
		Profiles: profiles,
		Logger:   zerolog.Nop(),
		Now:      clk.Now,
	})
	t.Cleanup(m.Close)
	return m, provider, profiles, clk
}

func TestSignInCreatesSessionAndProfile(t *testing.T) {
	m, provider, profiles, _ := newManager(t)
	s := provider.Issue(models.Identity{UserID: "u-1", Email: "sam@example.com"})

	got, err := m.Resolve(context.Background(), s.AccessToken)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.Identity.UserID != "u-1" || got.Workspace == nil {
		t.Fatalf("unexpected session %+v", got)
	}
	p, err := profiles.GetUserProfile(context.Background(), "u-1")
	if err != nil {
		t.Fatalf("profile: %v", err)
	}
	if p.FullName != "sam" || p.Points != 0 {
		t.Fatalf("unexpected profile %+v", p)
	}

	again, _ := m.Resolve(context.Background(), s.AccessToken)
	if again != got {
		t.Fatalf("expected cached session")
	}
}

func TestResolveUnknownTokenAsksProvider(t *testing.T) {
	m, _, _, _ := newManager(t)
	if _, err := m.Resolve(context.Background(), "bogus"); !errors.Is(err, auth.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := m.Resolve(context.Background(), " "); !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}
}

func TestExpiredSessionIsDropped(t *testing.T) {
	m, provider, _, clk := newManager(t)
	s := provider.Issue(models.Identity{UserID: "u-1", Email: "sam@example.com"})
	clk.Advance(2 * time.Hour)
	if _, err := m.Resolve(context.Background(), s.AccessToken); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expired session must be dropped")
	}
}

func TestSignOutDropsWorkspace(t *testing.T) {
	m, provider, _, _ := newManager(t)
	var seen []auth.Event
	unsubscribe := m.Subscribe(func(ev auth.Event, _ *auth.Session) { seen = append(seen, ev) })
	defer unsubscribe()

	s := provider.Issue(models.Identity{UserID: "u-1", Email: "sam@example.com"})
	if m.Len() != 1 {
		t.Fatalf("expected one session")
	}
	if err := provider.SignOut(context.Background(), s.AccessToken); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("expected no sessions after sign out")
	}
	if len(seen) != 2 || seen[0] != auth.EventSignedIn || seen[1] != auth.EventSignedOut {
		t.Fatalf("unexpected events %v", seen)
	}
}

func TestTokenRefreshKeepsWorkspace(t *testing.T) {
	m, provider, _, _ := newManager(t)
	s := provider.Issue(models.Identity{UserID: "u-1", Email: "sam@example.com"})
	before, _ := m.Resolve(context.Background(), s.AccessToken)

	refreshed, err := provider.Refresh(context.Background(), s.AccessToken, s.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	after, err := m.Resolve(context.Background(), refreshed.AccessToken)
	if err != nil {
		t.Fatalf("resolve refreshed: %v", err)
	}
	if after.Workspace != before.Workspace {
		t.Fatalf("refresh must keep the workspace")
	}
	if _, err := m.Resolve(context.Background(), s.AccessToken); err == nil {
		t.Fatalf("old token must no longer resolve")
	}
}

func TestVerifierResolvesWithoutProvider(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	v := auth.NewVerifier("secret")
	v.Now = func() time.Time { return now }
	m := NewManager(Options{Verifier: v, Logger: zerolog.Nop(), Now: func() time.Time { return now }})
	defer m.Close()

	tok, err := v.Sign(models.Identity{UserID: "u-2", Email: "kim@example.com"}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	s, err := m.Resolve(context.Background(), tok)
	if err != nil || s.Identity.UserID != "u-2" {
		t.Fatalf("resolve: %+v %v", s, err)
	}
}

func TestProfileName(t *testing.T) {
	cases := map[string]models.Identity{
		"Sam Lee": {FullName: " Sam Lee ", Email: "sam@example.com"},
		"sam":     {Email: "sam@example.com"},
		"User":    {},
	}
	for want, id := range cases {
		if got := ProfileName(id); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestSweepDropsExpiredSessions(t *testing.T) {
	m, provider, _, clk := newManager(t)
	provider.TTL = time.Minute
	for i := 0; i < 100; i++ {
		provider.Issue(models.Identity{UserID: fmt.Sprintf("u-%d", i)})
	}
	if m.Len() != 100 {
		t.Fatalf("expected 100 sessions, got %d", m.Len())
	}
	clk.Advance(24 * time.Hour)
	if n := m.Sweep(); n != 100 {
		t.Fatalf("expected 100 dropped, got %d", n)
	}
	if m.Len() != 0 {
		t.Fatalf("expired sessions must be gone, %d left", m.Len())
	}
}

func TestSweepDropsIdleSessions(t *testing.T) {
	m, provider, _, clk := newManager(t)
	provider.TTL = 72 * time.Hour
	active := provider.Issue(models.Identity{UserID: "u-1"})
	provider.Issue(models.Identity{UserID: "u-2"})

	clk.Advance(23 * time.Hour)
	if _, err := m.Resolve(context.Background(), active.AccessToken); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	clk.Advance(2 * time.Hour)
	if n := m.Sweep(); n != 1 {
		t.Fatalf("expected only the idle session dropped, got %d", n)
	}
	if _, err := m.Resolve(context.Background(), active.AccessToken); err != nil {
		t.Fatalf("active session must survive: %v", err)
	}
}

func TestBackgroundSweep(t *testing.T) {
	clk := &clock{now: time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)}
	provider := auth.NewMockProvider()
	provider.Now = clk.Now
	provider.TTL = time.Minute
	m := NewManager(Options{
		Provider:      provider,
		Logger:        zerolog.Nop(),
		Now:           clk.Now,
		SweepInterval: 5 * time.Millisecond,
	})
	t.Cleanup(m.Close)

	provider.Issue(models.Identity{UserID: "u-1"})
	clk.Advance(time.Hour)
	deadline := time.Now().Add(2 * time.Second)
	for m.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("background sweep never dropped the expired session")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
