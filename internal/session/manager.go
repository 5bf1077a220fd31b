package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/citifix/backend/internal/auth"
	"github.com/citifix/backend/internal/composer"
	"github.com/citifix/backend/internal/db"
	"github.com/citifix/backend/internal/models"
	"github.com/citifix/backend/internal/reports"
	"github.com/citifix/backend/internal/voting"
)

const (
	DefaultIdleTimeout   = 24 * time.Hour
	DefaultSweepInterval = time.Minute
)

var (
	ErrNoToken        = errors.New("missing access token")
	ErrSessionExpired = auth.ErrSessionExpired
)

// Workspace is the state a signed-in user works with: the report form, the
// visible report list and the votes cast in this session.
type Workspace struct {
	Composer *composer.Composer
	Reports  *reports.Store
	Votes    *voting.Ledger
}

func (w *Workspace) Close() {
	if w != nil && w.Composer != nil {
		w.Composer.Close()
	}
}

// WorkspaceFactory builds a fresh workspace for a newly resolved identity.
type WorkspaceFactory func(id models.Identity) *Workspace

type Session struct {
	Token     string
	Identity  models.Identity
	ExpiresAt time.Time
	CreatedAt time.Time
	Workspace *Workspace

	lastSeen atomic.Int64
}

// LastSeen is when the session was last resolved.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load()).UTC()
}

func (s *Session) touch(at time.Time) {
	s.lastSeen.Store(at.UnixNano())
}

// ProfileStore is the subset of tabular storage the manager needs.
type ProfileStore interface {
	GetUserProfile(ctx context.Context, userID string) (models.UserProfile, error)
	CreateUserProfile(ctx context.Context, userID, fullName string) (models.UserProfile, error)
}

type Options struct {
	Provider     auth.Provider
	Verifier     *auth.Verifier
	Profiles     ProfileStore
	NewWorkspace WorkspaceFactory
	Logger       zerolog.Logger
	Now          func() time.Time

	// IdleTimeout drops sessions nobody resolved for that long, even when
	// their token has not expired yet.
	IdleTimeout time.Duration
	// SweepInterval is how often expired and idle sessions are dropped.
	// A negative value disables the background sweep.
	SweepInterval time.Duration
}

// Manager is the only consumer of the provider's session events. It keeps
// one Session per access token.
type Manager struct {
	opts        Options
	logger      zerolog.Logger
	events      auth.Broadcaster
	unsubscribe func()

	mu       sync.RWMutex
	sessions map[string]*Session

	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func NewManager(opts Options) *Manager {
	m := &Manager{
		opts:     opts,
		logger:   opts.Logger.With().Str("component", "session").Logger(),
		sessions: map[string]*Session{},
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if m.opts.IdleTimeout <= 0 {
		m.opts.IdleTimeout = DefaultIdleTimeout
	}
	if m.opts.SweepInterval == 0 {
		m.opts.SweepInterval = DefaultSweepInterval
	}
	if m.opts.NewWorkspace == nil {
		m.opts.NewWorkspace = func(models.Identity) *Workspace {
			store := reports.NewStore(nil)
			return &Workspace{
				Composer: composer.New(composer.Options{}),
				Reports:  store,
				Votes:    voting.NewLedger(store, nil),
			}
		}
	}
	if opts.Provider != nil {
		m.unsubscribe = opts.Provider.Subscribe(m.handle)
	}
	if m.opts.SweepInterval > 0 {
		go m.sweepLoop(m.opts.SweepInterval)
	} else {
		close(m.done)
	}
	return m
}

func (m *Manager) sweepLoop(every time.Duration) {
	defer close(m.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

// Sweep drops sessions whose token expired or that sat idle past
// IdleTimeout, and reports how many were dropped.
func (m *Manager) Sweep() int {
	now := m.now()
	m.mu.Lock()
	var stale []*Session
	for token, s := range m.sessions {
		if m.expired(s.ExpiresAt) || now.Sub(s.LastSeen()) >= m.opts.IdleTimeout {
			stale = append(stale, s)
			delete(m.sessions, token)
		}
	}
	m.mu.Unlock()
	for _, s := range stale {
		s.Workspace.Close()
	}
	if len(stale) > 0 {
		m.logger.Debug().Int("dropped", len(stale)).Msg("stale sessions swept")
	}
	return len(stale)
}

func (m *Manager) now() time.Time {
	if m.opts.Now != nil {
		return m.opts.Now()
	}
	return time.Now().UTC()
}

// Resolve returns the session for token, creating it on first sight.
func (m *Manager) Resolve(ctx context.Context, token string) (*Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrNoToken
	}

	m.mu.RLock()
	s, ok := m.sessions[token]
	m.mu.RUnlock()
	if ok {
		if m.expired(s.ExpiresAt) {
			m.Drop(token)
			return nil, ErrSessionExpired
		}
		s.touch(m.now())
		return s, nil
	}

	id, err := m.identify(ctx, token)
	if err != nil {
		return nil, err
	}
	if m.expired(id.ExpiresAt) {
		return nil, ErrSessionExpired
	}
	s, created := m.store(token, id)
	if created {
		m.ensureProfile(ctx, id)
	}
	return s, nil
}

func (m *Manager) identify(ctx context.Context, token string) (models.Identity, error) {
	if m.opts.Verifier != nil {
		id, err := m.opts.Verifier.Verify(token)
		if err == nil || errors.Is(err, auth.ErrSessionExpired) {
			return id, err
		}
		m.logger.Debug().Err(err).Msg("local token verification failed, asking provider")
	}
	if m.opts.Provider == nil {
		return models.Identity{}, auth.ErrUnauthorized
	}
	id, err := m.opts.Provider.GetUser(ctx, token)
	if err != nil {
		return models.Identity{}, fmt.Errorf("resolve session: %w", err)
	}
	return id, nil
}

func (m *Manager) expired(at time.Time) bool {
	return !at.IsZero() && !m.now().Before(at)
}

func (m *Manager) store(token string, id models.Identity) (*Session, bool) {
	m.mu.Lock()
	if s, ok := m.sessions[token]; ok {
		m.mu.Unlock()
		return s, false
	}
	s := &Session{
		Token:     token,
		Identity:  id,
		ExpiresAt: id.ExpiresAt,
		CreatedAt: m.now(),
		Workspace: m.opts.NewWorkspace(id),
	}
	s.touch(s.CreatedAt)
	m.sessions[token] = s
	m.mu.Unlock()
	return s, true
}

// Drop forgets the session for token and releases its workspace.
func (m *Manager) Drop(token string) {
	m.mu.Lock()
	s, ok := m.sessions[token]
	delete(m.sessions, token)
	m.mu.Unlock()
	if ok {
		s.Workspace.Close()
	}
}

func (m *Manager) handle(ev auth.Event, as *auth.Session) {
	if as == nil {
		return
	}
	switch ev {
	case auth.EventSignedIn:
		id := as.User
		if id.ExpiresAt.IsZero() {
			id.ExpiresAt = as.ExpiresAt
		}
		if _, created := m.store(as.AccessToken, id); created {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			m.ensureProfile(ctx, id)
			cancel()
		}
	case auth.EventSignedOut:
		m.Drop(as.AccessToken)
	case auth.EventTokenRefreshed:
		m.rekey(as)
	}
	m.logger.Debug().Str("event", string(ev)).Str("user_id", as.User.UserID).Msg("session event")
	m.events.Emit(ev, as)
}

func (m *Manager) rekey(as *auth.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[as.PreviousToken]
	if !ok {
		return
	}
	delete(m.sessions, as.PreviousToken)
	s.Token = as.AccessToken
	s.ExpiresAt = as.ExpiresAt
	s.Identity.ExpiresAt = as.ExpiresAt
	m.sessions[as.AccessToken] = s
}

// ensureProfile creates the user's profile with zero points when missing.
// Failures are logged; they never block the session.
func (m *Manager) ensureProfile(ctx context.Context, id models.Identity) {
	if m.opts.Profiles == nil || id.UserID == "" {
		return
	}
	_, err := m.opts.Profiles.GetUserProfile(ctx, id.UserID)
	if err == nil {
		return
	}
	if !errors.Is(err, db.ErrNotFound) {
		m.logger.Error().Err(err).Str("user_id", id.UserID).Msg("profile lookup failed")
		return
	}
	if _, err := m.opts.Profiles.CreateUserProfile(ctx, id.UserID, ProfileName(id)); err != nil {
		m.logger.Error().Err(err).Str("user_id", id.UserID).Msg("profile creation failed")
		return
	}
	m.logger.Info().Str("user_id", id.UserID).Msg("user profile created")
}

// ProfileName falls back from the full name to the email local part to "User".
func ProfileName(id models.Identity) string {
	if name := strings.TrimSpace(id.FullName); name != "" {
		return name
	}
	if local, _, ok := strings.Cut(id.Email, "@"); ok && local != "" {
		return local
	}
	return "User"
}

// Subscribe registers fn for session events after the manager applied them.
func (m *Manager) Subscribe(fn auth.Listener) func() {
	return m.events.Subscribe(fn)
}

// Each calls fn for every live session.
func (m *Manager) Each(fn func(*Session)) {
	m.mu.RLock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.RUnlock()
	for _, s := range list {
		fn(s)
	}
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.stop) })
	<-m.done
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = map[string]*Session{}
	m.mu.Unlock()
	for _, s := range sessions {
		s.Workspace.Close()
	}
}
