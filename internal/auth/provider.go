package auth

import (
	"context"
	"sync"
	"time"

	"github.com/citifix/backend/internal/models"
)

type Event string

const (
	EventSignedIn       Event = "SIGNED_IN"
	EventSignedOut      Event = "SIGNED_OUT"
	EventTokenRefreshed Event = "TOKEN_REFRESHED"
)

// Session is an authenticated provider session.
type Session struct {
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token,omitempty"`
	ExpiresAt    time.Time       `json:"expires_at"`
	User         models.Identity `json:"user"`
	// PreviousToken is set on TokenRefreshed events.
	PreviousToken string `json:"-"`
}

type Listener func(ev Event, s *Session)

// Provider is the external identity service.
type Provider interface {
	// SignUp returns a nil session when the provider requires email confirmation first.
	SignUp(ctx context.Context, c Credentials) (*Session, error)
	SignIn(ctx context.Context, c Credentials) (*Session, error)
	SignOut(ctx context.Context, accessToken string) error
	// Refresh exchanges refreshToken for a new session replacing accessToken.
	Refresh(ctx context.Context, accessToken, refreshToken string) (*Session, error)
	GetUser(ctx context.Context, accessToken string) (models.Identity, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	Subscribe(fn Listener) (unsubscribe func())
}

// Broadcaster fans session changes out to subscribers.
type Broadcaster struct {
	mu        sync.RWMutex
	next      int
	listeners map[int]Listener
}

func (b *Broadcaster) Subscribe(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.listeners == nil {
		b.listeners = map[int]Listener{}
	}
	id := b.next
	b.next++
	b.listeners[id] = fn
	return func() {
		b.mu.Lock()
		delete(b.listeners, id)
		b.mu.Unlock()
	}
}

func (b *Broadcaster) Emit(ev Event, s *Session) {
	b.mu.RLock()
	fns := make([]Listener, 0, len(b.listeners))
	for _, fn := range b.listeners {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(ev, s)
	}
}
