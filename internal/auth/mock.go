package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/citifix/backend/internal/models"
)

// MockProvider is an in-memory Provider. Passwords are stored in clear text.
type MockProvider struct {
	TTL time.Duration
	Now func() time.Time

	events Broadcaster

	mu        sync.Mutex
	users     map[string]mockUser
	tokens    map[string]models.Identity
	refreshes map[string]string
	Resets    []string
}

type mockUser struct {
	identity models.Identity
	password string
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		TTL:       time.Hour,
		users:     map[string]mockUser{},
		tokens:    map[string]models.Identity{},
		refreshes: map[string]string{},
	}
}

func (m *MockProvider) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now().UTC()
}

func (m *MockProvider) SignUp(_ context.Context, c Credentials) (*Session, error) {
	m.mu.Lock()
	if _, exists := m.users[c.Email]; exists {
		m.mu.Unlock()
		return nil, &APIError{Status: 422, Code: "user_already_exists", Message: "User already registered"}
	}
	m.users[c.Email] = mockUser{
		identity: models.Identity{UserID: uuid.NewString(), Email: c.Email, FullName: c.FullName},
		password: c.Password,
	}
	m.mu.Unlock()
	return nil, nil
}

func (m *MockProvider) SignIn(_ context.Context, c Credentials) (*Session, error) {
	m.mu.Lock()
	u, ok := m.users[c.Email]
	if !ok || u.password != c.Password {
		m.mu.Unlock()
		return nil, &APIError{Status: 400, Code: "invalid_grant", Message: "Invalid login credentials"}
	}
	s := m.issueLocked(u.identity)
	m.mu.Unlock()
	m.events.Emit(EventSignedIn, s)
	return s, nil
}

func (m *MockProvider) SignOut(_ context.Context, accessToken string) error {
	m.mu.Lock()
	delete(m.tokens, accessToken)
	m.mu.Unlock()
	m.events.Emit(EventSignedOut, &Session{AccessToken: accessToken})
	return nil
}

func (m *MockProvider) Refresh(_ context.Context, accessToken, refreshToken string) (*Session, error) {
	m.mu.Lock()
	if m.refreshes[refreshToken] != accessToken {
		m.mu.Unlock()
		return nil, &APIError{Status: 400, Code: "invalid_grant", Message: "Invalid Refresh Token"}
	}
	id := m.tokens[accessToken]
	delete(m.tokens, accessToken)
	delete(m.refreshes, refreshToken)
	s := m.issueLocked(id)
	m.mu.Unlock()
	s.PreviousToken = accessToken
	m.events.Emit(EventTokenRefreshed, s)
	return s, nil
}

func (m *MockProvider) GetUser(_ context.Context, accessToken string) (models.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.tokens[accessToken]
	if !ok {
		return models.Identity{}, ErrUnauthorized
	}
	if !id.ExpiresAt.IsZero() && m.now().After(id.ExpiresAt) {
		return models.Identity{}, ErrSessionExpired
	}
	return id, nil
}

func (m *MockProvider) ResetPasswordForEmail(_ context.Context, email, _ string) error {
	m.mu.Lock()
	m.Resets = append(m.Resets, email)
	m.mu.Unlock()
	return nil
}

func (m *MockProvider) Subscribe(fn Listener) func() {
	return m.events.Subscribe(fn)
}

// Issue signs in id directly and emits SignedIn, bypassing credentials.
func (m *MockProvider) Issue(id models.Identity) *Session {
	m.mu.Lock()
	s := m.issueLocked(id)
	m.mu.Unlock()
	m.events.Emit(EventSignedIn, s)
	return s
}

func (m *MockProvider) issueLocked(id models.Identity) *Session {
	exp := m.now().Add(m.TTL)
	id.ExpiresAt = exp
	access := fmt.Sprintf("mock-%s", uuid.NewString())
	refresh := uuid.NewString()
	m.tokens[access] = id
	m.refreshes[refresh] = access
	return &Session{AccessToken: access, RefreshToken: refresh, ExpiresAt: exp, User: id}
}

var _ Provider = (*MockProvider)(nil)
var _ Provider = (*GoTrueClient)(nil)
