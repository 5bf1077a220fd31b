package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/citifix/backend/internal/auth"
	"github.com/citifix/backend/internal/composer"
	"github.com/citifix/backend/internal/ratelimit"
	"github.com/citifix/backend/internal/session"
)

// Accounts fronts the auth provider. Credential forms share the submit
// rate limit, keyed by the caller's address.
type Accounts struct {
	Provider      auth.Provider
	Sessions      *session.Manager
	Limiter       ratelimit.Limiter
	ResetRedirect string
	Logger        zerolog.Logger
}

func NewAccounts(provider auth.Provider, sessions *session.Manager, limiter ratelimit.Limiter, resetRedirect string, logger zerolog.Logger) *Accounts {
	if limiter == nil {
		limiter = ratelimit.NewLocal(2 * time.Second)
	}
	return &Accounts{
		Provider:      provider,
		Sessions:      sessions,
		Limiter:       limiter,
		ResetRedirect: resetRedirect,
		Logger:        logger.With().Str("component", "accounts").Logger(),
	}
}

func (a *Accounts) allow(ctx context.Context, clientKey string) error {
	ok, err := a.Limiter.Allow(ctx, "auth:"+clientKey)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}
	if !ok {
		return composer.ErrTooSoon
	}
	return nil
}

// SignUp registers the user. A nil session means the provider wants the
// email confirmed before the first sign-in.
func (a *Accounts) SignUp(ctx context.Context, clientKey string, c auth.Credentials) (*auth.Session, error) {
	c, err := auth.ValidateCredentials(c, true)
	if err != nil {
		return nil, err
	}
	if err := a.allow(ctx, clientKey); err != nil {
		return nil, err
	}
	s, err := a.Provider.SignUp(ctx, c)
	if err != nil {
		return nil, err
	}
	a.Logger.Info().Str("email", c.Email).Bool("confirmation_required", s == nil).Msg("user signed up")
	return s, nil
}

func (a *Accounts) SignIn(ctx context.Context, clientKey string, c auth.Credentials) (*auth.Session, error) {
	c, err := auth.ValidateCredentials(c, false)
	if err != nil {
		return nil, err
	}
	if err := a.allow(ctx, clientKey); err != nil {
		return nil, err
	}
	return a.Provider.SignIn(ctx, c)
}

// SignOut ends the provider session. The local session goes away even
// when the provider call fails.
func (a *Accounts) SignOut(ctx context.Context, accessToken string) error {
	err := a.Provider.SignOut(ctx, accessToken)
	if a.Sessions != nil {
		a.Sessions.Drop(accessToken)
	}
	return err
}

func (a *Accounts) Refresh(ctx context.Context, accessToken, refreshToken string) (*auth.Session, error) {
	if refreshToken == "" {
		return nil, &auth.InputError{Field: "refresh_token", Message: "Refresh token is required"}
	}
	return a.Provider.Refresh(ctx, accessToken, refreshToken)
}

func (a *Accounts) ResetPassword(ctx context.Context, clientKey, email string) error {
	email, err := auth.NormalizeEmail(email)
	if err != nil {
		return err
	}
	if err := a.allow(ctx, clientKey); err != nil {
		return err
	}
	return a.Provider.ResetPasswordForEmail(ctx, email, a.ResetRedirect)
}
