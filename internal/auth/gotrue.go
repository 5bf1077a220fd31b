package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/citifix/backend/internal/models"
	"github.com/citifix/backend/internal/resilience"
)

// GoTrueClient talks to the backend's auth REST API.
type GoTrueClient struct {
	BaseURL string
	AnonKey string
	Client  *http.Client
	Breaker *resilience.Breaker
	Now     func() time.Time

	events Broadcaster
}

func NewGoTrueClient(baseURL, anonKey string) *GoTrueClient {
	return &GoTrueClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		AnonKey: anonKey,
		Client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type tokenResponse struct {
	AccessToken  string   `json:"access_token"`
	TokenType    string   `json:"token_type"`
	ExpiresIn    int64    `json:"expires_in"`
	ExpiresAt    int64    `json:"expires_at"`
	RefreshToken string   `json:"refresh_token"`
	User         userBody `json:"user"`
}

type userBody struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (u userBody) identity() models.Identity {
	id := models.Identity{UserID: u.ID, Email: u.Email}
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		id.FullName = name
	}
	return id
}

type errorBody struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	ErrorCode        string `json:"error_code"`
}

func (c *GoTrueClient) SignUp(ctx context.Context, cr Credentials) (*Session, error) {
	payload := map[string]any{
		"email":    cr.Email,
		"password": cr.Password,
		"data":     map[string]string{"full_name": cr.FullName},
	}
	raw, err := c.do(ctx, "auth.signup", http.MethodPost, "/auth/v1/signup", "", payload)
	if err != nil {
		return nil, err
	}
	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode signup response: %w", err)
	}
	// Without an access token the account still awaits email confirmation.
	if tok.AccessToken == "" {
		return nil, nil
	}
	s := c.session(tok)
	c.events.Emit(EventSignedIn, s)
	return s, nil
}

func (c *GoTrueClient) SignIn(ctx context.Context, cr Credentials) (*Session, error) {
	payload := map[string]string{"email": cr.Email, "password": cr.Password}
	raw, err := c.do(ctx, "auth.signin", http.MethodPost, "/auth/v1/token?grant_type=password", "", payload)
	if err != nil {
		return nil, err
	}
	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	s := c.session(tok)
	c.events.Emit(EventSignedIn, s)
	return s, nil
}

func (c *GoTrueClient) Refresh(ctx context.Context, accessToken, refreshToken string) (*Session, error) {
	payload := map[string]string{"refresh_token": refreshToken}
	raw, err := c.do(ctx, "auth.refresh", http.MethodPost, "/auth/v1/token?grant_type=refresh_token", "", payload)
	if err != nil {
		return nil, err
	}
	var tok tokenResponse
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	s := c.session(tok)
	s.PreviousToken = accessToken
	c.events.Emit(EventTokenRefreshed, s)
	return s, nil
}

func (c *GoTrueClient) SignOut(ctx context.Context, accessToken string) error {
	_, err := c.do(ctx, "auth.signout", http.MethodPost, "/auth/v1/logout", accessToken, nil)
	if err != nil {
		return err
	}
	c.events.Emit(EventSignedOut, &Session{AccessToken: accessToken})
	return nil
}

func (c *GoTrueClient) GetUser(ctx context.Context, accessToken string) (models.Identity, error) {
	raw, err := c.do(ctx, "auth.user", http.MethodGet, "/auth/v1/user", accessToken, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden) {
			return models.Identity{}, fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
		}
		return models.Identity{}, err
	}
	var u userBody
	if err := json.Unmarshal(raw, &u); err != nil {
		return models.Identity{}, fmt.Errorf("decode user: %w", err)
	}
	if u.ID == "" {
		return models.Identity{}, ErrUnauthorized
	}
	return u.identity(), nil
}

func (c *GoTrueClient) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	path := "/auth/v1/recover"
	if redirectTo != "" {
		path += "?redirect_to=" + url.QueryEscape(redirectTo)
	}
	_, err := c.do(ctx, "auth.recover", http.MethodPost, path, "", map[string]string{"email": email})
	return err
}

func (c *GoTrueClient) Subscribe(fn Listener) func() {
	return c.events.Subscribe(fn)
}

func (c *GoTrueClient) session(tok tokenResponse) *Session {
	now := time.Now()
	if c.Now != nil {
		now = c.Now()
	}
	exp := now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	if tok.ExpiresAt > 0 {
		exp = time.Unix(tok.ExpiresAt, 0)
	}
	id := tok.User.identity()
	id.ExpiresAt = exp.UTC()
	return &Session{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    exp.UTC(),
		User:         id,
	}
}

func (c *GoTrueClient) do(ctx context.Context, op, method, path, bearer string, payload any) ([]byte, error) {
	var out []byte
	err := c.Breaker.Execute(ctx, op, func(ctx context.Context) error {
		var body io.Reader
		if payload != nil {
			b, err := json.Marshal(payload)
			if err != nil {
				return err
			}
			body = bytes.NewReader(b)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
		if err != nil {
			return err
		}
		req.Header.Set("apikey", c.AnonKey)
		if bearer == "" {
			bearer = c.AnonKey
		}
		req.Header.Set("Authorization", "Bearer "+bearer)
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		client := c.Client
		if client == nil {
			client = http.DefaultClient
		}
		resp, err := client.Do(req)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("%s: read body: %w", op, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return decodeError(resp.StatusCode, raw)
		}
		out = raw
		return nil
	})
	return out, err
}

func decodeError(status int, raw []byte) error {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)
	msg := firstNonEmpty(eb.ErrorDescription, eb.Msg, eb.Message, eb.Error)
	if msg == "" {
		msg = http.StatusText(status)
	}
	code := firstNonEmpty(eb.ErrorCode, eb.Error)
	return &APIError{Status: status, Code: code, Message: msg}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// IsClientError reports provider answers caused by the request itself (bad
// password, unconfirmed email) rather than by the provider being unhealthy.
func IsClientError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500
}
