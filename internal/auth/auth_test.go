package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/citifix/backend/internal/models"
)

func TestValidateCredentials(t *testing.T) {
	cases := []struct {
		name    string
		in      Credentials
		signUp  bool
		wantErr string
	}{
		{"missing password", Credentials{Email: "a@b.co"}, false, "Email and password are required"},
		{"bad email", Credentials{Email: "not-an-email", Password: "secret1"}, false, "Please enter a valid email address"},
		{"short password", Credentials{Email: "a@b.co", Password: " 12345 "}, false, "Password must be at least 6 characters"},
		{"signup without name", Credentials{Email: "a@b.co", Password: "secret1", FullName: "  "}, true, "Full name is required"},
		{"signin ignores name", Credentials{Email: "a@b.co", Password: "secret1"}, false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateCredentials(tc.in, tc.signUp)
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if err == nil || err.Error() != tc.wantErr || !IsInputError(err) {
				t.Fatalf("expected %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestValidateCredentialsNormalizes(t *testing.T) {
	c, err := ValidateCredentials(Credentials{Email: "  Sam@Example.COM ", Password: " secret1 ", FullName: " Sam "}, true)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if c.Email != "sam@example.com" || c.Password != "secret1" || c.FullName != "Sam" {
		t.Fatalf("unexpected normalized credentials %+v", c)
	}
}

func TestFriendlyMessage(t *testing.T) {
	cases := map[string]string{
		"Invalid login credentials": "Invalid email or password. Please check your credentials.",
		"Email not confirmed":       "Please check your email and click the verification link.",
		"email rate limit exceeded": "Too many attempts. Please wait a minute and try again.",
		"Something unexpected":      "Something unexpected",
	}
	for in, want := range cases {
		got := FriendlyMessage(&APIError{Status: 400, Message: in})
		if got != want {
			t.Fatalf("%q: expected %q, got %q", in, want, got)
		}
	}
	if FriendlyMessage(nil) != "" {
		t.Fatalf("nil error must map to empty message")
	}
}

func TestVerifierRoundTrip(t *testing.T) {
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)
	v := NewVerifier("test-secret")
	v.Now = func() time.Time { return now }

	tok, err := v.Sign(models.Identity{UserID: "u-1", Email: "sam@example.com", FullName: "Sam"}, time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	id, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if id.UserID != "u-1" || id.FullName != "Sam" || !id.ExpiresAt.Equal(now.Add(time.Hour)) {
		t.Fatalf("unexpected identity %+v", id)
	}

	v.Now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := v.Verify(tok); !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	other := NewVerifier("other-secret")
	other.Now = func() time.Time { return now }
	if _, err := other.Verify(tok); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestGoTrueSignInEmitsEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("apikey") != "anon" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/auth/v1/token":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "secret1" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"Invalid login credentials"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"tok","expires_in":3600,"refresh_token":"ref","user":{"id":"u-1","email":"sam@example.com","user_metadata":{"full_name":"Sam"}}}`))
		case "/auth/v1/user":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"msg":"invalid JWT"}`))
				return
			}
			_, _ = w.Write([]byte(`{"id":"u-1","email":"sam@example.com"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewGoTrueClient(srv.URL, "anon")
	var events []Event
	unsubscribe := c.Subscribe(func(ev Event, s *Session) { events = append(events, ev) })
	defer unsubscribe()

	ctx := context.Background()
	_, err := c.SignIn(ctx, Credentials{Email: "sam@example.com", Password: "wrong1"})
	if FriendlyMessage(err) != "Invalid email or password. Please check your credentials." {
		t.Fatalf("unexpected error %v", err)
	}
	if !IsClientError(err) {
		t.Fatalf("expected client error")
	}

	s, err := c.SignIn(ctx, Credentials{Email: "sam@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if s.AccessToken != "tok" || s.User.FullName != "Sam" {
		t.Fatalf("unexpected session %+v", s)
	}
	if len(events) != 1 || events[0] != EventSignedIn {
		t.Fatalf("expected one SIGNED_IN event, got %v", events)
	}

	if _, err := c.GetUser(ctx, "stale"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	id, err := c.GetUser(ctx, "tok")
	if err != nil || id.UserID != "u-1" {
		t.Fatalf("get user: %+v %v", id, err)
	}
}
