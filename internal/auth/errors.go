package auth

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrSessionExpired = errors.New("session expired")
)

// APIError is a non-2xx answer from the auth provider.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth provider %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("auth provider %d: %s", e.Status, e.Message)
}

var friendlyMessages = []struct {
	match string
	text  string
}{
	{"Invalid login credentials", "Invalid email or password. Please check your credentials."},
	{"Email not confirmed", "Please check your email and click the verification link."},
	{"rate limit", "Too many attempts. Please wait a minute and try again."},
	{"User already registered", "This email is already registered. Please sign in instead."},
}

// FriendlyMessage turns a provider error into the text shown to the user.
// Unrecognised errors keep their own message.
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	for _, m := range friendlyMessages {
		if strings.Contains(msg, m.match) {
			return m.text
		}
	}
	if msg == "" {
		return "An error occurred"
	}
	return msg
}
