package auth

import (
	"errors"
	"regexp"
	"strings"
)

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

const MinPasswordLength = 6

// InputError is a credential problem caught before the provider is called.
type InputError struct {
	Field   string
	Message string
}

func (e *InputError) Error() string { return e.Message }

func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// Normalize trims every field and lower-cases the email.
func (c Credentials) Normalize() Credentials {
	return Credentials{
		Email:    strings.ToLower(strings.TrimSpace(c.Email)),
		Password: strings.TrimSpace(c.Password),
		FullName: strings.TrimSpace(c.FullName),
	}
}

// ValidateCredentials normalizes c and applies the sign-in form rules. A full
// name is only required when signUp is set.
func ValidateCredentials(c Credentials, signUp bool) (Credentials, error) {
	c = c.Normalize()
	if c.Email == "" || c.Password == "" {
		return c, &InputError{Field: "email", Message: "Email and password are required"}
	}
	if !emailPattern.MatchString(c.Email) {
		return c, &InputError{Field: "email", Message: "Please enter a valid email address"}
	}
	if len(c.Password) < MinPasswordLength {
		return c, &InputError{Field: "password", Message: "Password must be at least 6 characters"}
	}
	if signUp && c.FullName == "" {
		return c, &InputError{Field: "full_name", Message: "Full name is required"}
	}
	return c, nil
}

// NormalizeEmail prepares an address for a password reset request.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", &InputError{Field: "email", Message: "Please enter your email address"}
	}
	return email, nil
}
