package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/citifix/backend/internal/models"
)

// Claims are the access token claims issued by the auth provider.
type Claims struct {
	jwt.RegisteredClaims
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

// Verifier checks HS256 access tokens signed with the project's JWT secret.
type Verifier struct {
	Secret []byte
	Now    func() time.Time
}

func NewVerifier(secret string) *Verifier {
	if secret == "" {
		return nil
	}
	return &Verifier{Secret: []byte(secret)}
}

// Verify returns the identity carried by tokenStr. Expired tokens yield
// ErrSessionExpired; any other failure yields ErrUnauthorized.
func (v *Verifier) Verify(tokenStr string) (models.Identity, error) {
	if v == nil || len(v.Secret) == 0 {
		return models.Identity{}, fmt.Errorf("verifier uninitialized")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.Now != nil {
		opts = append(opts, jwt.WithTimeFunc(v.Now))
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return v.Secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, ErrSessionExpired
		}
		return models.Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if !token.Valid || claims.Subject == "" {
		return models.Identity{}, ErrUnauthorized
	}

	id := models.Identity{UserID: claims.Subject, Email: claims.Email}
	if name, ok := claims.UserMetadata["full_name"].(string); ok {
		id.FullName = name
	}
	if claims.ExpiresAt != nil {
		id.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}
	return id, nil
}

// Sign issues a token for id. Used by tests and local tooling.
func (v *Verifier) Sign(id models.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	if v.Now != nil {
		now = v.Now()
	}
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: id.Email,
		Role:  "authenticated",
	}
	if id.FullName != "" {
		claims.UserMetadata = map[string]any{"full_name": id.FullName}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}
