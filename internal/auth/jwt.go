package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/islandvows/islandvows/internal/gateway"
)

// ErrInvalidToken is returned when a token is malformed, expired or signed
// with another key
var ErrInvalidToken = errors.New("invalid or expired token")

// audience stamped on access tokens for signed-in users
const tokenAudience = "authenticated"

// Claims is the subset of access token claims the server reads
type Claims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier checks access tokens locally against the project's JWT secret.
// It saves the auth service round-trip but cannot see server-side sign-outs
// until the token expires.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for HS256 tokens signed with secret
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("JWT secret not configured")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

// GetUser validates token and returns the user described by its claims
func (v *JWTVerifier) GetUser(_ context.Context, token string) (*gateway.User, error) {
	if token == "" {
		return nil, gateway.ErrNoAccessToken
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(tokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &gateway.User{
		ID:    claims.Subject,
		Email: claims.Email,
		Role:  claims.Role,
	}, nil
}
