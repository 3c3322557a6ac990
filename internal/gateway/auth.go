package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/supabase-community/gotrue-go"
	"github.com/supabase-community/gotrue-go/types"
)

// ErrNoAccessToken is returned by token-bound auth calls given an empty token
var ErrNoAccessToken = errors.New("gateway: no access token")

// User is an identity known to the auth service
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    *time.Time     `json:"created_at,omitempty"`
}

// Session is the token pair issued by the auth service on sign-in
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// Expiry returns when the access token stops being accepted
func (s *Session) Expiry() time.Time {
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	return time.Now().Add(time.Duration(s.ExpiresIn) * time.Second)
}

// Auth exposes the auth service
type Auth struct {
	client *Client
}

// Auth returns the auth subsystem of the client
func (c *Client) Auth() *Auth {
	return &Auth{client: c}
}

// service returns the auth SDK client for one call: token as bearer, and
// requests bound to ctx and sent through the interceptor
func (a *Auth) service(ctx context.Context, op, token string) gotrue.Client {
	ctx, _ = withCall(ctx, op)
	return a.client.auth.
		WithToken(token).
		WithClient(http.Client{Transport: boundTransport{ctx: ctx, next: a.client.transport}})
}

// SignInWithPassword exchanges credentials for a session
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	resp, err := a.service(ctx, "auth_token", a.client.apiKey).SignInWithEmailPassword(email, password)
	if err != nil {
		return nil, fmt.Errorf("auth token (password): %w", authError("auth_token", err))
	}
	return sessionFrom(resp.Session), nil
}

// RefreshSession exchanges a refresh token for a new session
func (a *Auth) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrNoAccessToken
	}
	resp, err := a.service(ctx, "auth_token", a.client.apiKey).RefreshToken(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("auth token (refresh_token): %w", authError("auth_token", err))
	}
	return sessionFrom(resp.Session), nil
}

// GetUser returns the user owning accessToken. It is the authoritative
// get-current-session check: expired or revoked tokens fail.
func (a *Auth) GetUser(ctx context.Context, accessToken string) (*User, error) {
	if accessToken == "" {
		return nil, ErrNoAccessToken
	}
	resp, err := a.service(ctx, "auth_user", accessToken).GetUser()
	if err != nil {
		return nil, fmt.Errorf("auth get user: %w", authError("auth_user", err))
	}
	user := userFrom(resp.User)
	return &user, nil
}

// SignOut revokes the session owning accessToken
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return ErrNoAccessToken
	}
	if err := a.service(ctx, "auth_logout", accessToken).Logout(); err != nil {
		return fmt.Errorf("auth sign out: %w", authError("auth_logout", err))
	}
	return nil
}

type recoverRequest struct {
	Email string `json:"email"`
}

// ResetPasswordForEmail sends a recovery link to email. The SDK's recover
// call cannot carry redirect_to, so this one is sent directly.
func (a *Auth) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	body, err := jsonBody(recoverRequest{Email: email})
	if err != nil {
		return err
	}

	query := url.Values{}
	if redirectTo != "" {
		query.Set("redirect_to", redirectTo)
	}

	_, err = a.client.do(ctx, request{
		op:     "auth_recover",
		method: http.MethodPost,
		path:   authPrefix + "/recover",
		query:  query,
		body:   body,
		bearer: a.client.apiKey,
	})
	if err != nil {
		return fmt.Errorf("auth recover: %w", err)
	}
	return nil
}

// AdminUserParams describes a user created by AdminCreateUser
type AdminUserParams struct {
	Email        string
	Password     string
	EmailConfirm bool
	UserMetadata map[string]any
}

// AdminCreateUser provisions a user. The client must be built with the
// privileged service key.
func (a *Auth) AdminCreateUser(ctx context.Context, params AdminUserParams) (*User, error) {
	req := types.AdminCreateUserRequest{
		Email:        params.Email,
		EmailConfirm: params.EmailConfirm,
		UserMetadata: params.UserMetadata,
	}
	if params.Password != "" {
		req.Password = &params.Password
	}

	resp, err := a.service(ctx, "auth_admin_create_user", a.client.apiKey).AdminCreateUser(req)
	if err != nil {
		return nil, fmt.Errorf("auth admin create user: %w", authError("auth_admin_create_user", err))
	}
	user := userFrom(resp.User)
	return &user, nil
}

func sessionFrom(s types.Session) *Session {
	return &Session{
		AccessToken:  s.AccessToken,
		TokenType:    s.TokenType,
		ExpiresIn:    s.ExpiresIn,
		ExpiresAt:    s.ExpiresAt,
		RefreshToken: s.RefreshToken,
		User:         userFrom(s.User),
	}
}

func userFrom(u types.User) User {
	out := User{
		Email:        u.Email,
		Role:         u.Role,
		AppMetadata:  u.AppMetadata,
		UserMetadata: u.UserMetadata,
	}
	if u.ID != uuid.Nil {
		out.ID = u.ID.String()
	}
	if !u.CreatedAt.IsZero() {
		created := u.CreatedAt
		out.CreatedAt = &created
	}
	return out
}

// authError recovers the *Error raised by the interceptor. The SDK's own
// failures are request validation or response decoding.
func authError(op string, err error) error {
	var gwErr *Error
	switch {
	case errors.As(err, &gwErr):
		return gwErr
	case errors.Is(err, types.ErrInvalidTokenRequest):
		return &Error{
			Status:  http.StatusBadRequest,
			Code:    "invalid_request",
			Message: "Email and password are required",
			err:     err,
		}
	default:
		return &Error{Code: CodeDecode, Message: fmt.Sprintf("%s: failed to decode response: %v", op, err), err: err}
	}
}
