package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/islandvows/islandvows/internal/gateway"
)

const sessionContextKey = "auth.session"

// Session check results reported to the observer
const (
	ResultPresent  = "present"
	ResultAbsent   = "absent"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// Verifier turns an access token into the user owning it. *gateway.Auth and
// *JWTVerifier implement it.
type Verifier interface {
	GetUser(ctx context.Context, accessToken string) (*gateway.User, error)
}

// Resolver determines whether a request carries a valid session. It only
// reads credentials; cookies are written by the login and logout handlers.
type Resolver struct {
	verifier Verifier
	timeout  time.Duration
	observe  func(result string, d time.Duration)
}

// NewResolver creates a resolver bounding each verification by timeout.
// observe may be nil.
func NewResolver(verifier Verifier, timeout time.Duration, observe func(result string, d time.Duration)) *Resolver {
	if observe == nil {
		observe = func(string, time.Duration) {}
	}
	return &Resolver{
		verifier: verifier,
		timeout:  timeout,
		observe:  observe,
	}
}

type resolution struct {
	session *Session
	err     error
}

// Resolve returns the request's session, nil when there is no valid one.
// A non-nil error means the check itself failed (network, timeout); callers
// must then treat the session as absent. The result is memoized on c, so the
// verifier runs at most once per request.
func (r *Resolver) Resolve(c *gin.Context) (*Session, error) {
	if v, ok := c.Get(sessionContextKey); ok {
		if res, ok := v.(resolution); ok {
			return res.session, res.err
		}
	}

	session, err := r.resolve(c.Request)
	c.Set(sessionContextKey, resolution{session: session, err: err})
	return session, err
}

func (r *Resolver) resolve(req *http.Request) (*Session, error) {
	start := time.Now()

	token, method := Credentials(req)
	if token == "" {
		r.observe(ResultAbsent, time.Since(start))
		return nil, nil
	}

	ctx := req.Context()
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	user, err := r.verifier.GetUser(ctx, token)
	if err != nil {
		if rejected(err) {
			r.observe(ResultRejected, time.Since(start))
			return nil, nil
		}
		r.observe(ResultError, time.Since(start))
		return nil, fmt.Errorf("resolve session: %w", err)
	}

	r.observe(ResultPresent, time.Since(start))
	return &Session{
		UserID:      user.ID,
		Email:       user.Email,
		Role:        user.Role,
		AuthMethod:  method,
		AccessToken: token,
	}, nil
}

// rejected reports whether the token was checked and refused, as opposed to
// the check failing
func rejected(err error) bool {
	return errors.Is(err, ErrInvalidToken) ||
		gateway.IsStatus(err, http.StatusUnauthorized) ||
		gateway.IsStatus(err, http.StatusForbidden)
}

// GetSession returns the session memoized by an earlier Resolve call
func GetSession(c *gin.Context) (*Session, bool) {
	v, ok := c.Get(sessionContextKey)
	if !ok {
		return nil, false
	}
	res, ok := v.(resolution)
	if !ok || res.session == nil {
		return nil, false
	}
	return res.session, true
}
