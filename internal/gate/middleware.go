package gate

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/islandvows/islandvows/internal/auth"
)

// SessionResolver is satisfied by *auth.Resolver
type SessionResolver interface {
	Resolve(c *gin.Context) (*auth.Session, error)
}

// Options tune the middleware. Observe may be nil.
type Options struct {
	Observe func(outcome string)
}

// Middleware runs the gate on every request not excluded by the policy.
// Session resolution failures count as "no session": protected paths are
// redirected to login, never served.
func Middleware(p Policy, sessions SessionResolver, log zerolog.Logger, opts Options) gin.HandlerFunc {
	observe := opts.Observe
	if observe == nil {
		observe = func(string) {}
	}

	return func(c *gin.Context) {
		reqPath := CleanPath(c.Request.URL.Path)

		if p.Excludes(reqPath) {
			c.Next()
			return
		}

		hasSession := false
		if p.NeedsSession(reqPath) {
			session, err := sessions.Resolve(c)
			if err != nil {
				log.Warn().Err(err).Str("path", reqPath).Msg("Session check failed, treating request as signed out")
			}
			hasSession = err == nil && session != nil
		}

		decision := p.Decide(c.Request.URL.Path, hasSession)
		observe(decision.Outcome.String())

		if decision.Outcome == Allow {
			c.Next()
			return
		}

		log.Debug().
			Str("path", reqPath).
			Str("outcome", decision.Outcome.String()).
			Str("location", decision.Location).
			Msg("Route gate redirect")

		c.Redirect(http.StatusTemporaryRedirect, decision.Location)
		c.Abort()
	}
}
