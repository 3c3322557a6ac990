package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/islandvows/islandvows/internal/apperror"
	"github.com/islandvows/islandvows/internal/auth"
	"github.com/islandvows/islandvows/internal/gateway"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

var (
	errNotFound     = apperror.New(http.StatusNotFound, "not_found", "Not found")
	errUnauthorized = apperror.New(http.StatusUnauthorized, "unauthorized", "Unauthorized")
)

// requestIDMiddleware tags each request with an id, reusing the caller's
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// loggingMiddleware creates a custom logging middleware using zerolog
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		duration := time.Since(start)

		s.logger.Info().
			Str("request_id", c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}

// respondWithError answers with the normalized form of err
func respondWithError(c *gin.Context, log zerolog.Logger, err error) {
	status := apperror.Status(err)
	normalized := apperror.Normalize(err)

	event := log.Warn()
	if status >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.Err(err).
		Str("request_id", c.GetString(requestIDKey)).
		Int("status", status).
		Msg(normalized.Message)

	c.JSON(status, gin.H{"error": normalized})
	c.Abort()
}

// db returns the backend client acting as the signed-in user, or as the
// anonymous site visitor when there is no session
func (s *Server) db(c *gin.Context) *gateway.Client {
	if session, ok := auth.GetSession(c); ok {
		return s.gateway.WithAccessToken(session.AccessToken)
	}
	return s.gateway
}

// requireSession fetches the session the gate resolved, answering 401 when
// there is none
func (s *Server) requireSession(c *gin.Context) (*auth.Session, bool) {
	session, ok := auth.GetSession(c)
	if !ok {
		respondWithError(c, s.logger, errUnauthorized)
		return nil, false
	}
	return session, true
}
