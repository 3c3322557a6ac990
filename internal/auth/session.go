package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/islandvows/islandvows/internal/gateway"
)

const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"

	bearerPrefix        = "Bearer "
	refreshCookieMaxAge = 30 * 24 * time.Hour
)

// Session represents the authenticated actor behind a request
type Session struct {
	UserID      string `json:"user_id"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	AuthMethod  string `json:"auth_method"` // "cookie", "bearer"
	AccessToken string `json:"-"`
}

// Credentials extracts the access token from the request, cookie first
func Credentials(r *http.Request) (token, method string) {
	if c, err := r.Cookie(AccessTokenCookie); err == nil && c.Value != "" {
		return c.Value, "cookie"
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, bearerPrefix) {
		if t := strings.TrimSpace(strings.TrimPrefix(h, bearerPrefix)); t != "" {
			return t, "bearer"
		}
	}
	return "", ""
}

// RefreshToken returns the refresh token cookie, if any
func RefreshToken(r *http.Request) string {
	if c, err := r.Cookie(RefreshTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// SetSessionCookies stores a freshly issued session on the response
func SetSessionCookies(c *gin.Context, s *gateway.Session, secure bool) {
	maxAge := int(time.Until(s.Expiry()).Seconds())
	if maxAge <= 0 {
		maxAge = s.ExpiresIn
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, s.AccessToken, maxAge, "/", "", secure, true)
	if s.RefreshToken != "" {
		c.SetCookie(RefreshTokenCookie, s.RefreshToken, int(refreshCookieMaxAge.Seconds()), "/", "", secure, true)
	}
}

// ClearSessionCookies expires both session cookies
func ClearSessionCookies(c *gin.Context, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(AccessTokenCookie, "", -1, "/", "", secure, true)
	c.SetCookie(RefreshTokenCookie, "", -1, "/", "", secure, true)
}
