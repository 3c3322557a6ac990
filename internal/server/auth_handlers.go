package server

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/islandvows/islandvows/internal/apperror"
	"github.com/islandvows/islandvows/internal/auth"
	"github.com/islandvows/islandvows/internal/gate"
	"github.com/islandvows/islandvows/internal/gateway"
)

var errNoRefreshToken = apperror.New(http.StatusUnauthorized, "no_refresh_token", "No refresh token")

// LoginRequest represents a login form or JSON body
type LoginRequest struct {
	Email          string `form:"email" json:"email" binding:"required,email"`
	Password       string `form:"password" json:"password" binding:"required"`
	RedirectedFrom string `form:"redirectedFrom" json:"redirectedFrom"`
}

// LoginResponse represents a JSON login response
type LoginResponse struct {
	User     *auth.Session `json:"user"`
	Redirect string        `json:"redirect"`
}

// ResetPasswordRequest asks for a password reset email
type ResetPasswordRequest struct {
	Email string `form:"email" json:"email" binding:"required,email"`
}

// RefreshRequest optionally carries the refresh token in the body
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type loginView struct {
	Email          string
	RedirectedFrom string
	Error          string
	Notice         string
}

type resetView struct {
	Email string
	Error string
	Sent  bool
}

// wantsJSON reports whether the caller is a script rather than a browser form
func wantsJSON(c *gin.Context) bool {
	return c.ContentType() == gin.MIMEJSON || strings.Contains(c.GetHeader("Accept"), gin.MIMEJSON)
}

// redirectTarget returns where to send a user after sign in. Only plain
// local paths are honored; anything a browser could read as another origin
// falls back to the admin home.
func (s *Server) redirectTarget(redirectedFrom string) string {
	if !isLocalPath(redirectedFrom) {
		return s.policy.AdminHome
	}
	return redirectedFrom
}

func isLocalPath(v string) bool {
	if hasUnsafeRune(v) || !strings.HasPrefix(v, "/") || strings.HasPrefix(v, "//") {
		return false
	}
	u, err := url.Parse(v)
	if err != nil || u.Scheme != "" || u.Host != "" || u.Opaque != "" || u.User != nil {
		return false
	}
	// percent-decoding must not smuggle the same characters back in
	return !hasUnsafeRune(u.Path) && !strings.HasPrefix(u.Path, "//")
}

// hasUnsafeRune reports control characters and backslashes, which browsers
// strip or read as a slash before resolving a Location header.
func hasUnsafeRune(v string) bool {
	return strings.IndexFunc(v, func(r rune) bool {
		return r < 0x20 || r == 0x7f || r == '\\'
	}) >= 0
}

// @Router /login [get]
func (s *Server) loginPage(c *gin.Context) {
	view := loginView{RedirectedFrom: c.Query(gate.RedirectParam)}
	if c.Query("signed_out") != "" {
		view.Notice = "You have been signed out."
	}
	c.HTML(http.StatusOK, "login.html", view)
}

// @Router /login [post]
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Success 303
func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		s.logger.Warn().Err(err).Msg("Invalid login request")
		if wantsJSON(c) {
			c.JSON(http.StatusBadRequest, gin.H{"error": apperror.Normalized{
				Message: "Email and password are required",
				Code:    apperror.CodeValidation,
			}})
			return
		}
		c.HTML(http.StatusBadRequest, "login.html", loginView{
			Email:          req.Email,
			RedirectedFrom: req.RedirectedFrom,
			Error:          "Email and password are required",
		})
		return
	}

	session, err := s.gateway.Auth().SignInWithPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.logger.Warn().Err(err).Str("email", req.Email).Msg("Sign in failed")
		if wantsJSON(c) {
			respondWithError(c, s.logger, err)
			return
		}
		c.HTML(apperror.Status(err), "login.html", loginView{
			Email:          req.Email,
			RedirectedFrom: req.RedirectedFrom,
			Error:          apperror.Normalize(err).Message,
		})
		return
	}

	auth.SetSessionCookies(c, session, s.config.Server.CookieSecure)
	target := s.redirectTarget(req.RedirectedFrom)

	s.logger.Info().Str("user_id", session.User.ID).Msg("User signed in")

	if wantsJSON(c) {
		c.JSON(http.StatusOK, LoginResponse{
			User: &auth.Session{
				UserID: session.User.ID,
				Email:  session.User.Email,
				Role:   session.User.Role,
			},
			Redirect: target,
		})
		return
	}
	c.Redirect(http.StatusSeeOther, target)
}

// @Router /api/auth/logout [post]
// @Success 200 {object} map[string]interface{}
func (s *Server) logout(c *gin.Context) {
	if token, _ := auth.Credentials(c.Request); token != "" {
		// cookies are cleared even when the auth service cannot be reached
		if err := s.gateway.Auth().SignOut(c.Request.Context(), token); err != nil {
			s.logger.Warn().Err(err).Msg("Sign out failed")
		}
	}
	auth.ClearSessionCookies(c, s.config.Server.CookieSecure)

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	c.Redirect(http.StatusSeeOther, s.policy.LoginPath+"?signed_out=1")
}

// @Router /api/auth/refresh [post]
// @Success 200 {object} LoginResponse
func (s *Server) refresh(c *gin.Context) {
	token := auth.RefreshToken(c.Request)
	if token == "" {
		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			token = req.RefreshToken
		}
	}
	if token == "" {
		respondWithError(c, s.logger, errNoRefreshToken)
		return
	}

	session, err := s.gateway.Auth().RefreshSession(c.Request.Context(), token)
	if err != nil {
		if gateway.IsStatus(err, http.StatusBadRequest) || gateway.IsStatus(err, http.StatusUnauthorized) {
			auth.ClearSessionCookies(c, s.config.Server.CookieSecure)
		}
		respondWithError(c, s.logger, err)
		return
	}

	auth.SetSessionCookies(c, session, s.config.Server.CookieSecure)
	c.JSON(http.StatusOK, LoginResponse{
		User: &auth.Session{
			UserID: session.User.ID,
			Email:  session.User.Email,
			Role:   session.User.Role,
		},
		Redirect: s.policy.AdminHome,
	})
}

// @Router /reset-password [get]
func (s *Server) resetPasswordPage(c *gin.Context) {
	c.HTML(http.StatusOK, "reset_password.html", resetView{})
}

// @Router /reset-password [post]
// @Param request body ResetPasswordRequest true "Account email"
func (s *Server) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if err := c.ShouldBind(&req); err != nil {
		if wantsJSON(c) {
			respondWithError(c, s.logger, &apperror.ValidationError{Fields: map[string]string{"email": "must be a valid email address"}})
			return
		}
		c.HTML(http.StatusBadRequest, "reset_password.html", resetView{
			Email: req.Email,
			Error: "Enter a valid email address",
		})
		return
	}

	err := s.gateway.Auth().ResetPasswordForEmail(c.Request.Context(), req.Email, s.config.Server.SiteURL+s.policy.LoginPath)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Password reset request failed")
		if wantsJSON(c) {
			respondWithError(c, s.logger, err)
			return
		}
		c.HTML(apperror.Status(err), "reset_password.html", resetView{
			Email: req.Email,
			Error: apperror.Normalize(err).Message,
		})
		return
	}

	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}
	c.HTML(http.StatusOK, "reset_password.html", resetView{Sent: true})
}
