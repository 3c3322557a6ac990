// Package server is the HTTP front of the site: public read endpoints, the
// login flow and the admin area behind the route gate.
package server

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/islandvows/islandvows/internal/auth"
	"github.com/islandvows/islandvows/internal/config"
	"github.com/islandvows/islandvows/internal/gate"
	"github.com/islandvows/islandvows/internal/gateway"
	"github.com/islandvows/islandvows/internal/metrics"
	"github.com/islandvows/islandvows/internal/resources"
)

//go:embed templates/*.html
var templateFS embed.FS

// Server represents the HTTP server
type Server struct {
	router    *gin.Engine
	config    *config.Config
	logger    zerolog.Logger
	gateway   *gateway.Client
	sessions  *auth.Resolver
	policy    gate.Policy
	resources *resources.Registry
	metrics   *metrics.Metrics
	version   string
}

// New creates a new server instance
func New(cfg *config.Config, zlog zerolog.Logger, version string) (*Server, error) {
	m := metrics.New()

	client, err := gateway.New(gateway.Options{
		URL:     cfg.Supabase.URL,
		APIKey:  cfg.Supabase.AnonKey,
		Timeout: cfg.Supabase.Timeout,
		Observe: m.GatewayRequest,
	})
	if err != nil {
		return nil, err
	}

	// Verify access tokens locally when the signing secret is known,
	// otherwise ask the auth service on every protected request
	var verifier auth.Verifier = client.Auth()
	if cfg.Supabase.JWTSecret != "" {
		jwtVerifier, err := auth.NewJWTVerifier(cfg.Supabase.JWTSecret)
		if err != nil {
			return nil, err
		}
		verifier = jwtVerifier
		zlog.Debug().Msg("Verifying access tokens locally")
	}

	registry, err := resources.Default()
	if err != nil {
		return nil, fmt.Errorf("failed to load resource schema: %w", err)
	}

	server := &Server{
		config:    cfg,
		logger:    zlog,
		gateway:   client,
		sessions:  auth.NewResolver(verifier, cfg.Session.CheckTimeout, m.SessionCheck),
		policy:    gate.DefaultPolicy(),
		resources: registry,
		metrics:   m,
		version:   version,
	}

	if err := server.setupRouter(); err != nil {
		return nil, err
	}

	return server, nil
}

// setupRouter configures the Gin router with routes and middleware
func (s *Server) setupRouter() error {
	s.router = gin.New()

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	s.router.SetHTMLTemplate(tmpl)

	// Add middleware
	s.router.Use(gin.Recovery())
	s.router.Use(requestIDMiddleware())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(gate.Middleware(s.policy, s.sessions, s.logger, gate.Options{
		Observe: s.metrics.GateDecision,
	}))

	s.router.NoRoute(func(c *gin.Context) {
		respondWithError(c, s.logger, errNotFound)
	})

	// Health check (no auth required)
	s.router.GET("/health", s.healthCheck)

	if dir := s.config.Server.PublicDir; dir != "" {
		s.router.Static("/public", dir)
	}

	// Login flow
	s.router.GET("/login", s.loginPage)
	s.router.POST("/login", s.login)
	s.router.GET("/reset-password", s.resetPasswordPage)
	s.router.POST("/reset-password", s.resetPassword)

	// Public API, callable from the site front end
	api := s.router.Group("/api")
	api.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.Server.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	{
		api.POST("/auth/logout", s.logout)
		api.POST("/auth/refresh", s.refresh)

		api.GET("/settings", s.getPublicSettings)
		api.GET("/blog", s.listPublishedPosts)
		api.GET("/blog/:slug", s.getPublishedPost)
		api.GET("/pages/:slug", s.getPublicPage)
		api.GET("/weddings/:id/galleries", s.listPublicGalleries)
	}

	// Admin area; the route gate has already required a session
	admin := s.router.Group("/admin")
	{
		admin.GET("", s.dashboard)
		admin.GET("/metrics", gin.WrapH(s.metrics.Handler()))
		admin.POST("/uploads/photos", s.uploadPhoto)

		for _, res := range s.resources.All() {
			s.mountResource(admin, res)
		}
	}

	return nil
}

// mountResource registers the CRUD routes of one resource
func (s *Server) mountResource(admin *gin.RouterGroup, res *resources.Resource) {
	group := admin.Group("/" + res.Name)

	if res.Singleton {
		group.GET("", s.getSingleton(res))
		group.PUT("", s.putSingleton(res))
		return
	}

	group.GET("", s.listRows(res))
	group.POST("", s.createRow(res))
	group.GET("/:id", s.getRow(res))
	group.PUT("/:id", s.updateRow(res))
	if res.Table == "photos" {
		group.DELETE("/:id", s.deletePhoto(res))
	} else {
		group.DELETE("/:id", s.deleteRow(res))
	}

	for _, child := range s.resources.Children(res.Name) {
		group.GET("/:id/"+child.Name, s.listRows(child))
		group.POST("/:id/"+child.Name, s.createRow(child))
	}
}

// @Router /health [get]
// @Success 200 {object} map[string]interface{}
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "online",
		"timestamp": time.Now().UTC(),
		"service":   "islandvows",
		"version":   s.version,
	})
}

// ServeHTTP lets the server be driven directly, as in tests
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	port := ":" + s.config.Server.Port

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	srv := &http.Server{
		Addr:              port,
		Handler:           s.router,
		ReadTimeout:       60 * time.Second, // photo uploads
		WriteTimeout:      60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info().Str("port", port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	// Wait for shutdown signal
	select {
	case err := <-errChan:
		s.logger.Error().Err(err).Msg("HTTP server error")
		return err
	case <-sigChan:
	}
	s.logger.Info().Msg("Received shutdown signal, shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("Error shutting down HTTP server")
		return err
	}

	s.logger.Info().Msg("Server shutdown complete")
	return nil
}
