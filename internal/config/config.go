package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var (
	ErrMissingSupabaseURL     = errors.New("missing SUPABASE_URL (or NEXT_PUBLIC_SUPABASE_URL)")
	ErrMissingSupabaseAnonKey = errors.New("missing SUPABASE_ANON_KEY (or NEXT_PUBLIC_SUPABASE_ANON_KEY)")
	ErrMissingServiceRoleKey  = errors.New("missing SUPABASE_SERVICE_ROLE_KEY")
)

// Config holds all configuration for the application
type Config struct {
	// Backend (hosted database, auth and storage) configuration
	Supabase SupabaseConfig

	// HTTP server configuration
	Server ServerConfig

	// Session gate configuration
	Session SessionConfig

	// Logging Configuration
	Logging LoggingConfig
}

// SupabaseConfig holds the backend service settings
type SupabaseConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string        // Only used by the create-admin command
	JWTSecret      string        // Optional; enables local access token verification
	Timeout        time.Duration // Per-request timeout for gateway calls
	StorageBucket  string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port         string
	CORSOrigins  []string
	CookieSecure bool
	PublicDir    string // Served under /public when set
	// SiteURL is the public origin used in links sent by email
	SiteURL string
}

// SessionConfig holds session resolution settings
type SessionConfig struct {
	CheckTimeout time.Duration
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level  string
	Format string // json, console
}

// Load loads configuration from environment variables.
// It fails when the backend URL or public API key is missing.
func Load() (*Config, error) {
	// Load .env files (fails silently if files don't exist)
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	supabaseURL := firstEnv("SUPABASE_URL", "NEXT_PUBLIC_SUPABASE_URL")
	if supabaseURL == "" {
		return nil, ErrMissingSupabaseURL
	}

	anonKey := firstEnv("SUPABASE_ANON_KEY", "NEXT_PUBLIC_SUPABASE_ANON_KEY")
	if anonKey == "" {
		return nil, ErrMissingSupabaseAnonKey
	}

	gatewayTimeout, err := durationEnv("GATEWAY_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	// Session checks sit in front of every protected request, keep them short
	checkTimeout, err := durationEnv("SESSION_CHECK_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	cookieSecure := false
	if v := os.Getenv("COOKIE_SECURE"); v != "" {
		cookieSecure, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid COOKIE_SECURE: %w", err)
		}
	}

	port := envOr("PORT", "8080")
	siteURL, err := siteURLEnv("SITE_URL", "http://localhost:"+port)
	if err != nil {
		return nil, err
	}

	return &Config{
		Supabase: SupabaseConfig{
			URL:            supabaseURL,
			AnonKey:        anonKey,
			ServiceRoleKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
			JWTSecret:      os.Getenv("SUPABASE_JWT_SECRET"),
			Timeout:        gatewayTimeout,
			StorageBucket:  envOr("STORAGE_BUCKET", "photos"),
		},
		Server: ServerConfig{
			Port:         port,
			CORSOrigins:  splitList(envOr("CORS_ORIGINS", "http://localhost:3000")),
			CookieSecure: cookieSecure,
			PublicDir:    os.Getenv("PUBLIC_DIR"),
			SiteURL:      siteURL,
		},
		Session: SessionConfig{
			CheckTimeout: checkTimeout,
		},
		Logging: LoggingConfig{
			Level:  envOr("LOG_LEVEL", "info"),
			Format: envOr("LOG_FORMAT", "json"),
		},
	}, nil
}

// RequireServiceRoleKey returns an error unless the privileged key is configured
func (c *Config) RequireServiceRoleKey() error {
	if c.Supabase.ServiceRoleKey == "" {
		return ErrMissingServiceRoleKey
	}
	return nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func durationEnv(k string, d time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return d, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k, err)
	}
	if parsed <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", k)
	}
	return parsed, nil
}

// siteURLEnv reads an absolute http(s) origin, without a trailing slash
func siteURLEnv(k, d string) (string, error) {
	v := strings.TrimRight(strings.TrimSpace(envOr(k, d)), "/")
	u, err := url.Parse(v)
	if err != nil {
		return "", fmt.Errorf("invalid %s: %w", k, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid %s %q: want http(s)://host", k, v)
	}
	return v, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
