package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// LodeStar upstream
	ClientName string
	BaseURL    string
	Username   string
	Password   string

	// Web Server
	WebBind        string
	AllowedOrigins []string

	// Session tokens
	JWTSecret string

	LogLevel string
}

func Load() (*Config, error) {
	// Load environment variables from .env if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		ClientName:     getEnvDefault("LODESTAR_CLIENT_NAME", "SettleWise"),
		BaseURL:        strings.TrimRight(getEnvDefault("LODESTAR_BASE_URL", "https://www.lodestarss.com/Live"), "/"),
		Username:       os.Getenv("LODESTAR_USERNAME"),
		Password:       os.Getenv("LODESTAR_PASSWORD"),
		WebBind:        getEnvDefault("WEB_BIND", "0.0.0.0:"+getEnvDefault("PORT", "3000")),
		AllowedOrigins: splitList(getEnvDefault("CORS_ALLOWED_ORIGINS", "*")),
		JWTSecret:      getEnvDefault("JWT_SECRET", "dev-only-change-me"),
		LogLevel:       getEnvDefault("LOG_LEVEL", "info"),
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("LODESTAR_BASE_URL is not a valid absolute URL: %q", cfg.BaseURL)
	}
	if strings.ContainsAny(cfg.ClientName, "/?#") {
		return nil, fmt.Errorf("LODESTAR_CLIENT_NAME must not contain path separators")
	}

	return cfg, nil
}

// CredentialsConfigured reports whether both upstream credentials are set.
// Missing credentials are not a startup error; the login endpoint rejects them.
func (c *Config) CredentialsConfigured() bool {
	return c.Username != "" && c.Password != ""
}

// TenantURL is the upstream root for the configured client.
func (c *Config) TenantURL() string {
	return c.BaseURL + "/" + url.PathEscape(c.ClientName)
}

func getEnvDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
