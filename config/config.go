// Package config loads the example server's settings from the environment,
// optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lborres/vouch"
)

type Config struct {
	HTTPAddr string
	LogLevel slog.Level

	DatabaseURL   string
	RedisAddr     string
	RedisPassword string

	APIKeyPrefix   string
	KYCRedirectURL string

	// BootstrapPrincipalID, when set, is created as a staff principal on
	// startup and given a first API key.
	BootstrapPrincipalID string

	Provider vouch.ProviderConfig
}

// Load reads the given .env files (".env" when none are named) and then the
// process environment. Missing .env files are not an error; variables
// already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	d := vouch.DefaultProviderConfig()
	cfg := &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		APIKeyPrefix:   getEnv("API_KEY_PREFIX", vouch.DefaultCredentialConfig().Scheme),
		KYCRedirectURL: os.Getenv("KYC_REDIRECT_URL"),

		BootstrapPrincipalID: strings.TrimSpace(os.Getenv("BOOTSTRAP_PRINCIPAL_ID")),
		Provider: vouch.ProviderConfig{
			BaseURL:    getEnv("SANDBOX_BASE_URL", d.BaseURL),
			APIKey:     os.Getenv("SANDBOX_API_KEY"),
			APISecret:  os.Getenv("SANDBOX_API_SECRET"),
			APIVersion: getEnv("SANDBOX_API_VERSION", d.APIVersion),
		},
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(getEnv("LOG_LEVEL", "info"))); err != nil {
		return nil, fmt.Errorf("parse LOG_LEVEL: %w", err)
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"SANDBOX_AUTH_TIMEOUT", d.AuthTimeout, &cfg.Provider.AuthTimeout},
		{"SANDBOX_REQUEST_TIMEOUT", d.RequestTimeout, &cfg.Provider.RequestTimeout},
		{"SANDBOX_DOCUMENT_TIMEOUT", d.DocumentTimeout, &cfg.Provider.DocumentTimeout},
		{"SANDBOX_TOKEN_TTL", d.TokenTTL, &cfg.Provider.TokenTTL},
	}
	for _, dur := range durations {
		v, err := getEnvDuration(dur.key, dur.def)
		if err != nil {
			return nil, err
		}
		*dur.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if c.Provider.APIKey == "" {
		errs = append(errs, "SANDBOX_API_KEY is required")
	}
	if c.Provider.APISecret == "" {
		errs = append(errs, "SANDBOX_API_SECRET is required")
	}
	if u, err := url.Parse(c.Provider.BaseURL); err != nil || u.Host == "" {
		errs = append(errs, "SANDBOX_BASE_URL must be an absolute url")
	}
	if !isAlphanumeric(c.APIKeyPrefix) {
		errs = append(errs, "API_KEY_PREFIX must be alphanumeric")
	}
	if c.KYCRedirectURL != "" {
		if u, err := url.Parse(c.KYCRedirectURL); err != nil || u.Host == "" {
			errs = append(errs, "KYC_REDIRECT_URL must be an absolute url")
		}
	}
	if c.Provider.AuthTimeout <= 0 {
		errs = append(errs, "SANDBOX_AUTH_TIMEOUT must be > 0")
	}
	if c.Provider.RequestTimeout <= 0 {
		errs = append(errs, "SANDBOX_REQUEST_TIMEOUT must be > 0")
	}
	if c.Provider.DocumentTimeout <= 0 {
		errs = append(errs, "SANDBOX_DOCUMENT_TIMEOUT must be > 0")
	}
	if c.Provider.TokenTTL <= 0 {
		errs = append(errs, "SANDBOX_TOKEN_TTL must be > 0")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !('a' <= r && r <= 'z' || 'A' <= r && r <= 'Z' || '0' <= r && r <= '9') {
			return false
		}
	}
	return true
}
