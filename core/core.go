package core

import (
	"log/slog"
	"time"
)

type ProviderConfig struct {
	BaseURL    string
	APIKey     string
	APISecret  string
	APIVersion string

	// Optional config
	AuthTimeout     time.Duration
	RequestTimeout  time.Duration
	DocumentTimeout time.Duration
	TokenTTL        time.Duration
	RefreshAhead    time.Duration
	MaxDocumentSize int64
}

func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		BaseURL:         "https://api.sandbox.co.in",
		APIVersion:      "1.0",
		AuthTimeout:     15 * time.Second,
		RequestTimeout:  20 * time.Second,
		DocumentTimeout: 20 * time.Second,
		TokenTTL:        24 * time.Hour,
		RefreshAhead:    5 * time.Minute,
		MaxDocumentSize: 5 << 20,
	}
}

// WithDefaults fills every zero field from DefaultProviderConfig.
func (c ProviderConfig) WithDefaults() ProviderConfig {
	d := DefaultProviderConfig()
	if c.BaseURL == "" {
		c.BaseURL = d.BaseURL
	}
	if c.APIVersion == "" {
		c.APIVersion = d.APIVersion
	}
	if c.AuthTimeout <= 0 {
		c.AuthTimeout = d.AuthTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.DocumentTimeout <= 0 {
		c.DocumentTimeout = d.DocumentTimeout
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = d.TokenTTL
	}
	if c.RefreshAhead == 0 {
		c.RefreshAhead = d.RefreshAhead
	}
	// negative disables refresh-ahead
	if c.RefreshAhead < 0 || c.RefreshAhead >= c.TokenTTL {
		c.RefreshAhead = 0
	}
	if c.MaxDocumentSize <= 0 {
		c.MaxDocumentSize = d.MaxDocumentSize
	}
	return c
}

type CredentialConfig struct {
	// Scheme is the fixed key prefix, the "vk" in vk_<prefix>.<secret>.
	Scheme       string
	PrefixLength int
	SecretBytes  int
}

func DefaultCredentialConfig() CredentialConfig {
	return CredentialConfig{
		Scheme:       "vk",
		PrefixLength: 8,
		SecretBytes:  32,
	}
}

func (c CredentialConfig) WithDefaults() CredentialConfig {
	d := DefaultCredentialConfig()
	if c.Scheme == "" {
		c.Scheme = d.Scheme
	}
	if c.PrefixLength <= 0 {
		c.PrefixLength = d.PrefixLength
	}
	if c.SecretBytes <= 0 {
		c.SecretBytes = d.SecretBytes
	}
	return c
}

type PollConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	MaxElapsed      time.Duration
}

func DefaultPollConfig() PollConfig {
	return PollConfig{
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
		MaxElapsed:      10 * time.Minute,
	}
}

// Logger falls back to slog.Default when l is nil.
func Logger(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
