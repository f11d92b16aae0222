package identity

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/singleflight"

	"github.com/lborres/vouch/core"
	"github.com/lborres/vouch/pkg/crypto"
)

const (
	opAuthenticate = "authenticate"
	refreshKey     = "token"
)

// TokenCache owns the provider bearer token. It holds at most one token,
// refreshes it lazily on expiry and never writes it anywhere but memory.
//
// Concurrent refreshes collapse into a single authentication call. Inside the
// refresh-ahead window the current token keeps being served while one
// background refresh runs.
type TokenCache struct {
	cfg    core.ProviderConfig
	http   *resty.Client
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	token     string
	expiresAt time.Time

	group singleflight.Group
}

func NewTokenCache(cfg core.ProviderConfig, logger *slog.Logger) *TokenCache {
	cfg = cfg.WithDefaults()
	return &TokenCache{
		cfg:    cfg,
		http:   newRestyClient(cfg),
		logger: core.Logger(logger).With("component", "identity.token_cache"),
		now:    time.Now,
	}
}

// Get returns a usable token, authenticating against the provider when none
// is held or the held one has expired. Failures are *core.ProviderError
// values matching core.ErrAuthFailed; there is no automatic retry.
func (c *TokenCache) Get(ctx context.Context) (string, error) {
	c.mu.RLock()
	token, expiresAt := c.token, c.expiresAt
	c.mu.RUnlock()

	now := c.now()
	if token != "" && now.Before(expiresAt) {
		if c.cfg.RefreshAhead > 0 && !now.Before(expiresAt.Add(-c.cfg.RefreshAhead)) {
			// result channel is buffered, nobody has to read it
			c.group.DoChan(refreshKey, c.refresh)
		}
		return token, nil
	}

	select {
	case res := <-c.group.DoChan(refreshKey, c.refresh):
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", providerFailure(opAuthenticate, core.ErrAuthFailed, ctx.Err())
	}
}

// Invalidate drops token if it is still the one being held. Callers use it
// after the provider rejected the token with 401/403.
func (c *TokenCache) Invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != "" && c.token == token {
		c.token = ""
		c.expiresAt = time.Time{}
		c.logger.Info("provider token invalidated", "token_fp", fingerprint(token))
	}
}

// fresh reports the held token when it is outside the refresh window.
func (c *TokenCache) fresh() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token == "" {
		return "", false
	}
	if c.now().Before(c.expiresAt.Add(-c.cfg.RefreshAhead)) {
		return c.token, true
	}
	return "", false
}

// refresh runs detached from any caller's context so one caller giving up
// does not fail everyone sharing the flight.
func (c *TokenCache) refresh() (any, error) {
	if token, ok := c.fresh(); ok {
		return token, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.AuthTimeout)
	defer cancel()

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("x-api-key", c.cfg.APIKey).
		SetHeader("x-api-secret", c.cfg.APISecret).
		SetHeader("x-api-version", c.cfg.APIVersion).
		SetHeader("Content-Type", "application/json").
		Post("/authenticate")
	if err != nil {
		pe := providerFailure(opAuthenticate, core.ErrAuthFailed, err)
		c.logger.Warn("provider authentication failed", "error", pe)
		return "", pe
	}

	if !resp.IsSuccess() {
		c.logger.Warn("provider rejected authentication", "status", resp.StatusCode())
		return "", &core.ProviderError{
			Op:         opAuthenticate,
			Err:        core.ErrAuthFailed,
			StatusCode: resp.StatusCode(),
			Message:    providerMessage(resp.Body()),
		}
	}

	var env struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &env); err != nil || env.Data.AccessToken == "" {
		return "", &core.ProviderError{
			Op:         opAuthenticate,
			Err:        core.ErrAuthFailed,
			StatusCode: resp.StatusCode(),
			Message:    "response carried no access token",
		}
	}

	c.mu.Lock()
	c.token = env.Data.AccessToken
	c.expiresAt = c.now().Add(c.cfg.TokenTTL)
	c.mu.Unlock()

	c.logger.Debug("provider token refreshed", "token_fp", fingerprint(env.Data.AccessToken), "ttl", c.cfg.TokenTTL)
	return env.Data.AccessToken, nil
}

// fingerprint tags a token in logs without revealing it.
func fingerprint(token string) string {
	fp, err := crypto.Fingerprint(token)
	if err != nil {
		return ""
	}
	return fp
}
