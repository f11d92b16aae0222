package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/lborres/vouch/core"
)

const (
	opInitiateSession  = "initiate session"
	opFetchResult      = "fetch result"
	opDownloadDocument = "download document"

	sessionEntity  = "in.co.sandbox.kyc.digilocker.session.request"
	sessionFlow    = "signin"
	docTypeAadhaar = "aadhaar"

	pathSessionInit = "/kyc/digilocker/sessions/init"
	pathDocuments   = "/kyc/digilocker/sessions/{session_id}/documents/aadhaar"
)

// Client drives the DigiLocker session protocol: authenticate, initiate a
// session, then fetch its result. Each phase fails independently.
type Client struct {
	cfg    core.ProviderConfig
	http   *resty.Client
	files  *resty.Client
	tokens *TokenCache
	logger *slog.Logger
	now    func() time.Time
}

// NewClient builds a provider client. A nil tokens gets a TokenCache built
// from the same config.
func NewClient(cfg core.ProviderConfig, tokens *TokenCache, logger *slog.Logger) *Client {
	cfg = cfg.WithDefaults()
	if tokens == nil {
		tokens = NewTokenCache(cfg, logger)
	}
	return &Client{
		cfg:    cfg,
		http:   newRestyClient(cfg),
		files:  resty.New(),
		tokens: tokens,
		logger: core.Logger(logger).With("component", "identity.client"),
		now:    time.Now,
	}
}

// InitiateSession opens a DigiLocker session whose authorization flow returns
// the user to redirectURL.
func (c *Client) InitiateSession(ctx context.Context, redirectURL string) (*core.VerificationSession, error) {
	if err := validateRedirectURL(redirectURL); err != nil {
		return nil, err
	}

	token, err := c.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	resp, err := c.authorized(ctx, token).
		SetBody(map[string]any{
			"@entity":      sessionEntity,
			"flow":         sessionFlow,
			"doc_types":    []string{docTypeAadhaar},
			"redirect_url": redirectURL,
		}).
		Post(pathSessionInit)
	if err != nil {
		return nil, providerFailure(opInitiateSession, core.ErrSessionInitFailed, err)
	}

	if !resp.IsSuccess() {
		c.rejected(token, resp.StatusCode())
		c.logger.Warn("session init rejected", "status", resp.StatusCode())
		return nil, &core.ProviderError{
			Op:         opInitiateSession,
			Err:        core.ErrSessionInitFailed,
			StatusCode: resp.StatusCode(),
			Message:    providerMessage(resp.Body()),
		}
	}

	var env struct {
		Data struct {
			SessionID        string `json:"session_id"`
			AuthorizationURL string `json:"authorization_url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp.Body(), &env); err != nil || env.Data.SessionID == "" || env.Data.AuthorizationURL == "" {
		return nil, &core.ProviderError{
			Op:         opInitiateSession,
			Err:        core.ErrSessionInitFailed,
			StatusCode: resp.StatusCode(),
			Message:    "unexpected response envelope",
		}
	}

	c.logger.Info("verification session opened", "session_id", env.Data.SessionID)
	return &core.VerificationSession{
		SessionID:        env.Data.SessionID,
		AuthorizationURL: env.Data.AuthorizationURL,
		RedirectURL:      redirectURL,
		CreatedAt:        c.now(),
	}, nil
}

// FetchResult checks a session once. A session the user has not completed
// yet yields a StatusPending result, not an error.
func (c *Client) FetchResult(ctx context.Context, sessionID string) (*core.VerificationResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, core.ErrVerificationNotFound
	}

	token, err := c.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	resp, err := c.authorized(reqCtx, token).
		SetPathParam("session_id", sessionID).
		Get(pathDocuments)
	if err != nil {
		return nil, providerFailure(opFetchResult, core.ErrFetchFailed, err)
	}

	if !resp.IsSuccess() {
		c.rejected(token, resp.StatusCode())
		c.logger.Warn("result fetch rejected", "status", resp.StatusCode(), "session_id", sessionID)
		return nil, &core.ProviderError{
			Op:         opFetchResult,
			Err:        core.ErrFetchFailed,
			StatusCode: resp.StatusCode(),
			Message:    providerMessage(resp.Body()),
		}
	}

	fr, err := decodeFetchResponse(resp.Body())
	if err != nil {
		return nil, &core.ProviderError{
			Op:         opFetchResult,
			Err:        core.ErrFetchFailed,
			StatusCode: resp.StatusCode(),
			Message:    "unexpected response envelope",
		}
	}

	switch fr.kind {
	case responseInline:
		record, err := fr.inline.record()
		if err != nil {
			return nil, err
		}
		return &core.VerificationResult{Status: core.StatusVerified, Source: core.SourceInline, Record: &record}, nil

	case responseFileList:
		raw, err := c.download(ctx, fr.fileURL)
		if err != nil {
			return nil, err
		}
		record, err := ParseAadhaarXML(raw)
		if err != nil {
			c.logger.Warn("identity document rejected", "session_id", sessionID, "size", len(raw))
			return nil, err
		}
		return &core.VerificationResult{Status: core.StatusVerified, Source: core.SourceDocument, Record: &record}, nil

	default:
		return &core.VerificationResult{Status: core.StatusPending}, nil
	}
}

// download fetches the document file. The URL is pre-signed by the provider,
// so no credentials are attached.
func (c *Client) download(ctx context.Context, fileURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.DocumentTimeout)
	defer cancel()

	resp, err := c.files.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		Get(fileURL)
	if err != nil {
		return nil, providerFailure(opDownloadDocument, core.ErrFetchFailed, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		return nil, &core.ProviderError{
			Op:         opDownloadDocument,
			Err:        core.ErrFetchFailed,
			StatusCode: resp.StatusCode(),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(body, c.cfg.MaxDocumentSize+1))
	if err != nil {
		return nil, providerFailure(opDownloadDocument, core.ErrFetchFailed, err)
	}
	if int64(len(raw)) > c.cfg.MaxDocumentSize {
		return nil, &core.ProviderError{
			Op:      opDownloadDocument,
			Err:     core.ErrFetchFailed,
			Message: fmt.Sprintf("document exceeds %d bytes", c.cfg.MaxDocumentSize),
		}
	}
	return raw, nil
}

func (c *Client) authorized(ctx context.Context, token string) *resty.Request {
	return c.http.R().
		SetContext(ctx).
		SetHeader("Authorization", token).
		SetHeader("x-api-key", c.cfg.APIKey).
		SetHeader("x-api-version", c.cfg.APIVersion)
}

// rejected drops the token the provider refused so the next call
// re-authenticates.
func (c *Client) rejected(token string, status int) {
	if rejectsToken(status) {
		c.tokens.Invalidate(token)
	}
}

func validateRedirectURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return core.ErrRedirectURLRequired
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return core.ErrInvalidRedirectURL
	}
	return nil
}
