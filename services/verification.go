package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lborres/vouch/core"
	"github.com/lborres/vouch/identity"
)

// IdentityProvider is the provider-facing half of verification.
// *identity.Client implements it.
type IdentityProvider interface {
	InitiateSession(ctx context.Context, redirectURL string) (*core.VerificationSession, error)
	FetchResult(ctx context.Context, sessionID string) (*core.VerificationResult, error)
}

// VerificationService runs the DigiLocker flow on behalf of a principal and
// hands verified identities to the profile collaborator.
type VerificationService struct {
	provider IdentityProvider
	sessions core.VerificationSessionStorage
	applier  core.IdentityApplier // optional
	poller   *identity.Poller
	logger   *slog.Logger
	now      func() time.Time

	defaultRedirectURL string
}

// Ensure VerificationService implements IdentityVerifier
var _ core.IdentityVerifier = (*VerificationService)(nil)

func NewVerificationService(provider IdentityProvider, sessions core.VerificationSessionStorage, applier core.IdentityApplier, poll core.PollConfig, logger *slog.Logger) *VerificationService {
	logger = core.Logger(logger)
	return &VerificationService{
		provider: provider,
		sessions: sessions,
		applier:  applier,
		poller:   identity.NewPoller(provider, poll, logger),
		logger:   logger.With("component", "services.verification"),
		now:      time.Now,
	}
}

// SetDefaultRedirectURL sets the redirect used when Start is called without one.
func (s *VerificationService) SetDefaultRedirectURL(u string) {
	s.defaultRedirectURL = u
}

// Start opens a provider session and records which principal owns it.
func (s *VerificationService) Start(ctx context.Context, principalID, redirectURL string) (*core.VerificationSession, error) {
	if principalID == "" {
		return nil, core.ErrPrincipalNotFound
	}
	if strings.TrimSpace(redirectURL) == "" {
		redirectURL = s.defaultRedirectURL
	}

	session, err := s.provider.InitiateSession(ctx, redirectURL)
	if err != nil {
		return nil, err
	}
	session.PrincipalID = principalID

	if err := s.sessions.SaveVerificationSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save verification session: %w", err)
	}

	s.logger.Info("verification started", "principal_id", principalID, "session_id", session.SessionID)
	return session, nil
}

// Check fetches the current state of a session once. Pending comes back as a
// result, not an error.
func (s *VerificationService) Check(ctx context.Context, principalID, sessionID string) (*core.VerificationResult, error) {
	if err := s.authorize(ctx, principalID, sessionID); err != nil {
		return nil, err
	}

	result, err := s.provider.FetchResult(ctx, sessionID)
	if err != nil {
		s.logger.Warn("verification check failed", "session_id", sessionID, "code", core.ErrorCode(err))
		return nil, err
	}
	if result.Pending() {
		return result, nil
	}

	if err := s.apply(ctx, principalID, sessionID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// Poll checks a session repeatedly until it resolves, using the configured
// backoff policy.
func (s *VerificationService) Poll(ctx context.Context, principalID, sessionID string) (*core.VerificationResult, error) {
	if err := s.authorize(ctx, principalID, sessionID); err != nil {
		return nil, err
	}

	result, err := s.poller.Poll(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if err := s.apply(ctx, principalID, sessionID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// authorize hides sessions owned by someone else behind the same error as
// unknown ones.
func (s *VerificationService) authorize(ctx context.Context, principalID, sessionID string) error {
	if principalID == "" || sessionID == "" {
		return core.ErrVerificationNotFound
	}
	session, err := s.sessions.GetVerificationSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, core.ErrVerificationNotFound) {
			return core.ErrVerificationNotFound
		}
		return fmt.Errorf("failed to load verification session: %w", err)
	}
	if session.PrincipalID != principalID {
		return core.ErrVerificationNotFound
	}
	return nil
}

func (s *VerificationService) apply(ctx context.Context, principalID, sessionID string, result *core.VerificationResult) error {
	if result == nil || result.Record == nil {
		return fmt.Errorf("%w: verified result without record", core.ErrFetchFailed)
	}

	s.logger.Info("identity verified",
		"principal_id", principalID,
		"session_id", sessionID,
		"source", result.Source,
	)

	if s.applier == nil {
		return nil
	}
	err := s.applier.ApplyVerifiedIdentity(ctx, core.VerifiedIdentity{
		PrincipalID: principalID,
		SessionID:   sessionID,
		Method:      core.VerificationMethodDigiLocker,
		Record:      *result.Record,
		VerifiedAt:  s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to apply verified identity: %w", err)
	}
	return nil
}
