package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lborres/vouch/core"
	"github.com/lborres/vouch/pkg/crypto"
)

const (
	MaxCredentialNameLength = 100
	maxPrefixAttempts       = 3
)

// CredentialService issues and manages API credentials. The plaintext secret
// exists only inside Issue and its return value.
type CredentialService struct {
	config  core.CredentialConfig
	storage core.CredentialStorage
	cache   core.CredentialCache // optional, nil disables caching
	hasher  crypto.SecretHasher
	nanoid  *crypto.NanoIDGenerator
	logger  *slog.Logger
	now     func() time.Time
}

// Ensure CredentialService implements CredentialManager
var _ core.CredentialManager = (*CredentialService)(nil)

func NewCredentialService(config core.CredentialConfig, storage core.CredentialStorage, cache core.CredentialCache, hasher crypto.SecretHasher, logger *slog.Logger) *CredentialService {
	// the default alphabet is always valid
	nanoid, _ := crypto.NewNanoID(crypto.AlphanumericAlphabet)
	if hasher == nil {
		hasher = crypto.NewAPIKeyArgon2()
	}
	return &CredentialService{
		config:  config.WithDefaults(),
		storage: storage,
		cache:   cache,
		hasher:  hasher,
		nanoid:  nanoid,
		logger:  core.Logger(logger).With("component", "services.credentials"),
		now:     time.Now,
	}
}

// Issue creates a credential for principalID and returns the full key once.
func (s *CredentialService) Issue(ctx context.Context, principalID, name string) (*core.IssuedCredential, error) {
	// Step 1: Validate input
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, core.ErrCredentialNameRequired
	}
	if utf8.RuneCountInString(name) > MaxCredentialNameLength {
		return nil, core.ErrCredentialNameTooLong
	}
	if principalID == "" {
		return nil, core.ErrPrincipalNotFound
	}

	// Step 2: Generate and hash the secret
	secret, err := crypto.GenerateSecret(s.config.SecretBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to generate secret: %w", err)
	}
	hashed, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to hash secret: %w", err)
	}

	// Step 3: Persist under a fresh prefix, regenerating on collision
	cred := &core.APICredential{
		ID:           uuid.NewString(),
		PrincipalID:  principalID,
		Name:         name,
		Scheme:       s.config.Scheme,
		HashedSecret: hashed,
		IsActive:     true,
		CreatedAt:    s.now().UTC(),
	}
	for attempt := 1; ; attempt++ {
		cred.Prefix, err = s.nanoid.Generate(s.config.PrefixLength)
		if err != nil {
			return nil, fmt.Errorf("failed to generate prefix: %w", err)
		}

		err = s.storage.CreateCredential(ctx, cred)
		if err == nil {
			break
		}
		if !errors.Is(err, core.ErrPrefixTaken) || attempt == maxPrefixAttempts {
			return nil, fmt.Errorf("failed to create credential: %w", err)
		}
		s.logger.Debug("credential prefix collision, regenerating", "attempt", attempt)
	}

	s.logger.Info("api credential issued",
		"credential_id", cred.ID,
		"principal_id", principalID,
		"prefix", cred.Prefix,
	)

	return &core.IssuedCredential{
		Credential: cred,
		Key:        core.NewPlaintextKey(FormatKey(s.config.Scheme, cred.Prefix, secret)),
	}, nil
}

// FindByPrefix resolves a credential by its public prefix, reading through
// the cache when one is configured.
func (s *CredentialService) FindByPrefix(ctx context.Context, prefix string) (*core.APICredential, error) {
	if prefix == "" {
		return nil, core.ErrCredentialNotFound
	}

	if s.cache != nil {
		if cred, err := s.cache.Get(prefix); err == nil {
			return cred, nil
		}
		// Cache miss - fall through to storage
	}

	cred, err := s.storage.GetCredentialByPrefix(ctx, prefix)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, core.ErrCredentialNotFound
	}

	if s.cache != nil {
		// The caller's string may alias a reused request buffer.
		_ = s.cache.Set(strings.Clone(prefix), cred)
	}
	return cred, nil
}

func (s *CredentialService) Get(ctx context.Context, id string) (*core.APICredential, error) {
	if id == "" {
		return nil, core.ErrCredentialNotFound
	}
	return s.storage.GetCredentialByID(ctx, id)
}

func (s *CredentialService) List(ctx context.Context, principalID string) ([]*core.APICredential, error) {
	creds, err := s.storage.ListCredentialsByPrincipal(ctx, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	if creds == nil {
		creds = []*core.APICredential{}
	}
	return creds, nil
}

// Deactivate makes the credential fail authentication with ErrKeyInactive.
func (s *CredentialService) Deactivate(ctx context.Context, id string) error {
	return s.setActive(ctx, id, false)
}

func (s *CredentialService) Activate(ctx context.Context, id string) error {
	return s.setActive(ctx, id, true)
}

func (s *CredentialService) setActive(ctx context.Context, id string, active bool) error {
	cred, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.storage.SetCredentialActive(ctx, id, active); err != nil {
		return err
	}
	s.invalidate(cred.Prefix)

	s.logger.Info("api credential state changed", "credential_id", id, "active", active)
	return nil
}

func (s *CredentialService) Delete(ctx context.Context, id string) error {
	cred, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.storage.DeleteCredential(ctx, id); err != nil {
		return err
	}
	s.invalidate(cred.Prefix)

	s.logger.Info("api credential deleted", "credential_id", id)
	return nil
}

// Touch records a successful use. The credential itself is left untouched
// since it may be shared through the cache.
func (s *CredentialService) Touch(ctx context.Context, cred *core.APICredential) error {
	return s.storage.TouchCredential(ctx, cred.ID, s.now().UTC())
}

func (s *CredentialService) invalidate(prefix string) {
	if s.cache != nil {
		_ = s.cache.Delete(prefix)
	}
}

// FormatKey renders the full key as <scheme>_<prefix>.<secret>.
func FormatKey(scheme, prefix, secret string) string {
	return scheme + "_" + prefix + "." + secret
}
