package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/lborres/vouch/core"
	"github.com/lborres/vouch/pkg/crypto"
)

// Upper bounds keep oversized headers away from the hasher.
const (
	maxPrefixLength = 64
	maxSecretLength = 256
)

// prefixAlphabet accepts exactly the characters issued prefixes are drawn from.
var prefixAlphabet, _ = crypto.NewNanoID(crypto.AlphanumericAlphabet)

// CredentialResolver is what the authenticator needs from the credential
// store.
type CredentialResolver interface {
	FindByPrefix(ctx context.Context, prefix string) (*core.APICredential, error)
	Touch(ctx context.Context, cred *core.APICredential) error
}

// Authenticator checks X-API-KEY header values.
type Authenticator struct {
	scheme      string
	credentials CredentialResolver
	principals  core.PrincipalStorage
	hasher      crypto.SecretHasher
	logger      *slog.Logger

	dummyOnce sync.Once
	dummyHash string
}

// Ensure Authenticator implements KeyAuthenticator
var _ core.KeyAuthenticator = (*Authenticator)(nil)

func NewAuthenticator(scheme string, credentials CredentialResolver, principals core.PrincipalStorage, hasher crypto.SecretHasher, logger *slog.Logger) *Authenticator {
	if scheme == "" {
		scheme = core.DefaultCredentialConfig().Scheme
	}
	if hasher == nil {
		hasher = crypto.NewAPIKeyArgon2()
	}
	return &Authenticator{
		scheme:      scheme,
		credentials: credentials,
		principals:  principals,
		hasher:      hasher,
		logger:      core.Logger(logger).With("component", "services.authenticator"),
	}
}

// Authenticate resolves a raw header value.
//
// An empty value is anonymous: (nil, nil), so other mechanisms may still
// authenticate the request. An unknown prefix and a wrong secret both return
// core.ErrInvalidKey after the same hashing work.
func (a *Authenticator) Authenticate(ctx context.Context, rawKey string) (*core.AuthResult, error) {
	rawKey = strings.TrimSpace(rawKey)
	if rawKey == "" {
		return nil, nil
	}

	// Step 1: Parse <scheme>_<prefix>.<secret>
	prefix, secret, err := ParseKey(a.scheme, rawKey)
	if err != nil {
		return nil, err
	}

	// Step 2: Resolve the credential by its public prefix
	cred, err := a.credentials.FindByPrefix(ctx, prefix)
	if err != nil {
		if errors.Is(err, core.ErrCredentialNotFound) {
			_, _ = a.hasher.Verify(secret, a.dummy())
			return nil, core.ErrInvalidKey
		}
		return nil, fmt.Errorf("failed to resolve credential: %w", err)
	}

	// Step 3: Verify the secret
	valid, err := a.hasher.Verify(secret, cred.HashedSecret)
	if err != nil {
		a.logger.Error("stored credential hash unreadable", "credential_id", cred.ID, "error", err)
		return nil, fmt.Errorf("failed to verify secret: %w", err)
	}
	if !valid {
		return nil, core.ErrInvalidKey
	}

	// Step 4: Check credential and owner state
	if !cred.IsActive {
		return nil, core.ErrKeyInactive
	}
	principal, err := a.principals.GetPrincipalByID(ctx, cred.PrincipalID)
	if err != nil {
		if errors.Is(err, core.ErrPrincipalNotFound) {
			a.logger.Warn("credential owner missing", "credential_id", cred.ID)
			return nil, core.ErrInvalidKey
		}
		return nil, fmt.Errorf("failed to resolve principal: %w", err)
	}
	if !principal.IsActive {
		return nil, core.ErrPrincipalInactive
	}

	// Usage tracking never fails the request
	if err := a.credentials.Touch(ctx, cred); err != nil {
		a.logger.Debug("failed to record credential use", "credential_id", cred.ID, "error", err)
	}

	return &core.AuthResult{Principal: principal, Credential: cred}, nil
}

// dummy returns a hash of a random secret, computed once, for equalizing the
// unknown-prefix path.
func (a *Authenticator) dummy() string {
	a.dummyOnce.Do(func() {
		secret, err := crypto.GenerateSecret(crypto.DefaultSecretLength)
		if err != nil {
			return
		}
		a.dummyHash, _ = a.hasher.Hash(secret)
	})
	return a.dummyHash
}

// ParseKey splits <scheme>_<prefix>.<secret>. Anything else is
// core.ErrMalformedKey.
func ParseKey(scheme, raw string) (prefix, secret string, err error) {
	rest, ok := strings.CutPrefix(raw, scheme+"_")
	if !ok || strings.Count(rest, ".") != 1 {
		return "", "", core.ErrMalformedKey
	}
	prefix, secret, _ = strings.Cut(rest, ".")

	if prefix == "" || len(prefix) > maxPrefixLength || !prefixAlphabet.Contains(prefix) {
		return "", "", core.ErrMalformedKey
	}
	if secret == "" || len(secret) > maxSecretLength || !isBase64URL(secret) {
		return "", "", core.ErrMalformedKey
	}
	return prefix, secret, nil
}

func isBase64URL(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '-' || c == '_' {
			continue
		}
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return false
		}
	}
	return true
}
