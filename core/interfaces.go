package core

import (
	"context"
	"time"
)

// Ports define interfaces for external dependencies

// ============================================
// STORAGE PORTS (Database operations)
// ============================================

// CredentialStorage defines API credential database operations.
//
// CreateCredential must return ErrPrefixTaken when the prefix is already used.
type CredentialStorage interface {
	CreateCredential(ctx context.Context, c *APICredential) error
	GetCredentialByID(ctx context.Context, id string) (*APICredential, error)
	GetCredentialByPrefix(ctx context.Context, prefix string) (*APICredential, error)
	ListCredentialsByPrincipal(ctx context.Context, principalID string) ([]*APICredential, error)
	SetCredentialActive(ctx context.Context, id string, active bool) error
	TouchCredential(ctx context.Context, id string, usedAt time.Time) error
	DeleteCredential(ctx context.Context, id string) error
}

// PrincipalStorage resolves the owner of a credential.
type PrincipalStorage interface {
	GetPrincipalByID(ctx context.Context, id string) (*Principal, error)
}

// VerificationSessionStorage remembers which principal opened which
// provider session.
type VerificationSessionStorage interface {
	SaveVerificationSession(ctx context.Context, s *VerificationSession) error
	GetVerificationSession(ctx context.Context, sessionID string) (*VerificationSession, error)
	DeleteVerificationSession(ctx context.Context, sessionID string) error
}

type StorageAdapter interface {
	CredentialStorage
	PrincipalStorage
	VerificationSessionStorage
}

// ============================================
// COLLABORATOR PORTS
// ============================================

// IdentityApplier applies a verified identity to the user's profile. The
// latest successful verification wins.
type IdentityApplier interface {
	ApplyVerifiedIdentity(ctx context.Context, v VerifiedIdentity) error
}

// IdentityApplierFunc adapts a function to IdentityApplier.
type IdentityApplierFunc func(ctx context.Context, v VerifiedIdentity) error

func (f IdentityApplierFunc) ApplyVerifiedIdentity(ctx context.Context, v VerifiedIdentity) error {
	return f(ctx, v)
}

// ============================================
// CACHE PORT
// ============================================

// CredentialCache holds recently resolved credentials keyed by prefix.
type CredentialCache interface {
	Get(prefix string) (*APICredential, error)
	Set(prefix string, c *APICredential) error
	Delete(prefix string) error
	Clear() error
}

// ============================================
// AUTH HANDLER (for HTTP adapters)
// ============================================

// KeyAuthenticator resolves a raw X-API-KEY header value. A nil result with
// a nil error means no key was presented.
type KeyAuthenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*AuthResult, error)
}

// CredentialManager is the credential lifecycle used by HTTP adapters.
type CredentialManager interface {
	Issue(ctx context.Context, principalID, name string) (*IssuedCredential, error)
	Get(ctx context.Context, id string) (*APICredential, error)
	List(ctx context.Context, principalID string) ([]*APICredential, error)
	Deactivate(ctx context.Context, id string) error
	Activate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// IdentityVerifier is the verification flow used by HTTP adapters.
type IdentityVerifier interface {
	Start(ctx context.Context, principalID, redirectURL string) (*VerificationSession, error)
	Check(ctx context.Context, principalID, sessionID string) (*VerificationResult, error)
}

// ============================================
// VERIFICATION RESULTS
// ============================================

// VerificationStatus tags a fetch result. Pending is a normal polling state,
// not a failure.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusVerified VerificationStatus = "verified"
)

// VerificationSource says which provider response shape produced a record.
type VerificationSource string

const (
	SourceInline   VerificationSource = "inline"
	SourceDocument VerificationSource = "document"
)

// VerificationResult is the outcome of one status check. Record is set only
// when Status is StatusVerified.
type VerificationResult struct {
	Status VerificationStatus `json:"status"`
	Source VerificationSource `json:"source,omitempty"`
	Record *IdentityRecord    `json:"record,omitempty"`
}

func (r *VerificationResult) Pending() bool {
	return r != nil && r.Status == StatusPending
}
