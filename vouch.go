package vouch

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/lborres/vouch/core"
	"github.com/lborres/vouch/identity"
	"github.com/lborres/vouch/pkg/cache"
	"github.com/lborres/vouch/pkg/crypto"
	"github.com/lborres/vouch/services"
)

// interfaces
type (
	StorageAdapter             = core.StorageAdapter
	CredentialStorage          = core.CredentialStorage
	PrincipalStorage           = core.PrincipalStorage
	VerificationSessionStorage = core.VerificationSessionStorage
	CredentialCache            = core.CredentialCache
	IdentityApplier            = core.IdentityApplier

	KeyAuthenticator  = core.KeyAuthenticator
	CredentialManager = core.CredentialManager
	IdentityVerifier  = core.IdentityVerifier

	SecretHasher = crypto.SecretHasher
)

// structs
type (
	ProviderConfig   = core.ProviderConfig
	CredentialConfig = core.CredentialConfig
	PollConfig       = core.PollConfig
)

type (
	Principal           = core.Principal
	APICredential       = core.APICredential
	IssuedCredential    = core.IssuedCredential
	PlaintextKey        = core.PlaintextKey
	AuthResult          = core.AuthResult
	VerificationSession = core.VerificationSession
	VerificationResult  = core.VerificationResult
	IdentityRecord      = core.IdentityRecord
	Address             = core.Address
	VerifiedIdentity    = core.VerifiedIdentity
	ProviderError       = core.ProviderError
	Endpoint            = core.Endpoint

	IdentityApplierFunc = core.IdentityApplierFunc
)

const (
	defaultBasePath = "/api"

	StatusPending  = core.StatusPending
	StatusVerified = core.StatusVerified
)

// Constructors & helpers (convenience re-exports)
var (
	NewAPIKeyArgon2         = crypto.NewAPIKeyArgon2
	DefaultProviderConfig   = core.DefaultProviderConfig
	DefaultCredentialConfig = core.DefaultCredentialConfig
	DefaultPollConfig       = core.DefaultPollConfig
	ParseAadhaarXML         = identity.ParseAadhaarXML
	ErrorCode               = core.ErrorCode
)

var (
	ErrAuthFailed          = core.ErrAuthFailed
	ErrSessionInitFailed   = core.ErrSessionInitFailed
	ErrFetchFailed         = core.ErrFetchFailed
	ErrTimeout             = core.ErrTimeout
	ErrProviderUnreachable = core.ErrProviderUnreachable
	ErrParse               = core.ErrParse
)

var (
	ErrMalformedKey      = core.ErrMalformedKey
	ErrInvalidKey        = core.ErrInvalidKey
	ErrKeyInactive       = core.ErrKeyInactive
	ErrPrincipalInactive = core.ErrPrincipalInactive
)

var (
	ErrCredentialNotFound   = core.ErrCredentialNotFound
	ErrPrincipalNotFound    = core.ErrPrincipalNotFound
	ErrVerificationNotFound = core.ErrVerificationNotFound
	ErrPrefixTaken          = core.ErrPrefixTaken
)

var (
	ErrCredentialNameRequired = core.ErrCredentialNameRequired
	ErrCredentialNameTooLong  = core.ErrCredentialNameTooLong
	ErrRedirectURLRequired    = core.ErrRedirectURLRequired
	ErrInvalidRedirectURL     = core.ErrInvalidRedirectURL
	ErrForbidden              = core.ErrForbidden
)

var (
	ErrStorageRequired        = core.ErrStorageRequired
	ErrProviderKeyRequired    = core.ErrProviderKeyRequired
	ErrProviderSecretRequired = core.ErrProviderSecretRequired
	ErrInvalidBaseURL         = core.ErrInvalidBaseURL
)

// HTTPAdapter mounts the vouch routes on a web framework.
type HTTPAdapter interface {
	RegisterRoutes(v *Vouch) error
}

type Config struct {
	// Storage holds credentials and principals. It also stores verification
	// sessions unless Sessions is set.
	Storage  StorageAdapter
	Sessions VerificationSessionStorage
	HTTP     HTTPAdapter

	Provider    ProviderConfig
	Credentials CredentialConfig
	Poll        PollConfig

	// IdentityApplier receives every verified identity. Optional.
	IdentityApplier IdentityApplier
	// DefaultRedirectURL is used when a verification is started without one.
	DefaultRedirectURL string

	// CredentialCache fronts credential lookups by prefix. When nil, and
	// DisableCache is unset, each instance keeps its own in-process cache
	// with cache.DefaultTTL. Deactivate, Activate and Delete evict only on
	// the instance that ran them, so another instance can keep accepting a
	// revoked key until its entry expires. Run more than one instance with
	// a shared cache (adapters/redis.CredentialCache) or DisableCache.
	CredentialCache CredentialCache
	DisableCache    bool
	Hasher          SecretHasher

	BasePath string
	Logger   *slog.Logger
}

// Vouch is the wired subsystem: credential management, API key
// authentication and identity verification.
type Vouch struct {
	Credentials   *services.CredentialService
	Authenticator *services.Authenticator
	Verification  *services.VerificationService
	Provider      *identity.Client
	Endpoints     *services.EndpointRegistry

	BasePath string
	Logger   *slog.Logger
}

func New(config Config) (*Vouch, error) {
	if config.Storage == nil {
		return nil, ErrStorageRequired
	}
	if config.Provider.APIKey == "" {
		return nil, ErrProviderKeyRequired
	}
	if config.Provider.APISecret == "" {
		return nil, ErrProviderSecretRequired
	}

	// Set Defaults

	provider := config.Provider.WithDefaults()
	if u, err := url.Parse(provider.BaseURL); err != nil || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, provider.BaseURL)
	}

	logger := core.Logger(config.Logger)

	credentialCache := config.CredentialCache
	if credentialCache == nil && !config.DisableCache {
		credentialCache = cache.NewMemory[string, *APICredential](cache.Config{})
	}

	hasher := config.Hasher
	if hasher == nil {
		hasher = crypto.NewAPIKeyArgon2()
	}

	sessions := config.Sessions
	if sessions == nil {
		sessions = config.Storage
	}

	basePath := config.BasePath
	if basePath == "" {
		basePath = defaultBasePath
	}

	credentialConfig := config.Credentials.WithDefaults()

	credentials := services.NewCredentialService(credentialConfig, config.Storage, credentialCache, hasher, logger)
	client := identity.NewClient(provider, nil, logger)

	verification := services.NewVerificationService(client, sessions, config.IdentityApplier, config.Poll, logger)
	verification.SetDefaultRedirectURL(config.DefaultRedirectURL)

	v := &Vouch{
		Credentials:   credentials,
		Authenticator: services.NewAuthenticator(credentialConfig.Scheme, credentials, config.Storage, hasher, logger),
		Verification:  verification,
		Provider:      client,
		Endpoints:     services.NewEndpointRegistry(),
		BasePath:      basePath,
		Logger:        logger,
	}

	if config.HTTP != nil {
		if err := config.HTTP.RegisterRoutes(v); err != nil {
			return nil, err
		}
	}

	return v, nil
}
