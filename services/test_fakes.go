package services

import (
	"context"
	"sync"
	"time"

	"github.com/lborres/vouch/core"
)

// FakeStorage is a test-only fake implementing core.StorageAdapter.
// It keeps everything in maps and exposes error fields for behavior injection.
type FakeStorage struct {
	mu          sync.RWMutex
	credentials map[string]*core.APICredential // by ID
	principals  map[string]*core.Principal
	sessions    map[string]*core.VerificationSession

	createErr     error
	getErr        error
	touchErr      error
	prefixTakenN  int // number of CreateCredential calls that report a collision
	createCalls   int
	prefixLookups int
	touches       int
}

// Ensure FakeStorage implements StorageAdapter
var _ core.StorageAdapter = (*FakeStorage)(nil)

func NewFakeStorage() *FakeStorage {
	return &FakeStorage{
		credentials: make(map[string]*core.APICredential),
		principals:  make(map[string]*core.Principal),
		sessions:    make(map[string]*core.VerificationSession),
	}
}

func (f *FakeStorage) AddPrincipal(p *core.Principal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.principals[p.ID] = p
}

func (f *FakeStorage) SetPrincipalActive(id string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.principals[id]; ok {
		p.IsActive = active
	}
}

func (f *FakeStorage) CreateCredential(ctx context.Context, c *core.APICredential) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++

	if f.createErr != nil {
		return f.createErr
	}
	if f.prefixTakenN > 0 {
		f.prefixTakenN--
		return core.ErrPrefixTaken
	}
	for _, existing := range f.credentials {
		if existing.Prefix == c.Prefix {
			return core.ErrPrefixTaken
		}
	}
	copied := *c
	f.credentials[c.ID] = &copied
	return nil
}

func (f *FakeStorage) GetCredentialByID(ctx context.Context, id string) (*core.APICredential, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.credentials[id]
	if !ok {
		return nil, core.ErrCredentialNotFound
	}
	copied := *c
	return &copied, nil
}

func (f *FakeStorage) GetCredentialByPrefix(ctx context.Context, prefix string) (*core.APICredential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefixLookups++
	if f.getErr != nil {
		return nil, f.getErr
	}
	for _, c := range f.credentials {
		if c.Prefix == prefix {
			copied := *c
			return &copied, nil
		}
	}
	return nil, core.ErrCredentialNotFound
}

func (f *FakeStorage) ListCredentialsByPrincipal(ctx context.Context, principalID string) ([]*core.APICredential, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	var out []*core.APICredential
	for _, c := range f.credentials {
		if c.PrincipalID == principalID {
			copied := *c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *FakeStorage) SetCredentialActive(ctx context.Context, id string, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.credentials[id]
	if !ok {
		return core.ErrCredentialNotFound
	}
	c.IsActive = active
	return nil
}

func (f *FakeStorage) TouchCredential(ctx context.Context, id string, usedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touches++
	if f.touchErr != nil {
		return f.touchErr
	}
	if c, ok := f.credentials[id]; ok {
		c.LastUsedAt = &usedAt
	}
	return nil
}

func (f *FakeStorage) DeleteCredential(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.credentials[id]; !ok {
		return core.ErrCredentialNotFound
	}
	delete(f.credentials, id)
	return nil
}

func (f *FakeStorage) GetPrincipalByID(ctx context.Context, id string) (*core.Principal, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.principals[id]
	if !ok {
		return nil, core.ErrPrincipalNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *FakeStorage) SaveVerificationSession(ctx context.Context, s *core.VerificationSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *s
	f.sessions[s.SessionID] = &copied
	return nil
}

func (f *FakeStorage) GetVerificationSession(ctx context.Context, sessionID string) (*core.VerificationSession, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.sessions[sessionID]
	if !ok {
		return nil, core.ErrVerificationNotFound
	}
	copied := *s
	return &copied, nil
}

func (f *FakeStorage) DeleteVerificationSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, sessionID)
	return nil
}

func (f *FakeStorage) counts() (creates, lookups, touches int) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.createCalls, f.prefixLookups, f.touches
}

// FakeIdentityProvider is a test-only IdentityProvider with scripted results.
type FakeIdentityProvider struct {
	mu         sync.Mutex
	session    *core.VerificationSession
	initErr    error
	results    []*core.VerificationResult
	fetchErr   error
	fetchCalls int
}

func (f *FakeIdentityProvider) InitiateSession(ctx context.Context, redirectURL string) (*core.VerificationSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.initErr != nil {
		return nil, f.initErr
	}
	s := *f.session
	s.RedirectURL = redirectURL
	return &s, nil
}

func (f *FakeIdentityProvider) FetchResult(ctx context.Context, sessionID string) (*core.VerificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	i := f.fetchCalls - 1
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], nil
}

// FakeIdentityApplier records every identity it is handed.
type FakeIdentityApplier struct {
	mu      sync.Mutex
	applied []core.VerifiedIdentity
	err     error
}

func (f *FakeIdentityApplier) ApplyVerifiedIdentity(ctx context.Context, v core.VerifiedIdentity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, v)
	return nil
}

func (f *FakeIdentityApplier) Applied() []core.VerifiedIdentity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.VerifiedIdentity(nil), f.applied...)
}
