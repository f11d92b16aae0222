// Package memory is a process-local storage adapter. It suits tests, demos
// and single-instance deployments that can afford to lose state on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lborres/vouch"
)

type Adapter struct {
	mu          sync.RWMutex
	credentials map[string]*vouch.APICredential // by ID
	prefixes    map[string]string               // prefix -> ID
	principals  map[string]*vouch.Principal
	sessions    map[string]*vouch.VerificationSession
	identities  map[string]vouch.VerifiedIdentity // by principal ID
}

var (
	_ vouch.StorageAdapter  = (*Adapter)(nil)
	_ vouch.IdentityApplier = (*Adapter)(nil)
)

func New() *Adapter {
	return &Adapter{
		credentials: make(map[string]*vouch.APICredential),
		prefixes:    make(map[string]string),
		principals:  make(map[string]*vouch.Principal),
		sessions:    make(map[string]*vouch.VerificationSession),
		identities:  make(map[string]vouch.VerifiedIdentity),
	}
}

// PutPrincipal creates or replaces a principal. Principals are owned by the
// host application; this is how it mirrors them here.
func (a *Adapter) PutPrincipal(p *vouch.Principal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	copied := *p
	a.principals[p.ID] = &copied
}

func (a *Adapter) GetPrincipalByID(ctx context.Context, id string) (*vouch.Principal, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.principals[id]
	if !ok {
		return nil, vouch.ErrPrincipalNotFound
	}
	copied := *p
	return &copied, nil
}

func (a *Adapter) CreateCredential(ctx context.Context, c *vouch.APICredential) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, taken := a.prefixes[c.Prefix]; taken {
		return vouch.ErrPrefixTaken
	}
	copied := *c
	a.credentials[c.ID] = &copied
	a.prefixes[c.Prefix] = c.ID
	return nil
}

func (a *Adapter) GetCredentialByID(ctx context.Context, id string) (*vouch.APICredential, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.credentialLocked(id)
}

func (a *Adapter) GetCredentialByPrefix(ctx context.Context, prefix string) (*vouch.APICredential, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	id, ok := a.prefixes[prefix]
	if !ok {
		return nil, vouch.ErrCredentialNotFound
	}
	return a.credentialLocked(id)
}

func (a *Adapter) credentialLocked(id string) (*vouch.APICredential, error) {
	c, ok := a.credentials[id]
	if !ok {
		return nil, vouch.ErrCredentialNotFound
	}
	copied := *c
	if c.LastUsedAt != nil {
		t := *c.LastUsedAt
		copied.LastUsedAt = &t
	}
	return &copied, nil
}

func (a *Adapter) ListCredentialsByPrincipal(ctx context.Context, principalID string) ([]*vouch.APICredential, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := []*vouch.APICredential{}
	for id, c := range a.credentials {
		if c.PrincipalID == principalID {
			copied, _ := a.credentialLocked(id)
			out = append(out, copied)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (a *Adapter) SetCredentialActive(ctx context.Context, id string, active bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.credentials[id]
	if !ok {
		return vouch.ErrCredentialNotFound
	}
	c.IsActive = active
	return nil
}

func (a *Adapter) TouchCredential(ctx context.Context, id string, usedAt time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.credentials[id]
	if !ok {
		return vouch.ErrCredentialNotFound
	}
	c.LastUsedAt = &usedAt
	return nil
}

func (a *Adapter) DeleteCredential(ctx context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.credentials[id]
	if !ok {
		return vouch.ErrCredentialNotFound
	}
	delete(a.prefixes, c.Prefix)
	delete(a.credentials, id)
	return nil
}

func (a *Adapter) SaveVerificationSession(ctx context.Context, s *vouch.VerificationSession) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	copied := *s
	a.sessions[s.SessionID] = &copied
	return nil
}

func (a *Adapter) GetVerificationSession(ctx context.Context, sessionID string) (*vouch.VerificationSession, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	s, ok := a.sessions[sessionID]
	if !ok {
		return nil, vouch.ErrVerificationNotFound
	}
	copied := *s
	return &copied, nil
}

func (a *Adapter) DeleteVerificationSession(ctx context.Context, sessionID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.sessions, sessionID)
	return nil
}

// ApplyVerifiedIdentity keeps the latest verified identity per principal.
func (a *Adapter) ApplyVerifiedIdentity(ctx context.Context, v vouch.VerifiedIdentity) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.principals[v.PrincipalID]; !ok {
		return vouch.ErrPrincipalNotFound
	}
	a.identities[v.PrincipalID] = v
	return nil
}

func (a *Adapter) VerifiedIdentity(ctx context.Context, principalID string) (vouch.VerifiedIdentity, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.identities[principalID]
	return v, ok
}

func sortByCreated(creds []*vouch.APICredential) {
	sort.Slice(creds, func(i, j int) bool {
		if creds[i].CreatedAt.Equal(creds[j].CreatedAt) {
			return creds[i].ID < creds[j].ID
		}
		return creds[i].CreatedAt.Before(creds[j].CreatedAt)
	})
}
