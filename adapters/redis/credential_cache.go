package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lborres/vouch"
	"github.com/lborres/vouch/pkg/cache"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultCredentialPrefix = "vouch:cred:"
	DefaultCredentialTTL    = time.Minute

	// CredentialCache methods carry no context; each call gets this long.
	credentialOpTimeout = 2 * time.Second
	clearBatchSize      = 100
)

// CredentialCache shares credential lookups between instances, so a key
// revoked on one instance is refused by all of them on the next request.
type CredentialCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ vouch.CredentialCache = (*CredentialCache)(nil)

// cachedCredential keeps the fields APICredential hides from JSON.
type cachedCredential struct {
	ID           string     `json:"id"`
	PrincipalID  string     `json:"principal_id"`
	Name         string     `json:"name"`
	Scheme       string     `json:"scheme"`
	Prefix       string     `json:"prefix"`
	HashedSecret string     `json:"hashed_secret"`
	IsActive     bool       `json:"is_active"`
	CreatedAt    time.Time  `json:"created_at"`
	LastUsedAt   *time.Time `json:"last_used_at,omitempty"`
}

// NewCredentialCache wraps client. Empty prefix and non-positive ttl fall
// back to the defaults.
func NewCredentialCache(client *redis.Client, prefix string, ttl time.Duration) *CredentialCache {
	if prefix == "" {
		prefix = DefaultCredentialPrefix
	}
	if ttl <= 0 {
		ttl = DefaultCredentialTTL
	}
	return &CredentialCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

// CredentialCache returns a credential cache on the store's connection.
func (s *SessionStore) CredentialCache(ttl time.Duration) *CredentialCache {
	return NewCredentialCache(s.client, "", ttl)
}

func (c *CredentialCache) key(prefix string) string {
	return c.prefix + prefix
}

// Get returns cache.ErrNotFound on a miss. Any other error means Redis could
// not answer and the caller should go to storage.
func (c *CredentialCache) Get(prefix string) (*vouch.APICredential, error) {
	ctx, cancel := context.WithTimeout(context.Background(), credentialOpTimeout)
	defer cancel()

	raw, err := c.client.Get(ctx, c.key(prefix)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, cache.ErrNotFound
		}
		return nil, err
	}

	var cc cachedCredential
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("decode cached credential %s: %w", prefix, err)
	}
	return &vouch.APICredential{
		ID:           cc.ID,
		PrincipalID:  cc.PrincipalID,
		Name:         cc.Name,
		Scheme:       cc.Scheme,
		Prefix:       cc.Prefix,
		HashedSecret: cc.HashedSecret,
		IsActive:     cc.IsActive,
		CreatedAt:    cc.CreatedAt,
		LastUsedAt:   cc.LastUsedAt,
	}, nil
}

func (c *CredentialCache) Set(prefix string, cred *vouch.APICredential) error {
	if cred == nil {
		return errors.New("nil credential")
	}
	data, err := json.Marshal(cachedCredential{
		ID:           cred.ID,
		PrincipalID:  cred.PrincipalID,
		Name:         cred.Name,
		Scheme:       cred.Scheme,
		Prefix:       cred.Prefix,
		HashedSecret: cred.HashedSecret,
		IsActive:     cred.IsActive,
		CreatedAt:    cred.CreatedAt,
		LastUsedAt:   cred.LastUsedAt,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), credentialOpTimeout)
	defer cancel()
	return c.client.Set(ctx, c.key(prefix), data, c.ttl).Err()
}

func (c *CredentialCache) Delete(prefix string) error {
	ctx, cancel := context.WithTimeout(context.Background(), credentialOpTimeout)
	defer cancel()
	return c.client.Del(ctx, c.key(prefix)).Err()
}

// Clear removes every credential entry under the cache's key prefix and
// nothing else.
func (c *CredentialCache) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), credentialOpTimeout)
	defer cancel()

	iter := c.client.Scan(ctx, 0, c.prefix+"*", clearBatchSize).Iterator()
	batch := make([]string, 0, clearBatchSize)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == clearBatchSize {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err()
	}
	return nil
}
