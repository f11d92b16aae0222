// Package redis stores verification sessions in Redis so that any instance
// behind a load balancer can answer a status check.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lborres/vouch"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultPrefix = "vouch:kyc:session:"
	DefaultTTL    = 24 * time.Hour
)

type Config struct {
	Addr     string
	Username string
	Password string
	DB       int

	Prefix string
	// TTL bounds how long an unfinished session can still be checked.
	TTL time.Duration
}

type SessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ vouch.VerificationSessionStorage = (*SessionStore)(nil)

// New connects to Redis and pings it before returning.
func New(ctx context.Context, cfg Config) (*SessionStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return NewFromClient(client, cfg.Prefix, cfg.TTL), nil
}

// NewFromClient wraps an existing client. Empty prefix and non-positive ttl
// fall back to the defaults.
func NewFromClient(client *redis.Client, prefix string, ttl time.Duration) *SessionStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SessionStore{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (s *SessionStore) key(sessionID string) string {
	return s.prefix + sessionID
}

func (s *SessionStore) SaveVerificationSession(ctx context.Context, session *vouch.VerificationSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(session.SessionID), data, s.ttl).Err()
}

func (s *SessionStore) GetVerificationSession(ctx context.Context, sessionID string) (*vouch.VerificationSession, error) {
	raw, err := s.client.Get(ctx, s.key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, vouch.ErrVerificationNotFound
		}
		return nil, err
	}

	var session vouch.VerificationSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, fmt.Errorf("decode verification session %s: %w", sessionID, err)
	}
	return &session, nil
}

func (s *SessionStore) DeleteVerificationSession(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, s.key(sessionID)).Err()
}

func (s *SessionStore) Close() error {
	return s.client.Close()
}
