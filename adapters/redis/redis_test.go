package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/lborres/vouch"
)

func newTestStore(t *testing.T, ttl time.Duration) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store, err := New(context.Background(), Config{Addr: mr.Addr(), TTL: ttl})
	if err != nil {
		t.Fatalf("New error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store, mr
}

func TestSessionStore_Lifecycle(t *testing.T) {
	store, mr := newTestStore(t, time.Hour)
	ctx := context.Background()

	session := &vouch.VerificationSession{
		SessionID:        "sess-1",
		PrincipalID:      "user-1",
		AuthorizationURL: "https://digilocker.example/authorize",
		RedirectURL:      "https://app.example/kyc/done",
		CreatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	if err := store.SaveVerificationSession(ctx, session); err != nil {
		t.Fatalf("SaveVerificationSession error: %v", err)
	}
	if !mr.Exists(DefaultPrefix + "sess-1") {
		t.Fatalf("expected key %q to exist", DefaultPrefix+"sess-1")
	}
	if ttl := mr.TTL(DefaultPrefix + "sess-1"); ttl != time.Hour {
		t.Errorf("TTL = %v, want %v", ttl, time.Hour)
	}

	got, err := store.GetVerificationSession(ctx, "sess-1")
	if err != nil {
		t.Fatalf("GetVerificationSession error: %v", err)
	}
	if got.PrincipalID != session.PrincipalID || got.AuthorizationURL != session.AuthorizationURL ||
		got.RedirectURL != session.RedirectURL || !got.CreatedAt.Equal(session.CreatedAt) {
		t.Errorf("got %+v, want %+v", got, session)
	}

	if err := store.DeleteVerificationSession(ctx, "sess-1"); err != nil {
		t.Fatalf("DeleteVerificationSession error: %v", err)
	}
	if _, err := store.GetVerificationSession(ctx, "sess-1"); !errors.Is(err, vouch.ErrVerificationNotFound) {
		t.Errorf("expected ErrVerificationNotFound, got %v", err)
	}
}

func TestSessionStore_Expiry(t *testing.T) {
	store, mr := newTestStore(t, time.Minute)
	ctx := context.Background()

	if err := store.SaveVerificationSession(ctx, &vouch.VerificationSession{SessionID: "sess-2", PrincipalID: "user-1"}); err != nil {
		t.Fatalf("SaveVerificationSession error: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.GetVerificationSession(ctx, "sess-2"); !errors.Is(err, vouch.ErrVerificationNotFound) {
		t.Errorf("expected ErrVerificationNotFound after expiry, got %v", err)
	}
}

func TestSessionStore_CorruptEntry(t *testing.T) {
	store, mr := newTestStore(t, 0)

	if err := mr.Set(DefaultPrefix+"bad", "{not json"); err != nil {
		t.Fatalf("seed error: %v", err)
	}

	_, err := store.GetVerificationSession(context.Background(), "bad")
	if err == nil || errors.Is(err, vouch.ErrVerificationNotFound) {
		t.Errorf("expected decode error, got %v", err)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing address", cfg: Config{}},
		{name: "unreachable", cfg: Config{Addr: "127.0.0.1:1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()

			if _, err := New(ctx, tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
