package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lborres/vouch/core"
)

var verifiedResult = &core.VerificationResult{
	Status: core.StatusVerified,
	Source: core.SourceDocument,
	Record: &core.IdentityRecord{
		Name:        "Ravi Kumar",
		DateOfBirth: "01-01-1990",
		Gender:      "M",
		Address:     core.Address{House: "12B", District: "Pune", State: "Maharashtra", Pincode: "411001"},
	},
}

var pendingResult = &core.VerificationResult{Status: core.StatusPending}

func newTestVerificationService(provider *FakeIdentityProvider, applier *FakeIdentityApplier) (*VerificationService, *FakeStorage) {
	storage := NewFakeStorage()
	poll := core.PollConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsed:      200 * time.Millisecond,
	}
	var a core.IdentityApplier
	if applier != nil {
		a = applier
	}
	return NewVerificationService(provider, storage, a, poll, nil), storage
}

func newFakeProvider(results ...*core.VerificationResult) *FakeIdentityProvider {
	return &FakeIdentityProvider{
		session: &core.VerificationSession{
			SessionID:        "sess-1",
			AuthorizationURL: "https://digilocker.example/authorize/sess-1",
		},
		results: results,
	}
}

// Requirement: Start opens a session and remembers who owns it.
func TestVerificationService_Start(t *testing.T) {
	provider := newFakeProvider(pendingResult)
	svc, storage := newTestVerificationService(provider, nil)

	session, err := svc.Start(context.Background(), "user-1", "https://app.example/done")

	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if session.PrincipalID != "user-1" || session.SessionID != "sess-1" {
		t.Errorf("session = %+v", session)
	}
	stored, err := storage.GetVerificationSession(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if stored.PrincipalID != "user-1" || stored.RedirectURL != "https://app.example/done" {
		t.Errorf("stored session = %+v", stored)
	}
}

func TestVerificationService_Start_DefaultRedirect(t *testing.T) {
	provider := newFakeProvider(pendingResult)
	svc, storage := newTestVerificationService(provider, nil)
	svc.SetDefaultRedirectURL("https://app.example/kyc/default")

	if _, err := svc.Start(context.Background(), "user-1", ""); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	stored, err := storage.GetVerificationSession(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if stored.RedirectURL != "https://app.example/kyc/default" {
		t.Errorf("RedirectURL = %q, want the default", stored.RedirectURL)
	}
}

// Requirement: provider failures from Start are returned unchanged.
func TestVerificationService_Start_ProviderError(t *testing.T) {
	provider := newFakeProvider(pendingResult)
	provider.initErr = &core.ProviderError{Op: "initiate session", Err: core.ErrSessionInitFailed, StatusCode: 422, Message: "bad redirect"}
	svc, _ := newTestVerificationService(provider, nil)

	_, err := svc.Start(context.Background(), "user-1", "https://app.example/done")

	if !errors.Is(err, core.ErrSessionInitFailed) {
		t.Errorf("error = %v, want ErrSessionInitFailed", err)
	}
}

// Requirement: Check returns pending without applying anything, and applies
// the identity once verified.
func TestVerificationService_Check(t *testing.T) {
	// Arrange
	provider := newFakeProvider(pendingResult, verifiedResult)
	applier := &FakeIdentityApplier{}
	svc, _ := newTestVerificationService(provider, applier)
	ctx := context.Background()
	if _, err := svc.Start(ctx, "user-1", "https://app.example/done"); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// Act
	first, err1 := svc.Check(ctx, "user-1", "sess-1")
	second, err2 := svc.Check(ctx, "user-1", "sess-1")

	// Assert
	if err1 != nil || !first.Pending() {
		t.Fatalf("first Check() = %+v, %v; want pending", first, err1)
	}
	if err2 != nil || second.Status != core.StatusVerified {
		t.Fatalf("second Check() = %+v, %v; want verified", second, err2)
	}

	applied := applier.Applied()
	if len(applied) != 1 {
		t.Fatalf("applied = %d identities, want 1", len(applied))
	}
	got := applied[0]
	if got.PrincipalID != "user-1" || got.SessionID != "sess-1" {
		t.Errorf("applied identity = %+v", got)
	}
	if got.Method != core.VerificationMethodDigiLocker {
		t.Errorf("Method = %q, want DIGILOCKER", got.Method)
	}
	if got.Record != *verifiedResult.Record {
		t.Errorf("Record = %+v", got.Record)
	}
	if got.VerifiedAt.IsZero() {
		t.Error("VerifiedAt not set")
	}
}

// Requirement: sessions are only visible to the principal that started them.
func TestVerificationService_Check_Ownership(t *testing.T) {
	tests := []struct {
		name      string
		principal string
		session   string
	}{
		{name: "other principal", principal: "user-2", session: "sess-1"},
		{name: "unknown session", principal: "user-1", session: "sess-404"},
		{name: "empty session", principal: "user-1", session: ""},
		{name: "no principal", principal: "", session: "sess-1"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			provider := newFakeProvider(verifiedResult)
			applier := &FakeIdentityApplier{}
			svc, _ := newTestVerificationService(provider, applier)
			_, _ = svc.Start(context.Background(), "user-1", "https://app.example/done")

			_, err := svc.Check(context.Background(), test.principal, test.session)

			if !errors.Is(err, core.ErrVerificationNotFound) {
				t.Errorf("error = %v, want ErrVerificationNotFound", err)
			}
			if provider.fetchCalls != 0 {
				t.Error("provider should not be asked")
			}
			if len(applier.Applied()) != 0 {
				t.Error("nothing should be applied")
			}
		})
	}
}

// Requirement: hard failures surface as errors and nothing is applied.
func TestVerificationService_Check_Failure(t *testing.T) {
	provider := newFakeProvider(verifiedResult)
	provider.fetchErr = &core.ProviderError{Op: "fetch result", Err: core.ErrFetchFailed, StatusCode: 500}
	applier := &FakeIdentityApplier{}
	svc, _ := newTestVerificationService(provider, applier)
	_, _ = svc.Start(context.Background(), "user-1", "https://app.example/done")

	result, err := svc.Check(context.Background(), "user-1", "sess-1")

	if result != nil || !errors.Is(err, core.ErrFetchFailed) {
		t.Errorf("Check() = %+v, %v; want ErrFetchFailed", result, err)
	}
	if len(applier.Applied()) != 0 {
		t.Error("nothing should be applied")
	}
}

// Requirement: a failing profile update is reported to the caller.
func TestVerificationService_Check_ApplierError(t *testing.T) {
	provider := newFakeProvider(verifiedResult)
	applier := &FakeIdentityApplier{err: errors.New("profile locked")}
	svc, _ := newTestVerificationService(provider, applier)
	_, _ = svc.Start(context.Background(), "user-1", "https://app.example/done")

	_, err := svc.Check(context.Background(), "user-1", "sess-1")

	if err == nil {
		t.Fatal("expected applier error")
	}
}

// Requirement: Poll waits through pending checks and applies the result.
func TestVerificationService_Poll(t *testing.T) {
	provider := newFakeProvider(pendingResult, pendingResult, verifiedResult)
	applier := &FakeIdentityApplier{}
	svc, _ := newTestVerificationService(provider, applier)
	_, _ = svc.Start(context.Background(), "user-1", "https://app.example/done")

	result, err := svc.Poll(context.Background(), "user-1", "sess-1")

	if err != nil {
		t.Fatalf("Poll() error = %v", err)
	}
	if result.Status != core.StatusVerified {
		t.Errorf("Status = %q", result.Status)
	}
	if provider.fetchCalls != 3 {
		t.Errorf("fetch calls = %d, want 3", provider.fetchCalls)
	}
	if len(applier.Applied()) != 1 {
		t.Errorf("applied = %d, want 1", len(applier.Applied()))
	}
}

// Requirement: Poll gives up with a timeout when the session never resolves.
func TestVerificationService_Poll_Exhausted(t *testing.T) {
	provider := newFakeProvider(pendingResult)
	svc, _ := newTestVerificationService(provider, nil)
	_, _ = svc.Start(context.Background(), "user-1", "https://app.example/done")

	_, err := svc.Poll(context.Background(), "user-1", "sess-1")

	if !errors.Is(err, core.ErrTimeout) {
		t.Errorf("error = %v, want ErrTimeout", err)
	}
}
