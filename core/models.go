package core

import (
	"encoding/json"
	"time"
)

// RedactionMarker replaces the secret part of a key everywhere except the
// issuance response.
const RedactionMarker = "********"

// Principal represents the user an API credential belongs to
//
// This is the "identity" - who is calling
type Principal struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	IsActive bool   `json:"isActive"`
	IsStaff  bool   `json:"isStaff"`
}

// APICredential is the stored form of an API key. It never carries the
// plaintext secret.
type APICredential struct {
	ID           string     `json:"id"`
	PrincipalID  string     `json:"principalId"`
	Name         string     `json:"name"`
	Scheme       string     `json:"-"` // fixed key prefix, e.g. "vk"
	Prefix       string     `json:"prefix"`
	HashedSecret string     `json:"-"` // Never expose in JSON
	IsActive     bool       `json:"isActive"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastUsedAt   *time.Time `json:"lastUsedAt,omitempty"`
}

// MaskedKey renders the credential the way it is shown after issuance.
func (c *APICredential) MaskedKey() string {
	if c.Scheme == "" {
		return c.Prefix + "." + RedactionMarker
	}
	return c.Scheme + "_" + c.Prefix + "." + RedactionMarker
}

func (c *APICredential) MarshalJSON() ([]byte, error) {
	type view APICredential
	return json.Marshal(struct {
		*view
		MaskedKey string `json:"maskedKey"`
	}{
		view:      (*view)(c),
		MaskedKey: c.MaskedKey(),
	})
}

// IssuedCredential is only ever produced by issuance. It is the single place
// the plaintext key exists.
type IssuedCredential struct {
	Credential *APICredential `json:"credential"`
	Key        PlaintextKey   `json:"key"`
}

// AuthResult is what a successful API key authentication resolves to.
type AuthResult struct {
	Principal  *Principal
	Credential *APICredential
}

// VerificationSession identifies one attempt at the DigiLocker flow.
type VerificationSession struct {
	SessionID        string    `json:"sessionId"`
	AuthorizationURL string    `json:"authorizationUrl"`
	RedirectURL      string    `json:"redirectUrl"`
	PrincipalID      string    `json:"principalId,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// Address as printed on the Aadhaar document. Fields are empty strings when
// the document has no address section.
type Address struct {
	House    string `json:"house"`
	District string `json:"district"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
}

// IdentityRecord is the normalized result of a successful verification.
type IdentityRecord struct {
	Name        string  `json:"name"`
	DateOfBirth string  `json:"dateOfBirth"`
	Gender      string  `json:"gender"`
	Address     Address `json:"address"`
}

// VerificationMethod records how an identity was verified.
const VerificationMethodDigiLocker = "DIGILOCKER"

// VerifiedIdentity is what gets handed to the profile updater.
type VerifiedIdentity struct {
	PrincipalID string         `json:"principalId"`
	SessionID   string         `json:"sessionId"`
	Method      string         `json:"method"`
	Record      IdentityRecord `json:"record"`
	VerifiedAt  time.Time      `json:"verifiedAt"`
}
