package core

import (
	"encoding/json"
	"log/slog"
)

// PlaintextKey holds a full API key (`<scheme>_<prefix>.<secret>`) right after
// issuance. Every formatting path redacts it; Reveal is the only way out.
type PlaintextKey struct {
	value string
}

func NewPlaintextKey(value string) PlaintextKey {
	return PlaintextKey{value: value}
}

// Reveal returns the raw key. Call it only when writing the issuance response.
func (k PlaintextKey) Reveal() string {
	return k.value
}

func (k PlaintextKey) IsZero() bool {
	return k.value == ""
}

func (k PlaintextKey) String() string {
	return RedactionMarker
}

func (k PlaintextKey) GoString() string {
	return "core.PlaintextKey{" + RedactionMarker + "}"
}

func (k PlaintextKey) LogValue() slog.Value {
	return slog.StringValue(RedactionMarker)
}

// MarshalJSON writes the raw key. IssuedCredential is the only type that
// embeds a PlaintextKey, and it is only serialized into the creation response.
func (k PlaintextKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.value)
}
