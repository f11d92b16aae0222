package crypto

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestGenerateSecret_Length(t *testing.T) {
	tests := []struct {
		name           string
		byteLength     int
		expectedLength int
	}{
		{name: "zero uses default", byteLength: 0, expectedLength: DefaultSecretLength},
		{name: "negative uses default", byteLength: -10, expectedLength: DefaultSecretLength},
		{name: "16 bytes", byteLength: 16, expectedLength: 16},
		{name: "64 bytes", byteLength: 64, expectedLength: 64},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Act
			secret, err := GenerateSecret(test.byteLength)

			// Assert
			if err != nil {
				t.Fatalf("GenerateSecret() error = %v", err)
			}
			decoded, err := base64.RawURLEncoding.DecodeString(secret)
			if err != nil {
				t.Fatalf("failed to decode secret: %v", err)
			}
			if len(decoded) != test.expectedLength {
				t.Errorf("secret length = %d bytes, want %d", len(decoded), test.expectedLength)
			}
			// '.' separates prefix from secret in a key
			if strings.ContainsAny(secret, ".+/= ") {
				t.Errorf("secret contains a reserved character: %q", secret)
			}
		})
	}
}

func TestGenerateSecret_Unique(t *testing.T) {
	secrets := make(map[string]bool)

	for i := 0; i < 1000; i++ {
		secret, err := GenerateSecret(32)
		if err != nil {
			t.Fatalf("iteration %d: GenerateSecret() error = %v", i, err)
		}
		if secrets[secret] {
			t.Fatalf("duplicate secret generated")
		}
		secrets[secret] = true
	}
}

func TestFingerprint(t *testing.T) {
	a, err := Fingerprint("token-a")
	if err != nil {
		t.Fatalf("Fingerprint() error = %v", err)
	}
	again, _ := Fingerprint("token-a")
	b, _ := Fingerprint("token-b")

	if len(a) != fingerprintLength {
		t.Errorf("len = %d, want %d", len(a), fingerprintLength)
	}
	if a != again {
		t.Error("Fingerprint() should be deterministic")
	}
	if a == b {
		t.Error("Fingerprint() should differ for different inputs")
	}
	if strings.Contains(a, "token") {
		t.Error("Fingerprint() leaked its input")
	}
	if _, err := Fingerprint(""); err != ErrEmptyInput {
		t.Errorf("Fingerprint(\"\") error = %v, want ErrEmptyInput", err)
	}
}
