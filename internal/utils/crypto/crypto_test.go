package crypto

import (
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	cases := []string{
		"Should I learn Rust?",
		"",
		"multi\nline\ntext with unicode: héllo 世界",
		strings.Repeat("long ", 2000),
	}
	for _, plaintext := range cases {
		sealed, err := EncryptString("test-secret", plaintext)
		if err != nil {
			t.Fatalf("EncryptString failed: %v", err)
		}
		if sealed == plaintext && plaintext != "" {
			t.Error("ciphertext must differ from plaintext")
		}
		opened, err := DecryptString("test-secret", sealed)
		if err != nil {
			t.Fatalf("DecryptString failed: %v", err)
		}
		if opened != plaintext {
			t.Errorf("round trip mismatch: got %q", opened)
		}
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	a, _ := EncryptString("test-secret", "same input")
	b, _ := EncryptString("test-secret", "same input")
	if a == b {
		t.Error("two encryptions of the same input must use distinct nonces")
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	sealed, err := EncryptString("right-key", "secret text")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := DecryptString("wrong-key", sealed); err == nil {
		t.Error("decryption with the wrong key must fail authentication")
	}
}

func TestDecryptGarbageFails(t *testing.T) {
	if _, err := DecryptString("key", "not-base64-%%%"); err == nil {
		t.Error("non-base64 input must be rejected")
	}
	if _, err := DecryptString("key", "dG9vc2hvcnQ="); err == nil {
		t.Error("truncated ciphertext must be rejected")
	}
}

func TestEmptySecretRejected(t *testing.T) {
	if _, err := EncryptString("", "text"); err == nil {
		t.Error("empty secret must be rejected on encrypt")
	}
	if _, err := DecryptString("", "text"); err == nil {
		t.Error("empty secret must be rejected on decrypt")
	}
}

func TestKeyNormalization(t *testing.T) {
	// Short keys are padded and long keys truncated to 32 bytes, so a key
	// sharing the first 32 bytes decrypts successfully.
	long := strings.Repeat("k", 40)
	sealed, err := EncryptString(long, "text")
	if err != nil {
		t.Fatal(err)
	}
	if got, err := DecryptString(strings.Repeat("k", 32), sealed); err != nil || got != "text" {
		t.Errorf("32-byte prefix key should decrypt, got %q err %v", got, err)
	}
}
