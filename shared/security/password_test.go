package security

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/matthewhartstonge/argon2"
)

func newTestHasher() *Hasher {
	cfg := argon2.DefaultConfig()
	cfg.TimeCost = 1
	cfg.MemoryCost = 8 * 1024
	cfg.Parallelism = 1
	return NewHasher(cfg, 2)
}

func TestHashVerify(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	for _, password := range []string{"Abcdef1!", "S3cure-Passphrase", "Ünïcode9X"} {
		hash, salt, err := h.Hash(ctx, password)
		if err != nil {
			t.Fatalf("Hash(%q): %v", password, err)
		}

		ok, err := h.Verify(ctx, password, hash, salt)
		if err != nil {
			t.Fatalf("Verify(%q): %v", password, err)
		}
		if !ok {
			t.Fatalf("expected %q to verify against its own hash", password)
		}

		ok, err = h.Verify(ctx, password+"x", hash, salt)
		if err != nil {
			t.Fatalf("Verify mismatch: %v", err)
		}
		if ok {
			t.Fatalf("expected a different password not to verify")
		}
	}
}

func TestHashUsesUniqueSalts(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	hash1, salt1, err := h.Hash(ctx, "Abcdef1!")
	if err != nil {
		t.Fatal(err)
	}
	hash2, salt2, err := h.Hash(ctx, "Abcdef1!")
	if err != nil {
		t.Fatal(err)
	}

	if salt1 == salt2 {
		t.Fatal("expected distinct salts")
	}
	if hash1 == hash2 {
		t.Fatal("expected distinct hashes for distinct salts")
	}

	ok, err := h.Verify(ctx, "Abcdef1!", hash1, salt2)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected verification with a foreign salt to fail")
	}
}

func TestVerifyMalformedInputs(t *testing.T) {
	h := newTestHasher()
	ctx := context.Background()

	hash, salt, err := h.Hash(ctx, "Abcdef1!")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := h.Verify(ctx, "Abcdef1!", hash, "%%%not-base64"); !errors.Is(err, ErrMalformedSalt) {
		t.Fatalf("expected ErrMalformedSalt, got %v", err)
	}
	if _, err := h.Verify(ctx, "Abcdef1!", "not-a-phc-string", salt); !errors.Is(err, ErrMalformedHash) {
		t.Fatalf("expected ErrMalformedHash, got %v", err)
	}
}

func TestHashRespectsCancelledContext(t *testing.T) {
	h := NewHasher(argon2.DefaultConfig(), 1)
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		t.Fatal(err)
	}
	defer h.sem.Release(1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, _, err := h.Hash(ctx, "Abcdef1!"); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestValidatePasswordComplexity(t *testing.T) {
	tests := []struct {
		password string
		want     error
	}{
		{"Abcdef1!", nil},
		{"abcdef1!", ErrPasswordNoUppercase},
		{"Abcdefg!", ErrPasswordNoDigit},
	}

	for _, tt := range tests {
		t.Run(tt.password, func(t *testing.T) {
			if err := ValidatePasswordComplexity(tt.password); !errors.Is(err, tt.want) {
				t.Fatalf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestGenerateRandomSecret(t *testing.T) {
	for i := 0; i < 50; i++ {
		s, err := GenerateRandomSecret(8, 11)
		if err != nil {
			t.Fatal(err)
		}
		if len(s) < 8 || len(s) > 11 {
			t.Fatalf("length %d out of range", len(s))
		}
		for _, r := range s {
			if !strings.ContainsRune(secretAlphabet, r) {
				t.Fatalf("unexpected rune %q", r)
			}
		}
	}

	if _, err := GenerateRandomSecret(5, 2); err == nil {
		t.Fatal("expected error for inverted range")
	}
}

func TestGenerateNumericCode(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateNumericCode(6)
		if err != nil {
			t.Fatal(err)
		}
		if len(code) != 6 || code[0] == '0' {
			t.Fatalf("unexpected code %q", code)
		}
	}
}
