package security

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"runtime"
	"unicode"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/sync/semaphore"

	"github.com/vasapolrittideah/identity-portal/shared/apperror"
)

const saltLength = 16

var (
	ErrMalformedSalt = errors.New("malformed password salt")
	ErrMalformedHash = errors.New("malformed password hash")

	ErrPasswordNoUppercase = apperror.Validation("password_uppercase", "password must contain at least one uppercase letter")
	ErrPasswordNoDigit     = apperror.Validation("password_digit", "password must contain at least one digit")
)

// Hasher hashes and verifies passwords with Argon2id. The number of hashes
// computed at once is bounded because each one allocates MemoryCost KiB.
type Hasher struct {
	config argon2.Config
	sem    *semaphore.Weighted
}

// NewHasher creates a Hasher. A concurrency below 1 defaults to the number of CPUs.
func NewHasher(config argon2.Config, concurrency int) *Hasher {
	if concurrency < 1 {
		concurrency = runtime.NumCPU()
	}

	return &Hasher{
		config: config,
		sem:    semaphore.NewWeighted(int64(concurrency)),
	}
}

// NewDefaultHasher creates a Hasher with the library's default Argon2id parameters.
func NewDefaultHasher() *Hasher {
	return NewHasher(argon2.DefaultConfig(), 0)
}

// Hash generates a fresh salt and returns the PHC-encoded hash together with
// the base64 salt.
func (h *Hasher) Hash(ctx context.Context, password string) (string, string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", "", fmt.Errorf("generate salt: %w", err)
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return "", "", err
	}
	defer h.sem.Release(1)

	raw, err := h.config.Hash([]byte(password), salt)
	if err != nil {
		return "", "", fmt.Errorf("hash password: %w", err)
	}

	return string(raw.Encode()), base64.StdEncoding.EncodeToString(salt), nil
}

// Verify recomputes the digest of plain with the stored salt and the cost
// parameters embedded in hash.
func (h *Hasher) Verify(ctx context.Context, plain, hash, salt string) (bool, error) {
	saltBytes, err := base64.StdEncoding.DecodeString(salt)
	if err != nil || len(saltBytes) == 0 {
		return false, ErrMalformedSalt
	}

	stored, err := argon2.Decode([]byte(hash))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	if err := h.sem.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.sem.Release(1)

	cfg := stored.Config
	computed, err := cfg.Hash([]byte(plain), saltBytes)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	return subtle.ConstantTimeCompare(computed.Hash, stored.Hash) == 1, nil
}

// ValidatePasswordComplexity requires at least one uppercase letter and one digit.
func ValidatePasswordComplexity(password string) error {
	var hasUpper, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasUpper {
		return ErrPasswordNoUppercase
	}
	if !hasDigit {
		return ErrPasswordNoDigit
	}

	return nil
}
