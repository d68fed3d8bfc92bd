// Package hashlock generates and verifies the secret / hash-lock pair that
// binds the two legs of an atomic swap.
package hashlock

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/TEENet-io/atomic-swap/common"
)

const SecretSize = 32

var (
	ErrInvalidHashLock = errors.New("invalid hash lock")
	ErrInvalidSecret   = errors.New("invalid secret encoding")
)

// Secret is the preimage of a hash lock. It stays with the initiator until
// the destination leg is claimed.
type Secret []byte

// HashLock is the sha256 digest of a Secret.
type HashLock [32]byte

// Generate draws a fresh 32-byte secret from the system CSPRNG and returns it
// together with its hash lock.
func Generate() (Secret, HashLock, error) {
	secret := make([]byte, SecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, HashLock{}, fmt.Errorf("failed to read random secret: %w", err)
	}
	return secret, Hash(secret), nil
}

func Hash(secret []byte) HashLock {
	return sha256.Sum256(secret)
}

// Verify recomputes the hash of secret and compares it to hashLock in
// constant time.
func Verify(secret []byte, hashLock HashLock) bool {
	h := Hash(secret)
	return subtle.ConstantTimeCompare(h[:], hashLock[:]) == 1
}

func (h HashLock) IsZero() bool {
	return h == HashLock{}
}

// String returns 64 lower-case hex characters, no prefix.
func (h HashLock) String() string {
	return hex.EncodeToString(h[:])
}

func (h HashLock) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

func (h *HashLock) UnmarshalText(text []byte) error {
	parsed, err := ParseHashLock(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHashLock accepts 64 hex characters in either case, with or without 0x.
func ParseHashLock(s string) (HashLock, error) {
	s = strings.ToLower(common.Trim0xPrefix(s))
	if len(s) != 64 {
		return HashLock{}, fmt.Errorf("%w: expected 64 hex chars, got %d", ErrInvalidHashLock, len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return HashLock{}, fmt.Errorf("%w: %v", ErrInvalidHashLock, err)
	}
	var h HashLock
	copy(h[:], b)
	return h, nil
}

func (s Secret) String() string {
	return hex.EncodeToString(s)
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Secret) UnmarshalText(text []byte) error {
	parsed, err := ParseSecret(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Clone returns a copy that does not share the backing array.
func (s Secret) Clone() Secret {
	if s == nil {
		return nil
	}
	return append(Secret(nil), s...)
}

// Zero overwrites the secret in place.
func (s Secret) Zero() {
	for i := range s {
		s[i] = 0
	}
}

func ParseSecret(s string) (Secret, error) {
	b, err := hex.DecodeString(common.Trim0xPrefix(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSecret, err)
	}
	return b, nil
}
