package aptosman

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/crypto"
	"golang.org/x/crypto/ed25519"

	"github.com/TEENet-io/atomic-swap/common"
)

// GenPrivateKey generates a random ed25519 key.
func GenPrivateKey() (ed25519.PrivateKey, error) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}
	return privateKey, nil
}

// NewAccount creates an aptos account from the seed of privateKey.
func NewAccount(privateKey ed25519.PrivateKey) (*aptos.Account, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid ed25519 private key size: %d", len(privateKey))
	}
	key := crypto.Ed25519PrivateKey{}
	if err := key.FromBytes(privateKey.Seed()); err != nil {
		return nil, fmt.Errorf("failed to load ed25519 key: %w", err)
	}
	account, err := aptos.NewAccountFromSigner(&key)
	if err != nil {
		return nil, fmt.Errorf("failed to create account from signer: %w", err)
	}
	return account, nil
}

// AccountFromPrivateKey accepts a hex encoded 32 byte seed or 64 byte key.
func AccountFromPrivateKey(privateKeyHex string) (*aptos.Account, error) {
	b, err := hex.DecodeString(common.Trim0xPrefix(privateKeyHex))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	switch len(b) {
	case ed25519.SeedSize:
		return NewAccount(ed25519.NewKeyFromSeed(b))
	case ed25519.PrivateKeySize:
		return NewAccount(ed25519.PrivateKey(b))
	}
	return nil, fmt.Errorf("invalid private key length %d", len(b))
}
