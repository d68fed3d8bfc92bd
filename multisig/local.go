package multisig

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/TEENet-io/atomic-swap/common"
)

// LocalSigner approves swaps with a single BIP-340 key held in memory.
type LocalSigner struct {
	Sk *btcec.PrivateKey
}

// NewLocalSigner builds a signer from a 32-byte hex private key.
func NewLocalSigner(privKeyHex string) (*LocalSigner, error) {
	b, err := hex.DecodeString(common.Trim0xPrefix(privKeyHex))
	if err != nil {
		return nil, err
	}
	sk, _ := btcec.PrivKeyFromBytes(b)
	return &LocalSigner{Sk: sk}, nil
}

func NewRandomLocalSigner() (*LocalSigner, error) {
	sk, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return &LocalSigner{Sk: sk}, nil
}

// PubKey returns the x-only public key in hex, the form listed as a swap
// signer.
func (s *LocalSigner) PubKey() string {
	return hex.EncodeToString(schnorr.SerializePubKey(s.Sk.PubKey()))
}

// Sign returns the 64-byte signature over digest in hex.
func (s *LocalSigner) Sign(digest [32]byte) (string, error) {
	sig, err := schnorr.Sign(s.Sk, digest[:])
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sig.Serialize()), nil
}
