package etherman

import (
	"crypto/ecdsa"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/TEENet-io/atomic-swap/common"
)

// StringToPrivateKey parses a hex private key, 0x prefix optional.
func StringToPrivateKey(s string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(common.Trim0xPrefix(s))
}

// AddressOf returns the checksummed address of a hex private key.
func AddressOf(priv string) (string, error) {
	sk, err := StringToPrivateKey(priv)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(sk.PublicKey).Hex(), nil
}
