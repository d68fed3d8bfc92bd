package etherman

import (
	"strings"

	"github.com/TEENet-io/atomic-swap/htlc"
)

type Config struct {
	// ChainID is the name the adapter registers under.
	ChainID htlc.ChainID

	// URL is the URL of the Ethereum node
	URL string

	// PrivateKey of the wallet that creates and refunds HTLCs, hex.
	PrivateKey string

	// HTLCAddress is the deployed HashedTimelock contract address in hex string
	HTLCAddress string

	// ERC20HTLCAddress is the deployed HashedTimelockERC20 contract, optional.
	ERC20HTLCAddress string

	// Tokens maps lower-case token addresses to their decimals.
	Tokens map[string]int32

	// Confirmations is the number of blocks (1 = mined) a transaction needs
	// before a call returns.
	Confirmations uint64

	Retry htlc.RetryConfig
}

func DefaultConfig() *Config {
	return &Config{
		ChainID:       htlc.ChainEthereum,
		Tokens:        map[string]int32{},
		Confirmations: 3,
		Retry:         htlc.DefaultRetryConfig(),
	}
}

func (cfg *Config) tokenDecimals(token string) (int32, bool) {
	d, ok := cfg.Tokens[strings.ToLower(token)]
	return d, ok
}
