package aptosman

import (
	"github.com/aptos-labs/aptos-go-sdk"

	"github.com/TEENet-io/atomic-swap/htlc"
)

type Config struct {
	// ChainID is the name the adapter registers under.
	ChainID htlc.ChainID

	// Network type: mainnet, testnet, devnet
	Network string

	// URL overrides the fullnode of Network when set.
	URL string

	// ModuleAddress is the account the htlc module is published under.
	ModuleAddress string

	// PrivateKey of the ed25519 account, hex.
	PrivateKey string

	Retry htlc.RetryConfig
}

func DefaultConfig() *Config {
	return &Config{
		ChainID: htlc.ChainAptos,
		Network: NetworkDevnet,
		Retry:   htlc.DefaultRetryConfig(),
	}
}

const (
	NetworkMainnet = "mainnet"
	NetworkTestnet = "testnet"
	NetworkDevnet  = "devnet"
)

func GetNetworkConfig(network string) aptos.NetworkConfig {
	switch network {
	case NetworkMainnet:
		return aptos.MainnetConfig
	case NetworkTestnet:
		return aptos.TestnetConfig
	default:
		return aptos.DevnetConfig
	}
}
