package tonman

import "github.com/TEENet-io/atomic-swap/htlc"

type Config struct {
	// ChainID is the name the adapter registers under.
	ChainID htlc.ChainID

	// ConfigURL points at the global network config listing lite servers.
	ConfigURL string

	// VaultAddress of the deployed HTLC vault, user friendly form.
	VaultAddress string

	// Seed is the space separated mnemonic of the v4r2 wallet.
	Seed string

	// ForwardFee is attached to every message on top of the locked amount,
	// in TON.
	ForwardFee string

	Retry htlc.RetryConfig
}

func DefaultConfig() *Config {
	return &Config{
		ChainID:    htlc.ChainTON,
		ConfigURL:  "https://ton.org/global.config.json",
		ForwardFee: "0.05",
		Retry:      htlc.DefaultRetryConfig(),
	}
}
