package solman

import "github.com/TEENet-io/atomic-swap/htlc"

type Config struct {
	// ChainID is the name the adapter registers under.
	ChainID htlc.ChainID

	RPCURL string

	// ProgramID of the deployed HTLC program, base58.
	ProgramID string

	// PrivateKey of the payer, base58.
	PrivateKey string

	// Commitment a transaction must reach: "confirmed" or "finalized".
	Commitment string

	Retry htlc.RetryConfig
}

func DefaultConfig() *Config {
	return &Config{
		ChainID:    htlc.ChainSolana,
		Commitment: "finalized",
		Retry:      htlc.DefaultRetryConfig(),
	}
}
