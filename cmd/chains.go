package cmd

import (
	"context"
	"crypto/ecdsa"
	"fmt"

	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/lightningnetwork/lnd/clock"
	logger "github.com/sirupsen/logrus"
	"github.com/xssnick/tonutils-go/address"

	"github.com/TEENet-io/atomic-swap/aptosman"
	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/etherman"
	"github.com/TEENet-io/atomic-swap/htlc"
	"github.com/TEENet-io/atomic-swap/solman"
	"github.com/TEENet-io/atomic-swap/tonman"
)

const (
	ModeRPC       = "rpc"       // talk to a real node
	ModeSimulated = "simulated" // in-process ledger, for demos and tests
)

// ChainConfig is the text form of one chain's adapter settings. An empty
// Mode leaves the chain out of the registry.
type ChainConfig struct {
	Mode string

	URL     string // node url, lite server config url on TON
	Network string // aptos network name

	PrivateKey string // hex on ethereum and aptos, base58 on solana
	Seed       string // TON wallet mnemonic

	Contract      string // htlc contract, program id, vault or module address
	ERC20Contract string // ethereum only
}

func checkMode(chain htlc.ChainID, mode string) error {
	switch mode {
	case ModeRPC, ModeSimulated:
		return nil
	}
	return fmt.Errorf("%w: unknown mode %q for chain %s", htlc.ErrConfigInvalid, mode, chain)
}

func setupEthereum(ctx context.Context, cc *ChainConfig, clk clock.Clock) (htlc.Adapter, error) {
	cfg := etherman.DefaultConfig()
	cfg.URL = cc.URL
	cfg.PrivateKey = cc.PrivateKey
	cfg.HTLCAddress = cc.Contract
	cfg.ERC20HTLCAddress = cc.ERC20Contract

	if cc.Mode == ModeRPC {
		client, err := etherman.NewRPCClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to ethereum node %s: %w", cc.URL, err)
		}
		return etherman.NewAdapter(cfg, client, clk), nil
	}

	var sk *ecdsa.PrivateKey
	var err error
	if cc.PrivateKey != "" {
		sk, err = etherman.StringToPrivateKey(cc.PrivateKey)
	} else {
		sk, err = crypto.GenerateKey()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: ethereum key: %v", htlc.ErrConfigInvalid, err)
	}
	from := crypto.PubkeyToAddress(sk.PublicKey)
	logger.WithField("wallet", from.Hex()).Info("simulated ethereum wallet")
	return etherman.NewAdapter(cfg, etherman.NewSimulatedClient(htlc.NewLedger(clk), from), clk), nil
}

func setupSolana(cc *ChainConfig, clk clock.Clock) (htlc.Adapter, error) {
	cfg := solman.DefaultConfig()
	cfg.RPCURL = cc.URL
	cfg.PrivateKey = cc.PrivateKey
	cfg.ProgramID = cc.Contract

	if cc.Mode == ModeRPC {
		client, err := solman.NewRPCClient(cfg)
		if err != nil {
			return nil, err
		}
		return solman.NewAdapter(cfg, client, clk)
	}

	var payer solana.PrivateKey
	var err error
	if cc.PrivateKey != "" {
		payer, err = solana.PrivateKeyFromBase58(cc.PrivateKey)
	} else {
		payer, err = solana.NewRandomPrivateKey()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: solana key: %v", htlc.ErrConfigInvalid, err)
	}
	if cfg.ProgramID == "" {
		program, err := solana.NewRandomPrivateKey()
		if err != nil {
			return nil, err
		}
		cfg.ProgramID = program.PublicKey().String()
	}
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("%w: solana program id: %v", htlc.ErrConfigInvalid, err)
	}
	logger.WithField("wallet", payer.PublicKey().String()).Info("simulated solana wallet")
	client := solman.NewSimulatedClient(htlc.NewLedger(clk), programID, payer.PublicKey())
	return solman.NewAdapter(cfg, client, clk)
}

func setupTON(ctx context.Context, cc *ChainConfig, clk clock.Clock) (htlc.Adapter, error) {
	cfg := tonman.DefaultConfig()
	if cc.URL != "" {
		cfg.ConfigURL = cc.URL
	}
	cfg.VaultAddress = cc.Contract
	cfg.Seed = cc.Seed

	if cc.Mode == ModeRPC {
		client, err := tonman.NewLiteClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return tonman.NewAdapter(cfg, client, clk)
	}

	wallet := address.NewAddress(0x11, 0, common.RandBytes(32))
	logger.WithField("wallet", wallet.String()).Info("simulated ton wallet")
	return tonman.NewAdapter(cfg, tonman.NewSimulatedClient(htlc.NewLedger(clk), wallet), clk)
}

func setupAptos(cc *ChainConfig, clk clock.Clock) (htlc.Adapter, error) {
	cfg := aptosman.DefaultConfig()
	if cc.Network != "" {
		cfg.Network = cc.Network
	}
	cfg.URL = cc.URL
	cfg.ModuleAddress = cc.Contract
	cfg.PrivateKey = cc.PrivateKey

	if cc.Mode == ModeRPC {
		client, err := aptosman.NewRESTClient(cfg)
		if err != nil {
			return nil, err
		}
		return aptosman.NewAdapter(cfg, client, clk)
	}

	var account *aptos.Account
	var err error
	if cc.PrivateKey != "" {
		account, err = aptosman.AccountFromPrivateKey(cc.PrivateKey)
	} else {
		account, err = randomAptosAccount()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: aptos key: %v", htlc.ErrConfigInvalid, err)
	}
	var module aptos.AccountAddress
	if cfg.ModuleAddress == "" {
		moduleAccount, err := randomAptosAccount()
		if err != nil {
			return nil, err
		}
		module = moduleAccount.AccountAddress()
		cfg.ModuleAddress = module.String()
	} else if err := module.ParseStringRelaxed(cfg.ModuleAddress); err != nil {
		return nil, fmt.Errorf("%w: aptos module address: %v", htlc.ErrConfigInvalid, err)
	}
	wallet := account.AccountAddress()
	logger.WithField("wallet", wallet.String()).Info("simulated aptos wallet")
	client := aptosman.NewSimulatedClient(htlc.NewLedger(clk), module, wallet)
	return aptosman.NewAdapter(cfg, client, clk)
}

func randomAptosAccount() (*aptos.Account, error) {
	key, err := aptosman.GenPrivateKey()
	if err != nil {
		return nil, err
	}
	return aptosman.NewAccount(key)
}

// setupAdapters builds an adapter for every chain with a mode set.
func setupAdapters(ctx context.Context, ssc *SwapServerConfig, clk clock.Clock) ([]htlc.Adapter, error) {
	type entry struct {
		chain htlc.ChainID
		cc    *ChainConfig
		build func() (htlc.Adapter, error)
	}
	entries := []entry{
		{htlc.ChainEthereum, &ssc.Ethereum, func() (htlc.Adapter, error) { return setupEthereum(ctx, &ssc.Ethereum, clk) }},
		{htlc.ChainSolana, &ssc.Solana, func() (htlc.Adapter, error) { return setupSolana(&ssc.Solana, clk) }},
		{htlc.ChainTON, &ssc.TON, func() (htlc.Adapter, error) { return setupTON(ctx, &ssc.TON, clk) }},
		{htlc.ChainAptos, &ssc.Aptos, func() (htlc.Adapter, error) { return setupAptos(&ssc.Aptos, clk) }},
	}

	var adapters []htlc.Adapter
	for _, e := range entries {
		if e.cc.Mode == "" {
			continue
		}
		if err := checkMode(e.chain, e.cc.Mode); err != nil {
			return nil, err
		}
		adapter, err := e.build()
		if err != nil {
			return nil, fmt.Errorf("failed to set up %s adapter: %w", e.chain, err)
		}
		logger.WithFields(logger.Fields{
			"chain": e.chain,
			"mode":  e.cc.Mode,
		}).Info("chain adapter ready")
		adapters = append(adapters, adapter)
	}
	return adapters, nil
}
