package tonman

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/TEENet-io/atomic-swap/htlc"
)

// LiteClient talks to the vault through lite servers and signs with a v4r2
// wallet.
type LiteClient struct {
	api    ton.APIClientWrapped
	wallet *wallet.Wallet
	vault  *address.Address
}

func NewLiteClient(ctx context.Context, cfg *Config) (*LiteClient, error) {
	vault, err := address.ParseAddr(cfg.VaultAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid vault address %q: %w", cfg.VaultAddress, err)
	}

	pool := liteclient.NewConnectionPool()
	if err := pool.AddConnectionsFromConfigUrl(ctx, cfg.ConfigURL); err != nil {
		return nil, fmt.Errorf("failed to connect to lite servers: %w", err)
	}
	api := ton.NewAPIClient(pool).WithRetry()

	w, err := wallet.FromSeed(api, strings.Fields(cfg.Seed), wallet.V4R2)
	if err != nil {
		return nil, fmt.Errorf("failed to open wallet: %w", err)
	}

	return &LiteClient{api: api, wallet: w, vault: vault}, nil
}

func (c *LiteClient) Wallet() *address.Address {
	return c.wallet.WalletAddress()
}

func (c *LiteClient) Send(ctx context.Context, body *cell.Cell, value tlb.Coins) error {
	_, _, err := c.wallet.SendWaitTransaction(ctx, wallet.SimpleMessage(c.vault, value, body))
	return err
}

func (c *LiteClient) GetHTLC(ctx context.Context, id [32]byte) (*VaultEntry, error) {
	block, err := c.api.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get masterchain info: %w", err)
	}

	res, err := c.api.RunGetMethod(ctx, block, c.vault, getHTLCMethod, new(big.Int).SetBytes(id[:]))
	if err != nil {
		return nil, fmt.Errorf("failed to run %s: %w", getHTLCMethod, err)
	}
	found, err := res.Int(0)
	if err != nil {
		return nil, err
	}
	if found.Sign() == 0 {
		return nil, fmt.Errorf("%w: vault entry %x", htlc.ErrNotFound, id)
	}
	entry, err := res.Cell(1)
	if err != nil {
		return nil, err
	}
	return LoadVaultEntry(entry)
}
