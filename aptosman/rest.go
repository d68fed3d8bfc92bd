package aptosman

import (
	"context"
	"fmt"

	"github.com/aptos-labs/aptos-go-sdk"

	"github.com/TEENet-io/atomic-swap/htlc"
)

// RESTClient talks to a fullnode REST api.
type RESTClient struct {
	client  *aptos.Client
	account *aptos.Account
	module  aptos.AccountAddress
}

func NewRESTClient(cfg *Config) (*RESTClient, error) {
	module := aptos.AccountAddress{}
	if err := module.ParseStringRelaxed(cfg.ModuleAddress); err != nil {
		return nil, fmt.Errorf("invalid module address %q: %w", cfg.ModuleAddress, err)
	}
	account, err := AccountFromPrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}

	networkConfig := GetNetworkConfig(cfg.Network)
	if cfg.URL != "" {
		networkConfig.NodeUrl = cfg.URL
	}
	client, err := aptos.NewClient(networkConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create aptos client: %w", err)
	}

	return &RESTClient{client: client, account: account, module: module}, nil
}

func (c *RESTClient) Account() aptos.AccountAddress {
	return c.account.AccountAddress()
}

func (c *RESTClient) Submit(_ context.Context, fn *aptos.EntryFunction) (string, error) {
	rawTxn, err := c.client.BuildTransaction(c.account.AccountAddress(), aptos.TransactionPayload{Payload: fn})
	if err != nil {
		return "", fmt.Errorf("failed to build transaction: %w", err)
	}
	signedTxn, err := rawTxn.SignedTransaction(c.account)
	if err != nil {
		return "", fmt.Errorf("failed to sign transaction: %w", err)
	}
	submitResult, err := c.client.SubmitTransaction(signedTxn)
	if err != nil {
		return "", fmt.Errorf("failed to submit transaction: %w", err)
	}
	return submitResult.Hash, nil
}

func (c *RESTClient) Confirm(_ context.Context, hash string) error {
	if _, err := c.client.WaitForTransaction(hash); err != nil {
		return fmt.Errorf("%w: %v", htlc.ErrTxPending, err)
	}

	txnInfo, err := c.client.TransactionByHash(hash)
	if err != nil {
		return fmt.Errorf("failed to get transaction %s: %w", hash, err)
	}
	userTxn, err := txnInfo.UserTransaction()
	if err != nil {
		return fmt.Errorf("failed to decode transaction %s: %w", hash, err)
	}
	if !userTxn.Success {
		return fmt.Errorf("%w: transaction %s failed: %s", htlc.ErrChainSubmission, hash, userTxn.VmStatus)
	}
	return nil
}

func (c *RESTClient) GetHTLC(_ context.Context, hashLock [32]byte) (*HTLCView, error) {
	payload, err := NewGetHTLCView(c.module, hashLock)
	if err != nil {
		return nil, err
	}
	values, err := c.client.View(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", FuncGetHTLC, err)
	}
	v, err := parseHTLCView(values)
	if err != nil {
		return nil, err
	}
	if v.Status == StatusNone {
		return nil, fmt.Errorf("%w: hash lock %x", htlc.ErrNotFound, hashLock)
	}
	return v, nil
}
