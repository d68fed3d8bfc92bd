package solman

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/TEENet-io/atomic-swap/htlc"
)

// RPCClient sends HTLC program instructions over json-rpc.
type RPCClient struct {
	client     *rpc.Client
	payer      solana.PrivateKey
	commitment rpc.CommitmentType
}

func NewRPCClient(cfg *Config) (*RPCClient, error) {
	payer, err := solana.PrivateKeyFromBase58(cfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("invalid solana private key: %w", err)
	}
	commitment := rpc.CommitmentType(cfg.Commitment)
	if commitment == "" {
		commitment = rpc.CommitmentFinalized
	}
	return &RPCClient{
		client:     rpc.New(cfg.RPCURL),
		payer:      payer,
		commitment: commitment,
	}, nil
}

func (c *RPCClient) Payer() solana.PublicKey {
	return c.payer.PublicKey()
}

func (c *RPCClient) Send(ctx context.Context, ix solana.Instruction) (solana.Signature, error) {
	recent, err := c.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		recent.Value.Blockhash,
		solana.TransactionPayer(c.payer.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to build transaction: %w", err)
	}

	payerKey := c.payer.PublicKey()
	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payerKey) {
			return &c.payer
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	// Preflight simulation surfaces program errors before broadcast.
	return c.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
}

func (c *RPCClient) Confirm(ctx context.Context, sig solana.Signature) error {
	out, err := c.client.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return err
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return htlc.ErrTxPending
	}
	status := out.Value[0]
	if status.Err != nil {
		return fmt.Errorf("transaction %s failed: %v", sig, status.Err)
	}

	switch c.commitment {
	case rpc.CommitmentFinalized:
		if status.ConfirmationStatus != rpc.ConfirmationStatusFinalized {
			return fmt.Errorf("%w: %s", htlc.ErrTxPending, status.ConfirmationStatus)
		}
	default:
		if status.ConfirmationStatus != rpc.ConfirmationStatusConfirmed &&
			status.ConfirmationStatus != rpc.ConfirmationStatusFinalized {
			return fmt.Errorf("%w: %s", htlc.ErrTxPending, status.ConfirmationStatus)
		}
	}
	return nil
}

func (c *RPCClient) GetHTLC(ctx context.Context, account solana.PublicKey) (*HTLCAccount, error) {
	out, err := c.client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Commitment: c.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, fmt.Errorf("%w: account %s", htlc.ErrNotFound, account)
	}
	if err != nil {
		return nil, err
	}
	if out == nil || out.Value == nil {
		return nil, fmt.Errorf("%w: account %s", htlc.ErrNotFound, account)
	}
	return DecodeHTLCAccount(out.Value.Data.GetBinary())
}
