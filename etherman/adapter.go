package etherman

import (
	"context"
	"fmt"
	"math/big"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/lightningnetwork/lnd/clock"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/hashlock"
	"github.com/TEENet-io/atomic-swap/htlc"
)

// Adapter implements htlc.Adapter for EVM chains running HashedTimelock.
type Adapter struct {
	cfg    *Config
	client Client
	clock  clock.Clock
}

func NewAdapter(cfg *Config, client Client, clk clock.Clock) *Adapter {
	return &Adapter{cfg: cfg, client: client, clock: clk}
}

func (a *Adapter) Chain() htlc.ChainID {
	return a.cfg.ChainID
}

func (a *Adapter) Create(ctx context.Context, cfg *htlc.Config) (htlc.ContractID, error) {
	params, err := a.newContractParams(cfg)
	if err != nil {
		return "", err
	}
	ref := NewContractRef(a.client.From(), params)
	id := ref.ContractID()

	var (
		txHash   ethcommon.Hash
		attempts int
	)
	err = htlc.Retry(ctx, a.cfg.Retry, a.Chain(), htlc.OpCreate, func() error {
		attempts++
		h, err := a.client.NewContract(ctx, params)
		if err != nil {
			return classify(err)
		}
		txHash = h
		return nil
	})
	if err != nil {
		// a resent transaction reverts once the first one landed
		if attempts > 1 && a.landed(ctx, id, cfg) {
			logger.WithFields(logger.Fields{
				"chain": a.Chain(),
				"id":    common.Shorten(string(id), 8),
			}).Warnf("htlc found on chain after failed submission: %v", err)
			return id, nil
		}
		return "", htlc.Submission(a.Chain(), htlc.OpCreate, err)
	}

	receipt, err := a.waitReceipt(ctx, htlc.OpCreate, id, txHash)
	if err != nil {
		return "", err
	}

	got, err := contractRefFromReceipt(receipt, ref.ERC20)
	if err != nil {
		return "", htlc.Submission(a.Chain(), htlc.OpCreate, err)
	}
	if got != ref {
		logger.WithFields(logger.Fields{
			"chain":    a.Chain(),
			"expected": common.Shorten(string(id), 8),
			"got":      common.Shorten(string(got.ContractID()), 8),
		}).Warn("htlc id differs from the computed one")
		id = got.ContractID()
	}

	logger.WithFields(logger.Fields{
		"chain":    a.Chain(),
		"id":       common.Shorten(string(id), 8),
		"tx":       txHash.Hex(),
		"hashLock": common.Shorten(cfg.HashLock.String(), 8),
	}).Debug("htlc created")
	return id, nil
}

// landed reports whether contract id exists and was locked by cfg.
func (a *Adapter) landed(ctx context.Context, id htlc.ContractID, cfg *htlc.Config) bool {
	info, err := a.GetInfo(ctx, id)
	if err != nil {
		return false
	}
	return info.Config.HashLock == cfg.HashLock &&
		ethcommon.HexToAddress(info.Config.Sender) == ethcommon.HexToAddress(cfg.Sender)
}

func (a *Adapter) Claim(ctx context.Context, id htlc.ContractID, secret hashlock.Secret) (htlc.TxRef, error) {
	info, err := a.GetInfo(ctx, id)
	if err != nil {
		return "", err
	}
	if err := htlc.CheckClaimable(info, secret); err != nil {
		return "", err
	}
	if len(secret) != 32 {
		return "", fmt.Errorf("%w: preimage must be 32 bytes", htlc.ErrInvalidSecret)
	}
	ref, _ := ParseContractID(id)
	var preimage [32]byte
	copy(preimage[:], secret)

	var txHash ethcommon.Hash
	err = htlc.Retry(ctx, a.cfg.Retry, a.Chain(), htlc.OpClaim, func() error {
		h, err := a.client.Withdraw(ctx, ref, preimage)
		if err != nil {
			return classify(err)
		}
		txHash = h
		return nil
	})
	if err != nil {
		return "", htlc.Submission(a.Chain(), htlc.OpClaim, err)
	}
	if _, err := a.waitReceipt(ctx, htlc.OpClaim, id, txHash); err != nil {
		return "", err
	}
	return htlc.TxRef(txHash.Hex()), nil
}

func (a *Adapter) Refund(ctx context.Context, id htlc.ContractID) (htlc.TxRef, error) {
	info, err := a.GetInfo(ctx, id)
	if err != nil {
		return "", err
	}
	if err := htlc.CheckRefundable(info, a.clock.Now()); err != nil {
		return "", err
	}
	ref, _ := ParseContractID(id)

	var txHash ethcommon.Hash
	err = htlc.Retry(ctx, a.cfg.Retry, a.Chain(), htlc.OpRefund, func() error {
		h, err := a.client.Refund(ctx, ref)
		if err != nil {
			return classify(err)
		}
		txHash = h
		return nil
	})
	if err != nil {
		return "", htlc.Submission(a.Chain(), htlc.OpRefund, err)
	}
	if _, err := a.waitReceipt(ctx, htlc.OpRefund, id, txHash); err != nil {
		return "", err
	}
	return htlc.TxRef(txHash.Hex()), nil
}

func (a *Adapter) GetInfo(ctx context.Context, id htlc.ContractID) (*htlc.Info, error) {
	ref, err := ParseContractID(id)
	if err != nil {
		return nil, err
	}

	var c *Contract
	err = htlc.Retry(ctx, a.cfg.Retry, a.Chain(), htlc.OpGetInfo, func() error {
		got, err := a.client.GetContract(ctx, ref)
		if err != nil {
			return classify(err)
		}
		c = got
		return nil
	})
	if err != nil {
		return nil, htlc.Submission(a.Chain(), htlc.OpGetInfo, err)
	}
	if c.Sender == (ethcommon.Address{}) {
		return nil, fmt.Errorf("%w: contract %s", htlc.ErrNotFound, id)
	}

	decimals := int32(htlc.DecimalsEther)
	token := ""
	if ref.ERC20 {
		token = c.Token.Hex()
		d, ok := a.cfg.tokenDecimals(token)
		if !ok {
			return nil, fmt.Errorf("%w: unknown token %s", htlc.ErrConfigInvalid, token)
		}
		decimals = d
	}

	status := htlc.StatusActive
	switch {
	case c.Withdrawn:
		status = htlc.StatusCompleted
	case c.Refunded:
		status = htlc.StatusRefunded
	}
	timeLock := c.TimeLock.Int64()

	return &htlc.Info{
		ContractID: id,
		Config: htlc.Config{
			Chain:    a.Chain(),
			Token:    token,
			Sender:   c.Sender.Hex(),
			Receiver: c.Receiver.Hex(),
			Amount:   htlc.FromBaseUnits(c.Amount, decimals),
			HashLock: c.HashLock,
			TimeLock: timeLock,
		},
		Status: htlc.ObservedStatus(status, timeLock, a.clock.Now()),
	}, nil
}

func (a *Adapter) newContractParams(cfg *htlc.Config) (*NewContractParams, error) {
	if cfg.Chain != a.Chain() {
		return nil, fmt.Errorf("%w: config for %s sent to %s", htlc.ErrConfigInvalid, cfg.Chain, a.Chain())
	}
	if err := cfg.Validate(a.clock.Now()); err != nil {
		return nil, err
	}
	if !ethcommon.IsHexAddress(cfg.Sender) || !ethcommon.IsHexAddress(cfg.Receiver) {
		return nil, fmt.Errorf("%w: sender and receiver must be hex addresses", htlc.ErrConfigInvalid)
	}
	if ethcommon.HexToAddress(cfg.Sender) != a.client.From() {
		return nil, fmt.Errorf("%w: sender %s is not the wallet %s", htlc.ErrConfigInvalid, cfg.Sender, a.client.From().Hex())
	}

	decimals := int32(htlc.DecimalsEther)
	var token ethcommon.Address
	if cfg.Token != "" {
		if !ethcommon.IsHexAddress(cfg.Token) {
			return nil, fmt.Errorf("%w: token must be a hex address", htlc.ErrConfigInvalid)
		}
		d, ok := a.cfg.tokenDecimals(cfg.Token)
		if !ok {
			return nil, fmt.Errorf("%w: unknown token %s", htlc.ErrConfigInvalid, cfg.Token)
		}
		decimals = d
		token = ethcommon.HexToAddress(cfg.Token)
	}

	amount, err := htlc.ToBaseUnits(cfg.Amount, decimals)
	if err != nil {
		return nil, err
	}

	return &NewContractParams{
		Receiver: ethcommon.HexToAddress(cfg.Receiver),
		HashLock: cfg.HashLock,
		TimeLock: big.NewInt(cfg.TimeLock),
		Amount:   amount,
		Token:    token,
	}, nil
}

// waitReceipt waits for txHash, sent by op on contract id. A wait that gives
// up returns an htlc.PendingError.
func (a *Adapter) waitReceipt(ctx context.Context, op string, id htlc.ContractID, txHash ethcommon.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt
	err := htlc.Retry(ctx, a.cfg.Retry, a.Chain(), htlc.OpConfirm, func() error {
		r, err := a.client.Receipt(ctx, txHash, a.cfg.Confirmations)
		if err != nil {
			return classify(err)
		}
		receipt = r
		return nil
	})
	if err != nil {
		return nil, htlc.Unconfirmed(a.Chain(), op, id, htlc.TxRef(txHash.Hex()), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, htlc.Submission(a.Chain(), op, fmt.Errorf("transaction %s reverted", txHash.Hex()))
	}
	return receipt, nil
}

func contractRefFromReceipt(receipt *types.Receipt, erc20 bool) (ContractRef, error) {
	topic := LogHTLCNewSignatureHash
	if erc20 {
		topic = HTLCERC20NewSignatureHash
	}
	for _, l := range receipt.Logs {
		if len(l.Topics) >= 2 && l.Topics[0] == topic {
			return ContractRef{ERC20: erc20, ID: l.Topics[1]}, nil
		}
	}
	return ContractRef{}, fmt.Errorf("no creation event in receipt %s", receipt.TxHash.Hex())
}
