package solman

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/lightningnetwork/lnd/clock"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/hashlock"
	"github.com/TEENet-io/atomic-swap/htlc"
)

// Adapter implements htlc.Adapter on top of the Solana HTLC program. Only
// native SOL is supported.
type Adapter struct {
	cfg       *Config
	programID solana.PublicKey
	client    Client
	clock     clock.Clock
}

func NewAdapter(cfg *Config, client Client, clk clock.Clock) (*Adapter, error) {
	programID, err := solana.PublicKeyFromBase58(cfg.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("invalid program id %q: %w", cfg.ProgramID, err)
	}
	return &Adapter{cfg: cfg, programID: programID, client: client, clock: clk}, nil
}

func (a *Adapter) Chain() htlc.ChainID {
	return a.cfg.ChainID
}

func (a *Adapter) Create(ctx context.Context, cfg *htlc.Config) (htlc.ContractID, error) {
	if cfg.Chain != a.Chain() {
		return "", fmt.Errorf("%w: config for %s sent to %s", htlc.ErrConfigInvalid, cfg.Chain, a.Chain())
	}
	if err := cfg.Validate(a.clock.Now()); err != nil {
		return "", err
	}
	if cfg.Token != "" {
		return "", fmt.Errorf("%w: spl tokens are not supported", htlc.ErrConfigInvalid)
	}
	sender, err := solana.PublicKeyFromBase58(cfg.Sender)
	if err != nil {
		return "", fmt.Errorf("%w: sender: %v", htlc.ErrConfigInvalid, err)
	}
	receiver, err := solana.PublicKeyFromBase58(cfg.Receiver)
	if err != nil {
		return "", fmt.Errorf("%w: receiver: %v", htlc.ErrConfigInvalid, err)
	}
	if !sender.Equals(a.client.Payer()) {
		return "", fmt.Errorf("%w: sender %s is not the payer %s", htlc.ErrConfigInvalid, sender, a.client.Payer())
	}
	lamports, err := htlc.ToUint64(cfg.Amount, htlc.DecimalsSOL)
	if err != nil {
		return "", err
	}
	account, err := FindHTLCAddress(a.programID, cfg.HashLock)
	if err != nil {
		return "", fmt.Errorf("%w: %v", htlc.ErrConfigInvalid, err)
	}

	id := htlc.ContractID(account.String())

	ix := NewCreateInstruction(a.programID, sender, receiver, account, cfg.HashLock, cfg.TimeLock, lamports)
	sig, resent, err := a.send(ctx, htlc.OpCreate, id, ix)
	if err != nil {
		// a resent instruction hits the account the first one created
		if resent && errors.Is(err, htlc.ErrInvalidState) && a.landed(ctx, id, cfg) {
			logger.WithFields(logger.Fields{
				"chain":   a.Chain(),
				"account": account.String(),
			}).Warnf("htlc found on chain after failed submission: %v", err)
			return id, nil
		}
		return "", err
	}

	logger.WithFields(logger.Fields{
		"chain":    a.Chain(),
		"account":  account.String(),
		"sig":      sig.String(),
		"hashLock": common.Shorten(cfg.HashLock.String(), 8),
	}).Debug("htlc created")
	return id, nil
}

// landed reports whether contract id exists and matches cfg.
func (a *Adapter) landed(ctx context.Context, id htlc.ContractID, cfg *htlc.Config) bool {
	info, err := a.GetInfo(ctx, id)
	if err != nil {
		return false
	}
	return info.Config.HashLock == cfg.HashLock &&
		info.Config.Sender == cfg.Sender &&
		info.Config.Receiver == cfg.Receiver &&
		info.Config.TimeLock == cfg.TimeLock &&
		info.Config.Amount.Equal(cfg.Amount)
}

func (a *Adapter) Claim(ctx context.Context, id htlc.ContractID, secret hashlock.Secret) (htlc.TxRef, error) {
	info, err := a.GetInfo(ctx, id)
	if err != nil {
		return "", err
	}
	if err := htlc.CheckClaimable(info, secret); err != nil {
		return "", err
	}
	if len(secret) != hashlock.SecretSize {
		return "", fmt.Errorf("%w: secret must be 32 bytes", htlc.ErrInvalidSecret)
	}
	account, _ := solana.PublicKeyFromBase58(string(id))
	receiver, err := solana.PublicKeyFromBase58(info.Config.Receiver)
	if err != nil {
		return "", err
	}
	var s [32]byte
	copy(s[:], secret)

	sig, _, err := a.send(ctx, htlc.OpClaim, id, NewClaimInstruction(a.programID, a.client.Payer(), receiver, account, s))
	if err != nil {
		return "", err
	}
	return htlc.TxRef(sig.String()), nil
}

func (a *Adapter) Refund(ctx context.Context, id htlc.ContractID) (htlc.TxRef, error) {
	info, err := a.GetInfo(ctx, id)
	if err != nil {
		return "", err
	}
	if err := htlc.CheckRefundable(info, a.clock.Now()); err != nil {
		return "", err
	}
	account, _ := solana.PublicKeyFromBase58(string(id))

	sig, _, err := a.send(ctx, htlc.OpRefund, id, NewRefundInstruction(a.programID, a.client.Payer(), account))
	if err != nil {
		return "", err
	}
	return htlc.TxRef(sig.String()), nil
}

func (a *Adapter) GetInfo(ctx context.Context, id htlc.ContractID) (*htlc.Info, error) {
	account, err := solana.PublicKeyFromBase58(string(id))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed contract id %q", htlc.ErrNotFound, id)
	}

	var acc *HTLCAccount
	err = htlc.Retry(ctx, a.cfg.Retry, a.Chain(), htlc.OpGetInfo, func() error {
		got, err := a.client.GetHTLC(ctx, account)
		if err != nil {
			return classify(err)
		}
		acc = got
		return nil
	})
	if err != nil {
		return nil, htlc.Submission(a.Chain(), htlc.OpGetInfo, err)
	}

	info := &htlc.Info{
		ContractID: id,
		Config: htlc.Config{
			Chain:    a.Chain(),
			Sender:   acc.Sender.String(),
			Receiver: acc.Receiver.String(),
			Amount:   htlc.FromBaseUnits(new(big.Int).SetUint64(acc.Amount), htlc.DecimalsSOL),
			HashLock: acc.HashLock,
			TimeLock: acc.TimeLock,
		},
		CreatedAt: time.Unix(acc.CreatedAt, 0),
	}
	switch acc.Status {
	case StatusActive:
		info.Status = htlc.ObservedStatus(htlc.StatusActive, acc.TimeLock, a.clock.Now())
	case StatusClaimed:
		info.Status = htlc.StatusCompleted
		info.CompletedAt = time.Unix(acc.ClosedAt, 0)
	case StatusRefunded:
		info.Status = htlc.StatusRefunded
		info.RefundedAt = time.Unix(acc.ClosedAt, 0)
	default:
		info.Status = htlc.StatusInactive
	}
	return info, nil
}

// send submits ix for contract id and waits for the configured commitment.
// Only failures to reach the cluster are retried, and resent reports
// whether that happened. The signature is confirmed separately so that a
// landed transaction is never sent twice; a confirmation that gives up
// returns an htlc.PendingError.
func (a *Adapter) send(ctx context.Context, op string, id htlc.ContractID, ix solana.Instruction) (sig solana.Signature, resent bool, err error) {
	attempts := 0
	err = htlc.Retry(ctx, a.cfg.Retry, a.Chain(), op, func() error {
		attempts++
		s, err := a.client.Send(ctx, ix)
		if err != nil {
			return classify(err)
		}
		sig = s
		return nil
	})
	resent = attempts > 1
	if err != nil {
		return solana.Signature{}, resent, htlc.Submission(a.Chain(), op, err)
	}

	err = htlc.Retry(ctx, a.cfg.Retry, a.Chain(), htlc.OpConfirm, func() error {
		return classify(a.client.Confirm(ctx, sig))
	})
	if err != nil {
		return solana.Signature{}, resent, htlc.Unconfirmed(a.Chain(), op, id, htlc.TxRef(sig.String()), err)
	}
	return sig, resent, nil
}
