package aptosman

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/lightningnetwork/lnd/clock"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/hashlock"
	"github.com/TEENet-io/atomic-swap/htlc"
)

// Adapter implements htlc.Adapter on top of the htlc Move module. Entries
// are keyed by hash lock, so the contract id is the hash lock itself.
type Adapter struct {
	cfg    *Config
	module aptos.AccountAddress
	client Client
	clock  clock.Clock
}

func NewAdapter(cfg *Config, client Client, clk clock.Clock) (*Adapter, error) {
	module := aptos.AccountAddress{}
	if err := module.ParseStringRelaxed(cfg.ModuleAddress); err != nil {
		return nil, fmt.Errorf("invalid module address %q: %w", cfg.ModuleAddress, err)
	}
	return &Adapter{cfg: cfg, module: module, client: client, clock: clk}, nil
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
		return "", fmt.Errorf("%w: only APT is supported", htlc.ErrConfigInvalid)
	}
	sender := aptos.AccountAddress{}
	if err := sender.ParseStringRelaxed(cfg.Sender); err != nil {
		return "", fmt.Errorf("%w: sender: %v", htlc.ErrConfigInvalid, err)
	}
	receiver := aptos.AccountAddress{}
	if err := receiver.ParseStringRelaxed(cfg.Receiver); err != nil {
		return "", fmt.Errorf("%w: receiver: %v", htlc.ErrConfigInvalid, err)
	}
	if sender != a.client.Account() {
		account := a.client.Account()
		return "", fmt.Errorf("%w: sender %s is not the account %s", htlc.ErrConfigInvalid, sender.String(), account.String())
	}
	octas, err := htlc.ToUint64(cfg.Amount, htlc.DecimalsAPT)
	if err != nil {
		return "", err
	}

	fn, err := NewCreatePayload(a.module, receiver, octas, cfg.HashLock, cfg.TimeLock)
	if err != nil {
		return "", fmt.Errorf("%w: %v", htlc.ErrConfigInvalid, err)
	}
	id := htlc.ContractID(common.Bytes32ToHexStr(cfg.HashLock))
	hash, resent, err := a.submit(ctx, htlc.OpCreate, id, fn)
	if err != nil {
		// a resent transaction aborts on the entry the first one created
		if resent && errors.Is(err, htlc.ErrInvalidState) && a.landed(ctx, id, cfg) {
			logger.WithFields(logger.Fields{
				"chain": a.Chain(),
				"id":    common.Shorten(string(id), 8),
			}).Warnf("htlc found on chain after failed submission: %v", err)
			return id, nil
		}
		return "", err
	}

	logger.WithFields(logger.Fields{
		"chain":  a.Chain(),
		"id":     common.Shorten(string(id), 8),
		"txHash": common.Shorten(hash, 8),
	}).Debug("htlc created")
	return id, nil
}

// landed reports whether contract id exists and matches cfg.
func (a *Adapter) landed(ctx context.Context, id htlc.ContractID, cfg *htlc.Config) bool {
	info, err := a.GetInfo(ctx, id)
	if err != nil {
		return false
	}
	sender, receiver := aptos.AccountAddress{}, aptos.AccountAddress{}
	if sender.ParseStringRelaxed(info.Config.Sender) != nil || receiver.ParseStringRelaxed(info.Config.Receiver) != nil {
		return false
	}
	want := aptos.AccountAddress{}
	if want.ParseStringRelaxed(cfg.Receiver) != nil {
		return false
	}
	return sender == a.client.Account() && receiver == want &&
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

	fn, err := NewClaimPayload(a.module, info.Config.HashLock, secret)
	if err != nil {
		return "", err
	}
	hash, _, err := a.submit(ctx, htlc.OpClaim, id, fn)
	if err != nil {
		return "", err
	}
	return htlc.TxRef(hash), nil
}

func (a *Adapter) Refund(ctx context.Context, id htlc.ContractID) (htlc.TxRef, error) {
	info, err := a.GetInfo(ctx, id)
	if err != nil {
		return "", err
	}
	if err := htlc.CheckRefundable(info, a.clock.Now()); err != nil {
		return "", err
	}

	fn, err := NewRefundPayload(a.module, info.Config.HashLock)
	if err != nil {
		return "", err
	}
	hash, _, err := a.submit(ctx, htlc.OpRefund, id, fn)
	if err != nil {
		return "", err
	}
	return htlc.TxRef(hash), nil
}

func (a *Adapter) GetInfo(ctx context.Context, id htlc.ContractID) (*htlc.Info, error) {
	hashLock, err := common.HexStrToBytes32(string(id))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed contract id %q", htlc.ErrNotFound, id)
	}

	var v *HTLCView
	err = htlc.Retry(ctx, a.cfg.Retry, a.Chain(), htlc.OpGetInfo, func() error {
		got, err := a.client.GetHTLC(ctx, hashLock)
		if err != nil {
			return classify(err)
		}
		v = got
		return nil
	})
	if err != nil {
		return nil, htlc.Submission(a.Chain(), htlc.OpGetInfo, err)
	}

	info := &htlc.Info{
		ContractID: id,
		Config: htlc.Config{
			Chain:    a.Chain(),
			Sender:   v.Sender.String(),
			Receiver: v.Receiver.String(),
			Amount:   htlc.FromBaseUnits(new(big.Int).SetUint64(v.Amount), htlc.DecimalsAPT),
			HashLock: hashLock,
			TimeLock: v.TimeLock,
		},
		CreatedAt: time.Unix(v.CreatedAt, 0),
	}
	switch v.Status {
	case StatusActive:
		info.Status = htlc.ObservedStatus(htlc.StatusActive, v.TimeLock, a.clock.Now())
	case StatusClaimed:
		info.Status = htlc.StatusCompleted
		info.CompletedAt = time.Unix(v.ClosedAt, 0)
	case StatusRefunded:
		info.Status = htlc.StatusRefunded
		info.RefundedAt = time.Unix(v.ClosedAt, 0)
	default:
		info.Status = htlc.StatusInactive
	}
	return info, nil
}

// submit sends fn for contract id and waits until it is committed. Aborts
// are reported at commit time and are never retried. resent reports whether
// the submission was retried; a wait that gives up returns an
// htlc.PendingError.
func (a *Adapter) submit(ctx context.Context, op string, id htlc.ContractID, fn *aptos.EntryFunction) (hash string, resent bool, err error) {
	attempts := 0
	err = htlc.Retry(ctx, a.cfg.Retry, a.Chain(), op, func() error {
		attempts++
		h, err := a.client.Submit(ctx, fn)
		if err != nil {
			return classify(err)
		}
		hash = h
		return nil
	})
	resent = attempts > 1
	if err != nil {
		return "", resent, htlc.Submission(a.Chain(), op, err)
	}

	err = htlc.Retry(ctx, a.cfg.Retry, a.Chain(), htlc.OpConfirm, func() error {
		return classify(a.client.Confirm(ctx, hash))
	})
	if err != nil {
		return "", resent, htlc.Unconfirmed(a.Chain(), op, id, htlc.TxRef(hash), err)
	}
	return hash, resent, nil
}
