package tonman

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	logger "github.com/sirupsen/logrus"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/hashlock"
	"github.com/TEENet-io/atomic-swap/htlc"
)

// Adapter implements htlc.Adapter on top of the TON HTLC vault. Only
// native TON is supported.
//
// Vault messages are processed asynchronously, so every call is confirmed
// by polling get_htlc until the entry shows the expected status.
type Adapter struct {
	cfg    *Config
	fee    tlb.Coins
	client Client
	clock  clock.Clock
}

func NewAdapter(cfg *Config, client Client, clk clock.Clock) (*Adapter, error) {
	fee, err := tlb.FromTON(cfg.ForwardFee)
	if err != nil {
		return nil, fmt.Errorf("invalid forward fee %q: %w", cfg.ForwardFee, err)
	}
	return &Adapter{cfg: cfg, fee: fee, client: client, clock: clk}, nil
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
		return "", fmt.Errorf("%w: jettons are not supported", htlc.ErrConfigInvalid)
	}
	sender, err := address.ParseAddr(cfg.Sender)
	if err != nil {
		return "", fmt.Errorf("%w: sender: %v", htlc.ErrConfigInvalid, err)
	}
	receiver, err := address.ParseAddr(cfg.Receiver)
	if err != nil {
		return "", fmt.Errorf("%w: receiver: %v", htlc.ErrConfigInvalid, err)
	}
	if !sameAddr(sender, a.client.Wallet()) {
		return "", fmt.Errorf("%w: sender %s is not the wallet %s", htlc.ErrConfigInvalid, sender, a.client.Wallet())
	}
	nano, err := htlc.ToBaseUnits(cfg.Amount, htlc.DecimalsTON)
	if err != nil {
		return "", err
	}

	id := ContractID(sender, receiver, nano, cfg.HashLock, cfg.TimeLock)
	body := NewCreateBody(newQueryID(), receiver, nano, cfg.HashLock, cfg.TimeLock)
	value := tlb.FromNanoTON(new(big.Int).Add(nano, a.fee.Nano()))
	contractID := htlc.ContractID(common.Bytes32ToHexStr(id))
	if err := a.send(ctx, htlc.OpCreate, id, body, value, VaultStatusActive); err != nil {
		return "", err
	}

	logger.WithFields(logger.Fields{
		"chain":    a.Chain(),
		"id":       common.Shorten(string(contractID), 8),
		"hashLock": common.Shorten(cfg.HashLock.String(), 8),
	}).Debug("htlc created")
	return contractID, nil
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
	key, _ := common.HexStrToBytes32(string(id))
	var s [32]byte
	copy(s[:], secret)

	body := NewClaimBody(newQueryID(), key, s)
	if err := a.send(ctx, htlc.OpClaim, key, body, a.fee, VaultStatusClaimed); err != nil {
		return "", err
	}
	return txRef(body), nil
}

func (a *Adapter) Refund(ctx context.Context, id htlc.ContractID) (htlc.TxRef, error) {
	info, err := a.GetInfo(ctx, id)
	if err != nil {
		return "", err
	}
	if err := htlc.CheckRefundable(info, a.clock.Now()); err != nil {
		return "", err
	}
	key, _ := common.HexStrToBytes32(string(id))

	body := NewRefundBody(newQueryID(), key)
	if err := a.send(ctx, htlc.OpRefund, key, body, a.fee, VaultStatusRefunded); err != nil {
		return "", err
	}
	return txRef(body), nil
}

func (a *Adapter) GetInfo(ctx context.Context, id htlc.ContractID) (*htlc.Info, error) {
	key, err := common.HexStrToBytes32(string(id))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed contract id %q", htlc.ErrNotFound, id)
	}

	var e *VaultEntry
	err = htlc.Retry(ctx, a.cfg.Retry, a.Chain(), htlc.OpGetInfo, func() error {
		got, err := a.client.GetHTLC(ctx, key)
		if err != nil {
			return classify(err)
		}
		e = got
		return nil
	})
	if err != nil {
		return nil, htlc.Submission(a.Chain(), htlc.OpGetInfo, err)
	}

	info := &htlc.Info{
		ContractID: id,
		Config: htlc.Config{
			Chain:    a.Chain(),
			Sender:   e.Sender.String(),
			Receiver: e.Receiver.String(),
			Amount:   htlc.FromBaseUnits(e.Amount, htlc.DecimalsTON),
			HashLock: e.HashLock,
			TimeLock: e.TimeLock,
		},
		CreatedAt: time.Unix(e.CreatedAt, 0),
	}
	switch e.Status {
	case VaultStatusActive:
		info.Status = htlc.ObservedStatus(htlc.StatusActive, e.TimeLock, a.clock.Now())
	case VaultStatusClaimed:
		info.Status = htlc.StatusCompleted
		info.CompletedAt = time.Unix(e.ClosedAt, 0)
	case VaultStatusRefunded:
		info.Status = htlc.StatusRefunded
		info.RefundedAt = time.Unix(e.ClosedAt, 0)
	default:
		info.Status = htlc.StatusInactive
	}
	return info, nil
}

// send delivers body to the vault and polls the entry for id until it
// reaches want. A landed wallet transaction is never resent; a poll that
// gives up returns an htlc.PendingError.
func (a *Adapter) send(ctx context.Context, op string, id [32]byte, body *cell.Cell, value tlb.Coins, want uint8) error {
	err := htlc.Retry(ctx, a.cfg.Retry, a.Chain(), op, func() error {
		return classify(a.client.Send(ctx, body, value))
	})
	if err != nil {
		return htlc.Submission(a.Chain(), op, err)
	}

	err = htlc.Retry(ctx, a.cfg.Retry, a.Chain(), htlc.OpConfirm, func() error {
		e, err := a.client.GetHTLC(ctx, id)
		if errors.Is(err, htlc.ErrNotFound) {
			return htlc.ErrTxPending
		}
		if err != nil {
			return classify(err)
		}
		switch e.Status {
		case want:
			return nil
		case VaultStatusActive:
			return htlc.ErrTxPending
		}
		return fmt.Errorf("%w: vault entry closed with status %d", htlc.ErrNotActive, e.Status)
	})
	if err != nil {
		return htlc.Unconfirmed(a.Chain(), op, htlc.ContractID(common.Bytes32ToHexStr(id)), txRef(body), err)
	}
	return nil
}

func sameAddr(a, b *address.Address) bool {
	return a.Workchain() == b.Workchain() && bytes.Equal(a.Data(), b.Data())
}

func newQueryID() uint64 {
	return binary.BigEndian.Uint64(common.RandBytes(8))
}

// txRef identifies a sent message by its body hash.
func txRef(body *cell.Cell) htlc.TxRef {
	var h [32]byte
	copy(h[:], body.Hash())
	return htlc.TxRef(common.Bytes32ToHexStr(h))
}
