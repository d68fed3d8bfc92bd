package htlc

import (
	"context"
	"time"

	"github.com/TEENet-io/atomic-swap/hashlock"
)

const (
	OpCreate  = "create"
	OpClaim   = "claim"
	OpRefund  = "refund"
	OpGetInfo = "getInfo"
	OpConfirm = "confirm"
)

// Adapter drives the HTLC contract of one chain.
//
// Create locks funds and returns an id usable by the other calls. Claim and
// Refund are not idempotent: a second call on a closed contract fails with
// ErrNotActive.
type Adapter interface {
	Chain() ChainID
	Create(ctx context.Context, cfg *Config) (ContractID, error)
	Claim(ctx context.Context, id ContractID, secret hashlock.Secret) (TxRef, error)
	Refund(ctx context.Context, id ContractID) (TxRef, error)
	GetInfo(ctx context.Context, id ContractID) (*Info, error)
}

// CheckClaimable returns the error a claim of info with secret would hit on
// chain, or nil.
func CheckClaimable(info *Info, secret []byte) error {
	switch info.Status {
	case StatusActive:
	case StatusExpired:
		return ErrExpired
	default:
		return ErrNotActive
	}
	if !hashlock.Verify(secret, info.Config.HashLock) {
		return ErrInvalidSecret
	}
	return nil
}

// CheckRefundable returns the error a refund of info at now would hit on
// chain, or nil.
func CheckRefundable(info *Info, now time.Time) error {
	if !info.IsOpen() {
		return ErrNotActive
	}
	if now.Unix() < info.Config.TimeLock {
		return ErrTimelockNotExpired
	}
	return nil
}
