package tonman

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/TEENet-io/atomic-swap/htlc"
)

// Client sends internal messages to the vault from one wallet.
type Client interface {
	Wallet() *address.Address
	// Send returns once the wallet transaction carrying body is included.
	// The vault processes the message asynchronously.
	Send(ctx context.Context, body *cell.Cell, value tlb.Coins) error
	// GetHTLC fails with htlc.ErrNotFound if the vault has no entry for id.
	GetHTLC(ctx context.Context, id [32]byte) (*VaultEntry, error)
}

var exitErrors = map[int32]error{
	ExitNotFound:           htlc.ErrNotFound,
	ExitInvalidSecret:      htlc.ErrInvalidSecret,
	ExitNotActive:          htlc.ErrNotActive,
	ExitTimelockNotExpired: htlc.ErrTimelockNotExpired,
	ExitExpired:            htlc.ErrExpired,
	ExitAlreadyExists:      htlc.ErrInvalidState,
	ExitInvalidAmount:      htlc.ErrConfigInvalid,
	ExitInvalidTimelock:    htlc.ErrConfigInvalid,
	ExitNotSender:          htlc.ErrInvalidState,
}

var retryableLiteErrors = []string{
	"timeout",
	"no active connections",
	"connection closed",
	"adnl",
}

func classify(err error) error {
	if err == nil || htlc.IsRetryable(err) {
		return err
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		if mapped, ok := exitErrors[exit.Code]; ok {
			return fmt.Errorf("%w: %v", mapped, err)
		}
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableLiteErrors {
		if strings.Contains(msg, s) {
			return errors.Join(htlc.ErrTransient, err)
		}
	}
	return htlc.Transient(err)
}
