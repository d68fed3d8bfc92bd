package aptosman

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aptos-labs/aptos-go-sdk"

	"github.com/TEENet-io/atomic-swap/htlc"
)

// Client signs with one account and talks to one fullnode.
type Client interface {
	Account() aptos.AccountAddress
	// Submit returns the hash of the submitted transaction.
	Submit(ctx context.Context, fn *aptos.EntryFunction) (string, error)
	// Confirm fails with htlc.ErrTxPending until the transaction is
	// committed, and with htlc.ErrChainSubmission carrying the vm status if
	// it was committed but aborted.
	Confirm(ctx context.Context, hash string) error
	// GetHTLC fails with htlc.ErrNotFound if the module has no entry for
	// hashLock.
	GetHTLC(ctx context.Context, hashLock [32]byte) (*HTLCView, error)
}

var abortErrors = map[string]error{
	AbortNotFound:           htlc.ErrNotFound,
	AbortHashMismatch:       htlc.ErrInvalidSecret,
	AbortNotActive:          htlc.ErrNotActive,
	AbortTimelockNotExpired: htlc.ErrTimelockNotExpired,
	AbortExpired:            htlc.ErrExpired,
	AbortExists:             htlc.ErrInvalidState,
	AbortInvalidAmount:      htlc.ErrConfigInvalid,
	AbortInvalidTimelock:    htlc.ErrConfigInvalid,
	AbortNotSender:          htlc.ErrInvalidState,
}

var retryableNodeErrors = []string{
	"SEQUENCE_NUMBER_TOO_OLD",
	"mempool is full",
	"429 Too Many Requests",
	"503 Service Unavailable",
}

func classify(err error) error {
	if err == nil || htlc.IsRetryable(err) {
		return err
	}
	msg := err.Error()
	if strings.Contains(msg, "Move abort") {
		for name, mapped := range abortErrors {
			if strings.Contains(msg, ": "+name+"(") {
				return fmt.Errorf("%w: %v", mapped, err)
			}
		}
		return err
	}
	for _, s := range retryableNodeErrors {
		if strings.Contains(msg, s) {
			return errors.Join(htlc.ErrTransient, err)
		}
	}
	return htlc.Transient(err)
}

// parseHTLCView decodes the json values of a get_htlc call.
func parseHTLCView(values []any) (*HTLCView, error) {
	if len(values) != 7 {
		return nil, fmt.Errorf("%s returned %d values, want 7", FuncGetHTLC, len(values))
	}

	nums := make([]uint64, 0, 5)
	for _, i := range []int{0, 3, 4, 5, 6} {
		n, err := parseU64(values[i])
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		nums = append(nums, n)
	}

	v := &HTLCView{
		Status:    uint8(nums[0]),
		Amount:    nums[1],
		TimeLock:  int64(nums[2]),
		CreatedAt: int64(nums[3]),
		ClosedAt:  int64(nums[4]),
	}
	for i, addr := range []*aptos.AccountAddress{&v.Sender, &v.Receiver} {
		s, ok := values[1+i].(string)
		if !ok {
			return nil, fmt.Errorf("value %d: not an address: %v", 1+i, values[1+i])
		}
		if err := addr.ParseStringRelaxed(s); err != nil {
			return nil, fmt.Errorf("value %d: %w", 1+i, err)
		}
	}
	return v, nil
}

// parseU64 accepts u64 as the decimal string the REST api returns and
// smaller integers as json numbers.
func parseU64(v any) (uint64, error) {
	switch n := v.(type) {
	case string:
		return strconv.ParseUint(n, 10, 64)
	case float64:
		if n < 0 || n != float64(uint64(n)) {
			return 0, fmt.Errorf("not an unsigned integer: %v", n)
		}
		return uint64(n), nil
	case json.Number:
		return strconv.ParseUint(n.String(), 10, 64)
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}
