package solman

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/TEENet-io/atomic-swap/htlc"
)

// Client signs with the payer key and talks to one cluster.
type Client interface {
	Payer() solana.PublicKey
	Send(ctx context.Context, ix solana.Instruction) (solana.Signature, error)
	// Confirm fails with htlc.ErrTxPending until the transaction reached the
	// configured commitment.
	Confirm(ctx context.Context, sig solana.Signature) error
	// GetHTLC fails with htlc.ErrNotFound if the account does not exist.
	GetHTLC(ctx context.Context, account solana.PublicKey) (*HTLCAccount, error)
}

var customErrRegexp = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

var programErrors = map[int]error{
	ErrCodeInvalidSecret:         htlc.ErrInvalidSecret,
	ErrCodeNotActive:             htlc.ErrNotActive,
	ErrCodeTimelockNotExpired:    htlc.ErrTimelockNotExpired,
	ErrCodeExpired:               htlc.ErrExpired,
	ErrCodeInvalidAmount:         htlc.ErrConfigInvalid,
	ErrCodeInvalidTimelock:       htlc.ErrConfigInvalid,
	ErrCodeNotSender:             htlc.ErrInvalidState,
	ErrCodeAccountNotInitialized: htlc.ErrNotFound,
}

func programError(code int) error {
	return fmt.Errorf("Transaction simulation failed: Error processing Instruction 0: custom program error: 0x%x", code)
}

// classify maps rpc / program failures onto the htlc taxonomy.
func classify(err error) error {
	if err == nil || htlc.IsRetryable(err) {
		return err
	}
	msg := err.Error()
	if m := customErrRegexp.FindStringSubmatch(msg); m != nil {
		code, perr := strconv.ParseInt(m[1], 16, 32)
		if perr == nil {
			if mapped, ok := programErrors[int(code)]; ok {
				return fmt.Errorf("%w: %v", mapped, err)
			}
		}
		return err
	}
	switch {
	case strings.Contains(msg, "already in use"):
		return fmt.Errorf("%w: %v", htlc.ErrInvalidState, err)
	case strings.Contains(msg, "Blockhash not found"),
		strings.Contains(msg, "block height exceeded"),
		strings.Contains(msg, "Node is behind"):
		return errors.Join(htlc.ErrTransient, err)
	}
	return htlc.Transient(err)
}
