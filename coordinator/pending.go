package coordinator

import (
	"context"
	"errors"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/atomic-swap/audit"
	"github.com/TEENet-io/atomic-swap/htlc"
	"github.com/TEENet-io/atomic-swap/swap"
)

// pending records a transaction of op on leg that was sent but not
// confirmed. The swap keeps its status until the outcome is known.
func (c *Coordinator) pending(ctx context.Context, info *swap.Info, op string, leg swap.Leg, cause *htlc.PendingError) error {
	info.PendingOp = op
	info.PendingLeg = leg
	info.PendingTx = cause.Tx
	info.FailureReason = cause.Error()

	logger.WithFields(logger.Fields{
		"swapId":   info.ID,
		"op":       op,
		"leg":      leg,
		"contract": cause.ID,
		"tx":       cause.Tx,
	}).Warnf("swap transaction unconfirmed: %v", cause.Err)
	c.emit(ctx, audit.EventTxUnconfirmed, info, map[string]any{
		"op":       op,
		"leg":      leg,
		"chain":    info.Chain(leg),
		"contract": cause.ID,
		"tx":       cause.Tx,
	})

	var err error = cause
	if perr := c.persist(ctx, info, true); perr != nil {
		err = errors.Join(cause, perr)
	}
	return &SwapError{Op: op, Swap: info.Redacted(), Err: err}
}

// checkPending refuses op on leg while another transaction of the swap is
// unconfirmed. Sending the same claim or refund again is allowed.
func checkPending(info *swap.Info, op string, leg swap.Leg) error {
	if info.PendingOp == "" || (info.PendingOp == op && info.PendingLeg == leg) {
		return nil
	}
	return fmt.Errorf("%w: swap %s waits for its %s transaction on the %s leg",
		htlc.ErrUnconfirmed, info.ID, info.PendingOp, info.PendingLeg)
}

func unsettled(info *swap.Info) error {
	return &SwapError{
		Op:   info.PendingOp,
		Swap: info.Redacted(),
		Err:  fmt.Errorf("%w: %s transaction %s not visible yet", htlc.ErrUnconfirmed, info.PendingOp, info.PendingTx),
	}
}

// ResumeSwap settles a transaction an earlier operation left unconfirmed by
// reading the leg it was sent to. While the outcome is still open it fails
// with htlc.ErrUnconfirmed and changes nothing.
func (c *Coordinator) ResumeSwap(ctx context.Context, id string) (*swap.Info, error) {
	unlock := c.lock(id)
	defer unlock()

	info, err := c.load(id)
	if err != nil {
		return nil, err
	}
	if info.PendingOp == "" {
		return nil, fmt.Errorf("%w: swap %s has no unconfirmed transaction", htlc.ErrInvalidState, id)
	}
	op, leg := info.PendingOp, info.PendingLeg
	adapter, err := c.adapter(info.Chain(leg))
	if err != nil {
		return nil, err
	}
	got, err := adapter.GetInfo(ctx, info.ContractID(leg))
	missing := errors.Is(err, htlc.ErrNotFound)
	if err != nil && !missing {
		return nil, err
	}

	switch op {
	case OpInitiate, OpParticipate:
		if !missing {
			if op == OpInitiate {
				return c.initiated(ctx, info)
			}
			return c.participated(ctx, info)
		}
		// creations with a past time lock are rejected on chain
		if c.clock.Now().Unix() < info.TimeLock(leg) {
			return nil, unsettled(info)
		}
		cause := fmt.Errorf("%w: %s transaction %s never landed", htlc.ErrChainSubmission, op, info.PendingTx)
		if leg == swap.LegSource {
			info.SourceContractID = ""
		} else {
			info.DestinationContractID = ""
			info.DestinationTimeLock = 0
		}
		return nil, c.fail(ctx, info, op, cause)

	case OpClaim, OpComplete:
		if missing {
			return nil, err
		}
		switch got.Status {
		case htlc.StatusCompleted:
			if op == OpClaim {
				return c.claimed(ctx, info, info.PendingTx, got.CompletedAt)
			}
			return c.completed(ctx, info, info.PendingTx, got.CompletedAt)
		case htlc.StatusActive:
			return nil, unsettled(info)
		}

	case OpRefund:
		if missing {
			return nil, err
		}
		switch got.Status {
		case htlc.StatusRefunded:
			return c.refunded(ctx, info, leg, info.PendingTx, got.RefundedAt)
		case htlc.StatusExpired:
			return nil, unsettled(info)
		}

	default:
		return nil, fmt.Errorf("%w: swap %s has unknown pending operation %q", htlc.ErrInvalidState, id, op)
	}

	// the leg closed another way, so the transaction can no longer land
	tx := info.PendingTx
	info.ClearPending()
	return nil, c.note(ctx, info, op, fmt.Errorf("%w: %s transaction %s did not land before the %s leg became %s",
		htlc.ErrNotActive, op, tx, leg, got.Status))
}

// ResumePending runs ResumeSwap on every swap with an unconfirmed
// transaction and returns how many were settled.
func (c *Coordinator) ResumePending(ctx context.Context) int {
	settled := 0
	for _, info := range c.snapshot() {
		if info.PendingOp == "" {
			continue
		}
		_, err := c.ResumeSwap(ctx, info.ID)
		switch {
		case err == nil:
			settled++
		case errors.Is(err, htlc.ErrUnconfirmed):
			logger.WithField("swapId", info.ID).Debug("swap transaction still unconfirmed")
		default:
			// an error that settled the swap still leaves nothing pending
			if got, gerr := c.GetSwapInfo(info.ID); gerr == nil && got.PendingOp == "" {
				settled++
			}
			logger.WithField("swapId", info.ID).Warnf("failed to resume swap: %v", err)
		}
	}
	return settled
}
