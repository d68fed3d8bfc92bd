package htlc

import (
	"errors"
	"fmt"
)

var (
	ErrConfigInvalid      = errors.New("invalid config")
	ErrUnsupportedChain   = errors.New("unsupported chain")
	ErrChainSubmission    = errors.New("chain submission failed")
	ErrNotFound           = errors.New("not found")
	ErrInvalidState       = errors.New("invalid state")
	ErrNotActive          = fmt.Errorf("%w: htlc not active", ErrInvalidState)
	ErrExpired            = fmt.Errorf("%w: time lock passed", ErrNotActive)
	ErrInvalidSecret      = errors.New("invalid secret")
	ErrTimelockNotExpired = errors.New("time lock not expired")
	ErrStoreIO            = errors.New("store io error")
	// ErrUnconfirmed means a transaction was accepted but its outcome is
	// unknown. It is never retried by Retry.
	ErrUnconfirmed = errors.New("transaction unconfirmed")

	// retryable
	ErrTxPending = errors.New("transaction pending")
	ErrTransient = errors.New("transient chain error")
)

// SubmissionError is returned when a chain rejected or never accepted a
// transaction.
type SubmissionError struct {
	Chain ChainID
	Op    string
	Err   error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrChainSubmission, e.Chain, e.Op, e.Err)
}

func (e *SubmissionError) Unwrap() error {
	return e.Err
}

func (e *SubmissionError) Is(target error) bool {
	return target == ErrChainSubmission
}

// PendingError is returned when a transaction was sent but could not be
// confirmed. ID and Tx identify what may already be on chain.
type PendingError struct {
	Chain ChainID
	Op    string
	ID    ContractID
	Tx    TxRef
	Err   error
}

func (e *PendingError) Error() string {
	return fmt.Sprintf("%s: %s %s of %s (tx %s): %v", ErrUnconfirmed, e.Chain, e.Op, e.ID, e.Tx, e.Err)
}

func (e *PendingError) Unwrap() error {
	return e.Err
}

func (e *PendingError) Is(target error) bool {
	return target == ErrUnconfirmed
}

// verdict reports whether err already tells what happened on chain.
func verdict(err error) bool {
	for _, known := range []error{
		ErrChainSubmission, ErrConfigInvalid, ErrNotFound, ErrInvalidState,
		ErrInvalidSecret, ErrTimelockNotExpired, ErrUnconfirmed,
	} {
		if errors.Is(err, known) {
			return true
		}
	}
	return false
}

// Submission wraps err unless it already belongs to the taxonomy.
func Submission(chain ChainID, op string, err error) error {
	if err == nil {
		return nil
	}
	if verdict(err) {
		return err
	}
	return &SubmissionError{Chain: chain, Op: op, Err: err}
}

// Unconfirmed wraps a failed confirmation of tx, sent by op on contract id.
// Errors that already tell the outcome are returned unchanged.
func Unconfirmed(chain ChainID, op string, id ContractID, tx TxRef, err error) error {
	if err == nil {
		return nil
	}
	if verdict(err) {
		return err
	}
	return &PendingError{Chain: chain, Op: op, ID: id, Tx: tx, Err: err}
}
