package coordinator

import (
	"errors"
	"fmt"

	"github.com/TEENet-io/atomic-swap/htlc"
	"github.com/TEENet-io/atomic-swap/swap"
)

var (
	// ErrManualReview is joined with htlc.ErrStoreIO when a chain side
	// effect happened but the new swap state could not be persisted.
	ErrManualReview = errors.New("swap requires manual review")

	ErrUnknownSigner      = fmt.Errorf("%w: signer not listed", htlc.ErrConfigInvalid)
	ErrInvalidSignature   = errors.New("invalid approval signature")
	ErrDuplicateSignature = fmt.Errorf("%w: signer already approved", htlc.ErrInvalidState)
	ErrApprovalsMissing   = fmt.Errorf("%w: required approvals missing", htlc.ErrInvalidState)
	ErrGeolocationDenied  = errors.New("geolocation not allowed")
	ErrBackupUnavailable  = fmt.Errorf("%w: backup recovery not configured", htlc.ErrInvalidState)
)

// SwapError is returned by operations that failed after the swap record
// was updated. Swap is a redacted snapshot of the record at that point.
type SwapError struct {
	Op   string
	Swap *swap.Info
	Err  error
}

func (e *SwapError) Error() string {
	return fmt.Sprintf("swap %s: %s: %v", e.Swap.ID, e.Op, e.Err)
}

func (e *SwapError) Unwrap() error {
	return e.Err
}
