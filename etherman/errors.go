package etherman

import (
	"errors"
	"fmt"
	"strings"

	"github.com/TEENet-io/atomic-swap/htlc"
)

// Revert reasons of the HTLC contracts, most specific first.
var revertReasons = []struct {
	reason string
	err    error
}{
	{"contractId does not exist", htlc.ErrNotFound},
	{"hashlock hash does not match", htlc.ErrInvalidSecret},
	{"withdrawable: timelock time must be in the future", htlc.ErrExpired},
	{"withdrawable: already withdrawn", htlc.ErrNotActive},
	{"withdrawable: already refunded", htlc.ErrNotActive},
	{"refundable: already withdrawn", htlc.ErrNotActive},
	{"refundable: already refunded", htlc.ErrNotActive},
	{"refundable: timelock not yet passed", htlc.ErrTimelockNotExpired},
	{"refundable: not sender", htlc.ErrInvalidState},
	{"msg.value must be > 0", htlc.ErrConfigInvalid},
	{"token amount must be > 0", htlc.ErrConfigInvalid},
	{"timelock time must be in the future", htlc.ErrConfigInvalid},
	{"Contract already exists", htlc.ErrInvalidState},
}

// Node errors that mean the transaction never made it into the pool and can
// be sent again.
var retryableNodeErrors = []string{
	"replacement transaction underpriced",
	"nonce too low",
	"transaction underpriced",
	"request timed out",
}

// classify maps an rpc / contract error onto the htlc taxonomy.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if htlc.IsRetryable(err) {
		return err
	}
	msg := err.Error()
	if strings.Contains(msg, "execution reverted") {
		for _, r := range revertReasons {
			if strings.Contains(msg, r.reason) {
				return fmt.Errorf("%w: %v", r.err, err)
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
