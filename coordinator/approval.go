package coordinator

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/atomic-swap/audit"
	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/hashlock"
	"github.com/TEENet-io/atomic-swap/htlc"
	"github.com/TEENet-io/atomic-swap/swap"
)

var approvalTag = []byte("atomic-swap/approval")

// ApprovalDigest is the BIP-340 tagged hash a signer signs to approve the
// claim of swap id.
func ApprovalDigest(id string, hashLock hashlock.HashLock) [32]byte {
	return *chainhash.TaggedHash(approvalTag, []byte(id), hashLock[:])
}

func approvalsMet(info *swap.Info) bool {
	return len(info.Signatures) >= info.Config.RequiredSignatures
}

// AddSignature records the approval of signer, a listed x-only public key,
// over ApprovalDigest. Approvals are accepted until the swap is claimed.
func (c *Coordinator) AddSignature(ctx context.Context, id, signer, signature string) (*swap.Info, error) {
	unlock := c.lock(id)
	defer unlock()

	info, err := c.load(id)
	if err != nil {
		return nil, err
	}
	if info.Status != swap.StatusPending && info.Status != swap.StatusInitiated {
		return nil, fmt.Errorf("%w: swap %s is %s", htlc.ErrInvalidState, id, info.Status)
	}

	listed := false
	for _, s := range info.Config.Signers {
		if swap.NormalizeSigner(s) == swap.NormalizeSigner(signer) {
			listed = true
			break
		}
	}
	if !listed {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSigner, signer)
	}
	if info.HasSignature(signer) {
		return nil, fmt.Errorf("%w: %s", ErrDuplicateSignature, signer)
	}

	pub, err := swap.ParseSigner(signer)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	raw, err := hex.DecodeString(common.Trim0xPrefix(signature))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	sig, err := schnorr.ParseSignature(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	digest := ApprovalDigest(info.ID, info.HashLock)
	if !sig.Verify(digest[:], pub) {
		return nil, fmt.Errorf("%w: does not verify for %s", ErrInvalidSignature, signer)
	}

	info.Signatures = append(info.Signatures, swap.Signature{
		Signer:    swap.NormalizeSigner(signer),
		Signature: hex.EncodeToString(raw),
		SignedAt:  c.clock.Now(),
	})
	if err := c.persist(ctx, info, false); err != nil {
		return nil, err
	}

	logger.WithFields(logger.Fields{
		"swapId": id,
		"signer": common.Shorten(swap.NormalizeSigner(signer), 8),
		"count":  len(info.Signatures),
	}).Info("approval added")
	c.emit(ctx, audit.EventSignatureAdded, info, map[string]any{
		"signer":   swap.NormalizeSigner(signer),
		"count":    len(info.Signatures),
		"required": info.Config.RequiredSignatures,
	})
	return info.Redacted(), nil
}

// VerifyMultiSigRequirements reports whether swap id holds the approvals it
// requires.
func (c *Coordinator) VerifyMultiSigRequirements(id string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.swaps[id]
	if !ok {
		return false, fmt.Errorf("%w: swap %s", htlc.ErrNotFound, id)
	}
	return approvalsMet(info), nil
}
