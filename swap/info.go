package swap

import (
	"strings"
	"time"

	"github.com/TEENet-io/atomic-swap/hashlock"
	"github.com/TEENet-io/atomic-swap/htlc"
)

// Signature is an approval of a swap by one of its signers.
type Signature struct {
	Signer    string    `json:"signer"`
	Signature string    `json:"signature"`
	SignedAt  time.Time `json:"signed_at"`
}

// SecurityCheck is the outcome of one verification step.
type SecurityCheck struct {
	Name      string    `json:"name"`
	Passed    bool      `json:"passed"`
	Detail    string    `json:"detail,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Info is the coordinator's record of one swap. It is persisted after every
// transition.
type Info struct {
	ID       string            `json:"id"`
	Config   Config            `json:"config"`
	Status   Status            `json:"status"`
	HashLock hashlock.HashLock `json:"hash_lock"`
	Secret   hashlock.Secret   `json:"secret,omitempty"`

	SourceContractID      htlc.ContractID `json:"source_contract_id,omitempty"`
	DestinationContractID htlc.ContractID `json:"destination_contract_id,omitempty"`
	SourceTimeLock        int64           `json:"source_time_lock"`
	DestinationTimeLock   int64           `json:"destination_time_lock,omitempty"`

	DestinationClaimTx  htlc.TxRef `json:"destination_claim_tx,omitempty"`
	SourceClaimTx       htlc.TxRef `json:"source_claim_tx,omitempty"`
	SourceRefundTx      htlc.TxRef `json:"source_refund_tx,omitempty"`
	DestinationRefundTx htlc.TxRef `json:"destination_refund_tx,omitempty"`

	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
	ClaimedAt             time.Time `json:"claimed_at,omitempty"`
	SourceClaimedAt       time.Time `json:"source_claimed_at,omitempty"`
	FailedAt              time.Time `json:"failed_at,omitempty"`
	SourceRefundedAt      time.Time `json:"source_refunded_at,omitempty"`
	DestinationRefundedAt time.Time `json:"destination_refunded_at,omitempty"`

	// PendingOp names the operation whose transaction on PendingLeg was
	// sent but never confirmed.
	PendingOp  string     `json:"pending_op,omitempty"`
	PendingLeg Leg        `json:"pending_leg,omitempty"`
	PendingTx  htlc.TxRef `json:"pending_tx,omitempty"`

	FailureReason string `json:"failure_reason,omitempty"`
	// ManualReview is set when a chain side effect could not be persisted.
	ManualReview bool `json:"manual_review,omitempty"`

	Signatures     []Signature        `json:"signatures,omitempty"`
	SecurityChecks []SecurityCheck    `json:"security_checks,omitempty"`
	Verification   VerificationStatus `json:"verification_status,omitempty"`
	SecurityScore  int                `json:"security_score,omitempty"`
	Risk           Risk               `json:"risk_assessment,omitempty"`

	GeoVerified       bool      `json:"geo_verified,omitempty"`
	BackupActivated   bool      `json:"backup_activated,omitempty"`
	BackupActivatedAt time.Time `json:"backup_activated_at,omitempty"`
}

// Clone returns a deep copy.
func (i *Info) Clone() *Info {
	cp := *i
	cp.Config = i.Config.Clone()
	cp.Secret = i.Secret.Clone()
	if i.Signatures != nil {
		cp.Signatures = append([]Signature(nil), i.Signatures...)
	}
	if i.SecurityChecks != nil {
		cp.SecurityChecks = append([]SecurityCheck(nil), i.SecurityChecks...)
	}
	return &cp
}

// Redacted returns a copy safe to hand outside the coordinator. The secret
// is kept only once the destination leg has been claimed, since the claim
// published it.
func (i *Info) Redacted() *Info {
	cp := i.Clone()
	if i.ClaimedAt.IsZero() {
		cp.Secret = nil
	}
	return cp
}

// Involves reports whether address is a party of the swap on either chain.
func (i *Info) Involves(address string) bool {
	if address == "" {
		return false
	}
	for _, a := range []string{
		i.Config.SenderAddress,
		i.Config.ReceiverAddress,
		i.Config.DestinationSender(),
		i.Config.DestinationReceiver(),
	} {
		if strings.EqualFold(a, address) {
			return true
		}
	}
	return false
}

// ContractID returns the contract of leg, empty if not created.
func (i *Info) ContractID(leg Leg) htlc.ContractID {
	if leg == LegSource {
		return i.SourceContractID
	}
	return i.DestinationContractID
}

func (i *Info) Chain(leg Leg) htlc.ChainID {
	if leg == LegSource {
		return i.Config.SourceChain
	}
	return i.Config.DestinationChain
}

func (i *Info) TimeLock(leg Leg) int64 {
	if leg == LegSource {
		return i.SourceTimeLock
	}
	return i.DestinationTimeLock
}

func (i *Info) RefundedAt(leg Leg) time.Time {
	if leg == LegSource {
		return i.SourceRefundedAt
	}
	return i.DestinationRefundedAt
}

// HasSignature reports whether signer already approved the swap.
func (i *Info) HasSignature(signer string) bool {
	key := NormalizeSigner(signer)
	for _, s := range i.Signatures {
		if NormalizeSigner(s.Signer) == key {
			return true
		}
	}
	return false
}

// ClearPending forgets an unconfirmed transaction once its outcome is known.
func (i *Info) ClearPending() {
	if i.PendingOp == "" {
		return
	}
	i.PendingOp = ""
	i.PendingLeg = ""
	i.PendingTx = ""
	i.FailureReason = ""
}

// Terminal reports whether no further chain action is expected.
func (i *Info) Terminal() bool {
	if i.PendingOp != "" {
		return false
	}
	switch i.Status {
	case StatusRefunded:
		return (i.SourceContractID == "" || !i.SourceRefundedAt.IsZero() || !i.SourceClaimedAt.IsZero()) &&
			(i.DestinationContractID == "" || !i.DestinationRefundedAt.IsZero() || !i.ClaimedAt.IsZero())
	case StatusClaimed:
		return !i.SourceClaimedAt.IsZero()
	case StatusFailed:
		return i.SourceContractID == "" && i.DestinationContractID == ""
	}
	return false
}
