package htlc

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/TEENet-io/atomic-swap/hashlock"
)

type ChainID string

const (
	ChainEthereum ChainID = "ethereum"
	ChainSolana   ChainID = "solana"
	ChainTON      ChainID = "ton"
	ChainAptos    ChainID = "aptos"
)

// ContractID is the chain specific identifier returned by Create.
type ContractID string

// TxRef is a transaction hash / signature as printed by the chain explorer.
type TxRef string

type Status uint8

const (
	StatusInactive Status = iota
	StatusActive
	StatusCompleted
	StatusRefunded
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusActive:
		return "active"
	case StatusCompleted:
		return "completed"
	case StatusRefunded:
		return "refunded"
	case StatusExpired:
		return "expired"
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// ObservedStatus reports Expired for an active contract whose time lock has passed.
func ObservedStatus(stored Status, timeLock int64, now time.Time) Status {
	if stored == StatusActive && now.Unix() >= timeLock {
		return StatusExpired
	}
	return stored
}

// Config holds the parameters of one HTLC. An empty Token means the chain's
// native asset.
type Config struct {
	Chain    ChainID           `json:"chain"`
	Token    string            `json:"token,omitempty"`
	Sender   string            `json:"sender"`
	Receiver string            `json:"receiver"`
	Amount   decimal.Decimal   `json:"amount"`
	HashLock hashlock.HashLock `json:"hash_lock"`
	TimeLock int64             `json:"time_lock"`
	FeePayer string            `json:"fee_payer,omitempty"`
}

// Validate checks the parameters that every chain requires before anything
// is submitted.
func (c *Config) Validate(now time.Time) error {
	if c.Chain == "" {
		return fmt.Errorf("%w: empty chain", ErrConfigInvalid)
	}
	if c.Sender == "" || c.Receiver == "" {
		return fmt.Errorf("%w: sender and receiver are required", ErrConfigInvalid)
	}
	if c.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive, got %s", ErrConfigInvalid, c.Amount)
	}
	if c.HashLock.IsZero() {
		return fmt.Errorf("%w: empty hash lock", ErrConfigInvalid)
	}
	if c.TimeLock <= now.Unix() {
		return fmt.Errorf("%w: time lock %d is not in the future", ErrConfigInvalid, c.TimeLock)
	}
	return nil
}

// Info is the state of one HTLC as observed on its chain.
type Info struct {
	ContractID  ContractID `json:"contract_id"`
	Config      Config     `json:"config"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt time.Time  `json:"completed_at,omitempty"`
	RefundedAt  time.Time  `json:"refunded_at,omitempty"`
}

// IsOpen reports whether funds are still locked in the contract.
func (i *Info) IsOpen() bool {
	return i.Status == StatusActive || i.Status == StatusExpired
}
