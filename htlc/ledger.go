package htlc

import (
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/TEENet-io/atomic-swap/hashlock"
)

// LedgerEntry is one contract held by a Ledger. Amount is in base units.
type LedgerEntry struct {
	ID       string
	Sender   string
	Receiver string
	Token    string
	Amount   *big.Int
	HashLock hashlock.HashLock
	TimeLock int64

	Status    Status
	Preimage  []byte
	CreatedAt time.Time
	ClosedAt  time.Time
}

func (e LedgerEntry) clone() LedgerEntry {
	c := e
	if e.Amount != nil {
		c.Amount = new(big.Int).Set(e.Amount)
	}
	if e.Preimage != nil {
		c.Preimage = append([]byte(nil), e.Preimage...)
	}
	return c
}

// Ledger is an in-process model of the contract surface every chain exposes:
// lock under a hash and a time lock, claim with the preimage, refund to the
// sender after expiry, and a read-only query. Simulated clients sit on top
// of it and translate its errors into their chain's native failures.
type Ledger struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[string]*LedgerEntry
	height  uint64
}

func NewLedger(clk clock.Clock) *Ledger {
	return &Ledger{
		clock:   clk,
		entries: make(map[string]*LedgerEntry),
	}
}

func (l *Ledger) Now() time.Time {
	return l.clock.Now()
}

// Height increases by one for every accepted state change.
func (l *Ledger) Height() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.height
}

func (l *Ledger) Lock(e LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	if e.Amount == nil || e.Amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrConfigInvalid)
	}
	if e.TimeLock <= now.Unix() {
		return fmt.Errorf("%w: time lock must be in the future", ErrConfigInvalid)
	}
	if _, ok := l.entries[e.ID]; ok {
		return fmt.Errorf("%w: contract %s already exists", ErrInvalidState, e.ID)
	}

	entry := e.clone()
	entry.Status = StatusActive
	entry.Preimage = nil
	entry.CreatedAt = now
	entry.ClosedAt = time.Time{}
	l.entries[e.ID] = &entry
	l.height++
	return nil
}

func (l *Ledger) Claim(id string, preimage []byte) (LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return LedgerEntry{}, ErrNotFound
	}
	if e.Status != StatusActive {
		return LedgerEntry{}, ErrNotActive
	}
	if !hashlock.Verify(preimage, e.HashLock) {
		return LedgerEntry{}, ErrInvalidSecret
	}
	now := l.clock.Now()
	if now.Unix() >= e.TimeLock {
		return LedgerEntry{}, ErrExpired
	}

	e.Status = StatusCompleted
	e.Preimage = append([]byte(nil), preimage...)
	e.ClosedAt = now
	l.height++
	return e.clone(), nil
}

// Refund returns the funds to the sender. An empty caller skips the sender
// check.
func (l *Ledger) Refund(id string, caller string) (LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return LedgerEntry{}, ErrNotFound
	}
	if caller != "" && caller != e.Sender {
		return LedgerEntry{}, fmt.Errorf("%w: caller %s is not the sender", ErrInvalidState, caller)
	}
	if e.Status != StatusActive {
		return LedgerEntry{}, ErrNotActive
	}
	now := l.clock.Now()
	if now.Unix() < e.TimeLock {
		return LedgerEntry{}, ErrTimelockNotExpired
	}

	e.Status = StatusRefunded
	e.ClosedAt = now
	l.height++
	return e.clone(), nil
}

func (l *Ledger) Get(id string) (LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return LedgerEntry{}, ErrNotFound
	}
	return e.clone(), nil
}
