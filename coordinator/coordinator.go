package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lightningnetwork/lnd/clock"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/atomic-swap/audit"
	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/hashlock"
	"github.com/TEENet-io/atomic-swap/htlc"
	"github.com/TEENet-io/atomic-swap/state"
	"github.com/TEENet-io/atomic-swap/swap"
)

const (
	OpInitiate    = "initiate"
	OpParticipate = "participate"
	OpClaim       = "claim"
	OpComplete    = "complete"
	OpRefund      = "refund"
)

// Resolver returns the adapter of a chain.
type Resolver interface {
	Resolve(chain htlc.ChainID) (htlc.Adapter, error)
}

// Coordinator drives swaps through their lifecycle. It is the only writer
// of the swap store. Operations on one swap are serialized; operations on
// different swaps run concurrently.
type Coordinator struct {
	cfg      *Config
	resolver Resolver
	store    state.SwapStore
	sink     audit.Sink
	clock    clock.Clock

	mu    sync.RWMutex
	swaps map[string]*swap.Info

	// swap id -> lock, held only while an operation on the swap runs
	locksMu sync.Mutex
	locks   map[string]*swapLock

	notifiedMu sync.Mutex
	notified   map[string]struct{}
}

// New returns a coordinator holding every swap found in store. A nil sink
// logs events.
func New(ctx context.Context, cfg *Config, resolver Resolver, store state.SwapStore, sink audit.Sink, clk clock.Clock) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		sink = audit.LogSink{}
	}
	c := &Coordinator{
		cfg:      cfg,
		resolver: resolver,
		store:    store,
		sink:     sink,
		clock:    clk,
		swaps:    make(map[string]*swap.Info),
		locks:    make(map[string]*swapLock),
		notified: make(map[string]struct{}),
	}

	infos, err := store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		c.swaps[info.ID] = info
		if info.ManualReview {
			logger.WithField("swapId", info.ID).Warn("restored swap is flagged for manual review")
		}
	}
	logger.WithField("swaps", len(infos)).Info("coordinator restored swaps")
	return c, nil
}

type swapLock struct {
	mu   sync.Mutex
	refs int
}

// lock serializes operations on swap id. The entry is dropped once no
// operation holds or waits for it.
func (c *Coordinator) lock(id string) func() {
	c.locksMu.Lock()
	l, ok := c.locks[id]
	if !ok {
		l = &swapLock{}
		c.locks[id] = l
	}
	l.refs++
	c.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, id)
		}
		c.locksMu.Unlock()
	}
}

// load returns a private copy of the record of id.
func (c *Coordinator) load(id string) (*swap.Info, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.swaps[id]
	if !ok {
		return nil, fmt.Errorf("%w: swap %s", htlc.ErrNotFound, id)
	}
	return info.Clone(), nil
}

func (c *Coordinator) publish(info *swap.Info) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.swaps[info.ID] = info.Clone()
}

// persist saves info and makes it visible to readers. When the save fails
// after a chain side effect, the record is still published, flagged for
// manual review.
func (c *Coordinator) persist(ctx context.Context, info *swap.Info, sideEffect bool) error {
	info.UpdatedAt = c.clock.Now()
	// a secret never revealed on chain is of no use once the swap is over
	if info.Terminal() && info.ClaimedAt.IsZero() && info.Secret != nil {
		info.Secret.Zero()
		info.Secret = nil
	}
	err := c.store.Save(ctx, info)
	if err == nil {
		c.publish(info)
		return nil
	}
	if !sideEffect {
		return err
	}

	info.ManualReview = true
	c.publish(info)
	logger.WithFields(logger.Fields{
		"swapId": info.ID,
		"status": info.Status,
	}).Errorf("swap state not persisted after chain side effect: %v", err)
	c.emit(ctx, audit.EventManualReview, info, map[string]any{"error": err.Error()})
	return errors.Join(err, ErrManualReview)
}

func (c *Coordinator) emit(ctx context.Context, typ string, info *swap.Info, fields map[string]any) {
	c.sink.Emit(ctx, audit.Event{
		Type:   typ,
		SwapID: info.ID,
		Time:   c.clock.Now(),
		Fields: fields,
	})
}

func (c *Coordinator) transition(info *swap.Info, to swap.Status) error {
	if !swap.CanTransition(info.Status, to) {
		return fmt.Errorf("%w: swap %s cannot move from %s to %s", htlc.ErrInvalidState, info.ID, info.Status, to)
	}
	info.Status = to
	return nil
}

// fail moves info to FAILED after an adapter error and records why.
func (c *Coordinator) fail(ctx context.Context, info *swap.Info, op string, cause error) error {
	info.ClearPending()
	if err := c.transition(info, swap.StatusFailed); err != nil {
		return &SwapError{Op: op, Swap: info.Redacted(), Err: errors.Join(cause, err)}
	}
	info.FailureReason = cause.Error()
	info.FailedAt = c.clock.Now()

	logger.WithFields(logger.Fields{
		"swapId": info.ID,
		"op":     op,
	}).Errorf("swap failed: %v", cause)
	c.emit(ctx, audit.EventSwapFailed, info, map[string]any{"op": op, "reason": info.FailureReason})

	err := cause
	if perr := c.persist(ctx, info, true); perr != nil {
		err = errors.Join(cause, perr)
	}
	return &SwapError{Op: op, Swap: info.Redacted(), Err: err}
}

// note records an adapter error on a swap that stays recoverable.
func (c *Coordinator) note(ctx context.Context, info *swap.Info, op string, cause error) error {
	info.FailureReason = cause.Error()
	logger.WithFields(logger.Fields{
		"swapId": info.ID,
		"op":     op,
	}).Warnf("swap operation failed: %v", cause)

	err := cause
	if perr := c.persist(ctx, info, false); perr != nil {
		err = errors.Join(cause, perr)
	}
	return &SwapError{Op: op, Swap: info.Redacted(), Err: err}
}

func (c *Coordinator) adapter(chain htlc.ChainID) (htlc.Adapter, error) {
	return c.resolver.Resolve(chain)
}

func newSwapID() string {
	return uuid.NewString()
}

// InitiateSwap locks the initiator's funds on the source chain under a new
// hash lock.
func (c *Coordinator) InitiateSwap(ctx context.Context, cfg swap.Config) (*swap.Info, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	lifetime := time.Duration(cfg.TimeLockHours) * time.Hour
	if lifetime <= c.cfg.DestinationTimeLockMargin {
		return nil, fmt.Errorf("%w: time lock of %s leaves no room for the destination margin %s",
			htlc.ErrConfigInvalid, lifetime, c.cfg.DestinationTimeLockMargin)
	}
	src, err := c.adapter(cfg.SourceChain)
	if err != nil {
		return nil, err
	}
	if _, err := c.adapter(cfg.DestinationChain); err != nil {
		return nil, err
	}

	secret, hashLock, err := hashlock.Generate()
	if err != nil {
		return nil, err
	}
	now := c.clock.Now()
	info := &swap.Info{
		ID:             newSwapID(),
		Config:         cfg.Clone(),
		Status:         swap.StatusPending,
		HashLock:       hashLock,
		Secret:         secret,
		SourceTimeLock: now.Add(lifetime).Unix(),
		CreatedAt:      now,
	}

	unlock := c.lock(info.ID)
	defer unlock()

	if err := c.persist(ctx, info, false); err != nil {
		return nil, err
	}

	contractID, err := src.Create(ctx, cfg.SourceHTLC(hashLock, info.SourceTimeLock))
	if err != nil {
		var pending *htlc.PendingError
		if errors.As(err, &pending) {
			info.SourceContractID = pending.ID
			return nil, c.pending(ctx, info, OpInitiate, swap.LegSource, pending)
		}
		return nil, c.fail(ctx, info, OpInitiate, err)
	}
	info.SourceContractID = contractID
	return c.initiated(ctx, info)
}

func (c *Coordinator) initiated(ctx context.Context, info *swap.Info) (*swap.Info, error) {
	info.ClearPending()
	if err := c.transition(info, swap.StatusInitiated); err != nil {
		return nil, err
	}
	if err := c.persist(ctx, info, true); err != nil {
		return nil, &SwapError{Op: OpInitiate, Swap: info.Redacted(), Err: err}
	}

	logger.WithFields(logger.Fields{
		"swapId":   info.ID,
		"chain":    info.Config.SourceChain,
		"contract": common.Shorten(string(info.SourceContractID), 8),
		"hashLock": common.Shorten(info.HashLock.String(), 8),
	}).Info("swap initiated")
	c.emit(ctx, audit.EventSwapInitiated, info, map[string]any{
		"chain":    info.Config.SourceChain,
		"contract": info.SourceContractID,
		"timeLock": info.SourceTimeLock,
	})
	return info.Redacted(), nil
}

// ParticipateInSwap locks the counterparty's funds on the destination chain
// under the same hash lock, expiring before the source leg.
func (c *Coordinator) ParticipateInSwap(ctx context.Context, id string) (*swap.Info, error) {
	unlock := c.lock(id)
	defer unlock()

	info, err := c.load(id)
	if err != nil {
		return nil, err
	}
	if info.Status != swap.StatusInitiated {
		return nil, fmt.Errorf("%w: swap %s is %s, want %s", htlc.ErrInvalidState, id, info.Status, swap.StatusInitiated)
	}
	if err := checkPending(info, OpParticipate, swap.LegDestination); err != nil {
		return nil, err
	}
	if info.DestinationContractID != "" {
		return nil, fmt.Errorf("%w: swap %s already has a destination leg", htlc.ErrInvalidState, id)
	}
	dst, err := c.adapter(info.Config.DestinationChain)
	if err != nil {
		return nil, err
	}

	timeLock := info.SourceTimeLock - int64(c.cfg.DestinationTimeLockMargin/time.Second)
	if timeLock <= c.clock.Now().Unix() {
		return nil, fmt.Errorf("%w: destination time lock %d is not in the future", htlc.ErrConfigInvalid, timeLock)
	}

	contractID, err := dst.Create(ctx, info.Config.DestinationHTLC(info.HashLock, timeLock))
	if err != nil {
		var pending *htlc.PendingError
		if errors.As(err, &pending) {
			info.DestinationContractID = pending.ID
			info.DestinationTimeLock = timeLock
			return nil, c.pending(ctx, info, OpParticipate, swap.LegDestination, pending)
		}
		return nil, c.fail(ctx, info, OpParticipate, err)
	}
	info.DestinationContractID = contractID
	info.DestinationTimeLock = timeLock
	return c.participated(ctx, info)
}

func (c *Coordinator) participated(ctx context.Context, info *swap.Info) (*swap.Info, error) {
	info.ClearPending()
	if err := c.persist(ctx, info, true); err != nil {
		return nil, &SwapError{Op: OpParticipate, Swap: info.Redacted(), Err: err}
	}

	logger.WithFields(logger.Fields{
		"swapId":   info.ID,
		"chain":    info.Config.DestinationChain,
		"contract": common.Shorten(string(info.DestinationContractID), 8),
	}).Info("swap participated")
	c.emit(ctx, audit.EventSwapParticipated, info, map[string]any{
		"chain":    info.Config.DestinationChain,
		"contract": info.DestinationContractID,
		"timeLock": info.DestinationTimeLock,
	})
	return info.Redacted(), nil
}

// ClaimSwap claims the destination leg for the initiator, which publishes
// the secret.
func (c *Coordinator) ClaimSwap(ctx context.Context, id string) (*swap.Info, error) {
	unlock := c.lock(id)
	defer unlock()

	info, err := c.load(id)
	if err != nil {
		return nil, err
	}
	if info.Status != swap.StatusInitiated {
		return nil, fmt.Errorf("%w: swap %s is %s, want %s", htlc.ErrInvalidState, id, info.Status, swap.StatusInitiated)
	}
	if info.DestinationContractID == "" {
		return nil, fmt.Errorf("%w: swap %s has no destination leg", htlc.ErrInvalidState, id)
	}
	if err := checkPending(info, OpClaim, swap.LegDestination); err != nil {
		return nil, err
	}
	if !approvalsMet(info) {
		return nil, fmt.Errorf("%w: %d of %d", ErrApprovalsMissing, len(info.Signatures), info.Config.RequiredSignatures)
	}
	dst, err := c.adapter(info.Config.DestinationChain)
	if err != nil {
		return nil, err
	}

	tx, err := dst.Claim(ctx, info.DestinationContractID, info.Secret)
	if err != nil {
		var pending *htlc.PendingError
		if errors.As(err, &pending) {
			return nil, c.pending(ctx, info, OpClaim, swap.LegDestination, pending)
		}
		// an earlier unconfirmed claim may have landed
		if info.PendingOp == OpClaim && errors.Is(err, htlc.ErrNotActive) {
			if got, gerr := dst.GetInfo(ctx, info.DestinationContractID); gerr == nil && got.Status == htlc.StatusCompleted {
				return c.claimed(ctx, info, info.PendingTx, got.CompletedAt)
			}
		}
		return nil, c.fail(ctx, info, OpClaim, err)
	}
	return c.claimed(ctx, info, tx, c.clock.Now())
}

func (c *Coordinator) claimed(ctx context.Context, info *swap.Info, tx htlc.TxRef, at time.Time) (*swap.Info, error) {
	info.ClearPending()
	if err := c.transition(info, swap.StatusClaimed); err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = c.clock.Now()
	}
	info.ClaimedAt = at
	info.DestinationClaimTx = tx
	if err := c.persist(ctx, info, true); err != nil {
		return nil, &SwapError{Op: OpClaim, Swap: info.Redacted(), Err: err}
	}

	logger.WithFields(logger.Fields{
		"swapId": info.ID,
		"tx":     common.Shorten(string(tx), 8),
	}).Info("swap claimed")
	c.emit(ctx, audit.EventSwapClaimed, info, map[string]any{
		"chain": info.Config.DestinationChain,
		"tx":    tx,
	})
	return info.Redacted(), nil
}

// CompleteSwap claims the source leg for the counterparty with the secret
// revealed by ClaimSwap. A swap completes once; later calls fail with
// htlc.ErrNotActive.
func (c *Coordinator) CompleteSwap(ctx context.Context, id string) (*swap.Info, error) {
	unlock := c.lock(id)
	defer unlock()

	info, err := c.load(id)
	if err != nil {
		return nil, err
	}
	if info.Status != swap.StatusClaimed {
		return nil, fmt.Errorf("%w: swap %s is %s, want %s", htlc.ErrInvalidState, id, info.Status, swap.StatusClaimed)
	}
	if info.SourceContractID == "" {
		return nil, fmt.Errorf("%w: swap %s has no source leg", htlc.ErrInvalidState, id)
	}
	if !info.SourceClaimedAt.IsZero() {
		return nil, fmt.Errorf("%w: swap %s already completed", htlc.ErrNotActive, id)
	}
	if err := checkPending(info, OpComplete, swap.LegSource); err != nil {
		return nil, err
	}
	src, err := c.adapter(info.Config.SourceChain)
	if err != nil {
		return nil, err
	}

	tx, err := src.Claim(ctx, info.SourceContractID, info.Secret)
	if err != nil {
		var pending *htlc.PendingError
		if errors.As(err, &pending) {
			return nil, c.pending(ctx, info, OpComplete, swap.LegSource, pending)
		}
		// the counterparty may have claimed the source leg on its own, or an
		// earlier unconfirmed claim landed
		if errors.Is(err, htlc.ErrNotActive) {
			if got, gerr := src.GetInfo(ctx, info.SourceContractID); gerr == nil && got.Status == htlc.StatusCompleted {
				if info.PendingOp == OpComplete {
					return c.completed(ctx, info, info.PendingTx, got.CompletedAt)
				}
				info.SourceClaimedAt = got.CompletedAt
				if info.SourceClaimedAt.IsZero() {
					info.SourceClaimedAt = c.clock.Now()
				}
			}
		}
		return nil, c.note(ctx, info, OpComplete, err)
	}
	return c.completed(ctx, info, tx, c.clock.Now())
}

func (c *Coordinator) completed(ctx context.Context, info *swap.Info, tx htlc.TxRef, at time.Time) (*swap.Info, error) {
	info.ClearPending()
	if at.IsZero() {
		at = c.clock.Now()
	}
	info.SourceClaimedAt = at
	info.SourceClaimTx = tx
	info.FailureReason = ""
	if err := c.persist(ctx, info, true); err != nil {
		return nil, &SwapError{Op: OpComplete, Swap: info.Redacted(), Err: err}
	}

	logger.WithFields(logger.Fields{
		"swapId": info.ID,
		"tx":     common.Shorten(string(tx), 8),
	}).Info("swap completed")
	c.emit(ctx, audit.EventSwapCompleted, info, map[string]any{
		"chain": info.Config.SourceChain,
		"tx":    tx,
	})
	return info.Redacted(), nil
}

// RefundSwap returns the funds of one leg to its sender once the leg's
// time lock has passed. Any refund moves the swap to REFUNDED.
func (c *Coordinator) RefundSwap(ctx context.Context, id string, leg swap.Leg) (*swap.Info, error) {
	if !leg.Valid() {
		return nil, fmt.Errorf("%w: unknown leg %q", htlc.ErrConfigInvalid, leg)
	}
	unlock := c.lock(id)
	defer unlock()

	info, err := c.load(id)
	if err != nil {
		return nil, err
	}
	contractID := info.ContractID(leg)
	if contractID == "" {
		return nil, fmt.Errorf("%w: swap %s has no %s leg", htlc.ErrInvalidState, id, leg)
	}
	if err := checkPending(info, OpRefund, leg); err != nil {
		return nil, err
	}
	if !info.RefundedAt(leg).IsZero() {
		return nil, fmt.Errorf("%w: %s leg of swap %s already refunded", htlc.ErrNotActive, leg, id)
	}
	claimed := info.ClaimedAt
	if leg == swap.LegSource {
		claimed = info.SourceClaimedAt
	}
	if !claimed.IsZero() {
		return nil, fmt.Errorf("%w: %s leg of swap %s already claimed", htlc.ErrNotActive, leg, id)
	}
	if !swap.CanTransition(info.Status, swap.StatusRefunded) {
		return nil, fmt.Errorf("%w: swap %s is %s", htlc.ErrInvalidState, id, info.Status)
	}
	adapter, err := c.adapter(info.Chain(leg))
	if err != nil {
		return nil, err
	}

	tx, err := adapter.Refund(ctx, contractID)
	if err != nil {
		var pending *htlc.PendingError
		if errors.As(err, &pending) {
			return nil, c.pending(ctx, info, OpRefund, leg, pending)
		}
		// an earlier unconfirmed refund may have landed
		if info.PendingOp == OpRefund && errors.Is(err, htlc.ErrNotActive) {
			if got, gerr := adapter.GetInfo(ctx, contractID); gerr == nil && got.Status == htlc.StatusRefunded {
				return c.refunded(ctx, info, leg, info.PendingTx, got.RefundedAt)
			}
		}
		return nil, c.note(ctx, info, OpRefund, err)
	}
	return c.refunded(ctx, info, leg, tx, c.clock.Now())
}

func (c *Coordinator) refunded(ctx context.Context, info *swap.Info, leg swap.Leg, tx htlc.TxRef, at time.Time) (*swap.Info, error) {
	info.ClearPending()
	if err := c.transition(info, swap.StatusRefunded); err != nil {
		return nil, err
	}
	if at.IsZero() {
		at = c.clock.Now()
	}
	if leg == swap.LegSource {
		info.SourceRefundedAt = at
		info.SourceRefundTx = tx
	} else {
		info.DestinationRefundedAt = at
		info.DestinationRefundTx = tx
	}
	if err := c.persist(ctx, info, true); err != nil {
		return nil, &SwapError{Op: OpRefund, Swap: info.Redacted(), Err: err}
	}

	logger.WithFields(logger.Fields{
		"swapId": info.ID,
		"leg":    leg,
		"tx":     common.Shorten(string(tx), 8),
	}).Info("swap refunded")
	c.emit(ctx, audit.EventSwapRefunded, info, map[string]any{
		"leg":   leg,
		"chain": info.Chain(leg),
		"tx":    tx,
	})
	return info.Redacted(), nil
}

func (c *Coordinator) GetSwapInfo(id string) (*swap.Info, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.swaps[id]
	if !ok {
		return nil, fmt.Errorf("%w: swap %s", htlc.ErrNotFound, id)
	}
	return info.Redacted(), nil
}

// ListSwapsFor returns the swaps address takes part in, oldest first.
func (c *Coordinator) ListSwapsFor(address string) []*swap.Info {
	c.mu.RLock()
	var infos []*swap.Info
	for _, info := range c.swaps {
		if info.Involves(address) {
			infos = append(infos, info.Redacted())
		}
	}
	c.mu.RUnlock()

	sortSwaps(infos)
	return infos
}

func (c *Coordinator) snapshot() []*swap.Info {
	c.mu.RLock()
	infos := make([]*swap.Info, 0, len(c.swaps))
	for _, info := range c.swaps {
		infos = append(infos, info.Clone())
	}
	c.mu.RUnlock()

	sortSwaps(infos)
	return infos
}

func sortSwaps(infos []*swap.Info) {
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.Before(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
}
