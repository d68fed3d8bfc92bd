package tonman

import (
	"context"
	"errors"
	"fmt"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/htlc"
)

// SimulatedClient runs the vault against an htlc.Ledger. Messages are
// processed synchronously and a failed compute phase is returned from Send
// as an *ExitError.
type SimulatedClient struct {
	Faults htlc.Faults

	ledger *htlc.Ledger
	wallet *address.Address
}

func NewSimulatedClient(ledger *htlc.Ledger, wallet *address.Address) *SimulatedClient {
	return &SimulatedClient{ledger: ledger, wallet: wallet}
}

func (c *SimulatedClient) Wallet() *address.Address {
	return c.wallet
}

func (c *SimulatedClient) Send(_ context.Context, body *cell.Cell, value tlb.Coins) error {
	s := body.BeginParse()
	op, err := s.LoadUInt(32)
	if err != nil {
		return err
	}
	if _, err := s.LoadUInt(64); err != nil {
		return err
	}

	switch op {
	case OpCodeCreate:
		if err := c.Faults.Next(htlc.OpCreate); err != nil {
			return err
		}
		return c.create(s, value)
	case OpCodeClaim:
		if err := c.Faults.Next(htlc.OpClaim); err != nil {
			return err
		}
		return c.claim(s)
	case OpCodeRefund:
		if err := c.Faults.Next(htlc.OpRefund); err != nil {
			return err
		}
		return c.refund(s)
	}
	return fmt.Errorf("unknown op 0x%x", op)
}

func (c *SimulatedClient) create(s *cell.Slice, value tlb.Coins) error {
	receiver, err := s.LoadAddr()
	if err != nil {
		return err
	}
	amount, err := s.LoadBigCoins()
	if err != nil {
		return err
	}
	hl, err := s.LoadSlice(256)
	if err != nil {
		return err
	}
	timeLock, err := s.LoadUInt(64)
	if err != nil {
		return err
	}
	var hashLock [32]byte
	copy(hashLock[:], hl)

	if amount.Sign() <= 0 || value.Nano().Cmp(amount) < 0 {
		return &ExitError{Code: ExitInvalidAmount}
	}

	id := ContractID(c.wallet, receiver, amount, hashLock, int64(timeLock))
	err = c.ledger.Lock(htlc.LedgerEntry{
		ID:       common.Bytes32ToHexStr(id),
		Sender:   c.wallet.String(),
		Receiver: receiver.String(),
		Amount:   amount,
		HashLock: hashLock,
		TimeLock: int64(timeLock),
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, htlc.ErrConfigInvalid):
		return &ExitError{Code: ExitInvalidTimelock}
	case errors.Is(err, htlc.ErrInvalidState):
		return &ExitError{Code: ExitAlreadyExists}
	}
	return err
}

func (c *SimulatedClient) claim(s *cell.Slice) error {
	id, err := s.LoadSlice(256)
	if err != nil {
		return err
	}
	secret, err := s.LoadSlice(256)
	if err != nil {
		return err
	}

	_, err = c.ledger.Claim(common.Prepend0xPrefix(fmt.Sprintf("%x", id)), secret)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, htlc.ErrNotFound):
		return &ExitError{Code: ExitNotFound}
	case errors.Is(err, htlc.ErrInvalidSecret):
		return &ExitError{Code: ExitInvalidSecret}
	case errors.Is(err, htlc.ErrExpired):
		return &ExitError{Code: ExitExpired}
	case errors.Is(err, htlc.ErrNotActive):
		return &ExitError{Code: ExitNotActive}
	}
	return err
}

func (c *SimulatedClient) refund(s *cell.Slice) error {
	id, err := s.LoadSlice(256)
	if err != nil {
		return err
	}

	_, err = c.ledger.Refund(common.Prepend0xPrefix(fmt.Sprintf("%x", id)), c.wallet.String())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, htlc.ErrNotFound):
		return &ExitError{Code: ExitNotFound}
	case errors.Is(err, htlc.ErrNotActive):
		return &ExitError{Code: ExitNotActive}
	case errors.Is(err, htlc.ErrTimelockNotExpired):
		return &ExitError{Code: ExitTimelockNotExpired}
	case errors.Is(err, htlc.ErrInvalidState):
		return &ExitError{Code: ExitNotSender}
	}
	return err
}

func (c *SimulatedClient) GetHTLC(_ context.Context, id [32]byte) (*VaultEntry, error) {
	if err := c.Faults.Next(htlc.OpGetInfo); err != nil {
		return nil, err
	}

	e, err := c.ledger.Get(common.Bytes32ToHexStr(id))
	if err != nil {
		return nil, fmt.Errorf("%w: vault entry %x", htlc.ErrNotFound, id)
	}
	sender, err := address.ParseAddr(e.Sender)
	if err != nil {
		return nil, err
	}
	receiver, err := address.ParseAddr(e.Receiver)
	if err != nil {
		return nil, err
	}

	entry := &VaultEntry{
		Status:    VaultStatusActive,
		Sender:    sender,
		Receiver:  receiver,
		Amount:    e.Amount,
		HashLock:  e.HashLock,
		TimeLock:  e.TimeLock,
		CreatedAt: e.CreatedAt.Unix(),
	}
	switch e.Status {
	case htlc.StatusCompleted:
		entry.Status = VaultStatusClaimed
		entry.ClosedAt = e.ClosedAt.Unix()
	case htlc.StatusRefunded:
		entry.Status = VaultStatusRefunded
		entry.ClosedAt = e.ClosedAt.Unix()
	}

	// served the way get_htlc returns it
	return LoadVaultEntry(entry.ToCell())
}
