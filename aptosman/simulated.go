package aptosman

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"sync"

	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/bcs"

	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/htlc"
)

// SimulatedClient executes htlc module entry functions against an
// htlc.Ledger. Like on chain, an aborted transaction is still accepted by
// Submit and its vm status is reported by Confirm.
type SimulatedClient struct {
	Faults htlc.Faults

	ledger  *htlc.Ledger
	module  aptos.AccountAddress
	account aptos.AccountAddress

	mu        sync.Mutex
	committed map[string]string // hash -> vm status, empty on success
}

func NewSimulatedClient(ledger *htlc.Ledger, module, account aptos.AccountAddress) *SimulatedClient {
	return &SimulatedClient{
		ledger:    ledger,
		module:    module,
		account:   account,
		committed: make(map[string]string),
	}
}

func (c *SimulatedClient) Account() aptos.AccountAddress {
	return c.account
}

func (c *SimulatedClient) Submit(_ context.Context, fn *aptos.EntryFunction) (string, error) {
	if fn.Module.Address != c.module || fn.Module.Name != ModuleName {
		return "", fmt.Errorf("module %s::%s not found", fn.Module.Address.String(), fn.Module.Name)
	}

	var op string
	var run func([][]byte) (string, error)
	switch fn.Function {
	case FuncCreate:
		op, run = htlc.OpCreate, c.create
	case FuncClaim:
		op, run = htlc.OpClaim, c.claim
	case FuncRefund:
		op, run = htlc.OpRefund, c.refund
	default:
		return "", fmt.Errorf("function %s not found", fn.Function)
	}
	if err := c.Faults.Next(op); err != nil {
		return "", err
	}

	vmStatus, err := run(fn.Args)
	if err != nil {
		return "", err
	}
	hash := common.Bytes32ToHexStr(common.RandBytes32())
	c.mu.Lock()
	c.committed[hash] = vmStatus
	c.mu.Unlock()
	return hash, nil
}

func (c *SimulatedClient) abort(name string) (string, error) {
	return MoveAbort(c.module, name), nil
}

func (c *SimulatedClient) create(args [][]byte) (string, error) {
	if len(args) != 4 {
		return "", fmt.Errorf("create takes 4 arguments, got %d", len(args))
	}
	var receiver aptos.AccountAddress
	des := bcs.NewDeserializer(args[0])
	receiver.UnmarshalBCS(des)
	if err := des.Error(); err != nil {
		return "", err
	}
	amount, err := readU64(args[1])
	if err != nil {
		return "", err
	}
	hashLock, err := readBytes(args[2])
	if err != nil {
		return "", err
	}
	timeLock, err := readU64(args[3])
	if err != nil {
		return "", err
	}
	if len(hashLock) != 32 {
		return "", fmt.Errorf("hash lock must be 32 bytes, got %d", len(hashLock))
	}
	if amount == 0 {
		return c.abort(AbortInvalidAmount)
	}

	var hl [32]byte
	copy(hl[:], hashLock)
	err = c.ledger.Lock(htlc.LedgerEntry{
		ID:       common.Bytes32ToHexStr(hl),
		Sender:   c.account.String(),
		Receiver: receiver.String(),
		Amount:   new(big.Int).SetUint64(amount),
		HashLock: hl,
		TimeLock: int64(timeLock),
	})
	switch {
	case err == nil:
		return "", nil
	case errors.Is(err, htlc.ErrConfigInvalid):
		return c.abort(AbortInvalidTimelock)
	case errors.Is(err, htlc.ErrInvalidState):
		return c.abort(AbortExists)
	}
	return "", err
}

func (c *SimulatedClient) claim(args [][]byte) (string, error) {
	if len(args) != 2 {
		return "", fmt.Errorf("claim takes 2 arguments, got %d", len(args))
	}
	hashLock, err := readBytes(args[0])
	if err != nil {
		return "", err
	}
	secret, err := readBytes(args[1])
	if err != nil {
		return "", err
	}

	_, err = c.ledger.Claim(common.Prepend0xPrefix(fmt.Sprintf("%x", hashLock)), secret)
	switch {
	case err == nil:
		return "", nil
	case errors.Is(err, htlc.ErrNotFound):
		return c.abort(AbortNotFound)
	case errors.Is(err, htlc.ErrInvalidSecret):
		return c.abort(AbortHashMismatch)
	case errors.Is(err, htlc.ErrExpired):
		return c.abort(AbortExpired)
	case errors.Is(err, htlc.ErrNotActive):
		return c.abort(AbortNotActive)
	}
	return "", err
}

func (c *SimulatedClient) refund(args [][]byte) (string, error) {
	if len(args) != 1 {
		return "", fmt.Errorf("refund takes 1 argument, got %d", len(args))
	}
	hashLock, err := readBytes(args[0])
	if err != nil {
		return "", err
	}

	_, err = c.ledger.Refund(common.Prepend0xPrefix(fmt.Sprintf("%x", hashLock)), c.account.String())
	switch {
	case err == nil:
		return "", nil
	case errors.Is(err, htlc.ErrNotFound):
		return c.abort(AbortNotFound)
	case errors.Is(err, htlc.ErrNotActive):
		return c.abort(AbortNotActive)
	case errors.Is(err, htlc.ErrTimelockNotExpired):
		return c.abort(AbortTimelockNotExpired)
	case errors.Is(err, htlc.ErrInvalidState):
		return c.abort(AbortNotSender)
	}
	return "", err
}

func readU64(b []byte) (uint64, error) {
	des := bcs.NewDeserializer(b)
	v := des.U64()
	return v, des.Error()
}

func readBytes(b []byte) ([]byte, error) {
	des := bcs.NewDeserializer(b)
	v := des.ReadBytes()
	return v, des.Error()
}

func (c *SimulatedClient) Confirm(_ context.Context, hash string) error {
	if err := c.Faults.Next(htlc.OpConfirm); err != nil {
		return err
	}
	c.mu.Lock()
	vmStatus, ok := c.committed[hash]
	c.mu.Unlock()
	if !ok {
		return htlc.ErrTxPending
	}
	if vmStatus != "" {
		return fmt.Errorf("%w: transaction %s failed: %s", htlc.ErrChainSubmission, hash, vmStatus)
	}
	return nil
}

func (c *SimulatedClient) GetHTLC(_ context.Context, hashLock [32]byte) (*HTLCView, error) {
	if err := c.Faults.Next(htlc.OpGetInfo); err != nil {
		return nil, err
	}

	e, err := c.ledger.Get(common.Bytes32ToHexStr(hashLock))
	if err != nil {
		return nil, fmt.Errorf("%w: hash lock %x", htlc.ErrNotFound, hashLock)
	}
	status := StatusActive
	switch e.Status {
	case htlc.StatusCompleted:
		status = StatusClaimed
	case htlc.StatusRefunded:
		status = StatusRefunded
	}
	var closedAt int64
	if !e.ClosedAt.IsZero() {
		closedAt = e.ClosedAt.Unix()
	}

	// served the way the view endpoint returns it
	return parseHTLCView([]any{
		float64(status),
		e.Sender,
		e.Receiver,
		e.Amount.String(),
		strconv.FormatInt(e.TimeLock, 10),
		strconv.FormatInt(e.CreatedAt.Unix(), 10),
		strconv.FormatInt(closedAt, 10),
	})
}
