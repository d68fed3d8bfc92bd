package solman

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/htlc"
)

// SimulatedClient executes HTLC program instructions against an htlc.Ledger.
// Instructions are decoded from their wire bytes, so encoding mistakes show
// up here the same way they would on a cluster.
type SimulatedClient struct {
	Faults htlc.Faults

	ledger    *htlc.Ledger
	programID solana.PublicKey
	payer     solana.PublicKey

	mu     sync.Mutex
	landed map[solana.Signature]struct{}
}

func NewSimulatedClient(ledger *htlc.Ledger, programID, payer solana.PublicKey) *SimulatedClient {
	return &SimulatedClient{
		ledger:    ledger,
		programID: programID,
		payer:     payer,
		landed:    make(map[solana.Signature]struct{}),
	}
}

func (c *SimulatedClient) Payer() solana.PublicKey {
	return c.payer
}

func (c *SimulatedClient) Send(_ context.Context, ix solana.Instruction) (solana.Signature, error) {
	if !ix.ProgramID().Equals(c.programID) {
		return solana.Signature{}, fmt.Errorf("unknown program %s", ix.ProgramID())
	}
	data, err := ix.Data()
	if err != nil {
		return solana.Signature{}, err
	}
	if len(data) < 8 {
		return solana.Signature{}, ErrUnknownInstruction
	}
	accounts := ix.Accounts()

	var d [8]byte
	copy(d[:], data[:8])
	switch d {
	case createDiscriminator:
		if err := c.Faults.Next(htlc.OpCreate); err != nil {
			return solana.Signature{}, err
		}
		err = c.create(accounts, data[8:])
	case claimDiscriminator:
		if err := c.Faults.Next(htlc.OpClaim); err != nil {
			return solana.Signature{}, err
		}
		err = c.claim(accounts, data[8:])
	case refundDiscriminator:
		if err := c.Faults.Next(htlc.OpRefund); err != nil {
			return solana.Signature{}, err
		}
		err = c.refund(accounts)
	default:
		return solana.Signature{}, ErrUnknownInstruction
	}
	if err != nil {
		return solana.Signature{}, err
	}

	var sig solana.Signature
	copy(sig[:], common.RandBytes(len(sig)))
	c.mu.Lock()
	c.landed[sig] = struct{}{}
	c.mu.Unlock()
	return sig, nil
}

func (c *SimulatedClient) create(accounts []*solana.AccountMeta, args []byte) error {
	if len(accounts) != 4 || len(args) != 32+8+8 {
		return ErrUnknownInstruction
	}
	var hashLock [32]byte
	copy(hashLock[:], args[:32])
	timeLock := int64(binary.LittleEndian.Uint64(args[32:40]))
	amount := binary.LittleEndian.Uint64(args[40:48])

	expected, err := FindHTLCAddress(c.programID, hashLock)
	if err != nil {
		return err
	}
	if !expected.Equals(accounts[2].PublicKey) {
		return programError(2006) // seeds constraint
	}
	if amount == 0 {
		return programError(ErrCodeInvalidAmount)
	}

	err = c.ledger.Lock(htlc.LedgerEntry{
		ID:       accounts[2].PublicKey.String(),
		Sender:   accounts[0].PublicKey.String(),
		Receiver: accounts[1].PublicKey.String(),
		Amount:   new(big.Int).SetUint64(amount),
		HashLock: hashLock,
		TimeLock: timeLock,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, htlc.ErrConfigInvalid):
		return programError(ErrCodeInvalidTimelock)
	case errors.Is(err, htlc.ErrInvalidState):
		return fmt.Errorf("Allocate: account Address { address: %s, base: None } already in use", accounts[2].PublicKey)
	}
	return err
}

func (c *SimulatedClient) claim(accounts []*solana.AccountMeta, args []byte) error {
	if len(accounts) != 3 || len(args) != 32 {
		return ErrUnknownInstruction
	}
	id := accounts[2].PublicKey.String()
	if e, err := c.ledger.Get(id); err == nil && e.Receiver != accounts[1].PublicKey.String() {
		return programError(2003) // has_one constraint on receiver
	}

	_, err := c.ledger.Claim(id, args)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, htlc.ErrNotFound):
		return programError(ErrCodeAccountNotInitialized)
	case errors.Is(err, htlc.ErrInvalidSecret):
		return programError(ErrCodeInvalidSecret)
	case errors.Is(err, htlc.ErrExpired):
		return programError(ErrCodeExpired)
	case errors.Is(err, htlc.ErrNotActive):
		return programError(ErrCodeNotActive)
	}
	return err
}

func (c *SimulatedClient) refund(accounts []*solana.AccountMeta) error {
	if len(accounts) != 2 {
		return ErrUnknownInstruction
	}

	_, err := c.ledger.Refund(accounts[1].PublicKey.String(), accounts[0].PublicKey.String())
	switch {
	case err == nil:
		return nil
	case errors.Is(err, htlc.ErrNotFound):
		return programError(ErrCodeAccountNotInitialized)
	case errors.Is(err, htlc.ErrNotActive):
		return programError(ErrCodeNotActive)
	case errors.Is(err, htlc.ErrTimelockNotExpired):
		return programError(ErrCodeTimelockNotExpired)
	case errors.Is(err, htlc.ErrInvalidState):
		return programError(ErrCodeNotSender)
	}
	return err
}

func (c *SimulatedClient) Confirm(_ context.Context, sig solana.Signature) error {
	if err := c.Faults.Next(htlc.OpConfirm); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.landed[sig]; !ok {
		return htlc.ErrTxPending
	}
	return nil
}

func (c *SimulatedClient) GetHTLC(_ context.Context, account solana.PublicKey) (*HTLCAccount, error) {
	if err := c.Faults.Next(htlc.OpGetInfo); err != nil {
		return nil, err
	}

	e, err := c.ledger.Get(account.String())
	if err != nil {
		return nil, fmt.Errorf("%w: account %s", htlc.ErrNotFound, account)
	}

	acc := &HTLCAccount{
		HashLock:  e.HashLock,
		TimeLock:  e.TimeLock,
		Amount:    e.Amount.Uint64(),
		CreatedAt: e.CreatedAt.Unix(),
	}
	acc.Sender, _ = solana.PublicKeyFromBase58(e.Sender)
	acc.Receiver, _ = solana.PublicKeyFromBase58(e.Receiver)
	switch e.Status {
	case htlc.StatusCompleted:
		acc.Status = StatusClaimed
		acc.ClosedAt = e.ClosedAt.Unix()
	case htlc.StatusRefunded:
		acc.Status = StatusRefunded
		acc.ClosedAt = e.ClosedAt.Unix()
	default:
		acc.Status = StatusActive
	}

	// served through the on-chain layout
	return DecodeHTLCAccount(acc.Encode())
}
