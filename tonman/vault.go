package tonman

import (
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Vault message op codes.
const (
	OpCodeCreate uint64 = 0x1
	OpCodeClaim  uint64 = 0x2
	OpCodeRefund uint64 = 0x3
)

// Vault entry status as returned by the get_htlc getter. Zero means the
// entry does not exist.
const (
	VaultStatusNone     uint8 = 0
	VaultStatusActive   uint8 = 1
	VaultStatusClaimed  uint8 = 2
	VaultStatusRefunded uint8 = 3
)

// Vault exit codes.
const (
	ExitNotFound           = 401
	ExitInvalidSecret      = 402
	ExitNotActive          = 403
	ExitTimelockNotExpired = 404
	ExitExpired            = 405
	ExitAlreadyExists      = 406
	ExitInvalidAmount      = 407
	ExitInvalidTimelock    = 408
	ExitNotSender          = 409
)

const getHTLCMethod = "get_htlc"

// ExitError is a vault compute phase that ended with a non-zero exit code.
type ExitError struct {
	Code int32
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("vault exit code %d", e.Code)
}

// VaultEntry is one value of the vault's htlc dictionary.
type VaultEntry struct {
	Status    uint8
	Sender    *address.Address
	Receiver  *address.Address
	Amount    *big.Int
	HashLock  [32]byte
	TimeLock  int64
	CreatedAt int64
	ClosedAt  int64
}

// ContractID is the dictionary key the vault stores an HTLC under: the hash
// of a cell holding the HTLC parameters.
func ContractID(sender, receiver *address.Address, amount *big.Int, hashLock [32]byte, timeLock int64) [32]byte {
	c := cell.BeginCell().
		MustStoreAddr(sender).
		MustStoreAddr(receiver).
		MustStoreBigCoins(amount).
		MustStoreSlice(hashLock[:], 256).
		MustStoreUInt(uint64(timeLock), 64).
		EndCell()

	var id [32]byte
	copy(id[:], c.Hash())
	return id
}

// NewCreateBody locks the value of the carrying message, minus fees, under
// hashLock. The sender is the message source.
func NewCreateBody(queryID uint64, receiver *address.Address, amount *big.Int, hashLock [32]byte, timeLock int64) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(OpCodeCreate, 32).
		MustStoreUInt(queryID, 64).
		MustStoreAddr(receiver).
		MustStoreBigCoins(amount).
		MustStoreSlice(hashLock[:], 256).
		MustStoreUInt(uint64(timeLock), 64).
		EndCell()
}

// NewClaimBody pays the receiver of id. Anyone may send it.
func NewClaimBody(queryID uint64, id [32]byte, secret [32]byte) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(OpCodeClaim, 32).
		MustStoreUInt(queryID, 64).
		MustStoreSlice(id[:], 256).
		MustStoreSlice(secret[:], 256).
		EndCell()
}

func NewRefundBody(queryID uint64, id [32]byte) *cell.Cell {
	return cell.BeginCell().
		MustStoreUInt(OpCodeRefund, 32).
		MustStoreUInt(queryID, 64).
		MustStoreSlice(id[:], 256).
		EndCell()
}

// ToCell encodes the entry the way the vault stores it. Parties live in a
// referenced cell.
func (e *VaultEntry) ToCell() *cell.Cell {
	parties := cell.BeginCell().
		MustStoreAddr(e.Sender).
		MustStoreAddr(e.Receiver).
		EndCell()

	return cell.BeginCell().
		MustStoreUInt(uint64(e.Status), 8).
		MustStoreRef(parties).
		MustStoreBigCoins(e.Amount).
		MustStoreSlice(e.HashLock[:], 256).
		MustStoreUInt(uint64(e.TimeLock), 64).
		MustStoreUInt(uint64(e.CreatedAt), 64).
		MustStoreUInt(uint64(e.ClosedAt), 64).
		EndCell()
}

func LoadVaultEntry(c *cell.Cell) (*VaultEntry, error) {
	s := c.BeginParse()
	e := &VaultEntry{}

	status, err := s.LoadUInt(8)
	if err != nil {
		return nil, fmt.Errorf("failed to load status: %w", err)
	}
	e.Status = uint8(status)

	parties, err := s.LoadRef()
	if err != nil {
		return nil, fmt.Errorf("failed to load parties: %w", err)
	}
	if e.Sender, err = parties.LoadAddr(); err != nil {
		return nil, fmt.Errorf("failed to load sender: %w", err)
	}
	if e.Receiver, err = parties.LoadAddr(); err != nil {
		return nil, fmt.Errorf("failed to load receiver: %w", err)
	}

	if e.Amount, err = s.LoadBigCoins(); err != nil {
		return nil, fmt.Errorf("failed to load amount: %w", err)
	}
	hashLock, err := s.LoadSlice(256)
	if err != nil {
		return nil, fmt.Errorf("failed to load hash lock: %w", err)
	}
	copy(e.HashLock[:], hashLock)

	var times [3]uint64
	for i := range times {
		if times[i], err = s.LoadUInt(64); err != nil {
			return nil, fmt.Errorf("failed to load time field %d: %w", i, err)
		}
	}
	e.TimeLock = int64(times[0])
	e.CreatedAt = int64(times[1])
	e.ClosedAt = int64(times[2])
	return e, nil
}
