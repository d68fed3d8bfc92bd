package aptosman

import (
	"fmt"

	"github.com/aptos-labs/aptos-go-sdk"
	"github.com/aptos-labs/aptos-go-sdk/bcs"
)

// ModuleName of the HTLC Move module under the configured module address.
const ModuleName = "htlc"

const (
	FuncCreate  = "create"
	FuncClaim   = "claim"
	FuncRefund  = "refund"
	FuncGetHTLC = "get_htlc"
)

// Entry status as returned by get_htlc. Zero means no entry for the hash
// lock.
const (
	StatusNone     uint8 = 0
	StatusActive   uint8 = 1
	StatusClaimed  uint8 = 2
	StatusRefunded uint8 = 3
)

// Move abort codes of the htlc module.
const (
	AbortNotFound           = "E_NOT_FOUND"
	AbortHashMismatch       = "E_HASH_MISMATCH"
	AbortNotActive          = "E_NOT_ACTIVE"
	AbortTimelockNotExpired = "E_TIMELOCK_NOT_EXPIRED"
	AbortExpired            = "E_EXPIRED"
	AbortExists             = "E_EXISTS"
	AbortInvalidAmount      = "E_INVALID_AMOUNT"
	AbortInvalidTimelock    = "E_INVALID_TIMELOCK"
	AbortNotSender          = "E_NOT_SENDER"
)

var abortCodes = map[string]uint64{
	AbortNotFound:           1,
	AbortHashMismatch:       2,
	AbortNotActive:          3,
	AbortTimelockNotExpired: 4,
	AbortExpired:            5,
	AbortExists:             6,
	AbortInvalidAmount:      7,
	AbortInvalidTimelock:    8,
	AbortNotSender:          9,
}

// MoveAbort renders the vm status of a transaction aborted by the module.
func MoveAbort(module aptos.AccountAddress, name string) string {
	return fmt.Sprintf("Move abort in %s::%s: %s(0x%x): ", module.String(), ModuleName, name, 0x10000|abortCodes[name])
}

// HTLCView is the tuple returned by get_htlc.
type HTLCView struct {
	Status    uint8
	Sender    aptos.AccountAddress
	Receiver  aptos.AccountAddress
	Amount    uint64
	TimeLock  int64
	CreatedAt int64
	ClosedAt  int64
}

func moduleID(module aptos.AccountAddress) aptos.ModuleId {
	return aptos.ModuleId{Address: module, Name: ModuleName}
}

func serializeBytes(b []byte) ([]byte, error) {
	ser := &bcs.Serializer{}
	ser.WriteBytes(b)
	return ser.ToBytes(), ser.Error()
}

func NewCreatePayload(module, receiver aptos.AccountAddress, amount uint64, hashLock [32]byte, timeLock int64) (*aptos.EntryFunction, error) {
	receiverBytes, err := bcs.Serialize(&receiver)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize receiver: %w", err)
	}
	amountBytes, err := bcs.SerializeU64(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize amount: %w", err)
	}
	hashLockBytes, err := serializeBytes(hashLock[:])
	if err != nil {
		return nil, fmt.Errorf("failed to serialize hash lock: %w", err)
	}
	timeLockBytes, err := bcs.SerializeU64(uint64(timeLock))
	if err != nil {
		return nil, fmt.Errorf("failed to serialize time lock: %w", err)
	}

	return &aptos.EntryFunction{
		Module:   moduleID(module),
		Function: FuncCreate,
		ArgTypes: []aptos.TypeTag{},
		Args:     [][]byte{receiverBytes, amountBytes, hashLockBytes, timeLockBytes},
	}, nil
}

// NewClaimPayload pays the receiver of the entry under hashLock. Any account
// may submit it.
func NewClaimPayload(module aptos.AccountAddress, hashLock [32]byte, secret []byte) (*aptos.EntryFunction, error) {
	hashLockBytes, err := serializeBytes(hashLock[:])
	if err != nil {
		return nil, fmt.Errorf("failed to serialize hash lock: %w", err)
	}
	secretBytes, err := serializeBytes(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize secret: %w", err)
	}

	return &aptos.EntryFunction{
		Module:   moduleID(module),
		Function: FuncClaim,
		ArgTypes: []aptos.TypeTag{},
		Args:     [][]byte{hashLockBytes, secretBytes},
	}, nil
}

func NewRefundPayload(module aptos.AccountAddress, hashLock [32]byte) (*aptos.EntryFunction, error) {
	hashLockBytes, err := serializeBytes(hashLock[:])
	if err != nil {
		return nil, fmt.Errorf("failed to serialize hash lock: %w", err)
	}

	return &aptos.EntryFunction{
		Module:   moduleID(module),
		Function: FuncRefund,
		ArgTypes: []aptos.TypeTag{},
		Args:     [][]byte{hashLockBytes},
	}, nil
}

func NewGetHTLCView(module aptos.AccountAddress, hashLock [32]byte) (*aptos.ViewPayload, error) {
	hashLockBytes, err := serializeBytes(hashLock[:])
	if err != nil {
		return nil, fmt.Errorf("failed to serialize hash lock: %w", err)
	}

	return &aptos.ViewPayload{
		Module:   moduleID(module),
		Function: FuncGetHTLC,
		ArgTypes: []aptos.TypeTag{},
		Args:     [][]byte{hashLockBytes},
	}, nil
}
