package solman

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// HTLC program account status.
const (
	StatusActive   uint8 = 1
	StatusClaimed  uint8 = 2
	StatusRefunded uint8 = 3
)

// Custom program error codes.
const (
	ErrCodeInvalidSecret      = 6000
	ErrCodeNotActive          = 6001
	ErrCodeTimelockNotExpired = 6002
	ErrCodeExpired            = 6003
	ErrCodeInvalidAmount      = 6004
	ErrCodeInvalidTimelock    = 6005
	ErrCodeNotSender          = 6006

	// framework error for an account that was never initialized
	ErrCodeAccountNotInitialized = 3012
)

const htlcAccountSize = 8 + 32 + 32 + 32 + 8 + 8 + 1 + 8 + 8

var htlcSeed = []byte("htlc")

var (
	createDiscriminator  = discriminator("global:create")
	claimDiscriminator   = discriminator("global:claim")
	refundDiscriminator  = discriminator("global:refund")
	accountDiscriminator = discriminator("account:HtlcAccount")
)

var ErrUnknownInstruction = errors.New("unknown htlc instruction")

func discriminator(preimage string) [8]byte {
	var d [8]byte
	h := sha256.Sum256([]byte(preimage))
	copy(d[:], h[:8])
	return d
}

// FindHTLCAddress derives the account holding the HTLC for hashLock.
func FindHTLCAddress(programID solana.PublicKey, hashLock [32]byte) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{htlcSeed, hashLock[:]}, programID)
	return addr, err
}

func NewCreateInstruction(
	programID, sender, receiver, htlcAccount solana.PublicKey,
	hashLock [32]byte, timeLock int64, amount uint64,
) solana.Instruction {
	data := make([]byte, 0, 8+32+8+8)
	data = append(data, createDiscriminator[:]...)
	data = append(data, hashLock[:]...)
	data = binary.LittleEndian.AppendUint64(data, uint64(timeLock))
	data = binary.LittleEndian.AppendUint64(data, amount)

	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		{PublicKey: sender, IsSigner: true, IsWritable: true},
		{PublicKey: receiver},
		{PublicKey: htlcAccount, IsWritable: true},
		{PublicKey: solana.SystemProgramID},
	}, data)
}

// NewClaimInstruction pays the receiver. Any payer may submit it.
func NewClaimInstruction(programID, payer, receiver, htlcAccount solana.PublicKey, secret [32]byte) solana.Instruction {
	data := make([]byte, 0, 8+32)
	data = append(data, claimDiscriminator[:]...)
	data = append(data, secret[:]...)

	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		{PublicKey: receiver, IsWritable: true},
		{PublicKey: htlcAccount, IsWritable: true},
	}, data)
}

func NewRefundInstruction(programID, sender, htlcAccount solana.PublicKey) solana.Instruction {
	return solana.NewInstruction(programID, solana.AccountMetaSlice{
		{PublicKey: sender, IsSigner: true, IsWritable: true},
		{PublicKey: htlcAccount, IsWritable: true},
	}, refundDiscriminator[:])
}

// HTLCAccount is the program account layout after the 8-byte discriminator.
type HTLCAccount struct {
	Sender    solana.PublicKey
	Receiver  solana.PublicKey
	HashLock  [32]byte
	TimeLock  int64
	Amount    uint64
	Status    uint8
	CreatedAt int64
	ClosedAt  int64
}

func (a *HTLCAccount) Encode() []byte {
	data := make([]byte, 0, htlcAccountSize)
	data = append(data, accountDiscriminator[:]...)
	data = append(data, a.Sender[:]...)
	data = append(data, a.Receiver[:]...)
	data = append(data, a.HashLock[:]...)
	data = binary.LittleEndian.AppendUint64(data, uint64(a.TimeLock))
	data = binary.LittleEndian.AppendUint64(data, a.Amount)
	data = append(data, a.Status)
	data = binary.LittleEndian.AppendUint64(data, uint64(a.CreatedAt))
	data = binary.LittleEndian.AppendUint64(data, uint64(a.ClosedAt))
	return data
}

func DecodeHTLCAccount(data []byte) (*HTLCAccount, error) {
	if len(data) < htlcAccountSize {
		return nil, fmt.Errorf("htlc account too short: %d bytes", len(data))
	}
	if [8]byte(data[:8]) != accountDiscriminator {
		return nil, fmt.Errorf("not an htlc account")
	}

	a := &HTLCAccount{}
	off := 8
	copy(a.Sender[:], data[off:off+32])
	off += 32
	copy(a.Receiver[:], data[off:off+32])
	off += 32
	copy(a.HashLock[:], data[off:off+32])
	off += 32
	a.TimeLock = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	a.Amount = binary.LittleEndian.Uint64(data[off:])
	off += 8
	a.Status = data[off]
	off++
	a.CreatedAt = int64(binary.LittleEndian.Uint64(data[off:]))
	off += 8
	a.ClosedAt = int64(binary.LittleEndian.Uint64(data[off:]))
	return a, nil
}
