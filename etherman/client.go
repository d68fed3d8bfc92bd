package etherman

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/htlc"
)

const erc20IDPrefix = "erc20:"

// ContractRef points at one HTLC inside either the native or the ERC20
// contract.
type ContractRef struct {
	ERC20 bool
	ID    [32]byte
}

func (r ContractRef) ContractID() htlc.ContractID {
	id := common.Bytes32ToHexStr(r.ID)
	if r.ERC20 {
		return htlc.ContractID(erc20IDPrefix + id)
	}
	return htlc.ContractID(id)
}

// NewContractRef returns the id the contract assigns to p sent by sender:
// sha256 over the packed creation parameters.
func NewContractRef(sender ethcommon.Address, p *NewContractParams) ContractRef {
	packed := append([]byte{}, sender.Bytes()...)
	packed = append(packed, p.Receiver.Bytes()...)
	if p.Token != (ethcommon.Address{}) {
		packed = append(packed, p.Token.Bytes()...)
	}
	packed = append(packed, ethcommon.LeftPadBytes(p.Amount.Bytes(), 32)...)
	packed = append(packed, p.HashLock[:]...)
	packed = append(packed, ethcommon.LeftPadBytes(p.TimeLock.Bytes(), 32)...)
	return ContractRef{ERC20: p.Token != (ethcommon.Address{}), ID: sha256.Sum256(packed)}
}

func ParseContractID(id htlc.ContractID) (ContractRef, error) {
	s := string(id)
	ref := ContractRef{}
	if strings.HasPrefix(s, erc20IDPrefix) {
		ref.ERC20 = true
		s = strings.TrimPrefix(s, erc20IDPrefix)
	}
	b, err := common.HexStrToBytes32(s)
	if err != nil {
		return ContractRef{}, fmt.Errorf("%w: malformed contract id %q", htlc.ErrNotFound, id)
	}
	ref.ID = b
	return ref, nil
}

// Params of newContract. A zero Token locks ether.
type NewContractParams struct {
	Receiver ethcommon.Address
	HashLock [32]byte
	TimeLock *big.Int
	Amount   *big.Int
	Token    ethcommon.Address
}

// Contract mirrors the getContract outputs. A zero Sender means the id is
// unknown to the contract.
type Contract struct {
	Sender    ethcommon.Address
	Receiver  ethcommon.Address
	Token     ethcommon.Address
	Amount    *big.Int
	HashLock  [32]byte
	TimeLock  *big.Int
	Withdrawn bool
	Refunded  bool
	Preimage  [32]byte
}

// Client is the wallet / rpc handle the adapter drives. Submissions return
// the transaction hash as soon as the node accepted it.
type Client interface {
	From() ethcommon.Address
	NewContract(ctx context.Context, p *NewContractParams) (ethcommon.Hash, error)
	Withdraw(ctx context.Context, ref ContractRef, preimage [32]byte) (ethcommon.Hash, error)
	Refund(ctx context.Context, ref ContractRef) (ethcommon.Hash, error)
	GetContract(ctx context.Context, ref ContractRef) (*Contract, error)
	// Receipt fails with htlc.ErrTxPending until the transaction is mined
	// with the given number of confirmations.
	Receipt(ctx context.Context, txHash ethcommon.Hash, confirmations uint64) (*types.Receipt, error)
}
