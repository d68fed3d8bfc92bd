package etherman

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/htlc"
)

// SimulatedClient behaves like RPCClient against a chain running the
// HashedTimelock contracts, with the contract state kept in an htlc.Ledger.
// Contract failures surface as "execution reverted" errors carrying the
// contract's revert reasons.
type SimulatedClient struct {
	Faults htlc.Faults

	ledger *htlc.Ledger
	from   ethcommon.Address

	mu       sync.Mutex
	receipts map[ethcommon.Hash]*types.Receipt
}

func NewSimulatedClient(ledger *htlc.Ledger, from ethcommon.Address) *SimulatedClient {
	return &SimulatedClient{
		ledger:   ledger,
		from:     from,
		receipts: make(map[ethcommon.Hash]*types.Receipt),
	}
}

func (c *SimulatedClient) From() ethcommon.Address {
	return c.from
}

func revert(reason string) error {
	return fmt.Errorf("execution reverted: %s", reason)
}

func (c *SimulatedClient) NewContract(_ context.Context, p *NewContractParams) (ethcommon.Hash, error) {
	if err := c.Faults.Next(htlc.OpCreate); err != nil {
		return ethcommon.Hash{}, err
	}

	erc20 := p.Token != (ethcommon.Address{})
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		if erc20 {
			return ethcommon.Hash{}, revert("token amount must be > 0")
		}
		return ethcommon.Hash{}, revert("msg.value must be > 0")
	}

	ref := NewContractRef(c.from, p)
	token := ""
	if erc20 {
		token = p.Token.Hex()
	}
	err := c.ledger.Lock(htlc.LedgerEntry{
		ID:       string(ref.ContractID()),
		Sender:   c.from.Hex(),
		Receiver: p.Receiver.Hex(),
		Token:    token,
		Amount:   p.Amount,
		HashLock: p.HashLock,
		TimeLock: p.TimeLock.Int64(),
	})
	switch {
	case err == nil:
	case errors.Is(err, htlc.ErrConfigInvalid):
		return ethcommon.Hash{}, revert("timelock time must be in the future")
	case errors.Is(err, htlc.ErrInvalidState):
		return ethcommon.Hash{}, revert("Contract already exists")
	default:
		return ethcommon.Hash{}, err
	}

	var (
		topic ethcommon.Hash
		data  []byte
	)
	if erc20 {
		topic = HTLCERC20NewSignatureHash
		data, err = erc20HTLCABI.Events["HTLCERC20New"].Inputs.NonIndexed().Pack(p.Token, p.Amount, p.HashLock, p.TimeLock)
	} else {
		topic = LogHTLCNewSignatureHash
		data, err = htlcABI.Events["LogHTLCNew"].Inputs.NonIndexed().Pack(p.Amount, p.HashLock, p.TimeLock)
	}
	if err != nil {
		return ethcommon.Hash{}, err
	}

	return c.mine(&types.Log{
		Topics: []ethcommon.Hash{
			topic,
			ref.ID,
			ethcommon.BytesToHash(c.from.Bytes()),
			ethcommon.BytesToHash(p.Receiver.Bytes()),
		},
		Data: data,
	}), nil
}

func (c *SimulatedClient) Withdraw(_ context.Context, ref ContractRef, preimage [32]byte) (ethcommon.Hash, error) {
	if err := c.Faults.Next(htlc.OpClaim); err != nil {
		return ethcommon.Hash{}, err
	}

	id := string(ref.ContractID())
	_, err := c.ledger.Claim(id, preimage[:])
	switch {
	case err == nil:
	case errors.Is(err, htlc.ErrNotFound):
		return ethcommon.Hash{}, revert("contractId does not exist")
	case errors.Is(err, htlc.ErrInvalidSecret):
		return ethcommon.Hash{}, revert("hashlock hash does not match")
	case errors.Is(err, htlc.ErrExpired):
		return ethcommon.Hash{}, revert("withdrawable: timelock time must be in the future")
	case errors.Is(err, htlc.ErrNotActive):
		return ethcommon.Hash{}, revert("withdrawable: already " + c.closedAs(id))
	default:
		return ethcommon.Hash{}, err
	}
	return c.mine(nil), nil
}

func (c *SimulatedClient) Refund(_ context.Context, ref ContractRef) (ethcommon.Hash, error) {
	if err := c.Faults.Next(htlc.OpRefund); err != nil {
		return ethcommon.Hash{}, err
	}

	id := string(ref.ContractID())
	_, err := c.ledger.Refund(id, c.from.Hex())
	switch {
	case err == nil:
	case errors.Is(err, htlc.ErrNotFound):
		return ethcommon.Hash{}, revert("contractId does not exist")
	case errors.Is(err, htlc.ErrNotActive):
		return ethcommon.Hash{}, revert("refundable: already " + c.closedAs(id))
	case errors.Is(err, htlc.ErrTimelockNotExpired):
		return ethcommon.Hash{}, revert("refundable: timelock not yet passed")
	case errors.Is(err, htlc.ErrInvalidState):
		return ethcommon.Hash{}, revert("refundable: not sender")
	default:
		return ethcommon.Hash{}, err
	}
	return c.mine(nil), nil
}

func (c *SimulatedClient) GetContract(_ context.Context, ref ContractRef) (*Contract, error) {
	if err := c.Faults.Next(htlc.OpGetInfo); err != nil {
		return nil, err
	}

	e, err := c.ledger.Get(string(ref.ContractID()))
	if errors.Is(err, htlc.ErrNotFound) {
		// unknown ids read as an all-zero struct
		return &Contract{Amount: new(big.Int), TimeLock: new(big.Int)}, nil
	}
	if err != nil {
		return nil, err
	}

	out := &Contract{
		Sender:    ethcommon.HexToAddress(e.Sender),
		Receiver:  ethcommon.HexToAddress(e.Receiver),
		Amount:    e.Amount,
		HashLock:  e.HashLock,
		TimeLock:  big.NewInt(e.TimeLock),
		Withdrawn: e.Status == htlc.StatusCompleted,
		Refunded:  e.Status == htlc.StatusRefunded,
	}
	if e.Token != "" {
		out.Token = ethcommon.HexToAddress(e.Token)
	}
	copy(out.Preimage[:], e.Preimage)
	return out, nil
}

func (c *SimulatedClient) Receipt(_ context.Context, txHash ethcommon.Hash, _ uint64) (*types.Receipt, error) {
	if err := c.Faults.Next(htlc.OpConfirm); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[txHash]
	if !ok {
		return nil, htlc.ErrTxPending
	}
	return r, nil
}

func (c *SimulatedClient) mine(log *types.Log) ethcommon.Hash {
	txHash := ethcommon.Hash(common.RandBytes32())
	r := &types.Receipt{
		Status:      types.ReceiptStatusSuccessful,
		TxHash:      txHash,
		BlockNumber: new(big.Int).SetUint64(c.ledger.Height()),
	}
	if log != nil {
		log.TxHash = txHash
		log.BlockNumber = r.BlockNumber.Uint64()
		r.Logs = []*types.Log{log}
	}

	c.mu.Lock()
	c.receipts[txHash] = r
	c.mu.Unlock()
	return txHash
}

func (c *SimulatedClient) closedAs(id string) string {
	e, err := c.ledger.Get(id)
	if err == nil && e.Status == htlc.StatusRefunded {
		return "refunded"
	}
	return "withdrawn"
}
