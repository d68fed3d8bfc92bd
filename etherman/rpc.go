package etherman

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/atomic-swap/htlc"
)

type ethereumClient interface {
	ethereum.BlockNumberReader
	ethereum.TransactionReader

	bind.DeployBackend
	bind.ContractBackend
}

// RPCClient talks to a node over json-rpc and signs with one key.
type RPCClient struct {
	ethClient ethereumClient
	auth      *bind.TransactOpts

	htlc      *bind.BoundContract
	erc20HTLC *bind.BoundContract
	erc20Addr ethcommon.Address
}

func NewRPCClient(ctx context.Context, cfg *Config) (*RPCClient, error) {
	ethClient, err := ethclient.DialContext(ctx, cfg.URL)
	if err != nil {
		return nil, err
	}

	chainID, err := ethClient.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}

	sk, err := StringToPrivateKey(cfg.PrivateKey)
	if err != nil {
		return nil, err
	}
	auth, err := bind.NewKeyedTransactorWithChainID(sk, chainID)
	if err != nil {
		return nil, err
	}

	return newRPCClient(ethClient, auth, cfg)
}

func newRPCClient(ethClient ethereumClient, auth *bind.TransactOpts, cfg *Config) (*RPCClient, error) {
	if !ethcommon.IsHexAddress(cfg.HTLCAddress) {
		return nil, fmt.Errorf("invalid htlc contract address %q", cfg.HTLCAddress)
	}

	c := &RPCClient{
		ethClient: ethClient,
		auth:      auth,
		htlc:      bind.NewBoundContract(ethcommon.HexToAddress(cfg.HTLCAddress), htlcABI, ethClient, ethClient, ethClient),
	}
	if cfg.ERC20HTLCAddress != "" {
		if !ethcommon.IsHexAddress(cfg.ERC20HTLCAddress) {
			return nil, fmt.Errorf("invalid erc20 htlc contract address %q", cfg.ERC20HTLCAddress)
		}
		c.erc20Addr = ethcommon.HexToAddress(cfg.ERC20HTLCAddress)
		c.erc20HTLC = bind.NewBoundContract(c.erc20Addr, erc20HTLCABI, ethClient, ethClient, ethClient)
	}
	return c, nil
}

func (c *RPCClient) From() ethcommon.Address {
	return c.auth.From
}

func (c *RPCClient) transactOpts(ctx context.Context, value *big.Int) *bind.TransactOpts {
	opts := *c.auth
	opts.Context = ctx
	opts.Value = value
	return &opts
}

func (c *RPCClient) contract(ref ContractRef) (*bind.BoundContract, error) {
	if !ref.ERC20 {
		return c.htlc, nil
	}
	if c.erc20HTLC == nil {
		return nil, fmt.Errorf("%w: erc20 htlc contract not configured", htlc.ErrConfigInvalid)
	}
	return c.erc20HTLC, nil
}

func (c *RPCClient) NewContract(ctx context.Context, p *NewContractParams) (ethcommon.Hash, error) {
	if p.Token == (ethcommon.Address{}) {
		tx, err := c.htlc.Transact(c.transactOpts(ctx, p.Amount), "newContract", p.Receiver, p.HashLock, p.TimeLock)
		if err != nil {
			return ethcommon.Hash{}, err
		}
		return tx.Hash(), nil
	}

	if c.erc20HTLC == nil {
		return ethcommon.Hash{}, fmt.Errorf("%w: erc20 htlc contract not configured", htlc.ErrConfigInvalid)
	}

	// The token contract must allow the HTLC to pull the amount.
	token := bind.NewBoundContract(p.Token, erc20ABI, c.ethClient, c.ethClient, c.ethClient)
	approveTx, err := token.Transact(c.transactOpts(ctx, nil), "approve", c.erc20Addr, p.Amount)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	receipt, err := bind.WaitMined(ctx, c.ethClient, approveTx)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return ethcommon.Hash{}, fmt.Errorf("approve %s reverted", approveTx.Hash().Hex())
	}
	logger.WithField("tx", approveTx.Hash().Hex()).Debug("erc20 allowance granted to htlc")

	tx, err := c.erc20HTLC.Transact(c.transactOpts(ctx, nil), "newContract", p.Receiver, p.HashLock, p.TimeLock, p.Token, p.Amount)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	return tx.Hash(), nil
}

func (c *RPCClient) Withdraw(ctx context.Context, ref ContractRef, preimage [32]byte) (ethcommon.Hash, error) {
	contract, err := c.contract(ref)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	tx, err := contract.Transact(c.transactOpts(ctx, nil), "withdraw", ref.ID, preimage)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	return tx.Hash(), nil
}

func (c *RPCClient) Refund(ctx context.Context, ref ContractRef) (ethcommon.Hash, error) {
	contract, err := c.contract(ref)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	tx, err := contract.Transact(c.transactOpts(ctx, nil), "refund", ref.ID)
	if err != nil {
		return ethcommon.Hash{}, err
	}
	return tx.Hash(), nil
}

func (c *RPCClient) GetContract(ctx context.Context, ref ContractRef) (*Contract, error) {
	contract, err := c.contract(ref)
	if err != nil {
		return nil, err
	}

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "getContract", ref.ID); err != nil {
		return nil, err
	}
	if ref.ERC20 {
		return unpackERC20Contract(out)
	}
	return unpackContract(out)
}

func (c *RPCClient) Receipt(ctx context.Context, txHash ethcommon.Hash, confirmations uint64) (*types.Receipt, error) {
	receipt, err := c.ethClient.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, htlc.ErrTxPending
		}
		return nil, err
	}
	if confirmations > 1 {
		head, err := c.ethClient.BlockNumber(ctx)
		if err != nil {
			return nil, err
		}
		if head+1 < receipt.BlockNumber.Uint64()+confirmations {
			return nil, fmt.Errorf("%w: %d/%d confirmations", htlc.ErrTxPending, head+1-receipt.BlockNumber.Uint64(), confirmations)
		}
	}
	return receipt, nil
}

func unpackContract(out []interface{}) (*Contract, error) {
	if len(out) != 8 {
		return nil, fmt.Errorf("getContract returned %d values", len(out))
	}
	return &Contract{
		Sender:    *abi.ConvertType(out[0], new(ethcommon.Address)).(*ethcommon.Address),
		Receiver:  *abi.ConvertType(out[1], new(ethcommon.Address)).(*ethcommon.Address),
		Amount:    *abi.ConvertType(out[2], new(*big.Int)).(**big.Int),
		HashLock:  *abi.ConvertType(out[3], new([32]byte)).(*[32]byte),
		TimeLock:  *abi.ConvertType(out[4], new(*big.Int)).(**big.Int),
		Withdrawn: *abi.ConvertType(out[5], new(bool)).(*bool),
		Refunded:  *abi.ConvertType(out[6], new(bool)).(*bool),
		Preimage:  *abi.ConvertType(out[7], new([32]byte)).(*[32]byte),
	}, nil
}

func unpackERC20Contract(out []interface{}) (*Contract, error) {
	if len(out) != 9 {
		return nil, fmt.Errorf("getContract returned %d values", len(out))
	}
	return &Contract{
		Sender:    *abi.ConvertType(out[0], new(ethcommon.Address)).(*ethcommon.Address),
		Receiver:  *abi.ConvertType(out[1], new(ethcommon.Address)).(*ethcommon.Address),
		Token:     *abi.ConvertType(out[2], new(ethcommon.Address)).(*ethcommon.Address),
		Amount:    *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		HashLock:  *abi.ConvertType(out[4], new([32]byte)).(*[32]byte),
		TimeLock:  *abi.ConvertType(out[5], new(*big.Int)).(**big.Int),
		Withdrawn: *abi.ConvertType(out[6], new(bool)).(*bool),
		Refunded:  *abi.ConvertType(out[7], new(bool)).(*bool),
		Preimage:  *abi.ConvertType(out[8], new([32]byte)).(*[32]byte),
	}, nil
}
