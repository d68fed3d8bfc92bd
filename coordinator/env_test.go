package coordinator

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gagliardetto/solana-go"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"

	"github.com/TEENet-io/atomic-swap/aptosman"
	"github.com/TEENet-io/atomic-swap/audit"
	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/etherman"
	"github.com/TEENet-io/atomic-swap/htlc"
	"github.com/TEENet-io/atomic-swap/registry"
	"github.com/TEENet-io/atomic-swap/solman"
	"github.com/TEENet-io/atomic-swap/state"
	"github.com/TEENet-io/atomic-swap/swap"
	"github.com/TEENet-io/atomic-swap/tonman"
)

var testStart = time.Unix(1_700_000_000, 0)

var testRetry = htlc.RetryConfig{
	InitialInterval: time.Millisecond,
	MaxInterval:     2 * time.Millisecond,
	MaxElapsedTime:  time.Second,
}

// chainEnv is one simulated chain with the wallet its adapter signs with.
type chainEnv struct {
	adapter  htlc.Adapter
	faults   *htlc.Faults
	wallet   string
	randAddr func(t *testing.T) string
}

type testEnv struct {
	clock  *clock.TestClock
	store  *state.MemoryStore
	sink   *audit.MemorySink
	chains map[htlc.ChainID]*chainEnv
	reg    *registry.Registry
	coord  *Coordinator
}

func newEthereum(t *testing.T, clk clock.Clock) *chainEnv {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	from := crypto.PubkeyToAddress(key.PublicKey)

	cfg := etherman.DefaultConfig()
	cfg.Retry = testRetry
	client := etherman.NewSimulatedClient(htlc.NewLedger(clk), from)
	return &chainEnv{
		adapter: etherman.NewAdapter(cfg, client, clk),
		faults:  &client.Faults,
		wallet:  from.Hex(),
		randAddr: func(t *testing.T) string {
			k, err := crypto.GenerateKey()
			require.NoError(t, err)
			return crypto.PubkeyToAddress(k.PublicKey).Hex()
		},
	}
}

func randSolana(t *testing.T) solana.PublicKey {
	k, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	return k.PublicKey()
}

func newSolana(t *testing.T, clk clock.Clock) *chainEnv {
	payer := randSolana(t)
	program := randSolana(t)

	cfg := solman.DefaultConfig()
	cfg.ProgramID = program.String()
	cfg.Retry = testRetry
	client := solman.NewSimulatedClient(htlc.NewLedger(clk), program, payer)
	adapter, err := solman.NewAdapter(cfg, client, clk)
	require.NoError(t, err)
	return &chainEnv{
		adapter:  adapter,
		faults:   &client.Faults,
		wallet:   payer.String(),
		randAddr: func(t *testing.T) string { return randSolana(t).String() },
	}
}

func randTON() *address.Address {
	return address.NewAddress(0x11, 0, common.RandBytes(32))
}

func newTON(t *testing.T, clk clock.Clock) *chainEnv {
	wallet := randTON()

	cfg := tonman.DefaultConfig()
	cfg.Retry = testRetry
	client := tonman.NewSimulatedClient(htlc.NewLedger(clk), wallet)
	adapter, err := tonman.NewAdapter(cfg, client, clk)
	require.NoError(t, err)
	return &chainEnv{
		adapter:  adapter,
		faults:   &client.Faults,
		wallet:   wallet.String(),
		randAddr: func(*testing.T) string { return randTON().String() },
	}
}

func randAptos(t *testing.T) string {
	key, err := aptosman.GenPrivateKey()
	require.NoError(t, err)
	account, err := aptosman.NewAccount(key)
	require.NoError(t, err)
	addr := account.AccountAddress()
	return addr.String()
}

func newAptos(t *testing.T, clk clock.Clock) *chainEnv {
	module, err := aptosman.GenPrivateKey()
	require.NoError(t, err)
	moduleAccount, err := aptosman.NewAccount(module)
	require.NoError(t, err)
	key, err := aptosman.GenPrivateKey()
	require.NoError(t, err)
	account, err := aptosman.NewAccount(key)
	require.NoError(t, err)

	moduleAddr := moduleAccount.AccountAddress()
	cfg := aptosman.DefaultConfig()
	cfg.ModuleAddress = moduleAddr.String()
	cfg.Retry = testRetry
	client := aptosman.NewSimulatedClient(htlc.NewLedger(clk), moduleAddr, account.AccountAddress())
	adapter, err := aptosman.NewAdapter(cfg, client, clk)
	require.NoError(t, err)
	wallet := account.AccountAddress()
	return &chainEnv{
		adapter:  adapter,
		faults:   &client.Faults,
		wallet:   wallet.String(),
		randAddr: randAptos,
	}
}

func newTestEnv(t *testing.T) *testEnv {
	clk := clock.NewTestClock(testStart)
	chains := map[htlc.ChainID]*chainEnv{
		htlc.ChainEthereum: newEthereum(t, clk),
		htlc.ChainSolana:   newSolana(t, clk),
		htlc.ChainTON:      newTON(t, clk),
		htlc.ChainAptos:    newAptos(t, clk),
	}
	var adapters []htlc.Adapter
	for _, c := range chains {
		adapters = append(adapters, c.adapter)
	}
	reg, err := registry.New(adapters...)
	require.NoError(t, err)

	env := &testEnv{
		clock:  clk,
		store:  state.NewMemoryStore(),
		sink:   &audit.MemorySink{},
		chains: chains,
		reg:    reg,
	}
	env.coord = env.newCoordinator(t, env.store, reg)
	return env
}

func (env *testEnv) newCoordinator(t *testing.T, store state.SwapStore, resolver Resolver) *Coordinator {
	coord, err := New(context.Background(), DefaultConfig(), resolver, store, env.sink, env.clock)
	require.NoError(t, err)
	return coord
}

// swapConfig swaps srcAmount on src for dstAmount on dst. The source wallet
// is the initiator and the destination wallet the counterparty.
func (env *testEnv) swapConfig(t *testing.T, src, dst htlc.ChainID, srcAmount, dstAmount string) swap.Config {
	return swap.Config{
		SourceChain:         src,
		DestinationChain:    dst,
		SourceAmount:        decimal.RequireFromString(srcAmount),
		DestAmount:          decimal.RequireFromString(dstAmount),
		SenderAddress:       env.chains[src].wallet,
		ReceiverAddress:     env.chains[src].randAddr(t),
		DestSenderAddress:   env.chains[dst].wallet,
		DestReceiverAddress: env.chains[dst].randAddr(t),
		TimeLockHours:       24,
	}
}

func (env *testEnv) legInfo(t *testing.T, info *swap.Info, leg swap.Leg) *htlc.Info {
	got, err := env.chains[info.Chain(leg)].adapter.GetInfo(context.Background(), info.ContractID(leg))
	require.NoError(t, err)
	return got
}

// participated returns a swap with both legs locked.
func (env *testEnv) participated(t *testing.T, src, dst htlc.ChainID) *swap.Info {
	ctx := context.Background()
	info, err := env.coord.InitiateSwap(ctx, env.swapConfig(t, src, dst, "1.0", "50.0"))
	require.NoError(t, err)
	info, err = env.coord.ParticipateInSwap(ctx, info.ID)
	require.NoError(t, err)
	return info
}
