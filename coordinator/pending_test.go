package coordinator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/atomic-swap/audit"
	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/htlc"
	"github.com/TEENet-io/atomic-swap/registry"
	"github.com/TEENet-io/atomic-swap/swap"
)

func TestInitiateConfirmFailureKeepsSourceLeg(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.chains[htlc.ChainEthereum].faults.Inject(htlc.OpConfirm, errors.New("receipt lookup failed"))
	_, err := env.coord.InitiateSwap(ctx, env.swapConfig(t, htlc.ChainEthereum, htlc.ChainSolana, "1", "50"))
	require.ErrorIs(t, err, htlc.ErrUnconfirmed)

	var swapErr *SwapError
	require.ErrorAs(t, err, &swapErr)
	info := swapErr.Swap
	assert.Equal(t, swap.StatusPending, info.Status)
	assert.NotEmpty(t, info.SourceContractID)
	assert.Equal(t, OpInitiate, info.PendingOp)
	assert.Equal(t, swap.LegSource, info.PendingLeg)
	assert.NotEmpty(t, info.PendingTx)
	assert.Equal(t, htlc.StatusActive, env.legInfo(t, info, swap.LegSource).Status)

	stored, err := env.store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, info.SourceContractID, stored[0].SourceContractID)
	assert.Len(t, env.sink.OfType(audit.EventTxUnconfirmed, info.ID), 1)
	assert.Empty(t, env.sink.OfType(audit.EventSwapFailed, info.ID))

	_, err = env.coord.ParticipateInSwap(ctx, info.ID)
	assert.ErrorIs(t, err, htlc.ErrInvalidState)

	info, err = env.coord.ResumeSwap(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, swap.StatusInitiated, info.Status)
	assert.Empty(t, info.PendingOp)
	assert.Empty(t, info.FailureReason)
	assert.Len(t, env.sink.OfType(audit.EventSwapInitiated, info.ID), 1)

	_, err = env.coord.ResumeSwap(ctx, info.ID)
	assert.ErrorIs(t, err, htlc.ErrInvalidState)

	info, err = env.coord.ParticipateInSwap(ctx, info.ID)
	require.NoError(t, err)
	info, err = env.coord.ClaimSwap(ctx, info.ID)
	require.NoError(t, err)
	info, err = env.coord.CompleteSwap(ctx, info.ID)
	require.NoError(t, err)
	assert.True(t, info.Terminal())
}

func TestUnconfirmedSourceLegCanBeRefunded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.chains[htlc.ChainEthereum].faults.Inject(htlc.OpConfirm, errors.New("receipt lookup failed"))
	_, err := env.coord.InitiateSwap(ctx, env.swapConfig(t, htlc.ChainEthereum, htlc.ChainTON, "1", "2"))
	var swapErr *SwapError
	require.ErrorAs(t, err, &swapErr)
	id := swapErr.Swap.ID

	// refunds wait until the transaction is settled
	env.clock.SetTime(testStart.Add(25 * time.Hour))
	_, err = env.coord.RefundSwap(ctx, id, swap.LegSource)
	assert.ErrorIs(t, err, htlc.ErrUnconfirmed)

	assert.Equal(t, 1, env.coord.ResumePending(ctx))
	info, err := env.coord.RefundSwap(ctx, id, swap.LegSource)
	require.NoError(t, err)
	assert.Equal(t, swap.StatusRefunded, info.Status)
	assert.Equal(t, htlc.StatusRefunded, env.legInfo(t, info, swap.LegSource).Status)
	assert.True(t, info.Terminal())

	// the secret was never revealed and is dropped with the swap
	stored, err := env.store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Nil(t, stored[0].Secret)
}

func TestClaimConfirmFailureThenComplete(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	info := env.participated(t, htlc.ChainEthereum, htlc.ChainSolana)

	env.chains[htlc.ChainSolana].faults.Inject(htlc.OpConfirm, errors.New("rpc node unreachable"))
	_, err := env.coord.ClaimSwap(ctx, info.ID)
	require.ErrorIs(t, err, htlc.ErrUnconfirmed)

	got, err := env.coord.GetSwapInfo(info.ID)
	require.NoError(t, err)
	assert.Equal(t, swap.StatusInitiated, got.Status)
	assert.Equal(t, OpClaim, got.PendingOp)
	pendingTx := got.PendingTx
	assert.NotEmpty(t, pendingTx)
	assert.Equal(t, htlc.StatusCompleted, env.legInfo(t, got, swap.LegDestination).Status)

	_, err = env.coord.CompleteSwap(ctx, info.ID)
	assert.ErrorIs(t, err, htlc.ErrInvalidState)
	_, err = env.coord.RefundSwap(ctx, info.ID, swap.LegDestination)
	assert.ErrorIs(t, err, htlc.ErrUnconfirmed)

	// claiming again finds the first claim on chain
	info, err = env.coord.ClaimSwap(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, swap.StatusClaimed, info.Status)
	assert.Equal(t, pendingTx, info.DestinationClaimTx)
	assert.Empty(t, info.PendingOp)
	assert.Len(t, env.sink.OfType(audit.EventSwapClaimed, info.ID), 1)

	info, err = env.coord.CompleteSwap(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, htlc.StatusCompleted, env.legInfo(t, info, swap.LegSource).Status)
	assert.True(t, info.Terminal())
}

func TestCompleteConfirmFailureIsResumed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	info := env.participated(t, htlc.ChainAptos, htlc.ChainEthereum)
	info, err := env.coord.ClaimSwap(ctx, info.ID)
	require.NoError(t, err)

	env.chains[htlc.ChainAptos].faults.Inject(htlc.OpConfirm, errors.New("fullnode returned an empty body"))
	_, err = env.coord.CompleteSwap(ctx, info.ID)
	require.ErrorIs(t, err, htlc.ErrUnconfirmed)

	info, err = env.coord.ResumeSwap(ctx, info.ID)
	require.NoError(t, err)
	assert.False(t, info.SourceClaimedAt.IsZero())
	assert.NotEmpty(t, info.SourceClaimTx)
	assert.True(t, info.Terminal())
}

// droppedCreate reports every creation as sent but never lands it.
type droppedCreate struct {
	htlc.Adapter
}

func (d droppedCreate) Create(context.Context, *htlc.Config) (htlc.ContractID, error) {
	return "", &htlc.PendingError{
		Chain: d.Chain(),
		Op:    htlc.OpCreate,
		ID:    htlc.ContractID(common.Bytes32ToHexStr(common.RandBytes32())),
		Tx:    "0xdead",
		Err:   htlc.ErrTxPending,
	}
}

func TestCreationThatNeverLandedFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	reg, err := registry.New(
		droppedCreate{env.chains[htlc.ChainEthereum].adapter},
		env.chains[htlc.ChainSolana].adapter,
	)
	require.NoError(t, err)
	coord := env.newCoordinator(t, env.store, reg)

	_, err = coord.InitiateSwap(ctx, env.swapConfig(t, htlc.ChainEthereum, htlc.ChainSolana, "1", "50"))
	var swapErr *SwapError
	require.ErrorAs(t, err, &swapErr)
	id := swapErr.Swap.ID

	// the transaction may still land before the time lock
	_, err = coord.ResumeSwap(ctx, id)
	assert.ErrorIs(t, err, htlc.ErrUnconfirmed)
	got, err := coord.GetSwapInfo(id)
	require.NoError(t, err)
	assert.Equal(t, swap.StatusPending, got.Status)

	env.clock.SetTime(testStart.Add(25 * time.Hour))
	_, err = coord.ResumeSwap(ctx, id)
	assert.ErrorIs(t, err, htlc.ErrChainSubmission)

	got, err = coord.GetSwapInfo(id)
	require.NoError(t, err)
	assert.Equal(t, swap.StatusFailed, got.Status)
	assert.Empty(t, got.SourceContractID)
	assert.Empty(t, got.PendingOp)
	assert.True(t, got.Terminal())
	assert.Equal(t, 0, coord.ResumePending(ctx))
}

func TestSwapLocksAreReleased(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		info := env.participated(t, htlc.ChainEthereum, htlc.ChainSolana)
		_, err := env.coord.ClaimSwap(ctx, info.ID)
		require.NoError(t, err)
		_, err = env.coord.CompleteSwap(ctx, info.ID)
		require.NoError(t, err)
	}

	env.coord.locksMu.Lock()
	defer env.coord.locksMu.Unlock()
	assert.Empty(t, env.coord.locks)
}
