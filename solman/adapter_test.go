package solman

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/atomic-swap/hashlock"
	"github.com/TEENet-io/atomic-swap/htlc"
)

var testStart = time.Unix(1_700_000_000, 0)

type testEnv struct {
	clock   *clock.TestClock
	client  *SimulatedClient
	adapter *Adapter

	programID solana.PublicKey
	sender    solana.PublicKey
	receiver  solana.PublicKey
	secret    hashlock.Secret
	hashLock  hashlock.HashLock
}

func newTestEnv(t *testing.T) *testEnv {
	clk := clock.NewTestClock(testStart)

	payer, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	receiver, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	program, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.ProgramID = program.PublicKey().String()
	cfg.Retry = htlc.RetryConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	}
	client := NewSimulatedClient(htlc.NewLedger(clk), program.PublicKey(), payer.PublicKey())
	adapter, err := NewAdapter(cfg, client, clk)
	require.NoError(t, err)

	secret, hashLock, err := hashlock.Generate()
	require.NoError(t, err)

	return &testEnv{
		clock:     clk,
		client:    client,
		adapter:   adapter,
		programID: program.PublicKey(),
		sender:    payer.PublicKey(),
		receiver:  receiver.PublicKey(),
		secret:    secret,
		hashLock:  hashLock,
	}
}

func (env *testEnv) config(amount string) *htlc.Config {
	return &htlc.Config{
		Chain:    htlc.ChainSolana,
		Sender:   env.sender.String(),
		Receiver: env.receiver.String(),
		Amount:   decimal.RequireFromString(amount),
		HashLock: env.hashLock,
		TimeLock: testStart.Add(12 * time.Hour).Unix(),
	}
}

func TestCreateAndClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.adapter.Create(ctx, env.config("2.5"))
	require.NoError(t, err)

	pda, err := FindHTLCAddress(env.programID, env.hashLock)
	require.NoError(t, err)
	assert.Equal(t, pda.String(), string(id))

	info, err := env.adapter.GetInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, htlc.StatusActive, info.Status)
	assert.True(t, decimal.RequireFromString("2.5").Equal(info.Config.Amount))
	assert.Equal(t, env.receiver.String(), info.Config.Receiver)
	assert.Equal(t, env.hashLock, info.Config.HashLock)
	assert.Equal(t, testStart.Unix(), info.CreatedAt.Unix())

	e, err := env.client.ledger.Get(string(id))
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), e.Amount.Uint64())

	wrong, _, err := hashlock.Generate()
	require.NoError(t, err)
	_, err = env.adapter.Claim(ctx, id, wrong)
	assert.ErrorIs(t, err, htlc.ErrInvalidSecret)

	tx, err := env.adapter.Claim(ctx, id, env.secret)
	require.NoError(t, err)
	assert.NotEmpty(t, tx)

	info, err = env.adapter.GetInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, htlc.StatusCompleted, info.Status)

	_, err = env.adapter.Claim(ctx, id, env.secret)
	assert.ErrorIs(t, err, htlc.ErrNotActive)
	_, err = env.adapter.Refund(ctx, id)
	assert.ErrorIs(t, err, htlc.ErrNotActive)
}

func TestSameHashLockTwice(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.adapter.Create(ctx, env.config("1"))
	require.NoError(t, err)
	_, err = env.adapter.Create(ctx, env.config("1"))
	assert.ErrorIs(t, err, htlc.ErrInvalidState)
}

func TestRefundAfterExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	id, err := env.adapter.Create(ctx, env.config("1"))
	require.NoError(t, err)

	_, err = env.adapter.Refund(ctx, id)
	assert.ErrorIs(t, err, htlc.ErrTimelockNotExpired)

	env.clock.SetTime(testStart.Add(13 * time.Hour))
	info, err := env.adapter.GetInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, htlc.StatusExpired, info.Status)

	_, err = env.adapter.Claim(ctx, id, env.secret)
	assert.ErrorIs(t, err, htlc.ErrExpired)

	_, err = env.adapter.Refund(ctx, id)
	require.NoError(t, err)
	info, err = env.adapter.GetInfo(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, htlc.StatusRefunded, info.Status)
	assert.Equal(t, testStart.Add(13*time.Hour).Unix(), info.RefundedAt.Unix())
}

func TestCreateRejectsBadConfig(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cfg := env.config("1")
	cfg.Token = "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v"
	_, err := env.adapter.Create(ctx, cfg)
	assert.ErrorIs(t, err, htlc.ErrConfigInvalid)

	cfg = env.config("1")
	cfg.Sender = env.receiver.String()
	_, err = env.adapter.Create(ctx, cfg)
	assert.ErrorIs(t, err, htlc.ErrConfigInvalid)

	cfg = env.config("1")
	cfg.Receiver = "not-base58!"
	_, err = env.adapter.Create(ctx, cfg)
	assert.ErrorIs(t, err, htlc.ErrConfigInvalid)

	// lamports have nine decimals
	_, err = env.adapter.Create(ctx, env.config("0.0000000001"))
	assert.ErrorIs(t, err, htlc.ErrConfigInvalid)

	_, err = env.adapter.GetInfo(ctx, "not-base58!")
	assert.ErrorIs(t, err, htlc.ErrNotFound)
	_, err = env.adapter.GetInfo(ctx, htlc.ContractID(env.receiver.String()))
	assert.ErrorIs(t, err, htlc.ErrNotFound)
}

func TestRetriesTransientAndPending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.client.Faults.Inject(htlc.OpCreate, errors.New("Blockhash not found"))
	env.client.Faults.Inject(htlc.OpConfirm, htlc.ErrTxPending)

	id, err := env.adapter.Create(ctx, env.config("1"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}

func TestConfirmFailureKeepsAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.client.Faults.Inject(htlc.OpConfirm, errors.New("rpc node unreachable"))
	_, err := env.adapter.Create(ctx, env.config("1"))
	require.ErrorIs(t, err, htlc.ErrUnconfirmed)

	var pending *htlc.PendingError
	require.ErrorAs(t, err, &pending)
	pda, err := FindHTLCAddress(env.programID, env.hashLock)
	require.NoError(t, err)
	assert.Equal(t, pda.String(), string(pending.ID))
	assert.NotEmpty(t, pending.Tx)

	info, err := env.adapter.GetInfo(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, htlc.StatusActive, info.Status)
}

func TestProgramErrorIsNotRetried(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.client.Faults.Inject(htlc.OpCreate, programError(0x1771f))
	_, err := env.adapter.Create(ctx, env.config("1"))
	assert.ErrorIs(t, err, htlc.ErrChainSubmission)

	_, err = env.adapter.Create(ctx, env.config("1"))
	assert.NoError(t, err)
}

func TestClassifyProgramErrors(t *testing.T) {
	cases := map[int]error{
		ErrCodeInvalidSecret:         htlc.ErrInvalidSecret,
		ErrCodeNotActive:             htlc.ErrNotActive,
		ErrCodeTimelockNotExpired:    htlc.ErrTimelockNotExpired,
		ErrCodeExpired:               htlc.ErrExpired,
		ErrCodeInvalidAmount:         htlc.ErrConfigInvalid,
		ErrCodeNotSender:             htlc.ErrInvalidState,
		ErrCodeAccountNotInitialized: htlc.ErrNotFound,
	}
	for code, want := range cases {
		assert.ErrorIs(t, classify(programError(code)), want, code)
	}
	assert.True(t, htlc.IsRetryable(classify(errors.New("Node is behind by 42 slots"))))
	assert.False(t, htlc.IsRetryable(classify(programError(0x1))))
}

func TestHTLCAccountLayout(t *testing.T) {
	acc := &HTLCAccount{
		Sender:    solana.SystemProgramID,
		HashLock:  [32]byte{9},
		TimeLock:  1234,
		Amount:    5678,
		Status:    StatusRefunded,
		CreatedAt: 11,
		ClosedAt:  22,
	}
	data := acc.Encode()
	assert.Len(t, data, htlcAccountSize)

	got, err := DecodeHTLCAccount(data)
	require.NoError(t, err)
	assert.Equal(t, acc, got)

	data[0] ^= 0xff
	_, err = DecodeHTLCAccount(data)
	assert.Error(t, err)
}

func TestInstructionData(t *testing.T) {
	env := newTestEnv(t)
	pda, err := FindHTLCAddress(env.programID, env.hashLock)
	require.NoError(t, err)

	ix := NewCreateInstruction(env.programID, env.sender, env.receiver, pda, env.hashLock, 77, 88)
	data, err := ix.Data()
	require.NoError(t, err)
	assert.Len(t, data, 8+32+8+8)
	assert.Equal(t, createDiscriminator[:], data[:8])
	assert.Equal(t, env.hashLock[:], data[8:40])
	assert.Len(t, ix.Accounts(), 4)
	assert.True(t, ix.Accounts()[0].IsSigner)
}
