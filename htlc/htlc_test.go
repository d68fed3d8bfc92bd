package htlc

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/atomic-swap/hashlock"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		MaxElapsedTime:  time.Second,
	}
}

func TestConfigValidate(t *testing.T) {
	_, hashLock, err := hashlock.Generate()
	require.NoError(t, err)
	now := time.Unix(1_000, 0)

	valid := Config{
		Chain:    ChainEthereum,
		Sender:   "a",
		Receiver: "b",
		Amount:   decimal.RequireFromString("1.5"),
		HashLock: hashLock,
		TimeLock: 1_001,
	}
	assert.NoError(t, valid.Validate(now))

	cases := map[string]func(c *Config){
		"zero amount":     func(c *Config) { c.Amount = decimal.Zero },
		"negative amount": func(c *Config) { c.Amount = decimal.RequireFromString("-1") },
		"past time lock":  func(c *Config) { c.TimeLock = 1_000 },
		"empty hash lock": func(c *Config) { c.HashLock = hashlock.HashLock{} },
		"no receiver":     func(c *Config) { c.Receiver = "" },
		"no chain":        func(c *Config) { c.Chain = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := valid
			mutate(&c)
			assert.ErrorIs(t, c.Validate(now), ErrConfigInvalid)
		})
	}
}

func TestToBaseUnits(t *testing.T) {
	v, err := ToBaseUnits(decimal.RequireFromString("1.0"), DecimalsEther)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", v.String())

	v, err = ToBaseUnits(decimal.RequireFromString("50"), DecimalsSOL)
	require.NoError(t, err)
	assert.Equal(t, "50000000000", v.String())

	_, err = ToBaseUnits(decimal.RequireFromString("0.000000001"), DecimalsAPT)
	assert.ErrorIs(t, err, ErrConfigInvalid)

	_, err = ToUint64(decimal.RequireFromString("100000000000000"), DecimalsEther)
	assert.ErrorIs(t, err, ErrConfigInvalid)

	assert.True(t, decimal.RequireFromString("0.25").Equal(FromBaseUnits(v.SetInt64(25), 2)))
}

func TestCheckClaimableAndRefundable(t *testing.T) {
	secret, hashLock, err := hashlock.Generate()
	require.NoError(t, err)
	now := time.Unix(1_000, 0)
	info := &Info{
		Status: StatusActive,
		Config: Config{HashLock: hashLock, TimeLock: 2_000},
	}

	assert.NoError(t, CheckClaimable(info, secret))
	assert.ErrorIs(t, CheckClaimable(info, []byte("x")), ErrInvalidSecret)
	assert.ErrorIs(t, CheckRefundable(info, now), ErrTimelockNotExpired)
	assert.NoError(t, CheckRefundable(info, time.Unix(2_000, 0)))

	info.Status = ObservedStatus(StatusActive, info.Config.TimeLock, time.Unix(2_000, 0))
	assert.Equal(t, StatusExpired, info.Status)
	assert.ErrorIs(t, CheckClaimable(info, secret), ErrNotActive)

	info.Status = StatusCompleted
	assert.ErrorIs(t, CheckClaimable(info, secret), ErrNotActive)
	assert.ErrorIs(t, CheckRefundable(info, time.Unix(3_000, 0)), ErrNotActive)
}

func TestRetryPendingThenSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(), ChainEthereum, OpConfirm, func() error {
		calls++
		if calls < 3 {
			return ErrTxPending
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryStopsOnRejection(t *testing.T) {
	calls := 0
	rejected := errors.New("execution reverted")
	err := Retry(context.Background(), fastRetry(), ChainEthereum, OpCreate, func() error {
		calls++
		return rejected
	})
	assert.ErrorIs(t, err, rejected)
	assert.Equal(t, 1, calls)
}

func TestRetryGivesUp(t *testing.T) {
	cfg := fastRetry()
	cfg.MaxRetries = 2
	calls := 0
	err := Retry(context.Background(), cfg, ChainSolana, OpConfirm, func() error {
		calls++
		return ErrTxPending
	})
	assert.ErrorIs(t, err, ErrTxPending)
	assert.Equal(t, 3, calls)

	wrapped := Submission(ChainSolana, OpConfirm, err)
	assert.ErrorIs(t, wrapped, ErrChainSubmission)
	assert.ErrorIs(t, wrapped, ErrTxPending)
}

func TestTransient(t *testing.T) {
	opErr := &net.OpError{Op: "dial", Err: errors.New("connection refused")}
	assert.True(t, IsRetryable(Transient(opErr)))
	assert.False(t, IsRetryable(Transient(errors.New("reverted"))))
	assert.False(t, IsRetryable(Transient(context.Canceled)))
	assert.Nil(t, Transient(nil))
}

func TestSubmissionKeepsTaxonomy(t *testing.T) {
	assert.Equal(t, ErrInvalidSecret, Submission(ChainTON, OpClaim, ErrInvalidSecret))
	assert.ErrorIs(t, Submission(ChainTON, OpClaim, ErrExpired), ErrNotActive)

	err := Submission(ChainTON, OpCreate, errors.New("boom"))
	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, ChainTON, subErr.Chain)
	assert.Equal(t, OpCreate, subErr.Op)
}

func TestUnconfirmedKeepsContract(t *testing.T) {
	err := Unconfirmed(ChainEthereum, OpCreate, "abc", "0x01", ErrTxPending)
	var pending *PendingError
	require.ErrorAs(t, err, &pending)
	assert.Equal(t, ContractID("abc"), pending.ID)
	assert.Equal(t, TxRef("0x01"), pending.Tx)
	assert.ErrorIs(t, err, ErrUnconfirmed)
	assert.ErrorIs(t, err, ErrTxPending)
	assert.False(t, IsRetryable(err))
	assert.Same(t, pending, Submission(ChainEthereum, OpCreate, err))

	assert.Equal(t, ErrExpired, Unconfirmed(ChainTON, OpClaim, "abc", "", ErrExpired))
	assert.Nil(t, Unconfirmed(ChainTON, OpClaim, "abc", "", nil))
}

func TestFaults(t *testing.T) {
	var f Faults
	assert.NoError(t, f.Next(OpCreate))
	f.Inject(OpCreate, ErrTransient, ErrTxPending)
	assert.ErrorIs(t, f.Next(OpCreate), ErrTransient)
	assert.ErrorIs(t, f.Next(OpCreate), ErrTxPending)
	assert.NoError(t, f.Next(OpCreate))
}
