package state

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/atomic-swap/hashlock"
	"github.com/TEENet-io/atomic-swap/htlc"
	"github.com/TEENet-io/atomic-swap/swap"
)

func getMemoryDB(t *testing.T) *sql.DB {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func randInfo(t *testing.T, id string) *swap.Info {
	secret, hl, err := hashlock.Generate()
	require.NoError(t, err)
	now := time.Unix(1_700_000_000, 0).UTC()
	return &swap.Info{
		ID: id,
		Config: swap.Config{
			SourceChain:      htlc.ChainEthereum,
			DestinationChain: htlc.ChainTON,
			SourceAmount:     decimal.RequireFromString("1.5"),
			DestAmount:       decimal.RequireFromString("50"),
			SenderAddress:    "alice",
			ReceiverAddress:  "bob",
			TimeLockHours:    24,
		},
		Status:         swap.StatusInitiated,
		HashLock:       hl,
		Secret:         secret,
		SourceTimeLock: now.Add(24 * time.Hour).Unix(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// checkStore runs the behaviour every backend shares.
func checkStore(t *testing.T, st SwapStore) {
	ctx := context.Background()

	infos, err := st.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)

	a := randInfo(t, "a")
	b := randInfo(t, "b")
	require.NoError(t, st.Save(ctx, a))
	require.NoError(t, st.Save(ctx, b))

	// upsert replaces the record
	a.Status = swap.StatusClaimed
	a.DestinationContractID = "0xdead"
	a.ClaimedAt = a.CreatedAt.Add(time.Minute)
	require.NoError(t, st.Save(ctx, a))

	infos, err = st.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	byID := map[string]*swap.Info{}
	for _, info := range infos {
		byID[info.ID] = info
	}

	got := byID["a"]
	require.NotNil(t, got)
	assert.Equal(t, swap.StatusClaimed, got.Status)
	assert.Equal(t, a.HashLock, got.HashLock)
	assert.Equal(t, a.Secret, got.Secret)
	assert.Equal(t, htlc.ContractID("0xdead"), got.DestinationContractID)
	assert.True(t, a.Config.SourceAmount.Equal(got.Config.SourceAmount))
	assert.True(t, a.ClaimedAt.Equal(got.ClaimedAt))
	assert.Equal(t, a.SourceTimeLock, got.SourceTimeLock)
	assert.Equal(t, swap.StatusInitiated, byID["b"].Status)

	bad := randInfo(t, "")
	assert.ErrorIs(t, st.Save(ctx, bad), htlc.ErrStoreIO)
	bad = randInfo(t, "c")
	bad.Status = "DONE"
	assert.ErrorIs(t, st.Save(ctx, bad), htlc.ErrStoreIO)

	counts, err := Stats(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, map[swap.Status]int{
		swap.StatusPending:   0,
		swap.StatusInitiated: 1,
		swap.StatusClaimed:   1,
		swap.StatusRefunded:  0,
		swap.StatusFailed:    0,
	}, counts)
}

func TestMemoryStore(t *testing.T) {
	st := NewMemoryStore()
	checkStore(t, st)

	st.FailWith(errors.New("disk full"))
	assert.ErrorIs(t, st.Save(context.Background(), randInfo(t, "x")), htlc.ErrStoreIO)
	_, err := st.LoadAll(context.Background())
	assert.ErrorIs(t, err, htlc.ErrStoreIO)

	st.FailWith(nil)
	infos, err := st.LoadAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, infos, 2)
}

func TestSQLiteStore(t *testing.T) {
	st, err := NewSQLiteStore(getMemoryDB(t))
	require.NoError(t, err)
	defer st.Close()
	checkStore(t, st)

	n, err := st.CountByStatus(context.Background(), swap.StatusClaimed)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "swaps.db")

	st, err := OpenSQLiteStore(path)
	require.NoError(t, err)
	info := randInfo(t, "a")
	require.NoError(t, st.Save(ctx, info))
	require.NoError(t, st.Close())

	st, err = OpenSQLiteStore(path)
	require.NoError(t, err)
	defer st.Close()
	infos, err := st.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, info.HashLock, infos[0].HashLock)
}

func TestSQLiteStatusConstraint(t *testing.T) {
	db := getMemoryDB(t)
	_, err := NewSQLiteStore(db)
	require.NoError(t, err)

	_, err = db.Exec(`INSERT INTO swap (id, status, hashLock, record, updatedAt) VALUES ('x', 'DONE', '', '{}', 0)`)
	assert.Error(t, err)
}

func TestBoltStore(t *testing.T) {
	st, err := OpenBoltStore(filepath.Join(t.TempDir(), "swaps.bolt"))
	require.NoError(t, err)
	defer st.Close()
	checkStore(t, st)

	claimed, err := st.FindByStatus(swap.StatusClaimed)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, "a", claimed[0].ID)

	var _ StatusCounter = st
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = st.CountByStatus(ctx, swap.StatusClaimed)
	assert.ErrorIs(t, err, htlc.ErrStoreIO)
}

func TestRedisStore(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	cfg := DefaultConfig()
	cfg.Backend = BackendRedis
	cfg.RedisAddr = mr.Addr()
	st, err := Open(cfg)
	require.NoError(t, err)
	defer st.Close()
	checkStore(t, st)

	keys, err := mr.HKeys(cfg.RedisKey)
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	mr.Close()
	assert.ErrorIs(t, st.Save(context.Background(), randInfo(t, "z")), htlc.ErrStoreIO)
}

func TestOpen(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMemory
	st, err := Open(cfg)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, st)

	cfg.Backend = "postgres"
	_, err = Open(cfg)
	assert.ErrorIs(t, err, htlc.ErrConfigInvalid)
}
