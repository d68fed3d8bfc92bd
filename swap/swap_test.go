package swap

import (
	"encoding/hex"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TEENet-io/atomic-swap/hashlock"
	"github.com/TEENet-io/atomic-swap/htlc"
)

func randSigner(t *testing.T) string {
	key, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	return hex.EncodeToString(schnorr.SerializePubKey(key.PubKey()))
}

func validConfig() Config {
	return Config{
		SourceChain:      htlc.ChainEthereum,
		DestinationChain: htlc.ChainSolana,
		SourceAmount:     decimal.RequireFromString("1.0"),
		DestAmount:       decimal.RequireFromString("50.0"),
		SenderAddress:    "alice",
		ReceiverAddress:  "bob",
		TimeLockHours:    24,
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusInitiated))
	assert.True(t, CanTransition(StatusInitiated, StatusClaimed))
	assert.True(t, CanTransition(StatusClaimed, StatusRefunded))
	assert.True(t, CanTransition(StatusFailed, StatusRefunded))
	assert.True(t, CanTransition(StatusRefunded, StatusRefunded))

	assert.False(t, CanTransition(StatusPending, StatusClaimed))
	assert.False(t, CanTransition(StatusClaimed, StatusInitiated))
	assert.False(t, CanTransition(StatusFailed, StatusInitiated))
	assert.False(t, CanTransition(StatusRefunded, StatusClaimed))
	assert.False(t, CanTransition("DONE", StatusFailed))
}

// Every allowed transition moves forward in the lifecycle.
func TestTransitionsNeverGoBack(t *testing.T) {
	stage := map[Status]int{
		StatusPending:   0,
		StatusInitiated: 1,
		StatusClaimed:   2,
		StatusFailed:    3,
		StatusRefunded:  4,
	}
	for from := range stage {
		for to := range stage {
			if CanTransition(from, to) {
				assert.GreaterOrEqual(t, stage[to], stage[from], "%s -> %s", from, to)
			}
		}
	}
	for s := range stage {
		assert.True(t, s.Valid())
	}
	assert.False(t, Status("pending").Valid())
}

func TestConfigValidate(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, SecurityStandard, cfg.Level())

	mutations := map[string]func(*Config){
		"same chain":        func(c *Config) { c.DestinationChain = c.SourceChain },
		"no chain":          func(c *Config) { c.SourceChain = "" },
		"zero amount":       func(c *Config) { c.SourceAmount = decimal.Zero },
		"negative amount":   func(c *Config) { c.DestAmount = decimal.RequireFromString("-1") },
		"no receiver":       func(c *Config) { c.ReceiverAddress = "" },
		"zero hours":        func(c *Config) { c.TimeLockHours = 0 },
		"unknown level":     func(c *Config) { c.SecurityLevel = "paranoid" },
		"too many required": func(c *Config) { c.RequiredSignatures = 1 },
		"bad signer": func(c *Config) {
			c.Signers = []string{"02" + strings.Repeat("ab", 32)}
		},
		"no allowed locations": func(c *Config) { c.GeolocationRestricted = true },
		"blank location":       func(c *Config) { c.AllowedGeolocationHashes = []string{" 0x "} },
		"no recovery address":  func(c *Config) { c.UseBackupRecovery = true },
	}
	for name, mutate := range mutations {
		c := validConfig()
		mutate(&c)
		assert.ErrorIs(t, c.Validate(), htlc.ErrConfigInvalid, name)
	}

	signer := randSigner(t)
	c := validConfig()
	c.Signers = []string{signer, "0x" + strings.ToUpper(signer)}
	c.RequiredSignatures = 1
	assert.ErrorIs(t, c.Validate(), htlc.ErrConfigInvalid)

	c.Signers = []string{signer, randSigner(t)}
	c.RequiredSignatures = 2
	c.SecurityLevel = SecurityMax
	assert.NoError(t, c.Validate())
}

func TestGeolocationAllowed(t *testing.T) {
	c := validConfig()
	c.GeolocationRestricted = true
	c.AllowedGeolocationHashes = []string{"0xABCD", "beef"}
	require.NoError(t, c.Validate())

	assert.True(t, c.GeolocationAllowed("abcd"))
	assert.True(t, c.GeolocationAllowed(" 0xBEEF"))
	assert.False(t, c.GeolocationAllowed("abce"))
	assert.False(t, c.GeolocationAllowed(""))

	cp := c.Clone()
	cp.AllowedGeolocationHashes[0] = "ffff"
	assert.True(t, c.GeolocationAllowed("abcd"))
}

func TestHTLCConfigs(t *testing.T) {
	cfg := validConfig()
	_, hl, err := hashlock.Generate()
	require.NoError(t, err)

	src := cfg.SourceHTLC(hl, 200)
	assert.Equal(t, htlc.ChainEthereum, src.Chain)
	assert.Equal(t, "alice", src.Sender)
	assert.Equal(t, "bob", src.Receiver)
	assert.Equal(t, int64(200), src.TimeLock)

	dst := cfg.DestinationHTLC(hl, 100)
	assert.Equal(t, htlc.ChainSolana, dst.Chain)
	assert.Equal(t, "bob", dst.Sender)
	assert.Equal(t, "alice", dst.Receiver)
	assert.True(t, cfg.DestAmount.Equal(dst.Amount))
	assert.Equal(t, hl, dst.HashLock)

	cfg.DestSenderAddress = "bob-sol"
	cfg.DestReceiverAddress = "alice-sol"
	dst = cfg.DestinationHTLC(hl, 100)
	assert.Equal(t, "bob-sol", dst.Sender)
	assert.Equal(t, "alice-sol", dst.Receiver)
}

func TestCloneAndRedacted(t *testing.T) {
	secret, hl, err := hashlock.Generate()
	require.NoError(t, err)
	cfg := validConfig()
	cfg.Signers = []string{randSigner(t)}
	info := &Info{
		ID:         "s1",
		Config:     cfg,
		Status:     StatusInitiated,
		HashLock:   hl,
		Secret:     secret,
		Signatures: []Signature{{Signer: cfg.Signers[0], Signature: "00"}},
	}

	cp := info.Clone()
	cp.Secret[0] ^= 0xff
	cp.Signatures[0].Signature = "ff"
	cp.Config.Signers[0] = "x"
	assert.True(t, hashlock.Verify(info.Secret, hl))
	assert.Equal(t, "00", info.Signatures[0].Signature)
	assert.NotEqual(t, "x", info.Config.Signers[0])

	assert.Nil(t, info.Redacted().Secret)
	assert.NotNil(t, info.Secret)

	info.Status = StatusClaimed
	info.ClaimedAt = time.Unix(100, 0)
	assert.Equal(t, info.Secret, info.Redacted().Secret)
}

func TestInvolves(t *testing.T) {
	info := &Info{Config: validConfig()}
	info.Config.SenderAddress = "0xAbC"
	info.Config.DestReceiverAddress = "alice-sol"

	assert.True(t, info.Involves("0xabc"))
	assert.True(t, info.Involves("bob"))
	assert.True(t, info.Involves("alice-sol"))
	assert.False(t, info.Involves("carol"))
	assert.False(t, info.Involves(""))
}

func TestLegAccessors(t *testing.T) {
	info := &Info{
		Config:                validConfig(),
		SourceContractID:      "src",
		DestinationContractID: "dst",
		SourceTimeLock:        200,
		DestinationTimeLock:   100,
	}
	assert.Equal(t, htlc.ContractID("src"), info.ContractID(LegSource))
	assert.Equal(t, htlc.ContractID("dst"), info.ContractID(LegDestination))
	assert.Equal(t, htlc.ChainSolana, info.Chain(LegDestination))
	assert.Equal(t, int64(100), info.TimeLock(LegDestination))
	assert.True(t, LegSource.Valid())
	assert.False(t, Leg("both").Valid())
}

func TestTerminal(t *testing.T) {
	info := &Info{Status: StatusInitiated, SourceContractID: "src"}
	assert.False(t, info.Terminal())

	info.Status = StatusRefunded
	info.SourceRefundedAt = time.Unix(1, 0)
	assert.True(t, info.Terminal())

	info.DestinationContractID = "dst"
	assert.False(t, info.Terminal())
	info.DestinationRefundedAt = time.Unix(2, 0)
	assert.True(t, info.Terminal())

	failed := &Info{Status: StatusFailed}
	assert.True(t, failed.Terminal())
}
