package swap

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/shopspring/decimal"

	"github.com/TEENet-io/atomic-swap/common"
	"github.com/TEENet-io/atomic-swap/hashlock"
	"github.com/TEENet-io/atomic-swap/htlc"
)

// Config describes a swap requested by an initiator.
//
// SenderAddress and ReceiverAddress are the initiator and the counterparty
// on the source chain. On the destination chain the roles swap: the
// counterparty locks funds for the initiator. DestSenderAddress and
// DestReceiverAddress default to ReceiverAddress and SenderAddress when the
// parties use the same address on both chains.
type Config struct {
	SourceChain      htlc.ChainID    `json:"source_chain"`
	DestinationChain htlc.ChainID    `json:"destination_chain"`
	SourceToken      string          `json:"source_token,omitempty"`
	DestinationToken string          `json:"destination_token,omitempty"`
	SourceAmount     decimal.Decimal `json:"source_amount"`
	DestAmount       decimal.Decimal `json:"destination_amount"`

	SenderAddress       string `json:"sender_address"`
	ReceiverAddress     string `json:"receiver_address"`
	DestSenderAddress   string `json:"destination_sender_address,omitempty"`
	DestReceiverAddress string `json:"destination_receiver_address,omitempty"`

	TimeLockHours int `json:"time_lock_hours"`

	UseTripleChainSecurity bool          `json:"use_triple_chain_security,omitempty"`
	SecurityLevel          SecurityLevel `json:"security_level,omitempty"`
	RequiredSignatures     int           `json:"required_signatures,omitempty"`
	// Signers are x-only BIP-340 public keys in hex.
	Signers []string `json:"signers,omitempty"`

	// AllowedGeolocationHashes are hex digests of the locations a party
	// may prove from when GeolocationRestricted is set.
	GeolocationRestricted    bool     `json:"geolocation_restricted,omitempty"`
	AllowedGeolocationHashes []string `json:"allowed_geolocation_hashes,omitempty"`
	UseBackupRecovery        bool     `json:"use_backup_recovery,omitempty"`
	RecoveryAddress          string   `json:"recovery_address,omitempty"`
}

func (c *Config) Validate() error {
	if c.SourceChain == "" || c.DestinationChain == "" {
		return fmt.Errorf("%w: source and destination chain are required", htlc.ErrConfigInvalid)
	}
	if c.SourceChain == c.DestinationChain {
		return fmt.Errorf("%w: source and destination chain are both %s", htlc.ErrConfigInvalid, c.SourceChain)
	}
	if c.SourceAmount.Sign() <= 0 {
		return fmt.Errorf("%w: source amount must be positive, got %s", htlc.ErrConfigInvalid, c.SourceAmount)
	}
	if c.DestAmount.Sign() <= 0 {
		return fmt.Errorf("%w: destination amount must be positive, got %s", htlc.ErrConfigInvalid, c.DestAmount)
	}
	if c.SenderAddress == "" || c.ReceiverAddress == "" {
		return fmt.Errorf("%w: sender and receiver address are required", htlc.ErrConfigInvalid)
	}
	if c.TimeLockHours <= 0 {
		return fmt.Errorf("%w: time lock hours must be positive, got %d", htlc.ErrConfigInvalid, c.TimeLockHours)
	}
	switch c.SecurityLevel {
	case "", SecurityStandard, SecurityEnhanced, SecurityMax:
	default:
		return fmt.Errorf("%w: unknown security level %q", htlc.ErrConfigInvalid, c.SecurityLevel)
	}
	if c.RequiredSignatures < 0 || c.RequiredSignatures > len(c.Signers) {
		return fmt.Errorf("%w: %d signatures required from %d signers", htlc.ErrConfigInvalid, c.RequiredSignatures, len(c.Signers))
	}
	seen := make(map[string]struct{}, len(c.Signers))
	for _, s := range c.Signers {
		if _, err := ParseSigner(s); err != nil {
			return fmt.Errorf("%w: signer %q: %v", htlc.ErrConfigInvalid, s, err)
		}
		key := NormalizeSigner(s)
		if _, ok := seen[key]; ok {
			return fmt.Errorf("%w: duplicate signer %q", htlc.ErrConfigInvalid, s)
		}
		seen[key] = struct{}{}
	}
	if c.GeolocationRestricted && len(c.AllowedGeolocationHashes) == 0 {
		return fmt.Errorf("%w: geolocation restricted without allowed locations", htlc.ErrConfigInvalid)
	}
	for _, h := range c.AllowedGeolocationHashes {
		if NormalizeGeolocation(h) == "" {
			return fmt.Errorf("%w: empty geolocation hash", htlc.ErrConfigInvalid)
		}
	}
	if c.UseBackupRecovery && c.RecoveryAddress == "" {
		return fmt.Errorf("%w: backup recovery requires a recovery address", htlc.ErrConfigInvalid)
	}
	return nil
}

// GeolocationAllowed reports whether hash is one of the allowed locations.
func (c *Config) GeolocationAllowed(hash string) bool {
	want := NormalizeGeolocation(hash)
	if want == "" {
		return false
	}
	for _, h := range c.AllowedGeolocationHashes {
		if NormalizeGeolocation(h) == want {
			return true
		}
	}
	return false
}

// Level returns the security level, standard if unset.
func (c *Config) Level() SecurityLevel {
	if c.SecurityLevel == "" {
		return SecurityStandard
	}
	return c.SecurityLevel
}

func (c *Config) DestinationSender() string {
	if c.DestSenderAddress != "" {
		return c.DestSenderAddress
	}
	return c.ReceiverAddress
}

func (c *Config) DestinationReceiver() string {
	if c.DestReceiverAddress != "" {
		return c.DestReceiverAddress
	}
	return c.SenderAddress
}

// SourceHTLC is the contract the initiator locks on the source chain.
func (c *Config) SourceHTLC(hashLock hashlock.HashLock, timeLock int64) *htlc.Config {
	return &htlc.Config{
		Chain:    c.SourceChain,
		Token:    c.SourceToken,
		Sender:   c.SenderAddress,
		Receiver: c.ReceiverAddress,
		Amount:   c.SourceAmount,
		HashLock: hashLock,
		TimeLock: timeLock,
		FeePayer: c.SenderAddress,
	}
}

// DestinationHTLC is the contract the counterparty locks on the destination
// chain under the same hash lock.
func (c *Config) DestinationHTLC(hashLock hashlock.HashLock, timeLock int64) *htlc.Config {
	return &htlc.Config{
		Chain:    c.DestinationChain,
		Token:    c.DestinationToken,
		Sender:   c.DestinationSender(),
		Receiver: c.DestinationReceiver(),
		Amount:   c.DestAmount,
		HashLock: hashLock,
		TimeLock: timeLock,
		FeePayer: c.DestinationSender(),
	}
}

func (c *Config) Clone() Config {
	cp := *c
	if c.Signers != nil {
		cp.Signers = append([]string(nil), c.Signers...)
	}
	if c.AllowedGeolocationHashes != nil {
		cp.AllowedGeolocationHashes = append([]string(nil), c.AllowedGeolocationHashes...)
	}
	return cp
}

// NormalizeSigner returns the lower-case hex of a signer key without 0x.
func NormalizeSigner(s string) string {
	return common.Trim0xPrefix(strings.ToLower(s))
}

// NormalizeGeolocation returns the trimmed lower-case hex of a location
// hash without 0x.
func NormalizeGeolocation(s string) string {
	return common.Trim0xPrefix(strings.ToLower(strings.TrimSpace(s)))
}

// ParseSigner parses an x-only public key.
func ParseSigner(s string) (*btcec.PublicKey, error) {
	b, err := hex.DecodeString(NormalizeSigner(s))
	if err != nil {
		return nil, err
	}
	return schnorr.ParsePubKey(b)
}
