package htlc

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

const (
	DecimalsEther = 18
	DecimalsSOL   = 9
	DecimalsTON   = 9
	DecimalsAPT   = 8
)

// ToBaseUnits converts a decimal amount into the chain's smallest unit.
// Amounts with more precision than the chain supports are rejected rather
// than rounded.
func ToBaseUnits(amount decimal.Decimal, decimals int32) (*big.Int, error) {
	scaled := amount.Shift(decimals)
	if !scaled.IsInteger() {
		return nil, fmt.Errorf("%w: amount %s exceeds %d decimals", ErrConfigInvalid, amount, decimals)
	}
	if scaled.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", ErrConfigInvalid, amount)
	}
	return scaled.BigInt(), nil
}

func FromBaseUnits(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// ToUint64 is ToBaseUnits for chains whose amounts are u64.
func ToUint64(amount decimal.Decimal, decimals int32) (uint64, error) {
	v, err := ToBaseUnits(amount, decimals)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: amount %s overflows u64", ErrConfigInvalid, amount)
	}
	return v.Uint64(), nil
}
