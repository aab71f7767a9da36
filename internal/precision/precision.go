// Package precision implements the chain-integer conversions, size
// comparisons, price-tolerance, and fee math that every other domain
// package relies on so that no chain-relevant arithmetic is ever performed
// on float64. Every function is pure: decimal.Decimal in, decimal.Decimal
// out, no package state.
package precision

import (
	"gridbot/internal/engerrors"

	"github.com/shopspring/decimal"
)

// Ordering is the result of compareSizes, spelled out rather than returning
// a bare int so callers read `precision.Equal` instead of `== 0`.
type Ordering int

const (
	Less Ordering = iota - 1
	Equal
	Greater
)

// ToChainInt converts a decimal amount to its integer representation at the
// given asset precision, rounding excess digits half-to-even (banker's
// rounding) so repeated conversions don't drift in either direction.
func ToChainInt(amount decimal.Decimal, prec int32) (int64, error) {
	if prec < 0 || !amount.IsZero() && amount.Exponent() < -300 {
		return 0, engerrors.New(engerrors.BadInput, "invalid precision or non-finite amount")
	}
	shifted := amount.Shift(prec).RoundBank(0)
	if !shifted.IsInteger() {
		return 0, engerrors.New(engerrors.PrecisionLoss, "amount does not round to an integer at given precision")
	}
	return shifted.IntPart(), nil
}

// FromChainInt is the exact inverse shift of ToChainInt.
func FromChainInt(n int64, prec int32) decimal.Decimal {
	return decimal.NewFromInt(n).Shift(-prec)
}

// CompareSizes compares two decimal sizes at the given asset precision using
// their integer representations, so that sub-tick noise never causes a
// spurious inequality.
func CompareSizes(a, b decimal.Decimal, prec int32) (Ordering, error) {
	ai, err := ToChainInt(a, prec)
	if err != nil {
		return Equal, err
	}
	bi, err := ToChainInt(b, prec)
	if err != nil {
		return Equal, err
	}
	switch {
	case ai < bi:
		return Less, nil
	case ai > bi:
		return Greater, nil
	default:
		return Equal, nil
	}
}

// AssetMetadata describes the precision and fee characteristics of one side
// of a trading pair, as returned by the Chain Adapter's getAssetMetadata.
type AssetMetadata struct {
	ID               string
	Precision        int32
	MarketFeePercent decimal.Decimal
}

// fallbackToleranceRatio is used whenever asset metadata (and therefore
// exact tick sizes) is unavailable.
var fallbackToleranceRatio = decimal.NewFromFloat(0.001)

// PriceTolerance returns the maximum absolute price difference at which an
// on-chain order is still considered "the same" as a grid slot. When
// precisions are known it is the sum of a one-quote-tick floor and a term
// that grows linearly with order size — order size never reduces the
// tolerance, satisfying monotone non-decreasing in order size — falling back to
// gridPrice*0.1% when metadata is unknown.
func PriceTolerance(gridPrice, orderSize decimal.Decimal, quotePrecision, basePrecision *int32) decimal.Decimal {
	if quotePrecision == nil || basePrecision == nil {
		return gridPrice.Mul(fallbackToleranceRatio)
	}
	quoteTick := FromChainInt(1, *quotePrecision)
	baseTick := FromChainInt(1, *basePrecision)

	floor := quoteTick
	slack := gridPrice.Mul(baseTick).Mul(orderSize.Abs())
	tol := floor.Add(slack)

	fallback := gridPrice.Mul(fallbackToleranceRatio)
	if tol.LessThan(fallback) {
		return fallback
	}
	return tol
}

// ApplyMarketFee deducts the maker market fee for the target asset from a
// gross amount and returns the net amount.
func ApplyMarketFee(gross decimal.Decimal, feePercent decimal.Decimal) decimal.Decimal {
	retained := decimal.NewFromInt(1).Sub(feePercent.Div(decimal.NewFromInt(100)))
	return gross.Mul(retained)
}
