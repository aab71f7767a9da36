package gridcore

import "github.com/shopspring/decimal"

// Side is the buy/sell axis fund cells and rebalancing are tracked on. It is
// distinct from SlotType because SPREAD slots have no side of their own —
// callers resolve a SPREAD slot's side from context (which boundary it sits
// on) when one is needed.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the other side, used throughout the rebalance-after-fill
// logic ("the opposite side is rebalanced").
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// SideOf maps a concrete order type to its fund-accounting side. SPREAD has
// no side; callers must not call this on a SPREAD slot.
func SideOf(t SlotType) Side {
	if t == Buy {
		return SideBuy
	}
	return SideSell
}

// FundCells are the per-side fund-accounting scalars the Accountant owns
// exclusively. Only internal/accountant writes these; every other package
// observes them through accessor methods.
type FundCells struct {
	Available      map[Side]decimal.Decimal
	Virtual        map[Side]decimal.Decimal
	CommittedGrid  map[Side]decimal.Decimal
	CommittedChain map[Side]decimal.Decimal
	CacheFunds     map[Side]decimal.Decimal
	BtsFeesOwed    map[Side]decimal.Decimal
	Allocated      map[Side]decimal.Decimal
}

// NewFundCells returns a FundCells with every cell initialized to zero for
// both sides, so callers never need a nil-map check before a read.
func NewFundCells() *FundCells {
	zero := func() map[Side]decimal.Decimal {
		return map[Side]decimal.Decimal{
			SideBuy:  decimal.Zero,
			SideSell: decimal.Zero,
		}
	}
	return &FundCells{
		Available:      zero(),
		Virtual:        zero(),
		CommittedGrid:  zero(),
		CommittedChain: zero(),
		CacheFunds:     zero(),
		BtsFeesOwed:    zero(),
		Allocated:      zero(),
	}
}
