package strategy

import (
	"gridbot/internal/gridcore"

	"github.com/shopspring/decimal"
)

// EvaluateSpreadControl runs after every rebalance: it computes
// currentSpread = (bestAsk-bestBid)/midPrice as a percentage; if it
// exceeds targetSpread by more than marginPercent, proactively activate the
// innermost SPREAD slot on each side toward the market rather than waiting
// for a fill to trigger rebalancing. Sizes are resolved by the caller
// (typically the nearest real slot's ideal size) since SPREAD slots carry
// no size of their own until activated.
func EvaluateSpreadControl(
	bestAsk, bestBid, midPrice decimal.Decimal,
	targetSpreadPercent, marginPercent decimal.Decimal,
	buySpreadSlot, sellSpreadSlot *gridcore.Slot,
	buySize, sellSize decimal.Decimal,
) []PlaceOrder {
	if midPrice.IsZero() {
		return nil
	}
	currentSpreadPct := bestAsk.Sub(bestBid).Div(midPrice).Mul(decimal.NewFromInt(100))
	threshold := targetSpreadPercent.Add(marginPercent)
	if currentSpreadPct.LessThanOrEqual(threshold) {
		return nil
	}

	var out []PlaceOrder
	if buySpreadSlot != nil && buySize.IsPositive() {
		out = append(out, PlaceOrder{SlotID: buySpreadSlot.ID, Type: gridcore.Buy, Price: buySpreadSlot.Price, Size: buySize})
	}
	if sellSpreadSlot != nil && sellSize.IsPositive() {
		out = append(out, PlaceOrder{SlotID: sellSpreadSlot.ID, Type: gridcore.Sell, Price: sellSpreadSlot.Price, Size: sellSize})
	}
	return out
}
