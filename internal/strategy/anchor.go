package strategy

import (
	"sort"

	"gridbot/internal/gridcore"

	"github.com/shopspring/decimal"
)

func sideToOrderType(side gridcore.Side) gridcore.SlotType {
	if side == gridcore.SideBuy {
		return gridcore.Buy
	}
	return gridcore.Sell
}

func closestSpreadSlot(slots []*gridcore.Slot, refPrice decimal.Decimal) *gridcore.Slot {
	var best *gridcore.Slot
	var bestDiff decimal.Decimal
	for _, s := range slots {
		diff := s.Price.Sub(refPrice).Abs()
		if best == nil || diff.LessThan(bestDiff) {
			best = s
			bestDiff = diff
		}
	}
	return best
}

// ConsolidatePartials implements the Anchor & Refill policy: it consolidates
// partially filled slots back into whole ones. `partials` must already
// exclude locked slots. Sides are consolidated
// independently by the caller (one call per side).
func ConsolidatePartials(
	side gridcore.Side,
	partials []*gridcore.Slot,
	marketPrice decimal.Decimal,
	spreadSlots []*gridcore.Slot,
	cfg Config,
	cacheFundsForSide decimal.Decimal,
	needsRotationPartner bool,
) Decisions {
	var out Decisions
	if len(partials) == 0 {
		return out
	}

	// Sort outermost-first (furthest from market).
	sorted := make([]*gridcore.Slot, len(partials))
	copy(sorted, partials)
	sort.Slice(sorted, func(i, j int) bool {
		di := sorted[i].Price.Sub(marketPrice).Abs()
		dj := sorted[j].Price.Sub(marketPrice).Abs()
		return di.GreaterThan(dj)
	})

	outer := sorted[:len(sorted)-1]
	innermost := sorted[len(sorted)-1]

	residualCapital := decimal.Zero
	for _, p := range outer {
		if p.Size.GreaterThan(p.IdealSize) {
			excess := p.Size.Sub(p.IdealSize)
			residualCapital = residualCapital.Add(excess.Mul(p.Price))
		}
		out.PartialMoves = append(out.PartialMoves, PartialMove{
			SlotID: p.ID, Kind: MoveRestore, NewSize: p.IdealSize, NewState: gridcore.Active,
		})
	}

	ideal := innermost.IdealSize
	dustRatio := cfg.PartialDustThresholdPercent.Div(decimal.NewFromInt(100))
	isDust := innermost.Size.LessThan(ideal.Mul(dustRatio))

	mergedSize := ideal
	if residualCapital.IsPositive() {
		mergedSize = ideal.Add(residualCapital.Div(innermost.Price))
	}
	ceiling := ideal.Mul(decimal.NewFromInt(1).Add(dustRatio))

	if isDust && mergedSize.LessThanOrEqual(ceiling) {
		residualSize := mergedSize.Sub(ideal)
		out.PartialMoves = append(out.PartialMoves, PartialMove{
			SlotID:   innermost.ID,
			Kind:     MoveMerge,
			NewSize:  mergedSize,
			NewState: gridcore.Active,
			Flags: gridcore.Flags{
				IsDoubleOrder:     true,
				MergedDustSize:    residualSize,
				FilledSinceRefill: decimal.Zero,
				PendingRotation:   true,
			},
		})
		return out
	}

	// SPLIT: anchor innermost to exactly ideal.
	out.PartialMoves = append(out.PartialMoves, PartialMove{
		SlotID: innermost.ID, Kind: MoveSplit, NewSize: ideal, NewState: gridcore.Active,
	})

	var residualSize decimal.Decimal
	switch {
	case residualCapital.IsPositive():
		residualSize = residualCapital.Div(innermost.Price)
	case needsRotationPartner && cfg.ActiveOrdersTarget[side] > 0:
		// Open Question #2: zero-residual but a rotation partner is still
		// needed — size the replacement from cacheFunds[side]/target count.
		residualSize = cacheFundsForSide.Div(decimal.NewFromInt(int64(cfg.ActiveOrdersTarget[side])))
	}
	if residualSize.IsPositive() {
		if target := closestSpreadSlot(spreadSlots, innermost.Price); target != nil {
			out.OrdersToPlace = append(out.OrdersToPlace, PlaceOrder{
				SlotID: target.ID, Type: sideToOrderType(side), Price: target.Price, Size: residualSize,
			})
		}
	}
	return out
}
