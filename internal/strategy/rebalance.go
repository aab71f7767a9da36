package strategy

import (
	"gridbot/internal/gridcore"

	"github.com/shopspring/decimal"
)

// RebalanceInput bundles everything RebalanceAfterFill needs. Callers
// (internal/engine) resolve these lists from the State Machine before
// invoking the pure decision function; nothing here is mutated.
type RebalanceInput struct {
	FilledSide  gridcore.Side
	FilledCount int
	Extra       int
	// VirtualSlotsFilledSide must be ordered nearest-to-market first.
	VirtualSlotsFilledSide []*gridcore.Slot

	OppositeSide                gridcore.Side
	OppositePartials            []*gridcore.Slot // already excludes locked slots
	OppositeActiveCount         int
	OppositeVirtualCount        int
	OppositeVirtualSlotsForFill []*gridcore.Slot // nearest-to-market first, for deficit fill
	OppositeSpreadSlots         []*gridcore.Slot
	OppositeFurthestActive      []*gridcore.Slot // furthest-first, rotation candidates
	OppositePartialBoundary     *decimal.Decimal

	TargetActiveOrders int
	MarketPrice        decimal.Decimal
	CacheFundsOpposite decimal.Decimal

	TotalAllocatedOpposite decimal.Decimal
	WeightExponentOpposite decimal.Decimal
	IncrementPercent       decimal.Decimal
	ReferenceSlotCount     int
	RotationBudget         decimal.Decimal
	SizePrecision          int32

	Cfg Config
}

// RebalanceAfterFill rebalances the opposite side whenever fills occur on
// one side — activate replacements for the filled
// side, consolidate the opposite side's partials, then either fill the
// deficit to target or rotate the furthest actives inward.
func RebalanceAfterFill(in RebalanceInput) Decisions {
	var out Decisions

	n := in.FilledCount + in.Extra
	for i, slot := range in.VirtualSlotsFilledSide {
		if i >= n {
			break
		}
		out.OrdersToPlace = append(out.OrdersToPlace, PlaceOrder{
			SlotID: slot.ID, Type: sideToOrderType(in.FilledSide), Price: slot.Price, Size: slot.IdealSize,
		})
	}

	totalOpposite := in.OppositeActiveCount + in.OppositeVirtualCount
	needsRotationPartner := totalOpposite < in.TargetActiveOrders

	consolidation := ConsolidatePartials(
		in.OppositeSide, in.OppositePartials, in.MarketPrice,
		in.OppositeSpreadSlots, in.Cfg, in.CacheFundsOpposite, needsRotationPartner,
	)
	out.PartialMoves = append(out.PartialMoves, consolidation.PartialMoves...)
	out.OrdersToPlace = append(out.OrdersToPlace, consolidation.OrdersToPlace...)

	if needsRotationPartner {
		deficit := in.TargetActiveOrders - totalOpposite
		// The SPLIT replacement above, if any, already counts toward the
		// deficit; remaining slots come from the nearest available virtuals.
		if len(consolidation.OrdersToPlace) > 0 {
			deficit--
		}
		for i, slot := range in.OppositeVirtualSlotsForFill {
			if i >= deficit {
				break
			}
			out.OrdersToPlace = append(out.OrdersToPlace, PlaceOrder{
				SlotID: slot.ID, Type: sideToOrderType(in.OppositeSide), Price: slot.Price, Size: slot.IdealSize,
			})
		}
		return out
	}

	rotations, surplus := PlanRotationBatch(
		in.OppositeSide, in.OppositeFurthestActive, in.OppositeSpreadSlots,
		in.OppositePartialBoundary, in.TotalAllocatedOpposite, in.WeightExponentOpposite,
		in.IncrementPercent, in.ReferenceSlotCount, in.RotationBudget, in.SizePrecision,
	)
	out.OrdersToRotate = append(out.OrdersToRotate, rotations...)
	out.RotationSurplus = surplus
	return out
}
