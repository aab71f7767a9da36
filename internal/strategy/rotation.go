package strategy

import (
	"sort"

	"gridbot/internal/gridcore"
	"gridbot/internal/gridgen"

	"github.com/shopspring/decimal"
)

// selectRotationTargets implements the candidate selection and layering
// constraint: BUY rotation prefers the HIGHEST-priced available SPREAD
// slot; SELL prefers the LOWEST-priced. A surviving
// PARTIAL order's price sets a boundary the new target must not cross.
func selectRotationTargets(side gridcore.Side, candidates []*gridcore.Slot, partialBoundary *decimal.Decimal, count int) []*gridcore.Slot {
	eligible := make([]*gridcore.Slot, 0, len(candidates))
	for _, c := range candidates {
		if partialBoundary != nil {
			if side == gridcore.SideSell && c.Price.LessThan(*partialBoundary) {
				continue // sells must stay >= min partial price
			}
			if side == gridcore.SideBuy && c.Price.GreaterThan(*partialBoundary) {
				continue // buys must stay <= max partial price
			}
		}
		eligible = append(eligible, c)
	}
	sort.Slice(eligible, func(i, j int) bool {
		if side == gridcore.SideBuy {
			return eligible[i].Price.GreaterThan(eligible[j].Price) // highest first
		}
		return eligible[i].Price.LessThan(eligible[j].Price) // lowest first
	})
	if count > len(eligible) {
		count = len(eligible)
	}
	return eligible[:count]
}

// PlanRotationBatch computes a rotation batch's sizing: compute
// geometric sizes for the affected outer slots using the grid generator's
// weighting over (activeCount+virtualCount+recentlyFilledCount) slots
// (callers pass that count as `referenceSlotCount`), scale down to fit
// cacheFunds[side] if it would overspend, and return unspent budget as
// surplus to be written back to cacheFunds.
func PlanRotationBatch(
	side gridcore.Side,
	furthest []*gridcore.Slot,
	spreadCandidates []*gridcore.Slot,
	partialBoundary *decimal.Decimal,
	totalAllocated decimal.Decimal,
	weightExponent decimal.Decimal,
	incrementPercent decimal.Decimal,
	referenceSlotCount int,
	budget decimal.Decimal,
	sizePrecision int32,
) ([]RotateOrder, decimal.Decimal) {
	if len(furthest) == 0 || budget.LessThanOrEqual(decimal.Zero) {
		return nil, budget
	}
	targets := selectRotationTargets(side, spreadCandidates, partialBoundary, len(furthest))
	n := len(targets)
	if n == 0 {
		return nil, budget
	}
	if referenceSlotCount < n {
		referenceSlotCount = n
	}
	stepDown := decimal.NewFromInt(1).Sub(incrementPercent.Div(decimal.NewFromInt(100)))
	geometric := gridgen.ComputeWeightedSizes(totalAllocated, weightExponent, stepDown, referenceSlotCount, sizePrecision)
	if len(geometric) < n {
		// Not enough reference slots computed; fall back to an even split.
		geometric = make([]decimal.Decimal, n)
		share := totalAllocated.Div(decimal.NewFromInt(int64(n)))
		for i := range geometric {
			geometric[i] = share
		}
	}
	sizes := geometric[:n]

	sumGeo := decimal.Zero
	for _, g := range sizes {
		sumGeo = sumGeo.Add(g)
	}

	final := make([]decimal.Decimal, n)
	if sumGeo.GreaterThan(budget) && sumGeo.IsPositive() {
		scale := budget.Div(sumGeo)
		for i, g := range sizes {
			final[i] = quantizeSize(g.Mul(scale), sizePrecision)
		}
	} else {
		copy(final, sizes)
	}

	var rotations []RotateOrder
	spent := decimal.Zero
	for i := 0; i < n; i++ {
		rotations = append(rotations, RotateOrder{
			FromSlotID: furthest[i].ID,
			ToSlotID:   targets[i].ID,
			NewSize:    final[i],
		})
		spent = spent.Add(final[i])
	}
	surplus := budget.Sub(spent)
	return rotations, surplus
}

func quantizeSize(d decimal.Decimal, prec int32) decimal.Decimal {
	return d.Shift(prec).Floor().Shift(-prec)
}
