package strategy

import (
	"testing"

	"gridbot/internal/gridcore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultCfg() Config {
	return Config{
		PartialDustThresholdPercent: decimal.NewFromInt(5),
		GridRegenerationPercent:     decimal.NewFromInt(3),
		RMSPercent:                  decimal.NewFromFloat(14.3),
		ActiveOrdersTarget:          map[gridcore.Side]int{gridcore.SideBuy: 5, gridcore.SideSell: 5},
	}
}

func partial(id string, price, size, ideal decimal.Decimal) *gridcore.Slot {
	return &gridcore.Slot{ID: id, Type: gridcore.Sell, State: gridcore.Partial, Price: price, Size: size, IdealSize: ideal}
}

// Scenario 4: dust merge. Innermost PARTIAL ideal 10 size 0.3, outer partial
// contributes residual capital worth 0.5 at the innermost price -> innermost
// becomes ACTIVE size 10.5 with isDoubleOrder/mergedDustSize/pendingRotation
// flags, no new order placed.
func TestConsolidatePartials_Scenario4_DustMerge(t *testing.T) {
	market := decimal.NewFromInt(100)
	outer := partial("outer", decimal.NewFromInt(202), decimal.NewFromFloat(10.25), decimal.NewFromInt(10)) // 0.25 excess x 202 = 50.5 capital = 0.5 size at 101
	inner := partial("inner", decimal.NewFromInt(101), decimal.NewFromFloat(0.3), decimal.NewFromInt(10))  // dust

	d := ConsolidatePartials(gridcore.SideSell, []*gridcore.Slot{outer, inner}, market, nil, defaultCfg(), decimal.Zero, false)

	require.Len(t, d.PartialMoves, 2)
	assert.Equal(t, MoveRestore, d.PartialMoves[0].Kind)
	assert.True(t, d.PartialMoves[0].NewSize.Equal(decimal.NewFromInt(10)))

	merge := d.PartialMoves[1]
	assert.Equal(t, MoveMerge, merge.Kind)
	assert.Equal(t, "inner", merge.SlotID)
	assert.True(t, merge.NewSize.Equal(decimal.NewFromFloat(10.5)), "got %s", merge.NewSize)
	assert.True(t, merge.Flags.IsDoubleOrder)
	assert.True(t, merge.Flags.MergedDustSize.Equal(decimal.NewFromFloat(0.5)))
	assert.True(t, merge.Flags.PendingRotation)
	assert.Empty(t, d.OrdersToPlace, "merge should not place a new order")
}

// Scenario 5: substantial split. Innermost PARTIAL size 8 on ideal 10 with
// residual capital 5.0 -> innermost anchored to 10; one new VIRTUAL order
// placed at closest SPREAD price carrying the residual.
func TestConsolidatePartials_Scenario5_SubstantialSplit(t *testing.T) {
	market := decimal.NewFromInt(100)
	// Outer partial sized to contribute residual capital of 5.0 at price 1
	// so the size delta equals the capital delta.
	outer := partial("outer", decimal.NewFromInt(1), decimal.NewFromInt(15), decimal.NewFromInt(10)) // excess 5 * price 1 = 5.0 capital
	inner := partial("inner", decimal.NewFromInt(101), decimal.NewFromInt(8), decimal.NewFromInt(10))

	spread := &gridcore.Slot{ID: "spread-1", Type: gridcore.Spread, State: gridcore.Virtual, Price: decimal.NewFromInt(102)}

	d := ConsolidatePartials(gridcore.SideSell, []*gridcore.Slot{outer, inner}, market, []*gridcore.Slot{spread}, defaultCfg(), decimal.Zero, false)

	require.Len(t, d.PartialMoves, 2)
	split := d.PartialMoves[1]
	assert.Equal(t, MoveSplit, split.Kind)
	assert.Equal(t, "inner", split.SlotID)
	assert.True(t, split.NewSize.Equal(decimal.NewFromInt(10)))

	require.Len(t, d.OrdersToPlace, 1)
	placed := d.OrdersToPlace[0]
	assert.Equal(t, "spread-1", placed.SlotID)
	residualCapital := decimal.NewFromFloat(5.0)
	wantSize := residualCapital.Div(inner.Price)
	assert.True(t, placed.Size.Equal(wantSize), "got %s want %s", placed.Size, wantSize)
}

// RMS divergence equals zero iff calculated and persisted match exactly.
func TestRMSDivergence_ZeroIffExactMatch(t *testing.T) {
	calc := []decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(20), decimal.NewFromInt(30)}
	persisted := []decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(20), decimal.NewFromInt(30)}
	assert.True(t, RMSDivergence(calc, persisted).IsZero())

	persisted2 := []decimal.Decimal{decimal.NewFromInt(11), decimal.NewFromInt(20), decimal.NewFromInt(30)}
	assert.False(t, RMSDivergence(calc, persisted2).IsZero())
}

func TestShouldRegenerateByThreshold(t *testing.T) {
	allocated := decimal.NewFromInt(1000)
	assert.True(t, ShouldRegenerateByThreshold(decimal.NewFromInt(20), decimal.NewFromInt(20), allocated, decimal.NewFromInt(3)))
	assert.False(t, ShouldRegenerateByThreshold(decimal.NewFromInt(1), decimal.NewFromInt(1), allocated, decimal.NewFromInt(3)))
}

func TestPlanRotationBatch_ScalesDownWhenOverBudget(t *testing.T) {
	furthest := []*gridcore.Slot{{ID: "f1", Price: decimal.NewFromInt(150)}}
	spread := []*gridcore.Slot{{ID: "s1", Type: gridcore.Spread, Price: decimal.NewFromInt(105)}}

	rotations, surplus := PlanRotationBatch(
		gridcore.SideSell, furthest, spread, nil,
		decimal.NewFromInt(1000), decimal.NewFromInt(1), decimal.NewFromInt(1),
		1, decimal.NewFromInt(5), 8,
	)
	require.Len(t, rotations, 1)
	assert.True(t, rotations[0].NewSize.LessThanOrEqual(decimal.NewFromInt(5)))
	assert.True(t, surplus.GreaterThanOrEqual(decimal.Zero))
}
