package gridgen

import (
	"testing"

	"gridbot/internal/gridcore"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// marketPrice=100, min=50, max=200, incrementPercent=1, targetSpread=2%,
// weights={1,1}, funds={buy=1000, sell=10}.
func TestGenerate_Scenario1(t *testing.T) {
	in := Input{
		MarketPrice:         decimal.NewFromInt(100),
		MinPrice:            decimal.NewFromInt(50),
		MaxPrice:            decimal.NewFromInt(200),
		IncrementPercent:    decimal.NewFromInt(1),
		TargetSpreadPercent: decimal.NewFromInt(2),
		WeightDistribution: map[gridcore.Side]decimal.Decimal{
			gridcore.SideBuy:  decimal.NewFromInt(1),
			gridcore.SideSell: decimal.NewFromInt(1),
		},
		Funds: map[gridcore.Side]decimal.Decimal{
			gridcore.SideBuy:  decimal.NewFromInt(1000),
			gridcore.SideSell: decimal.NewFromInt(10),
		},
		PricePrecision: 8,
		SizePrecision:  8,
		MinSizes: map[gridcore.Side]decimal.Decimal{
			gridcore.SideBuy:  decimal.NewFromFloat(0.001),
			gridcore.SideSell: decimal.NewFromFloat(0.0001),
		},
	}

	res, err := Generate(in)
	require.NoError(t, err)
	require.NotEmpty(t, res.Slots)
	assert.False(t, res.SizingFailed[gridcore.SideBuy])
	assert.False(t, res.SizingFailed[gridcore.SideSell])

	spreadCount := 0
	var sellTotal, buyTotal decimal.Decimal
	for _, s := range res.Slots {
		switch s.Type {
		case gridcore.Spread:
			spreadCount++
			assert.Equal(t, gridcore.Virtual, s.State)
		case gridcore.Sell:
			sellTotal = sellTotal.Add(s.Size)
		case gridcore.Buy:
			buyTotal = buyTotal.Add(s.Size)
		}
	}
	// one innermost spread slot on each side.
	assert.Equal(t, 2, spreadCount)

	tolerance := decimal.NewFromFloat(0.01)
	assert.True(t, sellTotal.Sub(decimal.NewFromInt(10)).Abs().LessThanOrEqual(tolerance),
		"sell total %s not within tolerance of 10", sellTotal)
	assert.True(t, buyTotal.Sub(decimal.NewFromInt(1000)).Abs().LessThanOrEqual(tolerance),
		"buy total %s not within tolerance of 1000", buyTotal)

	stepDown := decimal.NewFromFloat(0.99)
	for i := 0; i+1 < len(res.Slots); i++ {
		ratio := res.Slots[i+1].Price.Div(res.Slots[i].Price)
		diff := ratio.Sub(stepDown).Abs()
		assert.True(t, diff.LessThan(decimal.NewFromFloat(1e-9)),
			"ratio at %d = %s, expected ~%s", i, ratio, stepDown)
	}
}

func TestGenerate_RejectsInvalidBounds(t *testing.T) {
	_, err := Generate(Input{
		MarketPrice:      decimal.NewFromInt(100),
		MinPrice:         decimal.NewFromInt(200),
		MaxPrice:         decimal.NewFromInt(50),
		IncrementPercent: decimal.NewFromInt(1),
	})
	assert.Error(t, err)
}

func TestGenerate_AutoRaisesSpreadBelowMinimum(t *testing.T) {
	in := Input{
		MarketPrice:         decimal.NewFromInt(100),
		MinPrice:            decimal.NewFromInt(50),
		MaxPrice:            decimal.NewFromInt(200),
		IncrementPercent:    decimal.NewFromInt(5),
		TargetSpreadPercent: decimal.NewFromInt(1), // below 2x increment
		WeightDistribution: map[gridcore.Side]decimal.Decimal{
			gridcore.SideBuy:  decimal.NewFromInt(1),
			gridcore.SideSell: decimal.NewFromInt(1),
		},
		Funds: map[gridcore.Side]decimal.Decimal{
			gridcore.SideBuy:  decimal.NewFromInt(1000),
			gridcore.SideSell: decimal.NewFromInt(10),
		},
		PricePrecision: 8,
		SizePrecision:  8,
		MinSizes:       map[gridcore.Side]decimal.Decimal{},
	}
	res, err := Generate(in)
	require.NoError(t, err)
	assert.True(t, res.EffectiveSpreadPct.Equal(decimal.NewFromInt(10)))
	assert.NotEmpty(t, res.Warnings)
}
