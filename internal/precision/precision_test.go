package precision

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// toChainInt(fromChainInt(n, p), p) == n for nonnegative integers n and
// precision p >= 0.
func TestRoundTrip(t *testing.T) {
	cases := []struct {
		n    int64
		prec int32
	}{
		{0, 0}, {1, 0}, {123456789, 0},
		{0, 8}, {1, 8}, {100, 8}, {987654321, 8},
		{5, 18},
	}
	for _, c := range cases {
		dec := FromChainInt(c.n, c.prec)
		back, err := ToChainInt(dec, c.prec)
		require.NoError(t, err)
		assert.Equal(t, c.n, back, "round-trip n=%d prec=%d", c.n, c.prec)
	}
}

func TestToChainInt_RejectsNegativePrecision(t *testing.T) {
	_, err := ToChainInt(decimal.NewFromInt(1), -1)
	assert.Error(t, err)
}

func TestCompareSizes(t *testing.T) {
	a := decimal.NewFromFloat(1.00000001)
	b := decimal.NewFromFloat(1.00000002)
	ord, err := CompareSizes(a, b, 8)
	require.NoError(t, err)
	assert.Equal(t, Less, ord)

	// sub-tick noise at precision 2 should compare equal
	ord2, err := CompareSizes(a, b, 2)
	require.NoError(t, err)
	assert.Equal(t, Equal, ord2)
}

// priceTolerance is monotone non-decreasing in orderSize for fixed
// price and precisions.
func TestPriceTolerance_MonotoneNonDecreasing(t *testing.T) {
	qp := int32(6)
	bp := int32(8)
	price := decimal.NewFromFloat(100)

	sizes := []decimal.Decimal{
		decimal.NewFromFloat(0),
		decimal.NewFromFloat(0.001),
		decimal.NewFromFloat(1),
		decimal.NewFromFloat(10),
		decimal.NewFromFloat(1000),
	}
	var prev decimal.Decimal
	for i, s := range sizes {
		tol := PriceTolerance(price, s, &qp, &bp)
		if i > 0 {
			assert.True(t, tol.GreaterThanOrEqual(prev), "tolerance decreased at size=%s", s)
		}
		prev = tol
	}
}

func TestPriceTolerance_FallbackWhenMetadataUnknown(t *testing.T) {
	price := decimal.NewFromFloat(50)
	tol := PriceTolerance(price, decimal.NewFromFloat(5), nil, nil)
	assert.True(t, tol.Equal(price.Mul(decimal.NewFromFloat(0.001))))
}

func TestApplyMarketFee(t *testing.T) {
	net := ApplyMarketFee(decimal.NewFromFloat(10.5), decimal.NewFromFloat(0.1))
	assert.True(t, net.Equal(decimal.NewFromFloat(10.4895)), "got %s", net)
}
