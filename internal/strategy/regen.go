package strategy

import (
	"math"

	"github.com/shopspring/decimal"
)

// ShouldRegenerateByThreshold implements the cache-&-available trigger:
// regenerate a side's sizes when (cacheFunds+available) grows to at least
// thetaC percent of what was originally allocated, absorbing new deposits
// automatically.
func ShouldRegenerateByThreshold(cacheFunds, available, allocated, thetaCPercent decimal.Decimal) bool {
	if allocated.LessThanOrEqual(decimal.Zero) {
		return false
	}
	lhs := cacheFunds.Add(available)
	rhs := thetaCPercent.Div(decimal.NewFromInt(100)).Mul(allocated)
	return lhs.GreaterThanOrEqual(rhs)
}

// RMSDivergence computes the root-mean-square of relative size errors
// between matched calculated and persisted sizes on one side. The two
// slices must be aligned by matched slot. The log-scale nature of
// this diagnostic ratio (not a chain-relevant amount) is why it's computed
// in float64 rather than decimal.
func RMSDivergence(calculated, persisted []decimal.Decimal) decimal.Decimal {
	n := len(calculated)
	if n == 0 || n != len(persisted) {
		return decimal.Zero
	}
	sumSq := 0.0
	for i := range calculated {
		p, _ := persisted[i].Float64()
		c, _ := calculated[i].Float64()
		if p == 0 {
			continue
		}
		e := (c - p) / p
		sumSq += e * e
	}
	rms := math.Sqrt(sumSq / float64(n))
	return decimal.NewFromFloat(rms)
}

// ShouldRegenerateByRMS reports whether divergence exceeds thetaR (percent,
// e.g. 14.3 for the default Θ_r).
func ShouldRegenerateByRMS(rms, thetaRPercent decimal.Decimal) bool {
	return rms.GreaterThan(thetaRPercent.Div(decimal.NewFromInt(100)))
}
