// Package gridgen builds the geometric ladder of grid slots and their
// weighted sizes. It is a pure function of its inputs: no chain I/O, no
// mutation of any shared state.
package gridgen

import (
	"math"

	"gridbot/internal/engerrors"
	"gridbot/internal/gridcore"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Input is the complete contract the Grid Generator consumes.
type Input struct {
	MarketPrice decimal.Decimal
	MinPrice    decimal.Decimal
	MaxPrice    decimal.Decimal

	IncrementPercent    decimal.Decimal
	TargetSpreadPercent decimal.Decimal

	WeightDistribution map[gridcore.Side]decimal.Decimal
	Funds              map[gridcore.Side]decimal.Decimal

	PricePrecision int32
	SizePrecision  int32
	MinSizes       map[gridcore.Side]decimal.Decimal
}

// Result is the generator's output: the ordered ladder plus the spread
// percent actually used (may have been auto-raised) and any warnings.
type Result struct {
	Slots               []*gridcore.Slot
	EffectiveSpreadPct  decimal.Decimal
	Warnings            []string
	SizingFailed        map[gridcore.Side]bool
}

// Generate builds the grid's price/size ladder. It never mutates its
// input and never fails on valid input except when sizing is infeasible for
// a side, in which case that side's slots are left with zero size and
// Result.SizingFailed[side] is set so the caller can abort construction.
func Generate(in Input) (*Result, error) {
	if in.MarketPrice.LessThanOrEqual(decimal.Zero) ||
		in.MinPrice.LessThanOrEqual(decimal.Zero) ||
		in.MaxPrice.LessThanOrEqual(in.MinPrice) ||
		in.IncrementPercent.LessThanOrEqual(decimal.Zero) {
		return nil, engerrors.New(engerrors.BadInput, "invalid grid generation bounds")
	}

	res := &Result{SizingFailed: map[gridcore.Side]bool{}}

	stepUp := decimal.NewFromInt(1).Add(in.IncrementPercent.Div(decimal.NewFromInt(100)))
	stepDown := decimal.NewFromInt(1).Sub(in.IncrementPercent.Div(decimal.NewFromInt(100)))

	targetSpread := in.TargetSpreadPercent
	minSpread := in.IncrementPercent.Mul(decimal.NewFromInt(2))
	if targetSpread.LessThan(minSpread) {
		targetSpread = minSpread
		res.Warnings = append(res.Warnings, "targetSpreadPercent auto-raised to 2x incrementPercent")
	}
	res.EffectiveSpreadPct = targetSpread

	nSpread := spreadSlotCount(targetSpread, stepUp)
	buySpread := nSpread / 2
	sellSpread := nSpread - buySpread

	sellPrices := descendingLevels(in.MaxPrice, in.MarketPrice, stepDown)
	buyStart := in.MarketPrice.Mul(stepDown)
	if len(sellPrices) > 0 {
		buyStart = sellPrices[len(sellPrices)-1].Mul(stepDown)
	}
	buyPrices := descendingLevels(buyStart, in.MinPrice, stepDown)

	slots := make([]*gridcore.Slot, 0, len(sellPrices)+len(buyPrices))
	idx := 0
	for i, p := range sellPrices {
		t := gridcore.Sell
		// innermost sellSpread levels are the ones closest to market: the
		// tail of the descending sell list.
		if i >= len(sellPrices)-sellSpread {
			t = gridcore.Spread
		}
		slots = append(slots, newSlot(idx, t, p))
		idx++
	}
	for i, p := range buyPrices {
		t := gridcore.Buy
		// innermost buySpread levels are closest to market: the head of the
		// descending buy list.
		if i < buySpread {
			t = gridcore.Spread
		}
		slots = append(slots, newSlot(idx, t, p))
		idx++
	}
	res.Slots = slots

	sizeSide(res, slots, gridcore.SideSell, gridcore.Sell, in)
	sizeSide(res, slots, gridcore.SideBuy, gridcore.Buy, in)

	return res, nil
}

func newSlot(index int, t gridcore.SlotType, price decimal.Decimal) *gridcore.Slot {
	return &gridcore.Slot{
		ID:    uuid.NewString(),
		Index: index,
		Type:  t,
		State: gridcore.Virtual,
		Price: price,
		Size:  decimal.Zero,
	}
}

// spreadSlotCount implements nSpread = max(2, ceil(ln(1+targetSpread/100) /
// ln(stepUp))). The log computation is a pure slot-count derivation, not a
// chain-relevant amount, so float64 is appropriate here.
func spreadSlotCount(targetSpreadPercent decimal.Decimal, stepUp decimal.Decimal) int {
	ts, _ := targetSpreadPercent.Float64()
	su, _ := stepUp.Float64()
	n := int(math.Ceil(math.Log(1+ts/100) / math.Log(su)))
	if n < 2 {
		n = 2
	}
	return n
}

// descendingLevels generates prices starting at `start`, multiplying by
// `stepDown` while the price remains >= floor, inclusive of the final level
// that first drops below floor being excluded (matching "until reaching
// marketPrice"/"until minPrice").
func descendingLevels(start, floor, stepDown decimal.Decimal) []decimal.Decimal {
	var out []decimal.Decimal
	p := start
	for p.GreaterThanOrEqual(floor) {
		out = append(out, p)
		p = p.Mul(stepDown)
	}
	return out
}

// sizeSide applies geometric weighted sizing with the minimum-enforcement
// retry. It mutates the Size field of slots matching `want` in place.
//
// Both sides use the same outward-from-market convention: real[0] is always
// the slot closest to the market price (the highest raw weight,
// stepDown^0), and weight tapers geometrically as the ladder moves away
// from the market. `slots` builds SELL prices descending from maxPrice down
// to the market (farthest first) and BUY prices descending from just below
// the market down to minPrice (closest first), so SELL's real list is
// reversed here to match BUY's closest-first order before weighting.
func sizeSide(res *Result, slots []*gridcore.Slot, side gridcore.Side, want gridcore.SlotType, in Input) {
	var real []*gridcore.Slot
	for _, s := range slots {
		if s.Type == want {
			real = append(real, s)
		}
	}
	if side == gridcore.SideSell {
		for l, r := 0, len(real)-1; l < r; l, r = l+1, r-1 {
			real[l], real[r] = real[r], real[l]
		}
	}
	n := len(real)
	if n == 0 {
		return
	}

	w, ok := in.WeightDistribution[side]
	if !ok {
		w = decimal.NewFromInt(1)
	}
	funds, ok := in.Funds[side]
	if !ok || funds.LessThanOrEqual(decimal.Zero) {
		res.SizingFailed[side] = true
		return
	}
	stepDown := decimal.NewFromInt(1).Sub(in.IncrementPercent.Div(decimal.NewFromInt(100)))
	minSize := in.MinSizes[side]

	weights := rawWeights(n, w, stepDown)
	sumW := decimal.Zero
	for _, wt := range weights {
		sumW = sumW.Add(wt)
	}
	if sumW.LessThanOrEqual(decimal.Zero) {
		res.SizingFailed[side] = true
		return
	}

	// Pass 1: guarantee minSize per slot, distribute the residual by weight.
	sizes, ok := weightedSizesWithFloor(real, weights, sumW, funds, minSize, in.SizePrecision)
	if !ok {
		res.Warnings = append(res.Warnings, string(side)+": minimum enforcement infeasible, retrying without minimum")
		sizes, ok = weightedSizes(real, weights, sumW, funds, in.SizePrecision)
		if !ok {
			res.SizingFailed[side] = true
			for _, s := range real {
				s.Size = decimal.Zero
				s.IdealSize = decimal.Zero
			}
			return
		}
	}
	for i, s := range real {
		s.Size = sizes[i]
		s.IdealSize = sizes[i]
	}
}

// ComputeWeightedSizes exposes the same weight-distribution math sizeSide
// uses internally, for callers (rotation sizing in internal/strategy) that
// need geometric sizes over an arbitrary slot count without a full ladder.
// No minimum enforcement is attempted; callers apply their own budget cap.
func ComputeWeightedSizes(funds decimal.Decimal, weightExponent decimal.Decimal, stepDown decimal.Decimal, n int, sizePrecision int32) []decimal.Decimal {
	if n <= 0 || funds.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	weights := rawWeights(n, weightExponent, stepDown)
	sumW := decimal.Zero
	for _, wt := range weights {
		sumW = sumW.Add(wt)
	}
	if sumW.LessThanOrEqual(decimal.Zero) {
		return nil
	}
	out := make([]decimal.Decimal, n)
	for i := range out {
		raw := funds.Mul(weights[i]).Div(sumW)
		out[i] = quantize(raw, sizePrecision)
	}
	return out
}

func rawWeights(n int, w decimal.Decimal, stepDown decimal.Decimal) []decimal.Decimal {
	out := make([]decimal.Decimal, n)
	base, _ := stepDown.Float64()
	wf, _ := w.Float64()
	for i := 0; i < n; i++ {
		exp := float64(i) * wf
		out[i] = decimal.NewFromFloat(math.Pow(base, exp))
	}
	return out
}

func quantize(d decimal.Decimal, prec int32) decimal.Decimal {
	return d.Shift(prec).Floor().Shift(-prec)
}

func weightedSizes(real []*gridcore.Slot, weights []decimal.Decimal, sumW, funds decimal.Decimal, prec int32) ([]decimal.Decimal, bool) {
	out := make([]decimal.Decimal, len(real))
	for i := range real {
		raw := funds.Mul(weights[i]).Div(sumW)
		out[i] = quantize(raw, prec)
	}
	return out, true
}

func weightedSizesWithFloor(real []*gridcore.Slot, weights []decimal.Decimal, sumW, funds, minSize decimal.Decimal, prec int32) ([]decimal.Decimal, bool) {
	if minSize.LessThanOrEqual(decimal.Zero) {
		out, _ := weightedSizes(real, weights, sumW, funds, prec)
		for _, s := range out {
			if s.LessThan(minSize) {
				return nil, false
			}
		}
		return out, true
	}
	n := decimal.NewFromInt(int64(len(real)))
	reserved := minSize.Mul(n)
	residual := funds.Sub(reserved)
	if residual.LessThan(decimal.Zero) {
		return nil, false
	}
	out := make([]decimal.Decimal, len(real))
	for i := range real {
		raw := minSize.Add(residual.Mul(weights[i]).Div(sumW))
		q := quantize(raw, prec)
		if q.LessThan(minSize) {
			return nil, false
		}
		out[i] = q
	}
	return out, true
}
