// Package accountant owns the grid's fund cells: it is the only writer of
// available/virtual/committed/cacheFunds/btsFeesOwed/allocated. Every other
// package observes these values through its read-only accessors. The
// identity invariant (available = max(0, chainFree - virtual - cacheFunds -
// feesReserved), see RecalculateFunds) is what every mutator preserves.
package accountant

import (
	"sync"

	"gridbot/internal/core"
	"gridbot/internal/gridcore"
	"gridbot/internal/gridstate"
	"gridbot/internal/precision"

	"github.com/shopspring/decimal"
)

// Accountant recomputes the fund identity from the State Machine's
// slot map and maintains the off-grid cells (cacheFunds, btsFeesOwed,
// allocated) that aren't derivable from slots alone.
type Accountant struct {
	mu sync.Mutex

	manager *gridstate.Manager
	cells   *gridcore.FundCells

	chainFree    map[gridcore.Side]decimal.Decimal
	feesReserved map[gridcore.Side]decimal.Decimal

	// nativeFeeSide is set when the trading pair contains the native token
	// used to pay on-chain transaction fees, naming which side's cache cell
	// absorbs btsFeesOwed deductions.
	nativeFeeSide *gridcore.Side

	logger core.ILogger
}

// New builds an Accountant bound to the given State Machine. chainFree is
// the account's free-balance mirror, updated optimistically between chain
// refreshes.
func New(manager *gridstate.Manager, chainFree map[gridcore.Side]decimal.Decimal, nativeFeeSide *gridcore.Side, logger core.ILogger) *Accountant {
	cf := map[gridcore.Side]decimal.Decimal{
		gridcore.SideBuy:  decimal.Zero,
		gridcore.SideSell: decimal.Zero,
	}
	for k, v := range chainFree {
		cf[k] = v
	}
	return &Accountant{
		manager:       manager,
		cells:         gridcore.NewFundCells(),
		chainFree:     cf,
		feesReserved:  map[gridcore.Side]decimal.Decimal{gridcore.SideBuy: decimal.Zero, gridcore.SideSell: decimal.Zero},
		nativeFeeSide: nativeFeeSide,
		logger:        logger,
	}
}

// SetAllocated records the total funds allocated to each side at grid
// generation time; it is not derivable from the slot map.
func (a *Accountant) SetAllocated(side gridcore.Side, amount decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cells.Allocated[side] = amount
}

// Cells returns a defensive copy of the current fund cells.
func (a *Accountant) Cells() *gridcore.FundCells {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneCells(a.cells)
}

func cloneCells(c *gridcore.FundCells) *gridcore.FundCells {
	cp := gridcore.NewFundCells()
	for _, side := range []gridcore.Side{gridcore.SideBuy, gridcore.SideSell} {
		cp.Available[side] = c.Available[side]
		cp.Virtual[side] = c.Virtual[side]
		cp.CommittedGrid[side] = c.CommittedGrid[side]
		cp.CommittedChain[side] = c.CommittedChain[side]
		cp.CacheFunds[side] = c.CacheFunds[side]
		cp.BtsFeesOwed[side] = c.BtsFeesOwed[side]
		cp.Allocated[side] = c.Allocated[side]
	}
	return cp
}

// RecalculateFunds recomputes every derived cell from the slot map using
// the fund-cell identities. It is a pure re-projection with no chain I/O,
// and is idempotent by construction: it only ever assigns freshly computed
// values, it never accumulates onto existing ones.
func (a *Accountant) RecalculateFunds() {
	a.mu.Lock()
	defer a.mu.Unlock()

	virtual := map[gridcore.Side]decimal.Decimal{gridcore.SideBuy: decimal.Zero, gridcore.SideSell: decimal.Zero}
	committedGrid := map[gridcore.Side]decimal.Decimal{gridcore.SideBuy: decimal.Zero, gridcore.SideSell: decimal.Zero}
	committedChain := map[gridcore.Side]decimal.Decimal{gridcore.SideBuy: decimal.Zero, gridcore.SideSell: decimal.Zero}

	for _, t := range []gridcore.SlotType{gridcore.Buy, gridcore.Sell} {
		side := gridcore.SideOf(t)
		for _, s := range a.manager.SlotsByType(t) {
			switch s.State {
			case gridcore.Virtual:
				virtual[side] = virtual[side].Add(s.Size)
			case gridcore.Active:
				committedGrid[side] = committedGrid[side].Add(s.Size)
				if s.HasOrderID() {
					committedChain[side] = committedChain[side].Add(s.Size)
				}
			}
		}
	}

	for _, side := range []gridcore.Side{gridcore.SideBuy, gridcore.SideSell} {
		a.cells.Virtual[side] = virtual[side]
		a.cells.CommittedGrid[side] = committedGrid[side]
		a.cells.CommittedChain[side] = committedChain[side]

		avail := a.chainFree[side].
			Sub(virtual[side]).
			Sub(a.cells.CacheFunds[side]).
			Sub(a.feesReserved[side])
		if avail.IsNegative() {
			avail = decimal.Zero
		}
		a.cells.Available[side] = avail
	}
}

// OptimisticOp names the two mutations updateOptimisticFreeBalance handles.
type OptimisticOp string

const (
	OpPlace  OptimisticOp = "place"
	OpCancel OptimisticOp = "cancel"
)

// UpdateOptimisticFreeBalance adjusts chainFree immediately on a local
// placement or cancellation, so subsequent operations in the same cycle see
// a consistent view without waiting on a chain refresh.
func (a *Accountant) UpdateOptimisticFreeBalance(side gridcore.Side, size decimal.Decimal, op OptimisticOp, fee decimal.Decimal) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch op {
	case OpPlace:
		a.chainFree[side] = a.chainFree[side].Sub(size).Sub(fee)
	case OpCancel:
		a.chainFree[side] = a.chainFree[side].Add(size)
	}
}

// FillResult reports what ApplyFill credited, for logging/tests.
type FillResult struct {
	CreditedSide gridcore.Side
	NetAmount    decimal.Decimal
	NativeFee    decimal.Decimal
}

// ApplyFill implements the proceeds accounting rule resolved in
// SPEC_FULL.md's Open Question #1: always credit cacheFunds with the
// fee-adjusted net amount, for both SELL (quote proceeds into
// cacheFunds[buy]) and BUY (base proceeds into cacheFunds[sell]). When the
// pair involves the native fee token, btsFeesOwed accumulates and is
// deducted from that side's cacheFunds immediately after the credit.
func (a *Accountant) ApplyFill(filledSide gridcore.Side, filledSize, price, feePercent decimal.Decimal, nativeFeeAmount decimal.Decimal) FillResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	var gross decimal.Decimal
	creditSide := filledSide.Opposite()
	if filledSide == gridcore.SideSell {
		gross = filledSize.Mul(price)
	} else {
		gross = filledSize
	}
	net := precision.ApplyMarketFee(gross, feePercent)
	a.cells.CacheFunds[creditSide] = a.cells.CacheFunds[creditSide].Add(net)

	result := FillResult{CreditedSide: creditSide, NetAmount: net}
	if a.nativeFeeSide != nil && nativeFeeAmount.IsPositive() {
		side := *a.nativeFeeSide
		a.cells.BtsFeesOwed[side] = a.cells.BtsFeesOwed[side].Add(nativeFeeAmount)
		a.cells.CacheFunds[side] = a.cells.CacheFunds[side].Sub(nativeFeeAmount)
		result.NativeFee = nativeFeeAmount
	}
	return result
}
