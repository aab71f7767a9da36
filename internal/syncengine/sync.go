// Package syncengine implements the Sync Engine: reconciling the in-memory
// grid with on-chain open orders and fill history, detecting offline fills,
// price drift, and surplus ghost orders on either side of the comparison.
package syncengine

import (
	"sort"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/engerrors"
	"gridbot/internal/gridcore"
	"gridbot/internal/gridstate"
	"gridbot/internal/precision"

	"github.com/shopspring/decimal"
)

// ChainOrder is the tuple parsed from the Chain Adapter's readOpenOrders.
type ChainOrder struct {
	OrderID string
	Type    gridcore.SlotType
	Price   decimal.Decimal
	Size    decimal.Decimal
}

// FillEvent is one entry from the Chain Adapter's subscribeFills stream,
// already resolved to a grid side and amount.
type FillEvent struct {
	HistoryID    string
	OrderID      string
	Side         gridcore.Side
	FilledAmount decimal.Decimal
}

// Result is what a full syncFromOpenOrders pass returns.
type Result struct {
	FilledOrders            []string
	UpdatedOrders           []string
	OrdersNeedingCorrection []string
}

// Engine reconciles a single bot's State Machine with chain state.
type Engine struct {
	manager      *gridstate.Manager
	targetActive map[gridcore.Side]int

	seenFills   map[string]time.Time
	dedupWindow time.Duration

	logger core.ILogger
}

// New builds a sync Engine bound to a State Machine.
func New(manager *gridstate.Manager, targetActive map[gridcore.Side]int, dedupWindow time.Duration, logger core.ILogger) *Engine {
	return &Engine{
		manager:      manager,
		targetActive: targetActive,
		seenFills:    map[string]time.Time{},
		dedupWindow:  dedupWindow,
		logger:       logger,
	}
}

// PriceToleranceFunc resolves the tolerance for matching a slot's nominal
// price against a chain order's reported price.
type PriceToleranceFunc func(slot *gridcore.Slot) decimal.Decimal

// SyncFromOpenOrders runs a three-pass reconciliation: match chain orders to
// slots by id and flag slots whose reported price has drifted; adopt chain
// orders that no slot claims into VIRTUAL slots of the same type by price;
// then, per side, mark the furthest matched slots for cancellation when the
// side is over its active-order target, and assign leftover chain orders to
// the nearest VIRTUAL slots when it is under.
func (e *Engine) SyncFromOpenOrders(chainOrders []ChainOrder, marketPrice decimal.Decimal, tolerance PriceToleranceFunc) (Result, error) {
	var res Result

	chainByID := make(map[string]ChainOrder, len(chainOrders))
	for _, co := range chainOrders {
		chainByID[co.OrderID] = co
	}
	claimed := map[string]bool{}

	allSlots := e.manager.AllSlots()

	// --- First pass: match by orderId. ---
	for _, s := range allSlots {
		if !s.HasOrderID() {
			continue
		}
		co, onChain := chainByID[s.OrderID]
		if !onChain {
			// Slot claims an order id the chain no longer has: fully filled.
			res.FilledOrders = append(res.FilledOrders, s.ID)
			if err := e.manager.UpsertOrder(gridstate.Update{
				ID: s.ID, State: gridcore.Virtual, Type: gridcore.Spread, Size: decimal.Zero,
			}); err != nil {
				return res, err
			}
			continue
		}
		claimed[co.OrderID] = true
		tol := tolerance(s)
		if co.Price.Sub(s.Price).Abs().LessThanOrEqual(tol) {
			if !co.Size.Equal(s.Size) {
				if co.Size.IsPositive() {
					res.UpdatedOrders = append(res.UpdatedOrders, s.ID)
					if err := e.manager.UpsertOrder(gridstate.Update{
						ID: s.ID, State: gridcore.Partial, Type: s.Type, Size: co.Size, OrderID: s.OrderID, Flags: s.Flags,
					}); err != nil {
						return res, err
					}
				} else {
					res.FilledOrders = append(res.FilledOrders, s.ID)
					if err := e.manager.UpsertOrder(gridstate.Update{
						ID: s.ID, State: gridcore.Virtual, Type: gridcore.Spread, Size: decimal.Zero,
					}); err != nil {
						return res, err
					}
				}
			}
		} else {
			e.manager.MarkNeedsPriceCorrection(s.ID)
			res.OrdersNeedingCorrection = append(res.OrdersNeedingCorrection, s.ID)
			// Force ACTIVE without touching size, but never in violation of
			// ACTIVE requires size >= ideal; an undersized slot stays
			// PARTIAL and simply carries the correction flag.
			if s.State != gridcore.Active && s.Size.GreaterThanOrEqual(s.IdealSize) {
				if err := e.manager.UpsertOrder(gridstate.Update{
					ID: s.ID, State: gridcore.Active, Type: s.Type, Size: s.Size, OrderID: s.OrderID, Flags: s.Flags,
				}); err != nil {
					return res, err
				}
			}
		}
	}

	// --- Second pass: match unclaimed chain orders by type+price. ---
	var unclaimedVirtual []*gridcore.Slot
	for _, s := range allSlots {
		if s.State == gridcore.Virtual && s.Type != gridcore.Spread {
			unclaimedVirtual = append(unclaimedVirtual, s)
		}
	}
	var leftoverChain []ChainOrder
	for _, co := range chainOrders {
		if claimed[co.OrderID] {
			continue
		}
		best := closestMatch(unclaimedVirtual, co, tolerance)
		if best == nil {
			leftoverChain = append(leftoverChain, co)
			continue
		}
		claimed[co.OrderID] = true
		unclaimedVirtual = removeSlot(unclaimedVirtual, best.ID)
		state := gridcore.Active
		if co.Size.LessThan(best.IdealSize) {
			state = gridcore.Partial
		}
		res.UpdatedOrders = append(res.UpdatedOrders, best.ID)
		if err := e.manager.UpsertOrder(gridstate.Update{
			ID: best.ID, State: state, Type: best.Type, Size: co.Size, OrderID: co.OrderID,
		}); err != nil {
			return res, err
		}
	}

	// --- Third pass: surplus/shortage resolution. ---
	for _, side := range []gridcore.Side{gridcore.SideBuy, gridcore.SideSell} {
		target := e.targetActive[side]
		matched := matchedSlotsForSide(e.manager, side)
		if len(matched) > target {
			surplus := len(matched) - target
			sort.Slice(matched, func(i, j int) bool {
				return matched[i].Price.Sub(marketPrice).Abs().GreaterThan(matched[j].Price.Sub(marketPrice).Abs())
			})
			for i := 0; i < surplus; i++ {
				e.manager.MarkPendingCancellation(matched[i].ID)
			}
		} else if len(matched) < target && len(leftoverChain) > 0 {
			shortage := target - len(matched)
			var virtuals []*gridcore.Slot
			for _, s := range e.manager.SlotsByState(gridcore.Virtual) {
				if s.Type == sideType(side) {
					virtuals = append(virtuals, s)
				}
			}
			sort.Slice(virtuals, func(i, j int) bool {
				return virtuals[i].Price.Sub(marketPrice).Abs().LessThan(virtuals[j].Price.Sub(marketPrice).Abs())
			})
			assigned := 0
			for _, co := range leftoverChain {
				if assigned >= shortage || co.Type != sideType(side) {
					continue
				}
				if len(virtuals) == 0 {
					break
				}
				targetSlot := virtuals[0]
				virtuals = virtuals[1:]
				res.UpdatedOrders = append(res.UpdatedOrders, targetSlot.ID)
				state := gridcore.Active
				if co.Size.LessThan(targetSlot.IdealSize) {
					state = gridcore.Partial
				}
				_ = e.manager.UpsertOrder(gridstate.Update{
					ID: targetSlot.ID, State: state, Type: targetSlot.Type, Size: co.Size, OrderID: co.OrderID,
				})
				assigned++
			}
		}
	}

	return res, nil
}

func sideType(side gridcore.Side) gridcore.SlotType {
	if side == gridcore.SideBuy {
		return gridcore.Buy
	}
	return gridcore.Sell
}

func matchedSlotsForSide(m *gridstate.Manager, side gridcore.Side) []*gridcore.Slot {
	var out []*gridcore.Slot
	for _, st := range []gridcore.SlotState{gridcore.Active, gridcore.Partial} {
		for _, s := range m.SlotsByState(st) {
			if s.Type == sideType(side) {
				out = append(out, s)
			}
		}
	}
	return out
}

func closestMatch(candidates []*gridcore.Slot, co ChainOrder, tolerance PriceToleranceFunc) *gridcore.Slot {
	var best *gridcore.Slot
	var bestDiff decimal.Decimal
	for _, s := range candidates {
		if s.Type != co.Type {
			continue
		}
		diff := s.Price.Sub(co.Price).Abs()
		if diff.GreaterThan(tolerance(s)) {
			continue
		}
		if best == nil || diff.LessThan(bestDiff) {
			best, bestDiff = s, diff
		}
	}
	return best
}

func removeSlot(slots []*gridcore.Slot, id string) []*gridcore.Slot {
	out := slots[:0]
	for _, s := range slots {
		if s.ID != id {
			out = append(out, s)
		}
	}
	return out
}

// SyncFromFillHistory directly matches a single fill event by orderId, with
// a 5-second dedup window on the history id.
func (e *Engine) SyncFromFillHistory(fill FillEvent, now time.Time, precisionDigits int32) (filled bool, err error) {
	if seenAt, ok := e.seenFills[fill.HistoryID]; ok && now.Sub(seenAt) < e.dedupWindow {
		return false, nil
	}
	e.seenFills[fill.HistoryID] = now

	slot, ok := e.manager.GetSlot(slotIDForOrder(e.manager, fill.OrderID))
	if !ok {
		return false, engerrors.New(engerrors.BadInput, "fill for unknown order id", fill.OrderID)
	}

	curInt, err := precision.ToChainInt(slot.Size, precisionDigits)
	if err != nil {
		return false, err
	}
	fillInt, err := precision.ToChainInt(fill.FilledAmount, precisionDigits)
	if err != nil {
		return false, err
	}
	remaining := curInt - fillInt
	if remaining < 0 {
		remaining = 0
	}
	remainingSize := precision.FromChainInt(remaining, precisionDigits)

	if remaining == 0 {
		return true, e.manager.UpsertOrder(gridstate.Update{
			ID: slot.ID, State: gridcore.Virtual, Type: gridcore.Spread, Size: decimal.Zero,
		})
	}

	flags := slot.Flags
	if flags.IsDoubleOrder {
		flags.FilledSinceRefill = flags.FilledSinceRefill.Add(fill.FilledAmount)
		if flags.FilledSinceRefill.GreaterThanOrEqual(flags.MergedDustSize) {
			flags = gridcore.Flags{}
		}
	}
	return false, e.manager.UpsertOrder(gridstate.Update{
		ID: slot.ID, State: gridcore.Partial, Type: slot.Type, Size: remainingSize, OrderID: slot.OrderID, Flags: flags,
	})
}

func slotIDForOrder(m *gridstate.Manager, orderID string) string {
	for _, s := range m.AllSlots() {
		if s.OrderID == orderID {
			return s.ID
		}
	}
	return ""
}
