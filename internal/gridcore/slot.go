// Package gridcore defines the grid slot/order type, its state machine, and
// the invariants every mutation of a slot must respect. It carries no
// behavior beyond the transition table itself — the State Machine
// (internal/gridstate) owns the slot map, indices, and locking built on top
// of these types.
package gridcore

import (
	"github.com/shopspring/decimal"
)

// SlotType distinguishes a resting buy order, a resting sell order, and the
// placeholder zone around the reference price where no order sits.
type SlotType string

const (
	Buy    SlotType = "BUY"
	Sell   SlotType = "SELL"
	Spread SlotType = "SPREAD"
)

// SlotState is the lifecycle stage of a grid slot.
type SlotState string

const (
	Virtual SlotState = "VIRTUAL"
	Active  SlotState = "ACTIVE"
	Partial SlotState = "PARTIAL"
)

// transitions enumerates every legal (from, to) edge. Anything not listed
// here is rejected by upsertOrder with InvalidTransition.
var transitions = map[SlotState]map[SlotState]bool{
	Virtual: {Active: true, Partial: true},
	Active:  {Partial: true, Virtual: true},
	Partial: {Active: true, Virtual: true},
}

// IsLegalTransition reports whether moving a slot from `from` to `to` is one
// of the edges in the transition table above. A state transitioning to
// itself is never legal through upsertOrder — callers mutate fields in
// place instead.
func IsLegalTransition(from, to SlotState) bool {
	if from == to {
		return false
	}
	next, ok := transitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Flags holds the optional strategy flags that drive delayed-rotation logic
// in the Anchor & Refill policy.
type Flags struct {
	IsDoubleOrder        bool
	MergedDustSize       decimal.Decimal
	FilledSinceRefill    decimal.Decimal
	PendingRotation      bool
	IsResidualFromAnchor bool
}

// Slot is a single position in the grid ladder. Id and the nominal price are
// assigned once at grid generation and never change; State, Size, OrderID
// and Flags mutate under the transition rules above.
type Slot struct {
	ID    string
	Index int // position in the ladder, used for ideal-size lookups

	Type  SlotType
	State SlotState

	// Price is the slot's nominal ladder price, fixed at generation time.
	Price decimal.Decimal
	// Size is the order's current working size.
	Size decimal.Decimal
	// IdealSize is what the Grid Generator assigned this slot for the
	// current funds and weights; recomputed on regeneration.
	IdealSize decimal.Decimal

	// OrderID is the on-chain order id. Present iff State is Active or
	// Partial.
	OrderID string

	Flags Flags
}

// Clone returns a deep-enough copy for safe handoff across goroutine
// boundaries (strategy preparation runs over snapshots, not live pointers).
func (s *Slot) Clone() *Slot {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// HasOrderID reports whether the slot currently claims an on-chain order.
func (s *Slot) HasOrderID() bool {
	return s.OrderID != ""
}

// RequiresOrderID reports whether this slot's current State requires it to
// carry an OrderID.
func (s *Slot) RequiresOrderID() bool {
	return s.State == Active || s.State == Partial
}
