// Package strategy implements the Strategy Engine: rebalance-after-fill,
// Anchor & Refill partial consolidation, rotation, spread control, and
// RMS/threshold-triggered regeneration. Every function here is pure: it
// reads a snapshot of the grid and funds and returns decision lists;
// nothing is mutated and no chain I/O happens inside this package.
package strategy

import (
	"gridbot/internal/gridcore"

	"github.com/shopspring/decimal"
)

// PlaceOrder is a prepared placement the caller should send to the Chain
// Adapter; state is not mutated until the chain confirms.
type PlaceOrder struct {
	SlotID string
	Type   gridcore.SlotType
	Price  decimal.Decimal
	Size   decimal.Decimal
}

// RotateOrder moves the furthest active order of a side onto a closer
// SPREAD slot.
type RotateOrder struct {
	FromSlotID string
	ToSlotID   string
	NewSize    decimal.Decimal
}

// PartialMoveKind names the Anchor & Refill decision for one partial slot.
type PartialMoveKind string

const (
	MoveRestore PartialMoveKind = "RESTORE" // outer partial restored to ideal
	MoveMerge   PartialMoveKind = "MERGE"   // innermost dust merge
	MoveSplit   PartialMoveKind = "SPLIT"   // innermost anchored, residual split off
)

// PartialMove is one consolidation decision produced by ConsolidatePartials.
type PartialMove struct {
	SlotID   string
	Kind     PartialMoveKind
	NewSize  decimal.Decimal
	NewState gridcore.SlotState
	Flags    gridcore.Flags
}

// Decisions is the Strategy Engine's complete output for one cycle: orders
// to place, orders to rotate, and partial slot consolidations.
type Decisions struct {
	OrdersToPlace   []PlaceOrder
	OrdersToRotate  []RotateOrder
	PartialMoves    []PartialMove
	RotationSurplus decimal.Decimal // unspent rotation budget, written back to cacheFunds
}

// Config carries the tuning values strategy decisions depend on, mirroring
// config.Tuning.
type Config struct {
	PartialDustThresholdPercent decimal.Decimal // default 5
	GridRegenerationPercent     decimal.Decimal // default 3 (threshold trigger Θ_c)
	RMSPercent                  decimal.Decimal // default 14.3 (Θ_r)
	TargetSpreadPercent         decimal.Decimal
	SpreadMarginPercent         decimal.Decimal
	ActiveOrdersTarget          map[gridcore.Side]int
}
