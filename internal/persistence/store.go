// Package persistence defines the Persistence contract and its
// implementations: persistence/memstore (in-process, for tests and single-
// process dry runs) and persistence/sqlitestore (durable, checksum+WAL
// backed).
package persistence

import (
	"context"

	"gridbot/internal/gridcore"

	"github.com/shopspring/decimal"
)

// SlotRecord is the persisted form of one gridcore.Slot.
type SlotRecord struct {
	ID        string             `json:"id"`
	Index     int                `json:"index"`
	Type      gridcore.SlotType  `json:"type"`
	State     gridcore.SlotState `json:"state"`
	Price     decimal.Decimal    `json:"price"`
	Size      decimal.Decimal    `json:"size"`
	IdealSize decimal.Decimal    `json:"idealSize"`
	OrderID   string             `json:"orderId,omitempty"`
	Flags     gridcore.Flags     `json:"flags"`
}

// ToSlot converts a persisted record back into a live gridcore.Slot.
func (r SlotRecord) ToSlot() *gridcore.Slot {
	return &gridcore.Slot{
		ID: r.ID, Index: r.Index, Type: r.Type, State: r.State,
		Price: r.Price, Size: r.Size, IdealSize: r.IdealSize,
		OrderID: r.OrderID, Flags: r.Flags,
	}
}

// SlotRecordFrom converts a live slot into its persisted form.
func SlotRecordFrom(s *gridcore.Slot) SlotRecord {
	return SlotRecord{
		ID: s.ID, Index: s.Index, Type: s.Type, State: s.State,
		Price: s.Price, Size: s.Size, IdealSize: s.IdealSize,
		OrderID: s.OrderID, Flags: s.Flags,
	}
}

// CurrentSchemaVersion is bumped whenever SlotRecord's shape changes in a
// way old readers can't tolerate. Snapshot.Extra is excluded from JSON
// (`json:"-"`), so fields a reader does not recognize are dropped on load
// and are not written back on the next save.
const CurrentSchemaVersion = 1

// Snapshot is one bot's complete persisted grid state.
type Snapshot struct {
	SchemaVersion int                          `json:"schemaVersion"`
	Slots         []SlotRecord                 `json:"slots"`
	RMSReference  map[gridcore.Side][]decimal.Decimal `json:"rmsReference,omitempty"`
	UpdatedAtUnix int64                        `json:"updatedAtUnix"`
	Extra         map[string]interface{}       `json:"-"`
}

// CacheFunds is the two-side cache funds cell persisted outside the grid
// snapshot, mutated far more often than the grid shape itself.
type CacheFunds struct {
	Buy  decimal.Decimal `json:"buy"`
	Sell decimal.Decimal `json:"sell"`
}

// Store is the Persistence contract. Every write must reload-
// before-write internally when the underlying medium is shared across
// processes, so concurrent bots keyed by distinct botKey never lose updates
// to one another (they never touch the same key, but a single store
// instance may back many bots).
type Store interface {
	LoadGridSnapshot(ctx context.Context, botKey string) (*Snapshot, error)
	SaveGridSnapshot(ctx context.Context, botKey string, snap *Snapshot) error

	LoadCacheFunds(ctx context.Context, botKey string) (CacheFunds, error)
	UpdateCacheFunds(ctx context.Context, botKey string, funds CacheFunds) error

	LoadFeesOwed(ctx context.Context, botKey string) (map[gridcore.Side]decimal.Decimal, error)
	UpdateFeesOwed(ctx context.Context, botKey string, fees map[gridcore.Side]decimal.Decimal) error

	// HasRegenerationTrigger reports whether a recalculate.<botKey>.trigger
	// marker is set, signaling immediate regeneration on the next cycle.
	HasRegenerationTrigger(ctx context.Context, botKey string) (bool, error)
	ClearRegenerationTrigger(ctx context.Context, botKey string) error
}
