package liveserver

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// MessageType constants
const (
	TypeKline      = "kline"
	TypeAccount    = "account"
	TypeOrders     = "orders"
	TypeTradeEvent = "trade_event"
	TypePosition   = "position"
	TypeHistory    = "history"
	TypeRiskStatus = "risk_status"
	TypeSlots      = "slots"

	// TypeGridStatus carries a grid bot's per-cycle snapshot: slot counts by
	// state, RMS divergence per side, and allocated/free funds.
	TypeGridStatus = "grid_status"
	// TypeFill carries one on-chain fill as it's reconciled into the grid.
	TypeFill = "fill"
)
