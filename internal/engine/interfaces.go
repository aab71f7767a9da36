package engine

import (
	"context"

	"github.com/shopspring/decimal"
)

// Runner is the interface cmd/gridbot drives each tick, satisfied by both
// the plain Bot and internal/engine/durable's DBOSBot, so a deployment can
// switch a bot between in-process and durable execution without touching
// the run loop.
type Runner interface {
	Start(ctx context.Context, marketPriceHint decimal.Decimal) error
	RunOnce(ctx context.Context) error
	Stop()
}

// Broadcaster publishes a typed message to whatever operator-facing feed a
// caller wires in; a Bot with no Broadcaster set runs exactly as before.
// Satisfied by a thin adapter over pkg/liveserver's Hub.Broadcast.
type Broadcaster interface {
	Broadcast(msgType string, data interface{})
}

// Alerter fires an operator-facing critical alert; satisfied by a thin
// adapter over internal/alert.AlertManager. A Bot with no Alerter set logs
// the condition without paging anyone.
type Alerter interface {
	AlertCritical(ctx context.Context, title, message string, fields map[string]string)
}

// Message type strings a Bot may pass to its Broadcaster. These mirror
// pkg/liveserver's TypeGridStatus/TypeFill constants; engine doesn't import
// pkg/liveserver directly so it stays usable behind any feed implementation.
const (
	liveGridStatusType = "grid_status"
	liveFillType       = "fill"
)
