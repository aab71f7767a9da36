// Package chainadapter defines the Chain Adapter contract consumed by the
// Sync Engine and Strategy Engine, plus concrete implementations:
// chainadapter/fake (in-memory, for tests and dry runs) and
// chainadapter/rpcclient (rate-limited HTTP transport skeleton). The
// interface is trimmed to the operations a spot grid bot actually calls —
// no kline/position/margin surface.
package chainadapter

import (
	"context"

	"gridbot/internal/gridcore"
	"gridbot/internal/precision"

	"github.com/shopspring/decimal"
)

// OpenOrder is one resting order as reported by readOpenOrders.
type OpenOrder struct {
	OrderID       string
	ForSale       decimal.Decimal
	SellAsset     string
	ReceiveAsset  string
	MinToReceive  decimal.Decimal
}

// Balance is one asset's free/total balance.
type Balance struct {
	Free  decimal.Decimal
	Total decimal.Decimal
}

// Fill is a single async fill event from subscribeFills.
type Fill struct {
	HistoryID   string
	OrderID     string
	PaysAmount  decimal.Decimal
	PaysAsset   string
	RecvAmount  decimal.Decimal
	RecvAsset   string
	IsMaker     bool
	BlockNum    uint64
	BlockTime   int64
}

// PlaceRequest is the input to placeOrder.
type PlaceRequest struct {
	Type           gridcore.SlotType
	Price          decimal.Decimal
	Size           decimal.Decimal
	QuotePrecision int32
	BasePrecision  int32
}

// PlaceResult is what a successful placeOrder returns.
type PlaceResult struct {
	OrderID string
	Fee     decimal.Decimal
}

// Adapter is the Chain Adapter contract. Every method may block on network
// I/O and must be called with a context carrying the
// ACCOUNT_TOTALS_TIMEOUT_MS deadline; implementations translate transport
// errors into engerrors.ChainTransient / ChainPermanent.
type Adapter interface {
	PlaceOrder(ctx context.Context, accountID string, req PlaceRequest) (PlaceResult, error)
	CancelOrder(ctx context.Context, accountID, orderID string) error
	UpdateOrder(ctx context.Context, accountID, orderID string, price, size *decimal.Decimal) error
	ReadOpenOrders(ctx context.Context, accountID, market string) ([]OpenOrder, error)
	GetAccountBalances(ctx context.Context, accountID string, assetIDs []string) (map[string]Balance, error)
	SubscribeFills(ctx context.Context, accountID string) (<-chan Fill, error)
	GetAssetMetadata(ctx context.Context, symbol string) (precision.AssetMetadata, error)
	WaitConnected(ctx context.Context) error
}
