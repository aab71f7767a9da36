// Package fake is an in-memory chainadapter.Adapter for tests and dry-run
// bots. It simulates a single-market order book: orders rest until a
// caller moves the simulated market price across them with SetMarketPrice,
// at which point they fill (maker) and a Fill is pushed onto the
// subscribeFills channel. Orders and fills are plain chainadapter structs,
// guarded by a single mutex.
package fake

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"gridbot/internal/chainadapter"
	"gridbot/internal/gridcore"
	"gridbot/internal/precision"
	"gridbot/pkg/pbu"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type restingOrder struct {
	id    string
	typ   gridcore.SlotType
	price decimal.Decimal
	size  decimal.Decimal
}

// Exchange is the in-memory Adapter implementation.
type Exchange struct {
	mu sync.Mutex

	orders      map[string]*restingOrder
	balances    map[string]chainadapter.Balance
	metadata    map[string]precision.AssetMetadata
	marketPrice decimal.Decimal

	baseAssetID  string
	quoteAssetID string

	fills   chan chainadapter.Fill
	seq     int64
	counter int64

	connected atomic.Bool
}

// New builds a fake Exchange pre-funded with the given balances and asset
// metadata for a single base/quote market. Callers drive fills by calling
// SetMarketPrice after every simulated price tick.
func New(balances map[string]chainadapter.Balance, metadata map[string]precision.AssetMetadata, baseAssetID, quoteAssetID string) *Exchange {
	e := &Exchange{
		orders:       map[string]*restingOrder{},
		balances:     balances,
		metadata:     metadata,
		baseAssetID:  baseAssetID,
		quoteAssetID: quoteAssetID,
		fills:        make(chan chainadapter.Fill, 256),
	}
	e.connected.Store(true)
	return e
}

func (e *Exchange) PlaceOrder(ctx context.Context, accountID string, req chainadapter.PlaceRequest) (chainadapter.PlaceResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	side := "BUY"
	if req.Type == gridcore.Sell {
		side = "SELL"
	}
	id := pbu.AddBrokerPrefix("fake", pbu.GenerateCompactOrderID(req.Price, side, int(req.QuotePrecision))+"-"+uuid.NewString()[:8])

	e.orders[id] = &restingOrder{id: id, typ: req.Type, price: req.Price, size: req.Size}
	e.counter++

	return chainadapter.PlaceResult{OrderID: id, Fee: decimal.Zero}, nil
}

func (e *Exchange) CancelOrder(ctx context.Context, accountID, orderID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.orders, orderID)
	return nil
}

func (e *Exchange) UpdateOrder(ctx context.Context, accountID, orderID string, price, size *decimal.Decimal) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	o, ok := e.orders[orderID]
	if !ok {
		return fmt.Errorf("fake: unknown order %s", orderID)
	}
	if price != nil {
		o.price = *price
	}
	if size != nil {
		o.size = *size
	}
	return nil
}

func (e *Exchange) ReadOpenOrders(ctx context.Context, accountID, market string) ([]chainadapter.OpenOrder, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]chainadapter.OpenOrder, 0, len(e.orders))
	for _, o := range e.orders {
		// A SELL rests base-for-quote; a BUY rests quote-for-base.
		oo := chainadapter.OpenOrder{OrderID: o.id}
		if o.typ == gridcore.Sell {
			oo.SellAsset, oo.ReceiveAsset = e.baseAssetID, e.quoteAssetID
			oo.ForSale, oo.MinToReceive = o.size, o.size.Mul(o.price)
		} else {
			oo.SellAsset, oo.ReceiveAsset = e.quoteAssetID, e.baseAssetID
			oo.ForSale, oo.MinToReceive = o.size.Mul(o.price), o.size
		}
		out = append(out, oo)
	}
	return out, nil
}

func (e *Exchange) GetAccountBalances(ctx context.Context, accountID string, assetIDs []string) (map[string]chainadapter.Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]chainadapter.Balance, len(assetIDs))
	for _, id := range assetIDs {
		out[id] = e.balances[id]
	}
	return out, nil
}

func (e *Exchange) SubscribeFills(ctx context.Context, accountID string) (<-chan chainadapter.Fill, error) {
	return e.fills, nil
}

func (e *Exchange) GetAssetMetadata(ctx context.Context, symbol string) (precision.AssetMetadata, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	md, ok := e.metadata[symbol]
	if !ok {
		return precision.AssetMetadata{}, fmt.Errorf("fake: unknown asset %s", symbol)
	}
	return md, nil
}

func (e *Exchange) WaitConnected(ctx context.Context) error {
	if e.connected.Load() {
		return nil
	}
	return fmt.Errorf("fake: not connected")
}

// SetMarketPrice moves the simulated market and fills any resting order the
// new price has crossed: a BUY fills when price falls to or below it, a
// SELL fills when price rises to or at least it.
func (e *Exchange) SetMarketPrice(price decimal.Decimal) {
	e.mu.Lock()
	var toFill []*restingOrder
	e.marketPrice = price
	for id, o := range e.orders {
		crossed := (o.typ == gridcore.Buy && price.LessThanOrEqual(o.price)) ||
			(o.typ == gridcore.Sell && price.GreaterThanOrEqual(o.price))
		if crossed {
			toFill = append(toFill, o)
			delete(e.orders, id)
		}
	}
	e.mu.Unlock()

	for _, o := range toFill {
		e.emitFill(o)
	}
}

func (e *Exchange) emitFill(o *restingOrder) {
	e.seq++
	historyID := fmt.Sprintf("fake-fill-%d", e.seq)

	paysAsset, recvAsset := e.quoteAssetID, e.baseAssetID
	paysAmount, recvAmount := o.size.Mul(o.price), o.size
	if o.typ == gridcore.Sell {
		paysAsset, recvAsset = e.baseAssetID, e.quoteAssetID
		paysAmount, recvAmount = o.size, o.size.Mul(o.price)
	}

	select {
	case e.fills <- chainadapter.Fill{
		HistoryID: historyID, OrderID: o.id,
		PaysAmount: paysAmount, PaysAsset: paysAsset,
		RecvAmount: recvAmount, RecvAsset: recvAsset,
		IsMaker: true,
	}:
	default:
	}
}
