// Package rpcclient implements chainadapter.Adapter against a real chain
// node over HTTP JSON-RPC, with a websocket subscription for fills. REST
// calls go through pkg/http.Client for resilient (failsafe-go retry +
// circuit breaker) transport and a golang.org/x/time/rate limiter for
// outbound call shaping; the fill stream uses pkg/websocket.Client.
package rpcclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gridbot/internal/chainadapter"
	"gridbot/internal/core"
	"gridbot/internal/engerrors"
	"gridbot/internal/gridcore"
	"gridbot/internal/precision"
	apperrors "gridbot/pkg/errors"
	pkghttp "gridbot/pkg/http"
	pkgws "gridbot/pkg/websocket"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// Config configures an RPC-backed Adapter.
type Config struct {
	Endpoint          string
	WebsocketEndpoint string
	RequestsPerSecond float64
	Burst             int
}

// Client is the RPC-backed Adapter implementation.
type Client struct {
	http    *pkghttp.Client
	limiter *rate.Limiter
	ws      *pkgws.Client
	logger  core.ILogger

	fills chan chainadapter.Fill
}

// New builds a Client. Signer (API key/secret) is installed separately via
// pkghttp.Client's Signer interface by the caller, kept out of Config so
// secrets never round-trip through YAML-decoded structs unredacted.
func New(cfg Config, signer pkghttp.Signer, logger core.ILogger) *Client {
	h := pkghttp.NewClient(cfg.Endpoint, 10*time.Second, signer) // matches ACCOUNT_TOTALS_TIMEOUT_MS default
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)

	c := &Client{http: h, limiter: limiter, logger: logger, fills: make(chan chainadapter.Fill, 256)}
	if cfg.WebsocketEndpoint != "" {
		c.ws = pkgws.NewClient(cfg.WebsocketEndpoint, c.handleWSMessage, logger)
	}
	return c
}

type wsFillMessage struct {
	HistoryID  string          `json:"history_id"`
	OrderID    string          `json:"order_id"`
	PaysAmount decimal.Decimal `json:"pays_amount"`
	PaysAsset  string          `json:"pays_asset"`
	RecvAmount decimal.Decimal `json:"recv_amount"`
	RecvAsset  string          `json:"recv_asset"`
	IsMaker    bool            `json:"is_maker"`
	BlockNum   uint64          `json:"block_num"`
	BlockTime  int64           `json:"block_time"`
}

func (c *Client) handleWSMessage(raw []byte) {
	var msg wsFillMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		if c.logger != nil {
			c.logger.Warn("rpcclient: malformed fill message", "error", err.Error())
		}
		return
	}
	fill := chainadapter.Fill{
		HistoryID: msg.HistoryID, OrderID: msg.OrderID,
		PaysAmount: msg.PaysAmount, PaysAsset: msg.PaysAsset,
		RecvAmount: msg.RecvAmount, RecvAsset: msg.RecvAsset,
		IsMaker: msg.IsMaker, BlockNum: msg.BlockNum, BlockTime: msg.BlockTime,
	}
	select {
	case c.fills <- fill:
	default:
		if c.logger != nil {
			c.logger.Warn("rpcclient: fill channel full, dropping event", "historyId", msg.HistoryID)
		}
	}
}

func (c *Client) wait(ctx context.Context) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return engerrors.New(engerrors.ChainTransient, "rate limiter wait failed: "+err.Error())
	}
	return nil
}

func (c *Client) PlaceOrder(ctx context.Context, accountID string, req chainadapter.PlaceRequest) (chainadapter.PlaceResult, error) {
	if err := c.wait(ctx); err != nil {
		return chainadapter.PlaceResult{}, err
	}
	side := "buy"
	if req.Type == gridcore.Sell {
		side = "sell"
	}
	body, err := c.http.Post(ctx, "/place_order", map[string]interface{}{
		"account_id": accountID, "side": side, "price": req.Price.String(), "size": req.Size.String(),
	})
	if err != nil {
		return chainadapter.PlaceResult{}, classify(err)
	}
	var resp struct {
		OrderID string          `json:"order_id"`
		Fee     decimal.Decimal `json:"fee"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return chainadapter.PlaceResult{}, engerrors.New(engerrors.ChainTransient, "malformed place_order response")
	}
	return chainadapter.PlaceResult{OrderID: resp.OrderID, Fee: resp.Fee}, nil
}

func (c *Client) CancelOrder(ctx context.Context, accountID, orderID string) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err := c.http.Post(ctx, "/cancel_order", map[string]interface{}{"account_id": accountID, "order_id": orderID})
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) UpdateOrder(ctx context.Context, accountID, orderID string, price, size *decimal.Decimal) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	payload := map[string]interface{}{"account_id": accountID, "order_id": orderID}
	if price != nil {
		payload["price"] = price.String()
	}
	if size != nil {
		payload["size"] = size.String()
	}
	_, err := c.http.Post(ctx, "/update_order", payload)
	if err != nil {
		return classify(err)
	}
	return nil
}

func (c *Client) ReadOpenOrders(ctx context.Context, accountID, market string) ([]chainadapter.OpenOrder, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	body, err := c.http.Get(ctx, "/open_orders", map[string]string{"account_id": accountID, "market": market})
	if err != nil {
		return nil, classify(err)
	}
	var orders []chainadapter.OpenOrder
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, engerrors.New(engerrors.ChainTransient, "malformed open_orders response")
	}
	return orders, nil
}

func (c *Client) GetAccountBalances(ctx context.Context, accountID string, assetIDs []string) (map[string]chainadapter.Balance, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	body, err := c.http.Get(ctx, "/balances", map[string]string{"account_id": accountID})
	if err != nil {
		return nil, classify(err)
	}
	var all map[string]chainadapter.Balance
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, engerrors.New(engerrors.ChainTransient, "malformed balances response")
	}
	out := make(map[string]chainadapter.Balance, len(assetIDs))
	for _, id := range assetIDs {
		out[id] = all[id]
	}
	return out, nil
}

func (c *Client) SubscribeFills(ctx context.Context, accountID string) (<-chan chainadapter.Fill, error) {
	if c.ws == nil {
		return nil, engerrors.New(engerrors.BadInput, "rpcclient: no websocket endpoint configured")
	}
	c.ws.Start()
	return c.fills, nil
}

func (c *Client) GetAssetMetadata(ctx context.Context, symbol string) (precision.AssetMetadata, error) {
	if err := c.wait(ctx); err != nil {
		return precision.AssetMetadata{}, err
	}
	body, err := c.http.Get(ctx, "/asset_metadata", map[string]string{"symbol": symbol})
	if err != nil {
		return precision.AssetMetadata{}, classify(err)
	}
	var md precision.AssetMetadata
	if err := json.Unmarshal(body, &md); err != nil {
		return precision.AssetMetadata{}, engerrors.New(engerrors.ChainTransient, "malformed asset_metadata response")
	}
	return md, nil
}

// CircuitBreakerOpen reports the REST transport's breaker state. Bootstrap
// polls this through an optional-interface check to feed the
// gridbot_circuit_breaker_open gauge and trigger an alert on trip.
func (c *Client) CircuitBreakerOpen() bool {
	return c.http.CircuitBreakerOpen()
}

func (c *Client) WaitConnected(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err := c.http.Get(ctx, "/health", nil)
	if err != nil {
		return classify(err)
	}
	return nil
}

// classify maps a transport error onto the engerrors retry taxonomy, and
// for a rejected request additionally onto the specific pkg/errors reason
// the node gave, so callers can match either the coarse ChainPermanent
// sentinel (retry policy) or the precise cause (e.g. ErrInsufficientFunds,
// for a user-facing message) via errors.Is against the same *Error.
func classify(err error) error {
	apiErr, ok := err.(*pkghttp.APIError)
	if !ok {
		return engerrors.NewWithCause(engerrors.ChainTransient, apperrors.ErrNetwork, "rpc call failed: "+err.Error())
	}
	if apiErr.StatusCode == 429 {
		return engerrors.NewWithCause(engerrors.ChainTransient, apperrors.ErrRateLimitExceeded,
			fmt.Sprintf("rpc rejected: %s", apiErr.Error()))
	}
	if apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		return engerrors.NewWithCause(engerrors.ChainPermanent, rejectionCause(apiErr.Body),
			fmt.Sprintf("rpc rejected: %s", apiErr.Error()))
	}
	return engerrors.New(engerrors.ChainTransient, "rpc call failed: "+err.Error())
}

// rejectionCause pattern-matches a 4xx body against the node's documented
// rejection reasons. Falls back to the generic ErrOrderRejected when none
// of the known reasons match.
func rejectionCause(body []byte) error {
	switch {
	case bytes.Contains(body, []byte("insufficient")):
		return apperrors.ErrInsufficientFunds
	case bytes.Contains(body, []byte("invalid_symbol")):
		return apperrors.ErrInvalidSymbol
	case bytes.Contains(body, []byte("unauthorized")), bytes.Contains(body, []byte("auth")):
		return apperrors.ErrAuthenticationFailed
	case bytes.Contains(body, []byte("maintenance")):
		return apperrors.ErrExchangeMaintenance
	case bytes.Contains(body, []byte("not_found")):
		return apperrors.ErrOrderNotFound
	case bytes.Contains(body, []byte("duplicate")):
		return apperrors.ErrDuplicateOrder
	case bytes.Contains(body, []byte("invalid_parameter")):
		return apperrors.ErrInvalidOrderParameter
	case bytes.Contains(body, []byte("timestamp")):
		return apperrors.ErrTimestampOutOfBounds
	case bytes.Contains(body, []byte("overload")):
		return apperrors.ErrSystemOverload
	default:
		return apperrors.ErrOrderRejected
	}
}
