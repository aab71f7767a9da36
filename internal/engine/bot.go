// Package engine orchestrates one grid bot instance: a single logical FIFO
// scheduler per bot serializes core state mutations, while order
// placement/cancellation fan out concurrently through a worker pool. Each
// tick runs a sync -> rebalance -> settle cycle driven by
// config.Tuning.RunLoopMs. Order execution fan-out uses
// concurrency.WorkerPool (wrapping github.com/alitto/pond) with a
// sync.WaitGroup barrier so a tick's placements/cancels all land before the
// tick's state is persisted.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gridbot/internal/accountant"
	"gridbot/internal/chainadapter"
	"gridbot/internal/config"
	"gridbot/internal/core"
	"gridbot/internal/engerrors"
	"gridbot/internal/gridcore"
	"gridbot/internal/gridgen"
	"gridbot/internal/gridstate"
	"gridbot/internal/persistence"
	"gridbot/internal/precision"
	"gridbot/internal/strategy"
	"gridbot/internal/syncengine"
	"gridbot/pkg/concurrency"

	"github.com/shopspring/decimal"
)

// Bot wires gridstate, accountant, strategy, the Sync Engine, a Chain
// Adapter, and a Store into the lifecycle of one configured grid bot.
type Bot struct {
	cfg    config.BotConfig
	chain  chainadapter.Adapter
	store  persistence.Store
	logger core.ILogger

	mu        sync.Mutex // the FIFO gate: one cycle runs fully before the next starts
	manager   *gridstate.Manager
	acct      *accountant.Accountant
	sync      *syncengine.Engine
	pool      *concurrency.WorkerPool
	baseMeta  precision.AssetMetadata
	quoteMeta precision.AssetMetadata

	marketPrice decimal.Decimal
	broadcaster Broadcaster
	alerter     Alerter
}

// SetBroadcaster wires an operator-facing status feed; nil disables it.
func (b *Bot) SetBroadcaster(broadcaster Broadcaster) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broadcaster = broadcaster
}

// SetAlerter wires a critical-alert sink; nil disables it.
func (b *Bot) SetAlerter(alerter Alerter) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.alerter = alerter
}

// gridStatus is the payload of a TypeGridStatus broadcast: slot counts by
// state across the whole grid, plus per-side RMS divergence (used to trigger
// regeneration), allocated and free funds.
type gridStatus struct {
	Bot           string                   `json:"bot"`
	SlotsByState  map[string]int    `json:"slots_by_state"`
	RMSDivergence map[string]string `json:"rms_divergence"`
	Allocated     map[string]string `json:"allocated"`
	Free          map[string]string `json:"free"`
}

// fillEvent is the payload of a TypeFill broadcast.
type fillEvent struct {
	Bot    string `json:"bot"`
	Side   string `json:"side"`
	Amount string `json:"amount"`
}

// New builds a Bot. baseMeta/quoteMeta are resolved once at startup via
// chain.GetAssetMetadata and held for the life of the bot
// (BlockchainFetchIntervalMin governs when a caller should re-resolve and
// rebuild, not something this constructor re-checks itself).
func New(cfg config.BotConfig, chain chainadapter.Adapter, store persistence.Store, logger core.ILogger, baseMeta, quoteMeta precision.AssetMetadata) *Bot {
	l := logger.WithField("bot", cfg.Key)
	var acct *accountant.Accountant
	manager := gridstate.New(time.Duration(cfg.Tuning.LockTimeoutMs)*time.Millisecond, func() {
		if acct != nil {
			acct.RecalculateFunds()
		}
	}, l)
	acct = accountant.New(manager, map[gridcore.Side]decimal.Decimal{
		gridcore.SideBuy:  decimal.Zero,
		gridcore.SideSell: decimal.Zero,
	}, nil, l)

	targetActive := map[gridcore.Side]int{
		gridcore.SideBuy:  cfg.Grid.ActiveOrders.Buy,
		gridcore.SideSell: cfg.Grid.ActiveOrders.Sell,
	}
	syncEng := syncengine.New(manager, targetActive, 5*time.Second, l)

	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:       "bot-" + cfg.Key,
		MaxWorkers: 8,
	}, l)

	return &Bot{
		cfg: cfg, chain: chain, store: store, logger: l,
		manager: manager, acct: acct, sync: syncEng, pool: pool,
		baseMeta: baseMeta, quoteMeta: quoteMeta,
	}
}

// Start restores the persisted snapshot if one exists, or generates a fresh
// grid from config. marketPriceHint is used to resolve a "pool"/"market"
// start_price, an alternative to a literal number; resolving those against
// a live pool/market feed is the caller's job, since this package has no
// such feed of its own.
func (b *Bot) Start(ctx context.Context, marketPriceHint decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap, err := b.store.LoadGridSnapshot(ctx, b.cfg.Key)
	if err == nil && snap != nil && len(snap.Slots) > 0 {
		slots := make([]*gridcore.Slot, 0, len(snap.Slots))
		for _, r := range snap.Slots {
			slots = append(slots, r.ToSlot())
		}
		b.manager.LoadSlots(slots)
		b.logger.Info("restored grid snapshot", "slots", len(slots))
		b.acct.RecalculateFunds()
		return nil
	}

	return b.regenerate(ctx, resolveStartPrice(b.cfg.Grid.StartPrice, marketPriceHint))
}

// resolveStartPrice parses a literal numeric start_price, or falls back to
// the caller-supplied hint for the "pool"/"market" sentinels.
func resolveStartPrice(spec string, hint decimal.Decimal) decimal.Decimal {
	if p, err := decimal.NewFromString(spec); err == nil {
		return p
	}
	return hint
}

// regenerate rebuilds the grid from scratch via gridgen.Generate, loading
// the fresh ladder into the State Machine.
func (b *Bot) regenerate(ctx context.Context, marketPrice decimal.Decimal) error {
	funds, err := b.chain.GetAccountBalances(ctx, b.cfg.PreferredAccount, []string{b.baseMeta.ID, b.quoteMeta.ID})
	if err != nil {
		return err
	}

	buyFunds := resolveFunds(b.cfg.Grid.BotFunds.Buy, funds[b.quoteMeta.ID].Free)
	sellFunds := resolveFunds(b.cfg.Grid.BotFunds.Sell, funds[b.baseMeta.ID].Free)

	result, err := gridgen.Generate(gridgen.Input{
		MarketPrice:         marketPrice,
		MinPrice:            decimal.NewFromFloat(b.cfg.Grid.MinPrice),
		MaxPrice:            decimal.NewFromFloat(b.cfg.Grid.MaxPrice),
		IncrementPercent:    decimal.NewFromFloat(b.cfg.Grid.IncrementPercent),
		TargetSpreadPercent: decimal.NewFromFloat(b.cfg.Grid.TargetSpreadPercent),
		WeightDistribution: map[gridcore.Side]decimal.Decimal{
			gridcore.SideBuy:  decimal.NewFromFloat(b.cfg.Grid.WeightDistribution.Buy),
			gridcore.SideSell: decimal.NewFromFloat(b.cfg.Grid.WeightDistribution.Sell),
		},
		Funds: map[gridcore.Side]decimal.Decimal{
			gridcore.SideBuy:  buyFunds,
			gridcore.SideSell: sellFunds,
		},
		PricePrecision: b.quoteMeta.Precision,
		SizePrecision:  b.baseMeta.Precision,
	})
	if err != nil {
		return err
	}

	b.manager.LoadSlots(result.Slots)
	b.acct.SetAllocated(gridcore.SideBuy, buyFunds)
	b.acct.SetAllocated(gridcore.SideSell, sellFunds)
	b.acct.RecalculateFunds()
	b.marketPrice = marketPrice
	for _, w := range result.Warnings {
		b.logger.Warn("grid generation warning", "bot", b.cfg.Key, "warning", w)
	}
	return b.persist(ctx)
}

// resolveFunds interprets a BotFunds value that is either an absolute
// amount or a "N%" fraction of the given available balance.
func resolveFunds(spec string, available decimal.Decimal) decimal.Decimal {
	if len(spec) > 0 && spec[len(spec)-1] == '%' {
		pct, err := decimal.NewFromString(spec[:len(spec)-1])
		if err != nil {
			return decimal.Zero
		}
		return available.Mul(pct).Div(decimal.NewFromInt(100))
	}
	amt, err := decimal.NewFromString(spec)
	if err != nil {
		return decimal.Zero
	}
	return amt
}

// RunOnce executes one full cycle: sync from chain, rebalance on fills,
// evaluate regeneration triggers, persist. Callers (cmd/gridbot's run loop)
// invoke this every Tuning.RunLoopMs; the Bot's own mutex is the FIFO gate
// that keeps cycles from overlapping.
func (b *Bot) RunOnce(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkIndexConsistency(ctx); err != nil {
		return err
	}

	if err := b.syncFromChain(ctx); err != nil {
		return err
	}
	filledSides := b.drainFills(ctx)
	b.acct.RecalculateFunds()

	for _, side := range filledSides {
		b.rebalance(side)
	}

	if b.shouldRegenerate() {
		if err := b.regenerate(ctx, b.marketPrice); err != nil {
			b.logger.Error("regeneration failed", "bot", b.cfg.Key, "error", err.Error())
		}
		return nil
	}

	return b.persist(ctx)
}

// SyncStep reads the open-order book and drains pending fills, applying
// both to the State Machine, then recalculates cell balances. It is the
// first of three steps internal/engine/durable wraps as separately durable
// DBOS steps; RunOnce performs the same work inline under a single mutex
// hold for callers that don't need cross-process durability.
func (b *Bot) SyncStep(ctx context.Context) ([]gridcore.Side, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkIndexConsistency(ctx); err != nil {
		return nil, err
	}

	if err := b.syncFromChain(ctx); err != nil {
		return nil, err
	}
	filledSides := b.drainFills(ctx)
	b.acct.RecalculateFunds()
	return filledSides, nil
}

// RebalanceStep applies the strategy's rebalance decisions for each side
// that filled during SyncStep, placing and recording any resulting orders.
func (b *Bot) RebalanceStep(filledSides []gridcore.Side) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, side := range filledSides {
		b.rebalance(side)
	}
}

// SettleStep evaluates the grid's regeneration triggers and either rebuilds
// the grid from scratch or persists the current snapshot.
func (b *Bot) SettleStep(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.shouldRegenerate() {
		if err := b.regenerate(ctx, b.marketPrice); err != nil {
			b.logger.Error("regeneration failed", "bot", b.cfg.Key, "error", err.Error())
		}
		return nil
	}
	return b.persist(ctx)
}

// checkIndexConsistency runs the State Machine's invariant check ahead of
// each cycle. A rebuildable violation is logged and the cycle proceeds; one
// that survives the rebuild is fatal for this bot instance, so it fires a
// Critical alert and returns the error for the caller to shut the bot down
// on, leaving other bots in the same process untouched.
func (b *Bot) checkIndexConsistency(ctx context.Context) error {
	err := b.manager.AssertIndexConsistency()
	if err == nil {
		return nil
	}
	if !engerrors.Is(err, engerrors.IndexCorruption) {
		return err
	}
	b.logger.Error("grid index corruption could not be repaired, stopping bot", "bot", b.cfg.Key, "error", err.Error())
	if b.alerter != nil {
		b.alerter.AlertCritical(ctx, "Grid index corruption",
			fmt.Sprintf("bot %s: index corruption persists after rebuild, stopping this bot instance", b.cfg.Key),
			map[string]string{"bot": b.cfg.Key})
	}
	return err
}

func (b *Bot) syncFromChain(ctx context.Context) error {
	open, err := b.chain.ReadOpenOrders(ctx, b.cfg.PreferredAccount, b.cfg.Grid.AssetA+"-"+b.cfg.Grid.AssetB)
	if err != nil {
		return err
	}
	chainOrders := make([]syncengine.ChainOrder, 0, len(open))
	for _, o := range open {
		chainOrders = append(chainOrders, toChainOrder(o, b.baseMeta.ID))
	}
	tolerance := func(s *gridcore.Slot) decimal.Decimal {
		return precision.PriceTolerance(s.Price, s.IdealSize, &b.quoteMeta.Precision, &b.baseMeta.Precision)
	}
	_, err = b.sync.SyncFromOpenOrders(chainOrders, b.marketPrice, tolerance)
	return err
}

// toChainOrder maps a resting DEX-style "sell X for at least Y" order onto
// the (type, price, size) triple the Sync Engine matches against grid
// slots: a SELL order offers the base asset, a BUY order offers the quote
// asset in exchange for it.
func toChainOrder(o chainadapter.OpenOrder, baseAssetID string) syncengine.ChainOrder {
	if o.SellAsset == baseAssetID {
		price := decimal.Zero
		if o.ForSale.IsPositive() {
			price = o.MinToReceive.Div(o.ForSale)
		}
		return syncengine.ChainOrder{OrderID: o.OrderID, Type: gridcore.Sell, Price: price, Size: o.ForSale}
	}
	price := decimal.Zero
	if o.MinToReceive.IsPositive() {
		price = o.ForSale.Div(o.MinToReceive)
	}
	return syncengine.ChainOrder{OrderID: o.OrderID, Type: gridcore.Buy, Price: price, Size: o.MinToReceive}
}

func (b *Bot) drainFills(ctx context.Context) []gridcore.Side {
	fills, err := b.chain.SubscribeFills(ctx, b.cfg.PreferredAccount)
	if err != nil {
		return nil
	}
	seen := map[gridcore.Side]bool{}
	for {
		select {
		case f, ok := <-fills:
			if !ok {
				return sidesOf(seen)
			}
			side, amount := fillAmount(f, b.baseMeta.ID)
			filled, err := b.sync.SyncFromFillHistory(syncengine.FillEvent{
				HistoryID: f.HistoryID, OrderID: f.OrderID, Side: side, FilledAmount: amount,
			}, time.Unix(f.BlockTime, 0), b.baseMeta.Precision)
			if err != nil {
				b.logger.Warn("fill reconciliation failed", "bot", b.cfg.Key, "error", err.Error())
				continue
			}
			if filled {
				seen[side] = true
				if b.broadcaster != nil {
					b.broadcaster.Broadcast(liveFillType, fillEvent{
						Bot: b.cfg.Key, Side: string(side), Amount: amount.String(),
					})
				}
			}
		default:
			return sidesOf(seen)
		}
	}
}

func sidesOf(m map[gridcore.Side]bool) []gridcore.Side {
	out := make([]gridcore.Side, 0, len(m))
	for s := range m {
		out = append(out, s)
	}
	return out
}

// fillAmount maps a chain Fill onto the (side, amount) the Sync Engine
// expects: a SELL fill pays the base asset, a BUY fill receives it.
func fillAmount(f chainadapter.Fill, baseAssetID string) (gridcore.Side, decimal.Decimal) {
	if f.PaysAsset == baseAssetID {
		return gridcore.SideSell, f.PaysAmount
	}
	return gridcore.SideBuy, f.RecvAmount
}

// rebalance assembles a strategy.RebalanceInput from current Manager state
// and executes the resulting decisions. This is a best-effort reconstruction
// of the rich context RebalanceAfterFill expects; candidate lists are
// derived from the State Machine's indices rather than threaded through
// from the fill event itself.
func (b *Bot) rebalance(filledSide gridcore.Side) {
	opposite := filledSide.Opposite()
	cells := b.acct.Cells()

	in := strategy.RebalanceInput{
		FilledSide:                  filledSide,
		FilledCount:                 1,
		VirtualSlotsFilledSide:      b.manager.SlotsByState(gridcore.Virtual),
		OppositeSide:                opposite,
		OppositePartials:            filterBySideState(b.manager, opposite, gridcore.Partial),
		OppositeActiveCount:         len(filterBySideState(b.manager, opposite, gridcore.Active)),
		OppositeVirtualCount:        len(filterBySideState(b.manager, opposite, gridcore.Virtual)),
		OppositeVirtualSlotsForFill: filterBySideState(b.manager, opposite, gridcore.Virtual),
		OppositeSpreadSlots:         b.manager.SlotsByType(gridcore.Spread),
		OppositeFurthestActive:      filterBySideState(b.manager, opposite, gridcore.Active),
		TargetActiveOrders:          b.targetActive(opposite),
		MarketPrice:                 b.marketPrice,
		CacheFundsOpposite:          cells.CacheFunds[opposite],
		TotalAllocatedOpposite:      cells.Allocated[opposite],
		WeightExponentOpposite:      weightFor(b.cfg, opposite),
		IncrementPercent:            decimal.NewFromFloat(b.cfg.Grid.IncrementPercent),
		ReferenceSlotCount:          len(b.manager.SlotsByType(sideType(opposite))),
		RotationBudget:              cells.CacheFunds[opposite],
		SizePrecision:               b.baseMeta.Precision,
		Cfg: strategy.Config{
			PartialDustThresholdPercent: decimal.NewFromFloat(b.cfg.Tuning.PartialDustThresholdPercent),
			GridRegenerationPercent:     decimal.NewFromFloat(b.cfg.Tuning.GridRegenerationPercent),
			RMSPercent:                  decimal.NewFromFloat(b.cfg.Tuning.RMSPercent),
			TargetSpreadPercent:         decimal.NewFromFloat(b.cfg.Grid.TargetSpreadPercent),
			ActiveOrdersTarget: map[gridcore.Side]int{
				gridcore.SideBuy:  b.cfg.Grid.ActiveOrders.Buy,
				gridcore.SideSell: b.cfg.Grid.ActiveOrders.Sell,
			},
		},
	}

	decisions := strategy.RebalanceAfterFill(in)
	b.applyDecisions(decisions)
}

func (b *Bot) targetActive(side gridcore.Side) int {
	if side == gridcore.SideBuy {
		return b.cfg.Grid.ActiveOrders.Buy
	}
	return b.cfg.Grid.ActiveOrders.Sell
}

func weightFor(cfg config.BotConfig, side gridcore.Side) decimal.Decimal {
	if side == gridcore.SideBuy {
		return decimal.NewFromFloat(cfg.Grid.WeightDistribution.Buy)
	}
	return decimal.NewFromFloat(cfg.Grid.WeightDistribution.Sell)
}

func sideType(side gridcore.Side) gridcore.SlotType {
	if side == gridcore.SideBuy {
		return gridcore.Buy
	}
	return gridcore.Sell
}

func filterBySideState(m *gridstate.Manager, side gridcore.Side, state gridcore.SlotState) []*gridcore.Slot {
	var out []*gridcore.Slot
	for _, s := range m.SlotsByState(state) {
		if s.Type == sideType(side) {
			out = append(out, s)
		}
	}
	return out
}

// applyDecisions executes placements concurrently through the worker pool
// (fan-out, then a WaitGroup barrier) and applies the resulting order ids
// back onto the State Machine once every placement has returned.
func (b *Bot) applyDecisions(d strategy.Decisions) {
	if len(d.OrdersToPlace) == 0 {
		return
	}
	results := make([]placeResult, len(d.OrdersToPlace))
	var wg sync.WaitGroup
	wg.Add(len(d.OrdersToPlace))

	for i, order := range d.OrdersToPlace {
		idx, po := i, order
		task := func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), time.Duration(b.cfg.Tuning.AccountTotalsTimeoutMs)*time.Millisecond)
			defer cancel()
			res, err := b.chain.PlaceOrder(ctx, b.cfg.PreferredAccount, chainadapter.PlaceRequest{
				Type: po.Type, Price: po.Price, Size: po.Size,
				QuotePrecision: b.quoteMeta.Precision, BasePrecision: b.baseMeta.Precision,
			})
			results[idx] = placeResult{order: po, res: res, err: err}
		}
		if err := b.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()

	for _, r := range results {
		if r.err != nil {
			b.logger.Warn("order placement failed", "bot", b.cfg.Key, "slot", r.order.SlotID, "error", r.err.Error())
			continue
		}
		err := b.manager.UpsertOrder(gridstate.Update{
			ID: r.order.SlotID, State: gridcore.Active, Type: r.order.Type,
			Size: r.order.Size, OrderID: r.res.OrderID,
		})
		if err != nil && !engerrors.Is(err, engerrors.InvalidTransition) {
			b.logger.Error("failed to record placed order", "bot", b.cfg.Key, "slot", r.order.SlotID, "error", err.Error())
		}
		b.acct.UpdateOptimisticFreeBalance(gridcore.SideOf(r.order.Type), r.order.Size, accountant.OpPlace, r.res.Fee)
	}
}

type placeResult struct {
	order strategy.PlaceOrder
	res   chainadapter.PlaceResult
	err   error
}

// shouldRegenerate evaluates the threshold and RMS regeneration triggers
// against the accountant's current cells.
func (b *Bot) shouldRegenerate() bool {
	cells := b.acct.Cells()
	thetaR := decimal.NewFromFloat(b.cfg.Tuning.RMSPercent)
	for _, side := range []gridcore.Side{gridcore.SideBuy, gridcore.SideSell} {
		if strategy.ShouldRegenerateByThreshold(cells.CacheFunds[side], cells.Available[side], cells.Allocated[side], decimal.NewFromFloat(b.cfg.Tuning.GridRegenerationPercent)) {
			return true
		}
		if strategy.ShouldRegenerateByRMS(b.rmsDivergence(side), thetaR) {
			return true
		}
	}
	return false
}

// rmsDivergence recomputes what the Grid Generator's weighting would assign
// each of a side's real slots today, against what they're actually sized to
// (IdealSize), and returns the RMS of the relative error.
func (b *Bot) rmsDivergence(side gridcore.Side) decimal.Decimal {
	slots := b.manager.SlotsByType(sideType(side))
	if len(slots) == 0 {
		return decimal.Zero
	}
	// Closest to market first, the order ComputeWeightedSizes sizes in.
	for i := 1; i < len(slots); i++ {
		for j := i; j > 0; j-- {
			closer := slots[j].Price.LessThan(slots[j-1].Price)
			if side == gridcore.SideBuy {
				closer = slots[j].Price.GreaterThan(slots[j-1].Price)
			}
			if !closer {
				break
			}
			slots[j], slots[j-1] = slots[j-1], slots[j]
		}
	}
	persisted := make([]decimal.Decimal, len(slots))
	for i, s := range slots {
		persisted[i] = s.IdealSize
	}
	cells := b.acct.Cells()
	stepDown := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(b.cfg.Grid.IncrementPercent).Div(decimal.NewFromInt(100)))
	calculated := gridgen.ComputeWeightedSizes(cells.Allocated[side], weightFor(b.cfg, side), stepDown, len(slots), b.baseMeta.Precision)
	if calculated == nil {
		return decimal.Zero
	}
	return strategy.RMSDivergence(calculated, persisted)
}

func (b *Bot) persist(ctx context.Context) error {
	slots := b.manager.AllSlots()
	records := make([]persistence.SlotRecord, 0, len(slots))
	for _, s := range slots {
		records = append(records, persistence.SlotRecordFrom(s))
	}
	snap := &persistence.Snapshot{
		SchemaVersion: persistence.CurrentSchemaVersion,
		Slots:         records,
	}
	if err := b.store.SaveGridSnapshot(ctx, b.cfg.Key, snap); err != nil {
		return err
	}
	b.broadcastStatus()
	return nil
}

// broadcastStatus publishes the current grid status if a Broadcaster is
// wired; a nil broadcaster (the default) makes this a no-op.
func (b *Bot) broadcastStatus() {
	if b.broadcaster == nil {
		return
	}
	cells := b.acct.Cells()
	byState := map[string]int{}
	for _, s := range b.manager.AllSlots() {
		byState[string(s.State)]++
	}
	status := gridStatus{
		Bot:          b.cfg.Key,
		SlotsByState: byState,
		RMSDivergence: map[string]string{
			"buy":  b.rmsDivergence(gridcore.SideBuy).String(),
			"sell": b.rmsDivergence(gridcore.SideSell).String(),
		},
		Allocated: map[string]string{
			"buy":  cells.Allocated[gridcore.SideBuy].String(),
			"sell": cells.Allocated[gridcore.SideSell].String(),
		},
		Free: map[string]string{
			"buy":  cells.Available[gridcore.SideBuy].String(),
			"sell": cells.Available[gridcore.SideSell].String(),
		},
	}
	b.broadcaster.Broadcast(liveGridStatusType, status)
}

// Stop drains the worker pool. Resting orders are left on-chain: a restart
// resumes from the persisted snapshot rather than cancelling on exit. This
// method does not read config.System.CancelOnExit and issues no cancels.
func (b *Bot) Stop() {
	b.pool.Stop()
}
