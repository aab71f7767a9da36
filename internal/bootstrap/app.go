package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gridbot/internal/alert"
	"gridbot/internal/chainadapter"
	"gridbot/internal/chainadapter/fake"
	"gridbot/internal/chainadapter/rpcclient"
	"gridbot/internal/config"
	"gridbot/internal/core"
	"gridbot/internal/engerrors"
	"gridbot/internal/engine"
	"gridbot/internal/persistence"
	"gridbot/internal/persistence/memstore"
	"gridbot/internal/persistence/sqlitestore"
	"gridbot/internal/precision"
	"gridbot/pkg/liveserver"
	"gridbot/pkg/retry"
	"gridbot/pkg/telemetry"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// App represents the application context and holds core dependencies:
// configuration, logging, persistence, the chain adapter, and one
// engine.Runner per active bot.
type App struct {
	Cfg        *Config
	Logger     core.ILogger
	Store      persistence.Store
	Chain      chainadapter.Adapter
	Bots       []*BotRunner
	LiveServer *liveserver.Server
	Alerts     *alert.AlertManager
	Monitor    *CircuitBreakerMonitor
}

// NewApp bootstraps all dependencies: config, logging, persistence, the
// chain adapter, and one Bot per configured, active bots[] entry.
func NewApp(configPath string) (*App, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger := InitLogger(cfg)

	store, err := newStore(cfg.Persistence)
	if err != nil {
		return nil, fmt.Errorf("persistence: %w", err)
	}

	chain, err := newChainAdapter(cfg.Chain, logger)
	if err != nil {
		return nil, fmt.Errorf("chain adapter: %w", err)
	}

	var liveSrv *liveserver.Server
	var broadcaster engine.Broadcaster
	if cfg.LiveServer.Enable {
		hub := liveserver.NewHub(logger)
		liveSrv = liveserver.NewServer(hub, logger, cfg.LiveServer.AllowedOrigins)
		broadcaster = serverBroadcaster{srv: liveSrv}
	}

	alerts := newAlertManager(cfg.Alert, logger)
	monitor := NewCircuitBreakerMonitor(chain, cfg.Chain.AccountID, alerts, telemetry.GetGlobalMetrics(), logger)

	var bots []*BotRunner
	for _, botCfg := range cfg.Bots {
		if !botCfg.Active {
			continue
		}
		baseMeta, err := fetchAssetMetadata(context.Background(), chain, botCfg.Grid.AssetA)
		if err != nil {
			return nil, fmt.Errorf("bot %s: base asset metadata: %w", botCfg.Key, err)
		}
		quoteMeta, err := fetchAssetMetadata(context.Background(), chain, botCfg.Grid.AssetB)
		if err != nil {
			return nil, fmt.Errorf("bot %s: quote asset metadata: %w", botCfg.Key, err)
		}
		bot := engine.New(botCfg, chain, store, logger, baseMeta, quoteMeta)
		if broadcaster != nil {
			bot.SetBroadcaster(broadcaster)
		}
		bot.SetAlerter(managerAlerter{mgr: alerts})
		interval := time.Duration(botCfg.Tuning.RunLoopMs) * time.Millisecond
		bots = append(bots, NewBotRunner(botCfg.Key, bot, interval, logger))
	}

	return &App{
		Cfg: cfg, Logger: logger, Store: store, Chain: chain, Bots: bots,
		LiveServer: liveSrv, Alerts: alerts, Monitor: monitor,
	}, nil
}

// newAlertManager wires whichever channels the config enables; returns an
// AlertManager with zero channels (Alert becomes a no-op fan-out) if none
// are configured, so callers never need a nil check.
func newAlertManager(cfg config.AlertConfig, logger core.ILogger) *alert.AlertManager {
	mgr := alert.NewAlertManager(logger)
	if cfg.SlackWebhookURL != "" {
		mgr.AddChannel(alert.NewSlackChannel(string(cfg.SlackWebhookURL)))
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != "" {
		mgr.AddChannel(alert.NewTelegramChannel(string(cfg.TelegramBotToken), cfg.TelegramChatID))
	}
	return mgr
}

// serverBroadcaster adapts pkg/liveserver's Server to engine.Broadcaster so
// the engine package never needs to import a transport-layer package.
type serverBroadcaster struct {
	srv *liveserver.Server
}

func (b serverBroadcaster) Broadcast(msgType string, data interface{}) {
	b.srv.BroadcastMessage(msgType, data)
}

// managerAlerter adapts internal/alert's AlertManager to engine.Alerter so
// the engine package never needs to import the alert transport itself.
type managerAlerter struct {
	mgr *alert.AlertManager
}

func (a managerAlerter) AlertCritical(ctx context.Context, title, message string, fields map[string]string) {
	a.mgr.Alert(ctx, title, message, alert.Critical, fields)
}

// fetchAssetMetadata retries a startup-time metadata lookup against the
// engerrors.ChainTransient taxonomy, so a node hiccup during boot doesn't
// fail the whole app the way a bare one-shot call would.
func fetchAssetMetadata(ctx context.Context, chain chainadapter.Adapter, symbol string) (precision.AssetMetadata, error) {
	var meta precision.AssetMetadata
	err := retry.Do(ctx, retry.DefaultPolicy, isTransientChainError, func() error {
		var err error
		meta, err = chain.GetAssetMetadata(ctx, symbol)
		return err
	})
	return meta, err
}

func isTransientChainError(err error) bool {
	return errors.Is(err, engerrors.ChainTransient)
}

func newStore(cfg config.PersistenceConfig) (persistence.Store, error) {
	if cfg.Driver == "sqlite" {
		return sqlitestore.Open(cfg.DSN)
	}
	return memstore.New(), nil
}

// newChainAdapter builds the configured Chain Adapter. The "fake" driver is
// wired with no pre-seeded balances/metadata: it exists for smoke-testing
// the bootstrap path itself, not as a standalone paper-trading backend —
// real dry runs construct fake.Exchange directly with the market they need.
func newChainAdapter(cfg config.ChainConfig, logger core.ILogger) (chainadapter.Adapter, error) {
	if cfg.Driver == "rpc" {
		return rpcclient.New(rpcclient.Config{
			Endpoint:          cfg.Endpoint,
			RequestsPerSecond: float64(cfg.RequestsPerSecond),
			Burst:             cfg.RequestsPerSecond,
		}, nil, logger), nil
	}
	return fake.New(map[string]chainadapter.Balance{}, map[string]precision.AssetMetadata{}, "", ""), nil
}

// BotRunner drives one engine.Runner's RunOnce on a fixed tick (ticker +
// ctx.Done select).
type BotRunner struct {
	key      string
	bot      engine.Runner
	interval time.Duration
	logger   core.ILogger
}

// NewBotRunner wraps a Runner for the App's Run lifecycle.
func NewBotRunner(key string, bot engine.Runner, interval time.Duration, logger core.ILogger) *BotRunner {
	return &BotRunner{key: key, bot: bot, interval: interval, logger: logger.WithField("bot", key)}
}

// Run starts the bot and ticks RunOnce until ctx is canceled. A zero
// marketPriceHint is supplied since this run loop has no live price feed
// of its own; a "pool"/"market" start_price only resolves correctly when
// a caller constructing the Bot directly supplies a real hint.
func (r *BotRunner) Run(ctx context.Context) error {
	if err := r.bot.Start(ctx, decimal.Zero); err != nil {
		return fmt.Errorf("bot %s: start: %w", r.key, err)
	}
	defer r.bot.Stop()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := r.bot.RunOnce(ctx); err != nil {
				r.logger.Error("run cycle failed", "error", err.Error())
				if engerrors.Is(err, engerrors.IndexCorruption) {
					r.logger.Error("bot stopping after unrecoverable index corruption; other bots are unaffected")
					return nil
				}
			}
		}
	}
}

// Runner is an interface for components that can be run and stopped gracefully.
type Runner interface {
	Run(ctx context.Context) error
}

// Run orchestrates the application lifecycle, including signal handling.
func (a *App) Run(runners ...Runner) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	a.Logger.Info("starting application")

	for _, runner := range runners {
		r := runner
		g.Go(func() error {
			return r.Run(ctx)
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() == nil {
			a.Logger.Error("application stopped with error", "error", err.Error())
			return err
		}
	}

	a.Logger.Info("application shut down gracefully")
	return nil
}

// Shutdown handles manual cleanup tasks.
func (a *App) Shutdown(timeout time.Duration) {
	a.Logger.Info("cleaning up resources", "timeout", timeout)
	if closer, ok := a.Store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
