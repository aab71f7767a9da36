// Package durable wraps engine.Bot's sync/rebalance/settle cycle as a
// DBOS-transact-golang workflow: each of the three steps runs as a
// separately durable RunAsStep call. A crash between steps resumes the
// workflow at the next undone step rather than re-running committed work,
// letting a bot's cycle survive a process restart mid-cycle.
package durable

import (
	"context"
	"time"

	"gridbot/internal/core"
	"gridbot/internal/engine"
	"gridbot/internal/gridcore"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/shopspring/decimal"
)

// CycleWorkflows exposes one Bot's RunOnce cycle as a DBOS workflow.
type CycleWorkflows struct {
	bot *engine.Bot
}

// NewCycleWorkflows builds the workflow wrapper around an already
// constructed Bot; the Bot itself still owns the State Machine,
// Accountant, Sync Engine, and Store.
func NewCycleWorkflows(bot *engine.Bot) *CycleWorkflows {
	return &CycleWorkflows{bot: bot}
}

// RunCycle is the durable workflow DBOSBot.RunOnce invokes once per tick:
// sync from chain, rebalance any filled side, then settle (regenerate or
// persist). Each stage commits as its own DBOS step.
func (w *CycleWorkflows) RunCycle(ctx dbos.DBOSContext, input any) (any, error) {
	filledRaw, err := ctx.RunAsStep(ctx, func(ctx context.Context) (any, error) {
		return w.bot.SyncStep(ctx)
	})
	if err != nil {
		return nil, err
	}
	filledSides, _ := filledRaw.([]gridcore.Side)

	if len(filledSides) > 0 {
		if _, err := ctx.RunAsStep(ctx, func(ctx context.Context) (any, error) {
			w.bot.RebalanceStep(filledSides)
			return nil, nil
		}); err != nil {
			return nil, err
		}
	}

	_, err = ctx.RunAsStep(ctx, func(ctx context.Context) (any, error) {
		return nil, w.bot.SettleStep(ctx)
	})
	return nil, err
}

// DBOSBot drives one Bot's cycle through a durable DBOS workflow instead of
// RunOnce's single in-process mutex hold, the durable counterpart to the
// plain in-process Bot.
type DBOSBot struct {
	dbosCtx   dbos.DBOSContext
	bot       *engine.Bot
	workflows *CycleWorkflows
	logger    core.ILogger
}

// NewDBOSBot wraps bot with a DBOS workflow runtime. dbosCtx is expected to
// already be configured against a durable Postgres-backed store; this
// package has no opinion on how that connection is established.
func NewDBOSBot(dbosCtx dbos.DBOSContext, bot *engine.Bot, logger core.ILogger) *DBOSBot {
	return &DBOSBot{
		dbosCtx:   dbosCtx,
		bot:       bot,
		workflows: NewCycleWorkflows(bot),
		logger:    logger.WithField("component", "dbos_bot"),
	}
}

// Start restores or regenerates the grid (same as the plain Bot), then
// launches the DBOS runtime so RunCycle workflows can be dispatched.
func (d *DBOSBot) Start(ctx context.Context, marketPriceHint decimal.Decimal) error {
	if err := d.bot.Start(ctx, marketPriceHint); err != nil {
		return err
	}
	d.logger.Info("starting durable bot workflow runtime")
	return d.dbosCtx.Launch()
}

// SetBroadcaster delegates to the wrapped Bot so a durable bot can publish
// the same operator-facing status feed as the plain one.
func (d *DBOSBot) SetBroadcaster(broadcaster engine.Broadcaster) {
	d.bot.SetBroadcaster(broadcaster)
}

// SetAlerter delegates to the wrapped Bot so a durable bot pages on fatal
// index corruption the same way the plain one does.
func (d *DBOSBot) SetAlerter(alerter engine.Alerter) {
	d.bot.SetAlerter(alerter)
}

// Stop shuts down the DBOS runtime and the bot's worker pool.
func (d *DBOSBot) Stop() {
	d.logger.Info("stopping durable bot workflow runtime")
	d.dbosCtx.Shutdown(30 * time.Second)
	d.bot.Stop()
}

// RunOnce dispatches one durable RunCycle workflow and blocks for its
// result, matching engine.Bot's RunOnce signature so cmd/gridbot can drive
// either behind engine.Runner.
func (d *DBOSBot) RunOnce(ctx context.Context) error {
	handle, err := d.dbosCtx.RunWorkflow(d.dbosCtx, d.workflows.RunCycle, nil)
	if err != nil {
		return err
	}
	_, err = handle.GetResult()
	return err
}
