// Command gridbot runs one or more configured grid trading bots against a
// Chain Adapter: parse flags, bootstrap the app, start telemetry and the
// health server, then run every bot until a shutdown signal arrives.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"gridbot/internal/bootstrap"
	"gridbot/internal/infrastructure/health"
	"gridbot/internal/infrastructure/server"
	"gridbot/pkg/telemetry"
)

// liveServerRunner adapts the operator WebSocket feed to bootstrap.Runner so
// app.Run drives it alongside the bot runners under the same signal-based
// shutdown.
type liveServerRunner struct {
	app *bootstrap.App
}

func (r liveServerRunner) Run(ctx context.Context) error {
	hubCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go r.app.LiveServer.GetHub().Run(hubCtx)
	return r.app.LiveServer.Start(ctx, r.app.Cfg.LiveServer.Addr)
}

var (
	configPath  = flag.String("config", "configs/gridbot.yaml", "Path to configuration file")
	showVersion = flag.Bool("version", false, "Show version and exit")
	version     = "dev"
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println("gridbot version", version)
		os.Exit(0)
	}

	app, err := bootstrap.NewApp(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bootstrap: %v\n", err)
		os.Exit(1)
	}

	var healthSrv *server.HealthServer
	if app.Cfg.Telemetry.EnableMetrics {
		if err := telemetry.InitMetrics(); err != nil {
			app.Logger.Warn("failed to initialize metrics exporter", "error", err.Error())
		} else {
			app.Logger.Info("metrics exporter initialized")
		}

		hm := health.NewHealthManager(app.Logger)
		healthSrv = server.NewHealthServer(fmt.Sprintf("%d", app.Cfg.Telemetry.MetricsPort), app.Logger, hm)
		healthSrv.Start()
	}

	app.Logger.Info("gridbot starting", "bots", len(app.Bots))

	runners := make([]bootstrap.Runner, 0, len(app.Bots)+2)
	for _, b := range app.Bots {
		runners = append(runners, b)
	}
	if app.LiveServer != nil {
		app.Logger.Info("live server enabled", "addr", app.Cfg.LiveServer.Addr)
		runners = append(runners, liveServerRunner{app: app})
	}
	if app.Monitor != nil {
		runners = append(runners, app.Monitor)
	}

	runErr := app.Run(runners...)

	if healthSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = healthSrv.Stop(shutdownCtx)
		cancel()
	}
	app.Shutdown(10 * time.Second)

	if runErr != nil {
		os.Exit(1)
	}
}
