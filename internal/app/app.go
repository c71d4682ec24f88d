package app

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"

	"net/http"

	"github.com/valyala/fasthttp"

	"chatsink/internal/backfill"
	"chatsink/pkg/config"
	"chatsink/pkg/fanout"
	"chatsink/pkg/ingest"
	"chatsink/pkg/logger"
	"chatsink/pkg/store"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	hub  *fanout.Hub
	nats *fanout.NATSBroadcaster
	proc *ingest.Processor

	srv     *http.Server
	fastSrv *fasthttp.Server
}

// New initializes resources that do not require a running context: the
// store, runtime keys, fanout transports and the processor. It does not
// start listeners; call Run to start those and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string) (*App, error) {
	_ = godotenv.Load(".env")

	// runtime keys
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, FrontendKeys: map[string]struct{}{}}
	for _, k := range eff.Config.Security.APIKeys.Backend {
		runtimeCfg.BackendKeys[k] = struct{}{}
	}
	for _, k := range eff.Config.Security.APIKeys.Frontend {
		runtimeCfg.FrontendKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	// open store
	if eff.DBPath == "" {
		eff.DBPath = "./.database"
	}
	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	a := &App{eff: eff, version: version, commit: commit, buildDate: buildDate}

	// fanout: the in-process hub always runs; NATS mirrors when enabled
	a.hub = fanout.NewHub()
	var b fanout.Broadcaster = a.hub
	if eff.Config.Fanout.NATS.Enabled {
		nb, err := fanout.NewNATSBroadcaster(eff.Config.Fanout.NATS)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to start NATS fanout: %w", err)
		}
		a.nats = nb
		b = fanout.Multi{a.hub, nb}
	}
	a.proc = &ingest.Processor{B: b}
	return a, nil
}

// Run starts the backfill scheduler and the HTTP listeners, and blocks
// until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	cancelBackfill, err := backfill.Start(ctx, a.proc, a.eff.Config.Backfill)
	if err != nil {
		return err
	}
	defer cancelBackfill()

	a.printBanner()

	errCh := a.startHTTP(ctx)
	fastErrCh := a.startFastIntake(ctx)

	defer a.shutdown()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	case err := <-fastErrCh:
		return err
	}
}

// shutdown closes listeners and resources in reverse start order.
func (a *App) shutdown() {
	if a.srv != nil {
		_ = a.srv.Close()
	}
	if a.fastSrv != nil {
		_ = a.fastSrv.Shutdown()
	}
	if a.nats != nil {
		a.nats.Close()
	}
	if err := store.Close(); err != nil {
		logger.Error("store_close_failed", "error", err)
	}
	logger.Info("shutdown_complete")
}
