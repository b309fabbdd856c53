package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/mesalogs/internal/mesa"
	"github.com/JonMunkholm/mesalogs/internal/metrics"
	"github.com/JonMunkholm/mesalogs/internal/web"
	"github.com/spf13/cobra"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve configured runs over a read-only JSON API",
		Long: `Opens every run named by MESA_LOG_DIRS and MESA_RUNS_FILE and serves them
under /api/runs. Profiles are read on first request and cached unless
MESA_MEMOIZE_PROFILES=false.`,
		Example: `  MESA_LOG_DIRS=/data/1M/LOGS,/data/15M/LOGS mesalogs serve
  MESA_RUNS_FILE=runs.yaml SERVER_PORT=9000 mesalogs serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	cfg := a.cfg
	slog.Info("configuration loaded", "config", cfg.String())

	var (
		recorder *metrics.Recorder
		obs      mesa.Observer
	)
	if cfg.Metrics.Enabled {
		recorder = metrics.New()
		obs = recorder
	}

	opened, err := openRuns(cfg, obs)
	if err != nil {
		return err
	}

	registry := web.NewRegistry()
	for _, r := range opened {
		run, err := registry.Add(r.name, r.logs)
		if err != nil {
			return err
		}
		slog.Debug("run registered", "run", run.Name, "run_id", run.ID)
	}

	opts := []web.Option{
		web.WithRequestTimeout(cfg.Server.RequestTimeout),
		web.WithParseLimiter(web.NewParseLimiter(cfg.Server.MaxParses, cfg.Server.ParseWait)),
	}
	if recorder != nil {
		recorder.SetRuns(registry.Len())
		opts = append(opts, web.WithMetrics(recorder))
	}
	server := web.NewServer(registry, opts...)

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start(cfg.Server)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	slog.Info("server stopped")
	return nil
}
