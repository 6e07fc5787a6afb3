package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/xetdata/nfsserve/backend/memfs"
	"github.com/xetdata/nfsserve/backend/osfs"
	"github.com/xetdata/nfsserve/internal/config"
	"github.com/xetdata/nfsserve/internal/logger"
	promMetrics "github.com/xetdata/nfsserve/internal/metrics/prometheus"
	nfsserver "github.com/xetdata/nfsserve/internal/server"
	"github.com/xetdata/nfsserve/internal/vfs"
)

var metricsAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the NFS v3 server",
	Long: `Start the NFS v3 server against the configured back-end.

Use --config to point at a YAML config file, or rely on defaults plus
NFSD_* environment variable overrides. The backend.read_only flag is
watched live: editing the config file flips writes on or off without a
restart.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to serve Prometheus /metrics on (empty disables it)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	backend, err := buildBackend(cfg.Backend)
	if err != nil {
		return fmt.Errorf("build backend %q: %w", cfg.Backend.Kind, err)
	}

	gate := vfs.NewReadOnlyGate(backend, cfg.Backend.ReadOnly)
	if err := config.WatchReadOnly(configFile, func(readOnly bool) {
		logger.Info("backend.read_only changed", "read_only", readOnly)
		gate.Set(readOnly)
	}); err != nil {
		logger.Warn("read_only live reload disabled", logger.Err(err))
	}

	registry := prometheus.NewRegistry()
	recorder := promMetrics.New(registry)

	if metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server stopped", logger.Err(err))
			}
		}()
		logger.Info("metrics server listening", "addr", metricsAddr)
	}

	serverCfg := nfsserver.Config{
		Host:               cfg.Server.Host,
		Port:               cfg.Server.Port,
		MaxConnections:     cfg.Server.MaxConnections,
		MetricsLogInterval: cfg.Server.MetricsLogInterval,
		Timeouts: nfsserver.TimeoutsConfig{
			Read:     cfg.Server.ReadTimeout,
			Write:    cfg.Server.WriteTimeout,
			Idle:     cfg.Server.IdleTimeout,
			Shutdown: cfg.Server.ShutdownTimeout,
		},
	}
	srv := nfsserver.New(serverCfg, gate, nil, recorder)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverDone := make(chan error, 1)
	go func() { serverDone <- srv.Serve(ctx) }()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("nfsd is running", "backend", cfg.Backend.Kind, "port", cfg.Server.Port)

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received")
		cancel()
		if err := <-serverDone; err != nil {
			logger.Error("server shutdown error", logger.Err(err))
			return err
		}
		logger.Info("server stopped gracefully")
	case err := <-serverDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("server error", logger.Err(err))
			return err
		}
		logger.Info("server stopped")
	}
	return nil
}

func buildBackend(cfg config.BackendConfig) (vfs.FileSystem, error) {
	switch cfg.Kind {
	case "osfs":
		return osfs.New(cfg.Root)
	default:
		return memfs.New(), nil
	}
}
