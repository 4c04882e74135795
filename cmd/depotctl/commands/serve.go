package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/depotgo/depot/internal/logger"
	"github.com/depotgo/depot/pkg/api"
	"github.com/depotgo/depot/pkg/config"
	"github.com/depotgo/depot/pkg/metrics"
	"github.com/depotgo/depot/pkg/telemetry"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a standalone depot HTTP server",
	Long: `serve starts a standalone server exposing the configured stores over
HTTP: blobs under the configured mountpoint, health probes at /health, and
(if metrics are enabled) a Prometheus scrape endpoint at /metrics.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "override the configured API port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if err := logger.Init(cfg.Logging); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "depot",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", "error", err)
		}
	}()

	if cfg.Metrics.Enabled {
		metrics.Init()
	}

	reg, err := config.BuildRegistry(ctx, cfg.Registry)
	if err != nil {
		return fmt.Errorf("build registry: %w", err)
	}

	apiCfg := api.Config{}
	if servePort != 0 {
		apiCfg.Port = servePort
	}

	srv, err := api.NewServer(apiCfg, reg, cfg.HTTP.Mountpoint, cfg.HTTP.CacheMaxAge)
	if err != nil {
		return fmt.Errorf("build server: %w", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	logger.Info("depot server starting", "port", srv.Port(), "mountpoint", cfg.HTTP.Mountpoint)
	return srv.Start(ctx)
}
