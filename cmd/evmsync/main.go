package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/riftline/evmsync/internal/config"
	"github.com/riftline/evmsync/internal/dispatcher"
	"github.com/riftline/evmsync/internal/errkind"
	"github.com/riftline/evmsync/internal/logger"
	"github.com/riftline/evmsync/internal/metrics"
	"github.com/riftline/evmsync/internal/orchestrator"
	"github.com/riftline/evmsync/pkg/api"
	"github.com/spf13/cobra"
)

const (
	version = "0.1.0"
	banner  = `
┌─────────────────────────────────────┐
│  evmsync v%s                      │
│  EVM log sync & dispatch engine      │
└─────────────────────────────────────┘
`
)

var configPath string

// exitCode maps a fatal run error to the process exit code: 2 for RPC
// permanently unavailable (distinct so an operator/orchestration layer can
// tell a network outage apart from a config or handler bug), 1 for
// everything else.
func exitCode(err error) int {
	var kindErr *errkind.Error
	if errors.As(err, &kindErr) && kindErr.Kind == errkind.RpcUnavailable {
		return 2
	}
	return 1
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

var rootCmd = &cobra.Command{
	Use:     "evmsync",
	Short:   "evmsync - historical/live EVM log sync and ordered dispatch",
	Version: version,
	RunE:    run,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the sources and networks in the configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFromFile(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		names := make([]string, 0, len(cfg.Sources))
		for name := range cfg.Sources {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Println("Configured sources:")
		for _, name := range names {
			src := cfg.Sources[name]
			kind := "static"
			if src.IsFactory() {
				kind = "factory"
			}
			fmt.Printf("  - %s (%s, network=%s, start_block=%d)\n", name, kind, src.Network, src.StartBlock)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to configuration file")
	rootCmd.AddCommand(listCmd)
}

func run(cmd *cobra.Command, args []string) error {
	fmt.Printf(banner, version)

	cfg, err := config.LoadFromFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nshutting down...")
		cancel()
	}()

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("constructing logger: %w", err)
	}
	defer log.Close()

	var metricsServer *metrics.Server
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics)
		if err := metricsServer.Start(ctx); err != nil {
			return fmt.Errorf("starting metrics server: %w", err)
		}
		defer func() {
			if err := metricsServer.Stop(ctx); err != nil {
				log.Warnf("stopping metrics server: %v", err)
			}
		}()
		log.Infof("metrics server listening on %s%s", cfg.Metrics.ListenAddress, cfg.Metrics.Path)
	}

	// No caller-supplied handlers in the standalone binary: every source
	// runs with the orchestrator's observe-only default handler. Embedding
	// programs call orchestrator.New directly with their own handlers.
	orch, err := orchestrator.New(cfg, map[string]dispatcher.HandlerSpec{}, log)
	if err != nil {
		return fmt.Errorf("constructing orchestrator: %w", err)
	}
	defer orch.Close()

	if cfg.API != nil && cfg.API.Enabled {
		apiServer := api.NewServer(cfg.API, orch, log)
		go func() {
			if err := apiServer.Start(ctx); err != nil {
				log.Errorf("API server stopped: %v", err)
			}
		}()
	}

	log.Info("starting evmsync")
	if err := orch.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("orchestrator stopped: %w", err)
	}
	log.Info("evmsync stopped")
	return nil
}
