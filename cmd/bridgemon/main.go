package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"bridgemon/internal/alert"
	"bridgemon/internal/alert/postgres"
	"bridgemon/internal/bridge"
	"bridgemon/internal/chain"
	"bridgemon/internal/config"
	"bridgemon/internal/monitor"
)

func main() {
	root := &cobra.Command{
		Use:          "bridgemon",
		Short:        "Cross-chain bridge relay monitor",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitor (serverless when polling-delay is 0)",
		RunE:  runMonitor,
	}

	addChainFlags(runCmd.Flags())
	runCmd.Flags().Int("polling-delay", 60, "seconds between iterations, 0 runs a single iteration")
	runCmd.Flags().Int("error-retries", 3, "extra attempts for a failed iteration")
	runCmd.Flags().Int("error-retries-timeout", 1, "seconds between attempts")
	runCmd.Flags().Uint64("starting-block", 0, "serverless window start (default head)")
	runCmd.Flags().Uint64("ending-block", 0, "serverless window end (default head)")
	runCmd.Flags().Int("utilization-threshold", 90, "pool utilization alert threshold percent")
	runCmd.Flags().StringSlice("whitelisted-addresses", nil, "relayer allow-list (comma-separated)")
	runCmd.Flags().Bool("utilization-enabled", true, "enable the utilization check")
	runCmd.Flags().Bool("unknown-relayers-enabled", true, "enable the unknown relayer check")
	runCmd.Flags().String("alerts-out", "", "optional alerts JSONL path")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the alert archive")
	runCmd.Flags().String("metrics-addr", "", "optional metrics listen address (e.g. :9090)")

	root.AddCommand(runCmd)

	eventsCmd := &cobra.Command{
		Use:   "events",
		Short: "Dump reconstructed relay actions for a block range",
		RunE:  runEvents,
	}

	addChainFlags(eventsCmd.Flags())
	eventsCmd.Flags().Uint64("starting-block", 0, "first block (inclusive)")
	eventsCmd.Flags().Uint64("ending-block", 0, "last block (inclusive, default head)")
	eventsCmd.Flags().String("out", "-", "output JSONL path, - for stdout")

	root.AddCommand(eventsCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addChainFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "L1 RPC URL")
	flags.Uint64("chain-id", 1, "chain id of the bridge admin chain")
	flags.String("bridge-admin", "", "bridge admin contract address")
	flags.Uint64("deploy-block", 0, "first block scanned for bridge logs")
	flags.Uint64("log-batch-size", 2000, "blocks per eth_getLogs call")
	flags.Duration("rpc-timeout", chain.DefaultCallTimeout, "timeout per RPC call")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, l1, err := connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer chainClient.Close()

	sink, closeSinks, err := buildSinks(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := serveMetrics(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	if !cfg.Serverless() && (cfg.StartingBlock != nil || cfg.EndingBlock != nil) {
		logger.Warn("starting-block and ending-block only apply when polling-delay is 0, ignoring")
	}

	mon, err := monitor.New(monitor.Config{
		ChainID:              cfg.ChainID,
		PollInterval:         cfg.PollingDelay,
		StartingBlock:        cfg.StartingBlock,
		EndingBlock:          cfg.EndingBlock,
		UtilizationThreshold: cfg.UtilizationThreshold,
		WhitelistedAddresses: cfg.WhitelistedAddresses,
	}, l1, sink, logger)
	if err != nil {
		return err
	}

	runner := monitor.NewRunner(monitor.RunConfig{
		PollInterval:           cfg.PollingDelay,
		Retries:                cfg.ErrorRetries,
		RetryDelay:             cfg.ErrorRetryDelay,
		FlushDelay:             monitor.DefaultFlushDelay,
		UtilizationEnabled:     cfg.UtilizationEnabled,
		UnknownRelayersEnabled: cfg.UnknownRelayersEnabled,
	}, mon, logger)

	logger.Info("monitor start",
		zap.Uint64("chain_id", cfg.ChainID),
		zap.String("bridge_admin", cfg.BridgeAdmin.Hex()),
		zap.Bool("serverless", cfg.Serverless()),
		zap.Duration("polling_delay", cfg.PollingDelay),
		zap.Int("error_retries", cfg.ErrorRetries),
		zap.Uint64("utilization_threshold", cfg.UtilizationThreshold),
		zap.Int("whitelisted", len(cfg.WhitelistedAddresses)),
		zap.Bool("utilization_enabled", cfg.UtilizationEnabled),
		zap.Bool("unknown_relayers_enabled", cfg.UnknownRelayersEnabled),
	)

	if err := runner.Run(ctx); err != nil {
		logger.Error("monitor terminated", zap.Error(err))
		return err
	}
	return nil
}

// connect dials the RPC, checks it serves the configured chain, and builds
// the bridge client over it.
func connect(ctx context.Context, cfg config.Config, logger *zap.Logger) (*chain.Client, *bridge.Client, error) {
	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}

	if err := chainClient.ExpectChainID(ctx, cfg.ChainID); err != nil {
		chainClient.Close()
		return nil, nil, err
	}

	l1, err := bridge.NewClient(bridge.ClientConfig{
		BridgeAdmin: cfg.BridgeAdmin,
		DeployBlock: cfg.DeployBlock,
		BatchSize:   cfg.LogBatchSize,
	}, chainClient, logger)
	if err != nil {
		chainClient.Close()
		return nil, nil, err
	}
	return chainClient, l1, nil
}

func buildSinks(ctx context.Context, cfg config.Config, logger *zap.Logger) (alert.Sink, func(), error) {
	sinks := []alert.Sink{alert.NewLogSink(logger)}
	closers := []func(){}
	closeAll := func() {
		for _, closer := range closers {
			closer()
		}
	}

	if cfg.AlertsOut != "" {
		sinks = append(sinks, alert.NewJSONLSink(cfg.AlertsOut))
	}

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, nil, err
		}
		sinks = append(sinks, store)
	}

	return alert.NewMultiSink(sinks...), closeAll, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
