package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soldag/soldag/internal/api"
	"github.com/soldag/soldag/internal/config"
	"github.com/soldag/soldag/internal/indexer"
	"github.com/soldag/soldag/internal/kvstore"
	"github.com/soldag/soldag/internal/rpc/solana"
	"github.com/soldag/soldag/internal/store"
	"github.com/soldag/soldag/internal/supervisor"
	"github.com/soldag/soldag/pkg/events"
	"github.com/soldag/soldag/pkg/logger"
	"github.com/soldag/soldag/pkg/retry"
)

var version = "dev"

var (
	cfgPath        string
	rpcURL         string
	rpcAPIKey      string
	updateInterval time.Duration
	listenAddress  string
	isDebug        bool
)

var rootCmd = &cobra.Command{
	Use:   "soldag",
	Short: "Solana ledger indexing service",
	Long:  `soldag polls a Solana RPC endpoint, stores finalized blocks and transactions, backfills missed slots, and serves them over HTTP.`,
	Run:   run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "configs/config.yaml", "config file")
	rootCmd.PersistentFlags().StringVar(&rpcURL, "rpc-url", "", "RPC endpoint, overrides config")
	rootCmd.PersistentFlags().StringVar(&rpcAPIKey, "api-key", "", "RPC api key, overrides config and RPC_API_KEY")
	rootCmd.PersistentFlags().DurationVar(&updateInterval, "update-interval", 0, "head polling interval, overrides config")
	rootCmd.PersistentFlags().StringVar(&listenAddress, "listen", "", "API listen address, overrides config")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	level := slog.LevelInfo
	if isDebug || cfg.Environment == "development" {
		level = slog.LevelDebug
	}
	logger.Init(&logger.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
	logger.Info("Config loaded", "environment", cfg.Environment, "rpc_url", cfg.RPC.URL)

	client, err := solana.NewClient(cfg.RPC.URL, cfg.RPC.APIKey, cfg.RPC.Timeout)
	if err != nil {
		logger.Fatal("Failed to create RPC client", "err", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// the endpoint must be reachable before any unit starts
	if err := checkRPCHealth(ctx, client); err != nil {
		logger.Fatal("RPC endpoint unhealthy", "url", cfg.RPC.URL, "err", err)
	}

	kv, err := kvstore.NewBadgerStore(cfg.Store.Badger.Directory, cfg.Store.Badger.Prefix, kvstore.JSON)
	if err != nil {
		logger.Fatal("Failed to open badger store", "dir", cfg.Store.Badger.Directory, "err", err)
	}
	st := store.New(kv)
	defer func() {
		if err := st.Close(); err != nil {
			logger.Error("Failed to close store", "err", err)
		}
	}()

	emitter := events.Emitter(events.Noop{})
	if cfg.NATS.Enabled {
		emitter, err = events.Connect(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
		if err != nil {
			logger.Fatal("Failed to connect to NATS", "url", cfg.NATS.URL, "err", err)
		}
	}
	defer emitter.Close()

	ix := indexer.New(cfg, client, st, emitter)

	var sup *supervisor.Supervisor
	handler := api.NewHandler(version, st, client, func() map[string]supervisor.State {
		return sup.Snapshot()
	})
	srv := api.NewServer(cfg.API.ListenAddress, handler)

	sup = supervisor.New([]supervisor.Unit{
		{Name: "indexer", Run: ix.Run},
		{Name: "api", Run: srv.Run},
	})

	logger.Info("Starting soldag", "version", version, "listen", cfg.API.ListenAddress)
	if err := sup.Run(ctx); err != nil {
		logger.Fatal("Supervisor stopped", "err", err)
	}
	logger.Info("Shutdown complete")
}

func loadConfig() config.Config {
	cfg, err := config.Load(cfgPath)
	if os.IsNotExist(err) {
		cfg = config.Default()
	} else if err != nil {
		slog.Error("Failed to load config", "path", cfgPath, "err", err)
		os.Exit(1)
	}

	if rpcURL != "" {
		cfg.RPC.URL = rpcURL
	}
	if rpcAPIKey != "" {
		cfg.RPC.APIKey = rpcAPIKey
	}
	if updateInterval > 0 {
		cfg.Indexer.UpdateInterval = updateInterval
	}
	if listenAddress != "" {
		cfg.API.ListenAddress = listenAddress
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}
	return cfg
}

func checkRPCHealth(ctx context.Context, client *solana.Client) error {
	return retry.Exponential(func() error {
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return client.GetHealth(callCtx)
	}, retry.ExponentialConfig{
		InitialInterval: time.Second,
		MaxElapsedTime:  30 * time.Second,
		OnRetry: func(err error, d time.Duration) {
			logger.Warn("RPC health check failed, retrying", "err", err, "in", d)
		},
	})
}
