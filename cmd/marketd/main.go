package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"cardmarket/config"
	"cardmarket/core"
	"cardmarket/core/genesis"
	"cardmarket/observability/logging"
	telemetry "cardmarket/observability/otel"
	"cardmarket/rpc"
	"cardmarket/services/indexer"
	"cardmarket/storage"
)

const genesisPathEnv = "CARDMARKET_GENESIS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis YAML file (overrides CARDMARKET_GENESIS and config GenesisFile)")
	exportTrades := flag.String("export-trades", "", "Write the indexed trade log to this Parquet file and exit")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.SetupWithOptions("marketd", cfg.Logging.Env, logging.Options{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	defer logCloser.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *exportTrades != "" {
		if err := exportTradeLog(ctx, cfg, logger, *exportTrades); err != nil {
			logger.Error("trade export failed", slog.Any("error", err))
			os.Exit(1)
		}
		return
	}

	if err := run(ctx, cfg, logger, resolveGenesisPath(*genesisFlag, cfg.GenesisFile)); err != nil {
		logger.Error("marketd stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("marketd stopped")
}

func resolveGenesisPath(flagValue, configValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v, ok := os.LookupEnv(genesisPathEnv); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(configValue)
}

func indexerDSN(cfg *config.Config) string {
	if dsn := strings.TrimSpace(cfg.Indexer.DSN); dsn != "" {
		return dsn
	}
	return filepath.Join(cfg.DataDir, "trades.db")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, genesisPath string) error {
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.Init(ctx, telemetry.Config{
			ServiceName: "marketd",
			Environment: cfg.Logging.Env,
			Endpoint:    cfg.Telemetry.Endpoint,
			Insecure:    cfg.Telemetry.Insecure,
			Metrics:     true,
			Traces:      true,
			SampleRatio: cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown", slog.Any("error", err))
			}
		}()
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("prepare data directory: %w", err)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	authority, err := cfg.Authority()
	if err != nil {
		_ = db.Close()
		return err
	}
	ledger, err := core.NewLedger(db, core.Config{
		ChainID:       cfg.ChainID,
		Authority:     authority,
		PausedModules: cfg.PausedModules,
		Logger:        logger,
	})
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("open ledger: %w", err)
	}
	defer ledger.Close()

	if genesisPath != "" {
		spec, err := genesis.LoadSpec(genesisPath)
		if err != nil {
			return err
		}
		applied, err := ledger.InitGenesis(spec)
		if err != nil {
			return fmt.Errorf("apply genesis: %w", err)
		}
		if !applied {
			logger.Info("existing state found; genesis skipped", slog.String("path", genesisPath))
		}
	}

	var history rpc.TradeHistory
	if cfg.Indexer.Enabled {
		ix, err := indexer.Open(indexerDSN(cfg), logger)
		if err != nil {
			return err
		}
		defer ix.Close()
		ix.Start(ctx)
		ledger.AddSink(ix)
		history = ix
	}

	hub := rpc.NewEventHub()
	defer hub.Close()
	ledger.AddSink(hub)

	idem, err := rpc.OpenIdempotencyStore(cfg.RPC.IdempotencyDB)
	if err != nil {
		return fmt.Errorf("open idempotency store: %w", err)
	}
	defer idem.Close()

	jwtSecret := cfg.RPC.JWTSecret
	if env := strings.TrimSpace(cfg.RPC.JWTSecretEnv); env != "" {
		if v, ok := os.LookupEnv(env); ok {
			jwtSecret = v
		}
	}
	if strings.TrimSpace(jwtSecret) == "" {
		logger.Warn("rpc authentication disabled; market_sendTransaction is open")
	} else {
		logger.Info("rpc authentication enabled",
			logging.MaskField("jwtSecret", jwtSecret),
			slog.String("issuer", cfg.RPC.JWTIssuer))
	}

	server, err := rpc.NewServer(ledger, history, hub, idem, rpc.ServerConfig{
		JWTSecret:          jwtSecret,
		JWTIssuer:          cfg.RPC.JWTIssuer,
		RateLimitPerMinute: cfg.RPC.RateLimitPerMinute,
		Burst:              cfg.RPC.Burst,
		MaxConnections:     cfg.RPC.MaxConnections,
		ReadTimeout:        time.Duration(cfg.RPC.ReadTimeoutSecs) * time.Second,
		WriteTimeout:       time.Duration(cfg.RPC.WriteTimeoutSecs) * time.Second,
	}, logger)
	if err != nil {
		return err
	}

	root, seq := ledger.Head()
	logger.Info("ledger ready",
		slog.Uint64("chainId", cfg.ChainID),
		slog.Uint64("sequence", seq),
		slog.String("stateRoot", root.Hex()),
		slog.String("authority", cfg.AuthorityAddress))

	if err := server.Serve(ctx, cfg.ListenAddress); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func exportTradeLog(ctx context.Context, cfg *config.Config, logger *slog.Logger, path string) error {
	ix, err := indexer.Open(indexerDSN(cfg), logger)
	if err != nil {
		return err
	}
	defer ix.Close()
	n, err := ix.ExportParquet(ctx, path, nil)
	if err != nil {
		return err
	}
	logger.Info("trade log exported", slog.String("path", path), slog.Int("rows", n))
	return nil
}
