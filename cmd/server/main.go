package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kosaiyno/iryspredict/config"
	"github.com/kosaiyno/iryspredict/internal/adapters/coingecko"
	"github.com/kosaiyno/iryspredict/internal/adapters/onchain"
	"github.com/kosaiyno/iryspredict/internal/adapters/receipts"
	"github.com/kosaiyno/iryspredict/internal/adapters/storage"
	"github.com/kosaiyno/iryspredict/internal/adapters/upstash"
	"github.com/kosaiyno/iryspredict/internal/application/game"
	"github.com/kosaiyno/iryspredict/internal/domain"
	"github.com/kosaiyno/iryspredict/internal/ports"
	"github.com/kosaiyno/iryspredict/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	once := flag.Bool("once", false, "resolve the last completed round and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("iryspredict starting",
		"config", *configPath,
		"store", cfg.Store.Backend,
		"round", cfg.RoundDuration(),
		"lock", cfg.LockWindow(),
		"once", *once,
	)

	store, err := openStore(cfg)
	if err != nil {
		slog.Error("failed to open store", "err", err, "backend", cfg.Store.Backend)
		os.Exit(1)
	}
	defer store.Close()

	feed := coingecko.New(cfg.Prices.BaseURL)
	ledger := game.NewLedger(store, newReceipts(cfg), cfg.RoundDuration(), cfg.LockWindow())
	board := game.NewLeaderboard(store)
	resolver := game.NewResolver(store, feed, ledger, cfg.Prices.Assets, cfg.RoundDuration())
	snapshots := game.NewSnapshots(store, board)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *once {
		runOnce(ctx, resolver, cfg.RoundDuration())
		return
	}

	routerCfg := &server.Config{
		GameHandler:  server.NewGameHandler(ledger, resolver, board, cfg.RoundDuration(), cfg.LockWindow()),
		AdminHandler: server.NewAdminHandler(snapshots, resolver),
		AdminToken:   cfg.Admin.Token,
	}
	if cfg.Reward.PrivateKey != "" {
		signer, err := onchain.NewSigner(cfg.Reward.PrivateKey, cfg.Reward.ContractAddress, cfg.Reward.ChainID)
		if err != nil {
			slog.Error("failed to init reward signer", "err", err)
			os.Exit(1)
		}
		routerCfg.RewardHandler = server.NewRewardHandler(game.NewRewards(board, signer))
		slog.Info("reward signatures enabled", "contract", cfg.Reward.ContractAddress, "chain", cfg.Reward.ChainID)
	} else {
		slog.Warn("no reward key configured, claim endpoint disabled")
	}

	if cfg.Resolver.Enabled {
		go func() {
			if err := resolver.Run(ctx); err != nil {
				slog.Error("resolver exited with error", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.NewRouter(routerCfg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		os.Exit(1)
	}
	slog.Info("iryspredict stopped cleanly")
}

// runOnce settles the most recently completed round and reports the outcome.
func runOnce(ctx context.Context, resolver *game.Resolver, duration time.Duration) {
	roundID := domain.CurrentRound(time.Now(), duration).ID - 1
	report, err := resolver.ResolveRound(ctx, roundID)
	if err != nil {
		slog.Error("resolve failed", "round", roundID, "err", err)
		os.Exit(1)
	}
	slog.Info("resolve complete",
		"round", roundID,
		"resolved", report.Resolved,
		"pending", report.Pending,
		"skipped", report.AlreadyResolved,
		"failed", report.Failed,
	)
	if !report.Complete() {
		os.Exit(1)
	}
}

func openStore(cfg *config.Config) (ports.Store, error) {
	if cfg.Store.Backend == "upstash" {
		return upstash.New(cfg.Store.RestURL, cfg.Store.RestToken)
	}
	return storage.NewSQLite(cfg.Store.DSN)
}

func newReceipts(cfg *config.Config) ports.Receipts {
	if cfg.Receipts.NodeURL == "" {
		return receipts.NewLocal()
	}
	up, err := receipts.NewUploader(cfg.Receipts.NodeURL, cfg.Receipts.GatewayURL)
	if err != nil {
		slog.Warn("bad receipts node url, falling back to local receipt ids", "err", err)
		return receipts.NewLocal()
	}
	return up
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
