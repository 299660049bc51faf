package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"stakefarm/config"
	"stakefarm/farm"
	"stakefarm/history"
	"stakefarm/ledger"
	"stakefarm/observability/logging"
	"stakefarm/rpc"
	"stakefarm/storage"
)

func main() {
	configFile := flag.String("config", "./farmd.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("farmd", cfg.Environment, cfg.LogFile)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("create data dir", "err", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "farm"))
	if err != nil {
		logger.Error("open state database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	store := storage.NewFarmStore(db)

	historyDB, err := gorm.Open(sqlite.Open(cfg.HistoryDSN), &gorm.Config{})
	if err != nil {
		logger.Error("open history database", "err", err)
		os.Exit(1)
	}
	if err := history.AutoMigrate(historyDB); err != nil {
		logger.Error("migrate history schema", "err", err)
		os.Exit(1)
	}
	recorder := history.NewRecorder(historyDB, logger)

	farmAddress := common.HexToAddress(cfg.Farm.FarmAddress)
	tokens := ledger.New(farmAddress)

	engine := farm.NewEngine(farmAddress, tokens)
	engine.SetSink(recorder)
	engine.SetAccrueWhilePaused(cfg.AccrueWhilePaused)
	if cfg.Farm.PrimaryRewardToken != "" {
		engine.SetPrimaryRewardToken(
			common.HexToAddress(cfg.Farm.PrimaryRewardToken),
			common.HexToAddress(cfg.Farm.PrimaryTokenManager),
		)
	}

	if err := bootstrapFarm(engine, store, cfg); err != nil {
		logger.Error("bootstrap farm", "err", err)
		os.Exit(1)
	}

	server := rpc.NewServer(rpc.Config{
		Engine:         engine,
		History:        recorder,
		Logger:         logger,
		AdminJWTSecret: cfg.AdminJWTSecret,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("farmd listening", "addr", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", "err", err)
			stop()
		}
	}()

	// Periodically snapshot farm state so a restart resumes bookkeeping
	// instead of starting a fresh farm.
	go snapshotLoop(ctx, engine, store, logger)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown http server", "err", err)
	}
	if state, err := engine.Snapshot(); err == nil {
		if err := store.Save(state); err != nil {
			logger.Error("save final snapshot", "err", err)
		}
	}
	logger.Info("farmd stopped")
}

// bootstrapFarm restores a persisted farm or initializes a fresh one from
// the configuration.
func bootstrapFarm(engine *farm.Engine, store *storage.FarmStore, cfg *config.Config) error {
	state, err := store.Load()
	if err != nil {
		return err
	}
	if state != nil {
		return engine.Restore(state)
	}

	startTime := cfg.Farm.FarmStartTime
	if startTime == 0 {
		startTime = uint64(time.Now().Unix()) + cfg.Farm.StartDelay
	}
	rewardData := make([]farm.RewardTokenData, 0, len(cfg.Farm.RewardTokens))
	for _, rt := range cfg.Farm.RewardTokens {
		rewardData = append(rewardData, farm.RewardTokenData{
			Token:   common.HexToAddress(rt.Token),
			Manager: common.HexToAddress(rt.Manager),
		})
	}
	if err := engine.Initialize(
		common.HexToAddress(cfg.Farm.Owner),
		common.HexToAddress(cfg.Farm.LiquidityToken),
		startTime,
		cfg.Farm.CooldownPeriod,
		rewardData,
	); err != nil {
		return err
	}
	snapshot, err := engine.Snapshot()
	if err != nil {
		return err
	}
	return store.Save(snapshot)
}

func snapshotLoop(ctx context.Context, engine *farm.Engine, store *storage.FarmStore, logger *slog.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			state, err := engine.Snapshot()
			if err != nil {
				continue
			}
			if err := store.Save(state); err != nil {
				logger.Error("save snapshot", "err", err)
			}
		}
	}
}
