package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/launchday/internal/app"
	"github.com/Freeeeeet/launchday/internal/config"
	"github.com/Freeeeeet/launchday/internal/notify"
	"github.com/Freeeeeet/launchday/internal/repository"
	"github.com/Freeeeeet/launchday/internal/server"
	"github.com/Freeeeeet/launchday/internal/service"
	"github.com/Freeeeeet/launchday/internal/votestore"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		logger.Fatal("failed to create database pool", zap.Error(err))
	}
	defer pool.Close()

	migrator, err := app.NewMigrator(pool, cfg.MigrationsPath)
	if err != nil {
		logger.Fatal("failed to create migrator", zap.Error(err))
	}
	if err := migrator.Run(ctx); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	migrator.Close()

	store := newVoteStore(ctx, cfg, logger)
	notifier := newNotifier(cfg, logger)

	slotRepo := repository.NewSlotRepository(pool)
	launchRepo := repository.NewLaunchRepository(pool)

	allocator := service.NewAllocatorService(slotRepo, launchRepo, notifier, logger, service.AllocatorConfig{
		DefaultDayCapacity: cfg.DefaultDayCapacity,
		HorizonDays:        cfg.RescheduleHorizonDays,
	})
	voting := service.NewVotingService(store, launchRepo, notifier, logger, service.VotingConfig{
		WindowHours:    cfg.VotingWindowHours,
		TTLBufferHours: cfg.SessionTTLBufferHours,
	})

	sweeper := app.NewSweeper(voting, notifier, logger, time.Hour)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.NewRouter(allocator, voting, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting http server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", zap.Error(err))
	}
}

// newVoteStore connects to Redis when an address is configured, otherwise
// falls back to the in-memory store. The fallback is an explicit
// construction-time choice for local runs, not a global.
func newVoteStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) votestore.Store {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, using in-memory vote store; tallies do not survive restarts")
		return votestore.NewMemory()
	}

	store, err := votestore.NewRedis(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	logger.Info("connected to redis", zap.String("addr", cfg.RedisAddr))
	return store
}

func newNotifier(cfg *config.Config, logger *zap.Logger) notify.Notifier {
	if cfg.TelegramToken == "" || cfg.TelegramChatID == "" {
		return notify.Noop{}
	}

	notifier, err := notify.NewTelegram(cfg.TelegramToken, cfg.TelegramChatID, logger)
	if err != nil {
		logger.Warn("failed to create telegram notifier, alerts disabled", zap.Error(err))
		return notify.Noop{}
	}
	logger.Info("telegram ops alerts enabled")
	return notifier
}
