// Package main is the entry point of the membership-records worker: the
// background process that keeps education categories converged and exposes
// the administration control surface.
//
// The worker owns:
//   - the daily and annual convergence jobs
//   - the HTTP endpoints for manual triggers, stats, and health probes
//   - the run ledger recording every convergence run
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/memberhub/member-records/config"
	"github.com/memberhub/member-records/internal/application/sweep"
	"github.com/memberhub/member-records/internal/domain/education"
	"github.com/memberhub/member-records/internal/infrastructure/external/membership"
	"github.com/memberhub/member-records/internal/infrastructure/external/recordstore"
	"github.com/memberhub/member-records/internal/infrastructure/persistence/postgres"
	"github.com/memberhub/member-records/internal/infrastructure/persistence/redis"
	"github.com/memberhub/member-records/internal/infrastructure/scheduler"
	"github.com/memberhub/member-records/internal/infrastructure/scheduler/jobs"
	httpserver "github.com/memberhub/member-records/internal/interface/http"
	"github.com/memberhub/member-records/internal/interface/http/handlers"
	"github.com/memberhub/member-records/pkg/logger"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION
	// ─────────────────────────────────────────────────────────────────────────
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	log := setupLogger(cfg)
	log.Info("starting membership-records worker",
		"env", string(cfg.App.Environment),
		"version", cfg.App.Version,
		"timezone", cfg.App.Timezone,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EXTERNAL CLIENTS
	// ─────────────────────────────────────────────────────────────────────────
	storeConfig := recordstore.DefaultClientConfig(cfg.RecordStore.BaseURL)
	storeConfig.APIKey = cfg.RecordStore.APIKey
	storeConfig.Timeout = cfg.RecordStore.RequestTimeout
	storeConfig.PageSize = cfg.RecordStore.PageSize
	storeConfig.RateLimiterConfig.RequestsPerSecond = cfg.RecordStore.RateLimit
	storeConfig.RateLimiterConfig.BurstSize = cfg.RecordStore.RateLimitBurst
	storeConfig.CircuitBreakerConfig.FailureThreshold = cfg.RecordStore.CircuitBreakerThreshold
	storeConfig.CircuitBreakerConfig.Timeout = cfg.RecordStore.CircuitBreakerTimeout
	storeConfig.Logger = log
	storeConfig.Debug = cfg.App.Debug
	storeClient := recordstore.NewClient(storeConfig)

	membershipConfig := membership.DefaultClientConfig(cfg.Membership.BaseURL)
	membershipConfig.APIKey = cfg.Membership.APIKey
	membershipConfig.Timeout = cfg.Membership.RequestTimeout
	membershipConfig.Logger = log
	membershipClient := membership.NewClient(membershipConfig)

	// ─────────────────────────────────────────────────────────────────────────
	// 4. RUN LEDGER
	// ─────────────────────────────────────────────────────────────────────────
	ledger, closeLedger, err := buildLedger(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to build run ledger: %w", err)
	}
	defer closeLedger()

	// ─────────────────────────────────────────────────────────────────────────
	// 5. SWEEPER
	// ─────────────────────────────────────────────────────────────────────────
	sweeper := sweep.NewSweeper(storeClient, membershipClient, ledger, sweep.Config{
		BatchSize:  cfg.Sweeper.BatchSize,
		BatchDelay: cfg.Sweeper.BatchDelay,
		Logger:     log,
		OnCategoryChanged: func(_ context.Context, change education.CategoryChanged) {
			log.Info("category changed",
				"record_id", change.RecordID.String(),
				"subject_id", change.SubjectID.String(),
				"from", change.OldCategory.String(),
				"to", change.NewCategory.String(),
				"reason", change.Reason,
			)
		},
	})

	distribution := sweep.NewDistributionReader(storeClient)

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:   log,
		Timezone: cfg.App.Location,
	})

	dailyJob := jobs.NewDailyConvergenceJob(sweeper, cfg.Scheduler.EligibilityMonths, log)
	if err := sched.Register(dailyJob, scheduler.MustParseCronExpression(jobs.DailyCron)); err != nil {
		return fmt.Errorf("failed to register daily job: %w", err)
	}
	if err := sched.Register(jobs.NewAnnualConvergenceJob(sweeper, log), scheduler.MustParseCronExpression(jobs.AnnualCron)); err != nil {
		return fmt.Errorf("failed to register annual job: %w", err)
	}

	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		defer func() {
			if err := sched.Stop(); err != nil {
				log.Warn("scheduler stop failed", "error", err)
			}
		}()
	} else {
		log.Warn("scheduler disabled, only manual triggers will run")
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. HEALTH CHECKS
	// ─────────────────────────────────────────────────────────────────────────
	healthChecker := handlers.NewCompositeHealthChecker(cfg.App.Version)
	healthChecker.AddCheck("record_store", handlers.NewReachableCheck("record store", storeClient))
	healthChecker.AddCheck("membership_api", handlers.NewReachableCheck("membership API", membershipClient))
	healthChecker.AddCheck("run_ledger", handlers.NewPingCheck(ledger))

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP CONTROL SURFACE
	// ─────────────────────────────────────────────────────────────────────────
	serverConfig := httpserver.DefaultConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = cfg.Server.ReadTimeout
	serverConfig.WriteTimeout = cfg.Server.WriteTimeout
	serverConfig.IdleTimeout = cfg.Server.IdleTimeout
	serverConfig.EnableCORS = cfg.Server.EnableCORS
	serverConfig.AllowedOrigins = cfg.Server.AllowedOrigins
	serverConfig.RateLimitPerMinute = cfg.Server.RateLimitPerMinute
	serverConfig.APIKeyHashes = cfg.Server.APIKeyHashes

	httpLog := logger.New(logger.Options{
		Output: os.Stdout,
		Level:  logger.ParseLevel(cfg.Observability.LogLevel),
	})

	months := cfg.Scheduler.EligibilityMonths
	if len(months) == 0 {
		months = jobs.DefaultEligibilityMonths()
	}

	server := httpserver.NewServer(serverConfig, httpserver.Dependencies{
		Sweeper:           sweeper,
		Distribution:      distribution,
		Ledger:            ledger,
		Jobs:              sched,
		EligibilityMonths: months,
		HealthChecker:     healthChecker,
		Logger:            httpLog,
	})

	serverErr := server.StartAsync()
	log.Info("control surface listening", "address", server.Address())

	// ─────────────────────────────────────────────────────────────────────────
	// 9. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("http server shutdown failed", "error", err)
	}

	log.Info("shutdown completed")
	return nil
}

// buildLedger selects the run ledger backend. In auto mode a backend that
// cannot connect degrades to the next one; an explicitly requested backend
// that fails is fatal.
func buildLedger(ctx context.Context, cfg *config.Config, log *slog.Logger) (sweep.RunLedger, func(), error) {
	noop := func() {}

	tryPostgres := func() (sweep.RunLedger, func(), error) {
		conn, err := postgres.NewConnectionFromURL(ctx, cfg.Database.URL)
		if err != nil {
			return nil, noop, err
		}
		ledger, err := postgres.NewRunLedger(ctx, conn, cfg.Ledger.Retention)
		if err != nil {
			conn.Close()
			return nil, noop, err
		}
		log.Info("run ledger backend: postgres")
		return ledger, func() { conn.Close() }, nil
	}

	tryRedis := func() (sweep.RunLedger, func(), error) {
		redisCfg := redis.DefaultConfig()
		redisCfg.Host = cfg.Redis.Host
		redisCfg.Port = cfg.Redis.Port
		redisCfg.Password = cfg.Redis.Password
		redisCfg.DB = cfg.Redis.DB
		redisCfg.PoolSize = cfg.Redis.PoolSize
		redisCfg.MaxRetries = cfg.Redis.MaxRetries
		redisCfg.DialTimeout = cfg.Redis.DialTimeout
		redisCfg.RunTTL = cfg.Ledger.RunTTL
		redisCfg.MaxRecent = cfg.Ledger.MaxRecent

		ledger, err := redis.NewRunLedger(redisCfg)
		if err != nil {
			return nil, noop, err
		}
		log.Info("run ledger backend: redis", "addr", redisCfg.Addr())
		return ledger, func() { _ = ledger.Close() }, nil
	}

	memory := func() (sweep.RunLedger, func(), error) {
		log.Info("run ledger backend: memory", "run_ttl", cfg.Ledger.RunTTL.String())
		return sweep.NewMemoryRunLedger(cfg.Ledger.RunTTL, cfg.Ledger.MaxRecent), noop, nil
	}

	switch cfg.Ledger.Backend {
	case config.LedgerBackendPostgres:
		return tryPostgres()
	case config.LedgerBackendRedis:
		return tryRedis()
	case config.LedgerBackendMemory:
		return memory()
	}

	// Auto mode: postgres, then redis, then memory.
	if cfg.Database.URL != "" {
		ledger, cleanup, err := tryPostgres()
		if err == nil {
			return ledger, cleanup, nil
		}
		log.Warn("postgres ledger unavailable, trying redis", "error", err)
	}
	if !cfg.Redis.Disabled {
		ledger, cleanup, err := tryRedis()
		if err == nil {
			return ledger, cleanup, nil
		}
		log.Warn("redis ledger unavailable, falling back to memory", "error", err)
	}
	return memory()
}

// setupLogger configures structured logging for the worker.
func setupLogger(cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if cfg.App.Debug {
		opts.Level = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Observability.LogFormat == "text" || cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	log := slog.New(handler)
	slog.SetDefault(log)
	return log
}
