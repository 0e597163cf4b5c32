package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"collector/internal/api"
	"collector/internal/api/handlers"
	"collector/internal/orchestrator"
	"collector/internal/repository"
	"collector/internal/websocket"
	"collector/internal/worker"
	"collector/pkg/crypto"
	"collector/pkg/utils"
)

func runCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the collection loop with the operations HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(once)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Run a single collection cycle and exit")
	return cmd
}

func run(once bool) error {
	startedAt := time.Now().UTC()

	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("connected to database", utils.String("dsn", cfg.Database.DSNWithoutPassword()))

	if cfg.Database.AutoMigrate {
		version, err := repository.Migrate(cfg.Database.Driver, cfg.Database.DSN())
		if err != nil {
			return err
		}
		log.Info("schema is up to date", utils.Int("version", int(version)))
	}

	key, err := cfg.EncryptionKeyBytes()
	if err != nil {
		return err
	}
	if err := ensureKeyFingerprint(ctx, repository.NewSettingsRepository(db), key, log); err != nil {
		return err
	}
	vault, err := crypto.NewVault(key)
	if err != nil {
		return err
	}

	executors, err := buildExecutors(cfg, vault, log)
	if err != nil {
		return err
	}
	pool := worker.NewPool(executors, worker.PoolConfig{JobTimeout: cfg.Collector.JobTimeout}, log)
	defer func() {
		if err := pool.Close(); err != nil {
			log.Warn("failed to close worker pool", utils.Err(err))
		}
	}()

	hub := websocket.NewHub(log, cfg.Server.AllowedOrigins...)
	go hub.Run()
	defer hub.Stop()

	accounts := repository.NewAccountRepository(db)
	orch := orchestrator.New(accounts, pool, hub, orchestrator.Config{
		WriteTimeout: cfg.Collector.WriteTimeout,
	}, log)

	log.Info("collector started",
		utils.Int("workers", pool.Size()),
		utils.String("worker_mode", cfg.Collector.WorkerMode),
		utils.Duration("interval", cfg.Collector.Interval),
	)

	if once {
		report, err := orch.RunCycle(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("cycle %s: eligible=%d attempted=%d connected=%d disconnected=%d errored=%d persist_failed=%d skipped=%d discarded=%d\n",
			report.CycleID, report.Eligible, report.Attempted,
			report.Connected, report.Disconnected, report.Errored, report.PersistFailed, report.Skipped, report.Discarded)
		return nil
	}

	sched, err := orchestrator.NewScheduler(orch, orchestrator.SchedulerConfig{
		Interval:        cfg.Collector.Interval,
		ShutdownTimeout: cfg.Collector.ShutdownTimeout,
	}, log)
	if err != nil {
		return err
	}

	var server *http.Server
	if cfg.Server.Enabled {
		router := api.SetupRoutes(&api.Dependencies{
			Accounts:  accounts,
			Snapshots: repository.NewSnapshotRepository(db),
			Status:    orch,
			Info: handlers.StatusInfo{
				StartedAt:  startedAt,
				Interval:   cfg.Collector.Interval,
				Workers:    pool.Size(),
				WorkerMode: cfg.Collector.WorkerMode,
			},
			Stream:         hub,
			AllowedOrigins: cfg.Server.AllowedOrigins,
			APIToken:       cfg.Server.APIToken,
			Log:            log,
		})

		server = &http.Server{
			Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		go func() {
			log.Info("starting ops server", utils.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("ops server failed", utils.Err(err))
				stop()
			}
		}()
	}

	sched.Start()
	<-ctx.Done()

	log.Info("shutting down: waiting for in-flight collections")
	if err := sched.Shutdown(); err != nil {
		log.Warn("scheduler shutdown", utils.Err(err))
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("ops server forced to shutdown", utils.Err(err))
		}
	}

	log.Info("collector exited")
	return nil
}
