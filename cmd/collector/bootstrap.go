package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"collector/internal/collector"
	"collector/internal/config"
	"collector/internal/models"
	"collector/internal/repository"
	"collector/internal/session"
	"collector/internal/terminal"
	"collector/internal/worker"
	"collector/pkg/crypto"
	"collector/pkg/retry"
	"collector/pkg/utils"
)

// openDatabase создает пул подключений и дожидается готовности БД
func openDatabase(ctx context.Context, cfg config.DatabaseConfig, log *utils.Logger) (*sql.DB, error) {
	db, err := sql.Open(cfg.Driver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Настройка пула соединений
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns / 2)
	db.SetConnMaxLifetime(5 * time.Minute)

	rc := retry.StartupConfig()
	rc.RetryIf = retry.RetryIfNotContext
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Warn("database is not ready, retrying",
			utils.String("dsn", cfg.DSNWithoutPassword()),
			utils.Int("attempt", attempt),
			utils.Duration("delay", delay),
			utils.Err(err),
		)
	}

	err = retry.Do(ctx, func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}, rc)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// settingsStore - хранилище служебных настроек
type settingsStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// ensureKeyFingerprint сверяет ключ шифрования с отпечатком в БД
//
// При первом запуске отпечаток записывается. Несовпадение - фатальная
// ошибка: с чужим ключом ни один пароль не расшифруется.
func ensureKeyFingerprint(ctx context.Context, store settingsStore, key []byte, log *utils.Logger) error {
	stored, err := store.Get(ctx, models.SettingKeyFingerprint)
	switch {
	case errors.Is(err, repository.ErrSettingNotFound):
		fp, err := crypto.KeyFingerprint(key)
		if err != nil {
			return fmt.Errorf("fingerprint encryption key: %w", err)
		}
		if err := store.Set(ctx, models.SettingKeyFingerprint, fp); err != nil {
			return fmt.Errorf("store key fingerprint: %w", err)
		}
		log.Info("encryption key fingerprint recorded")
		return nil
	case err != nil:
		return fmt.Errorf("read key fingerprint: %w", err)
	}

	if err := crypto.VerifyKeyFingerprint(key, stored); err != nil {
		return fmt.Errorf("verify encryption key: %w", err)
	}
	return nil
}

// newSlotCollector собирает цепочку мост -> сессии -> сборщик для слота
//
// Возвращает функцию закрытия клиента сессий.
func newSlotCollector(cfg *config.Config, slot int, vault collector.Decrypter, log *utils.Logger) (*collector.Collector, func() error, error) {
	if slot < 0 || slot >= len(cfg.Terminal.Endpoints) {
		return nil, nil, fmt.Errorf("slot %d has no terminal endpoint (%d configured)", slot, len(cfg.Terminal.Endpoints))
	}

	slotLog := log.WithWorker(slot)
	bridge := terminal.NewBridge(terminal.BridgeConfig{
		Endpoint:     cfg.Terminal.Endpoints[slot],
		TerminalPath: cfg.Terminal.Path,
		RateLimit:    cfg.Terminal.RateLimit,
	}, slotLog)

	client := session.NewClient(bridge, session.Config{
		CallTimeout:  cfg.Collector.CallTimeout,
		LoginTimeout: cfg.Collector.LoginTimeout,
	}, slotLog)

	c := collector.New(vault, collector.FromClient(client), collector.Config{
		LookbackDays: cfg.Collector.TotalLookbackDays,
	}, slotLog)

	return c, client.Close, nil
}

// buildExecutors создает по исполнителю на слот в выбранном режиме
func buildExecutors(cfg *config.Config, vault collector.Decrypter, log *utils.Logger) ([]worker.Executor, error) {
	executors := make([]worker.Executor, 0, cfg.Collector.NumWorkers)

	closeAll := func() {
		for _, ex := range executors {
			_ = ex.Close()
		}
	}

	for slot := 0; slot < cfg.Collector.NumWorkers; slot++ {
		switch cfg.Collector.WorkerMode {
		case config.WorkerModeInProcess:
			c, closer, err := newSlotCollector(cfg, slot, vault, log)
			if err != nil {
				closeAll()
				return nil, err
			}
			executors = append(executors, worker.NewLocalExecutor(c, closer))

		default:
			ex, err := worker.NewProcessExecutor(worker.ProcessConfig{
				Slot:       slot,
				JobTimeout: cfg.Collector.JobTimeout,
			}, log)
			if err != nil {
				closeAll()
				return nil, err
			}
			executors = append(executors, ex)
		}
	}

	return executors, nil
}
