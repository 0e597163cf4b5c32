// Package orchestrator запускает циклы сбора: выборка счетов, раздача
// пулу воркеров и запись исходов.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"collector/internal/collector"
	"collector/internal/models"
	"collector/internal/repository"
	"collector/pkg/utils"
)

// ErrCycleInProgress - предыдущий цикл ещё не закончился
var ErrCycleInProgress = errors.New("collection cycle already in progress")

// AccountStore - хранилище счетов
type AccountStore interface {
	FetchEligible(ctx context.Context) ([]*models.AccountWithCredential, error)
	ApplyOutcome(ctx context.Context, outcome *models.CollectionOutcome) error
}

// Dispatcher раздаёт задания слотам
type Dispatcher interface {
	Dispatch(ctx context.Context, jobs []models.CollectionJob) <-chan *models.CollectionOutcome
	Size() int
}

// Notifier получает события циклов (например, websocket-хаб)
//
// Методы вызываются синхронно из цикла и не должны блокироваться.
type Notifier interface {
	AccountUpdated(outcome *models.CollectionOutcome)
	CycleCompleted(report *models.CycleReport)
}

// Config - параметры оркестратора
type Config struct {
	// WriteTimeout - предел на запись одного исхода
	WriteTimeout time.Duration
}

// Orchestrator выполняет циклы сбора
type Orchestrator struct {
	store    AccountStore
	pool     Dispatcher
	notifier Notifier
	cfg      Config
	log      *utils.Logger

	running sync.Mutex

	mu         sync.RWMutex
	lastReport *models.CycleReport
}

// New создаёт оркестратор. notifier может быть nil.
func New(store AccountStore, pool Dispatcher, notifier Notifier, cfg Config, log *utils.Logger) *Orchestrator {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if log == nil {
		log = utils.L()
	}
	return &Orchestrator{
		store:    store,
		pool:     pool,
		notifier: notifier,
		cfg:      cfg,
		log:      log.WithComponent("orchestrator"),
	}
}

// RunCycle выполняет один цикл сбора
//
// Каждый выбранный счёт получает ровно одну попытку. Исходы пишутся по мере
// поступления; ошибка записи одного счёта не прерывает остальные. После
// отмены ctx новые сборы не начинаются, а уже начатые дописываются.
func (o *Orchestrator) RunCycle(ctx context.Context) (*models.CycleReport, error) {
	if !o.running.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer o.running.Unlock()

	report := &models.CycleReport{
		CycleID:   uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	log := o.log.WithCycle(report.CycleID)

	accounts, err := o.store.FetchEligible(ctx)
	if err != nil {
		CyclesTotal.WithLabelValues("fetch_failed").Inc()
		return nil, fmt.Errorf("fetch eligible accounts: %w", err)
	}

	jobs := make([]models.CollectionJob, 0, len(accounts))
	for _, acc := range accounts {
		// PENDING -> исход; SUSPENDED отфильтрован хранилищем
		if !models.IsEligible(acc.Status) {
			continue
		}
		jobs = append(jobs, acc.Job())
	}
	report.Eligible = len(jobs)
	EligibleAccounts.Set(float64(len(jobs)))

	log.Info("collection cycle started",
		utils.Count("accounts", len(jobs)),
		utils.Count("workers", o.pool.Size()),
	)

	for outcome := range o.pool.Dispatch(ctx, jobs) {
		o.apply(ctx, outcome, report, log)
	}

	report.Skipped = report.Eligible - report.Attempted
	report.Duration = time.Since(report.StartedAt)

	CycleDuration.Observe(report.Duration.Seconds())
	CyclesTotal.WithLabelValues("ok").Inc()
	LastCycleTimestamp.SetToCurrentTime()

	fields := []utils.Field{
		utils.Count("attempted", report.Attempted),
		utils.Count("succeeded", report.Connected),
		utils.Count("failed", report.Failed()),
		utils.Count("persist_failed", report.PersistFailed),
		utils.Duration("duration", report.Duration),
	}
	if report.Skipped > 0 {
		fields = append(fields, utils.Count("skipped", report.Skipped))
	}
	if report.Discarded > 0 {
		fields = append(fields, utils.Count("discarded", report.Discarded))
	}
	log.Info("collection cycle completed", fields...)

	o.mu.Lock()
	o.lastReport = report
	o.mu.Unlock()

	if o.notifier != nil {
		o.notifier.CycleCompleted(report)
	}
	return report, nil
}

// apply записывает один исход
func (o *Orchestrator) apply(ctx context.Context, outcome *models.CollectionOutcome, report *models.CycleReport, log *utils.Logger) {
	if !collector.CanTransition(models.AccountStatusPending, outcome.Status) {
		log.Error("worker returned invalid status",
			utils.AccountID(outcome.AccountID),
			utils.Status(outcome.Status),
		)
		outcome.Status = models.AccountStatusError
		outcome.State = nil
		if outcome.Error == "" {
			outcome.Error = "invalid collection status"
		}
	}

	report.Record(outcome)
	OutcomesTotal.WithLabelValues(outcome.Status).Inc()

	// запись отвязана от отмены цикла, но ограничена по времени
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.WriteTimeout)
	err := o.store.ApplyOutcome(writeCtx, outcome)
	cancel()

	if errors.Is(err, repository.ErrAccountSuspended) {
		report.Discarded++
		log.Info("account suspended during collection, outcome discarded",
			utils.AccountID(outcome.AccountID),
			utils.Status(outcome.Status),
		)
		return
	}
	if err != nil {
		report.PersistFailed++
		PersistFailures.Inc()
		log.Error("failed to persist collection outcome",
			utils.AccountID(outcome.AccountID),
			utils.Status(outcome.Status),
			utils.Err(err),
		)
		return
	}

	if outcome.Status != models.AccountStatusConnected {
		log.Warn("account collection failed",
			utils.AccountID(outcome.AccountID),
			utils.Status(outcome.Status),
			utils.String("error", outcome.Error),
		)
	}

	if o.notifier != nil {
		o.notifier.AccountUpdated(outcome)
	}
}

// LastReport возвращает отчёт последнего завершённого цикла или nil
func (o *Orchestrator) LastReport() *models.CycleReport {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.lastReport == nil {
		return nil
	}
	r := *o.lastReport
	return &r
}
