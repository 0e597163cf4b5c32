package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"

	"collector/pkg/utils"
)

// SchedulerConfig - параметры планировщика
type SchedulerConfig struct {
	Interval        time.Duration
	ShutdownTimeout time.Duration
}

// Scheduler запускает циклы с фиксированным интервалом
//
// Первый цикл стартует сразу. Если цикл длиннее интервала, следующий запуск
// переносится, а не ставится в очередь: в каждый момент идёт не больше
// одного цикла.
type Scheduler struct {
	orch *Orchestrator
	cfg  SchedulerConfig
	log  *utils.Logger

	sched gocron.Scheduler

	// ctx отменяется при Shutdown: начатый цикл перестаёт раздавать задания
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler создаёт планировщик
func NewScheduler(orch *Orchestrator, cfg SchedulerConfig, log *utils.Logger) (*Scheduler, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("collection interval must be positive")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = time.Minute
	}
	if log == nil {
		log = utils.L()
	}

	sched, err := gocron.NewScheduler(gocron.WithStopTimeout(cfg.ShutdownTimeout))
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		orch:   orch,
		cfg:    cfg,
		log:    log.WithComponent("scheduler"),
		sched:  sched,
		ctx:    ctx,
		cancel: cancel,
	}

	_, err = sched.NewJob(
		gocron.DurationJob(cfg.Interval),
		gocron.NewTask(s.tick),
		gocron.WithName("collection-cycle"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("schedule collection cycle: %w", err)
	}
	return s, nil
}

func (s *Scheduler) tick() {
	if s.ctx.Err() != nil {
		return
	}
	if _, err := s.orch.RunCycle(s.ctx); err != nil {
		s.log.Error("collection cycle failed", utils.Err(err))
	}
}

// Start запускает планировщик
func (s *Scheduler) Start() {
	s.log.Info("scheduler started", utils.Duration("interval", s.cfg.Interval))
	s.sched.Start()
}

// Shutdown прекращает раздачу новых заданий и ждёт завершения текущего
// цикла не дольше ShutdownTimeout
func (s *Scheduler) Shutdown() error {
	s.cancel()
	started := time.Now()

	if err := s.sched.Shutdown(); err != nil {
		s.log.Warn("scheduler stopped before the running cycle finished",
			utils.Duration("waited", time.Since(started)),
			utils.Err(err),
		)
		return err
	}
	s.log.Info("scheduler stopped", utils.Duration("waited", time.Since(started)))
	return nil
}
