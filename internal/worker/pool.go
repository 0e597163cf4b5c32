// Package worker содержит пул слотов сбора и протокол процессов-воркеров.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"collector/internal/models"
	"collector/pkg/utils"
)

// PoolConfig - параметры пула
type PoolConfig struct {
	// JobTimeout - общий предел на один сбор
	JobTimeout time.Duration
}

// Pool раздаёт задания фиксированному набору слотов
//
// Число слотов не зависит от числа счетов. Внутри слота задания идут
// последовательно.
type Pool struct {
	executors []Executor
	cfg       PoolConfig
	log       *utils.Logger
}

// NewPool создаёт пул поверх готовых слотов
func NewPool(executors []Executor, cfg PoolConfig, log *utils.Logger) *Pool {
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if log == nil {
		log = utils.L()
	}
	return &Pool{
		executors: executors,
		cfg:       cfg,
		log:       log.WithComponent("pool"),
	}
}

// Size возвращает число слотов
func (p *Pool) Size() int {
	return len(p.executors)
}

// Dispatch запускает задания и возвращает канал исходов
//
// Канал закрывается, когда у каждого начатого задания есть исход. После
// отмены ctx новые задания не начинаются; уже начатые доводятся до конца
// в пределах JobTimeout, их исходы всё равно попадают в канал.
func (p *Pool) Dispatch(ctx context.Context, jobs []models.CollectionJob) <-chan *models.CollectionOutcome {
	results := make(chan *models.CollectionOutcome, len(jobs))

	queue := make(chan models.CollectionJob, len(jobs))
	for _, j := range jobs {
		queue <- j
	}
	close(queue)

	var wg sync.WaitGroup
	for slot, ex := range p.executors {
		wg.Add(1)
		go func(slot int, ex Executor) {
			defer wg.Done()
			p.runSlot(ctx, slot, ex, queue, results)
		}(slot, ex)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (p *Pool) runSlot(ctx context.Context, slot int, ex Executor, queue <-chan models.CollectionJob, results chan<- *models.CollectionOutcome) {
	for {
		// отмена проверяется до выборки, чтобы не начать лишнее задание
		if ctx.Err() != nil {
			return
		}

		var job models.CollectionJob
		var ok bool
		select {
		case <-ctx.Done():
			return
		case job, ok = <-queue:
			if !ok {
				return
			}
		}

		results <- p.run(ctx, slot, ex, job)
	}
}

// run выполняет одно задание. Отмена ctx не прерывает начатый сбор.
func (p *Pool) run(ctx context.Context, slot int, ex Executor, job models.CollectionJob) *models.CollectionOutcome {
	jobCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.JobTimeout)
	defer cancel()

	BusyWorkers.Inc()
	defer BusyWorkers.Dec()

	started := time.Now()
	out := ex.Collect(jobCtx, job)
	if out == nil {
		out = models.FailedOutcome(job, models.AccountStatusError, errors.New("worker returned no outcome"))
	}
	out.Worker = slot
	if out.Duration == 0 {
		out.Duration = time.Since(started)
	}

	CollectDuration.WithLabelValues(out.Status).Observe(out.Duration.Seconds())
	p.log.Debug("job finished",
		utils.WorkerSlot(slot),
		utils.AccountID(job.AccountID),
		utils.Status(out.Status),
		utils.Latency(float64(out.Duration.Microseconds())/1000),
	)
	return out
}

// Close закрывает все слоты
func (p *Pool) Close() error {
	var errs []error
	for _, ex := range p.executors {
		if err := ex.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
