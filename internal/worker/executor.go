package worker

import (
	"context"
	"sync"

	"collector/internal/models"
)

// Executor - один слот пула: выполняет задания по одному
type Executor interface {
	Collect(ctx context.Context, job models.CollectionJob) *models.CollectionOutcome
	Close() error
}

// LocalExecutor выполняет сбор в родительском процессе
//
// У каждого слота свой Collector со своим терминалом, поэтому два слота
// никогда не делят одну сессию.
type LocalExecutor struct {
	collector Collector
	closer    func() error

	mu sync.Mutex
}

// NewLocalExecutor создаёт слот поверх collector. closer вызывается в Close
// и может быть nil.
func NewLocalExecutor(c Collector, closer func() error) *LocalExecutor {
	return &LocalExecutor{collector: c, closer: closer}
}

// Collect выполняет задание
func (e *LocalExecutor) Collect(ctx context.Context, job models.CollectionJob) *models.CollectionOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.collector.Collect(ctx, job)
}

// Close освобождает терминал слота
func (e *LocalExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closer == nil {
		return nil
	}
	return e.closer()
}
