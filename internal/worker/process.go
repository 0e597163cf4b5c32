package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"collector/internal/collector"
	"collector/internal/models"
	"collector/pkg/retry"
	"collector/pkg/utils"
)

// ErrWorkerProcess - процесс воркера умер, завис или не запустился
var ErrWorkerProcess = errors.New("worker process failure")

// ProcessConfig - параметры дочернего процесса слота
type ProcessConfig struct {
	Slot int

	// Path - исполняемый файл воркера, по умолчанию текущий бинарник
	Path string
	// Args - аргументы; по умолчанию "worker --slot N"
	Args []string
	// Env - окружение дочернего процесса, по умолчанию окружение родителя
	Env []string

	// JobTimeout - предел ожидания ответа на одно задание
	JobTimeout time.Duration

	// Spawn - политика повторов запуска процесса
	Spawn retry.Config
}

// closeTimeout - сколько ждать выхода воркера после закрытия stdin
const closeTimeout = 5 * time.Second

// process - запущенный дочерний процесс
type process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	out   *bufio.Scanner
}

// ProcessExecutor выполняет сбор в отдельном процессе
//
// Процесс живёт между заданиями. Если он завис, умер или нарушил протокол,
// он убивается, задание получает ERROR, а следующий запрос поднимает
// новый процесс.
type ProcessExecutor struct {
	cfg ProcessConfig
	log *utils.Logger

	mu     sync.Mutex
	proc   *process
	seq    uint64
	closed bool
}

// NewProcessExecutor создаёт слот. Процесс запускается при первом задании.
func NewProcessExecutor(cfg ProcessConfig, log *utils.Logger) (*ProcessExecutor, error) {
	if cfg.Path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve worker executable: %w", err)
		}
		cfg.Path = exe
	}
	if len(cfg.Args) == 0 {
		cfg.Args = []string{"worker", "--slot", strconv.Itoa(cfg.Slot)}
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 2 * time.Minute
	}
	if cfg.Spawn.MaxRetries == 0 {
		cfg.Spawn = retry.SpawnConfig()
	}
	if log == nil {
		log = utils.L()
	}
	return &ProcessExecutor{
		cfg: cfg,
		log: log.WithComponent("worker").WithWorker(cfg.Slot),
	}, nil
}

func (e *ProcessExecutor) spawn() (*process, error) {
	cmd := exec.Command(e.cfg.Path, e.cfg.Args...)
	if e.cfg.Env != nil {
		cmd.Env = e.cfg.Env
	}
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &process{cmd: cmd, stdin: stdin, out: newScanner(stdout)}, nil
}

// ensureProcess запускает процесс, если его нет. Вызывается под e.mu
func (e *ProcessExecutor) ensureProcess(ctx context.Context) error {
	if e.proc != nil {
		return nil
	}

	cfg := e.cfg.Spawn
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		e.log.Warn("failed to start worker process, retrying",
			utils.Int("attempt", attempt),
			utils.Duration("delay", delay),
			utils.Err(err),
		)
	}

	p, err := retry.DoWithResult(ctx, e.spawn, cfg)
	if err != nil {
		return fmt.Errorf("%w: start: %w", ErrWorkerProcess, err)
	}
	e.proc = p
	e.log.Info("worker process started", utils.Int("pid", p.cmd.Process.Pid))
	return nil
}

// kill завершает процесс и забывает его. Вызывается под e.mu
func (e *ProcessExecutor) kill(reason error) {
	p := e.proc
	if p == nil {
		return
	}
	e.proc = nil

	_ = p.stdin.Close()
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	// Wait закрывает stdout, ожидающий чтения горутины получит ошибку
	_ = p.cmd.Wait()

	e.log.Warn("worker process killed", utils.Err(reason))
}

// Collect отправляет задание процессу и ждёт ответ не дольше JobTimeout
func (e *ProcessExecutor) Collect(ctx context.Context, job models.CollectionJob) *models.CollectionOutcome {
	e.mu.Lock()
	defer e.mu.Unlock()

	started := time.Now()
	fail := func(err error) *models.CollectionOutcome {
		out := models.FailedOutcome(job, models.AccountStatusError, err)
		out.Worker = e.cfg.Slot
		out.Duration = time.Since(started)
		return out
	}

	if e.closed {
		return fail(fmt.Errorf("%w: executor closed", ErrWorkerProcess))
	}
	if err := e.ensureProcess(ctx); err != nil {
		return fail(err)
	}

	e.seq++
	seq := e.seq
	p := e.proc

	if err := writeMessage(p.stdin, &Request{Seq: seq, Job: job}); err != nil {
		e.kill(err)
		return fail(fmt.Errorf("%w: send job: %w", ErrWorkerProcess, err))
	}

	type result struct {
		resp Response
		err  error
	}
	done := make(chan result, 1)
	go func() {
		var r result
		r.err = readMessage(p.out, &r.resp)
		done <- r
	}()

	timer := time.NewTimer(e.cfg.JobTimeout)
	defer timer.Stop()

	select {
	case r := <-done:
		if r.err != nil {
			e.kill(r.err)
			return fail(fmt.Errorf("%w: %w", ErrWorkerProcess, r.err))
		}
		if r.resp.Seq != seq || r.resp.Outcome == nil || r.resp.Outcome.AccountID != job.AccountID {
			err := fmt.Errorf("%w: unexpected response seq=%d", ErrProtocol, r.resp.Seq)
			e.kill(err)
			return fail(fmt.Errorf("%w: %w", ErrWorkerProcess, err))
		}
		if !collector.IsOutcome(r.resp.Outcome.Status) {
			err := fmt.Errorf("%w: non-terminal status %q", ErrProtocol, r.resp.Outcome.Status)
			e.kill(err)
			return fail(fmt.Errorf("%w: %w", ErrWorkerProcess, err))
		}
		out := r.resp.Outcome
		out.Worker = e.cfg.Slot
		return out

	case <-timer.C:
		err := fmt.Errorf("no response within %s", e.cfg.JobTimeout)
		e.kill(err)
		<-done
		return fail(fmt.Errorf("%w: %w", ErrWorkerProcess, err))

	case <-ctx.Done():
		e.kill(ctx.Err())
		<-done
		return fail(fmt.Errorf("%w: %w", ErrWorkerProcess, ctx.Err()))
	}
}

// Close закрывает stdin воркера и ждёт его выхода
func (e *ProcessExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	p := e.proc
	if p == nil {
		return nil
	}
	e.proc = nil

	_ = p.stdin.Close()
	waitErr := make(chan error, 1)
	go func() { waitErr <- p.cmd.Wait() }()

	select {
	case err := <-waitErr:
		return err
	case <-time.After(closeTimeout):
		_ = p.cmd.Process.Kill()
		return <-waitErr
	}
}
