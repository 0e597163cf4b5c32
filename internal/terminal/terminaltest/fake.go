// Package terminaltest предоставляет управляемый из тестов терминал в памяти.
package terminaltest

import (
	"context"
	"errors"
	"sync"
	"time"

	"collector/internal/terminal"
)

var _ terminal.Terminal = (*Fake)(nil)

// Account - счёт, известный фейковому терминалу
type Account struct {
	Password  string
	Server    string
	Info      terminal.AccountInfo
	Positions []*terminal.Position
	Deals     []*terminal.Deal
}

// Fake имитирует терминал с одной сессией
//
// Как и настоящий терминал, после Shutdown помнит последний счёт:
// следующий Initialize восстанавливает его сессию.
type Fake struct {
	mu       sync.Mutex
	accounts map[string]*Account

	current     string
	server      string
	initialized bool

	// Delay применяется к каждому вызову с учётом контекста
	Delay time.Duration
	// Fail задаёт ошибку для операции ("initialize", "minimize", "login",
	// "account", "positions", "deals", "shutdown")
	Fail map[string]error

	calls      []string
	loginCalls int
	// Concurrent фиксирует максимальное число одновременных вызовов
	inFlight      int
	maxConcurrent int
}

// New создаёт пустой фейковый терминал
func New() *Fake {
	return &Fake{
		accounts: make(map[string]*Account),
		Fail:     make(map[string]error),
	}
}

// AddAccount регистрирует счёт
func (f *Fake) AddAccount(login string, acc *Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[login] = acc
}

// ChangePassword меняет пароль счёта. Открытая сессия этого счёта
// сбрасывается, как при смене пароля на стороне брокера.
func (f *Fake) ChangePassword(login, password string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if acc, ok := f.accounts[login]; ok {
		acc.Password = password
	}
	if f.current == login {
		f.current, f.server = "", ""
	}
}

// SetFail задаёт ошибку операции
func (f *Fake) SetFail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Fail[op] = err
}

// Calls возвращает журнал вызовов
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// LoginCalls возвращает количество выполненных логинов
func (f *Fake) LoginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loginCalls
}

// MaxConcurrent возвращает максимум одновременных вызовов
func (f *Fake) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxConcurrent
}

// Initialized сообщает, запущен ли терминал
func (f *Fake) Initialized() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.initialized
}

// enter регистрирует вызов и выдерживает задержку
func (f *Fake) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.inFlight++
	if f.inFlight > f.maxConcurrent {
		f.maxConcurrent = f.inFlight
	}
	delay := f.Delay
	failErr := f.Fail[op]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.mu.Unlock()
	}()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return &terminal.TerminalError{Op: op, Message: "request failed", Original: ctx.Err()}
		}
	}
	if err := ctx.Err(); err != nil {
		return &terminal.TerminalError{Op: op, Message: "request failed", Original: err}
	}
	if failErr != nil {
		return &terminal.TerminalError{Op: op, Message: failErr.Error(), Original: failErr}
	}
	return nil
}

func (f *Fake) session(op string) (*Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initialized || f.current == "" {
		return nil, &terminal.TerminalError{Op: op, Message: "not logged in"}
	}
	return f.accounts[f.current], nil
}

func (f *Fake) Initialize(ctx context.Context) error {
	if err := f.enter(ctx, "initialize"); err != nil {
		return err
	}
	f.mu.Lock()
	f.initialized = true
	f.mu.Unlock()
	return nil
}

func (f *Fake) MinimizeWindows(ctx context.Context) (int, error) {
	if err := f.enter(ctx, "minimize"); err != nil {
		return 0, err
	}
	return 1, nil
}

func (f *Fake) CurrentLogin(ctx context.Context) (string, string, error) {
	if err := f.enter(ctx, "session"); err != nil {
		return "", "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.initialized {
		return "", "", nil
	}
	return f.current, f.server, nil
}

func (f *Fake) Login(ctx context.Context, login, password, server string) error {
	if err := f.enter(ctx, "login"); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loginCalls++

	acc, ok := f.accounts[login]
	if !ok || acc.Password != password || acc.Server != server {
		f.current, f.server = "", ""
		return &terminal.TerminalError{
			Op:       "login",
			Code:     "auth_failed",
			Message:  "invalid account",
			Original: terminal.ErrLoginRejected,
		}
	}
	f.current, f.server = login, server
	return nil
}

func (f *Fake) AccountInfo(ctx context.Context) (*terminal.AccountInfo, error) {
	if err := f.enter(ctx, "account"); err != nil {
		return nil, err
	}
	acc, err := f.session("account")
	if err != nil {
		return nil, err
	}
	info := acc.Info
	return &info, nil
}

func (f *Fake) Positions(ctx context.Context) ([]*terminal.Position, error) {
	if err := f.enter(ctx, "positions"); err != nil {
		return nil, err
	}
	acc, err := f.session("positions")
	if err != nil {
		return nil, err
	}
	return acc.Positions, nil
}

func (f *Fake) DealsInRange(ctx context.Context, from, to time.Time) ([]*terminal.Deal, error) {
	if err := f.enter(ctx, "deals"); err != nil {
		return nil, err
	}
	acc, err := f.session("deals")
	if err != nil {
		return nil, err
	}

	var out []*terminal.Deal
	for _, d := range acc.Deals {
		// сделки без времени терминал отдаёт в любом диапазоне
		if d.Time.IsZero() || (!d.Time.Before(from) && !d.Time.After(to)) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *Fake) Shutdown(ctx context.Context) error {
	if err := f.enter(ctx, "shutdown"); err != nil {
		return err
	}
	f.mu.Lock()
	f.initialized = false
	f.mu.Unlock()
	return nil
}

// ErrInjected - типовая ошибка для Fail
var ErrInjected = errors.New("injected failure")
