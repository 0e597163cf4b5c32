package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"collector/internal/terminal"
	"collector/internal/terminal/terminaltest"
	"collector/pkg/utils"
)

func newFake() *terminaltest.Fake {
	f := terminaltest.New()
	f.AddAccount("5001", &terminaltest.Account{
		Password: "right",
		Server:   "Demo-Server",
		Info:     terminal.AccountInfo{Login: "5001", Balance: decimal.NewFromInt(1000)},
		Deals: []*terminal.Deal{
			{Ticket: 1, Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Type: terminal.DealTypeBuy, Entry: terminal.DealEntryOut},
		},
	})
	return f
}

func newClient(f *terminaltest.Fake, cfg Config) *Client {
	return NewClient(f, cfg, utils.InitLogger(utils.LogConfig{Level: "error"}))
}

func TestClient_LoginAndFetch(t *testing.T) {
	f := newFake()
	c := newClient(f, DefaultConfig())
	ctx := context.Background()

	s, err := c.Login(ctx, "5001", "right", "Demo-Server")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	defer s.Close()

	if s.Identity() != "5001" {
		t.Errorf("Identity() = %q", s.Identity())
	}

	info, err := s.AccountInfo(ctx)
	if err != nil || !info.Balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("AccountInfo() = %+v, %v", info, err)
	}

	deals, err := s.DealsInRange(ctx, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))
	if err != nil || len(deals) != 1 {
		t.Errorf("DealsInRange() = %d deals, %v", len(deals), err)
	}

	calls := f.Calls()
	if len(calls) < 2 || calls[0] != "initialize" || calls[1] != "minimize" {
		t.Errorf("terminal must be initialized and minimized first, calls = %v", calls)
	}
}

func TestClient_LoginRejected(t *testing.T) {
	f := newFake()
	c := newClient(f, DefaultConfig())

	_, err := c.Login(context.Background(), "5001", "wrong", "Demo-Server")
	if !IsAuthRejected(err) {
		t.Fatalf("err = %v, want ErrAuthRejected", err)
	}
	if errors.Is(err, ErrExternalService) {
		t.Error("rejected login must not be classified as external service error")
	}
}

func TestClient_ReusesAuthenticatedSession(t *testing.T) {
	f := newFake()
	c := newClient(f, DefaultConfig())
	ctx := context.Background()

	s, err := c.Login(ctx, "5001", "right", "Demo-Server")
	if err != nil {
		t.Fatalf("first Login: %v", err)
	}
	s.Close()

	s2, err := c.Login(ctx, "5001", "right", "Demo-Server")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	defer s2.Close()

	if got := f.LoginCalls(); got != 1 {
		t.Errorf("terminal login calls = %d, want 1 (session reuse)", got)
	}

	// другой сервер - обычный логин
	f.AddAccount("5002", &terminaltest.Account{Password: "p", Server: "Live"})
	s3, err := c.Login(ctx, "5002", "p", "Live")
	if err != nil {
		t.Fatalf("Login other account: %v", err)
	}
	s3.Close()
	if got := f.LoginCalls(); got != 2 {
		t.Errorf("terminal login calls = %d, want 2", got)
	}
}

func TestClient_MinimizeFailureIsNotFatal(t *testing.T) {
	f := newFake()
	f.SetFail("minimize", terminaltest.ErrInjected)
	c := newClient(f, DefaultConfig())

	s, err := c.Login(context.Background(), "5001", "right", "Demo-Server")
	if err != nil {
		t.Fatalf("Login must succeed when minimize fails: %v", err)
	}
	s.Close()
}

func TestClient_InitializeFailure(t *testing.T) {
	f := newFake()
	f.SetFail("initialize", terminaltest.ErrInjected)
	c := newClient(f, DefaultConfig())

	_, err := c.Login(context.Background(), "5001", "right", "Demo-Server")
	if !errors.Is(err, ErrExternalService) {
		t.Errorf("err = %v, want ErrExternalService", err)
	}
}

func TestClient_LoginTimeout(t *testing.T) {
	f := newFake()
	f.Delay = 200 * time.Millisecond
	c := newClient(f, Config{CallTimeout: 20 * time.Millisecond, LoginTimeout: 20 * time.Millisecond})

	start := time.Now()
	_, err := c.Login(context.Background(), "5001", "right", "Demo-Server")
	if !errors.Is(err, ErrExternalService) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want timed out ErrExternalService", err)
	}
	if IsAuthRejected(err) {
		t.Error("timeout must not be classified as auth rejection")
	}
	if time.Since(start) > time.Second {
		t.Error("login did not respect timeout")
	}
}

func TestSession_CloseIdempotent(t *testing.T) {
	f := newFake()
	c := newClient(f, DefaultConfig())
	ctx := context.Background()

	s, err := c.Login(ctx, "5001", "right", "Demo-Server")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	if err := s.Close(); err != nil {
		t.Errorf("first Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if f.Initialized() {
		t.Error("terminal must be shut down after Close")
	}

	if _, err := s.AccountInfo(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("call after Close: err = %v, want ErrClosed", err)
	}
}

func TestSession_CloseRunsAfterContextCancel(t *testing.T) {
	f := newFake()
	c := newClient(f, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())

	s, err := c.Login(ctx, "5001", "right", "Demo-Server")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	cancel()

	if err := s.Close(); err != nil {
		t.Errorf("Close after cancel: %v", err)
	}
	if f.Initialized() {
		t.Error("terminal must be shut down even when the collection context is cancelled")
	}
}

func TestClient_SecondLoginClosesPrevious(t *testing.T) {
	f := newFake()
	f.AddAccount("5002", &terminaltest.Account{Password: "p", Server: "Live"})
	c := newClient(f, DefaultConfig())
	ctx := context.Background()

	s1, _ := c.Login(ctx, "5001", "right", "Demo-Server")
	s2, err := c.Login(ctx, "5002", "p", "Live")
	if err != nil {
		t.Fatalf("second Login: %v", err)
	}
	defer s2.Close()

	if _, err := s1.AccountInfo(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("previous session must be closed, err = %v", err)
	}
}
