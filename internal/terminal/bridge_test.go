package terminal

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"collector/pkg/utils"
)

// fakeBridge - HTTP сервер, имитирующий мост терминала
type fakeBridge struct {
	mu       sync.Mutex
	login    string
	server   string
	password string
	calls    []string
	lastBody string
	delay    time.Duration
}

func (f *fakeBridge) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, body string) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
	record := func(r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.calls = append(f.calls, r.Method+" "+r.URL.Path)
		f.lastBody = string(body)
		f.mu.Unlock()
	}

	mux.HandleFunc("/initialize", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		writeJSON(w, http.StatusOK, `{}`)
	})
	mux.HandleFunc("/window/minimize", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		writeJSON(w, http.StatusOK, `{"minimized": 2}`)
	})
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		writeJSON(w, http.StatusOK, `{"login":"`+f.login+`","server":"`+f.server+`"}`)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		f.mu.Lock()
		defer f.mu.Unlock()
		if !strings.Contains(f.lastBody, `"password":"`+f.password+`"`) {
			writeJSON(w, http.StatusUnauthorized, `{"code":"auth_failed","message":"invalid account"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{}`)
	})
	mux.HandleFunc("/account", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		writeJSON(w, http.StatusOK, `{"login":"5001","server":"Demo","currency":"USD",
			"balance":10000.5,"equity":"10100.25","margin":200,"margin_free":9900.25,"margin_level":5050.125,"profit":99.75}`)
	})
	mux.HandleFunc("/positions", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		writeJSON(w, http.StatusOK, `[{"ticket":1,"symbol":"EURUSD","type":0,"volume":0.1,"price_open":1.1,"profit":12.5,"swap":-0.3}]`)
	})
	mux.HandleFunc("/deals", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		if r.URL.Query().Get("from") == "" || r.URL.Query().Get("to") == "" {
			writeJSON(w, http.StatusBadRequest, `{"code":"bad_range","message":"from/to required"}`)
			return
		}
		writeJSON(w, http.StatusOK, `[
			{"ticket":10,"time":1704106800,"type":1,"entry":1,"symbol":"EURUSD","profit":50,"commission":-1.5,"swap":-0.5,"fee":0},
			{"ticket":11,"time":0,"type":2,"entry":0,"profit":1000}
		]`)
	})
	mux.HandleFunc("/shutdown", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		writeJSON(w, http.StatusInternalServerError, `{"code":"not_running","message":"terminal not running"}`)
	})
	return mux
}

func newTestBridge(t *testing.T, f *fakeBridge) *Bridge {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)

	return NewBridge(BridgeConfig{
		Endpoint:     srv.URL,
		TerminalPath: `C:\MT5\terminal64.exe`,
		RateLimit:    1000,
	}, utils.InitLogger(utils.LogConfig{Level: "error"}))
}

func TestBridge_LoginAndSession(t *testing.T) {
	f := &fakeBridge{password: "right", login: "5001", server: "Demo"}
	b := newTestBridge(t, f)
	ctx := context.Background()

	if err := b.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !strings.Contains(f.lastBody, "terminal64.exe") {
		t.Errorf("initialize body should carry terminal path, got %s", f.lastBody)
	}

	n, err := b.MinimizeWindows(ctx)
	if err != nil || n != 2 {
		t.Errorf("MinimizeWindows() = %d, %v", n, err)
	}

	login, server, err := b.CurrentLogin(ctx)
	if err != nil || login != "5001" || server != "Demo" {
		t.Errorf("CurrentLogin() = %q, %q, %v", login, server, err)
	}

	if err := b.Login(ctx, "5001", "right", "Demo"); err != nil {
		t.Errorf("Login with right password: %v", err)
	}

	err = b.Login(ctx, "5001", "wrong", "Demo")
	if !IsLoginRejected(err) {
		t.Errorf("Login with wrong password: err = %v, want ErrLoginRejected", err)
	}
	var termErr *TerminalError
	if !errors.As(err, &termErr) || termErr.Code != "auth_failed" {
		t.Errorf("expected TerminalError with code auth_failed, got %v", err)
	}
}

func TestBridge_AccountAndPositions(t *testing.T) {
	b := newTestBridge(t, &fakeBridge{})
	ctx := context.Background()

	info, err := b.AccountInfo(ctx)
	if err != nil {
		t.Fatalf("AccountInfo: %v", err)
	}
	if !info.Balance.Equal(decimal.RequireFromString("10000.5")) {
		t.Errorf("Balance = %s", info.Balance)
	}
	if !info.Equity.Equal(decimal.RequireFromString("10100.25")) {
		t.Errorf("Equity = %s (string numbers must decode)", info.Equity)
	}
	if !info.FreeMargin.Equal(decimal.RequireFromString("9900.25")) {
		t.Errorf("FreeMargin = %s", info.FreeMargin)
	}

	positions, err := b.Positions(ctx)
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(positions) != 1 || positions[0].Symbol != "EURUSD" || !positions[0].Profit.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("unexpected positions: %+v", positions)
	}
}

func TestBridge_DealsInRange(t *testing.T) {
	b := newTestBridge(t, &fakeBridge{})

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	deals, err := b.DealsInRange(context.Background(), from, from.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("DealsInRange: %v", err)
	}
	if len(deals) != 2 {
		t.Fatalf("len(deals) = %d, want 2", len(deals))
	}

	d := deals[0]
	if d.Type != DealTypeSell || d.Entry != DealEntryOut {
		t.Errorf("type/entry = %d/%d", d.Type, d.Entry)
	}
	if !d.Time.Equal(time.Unix(1704106800, 0)) || d.Time.Location() != time.UTC {
		t.Errorf("Time = %v", d.Time)
	}
	if !d.Result().Equal(decimal.NewFromInt(48)) {
		t.Errorf("Result() = %s, want 48", d.Result())
	}

	if !deals[1].Time.IsZero() {
		t.Errorf("deal without time must have zero Time, got %v", deals[1].Time)
	}
}

func TestBridge_ErrorBody(t *testing.T) {
	b := newTestBridge(t, &fakeBridge{})

	err := b.Shutdown(context.Background())
	var termErr *TerminalError
	if !errors.As(err, &termErr) {
		t.Fatalf("expected TerminalError, got %v", err)
	}
	if termErr.Code != "not_running" || termErr.Op != "shutdown" {
		t.Errorf("unexpected error: %+v", termErr)
	}
	if IsLoginRejected(err) {
		t.Error("non-login errors must not be classified as login rejection")
	}
}

func TestBridge_ContextTimeout(t *testing.T) {
	b := newTestBridge(t, &fakeBridge{delay: 200 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := b.DealsInRange(ctx, time.Now().Add(-time.Hour), time.Now())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestDealClassification(t *testing.T) {
	tests := []struct {
		typ      DealType
		entry    DealEntry
		trade    bool
		realizes bool
	}{
		{DealTypeBuy, DealEntryIn, true, false},
		{DealTypeSell, DealEntryOut, true, true},
		{DealTypeBuy, DealEntryInOut, true, true},
		{DealTypeSell, DealEntryOutBy, true, true},
		{DealTypeBalance, DealEntryIn, false, false},
		{DealTypeCredit, DealEntryIn, false, false},
	}

	for _, tt := range tests {
		if tt.typ.IsTrade() != tt.trade {
			t.Errorf("DealType(%d).IsTrade() = %v", tt.typ, !tt.trade)
		}
		if tt.entry.Realizes() != tt.realizes {
			t.Errorf("DealEntry(%d).Realizes() = %v", tt.entry, !tt.realizes)
		}
	}
}
