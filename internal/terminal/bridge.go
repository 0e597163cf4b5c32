package terminal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/shopspring/decimal"

	"collector/pkg/ratelimit"
	"collector/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Пути HTTP API моста терминала
const (
	pathInitialize = "/initialize"
	pathMinimize   = "/window/minimize"
	pathSession    = "/session"
	pathLogin      = "/login"
	pathAccount    = "/account"
	pathPositions  = "/positions"
	pathDeals      = "/deals"
	pathShutdown   = "/shutdown"
)

// codeAuthFailed - код ошибки моста при отказе в авторизации
const codeAuthFailed = "auth_failed"

// BridgeConfig - настройки моста
type BridgeConfig struct {
	Endpoint     string  // http://127.0.0.1:18811
	TerminalPath string  // путь к терминалу, передаётся в /initialize
	RateLimit    float64 // запросов в секунду
	HTTP         HTTPClientConfig
}

var _ Terminal = (*Bridge)(nil)

// Bridge реализует Terminal поверх HTTP/JSON моста
//
// Мост - тонкий процесс рядом с терминалом, по одному на терминал.
// Bridge не хранит состояние сессии: источник истины - сам терминал.
type Bridge struct {
	endpoint string
	path     string
	client   *resty.Client
	limiter  *ratelimit.RateLimiter
	log      *utils.Logger
}

// errorBody - тело ошибки моста
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// dealDTO - сделка в формате моста (время в unix-секундах)
type dealDTO struct {
	Ticket     int64           `json:"ticket"`
	Order      int64           `json:"order"`
	Time       int64           `json:"time"`
	Type       int             `json:"type"`
	Entry      int             `json:"entry"`
	Symbol     string          `json:"symbol"`
	Volume     decimal.Decimal `json:"volume"`
	Profit     decimal.Decimal `json:"profit"`
	Commission decimal.Decimal `json:"commission"`
	Swap       decimal.Decimal `json:"swap"`
	Fee        decimal.Decimal `json:"fee"`
}

func (d *dealDTO) toDeal() *Deal {
	deal := &Deal{
		Ticket:     d.Ticket,
		Order:      d.Order,
		Type:       DealType(d.Type),
		Entry:      DealEntry(d.Entry),
		Symbol:     d.Symbol,
		Volume:     d.Volume,
		Profit:     d.Profit,
		Commission: d.Commission,
		Swap:       d.Swap,
		Fee:        d.Fee,
	}
	if d.Time > 0 {
		deal.Time = time.Unix(d.Time, 0).UTC()
	}
	return deal
}

// NewBridge создаёт клиент моста
func NewBridge(cfg BridgeConfig, log *utils.Logger) *Bridge {
	if cfg.HTTP == (HTTPClientConfig{}) {
		cfg.HTTP = DefaultHTTPClientConfig()
	}
	if log == nil {
		log = utils.L()
	}

	client := resty.NewWithClient(NewHTTPClient(cfg.HTTP)).
		SetBaseURL(cfg.Endpoint).
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	return &Bridge{
		endpoint: cfg.Endpoint,
		path:     cfg.TerminalPath,
		client:   client,
		limiter:  ratelimit.NewRateLimiter(cfg.RateLimit, 0),
		log:      log.WithComponent("bridge").With(utils.Endpoint(cfg.Endpoint)),
	}
}

// do выполняет запрос к мосту и разбирает ответ в result
func (b *Bridge) do(ctx context.Context, op, method, path string, body, result interface{}, query map[string]string) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return &TerminalError{Endpoint: b.endpoint, Op: op, Message: "rate limit wait aborted", Original: err}
	}

	var apiErr errorBody
	req := b.client.R().
		SetContext(ctx).
		SetError(&apiErr)
	if body != nil {
		req.SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}
	if len(query) > 0 {
		req.SetQueryParams(query)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	latency := float64(time.Since(start).Microseconds()) / 1000

	if err != nil {
		// Отмена/таймаут контекста должны распознаваться через errors.Is
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %v", ctxErr, err)
		}
		return &TerminalError{Endpoint: b.endpoint, Op: op, Message: "request failed", Original: err}
	}

	b.log.Debug("bridge call",
		utils.String("op", op),
		utils.Int("http_status", resp.StatusCode()),
		utils.Latency(latency),
	)

	if resp.IsError() {
		termErr := &TerminalError{
			Endpoint: b.endpoint,
			Op:       op,
			Code:     apiErr.Code,
			Message:  apiErr.Message,
		}
		if termErr.Message == "" {
			termErr.Message = resp.Status()
		}
		if op == "login" && (resp.StatusCode() == http.StatusUnauthorized ||
			resp.StatusCode() == http.StatusForbidden || apiErr.Code == codeAuthFailed) {
			termErr.Original = ErrLoginRejected
		}
		return termErr
	}

	return nil
}

func (b *Bridge) Initialize(ctx context.Context) error {
	body := map[string]string{}
	if b.path != "" {
		body["path"] = b.path
	}
	return b.do(ctx, "initialize", http.MethodPost, pathInitialize, body, nil, nil)
}

func (b *Bridge) MinimizeWindows(ctx context.Context) (int, error) {
	var out struct {
		Minimized int `json:"minimized"`
	}
	if err := b.do(ctx, "minimize", http.MethodPost, pathMinimize, nil, &out, nil); err != nil {
		return 0, err
	}
	return out.Minimized, nil
}

func (b *Bridge) CurrentLogin(ctx context.Context) (string, string, error) {
	var out struct {
		Login  string `json:"login"`
		Server string `json:"server"`
	}
	if err := b.do(ctx, "session", http.MethodGet, pathSession, nil, &out, nil); err != nil {
		return "", "", err
	}
	return out.Login, out.Server, nil
}

func (b *Bridge) Login(ctx context.Context, login, password, server string) error {
	body := map[string]string{
		"login":    login,
		"password": password,
		"server":   server,
	}
	return b.do(ctx, "login", http.MethodPost, pathLogin, body, nil, nil)
}

func (b *Bridge) AccountInfo(ctx context.Context) (*AccountInfo, error) {
	var info AccountInfo
	if err := b.do(ctx, "account", http.MethodGet, pathAccount, nil, &info, nil); err != nil {
		return nil, err
	}
	return &info, nil
}

func (b *Bridge) Positions(ctx context.Context) ([]*Position, error) {
	var positions []*Position
	if err := b.do(ctx, "positions", http.MethodGet, pathPositions, nil, &positions, nil); err != nil {
		return nil, err
	}
	return positions, nil
}

func (b *Bridge) DealsInRange(ctx context.Context, from, to time.Time) ([]*Deal, error) {
	var dtos []*dealDTO
	query := map[string]string{
		"from": strconv.FormatInt(from.Unix(), 10),
		"to":   strconv.FormatInt(to.Unix(), 10),
	}
	if err := b.do(ctx, "deals", http.MethodGet, pathDeals, nil, &dtos, query); err != nil {
		return nil, err
	}

	deals := make([]*Deal, 0, len(dtos))
	for _, d := range dtos {
		if d != nil {
			deals = append(deals, d.toDeal())
		}
	}
	return deals, nil
}

func (b *Bridge) Shutdown(ctx context.Context) error {
	return b.do(ctx, "shutdown", http.MethodPost, pathShutdown, nil, nil, nil)
}

// IsLoginRejected проверяет, что ошибка - отказ в авторизации
func IsLoginRejected(err error) bool {
	return errors.Is(err, ErrLoginRejected)
}
