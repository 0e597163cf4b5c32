// Package collector выполняет сбор состояния одного счёта: расшифровка
// пароля, логин, снятие состояния, расчёт P/L и закрытие сессии.
package collector

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"collector/internal/models"
	"collector/internal/pnl"
	"collector/internal/session"
	"collector/internal/terminal"
	"collector/pkg/utils"
)

// Decrypter расшифровывает пароль счёта
type Decrypter interface {
	Decrypt(blob string) (string, error)
}

// SessionOpener открывает сессию терминала
type SessionOpener interface {
	Login(ctx context.Context, identity, secret, endpoint string) (Session, error)
}

// Session - авторизованная сессия, из которой снимается состояние
type Session interface {
	AccountInfo(ctx context.Context) (*terminal.AccountInfo, error)
	OpenPositions(ctx context.Context) ([]*terminal.Position, error)
	DealsInRange(ctx context.Context, start, end time.Time) ([]*terminal.Deal, error)
	Close() error
}

// sessionClient адаптирует *session.Client к SessionOpener
type sessionClient struct {
	c *session.Client
}

func (s sessionClient) Login(ctx context.Context, identity, secret, endpoint string) (Session, error) {
	sess, err := s.c.Login(ctx, identity, secret, endpoint)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// FromClient оборачивает клиент сессий
func FromClient(c *session.Client) SessionOpener {
	return sessionClient{c: c}
}

// Config - параметры сбора
type Config struct {
	LookbackDays int
}

// Collector собирает состояние счетов строго последовательно
//
// Один Collector владеет одним клиентом сессий и не должен вызываться
// из нескольких горутин одновременно.
type Collector struct {
	vault    Decrypter
	sessions SessionOpener
	cfg      Config
	log      *utils.Logger

	// now подменяется в тестах
	now func() time.Time
}

// New создаёт Collector
func New(vault Decrypter, sessions SessionOpener, cfg Config, log *utils.Logger) *Collector {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = pnl.DefaultLookbackDays
	}
	if log == nil {
		log = utils.L()
	}
	return &Collector{
		vault:    vault,
		sessions: sessions,
		cfg:      cfg,
		log:      log.WithComponent("collector"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Collect выполняет один сбор и всегда возвращает исход
//
// Паника внутри сбора превращается в ERROR, сессия закрывается на любом пути.
func (c *Collector) Collect(ctx context.Context, job models.CollectionJob) (out *models.CollectionOutcome) {
	started := time.Now()
	log := c.log.WithAccount(job.AccountID, job.Login, job.Server)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic during collection",
				utils.Any("panic", r),
				utils.String("stack", string(debug.Stack())),
			)
			out = models.FailedOutcome(job, models.AccountStatusError, fmt.Errorf("internal error: %v", r))
		}
		out.Duration = time.Since(started)
	}()

	state, err := c.collect(ctx, job, log)
	if err != nil {
		status := StatusFor(err)
		log.Warn("collection failed", utils.Status(status), utils.Err(err))
		return models.FailedOutcome(job, status, err)
	}

	log.Debug("collection succeeded",
		utils.String("equity", state.Equity.String()),
		utils.Count("open_trades", state.OpenTrades),
	)
	return &models.CollectionOutcome{
		AccountID:  job.AccountID,
		Status:     models.AccountStatusConnected,
		State:      state,
		FinishedAt: c.now(),
	}
}

func (c *Collector) collect(ctx context.Context, job models.CollectionJob, log *utils.Logger) (*models.LiveState, error) {
	password, err := c.vault.Decrypt(job.EncryptedPassword)
	if err != nil {
		return nil, err
	}

	sess, err := c.sessions.Login(ctx, job.Login, password, job.Server)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			log.Warn("failed to close terminal session", utils.Err(cerr))
		}
	}()

	info, err := sess.AccountInfo(ctx)
	if err != nil {
		return nil, err
	}
	positions, err := sess.OpenPositions(ctx)
	if err != nil {
		return nil, err
	}

	w := pnl.WindowsAt(c.now(), c.cfg.LookbackDays)

	recent, err := sess.DealsInRange(ctx, w.MonthStart, w.Now)
	if err != nil {
		return nil, fmt.Errorf("period history: %w", err)
	}
	history, err := sess.DealsInRange(ctx, w.TotalStart, w.Now)
	if err != nil {
		return nil, fmt.Errorf("lookback history: %w", err)
	}

	periods := pnl.Aggregate(recent, w)
	total := pnl.Realized(history, w.TotalStart, w.Now)

	return &models.LiveState{
		Balance:     info.Balance,
		Equity:      info.Equity,
		Margin:      info.Margin,
		FreeMargin:  info.FreeMargin,
		MarginLevel: info.MarginLevel,
		OpenTrades:  len(positions),
		OpenPL:      pnl.OpenPL(positions),
		DayPL:       periods.Day,
		WeekPL:      periods.Week,
		MonthPL:     periods.Month,
		TotalPL:     total,
		CollectedAt: w.Now,
	}, nil
}

// StatusFor отображает ошибку сбора в статус счёта
//
// Отклонённый логин - DISCONNECTED, всё остальное (расшифровка,
// таймауты, ошибки терминала) - ERROR.
func StatusFor(err error) string {
	switch {
	case err == nil:
		return models.AccountStatusConnected
	case session.IsAuthRejected(err):
		return models.AccountStatusDisconnected
	default:
		return models.AccountStatusError
	}
}
