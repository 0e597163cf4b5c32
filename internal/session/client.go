// Package session управляет авторизованной сессией терминала для одного счёта.
package session

import (
	"context"
	"sync"
	"time"

	"collector/internal/terminal"
	"collector/pkg/utils"
)

// Config - таймауты внешних вызовов
type Config struct {
	CallTimeout  time.Duration // предел на один вызов терминала
	LoginTimeout time.Duration // предел на логин
	CloseTimeout time.Duration // предел на завершение сессии
}

// DefaultConfig возвращает таймауты по умолчанию
func DefaultConfig() Config {
	return Config{
		CallTimeout:  15 * time.Second,
		LoginTimeout: 30 * time.Second,
		CloseTimeout: 5 * time.Second,
	}
}

// Client владеет одним терминалом и открывает на нём сессии
//
// Терминал поддерживает одну авторизованную сессию, поэтому у клиента
// в каждый момент не больше одной открытой Session.
type Client struct {
	term terminal.Terminal
	cfg  Config
	log  *utils.Logger

	mu          sync.Mutex
	initialized bool
	active      *Session
}

// NewClient создаёт клиент поверх терминала
func NewClient(term terminal.Terminal, cfg Config, log *utils.Logger) *Client {
	def := DefaultConfig()
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.LoginTimeout <= 0 {
		cfg.LoginTimeout = def.LoginTimeout
	}
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = def.CloseTimeout
	}
	if log == nil {
		log = utils.L()
	}
	return &Client{
		term: term,
		cfg:  cfg,
		log:  log.WithComponent("session"),
	}
}

// initialize запускает терминал и сворачивает его окна
// Вызывается под c.mu
func (c *Client) initialize(ctx context.Context) error {
	if c.initialized {
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancel()
	if err := c.term.Initialize(callCtx); err != nil {
		return classify("initialize", err)
	}
	c.initialized = true

	// Окна терминала сворачиваем сразу: на рабочем столе сервера их копится
	// по одному на слот. Ошибка не мешает сбору.
	minCtx, cancelMin := context.WithTimeout(ctx, c.cfg.CallTimeout)
	defer cancelMin()
	n, err := c.term.MinimizeWindows(minCtx)
	if err != nil {
		c.log.Warn("failed to minimize terminal windows", utils.Err(err))
	} else if n > 0 {
		c.log.Debug("terminal windows minimized", utils.Int("windows", n))
	}

	return nil
}

// Login открывает сессию под счётом identity на сервере endpoint
//
// Если терминал уже авторизован под этим счётом на этом сервере,
// повторный логин не выполняется.
func (c *Client) Login(ctx context.Context, identity, secret, endpoint string) (*Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		// предыдущая сессия не была закрыта вызывающим кодом
		c.closeLocked(c.active)
	}

	if err := c.initialize(ctx); err != nil {
		return nil, err
	}

	log := c.log.With(utils.Login(identity), utils.Server(endpoint))

	sessCtx, cancel := context.WithTimeout(ctx, c.cfg.CallTimeout)
	current, currentServer, err := c.term.CurrentLogin(sessCtx)
	cancel()
	if err != nil {
		// Неизвестное состояние терминала не мешает обычному логину
		log.Debug("failed to query current terminal session", utils.Err(err))
	}

	if err == nil && current == identity && currentServer == endpoint {
		log.Debug("terminal already authenticated, reusing session")
	} else {
		loginCtx, cancelLogin := context.WithTimeout(ctx, c.cfg.LoginTimeout)
		err := c.term.Login(loginCtx, identity, secret, endpoint)
		cancelLogin()
		if err != nil {
			return nil, classify("login", err)
		}
	}

	s := &Session{client: c, identity: identity, endpoint: endpoint}
	c.active = s
	return s, nil
}

// closeLocked завершает сессию терминала. Вызывается под c.mu
func (c *Client) closeLocked(s *Session) error {
	if s.closed {
		return nil
	}
	s.closed = true
	if c.active == s {
		c.active = nil
	}

	// Своё время на закрытие, даже если контекст сбора уже истёк
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.CloseTimeout)
	defer cancel()

	c.initialized = false
	if err := c.term.Shutdown(ctx); err != nil {
		return classify("shutdown", err)
	}
	return nil
}

// Close закрывает активную сессию, если она есть
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return nil
	}
	return c.closeLocked(c.active)
}

// ============================================================
// Session
// ============================================================

// Session - авторизованная сессия одного счёта
type Session struct {
	client   *Client
	identity string
	endpoint string
	closed   bool
}

// Identity возвращает логин сессии
func (s *Session) Identity() string {
	return s.identity
}

func (s *Session) call(ctx context.Context) (context.Context, context.CancelFunc, error) {
	s.client.mu.Lock()
	closed := s.closed
	s.client.mu.Unlock()
	if closed {
		return nil, nil, ErrClosed
	}
	ctx, cancel := context.WithTimeout(ctx, s.client.cfg.CallTimeout)
	return ctx, cancel, nil
}

// AccountInfo получает состояние счёта
func (s *Session) AccountInfo(ctx context.Context) (*terminal.AccountInfo, error) {
	ctx, cancel, err := s.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	info, err := s.client.term.AccountInfo(ctx)
	if err != nil {
		return nil, classify("account info", err)
	}
	return info, nil
}

// OpenPositions получает открытые позиции
func (s *Session) OpenPositions(ctx context.Context) ([]*terminal.Position, error) {
	ctx, cancel, err := s.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	positions, err := s.client.term.Positions(ctx)
	if err != nil {
		return nil, classify("positions", err)
	}
	return positions, nil
}

// DealsInRange получает историю сделок за [start, end]
func (s *Session) DealsInRange(ctx context.Context, start, end time.Time) ([]*terminal.Deal, error) {
	ctx, cancel, err := s.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	deals, err := s.client.term.DealsInRange(ctx, start, end)
	if err != nil {
		return nil, classify("deals", err)
	}
	return deals, nil
}

// Close завершает сессию. Повторный вызов ничего не делает.
func (s *Session) Close() error {
	s.client.mu.Lock()
	defer s.client.mu.Unlock()
	return s.client.closeLocked(s)
}
