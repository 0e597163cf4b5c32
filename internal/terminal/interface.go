// Package terminal описывает внешний торговый терминал как непрозрачный API
// и предоставляет HTTP-мост к нему.
package terminal

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Terminal - низкоуровневый API одного экземпляра терминала
//
// Экземпляр держит не более одной авторизованной сессии. Методы не
// потокобезопасны относительно друг друга: каждым терминалом владеет
// ровно один слот пула.
type Terminal interface {
	// Initialize запускает/подключает терминал
	Initialize(ctx context.Context) error

	// MinimizeWindows сворачивает окна терминала, возвращает их количество
	MinimizeWindows(ctx context.Context) (int, error)

	// CurrentLogin возвращает логин и сервер текущей сессии ("" если сессии нет)
	CurrentLogin(ctx context.Context) (login, server string, err error)

	// Login авторизует терминал под счётом
	Login(ctx context.Context, login, password, server string) error

	// AccountInfo получает состояние счёта
	AccountInfo(ctx context.Context) (*AccountInfo, error)

	// Positions получает открытые позиции
	Positions(ctx context.Context) ([]*Position, error)

	// DealsInRange получает историю сделок за [from, to]
	DealsInRange(ctx context.Context, from, to time.Time) ([]*Deal, error)

	// Shutdown завершает сессию терминала
	Shutdown(ctx context.Context) error
}

// AccountInfo содержит состояние счёта
type AccountInfo struct {
	Login       string          `json:"login"`
	Server      string          `json:"server"`
	Currency    string          `json:"currency"`
	Balance     decimal.Decimal `json:"balance"`
	Equity      decimal.Decimal `json:"equity"`
	Margin      decimal.Decimal `json:"margin"`
	FreeMargin  decimal.Decimal `json:"margin_free"`
	MarginLevel decimal.Decimal `json:"margin_level"` // 0 без открытых позиций
	Profit      decimal.Decimal `json:"profit"`       // плавающий P/L
}

// Position представляет открытую позицию
type Position struct {
	Ticket    int64           `json:"ticket"`
	Symbol    string          `json:"symbol"`
	Type      int             `json:"type"` // 0 buy, 1 sell
	Volume    decimal.Decimal `json:"volume"`
	PriceOpen decimal.Decimal `json:"price_open"`
	Profit    decimal.Decimal `json:"profit"`
	Swap      decimal.Decimal `json:"swap"`
}

// DealType - тип сделки в истории
type DealType int

// Типы сделок. Торговые только Buy и Sell, остальное - движения по балансу.
const (
	DealTypeBuy        DealType = 0
	DealTypeSell       DealType = 1
	DealTypeBalance    DealType = 2
	DealTypeCredit     DealType = 3
	DealTypeCharge     DealType = 4
	DealTypeCorrection DealType = 5
	DealTypeBonus      DealType = 6
	DealTypeCommission DealType = 7
)

// IsTrade возвращает true для торговых сделок
func (t DealType) IsTrade() bool {
	return t == DealTypeBuy || t == DealTypeSell
}

// DealEntry - направление сделки относительно позиции
type DealEntry int

const (
	DealEntryIn    DealEntry = 0 // открытие
	DealEntryOut   DealEntry = 1 // закрытие
	DealEntryInOut DealEntry = 2 // разворот
	DealEntryOutBy DealEntry = 3 // закрытие встречной позицией
)

// Realizes возвращает true если сделка фиксирует результат
func (e DealEntry) Realizes() bool {
	return e == DealEntryOut || e == DealEntryInOut || e == DealEntryOutBy
}

// Deal - запись истории сделок
type Deal struct {
	Ticket     int64
	Order      int64
	Time       time.Time // нулевое значение если терминал не отдал время
	Type       DealType
	Entry      DealEntry
	Symbol     string
	Volume     decimal.Decimal
	Profit     decimal.Decimal
	Commission decimal.Decimal
	Swap       decimal.Decimal
	Fee        decimal.Decimal
}

// Result возвращает вклад сделки в реализованный P/L
func (d *Deal) Result() decimal.Decimal {
	return d.Profit.Add(d.Commission).Add(d.Swap).Add(d.Fee)
}

// ErrLoginRejected - терминал отказал в авторизации
// (неверные учётные данные или недоступный торговый сервер)
var ErrLoginRejected = errors.New("login rejected")

// TerminalError представляет ошибку терминала
type TerminalError struct {
	Endpoint string
	Op       string
	Code     string
	Message  string
	Original error
}

func (e *TerminalError) Error() string {
	msg := "terminal " + e.Op + ": " + e.Message
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	return msg
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *TerminalError) Unwrap() error {
	return e.Original
}
