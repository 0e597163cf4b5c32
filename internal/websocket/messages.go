package websocket

import (
	"time"

	"github.com/shopspring/decimal"

	"collector/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeAccountUpdate - исход сбора одного счёта
	// Отправляется после успешной записи исхода в хранилище
	MessageTypeAccountUpdate MessageType = "accountUpdate"

	// MessageTypeCycleReport - итог цикла сбора
	MessageTypeCycleReport MessageType = "cycleReport"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// AccountUpdateMessage - сообщение об обновлении счёта
//
// Никогда не содержит учётных данных: ни пароля, ни его шифротекста.
type AccountUpdateMessage struct {
	BaseMessage
	Data *AccountUpdateData `json:"data"`
}

// AccountUpdateData - данные обновления счёта
type AccountUpdateData struct {
	AccountID  string `json:"account_id"`
	Status     string `json:"status"`
	Connected  bool   `json:"connected"`
	Error      string `json:"error,omitempty"`
	Worker     int    `json:"worker"`
	DurationMs int64  `json:"duration_ms"`

	// Заполняются только для CONNECTED
	Balance    *decimal.Decimal `json:"balance,omitempty"`
	Equity     *decimal.Decimal `json:"equity,omitempty"`
	OpenTrades int              `json:"open_trades,omitempty"`
	OpenPL     *decimal.Decimal `json:"open_pl,omitempty"`
	DayPL      *decimal.Decimal `json:"day_pl,omitempty"`
	WeekPL     *decimal.Decimal `json:"week_pl,omitempty"`
	MonthPL    *decimal.Decimal `json:"month_pl,omitempty"`
	TotalPL    *decimal.Decimal `json:"total_pl,omitempty"`

	CollectedAt *time.Time `json:"collected_at,omitempty"`
}

// NewAccountUpdateMessage создаёт сообщение из исхода сбора
func NewAccountUpdateMessage(o *models.CollectionOutcome) *AccountUpdateMessage {
	data := &AccountUpdateData{
		AccountID:  o.AccountID,
		Status:     o.Status,
		Connected:  o.Succeeded(),
		Error:      o.Error,
		Worker:     o.Worker,
		DurationMs: o.Duration.Milliseconds(),
	}

	if s := o.State; o.Succeeded() {
		data.Balance = &s.Balance
		data.Equity = &s.Equity
		data.OpenTrades = s.OpenTrades
		data.OpenPL = &s.OpenPL
		data.DayPL = &s.DayPL
		data.WeekPL = &s.WeekPL
		data.MonthPL = &s.MonthPL
		data.TotalPL = &s.TotalPL
		data.CollectedAt = &s.CollectedAt
	}

	return &AccountUpdateMessage{
		BaseMessage: BaseMessage{Type: MessageTypeAccountUpdate, Timestamp: time.Now()},
		Data:        data,
	}
}

// CycleReportMessage - сообщение с итогом цикла
type CycleReportMessage struct {
	BaseMessage
	Data *models.CycleReport `json:"data"`
}

// NewCycleReportMessage создаёт сообщение об итоге цикла
func NewCycleReportMessage(r *models.CycleReport) *CycleReportMessage {
	return &CycleReportMessage{
		BaseMessage: BaseMessage{Type: MessageTypeCycleReport, Timestamp: time.Now()},
		Data:        r,
	}
}
