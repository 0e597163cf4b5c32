package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot - неизменяемая историческая запись состояния счёта.
// Создаётся ровно одна на каждый успешный сбор.
type Snapshot struct {
	ID          int64           `json:"id" db:"id"`
	AccountID   string          `json:"account_id" db:"account_id"`
	CapturedAt  time.Time       `json:"captured_at" db:"captured_at"`
	Balance     decimal.Decimal `json:"balance" db:"balance"`
	Equity      decimal.Decimal `json:"equity" db:"equity"`
	Margin      decimal.Decimal `json:"margin" db:"margin"`
	FreeMargin  decimal.Decimal `json:"free_margin" db:"free_margin"`
	MarginLevel decimal.Decimal `json:"margin_level" db:"margin_level"`
	OpenTrades  int             `json:"open_trades" db:"open_trades"`
	OpenPL      decimal.Decimal `json:"open_pl" db:"open_pl"`
	DayPL       decimal.Decimal `json:"day_pl" db:"day_pl"`
	WeekPL      decimal.Decimal `json:"week_pl" db:"week_pl"`
	MonthPL     decimal.Decimal `json:"month_pl" db:"month_pl"`
	TotalPL     decimal.Decimal `json:"total_pl" db:"total_pl"`
}

// SnapshotFromState строит снимок из собранного состояния
func SnapshotFromState(accountID string, s *LiveState) *Snapshot {
	return &Snapshot{
		AccountID:   accountID,
		CapturedAt:  s.CollectedAt,
		Balance:     s.Balance,
		Equity:      s.Equity,
		Margin:      s.Margin,
		FreeMargin:  s.FreeMargin,
		MarginLevel: s.MarginLevel,
		OpenTrades:  s.OpenTrades,
		OpenPL:      s.OpenPL,
		DayPL:       s.DayPL,
		WeekPL:      s.WeekPL,
		MonthPL:     s.MonthPL,
		TotalPL:     s.TotalPL,
	}
}
