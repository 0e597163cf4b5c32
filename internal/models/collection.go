package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollectionJob - задание воркеру на сбор одного счёта.
// Сериализуется в JSON при передаче дочернему процессу.
type CollectionJob struct {
	AccountID         string `json:"account_id"`
	Login             string `json:"login"`
	Server            string `json:"server"`
	Label             string `json:"label,omitempty"`
	EncryptedPassword string `json:"encrypted_password"`
}

// LiveState - состояние счёта, снятое в одном успешном сборе
type LiveState struct {
	Balance     decimal.Decimal `json:"balance"`
	Equity      decimal.Decimal `json:"equity"`
	Margin      decimal.Decimal `json:"margin"`
	FreeMargin  decimal.Decimal `json:"free_margin"`
	MarginLevel decimal.Decimal `json:"margin_level"`
	OpenTrades  int             `json:"open_trades"`
	OpenPL      decimal.Decimal `json:"open_pl"`
	DayPL       decimal.Decimal `json:"day_pl"`
	WeekPL      decimal.Decimal `json:"week_pl"`
	MonthPL     decimal.Decimal `json:"month_pl"`
	TotalPL     decimal.Decimal `json:"total_pl"`
	CollectedAt time.Time       `json:"collected_at"` // становится last_heartbeat
}

// CollectionOutcome - результат сбора одного счёта в одном цикле
type CollectionOutcome struct {
	AccountID string        `json:"account_id"`
	Status    string        `json:"status"` // CONNECTED | DISCONNECTED | ERROR
	State     *LiveState    `json:"state,omitempty"`
	Error     string        `json:"error,omitempty"`
	Worker    int           `json:"worker"`
	Duration  time.Duration `json:"duration"`
	// FinishedAt - момент завершения сбора, пишется в updated_at
	FinishedAt time.Time `json:"finished_at"`
}

// Succeeded возвращает true если сбор дал состояние для записи
func (o *CollectionOutcome) Succeeded() bool {
	return o.Status == AccountStatusConnected && o.State != nil
}

// FailedOutcome строит результат без состояния
func FailedOutcome(job CollectionJob, status string, err error) *CollectionOutcome {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return &CollectionOutcome{
		AccountID:  job.AccountID,
		Status:     status,
		Error:      msg,
		FinishedAt: time.Now().UTC(),
	}
}

// CycleReport - итог одного цикла сбора
type CycleReport struct {
	CycleID       string        `json:"cycle_id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Eligible      int           `json:"eligible"`
	Attempted     int           `json:"attempted"`
	Connected     int           `json:"connected"`
	Disconnected  int           `json:"disconnected"`
	Errored       int           `json:"errored"`
	PersistFailed int           `json:"persist_failed"`
	Discarded     int           `json:"discarded"` // счёт приостановлен во время сбора
	Skipped       int           `json:"skipped"` // не запущены из-за остановки
}

// Failed возвращает количество неуспешных сборов
func (r *CycleReport) Failed() int {
	return r.Disconnected + r.Errored
}

// Record учитывает результат сбора в отчёте
func (r *CycleReport) Record(o *CollectionOutcome) {
	r.Attempted++
	switch o.Status {
	case AccountStatusConnected:
		r.Connected++
	case AccountStatusDisconnected:
		r.Disconnected++
	default:
		r.Errored++
	}
}
