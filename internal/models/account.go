package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Статусы торгового счёта
const (
	AccountStatusPending      = "PENDING"      // ожидает сбора в текущем цикле
	AccountStatusConnected    = "CONNECTED"    // последний сбор успешен
	AccountStatusDisconnected = "DISCONNECTED" // терминал отклонил логин
	AccountStatusError        = "ERROR"        // любая другая ошибка сбора
	AccountStatusSuspended    = "SUSPENDED"    // отключён администратором, не собирается
)

// Account представляет торговый счёт и его последнее известное состояние
type Account struct {
	ID       string `json:"id" db:"id"`
	Login    string `json:"login" db:"login"`
	Server   string `json:"server" db:"server"`
	Label    string `json:"label" db:"label"`
	Platform string `json:"platform" db:"platform"` // MT5

	Status    string `json:"status" db:"status"`
	Connected bool   `json:"connected" db:"connected"`

	Balance     decimal.Decimal `json:"balance" db:"balance"`
	Equity      decimal.Decimal `json:"equity" db:"equity"`
	Margin      decimal.Decimal `json:"margin" db:"margin"`
	FreeMargin  decimal.Decimal `json:"free_margin" db:"free_margin"`
	MarginLevel decimal.Decimal `json:"margin_level" db:"margin_level"` // %, 0 без открытых позиций
	OpenTrades  int             `json:"open_trades" db:"open_trades"`
	OpenPL      decimal.Decimal `json:"open_pl" db:"open_pl"`
	DayPL       decimal.Decimal `json:"day_pl" db:"day_pl"`
	WeekPL      decimal.Decimal `json:"week_pl" db:"week_pl"`
	MonthPL     decimal.Decimal `json:"month_pl" db:"month_pl"`
	TotalPL     decimal.Decimal `json:"total_pl" db:"total_pl"`

	LastHeartbeat  *time.Time `json:"last_heartbeat,omitempty" db:"last_heartbeat"` // последний успешный контакт
	LastError      string     `json:"last_error,omitempty" db:"last_error"`
	LastSnapshotAt *time.Time `json:"last_snapshot_at,omitempty" db:"last_snapshot_at"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Credential - зашифрованный пароль счёта (ровно один на счёт)
type Credential struct {
	AccountID         string    `json:"account_id" db:"account_id"`
	EncryptedPassword string    `json:"-" db:"encrypted_password"` // base64(nonce||ciphertext), не возвращается в JSON
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// AccountWithCredential - счёт, готовый к постановке в очередь сбора
type AccountWithCredential struct {
	Account
	EncryptedPassword string `json:"-"`
}

// Job формирует задание для воркера. Пароль остаётся зашифрованным.
func (a *AccountWithCredential) Job() CollectionJob {
	return CollectionJob{
		AccountID:         a.ID,
		Login:             a.Login,
		Server:            a.Server,
		Label:             a.Label,
		EncryptedPassword: a.EncryptedPassword,
	}
}

// IsEligible возвращает true если счёт участвует в циклах сбора
func IsEligible(status string) bool {
	return status != AccountStatusSuspended
}
