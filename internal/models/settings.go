package models

import "time"

// Setting - запись служебной таблицы collector_settings
type Setting struct {
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Ключи настроек
const (
	// SettingKeyFingerprint - bcrypt-отпечаток ключа шифрования паролей
	SettingKeyFingerprint = "encryption_key_fingerprint"
)
