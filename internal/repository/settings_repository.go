package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Ошибки репозитория настроек
var (
	ErrSettingNotFound = errors.New("setting not found")
)

// SettingsRepository - работа с таблицей collector_settings (ключ/значение)
type SettingsRepository struct {
	db *sql.DB
}

// NewSettingsRepository создает новый экземпляр репозитория
func NewSettingsRepository(db *sql.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get возвращает значение настройки
func (r *SettingsRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM collector_settings WHERE key = $1`, key,
	).Scan(&value)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrSettingNotFound
		}
		return "", err
	}
	return value, nil
}

// Set создаёт или обновляет настройку
func (r *SettingsRepository) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO collector_settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

	_, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC())
	return err
}
