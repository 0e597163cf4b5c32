package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"collector/internal/models"
)

// Ошибки репозитория счетов
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrInvalidOutcome  = errors.New("invalid collection outcome")

	// ErrAccountSuspended - счёт приостановлен, пока шёл сбор; исход отброшен
	ErrAccountSuspended = errors.New("account suspended during collection")
)

// maxErrorLength - предел длины last_error
const maxErrorLength = 1000

// accountColumns - колонки trading_accounts в порядке scanAccount
const accountColumns = `a.id, a.login, a.server, a.label, a.platform, a.status, a.connected,
		a.balance, a.equity, a.margin, a.free_margin, a.margin_level, a.open_trades,
		a.open_pl, a.day_pl, a.week_pl, a.month_pl, a.total_pl,
		a.last_heartbeat, a.last_error, a.last_snapshot_at, a.created_at, a.updated_at`

// AccountRepository - работа с таблицами trading_accounts и account_snapshots
type AccountRepository struct {
	db *sql.DB
}

// NewAccountRepository создает новый экземпляр репозитория
func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAccount(row scanner, acc *models.Account, extra ...interface{}) error {
	dest := []interface{}{
		&acc.ID, &acc.Login, &acc.Server, &acc.Label, &acc.Platform, &acc.Status, &acc.Connected,
		&acc.Balance, &acc.Equity, &acc.Margin, &acc.FreeMargin, &acc.MarginLevel, &acc.OpenTrades,
		&acc.OpenPL, &acc.DayPL, &acc.WeekPL, &acc.MonthPL, &acc.TotalPL,
		&acc.LastHeartbeat, &acc.LastError, &acc.LastSnapshotAt, &acc.CreatedAt, &acc.UpdatedAt,
	}
	return row.Scan(append(dest, extra...)...)
}

// FetchEligible возвращает счета для очередного цикла сбора вместе с
// зашифрованными паролями
//
// Порядок: давно не собиравшиеся первыми, никогда не собиравшиеся - в самом начале.
func (r *AccountRepository) FetchEligible(ctx context.Context) ([]*models.AccountWithCredential, error) {
	query := `
		SELECT ` + accountColumns + `, c.encrypted_password
		FROM trading_accounts a
		JOIN trading_account_credentials c ON c.account_id = a.id
		WHERE a.status <> $1
		ORDER BY a.last_heartbeat ASC NULLS FIRST, a.id ASC`

	rows, err := r.db.QueryContext(ctx, query, models.AccountStatusSuspended)
	if err != nil {
		return nil, fmt.Errorf("fetch eligible accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.AccountWithCredential
	for rows.Next() {
		acc := &models.AccountWithCredential{}
		if err := scanAccount(rows, &acc.Account, &acc.EncryptedPassword); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch eligible accounts: %w", err)
	}

	return accounts, nil
}

// GetByID возвращает счёт по идентификатору
func (r *AccountRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM trading_accounts a WHERE a.id = $1`

	acc := &models.Account{}
	if err := scanAccount(r.db.QueryRowContext(ctx, query, id), acc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return acc, nil
}

// List возвращает все счета (включая приостановленные)
func (r *AccountRepository) List(ctx context.Context) ([]*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM trading_accounts a ORDER BY a.label ASC, a.id ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		acc := &models.Account{}
		if err := scanAccount(rows, acc); err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}

	return accounts, rows.Err()
}

// ApplyOutcome записывает результат сбора одной транзакцией
//
// Успех: обновляются все поля состояния, heartbeat и время снимка,
// last_error очищается, добавляется ровно один снимок.
// Ошибка: обновляются только status, connected=false и last_error,
// прежние значения баланса и P/L остаются.
// Счёт, приостановленный во время сбора, не трогается: ErrAccountSuspended.
func (r *AccountRepository) ApplyOutcome(ctx context.Context, outcome *models.CollectionOutcome) (err error) {
	if outcome == nil || outcome.AccountID == "" {
		return ErrInvalidOutcome
	}
	switch outcome.Status {
	case models.AccountStatusConnected, models.AccountStatusDisconnected, models.AccountStatusError:
	default:
		return fmt.Errorf("%w: unexpected status %q", ErrInvalidOutcome, outcome.Status)
	}
	if outcome.Status == models.AccountStatusConnected && outcome.State == nil {
		return fmt.Errorf("%w: connected outcome without state", ErrInvalidOutcome)
	}

	updatedAt := outcome.FinishedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if outcome.Succeeded() {
		err = r.applySuccess(ctx, tx, outcome.AccountID, outcome.State, updatedAt)
	} else {
		err = r.applyFailure(ctx, tx, outcome, updatedAt)
	}
	if err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *AccountRepository) applySuccess(ctx context.Context, tx *sql.Tx, accountID string, s *models.LiveState, updatedAt time.Time) error {
	heartbeat := s.CollectedAt.UTC()

	query := `
		UPDATE trading_accounts
		SET status = $1, connected = TRUE,
			balance = $2, equity = $3, margin = $4, free_margin = $5, margin_level = $6,
			open_trades = $7, open_pl = $8,
			day_pl = $9, week_pl = $10, month_pl = $11, total_pl = $12,
			last_heartbeat = $13, last_snapshot_at = $13, last_error = '',
			updated_at = $14
		WHERE id = $15 AND status <> $16`

	result, err := tx.ExecContext(ctx, query,
		models.AccountStatusConnected,
		s.Balance, s.Equity, s.Margin, s.FreeMargin, s.MarginLevel,
		s.OpenTrades, s.OpenPL,
		s.DayPL, s.WeekPL, s.MonthPL, s.TotalPL,
		heartbeat,
		updatedAt,
		accountID,
		models.AccountStatusSuspended,
	)
	if err != nil {
		return fmt.Errorf("update account state: %w", err)
	}
	if err := checkAffected(ctx, tx, result, accountID); err != nil {
		return err
	}

	snap := models.SnapshotFromState(accountID, s)
	snap.CapturedAt = heartbeat
	if err := insertSnapshot(ctx, tx, snap); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

func (r *AccountRepository) applyFailure(ctx context.Context, tx *sql.Tx, o *models.CollectionOutcome, updatedAt time.Time) error {
	query := `
		UPDATE trading_accounts
		SET status = $1, connected = FALSE, last_error = $2, updated_at = $3
		WHERE id = $4 AND status <> $5`

	result, err := tx.ExecContext(ctx, query,
		o.Status, truncateError(o.Error), updatedAt, o.AccountID, models.AccountStatusSuspended)
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}
	return checkAffected(ctx, tx, result, o.AccountID)
}

// truncateError обрезает сообщение до maxErrorLength байт по границе руны:
// PostgreSQL не примет в TEXT разрезанный UTF-8
func truncateError(msg string) string {
	if len(msg) <= maxErrorLength {
		return msg
	}
	cut := maxErrorLength
	for cut > 0 && !utf8.RuneStart(msg[cut]) {
		cut--
	}
	return msg[:cut]
}

// checkAffected различает отсутствующий и приостановленный счёт,
// если UPDATE не затронул ни одной строки
func checkAffected(ctx context.Context, tx *sql.Tx, result sql.Result, accountID string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected > 0 {
		return nil
	}

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM trading_accounts WHERE id = $1`, accountID).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrAccountNotFound
	case err != nil:
		return fmt.Errorf("check account status: %w", err)
	case status == models.AccountStatusSuspended:
		return ErrAccountSuspended
	}
	return ErrAccountNotFound
}
