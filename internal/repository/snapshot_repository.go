package repository

import (
	"context"
	"database/sql"

	"collector/internal/models"
)

// SnapshotRepository - чтение таблицы account_snapshots
//
// Запись снимков выполняет только AccountRepository.ApplyOutcome
// в одной транзакции с обновлением счёта.
type SnapshotRepository struct {
	db *sql.DB
}

// NewSnapshotRepository создает новый экземпляр репозитория
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertSnapshot(ctx context.Context, ex execer, s *models.Snapshot) error {
	query := `
		INSERT INTO account_snapshots (
			account_id, captured_at, balance, equity, margin, free_margin, margin_level,
			open_trades, open_pl, day_pl, week_pl, month_pl, total_pl
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := ex.ExecContext(ctx, query,
		s.AccountID, s.CapturedAt, s.Balance, s.Equity, s.Margin, s.FreeMargin, s.MarginLevel,
		s.OpenTrades, s.OpenPL, s.DayPL, s.WeekPL, s.MonthPL, s.TotalPL,
	)
	return err
}

// ListByAccount возвращает последние снимки счёта, новые первыми
func (r *SnapshotRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.Snapshot, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		SELECT id, account_id, captured_at, balance, equity, margin, free_margin, margin_level,
			open_trades, open_pl, day_pl, week_pl, month_pl, total_pl
		FROM account_snapshots
		WHERE account_id = $1
		ORDER BY captured_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snapshots []*models.Snapshot
	for rows.Next() {
		s := &models.Snapshot{}
		if err := rows.Scan(
			&s.ID, &s.AccountID, &s.CapturedAt, &s.Balance, &s.Equity, &s.Margin, &s.FreeMargin, &s.MarginLevel,
			&s.OpenTrades, &s.OpenPL, &s.DayPL, &s.WeekPL, &s.MonthPL, &s.TotalPL,
		); err != nil {
			return nil, err
		}
		snapshots = append(snapshots, s)
	}

	return snapshots, rows.Err()
}

// CountByAccount возвращает количество снимков счёта
func (r *SnapshotRepository) CountByAccount(ctx context.Context, accountID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM account_snapshots WHERE account_id = $1`, accountID,
	).Scan(&n)
	return n, err
}
