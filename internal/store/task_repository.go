package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coin-miner/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// taskRepository реализует TaskRepository
type taskRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewTaskRepository создает новый репозиторий заданий
func NewTaskRepository(db *pgxpool.Pool, logger *zap.Logger) TaskRepository {
	return &taskRepository{
		db:     db,
		logger: logger,
	}
}

// Get получает прогресс аккаунта по заданию
func (r *taskRepository) Get(ctx context.Context, accountID int64, taskID string) (*models.TaskProgress, error) {
	query := `
		SELECT account_id, task_id, completed, reward_claimed, created_at, updated_at
		FROM task_progress
		WHERE account_id = $1 AND task_id = $2`

	p := &models.TaskProgress{}
	err := r.db.QueryRow(ctx, query, accountID, taskID).Scan(
		&p.AccountID, &p.TaskID, &p.Completed, &p.RewardClaimed, &p.CreatedAt, &p.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrTaskNotCompleted
		}
		return nil, fmt.Errorf("ошибка получения прогресса задания: %w", err)
	}

	return p, nil
}

// ListByAccount получает прогресс аккаунта по всем заданиям
func (r *taskRepository) ListByAccount(ctx context.Context, accountID int64) ([]*models.TaskProgress, error) {
	query := `
		SELECT account_id, task_id, completed, reward_claimed, created_at, updated_at
		FROM task_progress
		WHERE account_id = $1
		ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения прогресса заданий: %w", err)
	}
	defer rows.Close()

	var progress []*models.TaskProgress
	for rows.Next() {
		p := &models.TaskProgress{}
		err := rows.Scan(&p.AccountID, &p.TaskID, &p.Completed, &p.RewardClaimed, &p.CreatedAt, &p.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования прогресса задания: %w", err)
		}
		progress = append(progress, p)
	}

	return progress, nil
}

// ClaimReward атомарно отмечает задание выполненным и зачисляет разовую
// награду. Compare-and-swap по reward_claimed делает начисление идемпотентным:
// повторный вызов получает ErrTaskAlreadyClaimed и не меняет баланс.
func (r *taskRepository) ClaimReward(ctx context.Context, accountID int64, taskID string, amount int64, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("ошибка открытия транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO task_progress (account_id, task_id, completed, reward_claimed, created_at, updated_at)
		VALUES ($1, $2, true, true, $3, $3)
		ON CONFLICT (account_id, task_id) DO UPDATE
		SET completed = true, reward_claimed = true, updated_at = $3
		WHERE task_progress.reward_claimed = false`

	result, err := tx.Exec(ctx, query, accountID, taskID, now)
	if err != nil {
		return fmt.Errorf("ошибка отметки задания: %w", err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrTaskAlreadyClaimed
	}

	creditQuery := `
		UPDATE accounts
		SET bonus_accrued = bonus_accrued + $2, version = version + 1, updated_at = $3
		WHERE id = $1`

	credit, err := tx.Exec(ctx, creditQuery, accountID, amount, now)
	if err != nil {
		return fmt.Errorf("ошибка зачисления награды за задание: %w", err)
	}
	if credit.RowsAffected() == 0 {
		return models.ErrAccountNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции награды за задание: %w", err)
	}

	r.logger.Info("начислена награда за задание",
		zap.Int64("account_id", accountID),
		zap.String("task_id", taskID),
		zap.Int64("amount", amount))

	return nil
}
