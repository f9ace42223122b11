package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coin-miner/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// referralRepository реализует ReferralRepository
type referralRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewReferralRepository создает новый репозиторий рефералов
func NewReferralRepository(db *pgxpool.Pool, logger *zap.Logger) ReferralRepository {
	return &referralRepository{
		db:     db,
		logger: logger,
	}
}

const referralColumns = `id, referrer_id, referred_id, status, reward_given, created_at, confirmed_at`

// Create создает новую реферальную запись. Уникальный индекс по паре
// (referrer_id, referred_id) гарантирует не более одной записи на пару;
// его нарушение возвращается как ErrDuplicateReferral.
func (r *referralRepository) Create(ctx context.Context, rec *models.ReferralRecord) error {
	query := `
		INSERT INTO referrals (id, referrer_id, referred_id, status, reward_given, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.ReferrerID, rec.ReferredID, rec.Status, rec.RewardGiven, rec.CreatedAt,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return models.ErrDuplicateReferral
		}
		return fmt.Errorf("ошибка создания реферала: %w", err)
	}

	r.logger.Info("создана реферальная запись",
		zap.String("referral_id", rec.ID.String()),
		zap.Int64("referrer_id", rec.ReferrerID),
		zap.Int64("referred_id", rec.ReferredID))

	return nil
}

// GetByID получает реферальную запись по ID
func (r *referralRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReferralRecord, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE id = $1`

	rec, err := scanReferral(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrReferralNotFound
		}
		return nil, fmt.Errorf("ошибка получения реферала: %w", err)
	}

	return rec, nil
}

// Find ищет запись для пары (referrer, referred)
func (r *referralRepository) Find(ctx context.Context, referrerID, referredID int64) (*models.ReferralRecord, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE referrer_id = $1 AND referred_id = $2`

	rec, err := scanReferral(r.db.QueryRow(ctx, query, referrerID, referredID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrReferralNotFound
		}
		return nil, fmt.Errorf("ошибка поиска реферала: %w", err)
	}

	return rec, nil
}

// ListByReferrer получает все рефералы приглашающего аккаунта
func (r *referralRepository) ListByReferrer(ctx context.Context, referrerID int64) ([]*models.ReferralRecord, error) {
	query := `SELECT ` + referralColumns + ` FROM referrals WHERE referrer_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, referrerID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рефералов: %w", err)
	}
	defer rows.Close()

	var recs []*models.ReferralRecord
	for rows.Next() {
		rec, err := scanReferral(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования реферала: %w", err)
		}
		recs = append(recs, rec)
	}

	return recs, nil
}

// UpdateStatus обновляет статус реферальной записи.
// Запись со статусом rewarded не трогается: попытка изменить ее
// возвращается как ErrAlreadyRewarded.
func (r *referralRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, confirmedAt *time.Time) error {
	query := `
		UPDATE referrals
		SET status = $2, confirmed_at = $3
		WHERE id = $1 AND status <> $4`

	result, err := r.db.Exec(ctx, query, id, status, confirmedAt, string(models.ReferralStatusRewarded))
	if err != nil {
		return fmt.Errorf("ошибка обновления статуса реферала: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Запись либо отсутствует, либо уже переведена в rewarded
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM referrals WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("ошибка проверки реферала: %w", err)
		}
		if !exists {
			return models.ErrReferralNotFound
		}
		return models.ErrAlreadyRewarded
	}

	return nil
}

// Reward атомарно начисляет награду за реферала: переводит запись в rewarded,
// поднимает reward_given и зачисляет сумму рефереру одной транзакцией.
// Compare-and-swap по reward_given гарантирует ровно одно начисление:
// повторный вызов получает ErrAlreadyRewarded и не меняет баланс.
func (r *referralRepository) Reward(ctx context.Context, id uuid.UUID, amount int64, now time.Time) (*models.ReferralRecord, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия транзакции: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE referrals
		SET status = $2, reward_given = true, confirmed_at = $3
		WHERE id = $1 AND reward_given = false
		RETURNING ` + referralColumns

	rec, err := scanReferral(tx.QueryRow(ctx, query, id, string(models.ReferralStatusRewarded), now))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ошибка начисления награды за реферала: %w", err)
		}
		// CAS не прошел: записи нет либо награда уже выдана
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM referrals WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("ошибка проверки реферала: %w", err)
		}
		if !exists {
			return nil, models.ErrReferralNotFound
		}
		return nil, models.ErrAlreadyRewarded
	}

	creditQuery := `
		UPDATE accounts
		SET bonus_accrued = bonus_accrued + $2, referral_count = referral_count + 1,
		    version = version + 1, updated_at = $3
		WHERE id = $1`

	result, err := tx.Exec(ctx, creditQuery, rec.ReferrerID, amount, now)
	if err != nil {
		return nil, fmt.Errorf("ошибка зачисления награды рефереру: %w", err)
	}
	if result.RowsAffected() == 0 {
		return nil, models.ErrAccountNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("ошибка фиксации транзакции награды: %w", err)
	}

	r.logger.Info("начислена реферальная награда",
		zap.String("referral_id", rec.ID.String()),
		zap.Int64("referrer_id", rec.ReferrerID),
		zap.Int64("amount", amount))

	return rec, nil
}

// GetStats получает статистику рефералов аккаунта
func (r *referralRepository) GetStats(ctx context.Context, referrerID int64, rewardAmount int64) (*models.ReferralStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_referrals,
			COUNT(CASE WHEN status = 'pending' THEN 1 END) AS pending_referrals,
			COUNT(CASE WHEN status = 'confirmed' THEN 1 END) AS confirmed_referrals,
			COUNT(CASE WHEN status = 'rewarded' THEN 1 END) AS rewarded_referrals
		FROM referrals
		WHERE referrer_id = $1`

	stats := &models.ReferralStats{}
	err := r.db.QueryRow(ctx, query, referrerID).Scan(
		&stats.TotalReferrals,
		&stats.PendingReferrals,
		&stats.ConfirmedReferrals,
		&stats.RewardedReferrals,
	)

	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики рефералов: %w", err)
	}

	stats.TotalRewardsEarned = int64(stats.RewardedReferrals) * rewardAmount
	return stats, nil
}

// scanReferral читает реферальную запись из строки результата
func scanReferral(row pgx.Row) (*models.ReferralRecord, error) {
	rec := &models.ReferralRecord{}
	err := row.Scan(
		&rec.ID, &rec.ReferrerID, &rec.ReferredID, &rec.Status,
		&rec.RewardGiven, &rec.CreatedAt, &rec.ConfirmedAt,
	)
	if err != nil {
		return nil, err
	}
	return rec, nil
}
