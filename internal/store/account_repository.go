package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"coin-miner/pkg/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Код ошибки PostgreSQL для нарушения уникального ограничения
const uniqueViolationCode = "23505"

// accountRepository реализует AccountRepository
type accountRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewAccountRepository создает новый репозиторий аккаунтов
func NewAccountRepository(db *pgxpool.Pool, logger *zap.Logger) AccountRepository {
	return &accountRepository{
		db:     db,
		logger: logger,
	}
}

const accountColumns = `id, username, bonus_accrued, energy, max_energy, energy_updated_at,
	       click_power, current_boost, mining_cycle_active, cycle_started_at,
	       referral_code, referred_by, referral_count, kyc_status,
	       last_leaderboard_reward_at, version, created_at, updated_at`

// Create создает новый аккаунт. ID поставляет внешний слой аутентификации.
// Нарушение уникальности referral_code возвращается как ErrReferralCodeTaken.
func (r *accountRepository) Create(ctx context.Context, acc *models.Account) error {
	query := `
		INSERT INTO accounts (id, username, bonus_accrued, energy, max_energy, energy_updated_at,
		                      click_power, current_boost, mining_cycle_active, cycle_started_at,
		                      referral_code, referred_by, referral_count, kyc_status,
		                      last_leaderboard_reward_at, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	now := time.Now()
	acc.CreatedAt = now
	acc.UpdatedAt = now
	if acc.EnergyUpdatedAt.IsZero() {
		acc.EnergyUpdatedAt = now
	}

	// Устанавливаем значения по умолчанию
	if acc.MaxEnergy == 0 {
		acc.MaxEnergy = models.DefaultMaxEnergy
	}
	if acc.ClickPower == 0 {
		acc.ClickPower = models.DefaultClickPower
	}
	if acc.CurrentBoost == 0 {
		acc.CurrentBoost = models.DefaultBoost
	}
	if acc.KYCStatus == "" {
		acc.KYCStatus = models.KYCStatusNone
	}
	acc.Version = 1

	_, err := r.db.Exec(ctx, query,
		acc.ID, acc.Username, acc.BonusAccrued, acc.Energy, acc.MaxEnergy, acc.EnergyUpdatedAt,
		acc.ClickPower, acc.CurrentBoost, acc.MiningCycleActive, acc.CycleStartedAt,
		acc.ReferralCode, acc.ReferredBy, acc.ReferralCount, acc.KYCStatus,
		acc.LastLeaderboardRewardAt, acc.Version, acc.CreatedAt, acc.UpdatedAt,
	)

	if err != nil {
		if isReferralCodeViolation(err) {
			return models.ErrReferralCodeTaken
		}
		return fmt.Errorf("ошибка создания аккаунта: %w", err)
	}

	r.logger.Info("аккаунт создан",
		zap.Int64("account_id", acc.ID),
		zap.String("username", acc.Username))

	return nil
}

// GetByID получает аккаунт по ID
func (r *accountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`

	acc, err := r.scanAccount(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("ошибка получения аккаунта по ID: %w", err)
	}

	return acc, nil
}

// GetByReferralCode получает аккаунт по реферальному коду
func (r *accountRepository) GetByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE referral_code = $1`

	acc, err := r.scanAccount(r.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrAccountNotFound
		}
		return nil, fmt.Errorf("ошибка получения аккаунта по реферальному коду: %w", err)
	}

	return acc, nil
}

// Update сохраняет аккаунт с проверкой версии. Запись применяется только
// если версия в базе равна прочитанной; иначе возвращается ErrVersionConflict
// и вызывающий сервис повторяет операцию целиком.
func (r *accountRepository) Update(ctx context.Context, acc *models.Account) error {
	query := `
		UPDATE accounts
		SET username = $3, bonus_accrued = $4, energy = $5, max_energy = $6, energy_updated_at = $7,
		    click_power = $8, current_boost = $9, mining_cycle_active = $10, cycle_started_at = $11,
		    referral_code = $12, referred_by = $13, referral_count = $14, kyc_status = $15,
		    last_leaderboard_reward_at = $16, version = version + 1, updated_at = $17
		WHERE id = $1 AND version = $2`

	acc.UpdatedAt = time.Now()

	result, err := r.db.Exec(ctx, query,
		acc.ID, acc.Version,
		acc.Username, acc.BonusAccrued, acc.Energy, acc.MaxEnergy, acc.EnergyUpdatedAt,
		acc.ClickPower, acc.CurrentBoost, acc.MiningCycleActive, acc.CycleStartedAt,
		acc.ReferralCode, acc.ReferredBy, acc.ReferralCount, acc.KYCStatus,
		acc.LastLeaderboardRewardAt, acc.UpdatedAt,
	)

	if err != nil {
		if isReferralCodeViolation(err) {
			return models.ErrReferralCodeTaken
		}
		return fmt.Errorf("ошибка обновления аккаунта: %w", err)
	}

	if result.RowsAffected() == 0 {
		r.logger.Debug("конфликт версий при обновлении аккаунта",
			zap.Int64("account_id", acc.ID),
			zap.Int64("version", acc.Version))
		return models.ErrVersionConflict
	}

	acc.Version++
	return nil
}

// GetTopByReferrals получает реферальный рейтинг
func (r *accountRepository) GetTopByReferrals(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	query := `
		SELECT id, username, referral_count, bonus_accrued
		FROM accounts
		WHERE referral_count > 0
		ORDER BY referral_count DESC, created_at ASC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения реферального рейтинга: %w", err)
	}
	defer rows.Close()

	var entries []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.AccountID, &e.Username, &e.ReferralCount, &e.BonusAccrued); err != nil {
			return nil, fmt.Errorf("ошибка сканирования строки рейтинга: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, nil
}

// scanAccount читает аккаунт из строки результата
func (r *accountRepository) scanAccount(row pgx.Row) (*models.Account, error) {
	acc := &models.Account{}
	err := row.Scan(
		&acc.ID, &acc.Username, &acc.BonusAccrued, &acc.Energy, &acc.MaxEnergy, &acc.EnergyUpdatedAt,
		&acc.ClickPower, &acc.CurrentBoost, &acc.MiningCycleActive, &acc.CycleStartedAt,
		&acc.ReferralCode, &acc.ReferredBy, &acc.ReferralCount, &acc.KYCStatus,
		&acc.LastLeaderboardRewardAt, &acc.Version, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// isReferralCodeViolation проверяет, что ошибка вызвана коллизией
// уникального индекса реферального кода
func isReferralCodeViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolationCode && strings.Contains(pgErr.ConstraintName, "referral_code")
}
