package store

import (
	"context"
	"fmt"
	"time"

	"coin-miner/internal/config"
	"coin-miner/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Store представляет интерфейс для работы с базой данных
type Store interface {
	Account() AccountRepository
	Referral() ReferralRepository
	Task() TaskRepository
	DB() *pgxpool.Pool
	Close() error
}

// store реализует интерфейс Store
type store struct {
	db       *pgxpool.Pool
	logger   *zap.Logger
	account  AccountRepository
	referral ReferralRepository
	task     TaskRepository
}

// AccountRepository интерфейс для работы с аккаунтами.
// Update выполняет оптимистичную блокировку: запись применяется только если
// версия в базе совпадает с прочитанной, иначе возвращается ErrVersionConflict.
type AccountRepository interface {
	Create(ctx context.Context, acc *models.Account) error
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	GetByReferralCode(ctx context.Context, code string) (*models.Account, error)
	Update(ctx context.Context, acc *models.Account) error
	GetTopByReferrals(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

// ReferralRepository интерфейс для работы с реферальными записями
type ReferralRepository interface {
	Create(ctx context.Context, rec *models.ReferralRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReferralRecord, error)
	Find(ctx context.Context, referrerID, referredID int64) (*models.ReferralRecord, error)
	ListByReferrer(ctx context.Context, referrerID int64) ([]*models.ReferralRecord, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, confirmedAt *time.Time) error
	Reward(ctx context.Context, id uuid.UUID, amount int64, now time.Time) (*models.ReferralRecord, error)
	GetStats(ctx context.Context, referrerID int64, rewardAmount int64) (*models.ReferralStats, error)
}

// TaskRepository интерфейс для работы с прогрессом заданий
type TaskRepository interface {
	Get(ctx context.Context, accountID int64, taskID string) (*models.TaskProgress, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*models.TaskProgress, error)
	ClaimReward(ctx context.Context, accountID int64, taskID string, amount int64, now time.Time) error
}

// NewStore создает новое подключение к базе данных
func NewStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Создание пула подключений
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}

	// Настройка пула
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	// Создание пула
	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	// Проверка подключения
	if err := db.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ошибка проверки подключения к базе данных: %w", err)
	}

	logger.Info("успешное подключение к базе данных PostgreSQL")

	s := &store{
		db:     db,
		logger: logger,
	}

	// Инициализация репозиториев
	s.account = NewAccountRepository(db, logger)
	s.referral = NewReferralRepository(db, logger)
	s.task = NewTaskRepository(db, logger)

	return s, nil
}

// Account возвращает репозиторий аккаунтов
func (s *store) Account() AccountRepository {
	return s.account
}

// Referral возвращает репозиторий рефералов
func (s *store) Referral() ReferralRepository {
	return s.referral
}

// Task возвращает репозиторий заданий
func (s *store) Task() TaskRepository {
	return s.task
}

// DB возвращает подключение к базе данных
func (s *store) DB() *pgxpool.Pool {
	return s.db
}

// Close закрывает подключение к базе данных
func (s *store) Close() error {
	s.logger.Info("закрытие подключения к базе данных")
	s.db.Close()
	return nil
}
