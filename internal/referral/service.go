package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coin-miner/internal/clock"
	"coin-miner/internal/config"
	"coin-miner/internal/store"
	"coin-miner/pkg/models"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Metrics интерфейс для записи метрик реферальной системы
type Metrics interface {
	RecordAccountCreated()
	RecordReferralTracked()
	RecordReferralRewarded(reward int64)
}

// Service представляет сервис реферальной системы: выдача кодов,
// привязка рефералов и однократное начисление наград.
type Service struct {
	store   store.Store
	clock   clock.Clock
	game    config.GameConfig
	baseURL string
	metrics Metrics
	logger  *zap.Logger
}

// NewService создает новый сервис рефералов
func NewService(st store.Store, clk clock.Clock, game config.GameConfig, baseURL string, metrics Metrics, logger *zap.Logger) *Service {
	return &Service{
		store:   st,
		clock:   clk,
		game:    game,
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// RegisterAccount создает аккаунт при регистрации. ID поставляет внешний
// слой аутентификации. Реферальный код выдается сразу; если регистрация
// пришла по ссылке, привязывается реферальная связь.
func (s *Service) RegisterAccount(ctx context.Context, req *models.CreateAccountRequest) (*models.Account, error) {
	// Повторная регистрация возвращает существующий аккаунт
	existing, err := s.store.Account().GetByID(ctx, req.ID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, models.ErrAccountNotFound) {
		return nil, fmt.Errorf("ошибка проверки аккаунта: %w", err)
	}

	now := s.clock.Now()
	acc := &models.Account{
		ID:              req.ID,
		Username:        req.Username,
		Energy:          s.game.MaxEnergy,
		MaxEnergy:       s.game.MaxEnergy,
		EnergyUpdatedAt: now,
		ClickPower:      s.game.ClickPower,
		CurrentBoost:    models.DefaultBoost,
		KYCStatus:       models.KYCStatusNone,
	}

	// Подбор уникального кода: коллизию сообщает уникальный индекс хранилища
	created := false
	for attempt := 0; attempt < s.game.CodeAttempts; attempt++ {
		code := IssueCode(fmt.Sprintf("%d-%d-%d", req.ID, s.clock.Now().UnixNano(), attempt))
		acc.ReferralCode = &code

		err := s.store.Account().Create(ctx, acc)
		if errors.Is(err, models.ErrReferralCodeTaken) {
			s.logger.Warn("коллизия реферального кода, пробуем снова",
				zap.String("code", code),
				zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, err
		}
		created = true
		break
	}

	if !created {
		return nil, models.ErrCodeSpaceExhausted
	}

	s.metrics.RecordAccountCreated()
	s.logger.Info("создан новый аккаунт",
		zap.Int64("account_id", acc.ID),
		zap.String("username", acc.Username))

	// Привязка по коду пригласившего: доменные отказы не срывают регистрацию
	if req.ReferralCode != "" {
		if _, err := s.TrackReferral(ctx, req.ReferralCode, acc.ID); err != nil {
			s.logger.Warn("реферал при регистрации не привязан",
				zap.Int64("account_id", acc.ID),
				zap.String("referral_code", req.ReferralCode),
				zap.Error(err))
		} else if acc, err = s.store.Account().GetByID(ctx, acc.ID); err != nil {
			return nil, err
		}
	}

	return acc, nil
}

// GetOrIssueCode возвращает реферальный код аккаунта. Код неизменяем после
// выдачи; аккаунтам старого формата без кода он довыдается здесь.
func (s *Service) GetOrIssueCode(ctx context.Context, accountID int64) (string, error) {
	acc, err := s.store.Account().GetByID(ctx, accountID)
	if err != nil {
		return "", err
	}

	if acc.ReferralCode != nil {
		return *acc.ReferralCode, nil
	}

	for attempt := 0; attempt < s.game.CodeAttempts; attempt++ {
		code := IssueCode(fmt.Sprintf("%d-%d-%d", accountID, s.clock.Now().UnixNano(), attempt))
		acc.ReferralCode = &code

		err := s.store.Account().Update(ctx, acc)
		if errors.Is(err, models.ErrReferralCodeTaken) {
			s.logger.Warn("коллизия реферального кода, пробуем снова",
				zap.String("code", code),
				zap.Int("attempt", attempt+1))
			continue
		}
		if errors.Is(err, models.ErrVersionConflict) {
			// Конкурент успел изменить аккаунт, перечитываем
			acc, err = s.store.Account().GetByID(ctx, accountID)
			if err != nil {
				return "", err
			}
			if acc.ReferralCode != nil {
				return *acc.ReferralCode, nil
			}
			continue
		}
		if err != nil {
			return "", err
		}
		return code, nil
	}

	return "", models.ErrCodeSpaceExhausted
}

// ReferralLink формирует полную реферальную ссылку
func (s *Service) ReferralLink(ctx context.Context, accountID int64) (string, error) {
	code, err := s.GetOrIssueCode(ctx, accountID)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/?ref=%s", s.baseURL, code), nil
}

// TrackReferral привязывает нового пользователя к пригласившему по коду.
// Поле referred_by — защита на уровне аккаунта (первый реферер побеждает),
// уникальный индекс пары — защита от дубликата записи.
func (s *Service) TrackReferral(ctx context.Context, code string, newAccountID int64) (*models.ReferralRecord, error) {
	if !ValidCode(code) {
		return nil, models.ErrInvalidReferralCode
	}

	referrer, err := s.store.Account().GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, models.ErrAccountNotFound) {
			return nil, models.ErrInvalidReferralCode
		}
		return nil, err
	}

	if referrer.ID == newAccountID {
		return nil, models.ErrSelfReferral
	}

	// Привязка выполняется двумя записями: CAS по referred_by и вставка
	// записи. Сбой между ними чинится повторным вызовом, который видит
	// свою привязку без записи и довставляет ее.
	alreadyLinked := false
	err = s.withRetry(ctx, func(ctx context.Context) error {
		referred, err := s.store.Account().GetByID(ctx, newAccountID)
		if err != nil {
			return err
		}
		if referred.ReferredBy != nil {
			if *referred.ReferredBy != referrer.ID {
				return models.ErrDuplicateReferral
			}
			alreadyLinked = true
			return nil
		}

		referred.ReferredBy = &referrer.ID
		return s.store.Account().Update(ctx, referred)
	})
	if err != nil {
		return nil, err
	}

	if alreadyLinked {
		if _, err := s.store.Referral().Find(ctx, referrer.ID, newAccountID); err == nil {
			return nil, models.ErrDuplicateReferral
		} else if !errors.Is(err, models.ErrReferralNotFound) {
			return nil, err
		}

		s.logger.Warn("привязка без реферальной записи, довставляем запись",
			zap.Int64("referrer_id", referrer.ID),
			zap.Int64("referred_id", newAccountID))
	}

	rec := &models.ReferralRecord{
		ID:         uuid.New(),
		ReferrerID: referrer.ID,
		ReferredID: newAccountID,
		Status:     string(models.ReferralStatusPending),
		CreatedAt:  s.clock.Now(),
	}

	if err := s.store.Referral().Create(ctx, rec); err != nil {
		return nil, err
	}

	s.metrics.RecordReferralTracked()
	s.logger.Info("привязан новый реферал",
		zap.Int64("referrer_id", referrer.ID),
		zap.Int64("referred_id", newAccountID))

	return rec, nil
}

// ConfirmReferral переводит реферал в подтвержденные
// (например, после подтверждения почты приглашенным)
func (s *Service) ConfirmReferral(ctx context.Context, referralID uuid.UUID) error {
	now := s.clock.Now()
	err := s.store.Referral().UpdateStatus(ctx, referralID, string(models.ReferralStatusConfirmed), &now)
	if err != nil {
		return err
	}

	s.logger.Info("реферал подтвержден", zap.String("referral_id", referralID.String()))
	return nil
}

// RewardReferral начисляет рефереру награду за реферала ровно один раз.
// Повторный вызов наблюдает ErrAlreadyRewarded и не меняет баланс.
func (s *Service) RewardReferral(ctx context.Context, referralID uuid.UUID) (*models.RewardResult, error) {
	rec, err := s.store.Referral().Reward(ctx, referralID, s.game.ReferralReward, s.clock.Now())
	if err != nil {
		return nil, err
	}

	s.metrics.RecordReferralRewarded(s.game.ReferralReward)
	s.logger.Info("реферальная награда начислена",
		zap.String("referral_id", referralID.String()),
		zap.Int64("referrer_id", rec.ReferrerID),
		zap.Int64("reward", s.game.ReferralReward))

	return &models.RewardResult{Referral: rec, Reward: s.game.ReferralReward}, nil
}

// Stats получает статистику рефералов аккаунта
func (s *Service) Stats(ctx context.Context, accountID int64) (*models.ReferralStats, error) {
	stats, err := s.store.Referral().GetStats(ctx, accountID, s.game.ReferralReward)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения статистики рефералов: %w", err)
	}

	return stats, nil
}

// withRetry повторяет операцию при конфликте версий: мутации построены как
// compare-and-swap, поэтому повтор с перечитыванием безопасен
func (s *Service) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(s.game.TransientRetries, retry.NewFibonacci(10*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx)
		if errors.Is(err, models.ErrVersionConflict) {
			return retry.RetryableError(err)
		}
		return err
	})
}
