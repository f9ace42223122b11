package mining

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"coin-miner/internal/boost"
	"coin-miner/internal/clock"
	"coin-miner/internal/config"
	"coin-miner/internal/energy"
	"coin-miner/internal/store"
	"coin-miner/pkg/models"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Metrics интерфейс для записи метрик майнинга
type Metrics interface {
	RecordCycleStarted()
	RecordCycleClaimed(reward int64)
	RecordTap(taps int, coins int64)
	RecordEnergySpent(amount int)
	RecordBoostApplied(value float64)
}

// Service представляет сервис циклов майнинга. Каждая операция читает
// аккаунт, применяет чистый переход и сохраняет результат с проверкой
// версии; между запросами сервис не держит мутабельного состояния.
type Service struct {
	store   store.Store
	clock   clock.Clock
	energy  *energy.Ledger
	boost   *boost.Calculator
	game    config.GameConfig
	metrics Metrics
	logger  *zap.Logger
}

// NewService создает новый сервис майнинга
func NewService(st store.Store, clk clock.Clock, game config.GameConfig, metrics Metrics, logger *zap.Logger) *Service {
	return &Service{
		store:   st,
		clock:   clk,
		energy:  energy.NewLedger(game.EnergyRegenEvery),
		boost:   boost.NewCalculator(game.BoostStep),
		game:    game,
		metrics: metrics,
		logger:  logger,
	}
}

// StartCycle запускает новый цикл майнинга: списывает стартовую стоимость
// энергии, активирует цикл и сбрасывает буст. Списание и активация
// сохраняются одной записью, поэтому энергия не может уйти дважды за один цикл.
func (s *Service) StartCycle(ctx context.Context, accountID int64) (*models.Account, error) {
	var acc *models.Account

	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		acc, err = s.store.Account().GetByID(ctx, accountID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		s.energy.Regenerate(acc, now)

		if acc.MiningCycleActive {
			return models.ErrCycleAlreadyActive
		}

		if err := s.energy.Spend(acc, s.game.CycleStartCost); err != nil {
			return err
		}

		acc.MiningCycleActive = true
		acc.CycleStartedAt = &now
		s.boost.Reset(acc)

		return s.store.Account().Update(ctx, acc)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordCycleStarted()
	s.metrics.RecordEnergySpent(s.game.CycleStartCost)

	s.logger.Info("цикл майнинга запущен",
		zap.Int64("account_id", acc.ID),
		zap.Int("energy_left", acc.Energy))

	return acc, nil
}

// Progress возвращает состояние цикла для отображения. Только чтение.
func (s *Service) Progress(ctx context.Context, accountID int64) (*models.CycleStatus, error) {
	acc, err := s.store.Account().GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	return &models.CycleStatus{
		Active:           acc.MiningCycleActive,
		Progress:         Progress(acc, now, s.game.CycleDuration),
		Ready:            Ready(acc, now, s.game.CycleDuration),
		RemainingSeconds: int64(Remaining(acc, now, s.game.CycleDuration).Seconds()),
		CurrentBoost:     acc.CurrentBoost,
	}, nil
}

// ClaimCycle забирает награду завершенного цикла. Переход выполняется как
// compare-and-swap по версии записи: из N одновременных вызовов ровно один
// зачисляет награду, остальные после перечитывания видят ErrCycleNotActive.
func (s *Service) ClaimCycle(ctx context.Context, accountID int64) (*models.Account, int64, error) {
	var acc *models.Account
	var reward int64

	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		acc, err = s.store.Account().GetByID(ctx, accountID)
		if err != nil {
			return err
		}

		now := s.clock.Now()

		if !acc.MiningCycleActive {
			return models.ErrCycleNotActive
		}
		if !Ready(acc, now, s.game.CycleDuration) {
			return models.ErrCycleNotReady
		}

		reward = int64(math.Round(float64(s.game.CycleReward) * acc.CurrentBoost))
		acc.BonusAccrued += reward
		acc.MiningCycleActive = false
		acc.CycleStartedAt = nil
		s.energy.Regenerate(acc, now)

		return s.store.Account().Update(ctx, acc)
	})
	if err != nil {
		return nil, 0, err
	}

	s.metrics.RecordCycleClaimed(reward)

	s.logger.Info("награда за цикл начислена",
		zap.Int64("account_id", acc.ID),
		zap.Int64("reward", reward),
		zap.Int64("balance", acc.Balance()))

	return acc, reward, nil
}

// ApplyBoost увеличивает множитель наград за верный ответ мини-квиза.
// Неверный ответ не имеет эффекта; без активного цикла операция отклоняется.
func (s *Service) ApplyBoost(ctx context.Context, accountID int64, correct bool) (*models.Account, error) {
	if !correct {
		acc, err := s.store.Account().GetByID(ctx, accountID)
		if err != nil {
			return nil, err
		}
		return acc, nil
	}

	var acc *models.Account
	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		acc, err = s.store.Account().GetByID(ctx, accountID)
		if err != nil {
			return err
		}

		if err := s.boost.Apply(acc); err != nil {
			return err
		}

		return s.store.Account().Update(ctx, acc)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordBoostApplied(acc.CurrentBoost)

	s.logger.Info("буст применен",
		zap.Int64("account_id", acc.ID),
		zap.Float64("current_boost", acc.CurrentBoost))

	return acc, nil
}

// Tap обрабатывает серию кликов: клик стоит единицу энергии и приносит
// click_power монет, умноженных на буст при активном цикле.
func (s *Service) Tap(ctx context.Context, accountID int64, taps int) (*models.Account, error) {
	if taps <= 0 {
		return nil, fmt.Errorf("количество кликов должно быть положительным")
	}

	var acc *models.Account
	var coins int64

	err := s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		acc, err = s.store.Account().GetByID(ctx, accountID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		s.energy.Regenerate(acc, now)

		if err := s.energy.Spend(acc, taps); err != nil {
			return err
		}

		multiplier := 1.0
		if acc.MiningCycleActive {
			multiplier = acc.CurrentBoost
		}
		coins = int64(math.Round(float64(taps*acc.ClickPower) * multiplier))
		acc.BonusAccrued += coins

		return s.store.Account().Update(ctx, acc)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTap(taps, coins)
	s.metrics.RecordEnergySpent(taps)

	return acc, nil
}

// withRetry повторяет операцию при конфликте версий. Повтор безопасен:
// операция перечитывает аккаунт и проверяет предусловия заново, поэтому
// проигравший гонку наблюдает доменную ошибку, а не второе начисление.
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
