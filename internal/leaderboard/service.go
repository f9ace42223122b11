// Package leaderboard реализует реферальный рейтинг и ежедневные награды
// за первые места.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coin-miner/internal/clock"
	"coin-miner/internal/config"
	"coin-miner/internal/store"
	"coin-miner/pkg/models"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Cache интерфейс кэша рейтинга. Промах возвращает (nil, nil).
type Cache interface {
	Get(ctx context.Context) ([]models.LeaderboardEntry, error)
	Set(ctx context.Context, entries []models.LeaderboardEntry) error
	Invalidate(ctx context.Context) error
}

// Metrics интерфейс для записи метрик рейтинга
type Metrics interface {
	RecordLeaderboardReward(amount int64)
}

// Service представляет сервис реферального рейтинга
type Service struct {
	store   store.Store
	clock   clock.Clock
	game    config.GameConfig
	cache   Cache
	metrics Metrics
	logger  *zap.Logger
}

// NewService создает новый сервис рейтинга. Кэш опционален:
// при nil каждый запрос идет в базу.
func NewService(st store.Store, clk clock.Clock, game config.GameConfig, c Cache, metrics Metrics, logger *zap.Logger) *Service {
	return &Service{
		store:   st,
		clock:   clk,
		game:    game,
		cache:   c,
		metrics: metrics,
		logger:  logger,
	}
}

// GetTop возвращает верх реферального рейтинга. Недоступность кэша
// не фатальна, рейтинг читается из базы.
func (s *Service) GetTop(ctx context.Context) ([]models.LeaderboardEntry, error) {
	if s.cache != nil {
		entries, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("кэш рейтинга недоступен", zap.Error(err))
		} else if entries != nil {
			return entries, nil
		}
	}

	entries, err := s.store.Account().GetTopByReferrals(ctx, s.game.LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения рейтинга: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, entries); err != nil {
			s.logger.Warn("не удалось сохранить рейтинг в кэш", zap.Error(err))
		}
	}

	return entries, nil
}

// DistributeDailyRewards начисляет награды за первые места рейтинга.
// Отметка последней выплаты защищает от двойного начисления: повторный
// запуск в тот же день пропускает уже награжденные аккаунты.
func (s *Service) DistributeDailyRewards(ctx context.Context) (int, error) {
	entries, err := s.store.Account().GetTopByReferrals(ctx, len(s.game.LeaderboardRewards))
	if err != nil {
		return 0, fmt.Errorf("ошибка получения верха рейтинга: %w", err)
	}

	now := s.clock.Now()
	rewarded := 0

	for place, entry := range entries {
		amount := s.game.LeaderboardRewards[place]

		err := s.withRetry(ctx, func(ctx context.Context) error {
			acc, err := s.store.Account().GetByID(ctx, entry.AccountID)
			if err != nil {
				return err
			}

			if acc.LastLeaderboardRewardAt != nil && sameDay(*acc.LastLeaderboardRewardAt, now) {
				return models.ErrAlreadyRewarded
			}

			acc.BonusAccrued += amount
			acc.LastLeaderboardRewardAt = &now
			return s.store.Account().Update(ctx, acc)
		})
		if errors.Is(err, models.ErrAlreadyRewarded) {
			continue
		}
		if err != nil {
			return rewarded, fmt.Errorf("ошибка начисления награды за место %d: %w", place+1, err)
		}

		rewarded++
		s.metrics.RecordLeaderboardReward(amount)
		s.logger.Info("начислена награда за место в рейтинге",
			zap.Int64("account_id", entry.AccountID),
			zap.Int("place", place+1),
			zap.Int64("amount", amount))
	}

	if s.cache != nil && rewarded > 0 {
		if err := s.cache.Invalidate(ctx); err != nil {
			s.logger.Warn("не удалось сбросить кэш рейтинга", zap.Error(err))
		}
	}

	return rewarded, nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

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
