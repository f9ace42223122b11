package scheduler

import (
	"context"
	"fmt"

	"coin-miner/internal/leaderboard"

	"go.uber.org/zap"
)

// LeaderboardRewardsJob начисляет ежедневные награды за первые места
// реферального рейтинга. Сервис сам защищен от двойной выплаты за день,
// поэтому частый запуск джобы безопасен.
type LeaderboardRewardsJob struct {
	service *leaderboard.Service
	logger  *zap.Logger
}

// NewLeaderboardRewardsJob создает джобу наград рейтинга
func NewLeaderboardRewardsJob(service *leaderboard.Service, logger *zap.Logger) *LeaderboardRewardsJob {
	return &LeaderboardRewardsJob{
		service: service,
		logger:  logger,
	}
}

// Name возвращает имя джобы
func (j *LeaderboardRewardsJob) Name() string {
	return "leaderboard_rewards"
}

// Run начисляет награды рейтинга
func (j *LeaderboardRewardsJob) Run(ctx context.Context) error {
	rewarded, err := j.service.DistributeDailyRewards(ctx)
	if err != nil {
		return fmt.Errorf("ошибка начисления наград рейтинга: %w", err)
	}

	if rewarded > 0 {
		j.logger.Info("начислены награды рейтинга", zap.Int("rewarded", rewarded))
	}

	return nil
}
