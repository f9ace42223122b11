// Package cache содержит Redis-кэш реферального рейтинга.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coin-miner/internal/config"
	"coin-miner/pkg/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const leaderboardKey = "leaderboard:referrals"

// Connect открывает подключение к Redis и проверяет его пингом
func Connect(cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("ошибка подключения к Redis: %w", err)
	}

	return client, nil
}

// LeaderboardCache кэширует срез реферального рейтинга одним JSON-значением
// с коротким TTL. Рейтинг не требует строгой свежести, актуальная версия
// пересчитывается из базы после истечения TTL.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewLeaderboardCache создает кэш рейтинга
func NewLeaderboardCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *LeaderboardCache {
	return &LeaderboardCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

// Get возвращает кэшированный рейтинг. Промах кэша возвращает (nil, nil).
func (c *LeaderboardCache) Get(ctx context.Context) ([]models.LeaderboardEntry, error) {
	raw, err := c.client.Get(ctx, leaderboardKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения рейтинга из кэша: %w", err)
	}

	var entries []models.LeaderboardEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		// Битый кэш сбрасываем и идем в базу
		c.logger.Warn("поврежденное значение в кэше рейтинга", zap.Error(err))
		_ = c.client.Del(ctx, leaderboardKey).Err()
		return nil, nil
	}

	return entries, nil
}

// Set сохраняет рейтинг в кэш
func (c *LeaderboardCache) Set(ctx context.Context, entries []models.LeaderboardEntry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("ошибка сериализации рейтинга: %w", err)
	}

	if err := c.client.Set(ctx, leaderboardKey, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи рейтинга в кэш: %w", err)
	}

	return nil
}

// Invalidate сбрасывает кэш рейтинга
func (c *LeaderboardCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, leaderboardKey).Err()
}
