// Package tasks реализует разовые задания с фиксированной наградой.
// Начисление идемпотентно: каждое задание оплачивается аккаунту один раз.
package tasks

import (
	"context"
	"fmt"

	"coin-miner/internal/clock"
	"coin-miner/internal/config"
	"coin-miner/internal/store"
	"coin-miner/pkg/models"

	"go.uber.org/zap"
)

// Встроенный каталог заданий. Идентификаторы стабильны:
// по ним хранится прогресс в task_progress.
const (
	TaskSubscribeChannel = "subscribe_channel"
	TaskInviteFriend     = "invite_friend"
	TaskFirstCycle       = "first_cycle"
)

// Task описывает задание каталога
type Task struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Reward int64  `json:"reward"`
}

// Metrics интерфейс для записи метрик заданий
type Metrics interface {
	RecordTaskClaimed(reward int64)
}

// Service представляет сервис заданий
type Service struct {
	store   store.Store
	clock   clock.Clock
	game    config.GameConfig
	metrics Metrics
	logger  *zap.Logger
	catalog []Task
}

// NewService создает новый сервис заданий
func NewService(st store.Store, clk clock.Clock, game config.GameConfig, metrics Metrics, logger *zap.Logger) *Service {
	return &Service{
		store:   st,
		clock:   clk,
		game:    game,
		metrics: metrics,
		logger:  logger,
		catalog: []Task{
			{ID: TaskSubscribeChannel, Title: "Подписаться на канал", Reward: game.TaskReward},
			{ID: TaskInviteFriend, Title: "Пригласить друга", Reward: game.TaskReward},
			{ID: TaskFirstCycle, Title: "Завершить первый цикл майнинга", Reward: game.TaskReward},
		},
	}
}

// Catalog возвращает список заданий
func (s *Service) Catalog() []Task {
	return s.catalog
}

func (s *Service) find(taskID string) (Task, bool) {
	for _, task := range s.catalog {
		if task.ID == taskID {
			return task, true
		}
	}
	return Task{}, false
}

// Complete отмечает задание выполненным и начисляет награду ровно один раз.
// Повторное выполнение возвращает ErrTaskAlreadyClaimed без изменения баланса.
func (s *Service) Complete(ctx context.Context, accountID int64, taskID string) (*models.Account, error) {
	task, ok := s.find(taskID)
	if !ok {
		return nil, models.ErrUnknownTask
	}

	if err := s.store.Task().ClaimReward(ctx, accountID, task.ID, task.Reward, s.clock.Now()); err != nil {
		return nil, err
	}

	acc, err := s.store.Account().GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	s.metrics.RecordTaskClaimed(task.Reward)
	s.logger.Info("задание выполнено",
		zap.Int64("account_id", accountID),
		zap.String("task_id", task.ID),
		zap.Int64("reward", task.Reward))

	return acc, nil
}

// Progress возвращает статус всех заданий каталога для аккаунта
func (s *Service) Progress(ctx context.Context, accountID int64) ([]*models.TaskProgress, error) {
	claimed, err := s.store.Task().ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения прогресса заданий: %w", err)
	}

	byID := make(map[string]*models.TaskProgress, len(claimed))
	for _, p := range claimed {
		byID[p.TaskID] = p
	}

	progress := make([]*models.TaskProgress, 0, len(s.catalog))
	for _, task := range s.catalog {
		if p, ok := byID[task.ID]; ok {
			progress = append(progress, p)
			continue
		}
		progress = append(progress, &models.TaskProgress{
			AccountID: accountID,
			TaskID:    task.ID,
		})
	}

	return progress, nil
}
