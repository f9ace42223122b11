package tasks

import (
	"context"
	"testing"
	"time"

	"coin-miner/internal/clock"
	"coin-miner/internal/config"
	"coin-miner/internal/store/storetest"
	"coin-miner/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopMetrics struct{}

func (nopMetrics) RecordTaskClaimed(reward int64) {}

func newTestService(t *testing.T) (*Service, *storetest.Store) {
	t.Helper()

	st := storetest.New()
	clk := clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	game := config.GameConfig{TaskReward: 10}
	svc := NewService(st, clk, game, nopMetrics{}, zap.NewNop())

	st.Seed(&models.Account{
		ID:        1,
		Username:  "alice",
		Energy:    1000,
		MaxEnergy: 1000,
	})

	return svc, st
}

func TestCompleteTask(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.Complete(ctx, 1, TaskSubscribeChannel)
	require.NoError(t, err)
	assert.Equal(t, int64(10), acc.Balance())
}

func TestCompleteTaskExactlyOnce(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.Complete(ctx, 1, TaskSubscribeChannel)
	require.NoError(t, err)

	// Повторное выполнение не проходит и не меняет баланс
	_, err = svc.Complete(ctx, 1, TaskSubscribeChannel)
	assert.ErrorIs(t, err, models.ErrTaskAlreadyClaimed)

	acc, err := st.Account().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), acc.Balance())
}

func TestCompleteTasksIndependent(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()

	_, err := svc.Complete(ctx, 1, TaskSubscribeChannel)
	require.NoError(t, err)
	_, err = svc.Complete(ctx, 1, TaskInviteFriend)
	require.NoError(t, err)

	acc, err := st.Account().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), acc.Balance())
}

func TestCompleteUnknownTask(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Complete(ctx, 1, "no_such_task")
	assert.ErrorIs(t, err, models.ErrUnknownTask)
}

func TestCompleteUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Complete(ctx, 99, TaskSubscribeChannel)
	assert.ErrorIs(t, err, models.ErrAccountNotFound)
}

func TestProgress(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Complete(ctx, 1, TaskInviteFriend)
	require.NoError(t, err)

	progress, err := svc.Progress(ctx, 1)
	require.NoError(t, err)
	require.Len(t, progress, len(svc.Catalog()))

	byID := make(map[string]*models.TaskProgress)
	for _, p := range progress {
		byID[p.TaskID] = p
	}

	assert.True(t, byID[TaskInviteFriend].RewardClaimed)
	assert.False(t, byID[TaskSubscribeChannel].RewardClaimed)
	assert.False(t, byID[TaskFirstCycle].RewardClaimed)
}
