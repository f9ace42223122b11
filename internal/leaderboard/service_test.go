package leaderboard

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

func (nopMetrics) RecordLeaderboardReward(amount int64) {}

// memCache имитирует кэш рейтинга в памяти
type memCache struct {
	entries []models.LeaderboardEntry
	hits    int
	misses  int
}

func (c *memCache) Get(_ context.Context) ([]models.LeaderboardEntry, error) {
	if c.entries == nil {
		c.misses++
		return nil, nil
	}
	c.hits++
	return c.entries, nil
}

func (c *memCache) Set(_ context.Context, entries []models.LeaderboardEntry) error {
	c.entries = entries
	return nil
}

func (c *memCache) Invalidate(_ context.Context) error {
	c.entries = nil
	return nil
}

func testGame() config.GameConfig {
	return config.GameConfig{
		TransientRetries:   5,
		LeaderboardSize:    100,
		LeaderboardRewards: []int64{100, 50, 25},
	}
}

func seedAccounts(st *storetest.Store) {
	base := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	referrals := []int{7, 5, 3, 1}
	for i, count := range referrals {
		st.Seed(&models.Account{
			ID:            int64(i + 1),
			Username:      "player",
			ReferralCount: count,
			CreatedAt:     base.Add(time.Duration(i) * time.Hour),
		})
	}
	// Аккаунт без рефералов в рейтинг не попадает
	st.Seed(&models.Account{ID: 50, Username: "idle"})
}

func newTestService(t *testing.T, c Cache) (*Service, *storetest.Store, *clock.Fixed) {
	t.Helper()

	st := storetest.New()
	seedAccounts(st)
	clk := clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(st, clk, testGame(), c, nopMetrics{}, zap.NewNop())

	return svc, st, clk
}

func TestGetTop(t *testing.T) {
	svc, _, _ := newTestService(t, nil)
	ctx := context.Background()

	entries, err := svc.GetTop(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, int64(1), entries[0].AccountID)
	assert.Equal(t, 7, entries[0].ReferralCount)
	assert.Equal(t, int64(4), entries[3].AccountID)
}

func TestGetTopUsesCache(t *testing.T) {
	c := &memCache{}
	svc, st, _ := newTestService(t, c)
	ctx := context.Background()

	_, err := svc.GetTop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, c.misses)

	// Изменение базы не видно, пока живет кэш
	st.Seed(&models.Account{ID: 60, Username: "new", ReferralCount: 100})

	entries, err := svc.GetTop(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, c.hits)
	assert.Len(t, entries, 4)
}

func TestDistributeDailyRewards(t *testing.T) {
	svc, st, _ := newTestService(t, nil)
	ctx := context.Background()

	rewarded, err := svc.DistributeDailyRewards(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rewarded)

	expected := map[int64]int64{1: 100, 2: 50, 3: 25, 4: 0}
	for id, amount := range expected {
		acc, err := st.Account().GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, amount, acc.Balance(), "аккаунт %d", id)
	}
}

func TestDistributeDailyRewardsIdempotentPerDay(t *testing.T) {
	svc, st, clk := newTestService(t, nil)
	ctx := context.Background()

	rewarded, err := svc.DistributeDailyRewards(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rewarded)

	// Повторный запуск в тот же день никого не награждает
	rewarded, err = svc.DistributeDailyRewards(ctx)
	require.NoError(t, err)
	assert.Zero(t, rewarded)

	acc, err := st.Account().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(100), acc.Balance())

	// На следующий день награды начисляются снова
	clk.Advance(24 * time.Hour)
	rewarded, err = svc.DistributeDailyRewards(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rewarded)

	acc, err = st.Account().GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(200), acc.Balance())
}

func TestDistributeDailyRewardsInvalidatesCache(t *testing.T) {
	c := &memCache{}
	svc, _, _ := newTestService(t, c)
	ctx := context.Background()

	_, err := svc.GetTop(ctx)
	require.NoError(t, err)
	require.NotNil(t, c.entries)

	_, err = svc.DistributeDailyRewards(ctx)
	require.NoError(t, err)
	assert.Nil(t, c.entries)
}
