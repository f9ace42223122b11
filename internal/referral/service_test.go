package referral

import (
	"context"
	"errors"
	"testing"
	"time"

	"coin-miner/internal/clock"
	"coin-miner/internal/config"
	"coin-miner/internal/store"
	"coin-miner/internal/store/storetest"
	"coin-miner/pkg/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopMetrics struct{}

func (nopMetrics) RecordAccountCreated()               {}
func (nopMetrics) RecordReferralTracked()              {}
func (nopMetrics) RecordReferralRewarded(reward int64) {}

func testGame() config.GameConfig {
	return config.GameConfig{
		CycleDuration:      4 * time.Hour,
		CycleReward:        20,
		CycleStartCost:     100,
		ReferralReward:     50,
		TaskReward:         10,
		MaxEnergy:          1000,
		EnergyRegenEvery:   3 * time.Second,
		BoostStep:          0.5,
		ClickPower:         1,
		CodeAttempts:       10,
		TransientRetries:   5,
		LeaderboardSize:    100,
		LeaderboardRewards: []int64{100, 50, 25},
	}
}

func newTestService(t *testing.T) (*Service, *storetest.Store, *clock.Fixed) {
	t.Helper()

	st := storetest.New()
	clk := clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(st, clk, testGame(), "https://coin-miner.app", nopMetrics{}, zap.NewNop())

	return svc, st, clk
}

func TestRegisterAccount(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	acc, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 1, Username: "alice"})
	require.NoError(t, err)

	assert.Equal(t, int64(1), acc.ID)
	assert.Equal(t, 1000, acc.Energy)
	assert.Equal(t, 1000, acc.MaxEnergy)
	assert.Equal(t, clk.Now(), acc.EnergyUpdatedAt)
	assert.Equal(t, models.DefaultBoost, acc.CurrentBoost)
	require.NotNil(t, acc.ReferralCode)
	assert.True(t, ValidCode(*acc.ReferralCode))
}

func TestRegisterAccountIdempotent(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 1, Username: "alice"})
	require.NoError(t, err)

	// Повторная регистрация возвращает тот же аккаунт и тот же код
	second, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 1, Username: "alice"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, *first.ReferralCode, *second.ReferralCode)
}

func TestRegisterAccountWithReferralCode(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	referrer, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 1, Username: "alice"})
	require.NoError(t, err)

	referred, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{
		ID:           2,
		Username:     "bob",
		ReferralCode: *referrer.ReferralCode,
	})
	require.NoError(t, err)

	require.NotNil(t, referred.ReferredBy)
	assert.Equal(t, referrer.ID, *referred.ReferredBy)

	rec, err := st.Referral().Find(ctx, referrer.ID, referred.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.ReferralStatusPending), rec.Status)
	assert.False(t, rec.RewardGiven)
}

func TestRegisterAccountBadReferralCodeDoesNotFail(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	// Невалидный код пригласившего не срывает регистрацию
	acc, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{
		ID:           1,
		Username:     "alice",
		ReferralCode: "NOPE",
	})
	require.NoError(t, err)
	assert.Nil(t, acc.ReferredBy)
}

func TestGetOrIssueCodeStable(t *testing.T) {
	svc, _, clk := newTestService(t)
	ctx := context.Background()

	acc, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 1, Username: "alice"})
	require.NoError(t, err)

	clk.Advance(time.Hour)

	code, err := svc.GetOrIssueCode(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, *acc.ReferralCode, code, "код неизменяем после выдачи")
}

func TestGetOrIssueCodeBackfill(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	// Аккаунт старого формата без кода
	st.Seed(&models.Account{ID: 7, Username: "legacy", Energy: 1000, MaxEnergy: 1000})

	code, err := svc.GetOrIssueCode(ctx, 7)
	require.NoError(t, err)
	assert.True(t, ValidCode(code))

	again, err := svc.GetOrIssueCode(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, code, again)
}

func TestReferralLink(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	acc, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 1, Username: "alice"})
	require.NoError(t, err)

	link, err := svc.ReferralLink(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://coin-miner.app/?ref="+*acc.ReferralCode, link)
}

func TestTrackReferralErrors(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	referrer, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 1, Username: "alice"})
	require.NoError(t, err)
	_, err = svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 2, Username: "bob"})
	require.NoError(t, err)

	tests := []struct {
		name         string
		code         string
		newAccountID int64
		wantErr      error
	}{
		{
			name:         "невалидный формат кода",
			code:         "not-a-code",
			newAccountID: 2,
			wantErr:      models.ErrInvalidReferralCode,
		},
		{
			name:         "несуществующий код",
			code:         "ZZZ-000000",
			newAccountID: 2,
			wantErr:      models.ErrInvalidReferralCode,
		},
		{
			name:         "самопривязка",
			code:         *referrer.ReferralCode,
			newAccountID: referrer.ID,
			wantErr:      models.ErrSelfReferral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.TrackReferral(ctx, tt.code, tt.newAccountID)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestTrackReferralFirstReferrerWins(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	first, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 1, Username: "alice"})
	require.NoError(t, err)
	second, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 2, Username: "carol"})
	require.NoError(t, err)
	referred, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 3, Username: "bob"})
	require.NoError(t, err)

	_, err = svc.TrackReferral(ctx, *first.ReferralCode, referred.ID)
	require.NoError(t, err)

	// Повтор с тем же реферером и попытка второго реферера отклоняются
	_, err = svc.TrackReferral(ctx, *first.ReferralCode, referred.ID)
	assert.ErrorIs(t, err, models.ErrDuplicateReferral)

	_, err = svc.TrackReferral(ctx, *second.ReferralCode, referred.ID)
	assert.ErrorIs(t, err, models.ErrDuplicateReferral)
}

// flakyReferralStore подменяет реферальный репозиторий так, что первые
// createFailures вставок записей падают с временной ошибкой.
type flakyReferralStore struct {
	*storetest.Store
	createFailures int
}

func (s *flakyReferralStore) Referral() store.ReferralRepository {
	return &flakyReferralRepo{ReferralRepository: s.Store.Referral(), parent: s}
}

type flakyReferralRepo struct {
	store.ReferralRepository
	parent *flakyReferralStore
}

func (r *flakyReferralRepo) Create(ctx context.Context, rec *models.ReferralRecord) error {
	if r.parent.createFailures > 0 {
		r.parent.createFailures--
		return errors.New("временный сбой базы")
	}
	return r.ReferralRepository.Create(ctx, rec)
}

func TestTrackReferralRecoversAfterStorageFailure(t *testing.T) {
	st := &flakyReferralStore{Store: storetest.New(), createFailures: 1}
	clk := clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(st, clk, testGame(), "https://coin-miner.app", nopMetrics{}, zap.NewNop())
	ctx := context.Background()

	referrer, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 1, Username: "alice"})
	require.NoError(t, err)
	referred, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 2, Username: "bob"})
	require.NoError(t, err)

	// Сбой между привязкой аккаунта и вставкой записи
	_, err = svc.TrackReferral(ctx, *referrer.ReferralCode, referred.ID)
	require.Error(t, err)

	acc, err := st.Account().GetByID(ctx, referred.ID)
	require.NoError(t, err)
	require.NotNil(t, acc.ReferredBy)

	// Повтор видит свою привязку без записи и довставляет ее
	rec, err := svc.TrackReferral(ctx, *referrer.ReferralCode, referred.ID)
	require.NoError(t, err)
	assert.Equal(t, referrer.ID, rec.ReferrerID)
	assert.Equal(t, referred.ID, rec.ReferredID)

	found, err := st.Referral().Find(ctx, referrer.ID, referred.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, found.ID)

	// Следующий вызов после восстановления уже дубликат
	_, err = svc.TrackReferral(ctx, *referrer.ReferralCode, referred.ID)
	assert.ErrorIs(t, err, models.ErrDuplicateReferral)
}

func TestRewardReferralExactlyOnce(t *testing.T) {
	svc, st, _ := newTestService(t)
	ctx := context.Background()

	referrer, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 1, Username: "alice"})
	require.NoError(t, err)
	referred, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 2, Username: "bob"})
	require.NoError(t, err)

	rec, err := svc.TrackReferral(ctx, *referrer.ReferralCode, referred.ID)
	require.NoError(t, err)

	result, err := svc.RewardReferral(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), result.Reward)
	assert.True(t, result.Referral.RewardGiven)
	assert.Equal(t, string(models.ReferralStatusRewarded), result.Referral.Status)

	acc, err := st.Account().GetByID(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), acc.Balance())
	assert.Equal(t, 1, acc.ReferralCount)

	// Повторное начисление не проходит и не меняет баланс
	_, err = svc.RewardReferral(ctx, rec.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyRewarded)

	acc, err = st.Account().GetByID(ctx, referrer.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(50), acc.Balance())
	assert.Equal(t, 1, acc.ReferralCount)
}

func TestConfirmReferralAfterReward(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	referrer, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 1, Username: "alice"})
	require.NoError(t, err)
	referred, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 2, Username: "bob"})
	require.NoError(t, err)

	rec, err := svc.TrackReferral(ctx, *referrer.ReferralCode, referred.ID)
	require.NoError(t, err)

	_, err = svc.RewardReferral(ctx, rec.ID)
	require.NoError(t, err)

	// Награжденная запись не переводится обратно в confirmed
	err = svc.ConfirmReferral(ctx, rec.ID)
	assert.ErrorIs(t, err, models.ErrAlreadyRewarded)

	err = svc.ConfirmReferral(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrReferralNotFound)
}

func TestStats(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	referrer, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{ID: 1, Username: "alice"})
	require.NoError(t, err)

	for id := int64(2); id <= 4; id++ {
		_, err := svc.RegisterAccount(ctx, &models.CreateAccountRequest{
			ID:           id,
			Username:     "ref",
			ReferralCode: *referrer.ReferralCode,
		})
		require.NoError(t, err)
	}

	recs, err := svc.store.Referral().ListByReferrer(ctx, referrer.ID)
	require.NoError(t, err)
	require.Len(t, recs, 3)

	_, err = svc.RewardReferral(ctx, recs[0].ID)
	require.NoError(t, err)
	require.NoError(t, svc.ConfirmReferral(ctx, recs[1].ID))

	stats, err := svc.Stats(ctx, referrer.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalReferrals)
	assert.Equal(t, 1, stats.PendingReferrals)
	assert.Equal(t, 1, stats.ConfirmedReferrals)
	assert.Equal(t, 1, stats.RewardedReferrals)
	assert.Equal(t, int64(50), stats.TotalRewardsEarned)
}
