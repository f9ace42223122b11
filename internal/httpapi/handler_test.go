package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coin-miner/internal/clock"
	"coin-miner/internal/config"
	"coin-miner/internal/leaderboard"
	"coin-miner/internal/mining"
	"coin-miner/internal/referral"
	"coin-miner/internal/store/storetest"
	"coin-miner/internal/tasks"
	"coin-miner/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopMetrics struct{}

func (nopMetrics) RecordAccountCreated()                {}
func (nopMetrics) RecordCycleStarted()                  {}
func (nopMetrics) RecordCycleClaimed(reward int64)      {}
func (nopMetrics) RecordTap(taps int, coins int64)      {}
func (nopMetrics) RecordEnergySpent(amount int)         {}
func (nopMetrics) RecordBoostApplied(value float64)     {}
func (nopMetrics) RecordReferralTracked()               {}
func (nopMetrics) RecordReferralRewarded(reward int64)  {}
func (nopMetrics) RecordTaskClaimed(reward int64)       {}
func (nopMetrics) RecordLeaderboardReward(amount int64) {}

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

func newTestServer(t *testing.T) (*httptest.Server, *clock.Fixed) {
	t.Helper()

	st := storetest.New()
	clk := clock.NewFixed(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	logger := zap.NewNop()
	game := testGame()
	m := nopMetrics{}

	handler := NewHandler(
		mining.NewService(st, clk, game, m, logger),
		referral.NewService(st, clk, game, "https://coin-miner.app", m, logger),
		tasks.NewService(st, clk, game, m, logger),
		leaderboard.NewService(st, clk, game, nil, m, logger),
		logger,
	)

	mux := http.NewServeMux()
	handler.Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv, clk
}

func doRequest(t *testing.T, srv *httptest.Server, method, path string, accountID int64, body any) (*http.Response, []byte) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if accountID != 0 {
		req.Header.Set(accountHeader, fmt.Sprintf("%d", accountID))
	}

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()

	return resp, out.Bytes()
}

func register(t *testing.T, srv *httptest.Server, id int64, code string) *models.Account {
	t.Helper()

	resp, body := doRequest(t, srv, http.MethodPost, "/api/register", 0, models.CreateAccountRequest{
		ID:           id,
		Username:     "player",
		ReferralCode: code,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var acc models.Account
	require.NoError(t, json.Unmarshal(body, &acc))
	return &acc
}

func TestMiningFlow(t *testing.T) {
	srv, clk := newTestServer(t)

	register(t, srv, 1, "")

	resp, body := doRequest(t, srv, http.MethodPost, "/api/mining/start", 1, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var acc models.Account
	require.NoError(t, json.Unmarshal(body, &acc))
	assert.Equal(t, 900, acc.Energy)
	assert.True(t, acc.MiningCycleActive)

	// Повторный старт отклоняется как конфликт
	resp, _ = doRequest(t, srv, http.MethodPost, "/api/mining/start", 1, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// Ранний сбор отклоняется
	resp, _ = doRequest(t, srv, http.MethodPost, "/api/mining/claim", 1, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	clk.Advance(4 * time.Hour)

	resp, body = doRequest(t, srv, http.MethodPost, "/api/mining/claim", 1, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var claim struct {
		Account models.Account `json:"account"`
		Reward  int64          `json:"reward"`
	}
	require.NoError(t, json.Unmarshal(body, &claim))
	assert.Equal(t, int64(20), claim.Reward)
	assert.Equal(t, int64(20), claim.Account.Balance())
}

func TestReferralFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	referrer := register(t, srv, 1, "")
	require.NotNil(t, referrer.ReferralCode)

	referred := register(t, srv, 2, *referrer.ReferralCode)
	require.NotNil(t, referred.ReferredBy)
	assert.Equal(t, referrer.ID, *referred.ReferredBy)

	resp, body := doRequest(t, srv, http.MethodGet, "/api/referral/me", 1, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var me struct {
		ReferralCode string               `json:"referral_code"`
		ReferralLink string               `json:"referral_link"`
		Stats        models.ReferralStats `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(body, &me))
	assert.Equal(t, *referrer.ReferralCode, me.ReferralCode)
	assert.Equal(t, "https://coin-miner.app/?ref="+me.ReferralCode, me.ReferralLink)
	assert.Equal(t, 1, me.Stats.TotalReferrals)
}

func TestTrackReferralErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	acc := register(t, srv, 1, "")
	register(t, srv, 2, "")

	// Самопривязка
	resp, _ := doRequest(t, srv, http.MethodPost, "/api/referral/track", 1, models.TrackReferralRequest{
		ReferralCode: *acc.ReferralCode,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Несуществующий код
	resp, _ = doRequest(t, srv, http.MethodPost, "/api/referral/track", 2, models.TrackReferralRequest{
		ReferralCode: "ZZZ-000000",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestTaskFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	register(t, srv, 1, "")

	resp, body := doRequest(t, srv, http.MethodPost, "/api/tasks/complete", 1, map[string]string{
		"task_id": tasks.TaskSubscribeChannel,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var acc models.Account
	require.NoError(t, json.Unmarshal(body, &acc))
	assert.Equal(t, int64(10), acc.Balance())

	// Повторное выполнение отклоняется как конфликт
	resp, _ = doRequest(t, srv, http.MethodPost, "/api/tasks/complete", 1, map[string]string{
		"task_id": tasks.TaskSubscribeChannel,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestMissingAccountHeader(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doRequest(t, srv, http.MethodPost, "/api/mining/start", 0, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestUnknownAccount(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, _ := doRequest(t, srv, http.MethodPost, "/api/mining/start", 99, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
