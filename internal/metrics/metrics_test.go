package metrics

import (
	"testing"

	"go.uber.org/zap"
)

func TestMetrics(t *testing.T) {
	logger := zap.NewNop()
	m := New(logger)

	// Test counter increment
	m.IncrementCounter("mining_cycles_started_total", 1)

	// Test gauge set
	m.SetGauge("active_mining_cycles", 42)

	// Test histogram observe
	m.ObserveHistogram("cycle_reward_coins", 20)

	// Test high-level methods
	m.RecordAccountCreated()
	m.RecordCycleStarted()
	m.RecordCycleClaimed(30)
	m.RecordTap(10, 15)
	m.RecordEnergySpent(100)
	m.RecordBoostApplied(1.5)
	m.RecordReferralTracked()
	m.RecordReferralRewarded(50)
	m.RecordTaskClaimed(10)
	m.RecordLeaderboardReward(100)
}
