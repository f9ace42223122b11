package energy

import (
	"testing"
	"time"

	"coin-miner/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccount(energy, maxEnergy int, updatedAt time.Time) *models.Account {
	return &models.Account{
		ID:              1,
		Energy:          energy,
		MaxEnergy:       maxEnergy,
		EnergyUpdatedAt: updatedAt,
	}
}

func TestRegenerate(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewLedger(3 * time.Second)

	tests := []struct {
		name           string
		energy         int
		elapsed        time.Duration
		expectedEnergy int
	}{
		{
			name:           "нет полного интервала",
			energy:         500,
			elapsed:        2 * time.Second,
			expectedEnergy: 500,
		},
		{
			name:           "одна единица за интервал",
			energy:         500,
			elapsed:        3 * time.Second,
			expectedEnergy: 501,
		},
		{
			name:           "несколько интервалов",
			energy:         500,
			elapsed:        30 * time.Second,
			expectedEnergy: 510,
		},
		{
			name:           "ограничение емкостью",
			energy:         999,
			elapsed:        time.Hour,
			expectedEnergy: 1000,
		},
		{
			name:           "полная энергия не растет",
			energy:         1000,
			elapsed:        time.Hour,
			expectedEnergy: 1000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := newAccount(tt.energy, 1000, base)
			ledger.Regenerate(acc, base.Add(tt.elapsed))
			assert.Equal(t, tt.expectedEnergy, acc.Energy)
			assert.LessOrEqual(t, acc.Energy, acc.MaxEnergy)
		})
	}
}

func TestRegenerateKeepsRemainder(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewLedger(3 * time.Second)

	// 5 секунд: одна единица, остаток 2 секунды переносится сдвигом отметки
	acc := newAccount(500, 1000, base)
	ledger.Regenerate(acc, base.Add(5*time.Second))
	assert.Equal(t, 501, acc.Energy)
	assert.Equal(t, base.Add(3*time.Second), acc.EnergyUpdatedAt)

	// Еще секунда добивает второй интервал
	ledger.Regenerate(acc, base.Add(6*time.Second))
	assert.Equal(t, 502, acc.Energy)
}

func TestSpend(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewLedger(3 * time.Second)

	acc := newAccount(100, 1000, base)

	// Успешное списание
	err := ledger.Spend(acc, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, acc.Energy)

	// Нехватка энергии не меняет состояние
	err = ledger.Spend(acc, 1)
	assert.ErrorIs(t, err, models.ErrInsufficientEnergy)
	assert.Equal(t, 0, acc.Energy)
}

func TestEnergyInvariantUnderSequence(t *testing.T) {
	// Инвариант 0 <= energy <= max_energy после любой последовательности операций
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	ledger := NewLedger(3 * time.Second)
	acc := newAccount(1000, 1000, base)

	now := base
	steps := []struct {
		advance time.Duration
		spend   int
	}{
		{0, 100},
		{time.Minute, 300},
		{10 * time.Second, 700},
		{24 * time.Hour, 1000},
		{time.Second, 50},
	}

	for _, step := range steps {
		now = now.Add(step.advance)
		ledger.Regenerate(acc, now)
		_ = ledger.Spend(acc, step.spend)

		assert.GreaterOrEqual(t, acc.Energy, 0)
		assert.LessOrEqual(t, acc.Energy, acc.MaxEnergy)
	}
}
