package boost

import (
	"coin-miner/pkg/models"
)

// Calculator управляет временным множителем наград.
// Множитель живет в записи аккаунта и действует только внутри активного цикла.
type Calculator struct {
	step float64 // Прибавка за один верный ответ мини-квиза
}

// NewCalculator создает новый калькулятор буста
func NewCalculator(step float64) *Calculator {
	return &Calculator{step: step}
}

// Apply увеличивает множитель на фиксированный шаг. Без активного цикла
// операция отклоняется с ErrCycleNotActive.
func (c *Calculator) Apply(acc *models.Account) error {
	if !acc.MiningCycleActive {
		return models.ErrCycleNotActive
	}
	if acc.CurrentBoost < models.DefaultBoost {
		acc.CurrentBoost = models.DefaultBoost
	}
	acc.CurrentBoost += c.step
	return nil
}

// Reset сбрасывает множитель к 1.0. Вызывается ровно один раз, при старте цикла.
func (c *Calculator) Reset(acc *models.Account) {
	acc.CurrentBoost = models.DefaultBoost
}
