package energy

import (
	"time"

	"coin-miner/pkg/models"
)

// Ledger пересчитывает и списывает энергию аккаунта.
// Регенерация — чистая функция от сохраненной отметки и текущего времени;
// никаких фоновых таймеров, пересчет выполняется по требованию.
type Ledger struct {
	regenEvery time.Duration // Интервал восстановления одной единицы
}

// NewLedger создает новый журнал энергии
func NewLedger(regenEvery time.Duration) *Ledger {
	return &Ledger{regenEvery: regenEvery}
}

// Regenerate добавляет энергию за время, прошедшее с energy_updated_at:
// одна единица за каждый полный интервал, с ограничением max_energy.
// Остаток неполного интервала сохраняется сдвигом отметки, а не отбрасывается.
func (l *Ledger) Regenerate(acc *models.Account, now time.Time) {
	if acc.Energy >= acc.MaxEnergy {
		acc.Energy = acc.MaxEnergy
		acc.EnergyUpdatedAt = now
		return
	}

	elapsed := now.Sub(acc.EnergyUpdatedAt)
	if elapsed < l.regenEvery {
		return
	}

	units := int64(elapsed / l.regenEvery)
	missing := int64(acc.MaxEnergy - acc.Energy)

	if units >= missing {
		acc.Energy = acc.MaxEnergy
		acc.EnergyUpdatedAt = now
		return
	}

	acc.Energy += int(units)
	acc.EnergyUpdatedAt = acc.EnergyUpdatedAt.Add(time.Duration(units) * l.regenEvery)
}

// Spend списывает энергию. При нехватке возвращает ErrInsufficientEnergy,
// не меняя состояние аккаунта.
func (l *Ledger) Spend(acc *models.Account, amount int) error {
	if amount < 0 {
		amount = 0
	}
	if acc.Energy < amount {
		return models.ErrInsufficientEnergy
	}
	acc.Energy -= amount
	return nil
}
