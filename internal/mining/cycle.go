package mining

import (
	"time"

	"coin-miner/pkg/models"
)

// Состояния цикла: Idle -> Active -> ReadyToClaim -> Idle.
// ReadyToClaim — вычисляемое состояние, в базе не хранится: готовность
// выводится из сохраненной отметки старта и текущего времени. Авторитетна
// только сохраненная отметка, длительности от клиента не принимаются.

// Progress возвращает долю завершенности цикла от 0.0 до 1.0.
// Только чтение: ничего не мутирует и не начисляет.
func Progress(acc *models.Account, now time.Time, duration time.Duration) float64 {
	if !acc.MiningCycleActive || acc.CycleStartedAt == nil {
		return 0
	}
	elapsed := now.Sub(*acc.CycleStartedAt)
	if elapsed <= 0 {
		return 0
	}
	p := float64(elapsed) / float64(duration)
	if p > 1 {
		return 1
	}
	return p
}

// Ready сообщает, можно ли забрать награду за цикл
func Ready(acc *models.Account, now time.Time, duration time.Duration) bool {
	if !acc.MiningCycleActive || acc.CycleStartedAt == nil {
		return false
	}
	return now.Sub(*acc.CycleStartedAt) >= duration
}

// Remaining возвращает время до готовности цикла
func Remaining(acc *models.Account, now time.Time, duration time.Duration) time.Duration {
	if !acc.MiningCycleActive || acc.CycleStartedAt == nil {
		return 0
	}
	left := duration - now.Sub(*acc.CycleStartedAt)
	if left < 0 {
		return 0
	}
	return left
}
