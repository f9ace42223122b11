package models

import (
	"time"
)

// Account представляет аккаунт майнера в системе
type Account struct {
	ID                int64      `json:"id" db:"id"`
	Username          string     `json:"username" db:"username"`
	BonusAccrued      int64      `json:"bonus_accrued" db:"bonus_accrued"` // Сумма всех зачисленных наград
	Energy            int        `json:"energy" db:"energy"`
	MaxEnergy         int        `json:"max_energy" db:"max_energy"`
	EnergyUpdatedAt   time.Time  `json:"energy_updated_at" db:"energy_updated_at"` // От этой отметки пересчитывается регенерация
	ClickPower        int        `json:"click_power" db:"click_power"`             // Монет за один клик
	CurrentBoost      float64    `json:"current_boost" db:"current_boost"`         // Множитель наград, всегда >= 1.0
	MiningCycleActive bool       `json:"mining_cycle_active" db:"mining_cycle_active"`
	CycleStartedAt    *time.Time `json:"cycle_started_at" db:"cycle_started_at"` // Имеет смысл только при активном цикле
	ReferralCode      *string    `json:"referral_code" db:"referral_code"`        // Уникальный реферальный код, неизменяемый после выдачи
	ReferredBy        *int64     `json:"referred_by" db:"referred_by"`            // ID пригласившего, устанавливается не более одного раза
	ReferralCount     int        `json:"referral_count" db:"referral_count"`
	KYCStatus         string     `json:"kyc_status" db:"kyc_status"` // Информационное поле, на начисления не влияет

	LastLeaderboardRewardAt *time.Time `json:"last_leaderboard_reward_at" db:"last_leaderboard_reward_at"`

	Version   int64     `json:"version" db:"version"` // Версия записи для оптимистичной блокировки
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Balance возвращает текущий баланс аккаунта.
// Баланс производный: это сумма всех зачисленных наград.
func (a *Account) Balance() int64 {
	return a.BonusAccrued
}

// Constants для статусов KYC
const (
	KYCStatusNone     = "none"
	KYCStatusPending  = "pending"
	KYCStatusVerified = "verified"
)

// IsValidKYCStatus проверяет корректность статуса KYC
func IsValidKYCStatus(status string) bool {
	switch status {
	case KYCStatusNone, KYCStatusPending, KYCStatusVerified:
		return true
	default:
		return false
	}
}

// Значения по умолчанию для нового аккаунта
const (
	DefaultMaxEnergy  = 1000
	DefaultClickPower = 1
	DefaultBoost      = 1.0
)

// CreateAccountRequest представляет запрос на создание аккаунта.
// ID поставляет внешний слой аутентификации.
type CreateAccountRequest struct {
	ID           int64  `json:"id" validate:"required"`
	Username     string `json:"username"`
	ReferralCode string `json:"referral_code,omitempty"` // Код пригласившего, если регистрация по ссылке
}

// TaskProgress представляет прогресс аккаунта по заданию
type TaskProgress struct {
	AccountID     int64     `json:"account_id" db:"account_id"`
	TaskID        string    `json:"task_id" db:"task_id"`
	Completed     bool      `json:"completed" db:"completed"`
	RewardClaimed bool      `json:"reward_claimed" db:"reward_claimed"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// LeaderboardEntry представляет строку реферального рейтинга
type LeaderboardEntry struct {
	AccountID     int64  `json:"account_id" db:"account_id"`
	Username      string `json:"username" db:"username"`
	ReferralCount int    `json:"referral_count" db:"referral_count"`
	BonusAccrued  int64  `json:"bonus_accrued" db:"bonus_accrued"`
}

// CycleStatus представляет состояние цикла майнинга для отображения.
// Вычисляется из сохраненной отметки старта, ничего не мутирует.
type CycleStatus struct {
	Active           bool    `json:"active"`
	Progress         float64 `json:"progress"` // 0.0 - 1.0
	Ready            bool    `json:"ready"`
	RemainingSeconds int64   `json:"remaining_seconds"`
	CurrentBoost     float64 `json:"current_boost"`
}
