package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralRecord представляет реферальную связь между аккаунтами.
// Для пары (referrer, referred) существует не более одной записи.
type ReferralRecord struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	ReferrerID  int64      `json:"referrer_id" db:"referrer_id"`
	ReferredID  int64      `json:"referred_id" db:"referred_id"`
	Status      string     `json:"status" db:"status"`
	RewardGiven bool       `json:"reward_given" db:"reward_given"` // Монотонный флаг: false -> true, назад не откатывается
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty" db:"confirmed_at"`
}

// ReferralStatus представляет статус реферала
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusConfirmed ReferralStatus = "confirmed"
	ReferralStatusRewarded  ReferralStatus = "rewarded"
)

// IsValid проверяет валидность статуса реферала
func (rs ReferralStatus) IsValid() bool {
	switch rs {
	case ReferralStatusPending, ReferralStatusConfirmed, ReferralStatusRewarded:
		return true
	default:
		return false
	}
}

// ReferralStats представляет статистику рефералов аккаунта
type ReferralStats struct {
	TotalReferrals     int   `json:"total_referrals"`
	PendingReferrals   int   `json:"pending_referrals"`
	ConfirmedReferrals int   `json:"confirmed_referrals"`
	RewardedReferrals  int   `json:"rewarded_referrals"`
	TotalRewardsEarned int64 `json:"total_rewards_earned"`
}

// RewardResult представляет результат начисления реферальной награды
type RewardResult struct {
	Referral *ReferralRecord `json:"referral"`
	Reward   int64           `json:"reward"`
}

// TrackReferralRequest представляет запрос на привязку реферала
type TrackReferralRequest struct {
	ReferralCode string `json:"referral_code" validate:"required"`
	NewAccountID int64  `json:"new_account_id" validate:"required"`
}
