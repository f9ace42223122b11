// Package storetest содержит in-memory реализацию store.Store для тестов.
// Семантика совпадает с PostgreSQL-репозиториями: оптимистичная блокировка
// по версии, уникальность реферального кода и пары (referrer, referred),
// compare-and-swap при начислении наград.
package storetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"coin-miner/internal/store"
	"coin-miner/pkg/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store реализует store.Store в памяти
type Store struct {
	mu        sync.Mutex
	accounts  map[int64]*models.Account
	referrals map[uuid.UUID]*models.ReferralRecord
	tasks     map[string]*models.TaskProgress
}

// New создает пустое in-memory хранилище
func New() *Store {
	return &Store{
		accounts:  make(map[int64]*models.Account),
		referrals: make(map[uuid.UUID]*models.ReferralRecord),
		tasks:     make(map[string]*models.TaskProgress),
	}
}

// Account возвращает репозиторий аккаунтов
func (s *Store) Account() store.AccountRepository { return (*accountRepo)(s) }

// Referral возвращает репозиторий рефералов
func (s *Store) Referral() store.ReferralRepository { return (*referralRepo)(s) }

// Task возвращает репозиторий заданий
func (s *Store) Task() store.TaskRepository { return (*taskRepo)(s) }

// DB в тестовом хранилище не используется
func (s *Store) DB() *pgxpool.Pool { return nil }

// Close ничего не делает
func (s *Store) Close() error { return nil }

// Seed кладет аккаунт в хранилище, выставляя версию как при создании
func (s *Store) Seed(acc *models.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc.Version == 0 {
		acc.Version = 1
	}
	cp := *acc
	s.accounts[acc.ID] = &cp
}

func copyAccount(acc *models.Account) *models.Account {
	cp := *acc
	return &cp
}

func copyReferral(rec *models.ReferralRecord) *models.ReferralRecord {
	cp := *rec
	return &cp
}

type accountRepo Store

func (r *accountRepo) Create(_ context.Context, acc *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[acc.ID]; ok {
		return fmt.Errorf("аккаунт %d уже существует", acc.ID)
	}
	if acc.ReferralCode != nil {
		for _, other := range r.accounts {
			if other.ReferralCode != nil && *other.ReferralCode == *acc.ReferralCode {
				return models.ErrReferralCodeTaken
			}
		}
	}

	now := time.Now()
	acc.CreatedAt = now
	acc.UpdatedAt = now
	if acc.MaxEnergy == 0 {
		acc.MaxEnergy = models.DefaultMaxEnergy
	}
	if acc.ClickPower == 0 {
		acc.ClickPower = models.DefaultClickPower
	}
	if acc.CurrentBoost == 0 {
		acc.CurrentBoost = models.DefaultBoost
	}
	if acc.KYCStatus == "" {
		acc.KYCStatus = models.KYCStatusNone
	}
	acc.Version = 1

	r.accounts[acc.ID] = copyAccount(acc)
	return nil
}

func (r *accountRepo) GetByID(_ context.Context, id int64) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.accounts[id]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	return copyAccount(acc), nil
}

func (r *accountRepo) GetByReferralCode(_ context.Context, code string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, acc := range r.accounts {
		if acc.ReferralCode != nil && *acc.ReferralCode == code {
			return copyAccount(acc), nil
		}
	}
	return nil, models.ErrAccountNotFound
}

func (r *accountRepo) Update(_ context.Context, acc *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.accounts[acc.ID]
	if !ok {
		return models.ErrAccountNotFound
	}
	if stored.Version != acc.Version {
		return models.ErrVersionConflict
	}
	if acc.ReferralCode != nil {
		for id, other := range r.accounts {
			if id != acc.ID && other.ReferralCode != nil && *other.ReferralCode == *acc.ReferralCode {
				return models.ErrReferralCodeTaken
			}
		}
	}

	acc.Version++
	acc.UpdatedAt = time.Now()
	r.accounts[acc.ID] = copyAccount(acc)
	return nil
}

func (r *accountRepo) GetTopByReferrals(_ context.Context, limit int) ([]models.LeaderboardEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var accs []*models.Account
	for _, acc := range r.accounts {
		if acc.ReferralCount > 0 {
			accs = append(accs, acc)
		}
	}
	sort.Slice(accs, func(i, j int) bool {
		if accs[i].ReferralCount != accs[j].ReferralCount {
			return accs[i].ReferralCount > accs[j].ReferralCount
		}
		return accs[i].CreatedAt.Before(accs[j].CreatedAt)
	})

	var entries []models.LeaderboardEntry
	for i, acc := range accs {
		if i >= limit {
			break
		}
		entries = append(entries, models.LeaderboardEntry{
			AccountID:     acc.ID,
			Username:      acc.Username,
			ReferralCount: acc.ReferralCount,
			BonusAccrued:  acc.BonusAccrued,
		})
	}
	return entries, nil
}

type referralRepo Store

func (r *referralRepo) Create(_ context.Context, rec *models.ReferralRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, other := range r.referrals {
		if other.ReferrerID == rec.ReferrerID && other.ReferredID == rec.ReferredID {
			return models.ErrDuplicateReferral
		}
	}
	r.referrals[rec.ID] = copyReferral(rec)
	return nil
}

func (r *referralRepo) GetByID(_ context.Context, id uuid.UUID) (*models.ReferralRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.referrals[id]
	if !ok {
		return nil, models.ErrReferralNotFound
	}
	return copyReferral(rec), nil
}

func (r *referralRepo) Find(_ context.Context, referrerID, referredID int64) (*models.ReferralRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.referrals {
		if rec.ReferrerID == referrerID && rec.ReferredID == referredID {
			return copyReferral(rec), nil
		}
	}
	return nil, models.ErrReferralNotFound
}

func (r *referralRepo) ListByReferrer(_ context.Context, referrerID int64) ([]*models.ReferralRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var recs []*models.ReferralRecord
	for _, rec := range r.referrals {
		if rec.ReferrerID == referrerID {
			recs = append(recs, copyReferral(rec))
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].CreatedAt.After(recs[j].CreatedAt) })
	return recs, nil
}

func (r *referralRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string, confirmedAt *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.referrals[id]
	if !ok {
		return models.ErrReferralNotFound
	}
	if rec.Status == string(models.ReferralStatusRewarded) {
		return models.ErrAlreadyRewarded
	}
	rec.Status = status
	rec.ConfirmedAt = confirmedAt
	return nil
}

func (r *referralRepo) Reward(_ context.Context, id uuid.UUID, amount int64, now time.Time) (*models.ReferralRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.referrals[id]
	if !ok {
		return nil, models.ErrReferralNotFound
	}
	if rec.RewardGiven {
		return nil, models.ErrAlreadyRewarded
	}

	referrer, ok := r.accounts[rec.ReferrerID]
	if !ok {
		return nil, models.ErrAccountNotFound
	}

	rec.Status = string(models.ReferralStatusRewarded)
	rec.RewardGiven = true
	rec.ConfirmedAt = &now
	referrer.BonusAccrued += amount
	referrer.ReferralCount++
	referrer.Version++

	return copyReferral(rec), nil
}

func (r *referralRepo) GetStats(_ context.Context, referrerID int64, rewardAmount int64) (*models.ReferralStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &models.ReferralStats{}
	for _, rec := range r.referrals {
		if rec.ReferrerID != referrerID {
			continue
		}
		stats.TotalReferrals++
		switch models.ReferralStatus(rec.Status) {
		case models.ReferralStatusPending:
			stats.PendingReferrals++
		case models.ReferralStatusConfirmed:
			stats.ConfirmedReferrals++
		case models.ReferralStatusRewarded:
			stats.RewardedReferrals++
		}
	}
	stats.TotalRewardsEarned = int64(stats.RewardedReferrals) * rewardAmount
	return stats, nil
}

type taskRepo Store

func taskKey(accountID int64, taskID string) string {
	return fmt.Sprintf("%d|%s", accountID, taskID)
}

func (r *taskRepo) Get(_ context.Context, accountID int64, taskID string) (*models.TaskProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.tasks[taskKey(accountID, taskID)]
	if !ok {
		return nil, models.ErrTaskNotCompleted
	}
	cp := *p
	return &cp, nil
}

func (r *taskRepo) ListByAccount(_ context.Context, accountID int64) ([]*models.TaskProgress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var progress []*models.TaskProgress
	for _, p := range r.tasks {
		if p.AccountID == accountID {
			cp := *p
			progress = append(progress, &cp)
		}
	}
	return progress, nil
}

func (r *taskRepo) ClaimReward(_ context.Context, accountID int64, taskID string, amount int64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := taskKey(accountID, taskID)
	p, ok := r.tasks[key]
	if ok && p.RewardClaimed {
		return models.ErrTaskAlreadyClaimed
	}

	acc, ok := r.accounts[accountID]
	if !ok {
		return models.ErrAccountNotFound
	}

	if p == nil {
		p = &models.TaskProgress{AccountID: accountID, TaskID: taskID, CreatedAt: now}
		r.tasks[key] = p
	}
	p.Completed = true
	p.RewardClaimed = true
	p.UpdatedAt = now

	acc.BonusAccrued += amount
	acc.Version++
	return nil
}
