package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics содержит все метрики приложения
type Metrics struct {
	logger *zap.Logger

	// Счетчики
	accountsCreated   prometheus.Counter
	cyclesStarted     prometheus.Counter
	cyclesClaimed     prometheus.Counter
	taps              prometheus.Counter
	energySpent       prometheus.Counter
	referralsTracked  prometheus.Counter
	referralsRewarded prometheus.Counter
	coinsAccrued      *prometheus.CounterVec

	// Гистограммы
	cycleReward prometheus.Histogram
	boostValue  prometheus.Histogram

	// Gauge метрики
	activeCycles prometheus.Gauge

	// Мьютекс для thread-safety
	mu sync.RWMutex
}

// New создает новый экземпляр метрик
func New(logger *zap.Logger) *Metrics {
	m := &Metrics{
		logger: logger,

		accountsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "accounts_created_total",
				Help: "Общее количество созданных аккаунтов",
			},
		),

		cyclesStarted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mining_cycles_started_total",
				Help: "Общее количество запущенных циклов майнинга",
			},
		),

		cyclesClaimed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mining_cycles_claimed_total",
				Help: "Общее количество собранных циклов майнинга",
			},
		),

		taps: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "taps_total",
				Help: "Общее количество кликов",
			},
		),

		energySpent: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "energy_spent_total",
				Help: "Общее количество потраченной энергии",
			},
		),

		referralsTracked: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "referrals_tracked_total",
				Help: "Общее количество привязанных рефералов",
			},
		),

		referralsRewarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "referrals_rewarded_total",
				Help: "Общее количество оплаченных рефералов",
			},
		),

		// Счетчик монет по источнику начисления
		coinsAccrued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coins_accrued_total",
				Help: "Общее количество начисленных монет",
			},
			[]string{"source"}, // cycle, tap, referral, task, leaderboard
		),

		// Гистограмма наград за цикл
		cycleReward: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cycle_reward_coins",
				Help:    "Размер награды за один цикл майнинга",
				Buckets: []float64{10, 20, 30, 40, 50, 75, 100, 150, 200},
			},
		),

		// Гистограмма значений буста
		boostValue: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "boost_value",
				Help:    "Значение множителя наград после применения буста",
				Buckets: []float64{1, 1.5, 2, 2.5, 3, 4, 5, 7.5, 10},
			},
		),

		// Gauge активных циклов
		activeCycles: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "active_mining_cycles",
				Help: "Количество активных циклов майнинга",
			},
		),
	}

	// Регистрируем все метрики
	prometheus.MustRegister(
		m.accountsCreated,
		m.cyclesStarted,
		m.cyclesClaimed,
		m.taps,
		m.energySpent,
		m.referralsTracked,
		m.referralsRewarded,
		m.coinsAccrued,
		m.cycleReward,
		m.boostValue,
		m.activeCycles,
	)

	return m
}

// IncrementCounter увеличивает счетчик
func (m *Metrics) IncrementCounter(name string, delta float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var counter prometheus.Counter

	switch name {
	case "accounts_created_total":
		counter = m.accountsCreated
	case "mining_cycles_started_total":
		counter = m.cyclesStarted
	case "mining_cycles_claimed_total":
		counter = m.cyclesClaimed
	case "taps_total":
		counter = m.taps
	case "energy_spent_total":
		counter = m.energySpent
	case "referrals_tracked_total":
		counter = m.referralsTracked
	case "referrals_rewarded_total":
		counter = m.referralsRewarded
	default:
		m.logger.Error("неизвестная метрика", zap.String("name", name))
		return
	}

	counter.Add(delta)
	m.logger.Debug("метрика увеличена", zap.String("metric", name), zap.Float64("delta", delta))
}

// AddCoins увеличивает счетчик начисленных монет по источнику
func (m *Metrics) AddCoins(source string, amount int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.coinsAccrued.WithLabelValues(source).Add(float64(amount))
}

// SetGauge устанавливает значение gauge метрики
func (m *Metrics) SetGauge(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var gauge prometheus.Gauge

	switch name {
	case "active_mining_cycles":
		gauge = m.activeCycles
	default:
		m.logger.Error("неизвестная gauge метрика", zap.String("name", name))
		return
	}

	gauge.Set(value)
	m.logger.Debug("метрика установлена", zap.String("metric", name), zap.Float64("value", value))
}

// ObserveHistogram добавляет наблюдение в гистограмму
func (m *Metrics) ObserveHistogram(name string, value float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch name {
	case "cycle_reward_coins":
		m.cycleReward.Observe(value)
	case "boost_value":
		m.boostValue.Observe(value)
	default:
		m.logger.Error("неизвестная гистограмма", zap.String("name", name))
		return
	}

	m.logger.Debug("гистограмма обновлена", zap.String("metric", name), zap.Float64("value", value))
}

// RecordAccountCreated записывает создание аккаунта
func (m *Metrics) RecordAccountCreated() {
	m.IncrementCounter("accounts_created_total", 1)
}

// RecordCycleStarted записывает запуск цикла майнинга
func (m *Metrics) RecordCycleStarted() {
	m.IncrementCounter("mining_cycles_started_total", 1)
}

// RecordCycleClaimed записывает сбор награды цикла
func (m *Metrics) RecordCycleClaimed(reward int64) {
	m.IncrementCounter("mining_cycles_claimed_total", 1)
	m.AddCoins("cycle", reward)
	m.ObserveHistogram("cycle_reward_coins", float64(reward))
}

// RecordTap записывает серию кликов
func (m *Metrics) RecordTap(taps int, coins int64) {
	m.IncrementCounter("taps_total", float64(taps))
	m.AddCoins("tap", coins)
}

// RecordEnergySpent записывает расход энергии
func (m *Metrics) RecordEnergySpent(amount int) {
	m.IncrementCounter("energy_spent_total", float64(amount))
}

// RecordBoostApplied записывает применение буста
func (m *Metrics) RecordBoostApplied(value float64) {
	m.ObserveHistogram("boost_value", value)
}

// RecordReferralTracked записывает привязку реферала
func (m *Metrics) RecordReferralTracked() {
	m.IncrementCounter("referrals_tracked_total", 1)
}

// RecordReferralRewarded записывает реферальную награду
func (m *Metrics) RecordReferralRewarded(reward int64) {
	m.IncrementCounter("referrals_rewarded_total", 1)
	m.AddCoins("referral", reward)
}

// RecordTaskClaimed записывает награду за задание
func (m *Metrics) RecordTaskClaimed(reward int64) {
	m.AddCoins("task", reward)
}

// RecordLeaderboardReward записывает награду за место в рейтинге
func (m *Metrics) RecordLeaderboardReward(amount int64) {
	m.AddCoins("leaderboard", amount)
}

// Handler возвращает HTTP handler для метрик
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
