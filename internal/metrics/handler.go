package metrics

import (
	"context"
	"net/http"
	"time"

	"coin-miner/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Handler обрабатывает HTTP запросы для метрик и проверки здоровья
type Handler struct {
	metrics *Metrics
	store   store.Store
	logger  *zap.Logger
}

// NewHandler создает новый обработчик метрик
func NewHandler(metrics *Metrics, st store.Store, logger *zap.Logger) *Handler {
	return &Handler{
		metrics: metrics,
		store:   st,
		logger:  logger,
	}
}

// MetricsHandler возвращает HTTP handler для Prometheus метрик
func (h *Handler) MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// HealthHandler возвращает статус здоровья сервиса. Проверяется
// доступность базы данных; при недоступной базе отдается 503.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	database := "disabled"
	if h.store != nil && h.store.DB() != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := h.store.DB().Ping(ctx); err != nil {
			h.logger.Warn("база данных недоступна при проверке здоровья", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"degraded","service":"coin-miner","database":"unreachable"}`))
			return
		}
		database = "ok"
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok","service":"coin-miner","database":"` + database + `"}`))
}
