package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"coin-miner/internal/store/storetest"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestHealthHandler(t *testing.T) {
	h := NewHandler(nil, nil, zap.NewNop())

	rec := httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok","service":"coin-miner","database":"disabled"}`, rec.Body.String())
}

func TestHealthHandlerWithoutPool(t *testing.T) {
	// Хранилище без пула подключений не проверяется и не роняет ответ
	h := NewHandler(nil, storetest.New(), zap.NewNop())

	rec := httptest.NewRecorder()
	h.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
