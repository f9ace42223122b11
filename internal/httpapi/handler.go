// Package httpapi содержит HTTP-слой движка начислений. Аутентификацию
// выполняет внешний шлюз, сюда запрос приходит с идентификатором аккаунта
// в заголовке X-Account-ID.
package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"coin-miner/internal/leaderboard"
	"coin-miner/internal/mining"
	"coin-miner/internal/referral"
	"coin-miner/internal/tasks"
	"coin-miner/pkg/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const accountHeader = "X-Account-ID"

// Handler обрабатывает HTTP запросы игрового API
type Handler struct {
	mining      *mining.Service
	referral    *referral.Service
	tasks       *tasks.Service
	leaderboard *leaderboard.Service
	logger      *zap.Logger
}

// NewHandler создает новый обработчик игрового API
func NewHandler(
	miningService *mining.Service,
	referralService *referral.Service,
	tasksService *tasks.Service,
	leaderboardService *leaderboard.Service,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		mining:      miningService,
		referral:    referralService,
		tasks:       tasksService,
		leaderboard: leaderboardService,
		logger:      logger,
	}
}

// Register привязывает маршруты API к мультиплексору
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/register", h.handleRegister)

	mux.HandleFunc("POST /api/mining/start", h.handleStartCycle)
	mux.HandleFunc("POST /api/mining/claim", h.handleClaimCycle)
	mux.HandleFunc("GET /api/mining/progress", h.handleProgress)
	mux.HandleFunc("POST /api/mining/boost", h.handleBoost)
	mux.HandleFunc("POST /api/mining/tap", h.handleTap)

	mux.HandleFunc("GET /api/referral/me", h.handleReferralMe)
	mux.HandleFunc("POST /api/referral/track", h.handleTrackReferral)
	mux.HandleFunc("POST /api/referral/reward", h.handleRewardReferral)

	mux.HandleFunc("GET /api/tasks", h.handleListTasks)
	mux.HandleFunc("POST /api/tasks/complete", h.handleCompleteTask)

	mux.HandleFunc("GET /api/leaderboard", h.handleLeaderboard)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	if req.ID == 0 {
		h.writeError(w, http.StatusBadRequest, "не указан идентификатор аккаунта")
		return
	}

	acc, err := h.referral.RegisterAccount(r.Context(), &req)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) handleStartCycle(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	acc, err := h.mining.StartCycle(r.Context(), accountID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) handleClaimCycle(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	acc, reward, err := h.mining.ClaimCycle(r.Context(), accountID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"account": acc,
		"reward":  reward,
	})
}

func (h *Handler) handleProgress(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	status, err := h.mining.Progress(r.Context(), accountID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleBoost(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req struct {
		Correct bool `json:"correct"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}

	acc, err := h.mining.ApplyBoost(r.Context(), accountID, req.Correct)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) handleTap(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req struct {
		Taps int `json:"taps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}
	if req.Taps <= 0 {
		h.writeError(w, http.StatusBadRequest, "количество кликов должно быть положительным")
		return
	}

	acc, err := h.mining.Tap(r.Context(), accountID, req.Taps)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) handleReferralMe(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	code, err := h.referral.GetOrIssueCode(r.Context(), accountID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	link, err := h.referral.ReferralLink(r.Context(), accountID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	stats, err := h.referral.Stats(r.Context(), accountID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"referral_code": code,
		"referral_link": link,
		"stats":         stats,
	})
}

func (h *Handler) handleTrackReferral(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req models.TrackReferralRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}

	rec, err := h.referral.TrackReferral(r.Context(), req.ReferralCode, accountID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleRewardReferral(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ReferralID string `json:"referral_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}

	referralID, err := uuid.Parse(req.ReferralID)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "некорректный идентификатор реферала")
		return
	}

	result, err := h.referral.RewardReferral(r.Context(), referralID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleListTasks(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	progress, err := h.tasks.Progress(r.Context(), accountID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"catalog":  h.tasks.Catalog(),
		"progress": progress,
	})
}

func (h *Handler) handleCompleteTask(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.accountID(w, r)
	if !ok {
		return
	}

	var req struct {
		TaskID string `json:"task_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "некорректное тело запроса")
		return
	}

	acc, err := h.tasks.Complete(r.Context(), accountID, req.TaskID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, acc)
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.leaderboard.GetTop(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, entries)
}

// accountID извлекает идентификатор аккаунта из заголовка
func (h *Handler) accountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.Header.Get(accountHeader)
	if raw == "" {
		h.writeError(w, http.StatusUnauthorized, "не указан идентификатор аккаунта")
		return 0, false
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "некорректный идентификатор аккаунта")
		return 0, false
	}

	return id, true
}

// writeDomainError переводит доменную ошибку в HTTP статус
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrAccountNotFound),
		errors.Is(err, models.ErrReferralNotFound),
		errors.Is(err, models.ErrUnknownTask):
		h.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrInvalidReferralCode),
		errors.Is(err, models.ErrSelfReferral):
		h.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrInsufficientEnergy),
		errors.Is(err, models.ErrCycleAlreadyActive),
		errors.Is(err, models.ErrCycleNotActive),
		errors.Is(err, models.ErrCycleNotReady),
		errors.Is(err, models.ErrDuplicateReferral),
		errors.Is(err, models.ErrAlreadyRewarded),
		errors.Is(err, models.ErrTaskAlreadyClaimed),
		errors.Is(err, models.ErrTaskNotCompleted):
		h.writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("внутренняя ошибка обработки запроса", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "внутренняя ошибка сервера")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("ошибка сериализации ответа", zap.Error(err))
	}
}
