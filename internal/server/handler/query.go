package handler

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
)

// QueryProvider Описываем, что нам нужно от read-стороны
type QueryProvider interface {
	History(ctx context.Context, limit int) (*domain.History, error)
	Decisions(ctx context.Context, limit int, status string) ([]domain.Decision, error)
	Stats(ctx context.Context) (domain.Stats, error)
	ClearAll(ctx context.Context) error
}

type QueryHandler struct {
	service QueryProvider
	logger  *zap.Logger
}

func NewQueryHandler(s QueryProvider, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{service: s, logger: logger.Named("query")}
}

// History возвращает историю трех коллекций одним ответом
// GET /api/events/history?limit=50
func (h *QueryHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	history, err := h.service.History(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to fetch history", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, history)
}

// Decisions возвращает принятые решения с фильтром по статусу
// GET /api/decisions?limit=50&status=approved
func (h *QueryHandler) Decisions(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}
	status := r.URL.Query().Get("status")

	decisions, err := h.service.Decisions(r.Context(), limit, status)
	if err != nil {
		if domain.IsValidation(err) {
			writeServiceError(w, err)
			return
		}
		h.logger.Error("failed to fetch decisions", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decisions)
}

// Stats возвращает сводные счетчики системы
// GET /api/stats
func (h *QueryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to fetch stats", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

// Clear необратимо удаляет все события и решения
// DELETE /api/events/clear
func (h *QueryHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearAll(r.Context()); err != nil {
		h.logger.Error("clear failed", zap.Error(err))
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "all events and decisions removed"})
}

// parseLimit достает limit из query. Отсутствие — 0, дальше дефолт
// подставит сервис. Нечисловое значение — ошибка входа.
func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "limit: must be an integer")
		return 0, false
	}
	return limit, true
}
