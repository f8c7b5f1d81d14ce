package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
)

// OrchestrationService Описываем, что нам нужно от ядра оркестрации
type OrchestrationService interface {
	Process(ctx context.Context, req domain.OrchestrationRequest) (*domain.Decision, error)
}

type OrchestrationHandler struct {
	service OrchestrationService
	logger  *zap.Logger
}

func NewOrchestrationHandler(s OrchestrationService, logger *zap.Logger) *OrchestrationHandler {
	return &OrchestrationHandler{service: s, logger: logger.Named("orchestrate")}
}

// Orchestrate обрабатывает полную заявку и возвращает решение о допуске
// POST /api/orchestrate
func (h *OrchestrationHandler) Orchestrate(w http.ResponseWriter, r *http.Request) {
	var req domain.OrchestrationRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	decision, err := h.service.Process(r.Context(), req)
	if err != nil {
		if domain.IsValidation(err) {
			h.logger.Debug("orchestration request rejected", zap.Error(err))
		} else {
			h.logger.Error("orchestration failed", zap.Error(err))
		}
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, decision)
}
