package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
	"github.com/xela07ax/epi-orchestrator/internal/service"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: code, Message: message})
}

// writeServiceError маппит таксономию ошибок ядра на HTTP-статусы:
// валидация входа — 400, выключенная очистка — 403, все остальное —
// отказ хранилища, 503 (retryable для клиента).
func writeServiceError(w http.ResponseWriter, err error) {
	var v *domain.ValidationError
	switch {
	case errors.As(err, &v):
		writeError(w, http.StatusBadRequest, "validation_error", v.Field+": "+v.Message)
	case errors.Is(err, service.ErrClearDisabled):
		writeError(w, http.StatusForbidden, "clear_disabled", err.Error())
	default:
		writeError(w, http.StatusServiceUnavailable, "store_unavailable", "event store failure, retry later")
	}
}
