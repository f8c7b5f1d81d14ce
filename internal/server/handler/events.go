package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
)

// EventService Описываем, что нам нужно от ядра для приема одиночных событий
type EventService interface {
	SubmitFaceEvent(ctx context.Context, in domain.FaceEventInput) (*domain.FaceEvent, error)
	SubmitEpiEvent(ctx context.Context, in domain.EpiEventInput) (*domain.EpiEvent, error)
}

type EventHandler struct {
	service EventService
	logger  *zap.Logger
}

func NewEventHandler(s EventService, logger *zap.Logger) *EventHandler {
	return &EventHandler{service: s, logger: logger.Named("events")}
}

// SubmitFace принимает событие детекции лица
// POST /api/events/face
func (h *EventHandler) SubmitFace(w http.ResponseWriter, r *http.Request) {
	var in domain.FaceEventInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	ev, err := h.service.SubmitFaceEvent(r.Context(), in)
	if err != nil {
		h.logError("face event rejected", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ev)
}

// SubmitEpi принимает событие детекции СИЗ
// POST /api/events/epi
func (h *EventHandler) SubmitEpi(w http.ResponseWriter, r *http.Request) {
	var in domain.EpiEventInput
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return
	}

	ev, err := h.service.SubmitEpiEvent(r.Context(), in)
	if err != nil {
		h.logError("epi event rejected", err)
		writeServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ev)
}

func (h *EventHandler) logError(msg string, err error) {
	if domain.IsValidation(err) {
		h.logger.Debug(msg, zap.Error(err))
		return
	}
	h.logger.Error(msg, zap.Error(err))
}
