package domain

import (
	"time"
)

// DecisionStatus — статус решения о допуске.
type DecisionStatus string

const (
	DecisionApproved DecisionStatus = "approved"
	DecisionRejected DecisionStatus = "rejected"

	// DecisionPending зарезервирован для внешних согласований (HITL):
	// движок сам его не выставляет, но значение валидно для фильтров,
	// статистики и сторонних писателей.
	DecisionPending DecisionStatus = "pending"
)

// Valid проверяет принадлежность закрытому набору статусов.
func (s DecisionStatus) Valid() bool {
	switch s {
	case DecisionApproved, DecisionRejected, DecisionPending:
		return true
	}
	return false
}

// ParseDecisionStatus разбирает статус с границы API.
// Пустая строка — это "без фильтра", не ошибка.
func ParseDecisionStatus(raw string) (DecisionStatus, error) {
	if raw == "" {
		return "", nil
	}
	s := DecisionStatus(raw)
	if !s.Valid() {
		return "", &ValidationError{Field: "status", Message: "unknown decision status: " + raw}
	}
	return s, nil
}

// Decision — итог одного вызова оркестрации. Ссылается на породившее
// face-событие и на EPI-события, созданные в том же вызове.
type Decision struct {
	ID              string         `json:"id"`
	Timestamp       time.Time      `json:"timestamp"`
	Decision        DecisionStatus `json:"decision"`
	PersonID        *string        `json:"person_id,omitempty"`
	Location        *string        `json:"location,omitempty"`
	FaceEventID     string         `json:"face_event_id"`
	EpiEventIDs     []string       `json:"epi_event_ids"`
	Reason          string         `json:"reason"`
	ConfidenceScore float64        `json:"confidence_score"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// OrchestrationRequest — единая заявка: face-событие + набор EPI-событий +
// значения person/location уровня запроса (fallback для событий, где они
// не заданы).
type OrchestrationRequest struct {
	FaceEvent FaceEventInput  `json:"face_event"`
	EpiEvents []EpiEventInput `json:"epi_events"`
	PersonID  *string         `json:"person_id,omitempty"`
	Location  *string         `json:"location,omitempty"`

	// RequiredEpis == nil означает "не задано" и трактуется как [helmet].
	// Пустой список — осознанное "ничего не требуем".
	RequiredEpis []EpiType `json:"required_epis"`
}

// Validate проверяет весь запрос целиком до начала персистенса.
func (r *OrchestrationRequest) Validate() error {
	if err := r.FaceEvent.Validate(); err != nil {
		return prefixField("face_event", err)
	}
	for i := range r.EpiEvents {
		if err := r.EpiEvents[i].Validate(); err != nil {
			return prefixField("epi_events", err)
		}
	}
	for _, t := range r.RequiredEpis {
		if !t.Valid() {
			return &ValidationError{Field: "required_epis", Message: "unknown EPI type: " + string(t)}
		}
	}
	return nil
}
