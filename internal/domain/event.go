package domain

import (
	"time"
)

// EpiType — закрытый набор типов средств индивидуальной защиты (СИЗ/EPI),
// которые умеют распознавать камеры. Любое значение вне набора отклоняется
// на границе API.
type EpiType string

const (
	EpiHelmet        EpiType = "helmet"
	EpiSafetyGlasses EpiType = "safety_glasses"
	EpiGloves        EpiType = "gloves"
	EpiSafetyShoes   EpiType = "safety_shoes"
	EpiVest          EpiType = "vest"
	EpiMask          EpiType = "mask"
)

// Valid проверяет принадлежность значения закрытому набору.
func (t EpiType) Valid() bool {
	switch t {
	case EpiHelmet, EpiSafetyGlasses, EpiGloves, EpiSafetyShoes, EpiVest, EpiMask:
		return true
	}
	return false
}

// FaceEvent — событие распознавания лица. Запись иммутабельна после
// создания: операций обновления в системе нет, только append и bulk reset.
type FaceEvent struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	Detected     bool           `json:"detected"`
	Confidence   float64        `json:"confidence"`
	QualityScore float64        `json:"quality_score"`
	PersonID     *string        `json:"person_id,omitempty"`
	Location     *string        `json:"location,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// EpiEvent — событие распознавания одного СИЗ на кадре.
type EpiEvent struct {
	ID           string         `json:"id"`
	Timestamp    time.Time      `json:"timestamp"`
	EpiType      EpiType        `json:"epi_type"`
	Detected     bool           `json:"detected"`
	Confidence   float64        `json:"confidence"`
	ProperlyWorn bool           `json:"properly_worn"`
	PersonID     *string        `json:"person_id,omitempty"`
	Location     *string        `json:"location,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// FaceEventInput — входной payload детекции лица. ID и Timestamp клиент
// может прислать сам (например, при офлайн-буферизации на камере) —
// граница их не перезаписывает, а присваивает только отсутствующие.
type FaceEventInput struct {
	ID           string         `json:"id,omitempty"`
	Timestamp    time.Time      `json:"timestamp,omitzero"`
	Detected     bool           `json:"detected"`
	Confidence   float64        `json:"confidence"`
	QualityScore float64        `json:"quality_score"`
	PersonID     *string        `json:"person_id,omitempty"`
	Location     *string        `json:"location,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// Validate отвергает некорректный вход до любого обращения к хранилищу.
func (in *FaceEventInput) Validate() error {
	if err := checkUnit("confidence", in.Confidence); err != nil {
		return err
	}
	if err := checkUnit("quality_score", in.QualityScore); err != nil {
		return err
	}
	return nil
}

// EpiEventInput — входной payload детекции СИЗ.
type EpiEventInput struct {
	ID           string         `json:"id,omitempty"`
	Timestamp    time.Time      `json:"timestamp,omitzero"`
	EpiType      EpiType        `json:"epi_type"`
	Detected     bool           `json:"detected"`
	Confidence   float64        `json:"confidence"`
	ProperlyWorn bool           `json:"properly_worn"`
	PersonID     *string        `json:"person_id,omitempty"`
	Location     *string        `json:"location,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

func (in *EpiEventInput) Validate() error {
	if in.EpiType == "" {
		return &ValidationError{Field: "epi_type", Message: "field is required"}
	}
	if !in.EpiType.Valid() {
		return &ValidationError{Field: "epi_type", Message: "unknown EPI type: " + string(in.EpiType)}
	}
	return checkUnit("confidence", in.Confidence)
}
