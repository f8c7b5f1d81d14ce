package rules

import (
	"fmt"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
)

// Пороги фиксированы осознанно: настраиваемый rule engine — вне задачи
// шлюза. Экспортированы, чтобы тесты не дублировали магические числа.
const (
	// FaceConfidenceThreshold — минимальная уверенность детектора лица.
	FaceConfidenceThreshold = 0.70
	// FaceQualityThreshold — минимальное качество кадра.
	FaceQualityThreshold = 0.60
)

// EvaluateFaceQuality — чистая функция-гейт качества детекции лица.
// Правила применяются по порядку, первая сработавшая решает исход.
// На уже валидированном входе функция не может завершиться ошибкой.
func EvaluateFaceQuality(face domain.FaceEventInput) (bool, string) {
	if !face.Detected {
		return false, "face not detected"
	}

	if face.Confidence < FaceConfidenceThreshold {
		return false, fmt.Sprintf("face detection confidence too low: %.2f", face.Confidence)
	}

	if face.QualityScore < FaceQualityThreshold {
		return false, fmt.Sprintf("face image quality insufficient: %.2f", face.QualityScore)
	}

	return true, "face detection approved"
}
