package rules

import (
	"strings"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
)

// EpiConfidenceThreshold — минимальная уверенность детекции СИЗ.
const EpiConfidenceThreshold = 0.70

// EvaluateEpiCompliance — чистая функция-гейт комплектности СИЗ.
// Возвращает вердикт, человекочитаемую причину и список отсутствующих
// обязательных типов (в порядке required).
//
// Missing считается по множеству типов среди detected-событий; improperly
// worn и low confidence — по каждому detected-событию отдельно, поэтому
// повторы одного типа в сообщении сохраняются.
func EvaluateEpiCompliance(epiEvents []domain.EpiEventInput, required []domain.EpiType) (bool, string, []domain.EpiType) {
	detected := make(map[domain.EpiType]struct{}, len(epiEvents))
	for _, e := range epiEvents {
		if e.Detected {
			detected[e.EpiType] = struct{}{}
		}
	}

	missing := make([]domain.EpiType, 0, len(required))
	for _, req := range required {
		if _, ok := detected[req]; !ok {
			missing = append(missing, req)
		}
	}

	var improperlyWorn, lowConfidence []domain.EpiType
	for _, e := range epiEvents {
		if !e.Detected {
			continue
		}
		if !e.ProperlyWorn {
			improperlyWorn = append(improperlyWorn, e.EpiType)
		}
		if e.Confidence < EpiConfidenceThreshold {
			lowConfidence = append(lowConfidence, e.EpiType)
		}
	}

	var issues []string
	if len(missing) > 0 {
		issues = append(issues, "required EPIs not detected: "+joinTypes(missing))
	}
	if len(improperlyWorn) > 0 {
		issues = append(issues, "EPIs improperly worn: "+joinTypes(improperlyWorn))
	}
	if len(lowConfidence) > 0 {
		issues = append(issues, "low detection confidence: "+joinTypes(lowConfidence))
	}

	if len(issues) > 0 {
		return false, strings.Join(issues, "; "), missing
	}

	return true, "all required EPIs detected and correctly used", missing
}

func joinTypes(types []domain.EpiType) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}
