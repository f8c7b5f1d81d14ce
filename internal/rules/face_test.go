package rules

import (
	"strings"
	"testing"

	"github.com/xela07ax/epi-orchestrator/internal/domain"
)

func TestEvaluateFaceQuality(t *testing.T) {
	tests := []struct {
		name       string
		input      domain.FaceEventInput
		wantPassed bool
		wantReason string
	}{
		{
			name:       "not detected fails regardless of scores",
			input:      domain.FaceEventInput{Detected: false, Confidence: 0.9, QualityScore: 0.9},
			wantPassed: false,
			wantReason: "face not detected",
		},
		{
			name:       "low confidence mentions the value",
			input:      domain.FaceEventInput{Detected: true, Confidence: 0.5, QualityScore: 0.9},
			wantPassed: false,
			wantReason: "0.50",
		},
		{
			name:       "low quality mentions the value",
			input:      domain.FaceEventInput{Detected: true, Confidence: 0.95, QualityScore: 0.55},
			wantPassed: false,
			wantReason: "0.55",
		},
		{
			name:       "confidence exactly at threshold passes",
			input:      domain.FaceEventInput{Detected: true, Confidence: FaceConfidenceThreshold, QualityScore: FaceQualityThreshold},
			wantPassed: true,
			wantReason: "face detection approved",
		},
		{
			name:       "good detection passes",
			input:      domain.FaceEventInput{Detected: true, Confidence: 0.95, QualityScore: 0.8},
			wantPassed: true,
			wantReason: "face detection approved",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed, reason := EvaluateFaceQuality(tt.input)
			if passed != tt.wantPassed {
				t.Fatalf("passed = %v, want %v (reason: %q)", passed, tt.wantPassed, reason)
			}
			if !strings.Contains(reason, tt.wantReason) {
				t.Errorf("reason = %q, want it to contain %q", reason, tt.wantReason)
			}
		})
	}
}

func TestEvaluateFaceQualityConfidenceBeatsQuality(t *testing.T) {
	// Оба порога нарушены — побеждает первое правило по порядку.
	_, reason := EvaluateFaceQuality(domain.FaceEventInput{Detected: true, Confidence: 0.1, QualityScore: 0.1})
	if !strings.Contains(reason, "confidence") {
		t.Errorf("reason = %q, want the confidence rule to win", reason)
	}
}

func TestEvaluateFaceQualityDeterministic(t *testing.T) {
	in := domain.FaceEventInput{Detected: true, Confidence: 0.73, QualityScore: 0.61}
	p1, r1 := EvaluateFaceQuality(in)
	p2, r2 := EvaluateFaceQuality(in)
	if p1 != p2 || r1 != r2 {
		t.Errorf("same input produced different results: (%v, %q) vs (%v, %q)", p1, r1, p2, r2)
	}
}
