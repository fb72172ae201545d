package intervention

import (
	"fmt"
	"time"
)

// Area is one of the fixed EMT assessment categories scored per class.
type Area string

const (
	AreaEMT1 Area = "EMT1" // visual emotion matching
	AreaEMT2 Area = "EMT2" // situation-to-expression connection
	AreaEMT3 Area = "EMT3" // expression labeling
	AreaEMT4 Area = "EMT4" // label-to-expression matching
)

// Areas returns the known area keys in their fixed order.
func Areas() []Area {
	return []Area{AreaEMT1, AreaEMT2, AreaEMT3, AreaEMT4}
}

func KnownArea(area Area) bool {
	for _, known := range Areas() {
		if area == known {
			return true
		}
	}
	return false
}

// ScoreSet holds raw per-student scores per area. Raw values never travel
// past the aggregator.
type ScoreSet map[Area][]float64

type AreaAverage struct {
	Average float64 `json:"average"`
	HasData bool    `json:"has_data"`
}

// AggregatedScores carries one entry per known area key. Rendering always
// walks Areas() so output order stays fixed.
type AggregatedScores map[Area]AreaAverage

type ClassMetadata struct {
	ClassID       string `json:"class_id"`
	DeficientArea Area   `json:"deficient_area"`
	NumStudents   int    `json:"num_students"`
}

type InterventionRequest struct {
	Scores   ScoreSet      `json:"scores"`
	Metadata ClassMetadata `json:"metadata"`
}

func (r InterventionRequest) Validate() error {
	if r.Metadata.ClassID == "" {
		return &ValidationError{Field: "metadata.class_id", Reason: "required"}
	}
	if r.Metadata.NumStudents <= 0 {
		return &ValidationError{Field: "metadata.num_students", Reason: "must be positive"}
	}
	if !KnownArea(r.Metadata.DeficientArea) {
		return &ValidationError{
			Field:  "metadata.deficient_area",
			Reason: fmt.Sprintf("unknown area %q", r.Metadata.DeficientArea),
		}
	}
	for area, values := range r.Scores {
		if !KnownArea(area) {
			return &ValidationError{Field: "scores", Reason: fmt.Sprintf("unknown area %q", area)}
		}
		for _, v := range values {
			if v < 0 || v > 100 {
				return &ValidationError{
					Field:  "scores." + string(area),
					Reason: fmt.Sprintf("score %.2f outside 0-100", v),
				}
			}
		}
	}
	return nil
}

type GenerationParams struct {
	Temperature     float64
	MaxOutputTokens int
}

type CallStatus string

const (
	CallSuccess   CallStatus = "success"
	CallExhausted CallStatus = "exhausted"
	CallFatal     CallStatus = "fatal"
)

// GatewayCallResult records the outcome of one gateway invocation including
// failures, so latency and attempt counts are observable either way.
type GatewayCallResult struct {
	Text     string
	Latency  time.Duration
	Attempts int
	Status   CallStatus
}

type InterventionStrategy struct {
	Activity         string   `json:"activity"`
	Implementation   []string `json:"implementation"`
	ExpectedOutcomes []string `json:"expected_outcomes"`
	TimeAllocation   string   `json:"time_allocation"`
	Resources        []string `json:"resources"`
}

type SuccessMetrics struct {
	Quantitative      []string `json:"quantitative"`
	Qualitative       []string `json:"qualitative"`
	AssessmentMethods []string `json:"assessment_methods"`
}

type InterventionPlan struct {
	Analysis       string                 `json:"analysis"`
	Strategies     []InterventionStrategy `json:"strategies"`
	Timeline       map[string][]string    `json:"timeline"`
	SuccessMetrics SuccessMetrics         `json:"success_metrics"`
}
