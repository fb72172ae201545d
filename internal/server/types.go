package server

import (
	"seal-gateway/internal/intervention"
)

// ScoreRequest is the wire shape of POST /score. The routing layer converts
// it into the core's request type after JSON-level validation.
type ScoreRequest struct {
	Scores   map[string][]float64 `json:"scores"`
	Metadata ScoreMetadata        `json:"metadata"`
}

type ScoreMetadata struct {
	ClassID       string `json:"class_id"`
	DeficientArea string `json:"deficient_area"`
	NumStudents   int    `json:"num_students"`
}

func (r ScoreRequest) ToCore() intervention.InterventionRequest {
	scores := make(intervention.ScoreSet, len(r.Scores))
	for area, values := range r.Scores {
		scores[intervention.Area(area)] = values
	}
	return intervention.InterventionRequest{
		Scores: scores,
		Metadata: intervention.ClassMetadata{
			ClassID:       r.Metadata.ClassID,
			DeficientArea: intervention.Area(r.Metadata.DeficientArea),
			NumStudents:   r.Metadata.NumStudents,
		},
	}
}

type HealthResponse struct {
	Status     string          `json:"status"`
	Version    string          `json:"version"`
	Provider   string          `json:"llm_provider"`
	Subsystems map[string]bool `json:"subsystems"`
}
