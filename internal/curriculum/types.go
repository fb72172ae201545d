package curriculum

import (
	"fmt"

	"seal-gateway/internal/intervention"
)

type SkillArea string

const (
	SkillEmotionalAwareness  SkillArea = "emotional_awareness"
	SkillEmotionalRegulation SkillArea = "emotional_regulation"
	SkillAngerManagement     SkillArea = "anger_management"
)

func KnownSkillArea(area SkillArea) bool {
	switch area {
	case SkillEmotionalAwareness, SkillEmotionalRegulation, SkillAngerManagement:
		return true
	}
	return false
}

type GradeLevel string

const (
	Grade1 GradeLevel = "1"
	Grade2 GradeLevel = "2"
	Grade5 GradeLevel = "5"
)

func KnownGradeLevel(grade GradeLevel) bool {
	switch grade {
	case Grade1, Grade2, Grade5:
		return true
	}
	return false
}

type Request struct {
	GradeLevel GradeLevel  `json:"grade_level"`
	SkillAreas []SkillArea `json:"skill_areas"`
	Score      float64     `json:"score"`
}

func (r Request) Validate() error {
	if !KnownGradeLevel(r.GradeLevel) {
		return &intervention.ValidationError{
			Field:  "grade_level",
			Reason: fmt.Sprintf("unknown grade %q", r.GradeLevel),
		}
	}
	if len(r.SkillAreas) == 0 {
		return &intervention.ValidationError{Field: "skill_areas", Reason: "at least one required"}
	}
	for _, area := range r.SkillAreas {
		if !KnownSkillArea(area) {
			return &intervention.ValidationError{
				Field:  "skill_areas",
				Reason: fmt.Sprintf("unknown skill area %q", area),
			}
		}
	}
	if r.Score < 0 || r.Score > 100 {
		return &intervention.ValidationError{
			Field:  "score",
			Reason: fmt.Sprintf("score %.2f outside 0-100", r.Score),
		}
	}
	return nil
}

type Implementation struct {
	Steps          []string `json:"steps"`
	Materials      []string `json:"materials,omitempty"`
	TimeAllocation string   `json:"time_allocation,omitempty"`
}

type Intervention struct {
	Name            string         `json:"name"`
	GradeLevels     []GradeLevel   `json:"grade_levels"`
	SkillArea       SkillArea      `json:"skill_area"`
	Summary         string         `json:"summary"`
	Implementation  Implementation `json:"implementation"`
	IntendedPurpose string         `json:"intended_purpose"`
}

type Response struct {
	RecommendedInterventions []Intervention `json:"recommended_interventions"`
	SkillFocus               []string       `json:"skill_focus"`
	ImplementationOrder      []string       `json:"implementation_order"`
}
