package curriculum

import (
	"fmt"
	"strings"

	"seal-gateway/internal/intervention"
)

const curriculumTemplate = `You are an expert Educational Intervention Specialist focusing on emotional intelligence development in children.

TASK: Create a personalized intervention plan based on grade level and current performance.

STUDENT INFORMATION:
- Grade Level: {grade_level}
- Focus Areas: {skill_areas}
- Current Score: {score}%

AVAILABLE INTERVENTIONS:
{interventions}

Your response MUST be in valid JSON format matching this schema:
{schema}

Guidelines:
1. Select interventions appropriate for the grade level
2. Focus on areas where the score indicates need for improvement
3. Consider the developmental stage and capabilities
4. Provide a clear implementation order
5. Ensure all activities are age-appropriate and engaging

Return only a valid JSON object matching the schema exactly.`

type catalogEntry struct {
	Name    string
	Grades  []GradeLevel
	Skill   SkillArea
	Summary string
}

// Static intervention catalog, condensed from the curriculum content tables.
var catalog = []catalogEntry{
	{"Color Me", []GradeLevel{Grade1}, SkillEmotionalAwareness,
		"Use color to represent different feelings with coloring pages and mandalas"},
	{"Feelings Chart", []GradeLevel{Grade2, Grade5}, SkillEmotionalAwareness,
		"Display emotion charts; children point to their current feeling"},
	{"Who am I?", []GradeLevel{Grade2}, SkillEmotionalAwareness,
		"Journal personal values and share thoughts safely"},
	{"This is me", []GradeLevel{Grade2}, SkillEmotionalAwareness,
		"Create identity collages showing different aspects of self"},
	{"Animal Sounds", []GradeLevel{Grade1}, SkillEmotionalRegulation,
		"Build self-awareness through animal sound exercises"},
	{"Mindfulness Exercise", []GradeLevel{Grade2, Grade5}, SkillEmotionalRegulation,
		"Guided body scan meditation to reduce stress and improve focus"},
	{"Heart Breathing", []GradeLevel{Grade2, Grade5}, SkillEmotionalRegulation,
		"Feel the heartbeat while practicing deep breathing"},
	{"Balloon Breathing", []GradeLevel{Grade1, Grade2}, SkillAngerManagement,
		"Slow balloon-style breaths to cool down strong feelings"},
	{"Calm Corner", []GradeLevel{Grade1, Grade2, Grade5}, SkillAngerManagement,
		"A quiet classroom space with calming tools for resetting"},
	{"Feelings Thermometer", []GradeLevel{Grade5}, SkillAngerManagement,
		"Rate anger intensity and pick a matching cool-down strategy"},
}

type PromptBuilder struct{}

// Build composes the curriculum prompt. An unknown grade level is a
// configuration gap surfaced as TemplateNotFoundError before any call.
func (PromptBuilder) Build(req Request) (string, error) {
	entries := catalogFor(req.GradeLevel, req.SkillAreas)
	if len(entries) == 0 {
		return "", &intervention.TemplateNotFoundError{
			Key: fmt.Sprintf("grade=%s skills=%s", req.GradeLevel, joinSkills(req.SkillAreas)),
		}
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		grades := make([]string, 0, len(entry.Grades))
		for _, g := range entry.Grades {
			grades = append(grades, string(g))
		}
		lines = append(lines, fmt.Sprintf("- %s (grades %s, %s): %s",
			entry.Name, strings.Join(grades, ","), entry.Skill, entry.Summary))
	}

	replacer := strings.NewReplacer(
		"{grade_level}", string(req.GradeLevel),
		"{skill_areas}", joinSkills(req.SkillAreas),
		"{score}", fmt.Sprintf("%.1f", req.Score),
		"{interventions}", strings.Join(lines, "\n"),
		"{schema}", ResponseSchemaJSON,
	)
	return replacer.Replace(curriculumTemplate), nil
}

func catalogFor(grade GradeLevel, skills []SkillArea) []catalogEntry {
	wanted := make(map[SkillArea]bool, len(skills))
	for _, s := range skills {
		wanted[s] = true
	}
	var out []catalogEntry
	for _, entry := range catalog {
		if !wanted[entry.Skill] {
			continue
		}
		for _, g := range entry.Grades {
			if g == grade {
				out = append(out, entry)
				break
			}
		}
	}
	return out
}

func joinSkills(skills []SkillArea) string {
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, string(s))
	}
	return strings.Join(names, ", ")
}
