package intervention

import (
	"fmt"
	"strings"
)

// TemplateProvider hands out the prompt template registered for an area.
// The second return is false when no template exists, which the builder
// treats as a configuration error, not something to retry.
type TemplateProvider interface {
	Template(area Area) (string, bool)
}

type PromptBuilder struct {
	provider TemplateProvider
}

func NewPromptBuilder(provider TemplateProvider) *PromptBuilder {
	if provider == nil {
		provider = StaticTemplates{}
	}
	return &PromptBuilder{provider: provider}
}

// Build composes the final prompt for the declared deficient area. It fails
// with TemplateNotFoundError before any external call is made.
func (b *PromptBuilder) Build(meta ClassMetadata, scores AggregatedScores) (string, error) {
	template, ok := b.provider.Template(meta.DeficientArea)
	if !ok {
		return "", &TemplateNotFoundError{Key: string(meta.DeficientArea)}
	}

	scenario := areaScenarios[meta.DeficientArea]
	replacer := strings.NewReplacer(
		"{class_id}", meta.ClassID,
		"{num_students}", fmt.Sprintf("%d", meta.NumStudents),
		"{deficient_area}", string(meta.DeficientArea),
		"{score_lines}", renderScoreLines(scores),
		"{focus}", scenario.Focus,
		"{description}", scenario.Description,
		"{area_strategies}", renderStrategies(scenario.Strategies),
		"{schema}", PlanSchemaJSON,
	)
	return replacer.Replace(template), nil
}

// renderScoreLines walks the fixed area order so prompt output is stable.
func renderScoreLines(scores AggregatedScores) string {
	lines := make([]string, 0, len(Areas()))
	for _, area := range Areas() {
		entry := scores[area]
		scenario := areaScenarios[area]
		if !entry.HasData {
			lines = append(lines, fmt.Sprintf("- %s (%s): no data", area, scenario.Focus))
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s (%s): %.2f%%", area, scenario.Focus, entry.Average))
	}
	return strings.Join(lines, "\n")
}

func renderStrategies(strategies []string) string {
	lines := make([]string, 0, len(strategies))
	for _, s := range strategies {
		lines = append(lines, "- "+s)
	}
	return strings.Join(lines, "\n")
}
