package intervention

// Static scenario copy per assessment area, condensed from the original
// intervention playbook. Each entry feeds the {area_strategies} slot of the
// base template.

type areaScenario struct {
	Focus       string
	Description string
	Strategies  []string
}

var areaScenarios = map[Area]areaScenario{
	AreaEMT1: {
		Focus:       "Visual Emotion Recognition",
		Description: "Visual-to-visual emotion matching difficulties",
		Strategies: []string{
			"Emotion flashcard pairs for matching practice",
			"Mirror expression practice with emotion cards",
			"Digital emotion matching games with progressive difficulty",
			"Pattern recognition activities with facial expressions",
		},
	},
	AreaEMT2: {
		Focus:       "Situation-to-Expression Connection",
		Description: "Connecting verbal contexts to visual expressions",
		Strategies: []string{
			"Story-based emotion discussions with character analysis",
			"Scenario cards with emotional contexts for matching",
			"Role-playing emotional situations with expression practice",
			"Situational emotion analysis activities",
		},
	},
	AreaEMT3: {
		Focus:       "Emotion Vocabulary Building",
		Description: "Visual to verbal emotion labeling difficulties",
		Strategies: []string{
			"Emotion word wall development and daily practice",
			"Expression-label matching games and activities",
			"Emotion vocabulary journals with daily entries",
			"Vocabulary building through visual-verbal connections",
		},
	},
	AreaEMT4: {
		Focus:       "Emotion Label Comprehension",
		Description: "Verbal label to visual expression matching difficulties",
		Strategies: []string{
			"Emotion word-to-face games and quick responses",
			"Verbal emotion cues practice with audio support",
			"Group emotion word activities and competitions",
			"Label comprehension through interactive exercises",
		},
	},
}

const baseTemplate = `You are an expert Educational Intervention Specialist focusing on emotional intelligence development in children.

TASK: Create a detailed intervention plan for a class showing difficulties in emotional recognition and expression.

SAFETY GUIDELINES - CRITICAL:
- Use ONLY positive, encouraging, and age-appropriate language
- Focus on growth, learning, and development opportunities
- Avoid any negative, harmful, or inappropriate content
- Use simple language that children can understand
- Ensure all activities are safe and suitable for the classroom
- Promote inclusivity and respect for all students

CLASS INFORMATION:
- Class ID: {class_id}
- Number of Students: {num_students}
- Primary Area Needing Intervention: {deficient_area}

CURRENT PERFORMANCE:
EMT Score Averages:
{score_lines}

DEFICIENT AREA PROFILE ({deficient_area} - {focus}):
{description}
Proven Strategies:
{area_strategies}

INSTRUCTIONS:
1. Focus primarily on the deficient area ({deficient_area}) using the proven strategies above
2. Select 3-5 specific activities from the relevant strategy set
3. Adapt activities to be age-appropriate and engaging
4. Include supporting activities from other areas to maintain overall development
5. Create a 4-week progressive implementation timeline
6. Provide measurable success metrics specific to the deficient area

Your response MUST be a valid JSON object matching this schema EXACTLY:
{schema}

IMPORTANT REQUIREMENTS:
1. Return ONLY the JSON object, no other text
2. Include at least 3 strategies (maximum 5)
3. Include a 4-week timeline with progressive activities
4. Provide measurable success metrics
5. ENSURE ALL CONTENT IS POSITIVE, SAFE, AND AGE-APPROPRIATE`

// StaticTemplates is the built-in TemplateProvider backed by the scenario
// table above.
type StaticTemplates struct{}

func (StaticTemplates) Template(area Area) (string, bool) {
	if _, ok := areaScenarios[area]; !ok {
		return "", false
	}
	return baseTemplate, true
}
