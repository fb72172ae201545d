package curriculum

import (
	"context"
	"log/slog"

	"seal-gateway/internal/intervention"
)

// ResponseSchemaJSON is the wire schema for curriculum responses.
const ResponseSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["recommended_interventions", "skill_focus", "implementation_order"],
  "additionalProperties": false,
  "properties": {
    "recommended_interventions": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "grade_levels", "skill_area", "summary", "implementation", "intended_purpose"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "grade_levels": {"type": "array", "items": {"type": "string", "enum": ["1", "2", "5"]}, "minItems": 1},
          "skill_area": {"type": "string", "enum": ["emotional_awareness", "emotional_regulation", "anger_management"]},
          "summary": {"type": "string", "minLength": 1},
          "implementation": {
            "type": "object",
            "required": ["steps"],
            "properties": {
              "steps": {"type": "array", "items": {"type": "string"}, "minItems": 1},
              "materials": {"type": "array", "items": {"type": "string"}},
              "time_allocation": {"type": "string"}
            }
          },
          "intended_purpose": {"type": "string", "minLength": 1}
        }
      }
    },
    "skill_focus": {"type": "array", "items": {"type": "string"}, "minItems": 1},
    "implementation_order": {"type": "array", "items": {"type": "string"}, "minItems": 1}
  }
}`

func NewResponseValidator() *intervention.Validator[Response] {
	return intervention.NewValidator[Response](ResponseSchemaJSON, "curriculum_response.schema.json")
}

// Service is the curriculum variant of the pipeline. It shares the gateway
// core, guardrail and validator machinery and reports liveness under its own
// health subsystem.
type Service struct {
	gateway   *intervention.Gateway
	prompts   PromptBuilder
	guard     *intervention.Guardrail
	validator *intervention.Validator[Response]
	limiter   *intervention.CallLimiter
	logger    *slog.Logger
}

// NewService builds the curriculum pipeline. The limiter must be the same
// one the intervention pipeline holds, so the per-process bound on
// outstanding model calls covers both paths; a nil limiter gets a private
// default.
func NewService(gateway *intervention.Gateway, guard *intervention.Guardrail, limiter *intervention.CallLimiter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if limiter == nil {
		limiter = intervention.NewCallLimiter(0)
	}
	return &Service{
		gateway:   gateway,
		guard:     guard,
		validator: NewResponseValidator(),
		limiter:   limiter,
		logger:    logger,
	}
}

func (s *Service) GeneratePlan(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	prompt, err := s.prompts.Build(req)
	if err != nil {
		return nil, err
	}
	if !s.limiter.TryAcquire() {
		return nil, &intervention.BackpressureError{Limit: s.limiter.Limit()}
	}
	defer s.limiter.Release()

	result, err := s.gateway.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	verdict := s.guard.Evaluate(result.Text)
	text := result.Text
	switch verdict.Decision {
	case intervention.DecisionReject:
		return nil, &intervention.SafetyRejection{Verdict: verdict}
	case intervention.DecisionRedact:
		text = intervention.Redact(text, verdict)
	}

	response, err := s.validator.Validate(text)
	if err != nil {
		return nil, err
	}
	s.logger.Info("curriculum plan generated",
		"grade_level", req.GradeLevel,
		"interventions", len(response.RecommendedInterventions),
		"attempts", result.Attempts,
	)
	return response, nil
}

// Probe feeds the curriculum subsystem's liveness flag.
func (s *Service) Probe(ctx context.Context) bool {
	return s.gateway.Probe(ctx)
}
