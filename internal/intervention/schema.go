package intervention

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// PlanSchemaJSON is the wire schema for intervention plans. It is embedded
// in the prompt and enforced on the way back.
const PlanSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["analysis", "strategies", "timeline", "success_metrics"],
  "additionalProperties": false,
  "properties": {
    "analysis": {"type": "string", "minLength": 1},
    "strategies": {
      "type": "array",
      "minItems": 1,
      "maxItems": 5,
      "items": {
        "type": "object",
        "required": ["activity", "implementation", "expected_outcomes", "time_allocation", "resources"],
        "properties": {
          "activity": {"type": "string", "minLength": 1},
          "implementation": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "expected_outcomes": {"type": "array", "items": {"type": "string"}, "minItems": 1},
          "time_allocation": {"type": "string", "minLength": 1},
          "resources": {"type": "array", "items": {"type": "string"}, "minItems": 1}
        }
      }
    },
    "timeline": {
      "type": "object",
      "minProperties": 1,
      "additionalProperties": {"type": "array", "items": {"type": "string"}}
    },
    "success_metrics": {
      "type": "object",
      "required": ["quantitative", "qualitative", "assessment_methods"],
      "properties": {
        "quantitative": {"type": "array", "items": {"type": "string"}, "minItems": 1},
        "qualitative": {"type": "array", "items": {"type": "string"}, "minItems": 1},
        "assessment_methods": {"type": "array", "items": {"type": "string"}, "minItems": 1}
      }
    }
  }
}`

var schemaErrorPrinter = message.NewPrinter(language.English)

// Validator parses guardrail-cleared text into T, enforcing the compiled
// JSON Schema. On a failed direct parse it makes exactly one repair attempt
// (lenient extraction) before failing with SchemaMismatchError. Missing
// required fields are never default-filled.
type Validator[T any] struct {
	schema *jsonschema.Schema
	repair func(string) (string, bool)
}

func NewValidator[T any](schemaJSON, name string) *Validator[T] {
	return &Validator[T]{
		schema: mustCompileSchema(schemaJSON, name),
		repair: extractJSON,
	}
}

func NewPlanValidator() *Validator[InterventionPlan] {
	return NewValidator[InterventionPlan](PlanSchemaJSON, "intervention_plan.schema.json")
}

func mustCompileSchema(raw, name string) *jsonschema.Schema {
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		panic(fmt.Sprintf("parse embedded %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, doc); err != nil {
		panic(fmt.Sprintf("add %s resource: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compile %s: %v", name, err))
	}
	return schema
}

func (v *Validator[T]) Validate(text string) (*T, error) {
	out, directErr := v.parse(text)
	if directErr == nil {
		return out, nil
	}

	// single repair attempt
	repaired, ok := v.repair(text)
	if ok {
		out, repairErr := v.parse(repaired)
		if repairErr == nil {
			return out, nil
		}
		return nil, &SchemaMismatchError{
			Reason: "direct parse and repair attempt both failed",
			Causes: schemaCauses(repairErr),
		}
	}
	return nil, &SchemaMismatchError{
		Reason: "direct parse failed and no repairable JSON found",
		Causes: schemaCauses(directErr),
	}
}

func (v *Validator[T]) parse(text string) (*T, error) {
	var instance any
	if err := json.Unmarshal([]byte(text), &instance); err != nil {
		return nil, fmt.Errorf("decode json: %w", err)
	}
	if err := v.schema.Validate(instance); err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, fmt.Errorf("bind json: %w", err)
	}
	return &out, nil
}

func schemaCauses(err error) []string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{err.Error()}
	}
	var causes []string
	collectSchemaErrors(ve, &causes)
	return causes
}

func collectSchemaErrors(ve *jsonschema.ValidationError, causes *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*causes = append(*causes, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(schemaErrorPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, causes)
	}
}

// extractJSON is the lenient repair heuristic: strip markdown fences and a
// leading "json" tag, then slice from the first '{' to the last '}'.
func extractJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimPrefix(text, "json")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
