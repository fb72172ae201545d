package intervention

import (
	"errors"
	"testing"
)

const validPlanJSON = `{
  "analysis": "EMT2 averages trail the other areas by roughly ten points.",
  "strategies": [
    {
      "activity": "Feelings detective",
      "implementation": ["Show a situation card", "Ask what the person might feel"],
      "expected_outcomes": ["Students connect situations to expressions"],
      "time_allocation": "15 minutes daily",
      "resources": ["situation cards", "emotion posters"]
    }
  ],
  "timeline": {
    "week_1_2": ["Introduce situation cards"],
    "week_3_4": ["Pair practice"]
  },
  "success_metrics": {
    "quantitative": ["EMT2 average improves by 10%"],
    "qualitative": ["Students describe feelings unprompted"],
    "assessment_methods": ["Re-run the EMT2 assessment"]
  }
}`

func TestValidateDirectParse(t *testing.T) {
	validator := NewPlanValidator()
	plan, err := validator.Validate(validPlanJSON)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if plan.Analysis == "" || len(plan.Strategies) != 1 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	if plan.Strategies[0].Activity != "Feelings detective" {
		t.Fatalf("strategy = %q", plan.Strategies[0].Activity)
	}
}

func TestValidateRepairsFencedOutput(t *testing.T) {
	validator := NewPlanValidator()
	fenced := "```json\n" + validPlanJSON + "\n```"
	plan, err := validator.Validate(fenced)
	if err != nil {
		t.Fatalf("Validate fenced: %v", err)
	}
	if plan == nil {
		t.Fatalf("nil plan")
	}
}

func TestValidateRepairsProseWrappedOutput(t *testing.T) {
	validator := NewPlanValidator()
	wrapped := "Here is the plan you asked for:\n" + validPlanJSON + "\nLet me know if you need changes."
	if _, err := validator.Validate(wrapped); err != nil {
		t.Fatalf("Validate wrapped: %v", err)
	}
}

func TestValidateExactlyOneRepairAttempt(t *testing.T) {
	validator := NewPlanValidator()
	repairs := 0
	validator.repair = func(text string) (string, bool) {
		repairs++
		return extractJSON(text)
	}

	// not JSON and not repairable into valid JSON
	_, err := validator.Validate("the model refused { to answer")
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
	if repairs != 1 {
		t.Fatalf("repair attempts = %d, want exactly 1", repairs)
	}
}

func TestValidateNoRepairOnDirectSuccess(t *testing.T) {
	validator := NewPlanValidator()
	repairs := 0
	validator.repair = func(text string) (string, bool) {
		repairs++
		return extractJSON(text)
	}
	if _, err := validator.Validate(validPlanJSON); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if repairs != 0 {
		t.Fatalf("repair must not run when direct parse succeeds")
	}
}

func TestValidateMissingRequiredField(t *testing.T) {
	validator := NewPlanValidator()
	// analysis removed; required fields are never default-filled
	missing := `{
  "strategies": [{"activity": "a", "implementation": ["x"], "expected_outcomes": ["y"], "time_allocation": "t", "resources": ["r"]}],
  "timeline": {"week_1": ["x"]},
  "success_metrics": {"quantitative": ["q"], "qualitative": ["l"], "assessment_methods": ["m"]}
}`
	_, err := validator.Validate(missing)
	var mismatch *SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected SchemaMismatchError, got %v", err)
	}
	if len(mismatch.Causes) == 0 {
		t.Fatalf("mismatch should carry schema causes")
	}
}

func TestValidateRejectsUnknownTopLevelField(t *testing.T) {
	validator := NewPlanValidator()
	extra := `{"analysis": "a", "strategies": [{"activity": "a", "implementation": ["x"], "expected_outcomes": ["y"], "time_allocation": "t", "resources": ["r"]}], "timeline": {"w": ["x"]}, "success_metrics": {"quantitative": ["q"], "qualitative": ["l"], "assessment_methods": ["m"]}, "notes": "surplus"}`
	var mismatch *SchemaMismatchError
	if _, err := validator.Validate(extra); !errors.As(err, &mismatch) {
		t.Fatalf("additional top-level properties must fail, got %v", err)
	}
}

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"prefix {\"a\":1} suffix", `{"a":1}`, true},
		{"no braces here", "", false},
		{"only open {", "", false},
	}
	for _, tc := range cases {
		got, ok := extractJSON(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("extractJSON(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
