package intervention

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Severity orders detected violations: none < low < medium < high < critical.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityNone:
		return "none"
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	case SeverityCritical:
		return "critical"
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// SafetyLevel selects how aggressively the guardrail rejects or redacts.
type SafetyLevel string

const (
	LevelStrict     SafetyLevel = "strict"
	LevelStandard   SafetyLevel = "standard"
	LevelPermissive SafetyLevel = "permissive"
)

func ParseSafetyLevel(s string) (SafetyLevel, error) {
	switch SafetyLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LevelStrict:
		return LevelStrict, nil
	case LevelStandard, "":
		return LevelStandard, nil
	case LevelPermissive:
		return LevelPermissive, nil
	}
	return "", fmt.Errorf("unknown safety level %q", s)
}

type Decision string

const (
	DecisionAllow  Decision = "allow"
	DecisionRedact Decision = "allow_with_redaction"
	DecisionReject Decision = "reject"
)

type Violation struct {
	Category string   `json:"category"`
	Match    string   `json:"match"`
	Severity Severity `json:"severity"`
}

type SafetyVerdict struct {
	Severity   Severity    `json:"severity"`
	Violations []Violation `json:"violations"`
	Decision   Decision    `json:"decision"`
}

type bannedTerm struct {
	term     string
	category string
	severity Severity
}

type patternRule struct {
	pattern  *regexp.Regexp
	category string
	severity Severity
}

// Layer (a): literal banned terms, matched case-insensitively on word
// boundaries.
var bannedTerms = []bannedTerm{
	{"kill", "violence", SeverityHigh},
	{"weapon", "violence", SeverityHigh},
	{"gun", "violence", SeverityHigh},
	{"knife", "violence", SeverityHigh},
	{"suicide", "self-harm", SeverityCritical},
	{"self-harm", "self-harm", SeverityCritical},
	{"stupid", "demeaning-language", SeverityMedium},
	{"worthless", "demeaning-language", SeverityMedium},
	{"failure", "demeaning-language", SeverityLow},
	{"punish", "harsh-discipline", SeverityMedium},
	{"humiliate", "harsh-discipline", SeverityHigh},
	{"isolate", "harsh-discipline", SeverityMedium},
}

var bannedTermRules = func() []patternRule {
	rules := make([]patternRule, 0, len(bannedTerms))
	for _, b := range bannedTerms {
		rules = append(rules, patternRule{
			pattern:  wordPattern(b.term),
			category: b.category,
			severity: b.severity,
		})
	}
	return rules
}()

// Layer (b): phrasing heuristics.
var heuristicPatterns = []patternRule{
	{regexp.MustCompile(`(?i)\bhurt\s+(yourself|themselves|himself|herself)\b`), "self-harm", SeverityCritical},
	{regexp.MustCompile(`(?i)\b(hit|slap|shove|punch)\s+(a|the|another)\s+(child|student|classmate)\b`), "violence", SeverityCritical},
	{regexp.MustCompile(`(?i)\b(home\s+address|phone\s+number|full\s+name\s+and\s+address)\b`), "personal-data", SeverityHigh},
	{regexp.MustCompile(`(?i)\bshare\s+(your|their)\s+(photo|picture|location)\b`), "personal-data", SeverityHigh},
	{regexp.MustCompile(`(?i)\b(scare|frighten|threaten)\s+(the\s+)?(child|children|student)`), "intimidation", SeverityHigh},
}

// Layer (c): structural red flags, instructions unsuitable for classroom use
// with young children.
var structuralPatterns = []patternRule{
	{regexp.MustCompile(`(?i)\b(unsupervised|without\s+(adult|teacher)\s+supervision)\b`), "supervision", SeverityMedium},
	{regexp.MustCompile(`(?i)\b(social\s+media|instagram|tiktok|snapchat)\b`), "age-appropriateness", SeverityMedium},
	{regexp.MustCompile(`(?i)\bmeet\s+.{0,24}\b(alone|in\s+private|one[- ]on[- ]one\s+online)\b`), "age-appropriateness", SeverityHigh},
	{regexp.MustCompile(`(?i)\b(chat\s+room|direct\s+message|dm)\b`), "age-appropriateness", SeverityMedium},
}

// Guardrail runs the layered content checks over raw model output and
// applies the decision policy for its configured safety level.
type Guardrail struct {
	level  SafetyLevel
	logger *slog.Logger
}

func NewGuardrail(level SafetyLevel, logger *slog.Logger) *Guardrail {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guardrail{level: level, logger: logger}
}

func (g *Guardrail) Level() SafetyLevel {
	return g.level
}

// Evaluate runs the layers in fixed order (banned terms, heuristics,
// structural) and always logs the verdict, allowed or not.
func (g *Guardrail) Evaluate(text string) SafetyVerdict {
	var violations []Violation

	for _, layer := range [][]patternRule{bannedTermRules, heuristicPatterns, structuralPatterns} {
		for _, rule := range layer {
			if match := rule.pattern.FindString(text); match != "" {
				violations = append(violations, Violation{
					Category: rule.category,
					Match:    match,
					Severity: rule.severity,
				})
			}
		}
	}

	severity := SeverityNone
	for _, v := range violations {
		if v.Severity > severity {
			severity = v.Severity
		}
	}
	verdict := SafetyVerdict{
		Severity:   severity,
		Violations: violations,
		Decision:   decisionFor(g.level, severity),
	}

	categories := make([]string, 0, len(violations))
	for _, v := range violations {
		categories = append(categories, v.Category)
	}
	g.logger.Info("safety verdict",
		"level", g.level,
		"decision", verdict.Decision,
		"severity", verdict.Severity.String(),
		"violation_count", len(violations),
		"categories", strings.Join(categories, ","),
	)
	return verdict
}

// decisionFor is the severity-to-decision policy table:
//
//	strict:     reject on any violation >= low
//	standard:   reject >= high, redact medium, allow low
//	permissive: reject >= critical, redact high, allow <= medium
func decisionFor(level SafetyLevel, severity Severity) Decision {
	if severity == SeverityNone {
		return DecisionAllow
	}
	switch level {
	case LevelStrict:
		return DecisionReject
	case LevelPermissive:
		switch {
		case severity >= SeverityCritical:
			return DecisionReject
		case severity == SeverityHigh:
			return DecisionRedact
		default:
			return DecisionAllow
		}
	default: // standard
		switch {
		case severity >= SeverityHigh:
			return DecisionReject
		case severity == SeverityMedium:
			return DecisionRedact
		default:
			return DecisionAllow
		}
	}
}

// Redact replaces every matched span with a neutral marker. Only meaningful
// for allow_with_redaction verdicts.
func Redact(text string, verdict SafetyVerdict) string {
	for _, v := range verdict.Violations {
		if v.Match == "" {
			continue
		}
		re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(v.Match))
		text = re.ReplaceAllString(text, "[removed]")
	}
	return text
}

func wordPattern(term string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b`)
}
