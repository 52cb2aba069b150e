// Package policy converts an audit report into a pass/warn/fail verdict
// using an explicit threshold configuration. Evaluation is a pure function
// of (report, rules), so verdicts can be recomputed offline from stored
// reports.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/secaudit/secaudit/internal/finding"
	"github.com/secaudit/secaudit/internal/report"
)

// ErrConfig indicates malformed policy rules. Configuration errors are
// fatal before any adapter executes - a typo must never yield a false pass.
var ErrConfig = errors.New("invalid policy configuration")

// Rules is the explicit policy configuration.
type Rules struct {
	MaxSeverityAllowed      finding.Severity         `yaml:"max_severity_allowed"`
	RequiredCategoriesClear []finding.Category       `yaml:"required_categories_clear"`
	PerCategoryThreshold    map[finding.Category]int `yaml:"per_category_threshold"`
}

// Load reads rules from a YAML file. Unknown keys are rejected (fail
// closed), as are unknown severity or category names.
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return Parse(data)
}

// Parse decodes and validates policy rules.
func Parse(data []byte) (*Rules, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var rules Rules
	if err := dec.Decode(&rules); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: policy document is empty", ErrConfig)
		}
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	if rules.MaxSeverityAllowed == "" {
		return nil, fmt.Errorf("%w: max_severity_allowed is required", ErrConfig)
	}
	if !rules.MaxSeverityAllowed.Valid() {
		return nil, fmt.Errorf("%w: unknown severity %q", ErrConfig, rules.MaxSeverityAllowed)
	}
	for _, c := range rules.RequiredCategoriesClear {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrConfig, c)
		}
	}
	for c, n := range rules.PerCategoryThreshold {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrConfig, c)
		}
		if n < 0 {
			return nil, fmt.Errorf("%w: threshold for %q cannot be negative", ErrConfig, c)
		}
	}

	return &rules, nil
}

// Decision is the overall outcome of evaluating a report.
type Decision string

const (
	DecisionPass Decision = "pass"
	DecisionWarn Decision = "warn"
	DecisionFail Decision = "fail"
)

// ExitCode maps a decision onto the CLI exit-code contract.
func (d Decision) ExitCode() int {
	switch d {
	case DecisionPass:
		return 0
	case DecisionWarn:
		return 1
	default:
		return 2
	}
}

// Violation names a finding that tripped a rule.
type Violation struct {
	Finding finding.Finding `json:"finding"`
	Rule    string          `json:"rule"`
}

// Verdict is the evaluated outcome plus the findings that triggered it.
type Verdict struct {
	Decision   Decision    `json:"decision"`
	Violations []Violation `json:"violations,omitempty"`
}

// Evaluate applies the rules to the report. Fail when any finding exceeds
// the allowed severity, any required-clear category has a finding, or any
// per-category count exceeds its threshold; warn when any medium-or-worse
// finding exists; pass otherwise. No I/O, idempotent.
func Evaluate(r *report.AuditReport, rules Rules) Verdict {
	verdict := Verdict{Decision: DecisionPass}

	requiredClear := make(map[finding.Category]struct{}, len(rules.RequiredCategoriesClear))
	for _, c := range rules.RequiredCategoriesClear {
		requiredClear[c] = struct{}{}
	}

	categoryCounts := make(map[finding.Category]int)
	anyMedium := false

	for _, f := range r.Findings {
		categoryCounts[f.Category]++

		if f.Severity.Exceeds(rules.MaxSeverityAllowed) {
			verdict.Violations = append(verdict.Violations, Violation{
				Finding: f,
				Rule:    fmt.Sprintf("severity %s exceeds max allowed %s", f.Severity, rules.MaxSeverityAllowed),
			})
		}
		if _, ok := requiredClear[f.Category]; ok {
			verdict.Violations = append(verdict.Violations, Violation{
				Finding: f,
				Rule:    fmt.Sprintf("category %s is required to be clear", f.Category),
			})
		}
		if f.Severity.Exceeds(finding.SeverityLow) {
			anyMedium = true
		}
	}

	// Thresholds are checked in sorted category order so repeated
	// evaluations of the same report yield identical verdicts.
	thresholdCategories := make([]finding.Category, 0, len(rules.PerCategoryThreshold))
	for category := range rules.PerCategoryThreshold {
		thresholdCategories = append(thresholdCategories, category)
	}
	sort.Slice(thresholdCategories, func(i, j int) bool { return thresholdCategories[i] < thresholdCategories[j] })

	for _, category := range thresholdCategories {
		limit := rules.PerCategoryThreshold[category]
		if count := categoryCounts[category]; count > limit {
			for _, f := range r.Findings {
				if f.Category != category {
					continue
				}
				verdict.Violations = append(verdict.Violations, Violation{
					Finding: f,
					Rule:    fmt.Sprintf("category %s count %d exceeds threshold %d", category, count, limit),
				})
			}
		}
	}

	switch {
	case len(verdict.Violations) > 0:
		verdict.Decision = DecisionFail
	case anyMedium:
		verdict.Decision = DecisionWarn
	}

	return verdict
}
