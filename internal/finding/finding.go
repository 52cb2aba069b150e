package finding

import (
	"fmt"
	"strings"
)

// Severity is the normalized severity scale shared by every adapter.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityLow:      1,
	SeverityMedium:   2,
	SeverityHigh:     3,
	SeverityCritical: 4,
}

// Rank returns the numeric position of the severity, info lowest.
// Unknown severities rank below info so they can never trip a threshold.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether the severity is one of the known levels.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Exceeds reports whether s is strictly more severe than other.
func (s Severity) Exceeds(other Severity) bool {
	return s.Rank() > other.Rank()
}

// ParseSeverity converts a string into a Severity, case-insensitively.
func ParseSeverity(value string) (Severity, error) {
	s := Severity(strings.ToLower(strings.TrimSpace(value)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown severity: %q", value)
	}
	return s, nil
}

// Category classifies what kind of exposure a finding describes.
type Category string

const (
	CategoryNetworkExposure Category = "network-exposure"
	CategoryInjection       Category = "injection"
	CategoryAuth            Category = "auth"
	CategoryTransport       Category = "transport"
	CategoryConfigAudit     Category = "config-audit"
	CategoryDependencyVuln  Category = "dependency-vuln"
)

var knownCategories = map[Category]struct{}{
	CategoryNetworkExposure: {},
	CategoryInjection:       {},
	CategoryAuth:            {},
	CategoryTransport:       {},
	CategoryConfigAudit:     {},
	CategoryDependencyVuln:  {},
}

// Valid reports whether the category is one of the known categories.
func (c Category) Valid() bool {
	_, ok := knownCategories[c]
	return ok
}

// ParseCategory converts a string into a Category, case-insensitively.
func ParseCategory(value string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(value)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category: %q", value)
	}
	return c, nil
}

// Target identifies a host or URL under audit. Immutable once a run starts.
type Target struct {
	Identifier     string `json:"identifier"`
	Ports          string `json:"ports,omitempty"`
	CredentialsRef string `json:"credentials_ref,omitempty"`
}

// NewTarget validates and builds a Target from its identifier.
func NewTarget(identifier string) (Target, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return Target{}, fmt.Errorf("target identifier cannot be empty")
	}
	return Target{Identifier: identifier}, nil
}

// URL returns the target identifier as a URL, defaulting to https
// when no scheme was given. Adapters that speak HTTP use this form.
func (t Target) URL() string {
	if strings.Contains(t.Identifier, "://") {
		return t.Identifier
	}
	return "https://" + t.Identifier
}

// Finding is one normalized, severity-tagged audit observation.
// A finding references exactly one target and one source adapter.
type Finding struct {
	Target      string   `json:"target"`
	Adapter     string   `json:"adapter"`
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Remediation string   `json:"remediation,omitempty"`
}
