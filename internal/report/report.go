// Package report defines the durable audit report schema and its
// persistence. Reports are versioned, diffable JSON documents; raw tool
// output is never stored, keeping reports tool-version-independent.
package report

import (
	"sort"
	"time"

	"github.com/secaudit/secaudit/internal/finding"
)

// SchemaVersion is bumped when the report document shape changes.
// Readers ignore unknown fields, so older readers stay compatible.
const SchemaVersion = 1

// InvocationStatus is the recorded outcome of one adapter invocation
// against one target. Every invocation ends in exactly one status, so an
// auditor can distinguish "no issues found" from "scan didn't run".
type InvocationStatus string

const (
	StatusCompleted    InvocationStatus = "completed"
	StatusTimedOut     InvocationStatus = "timed-out"
	StatusToolNotFound InvocationStatus = "tool-not-found"
	StatusParseError   InvocationStatus = "parse-error"
	StatusFailed       InvocationStatus = "failed"
)

// Invocation records one (target, adapter) execution.
type Invocation struct {
	Target          string           `json:"target"`
	Adapter         string           `json:"adapter"`
	Status          InvocationStatus `json:"status"`
	Detail          string           `json:"detail,omitempty"`
	DurationSeconds float64          `json:"duration_seconds"`
}

// AdapterInfo names an adapter that took part in the run along with the
// version of its severity-mapping table.
type AdapterInfo struct {
	Name         string `json:"name"`
	TableVersion string `json:"table_version"`
}

// Metadata is the run-level bookkeeping attached to a report.
type Metadata struct {
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Partial     bool          `json:"partial,omitempty"`
	Adapters    []AdapterInfo `json:"adapters"`
	Invocations []Invocation  `json:"invocations"`
}

// AuditReport aggregates all findings of one run across all targets.
// It is never mutated after persistence.
type AuditReport struct {
	SchemaVersion int               `json:"schema_version"`
	Metadata      Metadata          `json:"metadata"`
	Targets       []finding.Target  `json:"targets"`
	Findings      []finding.Finding `json:"findings"`
}

// SortFindings imposes the report ordering: grouped by target (in the
// order targets were given), severity descending, then insertion order.
// The sort is stable so deterministic adapter output yields a
// deterministic report.
func (r *AuditReport) SortFindings() {
	targetIndex := make(map[string]int, len(r.Targets))
	for i, t := range r.Targets {
		targetIndex[t.Identifier] = i
	}

	sort.SliceStable(r.Findings, func(i, j int) bool {
		a, b := r.Findings[i], r.Findings[j]
		ai, aok := targetIndex[a.Target]
		bi, bok := targetIndex[b.Target]
		if !aok {
			ai = len(r.Targets)
		}
		if !bok {
			bi = len(r.Targets)
		}
		if ai != bi {
			return ai < bi
		}
		return a.Severity.Rank() > b.Severity.Rank()
	})
}

// SortInvocations orders invocation records by target then adapter so the
// metadata section diffs cleanly across runs.
func (r *AuditReport) SortInvocations() {
	sort.SliceStable(r.Metadata.Invocations, func(i, j int) bool {
		a, b := r.Metadata.Invocations[i], r.Metadata.Invocations[j]
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Adapter < b.Adapter
	})
}

// CountBySeverity tallies findings per severity level.
func (r *AuditReport) CountBySeverity() map[finding.Severity]int {
	counts := make(map[finding.Severity]int)
	for _, f := range r.Findings {
		counts[f.Severity]++
	}
	return counts
}
