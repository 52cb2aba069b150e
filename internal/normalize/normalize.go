// Package normalize converts raw adapter output into the unified finding
// shape, preserving auditability when output cannot be parsed.
package normalize

import (
	"fmt"

	"github.com/secaudit/secaudit/internal/adapter"
	"github.com/secaudit/secaudit/internal/finding"
)

// Findings parses a raw result through its producing adapter. A parse
// failure never drops the result silently: it yields exactly one synthetic
// info finding describing the failure, plus the original error so the
// caller can record the invocation as degraded.
//
// Normalization is deterministic and restartable - the same raw bytes
// always produce the same finding sequence.
func Findings(a adapter.Adapter, target finding.Target, raw *adapter.RawResult) ([]finding.Finding, error) {
	findings, err := a.Parse(target, raw)
	if err != nil {
		return []finding.Finding{parseFailure(a.Name(), target, err)}, err
	}
	return findings, nil
}

func parseFailure(adapterName string, target finding.Target, err error) finding.Finding {
	return finding.Finding{
		Target:      target.Identifier,
		Adapter:     adapterName,
		Severity:    finding.SeverityInfo,
		Category:    finding.CategoryConfigAudit,
		Description: fmt.Sprintf("output of %s could not be parsed: %v", adapterName, err),
		Remediation: "Re-validate the adapter's output contract against the installed tool version.",
	}
}
