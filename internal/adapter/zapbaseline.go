package adapter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/secaudit/secaudit/internal/finding"
)

const zapTableVersion = "zap-baseline/1"

// ZapBaseline wraps the OWASP ZAP baseline scan script. The baseline scan
// is passive: it spiders the target and reports rule violations without
// attacking it.
type ZapBaseline struct {
	Binary string
}

// NewZapBaseline builds the adapter. Binary defaults to "zap-baseline.py".
func NewZapBaseline(binary string) *ZapBaseline {
	if binary == "" {
		binary = "zap-baseline.py"
	}
	return &ZapBaseline{Binary: binary}
}

func (z *ZapBaseline) Name() string         { return "zap-baseline" }
func (z *ZapBaseline) Tool() string         { return z.Binary }
func (z *ZapBaseline) TableVersion() string { return zapTableVersion }

func (z *ZapBaseline) Run(ctx context.Context, target finding.Target, timeout time.Duration) (*RawResult, error) {
	args := []string{"-t", target.URL(), "-s"}

	raw, err := execTool(ctx, timeout, z.Binary, args...)
	if err != nil {
		return nil, err
	}
	// Exit 1 means warnings were raised, 2 means failures; both are
	// "findings present", not tool failure. Exit 3 is a genuine error.
	if raw.ExitCode != 0 && raw.ExitCode != 1 && raw.ExitCode != 2 {
		return raw, fmt.Errorf("%w: zap-baseline exited %d", ErrNonZeroExit, raw.ExitCode)
	}
	return raw, nil
}

// transport-related ZAP rule keywords; everything else is config-audit.
var zapTransportKeywords = []string{"hsts", "strict-transport", "tls", "ssl", "secure flag"}

// Parse reads the baseline summary lines. Each violated rule is printed as
// "WARN-NEW: <rule name> [<id>] x <count>" or "FAIL-NEW: ..." followed by
// the affected URLs.
func (z *ZapBaseline) Parse(target finding.Target, raw *RawResult) ([]finding.Finding, error) {
	var findings []finding.Finding

	scanner := bufio.NewScanner(bytes.NewReader(raw.Stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		var severity finding.Severity
		var rest string
		switch {
		case strings.HasPrefix(line, "WARN-NEW:"):
			severity = finding.SeverityMedium
			rest = strings.TrimPrefix(line, "WARN-NEW:")
		case strings.HasPrefix(line, "FAIL-NEW:"):
			severity = finding.SeverityHigh
			rest = strings.TrimPrefix(line, "FAIL-NEW:")
		default:
			continue
		}

		rule := strings.TrimSpace(rest)
		if idx := strings.LastIndex(rule, " x "); idx > 0 {
			rule = rule[:idx]
		}
		// The trailing totals line ("FAIL-NEW: 0	FAIL-INPROG: 0 ...")
		// starts with a count, not a rule name.
		if rule == "" || (rule[0] >= '0' && rule[0] <= '9') {
			continue
		}

		category := finding.CategoryConfigAudit
		lower := strings.ToLower(rule)
		for _, kw := range zapTransportKeywords {
			if strings.Contains(lower, kw) {
				category = finding.CategoryTransport
				break
			}
		}

		findings = append(findings, finding.Finding{
			Target:      target.Identifier,
			Adapter:     z.Name(),
			Severity:    severity,
			Category:    category,
			Description: fmt.Sprintf("ZAP baseline rule violated: %s", rule),
			Remediation: "Review the ZAP rule documentation for the named alert and adjust the application configuration.",
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan zap-baseline output: %w", err)
	}

	return findings, nil
}
