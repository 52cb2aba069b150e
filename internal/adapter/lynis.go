package adapter

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/secaudit/secaudit/internal/finding"
)

const lynisTableVersion = "lynis/1"

// Lynis wraps the lynis host hardening auditor. Lynis writes its
// machine-readable results to a report file rather than stdout, so Run
// captures that file as the parse surface.
type Lynis struct {
	Binary string
}

// NewLynis builds the lynis adapter. Binary defaults to "lynis".
func NewLynis(binary string) *Lynis {
	if binary == "" {
		binary = "lynis"
	}
	return &Lynis{Binary: binary}
}

func (l *Lynis) Name() string         { return "lynis" }
func (l *Lynis) Tool() string         { return l.Binary }
func (l *Lynis) TableVersion() string { return lynisTableVersion }

func (l *Lynis) Run(ctx context.Context, target finding.Target, timeout time.Duration) (*RawResult, error) {
	reportFile, err := os.CreateTemp("", "lynis-report-*.dat")
	if err != nil {
		return nil, fmt.Errorf("create lynis report file: %w", err)
	}
	reportPath := reportFile.Name()
	reportFile.Close()
	defer os.Remove(reportPath)

	args := []string{"audit", "system", "--quick", "--no-colors", "--report-file", reportPath}

	raw, err := execTool(ctx, timeout, l.Binary, args...)
	if err != nil {
		return nil, err
	}

	// Lynis exits non-zero when warnings were found. The report file is
	// the authoritative outcome: a readable report means the audit ran.
	data, readErr := os.ReadFile(reportPath)
	if readErr != nil || len(data) == 0 {
		if raw.ExitCode != 0 {
			return raw, fmt.Errorf("%w: lynis exited %d without a report", ErrNonZeroExit, raw.ExitCode)
		}
		return raw, fmt.Errorf("lynis produced no report: %v", readErr)
	}

	// The report file replaces stdout as the parse surface so Parse stays
	// a pure function of the raw result.
	raw.Stdout = data
	return raw, nil
}

func (l *Lynis) Parse(target finding.Target, raw *RawResult) ([]finding.Finding, error) {
	var findings []finding.Finding

	scanner := bufio.NewScanner(bytes.NewReader(raw.Stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		switch {
		case strings.HasPrefix(line, "warning[]="):
			findings = append(findings, finding.Finding{
				Target:      target.Identifier,
				Adapter:     l.Name(),
				Severity:    finding.SeverityMedium,
				Category:    finding.CategoryConfigAudit,
				Description: "lynis warning: " + strings.TrimPrefix(line, "warning[]="),
				Remediation: "Consult the lynis log for the named control and apply the suggested hardening.",
			})
		case strings.HasPrefix(line, "suggestion[]="):
			findings = append(findings, finding.Finding{
				Target:      target.Identifier,
				Adapter:     l.Name(),
				Severity:    finding.SeverityInfo,
				Category:    finding.CategoryConfigAudit,
				Description: "lynis suggestion: " + strings.TrimPrefix(line, "suggestion[]="),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan lynis report: %w", err)
	}

	return findings, nil
}
