package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/secaudit/secaudit/internal/finding"
)

const trivyTableVersion = "trivy/1"

// Trivy wraps the trivy vulnerability scanner in JSON output mode. Image
// references are scanned with the image subcommand; local paths with fs.
type Trivy struct {
	Binary string
}

// NewTrivy builds the trivy adapter. Binary defaults to "trivy".
func NewTrivy(binary string) *Trivy {
	if binary == "" {
		binary = "trivy"
	}
	return &Trivy{Binary: binary}
}

func (t *Trivy) Name() string         { return "trivy" }
func (t *Trivy) Tool() string         { return t.Binary }
func (t *Trivy) TableVersion() string { return trivyTableVersion }

func (t *Trivy) Run(ctx context.Context, target finding.Target, timeout time.Duration) (*RawResult, error) {
	subcommand := "image"
	if strings.HasPrefix(target.Identifier, "/") || strings.HasPrefix(target.Identifier, ".") {
		subcommand = "fs"
	}
	args := []string{"--quiet", subcommand, "--format", "json", target.Identifier}

	raw, err := execTool(ctx, timeout, t.Binary, args...)
	if err != nil {
		return nil, err
	}
	// Without --exit-code trivy exits 0 regardless of what it found.
	if raw.ExitCode != 0 {
		return raw, fmt.Errorf("%w: trivy exited %d", ErrNonZeroExit, raw.ExitCode)
	}
	return raw, nil
}

type trivyReport struct {
	Results []trivyResult `json:"Results"`
}

type trivyResult struct {
	Target          string      `json:"Target"`
	Vulnerabilities []trivyVuln `json:"Vulnerabilities"`
}

type trivyVuln struct {
	VulnerabilityID  string `json:"VulnerabilityID"`
	PkgName          string `json:"PkgName"`
	InstalledVersion string `json:"InstalledVersion"`
	FixedVersion     string `json:"FixedVersion"`
	Severity         string `json:"Severity"`
	Title            string `json:"Title"`
}

var trivySeverities = map[string]finding.Severity{
	"CRITICAL": finding.SeverityCritical,
	"HIGH":     finding.SeverityHigh,
	"MEDIUM":   finding.SeverityMedium,
	"LOW":      finding.SeverityLow,
	"UNKNOWN":  finding.SeverityInfo,
}

func (t *Trivy) Parse(target finding.Target, raw *RawResult) ([]finding.Finding, error) {
	var rep trivyReport
	if err := json.Unmarshal(raw.Stdout, &rep); err != nil {
		return nil, fmt.Errorf("parse trivy json: %w", err)
	}

	var findings []finding.Finding
	for _, result := range rep.Results {
		for _, vuln := range result.Vulnerabilities {
			severity, ok := trivySeverities[vuln.Severity]
			if !ok {
				severity = finding.SeverityInfo
			}

			desc := fmt.Sprintf("%s in %s %s", vuln.VulnerabilityID, vuln.PkgName, vuln.InstalledVersion)
			if vuln.Title != "" {
				desc += ": " + vuln.Title
			}

			remediation := ""
			if vuln.FixedVersion != "" {
				remediation = fmt.Sprintf("Upgrade %s to %s.", vuln.PkgName, vuln.FixedVersion)
			}

			findings = append(findings, finding.Finding{
				Target:      target.Identifier,
				Adapter:     t.Name(),
				Severity:    severity,
				Category:    finding.CategoryDependencyVuln,
				Description: desc,
				Remediation: remediation,
			})
		}
	}

	return findings, nil
}
