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

const sqlmapTableVersion = "sqlmap/1"

// Sqlmap wraps the sqlmap injection scanner in non-interactive batch mode.
// Confirmed injection points map to critical injection findings.
type Sqlmap struct {
	Binary string
}

// NewSqlmap builds the sqlmap adapter. Binary defaults to "sqlmap".
func NewSqlmap(binary string) *Sqlmap {
	if binary == "" {
		binary = "sqlmap"
	}
	return &Sqlmap{Binary: binary}
}

func (s *Sqlmap) Name() string         { return "sqlmap" }
func (s *Sqlmap) Tool() string         { return s.Binary }
func (s *Sqlmap) TableVersion() string { return sqlmapTableVersion }

func (s *Sqlmap) Run(ctx context.Context, target finding.Target, timeout time.Duration) (*RawResult, error) {
	args := []string{"--batch", "--level", "1", "-u", target.URL()}

	raw, err := execTool(ctx, timeout, s.Binary, args...)
	if err != nil {
		return nil, err
	}
	// sqlmap exits 0 whether or not injection points were found.
	if raw.ExitCode != 0 {
		return raw, fmt.Errorf("%w: sqlmap exited %d", ErrNonZeroExit, raw.ExitCode)
	}
	return raw, nil
}

// Parse walks sqlmap's stdout for confirmed injection points. sqlmap prints
// a "Parameter: <name> (<place>)" header followed by one or more
// "Type: <technique>" lines for every injectable parameter.
func (s *Sqlmap) Parse(target finding.Target, raw *RawResult) ([]finding.Finding, error) {
	var findings []finding.Finding
	var parameter string

	scanner := bufio.NewScanner(bytes.NewReader(raw.Stdout))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "Parameter:") {
			parameter = strings.TrimSpace(strings.TrimPrefix(line, "Parameter:"))
			continue
		}

		if strings.HasPrefix(line, "Type:") && parameter != "" {
			technique := strings.TrimSpace(strings.TrimPrefix(line, "Type:"))
			findings = append(findings, finding.Finding{
				Target:      target.Identifier,
				Adapter:     s.Name(),
				Severity:    finding.SeverityCritical,
				Category:    finding.CategoryInjection,
				Description: fmt.Sprintf("SQL injection confirmed on parameter %s (%s)", parameter, technique),
				Remediation: "Use parameterized queries or prepared statements; never concatenate user input into SQL.",
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan sqlmap output: %w", err)
	}

	return findings, nil
}
