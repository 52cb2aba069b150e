package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/secaudit/secaudit/internal/pathsafe"
	"github.com/secaudit/secaudit/internal/policy"
	"github.com/secaudit/secaudit/internal/report"
)

type telemetryRecord struct {
	Timestamp         time.Time `json:"timestamp"`
	Command           string    `json:"command"`
	TargetCount       int       `json:"target_count"`
	AdapterCount      int       `json:"adapter_count"`
	InvocationCount   int       `json:"invocation_count"`
	DegradedCount     int       `json:"degraded_count"`
	FindingCount      int       `json:"finding_count"`
	Decision          string    `json:"decision"`
	DurationSeconds   float64   `json:"duration_seconds"`
	AvgDurationPerInv float64   `json:"avg_duration_per_invocation"`
}

func recordTelemetry(command string, rep *report.AuditReport, verdict policy.Verdict, duration time.Duration) error {
	degraded := 0
	for _, inv := range rep.Metadata.Invocations {
		if inv.Status != report.StatusCompleted {
			degraded++
		}
	}

	total := len(rep.Metadata.Invocations)
	avg := 0.0
	if total > 0 {
		avg = duration.Seconds() / float64(total)
	}

	record := telemetryRecord{
		Timestamp:         time.Now().UTC(),
		Command:           command,
		TargetCount:       len(rep.Targets),
		AdapterCount:      len(rep.Metadata.Adapters),
		InvocationCount:   total,
		DegradedCount:     degraded,
		FindingCount:      len(rep.Findings),
		Decision:          string(verdict.Decision),
		DurationSeconds:   duration.Seconds(),
		AvgDurationPerInv: avg,
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal telemetry: %w", err)
	}

	telemetryPath, err := pathsafe.Join(resultsDir, "telemetry.jsonl")
	if err != nil {
		return fmt.Errorf("resolve telemetry path: %w", err)
	}

	f, err := os.OpenFile(telemetryPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open telemetry file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write telemetry: %w", err)
	}

	return nil
}
