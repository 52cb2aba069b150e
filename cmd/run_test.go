package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/secaudit/secaudit/internal/report"
)

// writeStubTool drops an executable shell script standing in for an
// external scanner binary.
func writeStubTool(t *testing.T, script string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub-tool")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755); err != nil {
		t.Fatalf("write stub tool: %v", err)
	}
	return path
}

// executeRun drives `secaudit run` with an isolated config file and
// returns the results directory alongside the command error.
func executeRun(t *testing.T, extraConfig string, args ...string) (string, error) {
	t.Helper()
	resetRunState(t)

	dir := t.TempDir()
	results := filepath.Join(dir, "results")
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "results_dir: " + results + "\n" + extraConfig
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	rootCmd.SetArgs(append([]string{"--config", cfgPath, "run"}, args...))
	return results, rootCmd.Execute()
}

const nmapCleanStub = `cat <<'EOF'
<?xml version="1.0"?>
<nmaprun></nmaprun>
EOF`

const nmapExposedStub = `cat <<'EOF'
<?xml version="1.0"?>
<nmaprun>
  <host>
    <ports>
      <port protocol="tcp" portid="3389"><state state="open"/><service name="ms-wbt-server"/></port>
    </ports>
  </host>
</nmaprun>
EOF`

func nmapBinaryConfig(stub string) string {
	return "adapters:\n  binaries:\n    nmap: " + stub + "\n"
}

func TestRunCommandPass(t *testing.T) {
	stub := writeStubTool(t, nmapCleanStub)
	policyPath := writePolicyFile(t, "max_severity_allowed: high\n")
	outPath := filepath.Join(t.TempDir(), "report.json")

	_, err := executeRun(t, nmapBinaryConfig(stub),
		"--targets", "example.com", "--adapters", "nmap",
		"--policy", policyPath, "--out", outPath)
	if err != nil {
		t.Fatalf("clean scan should exit 0, got %v", err)
	}

	rep, err := report.Read(outPath)
	if err != nil {
		t.Fatalf("report not readable: %v", err)
	}
	if len(rep.Findings) != 0 {
		t.Errorf("unexpected findings: %+v", rep.Findings)
	}
	if len(rep.Metadata.Invocations) != 1 || rep.Metadata.Invocations[0].Status != report.StatusCompleted {
		t.Errorf("unexpected invocations: %+v", rep.Metadata.Invocations)
	}
	if _, err := os.Stat(outPath + ".sha256"); err != nil {
		t.Errorf("checksum companion missing: %v", err)
	}
}

func TestRunCommandWarn(t *testing.T) {
	stub := writeStubTool(t, `echo "WARN-NEW: Missing Anti-clickjacking Header [10020]"
exit 1`)
	policyPath := writePolicyFile(t, "max_severity_allowed: high\n")
	outPath := filepath.Join(t.TempDir(), "report.json")

	_, err := executeRun(t, "adapters:\n  binaries:\n    zap-baseline: "+stub+"\n",
		"--targets", "example.com", "--adapters", "zap-baseline",
		"--policy", policyPath, "--out", outPath)
	if code := exitCodeOf(t, err); code != 1 {
		t.Fatalf("medium finding under a lenient policy should exit 1, got %d", code)
	}
}

func TestRunCommandFail(t *testing.T) {
	stub := writeStubTool(t, nmapExposedStub)
	policyPath := writePolicyFile(t, "max_severity_allowed: medium\n")
	outPath := filepath.Join(t.TempDir(), "report.json")

	_, err := executeRun(t, nmapBinaryConfig(stub),
		"--targets", "example.com", "--adapters", "nmap",
		"--policy", policyPath, "--out", outPath)
	if code := exitCodeOf(t, err); code != 2 {
		t.Fatalf("high finding over the allowed severity should exit 2, got %d", code)
	}

	rep, err := report.Read(outPath)
	if err != nil {
		t.Fatalf("report not readable: %v", err)
	}
	if len(rep.Findings) != 1 || rep.Findings[0].Description != "port 3389/tcp open (ms-wbt-server)" {
		t.Errorf("unexpected findings: %+v", rep.Findings)
	}
}

func TestRunCommandBadPolicy(t *testing.T) {
	policyPath := writePolicyFile(t, "max_severity_allowed: catastrophic\n")

	_, err := executeRun(t, "",
		"--targets", "example.com", "--adapters", "headercheck",
		"--policy", policyPath)
	if code := exitCodeOf(t, err); code != 3 {
		t.Fatalf("invalid policy should exit 3 before any adapter runs, got %d", code)
	}
}

func TestRunCommandUnknownAdapter(t *testing.T) {
	policyPath := writePolicyFile(t, "max_severity_allowed: high\n")

	_, err := executeRun(t, "",
		"--targets", "example.com", "--adapters", "nessus",
		"--policy", policyPath)
	if code := exitCodeOf(t, err); code != 3 {
		t.Fatalf("unknown adapter should exit 3, got %d", code)
	}
}

func TestRunCommandBlankTarget(t *testing.T) {
	policyPath := writePolicyFile(t, "max_severity_allowed: high\n")

	_, err := executeRun(t, "",
		"--targets", " ", "--adapters", "headercheck",
		"--policy", policyPath)
	if code := exitCodeOf(t, err); code != 3 {
		t.Fatalf("blank target should exit 3, got %d", code)
	}
}

func TestRunCommandToolNotFound(t *testing.T) {
	policyPath := writePolicyFile(t, "max_severity_allowed: high\n")
	outPath := filepath.Join(t.TempDir(), "report.json")

	_, err := executeRun(t, nmapBinaryConfig("/nonexistent/nmap-missing"),
		"--targets", "example.com", "--adapters", "nmap",
		"--policy", policyPath, "--out", outPath)
	if err != nil {
		t.Fatalf("a missing tool degrades the run, it does not fail it: %v", err)
	}

	rep, err := report.Read(outPath)
	if err != nil {
		t.Fatalf("report not readable: %v", err)
	}
	if len(rep.Metadata.Invocations) != 1 || rep.Metadata.Invocations[0].Status != report.StatusToolNotFound {
		t.Errorf("unexpected invocations: %+v", rep.Metadata.Invocations)
	}
	if len(rep.Findings) != 0 {
		t.Errorf("unexpected findings: %+v", rep.Findings)
	}
}

func TestRunCommandDefaultOutPath(t *testing.T) {
	stub := writeStubTool(t, nmapCleanStub)
	policyPath := writePolicyFile(t, "max_severity_allowed: high\n")

	results, err := executeRun(t, nmapBinaryConfig(stub),
		"--targets", "example.com", "--adapters", "nmap",
		"--policy", policyPath)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, err := report.Read(filepath.Join(results, "report.json")); err != nil {
		t.Errorf("report not written to the results directory: %v", err)
	}
}

func TestRunCommandWriteFailure(t *testing.T) {
	stub := writeStubTool(t, nmapCleanStub)
	policyPath := writePolicyFile(t, "max_severity_allowed: high\n")
	outPath := filepath.Join(t.TempDir(), "missing-dir", "report.json")

	_, err := executeRun(t, nmapBinaryConfig(stub),
		"--targets", "example.com", "--adapters", "nmap",
		"--policy", policyPath, "--out", outPath)
	if code := exitCodeOf(t, err); code != 3 {
		t.Fatalf("unpersistable report should exit 3, got %d", code)
	}
}

func TestRunCommandTelemetryFromConfig(t *testing.T) {
	stub := writeStubTool(t, nmapCleanStub)
	policyPath := writePolicyFile(t, "max_severity_allowed: high\n")

	cfg := nmapBinaryConfig(stub) + "run:\n  telemetry: true\n"
	results, err := executeRun(t, cfg,
		"--targets", "example.com", "--adapters", "nmap",
		"--policy", policyPath)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(results, "telemetry.jsonl")); err != nil {
		t.Errorf("telemetry enabled in config was not recorded: %v", err)
	}
}

func TestRunCommandTelemetryFlagOverridesConfig(t *testing.T) {
	stub := writeStubTool(t, nmapCleanStub)
	policyPath := writePolicyFile(t, "max_severity_allowed: high\n")

	cfg := nmapBinaryConfig(stub) + "run:\n  telemetry: true\n"
	results, err := executeRun(t, cfg,
		"--targets", "example.com", "--adapters", "nmap",
		"--policy", policyPath, "--telemetry=false")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(results, "telemetry.jsonl")); !os.IsNotExist(err) {
		t.Errorf("explicit --telemetry=false must win over the config file, stat err: %v", err)
	}
}
