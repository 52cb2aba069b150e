package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/secaudit/secaudit/internal/adapter"
	"github.com/secaudit/secaudit/internal/finding"
	"github.com/secaudit/secaudit/internal/orchestrator"
	"github.com/secaudit/secaudit/internal/pathsafe"
	"github.com/secaudit/secaudit/internal/policy"
	"github.com/secaudit/secaudit/internal/report"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the selected adapters against targets and evaluate the policy",
	Long: `Invoke every selected adapter against every target with bounded
parallelism, normalize the findings into a single audit report, persist it,
and evaluate the policy.

Exit codes: 0 pass, 1 warn, 2 fail, 3 configuration or orchestration error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		targetArgs, _ := cmd.Flags().GetStringSlice("targets")
		adapterNames, _ := cmd.Flags().GetStringSlice("adapters")
		policyPath, _ := cmd.Flags().GetString("policy")
		outPath, _ := cmd.Flags().GetString("out")

		// Configuration errors abort before any adapter executes.
		rules, err := policy.Load(policyPath)
		if err != nil {
			return &ExitError{Code: 3, Err: err}
		}

		targets := make([]finding.Target, 0, len(targetArgs))
		for _, raw := range targetArgs {
			target, err := finding.NewTarget(raw)
			if err != nil {
				return &ExitError{Code: 3, Err: err}
			}
			targets = append(targets, target)
		}
		if len(targets) == 0 {
			return &ExitError{Code: 3, Err: orchestrator.ErrNoTargets}
		}

		if len(adapterNames) == 0 {
			adapterNames = adapter.Names()
		}
		overrides := make(map[string]adapter.Overrides, len(cliConfig.Run.AdapterBinaries))
		for name, binary := range cliConfig.Run.AdapterBinaries {
			overrides[name] = adapter.Overrides{Binary: binary}
		}
		adapters, err := adapter.Build(adapterNames, overrides)
		if err != nil {
			return &ExitError{Code: 3, Err: err}
		}

		// Explicit flags win over config-file defaults.
		if cmd.Flags().Changed("concurrency") {
			cliConfig.Run.Concurrency, _ = cmd.Flags().GetInt("concurrency")
		}
		if cmd.Flags().Changed("rate-limit") {
			cliConfig.Run.RateLimit, _ = cmd.Flags().GetInt("rate-limit")
		}
		if cmd.Flags().Changed("timeout") {
			cliConfig.Run.TimeoutSecs, _ = cmd.Flags().GetInt("timeout")
		}
		if cmd.Flags().Changed("progress") {
			cliConfig.Run.ProgressEnabled, _ = cmd.Flags().GetBool("progress")
		}
		if cmd.Flags().Changed("telemetry") {
			cliConfig.Run.TelemetryEnabled, _ = cmd.Flags().GetBool("telemetry")
		}

		timeouts := make(map[string]time.Duration, len(cliConfig.Run.AdapterTimeouts))
		for name, secs := range cliConfig.Run.AdapterTimeouts {
			timeouts[name] = time.Duration(secs) * time.Second
		}

		opts := orchestrator.Options{
			Concurrency: cliConfig.Run.Concurrency,
			RateLimit:   cliConfig.Run.RateLimit,
			Timeout:     time.Duration(cliConfig.Run.TimeoutSecs) * time.Second,
			Timeouts:    timeouts,
			Logger:      logger,
		}

		var progress *progressPrinter
		if cliConfig.Run.ProgressEnabled {
			progress = newProgressPrinter(len(targets)*len(adapters), "audit")
			opts.OnInvocation = func(inv report.Invocation) {
				progress.Increment(inv.Status == report.StatusCompleted, inv.DurationSeconds)
			}
		}

		orch, err := orchestrator.New(adapters, opts)
		if err != nil {
			return &ExitError{Code: 3, Err: err}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if progress != nil {
			progress.Start()
		}
		start := time.Now()
		rep, err := orch.Run(ctx, targets)
		if progress != nil {
			progress.Stop()
		}
		if err != nil {
			return &ExitError{Code: 3, Err: err}
		}

		if outPath == "" {
			outPath, err = pathsafe.Join(resultsDir, "report.json")
			if err != nil {
				return &ExitError{Code: 3, Err: err}
			}
		}

		if err := report.Write(rep, outPath); err != nil {
			// The run's findings would otherwise be lost; dump the
			// in-memory report so the operator can still recover them.
			if data, merr := json.Marshal(rep); merr == nil {
				fmt.Fprintln(os.Stderr, string(data))
			}
			return &ExitError{Code: 3, Err: err}
		}

		verdict := policy.Evaluate(rep, *rules)
		printRunSummary(rep, verdict, outPath)

		if cliConfig.Run.TelemetryEnabled {
			if err := recordTelemetry("run", rep, verdict, time.Since(start)); err != nil {
				logger.Warnw("failed to record telemetry", "error", err)
			}
		}

		if verdict.Decision == policy.DecisionPass {
			return nil
		}
		return &ExitError{Code: verdict.Decision.ExitCode()}
	},
}

func printRunSummary(rep *report.AuditReport, verdict policy.Verdict, outPath string) {
	fmt.Println(colorSuccess("Run complete."))
	fmt.Printf("%s %s\n", colorInfo("Report:"), outPath)
	fmt.Printf("%s %s.sha256\n", colorInfo("Checksum:"), outPath)

	statusCounts := make(map[report.InvocationStatus]int)
	for _, inv := range rep.Metadata.Invocations {
		statusCounts[inv.Status]++
	}
	fmt.Printf("Invocations: %d completed, %d timed-out, %d tool-not-found, %d parse-error, %d failed\n",
		statusCounts[report.StatusCompleted],
		statusCounts[report.StatusTimedOut],
		statusCounts[report.StatusToolNotFound],
		statusCounts[report.StatusParseError],
		statusCounts[report.StatusFailed],
	)

	severityCounts := rep.CountBySeverity()
	fmt.Printf("Findings: %d total (%d critical, %d high, %d medium, %d low, %d info)\n",
		len(rep.Findings),
		severityCounts[finding.SeverityCritical],
		severityCounts[finding.SeverityHigh],
		severityCounts[finding.SeverityMedium],
		severityCounts[finding.SeverityLow],
		severityCounts[finding.SeverityInfo],
	)

	if rep.Metadata.Partial {
		fmt.Println(colorWarn("Partial run: cancelled before all adapters completed."))
	}

	printVerdict(verdict)
}

func printVerdict(verdict policy.Verdict) {
	fmt.Printf("Verdict: %s\n", formatDecision(verdict.Decision))
	for _, v := range verdict.Violations {
		fmt.Printf("  %s [%s/%s] %s (%s)\n",
			colorError("violation:"), v.Finding.Severity, v.Finding.Category, v.Finding.Description, v.Rule)
	}
}

func init() {
	runCmd.Flags().StringSlice("targets", nil, "targets to audit (hosts or URLs)")
	runCmd.Flags().StringSlice("adapters", nil, "adapters to run (default: all registered)")
	runCmd.Flags().String("policy", "", "policy rules file (YAML, required)")
	runCmd.Flags().String("out", "", "report output path (default: <results_dir>/report.json)")
	runCmd.Flags().Int("concurrency", defaultConcurrency, "max concurrent adapter invocations")
	runCmd.Flags().Int("rate-limit", defaultRateLimit, "max invocation starts per second (0 = unlimited)")
	runCmd.Flags().Int("timeout", defaultTimeoutSecs, "per-adapter timeout in seconds")
	runCmd.Flags().Bool("progress", false, "show live progress")
	runCmd.Flags().Bool("telemetry", false, "append run telemetry to <results_dir>/telemetry.jsonl")
	_ = runCmd.MarkFlagRequired("targets")
	_ = runCmd.MarkFlagRequired("policy")
}
