package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/secaudit/secaudit/internal/policy"
	"github.com/secaudit/secaudit/internal/report"
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate",
	Short: "Recompute a policy verdict from a stored report",
	Long: `Evaluate a previously persisted audit report against a policy file.
Evaluation is pure, so the verdict is reproducible offline for audit trails.

Exit codes: 0 pass, 1 warn, 2 fail, 3 configuration error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reportPath, _ := cmd.Flags().GetString("report")
		policyPath, _ := cmd.Flags().GetString("policy")

		rules, err := policy.Load(policyPath)
		if err != nil {
			return &ExitError{Code: 3, Err: err}
		}

		rep, err := report.Read(reportPath)
		if err != nil {
			return &ExitError{Code: 3, Err: err}
		}

		verdict := policy.Evaluate(rep, *rules)

		fmt.Printf("%s %s (%d findings, %d invocations)\n",
			colorInfo("Report:"), reportPath, len(rep.Findings), len(rep.Metadata.Invocations))
		printVerdict(verdict)

		if verdict.Decision == policy.DecisionPass {
			return nil
		}
		return &ExitError{Code: verdict.Decision.ExitCode()}
	},
}

func init() {
	evaluateCmd.Flags().String("report", "", "stored report file (required)")
	evaluateCmd.Flags().String("policy", "", "policy rules file (required)")
	_ = evaluateCmd.MarkFlagRequired("report")
	_ = evaluateCmd.MarkFlagRequired("policy")
}
