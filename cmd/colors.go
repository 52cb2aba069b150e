package cmd

import (
	"github.com/fatih/color"

	"github.com/secaudit/secaudit/internal/policy"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
)

func formatDecision(d policy.Decision) string {
	switch d {
	case policy.DecisionPass:
		return colorSuccess(string(d))
	case policy.DecisionWarn:
		return colorWarn(string(d))
	case policy.DecisionFail:
		return colorError(string(d))
	default:
		return string(d)
	}
}
