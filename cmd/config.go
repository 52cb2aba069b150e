package cmd

import (
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	defaultConcurrency = 4
	defaultRateLimit   = 2
	defaultTimeoutSecs = 300
)

// CLIConfig captures runtime configuration shared across commands.
type CLIConfig struct {
	Run RunRuntimeConfig
}

// RunRuntimeConfig consolidates flag-driven settings for the run command.
type RunRuntimeConfig struct {
	Concurrency      int
	RateLimit        int
	TimeoutSecs      int
	ProgressEnabled  bool
	TelemetryEnabled bool
	AdapterBinaries  map[string]string
	AdapterTimeouts  map[string]int
}

var cliConfig = newCLIConfig()

func newCLIConfig() *CLIConfig {
	return &CLIConfig{
		Run: RunRuntimeConfig{
			Concurrency:     defaultConcurrency,
			RateLimit:       defaultRateLimit,
			TimeoutSecs:     defaultTimeoutSecs,
			AdapterBinaries: map[string]string{},
			AdapterTimeouts: map[string]int{},
		},
	}
}

// applyConfigDefaults merges config file defaults into the runtime config
// when the user did not explicitly override the corresponding flag.
func applyConfigDefaults(cmd *cobra.Command) {
	if viper.IsSet("run.concurrency") {
		applyIntDefault(runCmd.Flags(), "concurrency", viper.GetInt("run.concurrency"), func(v int) {
			cliConfig.Run.Concurrency = v
		})
	}

	if viper.IsSet("run.rate_limit") {
		applyIntDefault(runCmd.Flags(), "rate-limit", viper.GetInt("run.rate_limit"), func(v int) {
			cliConfig.Run.RateLimit = v
		})
	}

	if viper.IsSet("run.timeout_secs") {
		applyIntDefault(runCmd.Flags(), "timeout", viper.GetInt("run.timeout_secs"), func(v int) {
			cliConfig.Run.TimeoutSecs = v
		})
	}

	if viper.IsSet("run.progress") {
		applyBoolDefault(runCmd.Flags(), "progress", viper.GetBool("run.progress"), func(v bool) {
			cliConfig.Run.ProgressEnabled = v
		})
	}

	if viper.IsSet("run.telemetry") {
		applyBoolDefault(runCmd.Flags(), "telemetry", viper.GetBool("run.telemetry"), func(v bool) {
			cliConfig.Run.TelemetryEnabled = v
		})
	}

	for name, binary := range viper.GetStringMapString("adapters.binaries") {
		if binary != "" {
			cliConfig.Run.AdapterBinaries[name] = binary
		}
	}

	for name, value := range viper.GetStringMap("adapters.timeout_secs") {
		if secs, ok := toInt(value); ok && secs > 0 {
			cliConfig.Run.AdapterTimeouts[name] = secs
		}
	}
}

func toInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	default:
		return 0, false
	}
}

func applyIntDefault(flags *pflag.FlagSet, name string, value int, setter func(int)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}

func applyBoolDefault(flags *pflag.FlagSet, name string, value bool, setter func(bool)) {
	if flags == nil || setter == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag != nil && flag.Changed {
		return
	}
	setter(value)
}
