package main

import (
	"github.com/spf13/cobra"

	"procsched/internal/config"
)

var (
	flagPolicy    string
	flagConfig    string
	flagTimeslice int
	flagRemaining int
	flagCPUSlices int
)

// newRootCmd wires the run and list subcommands behind the
// shared --policy/--config flags, in the wilke-GoWe NewRootCmd style.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "procsched",
		Short: "procsched — a deterministic CPU scheduler simulator",
		Long: "procsched drives Round Robin, Priority Queue, or CFS scheduling\n" +
			"policies over a scripted process program and prints the resulting trace.",
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagPolicy, "policy", config.PolicyRoundRobin, "scheduling policy: rr, pq, or cfs")
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a config.yml (defaults apply if omitted)")
	root.PersistentFlags().IntVar(&flagTimeslice, "timeslice", 0, "override TIMESLICE (RR/PQ); 0 keeps the config value")
	root.PersistentFlags().IntVar(&flagRemaining, "remaining", -1, "override REMAINING; negative keeps the config value")
	root.PersistentFlags().IntVar(&flagCPUSlices, "cpu-slices", 0, "override CPU_SLICES (CFS); 0 keeps the config value")

	root.AddCommand(newRunCmd(), newListCmd())
	return root
}

// loadConfig loads config.yml (or the defaults) and layers the CLI's flag
// overrides on top, matching the precedence a harness's own flag wiring
// would apply over its YAML file.
func loadConfig() config.Config {
	cfg := config.Load(flagConfig)
	cfg.Policy = flagPolicy
	if flagTimeslice > 0 {
		cfg.Timeslice = flagTimeslice
	}
	if flagRemaining >= 0 {
		cfg.Remaining = flagRemaining
	}
	if flagCPUSlices > 0 {
		cfg.CPUSlices = flagCPUSlices
	}
	return cfg
}
