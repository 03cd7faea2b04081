package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"procsched/internal/config"
	"procsched/internal/sched"
	"procsched/internal/vm"
)

const maxDemoIterations = 10_000

func newRunCmd() *cobra.Command {
	var outCSV string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the built-in demo process program to completion and print its trace",
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := "run_" + uuid.New().String()[:8]

			cfg := loadConfig()
			scheduler, err := config.New(cfg)
			if err != nil {
				return fmt.Errorf("build scheduler: %w", err)
			}

			logger.WithFields(map[string]any{
				"run_id": runID,
				"policy": cfg.Policy,
			}).Info("starting run")

			logs := vm.RunLimit(scheduler, vm.DemoProgram(), maxDemoIterations)

			if len(logs) > 0 {
				switch logs[len(logs)-1].Decision.Kind {
				case sched.DecisionPanic:
					logger.WithField("run_id", runID).Warn("scheduler entered the panic state")
				case sched.DecisionDeadlock:
					logger.WithField("run_id", runID).Warn("scheduler deadlocked")
				}
			}

			fmt.Print(vm.FormatLogs(logs))

			if outCSV == "" && cfg.WriteOutput {
				outCSV = "procsched-" + runID + ".csv"
			}
			if outCSV != "" {
				if err := vm.WriteCSV(outCSV, logs); err != nil {
					return fmt.Errorf("write csv output: %w", err)
				}
				logger.WithField("run_id", runID).Infof("wrote golden output to %s", outCSV)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outCSV, "out", "", "write a CSV trace to this path (implies WRITE_OUTPUT)")
	return cmd
}
